package scm

import (
	"errors"
	"strings"

	gl "github.com/xanzy/go-gitlab"
)

func newGitLabClient(cfg ProviderConfig) (*gl.Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("gitlab token is required")
	}
	options := make([]gl.ClientOptionFunc, 0, 1)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		options = append(options, gl.WithBaseURL(base))
	}
	return gl.NewClient(cfg.Token, options...)
}
