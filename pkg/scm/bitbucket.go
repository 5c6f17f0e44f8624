package scm

import (
	"errors"
	"os"
	"strings"

	bb "github.com/ktrysmt/go-bitbucket"
)

func newBitbucketClient(cfg ProviderConfig) (*bb.Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("bitbucket token is required")
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		_ = os.Setenv("BITBUCKET_API_BASE_URL", base)
	}
	return bb.NewOAuthbearerToken(cfg.Token), nil
}
