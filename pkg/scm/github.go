package scm

import (
	"context"
	"errors"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const defaultGitHubBaseURL = "https://api.github.com"

func (f *Factory) gitHubClient(ctx context.Context, installationID string) (*gh.Client, error) {
	if f.manager == nil {
		return nil, errors.New("github app credentials are not configured")
	}
	if installationID == "" {
		return nil, errors.New("github installation id is required")
	}

	cred, err := f.manager.ScopedToken(ctx, installationID, f.exchange)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Token})
	httpClient := oauth2.NewClient(ctx, ts)

	baseURL := strings.TrimRight(f.cfg.GitHub.BaseURL, "/")
	if baseURL != "" && baseURL != defaultGitHubBaseURL {
		return gh.NewEnterpriseClient(baseURL, baseURL, httpClient)
	}
	return gh.NewClient(httpClient), nil
}
