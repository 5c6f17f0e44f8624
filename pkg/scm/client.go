package scm

import (
	"context"
	"errors"
	"net/http"

	"hookgate/internal"
	"hookgate/pkg/credentials"
)

// Config holds provider API client settings.
type Config struct {
	GitHub    GitHubConfig
	GitLab    ProviderConfig
	Bitbucket ProviderConfig
}

// GitHubConfig configures the app-authenticated GitHub client.
type GitHubConfig struct {
	AppID          string
	PrivateKeyPath string
	BaseURL        string
}

// ProviderConfig configures a token-authenticated provider client.
type ProviderConfig struct {
	Token   string
	BaseURL string
}

// Client is a provider-specific API client. Use type assertions to access
// the provider client you need.
type Client interface{}

// Factory builds SCM clients. GitHub clients authenticate through the
// credential manager; GitLab and Bitbucket use static tokens.
type Factory struct {
	cfg      Config
	manager  *credentials.Manager
	exchange credentials.ExchangeFunc
}

// NewFactory creates a Factory. The credential manager is only built when
// GitHub app credentials are configured.
func NewFactory(cfg Config) *Factory {
	f := &Factory{cfg: cfg}
	if cfg.GitHub.AppID != "" && cfg.GitHub.PrivateKeyPath != "" {
		f.manager = credentials.NewManager(&credentials.Principal{
			ID:             cfg.GitHub.AppID,
			PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
		}).OnExchange(internal.IncExchange)
		f.exchange = credentials.GitHubExchange(cfg.GitHub.BaseURL, nil)
	}
	return f
}

// Manager exposes the credential manager for invalidation on observed
// auth failures.
func (f *Factory) Manager() *credentials.Manager {
	return f.manager
}

// NewClient creates a provider-specific client. installationID scopes the
// GitHub credential and is ignored by the other providers.
func (f *Factory) NewClient(ctx context.Context, provider, installationID string) (Client, error) {
	switch provider {
	case "github":
		return f.gitHubClient(ctx, installationID)
	case "gitlab":
		return newGitLabClient(f.cfg.GitLab)
	case "bitbucket":
		return newBitbucketClient(f.cfg.Bitbucket)
	default:
		return nil, errors.New("unsupported provider for scm client")
	}
}

// InvalidateOnAuthStatus evicts the scoped credential when a downstream
// call came back unauthorized, so the next client re-authenticates.
// Returns true when an eviction happened.
func InvalidateOnAuthStatus(manager *credentials.Manager, scopeID string, status int) bool {
	if manager == nil {
		return false
	}
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return false
	}
	manager.Invalidate(scopeID)
	return true
}
