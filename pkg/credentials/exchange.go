package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGitHubBaseURL = "https://api.github.com"

// GitHubExchange returns an ExchangeFunc that posts the app assertion to
// the installation access-token endpoint. scopeID is the installation id.
func GitHubExchange(baseURL string, client *http.Client) ExchangeFunc {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGitHubBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, assertion, scopeID string) (IssuedCredential, error) {
		endpoint := fmt.Sprintf("%s/app/installations/%s/access_tokens", baseURL, scopeID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return IssuedCredential{}, err
		}
		req.Header.Set("Authorization", "Bearer "+assertion)
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := client.Do(req)
		if err != nil {
			return IssuedCredential{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			return IssuedCredential{}, fmt.Errorf("token exchange failed: %s", strings.TrimSpace(string(body)))
		}

		var out struct {
			Token     string    `json:"token"`
			ExpiresAt time.Time `json:"expires_at"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return IssuedCredential{}, err
		}
		if out.Token == "" {
			return IssuedCredential{}, errors.New("token missing from exchange response")
		}
		return IssuedCredential{
			Token:     out.Token,
			ScopeID:   scopeID,
			ExpiresAt: out.ExpiresAt,
		}, nil
	}
}
