package verify

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// defaultIssuerPrefixes covers the system identities chat providers mint
// bearer tokens under.
var defaultIssuerPrefixes = []string{
	"chat@system.gserviceaccount.com",
	"https://accounts.google.com",
	"accounts.google.com",
}

// verifyJWTBearer checks the claims of a bearer token: audience must equal
// the configured app id, the issuer must carry an allow-listed prefix, and
// the token must not be expired.
//
// This does not verify the token signature against the identity provider's
// published keys. It is a claims-only baseline; JWKS-based verification
// with key rotation is required before trusting these tokens beyond
// admission filtering.
func verifyJWTBearer(m Material, r Request) (Result, error) {
	if m.AppID == "" {
		return Result{}, errors.New("jwt bearer app id is not configured")
	}

	authz := r.Header.Get("Authorization")
	if authz == "" {
		return invalid("authorization header missing"), nil
	}
	token, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok {
		return invalid("authorization header is not a bearer token"), nil
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return invalid("token does not have three segments"), nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return invalid("token payload is not valid base64"), nil
	}

	var claims struct {
		Aud audience `json:"aud"`
		Iss string   `json:"iss"`
		Exp int64    `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return invalid("token payload is not valid JSON"), nil
	}

	if !claims.Aud.contains(m.AppID) {
		return invalid("audience mismatch"), nil
	}
	prefixes := m.IssuerPrefixes
	if len(prefixes) == 0 {
		prefixes = defaultIssuerPrefixes
	}
	if !issuerAllowed(claims.Iss, prefixes) {
		return invalid("issuer not allowed"), nil
	}
	if claims.Exp <= r.ReceivedAt.Unix() {
		return invalid("token expired"), nil
	}
	return valid, nil
}

// audience holds the aud claim, which may be a single string or an array
// of strings.
type audience []string

func (a *audience) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = audience{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = audience(many)
	return nil
}

func (a audience) contains(appID string) bool {
	for _, aud := range a {
		if aud == appID {
			return true
		}
	}
	return false
}

func issuerAllowed(iss string, prefixes []string) bool {
	if iss == "" {
		return false
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(iss, prefix) {
			return true
		}
	}
	return false
}
