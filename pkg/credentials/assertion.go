package credentials

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"sync"
	"time"
)

const (
	assertionLifetime = 10 * time.Minute
	// assertionBackdate absorbs clock drift between us and the provider.
	assertionBackdate = 60 * time.Second
)

// Principal is the app-level identity that mints assertions. The private
// key is loaded lazily and exactly once; malformed key material is fatal
// for the integration, never retried.
type Principal struct {
	ID             string
	PrivateKeyPath string

	keyOnce  sync.Once
	key      *rsa.PrivateKey
	keyError error
}

// Assertion mints a short-lived RS256 JWT with iss set to the principal
// id. The issued-at claim is backdated so a provider with a slightly
// behind clock does not reject a token from the future.
func (p *Principal) Assertion(now time.Time) (string, error) {
	key, err := p.privateKey()
	if err != nil {
		return "", err
	}
	now = now.UTC()
	claims := map[string]interface{}{
		"iat": now.Add(-assertionBackdate).Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
		"iss": p.ID,
	}
	header := map[string]interface{}{
		"alg": "RS256",
		"typ": "JWT",
	}
	encodedHeader, err := encodeSegment(header)
	if err != nil {
		return "", err
	}
	encodedClaims, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}
	unsigned := encodedHeader + "." + encodedClaims
	hash := sha256.Sum256([]byte(unsigned))
	signature, err := rsa.SignPKCS1v15(nil, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func (p *Principal) privateKey() (*rsa.PrivateKey, error) {
	p.keyOnce.Do(func() {
		keyBytes, err := os.ReadFile(p.PrivateKeyPath)
		if err != nil {
			p.keyError = err
			return
		}
		p.key, p.keyError = parseRSAKey(keyBytes)
	})
	if p.keyError != nil {
		return nil, p.keyError
	}
	if p.key == nil {
		return nil, errors.New("private key not loaded")
	}
	return p.key, nil
}

func parseRSAKey(keyBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, errors.New("private key PEM decode failed")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	typed, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return typed, nil
}

func encodeSegment(data map[string]interface{}) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
