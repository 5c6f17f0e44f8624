package verify

import (
	"fmt"
	"net/http"
	"time"
)

// Scheme identifies the verification strategy a provider is bound to.
type Scheme string

const (
	SchemeHMACSHA256  Scheme = "hmac_sha256"
	SchemeSharedToken Scheme = "shared_token"
	SchemeEd25519     Scheme = "ed25519"
	SchemeJWTBearer   Scheme = "jwt_bearer"
	SchemeHMACReplay  Scheme = "hmac_sha256_replay"
)

// Material carries the per-integration secrets and header names a strategy
// needs. Header names default per scheme when left empty.
type Material struct {
	Secret       string
	PublicKeyHex string
	AppID        string

	SignatureHeader string
	TimestampHeader string
	TokenHeader     string

	// IssuerPrefixes is the allow-list for the jwt_bearer scheme.
	IssuerPrefixes []string
}

// Request is the raw inbound webhook request. Body must be the unmodified
// bytes read from the wire; signatures are computed over them before any
// JSON parsing.
type Request struct {
	Header     http.Header
	Body       []byte
	ReceivedAt time.Time
}

// Result reports the outcome of a verification attempt. Expected failures
// are returned as Valid=false with a reason, never as an error.
type Result struct {
	Valid  bool
	Reason string
}

func invalid(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

var valid = Result{Valid: true}

type strategy func(m Material, r Request) (Result, error)

var strategies = map[Scheme]strategy{
	SchemeHMACSHA256:  verifyHMACSHA256,
	SchemeSharedToken: verifySharedToken,
	SchemeEd25519:     verifyEd25519,
	SchemeJWTBearer:   verifyJWTBearer,
	SchemeHMACReplay:  verifyHMACReplay,
}

// Known reports whether a scheme has a registered strategy.
func Known(scheme Scheme) bool {
	_, ok := strategies[scheme]
	return ok
}

// Verify runs the strategy registered for scheme against the request.
// The returned error is reserved for configuration problems (unknown
// scheme, missing secret or key); attacker-triggerable failures come back
// as Result{Valid: false}.
func Verify(scheme Scheme, m Material, r Request) (Result, error) {
	fn, ok := strategies[scheme]
	if !ok {
		return Result{}, fmt.Errorf("unknown verification scheme: %s", scheme)
	}
	return fn(m, r)
}
