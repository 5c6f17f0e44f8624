package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultSignatureHeader = "X-Hub-Signature-256"
	replaySignatureHeader  = "X-Slack-Signature"
	replayTimestampHeader  = "X-Slack-Request-Timestamp"

	// replayWindowSeconds bounds how old a replay-guarded request may be.
	replayWindowSeconds = 300
)

// verifyHMACSHA256 checks a `sha256=<hex>` signature header against
// HMAC-SHA256(secret, body).
func verifyHMACSHA256(m Material, r Request) (Result, error) {
	if m.Secret == "" {
		return Result{}, errors.New("hmac secret is not configured")
	}
	header := m.SignatureHeader
	if header == "" {
		header = defaultSignatureHeader
	}
	sig := r.Header.Get(header)
	if sig == "" {
		return invalid("signature header missing"), nil
	}
	encoded, ok := strings.CutPrefix(sig, "sha256=")
	if !ok {
		return invalid("signature header is not sha256-prefixed"), nil
	}
	return compareHex(m.Secret, encoded, r.Body), nil
}

// verifyHMACReplay is the slash-command variant: the timestamp header is
// mandatory and checked against the replay window before any HMAC is
// computed, so stale requests fail fast regardless of signature validity.
func verifyHMACReplay(m Material, r Request) (Result, error) {
	if m.Secret == "" {
		return Result{}, errors.New("hmac secret is not configured")
	}
	sigHeader := m.SignatureHeader
	if sigHeader == "" {
		sigHeader = replaySignatureHeader
	}
	tsHeader := m.TimestampHeader
	if tsHeader == "" {
		tsHeader = replayTimestampHeader
	}

	ts := r.Header.Get(tsHeader)
	if ts == "" {
		return invalid("timestamp header missing"), nil
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return invalid("timestamp header is not a unix timestamp"), nil
	}
	if math.Abs(float64(r.ReceivedAt.Unix()-unix)) > replayWindowSeconds {
		return invalid("timestamp outside replay window"), nil
	}

	sig := r.Header.Get(sigHeader)
	if sig == "" {
		return invalid("signature header missing"), nil
	}
	encoded, ok := strings.CutPrefix(sig, "v0=")
	if !ok {
		return invalid("signature header is not v0-prefixed"), nil
	}
	base := fmt.Sprintf("v0:%s:%s", ts, r.Body)
	return compareHex(m.Secret, encoded, []byte(base)), nil
}

// verifySharedToken compares a header-carried secret byte-for-byte in
// constant time. No hashing is involved.
func verifySharedToken(m Material, r Request) (Result, error) {
	if m.Secret == "" {
		return Result{}, errors.New("shared token is not configured")
	}
	header := m.TokenHeader
	if header == "" {
		header = "X-Gitlab-Token"
	}
	token := r.Header.Get(header)
	if token == "" {
		return invalid("token header missing"), nil
	}
	if !constantTimeEqual([]byte(token), []byte(m.Secret)) {
		return invalid("token mismatch"), nil
	}
	return valid, nil
}

func compareHex(secret, encoded string, message []byte) Result {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !constantTimeEqual([]byte(encoded), []byte(expected)) {
		return invalid("signature mismatch")
	}
	return valid
}

// constantTimeEqual rejects length mismatches up front and compares the
// rest without leaking the position of the first differing byte.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
