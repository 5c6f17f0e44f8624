package verify

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
)

const (
	ed25519SignatureHeader = "X-Signature-Ed25519"
	ed25519TimestampHeader = "X-Signature-Timestamp"
)

// verifyEd25519 checks a hex-encoded Ed25519 signature over
// timestamp || raw body. The signature covers the raw bytes directly,
// there is no separate hash step.
func verifyEd25519(m Material, r Request) (Result, error) {
	if m.PublicKeyHex == "" {
		return Result{}, errors.New("ed25519 public key is not configured")
	}
	key, err := hex.DecodeString(m.PublicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return Result{}, errors.New("ed25519 public key is not a valid hex key")
	}

	sigHeader := m.SignatureHeader
	if sigHeader == "" {
		sigHeader = ed25519SignatureHeader
	}
	tsHeader := m.TimestampHeader
	if tsHeader == "" {
		tsHeader = ed25519TimestampHeader
	}

	sigHex := r.Header.Get(sigHeader)
	if sigHex == "" {
		return invalid("signature header missing"), nil
	}
	ts := r.Header.Get(tsHeader)
	if ts == "" {
		return invalid("timestamp header missing"), nil
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return invalid("signature is not valid hex"), nil
	}

	message := append([]byte(ts), r.Body...)
	if !ed25519.Verify(ed25519.PublicKey(key), message, sig) {
		return invalid("signature mismatch"), nil
	}
	return valid, nil
}
