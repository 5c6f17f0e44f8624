package verify

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func hmacHex(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func request(headers map[string]string, body []byte) Request {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return Request{Header: h, Body: body, ReceivedAt: time.Now()}
}

// TestHMACSHA256RoundTrip tests that a signature over the exact body and
// secret verifies, and that tampering with either invalidates it.
func TestHMACSHA256RoundTrip(t *testing.T) {
	secret := "s3cret"
	body := []byte(`{"action":"opened"}`)
	m := Material{Secret: secret}

	result, err := Verify(SchemeHMACSHA256, m, request(map[string]string{
		"X-Hub-Signature-256": "sha256=" + hmacHex(secret, body),
	}, body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got %q", result.Reason)
	}

	tampered, err := Verify(SchemeHMACSHA256, m, request(map[string]string{
		"X-Hub-Signature-256": "sha256=" + hmacHex(secret, body),
	}, []byte(`{"action":"closed"}`)))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tampered.Valid {
		t.Fatalf("expected tampered body to be invalid")
	}

	wrongSecret, err := Verify(SchemeHMACSHA256, m, request(map[string]string{
		"X-Hub-Signature-256": "sha256=" + hmacHex("other", body),
	}, body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if wrongSecret.Valid {
		t.Fatalf("expected wrong secret to be invalid")
	}
}

// TestHMACSHA256MalformedHeader tests that a header without the sha256=
// prefix is invalid without an error.
func TestHMACSHA256MalformedHeader(t *testing.T) {
	body := []byte("payload")
	result, err := Verify(SchemeHMACSHA256, Material{Secret: "s"}, request(map[string]string{
		"X-Hub-Signature-256": hmacHex("s", body),
	}, body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected missing prefix to be invalid")
	}
}

// TestHMACSHA256LengthMismatch tests that a truncated signature is rejected.
func TestHMACSHA256LengthMismatch(t *testing.T) {
	body := []byte("payload")
	full := hmacHex("s", body)
	result, err := Verify(SchemeHMACSHA256, Material{Secret: "s"}, request(map[string]string{
		"X-Hub-Signature-256": "sha256=" + full[:len(full)-2],
	}, body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected truncated signature to be invalid")
	}
}

// TestHMACSHA256MissingSecret tests that an unconfigured secret is a
// configuration error rather than a verification failure.
func TestHMACSHA256MissingSecret(t *testing.T) {
	_, err := Verify(SchemeHMACSHA256, Material{}, request(nil, []byte("x")))
	if err == nil {
		t.Fatalf("expected configuration error")
	}
}

// TestSharedToken tests the byte-for-byte token comparison.
func TestSharedToken(t *testing.T) {
	m := Material{Secret: "token-value"}
	result, err := Verify(SchemeSharedToken, m, request(map[string]string{
		"X-Gitlab-Token": "token-value",
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got %q", result.Reason)
	}

	mismatch, err := Verify(SchemeSharedToken, m, request(map[string]string{
		"X-Gitlab-Token": "token-valu3",
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if mismatch.Valid {
		t.Fatalf("expected mismatch to be invalid")
	}

	missing, err := Verify(SchemeSharedToken, m, request(nil, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if missing.Valid {
		t.Fatalf("expected missing header to be invalid")
	}
}

// TestEd25519 tests signing over timestamp||body and the failure cases for
// a foreign key and an altered timestamp.
func TestEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	body := []byte(`{"type":1}`)
	ts := "1700000000"
	sig := ed25519.Sign(priv, append([]byte(ts), body...))
	m := Material{PublicKeyHex: hex.EncodeToString(pub)}

	result, err := Verify(SchemeEd25519, m, request(map[string]string{
		"X-Signature-Ed25519":   hex.EncodeToString(sig),
		"X-Signature-Timestamp": ts,
	}, body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got %q", result.Reason)
	}

	altered, err := Verify(SchemeEd25519, m, request(map[string]string{
		"X-Signature-Ed25519":   hex.EncodeToString(sig),
		"X-Signature-Timestamp": "1700000001",
	}, body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if altered.Valid {
		t.Fatalf("expected altered timestamp to be invalid")
	}

	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	foreign, err := Verify(SchemeEd25519, Material{PublicKeyHex: hex.EncodeToString(otherPub)}, request(map[string]string{
		"X-Signature-Ed25519":   hex.EncodeToString(sig),
		"X-Signature-Timestamp": ts,
	}, body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if foreign.Valid {
		t.Fatalf("expected foreign key to be invalid")
	}
}

// TestEd25519MissingHeaders tests that missing signature and timestamp
// headers produce distinct reasons.
func TestEd25519MissingHeaders(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m := Material{PublicKeyHex: hex.EncodeToString(pub)}

	noSig, err := Verify(SchemeEd25519, m, request(map[string]string{
		"X-Signature-Timestamp": "1700000000",
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	noTS, err := Verify(SchemeEd25519, m, request(map[string]string{
		"X-Signature-Ed25519": "ab",
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if noSig.Valid || noTS.Valid {
		t.Fatalf("expected missing headers to be invalid")
	}
	if noSig.Reason == noTS.Reason {
		t.Fatalf("expected distinct reasons, got %q for both", noSig.Reason)
	}
}

func bearerToken(t *testing.T, aud, iss string, exp int64) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]interface{}{"aud": aud, "iss": iss, "exp": exp})
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	claims := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + claims + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

// TestJWTBearer tests the claims-only bearer check: audience, issuer
// prefix, expiry, and segment count.
func TestJWTBearer(t *testing.T) {
	m := Material{AppID: "123456789"}
	future := time.Now().Add(time.Hour).Unix()

	ok, err := Verify(SchemeJWTBearer, m, request(map[string]string{
		"Authorization": "Bearer " + bearerToken(t, "123456789", "chat@system.gserviceaccount.com", future),
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok.Valid {
		t.Fatalf("expected valid, got %q", ok.Reason)
	}

	wrongAud, err := Verify(SchemeJWTBearer, m, request(map[string]string{
		"Authorization": "Bearer " + bearerToken(t, "999", "chat@system.gserviceaccount.com", future),
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if wrongAud.Valid {
		t.Fatalf("expected audience mismatch to be invalid")
	}

	expired, err := Verify(SchemeJWTBearer, m, request(map[string]string{
		"Authorization": "Bearer " + bearerToken(t, "123456789", "chat@system.gserviceaccount.com", time.Now().Add(-time.Hour).Unix()),
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if expired.Valid {
		t.Fatalf("expected expired token to be invalid")
	}

	badIssuer, err := Verify(SchemeJWTBearer, m, request(map[string]string{
		"Authorization": "Bearer " + bearerToken(t, "123456789", "https://evil.example.com", future),
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if badIssuer.Valid {
		t.Fatalf("expected disallowed issuer to be invalid")
	}

	twoSegments, err := Verify(SchemeJWTBearer, m, request(map[string]string{
		"Authorization": "Bearer abc.def",
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if twoSegments.Valid {
		t.Fatalf("expected two-segment token to be invalid")
	}
}

// TestJWTBearerAudienceList tests that an array-valued aud claim verifies
// when any entry matches the configured app id.
func TestJWTBearerAudienceList(t *testing.T) {
	m := Material{AppID: "123456789"}
	future := time.Now().Add(time.Hour).Unix()

	token := func(aud []string) string {
		header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
		payload, err := json.Marshal(map[string]interface{}{
			"aud": aud,
			"iss": "chat@system.gserviceaccount.com",
			"exp": future,
		})
		if err != nil {
			t.Fatalf("marshal claims: %v", err)
		}
		return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
	}

	ok, err := Verify(SchemeJWTBearer, m, request(map[string]string{
		"Authorization": "Bearer " + token([]string{"other-app", "123456789"}),
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok.Valid {
		t.Fatalf("expected valid, got %q", ok.Reason)
	}

	miss, err := Verify(SchemeJWTBearer, m, request(map[string]string{
		"Authorization": "Bearer " + token([]string{"other-app"}),
	}, nil))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if miss.Valid {
		t.Fatalf("expected audience miss to be invalid")
	}
	if miss.Reason != "audience mismatch" {
		t.Fatalf("expected audience reason, got %q", miss.Reason)
	}
}

// TestHMACReplay tests the replay-guarded variant: a stale timestamp is
// rejected before the signature is considered, and a fresh signed request
// verifies.
func TestHMACReplay(t *testing.T) {
	secret := "slack-signing"
	body := []byte("command=/deploy")
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	base := fmt.Sprintf("v0:%s:%s", ts, body)
	m := Material{Secret: secret}

	req := request(map[string]string{
		"X-Slack-Signature":         "v0=" + hmacHex(secret, []byte(base)),
		"X-Slack-Request-Timestamp": ts,
	}, body)
	req.ReceivedAt = now
	result, err := Verify(SchemeHMACReplay, m, req)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got %q", result.Reason)
	}

	staleTS := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
	staleBase := fmt.Sprintf("v0:%s:%s", staleTS, body)
	stale := request(map[string]string{
		"X-Slack-Signature":         "v0=" + hmacHex(secret, []byte(staleBase)),
		"X-Slack-Request-Timestamp": staleTS,
	}, body)
	stale.ReceivedAt = now
	result, err = Verify(SchemeHMACReplay, m, stale)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected stale timestamp to be invalid")
	}
	if result.Reason != "timestamp outside replay window" {
		t.Fatalf("expected replay reason, got %q", result.Reason)
	}

	missing := request(map[string]string{
		"X-Slack-Signature": "v0=" + hmacHex(secret, []byte(base)),
	}, body)
	missing.ReceivedAt = now
	result, err = Verify(SchemeHMACReplay, m, missing)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected missing timestamp to be invalid")
	}
}

// TestUnknownScheme tests that an unregistered scheme is a configuration
// error.
func TestUnknownScheme(t *testing.T) {
	if _, err := Verify(Scheme("md5"), Material{}, request(nil, nil)); err == nil {
		t.Fatalf("expected error for unknown scheme")
	}
}
