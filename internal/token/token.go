// Package token implements the compact signed credential that authorizes
// a broadcast session to mark a station live. A token is two base64url
// segments joined by a dot: the canonical JSON payload and an HMAC-SHA256
// signature over the encoded payload, both unpadded.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Codec signs and verifies ingest tokens. It is stateless apart from the
// process secret and the injected time source.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: []byte(secret), now: now}
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue serializes the payload and signs it. The payload keys are
// marshaled in Go's canonical (sorted) order, which keeps re-issued
// tokens byte-stable for equal payloads.
func (c *Codec) Issue(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + c.sign(body), nil
}

// Verify checks the signature and expiry and returns the payload.
// Every failure collapses to ok=false: callers never learn whether the
// token was malformed, forged or expired.
func (c *Codec) Verify(tok string) (map[string]any, bool) {
	if tok == "" || !strings.Contains(tok, ".") {
		return nil, false
	}
	body, signature, _ := strings.Cut(tok, ".")
	expected := c.sign(body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	if exp, ok := payload["exp"]; ok {
		expMs, ok := toMillis(exp)
		if ok && expMs != 0 && expMs < c.now().UnixMilli() {
			return nil, false
		}
	}
	return payload, true
}

// toMillis normalizes the exp claim, which arrives as float64 after a
// round-trip through encoding/json.
func toMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
