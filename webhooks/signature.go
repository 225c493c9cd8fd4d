package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature recomputes an HMAC-SHA256 over the exact raw body bytes and
// compares in constant time. Providers wrap the hex digest differently
// ("sha256=<hex>", "t=...,v1=<hex>"); the digest is extracted before
// comparison.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided := extractDigest(header)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

func extractDigest(header string) string {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "v1="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(part, "sha256="); ok {
			return v
		}
	}
	return strings.TrimSpace(header)
}
