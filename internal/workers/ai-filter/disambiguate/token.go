package disambiguate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var encoding = base64.RawURLEncoding

// Sign encodes state as payload.signature, both base64url.
func Sign(secret []byte, state ResumeState) (string, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode resume state: %w", err)
	}
	encoded := encoding.EncodeToString(payload)
	return encoded + "." + encoding.EncodeToString(signature(secret, encoded)), nil
}

// Verify checks the signature and age of token and returns its state.
func Verify(secret []byte, token string, ttl time.Duration, now time.Time) (*ResumeState, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sig == "" {
		return nil, fmt.Errorf("token is malformed")
	}
	got, err := encoding.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("signature is not base64url")
	}
	if !hmac.Equal(got, signature(secret, encoded)) {
		return nil, fmt.Errorf("signature mismatch")
	}

	payload, err := encoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("payload is not base64url")
	}
	var state ResumeState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("payload is not a resume state")
	}

	issued := time.Unix(state.IssuedAt, 0)
	if ttl > 0 && now.Sub(issued) > ttl {
		return nil, fmt.Errorf("token expired")
	}
	if issued.After(now.Add(time.Minute)) {
		return nil, fmt.Errorf("token issued in the future")
	}
	return &state, nil
}

func signature(secret []byte, encoded string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	return mac.Sum(nil)
}
