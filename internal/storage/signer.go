package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates signed download tokens for local assets.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer using the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign creates a token binding the asset path to an expiry time.
func (s *Signer) Sign(assetPath string, expiry time.Time) string {
	payload := fmt.Sprintf("%s|%d", assetPath, expiry.Unix())
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(payload)) + "." + sig
}

// Verify validates a token and returns the asset path it was issued for.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token format")
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid token encoding")
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payloadBytes)
	expectedSig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(parts[1]), []byte(expectedSig)) {
		return "", fmt.Errorf("invalid signature")
	}

	fields := strings.SplitN(string(payloadBytes), "|", 2)
	if len(fields) != 2 {
		return "", fmt.Errorf("invalid payload")
	}

	expiryUnix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid expiry")
	}
	if time.Now().Unix() > expiryUnix {
		return "", fmt.Errorf("token expired")
	}

	return fields[0], nil
}
