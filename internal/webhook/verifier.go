// Package webhook receives extracted invoices pushed by the extraction service
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Verifier checks challenges and request signatures from the extraction service
type Verifier struct {
	verifyToken string
	secret      string
	maxSkew     time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewVerifier creates a new webhook verifier. An empty secret disables
// signature checks.
func NewVerifier(verifyToken, secret string, maxSkew time.Duration, logger *zap.Logger) *Verifier {
	return &Verifier{
		verifyToken: verifyToken,
		secret:      secret,
		maxSkew:     maxSkew,
		now:         time.Now,
		logger:      logger,
	}
}

// VerifyChallenge answers the url_verification handshake
func (v *Verifier) VerifyChallenge(body []byte) (string, error) {
	var challenge struct {
		Challenge string `json:"challenge"`
		Token     string `json:"token"`
		Type      string `json:"type"`
	}

	if err := json.Unmarshal(body, &challenge); err != nil {
		return "", fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	if challenge.Type != challengeType {
		return "", fmt.Errorf("invalid challenge type: %s", challenge.Type)
	}
	if v.verifyToken != "" && challenge.Token != v.verifyToken {
		return "", fmt.Errorf("invalid verification token")
	}
	return challenge.Challenge, nil
}

// Sign returns the hex HMAC-SHA256 of timestamp + nonce + body
func (v *Verifier) Sign(timestamp, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(nonce))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature and, when maxSkew is set, that the
// unix timestamp is recent
func (v *Verifier) VerifySignature(timestamp, nonce, signature string, body []byte) bool {
	if v.secret == "" {
		return true
	}

	if v.maxSkew > 0 {
		sec, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return false
		}
		skew := v.now().Sub(time.Unix(sec, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			v.logger.Warn("Webhook timestamp outside allowed skew",
				zap.String("timestamp", timestamp),
				zap.Duration("skew", skew))
			return false
		}
	}

	expected := v.Sign(timestamp, nonce, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
