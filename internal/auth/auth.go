// Package auth gates inbound connections on a shared secret. The gate runs
// before a protocol session exists: rejections are connection-level statuses,
// never protocol error envelopes.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const tokenLength = 32

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Decision is the gate's verdict on one connection attempt.
type Decision int

const (
	// Accepted admits the connection.
	Accepted Decision = iota
	// RejectedInvalid means the candidate token did not match the secret.
	RejectedInvalid
	// RejectedMisconfigured means auth is enabled but no secret is
	// configured; the server fails closed. Distinct from RejectedInvalid so
	// clients can tell "server misconfigured" from "wrong token".
	RejectedMisconfigured
)

// Status maps a decision to the HTTP status used when rejecting an upgrade.
func (d Decision) Status() int {
	switch d {
	case RejectedInvalid:
		return http.StatusUnauthorized
	case RejectedMisconfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

// Message is the rejection body sent with Status.
func (d Decision) Message() string {
	switch d {
	case RejectedInvalid:
		return "invalid token"
	case RejectedMisconfigured:
		return "authentication misconfigured"
	default:
		return "ok"
	}
}

// Gate decides connection admission. The secret is fixed at construction and
// immutable for the server's lifetime.
type Gate struct {
	enabled bool
	secret  string
}

// NewGate builds a gate. With enabled=false every connection is admitted;
// with enabled=true and an empty secret every connection is rejected.
func NewGate(enabled bool, secret string) *Gate {
	return &Gate{enabled: enabled, secret: strings.TrimSpace(secret)}
}

// Enabled reports whether the gate checks credentials at all.
func (g *Gate) Enabled() bool { return g.enabled }

// Admit checks one HTTP upgrade request: the candidate comes from the
// `token` query parameter, falling back to an Authorization bearer header.
func (g *Gate) Admit(r *http.Request) Decision {
	return g.Check(ExtractToken(r))
}

// Check validates a bare candidate token.
func (g *Gate) Check(candidate string) Decision {
	if !g.enabled {
		return Accepted
	}
	if g.secret == "" {
		return RejectedMisconfigured
	}
	candidate = strings.TrimSpace(candidate)
	if subtle.ConstantTimeCompare([]byte(g.secret), []byte(candidate)) == 1 {
		return Accepted
	}
	return RejectedInvalid
}

// ExtractToken pulls the credential from a request: the `token` query
// parameter wins, then an "Authorization: Bearer <token>" header.
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// GenerateSecret creates a random 32-character alphanumeric secret.
func GenerateSecret() (string, error) {
	secret, err := randomAlphanumeric(tokenLength)
	if err != nil {
		return "", fmt.Errorf("generating random secret: %w", err)
	}
	return secret, nil
}

// LoadSecret returns the secret persisted at dataDir/token, or "" when no
// secret has been generated yet. It never creates one; clients use it to pick
// up the token a local server already wrote.
func LoadSecret(dataDir string) string {
	data, err := os.ReadFile(tokenPath(dataDir))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// LoadOrGenerateSecret returns the persisted secret from dataDir/token,
// generating and writing one (0600) when the file is absent or empty.
func LoadOrGenerateSecret(dataDir string) (string, error) {
	path := tokenPath(dataDir)
	if data, err := os.ReadFile(path); err == nil {
		if secret := strings.TrimSpace(string(data)); secret != "" {
			return secret, nil
		}
	}

	secret, err := GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("creating data dir %s: %w", dataDir, err)
	}
	if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
		return "", fmt.Errorf("writing secret to %s: %w", path, err)
	}
	return secret, nil
}

func tokenPath(dataDir string) string {
	return filepath.Join(dataDir, "token")
}

func randomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphanumeric[idx.Int64()]
	}
	return string(b), nil
}
