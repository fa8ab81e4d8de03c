package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"slices"
	"time"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateKey creates a new API key with the format: qr-{env}-{32 random alphanumeric chars}
func GenerateKey(env string) (string, error) {
	random, err := randomString(32)
	if err != nil {
		return "", fmt.Errorf("generate random: %w", err)
	}
	return fmt.Sprintf("qr-%s-%s", env, random), nil
}

// HashKey returns the SHA-256 hex digest of an API key.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}

// KeyPrefix returns a display-safe prefix: qr-{env}-{first 8 random chars}.
func KeyPrefix(key string) string {
	if len(key) < 12 {
		return key
	}
	dashes := 0
	for i, c := range key {
		if c != '-' {
			continue
		}
		dashes++
		if dashes == 2 {
			return key[:min(i+9, len(key))]
		}
	}
	return key[:12]
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	limit := big.NewInt(int64(len(alphanumeric)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = alphanumeric[idx.Int64()]
	}
	return string(b), nil
}

// KeyMetadata is the stored record of an API key. Zero limits mean the
// service defaults apply; an empty AllowedTools allows every tool.
type KeyMetadata struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Owner           string    `json:"owner"`
	AllowedTools    []string  `json:"allowed_tools"`
	RPMLimit        int       `json:"rpm_limit,omitempty"`
	DailyQueryLimit int       `json:"daily_query_limit,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	KeyID           string
	Name            string
	Owner           string
	AllowedTools    []string
	RPMLimit        int
	DailyQueryLimit int
}

func (m *KeyMetadata) Caller() *Caller {
	return &Caller{
		KeyID:           m.ID,
		Name:            m.Name,
		Owner:           m.Owner,
		AllowedTools:    m.AllowedTools,
		RPMLimit:        m.RPMLimit,
		DailyQueryLimit: m.DailyQueryLimit,
	}
}

// CanUse reports whether the caller may invoke the named tool.
func (c *Caller) CanUse(tool string) bool {
	return len(c.AllowedTools) == 0 || slices.Contains(c.AllowedTools, tool)
}

// ParseDuration parses a duration string like "365d", "30d", "24h".
func ParseDuration(s string) (time.Duration, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty duration")
	}
	if s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("parse days: %w", err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
