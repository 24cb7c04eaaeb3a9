package acquirer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"pix-gateway/internal/core/domain"
	"pix-gateway/internal/core/ports"
	"pix-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var testLog = zerolog.Nop()

// staticSettings is a settings resolver with fixed values for tests.
type staticSettings map[string]string

func (s staticSettings) Resolve(_ context.Context, key string, _ uuid.UUID) (string, error) {
	return s[key], nil
}

func (s staticSettings) ResolveRequired(_ context.Context, key string, _ uuid.UUID, acquirer domain.Acquirer) (string, error) {
	if v := s[key]; v != "" {
		return v, nil
	}
	return "", apperror.ErrConfigMissing(string(acquirer), key)
}

// memoryTokenCache is an in-memory ports.TokenCache for tests.
type memoryTokenCache struct {
	mu     sync.Mutex
	tokens map[domain.Acquirer]*ports.BearerToken
	locked map[domain.Acquirer]bool
}

func newMemoryTokenCache() *memoryTokenCache {
	return &memoryTokenCache{
		tokens: make(map[domain.Acquirer]*ports.BearerToken),
		locked: make(map[domain.Acquirer]bool),
	}
}

func (c *memoryTokenCache) Get(_ context.Context, acquirer domain.Acquirer) (*ports.BearerToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[acquirer], nil
}

func (c *memoryTokenCache) Set(_ context.Context, acquirer domain.Acquirer, token *ports.BearerToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[acquirer] = token
	return nil
}

func (c *memoryTokenCache) AcquireRefreshLock(_ context.Context, acquirer domain.Acquirer, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked[acquirer] {
		return false, nil
	}
	c.locked[acquirer] = true
	return true, nil
}

// hmacSignature is the HMAC-SHA256 signer used by woovi webhook tests.
type hmacSignature struct{}

func (hmacSignature) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s hmacSignature) Verify(secretKey string, payload string, signature string) bool {
	return hmac.Equal([]byte(s.Sign(secretKey, payload)), []byte(signature))
}
