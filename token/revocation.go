// Package token keeps server side token state of the stub API.
package token

import (
	"sync"
	"time"
)

// RevokedTokenCache remembers revoked token IDs until the token could no longer be
// used anyway.
type RevokedTokenCache interface {
	Add(jti string, until time.Time) error
	IsRevoked(jti string) bool
	Cleanup(now time.Time) int
}

// InMemoryRevokedTokenCache is a RevokedTokenCache held in a map
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

var _ RevokedTokenCache = (*InMemoryRevokedTokenCache)(nil)

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = until
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup drops entries whose token is past use and returns how many were dropped
func (c *InMemoryRevokedTokenCache) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for jti, until := range c.revoked {
		if now.After(until) {
			delete(c.revoked, jti)
			dropped++
		}
	}
	return dropped
}
