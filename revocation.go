package access

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RevocationRegistry is the shared set of invalidated tokens consulted
// before any signature is trusted. Entries are keyed by the literal token
// string, so two reissues of identical claims revoke independently.
//
// Implementations must support concurrent inserts and lookups with
// read-your-writes consistency within a single process. The interface makes
// no in-process assumption; a distributed deployment can back it with a
// shared external store.
type RevocationRegistry interface {
	Revoke(token string)
	Contains(token string) bool
	// PurgeExpired removes only entries whose embedded expiry has elapsed,
	// so revoked-but-unexpired tokens never regain validity. Returns the
	// number of entries removed.
	PurgeExpired(now time.Time) int
	// PurgeAll clears the registry. Coarse maintenance only: it resurrects
	// validity for revoked tokens that have not yet expired. Prefer
	// PurgeExpired.
	PurgeAll()
}

// MemoryRevocationRegistry is the in-process RevocationRegistry.
type MemoryRevocationRegistry struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

var _ RevocationRegistry = (*MemoryRevocationRegistry)(nil)

// NewMemoryRevocationRegistry returns an empty in-process registry.
func NewMemoryRevocationRegistry() *MemoryRevocationRegistry {
	return &MemoryRevocationRegistry{
		tokens: make(map[string]struct{}),
	}
}

// Revoke adds the token string to the registry.
func (r *MemoryRevocationRegistry) Revoke(token string) {
	if token == "" {
		return
	}
	r.mu.Lock()
	r.tokens[token] = struct{}{}
	r.mu.Unlock()
}

// Contains reports whether the token string has been revoked.
func (r *MemoryRevocationRegistry) Contains(token string) bool {
	r.mu.RLock()
	_, ok := r.tokens[token]
	r.mu.RUnlock()
	return ok
}

// Len returns the number of revoked entries currently held.
func (r *MemoryRevocationRegistry) Len() int {
	r.mu.RLock()
	n := len(r.tokens)
	r.mu.RUnlock()
	return n
}

// PurgeExpired drops entries whose embedded expiry claim has elapsed.
// Entries that cannot be parsed are dropped too: a token that does not
// parse can never verify, so keeping it buys nothing.
func (r *MemoryRevocationRegistry) PurgeExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token := range r.tokens {
		expiry, ok := tokenExpiry(token)
		if !ok || !expiry.After(now) {
			delete(r.tokens, token)
			removed++
		}
	}
	return removed
}

// PurgeAll clears every entry.
func (r *MemoryRevocationRegistry) PurgeAll() {
	r.mu.Lock()
	r.tokens = make(map[string]struct{})
	r.mu.Unlock()
}

// tokenExpiry reads the exp claim without verifying the signature. The
// registry only needs the timestamp; trust decisions stay with the codec.
func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
