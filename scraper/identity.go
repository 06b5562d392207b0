package scraper

import (
	"sync"
	"time"
)

// DefaultBanDuration is how long an identity stays out of rotation after the
// target rejected it.
const DefaultBanDuration = 5 * time.Minute

// IdentityRegistry tracks temporarily banned client identities. A single
// registry is shared by every fetcher in the process.
type IdentityRegistry struct {
	banDuration time.Duration
	now         func() time.Time

	mu     sync.Mutex
	banned map[string]time.Time
}

// NewIdentityRegistry returns an empty registry. A nil now uses time.Now.
func NewIdentityRegistry(banDuration time.Duration, now func() time.Time) *IdentityRegistry {
	if now == nil {
		now = time.Now
	}
	return &IdentityRegistry{
		banDuration: banDuration,
		now:         now,
		banned:      make(map[string]time.Time),
	}
}

// Ban marks identity as banned from now on.
func (r *IdentityRegistry) Ban(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banned[identity] = r.now()
}

// IsBanned reports whether identity is still serving its ban. Expired
// entries are removed as a side effect.
func (r *IdentityRegistry) IsBanned(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isBannedLocked(identity)
}

func (r *IdentityRegistry) isBannedLocked(identity string) bool {
	at, ok := r.banned[identity]
	if !ok {
		return false
	}
	if r.now().Sub(at) >= r.banDuration {
		delete(r.banned, identity)
		return false
	}
	return true
}

// Available returns the identities that are neither banned nor equal to
// exclude, in their configured order.
func (r *IdentityRegistry) Available(identities []string, exclude string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(identities))
	for _, identity := range identities {
		if identity == exclude && exclude != "" {
			continue
		}
		if r.isBannedLocked(identity) {
			continue
		}
		out = append(out, identity)
	}
	return out
}

// Len returns the number of ban records currently held, expired or not.
func (r *IdentityRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.banned)
}
