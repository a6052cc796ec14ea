package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenRevocationStore remembers logged-out token ids until they would have
// expired anyway, plus a per-user cutoff: tokens issued at or before the
// cutoff second are rejected. iat has second precision, so a token minted
// in the same second as the cutoff is rejected too. The cutoff is set when a
// user is deactivated, deleted or changes password.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	tokens  map[string]time.Time    // jti -> token expiry
	cutoffs map[uuid.UUID]time.Time // user -> revoke tokens issued up to here
	maxTTL  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewTokenRevocationStore starts a sweeper that runs every interval. maxTTL
// is the longest token lifetime; user cutoffs older than that are dropped.
func NewTokenRevocationStore(maxTTL, interval time.Duration) *TokenRevocationStore {
	s := newRevocationStore(maxTTL, time.Now)
	if interval > 0 {
		go s.sweepLoop(interval)
	}
	return s
}

func newRevocationStore(maxTTL time.Duration, now func() time.Time) *TokenRevocationStore {
	return &TokenRevocationStore{
		tokens:  make(map[string]time.Time),
		cutoffs: make(map[uuid.UUID]time.Time),
		maxTTL:  maxTTL,
		now:     now,
		done:    make(chan struct{}),
	}
}

// Revoke rejects the token with id jti until expiresAt.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = expiresAt
}

// RevokeUser rejects every token issued to userID so far.
func (s *TokenRevocationStore) RevokeUser(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs[userID] = s.now().UTC().Truncate(time.Second)
}

// IsRevoked reports whether sess may no longer be used.
func (s *TokenRevocationStore) IsRevoked(sess *Session) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tokens[sess.TokenID]; ok {
		return true
	}
	if cutoff, ok := s.cutoffs[sess.UserID]; ok && !sess.IssuedAt.After(cutoff) {
		return true
	}
	return false
}

// Count returns how many token ids are currently tracked.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Close stops the sweeper. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *TokenRevocationStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *TokenRevocationStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.tokens {
		if now.After(exp) {
			delete(s.tokens, jti)
		}
	}
	if s.maxTTL > 0 {
		for uid, cutoff := range s.cutoffs {
			if now.Sub(cutoff) > s.maxTTL {
				delete(s.cutoffs, uid)
			}
		}
	}
}
