package attestation

import (
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ceremony is one pending challenge: the webauthn session data plus the
// synthetic user it was issued for.
type ceremony struct {
	session webauthn.SessionData
	user    ceremonyUser
	expires time.Time
}

// ChallengeStore holds pending ceremonies keyed by session ID. Challenges are
// single-use: Consume removes the entry, so a replayed response cannot find
// its challenge a second time. Expired entries are swept periodically.
type ChallengeStore struct {
	mu        sync.Mutex
	ceremonies map[string]ceremony
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewChallengeStore constructs a challenge store and starts its sweep loop.
// Call Close to stop the sweep when the store is no longer needed.
func NewChallengeStore() *ChallengeStore {
	s := &ChallengeStore{
		ceremonies: make(map[string]ceremony),
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Close stops the sweep loop. Safe to call more than once.
func (s *ChallengeStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Put stores a pending ceremony under sessionID with the given TTL.
func (s *ChallengeStore) Put(sessionID string, session webauthn.SessionData, user ceremonyUser, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ceremonies[sessionID] = ceremony{
		session: session,
		user:    user,
		expires: s.now().Add(ttl),
	}
}

// Consume removes and returns the ceremony for sessionID. The second return
// is false when the challenge was never issued, already used, or expired;
// callers cannot distinguish replay from absence, which is intentional.
func (s *ChallengeStore) Consume(sessionID string) (ceremony, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ceremonies[sessionID]
	if !ok {
		return ceremony{}, false
	}
	delete(s.ceremonies, sessionID)
	if s.now().After(c.expires) {
		return ceremony{}, false
	}
	return c, true
}

// Len reports the number of pending ceremonies. Test helper.
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ceremonies)
}

// sweep periodically removes expired ceremonies so abandoned registrations do
// not accumulate.
func (s *ChallengeStore) sweep() {
	defer close(s.done)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for id, c := range s.ceremonies {
				if now.After(c.expires) {
					delete(s.ceremonies, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
