package attestation

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
)

func TestChallengeStore_SingleUse(t *testing.T) {
	s := NewChallengeStore()
	s.Put("sess-1", webauthn.SessionData{Challenge: "c1"}, ceremonyUser{id: []byte("u1")}, time.Minute)

	c, ok := s.Consume("sess-1")
	assert.True(t, ok)
	assert.Equal(t, "c1", c.session.Challenge)

	_, ok = s.Consume("sess-1")
	assert.False(t, ok, "a consumed challenge must not be consumable again")
}

func TestChallengeStore_UnknownSession(t *testing.T) {
	s := NewChallengeStore()
	_, ok := s.Consume("never-issued")
	assert.False(t, ok)
}

func TestChallengeStore_Expiry(t *testing.T) {
	s := NewChallengeStore()
	current := time.Now()
	s.now = func() time.Time { return current }

	s.Put("sess-1", webauthn.SessionData{Challenge: "c1"}, ceremonyUser{}, 10*time.Second)

	current = current.Add(11 * time.Second)
	_, ok := s.Consume("sess-1")
	assert.False(t, ok, "expired challenge must not verify")
	assert.Equal(t, 0, s.Len(), "expired entry is removed on consume")
}

func TestChallengeStore_CloseStopsSweep(t *testing.T) {
	s := NewChallengeStore()
	s.Close()
	s.Close() // idempotent

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("sweep goroutine did not exit after Close")
	}
}

func TestChallengeStore_DistinctSessions(t *testing.T) {
	s := NewChallengeStore()
	s.Put("a", webauthn.SessionData{Challenge: "ca"}, ceremonyUser{}, time.Minute)
	s.Put("b", webauthn.SessionData{Challenge: "cb"}, ceremonyUser{}, time.Minute)

	ca, ok := s.Consume("a")
	assert.True(t, ok)
	cb, ok := s.Consume("b")
	assert.True(t, ok)
	assert.NotEqual(t, ca.session.Challenge, cb.session.Challenge)
}
