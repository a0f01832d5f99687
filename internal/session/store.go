package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinic-portal/internal/auth"
	"clinic-portal/internal/platform"
)

// Store keeps one Session per issued token. Sessions idle for longer than
// the ttl are dropped by Sweep.
type Store struct {
	base    *platform.Client
	ttl     time.Duration
	profile string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore binds every new session to base with the user's platform token.
// profile is the dashboard profile a session starts with.
func NewStore(base *platform.Client, ttl time.Duration, profile string) *Store {
	return &Store{
		base:     base,
		ttl:      ttl,
		profile:  profile,
		sessions: make(map[string]*Session),
	}
}

func key(c *auth.Claims) string {
	if c.ID != "" {
		return c.ID
	}
	return c.UserID
}

// Get returns the session for c, creating it on first use.
func (st *Store) Get(c *auth.Claims) *Session {
	k := key(c)
	now := time.Now()

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[k]; ok {
		s.touch(now)
		// a re-login without a token id may carry a rotated platform token
		s.rebind(st.base, c.PlatformToken)
		return s
	}
	s := newSession(c, st.base.WithToken(c.PlatformToken), st.profile)
	st.sessions[k] = s
	return s
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops sessions idle since before now-ttl and returns how many went.
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for k, s := range st.sessions {
		if s.idleSince(now) > st.ttl {
			delete(st.sessions, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, every time.Duration) {
	log := zerolog.Ctx(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := st.Sweep(now); n > 0 {
				log.Debug().Int("expired", n).Int("active", st.Len()).Msg("session sweep")
			}
		}
	}
}
