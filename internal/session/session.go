// Package session holds per-user portal state between requests: the
// platform client bound to the user's credentials, the resolved patient
// record and the dashboard toggles.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-portal/internal/auth"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/schedule"
)

type Session struct {
	ID       string
	UserID   string
	FullName string
	Role     string
	Doctor   string

	// fill serializes the patient lookup; mu guards the fields below and is
	// never held across a platform call.
	fill sync.Mutex

	mu        sync.Mutex
	client    *platform.Client
	token     string
	patientID string
	vis       schedule.Visibility
	profile   string
	seen      time.Time
}

func newSession(c *auth.Claims, client *platform.Client, profile string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   c.UserID,
		FullName: c.FullName,
		Role:     c.Role,
		Doctor:   c.DoctorID(),
		client:   client,
		token:    c.PlatformToken,
		vis:      schedule.ShowAll(),
		profile:  profile,
		seen:     time.Now(),
	}
}

func (s *Session) IsDoctor() bool { return s.Role == auth.RoleDoctor }

// DisplayName is the welcome-banner name.
func (s *Session) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.UserID
}

func (s *Session) Client() *platform.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// rebind switches the session to a new platform token.
func (s *Session) rebind(base *platform.Client, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == s.token {
		return
	}
	s.token = token
	s.client = base.WithToken(token)
}

func (s *Session) cachedPatient() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patientID
}

// PatientID resolves the user's Patient record once and reuses it. Failures
// are not cached so the next page load retries. Concurrent callers on one
// session wait for a single lookup.
func (s *Session) PatientID(ctx context.Context) (string, error) {
	if id := s.cachedPatient(); id != "" {
		return id, nil
	}
	s.fill.Lock()
	defer s.fill.Unlock()
	if id := s.cachedPatient(); id != "" {
		return id, nil
	}
	id, err := s.Client().PatientID(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.patientID = id
	s.mu.Unlock()
	return id, nil
}

func (s *Session) Visibility() schedule.Visibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vis
}

// Toggle flips one calendar filter and returns whether it is now shown.
func (s *Session) Toggle(k schedule.EventKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vis.Toggle(k)
}

func (s *Session) Profile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) SetProfile(name string) {
	s.mu.Lock()
	s.profile = name
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.seen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.seen)
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
