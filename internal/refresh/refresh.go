// Package refresh keeps a periodically refreshed snapshot of the
// platform-wide data every dashboard shows: the appointment summary and
// the doctor list.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"clinic-portal/internal/model"
)

// Source is the part of the platform client the refresher reads.
type Source interface {
	AppointmentSummary(ctx context.Context) (model.AppointmentSummary, error)
	Doctors(ctx context.Context) ([]model.Doctor, error)
}

type Snapshot struct {
	Summary   model.AppointmentSummary `json:"summary"`
	Doctors   []model.Doctor           `json:"doctors"`
	UpdatedAt time.Time                `json:"updated_at"`
}

type Refresher struct {
	src     Source
	log     zerolog.Logger
	timeout time.Duration

	mu   sync.RWMutex
	snap Snapshot
	have bool

	cron *cron.Cron
}

func New(src Source, log zerolog.Logger, timeout time.Duration) *Refresher {
	return &Refresher{src: src, log: log, timeout: timeout}
}

// RunOnce fetches a new snapshot. A failed run keeps the previous one.
func (r *Refresher) RunOnce(ctx context.Context) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	sum, err := r.src.AppointmentSummary(ctx)
	if err != nil {
		return fmt.Errorf("refresh summary: %w", err)
	}
	docs, err := r.src.Doctors(ctx)
	if err != nil {
		return fmt.Errorf("refresh doctors: %w", err)
	}

	r.mu.Lock()
	r.snap = Snapshot{Summary: sum, Doctors: docs, UpdatedAt: time.Now()}
	r.have = true
	r.mu.Unlock()
	return nil
}

// FreshFor is how long a snapshot stands in for a live call.
const FreshFor = 2 * time.Minute

// Fresh returns the latest snapshot if it is younger than FreshFor.
func (r *Refresher) Fresh() (Snapshot, bool) { return r.Snapshot(FreshFor) }

// Snapshot returns the latest snapshot if it is younger than maxAge.
// A zero maxAge accepts any age.
func (r *Refresher) Snapshot(maxAge time.Duration) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.have {
		return Snapshot{}, false
	}
	if maxAge > 0 && time.Since(r.snap.UpdatedAt) > maxAge {
		return Snapshot{}, false
	}
	s := r.snap
	s.Doctors = append([]model.Doctor(nil), r.snap.Doctors...)
	return s, true
}

// Start runs RunOnce on spec (standard cron syntax or descriptors such as
// "@every 30s"). A run still in progress when the next is due makes that
// next run a no-op.
func (r *Refresher) Start(spec string) error {
	l := cronLogger{r.log}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(spec, r.tick); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	r.cron = c
	c.Start()
	return nil
}

func (r *Refresher) tick() {
	start := time.Now()
	if err := r.RunOnce(context.Background()); err != nil {
		r.log.Warn().Err(err).Msg("snapshot refresh failed")
		return
	}
	r.log.Debug().Dur("took", time.Since(start)).Msg("snapshot refreshed")
}

// Stop halts scheduling and waits for a running refresh to finish or ctx
// to end.
func (r *Refresher) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Fields(kv).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}
