package streak

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/warp/prayer-ledger/generic"
)

// Registry hosts one Session per user. Sessions are opened on first use
// and kept for the life of the process. The store load runs outside the
// registry lock; concurrent opens of the same user share one load.
type Registry struct {
	cfg SessionConfig

	mu       sync.Mutex
	sessions map[generic.UserID]*Session
	opening  map[generic.UserID]*openCall
}

// openCall is an in-flight OpenSession that later callers wait on.
type openCall struct {
	done    chan struct{}
	session *Session
	err     error
}

func NewRegistry(cfg SessionConfig) *Registry {
	cfg = cfg.withDefaults()
	if cr, ok := cfg.Store.(generic.CorruptionReporter); ok {
		logger, rec := cfg.Logger, cfg.Metrics
		cr.OnCorrupt(func(userID generic.UserID, err error) {
			logger.Warn("stored ledger unreadable, treating as no history",
				zap.String("user_id", string(userID)), zap.Error(err))
			rec.RecordCorruptSnapshot()
		})
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[generic.UserID]*Session),
		opening:  make(map[generic.UserID]*openCall),
	}
}

// Session returns the user's session, opening it if needed. A failed
// open is not cached.
func (r *Registry) Session(ctx context.Context, userID generic.UserID) (*Session, error) {
	if userID == "" {
		return nil, generic.ErrUserRequired
	}
	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		return s, nil
	}
	if call, ok := r.opening[userID]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.session, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &openCall{done: make(chan struct{})}
	r.opening[userID] = call
	r.mu.Unlock()

	call.session, call.err = OpenSession(ctx, userID, r.cfg)

	r.mu.Lock()
	delete(r.opening, userID)
	if call.err == nil {
		r.sessions[userID] = call.session
	}
	r.mu.Unlock()
	close(call.done)
	return call.session, call.err
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) snapshotSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Flush saves every open session. Used on shutdown.
func (r *Registry) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range r.snapshotSessions() {
		if err := s.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RetryPending saves only the sessions whose last save failed. It
// returns how many were retried; errors are for those still failing.
func (r *Registry) RetryPending(ctx context.Context) (int, error) {
	var (
		retried int
		errs    []error
	)
	for _, s := range r.snapshotSessions() {
		if !s.Pending() {
			continue
		}
		retried++
		if err := s.Save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return retried, errors.Join(errs...)
}
