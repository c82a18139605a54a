package streak

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/prayer-ledger/generic"
	"github.com/warp/prayer-ledger/metrics"
)

// SessionConfig is shared by every session a Registry opens.
type SessionConfig struct {
	Store    generic.Store
	Clock    generic.Clock
	Location *time.Location
	NewID    func() generic.CheckInID // nil = UUIDv4
	Logger   *zap.Logger
	Metrics  metrics.Recorder
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Clock == nil {
		c.Clock = generic.SystemClock{}
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Nop{}
	}
	return c
}

// Session is one user's engine bound to a store. Writes are serialized so
// snapshots reach the store in submission order.
type Session struct {
	engine  *Engine
	store   generic.Store
	logger  *zap.Logger
	metrics metrics.Recorder

	writeMu sync.Mutex
	pending bool // last save failed
}

// OpenSession loads the user's snapshot, restores it and rehydrates the
// streak. A missing or unreadable snapshot starts an empty ledger; a
// store I/O failure is returned.
func OpenSession(ctx context.Context, userID generic.UserID, cfg SessionConfig) (*Session, error) {
	if userID == "" {
		return nil, generic.ErrUserRequired
	}
	cfg = cfg.withDefaults()
	logger := cfg.Logger.With(zap.String("user_id", string(userID)))

	s := &Session{
		engine: NewEngine(userID,
			WithClock(cfg.Clock),
			WithLocation(cfg.Location),
			WithIDGenerator(cfg.NewID),
		),
		store:   cfg.Store,
		logger:  logger,
		metrics: cfg.Metrics,
	}

	snap, err := cfg.Store.Load(ctx, userID)
	if err != nil {
		cfg.Metrics.RecordPersistenceFailure("load")
		return nil, &generic.PersistenceError{UserID: userID, Op: "load", Err: err}
	}
	if snap != nil && snap.UserID != "" && snap.UserID != userID {
		logger.Warn("stored ledger belongs to another user, starting empty",
			zap.String("stored_user_id", string(snap.UserID)))
		cfg.Metrics.RecordCorruptSnapshot()
		snap = nil
	}
	if snap != nil {
		if s.engine.Restore(*snap) {
			logger.Warn("stored aggregate disagreed with ledger, rebuilt by replay",
				zap.Int("check_ins", len(snap.CheckIns)))
			cfg.Metrics.RecordSnapshotRepair()
		}
	}
	if s.engine.RehydrateAndRecalculate() {
		logger.Info("streak lapsed since last check-in")
		cfg.Metrics.RecordStreakLapse()
	}
	return s, nil
}

func (s *Session) UserID() generic.UserID { return s.engine.UserID() }

// Engine exposes the underlying engine for read-only callers.
func (s *Session) Engine() *Engine { return s.engine }

// Submit records a check-in and saves the ledger. If the save fails the
// check-in is kept in memory and a *generic.PersistenceError is returned
// with it.
func (s *Session) Submit(ctx context.Context, in generic.CheckInInput) (generic.CheckIn, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	out := s.engine.Submit(in)
	s.metrics.RecordCheckIn(string(in.Mystery))
	if out.Transition == TransitionReset {
		s.metrics.RecordStreakReset()
	}
	s.logger.Debug("check-in recorded",
		zap.String("check_in_id", string(out.CheckIn.ID)),
		zap.String("mystery", string(in.Mystery)),
		zap.Stringer("transition", out.Transition))

	return out.CheckIn, s.saveLocked(ctx)
}

// Save writes the current state again. Callers use it to retry after a
// persistence warning.
func (s *Session) Save(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Session) saveLocked(ctx context.Context) error {
	if err := s.store.Save(ctx, s.engine.UserID(), s.engine.Snapshot()); err != nil {
		s.pending = true
		s.metrics.RecordPersistenceFailure("save")
		s.logger.Warn("ledger save failed, keeping in-memory state", zap.Error(err))
		return &generic.PersistenceError{UserID: s.engine.UserID(), Op: "save", Err: err}
	}
	s.pending = false
	return nil
}

// Pending reports whether the in-memory ledger has changes the store
// does not.
func (s *Session) Pending() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.pending
}

func (s *Session) HasCheckedInToday() bool                    { return s.engine.HasCheckedInToday() }
func (s *Session) Today() (string, bool)                      { return s.engine.Today() }
func (s *Session) GetStats() StatsView                        { return s.engine.GetStats() }
func (s *Session) WeeklyProgress() int                        { return s.engine.WeeklyProgress() }
func (s *Session) WeeklyCheckIns() []generic.CheckIn          { return s.engine.WeeklyCheckIns() }
func (s *Session) RecentActivity(limit int) []generic.CheckIn { return s.engine.RecentActivity(limit) }
