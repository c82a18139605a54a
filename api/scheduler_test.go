package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/prayer-ledger/generic"
	"github.com/warp/prayer-ledger/generic/store"
	"github.com/warp/prayer-ledger/streak"
)

func TestSaveRetryScheduler_RetryOnce(t *testing.T) {
	// GIVEN: a check-in accepted while the store was failing
	srv := newTestServer(t, 10)
	srv.store.mu.Lock()
	srv.store.failSave = true
	srv.store.mu.Unlock()
	rec := srv.do(t, http.MethodPost, "/api/checkins", "alice", SubmitCheckInRequest{Mystery: "joyful"})
	require.Equal(t, http.StatusCreated, rec.Code)

	scheduler := NewSaveRetryScheduler(srv.sessions, nil)

	// WHEN: retrying while still down, then after recovery
	assert.Equal(t, 1, scheduler.RetryOnce(context.Background()))
	srv.store.mu.Lock()
	srv.store.failSave = false
	srv.store.mu.Unlock()
	assert.Equal(t, 1, scheduler.RetryOnce(context.Background()))

	// THEN: the ledger is stored and nothing is left to retry
	snap, err := srv.store.Memory.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.CheckIns, 1)
	assert.Zero(t, scheduler.RetryOnce(context.Background()))
}

func TestSaveRetryScheduler_StartStop(t *testing.T) {
	sessions := streak.NewRegistry(streak.SessionConfig{
		Store: store.NewMemory(),
		Clock: generic.NewFixedClock(testNow),
	})
	scheduler := NewSaveRetryScheduler(sessions, nil)
	scheduler.CheckInterval = 10 * time.Millisecond

	scheduler.Start()
	scheduler.Start() // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	scheduler.Stop()
	scheduler.Stop()
}

func TestSaveRetryScheduler_Disabled(t *testing.T) {
	scheduler := NewSaveRetryScheduler(nil, nil)
	scheduler.Enabled = false

	scheduler.Start()
	scheduler.Stop()
}
