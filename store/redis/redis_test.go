package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/prayer-ledger/generic"
	"github.com/warp/prayer-ledger/store/redis"
)

// newStore connects to the server named by PRAYER_TEST_REDIS_ADDR. Each
// test gets its own key prefix.
func newStore(t *testing.T) *redis.Store {
	t.Helper()
	addr := os.Getenv("PRAYER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PRAYER_TEST_REDIS_ADDR not set")
	}
	s, err := redis.Dial(context.Background(), redis.Options{
		Addr:   addr,
		Prefix: "prayer-ledger-test:" + uuid.NewString() + ":",
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_LoadMissingIsAbsent(t *testing.T) {
	s := newStore(t)

	snap, err := s.Load(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStore_SaveThenLoad(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.August, 15, 20, 30, 0, 5, time.UTC)
	t.Cleanup(func() { s.Delete(ctx, "u1") })

	require.NoError(t, s.Save(ctx, "u1", generic.Snapshot{
		UserID:   "u1",
		Stats:    generic.Stats{CurrentStreak: 1, LongestStreak: 3, TotalCheckIns: 1, LastPrayedDate: &at},
		CheckIns: []generic.CheckIn{{ID: "c1", UserID: "u1", Mystery: generic.MysteryGlorious, CreatedAt: at}},
	}))

	snap, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Stats.LongestStreak)
	require.Len(t, snap.CheckIns, 1)
	assert.True(t, at.Equal(snap.CheckIns[0].CreatedAt))
}

func TestStore_CorruptValueIsAbsentAndReported(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	t.Cleanup(func() { s.Delete(ctx, "u1") })

	var reported generic.UserID
	s.OnCorrupt(func(userID generic.UserID, err error) {
		assert.ErrorIs(t, err, generic.ErrCorruptSnapshot)
		reported = userID
	})
	require.NoError(t, s.PutRaw(ctx, "u1", []byte(`{"schema_version":99}`)))

	snap, err := s.Load(ctx, "u1")

	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, generic.UserID("u1"), reported)
}

func TestDial_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := redis.Dial(ctx, redis.Options{Addr: "127.0.0.1:1"})

	assert.Error(t, err)
}

var _ generic.Store = (*redis.Store)(nil)
