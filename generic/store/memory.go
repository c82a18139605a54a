// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/prayer-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps encoded snapshots, so Load goes through the same decode
// path as the durable stores.
type Memory struct {
	mu        sync.RWMutex
	blobs     map[generic.UserID][]byte
	onCorrupt func(generic.UserID, error)
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[generic.UserID][]byte)}
}

func (m *Memory) Save(_ context.Context, userID generic.UserID, snap generic.Snapshot) error {
	data, err := generic.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[userID] = data
	return nil
}

func (m *Memory) Load(_ context.Context, userID generic.UserID) (*generic.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.blobs[userID]
	report := m.onCorrupt
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	snap, err := generic.DecodeSnapshot(data)
	if err != nil {
		if report != nil {
			report(userID, err)
		}
		return nil, nil
	}
	return snap, nil
}

// OnCorrupt registers a callback for records skipped as unreadable.
func (m *Memory) OnCorrupt(fn func(generic.UserID, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCorrupt = fn
}

// Raw returns the stored bytes for a user.
func (m *Memory) Raw(userID generic.UserID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[userID]
	return append([]byte(nil), data...), ok
}

// PutRaw stores bytes as-is. Used to seed imports and to simulate
// corrupted local state.
func (m *Memory) PutRaw(userID generic.UserID, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[userID] = append([]byte(nil), data...)
}
