// Package stream implements per-queue priority-ordered iteration over the
// broker's append-only streams, tracking a cursor per stream.
package stream

import (
	"context"

	"github.com/nuulab/disqueue/internal/store"
)

// Manager walks a queue's streams in priority order, looking for the next
// unread entry. It caches cursors in memory and mirrors them to the Store
// on every Advance so a restarted worker resumes close to where it left
// off.
type Manager struct {
	store   store.Store
	streams []string
	cursors map[string]string
}

// NewManager seeds cursors from the Store for every stream, in the order
// given (callers pass Descriptor.Streams(), already priority-sorted).
func NewManager(ctx context.Context, s store.Store, streams []string) *Manager {
	m := &Manager{
		store:   s,
		streams: streams,
		cursors: make(map[string]string, len(streams)),
	}
	for _, stream := range streams {
		m.cursors[stream] = s.GetCursor(ctx, stream)
	}
	return m
}

// Next tries each stream in priority order and returns the first entry
// found past its cursor. ok is false if every stream was empty this pass -
// callers should back off briefly before calling Next again.
func (m *Manager) Next(ctx context.Context) (stream, entryID string, fields map[string]string, ok bool) {
	for _, s := range m.streams {
		id, f, found := m.store.ReadNext(ctx, s, m.cursors[s])
		if found {
			return s, id, f, true
		}
	}
	return "", "", nil, false
}

// Advance records entryID as the new cursor for stream, both in memory and
// in the Store, unconditionally - regardless of whether the job at
// entryID completed, failed, was a duplicate, or was skipped as
// cancelled, the cursor always moves forward so the worker never
// re-reads the same entry.
func (m *Manager) Advance(ctx context.Context, stream, entryID string) {
	m.cursors[stream] = entryID
	m.store.SetCursor(ctx, stream, entryID)
}
