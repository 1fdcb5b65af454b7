package health

import "github.com/cuemby/swarmd/pkg/types"

// ringBuffer is a fixed-capacity circular buffer of health entries. Unlike
// append-then-trim, pushing past capacity overwrites the oldest entry in
// place instead of shifting the whole slice.
type ringBuffer struct {
	entries []types.HealthEntry
	head    int // index the next Push writes to
	count   int // number of valid entries, capped at cap(entries)
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{entries: make([]types.HealthEntry, capacity)}
}

// Push adds entry as the newest. If full, the oldest entry is overwritten.
func (b *ringBuffer) Push(entry types.HealthEntry) {
	b.entries[b.head] = entry
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Ordered returns entries most-recent-first.
func (b *ringBuffer) Ordered() []types.HealthEntry {
	out := make([]types.HealthEntry, 0, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head - 1 - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// loadOrdered replaces the buffer's contents with entries (assumed
// most-recent-first, as persisted), used to restore state from a
// previously durable InstanceHealth.History on restart.
func (b *ringBuffer) loadOrdered(history []types.HealthEntry) {
	n := len(history)
	if n > len(b.entries) {
		n = len(b.entries)
	}
	b.head = 0
	b.count = 0
	for i := n - 1; i >= 0; i-- {
		b.Push(history[i])
	}
}
