package live

import "github.com/energynexus/nexus-cli/internal/models"

// DefaultBufferSize is the number of readings kept for display
const DefaultBufferSize = 30

// Buffer holds the most recent readings, newest first. It is bounded, evicts
// in arrival order and never holds two readings with the same ID; a repeated
// ID is ignored and the original keeps its place.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	capacity int
	items    []models.Reading
	ids      map[string]struct{}
}

// NewBuffer creates a buffer holding at most capacity readings
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{
		capacity: capacity,
		items:    make([]models.Reading, 0, capacity),
		ids:      make(map[string]struct{}, capacity),
	}
}

// Seed replaces the contents with readings, given newest first
func (b *Buffer) Seed(readings []models.Reading) {
	b.items = b.items[:0]
	clear(b.ids)
	for _, r := range readings {
		if len(b.items) == b.capacity {
			break
		}
		if b.seen(r.ID) {
			continue
		}
		b.items = append(b.items, r)
		b.track(r.ID)
	}
}

// Push adds r as the newest reading. It reports false when r was a duplicate.
func (b *Buffer) Push(r models.Reading) bool {
	if b.seen(r.ID) {
		return false
	}
	if len(b.items) == b.capacity {
		oldest := b.items[len(b.items)-1]
		delete(b.ids, oldest.ID)
		b.items = b.items[:len(b.items)-1]
	}
	b.items = append(b.items, models.Reading{})
	copy(b.items[1:], b.items)
	b.items[0] = r
	b.track(r.ID)
	return true
}

// Readings returns a copy of the contents, newest first
func (b *Buffer) Readings() []models.Reading {
	out := make([]models.Reading, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of readings held
func (b *Buffer) Len() int { return len(b.items) }

// Cap returns the capacity
func (b *Buffer) Cap() int { return b.capacity }

// Reset empties the buffer
func (b *Buffer) Reset() {
	b.items = b.items[:0]
	clear(b.ids)
}

// readings without an ID cannot be compared and are never treated as repeats
func (b *Buffer) seen(id string) bool {
	if id == "" {
		return false
	}
	_, ok := b.ids[id]
	return ok
}

func (b *Buffer) track(id string) {
	if id != "" {
		b.ids[id] = struct{}{}
	}
}
