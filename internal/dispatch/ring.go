// Package dispatch routes transcribed utterances through the listening
// pipeline: every item lands in a bounded recent-transcript ring, is
// optionally persisted to long-term memory, is checked for questions coming
// from the other party, and is fanned out to live subscribers.
package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultRingCapacity is the number of transcript items kept in the ring.
const DefaultRingCapacity = 30

// Item is one transcribed utterance with its arrival metadata.
type Item struct {
	Text      string
	Source    string
	Timestamp time.Time
	Words     int
}

// Ring is a bounded, append-only buffer of the most recent transcript items.
// A single writer appends; any number of readers take snapshots. Oldest items
// are evicted once capacity is reached.
type Ring struct {
	mu       sync.Mutex
	items    []Item
	capacity int
}

// NewRing creates a ring holding at most capacity items.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{capacity: capacity}
}

// Append adds an item, evicting the oldest when the ring is full.
func (r *Ring) Append(item Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	if len(r.items) > r.capacity {
		// Shift instead of re-slice so evicted items are freed.
		copy(r.items, r.items[1:])
		r.items = r.items[:r.capacity]
	}
}

// Len reports the number of items currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Items returns a snapshot of all held items in time order.
func (r *Ring) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

// Window renders all items newer than now minus window as newline-joined
// "SRC: text" lines in time order. Returns the empty string when nothing
// falls inside the window.
func (r *Ring) Window(window time.Duration, now time.Time) string {
	cutoff := now.Add(-window)

	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, item := range r.items {
		if item.Timestamp.Before(cutoff) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToUpper(item.Source), item.Text)
	}
	return b.String()
}
