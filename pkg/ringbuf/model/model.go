// Package model provides a deliberately simple, in-memory model of ringbuf's
// publicly observable behavior.
//
// The model is a FIFO slice with eviction. It knows nothing about slots,
// flags or the file format, which is what makes it a useful oracle.
package model

import (
	"slices"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// Ring is the model state. It survives Close/Open cycles as-is.
type Ring struct {
	Capacity    int
	PayloadSize int
	Items       []string
}

// New returns an empty ring.
func New(capacity, payloadSize int) *Ring {
	return &Ring{Capacity: capacity, PayloadSize: payloadSize}
}

// Add appends text truncated to PayloadSize bytes and cut at the first NUL,
// evicting the oldest item when full.
func (r *Ring) Add(text string) {
	if len(text) > r.PayloadSize {
		text = text[:r.PayloadSize]
	}

	for i := 0; i < len(text); i++ {
		if text[i] == 0 {
			text = text[:i]

			break
		}
	}

	if len(r.Items) == r.Capacity {
		r.Items = r.Items[1:]
	}

	r.Items = append(r.Items, text)
}

// Remove pops the oldest item.
func (r *Ring) Remove() (string, error) {
	if len(r.Items) == 0 {
		return "", ringbuf.ErrEmpty
	}

	head := r.Items[0]
	r.Items = r.Items[1:]

	return head, nil
}

// Peek returns the oldest item.
func (r *Ring) Peek() (string, error) {
	if len(r.Items) == 0 {
		return "", ringbuf.ErrEmpty
	}

	return r.Items[0], nil
}

// Clear drops all items.
func (r *Ring) Clear() {
	r.Items = nil
}

// Len returns the item count.
func (r *Ring) Len() int {
	return len(r.Items)
}

// Entries returns a copy of all items, oldest first. Never nil.
func (r *Ring) Entries() []string {
	out := slices.Clone(r.Items)
	if out == nil {
		out = []string{}
	}

	return out
}
