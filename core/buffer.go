package core

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/signalsfoundry/cgs-scheduler/model"
)

// Buffer is a node's capacity-bounded bundle store (spec §3 Node
// "buffer"). Bundles accumulate here between acquisition/reception and
// assignment to an outbound queue.
type Buffer struct {
	mu       sync.Mutex
	capacity decimal.Decimal
	used     decimal.Decimal
	items    []*model.Bundle
}

// NewBuffer returns an empty buffer bounded at capacity.
func NewBuffer(capacity decimal.Decimal) *Buffer {
	return &Buffer{capacity: capacity}
}

// Append adds bundle to the buffer, refusing it with ErrBufferOverflow
// if it would exceed the remaining capacity (spec §7 BufferOverflow).
func (b *Buffer) Append(bundle *model.Bundle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used.Add(bundle.Size).GreaterThan(b.capacity) {
		return ErrBufferOverflow
	}
	b.used = b.used.Add(bundle.Size)
	b.items = append(b.items, bundle)
	return nil
}

// CapacityRemaining reports how much volume the buffer can still accept.
func (b *Buffer) CapacityRemaining() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity.Sub(b.used)
}

// Drain removes and returns every bundle currently held, resetting used
// volume to zero. Used by the bundle assignment controller (spec §4.5.B),
// which is responsible for re-buffering anything it cannot place.
func (b *Buffer) Drain() []*model.Bundle {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	b.used = decimal.Zero
	return items
}

// IsEmpty reports whether the buffer currently holds no bundles.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) == 0
}
