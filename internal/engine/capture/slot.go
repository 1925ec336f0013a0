package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNothingCaptured is returned by Wait when the window closes empty.
var ErrNothingCaptured = errors.New("no matching response captured")

// Slot is a single-assignment cell owned by one extraction run.
// The first Offer wins; later offers are counted and dropped.
type Slot struct {
	mu      sync.Mutex
	value   any
	set     bool
	dropped int
	done    chan struct{}
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{done: make(chan struct{})}
}

// Offer stores v if the slot is still empty and reports whether it did.
func (s *Slot) Offer(v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set {
		s.dropped++
		return false
	}
	s.value = v
	s.set = true
	close(s.done)
	return true
}

// Done is closed once a value has been stored.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Value returns the stored value, if any.
func (s *Slot) Value() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

// Dropped returns how many offers arrived after the first.
func (s *Slot) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Wait blocks until the slot is filled, the window elapses, or ctx ends.
// It returns as soon as the value lands.
func (s *Slot) Wait(ctx context.Context, window time.Duration) (any, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-s.done:
		v, _ := s.Value()
		return v, nil
	case <-timer.C:
		return nil, ErrNothingCaptured
	case <-ctx.Done():
		if v, ok := s.Value(); ok {
			return v, nil
		}
		return nil, ctx.Err()
	}
}
