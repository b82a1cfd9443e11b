package observable

import (
	"sync"
	"time"
)

// Smoothed is a boolean Value whose false transitions are published only
// after the flag has stayed false for the smoothing delay. A true arriving
// inside that window cancels the pending false, so short-lived dips never
// reach observers. True is published immediately.
type Smoothed struct {
	value *Value[bool]
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewSmoothed returns a Smoothed flag holding initial.
func NewSmoothed(delay time.Duration, initial bool) *Smoothed {
	return &Smoothed{
		value: NewWith(initial),
		delay: delay,
	}
}

// Set requests a new value. Observers run while the flag's lock is held
// and must not call Set themselves.
func (s *Smoothed) Set(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if v || s.delay <= 0 {
		s.value.Set(v)
		return
	}

	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		s.timer = nil
		s.value.Set(false)
	})
}

// Value returns the currently published value.
func (s *Smoothed) Value() bool {
	v, _ := s.value.Get()
	return v
}

// Observe registers fn; see Value.Observe.
func (s *Smoothed) Observe(fn func(bool)) (cancel func()) {
	return s.value.Observe(fn)
}

// Stop drops any pending false transition.
func (s *Smoothed) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
