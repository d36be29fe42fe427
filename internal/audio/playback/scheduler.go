// Package playback schedules model audio chunks back to back on a single
// timeline so consecutive chunks never overlap.
package playback

import (
	"sync"
	"time"
)

// EndTolerance is how close to the cursor playback counts as finished.
const EndTolerance = 100 * time.Millisecond

// Scheduler tracks the playback cursor of one call. All times are offsets
// from the start of the call.
type Scheduler struct {
	mu     sync.Mutex
	cursor time.Duration
}

// NewScheduler returns a scheduler with the cursor at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule places a chunk of length d at max(now, cursor) and advances the
// cursor to its end. It returns the chunk start.
func (s *Scheduler) Schedule(now, d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.cursor
	if now > start {
		start = now
	}
	if d < 0 {
		d = 0
	}
	s.cursor = start + d
	return start
}

// Interrupt resets the cursor to now so the next chunk starts immediately.
func (s *Scheduler) Interrupt(now time.Duration) {
	s.mu.Lock()
	s.cursor = now
	s.mu.Unlock()
}

// Speaking reports whether scheduled audio is still playing at now.
func (s *Scheduler) Speaking(now time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now < s.cursor-EndTolerance
}

// Cursor returns the end of the last scheduled chunk.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// ChunkDuration converts a sample count at rate into playback time.
func ChunkDuration(samples, rate int) time.Duration {
	if rate <= 0 || samples <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
