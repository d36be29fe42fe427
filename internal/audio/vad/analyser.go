// Package vad provides the local "user is speaking" indicator. It never gates
// what is sent upstream.
package vad

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

// DefaultThreshold is the level above which the user counts as speaking.
const DefaultThreshold = 10

// FrameInterval approximates one display frame.
const FrameInterval = time.Second / 60

// Analyser keeps the level of the most recent microphone frame on a 0..255 scale.
type Analyser struct {
	level atomic.Uint32
}

// NewAnalyser returns an analyser at level zero.
func NewAnalyser() *Analyser {
	return &Analyser{}
}

// Observe records the mean absolute amplitude of samples.
func (a *Analyser) Observe(samples []float32) {
	a.level.Store(uint32(Level(samples)))
}

// Level returns the mean absolute amplitude of samples scaled to 0..255.
func Level(samples []float32) int {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Min(math.Abs(float64(s)), 1)
	}
	return int(math.Round(sum / float64(len(samples)) * 255))
}

// Current returns the last observed level.
func (a *Analyser) Current() int {
	return int(a.level.Load())
}

// Active reports whether the last level exceeds threshold.
func (a *Analyser) Active(threshold int) bool {
	return a.Current() > threshold
}

// Poll samples the analyser every interval and calls fn when the active state
// flips. It returns when ctx is done.
func (a *Analyser) Poll(ctx context.Context, interval time.Duration, threshold int, fn func(active bool)) {
	if interval <= 0 {
		interval = FrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := a.Active(threshold)
			if active != last {
				last = active
				fn(active)
			}
		}
	}
}
