package pcm

import (
	"fmt"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono float frames between sample rates. Frames are
// processed incrementally so the filter state carries across calls.
type Resampler struct {
	mu       sync.Mutex
	inRate   int
	outRate  int
	inner    resampling.Resampler
	released bool
}

// NewResampler creates a mono resampler. When the rates match it passes
// samples through unchanged.
func NewResampler(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", inRate, outRate)
	}
	r := &Resampler{inRate: inRate, outRate: outRate}
	if inRate == outRate {
		return r, nil
	}
	inner, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	r.inner = inner
	return r, nil
}

// Rates returns the configured input and output sample rates.
func (r *Resampler) Rates() (int, int) {
	return r.inRate, r.outRate
}

// Process resamples one frame.
func (r *Resampler) Process(samples []float32) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil, fmt.Errorf("resampler released")
	}
	input := ToFloat64(samples)
	if r.inner == nil {
		return input, nil
	}
	out, err := r.inner.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return out, nil
}

// Release drops the filter state. Further Process calls fail.
func (r *Resampler) Release() {
	r.mu.Lock()
	r.released = true
	r.inner = nil
	r.mu.Unlock()
}
