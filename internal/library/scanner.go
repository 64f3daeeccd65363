package library

import (
	"context"
	"sync"
	"time"

	"github.com/jscyril/mileage_mafia/internal/audio"
	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
)

// Asset is one configured audio source
type Asset struct {
	Name   string
	Source string
}

// CheckResult reports whether an asset opened and decoded
type CheckResult struct {
	Asset
	Duration time.Duration
	Err      error
}

// Scanner verifies assets concurrently using a worker pool
type Scanner struct {
	workers int
	open    audio.Opener
}

// NewScanner creates a new asset scanner
func NewScanner(workers int, open audio.Opener) *Scanner {
	if workers <= 0 {
		workers = 4 // Default worker count
	}
	if open == nil {
		open = audio.OpenSource
	}
	return &Scanner{workers: workers, open: open}
}

// Check decodes the header of every asset. Results arrive in completion
// order and the channel is closed once all workers finish or ctx is done.
func (s *Scanner) Check(ctx context.Context, assets []Asset) <-chan CheckResult {
	results := make(chan CheckResult, len(assets))
	jobs := make(chan Asset)

	var wg sync.WaitGroup

	go func() {
		defer close(jobs)
		for _, a := range assets {
			select {
			case jobs <- a:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				select {
				case results <- s.checkOne(ctx, a):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (s *Scanner) checkOne(ctx context.Context, a Asset) CheckResult {
	res := CheckResult{Asset: a}
	if !audio.IsSupported(a.Source) {
		res.Err = playerrors.NewPlayerError("check", a.Name, playerrors.ErrInvalidFormat)
		return res
	}

	r, err := s.open(ctx, a.Source)
	if err != nil {
		res.Err = playerrors.NewPlayerError("check", a.Name, err)
		return res
	}
	stream, format, err := audio.DecodeAudio(r, a.Source)
	if err != nil {
		r.Close()
		res.Err = playerrors.NewPlayerError("check", a.Name, err)
		return res
	}
	defer stream.Close()

	res.Duration = format.SampleRate.D(stream.Len())
	return res
}
