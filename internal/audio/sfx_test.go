package audio

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
)

func newTestBus(t *testing.T, open Opener) (*EffectsBus, *fakeDevice) {
	t.Helper()
	dir := t.TempDir()
	clips := map[SfxName]string{
		SfxClick: writeWav(t, dir, "click.wav", 2000, 0.5),
		SfxCash:  writeWav(t, dir, "cash.wav", 4000, 0.25),
		SfxDeny:  filepath.Join(dir, "missing.wav"),
	}
	dev := &fakeDevice{}
	bus := NewEffectsBus(clips, dev, open, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return bus, dev
}

// countingOpener counts opens per source
type countingOpener struct {
	mu    sync.Mutex
	opens map[string]int
}

func (o *countingOpener) open(ctx context.Context, source string) (io.ReadSeekCloser, error) {
	o.mu.Lock()
	if o.opens == nil {
		o.opens = make(map[string]int)
	}
	o.opens[source]++
	o.mu.Unlock()
	return OpenSource(ctx, source)
}

func TestEffectsBus_AttachesToDevice(t *testing.T) {
	bus, dev := newTestBus(t, nil)
	require.Len(t, dev.attached, 1)
	assert.Same(t, bus, dev.attached[0])
}

func TestTrigger_BeforePreloadIsDropped(t *testing.T) {
	bus, _ := newTestBus(t, nil)

	assert.NotPanics(t, func() { bus.Trigger(SfxClick, DefaultSfxOptions()) })
	assert.Zero(t, bus.Active(), "uncached trigger must not play")

	// the dropped trigger still warms the cache
	require.Eventually(t, func() bool { return bus.Available(SfxClick) }, time.Second, 5*time.Millisecond)

	bus.Trigger(SfxClick, DefaultSfxOptions())
	assert.Equal(t, 1, bus.Active())
}

func TestPreload_ThenTriggerMakesOneNode(t *testing.T) {
	bus, _ := newTestBus(t, nil)

	require.NoError(t, bus.Preload(context.Background()))
	bus.Trigger(SfxCash, DefaultSfxOptions())

	assert.Equal(t, 1, bus.Active())
}

func TestPreload_FailedClipIsIsolated(t *testing.T) {
	bus, _ := newTestBus(t, nil)

	require.NoError(t, bus.Preload(context.Background()))

	assert.True(t, bus.Available(SfxClick))
	assert.True(t, bus.Available(SfxCash))
	assert.False(t, bus.Available(SfxDeny))
	assert.ErrorIs(t, bus.Failure(SfxDeny), playerrors.ErrDecodeFailure)

	bus.Trigger(SfxDeny, DefaultSfxOptions())
	assert.Zero(t, bus.Active())
}

func TestPreload_Idempotent(t *testing.T) {
	counter := &countingOpener{}
	bus, _ := newTestBus(t, counter.open)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, bus.Preload(ctx))
		}()
	}
	wg.Wait()
	require.NoError(t, bus.Preload(ctx))

	counter.mu.Lock()
	defer counter.mu.Unlock()
	for source, n := range counter.opens {
		assert.Equal(t, 1, n, "source %s opened more than once", source)
	}
}

func TestPreload_CancelledContext(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Preload(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrigger_InterruptPrevious(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	require.NoError(t, bus.Preload(context.Background()))

	bus.Trigger(SfxClick, DefaultSfxOptions())
	bus.Trigger(SfxClick, DefaultSfxOptions())
	bus.Trigger(SfxCash, DefaultSfxOptions())
	assert.Equal(t, 3, bus.Active())

	opts := DefaultSfxOptions()
	opts.InterruptPrevious = true
	bus.Trigger(SfxClick, opts)
	assert.Equal(t, 1, bus.Active())
}

func TestTrigger_MutedIsNoop(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	require.NoError(t, bus.Preload(context.Background()))

	bus.SetMuted(true)
	bus.Trigger(SfxClick, DefaultSfxOptions())
	assert.Zero(t, bus.Active())
	assert.True(t, bus.Muted())

	bus.SetMuted(false)
	bus.Trigger(SfxClick, DefaultSfxOptions())
	assert.Equal(t, 1, bus.Active())
}

func TestTrigger_UnknownNameIsNoop(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	bus.Trigger(SfxName("kazoo"), DefaultSfxOptions())
	assert.Zero(t, bus.Active())
}

func TestStream_NodesUnregisterWhenDrained(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	require.NoError(t, bus.Preload(context.Background()))

	opts := DefaultSfxOptions()
	opts.Volume = 0.5
	bus.Trigger(SfxClick, opts)

	samples := make([][2]float64, 512)
	n, ok := bus.Stream(samples)
	assert.Equal(t, len(samples), n)
	assert.True(t, ok)
	assert.InDelta(t, 0.25, samples[0][0], 0.01)

	for i := 0; i < 10 && bus.Active() > 0; i++ {
		bus.Stream(samples)
	}
	assert.Zero(t, bus.Active())

	// the bus keeps streaming silence once empty
	n, ok = bus.Stream(samples)
	assert.Equal(t, len(samples), n)
	assert.True(t, ok)
	assert.Equal(t, [2]float64{}, samples[0])
}

func TestStream_MutedBusIsSilent(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	require.NoError(t, bus.Preload(context.Background()))
	bus.Trigger(SfxClick, DefaultSfxOptions())

	bus.SetMuted(true)
	samples := make([][2]float64, 64)
	bus.Stream(samples)
	assert.Equal(t, [2]float64{}, samples[10])
}

func TestRange_Sample(t *testing.T) {
	half := func() float64 { return 0.5 }

	tests := []struct {
		name string
		r    Range
		want float64
	}{
		{"fixed", Fixed(1.25), 1.25},
		{"range midpoint", Range{Min: 0.8, Max: 1.2}, 1.0},
		{"inverted range is fixed", Range{Min: 2, Max: 1}, 2},
		{"zero", Range{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.r.sample(half), 1e-9)
		})
	}
}

func TestTrigger_UsesRandomRate(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	require.NoError(t, bus.Preload(context.Background()))

	var calls atomic.Int32
	bus.rand = func() float64 {
		calls.Add(1)
		return 0.5
	}
	opts := DefaultSfxOptions()
	opts.Rate = Range{Min: 0.9, Max: 1.1}
	opts.Detune = Range{Min: -50, Max: 50}
	bus.Trigger(SfxClick, opts)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, bus.Active())
}

func TestTrigger_ZeroOptionsPlayAtFullVolume(t *testing.T) {
	bus, _ := newTestBus(t, nil)
	require.NoError(t, bus.Preload(context.Background()))

	bus.Trigger(SfxClick, SfxOptions{})
	require.Equal(t, 1, bus.Active())

	samples := make([][2]float64, 64)
	bus.Stream(samples)
	assert.InDelta(t, 0.5, samples[10][0], 0.01)
}
