package audio

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
)

// SfxName identifies a one-shot effect clip
type SfxName string

const (
	SfxClick      SfxName = "click"
	SfxHover      SfxName = "hover"
	SfxConfirm    SfxName = "confirm"
	SfxDeny       SfxName = "deny"
	SfxCash       SfxName = "cash"
	SfxStamp      SfxName = "stamp"
	SfxTypewriter SfxName = "typewriter"
	SfxGunshot    SfxName = "gunshot"
)

// Range is either a fixed value (Max <= Min) or a uniform random range.
type Range struct {
	Min float64
	Max float64
}

// Fixed returns a Range that always samples v
func Fixed(v float64) Range {
	return Range{Min: v, Max: v}
}

func (r Range) sample(rnd func() float64) float64 {
	if r.Max > r.Min {
		return r.Min + rnd()*(r.Max-r.Min)
	}
	return r.Min
}

// SfxOptions controls one trigger. Zero values are usable: Volume 0 plays
// at full volume and Rate 0 at normal speed. Detune is in cents.
type SfxOptions struct {
	Volume            float64
	Rate              Range
	Detune            Range
	InterruptPrevious bool
}

// DefaultSfxOptions plays a clip once at full volume and normal pitch
func DefaultSfxOptions() SfxOptions {
	return SfxOptions{Volume: 1, Rate: Fixed(1)}
}

// EffectsBus memoises decoded effect clips and mixes one-shot playbacks of
// them into a single bus attached to the device.
type EffectsBus struct {
	clips  map[SfxName]string
	device Device
	open   Opener
	log    *slog.Logger
	rand   func() float64

	mu        sync.Mutex
	buffers   map[SfxName]*beep.Buffer
	failed    map[SfxName]error
	active    map[*oneShot]struct{}
	mixer     beep.Mixer
	gain      *effects.Volume
	muted     bool
	preloaded bool

	preload singleflight.Group
	fetches singleflight.Group
}

// NewEffectsBus creates the bus and attaches it to the device
func NewEffectsBus(clips map[SfxName]string, device Device, open Opener, logger *slog.Logger) *EffectsBus {
	if open == nil {
		open = OpenSource
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &EffectsBus{
		clips:   clips,
		device:  device,
		open:    open,
		log:     logger,
		rand:    rand.Float64,
		buffers: make(map[SfxName]*beep.Buffer),
		failed:  make(map[SfxName]error),
		active:  make(map[*oneShot]struct{}),
	}
	b.gain = &effects.Volume{Streamer: &b.mixer, Base: 2}
	device.Attach(b)
	return b
}

// Preload fetches and decodes every known clip concurrently. Concurrent
// callers share one run and later calls return immediately. A clip that
// fails is left unavailable; only cancellation of ctx is reported.
func (b *EffectsBus) Preload(ctx context.Context) error {
	b.mu.Lock()
	done := b.preloaded
	b.mu.Unlock()
	if done {
		return nil
	}

	_, err, _ := b.preload.Do("preload", func() (interface{}, error) {
		g, gctx := errgroup.WithContext(ctx)
		for name := range b.clips {
			name := name
			g.Go(func() error {
				b.load(gctx, name)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.preloaded = true
		b.mu.Unlock()
		return nil, nil
	})
	return err
}

// load decodes one clip into a buffer at the device rate. Concurrent loads
// of the same clip share a single fetch.
func (b *EffectsBus) load(ctx context.Context, name SfxName) {
	_, _, _ = b.fetches.Do(string(name), func() (interface{}, error) {
		b.mu.Lock()
		_, cached := b.buffers[name]
		_, failed := b.failed[name]
		b.mu.Unlock()
		if cached || failed {
			return nil, nil
		}

		source := b.clips[name]
		streamer, format, err := openAndDecode(ctx, b.open, source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			b.markFailed(name, err)
			return nil, nil
		}
		defer streamer.Close()

		rate := b.device.SampleRate()
		buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
		var s beep.Streamer = streamer
		if format.SampleRate != rate {
			s = beep.Resample(4, format.SampleRate, rate, streamer)
		}
		buf.Append(s)
		if err := streamer.Err(); err != nil {
			b.markFailed(name, err)
			return nil, nil
		}

		b.mu.Lock()
		b.buffers[name] = buf
		b.mu.Unlock()
		b.log.Debug("audio_event", "event", "sfx_loaded", "sfx", name, "samples", buf.Len())
		return nil, nil
	})
}

func (b *EffectsBus) markFailed(name SfxName, err error) {
	err = playerrors.NewPlayerError("decode", string(name), errors.Join(playerrors.ErrDecodeFailure, err))
	b.mu.Lock()
	b.failed[name] = err
	b.mu.Unlock()
	b.log.Warn("audio_event", "event", "sfx_unavailable", "sfx", name, "error", err)
}

// Trigger plays name once. It never blocks: a clip that is not decoded yet
// is fetched in the background and this trigger is dropped.
func (b *EffectsBus) Trigger(name SfxName, opts SfxOptions) {
	b.mu.Lock()
	if b.muted {
		b.mu.Unlock()
		return
	}
	buf, ok := b.buffers[name]
	if !ok {
		_, known := b.clips[name]
		_, failed := b.failed[name]
		b.mu.Unlock()
		if known && !failed {
			go b.load(context.Background(), name)
		}
		return
	}
	defer b.mu.Unlock()

	if opts.InterruptPrevious {
		for n := range b.active {
			n.done = true
		}
		b.active = make(map[*oneShot]struct{})
	}

	rate := opts.Rate.sample(b.rand)
	if rate <= 0 {
		rate = 1
	}
	ratio := rate * math.Pow(2, opts.Detune.sample(b.rand)/1200)

	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if ratio != 1 {
		s = beep.ResampleRatio(4, ratio, s)
	}
	vol := opts.Volume
	if vol <= 0 {
		vol = 1
	}
	node := &oneShot{src: &effects.Gain{Streamer: s, Gain: clamp01(vol) - 1}}
	b.active[node] = struct{}{}
	b.mixer.Add(node)
}

// SetMuted silences the bus and turns Trigger into a no-op
func (b *EffectsBus) SetMuted(muted bool) {
	b.mu.Lock()
	b.muted = muted
	b.gain.Silent = muted
	b.mu.Unlock()
}

func (b *EffectsBus) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

// Active returns the number of one-shot playbacks still sounding
func (b *EffectsBus) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}

// Available reports whether name is decoded and ready
func (b *EffectsBus) Available(name SfxName) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.buffers[name]
	return ok
}

// Failure returns the decode error for name, if any
func (b *EffectsBus) Failure(name SfxName) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed[name]
}

// Stream implements beep.Streamer for the bus; it never drains.
func (b *EffectsBus) Stream(samples [][2]float64) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gain.Stream(samples)
	for n := range b.active {
		if n.done {
			delete(b.active, n)
		}
	}
	return len(samples), true
}

func (b *EffectsBus) Err() error { return nil }

// oneShot ends early once done is set. Guarded by the bus mutex.
type oneShot struct {
	src  beep.Streamer
	done bool
}

func (o *oneShot) Stream(samples [][2]float64) (int, bool) {
	if o.done {
		return 0, false
	}
	n, ok := o.src.Stream(samples)
	if !ok || n < len(samples) {
		o.done = true
	}
	return n, ok
}

func (o *oneShot) Err() error { return nil }
