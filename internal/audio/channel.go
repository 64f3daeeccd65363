package audio

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"

	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
)

// Channel is one persistent, seekable, loopable playback unit. Only the
// Coordinator mutates a channel's volume.
type Channel interface {
	// Load swaps the source. An unchanged source is a no-op so that a
	// track already in place is never restarted.
	Load(source string, loop bool)
	Source() string
	SetVolume(v float64)
	Volume() float64
	Play(ctx context.Context) error
	Pause()
	Seek(pos time.Duration) error
	Paused() bool
	Position() time.Duration
	Duration() time.Duration
	// Ended receives when a non-looping source plays to its end.
	Ended() <-chan struct{}
}

// Ensure StreamChannel implements Channel at compile time
var _ Channel = (*StreamChannel)(nil)

// StreamChannel is a Channel mixed into a Device. It is attached once and
// keeps streaming (silence while paused) for the lifetime of the process.
type StreamChannel struct {
	name   string
	device Device
	open   Opener

	mu         sync.Mutex
	source     string
	loop       bool
	volume     float64
	paused     bool
	authorized bool
	loadGen    uint64
	src        beep.StreamSeekCloser
	out        beep.Streamer
	format     beep.Format

	ended chan struct{}
}

// NewStreamChannel creates a channel and attaches it to the device
func NewStreamChannel(name string, device Device, open Opener) *StreamChannel {
	if open == nil {
		open = OpenSource
	}
	c := &StreamChannel{
		name:   name,
		device: device,
		open:   open,
		volume: 1,
		paused: true,
		ended:  make(chan struct{}, 1),
	}
	device.Attach(c)
	return c
}

func (c *StreamChannel) Load(source string, loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loop = loop
	if source == c.source {
		return
	}
	c.paused = true
	c.closeLocked()
	c.source = source
	c.loadGen++
}

func (c *StreamChannel) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

func (c *StreamChannel) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = clamp01(v)
	c.mu.Unlock()
}

func (c *StreamChannel) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Play resumes the channel, decoding the source first if it was swapped.
// The lock is not held while the source is fetched. The channel is only
// unpaused while ctx is live, so a cancelled play never becomes audible.
func (c *StreamChannel) Play(ctx context.Context) error {
	if err := c.device.Resume(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if c.device.RequiresGesture() && !c.authorized && !IsGesture(ctx) {
		c.mu.Unlock()
		return playerrors.NewPlayerError("play", c.name, playerrors.ErrAudioBlocked)
	}
	c.authorized = true

	if c.src == nil {
		source, gen := c.source, c.loadGen
		if source == "" {
			c.mu.Unlock()
			return playerrors.NewPlayerError("play", c.name, playerrors.ErrTrackNotFound)
		}
		c.mu.Unlock()

		streamer, format, err := openAndDecode(ctx, c.open, source)
		if err != nil {
			return playerrors.NewPlayerError("load", source, err)
		}

		c.mu.Lock()
		if gen != c.loadGen {
			// swapped while loading; the newer Load owns the channel now
			c.mu.Unlock()
			streamer.Close()
			return nil
		}
		if c.src == nil {
			c.src, c.format = streamer, format
			c.out = c.wrapLocked()
		} else {
			streamer.Close()
		}
	}
	if err := ctx.Err(); err != nil {
		// cancelled by a newer operation; the stream stays loaded
		c.mu.Unlock()
		return err
	}
	c.paused = false
	c.mu.Unlock()
	return nil
}

func (c *StreamChannel) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Seek clamps pos into [0, Duration]. Seeking an unloaded source is a no-op.
func (c *StreamChannel) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src == nil {
		return nil
	}
	n := c.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if l := c.src.Len(); n > l {
		n = l
	}
	if err := c.src.Seek(n); err != nil {
		return playerrors.NewPlayerError("seek", c.source, err)
	}
	c.out = c.wrapLocked()
	return nil
}

func (c *StreamChannel) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *StreamChannel) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src == nil {
		return 0
	}
	return c.format.SampleRate.D(c.src.Position())
}

func (c *StreamChannel) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src == nil {
		return 0
	}
	return c.format.SampleRate.D(c.src.Len())
}

func (c *StreamChannel) Ended() <-chan struct{} {
	return c.ended
}

// Stream implements beep.Streamer. It always fills samples and never
// drains, so the speaker keeps the channel for the whole session.
func (c *StreamChannel) Stream(samples [][2]float64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	filled := 0
	if !c.paused && c.out != nil {
		rewound := false
		for filled < len(samples) {
			n, ok := c.out.Stream(samples[filled:])
			filled += n
			if filled == len(samples) {
				break
			}
			if n > 0 && ok {
				rewound = false
				continue
			}
			if c.loop && !rewound {
				c.rewindLocked()
				rewound = true
				continue
			}
			c.paused = true
			select {
			case c.ended <- struct{}{}:
			default:
			}
			break
		}
		for i := range samples[:filled] {
			samples[i][0] *= c.volume
			samples[i][1] *= c.volume
		}
	}
	for i := range samples[filled:] {
		samples[filled+i] = [2]float64{}
	}
	return len(samples), true
}

func (c *StreamChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src == nil {
		return nil
	}
	return c.src.Err()
}

func (c *StreamChannel) rewindLocked() {
	if err := c.src.Seek(0); err == nil {
		c.out = c.wrapLocked()
	}
}

// wrapLocked resamples the source to the device rate. A fresh resampler
// is built after every seek so no stale samples survive.
func (c *StreamChannel) wrapLocked() beep.Streamer {
	if c.format.SampleRate == c.device.SampleRate() {
		return c.src
	}
	return beep.Resample(4, c.format.SampleRate, c.device.SampleRate(), c.src)
}

func (c *StreamChannel) closeLocked() {
	if c.src != nil {
		c.src.Close()
	}
	c.src = nil
	c.out = nil
	c.format = beep.Format{}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
