package audio

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
)

type gestureKey struct{}

// WithGesture marks ctx as originating from a user interaction (key press,
// click). Gated devices and channels only start from such a context until
// they have been authorised once.
func WithGesture(ctx context.Context) context.Context {
	return context.WithValue(ctx, gestureKey{}, true)
}

// IsGesture reports whether ctx was marked by WithGesture.
func IsGesture(ctx context.Context) bool {
	v, _ := ctx.Value(gestureKey{}).(bool)
	return v
}

// Device is the shared output context every channel and the effects bus
// mix into.
type Device interface {
	// Resume creates the output on first use. A gated device refuses to
	// start outside a gesture with ErrAudioBlocked.
	Resume(ctx context.Context) error
	// Attach registers a long-lived streamer; attachments made before the
	// first Resume are started once the output exists.
	Attach(s beep.Streamer)
	SampleRate() beep.SampleRate
	RequiresGesture() bool
}

// SpeakerDevice drives the beep speaker. The speaker is initialised at most
// once per process and never closed.
type SpeakerDevice struct {
	sampleRate     beep.SampleRate
	bufferSize     time.Duration
	requireGesture bool

	mu          sync.Mutex
	initialized bool
	pending     []beep.Streamer

	// swapped in tests
	initFn func(beep.SampleRate, int) error
	playFn func(...beep.Streamer)
}

// NewSpeakerDevice creates a device that will open the speaker lazily
func NewSpeakerDevice(sampleRate beep.SampleRate, requireGesture bool) *SpeakerDevice {
	return &SpeakerDevice{
		sampleRate:     sampleRate,
		bufferSize:     time.Second / 10,
		requireGesture: requireGesture,
		initFn:         speaker.Init,
		playFn:         speaker.Play,
	}
}

// Resume opens the speaker if needed
func (d *SpeakerDevice) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	if d.requireGesture && !IsGesture(ctx) {
		return playerrors.NewPlayerError("resume", "", playerrors.ErrAudioBlocked)
	}

	if err := d.initFn(d.sampleRate, d.sampleRate.N(d.bufferSize)); err != nil {
		return playerrors.NewPlayerError("speaker_init", "", err)
	}
	d.initialized = true

	if len(d.pending) > 0 {
		d.playFn(d.pending...)
		d.pending = nil
	}
	return nil
}

// Attach starts s on the speaker, or queues it until Resume
func (d *SpeakerDevice) Attach(s beep.Streamer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		d.pending = append(d.pending, s)
		return
	}
	d.playFn(s)
}

func (d *SpeakerDevice) SampleRate() beep.SampleRate { return d.sampleRate }

func (d *SpeakerDevice) RequiresGesture() bool { return d.requireGesture }
