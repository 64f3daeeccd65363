package audio

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

const testRate = beep.SampleRate(44100)

// fakeDevice records attachments and never touches the speaker
type fakeDevice struct {
	mu             sync.Mutex
	requireGesture bool
	resumed        bool
	resumeErr      error
	resumes        int
	attached       []beep.Streamer
}

func (d *fakeDevice) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	if d.resumeErr != nil {
		return d.resumeErr
	}
	d.resumed = true
	return nil
}

func (d *fakeDevice) Attach(s beep.Streamer) {
	d.mu.Lock()
	d.attached = append(d.attached, s)
	d.mu.Unlock()
}

func (d *fakeDevice) SampleRate() beep.SampleRate { return testRate }

func (d *fakeDevice) RequiresGesture() bool { return d.requireGesture }

// fakeChannel is a scriptable Channel. With hold set, every Play blocks
// until release is called for it.
type fakeChannel struct {
	mu         sync.Mutex
	source     string
	loop       bool
	volume     float64
	paused     bool
	pos        time.Duration
	playErr    error
	hold       bool
	pending    []chan struct{}
	playCalls  int
	pauseCalls int
	loads      int
	unpauses   int

	started chan struct{}
	ended   chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		volume:  1,
		paused:  true,
		started: make(chan struct{}, 64),
		ended:   make(chan struct{}, 1),
	}
}

func (f *fakeChannel) Load(source string, loop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loop = loop
	if source == f.source {
		return
	}
	f.loads++
	f.source = source
	f.paused = true
	f.pos = 0
}

func (f *fakeChannel) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeChannel) SetVolume(v float64) {
	f.mu.Lock()
	f.volume = v
	f.mu.Unlock()
}

func (f *fakeChannel) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeChannel) Play(ctx context.Context) error {
	f.mu.Lock()
	f.playCalls++
	var gate chan struct{}
	if f.hold {
		gate = make(chan struct{})
		f.pending = append(f.pending, gate)
	}
	f.mu.Unlock()
	f.started <- struct{}{}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.paused = false
	f.unpauses++
	return nil
}

// release unblocks the i-th held Play call
func (f *fakeChannel) release(i int) {
	f.mu.Lock()
	gate := f.pending[i]
	f.mu.Unlock()
	close(gate)
}

func (f *fakeChannel) Pause() {
	f.mu.Lock()
	f.pauseCalls++
	f.paused = true
	f.mu.Unlock()
}

// interrupt pauses behind the coordinator's back, like an OS audio
// interruption that fires no event.
func (f *fakeChannel) interrupt() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeChannel) Seek(pos time.Duration) error {
	f.mu.Lock()
	f.pos = pos
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeChannel) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeChannel) Duration() time.Duration { return 0 }

func (f *fakeChannel) Ended() <-chan struct{} { return f.ended }

func (f *fakeChannel) counts() (plays, pauses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playCalls, f.pauseCalls
}

// constant yields n stereo samples of value v
func constant(n int, v float64) beep.Streamer {
	remaining := n
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if remaining <= 0 {
			return 0, false
		}
		k := len(samples)
		if k > remaining {
			k = remaining
		}
		for i := 0; i < k; i++ {
			samples[i] = [2]float64{v, v}
		}
		remaining -= k
		return k, true
	})
}

// writeWav writes n samples of value v as a 16-bit stereo wav file
func writeWav(t *testing.T, dir, name string, n int, v float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, constant(n, v), format); err != nil {
		t.Fatal(err)
	}
	return path
}
