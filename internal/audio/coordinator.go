package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"

	"github.com/jscyril/mileage_mafia/api"
	"github.com/jscyril/mileage_mafia/internal/playlist"
	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
	"github.com/jscyril/mileage_mafia/pkg/events"
)

// Options wires a Coordinator to its session-wide resources
type Options struct {
	Ambience      Channel
	Music         Channel
	Effects       *EffectsBus
	Device        Device
	Playlist      *playlist.Registry
	AmbienceTrack api.Track
	Volume        float64
	Bus           *events.EventBus
	Logger        *slog.Logger
	// TickInterval is how often Run publishes position updates
	TickInterval time.Duration
}

// Coordinator is the only component that decides which channel is audible.
// Play requests are fenced by a monotonic operation id: when a slow play
// completes after a newer play, pause or stop was issued, its result is
// dropped.
type Coordinator struct {
	ambience      Channel
	music         Channel
	effects       *EffectsBus
	device        Device
	tracks        *playlist.Registry
	ambienceTrack api.Track
	bus           *events.EventBus
	log           *slog.Logger
	tick          time.Duration

	mu       sync.Mutex
	mode     api.Mode
	master   float64
	unlocked bool
	blocked  bool
	playing  bool
	index    int
	op       uint64

	// cancels the context of the play started by the current op
	cancelPlay context.CancelFunc

	// intent of the latest operation, consulted by superseded plays
	wantPlaying bool
	rewind      bool
}

// NewCoordinator loads the ambience track and the first playlist entry
// without starting either.
func NewCoordinator(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	tracks := opts.Playlist
	if tracks == nil {
		tracks, _ = playlist.NewRegistry(nil)
	}

	c := &Coordinator{
		ambience:      opts.Ambience,
		music:         opts.Music,
		effects:       opts.Effects,
		device:        opts.Device,
		tracks:        tracks,
		ambienceTrack: opts.AmbienceTrack,
		bus:           opts.Bus,
		log:           logger,
		tick:          tick,
		mode:          api.ModeAmbience,
		master:        clamp01(opts.Volume),
	}

	c.ambience.Load(c.ambienceTrack.Source, c.ambienceTrack.Loop)
	if t, err := c.tracks.TrackAt(0); err == nil {
		c.music.Load(t.Source, t.Loop)
	}
	c.applyVolumesLocked()
	return c
}

// SetForeground changes which channel is audible. It never plays or pauses.
func (c *Coordinator) SetForeground(mode api.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setForegroundLocked(mode)
	c.applyVolumesLocked()
	c.publishStateLocked()
}

// PlayAmbience brings the ambience channel to the foreground and plays it
func (c *Coordinator) PlayAmbience(ctx context.Context) error {
	return c.play(ctx, api.ModeAmbience, func(ch Channel) {
		ch.Load(c.ambienceTrack.Source, c.ambienceTrack.Loop)
	})
}

// PlayMusic plays the current playlist entry
func (c *Coordinator) PlayMusic(ctx context.Context) error {
	c.mu.Lock()
	index := c.index
	c.mu.Unlock()
	return c.PlayTrack(ctx, index)
}

// PlayTrack plays playlist entry index, wrapping out-of-range values
func (c *Coordinator) PlayTrack(ctx context.Context, index int) error {
	if c.tracks.Len() == 0 {
		return playerrors.NewPlayerError("play_music", "", playerrors.ErrEmptyPlaylist)
	}
	return c.play(ctx, api.ModeMusic, func(ch Channel) {
		c.index = c.tracks.Wrap(index)
		t, _ := c.tracks.TrackAt(c.index)
		ch.Load(t.Source, t.Loop)
	})
}

// Next plays the following playlist entry, wrapping to the first
func (c *Coordinator) Next(ctx context.Context) error {
	c.mu.Lock()
	next := c.tracks.Next(c.index)
	c.mu.Unlock()
	return c.PlayTrack(ctx, next)
}

// Prev plays the preceding playlist entry, wrapping to the last
func (c *Coordinator) Prev(ctx context.Context) error {
	c.mu.Lock()
	prev := c.tracks.Prev(c.index)
	c.mu.Unlock()
	return c.PlayTrack(ctx, prev)
}

// Pause pauses both channels and supersedes any in-flight play
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	c.wantPlaying, c.rewind = false, false
	c.ambience.Pause()
	c.music.Pause()
	c.playing = false
	c.log.Info("audio_event", "event", "paused", "op", c.op)
	c.publishStateLocked()
}

// Stop pauses both channels, rewinds them and supersedes any in-flight play
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	c.wantPlaying, c.rewind = false, true
	c.stopChannelsLocked()
	c.playing = false
	c.log.Info("audio_event", "event", "stopped", "op", c.op)
	c.publishStateLocked()
}

// Toggle pauses the foreground channel if it is sounding, otherwise plays it
func (c *Coordinator) Toggle(ctx context.Context) error {
	c.mu.Lock()
	mode := c.mode
	sounding := !c.channel(mode).Paused()
	c.mu.Unlock()

	if sounding {
		c.Pause()
		return nil
	}
	return c.play(ctx, mode, nil)
}

// SetVolume sets the master volume routed to the foreground channel
func (c *Coordinator) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.master = clamp01(v)
	c.applyVolumesLocked()
	c.publishStateLocked()
}

// Seek moves the foreground channel
func (c *Coordinator) Seek(pos time.Duration) {
	c.mu.Lock()
	ch := c.channel(c.mode)
	c.mu.Unlock()

	if err := ch.Seek(pos); err != nil {
		c.log.Warn("audio_event", "event", "seek_failed", "error", err)
	}
}

// Unlock must run from a user gesture (see WithGesture). It opens the
// output, plays one silent sample and primes every paused channel with a
// muted play/pause so later programmatic plays are allowed. Once unlocked
// a call only resumes the output again.
func (c *Coordinator) Unlock(ctx context.Context) error {
	c.mu.Lock()
	already := c.unlocked
	c.mu.Unlock()

	if err := c.device.Resume(ctx); err != nil {
		c.mu.Lock()
		c.unlocked = false
		if playerrors.IsBlocked(err) {
			c.blocked = true
			c.bus.Publish(api.AudioEvent{Type: api.EventAudioBlocked, Payload: err})
		}
		c.publishStateLocked()
		c.mu.Unlock()
		c.log.Warn("audio_event", "event", "unlock_failed", "error", err)
		return err
	}
	if already {
		return nil
	}

	c.device.Attach(beep.Silence(1))
	var blockedErr error
	for _, ch := range []Channel{c.ambience, c.music} {
		if err := c.prime(ctx, ch); playerrors.IsBlocked(err) && blockedErr == nil {
			blockedErr = err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyVolumesLocked()
	if blockedErr != nil {
		// an output that is already open does not authorise the channels
		c.unlocked = false
		c.blocked = true
		c.bus.Publish(api.AudioEvent{Type: api.EventAudioBlocked, Payload: blockedErr})
		c.log.Warn("audio_event", "event", "unlock_failed", "error", blockedErr)
		c.publishStateLocked()
		return blockedErr
	}
	c.unlocked = true
	c.blocked = false
	c.log.Info("audio_event", "event", "unlocked")
	c.publishStateLocked()
	return nil
}

// prime authorises a paused channel with a silent play/pause. Channels the
// latest operation wants playing are left alone.
func (c *Coordinator) prime(ctx context.Context, ch Channel) error {
	c.mu.Lock()
	skip := !ch.Paused() || (c.wantPlaying && c.channel(c.mode) == ch)
	if !skip {
		ch.SetVolume(0)
	}
	c.mu.Unlock()
	if skip {
		return nil
	}

	err := ch.Play(ctx)
	if err != nil {
		c.log.Warn("audio_event", "event", "prime_failed", "source", ch.Source(), "error", err)
	}
	ch.Pause()
	return err
}

// Recover re-unlocks, reapplies routing and fixes a "playing but silent"
// desync by replaying the foreground channel. When it returns without a
// newer operation in between, Playing matches the foreground channel.
func (c *Coordinator) Recover(ctx context.Context) error {
	if err := c.Unlock(ctx); err != nil {
		c.log.Warn("audio_event", "event", "recover_unlock_failed", "error", err)
	}

	c.mu.Lock()
	c.applyVolumesLocked()
	mode := c.mode
	ch := c.channel(mode)
	desync := c.playing && ch.Paused()
	if !c.playing && !c.wantPlaying && !ch.Paused() {
		ch.Pause()
	}
	c.mu.Unlock()

	if !desync {
		return nil
	}

	err := playerrors.NewPlayerError("recover", mode.String(), playerrors.ErrDesync)
	c.log.Warn("audio_event", "event", "desync", "mode", mode, "error", err)
	c.bus.Publish(api.AudioEvent{Type: api.EventDesync, Payload: err})
	return c.play(ctx, mode, nil)
}

// Sfx triggers a one-shot effect
func (c *Coordinator) Sfx(name SfxName, opts SfxOptions) {
	if c.effects == nil {
		return
	}
	c.effects.Trigger(name, opts)
}

// PreloadSfx decodes every effect clip
func (c *Coordinator) PreloadSfx(ctx context.Context) error {
	if c.effects == nil {
		return nil
	}
	return c.effects.Preload(ctx)
}

// SetSfxMuted mutes the effects bus
func (c *Coordinator) SetSfxMuted(muted bool) {
	if c.effects == nil {
		return
	}
	c.effects.SetMuted(muted)
}

// State returns a snapshot of the observable playback state
func (c *Coordinator) State() *api.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Run publishes position updates and advances the playlist when a music
// track ends, until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.music.Ended():
			c.channelEnded(ctx, api.ModeMusic)

		case <-c.ambience.Ended():
			c.channelEnded(ctx, api.ModeAmbience)

		case <-ticker.C:
			c.mu.Lock()
			if c.playing {
				c.bus.Publish(api.AudioEvent{
					Type:    api.EventPositionUpdate,
					Payload: c.channel(c.mode).Position(),
				})
			}
			c.mu.Unlock()
		}
	}
}

func (c *Coordinator) channelEnded(ctx context.Context, mode api.Mode) {
	c.mu.Lock()
	current := c.currentLocked(mode)
	foreground := c.mode == mode && c.playing
	c.bus.Publish(api.AudioEvent{Type: api.EventTrackEnded, Payload: current})
	if foreground && mode == api.ModeAmbience {
		c.playing = false
		c.publishStateLocked()
	}
	c.mu.Unlock()

	if foreground && mode == api.ModeMusic {
		if err := c.Next(ctx); err != nil {
			c.log.Warn("audio_event", "event", "advance_failed", "error", err)
		}
	}
}

// play is the fenced play path shared by every operation that starts audio.
// load runs under the lock and may swap the channel's source.
func (c *Coordinator) play(ctx context.Context, mode api.Mode, load func(Channel)) error {
	c.mu.Lock()
	op := c.supersedeLocked()
	playCtx, cancel := context.WithCancel(ctx)
	c.cancelPlay = cancel
	c.wantPlaying, c.rewind = true, false
	c.setForegroundLocked(mode)
	ch := c.channel(mode)
	if load != nil {
		load(ch)
	}
	c.applyVolumesLocked()
	c.mu.Unlock()

	// a superseded play sees playCtx cancelled and leaves ch paused
	err := ch.Play(playCtx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if op != c.op {
		// A newer operation owns the observable state. Undo our side
		// effect if that operation wanted silence.
		if !c.wantPlaying {
			ch.Pause()
			if c.rewind {
				_ = ch.Seek(0)
			}
		}
		c.log.Debug("audio_event", "event", "play_superseded", "op", op, "current", c.op)
		return nil
	}

	if err != nil {
		c.playing = false
		if playerrors.IsBlocked(err) {
			c.blocked = true
			c.unlocked = false
			c.bus.Publish(api.AudioEvent{Type: api.EventAudioBlocked, Payload: err})
		} else {
			c.bus.Publish(api.AudioEvent{Type: api.EventError, Payload: err})
		}
		c.log.Warn("audio_event", "event", "play_failed", "mode", mode, "error", err)
		c.publishStateLocked()
		return err
	}

	c.playing = true
	c.blocked = false
	current := c.currentLocked(mode)
	id := ""
	if current != nil {
		id = current.ID
	}
	c.log.Info("audio_event", "event", "play_started", "mode", mode, "track", id, "op", op)
	c.bus.Publish(api.AudioEvent{Type: api.EventTrackStarted, Payload: current})
	c.publishStateLocked()
	return nil
}

// supersedeLocked starts a new operation and cancels the play still in
// flight for the previous one.
func (c *Coordinator) supersedeLocked() uint64 {
	c.op++
	if c.cancelPlay != nil {
		c.cancelPlay()
		c.cancelPlay = nil
	}
	return c.op
}

func (c *Coordinator) setForegroundLocked(mode api.Mode) {
	c.mode = mode
}

// applyVolumesLocked routes the master volume to the foreground channel and
// silences the other one.
func (c *Coordinator) applyVolumesLocked() {
	fg, bg := c.music, c.ambience
	if c.mode == api.ModeAmbience {
		fg, bg = c.ambience, c.music
	}
	fg.SetVolume(c.master)
	bg.SetVolume(0)
}

func (c *Coordinator) stopChannelsLocked() {
	for _, ch := range []Channel{c.ambience, c.music} {
		ch.Pause()
		if err := ch.Seek(0); err != nil {
			c.log.Warn("audio_event", "event", "rewind_failed", "source", ch.Source(), "error", err)
		}
	}
}

func (c *Coordinator) channel(mode api.Mode) Channel {
	if mode == api.ModeMusic {
		return c.music
	}
	return c.ambience
}

func (c *Coordinator) currentLocked(mode api.Mode) *api.Track {
	if mode == api.ModeMusic {
		t, err := c.tracks.TrackAt(c.index)
		if err != nil {
			return nil
		}
		return &t
	}
	t := c.ambienceTrack
	return &t
}

func (c *Coordinator) stateLocked() *api.PlaybackState {
	ch := c.channel(c.mode)
	current := c.currentLocked(c.mode)
	duration := ch.Duration()
	if duration == 0 && current != nil {
		duration = current.Duration
	}
	return &api.PlaybackState{
		Playing:  c.playing,
		Mode:     c.mode,
		Current:  current,
		Index:    c.index,
		Position: ch.Position(),
		Duration: duration,
		Volume:   c.master,
		Unlocked: c.unlocked,
		Blocked:  c.blocked,
	}
}

func (c *Coordinator) publishStateLocked() {
	c.bus.Publish(api.AudioEvent{Type: api.EventStateChange, Payload: c.stateLocked()})
}
