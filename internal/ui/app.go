package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/mileage_mafia/api"
	"github.com/jscyril/mileage_mafia/internal/audio"
	"github.com/jscyril/mileage_mafia/internal/config"
	"github.com/jscyril/mileage_mafia/internal/ui/components"
	"github.com/jscyril/mileage_mafia/internal/ui/views"
)

const volumeStep = 0.1

const seekStep = 5 * time.Second

// Controller is the coordinator surface the UI is allowed to use
type Controller interface {
	State() *api.PlaybackState
	PlayAmbience(ctx context.Context) error
	PlayMusic(ctx context.Context) error
	PlayTrack(ctx context.Context, index int) error
	Toggle(ctx context.Context) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	Stop()
	SetVolume(v float64)
	Seek(pos time.Duration)
	Unlock(ctx context.Context) error
	Recover(ctx context.Context) error
	Sfx(name audio.SfxName, opts audio.SfxOptions)
	SetSfxMuted(muted bool)
}

// Model is the main bubbletea model
type Model struct {
	width  int
	height int

	nowPlaying views.NowPlayingView
	tracks     components.TrackList

	ctrl     Controller
	events   <-chan api.AudioEvent
	keys     config.KeyMap
	sfxMuted bool

	ctx    context.Context
	cancel context.CancelFunc
	err    error

	headerStyle lipgloss.Style
}

// TickMsg is sent periodically to refresh the position display
type TickMsg time.Time

// StateUpdateMsg carries a fresh playback state
type StateUpdateMsg struct {
	State *api.PlaybackState
}

// eventMsg wraps an event from the audio bus
type eventMsg struct {
	Event api.AudioEvent
	Open  bool
}

// errMsg reports a failed action
type errMsg struct{ err error }

// NewModel creates a new application model. events may be nil.
func NewModel(ctrl Controller, events <-chan api.AudioEvent, playlist []api.Track, keys config.KeyMap, sfxMuted bool) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		width:      80,
		height:     24,
		nowPlaying: views.NewNowPlayingView(80),
		tracks:     components.NewTrackList(12, 76),
		ctrl:       ctrl,
		events:     events,
		keys:       keys,
		sfxMuted:   sfxMuted,
		ctx:        ctx,
		cancel:     cancel,
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160")).
			MarginBottom(1),
	}
	m.tracks.Title = "Playlist"
	m.tracks.SetItems(playlist)
	m.nowPlaying.SfxMuted = sfxMuted
	m.setState(ctrl.State())
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.listenForEvents())
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// listenForEvents waits for the next audio event
func (m Model) listenForEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev, ok := <-m.events:
			return eventMsg{Event: ev, Open: ok}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// gesture runs fn from a key press: the first one unlocks audio, and every
// one carries the gesture mark so gated playback may start.
func (m Model) gesture(fn func(ctx context.Context) error) tea.Cmd {
	ctx := audio.WithGesture(m.ctx)
	st := m.ctrl.State()
	needsUnlock := st == nil || !st.Unlocked
	ctrl := m.ctrl

	return func() tea.Msg {
		if needsUnlock {
			_ = ctrl.Unlock(ctx)
		}
		if fn != nil {
			if err := fn(ctx); err != nil {
				return errMsg{err}
			}
		}
		return StateUpdateMsg{State: ctrl.State()}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.nowPlaying.Width = msg.Width
		m.nowPlaying.ProgressBar.Width = msg.Width - 8
		m.tracks.Width = msg.Width - 4
		m.tracks.Height = msg.Height - 14
		return m, nil

	case TickMsg:
		m.setState(m.ctrl.State())
		return m, tickCmd()

	case StateUpdateMsg:
		m.err = nil
		m.setState(msg.State)
		return m, nil

	case eventMsg:
		if !msg.Open {
			return m, nil
		}
		if msg.Event.Type == api.EventError {
			if err, ok := msg.Event.Payload.(error); ok {
				m.err = err
			}
		}
		m.setState(m.ctrl.State())
		return m, m.listenForEvents()

	case errMsg:
		m.err = msg.err
		m.setState(m.ctrl.State())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	st := m.ctrl.State()

	switch key := msg.String(); key {
	case k.Quit, "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case k.PlayPause:
		return m, m.gesture(m.ctrl.Toggle)

	case k.Ambience:
		return m, m.gesture(m.ctrl.PlayAmbience)

	case k.Music:
		return m, m.gesture(m.ctrl.PlayMusic)

	case k.Next:
		return m, m.gesture(m.ctrl.Next)

	case k.Previous:
		return m, m.gesture(m.ctrl.Prev)

	case k.Stop:
		return m, m.gesture(func(context.Context) error {
			m.ctrl.Stop()
			return nil
		})

	case k.VolumeUp, "=":
		v := st.Volume + volumeStep
		return m, m.gesture(func(context.Context) error {
			m.ctrl.SetVolume(v)
			return nil
		})

	case k.VolumeDown:
		v := st.Volume - volumeStep
		return m, m.gesture(func(context.Context) error {
			m.ctrl.SetVolume(v)
			return nil
		})

	case k.SeekForward, k.SeekBack:
		pos := st.Position + seekStep
		if key == k.SeekBack {
			pos = st.Position - seekStep
		}
		return m, m.gesture(func(context.Context) error {
			m.ctrl.Seek(pos)
			return nil
		})

	case k.Recover:
		return m, m.gesture(m.ctrl.Recover)

	case k.MuteSfx:
		m.sfxMuted = !m.sfxMuted
		m.nowPlaying.SfxMuted = m.sfxMuted
		muted := m.sfxMuted
		return m, m.gesture(func(context.Context) error {
			m.ctrl.SetSfxMuted(muted)
			return nil
		})

	case "enter":
		index := m.tracks.Selected
		ctrl := m.ctrl
		return m, m.gesture(func(ctx context.Context) error {
			ctrl.Sfx(audio.SfxConfirm, audio.DefaultSfxOptions())
			return ctrl.PlayTrack(ctx, index)
		})

	case "up", "down", "k", "j", "home", "end":
		m.tracks, _ = m.tracks.Update(msg)
		ctrl := m.ctrl
		return m, m.gesture(func(context.Context) error {
			opts := audio.DefaultSfxOptions()
			opts.Volume = 0.4
			opts.Rate = audio.Range{Min: 0.95, Max: 1.05}
			ctrl.Sfx(audio.SfxHover, opts)
			return nil
		})
	}

	// any other key still counts as the unlocking gesture
	return m, m.gesture(nil)
}

func (m *Model) setState(st *api.PlaybackState) {
	m.nowPlaying.SetState(st)
	if st != nil && st.Mode == api.ModeMusic {
		m.tracks.Playing = st.Index
	} else {
		m.tracks.Playing = -1
	}
}

// View renders the UI
func (m Model) View() string {
	sb := m.headerStyle.Render("MILEAGE MAFIA · radio")
	sb += "\n"
	sb += m.nowPlaying.View()
	sb += "\n"
	sb += m.tracks.View()

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
		sb += "\n" + errorStyle.Render("Error: "+m.err.Error())
	}
	return sb
}

// Run starts the bubbletea program
func Run(ctrl Controller, events <-chan api.AudioEvent, playlist []api.Track, keys config.KeyMap, sfxMuted bool) error {
	model := NewModel(ctrl, events, playlist, keys, sfxMuted)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
