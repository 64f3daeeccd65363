package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/mileage_mafia/api"
	"github.com/jscyril/mileage_mafia/internal/ui/components"
)

// UnlockHint is shown until audio has been unlocked by a key press
const UnlockHint = "press any key once to enable audio"

// NowPlayingView displays the coordinator's playback state
type NowPlayingView struct {
	Width       int
	State       *api.PlaybackState
	SfxMuted    bool
	ProgressBar components.ProgressBar

	TitleStyle    lipgloss.Style
	ArtistStyle   lipgloss.Style
	ModeStyle     lipgloss.Style
	HintStyle     lipgloss.Style
	ControlsStyle lipgloss.Style
	BorderStyle   lipgloss.Style
}

// NewNowPlayingView creates a new now-playing view
func NewNowPlayingView(width int) NowPlayingView {
	return NowPlayingView{
		Width:       width,
		ProgressBar: components.NewProgressBar(width - 8),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")),
		ArtistStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
		ModeStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("52")).
			Padding(0, 1),
		HintStyle: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("214")),
		ControlsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("88")).
			Padding(1, 2),
	}
}

// SetState updates the playback state
func (v *NowPlayingView) SetState(state *api.PlaybackState) {
	v.State = state
	if state == nil {
		return
	}
	v.ProgressBar.SetProgress(state.Position, state.Duration)
	v.ProgressBar.Looping = state.Current != nil && state.Current.Loop
}

// View renders the now-playing panel
func (v NowPlayingView) View() string {
	var sb strings.Builder

	st := v.State
	if st == nil {
		sb.WriteString(v.TitleStyle.Render("♪ Nothing playing"))
	} else {
		status := "⏸"
		if st.Playing {
			status = "▶"
		}
		sb.WriteString(v.ModeStyle.Render(strings.ToUpper(st.Mode.String())))
		sb.WriteString(" ")
		sb.WriteString(status)
		sb.WriteString(" ")
		if st.Current != nil {
			sb.WriteString(v.TitleStyle.Render(st.Current.Title))
			if st.Current.Artist != "" {
				sb.WriteString("  ")
				sb.WriteString(v.ArtistStyle.Render(st.Current.Artist))
			}
		}
		sb.WriteString("\n\n")
		sb.WriteString(v.ProgressBar.View())
		sb.WriteString("\n\n")
		sb.WriteString(fmt.Sprintf("Volume: %s %d%%", renderVolumeBar(st.Volume), int(st.Volume*100+0.5)))
		if v.SfxMuted {
			sb.WriteString("   sfx muted")
		}

		if !st.Unlocked || st.Blocked {
			sb.WriteString("\n")
			sb.WriteString(v.HintStyle.Render(UnlockHint))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(v.ControlsStyle.Render(
		"[Space] Play/Pause  [a] Ambience  [m] Music  [n/p] Next/Prev  [s] Stop  [+/-] Volume  [r] Recover  [q] Quit",
	))

	width := v.Width - 4
	if width < 20 {
		width = 20
	}
	return v.BorderStyle.Width(width).Render(sb.String())
}

// renderVolumeBar renders a ten-step volume bar
func renderVolumeBar(volume float64) string {
	filled := int(volume*10 + 0.5)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	return filledStyle.Render(strings.Repeat("●", filled)) + emptyStyle.Render(strings.Repeat("○", 10-filled))
}
