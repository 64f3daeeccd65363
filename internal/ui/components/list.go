package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jscyril/mileage_mafia/api"
)

// TrackList is a scrollable list of the playlist with a now-playing marker
type TrackList struct {
	Items    []api.Track
	Selected int
	Playing  int // index of the current track, -1 for none
	Height   int
	Width    int
	Offset   int
	Title    string

	SelectedStyle lipgloss.Style
	NormalStyle   lipgloss.Style
	PlayingStyle  lipgloss.Style
	TitleStyle    lipgloss.Style
}

// NewTrackList creates a new track list
func NewTrackList(height, width int) TrackList {
	return TrackList{
		Playing: -1,
		Height:  height,
		Width:   width,
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("52")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		NormalStyle:  lipgloss.NewStyle().Padding(0, 1),
		PlayingStyle: lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("178")),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160")).
			MarginBottom(1),
	}
}

// SetItems replaces the list items
func (l *TrackList) SetItems(items []api.Track) {
	l.Items = items
	l.Selected = 0
	l.Offset = 0
}

// Update handles cursor movement
func (l TrackList) Update(msg tea.Msg) (TrackList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.Move(-1)
		case "down", "j":
			l.Move(1)
		case "home":
			l.Move(-len(l.Items))
		case "end":
			l.Move(len(l.Items))
		}
	}
	return l, nil
}

// Move shifts the selection by delta, clamped to the list
func (l *TrackList) Move(delta int) {
	if len(l.Items) == 0 {
		return
	}
	l.Selected += delta
	if l.Selected < 0 {
		l.Selected = 0
	}
	if l.Selected >= len(l.Items) {
		l.Selected = len(l.Items) - 1
	}

	visible := l.visibleRows()
	if l.Selected < l.Offset {
		l.Offset = l.Selected
	} else if l.Selected >= l.Offset+visible {
		l.Offset = l.Selected - visible + 1
	}
}

func (l TrackList) visibleRows() int {
	if l.Height-2 < 1 {
		return 1
	}
	return l.Height - 2
}

// View renders the track list
func (l TrackList) View() string {
	var sb strings.Builder

	if l.Title != "" {
		sb.WriteString(l.TitleStyle.Render(l.Title))
		sb.WriteString("\n")
	}
	if len(l.Items) == 0 {
		sb.WriteString(l.NormalStyle.Render("No tracks"))
		return sb.String()
	}

	end := l.Offset + l.visibleRows()
	if end > len(l.Items) {
		end = len(l.Items)
	}

	for i := l.Offset; i < end; i++ {
		t := l.Items[i]
		marker := "  "
		if i == l.Playing {
			marker = "♪ "
		}
		line := fmt.Sprintf("%s%2d. %s", marker, i+1, t.Title)
		if t.Artist != "" {
			line += " · " + t.Artist
		}
		if l.Width > 5 && len(line) > l.Width-2 {
			line = line[:l.Width-5] + "..."
		}

		switch {
		case i == l.Selected:
			sb.WriteString(l.SelectedStyle.Render(line))
		case i == l.Playing:
			sb.WriteString(l.PlayingStyle.Render(line))
		default:
			sb.WriteString(l.NormalStyle.Render(line))
		}
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
