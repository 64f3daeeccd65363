package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders playback position against duration
type ProgressBar struct {
	Width       int
	Current     time.Duration
	Total       time.Duration
	Looping     bool
	FilledStyle lipgloss.Style
	EmptyStyle  lipgloss.Style
	TimeStyle   lipgloss.Style
}

// NewProgressBar creates a new progress bar
func NewProgressBar(width int) ProgressBar {
	return ProgressBar{
		Width:       width,
		FilledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		EmptyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		TimeStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// SetProgress sets the current position
func (p *ProgressBar) SetProgress(current, total time.Duration) {
	p.Current = current
	p.Total = total
}

// Fraction is the played share in [0,1]; 0 while the duration is unknown.
func (p ProgressBar) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Current) / float64(p.Total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// View renders the progress bar
func (p ProgressBar) View() string {
	barWidth := p.Width - 16 // time display
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(float64(barWidth) * p.Fraction())

	var sb strings.Builder
	sb.WriteString(p.FilledStyle.Render(strings.Repeat("━", filled)))
	sb.WriteString(p.EmptyStyle.Render(strings.Repeat("─", barWidth-filled)))
	sb.WriteString(" ")

	total := "--:--"
	if p.Total > 0 {
		total = FormatDuration(p.Total)
	}
	clock := FormatDuration(p.Current) + "/" + total
	if p.Looping {
		clock += " ↻"
	}
	sb.WriteString(p.TimeStyle.Render(clock))
	return sb.String()
}

// FormatDuration formats a duration as MM:SS
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}
