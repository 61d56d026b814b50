package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/chords"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	chordBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 2).
			Width(44).
			Align(lipgloss.Center)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#3C3C3C")).
			Padding(0, 1)
)

// statusColors maps each chord status to its label color
var statusColors = map[tonal.ChordStatus]lipgloss.Color{
	tonal.StatusConfirmed:     lipgloss.Color("#00AA00"),
	tonal.StatusHeld:          lipgloss.Color("#5FAFFF"),
	tonal.StatusLowConfidence: lipgloss.Color("#FFA500"),
	tonal.StatusUnrecognized:  lipgloss.Color("#A40000"),
	tonal.StatusInsufficient:  lipgloss.Color("#888888"),
}

func labelStyle(status tonal.ChordStatus) lipgloss.Style {
	color, ok := statusColors[status]
	if !ok {
		color = lipgloss.Color("#888888")
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

// renderLiveView renders the main listening view
func renderLiveView(m Model) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Sonido Chords"))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(fmt.Sprintf("Listening to %s", m.Source)))
	b.WriteString("\n\n")

	if !m.HasResult {
		b.WriteString("Waiting for audio...\n")
		return b.String()
	}

	r := m.Latest
	b.WriteString(chordBox.Render(labelStyle(r.Status).Render(r.Label)))
	b.WriteString("\n\n")

	b.WriteString(renderNotes(r.Notes))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Confidence %s %.2f\n", renderBar(r.Score, 30), r.Score))
	b.WriteString(fmt.Sprintf("Level      %s %.1f dB\n", renderBar(r.Level, 30), r.LevelDB))
	b.WriteString(fmt.Sprintf("Signal     %s\n", renderWaveform(r.Envelope)))
	if r.Key != "" {
		b.WriteString(fmt.Sprintf("Key        %s %s\n", r.Key,
			subtleStyle.Render(fmt.Sprintf("(relative %s, clarity %.2f)", r.Relative, r.KeyClarity))))
	}
	b.WriteString("\n")

	if len(m.History) > 0 {
		b.WriteString(subtleStyle.Render("Recent"))
		b.WriteString("\n")
		for _, h := range m.History {
			b.WriteString(fmt.Sprintf("  %s\n", labelStyle(h.Status).Render(h.Label)))
		}
		b.WriteString("\n")
	}

	b.WriteString(subtleStyle.Render(fmt.Sprintf("%d blocks | %s | q to quit",
		m.Blocks, time.Since(m.StartTime).Truncate(time.Second))))
	return b.String()
}

// renderSummary renders the final view after the pipeline stops
func renderSummary(m Model) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sonido Chords"))
	b.WriteString("\n\n")
	if m.Err != nil {
		b.WriteString(labelStyle(tonal.StatusUnrecognized).Render(fmt.Sprintf("Stopped: %v", m.Err)))
		b.WriteString("\n")
	}
	if m.HasResult {
		b.WriteString(fmt.Sprintf("Last chord: %s\n", m.Latest.Label))
		if m.Latest.Key != "" {
			b.WriteString(fmt.Sprintf("Key: %s\n", m.Latest.Key))
		}
	}
	b.WriteString(fmt.Sprintf("Analyzed %d blocks in %s\n", m.Blocks, time.Since(m.StartTime).Truncate(time.Millisecond)))
	return b.String()
}

func renderNotes(notes []string) string {
	if len(notes) == 0 {
		return subtleStyle.Render("no notes")
	}
	parts := make([]string, len(notes))
	for i, n := range notes {
		parts[i] = noteStyle.Render(n)
	}
	return strings.Join(parts, " ")
}

// renderBar renders a value in [0,1] as a fixed-width bar
func renderBar(value float64, width int) string {
	value = min(max(value, 0), 1)
	filled := int(value * float64(width))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

var waveGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// renderWaveform draws one glyph per envelope column
func renderWaveform(envelope []float64) string {
	var b strings.Builder
	for _, v := range envelope {
		v = min(max(v, 0), 1)
		b.WriteRune(waveGlyphs[int(v*float64(len(waveGlyphs)-1))])
	}
	return b.String()
}

// FormatResult renders a one-line plain description of a result
func FormatResult(r chords.Result) string {
	notes := "-"
	if len(r.Notes) > 0 {
		notes = strings.Join(r.Notes, " ")
	}
	return fmt.Sprintf("%-32s notes: %-18s score: %.2f", r.Label, notes, r.Score)
}
