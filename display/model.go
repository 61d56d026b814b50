// Package display renders chord results in the terminal
package display

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/RyanBlaney/sonido-chords/chords"
)

// ResultMsg carries one pipeline result into the UI
type ResultMsg chords.Result

// DoneMsg reports that the pipeline finished
type DoneMsg struct {
	Err error
}

// historySize is the number of past chord changes kept on screen
const historySize = 8

// Model is the Bubbletea model for the live chord view
type Model struct {
	Source string // Shown in the header, e.g. a device or file name

	Latest    chords.Result
	HasResult bool
	History   []chords.Result // Most recent label changes, newest first
	Blocks    uint64
	PeakLevel float64

	StartTime time.Time
	Done      bool
	Err       error

	// Channel for receiving results from the engine
	Updates chan tea.Msg

	Width  int
	Height int
}

// NewModel creates a new UI model
func NewModel(source string) Model {
	return Model{
		Source:    source,
		StartTime: time.Now(),
		Updates:   make(chan tea.Msg, 64),
	}
}

// Init starts listening for results
func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case ResultMsg:
		m = m.apply(chords.Result(msg))
		return m, waitForUpdate(m.Updates)

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// apply folds a result into the model
func (m Model) apply(r chords.Result) Model {
	m.Blocks++
	m.PeakLevel = max(m.PeakLevel, r.Level)
	if r.Changed && m.HasResult {
		m.History = append([]chords.Result{m.Latest}, m.History...)
		if len(m.History) > historySize {
			m.History = m.History[:historySize]
		}
	}
	m.Latest = r
	m.HasResult = true
	return m
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderSummary(m)
	}
	return renderLiveView(m)
}

// waitForUpdate returns a command that waits for the next engine message
func waitForUpdate(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{}
		}
		return msg
	}
}

// Send forwards a result to the UI, dropping it if the UI is behind
func (m Model) Send(r chords.Result) {
	select {
	case m.Updates <- ResultMsg(r):
	default:
	}
}
