package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pomokey/pomokey/internal/selector"
	"github.com/pomokey/pomokey/internal/tasks"
)

// maxLogLines bounds the message log kept in memory.
const maxLogLines = 500

// Operation is a pipeline step run under the progress view.
type Operation func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (any, error)

type progressMsg tasks.ProgressUpdate

type completeMsg struct {
	result any
	err    error
}

// Model renders a running pipeline operation: a spinner while it works, its
// progress messages as they arrive, and a summary once it completes.
type Model struct {
	ctx   context.Context
	title string
	op    Operation

	spinner      spinner.Model
	progressChan chan tasks.ProgressUpdate
	waitCmd      tea.Cmd
	log          []string
	result       any
	err          error
	done         bool
	width        int
	height       int
	help         help.Model
	keys         keyMap
}

// NewModel creates a progress view for the given operation.
func NewModel(ctx context.Context, title string, op Operation) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.spinner

	return &Model{
		ctx:     ctx,
		title:   title,
		op:      op,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the operation and the spinner.
func (m *Model) Init() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)

	resultChan := make(chan completeMsg, 1)
	go func() {
		result, err := m.op(m.ctx, m.progressChan)
		resultChan <- completeMsg{result: result, err: err}
		close(m.progressChan)
	}()

	m.waitCmd = func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return <-resultChan
		}
		return progressMsg(update)
	}

	return tea.Batch(m.spinner.Tick, m.waitCmd)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		default:
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case progressMsg:
		if msg.Message != "" {
			m.log = append(m.log, msg.Message)
			if len(m.log) > maxLogLines {
				m.log = m.log[len(m.log)-maxLogLines:]
			}
		}
		return m, m.waitCmd

	case completeMsg:
		m.result = msg.result
		m.err = msg.err
		m.done = true
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the spinner, log tail, and final summary.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	for _, line := range m.logTail() {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString("\n")
		b.WriteString(m.renderSummary())
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView(m.keys.FullHelp()[0]))
	} else {
		b.WriteString(fmt.Sprintf("\n%s working...\n\n", m.spinner.View()))
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	return b.String()
}

// logTail returns the log lines that fit the current terminal height.
func (m *Model) logTail() []string {
	visible := m.height - 8
	if visible < 5 {
		visible = 5
	}
	if len(m.log) <= visible {
		return m.log
	}
	return m.log[len(m.log)-visible:]
}

func (m *Model) renderSummary() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("✗ %v", m.err))
	}

	switch result := m.result.(type) {
	case *tasks.LoadResult:
		if result.Cached {
			return styles.ok.Render(fmt.Sprintf("✓ Library unchanged (%d cached tracks)", result.TrackCount))
		}
		return styles.ok.Render(fmt.Sprintf("✓ Loaded %d tracks", result.TrackCount))

	case *tasks.GenerateResult:
		var picks strings.Builder
		for i, pick := range result.Picks {
			picks.WriteString(fmt.Sprintf("\n  %2d. %s %s  %d:%02d", i+1,
				selector.KeyLabel(pick.Key), selector.ModeLabel(pick.Mode),
				pick.DurationMS/60000, pick.DurationMS%60000/1000))
		}
		return styles.ok.Render(fmt.Sprintf("✓ Published %s (%d tracks, seed %d)", result.PlaylistName, result.TrackCount, result.Seed)) + picks.String()
	}

	return styles.ok.Render("✓ Done")
}

// Result returns the finished operation's outcome.
func (m *Model) Result() (any, error) {
	return m.result, m.err
}
