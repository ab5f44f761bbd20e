package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// refreshInterval is how often the view polls scan progress.
const refreshInterval = 100 * time.Millisecond

// recentLogLines is the number of captured log lines shown under the stats.
const recentLogLines = 5

// ErrAborted is returned by Run when the user quits the view.
var ErrAborted = errors.New("scan aborted by user")

// ProgressFunc returns a snapshot of scan progress.
type ProgressFunc func() types.ScanProgress

// ProgressModel is the live view shown while a scan runs.
type ProgressModel struct {
	root      string
	algorithm string
	progress  ProgressFunc
	snapshot  types.ScanProgress
	recent    []logging.LogEntry
	spinner   spinner.Model
	startTime time.Time
	width     int
	done      bool
	aborted   bool
	err       error
}

// tickMsg triggers a progress poll.
type tickMsg time.Time

// DoneMsg is sent when the scan has finished.
type DoneMsg struct {
	Err error
}

// NewProgressModel creates the progress view for a scan of root.
func NewProgressModel(root, algorithm string, progress ProgressFunc) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return ProgressModel{
		root:      root,
		algorithm: algorithm,
		progress:  progress,
		spinner:   s,
		startTime: time.Now(),
		width:     80,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the spinner and the poll loop.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update handles messages.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case DoneMsg:
		m.refresh()
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *ProgressModel) refresh() {
	if m.progress != nil {
		m.snapshot = m.progress()
	}
	if buf := logging.Buffer(); buf != nil {
		m.recent = buf.Last(recentLogLines)
	}
}

// View renders the progress view.
func (m ProgressModel) View() string {
	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var b strings.Builder

	title := titleStyle.Render("dupsweep") + mutedTextStyle.Render(" "+m.algorithm)
	hint := mutedTextStyle.Render("[q to stop]")
	spacing := contentWidth - lipgloss.Width(title) - lipgloss.Width(hint)
	if spacing < 1 {
		spacing = 1
	}
	b.WriteString(title + strings.Repeat(" ", spacing) + hint + "\n")
	b.WriteString(renderDivider(contentWidth) + "\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.done:
		b.WriteString(successTextStyle.Render("Scan complete"))
	default:
		phase := "Hashing"
		if !m.snapshot.WalkComplete {
			phase = "Scanning"
		}
		b.WriteString(fmt.Sprintf("%s %s: %s", m.spinner.View(), phase,
			truncatePath(m.snapshot.CurrentPath, contentWidth-20)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n")

	if len(m.recent) > 0 {
		b.WriteString("\n")
		for _, e := range m.recent {
			line := truncatePath(fmt.Sprintf("%s %s", e.Component, e.Message), contentWidth)
			if e.Level >= logging.LevelWarn {
				b.WriteString(warningTextStyle.Render(line))
			} else {
				b.WriteString(mutedTextStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m ProgressModel) renderStats(totalWidth int) string {
	boxWidth := (totalWidth - 10) / 5
	if boxWidth < 10 {
		boxWidth = 10
	}

	p := m.snapshot
	boxes := []string{
		renderStatBox("Dirs", humanize.Comma(p.DirsScanned), boxWidth),
		renderStatBox("Files", humanize.Comma(p.FilesSeen), boxWidth),
		renderStatBox("Hashed", humanize.Comma(p.FilesHashed), boxWidth),
		renderStatBox("Read", types.FormatSize(p.BytesHashed), boxWidth),
		renderStatBox("Time", formatDuration(time.Since(m.startTime)), boxWidth),
	}
	if p.Warnings > 0 {
		boxes = append(boxes, renderStatBox("Warnings", humanize.Comma(p.Warnings), boxWidth))
	}

	parts := make([]string, 0, len(boxes)*2)
	for i, box := range boxes {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, box)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		statsLabelStyle.Render(label),
		statsValueStyle.Render(value))
	return statsBoxStyle.Width(width).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// Done reports whether the scan finished.
func (m ProgressModel) Done() bool {
	return m.done
}

// Aborted reports whether the user quit the view.
func (m ProgressModel) Aborted() bool {
	return m.aborted
}

// Run shows the progress view on out while scan runs. Quitting the view
// cancels the scan; Run then waits for scan to return and reports
// ErrAborted alongside its error.
func Run(ctx context.Context, out io.Writer, model ProgressModel, scan func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))

	scanErr := make(chan error, 1)
	go func() {
		err := scan(ctx)
		scanErr <- err
		p.Send(DoneMsg{Err: err})
	}()

	final, runErr := p.Run()

	aborted := false
	if fm, ok := final.(ProgressModel); ok {
		aborted = fm.Aborted()
	}
	if aborted || runErr != nil {
		cancel()
	}

	err := <-scanErr
	if aborted {
		return errors.Join(ErrAborted, err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return errors.Join(runErr, err)
	}
	return err
}
