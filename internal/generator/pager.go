package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// pageThreshold is the diff length (in lines) above which PageDiff opens a
// full-screen viewer instead of printing.
const pageThreshold = 20

var borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// ErrShortDiff is returned by PageDiff for diffs that fit on screen; the
// caller prints them inline.
var ErrShortDiff = errors.New("diff is short enough to print")

// PageDiff shows a long diff in a scrollable full-screen viewer.
// Intended as ExecuteOptions.Pager for interactive terminals.
func PageDiff(path, diff string) error {
	if strings.Count(diff, "\n") <= pageThreshold {
		return ErrShortDiff
	}
	p := tea.NewProgram(newDiffViewerModel(path, diff), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to show diff: %w", err)
	}
	return nil
}

// diffViewerModel is the BubbleTea model for showing diffs
type diffViewerModel struct {
	path     string
	diff     string
	viewport viewport.Model
	ready    bool
}

// newDiffViewerModel creates a new diff viewer model
func newDiffViewerModel(path, diff string) diffViewerModel {
	return diffViewerModel{
		path: path,
		diff: diff,
	}
}

// Init initializes the diff viewer
func (m diffViewerModel) Init() tea.Cmd {
	return nil
}

// Update handles keyboard input and window sizing
func (m diffViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc", "enter":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 1
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.diff)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the diff viewer
func (m diffViewerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := borderStyle.Render(fmt.Sprintf("─ Preview: %s ", m.path))
	footer := borderStyle.Render(fmt.Sprintf(" %3.f%%  [↑/↓] Scroll    [q] Continue ", m.viewport.ScrollPercent()*100))
	return title + "\n" + m.viewport.View() + "\n" + footer
}
