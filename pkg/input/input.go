// Package input collects the free-text project description for a
// generation run.
//
// On a terminal the prompt is an inline bubbletea text field; when stdin is
// redirected the whole of stdin is used instead, so
// `echo "todo app" | hatch generate` works in scripts.
package input

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// IsInteractive reports whether stdin is attached to a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Prompt asks the user for a line of text. The placeholder is shown greyed
// out until the user types. Cancelling (Esc / Ctrl+C) returns "".
//
// Example:
//
//	prompt, err := input.Prompt("Describe your project or feature idea",
//	    "Todo app with Firebase auth and clean architecture")
func Prompt(message, placeholder string) (string, error) {
	if !IsInteractive() {
		return ReadAll(os.Stdin)
	}

	p := tea.NewProgram(newPromptModel(message, placeholder))
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	m := final.(promptModel)
	if m.cancelled {
		return "", nil
	}
	return strings.TrimSpace(m.field.Value()), nil
}

// ReadAll reads r to EOF and returns the trimmed text. A failed read
// returns an error rather than the part read so far.
func ReadAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// promptModel is the BubbleTea model for the prompt field
type promptModel struct {
	message   string
	field     textinput.Model
	done      bool
	cancelled bool
}

func newPromptModel(message, placeholder string) promptModel {
	field := textinput.New()
	field.Placeholder = placeholder
	field.CharLimit = 4000
	field.Width = 72
	field.Focus()

	return promptModel{
		message: message,
		field:   field,
	}
}

// Init starts the cursor blinking
func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles keyboard input
func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

// View renders the prompt
func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return promptStyle.Render(m.message) + "\n" +
		m.field.View() + "\n" +
		hintStyle.Render("[Enter] Generate    [Esc] Cancel") + "\n"
}
