package input

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAll(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "single line", in: "todo app\n", want: "todo app"},
		{name: "multi line", in: "login feature\nwith bloc\n", want: "login feature\nwith bloc"},
		{name: "whitespace only", in: "  \n\t\n", want: ""},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadAll(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadAll_LongLine(t *testing.T) {
	long := strings.Repeat("x", 2<<20)
	in := "build a todo app\n" + long + "\nwith auth\n"

	got, err := ReadAll(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, got, len(in)-1)
	assert.True(t, strings.HasSuffix(got, "with auth"))
}

func TestReadAll_ReadError(t *testing.T) {
	broken := io.MultiReader(strings.NewReader("partial prompt"), iotest.ErrReader(errors.New("stdin closed")))

	got, err := ReadAll(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin closed")
	assert.Empty(t, got)
}

func typeInto(m promptModel, s string) promptModel {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(promptModel)
	}
	return m
}

func TestPromptModel_Enter(t *testing.T) {
	m := typeInto(newPromptModel("Describe", "hint"), "chat app")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)

	assert.True(t, m.done)
	assert.False(t, m.cancelled)
	assert.NotNil(t, cmd)
	assert.Equal(t, "chat app", m.field.Value())
	assert.Empty(t, m.View())
}

func TestPromptModel_Cancel(t *testing.T) {
	m := typeInto(newPromptModel("Describe", "hint"), "abc")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(promptModel)

	assert.True(t, m.cancelled)
}

func TestPromptModel_View(t *testing.T) {
	m := newPromptModel("Describe your project", "Todo app")
	view := m.View()

	assert.Contains(t, view, "Describe your project")
	assert.Contains(t, view, "[Enter] Generate")
}
