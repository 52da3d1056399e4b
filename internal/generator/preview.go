package generator

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

// Lipgloss styles for diff output
var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("white")).Bold(true)
	addStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	delStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// contextLines is the number of unchanged lines kept around each change.
const contextLines = 3

// RenderDiff returns a line diff between the current and generated content
// of path, or "" when they are identical.
func RenderDiff(path string, old, newer []byte) string {
	if isBinary(old) || isBinary(newer) {
		return "Binary files differ\n"
	}
	if string(old) == string(newer) {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(old), string(newer))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	width := getTerminalWidth()
	added, removed := 0, 0

	var body strings.Builder
	for i, d := range diffs {
		chunk := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += len(chunk)
			for _, line := range chunk {
				body.WriteString(addStyle.Render("+ "+truncateLine(line, width-2)) + "\n")
			}
		case diffmatchpatch.DiffDelete:
			removed += len(chunk)
			for _, line := range chunk {
				body.WriteString(delStyle.Render("- "+truncateLine(line, width-2)) + "\n")
			}
		case diffmatchpatch.DiffEqual:
			writeContext(&body, chunk, i == 0, i == len(diffs)-1, width)
		}
	}

	var buf strings.Builder
	buf.WriteString(headerStyle.Render("--- "+path) + "\n")
	buf.WriteString(headerStyle.Render("+++ "+path) + "\n")
	buf.WriteString(contextStyle.Render(fmt.Sprintf("@@ +%d -%d @@", added, removed)) + "\n")
	buf.WriteString(body.String())
	return buf.String()
}

// writeContext prints the unchanged lines next to changes and collapses
// the rest.
func writeContext(b *strings.Builder, lines []string, first, last bool, width int) {
	head, tail := contextLines, contextLines
	if first {
		head = 0
	}
	if last {
		tail = 0
	}
	if len(lines) <= head+tail {
		for _, line := range lines {
			b.WriteString(contextStyle.Render("  "+truncateLine(line, width-2)) + "\n")
		}
		return
	}
	for _, line := range lines[:head] {
		b.WriteString(contextStyle.Render("  "+truncateLine(line, width-2)) + "\n")
	}
	b.WriteString(contextStyle.Render(fmt.Sprintf("  ⋯ %d unchanged lines", len(lines)-head-tail)) + "\n")
	for _, line := range lines[len(lines)-tail:] {
		b.WriteString(contextStyle.Render("  "+truncateLine(line, width-2)) + "\n")
	}
}

// isBinary checks for NUL bytes in the first 8KB
func isBinary(data []byte) bool {
	limit := len(data)
	if limit > 8000 {
		limit = 8000
	}
	for i := 0; i < limit; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

// splitLines splits text into lines without the trailing newline
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// truncateLine shortens s to maxWidth runes with an ellipsis
func truncateLine(s string, maxWidth int) string {
	if maxWidth <= 3 || utf8.RuneCountInString(s) <= maxWidth {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxWidth-3]) + "..."
}

// getTerminalWidth returns the terminal width or 120 when not a terminal
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 120
	}
	return width
}
