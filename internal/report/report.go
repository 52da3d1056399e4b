// Package report turns the per-entry outcomes of a run into a single verdict.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/simonhull/hatch/internal/scaffold"
)

// Kind classifies an Outcome.
type Kind int

const (
	AllSucceeded Kind = iota
	PartialFailure
	TotalFailure
	Aborted
)

func (k Kind) String() string {
	switch k {
	case AllSucceeded:
		return "success"
	case PartialFailure:
		return "partial"
	case TotalFailure:
		return "failure"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Outcome is the final verdict of one generate and materialize cycle.
type Outcome struct {
	Kind      Kind
	Succeeded []string
	Failed    []scaffold.Failure
	Changes   map[string]scaffold.Change
	DryRun    bool

	// Err is the upstream error of an Aborted outcome, unchanged.
	Err error
}

// Summarize classifies a materialization result.
func Summarize(res *scaffold.Result) Outcome {
	if res == nil {
		res = scaffold.NewResult()
	}
	out := Outcome{
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Changes:   res.Changes,
	}
	switch {
	case len(res.Failed) == 0:
		out.Kind = AllSucceeded
	case len(res.Succeeded) == 0:
		out.Kind = TotalFailure
	default:
		out.Kind = PartialFailure
	}
	return out
}

// Abort wraps a flow-aborting error.
func Abort(err error) Outcome {
	return Outcome{Kind: Aborted, Err: err}
}

// IsInputError reports whether the outcome was aborted for missing input.
func (o Outcome) IsInputError() bool {
	var inputErr *scaffold.InputError
	return o.Kind == Aborted && errors.As(o.Err, &inputErr)
}

// ExitCode is 0 for success and for input errors, 1 otherwise.
func (o Outcome) ExitCode() int {
	if o.Kind == AllSucceeded || o.IsInputError() {
		return 0
	}
	return 1
}

// FailedPaths lists the failed relative paths in order.
func (o Outcome) FailedPaths() []string {
	paths := make([]string, len(o.Failed))
	for i, f := range o.Failed {
		paths[i] = f.Path
	}
	return paths
}

// Message returns a one-line summary of the outcome.
func (o Outcome) Message() string {
	verb := "Generated"
	if o.DryRun {
		verb = "Would generate"
	}

	switch o.Kind {
	case AllSucceeded:
		if len(o.Succeeded) == 0 {
			return "Service returned no files; nothing to write."
		}
		return fmt.Sprintf("%s %s successfully.", verb, plural(len(o.Succeeded), "file"))
	case PartialFailure:
		return fmt.Sprintf("%s %s; %d failed: %s",
			verb, plural(len(o.Succeeded), "file"), len(o.Failed), strings.Join(o.FailedPaths(), ", "))
	case TotalFailure:
		return fmt.Sprintf("Generation failed: none of %s could be written.", plural(len(o.Failed), "file"))
	case Aborted:
		if o.IsInputError() {
			return "No input provided."
		}
		return fmt.Sprintf("Generation aborted: %v", o.Err)
	default:
		return "Unknown outcome."
	}
}

// Markdown renders the outcome as a markdown document for terminal display.
func (o Outcome) Markdown() string {
	var b strings.Builder
	b.WriteString("# " + o.Message() + "\n\n")

	if len(o.Succeeded) > 0 {
		b.WriteString("## Written\n\n")
		if o.DryRun {
			b.WriteString("_Dry run: nothing was written._\n\n")
		}
		for _, path := range o.Succeeded {
			fmt.Fprintf(&b, "- `%s` (%s)\n", path, o.Changes[path])
		}
		b.WriteString("\n")
	}

	if len(o.Failed) > 0 {
		b.WriteString("## Failed\n\n")
		for _, f := range o.Failed {
			fmt.Fprintf(&b, "- `%s`: %v\n", f.Path, f.Err)
		}
		b.WriteString("\n")
	}

	if o.Kind == Aborted && !o.IsInputError() {
		fmt.Fprintf(&b, "```\n%v\n```\n", o.Err)
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
