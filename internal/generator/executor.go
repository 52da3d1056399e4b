package generator

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/simonhull/hatch/internal/scaffold"
)

// ExecuteOptions configures execution behavior
type ExecuteOptions struct {
	DryRun  bool
	Preview bool      // In dry runs, show a diff for files that would be overwritten
	Writer  io.Writer // Where to write output (defaults to os.Stdout)

	// Pager, when set, receives each preview diff instead of Writer.
	Pager func(path, diff string) error
}

// Execute runs operations in order and returns the per-operation outcomes.
func Execute(ctx context.Context, ops []Operation, opts ExecuteOptions) *scaffold.Result {
	res := scaffold.NewResult()
	ExecuteInto(ctx, ops, opts, res)
	return res
}

// ExecuteInto runs operations in order, recording outcomes into res.
//
// A failing operation is recorded and skipped; it never stops the ones
// after it. ctx is passed through to operations but cancellation does not
// interrupt a run that has started.
func ExecuteInto(ctx context.Context, ops []Operation, opts ExecuteOptions, res *scaffold.Result) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	for _, op := range ops {
		if err := op.Validate(ctx); err != nil {
			res.RecordFailure(op.Target(), err)
			fmt.Fprintf(opts.Writer, "✗ %s: %v\n", op.Target(), err)
			continue
		}

		if opts.DryRun {
			fmt.Fprintf(opts.Writer, "✓ [DRY RUN] %s\n", op.Description())
			if opts.Preview {
				preview(op, opts)
			}
			res.RecordSuccess(op.Target(), changeOf(op))
			continue
		}

		if err := op.Execute(ctx); err != nil {
			res.RecordFailure(op.Target(), err)
			fmt.Fprintf(opts.Writer, "✗ %s: %v\n", op.Target(), err)
			continue
		}
		res.RecordSuccess(op.Target(), changeOf(op))
		fmt.Fprintf(opts.Writer, "✓ %s\n", op.Description())
	}
}

func changeOf(op Operation) scaffold.Change {
	if c, ok := op.(interface{ Change() scaffold.Change }); ok {
		return c.Change()
	}
	return scaffold.Created
}

func preview(op Operation, opts ExecuteOptions) {
	w, ok := op.(*WriteFileOp)
	if !ok || w.Change() != scaffold.Overwritten {
		return
	}
	diff := RenderDiff(w.RelPath, w.Existing(), w.Content)
	if diff == "" {
		return
	}
	if opts.Pager != nil {
		if err := opts.Pager(w.RelPath, diff); err == nil {
			return
		}
	}
	fmt.Fprint(opts.Writer, diff)
}

// Materialize writes each resolved file in order and reports per-file
// outcomes.
func Materialize(ctx context.Context, writes []scaffold.ResolvedWrite, opts ExecuteOptions) *scaffold.Result {
	res := scaffold.NewResult()
	MaterializeInto(ctx, writes, opts, res)
	return res
}

// MaterializeInto is Materialize recording into an existing result, so
// entries rejected earlier in the flow share one result with the writes.
func MaterializeInto(ctx context.Context, writes []scaffold.ResolvedWrite, opts ExecuteOptions, res *scaffold.Result) {
	ops := make([]Operation, 0, len(writes))
	for _, w := range writes {
		ops = append(ops, &WriteFileOp{
			Path:    w.AbsPath,
			RelPath: w.RelPath,
			Content: append([]byte{}, w.Content...),
			Mode:    0644,
		})
	}
	ExecuteInto(ctx, ops, opts, res)
}
