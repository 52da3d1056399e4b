// Package generator materializes a resolved scaffold onto disk.
//
// # Operations
//
// Each file is a WriteFileOp. Operations are validated and executed one at
// a time, strictly in the order given; a failure is recorded against that
// operation's path and the run moves on to the next one:
//
//	res := generator.Materialize(ctx, writes, generator.ExecuteOptions{})
//	for _, f := range res.Failed {
//	    fmt.Println(f.Path, f.Err)
//	}
//
// Parent directories are created as needed and existing files are
// overwritten through a temp file and rename, so a failed write never
// leaves a truncated file behind. Files that already hold the generated
// content are left untouched and reported as unchanged. Nothing is ever
// deleted.
//
// # Dry runs
//
// With DryRun set, operations are validated and described but nothing is
// written. Preview adds a line diff of every file that would be
// overwritten.
package generator
