package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/simonhull/hatch/internal/scaffold"
)

// Operation represents a file system operation that can be validated and executed.
//
// Validate checks if the operation would succeed without executing it and
// without touching the file system.
//
// Execute performs the actual operation. This should only be called after Validate succeeds.
//
// Description returns a human-readable description for output (e.g., "Create lib/main.dart (234 bytes)").
//
// Target returns the workspace-relative path results are recorded under.
type Operation interface {
	Validate(ctx context.Context) error
	Execute(ctx context.Context) error
	Description() string
	Target() string
}

// WriteFileOp creates or overwrites a file with content.
//
// Validation behavior:
//   - Rejects nil content and content that is not valid UTF-8
//   - Fails if the nearest existing ancestor of the file is not a directory
//   - Fails if the destination is an existing directory
//   - Detects whether the write creates, overwrites or leaves the file unchanged
//   - An existing file that cannot be read is reported as overwritten
//
// Execution behavior:
//   - Creates parent directories if needed
//   - Writes through a temp file in the same directory and renames it into place
//   - Skips the write when the file already has the same content
//   - Keeps the permission bits of a file it overwrites
type WriteFileOp struct {
	Path    string      // Absolute destination
	RelPath string      // Workspace-relative path used in results and output
	Content []byte      // File content (can be empty, must not be nil)
	Mode    fs.FileMode // File permissions (e.g., 0644)

	change   scaffold.Change
	existing []byte
	perm     fs.FileMode // permissions of the file being replaced
}

func (op *WriteFileOp) Validate(ctx context.Context) error {
	if op.Content == nil {
		return &scaffold.IOError{Path: op.RelPath, Op: "encode", Err: errors.New("content is nil")}
	}
	if !utf8.Valid(op.Content) {
		return &scaffold.IOError{Path: op.RelPath, Op: "encode", Err: errors.New("content is not valid UTF-8")}
	}

	if err := checkParentChain(filepath.Dir(op.Path)); err != nil {
		return &scaffold.IOError{Path: op.RelPath, Op: "mkdir", Err: err}
	}

	info, err := os.Stat(op.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		op.change = scaffold.Created
		op.existing = nil
		op.perm = 0
	case err != nil:
		return &scaffold.IOError{Path: op.RelPath, Op: "write", Err: err}
	case info.IsDir():
		return &scaffold.IOError{Path: op.RelPath, Op: "write", Err: fmt.Errorf("%s is a directory", op.RelPath)}
	default:
		op.perm = info.Mode().Perm()
		op.change = scaffold.Overwritten
		op.existing = nil
		// The rename replaces the file without opening it, so a write-only
		// file is still overwritable.
		existing, err := os.ReadFile(op.Path)
		if err != nil {
			return nil
		}
		op.existing = existing
		if bytes.Equal(existing, op.Content) {
			op.change = scaffold.Unchanged
		}
	}
	return nil
}

func (op *WriteFileOp) Execute(ctx context.Context) error {
	dir := filepath.Dir(op.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &scaffold.IOError{Path: op.RelPath, Op: "mkdir", Err: err}
	}
	if op.change == scaffold.Unchanged {
		return nil
	}
	mode := op.Mode
	if op.perm != 0 {
		mode = op.perm
	}
	if err := writeAtomic(op.Path, op.Content, mode); err != nil {
		return &scaffold.IOError{Path: op.RelPath, Op: "write", Err: err}
	}
	return nil
}

func (op *WriteFileOp) Description() string {
	switch op.change {
	case scaffold.Overwritten:
		return fmt.Sprintf("Overwrite %s (%d bytes)", op.RelPath, len(op.Content))
	case scaffold.Unchanged:
		return fmt.Sprintf("Unchanged %s", op.RelPath)
	default:
		return fmt.Sprintf("Create %s (%d bytes)", op.RelPath, len(op.Content))
	}
}

func (op *WriteFileOp) Target() string {
	return op.RelPath
}

// Change reports what Validate determined the write will do.
func (op *WriteFileOp) Change() scaffold.Change {
	return op.change
}

// Existing returns the current file content read during validation, or nil.
func (op *WriteFileOp) Existing() []byte {
	return op.existing
}

// checkParentChain walks up from dir to the first existing path and fails
// if that path is not a directory (e.g. a file sits where a folder is needed).
func checkParentChain(dir string) error {
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s exists and is not a directory", dir)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// writeAtomic writes content to a temp file next to path and renames it
// over path.
func writeAtomic(path string, content []byte, mode fs.FileMode) error {
	if mode == 0 {
		mode = 0644
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hatch-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
