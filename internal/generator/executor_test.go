package generator_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/simonhull/hatch/internal/generator"
	"github.com/simonhull/hatch/internal/scaffold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(root, rel, content string) scaffold.ResolvedWrite {
	return scaffold.ResolvedWrite{
		RelPath: rel,
		AbsPath: filepath.Join(root, filepath.FromSlash(rel)),
		Content: content,
	}
}

// snapshot returns every regular file under root keyed by slash path.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestMaterialize_NestedFile(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer

	res := generator.Materialize(context.Background(),
		[]scaffold.ResolvedWrite{write(root, "lib/feature/widget.dart", "x")},
		generator.ExecuteOptions{Writer: &buf})

	assert.Equal(t, []string{"lib/feature/widget.dart"}, res.Succeeded)
	assert.Empty(t, res.Failed)

	content, err := os.ReadFile(filepath.Join(root, "lib", "feature", "widget.dart"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))

	for _, dir := range []string{"lib", filepath.Join("lib", "feature")} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.Contains(t, buf.String(), "✓ Create lib/feature/widget.dart (1 bytes)")
}

func TestMaterialize_Empty(t *testing.T) {
	root := t.TempDir()

	res := generator.Materialize(context.Background(), nil, generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	assert.Empty(t, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.Empty(t, snapshot(t, root))
}

func TestMaterialize_Idempotent(t *testing.T) {
	root := t.TempDir()
	writes := []scaffold.ResolvedWrite{
		write(root, "lib/main.dart", "void main() {}\n"),
		write(root, "lib/features/login/login_page.dart", "class LoginPage {}\n"),
		write(root, "README.md", ""),
	}

	first := generator.Materialize(context.Background(), writes, generator.ExecuteOptions{Writer: &bytes.Buffer{}})
	afterFirst := snapshot(t, root)

	var buf bytes.Buffer
	second := generator.Materialize(context.Background(), writes, generator.ExecuteOptions{Writer: &buf})
	afterSecond := snapshot(t, root)

	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.Empty(t, second.Failed)
	assert.Equal(t, afterFirst, afterSecond)
	assert.Len(t, afterSecond, 3)
	for _, path := range second.Succeeded {
		assert.Equal(t, scaffold.Unchanged, second.Changes[path])
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "Unchanged"))
}

func TestMaterialize_Overwrites(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "lib", "a.dart")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("old content that is longer"), 0644))

	res := generator.Materialize(context.Background(),
		[]scaffold.ResolvedWrite{write(root, "lib/a.dart", "new")},
		generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	assert.Equal(t, scaffold.Overwritten, res.Changes["lib/a.dart"])
	content, _ := os.ReadFile(path)
	assert.Equal(t, "new", string(content))
}

func TestMaterialize_NoPruning(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "lib", "stale.dart")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	generator.Materialize(context.Background(),
		[]scaffold.ResolvedWrite{write(root, "lib/fresh.dart", "new")},
		generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	assert.Equal(t, map[string]string{
		"lib/stale.dart": "old",
		"lib/fresh.dart": "new",
	}, snapshot(t, root))
}

func TestMaterialize_PartialFailure(t *testing.T) {
	root := t.TempDir()
	// "lib" is a file, so "lib/b.dart" cannot get its parent directory.
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib"), []byte("not a dir"), 0644))

	var buf bytes.Buffer
	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "a.dart", "a"),
		write(root, "lib/b.dart", "b"),
		write(root, "src/c.dart", "c"),
	}, generator.ExecuteOptions{Writer: &buf})

	assert.Equal(t, []string{"a.dart", "src/c.dart"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "lib/b.dart", res.Failed[0].Path)

	var ioErr *scaffold.IOError
	require.ErrorAs(t, res.Failed[0].Err, &ioErr)
	assert.Equal(t, "mkdir", ioErr.Op)

	files := snapshot(t, root)
	assert.Equal(t, "a", files["a.dart"])
	assert.Equal(t, "c", files["src/c.dart"])
	assert.Contains(t, buf.String(), "✗ lib/b.dart")
}

func TestMaterialize_DestinationIsDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "taken"), 0755))

	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "lib/taken", "x"),
		write(root, "lib/ok.dart", "ok"),
	}, generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	assert.Equal(t, []string{"lib/ok.dart"}, res.Succeeded)
	assert.Equal(t, []string{"lib/taken"}, res.FailedPaths())
}

func TestMaterialize_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.MkdirAll(locked, 0555))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "locked/a.dart", "a"),
		write(root, "open/b.dart", "b"),
	}, generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	assert.Equal(t, []string{"open/b.dart"}, res.Succeeded)
	assert.Equal(t, []string{"locked/a.dart"}, res.FailedPaths())
}

func TestMaterialize_KeepsExistingMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}

	root := t.TempDir()
	gradlew := filepath.Join(root, "android", "gradlew")
	require.NoError(t, os.MkdirAll(filepath.Dir(gradlew), 0755))
	require.NoError(t, os.WriteFile(gradlew, []byte("#!/bin/sh\n"), 0755))

	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "android/gradlew", "#!/bin/sh\nexec java\n"),
		write(root, "README.md", "r"),
	}, generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	require.Empty(t, res.Failed)
	assert.Equal(t, scaffold.Overwritten, res.Changes["android/gradlew"])

	info, err := os.Stat(gradlew)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestMaterialize_OverwritesUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}

	root := t.TempDir()
	target := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0200))

	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "secret.txt", "new"),
	}, generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	require.Empty(t, res.Failed)
	assert.Equal(t, scaffold.Overwritten, res.Changes["secret.txt"])

	require.NoError(t, os.Chmod(target, 0644))
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestMaterialize_PreservesOrder(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer

	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "z.txt", "1"),
		write(root, "a.txt", "2"),
		write(root, "m/n.txt", "3"),
	}, generator.ExecuteOptions{Writer: &buf})

	assert.Equal(t, []string{"z.txt", "a.txt", "m/n.txt"}, res.Succeeded)
	out := buf.String()
	assert.Less(t, strings.Index(out, "z.txt"), strings.Index(out, "a.txt"))
	assert.Less(t, strings.Index(out, "a.txt"), strings.Index(out, "m/n.txt"))
}

func TestMaterialize_DuplicatePathLastWins(t *testing.T) {
	root := t.TempDir()

	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "a.txt", "first"),
		write(root, "a.txt", "second"),
	}, generator.ExecuteOptions{Writer: &bytes.Buffer{}})

	assert.Equal(t, []string{"a.txt"}, res.Succeeded)
	assert.Equal(t, "second", snapshot(t, root)["a.txt"])
}

func TestExecute_DryRun(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("one\ntwo\nthree\n"), 0644))

	var buf bytes.Buffer
	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "a.txt", "one\n2\nthree\n"),
		write(root, "new/b.txt", "b"),
	}, generator.ExecuteOptions{DryRun: true, Preview: true, Writer: &buf})

	assert.Equal(t, []string{"a.txt", "new/b.txt"}, res.Succeeded)

	// Nothing written, no directories created.
	_, err := os.Stat(filepath.Join(root, "new"))
	assert.True(t, os.IsNotExist(err))
	content, _ := os.ReadFile(existing)
	assert.Equal(t, "one\ntwo\nthree\n", string(content))

	out := buf.String()
	assert.Contains(t, out, "[DRY RUN] Overwrite a.txt")
	assert.Contains(t, out, "[DRY RUN] Create new/b.txt")
	assert.Contains(t, out, "- two")
	assert.Contains(t, out, "+ 2")
}

func TestExecute_DryRunDetectsCollisions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib"), nil, 0644))

	res := generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "lib/x/y.dart", "y"),
	}, generator.ExecuteOptions{DryRun: true, Writer: &bytes.Buffer{}})

	assert.Empty(t, res.Succeeded)
	assert.Equal(t, []string{"lib/x/y.dart"}, res.FailedPaths())
}

func TestExecute_Pager(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("old\n"), 0644))

	var paged []string
	var buf bytes.Buffer
	generator.Materialize(context.Background(), []scaffold.ResolvedWrite{
		write(root, "a.txt", "new\n"),
	}, generator.ExecuteOptions{
		DryRun:  true,
		Preview: true,
		Writer:  &buf,
		Pager: func(path, diff string) error {
			paged = append(paged, path)
			return nil
		},
	})

	assert.Equal(t, []string{"a.txt"}, paged)
	assert.NotContains(t, buf.String(), "+ new")
}

func TestWriteFileOp_Validate(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	tests := []struct {
		name       string
		op         *generator.WriteFileOp
		wantError  bool
		wantChange scaffold.Change
		setupFunc  func() error
	}{
		{
			name: "new file",
			op: &generator.WriteFileOp{
				Path:    filepath.Join(tmpDir, "valid.txt"),
				RelPath: "valid.txt",
				Content: []byte("content"),
				Mode:    0644,
			},
			wantChange: scaffold.Created,
		},
		{
			name: "empty content is allowed",
			op: &generator.WriteFileOp{
				Path:    filepath.Join(tmpDir, "empty.txt"),
				RelPath: "empty.txt",
				Content: []byte{},
			},
			wantChange: scaffold.Created,
		},
		{
			name: "nil content fails",
			op: &generator.WriteFileOp{
				Path:    filepath.Join(tmpDir, "nil.txt"),
				RelPath: "nil.txt",
			},
			wantError: true,
		},
		{
			name: "invalid utf-8 fails",
			op: &generator.WriteFileOp{
				Path:    filepath.Join(tmpDir, "bad.txt"),
				RelPath: "bad.txt",
				Content: []byte{0xff, 0xfe, 0xfd},
			},
			wantError: true,
		},
		{
			name: "existing file is overwritten",
			op: &generator.WriteFileOp{
				Path:    filepath.Join(tmpDir, "existing.txt"),
				RelPath: "existing.txt",
				Content: []byte("new content"),
			},
			wantChange: scaffold.Overwritten,
			setupFunc: func() error {
				return os.WriteFile(filepath.Join(tmpDir, "existing.txt"), []byte("old"), 0644)
			},
		},
		{
			name: "identical file is unchanged",
			op: &generator.WriteFileOp{
				Path:    filepath.Join(tmpDir, "same.txt"),
				RelPath: "same.txt",
				Content: []byte("same"),
			},
			wantChange: scaffold.Unchanged,
			setupFunc: func() error {
				return os.WriteFile(filepath.Join(tmpDir, "same.txt"), []byte("same"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setupFunc != nil {
				require.NoError(t, tt.setupFunc())
			}

			err := tt.op.Validate(ctx)
			if tt.wantError {
				var ioErr *scaffold.IOError
				assert.ErrorAs(t, err, &ioErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChange, tt.op.Change())
		})
	}
}
