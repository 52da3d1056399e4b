package flow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/simonhull/hatch/internal/client"
	"github.com/simonhull/hatch/internal/lock"
	"github.com/simonhull/hatch/internal/metrics"
	"github.com/simonhull/hatch/internal/report"
	"github.com/simonhull/hatch/internal/scaffold"
	"github.com/simonhull/hatch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeGenerator struct {
	calls atomic.Int32
	last  scaffold.Request
	mu    sync.Mutex
	files []scaffold.FileEntry
	err   error

	// hold, when set, blocks Generate until it is closed.
	entered chan struct{}
	hold    chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, req scaffold.Request) (*scaffold.Descriptor, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.last = req
	g.mu.Unlock()

	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.hold != nil {
		<-g.hold
	}
	if g.err != nil {
		return nil, g.err
	}
	return &scaffold.Descriptor{Files: g.files}, nil
}

func newRunner(gen Generator, opts ...RunnerOption) *Runner {
	return New(gen, Options{Writer: io.Discard}, opts...)
}

func TestRun_WritesFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "shop_app")
	require.NoError(t, os.Mkdir(root, 0755))

	gen := &fakeGenerator{files: []scaffold.FileEntry{
		{Path: "lib/main.dart", Content: "void main() {}\n"},
		{Path: "lib/feature/widget.dart", Content: "x"},
	}}

	out := newRunner(gen).Run(context.Background(), Trigger{Prompt: "  a shop  ", Root: root})

	assert.Equal(t, report.AllSucceeded, out.Kind)
	assert.Equal(t, []string{"lib/main.dart", "lib/feature/widget.dart"}, out.Succeeded)
	assert.Equal(t, "shop_app", gen.last.SessionID)
	assert.Equal(t, "a shop", gen.last.Prompt)

	content, err := os.ReadFile(filepath.Join(root, "lib", "feature", "widget.dart"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))
}

func TestRun_EmptyPromptNeverCallsService(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGenerator{}

	for _, prompt := range []string{"", "   ", "\n\t"} {
		out := newRunner(gen).Run(context.Background(), Trigger{Prompt: prompt, Root: root})

		var inputErr *scaffold.InputError
		assert.ErrorAs(t, out.Err, &inputErr)
		assert.Equal(t, 0, out.ExitCode())
	}
	assert.Equal(t, int32(0), gen.calls.Load())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_InvalidRootNeverCallsService(t *testing.T) {
	gen := &fakeGenerator{}

	out := newRunner(gen).Run(context.Background(), Trigger{
		Prompt: "app",
		Root:   filepath.Join(t.TempDir(), "missing"),
	})

	var inputErr *scaffold.InputError
	assert.ErrorAs(t, out.Err, &inputErr)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestRun_TraversalRejected(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "app")
	require.NoError(t, os.Mkdir(root, 0755))

	gen := &fakeGenerator{files: []scaffold.FileEntry{
		{Path: "../../etc/passwd", Content: "pwned"},
		{Path: "lib/ok.dart", Content: "ok"},
		{Path: "/etc/passwd", Content: "pwned"},
		{Path: "../sibling.txt", Content: "pwned"},
	}}

	out := newRunner(gen).Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, report.PartialFailure, out.Kind)
	assert.Equal(t, []string{"lib/ok.dart"}, out.Succeeded)
	assert.Equal(t, []string{"../../etc/passwd", "/etc/passwd", "../sibling.txt"}, out.FailedPaths())
	for _, f := range out.Failed {
		var pathErr *scaffold.PathSecurityError
		assert.ErrorAs(t, f.Err, &pathErr)
	}

	_, err := os.Stat(filepath.Join(parent, "sibling.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_EmptyDescriptor(t *testing.T) {
	root := t.TempDir()

	out := newRunner(&fakeGenerator{}).Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, report.AllSucceeded, out.Kind)
	assert.Empty(t, out.Succeeded)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_ServiceErrorAborts(t *testing.T) {
	root := t.TempDir()
	netErr := &scaffold.NetworkError{Endpoint: "http://localhost:8000", Err: errors.New("connection refused")}
	gen := &fakeGenerator{err: netErr}

	out := newRunner(gen).Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, report.Aborted, out.Kind)
	assert.Equal(t, 1, out.ExitCode())
	var target *scaffold.NetworkError
	assert.ErrorAs(t, out.Err, &target)
}

func TestRun_ProtectedPaths(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGenerator{files: []scaffold.FileEntry{
		{Path: ".git/config", Content: "x"},
		{Path: ".env", Content: "SECRET=1"},
		{Path: "lib/a.dart", Content: "a"},
	}}

	out := New(gen, Options{Writer: io.Discard, Protect: []string{".git", ".env"}}).
		Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, []string{"lib/a.dart"}, out.Succeeded)
	assert.Equal(t, []string{".git/config", ".env"}, out.FailedPaths())
}

func TestRun_ResultKeysMatchDescriptorPaths(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGenerator{files: []scaffold.FileEntry{
		{Path: `lib\a.dart`, Content: "first"},
		{Path: `config\app.key`, Content: "k"},
		{Path: "lib/a.dart", Content: "second"},
		{Path: "./README.md", Content: "r"},
	}}

	out := New(gen, Options{Writer: io.Discard, Protect: []string{"*.key"}}).
		Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, []string{"lib/a.dart", "./README.md"}, out.Succeeded)
	assert.Equal(t, []string{"config/app.key"}, out.FailedPaths())

	content, err := os.ReadFile(filepath.Join(root, "lib", "a.dart"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestRun_DryRun(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGenerator{files: []scaffold.FileEntry{{Path: "lib/a.dart", Content: "a"}}}

	out := New(gen, Options{Writer: io.Discard, DryRun: true}).
		Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, report.AllSucceeded, out.Kind)
	assert.True(t, out.DryRun)
	assert.Equal(t, []string{"lib/a.dart"}, out.Succeeded)
	_, err := os.Stat(filepath.Join(root, "lib"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_Idempotent(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGenerator{files: []scaffold.FileEntry{
		{Path: "lib/a.dart", Content: "a"},
		{Path: "test/a_test.dart", Content: "t"},
	}}
	runner := newRunner(gen)

	first := runner.Run(context.Background(), Trigger{Prompt: "x", Root: root})
	second := runner.Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.Equal(t, scaffold.Created, first.Changes["lib/a.dart"])
	assert.Equal(t, scaffold.Unchanged, second.Changes["lib/a.dart"])
}

func TestRun_RejectsConcurrentRunOnSameRoot(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	gen := &fakeGenerator{
		files:   []scaffold.FileEntry{{Path: "a.txt", Content: "a"}},
		entered: make(chan struct{}, 1),
		hold:    make(chan struct{}),
	}
	runner := newRunner(gen, WithLocker(lock.NewLocal(lock.Reject)))

	done := make(chan report.Outcome)
	go func() { done <- runner.Run(context.Background(), Trigger{Prompt: "x", Root: root}) }()
	<-gen.entered

	// The same directory reached through a symlink shares the lock.
	alias := filepath.Join(t.TempDir(), "alias")
	require.NoError(t, os.Symlink(root, alias))
	second := runner.Run(context.Background(), Trigger{Prompt: "x", Root: alias})

	assert.Equal(t, report.Aborted, second.Kind)
	assert.ErrorIs(t, second.Err, lock.ErrWorkspaceBusy)

	close(gen.hold)
	first := <-done
	assert.Equal(t, report.AllSucceeded, first.Kind)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestRun_WaitSerializesRuns(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	var active, maxActive atomic.Int32
	gen := generatorFunc(func(ctx context.Context, req scaffold.Request) (*scaffold.Descriptor, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return &scaffold.Descriptor{Files: []scaffold.FileEntry{{Path: "a.txt", Content: req.Prompt}}}, nil
	})
	runner := newRunner(gen, WithLocker(lock.NewLocal(lock.Wait)))

	var wg sync.WaitGroup
	outcomes := make([]report.Outcome, 4)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = runner.Run(context.Background(), Trigger{Prompt: "run", Root: root})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	for _, out := range outcomes {
		assert.Equal(t, report.AllSucceeded, out.Kind)
	}
}

func TestRun_LogsAndMetrics(t *testing.T) {
	root := t.TempDir()
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()

	gen := &fakeGenerator{files: []scaffold.FileEntry{
		{Path: "../escape", Content: "x"},
		{Path: "a.txt", Content: "a"},
	}}
	out := newRunner(gen, WithLogger(logger.FromZap(zap.New(core))), WithMetrics(m)).
		Run(context.Background(), Trigger{Prompt: "x", Root: root})

	assert.Equal(t, report.PartialFailure, out.Kind)
	assert.Equal(t, 1, logs.FilterMessage("rejected path").Len())
	finished := logs.FilterMessage("run finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "partial", finished[0].ContextMap()["outcome"])

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRun_AgainstService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"files":[{"path":"lib/feature/widget.dart","content":"x"},{"path":"../../etc/passwd","content":"x"}]}`)
	}))
	defer srv.Close()

	root := t.TempDir()
	c := client.New(client.Config{Endpoint: srv.URL, Timeout: 5 * time.Second})

	out := newRunner(c).Run(context.Background(), Trigger{Prompt: "widget", Root: root})

	assert.Equal(t, report.PartialFailure, out.Kind)
	assert.Equal(t, []string{"lib/feature/widget.dart"}, out.Succeeded)
	assert.Equal(t, []string{"../../etc/passwd"}, out.FailedPaths())
	assert.Equal(t, int64(1), c.Calls())
}

type generatorFunc func(ctx context.Context, req scaffold.Request) (*scaffold.Descriptor, error)

func (f generatorFunc) Generate(ctx context.Context, req scaffold.Request) (*scaffold.Descriptor, error) {
	return f(ctx, req)
}
