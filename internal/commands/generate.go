package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/redis/go-redis/v9"
	"github.com/simonhull/hatch/internal/client"
	"github.com/simonhull/hatch/internal/config"
	"github.com/simonhull/hatch/internal/flow"
	"github.com/simonhull/hatch/internal/generator"
	"github.com/simonhull/hatch/internal/lock"
	"github.com/simonhull/hatch/internal/metrics"
	"github.com/simonhull/hatch/internal/report"
	"github.com/simonhull/hatch/internal/scaffold"
	"github.com/simonhull/hatch/pkg/input"
	"github.com/simonhull/hatch/pkg/logger"
	"github.com/simonhull/hatch/pkg/output"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func generateCmd(e *env) *cobra.Command {
	var root string
	var dryRun, diff, wait bool

	cmd := &cobra.Command{
		Use:   "generate [description...]",
		Short: "Generate files from a description",
		Long: `Send a description to the generation service and write the returned
files under the workspace root.

With no description arguments, hatch asks for one interactively, or reads
all of stdin when it is not a terminal. An empty description does nothing.

Existing files with identical content are left untouched. Files that are
not part of the response are never removed.

Examples:
  hatch generate "a settings page with dark mode toggle"
  hatch generate --root ../shop_app "product catalogue"
  hatch generate --dry-run --diff "checkout flow"
  hatch generate --wait "orders"     # queue behind a running generation`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if strings.TrimSpace(prompt) == "" {
				var err error
				if prompt, err = readPrompt(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			if diff {
				dryRun = true
			}
			if wait {
				e.cfg.Lock.Mode = "wait"
			}

			locker, closeLocker, err := newLocker(e.cfg)
			if err != nil {
				return err
			}
			defer closeLocker()

			var m *metrics.Metrics
			if e.cfg.Metrics.Textfile != "" {
				m = metrics.New()
			}

			c := client.New(client.Config{
				Endpoint:         e.cfg.Endpoint,
				Timeout:          e.cfg.Timeout,
				MaxResponseBytes: e.cfg.MaxResponseBytes,
			}, client.WithLogger(e.log))

			opts := flow.Options{
				Protect: e.cfg.Protect,
				DryRun:  dryRun,
				Preview: diff,
				Writer:  cmd.OutOrStdout(),
			}
			if diff && isTerminal(cmd.OutOrStdout()) {
				opts.Pager = generator.PageDiff
			}

			runner := flow.New(spinningGenerator{c}, opts,
				flow.WithLocker(locker),
				flow.WithLogger(e.log),
				flow.WithMetrics(m))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			output.Verbose(fmt.Sprintf("Generating into %s via %s (dry-run=%v)", root, c.Endpoint(), dryRun))
			out := runner.Run(ctx, flow.Trigger{Prompt: prompt, Root: root})

			if err := m.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
				e.log.Warn("metrics not written", logger.F("error", err))
			}

			printOutcome(cmd.OutOrStdout(), out)
			if code := out.ExitCode(); code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Workspace root to write files into")
	cmd.Flags().String("endpoint", "", "Generation service URL (overrides config)")
	cmd.Flags().Duration("timeout", 0, "Request timeout (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be written without writing")
	cmd.Flags().BoolVar(&diff, "diff", false, "Preview changes to existing files (implies --dry-run)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for a running generation on the same workspace instead of failing")

	return cmd
}

// spinningGenerator shows a spinner on stderr while the service works.
type spinningGenerator struct {
	c *client.Client
}

func (g spinningGenerator) Generate(ctx context.Context, req scaffold.Request) (*scaffold.Descriptor, error) {
	var desc *scaffold.Descriptor
	err := output.Spin(os.Stderr, "Generating", func() error {
		var err error
		desc, err = g.c.Generate(ctx, req)
		return err
	})
	return desc, err
}

// readPrompt asks for a description on a terminal, or reads r otherwise.
func readPrompt(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok && f == os.Stdin && input.IsInteractive() {
		return input.Prompt("What should hatch generate?", "a login screen with email and password")
	}
	return input.ReadAll(r)
}

// newLocker builds the configured workspace lock. The returned func
// releases backend resources.
func newLocker(cfg *config.Config) (lock.Locker, func(), error) {
	mode, err := lock.ParseMode(cfg.Lock.Mode)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Lock.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return lock.NewRedis(rdb, cfg.Redis.Prefix, cfg.Lock.TTL, mode), func() { rdb.Close() }, nil
	default:
		return lock.NewLocal(mode), func() {}, nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printOutcome reports the verdict: rendered markdown on a terminal,
// plain styled lines otherwise.
func printOutcome(w io.Writer, out report.Outcome) {
	if out.IsInputError() {
		output.Info(out.Message())
		return
	}

	if isTerminal(w) && out.Kind != report.Aborted {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			if rendered, err := r.Render(out.Markdown()); err == nil {
				fmt.Fprint(w, rendered)
				return
			}
		}
	}

	switch out.Kind {
	case report.AllSucceeded:
		output.Success(out.Message())
	case report.PartialFailure:
		output.Warn(out.Message())
		for _, f := range out.Failed {
			output.Step(fmt.Sprintf("%s: %v", f.Path, f.Err))
		}
	default:
		output.Error(out.Message())
		for _, f := range out.Failed {
			output.Step(fmt.Sprintf("%s: %v", f.Path, f.Err))
		}
	}
}

func pingCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the generation service is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(client.Config{Endpoint: e.cfg.Endpoint, Timeout: pingTimeout(e.cfg.Timeout)},
				client.WithLogger(e.log))

			status, err := c.Ping(cmd.Context())
			if err != nil {
				return err
			}
			output.Success(fmt.Sprintf("%s is up: %s", c.Endpoint(), status))
			return nil
		},
	}
	cmd.Flags().String("endpoint", "", "Generation service URL (overrides config)")
	cmd.Flags().Duration("timeout", 0, "Request timeout (overrides config)")
	return cmd
}

// pingTimeout caps health checks well below the generation timeout.
func pingTimeout(d time.Duration) time.Duration {
	if d > 10*time.Second {
		return 10 * time.Second
	}
	return d
}
