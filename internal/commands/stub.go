package commands

import (
	"os"
	"os/signal"

	"github.com/simonhull/hatch/internal/stub"
	"github.com/simonhull/hatch/pkg/output"
	"github.com/spf13/cobra"
)

func stubCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a local stand-in generation service",
		Long: `Serve the generation API locally, answering every request with a
rendered fixture instead of model output.

The default fixture is a Flutter clean-architecture feature (data, domain
and presentation layers) named after the first words of the description.

Examples:
  hatch stub
  hatch stub --addr :9000 --fixture ./fixtures/api.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := loadFixture(e.cfg.Stub.Fixture)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			output.Info("Stub service listening on " + e.cfg.Stub.Addr + " (Ctrl+C to stop)")
			return stub.New(fixture, stub.WithLogger(e.log)).ListenAndServe(ctx, e.cfg.Stub.Addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default :8000)")
	cmd.Flags().String("fixture", "", "Fixture YAML to serve instead of the built-in one")
	return cmd
}

func loadFixture(path string) (*stub.Fixture, error) {
	if path == "" {
		return stub.DefaultFixture()
	}
	return stub.LoadFixture(path)
}
