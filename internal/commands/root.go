package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/simonhull/hatch"
	"github.com/simonhull/hatch/internal/config"
	"github.com/simonhull/hatch/pkg/logger"
	"github.com/simonhull/hatch/pkg/output"
	"github.com/spf13/cobra"
)

// env is the state shared by all commands after flag parsing.
type env struct {
	configPath string
	verbose    bool

	cfg      *config.Config
	log      logger.Logger
	logClose io.Closer
}

// annotationCreatesConfig marks commands that may run before their
// --config file exists.
const annotationCreatesConfig = "hatch/creates-config"

// ExitError carries a process exit code out of a command without an
// extra error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// RootCmd creates the root command with all subcommands attached.
func RootCmd() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:   "hatch",
		Short: "Generate project files from a plain-language description",
		Long: `Hatch sends a description of what you want to a generation service and
writes the returned files into your workspace.

Every returned path is checked before anything is written: paths that
escape the workspace or touch protected files are refused, and one bad
file never stops the others.

Examples:
  hatch generate "a login screen with email and password"
  echo "user profile feature" | hatch generate --root ./my_app
  hatch generate --dry-run --diff "orders list"
  hatch stub      # run a local stand-in service on :8000`,
		Version:       hatch.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.teardown()
		},
	}

	cmd.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Enable verbose output for debugging")
	cmd.PersistentFlags().StringVar(&e.configPath, "config", "", "Path to config file (default: ./hatch.yml if present)")

	cmd.AddCommand(generateCmd(e))
	cmd.AddCommand(pingCmd(e))
	cmd.AddCommand(stubCmd(e))
	cmd.AddCommand(configCmd(e))
	cmd.AddCommand(versionCmd())

	return cmd
}

func (e *env) setup(cmd *cobra.Command) error {
	output.SetVerbose(e.verbose)
	output.SetWriter(cmd.OutOrStdout())

	path := e.configPath
	if cmd.Annotations[annotationCreatesConfig] == "true" {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	e.cfg = cfg

	level := logger.ParseLevel(cfg.Log.Level)
	if e.verbose {
		level = logger.LevelDebug
	}
	e.log, e.logClose = logger.New(logger.Options{
		Level:   level,
		Console: cmd.ErrOrStderr(),
		File:    cfg.Log.File,
	})
	logger.SetDefault(e.log)
	e.log.Debug("config loaded",
		logger.F("endpoint", cfg.Endpoint),
		logger.F("timeout", cfg.Timeout),
		logger.F("lock", cfg.Lock.Backend))
	return nil
}

func (e *env) teardown() {
	if e.logClose != nil {
		e.logClose.Close()
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hatch v%s\n", hatch.Version)
		},
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(RootCmd(), os.Args[1:])
}

func run(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	output.Error(err.Error())
	return 1
}
