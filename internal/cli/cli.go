package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/stepgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// flags holds the values of the persistent flags shared by every command.
type flags struct {
	logFormat       string
	logLevel        string
	workers         int
	healthcheckPort int
	history         string
	noColor         bool
}

// config validates the flags into an app.Config.
func (f *flags) config(paths []string) (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		WorkflowPaths:   paths,
		LogFormat:       f.logFormat,
		LogLevel:        f.logLevel,
		WorkerCount:     f.workers,
		HealthcheckPort: f.healthcheckPort,
		HistoryPath:     f.history,
		NoColor:         f.noColor,
	})
	if err != nil {
		return nil, usageError("%v", err)
	}
	slog.Debug("CLI configuration validated.", "config", cfg)
	return cfg, nil
}

// NewRootCommand builds the command tree. Output of every command goes to outW.
func NewRootCommand(outW io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "stepgridgo",
		Short: "Run a workflow of interdependent shell steps concurrently.",
		Long: `stepgridgo runs the steps of a workflow as soon as their dependencies have
succeeded, up to a fixed number at a time. A step whose dependency failed is
never run and is reported as "Dependency Not Met".

Workflows are .hcl or .yaml files, or directories containing them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return cmd.Help()
		},
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&f.logFormat, "log-format", envString("STEPGRID_LOG_FORMAT", "text"), "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&f.logLevel, "log-level", envString("STEPGRID_LOG_LEVEL", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.IntVarP(&f.workers, "workers", "w", envInt("STEPGRID_WORKERS", 0), "Number of steps run at once. 0 uses one per CPU.")
	pf.IntVar(&f.healthcheckPort, "healthcheck-port", envInt("STEPGRID_HEALTHCHECK_PORT", 0), "Port for the HTTP health check server. 0 is disabled.")
	pf.StringVar(&f.history, "history", envString("STEPGRID_HISTORY", ""), "SQLite file runs are recorded in. Empty disables history.")
	pf.BoolVar(&f.noColor, "no-color", os.Getenv("NO_COLOR") != "", "Disable colored output.")

	root.AddCommand(newRunCommand(f, outW))
	root.AddCommand(newValidateCommand(f, outW))
	root.AddCommand(newHistoryCommand(f, outW))
	return root
}

func requirePaths(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageError("at least one workflow file or directory is required")
	}
	return nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError("%q accepts no arguments, got %q", cmd.CommandPath(), args[0])
	}
	return nil
}

func newRunCommand(f *flags, outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run PATH...",
		Short: "Execute a workflow",
		Args:  requirePaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, cfg).Run(cmd.Context())
		},
	}
}

func newValidateCommand(f *flags, outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate PATH...",
		Short: "Check a workflow and its dependency graph without running it",
		Args:  requirePaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(args)
			if err != nil {
				return err
			}
			_, err = app.NewApp(outW, cfg).Validate(cmd.Context())
			return err
		},
	}
}

func newHistoryCommand(f *flags, outW io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, most recent first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return usageError("limit must be positive, got %d", limit)
			}
			// History needs no workflow; "." only satisfies validation.
			cfg, err := f.config([]string{"."})
			if err != nil {
				return err
			}
			return app.NewApp(outW, cfg).History(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list.")
	return cmd
}

// Execute runs the command tree with args and maps every failure to an
// ExitError: 2 for usage and configuration problems, 1 for everything else.
// Usage problems are raised as ExitErrors where they are detected.
func Execute(ctx context.Context, outW io.Writer, args []string) error {
	root := NewRootCommand(outW)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Step failures and runtime errors share exit code 1.
	return &ExitError{Code: 1, Message: err.Error()}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring invalid integer environment variable.", "key", key, "value", v)
		return fallback
	}
	return n
}
