package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artpar/buildgen/internal/shell/emitter"
	"github.com/artpar/buildgen/internal/shell/journal"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// DefaultManifest is used when no manifest argument is given.
const DefaultManifest = "solution.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// cli holds state shared by the subcommands.
type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	cfg        *Config
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "buildgen",
		Short: "Generate build files for a multi-project C++ solution",
		Long: `buildgen reads a solution manifest (YAML or HCL), resolves project and
library dependencies across every platform and configuration, stages runtime
files into the publish tree and writes build files for the selected backend.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(c.configPath)
			if err != nil {
				return &GeneratorError{Op: "load config", Err: err, ExitCode: ExitConfigError}
			}
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(fmt.Sprintf("buildgen %s (built %s)\n", Version, BuildTime))
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file")

	root.AddCommand(c.generateCmd(), c.planCmd(), c.historyCmd(), c.versionCmd())
	return root
}

func manifestArg(args []string) string {
	if len(args) == 0 {
		return DefaultManifest
	}
	return args[0]
}

func (c *cli) generateCmd() *cobra.Command {
	var opts RunOptions
	cmd := &cobra.Command{
		Use:   "generate [manifest]",
		Short: "Plan, deploy and write build files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Manifest = manifestArg(args)
			logger := SetupLogger(c.cfg, c.stderr)
			g := NewGenerator(c.cfg, logger, c.stdout)

			result, err := g.Generate(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if result.Output.DryRun {
				for _, change := range result.Output.Changes {
					if change.Diff != "" {
						fmt.Fprint(c.stdout, change.Diff)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "build backend (default from config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show what would change without writing or deploying")
	cmd.Flags().BoolVar(&opts.NoDeploy, "no-deploy", false, "skip staging runtime files")
	return cmd
}

func (c *cli) planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [manifest]",
		Short: "Print the resolved build plan as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := SetupLogger(c.cfg, c.stderr)
			g := NewGenerator(c.cfg, logger, c.stderr)

			bp, err := g.Plan(manifestArg(args))
			if err != nil {
				return err
			}
			files, err := emitter.Emit(emitter.NewJSON(), bp)
			if err != nil {
				return &GeneratorError{Op: "render plan", Err: err, ExitCode: ExitPlanError}
			}
			for _, f := range files {
				if _, err := c.stdout.Write(f.Content); err != nil {
					return &GeneratorError{Op: "render plan", Err: err, ExitCode: ExitOutputError}
				}
			}
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs from the journal, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Journal.DSN == "" {
				return &GeneratorError{Op: "history", Err: errors.New("journal.dsn is not configured"), ExitCode: ExitConfigError}
			}
			store, err := journal.NewSQLiteStore(c.cfg.Journal.DSN)
			if err != nil {
				return &GeneratorError{Op: "open journal", Err: err, ExitCode: ExitJournalError}
			}
			defer store.Close()

			if len(args) == 1 {
				return c.showRun(cmd.Context(), store, args[0])
			}
			return c.listRuns(cmd.Context(), store, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", journal.DefaultListOptions().Limit, "number of runs to list")
	return cmd
}

func (c *cli) listRuns(ctx context.Context, store journal.Store, limit int) error {
	runs, err := store.ListRuns(ctx, journal.ListOptions{Limit: limit})
	if err != nil {
		return &GeneratorError{Op: "list runs", Err: err, ExitCode: ExitJournalError}
	}
	for _, r := range runs {
		fmt.Fprintf(c.stdout, "%s  %s  %-9s  %-8s  %s/%s  files=%d copied=%d failed=%d diagnostics=%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Backend,
			r.Solution, r.Platform, r.FilesChanged, r.Copied, r.Failed, r.Diagnostics)
	}
	return nil
}

func (c *cli) showRun(ctx context.Context, store journal.Store, id string) error {
	r, err := store.GetRun(ctx, id)
	if err != nil {
		return &GeneratorError{Op: "show run", Err: err, ExitCode: ExitJournalError}
	}
	fmt.Fprintf(c.stdout, "run %s\n  solution  %s (%s)\n  backend   %s\n  manifest  %s\n  status    %s\n  duration  %s\n",
		r.ID, r.Solution, r.Platform, r.Backend, r.Manifest, r.Status, r.Duration())
	if r.Error != "" {
		fmt.Fprintf(c.stdout, "  error     %s\n", r.Error)
	}

	deployments, err := store.ListDeployments(ctx, id)
	if err != nil {
		return &GeneratorError{Op: "show run", Err: err, ExitCode: ExitJournalError}
	}
	if len(deployments) > 0 {
		fmt.Fprintln(c.stdout, "deployments:")
		for _, d := range deployments {
			fmt.Fprintf(c.stdout, "  %-7s  %s  %s -> %s\n", d.Outcome, d.Configuration, d.SourcePath, d.TargetPath)
		}
	}

	diagnostics, err := store.ListDiagnostics(ctx, id)
	if err != nil {
		return &GeneratorError{Op: "show run", Err: err, ExitCode: ExitJournalError}
	}
	if len(diagnostics) > 0 {
		fmt.Fprintln(c.stdout, "diagnostics:")
		for _, d := range diagnostics {
			fmt.Fprintf(c.stdout, "  %s\n", d)
		}
	}
	return nil
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "buildgen %s (built %s)\n", Version, BuildTime)
		},
	}
}
