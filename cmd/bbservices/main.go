package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bbservices/bbservices/internal/config"
	"github.com/bbservices/bbservices/internal/log"
	"github.com/bbservices/bbservices/internal/model"
	"github.com/bbservices/bbservices/internal/walk"
	"github.com/bbservices/bbservices/internal/workflow"
)

var (
	userConfigPath string // /default/config/path/bbservices on given OS
	configPath     string // actual config file used (if loaded)
	settings       config.Settings

	flagConfigFilePath string // value of --config flag
	flagNow            bool   // value of watch --now flag
)

func init() {
	d, err := config.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = d
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("bbservices failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bbservices",
		Short:        "Runs workflows of commands as chains of services",
		SilenceUsage: true,
		// never print messages
		SilenceErrors: true,
		// parse the settings, setup logging
		PersistentPreRunE: initBBServices,
	}
	rootCmd.SetOut(stdout)

	// root flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is bbservices.yaml in "+userConfigPath+" or in current directory")
	flags.Bool("verbose", false, "verbose logging")
	flags.Int("parallelism", 4, "maximum number of workflows running at once")
	flags.String("format", "json", "report format printed to stdout: json or yaml")

	watchCmd := &cobra.Command{
		Use:   "watch workflow.yaml|dir...",
		Short: "watch runs the workflows on their schedule until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE:  doWatch,
	}
	watchCmd.Flags().BoolVar(&flagNow, "now", false, "run every workflow once on start")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run workflow.yaml|dir...",
			Short: "run executes the workflows once and publishes the reports",
			Args:  cobra.MinimumNArgs(1),
			RunE:  doRun,
		},
		watchCmd,
		&cobra.Command{
			Use:   "validate workflow.yaml|dir...",
			Short: "validate checks the workflow files",
			Args:  cobra.MinimumNArgs(1),
			RunE:  doValidate,
		},
		&cobra.Command{
			Use:   "version",
			Short: "version provide version of a bbservices",
			Run:   doVersion,
		},
	)
	return rootCmd
}

func doVersion(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	info, ok := debug.ReadBuildInfo()
	if !ok {
		_, _ = fmt.Fprintln(out, "bbservices: version info not available")
		return
	}

	if configPath != "" {
		_, _ = fmt.Fprintf(out, "config:     %s\n", configPath)
	}
	_, _ = fmt.Fprintf(out, "bbservices: %s\n", info.Main.Version)
	_, _ = fmt.Fprintf(out, "go:         %s\n", info.GoVersion)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			_, _ = fmt.Fprintf(out, "commit:     %s\n", s.Value)
		case "vcs.time":
			_, _ = fmt.Fprintf(out, "date:       %s\n", s.Value)
		case "vcs.modified":
			_, _ = fmt.Fprintf(out, "dirty:      %s\n", s.Value)
		}
	}
}

func doValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	paths, err := walk.Expand(ctx, args)
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range paths {
		wf, err := loadWorkflow(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d steps)\n", path, wf.Name, len(wf.Steps))
	}
	return errors.Join(errs...)
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("bbservices",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	workflows, err := compile(ctx, args)
	if err != nil {
		return err
	}
	publisher, err := settings.Publisher(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.ErrorContext(ctx, "closing publishers have failed", "error", err)
		}
	}()

	reports, runErr := workflow.RunAll(ctx, settings.Parallelism, workflows...)
	var errs []error
	for _, report := range reports {
		if err := publisher.Publish(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("publishing report of %s: %w", report.Workflow, err))
		}
	}
	return errors.Join(append(errs, runErr)...)
}

func doWatch(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("bbservices",
		slog.String("cmd", "watch"),
		slog.Int("pid", os.Getpid()),
	))

	workflows, err := compile(ctx, args)
	if err != nil {
		return err
	}
	publisher, err := settings.Publisher(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.ErrorContext(ctx, "closing publishers have failed", "error", err)
		}
	}()

	var opts []workflow.SchedulerOption
	if flagNow {
		opts = append(opts, workflow.WithStartImmediately())
	}
	scheduler, err := workflow.NewScheduler(publisher, workflows, opts...)
	if err != nil {
		return err
	}
	return scheduler.Do(ctx)
}

// compile loads the workflow files, directories are searched for *.yaml and
// *.yml files.
func compile(ctx context.Context, args []string) ([]*workflow.Workflow, error) {
	paths, err := walk.Expand(ctx, args)
	if err != nil {
		return nil, err
	}
	var errs []error
	workflows := make([]*workflow.Workflow, 0, len(paths))
	for _, path := range paths {
		def, err := loadWorkflow(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		w, err := workflow.New(*def, workflow.WithDefaultTimeout(settings.Defaults.Timeout))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		workflows = append(workflows, w)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return workflows, nil
}

func loadWorkflow(ctx context.Context, path string) (*model.Workflow, error) {
	wf, err := model.LoadWorkflowFile(path)
	if err != nil {
		for _, d := range model.CueErrDetails(err) {
			slog.ErrorContext(ctx, d.Message, d.Attr("detail"))
		}
		return nil, fmt.Errorf("parsing workflow %s: %w", path, err)
	}
	return wf, nil
}

func initBBServices(cmd *cobra.Command, _ []string) error {
	loader := config.NewLoader(userConfigPath, ".")
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	var err error
	settings, configPath, err = loader.Load(flagConfigFilePath)
	if err != nil {
		return err
	}

	// initialize logging
	slog.SetDefault(log.New(os.Stderr, settings.Verbose))

	slog.Debug("bbservices run", "configPath", configPath)
	slog.Debug("bbservices run", "settings", settings)
	return nil
}
