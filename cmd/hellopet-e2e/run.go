package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuitang/hellopet-e2e/internal/artifact"
	"github.com/kuitang/hellopet-e2e/internal/config"
	"github.com/kuitang/hellopet-e2e/internal/errs"
	"github.com/kuitang/hellopet-e2e/internal/runner"
)

type runFlags struct {
	variant   string
	pattern   string
	workers   int
	retries   int
	headed    bool
	goBin     string
	noPublish bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [packages...]",
		Short: "Run the browser suite",
		Example: `  hellopet-e2e run
  PLAYWRIGHT_ENV=fast hellopet-e2e run --run 'TestNavigation'
  hellopet-e2e run --config dev --headed ./tests/browser/...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f.variant)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = f.workers
			}
			if cmd.Flags().Changed("retries") {
				cfg.Retries = f.retries
			}
			if f.headed {
				cfg.Headless = false
			}
			if err := cfg.Validate(); err != nil {
				return errs.Wrap(errs.InvalidArgument, "invalid run configuration", err)
			}
			cfg.PrintStartupSummary()

			reporters, err := runner.NewReporters(cfg, cmd.OutOrStdout())
			if err != nil {
				return errs.Wrap(errs.InvalidArgument, "invalid reporters", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var pub runner.Publisher
			if !f.noPublish {
				if pub, err = publisher(ctx); err != nil {
					return err
				}
			}

			r := runner.New(runner.GoTest{Bin: f.goBin, Stderr: cmd.ErrOrStderr()}, reporters, pub)
			suite, err := r.Run(ctx, cfg, runner.Options{
				Packages: args,
				Run:      f.pattern,
			})
			if err != nil {
				return err
			}
			if !suite.OK() {
				return errTestsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.variant, "config", "", "run configuration (base, ci, dev, debug, fast); default from PLAYWRIGHT_ENV/CI")
	cmd.Flags().StringVar(&f.pattern, "run", "", "go test -run pattern; refused when the configuration forbids focused runs")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "override the worker count")
	cmd.Flags().IntVar(&f.retries, "retries", 0, "override the retry count")
	cmd.Flags().BoolVar(&f.headed, "headed", false, "show the browser window")
	cmd.Flags().StringVar(&f.goBin, "go", "go", "go binary used to run the tests")
	cmd.Flags().BoolVar(&f.noPublish, "no-publish", false, "skip uploading artifacts even when HELLOPET_ARTIFACT_BUCKET is set")
	return cmd
}

func loadConfig(variant string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if variant != "" {
		cfg, err = config.LoadNamed(variant)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, errs.Wrap(errs.InvalidArgument, "load configuration", err)
	}
	return cfg, nil
}

// publisher returns an artifact publisher when a bucket is configured.
func publisher(ctx context.Context) (runner.Publisher, error) {
	ac, err := config.LoadArtifactConfig()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "artifact publishing", err)
	}
	if !ac.Enabled() {
		return nil, nil
	}
	p, err := artifact.NewPublisher(ctx, ac)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "artifact publishing", err)
	}
	return artifact.RunPublisher{Publisher: p}, nil
}
