package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cdnjs/png-optimizer/compress"
	"github.com/cdnjs/png-optimizer/metrics"
	"github.com/cdnjs/png-optimizer/optimizer"
	"github.com/cdnjs/png-optimizer/sentry"
	"github.com/cdnjs/png-optimizer/util"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func init() {
	util.Check(sentry.Init())
}

func main() {
	defer sentry.PanicHandler()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "png-optimizer",
		Short: "Losslessly optimize the png files created in the last 24 hours",
		Long: `Recursively scans a directory for png files created in the last 24 hours
and recompresses them in place without altering their pixels.
Results are logged to the console and appended to ` + util.LogFileName + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), dir)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to scan for png files")
	util.Check(cmd.MarkFlagRequired("dir"))

	return cmd
}

func run(ctx context.Context, dir string) error {
	level := zerolog.InfoLevel
	if util.IsDebug() {
		level = zerolog.DebugLevel
	}

	logger, logFile, err := util.NewFileLogger(util.LogFileName, level)
	if err != nil {
		return errors.Wrap(err, "could not initialize logging")
	}
	defer logFile.Close()

	defer sentry.Flush()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = util.ContextWithEntries(ctx, util.GetStandardEntries("", &logger)...)

	engine, optimize := getOptimizer()
	util.Debugf(ctx, "optimizing with %s", engine)

	summary, err := optimizer.NewRunner(optimize).Run(ctx, dir)
	if err != nil {
		util.Errf(ctx, "scan of %s stopped: %s", dir, err)
	}
	util.Debugf(ctx, "%d optimized, %d failed, %d skipped, %d bytes saved",
		summary.Optimized, summary.Failed, summary.Skipped, summary.BytesSaved)

	if metrics.Enabled() {
		publishMetrics(ctx, summary)
	}
	return nil
}

// Selects zopflipng when it is installed, the native optimizer otherwise.
func getOptimizer() (string, optimizer.OptimizeFunc) {
	bin, ok := util.GetZopflipngPath()
	if !ok {
		return "native", compress.Png
	}
	return bin, func(ctx context.Context, file string) (*compress.Stats, error) {
		return compress.ZopfliPng(ctx, bin, file)
	}
}

func publishMetrics(ctx context.Context, summary *optimizer.Summary) {
	for _, send := range []func() error{
		metrics.NewRunCompleted,
		func() error { return metrics.NewImagesAttempted(summary.Attempted) },
		func() error { return metrics.NewImagesFailed(summary.Failed) },
	} {
		if err := send(); err != nil {
			util.Errf(ctx, "failed to publish metrics: %s", err)
		}
	}
}
