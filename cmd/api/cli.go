package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coproportal/imageopt/internal/optimizer"
	"github.com/coproportal/imageopt/internal/watch"
)

func runOptimize(cmd *cobra.Command, args []string) error {
	outdir, _ := cmd.Flags().GetString("out")
	placeholder, _ := cmd.Flags().GetBool("placeholder")

	opts := optimizerOptions(cfg.Optimize)
	opts.Placeholder = opts.Placeholder || placeholder

	return optimizeFiles(cmd.Context(), optimizer.New(opts), args, outdir, cmd.OutOrStdout())
}

// optimizeFiles processes every file, prints one YAML report for the batch
// and fails if any file failed
func optimizeFiles(ctx context.Context, opt *optimizer.Optimizer, files []string, outdir string, out io.Writer) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	reports := make([]optimizer.Report, 0, len(files))
	failed := 0
	for _, f := range files {
		report, err := watch.ProcessFile(ctx, opt, f, outdir)
		if err != nil {
			log.Error().Err(err).Str("file", f).Msg("failed to optimize")
			report.Error = err.Error()
			failed++
		}
		reports = append(reports, report)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(args[0], args[1], optimizer.New(optimizerOptions(cfg.Optimize)))
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
