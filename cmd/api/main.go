package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coproportal/imageopt/internal/config"
	"github.com/coproportal/imageopt/internal/optimizer"
)

var (
	rootCmd = &cobra.Command{
		Use:               "imageopt",
		Short:             "Image optimization service for the portal back office",
		PersistentPreRunE: setup,
		RunE:              serve,
		SilenceUsage:      true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  serve,
	}

	optimizeCmd = &cobra.Command{
		Use:   "optimize <file>...",
		Short: "Optimize files and print a YAML report",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runOptimize,
	}

	watchCmd = &cobra.Command{
		Use:   "watch <inbox> <outdir>",
		Short: "Optimize every image dropped into inbox",
		Args:  cobra.ExactArgs(2),
		RunE:  runWatch,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the imageopt version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	cfgFile string
	cfg     *config.Config
	version = "dev"
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")

	optimizeCmd.Flags().StringP("out", "o", ".", "output directory")
	optimizeCmd.Flags().Bool("placeholder", false, "compute a blurhash placeholder")

	rootCmd.AddCommand(serveCmd, optimizeCmd, watchCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("imageopt failed")
		os.Exit(1)
	}
}

// setup loads configuration and configures the global logger
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	setupLogger(cfg.Log)
	return nil
}

func setupLogger(c config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// optimizerOptions turns configuration into pipeline options
func optimizerOptions(c config.OptimizeConfig) optimizer.Options {
	opts := optimizer.DefaultOptions()
	if c.MaxWidth > 0 {
		opts.MaxWidth = c.MaxWidth
	}
	if c.MaxHeight > 0 {
		opts.MaxHeight = c.MaxHeight
	}
	if c.Quality > 0 {
		opts.Quality = c.Quality
	}
	if c.ThresholdKB > 0 {
		opts.Threshold = c.ThresholdKB * 1024
	}
	opts.Placeholder = c.Placeholder
	return opts
}
