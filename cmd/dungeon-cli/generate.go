package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/config"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/output"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/pipeline"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	request      requestFlags
	outDir       string
	pollInterval time.Duration
	maxPolls     int
	timeout      time.Duration
	catalogPath  string
	embedImages  bool
}

func newGenerateCmd(app *cli) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dungeon and write its images and budgeted rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, app, opts)
		},
	}

	opts.request.register(cmd.Flags())
	cmd.Flags().StringVar(&opts.outDir, "out", "", "output directory (default from config)")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 0, "wait between status checks")
	cmd.Flags().IntVar(&opts.maxPolls, "max-polls", 0, "maximum status checks")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "overall deadline for the run, 0 for none")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "monster catalog JSON; enables encounter population")
	cmd.Flags().BoolVar(&opts.embedImages, "embed-images", false, "also inline both images as base64 in the JSON")
	return cmd
}

// applyOverrides merges the command's flags into cfg
func (o *generateOptions) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	o.request.applyTo(cmd.Flags(), &cfg.Generation)

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Directory = o.outDir
	}
	if flags.Changed("poll-interval") {
		cfg.Donjon.PollInterval = o.pollInterval
	}
	if flags.Changed("max-polls") {
		cfg.Donjon.MaxPollAttempts = o.maxPolls
	}
	if flags.Changed("catalog") {
		cfg.Catalog.Path = o.catalogPath
	}
	if flags.Changed("embed-images") {
		cfg.Output.EmbedImages = o.embedImages
	}
}

func runGenerate(cmd *cobra.Command, app *cli, opts *generateOptions) error {
	cfg, appLogger, err := app.load()
	if err != nil {
		return err
	}
	defer appLogger.Close()

	opts.applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	runner, err := pipeline.FromConfig(cfg, appLogger.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	result, err := runner.Run(ctx, cfg.Generation)
	if err != nil {
		if stage := domain.StageOf(err); stage != "" {
			appLogger.Error("Generation failed", slog.String("stage", stage), slog.String("error", err.Error()))
		}
		return err
	}

	files, err := output.NewWriter(cfg.Output.Directory, cfg.Output.EmbedImages, appLogger.Logger).Write(result)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (seed %s)\n", result.Request.Name, result.Request.Seed)
	fmt.Fprintf(out, "rooms: %d, total xp: %d\n", len(result.Rooms), result.TotalXP())
	fmt.Fprintf(out, "map:  %s\nkey:  %s\ndata: %s\n", files.MapPath, files.KeyPath, files.DataPath)
	return nil
}
