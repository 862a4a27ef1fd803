package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/MaFalana/HWC-POTREE-API/internal/logging"
	"github.com/MaFalana/HWC-POTREE-API/internal/pipeline"
	"github.com/MaFalana/HWC-POTREE-API/internal/pointcloud"
	"github.com/MaFalana/HWC-POTREE-API/internal/projects"
	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
	"github.com/MaFalana/HWC-POTREE-API/internal/thumbnail"
	"github.com/MaFalana/HWC-POTREE-API/internal/worker"
)

func newServeCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion worker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// One worker per database; the lock keeps a second daemon from
			// competing for the same staging directories.
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "potreed.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return errors.New("another potreed instance is already running")
			}
			defer func() { _ = lock.Unlock() }()

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			projectStore, err := projects.Open(cfg)
			if err != nil {
				return err
			}
			defer projectStore.Close()

			blobs, err := openBlobStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer blobs.Close()

			executor, err := pipeline.New(pipeline.Options{
				Config:    cfg,
				Store:     store,
				Projects:  projectStore,
				Blobs:     blobs,
				Extractor: pointcloud.NewPDALProber(cfg.Tools.PDALBinary, time.Duration(cfg.Tools.InfoTimeout)*time.Second),
				Thumbs:    thumbnail.NewRenderer(cfg.Tools.ThumbnailPointBudget),
				Converter: pointcloud.NewPotreeConverter(cfg.Tools.PotreeConverter, time.Duration(cfg.Tools.ConvertTimeout)*time.Second),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			reaper := worker.NewReaper(cfg, store, logger)
			w := worker.New(cfg, store, executor, reaper, logger)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
