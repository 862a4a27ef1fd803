package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/config"
	"github.com/MaFalana/HWC-POTREE-API/internal/fileutil"
	"github.com/MaFalana/HWC-POTREE-API/internal/logging"
	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
)

// Reaper removes expired job records and stale staging leftovers. Sweep
// failures are logged and swallowed: housekeeping must never take the
// worker down.
type Reaper struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewReaper builds a reaper over the job store and staging directories.
func NewReaper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Reaper {
	return &Reaper{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "reaper"),
	}
}

// Sweep purges job records past the retention window and deletes staging
// entries past the staging age limit. It returns the number of purged jobs.
func (r *Reaper) Sweep(ctx context.Context) int64 {
	now := time.Now().UTC()

	retention := time.Duration(r.cfg.Worker.RetentionHours) * time.Hour
	purged, err := r.store.Purge(ctx, now.Add(-retention))
	if err != nil {
		r.logger.Warn("job purge failed", logging.Error(err))
	} else if purged > 0 {
		r.logger.Info("purged expired jobs", logging.Int64("removed", purged))
	}

	maxAge := time.Duration(r.cfg.Worker.StagingMaxAgeHours) * time.Hour
	cutoff := now.Add(-maxAge)
	removed := r.sweepDir(r.cfg.ScratchDir(), cutoff, nil)

	// Inputs of jobs still waiting to run are exempt from the age limit: a
	// long pending queue must not lose its staged files. If the live set
	// cannot be resolved, skip the incoming sweep rather than guess.
	keep, err := r.store.ActiveFilePaths(ctx)
	if err != nil {
		r.logger.Warn("could not resolve live job inputs, skipping incoming sweep", logging.Error(err))
	} else {
		removed += r.sweepDir(r.cfg.IncomingDir(), cutoff, keep)
	}
	if removed > 0 {
		r.logger.Info("removed stale staging entries", logging.Int("removed", removed))
	}

	return purged
}

// sweepDir removes direct children of dir whose modification time predates
// the cutoff, except paths in keep.
func (r *Reaper) sweepDir(dir string, cutoff time.Time, keep map[string]struct{}) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("staging sweep failed", logging.String("dir", dir), logging.Error(err))
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, live := keep[path]; live {
			continue
		}
		if err := fileutil.RemoveIfExists(path); err != nil {
			r.logger.Warn("failed to remove stale entry", logging.String("path", path), logging.Error(err))
			continue
		}
		removed++
	}
	return removed
}
