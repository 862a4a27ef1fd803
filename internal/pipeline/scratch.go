package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MaFalana/HWC-POTREE-API/internal/blobstore"
	"github.com/MaFalana/HWC-POTREE-API/internal/fileutil"
	"github.com/MaFalana/HWC-POTREE-API/internal/logging"
)

// jobScratch tracks everything a job run must clean up: the staged local
// input, the remote staging blob, and the converter output directory.
// Release runs exactly once regardless of how the run ends.
type jobScratch struct {
	once sync.Once

	localInput    string
	remoteStaging string
	outputDir     string

	blobs  blobstore.Store
	logger *slog.Logger
}

func newJobScratch(localInput, remoteStaging, outputDir string, blobs blobstore.Store, logger *slog.Logger) *jobScratch {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &jobScratch{
		localInput:    localInput,
		remoteStaging: remoteStaging,
		outputDir:     outputDir,
		blobs:         blobs,
		logger:        logger,
	}
}

// release removes all scratch artifacts. Cleanup failures are logged, never
// returned: a job outcome must not change because cleanup stumbled.
func (s *jobScratch) release(ctx context.Context) {
	s.once.Do(func() {
		if err := fileutil.RemoveIfExists(s.localInput); err != nil {
			s.logger.Warn("failed to remove staged input",
				logging.String("path", s.localInput), logging.Error(err))
		}
		if s.remoteStaging != "" && s.blobs != nil {
			if err := s.blobs.Delete(ctx, s.remoteStaging); err != nil {
				s.logger.Warn("failed to remove remote staging blob",
					logging.String("key", s.remoteStaging), logging.Error(err))
			}
		}
		if err := fileutil.RemoveIfExists(s.outputDir); err != nil {
			s.logger.Warn("failed to remove converter output",
				logging.String("path", s.outputDir), logging.Error(err))
		}
	})
}
