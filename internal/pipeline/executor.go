package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/blobstore"
	"github.com/MaFalana/HWC-POTREE-API/internal/config"
	"github.com/MaFalana/HWC-POTREE-API/internal/logging"
	"github.com/MaFalana/HWC-POTREE-API/internal/pointcloud"
	"github.com/MaFalana/HWC-POTREE-API/internal/projects"
	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
	"github.com/MaFalana/HWC-POTREE-API/internal/services"
)

// ThumbnailGenerator renders a PNG preview for a point cloud file.
type ThumbnailGenerator interface {
	Render(ctx context.Context, filePath string, size int) ([]byte, error)
}

// Options wires an Executor to its collaborators.
type Options struct {
	Config    *config.Config
	Store     *queue.Store
	Projects  *projects.Store
	Blobs     blobstore.Store
	Extractor pointcloud.MetadataExtractor
	Thumbs    ThumbnailGenerator
	Converter pointcloud.FormatConverter
	Logger    *slog.Logger
}

// Executor runs the four step conversion pipeline for one claimed job.
type Executor struct {
	cfg       *config.Config
	store     *queue.Store
	projects  *projects.Store
	blobs     blobstore.Store
	extractor pointcloud.MetadataExtractor
	thumbs    ThumbnailGenerator
	converter pointcloud.FormatConverter
	logger    *slog.Logger
}

// New validates options and builds an Executor.
func New(opts Options) (*Executor, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("config is required")
	case opts.Store == nil:
		return nil, errors.New("job store is required")
	case opts.Projects == nil:
		return nil, errors.New("project store is required")
	case opts.Blobs == nil:
		return nil, errors.New("blob store is required")
	case opts.Extractor == nil:
		return nil, errors.New("metadata extractor is required")
	case opts.Thumbs == nil:
		return nil, errors.New("thumbnail generator is required")
	case opts.Converter == nil:
		return nil, errors.New("format converter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		cfg:       opts.Config,
		store:     opts.Store,
		projects:  opts.Projects,
		blobs:     opts.Blobs,
		extractor: opts.Extractor,
		thumbs:    opts.Thumbs,
		converter: opts.Converter,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Process drives a claimed job through metadata, thumbnail, conversion, and
// upload. The job is marked terminal before Process returns, and all scratch
// artifacts are released on every path.
func (e *Executor) Process(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithProjectID(ctx, job.ProjectID)
	logger := logging.WithContext(ctx, e.logger)

	outputDir := filepath.Join(e.cfg.ScratchDir(), job.ID)
	scratch := newJobScratch(job.FilePath, job.RemoteStagingPath, outputDir, e.blobs, logger)
	defer scratch.release(ctx)

	if _, err := os.Stat(job.FilePath); err != nil {
		return e.fail(ctx, logger, job,
			services.Wrap(services.ErrValidation, string(queue.StepMetadata), "stat_input", "staged input missing", err))
	}

	// A job cannot be processed without its project: the surveyed CRS drives
	// both metadata extraction and conversion, and the results have nowhere
	// to be recorded.
	proj, err := e.projects.Get(ctx, job.ProjectID)
	if err != nil {
		marker := services.ErrTransient
		msg := "load project"
		if errors.Is(err, projects.ErrNotFound) {
			marker = services.ErrNotFound
			msg = fmt.Sprintf("unknown project %s", job.ProjectID)
		}
		return e.fail(ctx, logger, job,
			services.Wrap(marker, string(queue.StepMetadata), "load_project", msg, err))
	}
	crsHint := proj.CRS.EPSG()

	// Step 1: metadata.
	e.advance(ctx, logger, job, queue.StepMetadata, "Extracting metadata")
	summary, err := e.extractor.Extract(ctx, job.FilePath, crsHint)
	if err != nil {
		return e.fail(ctx, logger, job, err)
	}
	logger.Info("metadata extracted",
		logging.Int64("points", summary.Points),
		logging.Bool("has_center", summary.Center != nil))

	// Step 2: thumbnail. Cosmetic, so failures log and move on.
	e.advance(ctx, logger, job, queue.StepThumbnail, "Rendering thumbnail")
	thumbnailURL := e.renderThumbnail(ctx, logger, job)

	e.flushProjectMetadata(ctx, logger, job.ProjectID, summary, thumbnailURL)

	// Step 3: conversion.
	e.advance(ctx, logger, job, queue.StepConversion, "Converting to web format")
	cloudDir := filepath.Join(outputDir, "cloud")
	if err := e.converter.Convert(ctx, job.FilePath, cloudDir, crsHint); err != nil {
		return e.fail(ctx, logger, job, err)
	}

	// Step 4: upload.
	e.advance(ctx, logger, job, queue.StepUpload, "Publishing viewer output")
	cloudPrefix := blobstore.Join("projects", job.ProjectID, "cloud")
	uploaded, err := uploadTree(ctx, e.blobs, cloudDir, cloudPrefix, e.cfg.Tools.UploadConcurrency)
	if err != nil {
		return e.fail(ctx, logger, job, err)
	}
	logger.Info("viewer output published", logging.Int("files", uploaded))

	manifestKey := blobstore.Join(cloudPrefix, e.converter.ManifestRelPath())
	cloudURL, err := e.blobs.TemporaryURL(ctx, manifestKey, e.urlTTL())
	if err != nil {
		return e.fail(ctx, logger, job,
			services.Wrap(services.ErrTransient, string(queue.StepUpload), "sign_url", "sign viewer url", err))
	}
	// A completed job whose viewer URL is recorded nowhere is useless output,
	// so losing the project mid-run fails the job too.
	if _, err := e.projects.UpdateDerived(ctx, job.ProjectID, projects.Derived{CloudURL: &cloudURL}); err != nil {
		marker := services.ErrTransient
		if errors.Is(err, projects.ErrNotFound) {
			marker = services.ErrNotFound
		}
		return e.fail(ctx, logger, job,
			services.Wrap(marker, string(queue.StepUpload), "update_project", "record viewer url", err))
	}

	if _, err := e.store.MarkTerminal(ctx, job.ID, queue.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	logger.Info("job completed")
	return nil
}

// renderThumbnail runs the soft thumbnail step, returning the uploaded
// preview URL or "" when the step was skipped over an error.
func (e *Executor) renderThumbnail(ctx context.Context, logger *slog.Logger, job *queue.Job) string {
	data, err := e.thumbs.Render(ctx, job.FilePath, e.cfg.Tools.ThumbnailSize)
	if err != nil {
		e.softFail(logger, queue.StepThumbnail, err)
		return ""
	}
	key := blobstore.Join("projects", job.ProjectID, "thumbnail.png")
	if err := e.blobs.UploadBytes(ctx, key, data, "image/png"); err != nil {
		e.softFail(logger, queue.StepThumbnail, err)
		return ""
	}
	url, err := e.blobs.TemporaryURL(ctx, key, e.urlTTL())
	if err != nil {
		e.softFail(logger, queue.StepThumbnail, err)
		return ""
	}
	return url
}

// flushProjectMetadata writes the mid-pipeline project fields so callers see
// point counts and previews even while conversion is still running.
func (e *Executor) flushProjectMetadata(ctx context.Context, logger *slog.Logger, projectID string, summary pointcloud.Summary, thumbnailURL string) {
	derived := projects.Derived{PointCount: &summary.Points}
	if summary.Center != nil {
		derived.Location = &projects.Location{
			Lat: &summary.Center.Lat,
			Lon: &summary.Center.Lon,
			Z:   &summary.Center.Z,
		}
	}
	if thumbnailURL != "" {
		derived.ThumbnailURL = &thumbnailURL
	}
	if _, err := e.projects.UpdateDerived(ctx, projectID, derived); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			logger.Warn("project missing, metadata not recorded")
			return
		}
		logger.Warn("failed to record project metadata", logging.Error(err))
	}
}

func (e *Executor) advance(ctx context.Context, logger *slog.Logger, job *queue.Job, step queue.Step, message string) {
	update := queue.ProgressUpdate{CurrentStep: &step, ProgressMessage: &message}
	if _, err := e.store.UpdateProgress(ctx, job.ID, update); err != nil {
		// Progress is advisory; the step still runs.
		logger.Warn("failed to persist progress",
			logging.String(logging.FieldStep, string(step)), logging.Error(err))
	}
	logger.Info(message, logging.String(logging.FieldStep, string(step)))
}

func (e *Executor) softFail(logger *slog.Logger, step queue.Step, err error) {
	if policyFor(step) != failSoft {
		logger.Error("step failed", logging.String(logging.FieldStep, string(step)), logging.Error(err))
		return
	}
	logger.Warn("step failed, continuing",
		logging.String(logging.FieldStep, string(step)), logging.Error(err))
}

func (e *Executor) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, cause error) error {
	logger.Error("job failed", logging.Error(cause))
	if _, err := e.store.MarkTerminal(ctx, job.ID, queue.StatusFailed, cause.Error()); err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
	}
	return cause
}

func (e *Executor) urlTTL() time.Duration {
	return time.Duration(e.cfg.Storage.URLTTLHours) * time.Hour
}
