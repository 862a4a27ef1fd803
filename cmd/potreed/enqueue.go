package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MaFalana/HWC-POTREE-API/internal/blobstore"
	"github.com/MaFalana/HWC-POTREE-API/internal/fileutil"
	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
)

func newEnqueueCommand(cctx *commandContext) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "enqueue <project-id> <file>",
		Short: "Stage a point cloud file and queue it for conversion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			projectID := strings.TrimSpace(args[0])
			source := args[1]
			if projectID == "" {
				return fmt.Errorf("project id must not be empty")
			}
			info, err := os.Stat(source)
			if err != nil {
				return fmt.Errorf("input file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("input %s is a directory", source)
			}

			id := strings.TrimSpace(jobID)
			if id == "" {
				id = uuid.NewString()
			}
			ext := strings.ToLower(filepath.Ext(source))

			// Stage the local copy the worker will read.
			staged := filepath.Join(cfg.IncomingDir(), id+ext)
			if err := fileutil.CopyFile(source, staged); err != nil {
				return fmt.Errorf("stage input: %w", err)
			}

			// Mirror it to the blob store so the upload survives local loss
			// until the job runs.
			stagingKey := blobstore.Join("jobs", id+ext)
			blobs, err := openBlobStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer blobs.Close()

			data, err := os.ReadFile(staged)
			if err != nil {
				return fmt.Errorf("read staged input: %w", err)
			}
			if err := blobs.UploadBytes(cmd.Context(), stagingKey, data, blobstore.ContentTypeFor(source)); err != nil {
				return fmt.Errorf("upload staging copy: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Enqueue(cmd.Context(), &queue.Job{
				ID:                id,
				ProjectID:         projectID,
				FilePath:          staged,
				RemoteStagingPath: stagingKey,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), job.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "id", "", "Job identifier (default: random UUID)")
	return cmd
}
