package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/MaFalana/HWC-POTREE-API/internal/blobstore"
	"github.com/MaFalana/HWC-POTREE-API/internal/services"
)

// uploadTree pushes every file under root to the blob store beneath
// keyPrefix, preserving relative paths. Uploads run concurrently up to the
// given limit.
func uploadTree(ctx context.Context, blobs blobstore.Store, root, keyPrefix string, concurrency int) (int, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "upload", "walk_output", "walk converter output", err)
	}
	if len(files) == 0 {
		return 0, services.Wrap(services.ErrValidation, "upload", "walk_output", "converter output is empty",
			fmt.Errorf("no files under %s", root))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, path := range files {
		group.Go(func() error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return services.Wrap(services.ErrTransient, "upload", "relative_path", path, err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return services.Wrap(services.ErrTransient, "upload", "read_file", rel, err)
			}
			key := blobstore.Join(keyPrefix, filepath.ToSlash(rel))
			if err := blobs.UploadBytes(groupCtx, key, data, blobstore.ContentTypeFor(rel)); err != nil {
				return services.Wrap(services.ErrTransient, "upload", "put_object", key, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	return len(files), nil
}
