package pointcloud

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/services"
)

const potreeManifest = "metadata.json"

// PotreeConverter converts point clouds into Potree octrees by shelling out
// to the PotreeConverter binary.
type PotreeConverter struct {
	binary  string
	timeout time.Duration
}

// NewPotreeConverter builds a converter for the given binary and per-run timeout.
func NewPotreeConverter(binary string, timeout time.Duration) *PotreeConverter {
	if binary == "" {
		binary = "PotreeConverter"
	}
	return &PotreeConverter{binary: binary, timeout: timeout}
}

// Convert writes a viewer octree for filePath into outputDir. A non-empty
// crsHint is passed through as the output projection.
func (c *PotreeConverter) Convert(ctx context.Context, filePath, outputDir, crsHint string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "conversion", "potree_converter",
			"prepare output directory", err)
	}

	args := []string{filePath, "-o", outputDir}
	if crsHint != "" {
		args = append(args, "--projection", crsHint)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		detail := firstLine(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrExternalTool, "conversion", "potree_converter",
			fmt.Sprintf("convert %s: %s", filepath.Base(filePath), detail), err)
	}

	// The converter exits zero on some partial failures, so the manifest is
	// the real success signal.
	manifest := filepath.Join(outputDir, potreeManifest)
	if _, err := os.Stat(manifest); err != nil {
		return services.Wrap(services.ErrExternalTool, "conversion", "potree_converter",
			"converter produced no manifest", err)
	}
	return nil
}

// ManifestRelPath returns the viewer entry point relative to the output directory.
func (c *PotreeConverter) ManifestRelPath() string {
	return potreeManifest
}
