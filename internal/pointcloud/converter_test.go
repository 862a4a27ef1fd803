package pointcloud_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/pointcloud"
	"github.com/MaFalana/HWC-POTREE-API/internal/services"
	"github.com/MaFalana/HWC-POTREE-API/internal/testsupport"
)

// The stub converter writes a minimal octree into the -o directory the way
// the real binary does, and records its argv for assertions.
const converterStub = `#!/bin/sh
argv="$*"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
mkdir -p "$out"
printf '%s' "$argv" > "$out/argv.txt"
echo '{"version": "2.0"}' > "$out/metadata.json"
: > "$out/octree.bin"
: > "$out/hierarchy.bin"
`

func TestConvertProducesManifest(t *testing.T) {
	binary := testsupport.StubBinary(t, "PotreeConverter", converterStub)
	converter := pointcloud.NewPotreeConverter(binary, time.Minute)

	outputDir := filepath.Join(t.TempDir(), "cloud")
	if err := converter.Convert(context.Background(), "/tmp/scan.las", outputDir, ""); err != nil {
		t.Fatalf("convert: %v", err)
	}

	manifest := filepath.Join(outputDir, converter.ManifestRelPath())
	if _, err := os.Stat(manifest); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	argv, err := os.ReadFile(filepath.Join(outputDir, "argv.txt"))
	if err != nil {
		t.Fatalf("read argv: %v", err)
	}
	if strings.Contains(string(argv), "--projection") {
		t.Fatalf("no projection expected without a CRS hint: %s", argv)
	}
}

func TestConvertPassesProjection(t *testing.T) {
	binary := testsupport.StubBinary(t, "PotreeConverter", converterStub)
	converter := pointcloud.NewPotreeConverter(binary, time.Minute)

	outputDir := filepath.Join(t.TempDir(), "cloud")
	if err := converter.Convert(context.Background(), "/tmp/scan.las", outputDir, "EPSG:2965"); err != nil {
		t.Fatalf("convert: %v", err)
	}

	argv, err := os.ReadFile(filepath.Join(outputDir, "argv.txt"))
	if err != nil {
		t.Fatalf("read argv: %v", err)
	}
	if !strings.Contains(string(argv), "--projection EPSG:2965") {
		t.Fatalf("projection flag missing from argv: %s", argv)
	}
}

func TestConvertFailsWithoutManifest(t *testing.T) {
	// Exits zero but writes nothing, which must still count as failure.
	binary := testsupport.StubBinary(t, "PotreeConverter", "#!/bin/sh\nexit 0\n")
	converter := pointcloud.NewPotreeConverter(binary, time.Minute)

	err := converter.Convert(context.Background(), "/tmp/scan.las", filepath.Join(t.TempDir(), "cloud"), "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestConvertSurfacesToolError(t *testing.T) {
	binary := testsupport.StubBinary(t, "PotreeConverter", "#!/bin/sh\necho 'could not open file' >&2\nexit 3\n")
	converter := pointcloud.NewPotreeConverter(binary, time.Minute)

	err := converter.Convert(context.Background(), "/tmp/scan.las", filepath.Join(t.TempDir(), "cloud"), "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
