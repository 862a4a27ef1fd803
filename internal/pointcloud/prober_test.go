package pointcloud_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/pointcloud"
	"github.com/MaFalana/HWC-POTREE-API/internal/services"
	"github.com/MaFalana/HWC-POTREE-API/internal/testsupport"
)

const pdalSummaryWGS84 = `#!/bin/sh
cat <<'EOF'
{
  "summary": {
    "num_points": 4837291,
    "bounds": {
      "EPSG:4326": {
        "min": {"x": -86.20, "y": 39.70, "z": 210.0},
        "max": {"x": -86.10, "y": 39.80, "z": 250.0}
      },
      "native": {
        "min": {"x": 170000.0, "y": 1650000.0, "z": 210.0},
        "max": {"x": 171000.0, "y": 1651000.0, "z": 250.0}
      }
    }
  }
}
EOF
`

const pdalSummaryNative = `#!/bin/sh
cat <<'EOF'
{
  "summary": {
    "num_points": 1200,
    "bounds": {
      "minx": 170000.0, "maxx": 171000.0,
      "miny": 1650000.0, "maxy": 1651000.0,
      "minz": 210.0, "maxz": 250.0
    }
  }
}
EOF
`

const pdalFailure = `#!/bin/sh
echo "PDAL: Couldn't create reader stage" >&2
exit 1
`

func TestExtractParsesWGS84Bounds(t *testing.T) {
	binary := testsupport.StubBinary(t, "pdal", pdalSummaryWGS84)
	prober := pointcloud.NewPDALProber(binary, 10*time.Second)

	summary, err := prober.Extract(context.Background(), "/tmp/scan.las", "EPSG:2965")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if summary.Points != 4837291 {
		t.Fatalf("unexpected point count %d", summary.Points)
	}
	if summary.Center == nil {
		t.Fatal("expected center from WGS84 bounds")
	}
	if summary.Center.Lat < 39.74 || summary.Center.Lat > 39.76 {
		t.Fatalf("unexpected lat %f", summary.Center.Lat)
	}
	if summary.Center.Lon > -86.14 || summary.Center.Lon < -86.16 {
		t.Fatalf("unexpected lon %f", summary.Center.Lon)
	}
}

func TestExtractProjectedBoundsHaveNoCenter(t *testing.T) {
	binary := testsupport.StubBinary(t, "pdal", pdalSummaryNative)
	prober := pointcloud.NewPDALProber(binary, 10*time.Second)

	summary, err := prober.Extract(context.Background(), "/tmp/scan.las", "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if summary.Points != 1200 {
		t.Fatalf("unexpected point count %d", summary.Points)
	}
	if summary.Center != nil {
		t.Fatalf("projected native bounds must not produce a center, got %+v", summary.Center)
	}
}

func TestExtractToolFailure(t *testing.T) {
	binary := testsupport.StubBinary(t, "pdal", pdalFailure)
	prober := pointcloud.NewPDALProber(binary, 10*time.Second)

	_, err := prober.Extract(context.Background(), "/tmp/scan.las", "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestExtractRejectsEmptyCloud(t *testing.T) {
	binary := testsupport.StubBinary(t, "pdal", `#!/bin/sh
echo '{"summary": {"num_points": 0}}'
`)
	prober := pointcloud.NewPDALProber(binary, 10*time.Second)

	_, err := prober.Extract(context.Background(), "/tmp/empty.las", "")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
