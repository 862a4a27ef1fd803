package pointcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/MaFalana/HWC-POTREE-API/internal/services"
)

// PDALProber extracts point counts and bounds by shelling out to pdal.
type PDALProber struct {
	binary  string
	timeout time.Duration
}

// NewPDALProber builds a prober for the given pdal binary and per-run timeout.
func NewPDALProber(binary string, timeout time.Duration) *PDALProber {
	if binary == "" {
		binary = "pdal"
	}
	return &PDALProber{binary: binary, timeout: timeout}
}

type pdalBoundsCorner struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type pdalBoundsBox struct {
	Min pdalBoundsCorner `json:"min"`
	Max pdalBoundsCorner `json:"max"`
}

// pdalBounds tolerates the two shapes pdal emits: a flat native box, or
// named boxes keyed by reference system when the SRS is known.
type pdalBounds struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MinZ float64 `json:"minz"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
	MaxZ float64 `json:"maxz"`

	WGS84  *pdalBoundsBox `json:"EPSG:4326"`
	Native *pdalBoundsBox `json:"native"`
}

type pdalSummary struct {
	NumPoints int64           `json:"num_points"`
	Bounds    json.RawMessage `json:"bounds"`
}

type pdalInfoOutput struct {
	Summary pdalSummary `json:"summary"`
}

// Extract runs `pdal info --summary` against the file. When crsHint is set it
// is passed as a reader spatial reference override so that files with missing
// or wrong SRS headers still resolve to WGS84 bounds.
func (p *PDALProber) Extract(ctx context.Context, filePath, crsHint string) (Summary, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := []string{"info", "--summary", filePath}
	if crsHint != "" {
		args = append(args, "--readers.las.spatialreference="+crsHint)
	}

	cmd := exec.CommandContext(ctx, p.binary, args...)
	output, err := cmd.Output()
	if err != nil {
		detail := commandErrorDetail(err)
		return Summary{}, services.Wrap(services.ErrExternalTool, "metadata", "pdal_info",
			fmt.Sprintf("probe %s: %s", filepath.Base(filePath), detail), err)
	}

	var info pdalInfoOutput
	if err := json.Unmarshal(output, &info); err != nil {
		return Summary{}, services.Wrap(services.ErrExternalTool, "metadata", "pdal_info",
			"parse pdal output", err)
	}
	if info.Summary.NumPoints <= 0 {
		return Summary{}, services.Wrap(services.ErrValidation, "metadata", "pdal_info",
			"file contains no points", fmt.Errorf("num_points=%d", info.Summary.NumPoints))
	}

	summary := Summary{Points: info.Summary.NumPoints}
	summary.Center = centerFromBounds(info.Summary.Bounds)
	return summary, nil
}

func centerFromBounds(raw json.RawMessage) *Center {
	if len(raw) == 0 {
		return nil
	}
	var bounds pdalBounds
	if err := json.Unmarshal(raw, &bounds); err != nil {
		return nil
	}
	if bounds.WGS84 != nil {
		return &Center{
			Lat: (bounds.WGS84.Min.Y + bounds.WGS84.Max.Y) / 2,
			Lon: (bounds.WGS84.Min.X + bounds.WGS84.Max.X) / 2,
			Z:   (bounds.WGS84.Min.Z + bounds.WGS84.Max.Z) / 2,
		}
	}
	midX := (bounds.MinX + bounds.MaxX) / 2
	midY := (bounds.MinY + bounds.MaxY) / 2
	midZ := (bounds.MinZ + bounds.MaxZ) / 2
	// A flat box only yields a usable center when the coordinates are
	// already geographic.
	if bounds.MaxX != 0 || bounds.MinX != 0 {
		if midX >= -180 && midX <= 180 && midY >= -90 && midY <= 90 {
			return &Center{Lat: midY, Lon: midX, Z: midZ}
		}
	}
	return nil
}

func commandErrorDetail(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return firstLine(string(exitErr.Stderr))
	}
	return err.Error()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
