package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/MaFalana/HWC-POTREE-API/internal/services"
)

// Renderer rasterizes a top-down preview of a LAS point cloud.
type Renderer struct {
	pointBudget int
}

// NewRenderer builds a renderer that samples at most pointBudget points per file.
func NewRenderer(pointBudget int) *Renderer {
	if pointBudget <= 0 {
		pointBudget = 250_000
	}
	return &Renderer{pointBudget: pointBudget}
}

// oversample rasterizes above the target size so the downscale pass
// antialiases sparse regions.
const oversample = 2

// Render produces a square PNG preview of the cloud at the given edge size.
func (r *Renderer) Render(ctx context.Context, filePath string, size int) ([]byte, error) {
	if size <= 0 {
		size = 512
	}

	file, header, err := openLAS(filePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "thumbnail", "read_las", "open point cloud", err)
	}
	defer file.Close()

	points, err := readPoints(file, header, r.pointBudget)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "thumbnail", "read_las", "decode points", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	canvas := rasterize(points, header, size*oversample)
	resized := imaging.Resize(canvas, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, services.Wrap(services.ErrTransient, "thumbnail", "encode_png", "encode preview", err)
	}
	return buf.Bytes(), nil
}

// rasterize projects points onto a top-down grid, keeping the highest point
// per cell and coloring by elevation.
func rasterize(points []point, header lasHeader, edge int) *image.NRGBA {
	canvas := imaging.New(edge, edge, color.NRGBA{R: 16, G: 16, B: 24, A: 255})

	spanX := header.max[0] - header.min[0]
	spanY := header.max[1] - header.min[1]
	spanZ := header.max[2] - header.min[2]
	span := spanX
	if spanY > span {
		span = spanY
	}
	if span <= 0 {
		span = 1
	}
	if spanZ <= 0 {
		spanZ = 1
	}
	scale := float64(edge-1) / span

	// Center the shorter axis inside the square canvas.
	padX := (float64(edge-1) - spanX*scale) / 2
	padY := (float64(edge-1) - spanY*scale) / 2

	top := make([]float64, edge*edge)
	occupied := make([]bool, edge*edge)
	for _, p := range points {
		px := int(padX + (p.x-header.min[0])*scale)
		py := int(padY + (header.max[1]-p.y)*scale)
		if px < 0 || px >= edge || py < 0 || py >= edge {
			continue
		}
		idx := py*edge + px
		if occupied[idx] && top[idx] >= p.z {
			continue
		}
		occupied[idx] = true
		top[idx] = p.z

		canvas.SetNRGBA(px, py, elevationColor((p.z - header.min[2]) / spanZ))
	}
	return canvas
}

// elevationColor maps a normalized height in [0,1] onto a blue-green-yellow ramp.
func elevationColor(t float64) color.NRGBA {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	switch {
	case t < 0.5:
		// blue to green
		f := t / 0.5
		return color.NRGBA{
			R: uint8(30 + 40*f),
			G: uint8(80 + 140*f),
			B: uint8(200 - 150*f),
			A: 255,
		}
	default:
		// green to yellow
		f := (t - 0.5) / 0.5
		return color.NRGBA{
			R: uint8(70 + 170*f),
			G: uint8(220 - 20*f),
			B: uint8(50 - 20*f),
			A: 255,
		}
	}
}
