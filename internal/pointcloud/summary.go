package pointcloud

import "context"

// Center is the geographic midpoint of a point cloud in WGS84.
type Center struct {
	Lat float64
	Lon float64
	Z   float64
}

// Summary holds the metadata extracted from a point cloud before conversion.
// Center is nil when the source bounds could not be resolved to WGS84.
type Summary struct {
	Points int64
	Center *Center
}

// MetadataExtractor probes a point cloud file for its summary. crsHint, when
// not empty, is an "EPSG:<code>" override for files with missing or wrong
// spatial reference headers.
type MetadataExtractor interface {
	Extract(ctx context.Context, filePath, crsHint string) (Summary, error)
}

// FormatConverter turns a point cloud file into a web viewable octree tree
// rooted at outputDir. crsHint carries the project's "EPSG:<code>" reference
// system so converted coordinates land in the surveyed projection; it may be
// empty when the project records none.
type FormatConverter interface {
	Convert(ctx context.Context, filePath, outputDir, crsHint string) error
	// ManifestRelPath is the path of the viewer entry point relative to
	// outputDir, present after a successful Convert.
	ManifestRelPath() string
}
