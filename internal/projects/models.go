package projects

import "time"

// CRS is the coordinate reference system a project was surveyed in. It is
// set when the project is created and never changed by pipeline output.
type CRS struct {
	Code int    `json:"code"`
	Name string `json:"name,omitempty"`
}

// EPSG returns the "EPSG:<code>" form used as the reprojection hint for
// metadata extraction, or "" when no CRS is recorded.
func (c CRS) EPSG() string {
	if c.Code <= 0 {
		return ""
	}
	return formatEPSG(c.Code)
}

// Location is the geographic center of a project's point cloud in WGS84.
type Location struct {
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
	Z   *float64 `json:"z,omitempty"`
}

// Project groups the conversion jobs and published artifacts for one survey.
type Project struct {
	ID           string
	Name         string
	CRS          CRS
	Location     Location
	PointCount   int64
	ThumbnailURL string
	CloudURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Derived carries the fields the pipeline may write back to a project.
// Nil fields are preserved. The CRS is deliberately absent: pipeline output
// never overwrites the surveyed reference system.
type Derived struct {
	PointCount   *int64
	Location     *Location
	ThumbnailURL *string
	CloudURL     *string
}
