// Package thumbnail renders top-down PNG previews of LAS point clouds
// without shelling out to external tools.
package thumbnail
