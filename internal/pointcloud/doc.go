// Package pointcloud wraps the external tools that inspect and convert
// point cloud files: pdal for metadata, PotreeConverter for octree output.
package pointcloud
