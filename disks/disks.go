// Package disks holds a reference table about FAT32 volume geometry that is
// useful for diagnostics but never changes behavior: it is never consulted
// to decide whether a volume is valid, only whether it's worth telling
// someone their volume wasn't formatted with Microsoft's recommended cluster
// size for its capacity.
package disks

import (
	_ "embed"
	"fmt"

	"github.com/gocarina/gocsv"
)

// clusterSizeRow is one row of Microsoft's published table of recommended
// FAT32 cluster sizes by volume size (from the FAT32 File System
// Specification's description of BPB_SecPerClus).
type clusterSizeRow struct {
	MinVolumeBytes   int64 `csv:"min_volume_bytes"`
	MaxVolumeBytes   int64 `csv:"max_volume_bytes"`
	RecommendedBytes uint  `csv:"recommended_bytes_per_cluster"`
}

//go:embed cluster-sizes.csv
var clusterSizesRawCSV string

var clusterSizeTable []clusterSizeRow

func init() {
	if err := gocsv.UnmarshalString(clusterSizesRawCSV, &clusterSizeTable); err != nil {
		panic(fmt.Sprintf("disks: malformed embedded cluster size table: %s", err))
	}
}

// RecommendedClusterSize returns Microsoft's recommended cluster size, in
// bytes, for a FAT32 volume of the given total size in bytes. It returns an
// error if volumeBytes doesn't fall within any known row, which callers
// should treat as "no recommendation available", not as a validity check.
func RecommendedClusterSize(volumeBytes int64) (uint, error) {
	for _, row := range clusterSizeTable {
		if volumeBytes >= row.MinVolumeBytes && volumeBytes <= row.MaxVolumeBytes {
			return row.RecommendedBytes, nil
		}
	}
	return 0, fmt.Errorf("no recommended cluster size known for a %d byte volume", volumeBytes)
}
