package fat32

// ClusterID identifies a cluster by its index into the FAT. Clusters 0 and 1
// are reserved by the FAT32 format itself; the first usable cluster is 2.
type ClusterID uint32

const (
	// FreeCluster marks a FAT entry as belonging to no chain.
	FreeCluster ClusterID = 0x00000000

	// firstEOCMarker and lastEOCMarker bound the range of values that mark
	// the last cluster in a chain. Only 0x0FFFFFFF is ever written by this
	// driver, but the whole range must be recognized on read since other
	// implementations use different markers within it.
	firstEOCMarker ClusterID = 0x0FFFFFF8
	lastEOCMarker  ClusterID = 0x0FFFFFFF

	// EndOfChain is the marker this driver writes to terminate a chain.
	EndOfChain ClusterID = 0x0FFFFFFF

	// BadCluster marks a cluster that must never be allocated.
	BadCluster ClusterID = 0x0FFFFFF7

	// firstValidCluster is the lowest cluster number usable for data, as
	// mandated by the FAT32 format (0 and 1 are reserved).
	firstValidCluster ClusterID = 2

	clusterValueMask ClusterID = 0x0FFFFFFF
)

// IsEndOfChain reports whether a cluster value read from the FAT marks the
// end of an allocation chain.
func IsEndOfChain(c ClusterID) bool {
	return c >= firstEOCMarker && c <= lastEOCMarker
}

// IsFree reports whether a cluster value read from the FAT marks a cluster as
// unallocated.
func IsFree(c ClusterID) bool {
	return c == FreeCluster
}

// SectorOfCluster returns the first sector belonging to a cluster, given the
// volume's first data sector and sectors-per-cluster.
func (b *BootSector) SectorOfCluster(c ClusterID) uint {
	return b.FirstDataSector + (uint(c)-uint(firstValidCluster))*b.SectorsPerCluster
}

// IsValidDataCluster reports whether c is in the range of clusters that can
// legitimately back data (as opposed to being reserved, free, bad, or an EOC
// marker).
func (b *BootSector) IsValidDataCluster(c ClusterID) bool {
	return c >= firstValidCluster && uint(c) < uint(firstValidCluster)+b.TotalClusters
}

// splitCluster breaks a 32-bit cluster number into the high and low 16-bit
// halves stored in a directory entry's FirstClusterHigh/FirstClusterLow
// fields. Only the low 28 bits of c are meaningful; FAT32 reserves the top
// four bits of each FAT entry, but directory entries use the full 32 bits
// split across two uint16 fields.
func splitCluster(c ClusterID) (high uint16, low uint16) {
	return uint16(uint32(c) >> 16), uint16(uint32(c) & 0xFFFF)
}

// joinCluster reassembles a cluster number from a directory entry's high and
// low halves.
func joinCluster(high uint16, low uint16) ClusterID {
	return ClusterID(uint32(high)<<16 | uint32(low))
}
