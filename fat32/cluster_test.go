package fat32

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEndOfChain(t *testing.T) {
	assert.True(t, IsEndOfChain(EndOfChain))
	assert.True(t, IsEndOfChain(firstEOCMarker))
	assert.True(t, IsEndOfChain(lastEOCMarker))
	assert.False(t, IsEndOfChain(FreeCluster))
	assert.False(t, IsEndOfChain(ClusterID(2)))
}

func TestIsFree(t *testing.T) {
	assert.True(t, IsFree(FreeCluster))
	assert.False(t, IsFree(ClusterID(2)))
	assert.False(t, IsFree(EndOfChain))
}

func TestSplitJoinCluster(t *testing.T) {
	orig := ClusterID(0x0A1B2C3D) & clusterValueMask
	high, low := splitCluster(orig)
	got := joinCluster(high, low)
	assert.Equal(t, orig, got)
}

func TestSectorOfCluster(t *testing.T) {
	boot := &BootSector{
		FirstDataSector:   100,
		SectorsPerCluster: 8,
	}
	assert.Equal(t, uint(100), boot.SectorOfCluster(2))
	assert.Equal(t, uint(108), boot.SectorOfCluster(3))
	assert.Equal(t, uint(116), boot.SectorOfCluster(4))
}

func TestIsValidDataCluster(t *testing.T) {
	boot := &BootSector{TotalClusters: 100}
	assert.False(t, boot.IsValidDataCluster(0))
	assert.False(t, boot.IsValidDataCluster(1))
	assert.True(t, boot.IsValidDataCluster(2))
	assert.True(t, boot.IsValidDataCluster(101))
	assert.False(t, boot.IsValidDataCluster(102))
}
