package fat32_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/fatfs32/fat32"
	"github.com/dargueta/fatfs32/testing/fatimage"
)

func TestReadBootSector_ValidImage(t *testing.T) {
	built := fatimage.Build(fatimage.Options{})

	blockSize, _ := built.Device.Characteristics()
	require.Equal(t, uint(512), blockSize)

	buf := make([]byte, blockSize)
	require.NoError(t, built.Device.ReadBlocks(0, 1, buf))

	boot, _, err := fat32.ReadBootSector(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.EqualValues(t, 512, boot.BytesPerSector)
	assert.EqualValues(t, 65525, boot.TotalClusters)
}

func TestAttach_ReportsVolumeGeometry(t *testing.T) {
	built := fatimage.Build(fatimage.Options{
		BytesPerSector:    512,
		SectorsPerCluster: 4,
		NumFATs:           2,
		ReservedSectors:   32,
		TotalClusters:     65525,
	})

	fs, err := fat32.Attach(built.Device, "test", false, nil)
	require.NoError(t, err)

	stat := fs.FSStat()
	assert.EqualValues(t, 512, stat.BlockSize)
	assert.EqualValues(t, 4*512, stat.ClusterSize)
	assert.EqualValues(t, 65525, stat.TotalFiles)
	// Cluster 2 (root) is the only cluster in use.
	assert.EqualValues(t, 65525-1, stat.FreeFiles)
}

func TestAttach_RejectsInvalidBytesPerSector(t *testing.T) {
	built := fatimage.Build(fatimage.Options{})
	// Corrupt the bytes-per-sector field so validation fails.
	built.Bytes[11] = 0x01
	built.Bytes[12] = 0x01

	_, err := fat32.Attach(built.Device, "test", false, nil)
	assert.Error(t, err)
}

func TestAttach_RejectsZeroFATCount(t *testing.T) {
	built := fatimage.Build(fatimage.Options{})
	// NumFATs is the byte immediately after ReservedSectors in the BPB.
	built.Bytes[16] = 0

	_, err := fat32.Attach(built.Device, "test", false, nil)
	assert.Error(t, err)
}

func TestAttach_RejectsRootClusterBelowTwo(t *testing.T) {
	built := fatimage.Build(fatimage.Options{})
	// RootCluster is the little-endian uint32 at offset 44 in the BPB.
	built.Bytes[44] = 1
	built.Bytes[45] = 0
	built.Bytes[46] = 0
	built.Bytes[47] = 0

	_, err := fat32.Attach(built.Device, "test", false, nil)
	assert.Error(t, err)
}
