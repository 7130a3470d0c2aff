// Package fatimage assembles synthetic FAT32 disk images in memory for
// tests, the same way the teacher's testing/images.go and
// file_systems/unixv1/format.go hand-assemble fixture images byte by byte
// instead of shelling out to a real formatting tool.
package fatimage

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta/fatfs32/fat32"
)

// Options configures a synthetic FAT32 volume. Zero values are replaced with
// small-but-valid defaults sized for fast tests, not realistic disks.
type Options struct {
	BytesPerSector    uint
	SectorsPerCluster uint
	NumFATs           uint
	ReservedSectors   uint
	// TotalClusters must be at least 65525 for the volume to be recognized
	// as FAT32 rather than FAT16 by ReadBootSector. Defaults to the minimum.
	TotalClusters uint
}

func (o *Options) setDefaults() {
	if o.BytesPerSector == 0 {
		o.BytesPerSector = 512
	}
	if o.SectorsPerCluster == 0 {
		o.SectorsPerCluster = 1
	}
	if o.NumFATs == 0 {
		o.NumFATs = 2
	}
	if o.ReservedSectors == 0 {
		o.ReservedSectors = 32
	}
	if o.TotalClusters == 0 {
		o.TotalClusters = 65525
	}
}

// rawBPB mirrors the on-disk BPB layout fat32.ReadBootSector expects. It's
// redefined here, rather than imported, because the production type is
// unexported: building a boot sector is something only tests should ever do
// by hand.
type rawBPB struct {
	JmpBoot           [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT16   uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32

	SectorsPerFAT32  uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	DriveNumber      uint8
	NTReserved       uint8
	BootSignature    uint8
	VolumeID         uint32
	VolumeLabel      [11]byte
	FileSystemType   [8]byte
}

// Built is a synthetic image ready to be attached, plus the backing bytes in
// case a test wants to inspect or mutate them directly.
type Built struct {
	Device fat32.BlockDevice
	Bytes  []byte
}

// Build assembles a minimal but valid FAT32 image: a boot sector, NumFATs
// copies of an all-free FAT (except for the reserved root directory chain),
// and a single-cluster, all-zero root directory.
func Build(opts Options) Built {
	opts.setDefaults()

	entrySize := uint(4)
	fatBytes := opts.TotalClusters * entrySize
	sectorsPerFAT := (fatBytes + opts.BytesPerSector - 1) / opts.BytesPerSector

	totalDataSectors := opts.TotalClusters * opts.SectorsPerCluster
	totalSectors := opts.ReservedSectors + opts.NumFATs*sectorsPerFAT + totalDataSectors

	image := make([]byte, totalSectors*opts.BytesPerSector)

	rootCluster := uint32(2)

	bpb := rawBPB{
		OEMName:           [8]byte{'D', 'I', 'S', 'K', 'O', ' ', ' ', ' '},
		BytesPerSector:    uint16(opts.BytesPerSector),
		SectorsPerCluster: uint8(opts.SectorsPerCluster),
		ReservedSectors:   uint16(opts.ReservedSectors),
		NumFATs:           uint8(opts.NumFATs),
		Media:             0xF8,
		TotalSectors32:    uint32(totalSectors),
		SectorsPerFAT32:   uint32(sectorsPerFAT),
		RootCluster:       rootCluster,
		VolumeLabel:       [11]byte{'N', 'O', ' ', 'N', 'A', 'M', 'E', ' ', ' ', ' ', ' '},
		FileSystemType:    [8]byte{'F', 'A', 'T', '3', '2', ' ', ' ', ' '},
		BootSignature:     0x29,
	}

	bootWriter := bytewriter.New(image[:opts.BytesPerSector])
	if err := binary.Write(bootWriter, binary.LittleEndian, &bpb); err != nil {
		panic(err)
	}

	fatRegionStart := opts.ReservedSectors * opts.BytesPerSector
	for copyIdx := uint(0); copyIdx < opts.NumFATs; copyIdx++ {
		fatStart := fatRegionStart + copyIdx*sectorsPerFAT*opts.BytesPerSector
		fatWriter := bytewriter.New(image[fatStart : fatStart+sectorsPerFAT*opts.BytesPerSector])

		// Cluster 0 and 1 are reserved, and carry a fixed media-descriptor
		// pattern in entry 0, per the FAT specification.
		binary.Write(fatWriter, binary.LittleEndian, uint32(0x0FFFFFF8))
		binary.Write(fatWriter, binary.LittleEndian, uint32(0x0FFFFFFF))
		// Cluster 2, the root directory, is a single-cluster chain.
		binary.Write(fatWriter, binary.LittleEndian, uint32(0x0FFFFFFF))
	}

	return Built{
		Device: fat32.NewFileBlockDevice(
			bytesextra.NewReadWriteSeeker(image), opts.BytesPerSector, totalSectors),
		Bytes: image,
	}
}
