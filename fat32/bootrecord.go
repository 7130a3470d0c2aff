package fat32

import (
	"encoding/binary"
	"io"

	"github.com/dargueta/fatfs32/disks"
	"github.com/dargueta/fatfs32/errors"
)

// rawBPB is the on-disk layout of the BIOS Parameter Block shared by all FAT
// variants, followed by the FAT32-specific extended fields. Field order and
// sizes match Microsoft's FAT specification.
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

	// FAT32 extended BPB.
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

// BootSector is the fully decoded, derived-value-enriched form of a FAT32
// boot sector.
type BootSector struct {
	BytesPerSector    uint
	SectorsPerCluster uint
	ReservedSectors   uint
	NumFATs           uint
	Media             uint8
	SectorsPerFAT     uint
	RootCluster       ClusterID
	VolumeLabel       string

	BytesPerCluster   uint
	TotalSectors      uint
	TotalFATSectors   uint
	FirstFATSector    uint
	FirstDataSector   uint
	TotalDataSectors  uint
	TotalClusters     uint
	DirentsPerCluster int
}

// ClusterSizeAdvisory reports how an attached volume's actual cluster size
// compares to Microsoft's recommended cluster size for a volume of its
// total size. It is purely informational: Recommended may legitimately
// differ from Actual without the volume being invalid in any way.
type ClusterSizeAdvisory struct {
	Actual      uint
	Recommended uint
	Known       bool
}

// ReadBootSector parses the first sector of a FAT32 volume, validating it the
// way Microsoft's reference implementation does: sane sector and cluster
// sizes, a FAT32-shaped cluster count, and a zero legacy root entry count.
//
// Any violation is reported as errors.ErrFileSystemCorrupted, matching the
// driver's treatment of on-disk structural violations elsewhere.
func ReadBootSector(r io.Reader) (*BootSector, ClusterSizeAdvisory, error) {
	var raw rawBPB
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, ClusterSizeAdvisory{}, errors.ErrIOFailed.WrapError(err)
	}

	switch raw.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"bytes per sector must be 512, 1024, 2048 or 4096")
	}

	switch raw.SectorsPerCluster {
	case 1, 2, 4, 8, 16, 32, 64, 128:
	default:
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"sectors per cluster must be a power of 2 in [1, 128]")
	}

	if raw.RootEntryCount != 0 {
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"FAT32 volumes must have a zero legacy root directory entry count")
	}

	if raw.SectorsPerFAT32 == 0 {
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"FAT32 volumes must declare a 32-bit sectors-per-FAT value")
	}

	if raw.NumFATs < 1 {
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"volume must declare at least one FAT copy")
	}

	if raw.RootCluster < 2 {
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"root directory cluster must be at least 2")
	}

	totalSectors := uint(raw.TotalSectors32)
	if totalSectors == 0 {
		totalSectors = uint(raw.TotalSectors16)
	}

	bytesPerCluster := uint(raw.BytesPerSector) * uint(raw.SectorsPerCluster)
	if bytesPerCluster > 32768 {
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"bytes per cluster cannot exceed 32768")
	}

	totalFATSectors := uint(raw.NumFATs) * uint(raw.SectorsPerFAT32)
	firstFATSector := uint(raw.ReservedSectors)
	firstDataSector := firstFATSector + totalFATSectors
	totalDataSectors := totalSectors - firstDataSector
	totalClusters := totalDataSectors / uint(raw.SectorsPerCluster)

	if totalClusters < 65525 {
		return nil, ClusterSizeAdvisory{}, errors.ErrFileSystemCorrupted.WithMessage(
			"cluster count is too small to be a FAT32 volume")
	}

	boot := &BootSector{
		BytesPerSector:    uint(raw.BytesPerSector),
		SectorsPerCluster: uint(raw.SectorsPerCluster),
		ReservedSectors:   uint(raw.ReservedSectors),
		NumFATs:           uint(raw.NumFATs),
		Media:             raw.Media,
		SectorsPerFAT:     uint(raw.SectorsPerFAT32),
		RootCluster:       ClusterID(raw.RootCluster),
		VolumeLabel:       trimTrailingSpaces(raw.VolumeLabel[:]),
		BytesPerCluster:   bytesPerCluster,
		TotalSectors:      totalSectors,
		TotalFATSectors:   totalFATSectors,
		FirstFATSector:    firstFATSector,
		FirstDataSector:   firstDataSector,
		TotalDataSectors:  totalDataSectors,
		TotalClusters:     totalClusters,
		DirentsPerCluster: int(bytesPerCluster) / DirentSize,
	}

	advisory := ClusterSizeAdvisory{Actual: bytesPerCluster}
	if recommended, err := disks.RecommendedClusterSize(int64(totalSectors) * int64(raw.BytesPerSector)); err == nil {
		advisory.Recommended = recommended
		advisory.Known = true
	}

	return boot, advisory, nil
}

func trimTrailingSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}
