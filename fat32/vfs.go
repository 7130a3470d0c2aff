package fat32

import (
	"log"

	"github.com/dargueta/fatfs32/errors"
)

// Logger is the minimal logging surface Attach and the operations it wires up
// use for informational and error messages. *log.Logger satisfies it, so
// callers who don't care can just pass log.Default().
type Logger interface {
	Printf(format string, args ...interface{})
}

// Handle is an opaque reference to a resolved file returned by OpenFile.
// Callers must treat its contents as meaningless; the only legal operations
// on it are passing it back into the other FilesystemOperations entries.
type Handle struct {
	path string
}

// FileSystem is an attached FAT32 volume. It is not safe for concurrent use:
// every operation below assumes it has exclusive access to both the
// in-memory table and the underlying device for the duration of the call,
// matching the single-threaded execution model this driver was designed
// under.
type FileSystem struct {
	Name     string
	ReadOnly bool

	device BlockDevice
	boot   *BootSector
	table  *Table
	logger Logger
}

// Attach reads the boot sector and FAT off device, and returns a FileSystem
// ready to serve operations. It does not take ownership of device beyond the
// lifetime of the returned FileSystem; closing/releasing the device is the
// caller's responsibility.
func Attach(device BlockDevice, fsName string, readOnly bool, logger Logger) (*FileSystem, error) {
	if logger == nil {
		logger = log.Default()
	}

	blockSize, numBlocks := device.Characteristics()
	logger.Printf("device for fs %q has block size %d and %d blocks", fsName, blockSize, numBlocks)

	bootBuf := make([]byte, blockSize)
	if err := device.ReadBlocks(0, 1, bootBuf); err != nil {
		return nil, errors.ErrIOFailed.WrapError(err)
	}

	boot, advisory, err := ReadBootSector(&sliceReader{data: bootBuf})
	if err != nil {
		return nil, err
	}

	table, err := LoadTable(device, boot)
	if err != nil {
		return nil, err
	}

	logger.Printf("%d bytes per sector, %d bytes per cluster", boot.BytesPerSector, boot.BytesPerCluster)
	logger.Printf("%d reserved sectors, first FAT at sector %d", boot.ReservedSectors, boot.FirstFATSector)
	logger.Printf("%d FATs, %d sectors per FAT", boot.NumFATs, boot.SectorsPerFAT)
	logger.Printf("root directory starts at cluster %d", boot.RootCluster)
	logger.Printf("%d sectors total, %d data clusters", boot.TotalSectors, boot.TotalClusters)
	if advisory.Known && advisory.Actual != advisory.Recommended {
		logger.Printf(
			"cluster size %d does not match Microsoft's recommended size %d for a volume this size",
			advisory.Actual, advisory.Recommended)
	}

	mode := "read/write"
	if readOnly {
		mode = "readonly"
	}
	logger.Printf("filesystem %q is attached (%s)", fsName, mode)

	return &FileSystem{
		Name:     fsName,
		ReadOnly: readOnly,
		device:   device,
		boot:     boot,
		table:    table,
		logger:   logger,
	}, nil
}

// Detach releases a FileSystem. It does not flush pending FAT writes; callers
// that made changes must call Flush first, matching the original driver's
// attach/detach lifecycle which performs no implicit sync.
func Detach(fs *FileSystem) error {
	fs.logger.Printf("filesystem %q detached", fs.Name)
	return nil
}

// Flush writes any pending FAT changes back to every on-disk copy.
func (fs *FileSystem) Flush() error {
	return fs.table.Flush()
}

// FSStat reports aggregate volume statistics.
type FSStat struct {
	BlockSize   uint
	TotalBlocks uint
	ClusterSize uint
	TotalFiles  uint
	FreeFiles   uint
	Label       string
}

// FSStat returns a snapshot of the volume's free space, derived fresh from
// the in-memory FAT on every call via Table.FreeClusterBitmap.
func (fs *FileSystem) FSStat() FSStat {
	return FSStat{
		BlockSize:   fs.boot.BytesPerSector,
		TotalBlocks: fs.boot.TotalSectors,
		ClusterSize: fs.boot.BytesPerCluster,
		TotalFiles:  fs.boot.TotalClusters,
		FreeFiles:   fs.table.CountFree(),
		Label:       fs.boot.VolumeLabel,
	}
}

// FilesystemOperations is the fixed table of entry points a VFS layer
// registers against an attached volume, mirroring the operations table the
// original driver populates at attach time. Stat and StatPath are kept as
// two distinct entries, mirroring the original's separate stat(state,
// handle, ...) and stat_path(state, path, ...) functions, rather than
// collapsing them into one path-only entry.
type FilesystemOperations struct {
	Exists     func(path string) bool
	Stat       func(handle Handle) (*Dirent, error)
	StatPath   func(path string) (*Dirent, error)
	CreateFile func(path string) error
	CreateDir  func(path string) error
	Remove     func(path string) error
	ReadFile   func(handle Handle, offset int64, buf []byte) (int, error)
	WriteFile  func(handle Handle, offset int64, data []byte) (int, error)
	OpenFile   func(path string) (Handle, error)
	CloseFile  func(handle Handle) error
	TruncFile  func(handle Handle, length int64) error
	Rename     func(oldPath string, newPath string) error
}

// Operations builds the FilesystemOperations table for this attached volume.
func (fs *FileSystem) Operations() FilesystemOperations {
	return FilesystemOperations{
		Exists:     fs.Exists,
		Stat:       fs.StatHandle,
		StatPath:   fs.Stat,
		CreateFile: func(path string) error { return fs.Create(path, false) },
		CreateDir:  func(path string) error { return fs.Create(path, true) },
		Remove:     fs.Remove,
		ReadFile: func(h Handle, offset int64, buf []byte) (int, error) {
			return fs.ReadFile(h.path, offset, buf)
		},
		WriteFile: func(h Handle, offset int64, data []byte) (int, error) {
			return fs.WriteFile(h.path, offset, data)
		},
		OpenFile:  fs.Open,
		CloseFile: fs.Close,
		TruncFile: func(h Handle, length int64) error { return fs.Truncate(h.path, length) },
		Rename:    fs.Rename,
	}
}

// sliceReader is a trivial io.Reader over a fixed byte slice, used to hand
// ReadBootSector a view of a block buffer without an extra copy.
type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, errors.ErrUnexpectedEOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
