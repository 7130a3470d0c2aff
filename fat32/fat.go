package fat32

import (
	"encoding/binary"

	"github.com/boljen/go-bitmap"
	"github.com/hashicorp/go-multierror"

	"github.com/dargueta/fatfs32/errors"
)

const entrySize = 4

// Table is the in-memory form of a volume's File Allocation Table. It holds
// exactly one copy of the table; Flush fans out writes to every on-disk
// mirror the boot sector declares.
//
// Table keeps no allocation hint between calls: FindFree always performs a
// fresh linear scan, matching the upstream allocator's behavior of never
// trusting stale bookkeeping about where free space was last seen.
type Table struct {
	device  BlockDevice
	boot    *BootSector
	entries []ClusterID
	dirty   bool
}

// LoadTable reads the first on-disk FAT copy into memory.
func LoadTable(device BlockDevice, boot *BootSector) (*Table, error) {
	blockSize, _ := device.Characteristics()
	if boot.BytesPerSector%blockSize != 0 {
		return nil, errors.ErrInvalidArgument.WithMessage(
			"device block size does not evenly divide sector size")
	}

	sizeBytes := boot.SectorsPerFAT * boot.BytesPerSector
	buf := make([]byte, sizeBytes)

	startBlock, count, err := sectorRangeToBlocks(boot, device, boot.FirstFATSector, boot.SectorsPerFAT)
	if err != nil {
		return nil, err
	}
	if err := device.ReadBlocks(startBlock, count, buf); err != nil {
		return nil, err
	}

	numEntries := len(buf) / entrySize
	entries := make([]ClusterID, numEntries)
	for i := range entries {
		raw := binary.LittleEndian.Uint32(buf[i*entrySize : i*entrySize+entrySize])
		entries[i] = ClusterID(raw) & clusterValueMask
	}

	return &Table{device: device, boot: boot, entries: entries}, nil
}

// sectorRangeToBlocks converts a [sector, sector+count) range expressed in
// the volume's logical sector size into the block range the underlying
// BlockDevice expects, which may use a different block size (e.g. a 4096
// byte physical sector backing a 512 byte logical sector size).
func sectorRangeToBlocks(boot *BootSector, device BlockDevice, firstSector uint, sectorCount uint) (uint, uint, error) {
	blockSize, numBlocks := device.Characteristics()
	if blockSize == 0 {
		return 0, 0, errors.ErrInvalidArgument.WithMessage("device reports a zero block size")
	}

	byteOffset := uint64(firstSector) * uint64(boot.BytesPerSector)
	byteLength := uint64(sectorCount) * uint64(boot.BytesPerSector)

	if byteOffset%uint64(blockSize) != 0 || byteLength%uint64(blockSize) != 0 {
		return 0, 0, errors.ErrInvalidArgument.WithMessage(
			"sector range is not aligned to the device's block size")
	}

	startBlock := uint(byteOffset / uint64(blockSize))
	blockCount := uint(byteLength / uint64(blockSize))
	if startBlock+blockCount > numBlocks {
		return 0, 0, errors.ErrArgumentOutOfRange.WithMessage("FAT extends past end of device")
	}
	return startBlock, blockCount, nil
}

// Next returns the value stored at cluster c, i.e. the successor cluster in
// whatever chain c belongs to, or an EOC/free marker. The stored value must
// classify as exactly one of FREE, a valid successor cluster number, or an
// EOC marker; anything else (a reserved value, BadCluster, or a number past
// the last data cluster) means the table itself is corrupt.
func (t *Table) Next(c ClusterID) (ClusterID, error) {
	if int(c) >= len(t.entries) {
		return 0, errors.ErrArgumentOutOfRange.WithMessage("cluster number out of range")
	}

	value := t.entries[c]
	switch {
	case IsFree(value):
		return value, nil
	case IsEndOfChain(value):
		return value, nil
	case t.boot.IsValidDataCluster(value):
		return value, nil
	default:
		return 0, errors.ErrFileSystemCorrupted.WithMessage(
			"FAT entry is not FREE, a valid successor cluster, or an end-of-chain marker")
	}
}

// set records value as the FAT entry for cluster c and marks the table dirty.
func (t *Table) set(c ClusterID, value ClusterID) error {
	if int(c) >= len(t.entries) {
		return errors.ErrArgumentOutOfRange.WithMessage("cluster number out of range")
	}
	t.entries[c] = value & clusterValueMask
	t.dirty = true
	return nil
}

// FindFree performs a fresh linear scan of the table for a single free data
// cluster. It never consults or updates any cached allocation state.
func (t *Table) FindFree() (ClusterID, error) {
	end := int(firstValidCluster) + int(t.boot.TotalClusters)
	if end > len(t.entries) {
		end = len(t.entries)
	}
	for i := int(firstValidCluster); i < end; i++ {
		if IsFree(t.entries[i]) {
			return ClusterID(i), nil
		}
	}
	return 0, errors.ErrNoSpaceOnDevice.WithMessage("no free clusters remain")
}

// AllocateChain allocates a brand new chain of length clusters (length must
// be at least 1) and returns the first cluster in it. This replaces the
// original driver's overloaded grow_shrink_chain(-1, length) convention with
// a distinct operation.
func (t *Table) AllocateChain(length uint) (ClusterID, error) {
	if length == 0 {
		return 0, errors.ErrInvalidArgument.WithMessage("chain length must be at least 1")
	}

	allocated := make([]ClusterID, 0, length)
	for uint(len(allocated)) < length {
		next, err := t.FindFree()
		if err != nil {
			t.rollback(allocated)
			return 0, err
		}
		// Mark it provisionally used so the next FindFree scan doesn't
		// return the same cluster.
		if err := t.set(next, EndOfChain); err != nil {
			t.rollback(allocated)
			return 0, err
		}
		allocated = append(allocated, next)
	}

	for i := 0; i < len(allocated)-1; i++ {
		if err := t.set(allocated[i], allocated[i+1]); err != nil {
			t.rollback(allocated)
			return 0, err
		}
	}

	return allocated[0], nil
}

func (t *Table) rollback(clusters []ClusterID) {
	for _, c := range clusters {
		_ = t.set(c, FreeCluster)
	}
}

// GrowShrinkChain adjusts the length of a chain by delta clusters. A positive
// delta appends that many newly allocated clusters after tail, which must be
// the chain's last cluster; a negative delta frees that many clusters
// following tail and re-terminates the chain at tail. A zero delta is a
// no-op.
func (t *Table) GrowShrinkChain(tail ClusterID, delta int) error {
	if delta == 0 {
		return nil
	}

	if delta > 0 {
		newTail, err := t.AllocateChain(uint(delta))
		if err != nil {
			return err
		}
		return t.set(tail, newTail)
	}

	toFree := -delta
	current := tail
	for i := 0; i < toFree; i++ {
		next, err := t.Next(current)
		if err != nil {
			return err
		}
		if IsEndOfChain(next) || IsFree(next) {
			return errors.ErrFileSystemCorrupted.WithMessage(
				"cluster chain is shorter than requested shrink amount")
		}
		if current != tail {
			if err := t.set(current, FreeCluster); err != nil {
				return err
			}
		}
		current = next
	}
	if err := t.set(current, FreeCluster); err != nil {
		return err
	}

	return t.set(tail, EndOfChain)
}

// FreeChain walks the entire chain starting at head, freeing every cluster
// in it. Used by Remove and by rollback paths.
func (t *Table) FreeChain(head ClusterID) error {
	current := head
	for {
		next, err := t.Next(current)
		if err != nil {
			return err
		}
		if err := t.set(current, FreeCluster); err != nil {
			return err
		}
		if IsEndOfChain(next) {
			return nil
		}
		if IsFree(next) {
			return errors.ErrFileSystemCorrupted.WithMessage(
				"encountered a free cluster while walking an allocated chain")
		}
		current = next
	}
}

// Flush writes the in-memory FAT back to every on-disk copy. Failures in
// individual copies are aggregated rather than stopping at the first one, so
// callers learn about every copy that failed to sync, not just the first.
func (t *Table) Flush() error {
	if !t.dirty {
		return nil
	}

	buf := make([]byte, len(t.entries)*entrySize)
	for i, entry := range t.entries {
		binary.LittleEndian.PutUint32(buf[i*entrySize:i*entrySize+entrySize], uint32(entry))
	}

	var result *multierror.Error
	for copyIndex := uint(0); copyIndex < t.boot.NumFATs; copyIndex++ {
		firstSector := t.boot.FirstFATSector + copyIndex*t.boot.SectorsPerFAT
		startBlock, count, err := sectorRangeToBlocks(t.boot, t.device, firstSector, t.boot.SectorsPerFAT)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := t.device.WriteBlocks(startBlock, count, buf); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if result != nil {
		return errors.ErrIOFailed.WrapError(result)
	}

	t.dirty = false
	return nil
}

// FreeClusterBitmap builds a fresh snapshot of which data clusters are
// currently free. It is recomputed from the in-memory table on every call
// and is never retained as allocation state; it exists only to answer
// informational queries like FSStat cheaply without re-deriving the count by
// hand at every call site.
func (t *Table) FreeClusterBitmap() bitmap.Bitmap {
	bm := bitmap.New(len(t.entries))
	end := int(firstValidCluster) + int(t.boot.TotalClusters)
	if end > len(t.entries) {
		end = len(t.entries)
	}
	for i := int(firstValidCluster); i < end; i++ {
		bm.Set(i, IsFree(t.entries[i]))
	}
	return bm
}

// CountFree returns the number of free data clusters, derived from a fresh
// FreeClusterBitmap snapshot.
func (t *Table) CountFree() uint {
	bm := t.FreeClusterBitmap()
	var count uint
	for i := int(firstValidCluster); i < len(t.entries); i++ {
		if bm.Get(i) {
			count++
		}
	}
	return count
}
