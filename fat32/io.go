package fat32

import (
	"time"

	"github.com/dargueta/fatfs32/errors"
)

// advanceClusters walks count clusters forward from start, returning the
// cluster count steps away. It is an error to walk past the end of the
// chain.
func (fs *FileSystem) advanceClusters(start ClusterID, count int64) (ClusterID, error) {
	current := start
	for i := int64(0); i < count; i++ {
		next, err := fs.table.Next(current)
		if err != nil {
			return 0, err
		}
		if IsEndOfChain(next) || IsFree(next) {
			return 0, errors.ErrFileSystemCorrupted.WithMessage("cluster chain shorter than expected")
		}
		current = next
	}
	return current, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ReadFile reads up to len(buf) bytes from path starting at offset, returning
// the number of bytes actually read. Reading exactly at end-of-file returns
// (0, nil); reading past it is an error.
func (fs *FileSystem) ReadFile(path string, offset int64, buf []byte) (int, error) {
	_, dirent, err := fs.resolvePath(path)
	if err != nil {
		return 0, err
	}
	if dirent.IsDir() {
		return 0, errors.ErrIsADirectory.WithMessage(path)
	}

	fileSize := int64(dirent.Size)
	if offset > fileSize {
		return 0, errors.ErrArgumentOutOfRange.WithMessage("offset past end of file")
	}
	if offset == fileSize {
		return 0, nil
	}

	toRead := minInt(len(buf), int(fileSize-offset))
	if toRead == 0 {
		return 0, nil
	}

	clusterSize := int64(fs.boot.BytesPerCluster)
	startClusterIndex := offset / clusterSize
	remainder := offset % clusterSize

	current, err := fs.advanceClusters(dirent.FirstCluster, startClusterIndex)
	if err != nil {
		return 0, err
	}

	destOff := 0
	for destOff < toRead {
		data, err := fs.readCluster(current)
		if err != nil {
			return destOff, err
		}

		n := minInt(int(clusterSize-remainder), toRead-destOff)
		copy(buf[destOff:destOff+n], data[remainder:int(remainder)+n])
		destOff += n
		remainder = 0

		if destOff == toRead {
			break
		}

		next, err := fs.table.Next(current)
		if err != nil {
			return destOff, err
		}
		if IsEndOfChain(next) {
			break
		}
		current = next
	}

	return destOff, nil
}

// WriteFile writes data to path starting at offset, growing the file's
// cluster chain if the write extends past the current end of file. The two
// cases - writing entirely within the current size, and writing past it -
// are handled as strictly disjoint branches, matching the source behavior
// this driver is modeled on.
func (fs *FileSystem) WriteFile(path string, offset int64, data []byte) (int, error) {
	if fs.ReadOnly {
		return 0, errors.ErrReadOnlyFileSystem.WithMessage(path)
	}

	ref, dirent, err := fs.resolvePath(path)
	if err != nil {
		return 0, err
	}
	if dirent.IsDir() {
		return 0, errors.ErrIsADirectory.WithMessage(path)
	}
	if dirent.IsReadOnly() {
		return 0, errors.ErrPermissionDenied.WithMessage(path)
	}

	fileSize := int64(dirent.Size)
	numBytes := int64(len(data))

	if offset > fileSize {
		return 0, errors.ErrArgumentOutOfRange.WithMessage("offset past end of file")
	}

	var n int
	if offset+numBytes <= fileSize {
		n, err = fs.writeInPlace(dirent, offset, data)
	} else {
		n, err = fs.writeExtending(dirent, offset, data)
	}
	if err != nil {
		return n, err
	}

	dirent.LastModified = time.Now()
	if newSize := offset + int64(n); newSize > fileSize {
		dirent.Size = uint32(newSize)
	}
	if err := fs.writeDirentAt(ref, dirent); err != nil {
		return n, err
	}

	return n, nil
}

// writeInPlace handles offset+len(data) <= file size: every byte written
// lands inside clusters the file already owns.
func (fs *FileSystem) writeInPlace(dirent *Dirent, offset int64, data []byte) (int, error) {
	clusterSize := int64(fs.boot.BytesPerCluster)
	startClusterIndex := offset / clusterSize
	remainder := offset % clusterSize

	current, err := fs.advanceClusters(dirent.FirstCluster, startClusterIndex)
	if err != nil {
		return 0, err
	}

	srcOff := 0
	for srcOff < len(data) {
		buf, err := fs.readCluster(current)
		if err != nil {
			return srcOff, err
		}

		n := minInt(int(clusterSize-remainder), len(data)-srcOff)
		copy(buf[remainder:int(remainder)+n], data[srcOff:srcOff+n])
		if err := fs.writeCluster(current, buf); err != nil {
			return srcOff, err
		}

		srcOff += n
		remainder = 0
		if srcOff == len(data) {
			break
		}

		next, err := fs.table.Next(current)
		if err != nil {
			return srcOff, err
		}
		current = next
	}

	return srcOff, nil
}

// writeExtending handles offset+len(data) > file size: the write fills
// whatever clusters the file already owns from offset onward, then allocates
// new clusters for everything past the old end of the chain.
func (fs *FileSystem) writeExtending(dirent *Dirent, offset int64, data []byte) (int, error) {
	clusterSize := int64(fs.boot.BytesPerCluster)
	startClusterIndex := offset / clusterSize
	remainder := offset % clusterSize
	if remainder == 0 && startClusterIndex > 0 && offset == int64(dirent.Size) {
		// Appending at a cluster-aligned end of file: start at the end of the
		// chain's last (full) cluster rather than one cluster past the chain.
		startClusterIndex--
		remainder = clusterSize
	}

	current, err := fs.advanceClusters(dirent.FirstCluster, startClusterIndex)
	if err != nil {
		return 0, err
	}

	srcOff := 0
	for srcOff < len(data) {
		next, err := fs.table.Next(current)
		if err != nil {
			return srcOff, err
		}
		if IsEndOfChain(next) {
			break
		}

		buf, err := fs.readCluster(current)
		if err != nil {
			return srcOff, err
		}
		n := minInt(int(clusterSize-remainder), len(data)-srcOff)
		copy(buf[remainder:int(remainder)+n], data[srcOff:srcOff+n])
		if err := fs.writeCluster(current, buf); err != nil {
			return srcOff, err
		}
		srcOff += n
		remainder = 0
		current = next
	}

	// current is now the chain's last cluster; fill whatever room it has left
	// before allocating more.
	buf, err := fs.readCluster(current)
	if err != nil {
		return srcOff, err
	}
	n := minInt(int(clusterSize-remainder), len(data)-srcOff)
	copy(buf[remainder:int(remainder)+n], data[srcOff:srcOff+n])
	if err := fs.writeCluster(current, buf); err != nil {
		return srcOff, err
	}
	srcOff += n

	if srcOff == len(data) {
		return srcOff, nil
	}

	remainingBytes := len(data) - srcOff
	numNewClusters := (int64(remainingBytes) + clusterSize - 1) / clusterSize
	if err := fs.table.GrowShrinkChain(current, int(numNewClusters)); err != nil {
		return srcOff, err
	}

	for srcOff < len(data) {
		next, err := fs.table.Next(current)
		if err != nil {
			return srcOff, err
		}
		current = next

		buf := make([]byte, clusterSize)
		n := minInt(int(clusterSize), len(data)-srcOff)
		copy(buf[:n], data[srcOff:srcOff+n])
		if err := fs.writeCluster(current, buf); err != nil {
			return srcOff, err
		}
		srcOff += n
	}

	return srcOff, nil
}
