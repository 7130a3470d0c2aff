package fat32

import (
	"time"

	"github.com/dargueta/fatfs32/errors"
)

// Exists reports whether path resolves to a directory entry.
func (fs *FileSystem) Exists(path string) bool {
	_, _, err := fs.resolvePath(path)
	return err == nil
}

// Stat resolves path and returns its decoded directory entry.
func (fs *FileSystem) Stat(path string) (*Dirent, error) {
	_, dirent, err := fs.resolvePath(path)
	return dirent, err
}

// StatHandle returns the decoded directory entry an already-open Handle
// refers to, mirroring the original driver's handle-based stat(state,
// handle, ...) alongside its separate path-based stat_path(state, path, ...).
func (fs *FileSystem) StatHandle(h Handle) (*Dirent, error) {
	return fs.Stat(h.path)
}

// parentDirCluster resolves the cluster a parent path's directory contents
// live in. The root directory is special-cased since it has no directory
// entry of its own to look up.
func (fs *FileSystem) parentDirCluster(parent string) (ClusterID, error) {
	if parent == "/" || parent == "" {
		return fs.boot.RootCluster, nil
	}
	_, dirent, err := fs.resolvePath(parent)
	if err != nil {
		return 0, err
	}
	if !dirent.IsDir() {
		return 0, errors.ErrNotADirectory.WithMessage(parent)
	}
	return dirent.FirstCluster, nil
}

// Create adds a new, empty file or directory at path. The parent directory
// must already exist.
func (fs *FileSystem) Create(path string, isDir bool) error {
	if fs.ReadOnly {
		return errors.ErrReadOnlyFileSystem.WithMessage(path)
	}

	if fs.Exists(path) {
		return errors.ErrExists.WithMessage(path)
	}

	parent, name, err := splitPath(path)
	if err != nil {
		return err
	}

	dirCluster, err := fs.parentDirCluster(parent)
	if err != nil {
		return err
	}

	slot, err := fs.findFreeSlot(dirCluster)
	if err != nil {
		return err
	}

	newCluster, err := fs.table.AllocateChain(1)
	if err != nil {
		return err
	}
	if err := fs.zeroCluster(newCluster); err != nil {
		_ = fs.table.FreeChain(newCluster)
		return err
	}

	now := time.Now()
	attrs := uint8(0)
	if isDir {
		attrs = AttrDirectory
	}

	dirent := &Dirent{
		Name:         name,
		Attributes:   attrs,
		FirstCluster: newCluster,
		Size:         0,
		Created:      now,
		LastModified: now,
		LastAccessed: now,
	}

	if err := fs.writeDirentAt(slot, dirent); err != nil {
		_ = fs.table.FreeChain(newCluster)
		return err
	}

	return nil
}

// Open resolves path and returns an opaque Handle referring to it. The
// driver keeps no open-file table; Handle is just a carrier for the path.
func (fs *FileSystem) Open(path string) (Handle, error) {
	if _, _, err := fs.resolvePath(path); err != nil {
		return Handle{}, err
	}
	return Handle{path: path}, nil
}

// Close verifies the handle's target still exists. It performs no other
// work: there is no open-file table to release anything from.
func (fs *FileSystem) Close(h Handle) error {
	if _, _, err := fs.resolvePath(h.path); err != nil {
		return err
	}
	return nil
}

// Remove deletes the directory entry at path and frees its entire cluster
// chain. It does not check whether a directory is empty before removing it,
// matching the upstream behavior this is modeled on.
func (fs *FileSystem) Remove(path string) error {
	if fs.ReadOnly {
		return errors.ErrReadOnlyFileSystem.WithMessage(path)
	}
	if path == "/" {
		return errors.ErrPermissionDenied.WithMessage("cannot remove the root directory")
	}

	ref, dirent, err := fs.resolvePath(path)
	if err != nil {
		return err
	}

	if err := fs.table.FreeChain(dirent.FirstCluster); err != nil {
		return err
	}

	return fs.deleteDirentAt(ref)
}

// Truncate changes a file's size to length, zero-filling any newly allocated
// clusters when growing and discarding data beyond length when shrinking.
func (fs *FileSystem) Truncate(path string, length int64) error {
	if fs.ReadOnly {
		return errors.ErrReadOnlyFileSystem.WithMessage(path)
	}
	if length < 0 {
		return errors.ErrInvalidArgument.WithMessage("length must not be negative")
	}

	ref, dirent, err := fs.resolvePath(path)
	if err != nil {
		return err
	}
	if dirent.IsDir() {
		return errors.ErrIsADirectory.WithMessage(path)
	}

	clusterSize := int64(fs.boot.BytesPerCluster)
	oldSizeClusters := ceilDivClusters(int64(dirent.Size), clusterSize)
	newSizeClusters := ceilDivClusters(length, clusterSize)

	keepClusters := oldSizeClusters
	if newSizeClusters < keepClusters {
		keepClusters = newSizeClusters
	}

	tail, err := fs.advanceClusters(dirent.FirstCluster, keepClusters-1)
	if err != nil {
		return err
	}

	diff := newSizeClusters - oldSizeClusters

	if length < int64(dirent.Size) {
		// Shrinking: zero the tail of the last retained cluster beyond the
		// new length before freeing everything after it.
		remainderInTail := length % clusterSize
		if length > 0 && remainderInTail == 0 {
			remainderInTail = clusterSize
		}
		buf, err := fs.readCluster(tail)
		if err != nil {
			return err
		}
		for i := remainderInTail; i < clusterSize; i++ {
			buf[i] = 0
		}
		if err := fs.writeCluster(tail, buf); err != nil {
			return err
		}
	}

	if err := fs.table.GrowShrinkChain(tail, int(diff)); err != nil {
		return err
	}

	if diff > 0 {
		current := tail
		for i := int64(0); i < diff; i++ {
			next, err := fs.table.Next(current)
			if err != nil {
				return err
			}
			if err := fs.zeroCluster(next); err != nil {
				return err
			}
			current = next
		}
	}

	dirent.Size = uint32(length)
	dirent.LastModified = time.Now()
	return fs.writeDirentAt(ref, dirent)
}

// ceilDivClusters returns ceil(sizeBytes / clusterSize), with a minimum of 1:
// every file, even an empty one, owns at least its first cluster.
func ceilDivClusters(sizeBytes int64, clusterSize int64) int64 {
	if sizeBytes <= 0 {
		return 1
	}
	n := (sizeBytes + clusterSize - 1) / clusterSize
	if n < 1 {
		return 1
	}
	return n
}

// Rename changes the name of the entry at oldPath to the final component of
// newPath. Cross-directory moves are not supported: oldPath and newPath must
// share the same parent directory.
func (fs *FileSystem) Rename(oldPath string, newPath string) error {
	if fs.ReadOnly {
		return errors.ErrReadOnlyFileSystem.WithMessage(oldPath)
	}

	oldParent, _, err := splitPath(oldPath)
	if err != nil {
		return err
	}
	newParent, newName, err := splitPath(newPath)
	if err != nil {
		return err
	}
	if oldParent != newParent {
		return errors.ErrNotSupported.WithMessage("rename does not support moving between directories")
	}

	ref, dirent, err := fs.resolvePath(oldPath)
	if err != nil {
		return err
	}

	if fs.Exists(newPath) {
		return errors.ErrExists.WithMessage(newPath)
	}

	dirent.Name = newName
	return fs.writeDirentAt(ref, dirent)
}
