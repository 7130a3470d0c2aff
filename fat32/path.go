package fat32

import (
	"strings"

	"github.com/dargueta/fatfs32/errors"
)

// slotRef identifies the on-disk location of one directory entry slot: which
// cluster of the directory it lives in, and its index within that cluster.
type slotRef struct {
	cluster ClusterID
	index   int
}

// readCluster reads the raw bytes of a single cluster.
func (fs *FileSystem) readCluster(c ClusterID) ([]byte, error) {
	if !fs.boot.IsValidDataCluster(c) {
		return nil, errors.ErrFileSystemCorrupted.WithMessage("cluster number out of range")
	}
	blockSize, _ := fs.device.Characteristics()
	sector := fs.boot.SectorOfCluster(c)
	startBlock, count, err := sectorRangeToBlocks(fs.boot, fs.device, sector, fs.boot.SectorsPerCluster)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, count*blockSize)
	if err := fs.device.ReadBlocks(startBlock, count, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (fs *FileSystem) writeCluster(c ClusterID, data []byte) error {
	if !fs.boot.IsValidDataCluster(c) {
		return errors.ErrFileSystemCorrupted.WithMessage("cluster number out of range")
	}
	if uint(len(data)) != fs.boot.BytesPerCluster {
		return errors.ErrInvalidArgument.WithMessage("data is not exactly one cluster long")
	}
	sector := fs.boot.SectorOfCluster(c)
	startBlock, count, err := sectorRangeToBlocks(fs.boot, fs.device, sector, fs.boot.SectorsPerCluster)
	if err != nil {
		return err
	}
	return fs.device.WriteBlocks(startBlock, count, data)
}

// splitPath separates a clean absolute path into its parent directory and
// final component. "/" itself, empty paths, and paths with empty components
// (e.g. "/a//b") are rejected, matching the original driver's path_lookup.
func splitPath(path string) (parent string, name string, err error) {
	if path == "" || path[0] != '/' {
		return "", "", errors.ErrInvalidArgument.WithMessage("path must be absolute")
	}
	if path == "/" {
		return "", "", errors.ErrInvalidArgument.WithMessage("root directory has no name")
	}
	if strings.HasSuffix(path, "/") {
		return "", "", errors.ErrInvalidArgument.WithMessage("trailing slash is not allowed")
	}
	if strings.Contains(path, "//") {
		return "", "", errors.ErrInvalidArgument.WithMessage("empty path component")
	}

	idx := strings.LastIndexByte(path, '/')
	name = path[idx+1:]
	if name == "" {
		return "", "", errors.ErrInvalidArgument.WithMessage("empty path component")
	}
	if idx == 0 {
		parent = "/"
	} else {
		parent = path[:idx]
	}
	return parent, name, nil
}

func splitComponents(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, errors.ErrInvalidArgument.WithMessage("path must be absolute")
	}
	if path == "/" {
		return nil, nil
	}
	if strings.HasSuffix(path, "/") {
		return nil, errors.ErrInvalidArgument.WithMessage("trailing slash is not allowed")
	}

	parts := strings.Split(path[1:], "/")
	for _, p := range parts {
		if p == "" {
			return nil, errors.ErrInvalidArgument.WithMessage("empty path component")
		}
	}
	return parts, nil
}

// findInDirectory scans every entry of the directory whose first cluster is
// dirCluster for a slot named name. It stops at the first free slot, since a
// free slot terminates the meaningful portion of a directory exactly like it
// does in the on-disk format itself.
func (fs *FileSystem) findInDirectory(dirCluster ClusterID, name string) (slotRef, *Dirent, error) {
	current := dirCluster
	for {
		data, err := fs.readCluster(current)
		if err != nil {
			return slotRef{}, nil, err
		}

		for i := 0; i < fs.boot.DirentsPerCluster; i++ {
			raw := data[i*DirentSize : (i+1)*DirentSize]
			if classifySlot(raw) == slotFree {
				return slotRef{}, nil, errors.ErrNotFound.WithMessage(name)
			}

			dirent, err := decodeDirent(raw)
			if err != nil {
				return slotRef{}, nil, err
			}
			if strings.EqualFold(dirent.Name, name) {
				return slotRef{cluster: current, index: i}, dirent, nil
			}
		}

		next, err := fs.table.Next(current)
		if err != nil {
			return slotRef{}, nil, err
		}
		if IsEndOfChain(next) {
			return slotRef{}, nil, errors.ErrNotFound.WithMessage(name)
		}
		current = next
	}
}

// resolvePath walks path component by component from the root directory and
// returns the slot and decoded entry for the final component.
func (fs *FileSystem) resolvePath(path string) (slotRef, *Dirent, error) {
	components, err := splitComponents(path)
	if err != nil {
		return slotRef{}, nil, err
	}

	if len(components) == 0 {
		return slotRef{}, &Dirent{Name: "/", Attributes: AttrDirectory, FirstCluster: fs.boot.RootCluster}, nil
	}

	dirCluster := fs.boot.RootCluster
	var ref slotRef
	var dirent *Dirent

	for i, component := range components {
		ref, dirent, err = fs.findInDirectory(dirCluster, component)
		if err != nil {
			return slotRef{}, nil, err
		}
		if i < len(components)-1 {
			if !dirent.IsDir() {
				return slotRef{}, nil, errors.ErrNotADirectory.WithMessage(component)
			}
			dirCluster = dirent.FirstCluster
		}
	}

	return ref, dirent, nil
}

// findFreeSlot returns the first free slot in the directory chain starting at
// dirCluster, growing the chain by one zero-filled cluster if every existing
// cluster is full.
func (fs *FileSystem) findFreeSlot(dirCluster ClusterID) (slotRef, error) {
	current := dirCluster
	for {
		data, err := fs.readCluster(current)
		if err != nil {
			return slotRef{}, err
		}

		for i := 0; i < fs.boot.DirentsPerCluster; i++ {
			raw := data[i*DirentSize : (i+1)*DirentSize]
			if classifySlot(raw) != slotInUse {
				return slotRef{cluster: current, index: i}, nil
			}
		}

		next, err := fs.table.Next(current)
		if err != nil {
			return slotRef{}, err
		}
		if IsEndOfChain(next) {
			if err := fs.table.GrowShrinkChain(current, 1); err != nil {
				return slotRef{}, err
			}
			newCluster, err := fs.table.Next(current)
			if err != nil {
				return slotRef{}, err
			}
			if err := fs.zeroCluster(newCluster); err != nil {
				return slotRef{}, err
			}
			return slotRef{cluster: newCluster, index: 0}, nil
		}
		current = next
	}
}

func (fs *FileSystem) zeroCluster(c ClusterID) error {
	return fs.writeCluster(c, make([]byte, fs.boot.BytesPerCluster))
}

// writeDirentAt writes a decoded Dirent into a specific slot.
func (fs *FileSystem) writeDirentAt(ref slotRef, d *Dirent) error {
	data, err := fs.readCluster(ref.cluster)
	if err != nil {
		return err
	}
	raw, err := encodeDirent(d)
	if err != nil {
		return err
	}
	copy(data[ref.index*DirentSize:(ref.index+1)*DirentSize], raw)
	return fs.writeCluster(ref.cluster, data)
}

// deleteDirentAt zeroes all 32 bytes of a slot, the format's only terminator
// convention. Because findInDirectory and findFreeSlot stop scanning at the
// first such slot, removing any entry but the last one in a directory's used
// range makes every entry after it unreachable until something is created
// again in that cluster. See the design notes for why this is accepted as
// the literal, specified behavior rather than papered over with a second
// slot state the format doesn't define.
func (fs *FileSystem) deleteDirentAt(ref slotRef) error {
	data, err := fs.readCluster(ref.cluster)
	if err != nil {
		return err
	}
	start := ref.index * DirentSize
	for i := 0; i < DirentSize; i++ {
		data[start+i] = 0
	}
	return fs.writeCluster(ref.cluster, data)
}
