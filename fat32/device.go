package fat32

import (
	"io"

	"github.com/dargueta/fatfs32/errors"
)

// BlockDevice is the external collaborator every filesystem operation bottoms
// out in. It presents a disk, partition, or disk image as a flat array of
// fixed-size blocks; the driver never assumes anything about what's behind
// it beyond that contract.
//
// Implementations are not required to be safe for concurrent use, matching
// the single-threaded execution model of the rest of this package.
type BlockDevice interface {
	// Characteristics reports the device's block size in bytes and its total
	// number of blocks.
	Characteristics() (blockSize uint, numBlocks uint)

	// ReadBlocks reads count whole blocks starting at block start into buf.
	// buf must be exactly count*blockSize bytes long.
	ReadBlocks(start uint, count uint, buf []byte) error

	// WriteBlocks writes count whole blocks of data to the device starting at
	// block start. data must be exactly count*blockSize bytes long.
	WriteBlocks(start uint, count uint, data []byte) error
}

// FileBlockDevice adapts any io.ReadWriteSeeker (an *os.File backing a real
// disk image, or an in-memory buffer in tests) into a BlockDevice.
type FileBlockDevice struct {
	stream    io.ReadWriteSeeker
	blockSize uint
	numBlocks uint
}

// NewFileBlockDevice wraps stream as a BlockDevice with the given block size.
// numBlocks is taken as given rather than derived from the stream's length,
// since some streams (like bytesextra-wrapped byte slices) don't report a
// stable length the same way a file does.
func NewFileBlockDevice(stream io.ReadWriteSeeker, blockSize uint, numBlocks uint) *FileBlockDevice {
	return &FileBlockDevice{stream: stream, blockSize: blockSize, numBlocks: numBlocks}
}

func (d *FileBlockDevice) Characteristics() (uint, uint) {
	return d.blockSize, d.numBlocks
}

func (d *FileBlockDevice) checkBounds(start, count uint) error {
	if count == 0 {
		return nil
	}
	if start >= d.numBlocks || start+count > d.numBlocks {
		return errors.ErrArgumentOutOfRange.WithMessage(
			"block range extends past end of device")
	}
	return nil
}

func (d *FileBlockDevice) seekToBlock(start uint) error {
	offset := int64(start) * int64(d.blockSize)
	_, err := d.stream.Seek(offset, io.SeekStart)
	return err
}

func (d *FileBlockDevice) ReadBlocks(start uint, count uint, buf []byte) error {
	if err := d.checkBounds(start, count); err != nil {
		return err
	}
	want := int(count * d.blockSize)
	if len(buf) != want {
		return errors.ErrInvalidArgument.WithMessage("buffer size does not match block count")
	}
	if err := d.seekToBlock(start); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	return nil
}

func (d *FileBlockDevice) WriteBlocks(start uint, count uint, data []byte) error {
	if err := d.checkBounds(start, count); err != nil {
		return err
	}
	want := int(count * d.blockSize)
	if len(data) != want {
		return errors.ErrInvalidArgument.WithMessage("data size does not match block count")
	}
	if err := d.seekToBlock(start); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	if _, err := d.stream.Write(data); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	return nil
}
