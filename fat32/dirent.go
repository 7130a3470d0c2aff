package fat32

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/dargueta/fatfs32/errors"
)

// DirentSize is the size, in bytes, of a single on-disk directory entry.
const DirentSize = 32

// Attribute flags, matching the FAT standard bit layout.
const (
	AttrReadOnly    = 1 << 0
	AttrHidden      = 1 << 1
	AttrSystem      = 1 << 2
	AttrVolumeLabel = 1 << 3
	AttrDirectory   = 1 << 4
	AttrArchived    = 1 << 5
)

// fatEpoch is the earliest timestamp representable in a FAT directory entry:
// 1980-01-01, UTC.
var fatEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Dirent is the decoded form of a 32-byte directory entry.
type Dirent struct {
	Name         string
	Attributes   uint8
	FirstCluster ClusterID
	Size         uint32
	Created      time.Time
	LastModified time.Time
	LastAccessed time.Time
}

func (d *Dirent) IsDir() bool {
	return d.Attributes&AttrDirectory != 0
}

func (d *Dirent) IsReadOnly() bool {
	return d.Attributes&AttrReadOnly != 0
}

// encodeShortName converts a filename into its padded 8.3 on-disk form. Names
// are case-folded to uppercase, matching the original FAT short-name
// encoding; this driver does not implement long file names.
func encodeShortName(name string) ([11]byte, error) {
	var raw [11]byte
	for i := range raw {
		raw[i] = ' '
	}

	if name == "" || name == "." || name == ".." {
		// "." and ".." get a literal dotted encoding handled by the caller;
		// an empty name is always invalid.
		if name == "" {
			return raw, errors.ErrInvalidArgument.WithMessage("file name must not be empty")
		}
		copy(raw[:], strings.ToUpper(name))
		return raw, nil
	}

	stem := name
	ext := ""
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		stem = name[:idx]
		ext = name[idx+1:]
	}

	if len(stem) == 0 || len(stem) > 8 {
		return raw, errors.ErrNameTooLong.WithMessage(
			fmt.Sprintf("file name stem must be 1-8 characters: %q", stem))
	}
	if len(ext) > 3 {
		return raw, errors.ErrNameTooLong.WithMessage(
			fmt.Sprintf("file extension must be at most 3 characters: %q", ext))
	}

	copy(raw[0:8], strings.ToUpper(fmt.Sprintf("%-8s", stem)))
	copy(raw[8:11], strings.ToUpper(fmt.Sprintf("%-3s", ext)))
	return raw, nil
}

// decodeShortName reverses encodeShortName.
func decodeShortName(raw [11]byte) string {
	stem := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

// dateToFAT encodes a time.Time's date component into a FAT 16-bit date
// field. Dates before fatEpoch are clamped to it, since the format cannot
// represent them.
func dateToFAT(t time.Time) uint16 {
	if t.Before(fatEpoch) {
		t = fatEpoch
	}
	year := uint16(t.Year() - 1980)
	month := uint16(t.Month())
	day := uint16(t.Day())
	return (year << 9) | (month << 5) | day
}

// timeToFAT encodes a time.Time's time-of-day component into a FAT 16-bit
// time field, with two-second resolution.
func timeToFAT(t time.Time) uint16 {
	hours := uint16(t.Hour())
	minutes := uint16(t.Minute())
	seconds := uint16(t.Second() / 2)
	return (hours << 11) | (minutes << 5) | seconds
}

func fatToDate(v uint16) time.Time {
	day := int(v & 0x1F)
	month := time.Month((v >> 5) & 0x0F)
	year := 1980 + int(v>>9)
	if day == 0 || month == 0 {
		return fatEpoch
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func fatToTime(datePart uint16, timePart uint16) time.Time {
	d := fatToDate(datePart)
	hours := int(timePart >> 11)
	minutes := int((timePart >> 5) & 0x3F)
	seconds := int((timePart & 0x1F) * 2)
	return time.Date(d.Year(), d.Month(), d.Day(), hours, minutes, seconds, 0, time.UTC)
}

// encodeDirent serializes a Dirent into its 32-byte on-disk form.
func encodeDirent(d *Dirent) ([]byte, error) {
	raw := make([]byte, DirentSize)

	name, err := encodeShortName(d.Name)
	if err != nil {
		return nil, err
	}
	copy(raw[0:11], name[:])

	raw[11] = d.Attributes

	high, low := splitCluster(d.FirstCluster)
	binary.LittleEndian.PutUint16(raw[14:16], timeToFAT(d.Created))
	binary.LittleEndian.PutUint16(raw[16:18], dateToFAT(d.Created))
	binary.LittleEndian.PutUint16(raw[18:20], dateToFAT(d.LastAccessed))
	binary.LittleEndian.PutUint16(raw[20:22], high)
	binary.LittleEndian.PutUint16(raw[22:24], timeToFAT(d.LastModified))
	binary.LittleEndian.PutUint16(raw[24:26], dateToFAT(d.LastModified))
	binary.LittleEndian.PutUint16(raw[26:28], low)
	binary.LittleEndian.PutUint32(raw[28:32], d.Size)

	return raw, nil
}

// direntSlotState classifies the first byte of a raw directory entry. The
// format defines exactly one terminator convention: name[0] == 0x00 marks
// this slot, and every slot after it in the chain, as free.
type direntSlotState int

const (
	slotInUse direntSlotState = iota
	slotFree
)

func classifySlot(raw []byte) direntSlotState {
	if raw[0] == 0x00 {
		return slotFree
	}
	return slotInUse
}

// decodeDirent deserializes a 32-byte on-disk directory entry. Callers must
// check classifySlot first; decodeDirent assumes the slot is in use.
func decodeDirent(raw []byte) (*Dirent, error) {
	if len(raw) != DirentSize {
		return nil, errors.ErrInvalidArgument.WithMessage("directory entry must be exactly 32 bytes")
	}

	var nameBytes [11]byte
	copy(nameBytes[:], raw[0:11])

	attrs := raw[11]
	lastModTime := binary.LittleEndian.Uint16(raw[22:24])
	lastModDate := binary.LittleEndian.Uint16(raw[24:26])
	createdTime := binary.LittleEndian.Uint16(raw[14:16])
	createdDate := binary.LittleEndian.Uint16(raw[16:18])
	lastAccessedDate := binary.LittleEndian.Uint16(raw[18:20])
	high := binary.LittleEndian.Uint16(raw[20:22])
	low := binary.LittleEndian.Uint16(raw[26:28])
	size := binary.LittleEndian.Uint32(raw[28:32])

	return &Dirent{
		Name:         decodeShortName(nameBytes),
		Attributes:   attrs,
		FirstCluster: joinCluster(high, low),
		Size:         size,
		Created:      fatToTime(createdDate, createdTime),
		LastModified: fatToTime(lastModDate, lastModTime),
		LastAccessed: fatToDate(lastAccessedDate),
	}, nil
}
