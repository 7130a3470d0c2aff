// Package errors defines the POSIX-flavored error vocabulary this FAT32
// driver returns. It started as a compatibility shim covering every errno
// a generic multi-filesystem driver could raise; this module only attaches,
// reads, and writes a FAT32 volume, so the vocabulary below is pared down to
// the errno kinds a FAT32 operation can actually produce (spec.md §7, plus
// the handful of boundary conditions §4's operations need that §7 doesn't
// name directly, e.g. ErrIsADirectory/ErrNotADirectory for path-walk
// mismatches and ErrUnexpectedEOF for truncated reads off the device).

package errors

import (
	"fmt"
)

type DiskoError string

const ErrArgumentOutOfRange = DiskoError("Numerical argument out of domain")
const ErrExists = DiskoError("File exists")
const ErrFileSystemCorrupted = DiskoError("Structure needs cleaning")
const ErrInvalidArgument = DiskoError("Invalid argument")
const ErrIOFailed = DiskoError("Input/output error")
const ErrIsADirectory = DiskoError("Is a directory")
const ErrNameTooLong = DiskoError("File name too long")
const ErrNoSpaceOnDevice = DiskoError("No space left on device")
const ErrNotADirectory = DiskoError("Not a directory")
const ErrNotFound = DiskoError("No such file or directory")
const ErrNotSupported = DiskoError("Operation not supported")
const ErrPermissionDenied = DiskoError("Permission denied")
const ErrReadOnlyFileSystem = DiskoError("Read-only file system")
const ErrUnexpectedEOF = DiskoError("Unexpected end of file or stream")

func (e DiskoError) Error() string {
	return string(e)
}

func (e DiskoError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       message,
		originalError: e,
	}
}

func (e DiskoError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s %s", e.Error(), err.Error()),
		originalError: err,
	}
}
