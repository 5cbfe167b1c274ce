package download

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksumMismatch means the written file does not hash to the
	// value given with WithChecksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrDownloadCancelled means the context ended while the body was
	// being copied.
	ErrDownloadCancelled = errors.New("download cancelled")
)

// Error carries one of the sentinel errors above along with detail
// about the file that failed.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
