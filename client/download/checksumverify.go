package download

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// digest hashes every chunk written to the destination and compares
// the sum once the copy is finished.
type digest struct {
	h    hash.Hash
	want []byte
}

// newDigest decodes the expected hex sum, so a malformed value fails
// before any request is made.
func newDigest(h hash.Hash, expected string) (*digest, error) {
	want, err := hex.DecodeString(strings.TrimSpace(expected))
	if err != nil {
		return nil, fmt.Errorf("decoding expected checksum: %w", err)
	}
	h.Reset()

	return &digest{h: h, want: want}, nil
}

func (d *digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Verify is a no-op on a nil digest.
func (d *digest) Verify() error {
	if d == nil {
		return nil
	}

	if got := d.h.Sum(nil); !bytes.Equal(got, d.want) {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %x, got %x", d.want, got),
		}
	}

	return nil
}
