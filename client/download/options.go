package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for writing a download to disk.
type Option func(*options) error

type options struct {
	checksum     *digest
	progress     bool
	skipExisting bool
}

// WithChecksum checks the written file against expected, a hex sum
// in either case, computed with h. A file that does not match is
// never renamed into place.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		d, err := newDigest(h, expected)
		if err != nil {
			return err
		}
		opts.checksum = d

		return nil
	}
}

// WithProgress logs the chunk count and bytes written at most once
// per second, and the totals, including any overshoot past the
// declared length, when the copy ends.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithSkipExisting makes Handle return nil immediately when the
// destination file already exists.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// SkipsExisting reports whether the options include WithSkipExisting.
// It lets callers avoid issuing a request for a file already on disk.
func SkipsExisting(optFns ...Option) bool {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return false
		}
	}

	return opts.skipExisting
}
