package client

import (
	"hash"

	"github.com/adamwoolhether/spider/client/download"
)

// ————————————————————————————————————————————————————————————————————
// Type aliases – re-export user-facing types from [download].
// ————————————————————————————————————————————————————————————————————

// DownloadError wraps a sentinel error with additional detail.
type DownloadError = download.Error

// ————————————————————————————————————————————————————————————————————
// Sentinel errors
// ————————————————————————————————————————————————————————————————————

var (
	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrDownloadCancelled indicates the download was cancelled via context.
	ErrDownloadCancelled = download.ErrDownloadCancelled
)

// ————————————————————————————————————————————————————————————————————
// Download option forwarding functions
// ————————————————————————————————————————————————————————————————————

// WithChecksum enables checksum validation of the downloaded file.
// h is a [hash.Hash] instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) FetchOption {
	return withDownload(download.WithChecksum(h, expected))
}

// WithProgress enables periodic download progress logging.
func WithProgress() FetchOption { return withDownload(download.WithProgress()) }

// WithSkipExisting makes a download return nil without issuing a
// request when the destination file already exists.
func WithSkipExisting() FetchOption { return withDownload(download.WithSkipExisting()) }

func withDownload(opt download.Option) FetchOption {
	return func(opts *fetchOpts) error {
		opts.downloadOpts = append(opts.downloadOpts, opt)
		return nil
	}
}
