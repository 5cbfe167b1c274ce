// Package download writes HTTP response bodies to disk with optional
// checksum validation and progress reporting.
//
// # Chunked Copy
//
// [Copy] reads a body in [ChunkSize] chunks while the declared content
// length has not been reached, or buffers it and writes it once when
// no length was declared:
//
//	n, err := download.Copy(w, resp.Body, resp.ContentLength)
//
// # Files
//
// [Handle] creates the destination directory, writes through [Copy]
// into a temporary file alongside the destination path, then renames
// it on success:
//
//	err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// Most callers should use [github.com/adamwoolhether/spider/client.Client.Download],
// which runs the request through the retry loop and calls Handle.
package download
