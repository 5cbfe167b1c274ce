package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ChunkSize is the read size used when the content length is known.
const ChunkSize = 8192

// Copy writes body to w and returns the number of bytes written.
//
// When contentLength is known (>= 0) the body is read in ChunkSize
// chunks, however the underlying reader splits its data. Each
// non-empty chunk is written as is, and reading stops as
// soon as the running total reaches contentLength. A chunk that crosses
// the boundary is written whole; nothing is truncated.
//
// When contentLength is unknown (< 0) the whole body is buffered and
// handed to w in a single Write.
func Copy(w io.Writer, body io.Reader, contentLength int64) (int64, error) {
	if contentLength < 0 {
		b, err := io.ReadAll(body)
		if err != nil {
			return 0, fmt.Errorf("reading body: %w", err)
		}

		n, err := w.Write(b)
		if err != nil {
			return int64(n), fmt.Errorf("writing body: %w", err)
		}

		return int64(n), nil
	}

	var downloaded int64
	buf := make([]byte, ChunkSize)
	for {
		n, rerr := io.ReadFull(body, buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return downloaded, fmt.Errorf("writing chunk: %w", err)
			}
		}
		downloaded += int64(n)

		if downloaded >= contentLength {
			return downloaded, nil
		}

		if rerr != nil {
			// A short final chunk surfaces as ErrUnexpectedEOF.
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return downloaded, nil
			}
			return downloaded, fmt.Errorf("reading chunk: %w", rerr)
		}
	}
}

// Handle streams body into destPath. The destination directory is
// created if missing, data lands in a temp file beside destPath and
// the temp file is renamed on success. On any error the temp file is
// removed.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil
		}
	}

	if err := EnsureDir(filepath.Dir(destPath)); err != nil {
		return err
	}

	body = &contextReader{ctx: ctx, r: body}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".spider-dl-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	var writer io.Writer = file
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	var progress *chunkProgress
	if opts.progress {
		progress = newChunkProgress(writer, logger, contentLength)
		writer = progress
	}

	n, err := Copy(writer, body, contentLength)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}

		return fmt.Errorf("copying file body: %w", err)
	}

	if progress != nil {
		progress.done()
	}

	if contentLength >= 0 && n != contentLength {
		logger.Warn("downloaded length differs from content length", "path", destPath, "expected", contentLength, "written", n)
	}

	if err := opts.checksum.Verify(); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return nil
}

// EnsureDir creates dir and any missing parents. It is a no-op when
// dir already exists.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	return nil
}

// contextReader fails reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
