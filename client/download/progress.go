package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// chunkProgress sits in front of the destination writer. Copy hands
// over one chunk per Write, so every non-empty Write counts as a chunk.
type chunkProgress struct {
	dst      io.Writer
	logger   *slog.Logger
	declared int64
	written  int64
	chunks   int
	started  time.Time
	reported time.Time
	now      func() time.Time
}

func newChunkProgress(dst io.Writer, logger *slog.Logger, declared int64) *chunkProgress {
	now := time.Now()
	return &chunkProgress{
		dst:      dst,
		logger:   logger,
		declared: declared,
		started:  now,
		reported: now,
		now:      time.Now,
	}
}

func (p *chunkProgress) Write(b []byte) (int, error) {
	n, err := p.dst.Write(b)
	p.written += int64(n)
	if n > 0 {
		p.chunks++
	}

	if t := p.now(); t.Sub(p.reported) >= time.Second {
		p.reported = t
		p.logger.Info("downloading", p.attrs(t)...)
	}

	return n, err
}

// done logs the totals once the copy has finished.
func (p *chunkProgress) done() {
	p.logger.Info("download complete", p.attrs(p.now())...)
}

func (p *chunkProgress) attrs(t time.Time) []any {
	elapsed := t.Sub(p.started)
	attrs := []any{
		"chunks", p.chunks,
		"written", p.written,
		"elapsed", elapsed.Round(time.Millisecond),
	}

	switch {
	case p.declared < 0:
		attrs = append(attrs, "declared", "unknown")
	case p.written > p.declared:
		attrs = append(attrs, "declared", p.declared, "overshoot", p.written-p.declared)
	case p.declared > 0:
		attrs = append(attrs, "declared", p.declared, "percent", fmt.Sprintf("%.1f", float64(p.written)*100/float64(p.declared)))
	default:
		attrs = append(attrs, "declared", p.declared)
	}

	if secs := elapsed.Seconds(); secs > 0 {
		attrs = append(attrs, "bytes_per_sec", int64(float64(p.written)/secs))
	}

	return attrs
}
