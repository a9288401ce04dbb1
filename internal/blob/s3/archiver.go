package s3blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// ArchiverConfig configures a LogArchiver.
type ArchiverConfig struct {
	Writer     domain.BlobWriter
	Prefix     string
	Instrument string
	Files      []string // absolute or working-dir relative log paths
	Interval   time.Duration
	Logger     *slog.Logger
}

// LogArchiver periodically uploads snapshots of the recorder logs. The local
// files are only read, never truncated or rewritten.
type LogArchiver struct {
	cfg    ArchiverConfig
	logger *slog.Logger
	now    func() time.Time

	// uploaded remembers the size last shipped per object key so unchanged
	// files are skipped.
	uploaded map[string]int64
}

// NewLogArchiver creates a LogArchiver. A non-positive interval defaults to
// one hour.
func NewLogArchiver(cfg ArchiverConfig) *LogArchiver {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &LogArchiver{
		cfg:      cfg,
		logger:   cfg.Logger.With(slog.String("component", "log_archiver")),
		now:      time.Now,
		uploaded: make(map[string]int64),
	}
}

// ObjectKey returns <prefix>/<instrument>/<yyyy-mm-dd>/<file>. The instrument's
// slash becomes a dash so it stays one path segment.
func (a *LogArchiver) ObjectKey(file string, at time.Time) string {
	inst := strings.ReplaceAll(a.cfg.Instrument, "/", "-")
	return path.Join(a.cfg.Prefix, inst, at.UTC().Format("2006-01-02"), filepath.Base(file))
}

// Run uploads on every tick and once more on shutdown.
func (a *LogArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			a.ArchiveOnce(final)
			cancel()
			return nil
		case <-ticker.C:
			a.ArchiveOnce(ctx)
		}
	}
}

// ArchiveOnce uploads every configured file that changed since its last
// upload and returns how many objects were written. Failures are logged and
// retried on the next tick.
func (a *LogArchiver) ArchiveOnce(ctx context.Context) int {
	at := a.now()
	n := 0
	for _, file := range a.cfg.Files {
		key := a.ObjectKey(file, at)
		size, err := a.upload(ctx, file, key)
		if err != nil {
			a.logger.Warn("log archive failed",
				slog.String("file", file),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if size >= 0 {
			n++
			a.logger.Info("log archived",
				slog.String("key", key),
				slog.Int64("bytes", size),
			)
		}
	}
	return n
}

// upload ships the first size bytes of file, where size is taken at open so
// concurrent appends do not produce a torn final line. It returns -1 when
// nothing needed uploading.
func (a *LogArchiver) upload(ctx context.Context, file, key string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return 0, fmt.Errorf("s3blob: open %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("s3blob: stat %s: %w", file, err)
	}
	size := info.Size()
	if size == 0 {
		return -1, nil
	}
	if prev, ok := a.uploaded[key]; ok && prev == size {
		return -1, nil
	}

	if err := a.cfg.Writer.Put(ctx, key, io.LimitReader(f, size), "application/x-ndjson"); err != nil {
		return 0, err
	}
	a.uploaded[key] = size
	return size, nil
}
