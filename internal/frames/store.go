package frames

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// rangePad widens rehydration queries so boundary frames written a moment
// before or after the segment's own timestamps are still picked up.
const rangePad = 2 * time.Second

// Store persists raw JPEG frames on disk, one file per frame, laid out as
// <base>/<feed>/<YYYY-MM-DD>/<unix-nanos>.jpg so a day's frames can be
// swept in one directory scan.
type Store struct {
	base   string
	logger *slog.Logger
}

// NewStore creates the base directory if needed.
func NewStore(base string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create frame store dir: %w", err)
	}
	return &Store{base: base, logger: logger}, nil
}

// Save writes one frame. The timestamp is the filename, so two frames in
// the same nanosecond would collide; at camera frame rates that cannot
// happen within a single feed.
func (s *Store) Save(feedID string, ts time.Time, jpeg []byte) error {
	dir := filepath.Join(s.base, feedID, ts.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create day dir: %w", err)
	}
	name := strconv.FormatInt(ts.UTC().UnixNano(), 10) + ".jpg"
	if err := os.WriteFile(filepath.Join(dir, name), jpeg, 0o644); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// FramesInRange returns the stored frames for a feed whose timestamps fall
// inside [start, end] padded by two seconds on each side, oldest first.
// Files whose names do not parse as timestamps are skipped with a warning.
func (s *Store) FramesInRange(feedID string, start, end time.Time) ([][]byte, error) {
	start = start.Add(-rangePad)
	end = end.Add(rangePad)

	type stamped struct {
		ts   int64
		path string
	}
	var found []stamped
	for day := start.UTC().Truncate(24 * time.Hour); !day.After(end.UTC()); day = day.Add(24 * time.Hour) {
		dir := filepath.Join(s.base, feedID, day.Format("2006-01-02"))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scan day dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
				continue
			}
			nanos, err := strconv.ParseInt(strings.TrimSuffix(entry.Name(), ".jpg"), 10, 64)
			if err != nil {
				s.logger.Warn("unparsable frame filename",
					slog.String("feed_id", feedID), slog.String("name", entry.Name()))
				continue
			}
			ts := time.Unix(0, nanos)
			if ts.Before(start) || ts.After(end) {
				continue
			}
			found = append(found, stamped{ts: nanos, path: filepath.Join(dir, entry.Name())})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ts < found[j].ts })

	out := make([][]byte, 0, len(found))
	for _, f := range found {
		data, err := os.ReadFile(f.path)
		if err != nil {
			s.logger.Warn("unreadable frame file",
				slog.String("path", f.path), slog.Any("error", err))
			continue
		}
		out = append(out, data)
	}
	return out, nil
}
