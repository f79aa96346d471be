package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the timestamp embedded in recording file names.
const TimestampLayout = "20060102_150405"

// OutputPath returns {dir}/{channel}_{YYYYMMDD_HHMMSS}.{ext}.
func OutputPath(dir, channel, ext string, startedAt time.Time) string {
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", channel, startedAt.Format(TimestampLayout), ext))
}

// uniqueOutputPath avoids clobbering an earlier capture that started in the
// same second by appending a counter.
func uniqueOutputPath(dir, channel, ext string, startedAt time.Time) (string, error) {
	path := OutputPath(dir, channel, ext, startedAt)
	suffix := filepath.Ext(path)
	base := strings.TrimSuffix(path, suffix)
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat output path: %w", err)
		}
		path = fmt.Sprintf("%s_%d%s", base, i, suffix)
	}
}
