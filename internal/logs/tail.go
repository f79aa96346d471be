package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// CurrentFile is the name of the pointer to the active run's log.
const CurrentFile = "vodwatch.log"

// CurrentPath returns the log pointer inside logDir.
func CurrentPath(logDir string) string {
	return filepath.Join(logDir, CurrentFile)
}

// Last returns up to n final lines of path and the offset just past them.
// A missing file yields no lines.
func Last(path string, n int) ([]string, int64, error) {
	file, err := openLog(path)
	if file == nil {
		return nil, 0, err
	}
	defer file.Close()

	var ring []string
	if n > 0 {
		ring = make([]string, 0, n)
	}
	offset, err := scanLines(file, func(line string) {
		if n <= 0 {
			return
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, line)
	})
	if err != nil {
		return nil, 0, err
	}
	return ring, offset, nil
}

// Since returns complete lines written after offset and the new offset. When
// the file is shorter than offset it was replaced, and reading restarts at 0.
func Since(path string, offset int64) ([]string, int64, error) {
	file, err := openLog(path)
	if file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	read, err := scanLines(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return nil, offset, err
	}
	return lines, offset + read, nil
}

// Follow polls path every interval and hands each new line to fn until ctx
// ends. It returns nil on cancellation.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, fn func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		lines, next, err := Since(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fn(line)
		}
		offset = next
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// scanLines passes every newline-terminated line to fn and returns the bytes
// consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		line = line[:len(line)-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		fn(line)
	}
}
