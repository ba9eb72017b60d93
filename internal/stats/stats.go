// Package stats keeps the append-only record of how many calls each run
// extracted.
package stats

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/oohrelay/internal/model"
)

const dateLayout = "2006-01-02"

// Log appends DailyStat lines of the form "2026-10-15, 12" to a file.
type Log struct {
	path string
}

// NewLog returns a Log backed by path. The file is created on first write.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file.
func (l *Log) Path() string {
	return l.path
}

// Record appends one line for date. Prior lines are never touched.
func (l *Log) Record(date time.Time, count int) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating stats directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening stats log: %w", err)
	}

	line := fmt.Sprintf("%s, %d\n", date.Format(dateLayout), count)
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("writing stats log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing stats log: %w", err)
	}
	return f.Close()
}

// Read returns every well-formed line in file order. Lines that cannot be
// parsed are skipped. A missing file yields no stats.
func (l *Log) Read() ([]model.DailyStat, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening stats log for reading: %w", err)
	}
	defer f.Close()

	var out []model.DailyStat
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		date, count, ok := strings.Cut(scanner.Text(), ",")
		if !ok {
			continue
		}
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), time.Local)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			continue
		}
		out = append(out, model.DailyStat{Date: d, Count: n})
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scanning stats log: %w", err)
	}
	return out, nil
}
