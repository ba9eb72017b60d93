// Package marker tracks whether today's export has already been relayed.
package marker

import (
	"fmt"
	"os"
	"path/filepath"
)

// Marker checks and creates the dated sentinel file <dir>/<prefix><date>.xml.
// Only the file's existence matters.
type Marker struct {
	dir    string
	prefix string
}

// New returns a Marker for files named prefix+date+".xml" inside dir.
func New(dir, prefix string) *Marker {
	return &Marker{dir: dir, prefix: prefix}
}

// Path returns the marker file for date (DDMMYY).
func (m *Marker) Path(date string) string {
	return filepath.Join(m.dir, m.prefix+date+".xml")
}

// Exists reports whether the marker for date is present.
func (m *Marker) Exists(date string) (bool, error) {
	_, err := os.Stat(m.Path(date))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking marker: %w", err)
}

// Mark creates the marker for date if it does not exist. An existing file,
// such as the export itself, is left untouched.
func (m *Marker) Mark(date string) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating marker dir: %w", err)
	}
	f, err := os.OpenFile(m.Path(date), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("creating marker: %w", err)
	}
	return f.Close()
}
