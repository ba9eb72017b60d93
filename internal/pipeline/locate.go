package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/oohrelay/internal/model"
)

// DateLayout is the DDMMYY encoding used in export filenames and markers.
const DateLayout = "020106"

// FormatDate encodes t as DDMMYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateToken returns the trailing six characters of filename with its
// extension removed. It reports false for names too short to carry a date.
func DateToken(filename string) (string, bool) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if len(stem) < len(DateLayout) {
		return "", false
	}
	return stem[len(stem)-len(DateLayout):], true
}

// Locator finds today's export among retrieved messages and saves it.
type Locator struct {
	dir        string
	extensions []string
	logger     *slog.Logger
}

// NewLocator creates a Locator writing into dir. Only parts whose
// filename ends in one of extensions (case-insensitive) are considered.
func NewLocator(dir string, extensions []string, logger *slog.Logger) *Locator {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return &Locator{dir: dir, extensions: exts, logger: logger}
}

func (l *Locator) allowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range l.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Locate writes every attachment dated targetDate into the working
// directory and returns the name of the last one written. When several
// parts match, later ones overwrite earlier ones with the same name and
// the last match is reported.
func (l *Locator) Locate(
	messages []model.RetrievedMessage, targetDate string,
) Result[string] {
	var located string

	for _, msg := range messages {
		for _, part := range msg.Attachments() {
			name := filepath.Base(part.Filename)
			if !l.allowed(name) {
				l.logger.Debug("skipping attachment",
					"file", name, "reason", "extension")
				continue
			}

			token, ok := DateToken(name)
			l.logger.Debug("checking attachment",
				"today", targetDate, "file_date", token)
			if !ok || token != targetDate {
				continue
			}

			if err := os.MkdirAll(l.dir, 0o755); err != nil {
				return Failed[string](fmt.Errorf("creating attachment dir %s: %w", l.dir, err))
			}
			path := filepath.Join(l.dir, name)
			if err := os.WriteFile(path, part.Payload, 0o644); err != nil {
				return Failed[string](fmt.Errorf("writing attachment %s: %w", path, err))
			}
			located = name
		}
	}

	if located == "" {
		l.logger.Warn("file not found - try again later")
		return NotFound[string]()
	}

	l.logger.Info("retrieved file", "file", located)
	return Found(located)
}

// Path returns where Locate stores filename.
func (l *Locator) Path(filename string) string {
	return filepath.Join(l.dir, filename)
}
