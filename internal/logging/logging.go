// Package logging builds the run logger: slog text records written to a
// size-rotated file and mirrored to a console writer.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/oohrelay/internal/model"
)

// New returns a logger writing to cfg.File (rotated at cfg.MaxSizeMB,
// keeping cfg.MaxBackups old files) and to console, plus the closer for
// the file. A nil console writes to the file only. Debug lowers the level
// from INFO to DEBUG.
func New(cfg model.LogConfig, debug bool, console io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, err
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}

	var w io.Writer = file
	if console != nil {
		w = io.MultiWriter(file, console)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level(debug),
	})), file, nil
}

// Level maps the debug flag to a slog level.
func Level(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
