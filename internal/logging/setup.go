package logging

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var setupMu sync.Mutex

// Options controls global logrus configuration.
type Options struct {
	// Debug switches to text formatter with full timestamps and debug level.
	Debug bool
	// File, when non-empty, duplicates output to a size-rotated log file.
	File string
	// MaxSizeMB / MaxBackups / MaxAgeDays tune rotation; zero values
	// fall back to 20 MB, 5 backups, 14 days.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup configures the global logrus logger. Safe to call more than once;
// the last call wins.
func Setup(opts Options) {
	setupMu.Lock()
	defer setupMu.Unlock()

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	}

	out := io.Writer(os.Stdout)
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    valueOr(opts.MaxSizeMB, 20),
			MaxBackups: valueOr(opts.MaxBackups, 5),
			MaxAge:     valueOr(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log.SetOutput(out)
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
