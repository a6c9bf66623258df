// Package logging provides component loggers backed by a single configured
// logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// LevelEnv overrides the configured log level.
const LevelEnv = "WATCHWIRE_LOG_LEVEL"

// Options configure the base logger.
type Options struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	Level string
	// File, when set, receives every log line.
	File string
	// JSON switches to the logrus JSON formatter.
	JSON bool
	// Stderr controls stderr output: "auto" (default), "always" or "never".
	// In auto mode stderr is used unless it is an interactive terminal that
	// the display owns (Interactive true).
	Stderr string
	// Interactive is true when the terminal display will own the TTY.
	Interactive bool
}

var (
	mu      sync.Mutex
	base    = newBase()
	loggers = make(map[string]*logrus.Entry)
	logFile *os.File
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&TextFormatter{})
	l.SetOutput(os.Stderr)
	return l
}

// Configure applies opts to the base logger shared by every component.
func Configure(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	levelStr := strings.TrimSpace(opts.Level)
	if env := strings.TrimSpace(os.Getenv(LevelEnv)); env != "" {
		levelStr = env
	}
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if opts.JSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&TextFormatter{})
	}

	var writers []io.Writer
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return err
		}
		if logFile != nil {
			_ = logFile.Close()
		}
		logFile = f
		writers = append(writers, f)
	}

	if wantStderr(opts) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		base.SetOutput(io.Discard)
	case 1:
		base.SetOutput(writers[0])
	default:
		base.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

func wantStderr(opts Options) bool {
	switch opts.Stderr {
	case "always":
		return true
	case "never":
		return false
	}
	if !opts.Interactive {
		return true
	}
	fd := os.Stderr.Fd()
	return !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// New returns the logger for component. Loggers are cached per component
// and share the base logger's configuration.
func New(component string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if entry, ok := loggers[component]; ok {
		return entry
	}
	entry := base.WithField("component", component)
	loggers[component] = entry
	return entry
}

// SetOutput redirects the base logger, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base.SetOutput(w)
}

// Close releases the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	base.SetOutput(io.Discard)
	return err
}
