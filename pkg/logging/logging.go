// Package logging configures the zerolog logger shared by arbor's
// packages. Console output goes to the given writer; a copy is appended to
// a log file under the XDG state directory unless disabled.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// EnvLogFile overrides the log file location.
	EnvLogFile = "ARBOR_LOG_FILE"
	// NoFile disables the log file when used as Options.File or EnvLogFile.
	NoFile = "off"
)

// Options configures Setup.
type Options struct {
	// Verbosity is the -v count
	Verbosity int
	// Console receives human readable output; nil means stderr
	Console io.Writer
	// File overrides LogFile(); NoFile writes to the console only
	File string
}

// LevelFor maps a -v count to a level: warnings by default, then info,
// debug and trace.
func LevelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Setup installs the global logger and returns the log file in use, or ""
// when logging to the console only.
func Setup(opts Options) string {
	zerolog.SetGlobalLevel(LevelFor(opts.Verbosity))

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}}

	path := opts.File
	if path == "" {
		path = LogFile()
	}
	var fileErr error
	if path != NoFile {
		f, err := openLogFile(path)
		if err == nil {
			writers = append(writers, f)
		} else {
			fileErr = err
		}
	}

	ctx := zerolog.New(io.MultiWriter(writers...)).With().Timestamp()
	if opts.Verbosity >= 2 {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", path).Msg("Failed to open log file, logging to console only")
		path = NoFile
	}
	if path == NoFile {
		path = ""
	}
	log.Debug().Int("verbosity", opts.Verbosity).Str("logFile", path).Msg("Logger initialized")
	return path
}

// LogFile is the default log file: $ARBOR_LOG_FILE, else
// $XDG_STATE_HOME/arbor/arbor.log.
func LogFile() string {
	if env := os.Getenv(EnvLogFile); env != "" {
		return env
	}
	// pick up XDG_* changes made after process start
	xdg.Reload()
	if xdg.StateHome == "" {
		return "arbor.log"
	}
	return filepath.Join(xdg.StateHome, "arbor", "arbor.log")
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// GetLogger returns a logger tagged with component.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForRun tags logger with the identity of one reconciliation run.
func ForRun(logger zerolog.Logger, runID, command string, dryRun bool) zerolog.Logger {
	return logger.With().
		Str("run_id", runID).
		Str("command", command).
		Bool("dry_run", dryRun).
		Logger()
}

// Stage logs the start of a named stage at debug level and returns the
// function that logs its end with the elapsed time and the error, if any.
func Stage(logger zerolog.Logger, stage string) func(err error) {
	start := time.Now()
	logger.Debug().Str("stage", stage).Msg("Stage started")

	return func(err error) {
		ev := logger.Debug()
		if err != nil {
			ev = logger.Warn().Err(err)
		}
		ev.Str("stage", stage).
			Dur("duration", time.Since(start)).
			Msg("Stage finished")
	}
}
