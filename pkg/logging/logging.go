// Package logging configures the process-wide zerolog logger the
// engine components write through. Deployments typically run inside
// many short-lived host processes, so the file sink is append-mode
// with a size cap: an oversized log is rolled aside once rather than
// growing without bound.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogFile overrides the log file location; set it empty to disable
// the file sink entirely.
const EnvLogFile = "RESDEPLOY_LOG_FILE"

// maxLogSize is the size at which the previous log is rolled aside.
const maxLogSize = 4 << 20

// SetupLogger configures the global logger from the verbosity level:
// 0=warn, 1=info, 2=debug, 3+=trace. Output goes to stderr and, when
// a log file can be opened, to the file as well.
func SetupLogger(verbosity int) {
	switch verbosity {
	case 0:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}}

	logFile, fileErr := openLogFile()
	if logFile != nil {
		writers = append(writers, logFile)
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()

	// Caller information is only useful when debugging the engine
	// itself.
	if verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	if fileErr != nil {
		log.Warn().Err(fileErr).Msg("Failed to open log file, logging to console only")
	}
	log.Debug().Int("verbosity", verbosity).Msg("Logger initialized")
}

// GetLogger returns a contextualized logger with the given component
// name.
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// logFilePath resolves the log file location: the RESDEPLOY_LOG_FILE
// override when set (empty disables file logging), otherwise
// resdeploy/resdeploy.log under the XDG state directory.
func logFilePath() (string, bool) {
	if path, ok := os.LookupEnv(EnvLogFile); ok {
		return path, path != ""
	}

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "resdeploy", "resdeploy.log"), true
}

// openLogFile opens the append-mode file sink, rolling an oversized
// previous log aside first. A (nil, nil) return means file logging is
// disabled.
func openLogFile() (*os.File, error) {
	path, ok := logFilePath()
	if !ok {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	rotateLogFile(path)

	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// rotateLogFile renames path to path+".old" when it has reached the
// size cap. One generation is enough: the log is a debugging aid,
// not an audit trail.
func rotateLogFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Size() < maxLogSize {
		return
	}
	_ = os.Rename(path, path+".old")
}
