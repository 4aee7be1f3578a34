// Package logging wires the gateway's process-level diagnostic
// logging and per-request access logging.
//
// Process logging uses github.com/sirupsen/logrus exactly as the
// teacher's cmd/skipper and config packages do: a package-level level
// and formatter applied once at startup. Callers log through logrus's
// package-level Errorf/Debugf functions with values formatted into the
// message.
package logging

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Level names accepted by ParseLevel, mirroring logrus's own set.
const (
	LevelPanic = "panic"
	LevelFatal = "fatal"
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
	LevelTrace = "trace"
)

// Init configures the shared logrus logger: level, output format (text
// or JSON) and destination. It is safe to call once at process
// startup, before any server goroutines are spawned.
func Init(level, format string, out io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("logging: invalid log format %q", format)
	}

	if out != nil {
		log.SetOutput(out)
	}
	return nil
}
