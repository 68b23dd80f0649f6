// Package logging configures the process-wide zerolog logger, the way
// internal/observability/logging.go does in the source project, trimmed to
// what the ingestion engines need: JSON output, RFC3339Nano timestamps, an
// optional log file in place of stdout, and a level parsed from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global zerolog logger. If logPath is non-empty, logs
// are written to that file (append mode) instead of stdout; a failure to
// open it falls back to stdout with a stderr warning.
func Init(logPath string, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		} else {
			fmt.Fprintf(os.Stderr, "logging: failed to open log file %q: %v\n", logPath, err)
		}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)
}
