// Package logging provides the structured logger shared across the daemon.
//
// Every long-running component takes a *log.Logger scoped with With("component", ...)
// rather than reaching for the global logger, so per-component log level overrides
// and prefixing stay possible without touching call sites.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New builds the root logger. verbose raises the level to Debug; quiet raises it
// to Warn. Both can't be true at once -- callers resolve that before calling New.
func New(verbose, quiet bool, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stderr
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})

	switch {
	case verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.WarnLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	return logger
}

// Component returns a derived logger tagged with the owning component's name, the
// way every task in the daemon identifies itself in its log lines.
func Component(base *log.Logger, name string) *log.Logger {
	return base.With("component", name)
}
