// Package logging configures slog for the propchain server and CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs the default slog logger on stdout.
// Dev mode emits debug-level text; otherwise info-level JSON.
func Setup(devMode bool) {
	SetupWriter(os.Stdout, devMode)
}

// SetupWriter installs the default slog logger writing to w.
func SetupWriter(w io.Writer, devMode bool) {
	slog.SetDefault(slog.New(newHandler(w, devMode)))
}

func newHandler(w io.Writer, devMode bool) slog.Handler {
	if devMode {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
}
