package app

import (
	"io"
	"log/slog"
)

// logLevels maps accepted log-level names onto slog levels. It doubles as
// the validation table used by NewConfig.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// logFormats enumerates the accepted log output formats.
var logFormats = map[string]bool{
	"text": true,
	"json": true,
}

// newLogger creates the logger for one App instance. It never touches the
// global logger, so isolated apps can run side by side in tests. Level and
// format were already validated by NewConfig.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: logLevels[levelStr]}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}
