// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs a JSON logger as the slog default and returns it.
// Development output carries source locations and local wall-clock times.
func Init(production bool) *slog.Logger {
	return InitTo(os.Stdout, production)
}

func InitTo(w io.Writer, production bool) *slog.Logger {
	var handler slog.Handler

	if production {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: replaceTimeAttr,
			AddSource:   true,
		})
	}

	logger := slog.New(handler).With("service", "pulse")
	slog.SetDefault(logger)
	return logger
}

func replaceTimeAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String("time", a.Value.Time().Local().Format("2006-01-02 15:04:05"))
	}
	return a
}
