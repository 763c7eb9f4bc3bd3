package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"oci-volume-backup/src/errdefs"
)

// Config controls logger initialization.
type Config struct {
	Format string // "json", "console", or "auto"
	Level  string // "trace", "debug", "info", "warn", "error", "disabled"
}

var isTerminalFn = term.IsTerminal

// ParseLevel maps a level name to a zerolog level. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(normalized)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: invalid log level %q", errdefs.ErrConfiguration, level)
	}
	return lvl, nil
}

// New builds a logger writing to out and sets the global level. The global
// log.Logger is replaced as well.
func New(cfg Config, out io.Writer) (zerolog.Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	w, err := selectWriter(cfg.Format, out)
	if err != nil {
		return zerolog.Nop(), err
	}
	zerolog.SetGlobalLevel(lvl)
	logger := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

func selectWriter(format string, out io.Writer) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		return newConsoleWriter(out), nil
	case "json":
		return out, nil
	case "auto", "":
		if f, ok := out.(*os.File); ok && isTerminalFn(int(f.Fd())) {
			return newConsoleWriter(out), nil
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: invalid log format %q", errdefs.ErrConfiguration, format)
	}
}

func newConsoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTTY(out),
	}
}

func isTTY(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && isTerminalFn(int(f.Fd()))
}
