package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	Level  string
	Format string
	// File, when set, receives the log stream instead of stderr.
	File string
	// Stderr is used when File is empty or cannot be opened.
	Stderr io.Writer
}

// New builds the process logger. The returned close function releases the
// log file, if one was opened, and is always safe to call.
func New(opts Options) (zerolog.Logger, func() error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var (
		out       io.Writer = stderr
		closeFn             = func() error { return nil }
		toFile    bool
		fileError error
	)
	if path := strings.TrimSpace(opts.File); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			fileError = err
		} else {
			out = file
			closeFn = file.Close
			toFile = true
		}
	}

	if !strings.EqualFold(strings.TrimSpace(opts.Format), FormatJSON) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: toFile}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if fileError != nil {
		logger.Warn().Err(fileError).Str("file", opts.File).Msg("log file unavailable, logging to stderr")
	}

	return logger, closeFn
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
