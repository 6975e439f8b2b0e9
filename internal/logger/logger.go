// Package logger builds the service's slog logger from LoggingConfig.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"throttle/internal/models"
	"throttle/internal/version"
)

// ErrFilePathRequired is returned when file output is selected without a path.
var ErrFilePathRequired = errors.New("file path is required when output is file")

// Setup returns a logger carrying the build and instance fields of ver.
// When logging to a file the returned Closer owns the handle; for stdout and
// stderr it is nil.
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	w, closer, err := openWriter(cfg.Output, cfg.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	handler := newHandler(cfg.Format, w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: utcTime,
	})
	return slog.New(handler.WithAttrs(buildAttrs(ver))), closer, nil
}

// parseLevel accepts the slog level names in any case, plus "warning".
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", s)
	}
	return level, nil
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// buildAttrs skips fields the build did not set, so dev builds do not log
// empty commit hashes on every line.
func buildAttrs(ver version.Info) []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	for _, kv := range [][2]string{
		{"version", ver.Version},
		{"git_commit", ver.GitCommit},
		{"channel", ver.Channel},
		{"instance_id", ver.InstanceID},
	} {
		if kv[1] != "" {
			attrs = append(attrs, slog.String(kv[0], kv[1]))
		}
	}
	return attrs
}

func utcTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.TimeValue(a.Value.Time().UTC())
	}
	return a
}

func openWriter(output, filePath string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if filePath == "" {
			return nil, nil, ErrFilePathRequired
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
		}
		return f, f, nil
	default:
		return os.Stdout, nil, nil
	}
}
