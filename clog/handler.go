package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// clogHandler 封装 slog.Handler，提供动态级别能力
type clogHandler struct {
	slog.Handler
	levelVar *slog.LevelVar
}

// newHandler 构造顺序：writer -> handler options -> json/text handler -> wrapper
func newHandler(config *Config, o *options) (*clogHandler, error) {
	w, err := resolveWriter(config, o)
	if err != nil {
		return nil, err
	}

	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: newReplaceAttr(config),
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &clogHandler{Handler: handler, levelVar: levelVar}, nil
}

func resolveWriter(config *Config, o *options) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "buffer":
		if o.buffer != nil {
			return o.buffer, nil
		}
		return nil, fmt.Errorf("buffer output requires a buffer option")
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// newReplaceAttr 统一 level/time/source 的输出格式
func newReplaceAttr(config *Config) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			level, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			switch {
			case level <= slog.LevelDebug:
				a.Value = slog.StringValue("DEBUG")
			case level <= slog.LevelInfo:
				a.Value = slog.StringValue("INFO")
			case level <= slog.LevelWarn:
				a.Value = slog.StringValue("WARN")
			case level <= slog.LevelError:
				a.Value = slog.StringValue("ERROR")
			default:
				a.Value = slog.StringValue("FATAL")
			}
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
		case slog.SourceKey:
			if source, ok := a.Value.Any().(*slog.Source); ok {
				return slog.String("caller", fmt.Sprintf("%s:%d", trimSourcePath(source.File, config.SourceRoot), source.Line))
			}
		}
		return a
	}
}

func trimSourcePath(fileName, sourceRoot string) string {
	if sourceRoot != "" {
		rel, err := filepath.Rel(sourceRoot, fileName)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Join(filepath.Base(filepath.Dir(fileName)), filepath.Base(fileName))
}

// SetLevel 动态调整日志级别
func (h *clogHandler) SetLevel(level Level) error {
	h.levelVar.Set(level.slogLevel())
	return nil
}
