// Package telemetry 负责结构化日志与 Prometheus 指标
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// InitLogger 设置默认 logger：stderr 输出 JSON（stdout 留给命令结果），logFile 非空时同时写入文件。
// 返回的 io.Closer 用于关闭日志文件，没有文件时为空操作。
func InitLogger(debug bool, logFile string) io.Closer {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewJSONHandler(os.Stderr, opts)}
	var closer io.Closer = nopCloser{}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
			closer = f
		} else {
			slog.Error("打开日志文件失败", "path", logFile, "error", err)
		}
	}

	slog.SetDefault(slog.New(fanOut(handlers...)))
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func fanOut(handlers ...slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return &multiHandler{handlers: handlers}
}

// multiHandler 把同一条记录分发给多个 handler
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

func LogDebug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

func LogInfo(msg string, args ...any) {
	slog.Info(msg, args...)
}

func LogWarn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// LogError 记录错误，err 以 "error" 字段输出
func LogError(msg string, err error, args ...any) {
	slog.Error(msg, append(args, "error", err)...)
}
