// Package log 提供 netsim 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，按组件（子系统）输出结构化日志。
// 日志级别与格式由环境变量控制，见 ConfigFromEnv。
//
// 使用示例:
//
//	var logger = log.Logger("core/netsim")
//
//	logger.Debug("packet routed", "from", src, "to", dst)
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stderr

	// levelOverride 非 nil 时覆盖环境变量中的级别
	levelOverride *slog.Level
)

// SetOutput 设置日志输出目标
//
// 对已创建的 LazyLogger 同样生效。
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
}

// SetOutputWithLevel 同时设置日志输出目标和级别
//
// 常用于测试中捕获日志：
//
//	var buf bytes.Buffer
//	log.SetOutputWithLevel(&buf, slog.LevelDebug)
func SetOutputWithLevel(w io.Writer, level slog.Level) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
	levelOverride = &level
}

// Discard 丢弃所有日志输出（用于测试和基准测试）
func Discard() {
	SetOutput(io.Discard)
}

// currentOutput 返回当前的输出目标和覆盖级别
func currentOutput() (io.Writer, *slog.Level) {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output, levelOverride
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时按当前输出目标和级别构造 handler，
// 支持在运行时切换输出（例如测试中重定向到 buffer）。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) logger() *slog.Logger {
	w, override := currentOutput()
	cfg := ConfigFromEnv()

	level := cfg.LevelForSubsystem(l.component)
	if override != nil {
		level = *override
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("component", l.component)
}

// Enabled 判断指定级别是否会输出
//
// 用于避免在热路径上构造昂贵的日志参数。
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return l.logger().Enabled(context.Background(), level)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.logger().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.logger().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.logger().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.logger().Error(msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.logger().With(args...)
}
