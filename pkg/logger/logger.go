package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey 是 logger 放在 context 中使用的 key 型別
type ContextKey string

const (
	// LoggerKey logger 在 context 中的 key
	LoggerKey ContextKey = "logger"
)

// Config 日誌設定
type Config struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Pretty bool   `yaml:"pretty"` // true 時輸出彩色 console 格式，否則 JSON
}

// New 依設定建立結構化 logger
func New(cfg Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return NewWithWriter(out).Level(ParseLevel(cfg.Level))
}

// NewWithWriter 使用自訂 writer 建立 logger (測試用)
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// ParseLevel 解析日誌等級，無法辨識時預設 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext 把 logger 放入 context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext 從 context 取出 logger，沒有的話回傳預設 logger
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New(Config{})
}

// WithFields 在 logger 上附加結構化欄位
func WithFields(logger zerolog.Logger, fields map[string]any) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}
