// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" env:"LEVEL" envDefault:"info"`
	Format     string `yaml:"format" env:"FORMAT" envDefault:"console"` // json/console
	Output     string `yaml:"output" env:"OUTPUT" envDefault:"stdout"`  // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" env:"FILE_PATH" envDefault:"logs/sekou.log"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" env:"MAX_SIZE_MB" envDefault:"16"`
	MaxBackups int    `yaml:"max_backups,omitempty" env:"MAX_BACKUPS" envDefault:"8"`
	TimeFormat string `yaml:"time_format,omitempty" env:"TIME_FORMAT" envDefault:"2006-01-02T15:04:05Z07:00"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器，只生效一次
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var output io.Writer
		isTerminal := false
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
			isTerminal = isatty.IsTerminal(os.Stderr.Fd())
		case "file":
			output = &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				Compress:   true,
			}
		default:
			output = os.Stdout
			isTerminal = isatty.IsTerminal(os.Stdout.Fd())
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
				NoColor:    !isTerminal,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

type ctxKey string

const (
	// RequestIDKey 请求ID在上下文中的键
	RequestIDKey ctxKey = "request_id"
	// TenantKey 租户编码在上下文中的键
	TenantKey ctxKey = "tenant"
)

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	c := Get().With()
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		c = c.Str("request_id", reqID)
	}
	if tenant, ok := ctx.Value(TenantKey).(string); ok {
		c = c.Str("tenant", tenant)
	}
	l := c.Logger()
	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// Component 组件专用日志器
func Component(name string) *zerolog.Logger {
	l := Get().With().Str("component", name).Logger()
	return &l
}
