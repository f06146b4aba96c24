package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器, InitLogger 之前不输出任何内容
var Logger = zerolog.Nop()

// 日志文件名
const (
	MainLogFile  = "fragcrawl.log"
	ErrorLogFile = "fragcrawl_error.log"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string    `mapstructure:"level"`       // trace, debug, info, warn, error
	LogDir     string    `mapstructure:"dir"`         // 日志目录
	MaxSize    int       `mapstructure:"max_size"`    // 单个日志文件最大大小(MB)
	MaxBackups int       `mapstructure:"max_backups"` // 保留的旧日志文件数量
	MaxAge     int       `mapstructure:"max_age"`     // 保留天数
	Compress   bool      `mapstructure:"compress"`    // 是否压缩旧日志
	Console    io.Writer `mapstructure:"-"`           // 控制台输出, 为空时使用 os.Stderr
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger 初始化日志系统
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	mainLog := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, MainLogFile),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	errorLog := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, ErrorLogFile),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	console := config.Console
	if console == nil {
		console = os.Stderr
	}

	writer := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339},
		mainLog,
		&LevelFilterWriter{Writer: errorLog, MinLevel: zerolog.ErrorLevel},
	)

	Logger = zerolog.New(writer).
		With().
		Timestamp().
		Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")

	return nil
}

// LevelFilterWriter 仅写入 MinLevel 及以上级别的日志
type LevelFilterWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 无级别信息的写入直接丢弃
func (w *LevelFilterWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

// WriteLevel 实现 zerolog.LevelWriter
func (w *LevelFilterWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= w.MinLevel && level != zerolog.NoLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

// Info 快捷方法: 信息日志
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Infof 快捷方法: 格式化信息日志
func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

// Error 快捷方法: 错误日志
func Error(err error, msg string) {
	Logger.Error().Err(err).Msg(msg)
}

// Errorf 快捷方法: 格式化错误日志
func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}

// Warn 快捷方法: 警告日志
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Warnf 快捷方法: 格式化警告日志
func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

// Debug 快捷方法: 调试日志
func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

// Debugf 快捷方法: 格式化调试日志
func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}
