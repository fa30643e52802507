package logger

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `env:"LOG_LEVEL"`
	Filename   string `env:"LOG_FILENAME"`
	MaxSize    int    `env:"LOG_MAX_SIZE"`
	MaxAge     int    `env:"LOG_MAX_AGE"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS"`
	Daily      bool   `env:"LOG_DAILY"`
}

// Lg 全局日志实例，Init 之前为 Nop
var Lg = zap.NewNop()

// Init 初始化日志
func Init(cfg *LogConfig, mode string) error {
	level := new(zapcore.Level)
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		*level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var cores []zapcore.Core
	if cfg.Filename != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(newRotateWriter(cfg)),
			level,
		))
	}
	if mode != "production" || cfg.Filename == "" {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(os.Stdout),
			level,
		))
	}

	Lg = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	zap.ReplaceGlobals(Lg)
	return nil
}

// newRotateWriter 按大小切割，开启 Daily 时文件名带日期
func newRotateWriter(cfg *LogConfig) *lumberjack.Logger {
	filename := cfg.Filename
	if cfg.Daily {
		ext := filepath.Ext(filename)
		base := strings.TrimSuffix(filename, ext)
		filename = base + "-" + time.Now().Format("2006-01-02") + ext
	}
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
		Compress:   false,
	}
}

func Debug(msg string, fields ...zap.Field) {
	Lg.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Lg.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Lg.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Lg.Error(msg, fields...)
}

// Sync 刷新缓冲
func Sync() {
	_ = Lg.Sync()
}
