package util

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger format 为 console 时使用开发模式编码器
func NewLogger(level, format string) (*zap.Logger, error) {
	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.DisableStacktrace = true

	return config.Build()
}

// Trace 记录一段操作的耗时，用法: defer util.Trace(logger, "sync")()
func Trace(logger *zap.Logger, msg string) func() {
	start := time.Now()
	logger.Info(msg + " started")
	return func() {
		logger.Info(msg+" finished", zap.Duration("elapsed", time.Since(start)))
	}
}
