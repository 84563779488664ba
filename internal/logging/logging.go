// Package logging 构建 zap 日志：控制台可读输出，外加按天切分的 JSON 文件。
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const filePrefix = "jobtracker"

type Options struct {
	Dir     string // 为空时只输出到控制台
	Level   zapcore.Level
	Console io.Writer // 默认 os.Stderr
}

// New 返回 logger 和关闭函数，关闭时刷盘并关闭当天的日志文件
func New(opts Options) (*zap.Logger, func(), error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(console), opts.Level),
	}

	var daily *DailyFile
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		daily = NewDailyFile(opts.Dir, filePrefix)
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), daily, opts.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() {
		_ = logger.Sync()
		if daily != nil {
			_ = daily.Close()
		}
	}
	return logger, closeFn, nil
}
