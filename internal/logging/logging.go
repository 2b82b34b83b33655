// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/polydev-ai/quotaengine/internal/config"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies the configured level and output. When a log file is set,
// output goes to both stderr and a size-rotated file.
func Setup(cfg config.LogConfig) {
	level, errLevel := log.ParseLevel(cfg.Level)
	if errLevel != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotated))
}
