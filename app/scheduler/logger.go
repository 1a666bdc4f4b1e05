package scheduler

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/lorenrocu/whatsapp-campaigns/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns the engine logger. Depending on cfg.Output it writes to stdout,
// to a rotating file, or both.
func NewLogger(cfg config.LoggingConfig) *log.Logger {
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC

	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return log.New(os.Stdout, "scheduler ", flags)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		l := log.New(os.Stdout, "scheduler ", flags)
		l.Printf("scheduler: failed to create log directory, logging to stdout only: %v", err)
		return l
	}

	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var w io.Writer = file
	if cfg.Output != "file" {
		w = io.MultiWriter(os.Stdout, file)
	}
	return log.New(w, "scheduler ", flags)
}
