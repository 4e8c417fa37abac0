// Package logger configures the process-wide slog logger for chatd.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu  sync.RWMutex
	def *slog.Logger
)

// Init installs the default slog logger built from cfg.
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter is Init with an explicit sink.
func InitWithWriter(cfg Config, out io.Writer) {
	cfg = cfg.normalized()

	h := contextHandler{newHandler(cfg, out)}
	base := slog.New(h.WithAttrs(cfg.processAttrs()))
	slog.SetDefault(base)

	mu.Lock()
	def = base
	mu.Unlock()
}

func L() *slog.Logger {
	mu.RLock()
	l := def
	mu.RUnlock()
	if l != nil {
		return l
	}

	Init(Config{})
	return L()
}
