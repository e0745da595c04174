package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

type logConfig struct {
	File   string `env:"AUDIOREF_LOG_FILE"`
	Debug  bool   `env:"AUDIOREF_DEBUG"`
	Format string `env:"AUDIOREF_LOG_FORMAT"`
}

// setupLog configures the package-level logger. Logs go to stderr unless
// AUDIOREF_LOG_FILE names a file to append to.
func setupLog() (func() error, error) {
	cfg, err := env.ParseAs[logConfig]()
	if err != nil {
		return nil, fmt.Errorf("error parsing log config: %w", err)
	}

	var (
		w      io.Writer = os.Stderr
		closer           = func() error { return nil }
		isTTY            = term.IsTerminal(int(os.Stderr.Fd()))
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		w, closer, isTTY = f, f.Close, false
	}

	log.SetDefault(log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "audioref",
	}))

	switch cfg.Format {
	case "json":
		log.SetFormatter(log.JSONFormatter)
	case "logfmt":
		log.SetFormatter(log.LogfmtFormatter)
	case "text":
		log.SetFormatter(log.TextFormatter)
	default:
		if !isTTY {
			log.SetFormatter(log.LogfmtFormatter)
		}
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return closer, nil
}
