package main

import (
	"fmt"
	stdslog "log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/config"
	logrusadapter "github.com/unkn0wn-root/tiercache/log/logrus"
	slogadapter "github.com/unkn0wn-root/tiercache/log/slog"
	zapadapter "github.com/unkn0wn-root/tiercache/log/zap"
)

// newLogger builds the configured backend. flush must run before exit.
func newLogger(cfg config.LogConfig) (tiercache.Logger, func(), error) {
	switch cfg.Backend {
	case "", "zap":
		zc := zap.NewDevelopmentConfig()
		if cfg.Format == "json" {
			zc = zap.NewProductionConfig()
		}
		if cfg.Level != "" {
			lvl, err := zap.ParseAtomicLevel(cfg.Level)
			if err != nil {
				return nil, nil, fmt.Errorf("log level: %w", err)
			}
			zc.Level = lvl
		}
		zc.OutputPaths = []string{"stderr"}
		l, err := zc.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		return zapadapter.New(l), func() { _ = l.Sync() }, nil

	case "logrus":
		l := logrus.New()
		l.SetOutput(os.Stderr)
		if cfg.Format == "json" {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		if cfg.Level != "" {
			lvl, err := logrus.ParseLevel(cfg.Level)
			if err != nil {
				return nil, nil, fmt.Errorf("log level: %w", err)
			}
			l.SetLevel(lvl)
		}
		return logrusadapter.New(l), func() {}, nil

	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil && cfg.Level != "" {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		hopts := &stdslog.HandlerOptions{Level: lvl}
		var h stdslog.Handler = stdslog.NewTextHandler(os.Stderr, hopts)
		if cfg.Format == "json" {
			h = stdslog.NewJSONHandler(os.Stderr, hopts)
		}
		return slogadapter.New(stdslog.New(h)), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
}
