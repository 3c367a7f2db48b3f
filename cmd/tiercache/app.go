package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/config"
	"github.com/unkn0wn-root/tiercache/devlog"
	"github.com/unkn0wn-root/tiercache/internal/tiers"
	"github.com/unkn0wn-root/tiercache/metrics"
	"github.com/unkn0wn-root/tiercache/stream"
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	configPath string

	cfg     *config.Config
	log     tiercache.Logger
	flush   func()
	reg     *prometheus.Registry
	metrics *metrics.Hooks
	out     io.Writer
}

func (a *app) load() error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	l, flush, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.log, a.flush = l, flush

	if cfg.Metrics.Enabled {
		a.reg = prometheus.NewRegistry()
		a.metrics = metrics.New(a.reg)
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	return nil
}

func (a *app) close() {
	if a.flush != nil {
		a.flush()
		a.flush = nil
	}
}

func (a *app) hooks() tiercache.Hooks {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// openCache returns the cache and a closer that also saves the cookie jar.
func (a *app) openCache(ctx context.Context) (*tiercache.Cache, func(), error) {
	cc, err := tiers.Open(ctx, a.cfg.Cache, tiers.Deps{Logger: a.log, Hooks: a.hooks()})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := tiers.SaveCookies(a.cfg.Cache.Cookies.Path, cc.Cookies()); err != nil {
			a.log.Warn("save cookies failed", tiercache.Fields{"err": err})
		}
		if err := cc.Close(context.Background()); err != nil {
			a.log.Warn("close cache failed", tiercache.Fields{"err": err})
		}
	}
	return cc, closeFn, nil
}

// devlog wraps the app logger so error lines land in the cache when
// devlog.error_key is set.
func (a *app) devlog(cc *tiercache.Cache) *devlog.Logger {
	return devlog.New(devlog.Options{Out: a.log, Cache: cc, ErrorKey: a.cfg.Devlog.ErrorKey})
}

func (a *app) consumer(l tiercache.Logger, observer stream.Observer) (*stream.Consumer, error) {
	opts := stream.Options{
		Endpoint: a.cfg.Stream.Endpoint,
		Timeout:  a.cfg.Stream.Timeout,
		Logger:   l,
		Observer: observer,
	}
	if a.metrics != nil {
		opts.Hooks = a.metrics
	}
	c, err := stream.New(opts)
	if err != nil {
		return nil, fmt.Errorf("stream consumer: %w", err)
	}
	return c, nil
}
