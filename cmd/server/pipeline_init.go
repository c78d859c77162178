// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/tracklog/internal/applog"
	"github.com/tomtom215/tracklog/internal/config"
	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/supervisor/services"
)

// asyncDispatcher is both the write target of applog.Logger and a
// supervised service.
type asyncDispatcher interface {
	applog.Dispatcher
	services.Dispatcher
}

// pipeline is the async write path chosen by DB_LOG_DISPATCHER. Both
// fields are nil in synchronous mode.
type pipeline struct {
	dispatcher asyncDispatcher
	embedded   *applog.EmbeddedNATS
}

func (p *pipeline) name() string {
	if p.dispatcher == nil {
		return "sync"
	}
	return p.dispatcher.Name()
}

func newPipeline(cfg *config.Config, store applog.Store, side applog.SideChannel) (*pipeline, error) {
	if !cfg.AppLog.Enabled || !cfg.AppLog.Async {
		return &pipeline{}, nil
	}

	d, embedded, err := newDispatcher(cfg, store, side)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("dispatcher", d.Name()).Msg("Async log dispatcher configured")
	return &pipeline{dispatcher: d, embedded: embedded}, nil
}

// abort releases a pipeline that never reached the supervisor tree.
func (p *pipeline) abort() {
	if p.dispatcher != nil {
		if err := p.dispatcher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close log dispatcher")
		}
	}
	if p.embedded != nil {
		shutdownEmbedded(p.embedded)
	}
}

func newDispatcher(cfg *config.Config, store applog.Store, side applog.SideChannel) (asyncDispatcher, *applog.EmbeddedNATS, error) {
	writeTimeout := cfg.AppLog.WriteTimeout

	switch cfg.AppLog.Dispatcher {
	case "channel":
		return applog.NewChannelDispatcher(applog.ChannelDispatcherConfig{
			BufferSize:   cfg.AppLog.BufferSize,
			Workers:      cfg.AppLog.Workers,
			WriteTimeout: writeTimeout,
		}, store, side), nil, nil

	case "watermill":
		pubSub := applog.NewGoChannelPubSub(cfg.AppLog.BufferSize, watermillLogger())
		return applog.NewBrokerDispatcher("watermill", pubSub, pubSub, store, side, writeTimeout), nil, nil

	case "nats":
		natsURL := cfg.NATS.URL
		var embedded *applog.EmbeddedNATS
		if cfg.NATS.Embedded {
			host, port, err := natsListenAddr(natsURL)
			if err != nil {
				return nil, nil, err
			}
			embedded, err = applog.StartEmbeddedNATS(host, port)
			if err != nil {
				return nil, nil, err
			}
			natsURL = embedded.ClientURL()
			logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
		}

		natsCfg := applog.DefaultNATSConfig(natsURL)
		if cfg.NATS.QueueGroup != "" {
			natsCfg.QueueGroup = cfg.NATS.QueueGroup
		}
		natsCfg.Subscribers = cfg.AppLog.Workers
		pub, sub, err := applog.NewNATSPubSub(natsCfg, watermillLogger())
		if err != nil {
			if embedded != nil {
				shutdownEmbedded(embedded)
			}
			return nil, nil, err
		}
		return applog.NewBrokerDispatcher("nats", pub, sub, store, side, writeTimeout), embedded, nil

	case "spool":
		d, err := applog.OpenSpoolDispatcher(applog.SpoolConfig{
			Dir:          cfg.AppLog.SpoolDir,
			WriteTimeout: writeTimeout,
		}, store, side)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown log dispatcher %q", cfg.AppLog.Dispatcher)
	}
}

func watermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger("watermill"))
}

// natsListenAddr extracts host and port from a nats:// URL. A missing port
// means the NATS default.
func natsListenAddr(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS_URL: %w", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Hostname(), 4222, nil //nolint:nilerr // no port in URL
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid NATS_URL port %q", portStr)
	}
	return host, port, nil
}

func shutdownEmbedded(ns *applog.EmbeddedNATS) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ns.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Embedded NATS shutdown failed")
	}
}

// newTracker returns the Sentry tracker when a DSN is configured. The
// returned func flushes buffered events.
func newTracker(cfg *config.Config) (applog.ErrorTracker, func()) {
	if !cfg.Sentry.Enabled() {
		return applog.NopTracker{}, func() {}
	}
	tracker, err := applog.NewSentryTracker(cfg.Sentry.DSN, cfg.Server.Environment, cfg.Sentry.Release)
	if err != nil {
		logging.Warn().Err(err).Msg("Sentry disabled: invalid configuration")
		return applog.NopTracker{}, func() {}
	}
	logging.Info().Msg("Sentry error tracking enabled")
	return tracker, func() { tracker.Flush(2 * time.Second) }
}
