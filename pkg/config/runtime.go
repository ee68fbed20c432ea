package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/notify"
	"github.com/marmos91/dittolpd/pkg/server"
	"github.com/marmos91/dittolpd/pkg/spool"
	"github.com/marmos91/dittolpd/pkg/store/content"
	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// Runtime holds every component built from a configuration.
type Runtime struct {
	Content  content.Store
	Jobs     jobs.Store
	Notifier notify.Notifier
	Spool    *spool.Spool
	Metrics  *MetricsResult
	Server   *server.Server
}

// Build creates stores, notifier, spool and adapters from cfg and
// registers them with a server. The server closes the stores and the
// notifier when Serve returns.
//
// On error every component created so far is closed.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	rt, err := config.Build(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to build server: %v", err)
//	}
//	err = rt.Server.Serve(ctx)
func Build(ctx context.Context, cfg *Config) (_ *Runtime, err error) {
	if cfg == nil {
		return nil, errors.New("configuration is nil")
	}

	var opened []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i].Close()
		}
	}()

	rt := &Runtime{Metrics: InitializeMetrics(cfg)}

	logger.Debug("Creating content store (type: %s)", cfg.Content.Type)
	rt.Content, err = CreateContentStore(ctx, &cfg.Content, rt.Metrics.S3Metrics)
	if err != nil {
		return nil, err
	}
	opened = append(opened, rt.Content)

	logger.Debug("Creating job store (type: %s)", cfg.Jobs.Type)
	rt.Jobs, err = CreateJobStore(ctx, &cfg.Jobs)
	if err != nil {
		return nil, err
	}
	opened = append(opened, rt.Jobs)

	rt.Notifier, err = CreateNotifier(&cfg.Notify)
	if err != nil {
		return nil, err
	}
	opened = append(opened, rt.Notifier)

	rt.Spool, err = CreateSpool(&cfg.Spool, rt.Content, rt.Jobs, rt.Notifier, rt.Metrics.SpoolMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create spool: %w", err)
	}
	logger.Debug("Spool created with %d queue(s)", len(cfg.Spool.Queues))

	adapters, err := CreateAdapters(cfg, rt.Spool, rt.Metrics.LPDMetrics)
	if err != nil {
		return nil, err
	}

	rt.Server = server.New(server.Config{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	for _, a := range adapters {
		if err := rt.Server.AddAdapter(a); err != nil {
			return nil, err
		}
	}
	if rt.Metrics.Server != nil {
		if err := rt.Server.AddAdapter(rt.Metrics.Server); err != nil {
			return nil, err
		}
	}

	rt.Server.AddResource("content store", rt.Content)
	rt.Server.AddResource("job store", rt.Jobs)
	rt.Server.AddResource("notifier", rt.Notifier)

	return rt, nil
}
