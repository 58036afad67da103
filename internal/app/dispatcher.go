package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nashra-hq/nashra-dispatch/internal/archive"
	"github.com/nashra-hq/nashra-dispatch/internal/config"
	"github.com/nashra-hq/nashra-dispatch/internal/imaging"
	"github.com/nashra-hq/nashra-dispatch/internal/logger"
	"github.com/nashra-hq/nashra-dispatch/internal/payload"
	"github.com/nashra-hq/nashra-dispatch/internal/publish"
	"github.com/nashra-hq/nashra-dispatch/internal/runner"
	"github.com/nashra-hq/nashra-dispatch/internal/state"
	"github.com/nashra-hq/nashra-dispatch/pkg/httpclient"
	"github.com/nashra-hq/nashra-dispatch/pkg/mirror"
	"github.com/nashra-hq/nashra-dispatch/pkg/sinks"
	"github.com/nashra-hq/nashra-dispatch/pkg/sources"
)

// Dispatcher is the dispatch runtime. It wires sources, payload building,
// the two sinks, optional archiving and mirrors, then drives dispatch passes
// either once per invocation or on a cron schedule.
type Dispatcher struct {
	cfg       *config.Config
	sourceReg *sources.Registry
	run       *runner.Runner
	store     state.Store
	log       logger.Logger
}

// NewDispatcher builds a dispatcher runtime from config files.
func NewDispatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	sourceList := sourceReg.All()
	sourceIDs := make([]string, 0, len(sourceList))
	for _, s := range sourceList {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	httpClient := httpclient.NewRestyClient(cfg.HTTPTimeout)
	fetchers := sources.DefaultFetcherRegistry(httpClient)

	notifier, err := sinks.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("init telegram notifier: %w", err)
	}
	articleSink, err := sinks.NewSiteSink(cfg.SiteAPIURL, cfg.SiteAPIToken, cfg.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("init site sink: %w", err)
	}

	composer, err := imaging.NewComposer(httpClient, imaging.Options{
		LogoPath:    cfg.LogoPath,
		MaxWidth:    cfg.MaxImageWidth,
		MaxHeight:   cfg.MaxImageHeight,
		JPEGQuality: cfg.JPEGQuality,
	})
	if err != nil {
		return nil, fmt.Errorf("init image composer: %w", err)
	}
	builder := payload.NewBuilder(composer, cfg.RequireArticleImage, cfg.Timezone, log)

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}
	log.InfoObj("state store initialized", "state_config", map[string]any{
		"path": cfg.StatePath,
	})

	coordinator, err := publish.NewCoordinator(notifier, articleSink, store, log)
	if err != nil {
		return nil, fmt.Errorf("init coordinator: %w", err)
	}

	var archiver *archive.Archiver
	if cfg.ArchiveEnabled {
		archiver, err = archive.New(archive.Options{
			DataDir:  cfg.ArchiveDataDir,
			IndexDir: cfg.ArchiveIndexDir,
			PageSize: cfg.ArchivePageSize,
			Timezone: cfg.Timezone,
		})
		if err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
	}

	fanout, err := buildFanout(ctx, cfg.MirrorsFile, log)
	if err != nil {
		return nil, err
	}

	run, err := runner.New(fetchers, store, builder, coordinator, archiver, fanout, log)
	if err != nil {
		return nil, fmt.Errorf("init runner: %w", err)
	}

	return &Dispatcher{
		cfg:       cfg,
		sourceReg: sourceReg,
		run:       run,
		store:     store,
		log:       log,
	}, nil
}

// buildFanout loads the mirrors file when configured. No file means no
// mirroring, not an error.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*mirror.Fanout, error) {
	if path == "" {
		return nil, nil
	}

	mirrorReg, err := mirror.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load mirrors registry: %w", err)
	}
	enabled := mirrorReg.Enabled()
	if len(enabled) == 0 {
		log.WarnObj("mirrors file configured but no mirrors enabled", "mirrors_file", path)
		return nil, nil
	}

	clients, err := mirror.BuildAll(ctx, mirror.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build mirrors: %w", err)
	}
	summaries := make([]map[string]string, 0, len(enabled))
	for _, cfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   cfg.ID,
			"type": cfg.Type,
		})
	}
	log.InfoObj("mirrors registry loaded", "mirrors_meta", map[string]any{
		"count":   len(summaries),
		"mirrors": summaries,
	})
	return mirror.NewFanout(clients), nil
}

// Run drives dispatch passes. With no schedule configured it performs a
// single pass and returns, leaving cadence to an external timer. With a cron
// schedule it keeps dispatching until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d == nil || d.run == nil {
		return fmt.Errorf("dispatcher is not initialized")
	}
	defer d.closeStore()

	srcs := d.sourceReg.All()
	if len(srcs) == 0 {
		d.log.WarnObj("no sources configured; nothing to dispatch", "sources_file", d.cfg.SourcesFile)
		return nil
	}

	if d.cfg.Schedule == "" {
		return d.runOnce(ctx, srcs)
	}

	cr := cron.New(cron.WithLocation(d.cfg.Timezone))
	_, err := cr.AddFunc(d.cfg.Schedule, func() {
		if err := d.runOnce(ctx, srcs); err != nil {
			d.log.ErrorObj("scheduled dispatch pass failed", "error", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", d.cfg.Schedule, err)
	}

	d.log.InfoObj("dispatch loop starting", "dispatcher_state", map[string]any{
		"sources_count": len(srcs),
		"schedule":      d.cfg.Schedule,
	})

	cr.Start()
	<-ctx.Done()
	stopCtx := cr.Stop()
	<-stopCtx.Done()
	d.log.InfoObj("dispatch loop exiting", "reason", ctx.Err().Error())
	return nil
}

// runOnce performs a single dispatch pass across all sources.
func (d *Dispatcher) runOnce(ctx context.Context, srcs []sources.Source) error {
	start := time.Now()
	d.log.InfoObj("dispatch pass started", "pass_meta", map[string]any{
		"sources_count": len(srcs),
		"started_at":    start.UTC(),
	})
	if err := d.run.RunAll(ctx, srcs); err != nil {
		return err
	}
	d.log.InfoObj("dispatch pass completed", "pass_meta", map[string]any{
		"sources_count": len(srcs),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return nil
}

// closeStore safely closes the state store, logging any errors encountered.
func (d *Dispatcher) closeStore() {
	if d == nil || d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		d.log.ErrorObj("state store close failed", "error", err.Error())
	}
}
