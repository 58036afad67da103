package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nashra-hq/nashra-dispatch/internal/archive"
	"github.com/nashra-hq/nashra-dispatch/internal/domain"
	"github.com/nashra-hq/nashra-dispatch/internal/logger"
	"github.com/nashra-hq/nashra-dispatch/internal/payload"
	"github.com/nashra-hq/nashra-dispatch/internal/state"
	"github.com/nashra-hq/nashra-dispatch/pkg/mirror"
	"github.com/nashra-hq/nashra-dispatch/pkg/sources"
)

// PayloadBuilder converts a detected-new item into the two sink payloads.
type PayloadBuilder interface {
	Build(ctx context.Context, item *domain.Item) (payload.NotificationPayload, payload.ArticlePayload, error)
}

// Publisher runs one delivery attempt against both sinks and commits state.
type Publisher interface {
	Publish(ctx context.Context, item *domain.Item, note payload.NotificationPayload, article payload.ArticlePayload) (domain.PublishOutcome, error)
}

// Runner drives one poll-detect-publish cycle per source. Cycles for the same
// source never overlap; distinct sources are isolated so one failing feed
// cannot block the others.
type Runner struct {
	fetchers sources.FetcherRegistry
	store    state.Store
	builder  PayloadBuilder
	pub      Publisher
	archiver *archive.Archiver
	fanout   *mirror.Fanout
	log      logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wires a runner. Archiver and fanout are optional; pass nil to disable
// archiving or mirroring.
func New(fetchers sources.FetcherRegistry, store state.Store, builder PayloadBuilder, pub Publisher, archiver *archive.Archiver, fanout *mirror.Fanout, log logger.Logger) (*Runner, error) {
	if fetchers == nil || store == nil || builder == nil || pub == nil {
		return nil, fmt.Errorf("runner requires fetchers, store, builder and publisher")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Runner{
		fetchers: fetchers,
		store:    store,
		builder:  builder,
		pub:      pub,
		archiver: archiver,
		fanout:   fanout,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// RunAll executes one cycle for every source in order. Per-source failures
// are collected rather than aborting the pass, so a broken feed never stops
// the remaining sources from being polled.
func (r *Runner) RunAll(ctx context.Context, srcs []sources.Source) error {
	var errs []error
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.RunSource(ctx, src); err != nil {
			errs = append(errs, fmt.Errorf("source %q: %w", src.ID, err))
		}
	}
	return errors.Join(errs...)
}

// RunSource executes one full cycle for a single source: fetch the latest
// item, compare it to the last published fingerprint, and publish when it is
// new. Returns nil when the cycle is a no-op.
func (r *Runner) RunSource(ctx context.Context, src sources.Source) error {
	lock := r.sourceLock(src.ID)
	lock.Lock()
	defer lock.Unlock()

	fetcher, err := r.fetchers.FetcherFor(src)
	if err != nil {
		return err
	}

	item, err := fetcher.FetchLatest(ctx, src)
	if err != nil {
		return fmt.Errorf("fetch latest: %w", err)
	}
	if item == nil {
		r.log.DebugObj("feed has no entries", "cycle_noop", map[string]any{"source": src.ID})
		return nil
	}

	// A state read failure means no safe decision is possible this cycle.
	// Publishing anyway could re-deliver everything after a store outage.
	last, err := r.store.GetLast(item.Source)
	if err != nil {
		return fmt.Errorf("read last-seen state: %w", err)
	}

	if !IsNew(item, last) {
		r.log.DebugObj("latest item already published", "cycle_noop", map[string]any{
			"source":      src.ID,
			"fingerprint": item.Fingerprint,
		})
		return nil
	}

	// An incomplete payload aborts before either sink sees the item; state
	// stays put and the next cycle retries from scratch.
	note, article, err := r.builder.Build(ctx, item)
	if err != nil {
		return fmt.Errorf("build payloads: %w", err)
	}

	if _, err := r.pub.Publish(ctx, item, note, article); err != nil {
		return err
	}

	r.postCommit(ctx, src, item)
	return nil
}

// postCommit runs the best-effort followers of a committed publish. Failures
// here are logged and swallowed; the cycle already succeeded.
func (r *Runner) postCommit(ctx context.Context, src sources.Source, item *domain.Item) {
	if r.archiver != nil && src.Archive {
		if err := r.archiver.Append(item); err != nil {
			r.log.WarnObj("archive append failed", "archive_error", map[string]any{
				"source": src.ID,
				"error":  err.Error(),
			})
		}
	}

	if r.fanout != nil && r.fanout.Size() > 0 {
		n, err := r.fanout.Send(ctx, mirror.NewEvent(item))
		if err != nil {
			r.log.WarnObj("mirror fanout incomplete", "mirror_error", map[string]any{
				"source":     src.ID,
				"successful": n,
				"total":      r.fanout.Size(),
				"error":      err.Error(),
			})
		}
	}
}

func (r *Runner) sourceLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}
