package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
	"github.com/nashra-hq/nashra-dispatch/internal/logger"
	"github.com/nashra-hq/nashra-dispatch/internal/payload"
	"github.com/nashra-hq/nashra-dispatch/internal/state"
	"github.com/nashra-hq/nashra-dispatch/pkg/sinks"
)

// Package publish sequences the two sink deliveries and owns the single
// commit point of a cycle.

// Coordinator delivers a new item to both sinks and advances the last-seen
// state only when both succeeded. A partial failure leaves state untouched:
// the next poll re-detects the same item and retries the full sequence,
// accepting a duplicate on the sink that already succeeded. At-least-once
// delivery per sink, exactly-once state advancement.
type Coordinator struct {
	notifier sinks.Notifier
	article  sinks.ArticleSink
	store    state.Store
	log      logger.Logger
}

// NewCoordinator wires the coordinator.
func NewCoordinator(notifier sinks.Notifier, article sinks.ArticleSink, store state.Store, log logger.Logger) (*Coordinator, error) {
	if notifier == nil || article == nil || store == nil {
		return nil, fmt.Errorf("coordinator requires notifier, article sink and state store")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Coordinator{
		notifier: notifier,
		article:  article,
		store:    store,
		log:      log,
	}, nil
}

// Publish runs one delivery attempt for the item. Both sinks are always
// attempted so a notifier failure cannot starve the article path of its try.
// The returned outcome carries the individual results; the error aggregates
// everything that must keep state from advancing.
func (c *Coordinator) Publish(ctx context.Context, item *domain.Item, note payload.NotificationPayload, article payload.ArticlePayload) (domain.PublishOutcome, error) {
	outcome := domain.PublishOutcome{}

	outcome.NotifierErr = c.notifier.Send(ctx, note)
	if outcome.NotifierErr != nil {
		c.logDeliveryFailure(item, "notifier", outcome.NotifierErr)
	}

	outcome.ArticleErr = c.article.Publish(ctx, article)
	if outcome.ArticleErr != nil {
		c.logDeliveryFailure(item, "article", outcome.ArticleErr)
	}

	if !outcome.Ok() {
		return outcome, errors.Join(outcome.NotifierErr, outcome.ArticleErr)
	}

	if err := c.store.SetLast(item.Source, item.Fingerprint); err != nil {
		// Both sinks accepted but the commit failed: the next cycle will
		// re-deliver. Visible duplicates beat a silently stuck pipeline.
		c.log.ErrorObj("state commit failed after successful delivery", "commit_error", map[string]any{
			"source":      string(item.Source),
			"fingerprint": item.Fingerprint,
			"error":       err.Error(),
		})
		return outcome, fmt.Errorf("commit last-seen state: %w", err)
	}

	c.log.InfoObj("item published", "publish_result", map[string]any{
		"source":      string(item.Source),
		"fingerprint": item.Fingerprint,
		"title":       item.Title,
	})
	return outcome, nil
}

func (c *Coordinator) logDeliveryFailure(item *domain.Item, sinkName string, err error) {
	c.log.ErrorObj("sink delivery failed", "delivery_error", map[string]any{
		"source":      string(item.Source),
		"sink":        sinkName,
		"fingerprint": item.Fingerprint,
		"retryable":   sinks.IsRetryable(err),
		"error":       err.Error(),
	})
}
