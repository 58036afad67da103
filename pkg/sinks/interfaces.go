package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/nashra-hq/nashra-dispatch/internal/payload"
)

// Package sinks implements the two downstream deliveries: the chat
// notification and the website article upload.

// Notifier delivers a notification payload to the chat channel.
type Notifier interface {
	Send(ctx context.Context, note payload.NotificationPayload) error
}

// ArticleSink delivers an article payload to the website ingestion API.
type ArticleSink interface {
	Publish(ctx context.Context, article payload.ArticlePayload) error
}

// DeliveryError describes a failed sink delivery. Retryable failures
// (transport errors, 5xx, throttling) resolve themselves on the next poll
// cycle; non-retryable ones (remote validation rejections) need operator
// attention. Either way the caller must not advance last-seen state.
type DeliveryError struct {
	Sink      string
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "non-retryable"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s delivery failed (%s): %v", e.Sink, kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is worth another attempt on the next
// cycle. Unknown errors default to retryable: losing an update is worse than
// a duplicate delivery.
func IsRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return true
}

// transportError wraps a failed round trip as a retryable DeliveryError.
func transportError(sink string, err error) error {
	return &DeliveryError{Sink: sink, Retryable: true, Err: err}
}

// statusError classifies an HTTP error status: 429 and 5xx are transient,
// other 4xx mean the remote rejected the payload itself.
func statusError(sink string, status int, body string) error {
	retryable := status == 429 || status >= 500
	return &DeliveryError{
		Sink:      sink,
		Retryable: retryable,
		Err:       fmt.Errorf("status %d: %s", status, body),
	}
}
