package mirror

import (
	"time"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
)

// PublishedEvent is the record fanned out to mirrors after a committed
// publish cycle, so downstream consumers (queues, webhooks) can follow what
// the dispatcher shipped without polling the sources themselves.
type PublishedEvent struct {
	Source       string    `json:"source"`
	Fingerprint  string    `json:"fingerprint"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	PublishedAt  time.Time `json:"published_at"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// NewEvent builds a PublishedEvent for the given item.
func NewEvent(item *domain.Item) PublishedEvent {
	if item == nil {
		return PublishedEvent{DispatchedAt: time.Now().UTC()}
	}
	return PublishedEvent{
		Source:       string(item.Source),
		Fingerprint:  item.Fingerprint,
		Title:        item.Title,
		Link:         item.Link,
		PublishedAt:  item.PublishedAt,
		DispatchedAt: time.Now().UTC(),
	}
}
