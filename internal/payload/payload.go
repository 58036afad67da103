package payload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
	"github.com/nashra-hq/nashra-dispatch/internal/logger"
)

// Package payload converts a detected-new item into the two sink payloads.

// ErrIncomplete aborts the publish cycle before any sink is called: the
// article path was configured to require an image and none could be produced.
var ErrIncomplete = errors.New("payload incomplete")

const maxNotificationDescription = 800

// NotificationPayload is the chat-ready rendering of an item. The notifier
// prefers ImageJPEG, falls back to ImageURL, then to a plain text message.
type NotificationPayload struct {
	Text      string
	ImageURL  string
	ImageJPEG []byte
}

// ArticlePayload carries the named fields of the site ingestion contract.
type ArticlePayload struct {
	Title       string
	Description string
	PublishedAt time.Time
	ImageJPEG   []byte
}

// ImageComposer produces branded JPEG bytes from an image URL.
type ImageComposer interface {
	ComposeFromURL(ctx context.Context, url string) ([]byte, error)
}

// Builder builds both sink payloads for a new item.
type Builder struct {
	composer     ImageComposer
	requireImage bool
	timezone     *time.Location
	log          logger.Logger
}

// NewBuilder wires a builder. requireImage makes a composited image a hard
// precondition of the article path instead of a best-effort enhancement.
func NewBuilder(composer ImageComposer, requireImage bool, tz *time.Location, log logger.Logger) *Builder {
	if tz == nil {
		tz = time.UTC
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Builder{
		composer:     composer,
		requireImage: requireImage,
		timezone:     tz,
		log:          log,
	}
}

// Build produces the notification and article payloads for the item. Image
// composite failures degrade to image-less payloads unless an image is
// required, in which case ErrIncomplete is returned and the caller must not
// touch either sink this cycle.
func (b *Builder) Build(ctx context.Context, item *domain.Item) (NotificationPayload, ArticlePayload, error) {
	if item == nil {
		return NotificationPayload{}, ArticlePayload{}, fmt.Errorf("item must not be nil")
	}

	note := NotificationPayload{
		Text:     b.notificationText(item),
		ImageURL: item.ImageURL,
	}
	article := ArticlePayload{
		Title:       item.Title,
		Description: item.Description,
		PublishedAt: b.publishedAt(item),
	}

	if item.ImageURL == "" {
		if b.requireImage {
			return NotificationPayload{}, ArticlePayload{}, fmt.Errorf("%w: item %s has no image reference", ErrIncomplete, item.Fingerprint)
		}
		return note, article, nil
	}

	composed, err := b.compose(ctx, item)
	if err != nil {
		if b.requireImage {
			return NotificationPayload{}, ArticlePayload{}, fmt.Errorf("%w: %w", ErrIncomplete, err)
		}
		b.log.WarnObj("image composite failed; publishing without image", "image_error", map[string]any{
			"source":    string(item.Source),
			"image_url": item.ImageURL,
			"error":     err.Error(),
		})
		return note, article, nil
	}

	note.ImageJPEG = composed
	article.ImageJPEG = composed
	return note, article, nil
}

func (b *Builder) compose(ctx context.Context, item *domain.Item) ([]byte, error) {
	if b.composer == nil {
		return nil, fmt.Errorf("no image composer configured")
	}
	return b.composer.ComposeFromURL(ctx, item.ImageURL)
}

// notificationText renders the chat message. Video sources get a short
// caption with the watch link; news sources get the bulletin header with a
// trimmed description.
func (b *Builder) notificationText(item *domain.Item) string {
	if item.Source == domain.SourceYouTube {
		return "🎥 " + item.Title + "\n" + item.Link
	}

	text := "📰 خبر جديد\n\n" + item.Title
	if desc := truncateRunes(item.Description, maxNotificationDescription); desc != "" {
		text += "\n\n" + desc
	}
	return text
}

func (b *Builder) publishedAt(item *domain.Item) time.Time {
	if !item.PublishedAt.IsZero() {
		return item.PublishedAt.In(b.timezone)
	}
	return time.Now().In(b.timezone)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
