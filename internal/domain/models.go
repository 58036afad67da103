package domain

import "time"

// Domain contains core models shared across the dispatch pipeline.

// SourceID identifies a watched content source.
type SourceID string

const (
	SourceCrunchyroll SourceID = "crunchyroll"
	SourceYouTube     SourceID = "youtube"
)

// Item is the latest content unit fetched from a source. Fingerprint is a
// stable token used only for equality against the last published one; it
// changes exactly when genuinely new content appears upstream.
type Item struct {
	Source      SourceID
	Fingerprint string
	Title       string
	Description string
	Link        string
	PublishedAt time.Time
	ImageURL    string
	Categories  []string
}

// PublishOutcome records the result of one publish attempt against both
// sinks. It is transient and never persisted.
type PublishOutcome struct {
	NotifierErr error
	ArticleErr  error
}

// Ok reports whether both sinks accepted the item. Only then may the
// last-seen state advance.
func (o PublishOutcome) Ok() bool {
	return o.NotifierErr == nil && o.ArticleErr == nil
}
