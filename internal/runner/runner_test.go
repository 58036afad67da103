package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
	"github.com/nashra-hq/nashra-dispatch/internal/payload"
	"github.com/nashra-hq/nashra-dispatch/pkg/sources"
)

type fakeFetcher struct {
	typ   string
	items map[string]*domain.Item
	errs  map[string]error
	calls int
}

func (f *fakeFetcher) Type() string { return f.typ }

func (f *fakeFetcher) FetchLatest(_ context.Context, cfg sources.Source) (*domain.Item, error) {
	f.calls++
	if err := f.errs[cfg.ID]; err != nil {
		return nil, err
	}
	return f.items[cfg.ID], nil
}

type memStore struct {
	last    map[domain.SourceID]string
	getErr  error
	setErr  error
	setCall int
}

func newMemStore() *memStore {
	return &memStore{last: make(map[domain.SourceID]string)}
}

func (m *memStore) GetLast(source domain.SourceID) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.last[source], nil
}

func (m *memStore) SetLast(source domain.SourceID, fingerprint string) error {
	m.setCall++
	if m.setErr != nil {
		return m.setErr
	}
	m.last[source] = fingerprint
	return nil
}

func (m *memStore) Close() error { return nil }

type stubBuilder struct {
	err   error
	calls int
}

func (b *stubBuilder) Build(_ context.Context, item *domain.Item) (payload.NotificationPayload, payload.ArticlePayload, error) {
	b.calls++
	if b.err != nil {
		return payload.NotificationPayload{}, payload.ArticlePayload{}, b.err
	}
	return payload.NotificationPayload{Text: item.Title},
		payload.ArticlePayload{Title: item.Title, Description: item.Description},
		nil
}

// stubPublisher mimics the coordinator contract: commit state only when the
// attempt succeeds.
type stubPublisher struct {
	store    *memStore
	failNext int
	calls    int
}

func (p *stubPublisher) Publish(_ context.Context, item *domain.Item, _ payload.NotificationPayload, _ payload.ArticlePayload) (domain.PublishOutcome, error) {
	p.calls++
	if p.failNext > 0 {
		p.failNext--
		err := errors.New("sink down")
		return domain.PublishOutcome{ArticleErr: err}, err
	}
	if err := p.store.SetLast(item.Source, item.Fingerprint); err != nil {
		return domain.PublishOutcome{}, err
	}
	return domain.PublishOutcome{}, nil
}

func crSource() sources.Source {
	return sources.Source{ID: "crunchyroll", Type: "rss", SourceURL: "https://example.com/rss"}
}

func crItem(fingerprint string) *domain.Item {
	return &domain.Item{
		Source:      domain.SourceCrunchyroll,
		Fingerprint: fingerprint,
		Title:       "Episode 42",
		Description: "A new episode.",
	}
}

func newTestRunner(t *testing.T, fetcher *fakeFetcher, store *memStore, builder *stubBuilder, pub *stubPublisher) *Runner {
	t.Helper()
	r, err := New(sources.NewFetcherRegistry(fetcher), store, builder, pub, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestIsNew(t *testing.T) {
	cases := []struct {
		name string
		item *domain.Item
		last string
		want bool
	}{
		{"nil item", nil, "", false},
		{"never published", crItem("ep42|img"), "", true},
		{"same fingerprint", crItem("ep42|img"), "ep42|img", false},
		{"changed fingerprint", crItem("ep42|img2"), "ep42|img", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNew(tc.item, tc.last); got != tc.want {
				t.Fatalf("IsNew = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRunSourcePublishesNewItem(t *testing.T) {
	fetcher := &fakeFetcher{typ: "rss", items: map[string]*domain.Item{"crunchyroll": crItem("ep42|img")}}
	store := newMemStore()
	builder := &stubBuilder{}
	pub := &stubPublisher{store: store}
	r := newTestRunner(t, fetcher, store, builder, pub)

	if err := r.RunSource(context.Background(), crSource()); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher calls = %d, want 1", pub.calls)
	}
	if got := store.last[domain.SourceCrunchyroll]; got != "ep42|img" {
		t.Fatalf("last = %q, want ep42|img", got)
	}
}

func TestRunSourceIdempotentRepoll(t *testing.T) {
	fetcher := &fakeFetcher{typ: "rss", items: map[string]*domain.Item{"crunchyroll": crItem("ep42|img")}}
	store := newMemStore()
	builder := &stubBuilder{}
	pub := &stubPublisher{store: store}
	r := newTestRunner(t, fetcher, store, builder, pub)

	for i := 0; i < 3; i++ {
		if err := r.RunSource(context.Background(), crSource()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if pub.calls != 1 {
		t.Fatalf("publisher calls = %d, want exactly 1 across repeated polls", pub.calls)
	}
}

func TestRunSourceRetriesUntilSinksRecover(t *testing.T) {
	fetcher := &fakeFetcher{typ: "rss", items: map[string]*domain.Item{"crunchyroll": crItem("ep42|img")}}
	store := newMemStore()
	builder := &stubBuilder{}
	pub := &stubPublisher{store: store, failNext: 2}
	r := newTestRunner(t, fetcher, store, builder, pub)

	for i := 0; i < 2; i++ {
		if err := r.RunSource(context.Background(), crSource()); err == nil {
			t.Fatalf("cycle %d: expected failure while sink is down", i)
		}
		if got := store.last[domain.SourceCrunchyroll]; got != "" {
			t.Fatalf("state advanced to %q during failed cycles", got)
		}
	}

	if err := r.RunSource(context.Background(), crSource()); err != nil {
		t.Fatalf("recovered cycle: %v", err)
	}
	if got := store.last[domain.SourceCrunchyroll]; got != "ep42|img" {
		t.Fatalf("last = %q after recovery, want ep42|img", got)
	}
	if pub.calls != 3 {
		t.Fatalf("publisher calls = %d, want 3", pub.calls)
	}
}

func TestRunSourceEmptyFeedIsNoop(t *testing.T) {
	fetcher := &fakeFetcher{typ: "rss", items: map[string]*domain.Item{}}
	store := newMemStore()
	builder := &stubBuilder{}
	pub := &stubPublisher{store: store}
	r := newTestRunner(t, fetcher, store, builder, pub)

	if err := r.RunSource(context.Background(), crSource()); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if pub.calls != 0 || builder.calls != 0 {
		t.Fatalf("empty feed must not build or publish")
	}
}

func TestRunSourceStateReadFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{typ: "rss", items: map[string]*domain.Item{"crunchyroll": crItem("ep42|img")}}
	store := newMemStore()
	store.getErr = errors.New("db locked")
	builder := &stubBuilder{}
	pub := &stubPublisher{store: store}
	r := newTestRunner(t, fetcher, store, builder, pub)

	if err := r.RunSource(context.Background(), crSource()); err == nil {
		t.Fatalf("expected error when state is unreadable")
	}
	if pub.calls != 0 {
		t.Fatalf("must not publish when the last-seen state cannot be read")
	}
}

func TestRunSourceIncompletePayloadAbortsBeforeSinks(t *testing.T) {
	fetcher := &fakeFetcher{typ: "rss", items: map[string]*domain.Item{"crunchyroll": crItem("ep42|img")}}
	store := newMemStore()
	builder := &stubBuilder{err: fmt.Errorf("%w: no image", payload.ErrIncomplete)}
	pub := &stubPublisher{store: store}
	r := newTestRunner(t, fetcher, store, builder, pub)

	err := r.RunSource(context.Background(), crSource())
	if !errors.Is(err, payload.ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	if pub.calls != 0 {
		t.Fatalf("sinks must not be touched for an incomplete payload")
	}
	if got := store.last[domain.SourceCrunchyroll]; got != "" {
		t.Fatalf("state advanced to %q for an aborted cycle", got)
	}
}

func TestRunAllIsolatesFailingSources(t *testing.T) {
	ytItem := &domain.Item{Source: domain.SourceYouTube, Fingerprint: "vid123", Title: "Upload"}
	fetcher := &fakeFetcher{
		typ:   "rss",
		items: map[string]*domain.Item{"youtube": ytItem},
		errs:  map[string]error{"crunchyroll": errors.New("feed unreachable")},
	}
	store := newMemStore()
	builder := &stubBuilder{}
	pub := &stubPublisher{store: store}
	r := newTestRunner(t, fetcher, store, builder, pub)

	srcs := []sources.Source{
		crSource(),
		{ID: "youtube", Type: "rss", SourceURL: "https://example.com/yt"},
	}

	err := r.RunAll(context.Background(), srcs)
	if err == nil {
		t.Fatalf("expected joined error for the failing source")
	}
	if got := store.last[domain.SourceYouTube]; got != "vid123" {
		t.Fatalf("healthy source not published, last = %q", got)
	}
}

func TestRunSourceDetectsContentChange(t *testing.T) {
	fetcher := &fakeFetcher{typ: "rss", items: map[string]*domain.Item{"crunchyroll": crItem("ep41|img")}}
	store := newMemStore()
	builder := &stubBuilder{}
	pub := &stubPublisher{store: store}
	r := newTestRunner(t, fetcher, store, builder, pub)

	if err := r.RunSource(context.Background(), crSource()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// Upstream replaces the latest entry; identity changes even though the
	// title stays similar.
	fetcher.items["crunchyroll"] = crItem("ep42|img")
	if err := r.RunSource(context.Background(), crSource()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if pub.calls != 2 {
		t.Fatalf("publisher calls = %d, want 2", pub.calls)
	}
	if got := store.last[domain.SourceCrunchyroll]; got != "ep42|img" {
		t.Fatalf("last = %q, want ep42|img", got)
	}
}
