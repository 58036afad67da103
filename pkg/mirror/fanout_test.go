package mirror

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubMirror struct {
	id   string
	typ  string
	err  error
	sent []PublishedEvent
}

func (s *stubMirror) ID() string   { return s.id }
func (s *stubMirror) Type() string { return s.typ }

func (s *stubMirror) Send(_ context.Context, evt PublishedEvent) error {
	s.sent = append(s.sent, evt)
	return s.err
}

func testEvent() PublishedEvent {
	return PublishedEvent{
		Source:       "crunchyroll",
		Fingerprint:  "ep42|img",
		Title:        "Episode 42",
		DispatchedAt: time.Now().UTC(),
	}
}

func TestFanoutSendAllSucceed(t *testing.T) {
	a := &stubMirror{id: "a", typ: TypeHTTP}
	b := &stubMirror{id: "b", typ: TypeHTTP}
	f := NewFanout([]Mirror{a, b})

	n, err := f.Send(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if n != 2 {
		t.Fatalf("successful = %d, want 2", n)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("both mirrors should receive the event")
	}
}

func TestFanoutSendPartialFailure(t *testing.T) {
	a := &stubMirror{id: "a", typ: TypeHTTP, err: errors.New("boom")}
	b := &stubMirror{id: "b", typ: TypeSQS}
	f := NewFanout([]Mirror{a, b})

	n, err := f.Send(context.Background(), testEvent())
	if err == nil {
		t.Fatalf("expected joined error for failing mirror")
	}
	if n != 1 {
		t.Fatalf("successful = %d, want 1", n)
	}
	if len(b.sent) != 1 {
		t.Fatalf("healthy mirror should still receive the event")
	}
}

func TestFanoutSkipsNilMirrors(t *testing.T) {
	a := &stubMirror{id: "a", typ: TypeHTTP}
	f := NewFanout([]Mirror{nil, a, nil})

	if f.Size() != 1 {
		t.Fatalf("Size = %d, want 1", f.Size())
	}
	if n, err := f.Send(context.Background(), testEvent()); err != nil || n != 1 {
		t.Fatalf("Send = (%d, %v), want (1, nil)", n, err)
	}
}

func TestFanoutEmpty(t *testing.T) {
	f := NewFanout(nil)
	if n, err := f.Send(context.Background(), testEvent()); err != nil || n != 0 {
		t.Fatalf("empty fanout Send = (%d, %v), want (0, nil)", n, err)
	}
}
