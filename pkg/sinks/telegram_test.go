package sinks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nashra-hq/nashra-dispatch/internal/payload"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) (*TelegramNotifier, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	notifier, err := NewTelegramNotifier("token-123", "chat-456", 5*time.Second)
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	notifier.apiBase = server.URL + "/bottoken-123"
	return notifier, server
}

func TestTelegramSendPhotoUpload(t *testing.T) {
	var gotPath string
	var gotCaption string
	var gotPhotoName string

	notifier, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotCaption = r.FormValue("caption")
		if file, header, err := r.FormFile("photo"); err == nil {
			gotPhotoName = header.Filename
			file.Close()
		}
		w.WriteHeader(http.StatusOK)
	})

	err := notifier.Send(context.Background(), payload.NotificationPayload{
		Text:      "Episode 42 Announced",
		ImageJPEG: []byte("jpeg-bytes"),
		ImageURL:  "https://img.example/42.jpg",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/bottoken-123/sendPhoto" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotCaption != "Episode 42 Announced" {
		t.Fatalf("caption = %q", gotCaption)
	}
	if gotPhotoName != "article.jpg" {
		t.Fatalf("photo filename = %q", gotPhotoName)
	}
}

func TestTelegramSendFallsBackToMessage(t *testing.T) {
	var gotPath string
	var gotText string

	notifier, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotText = r.FormValue("text")
		w.WriteHeader(http.StatusOK)
	})

	err := notifier.Send(context.Background(), payload.NotificationPayload{Text: "📰 خبر جديد"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/bottoken-123/sendMessage" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotText != "📰 خبر جديد" {
		t.Fatalf("text = %q", gotText)
	}
}

func TestTelegramPhotoRejectionDegradesToMessage(t *testing.T) {
	var paths []string

	notifier, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/bottoken-123/sendPhoto" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	err := notifier.Send(context.Background(), payload.NotificationPayload{
		Text:      "Episode 42 Announced",
		ImageJPEG: []byte("broken-jpeg"),
		ImageURL:  "https://img.example/42.jpg",
	})
	if err != nil {
		t.Fatalf("Send should degrade to a plain message, got: %v", err)
	}

	want := []string{
		"/bottoken-123/sendPhoto",
		"/bottoken-123/sendPhoto",
		"/bottoken-123/sendMessage",
	}
	if len(paths) != len(want) {
		t.Fatalf("calls = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestTelegramTransientPhotoFailureDoesNotDegrade(t *testing.T) {
	var calls int

	notifier, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	err := notifier.Send(context.Background(), payload.NotificationPayload{
		Text:      "Episode 42 Announced",
		ImageJPEG: []byte("jpeg-bytes"),
	})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if !IsRetryable(err) {
		t.Fatalf("transient failure must stay retryable")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no degraded resend)", calls)
	}
}

func TestTelegramDeliveryClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "bad request is validation", status: http.StatusBadRequest, retryable: false},
		{name: "throttling is transient", status: http.StatusTooManyRequests, retryable: true},
		{name: "server error is transient", status: http.StatusBadGateway, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier, _ := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			err := notifier.Send(context.Background(), payload.NotificationPayload{Text: "x"})
			if err == nil {
				t.Fatalf("expected delivery error")
			}
			var de *DeliveryError
			if !errors.As(err, &de) {
				t.Fatalf("expected DeliveryError, got %T", err)
			}
			if de.Retryable != tt.retryable {
				t.Fatalf("Retryable = %v, want %v", de.Retryable, tt.retryable)
			}
			if IsRetryable(err) != tt.retryable {
				t.Fatalf("IsRetryable mismatch")
			}
		})
	}
}
