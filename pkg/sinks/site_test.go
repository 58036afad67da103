package sinks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nashra-hq/nashra-dispatch/internal/payload"
)

func TestSitePublishUploadsAllFields(t *testing.T) {
	var gotAuth, gotTitle, gotTime string
	var gotImage []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotTitle = r.FormValue("title")
		gotTime = r.FormValue("time")
		if file, _, err := r.FormFile("image"); err == nil {
			gotImage, _ = io.ReadAll(file)
			file.Close()
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sink, err := NewSiteSink(server.URL, "secret-token", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSiteSink: %v", err)
	}

	published := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	err = sink.Publish(context.Background(), payload.ArticlePayload{
		Title:       "Episode 42 Announced",
		Description: "The studio confirmed episode 42.",
		PublishedAt: published,
		ImageJPEG:   []byte("jpeg-bytes"),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotTitle != "Episode 42 Announced" {
		t.Fatalf("title = %q", gotTitle)
	}
	if gotTime != published.Format(time.RFC3339) {
		t.Fatalf("time = %q", gotTime)
	}
	if string(gotImage) != "jpeg-bytes" {
		t.Fatalf("image bytes = %q", gotImage)
	}
}

func TestSitePublishWithoutImageOrToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header")
		}
		r.ParseForm()
		if r.FormValue("title") == "" {
			t.Errorf("missing title field")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewSiteSink(server.URL, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSiteSink: %v", err)
	}

	err = sink.Publish(context.Background(), payload.ArticlePayload{
		Title:       "No image",
		PublishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestSitePublishClassifiesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing title", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	sink, err := NewSiteSink(server.URL, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSiteSink: %v", err)
	}

	err = sink.Publish(context.Background(), payload.ArticlePayload{Title: "x", PublishedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %T", err)
	}
	if de.Retryable {
		t.Fatalf("validation rejection should not be retryable")
	}
	if de.Sink != "site" {
		t.Fatalf("Sink = %q", de.Sink)
	}
}
