package sinks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nashra-hq/nashra-dispatch/internal/payload"
	"github.com/nashra-hq/nashra-dispatch/pkg/httpclient"
)

const sinkTelegram = "telegram"

// TelegramNotifier sends chat notifications through the Telegram bot API.
type TelegramNotifier struct {
	apiBase string
	chatID  string
	client  *resty.Client
}

// NewTelegramNotifier builds a notifier for the given bot token and chat.
func NewTelegramNotifier(token, chatID string, timeout time.Duration) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("telegram notifier requires token and chat id")
	}
	return &TelegramNotifier{
		apiBase: "https://api.telegram.org/bot" + token,
		chatID:  chatID,
		client:  httpclient.NewRestyHTTPClient(timeout),
	}, nil
}

// Send delivers the notification, preferring the composited photo upload,
// then photo by URL, then a plain message. A non-retryable photo rejection
// (the API refusing the image itself) degrades to the next form: the chat
// still gets the update, and retrying the same bad image next cycle would
// never converge. Transient failures are returned as-is for the cycle retry.
func (t *TelegramNotifier) Send(ctx context.Context, note payload.NotificationPayload) error {
	if len(note.ImageJPEG) > 0 {
		err := t.sendPhotoUpload(ctx, note)
		if err == nil || IsRetryable(err) {
			return err
		}
	}
	if note.ImageURL != "" {
		err := t.sendPhotoByURL(ctx, note)
		if err == nil || IsRetryable(err) {
			return err
		}
	}
	return t.sendMessage(ctx, note.Text)
}

func (t *TelegramNotifier) sendPhotoUpload(ctx context.Context, note payload.NotificationPayload) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFileReader("photo", "article.jpg", bytes.NewReader(note.ImageJPEG)).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"caption": note.Text,
		}).
		Post(t.apiBase + "/sendPhoto")
	return t.classify(resp, err)
}

func (t *TelegramNotifier) sendPhotoByURL(ctx context.Context, note payload.NotificationPayload) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"photo":   note.ImageURL,
			"caption": note.Text,
		}).
		Post(t.apiBase + "/sendPhoto")
	return t.classify(resp, err)
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post(t.apiBase + "/sendMessage")
	return t.classify(resp, err)
}

func (t *TelegramNotifier) classify(resp *resty.Response, err error) error {
	if err != nil {
		return transportError(sinkTelegram, err)
	}
	if resp.IsError() {
		return statusError(sinkTelegram, resp.StatusCode(), bodySnippet(resp.Body()))
	}
	return nil
}

func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
