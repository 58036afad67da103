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

const sinkSite = "site"

// SiteSink uploads articles to the website ingestion API as multipart
// form-data with the fields title, description, time and an optional image.
type SiteSink struct {
	url    string
	token  string
	client *resty.Client
}

// NewSiteSink builds the article sink. token is an optional bearer token.
func NewSiteSink(url, token string, timeout time.Duration) (*SiteSink, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("site sink requires a url")
	}
	return &SiteSink{
		url:    url,
		token:  strings.TrimSpace(token),
		client: httpclient.NewRestyHTTPClient(timeout),
	}, nil
}

// Publish uploads the article payload.
func (s *SiteSink) Publish(ctx context.Context, article payload.ArticlePayload) error {
	req := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"title":       article.Title,
			"description": article.Description,
			"time":        article.PublishedAt.Format(time.RFC3339),
		})

	if s.token != "" {
		req.SetHeader("Authorization", "Bearer "+s.token)
	}
	if len(article.ImageJPEG) > 0 {
		req.SetFileReader("image", "article.jpg", bytes.NewReader(article.ImageJPEG))
	}

	resp, err := req.Post(s.url)
	if err != nil {
		return transportError(sinkSite, err)
	}
	if resp.IsError() {
		return statusError(sinkSite, resp.StatusCode(), bodySnippet(resp.Body()))
	}
	return nil
}
