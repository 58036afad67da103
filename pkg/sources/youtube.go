package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
)

// youtubeFetcher implements Fetcher for YouTube channel upload feeds
// (Atom documents from youtube.com/feeds/videos.xml).
type youtubeFetcher struct {
	client HTTPClient
}

// NewYouTubeFetcher builds the YouTube upload feed fetcher.
func NewYouTubeFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &youtubeFetcher{client: client}
}

func (f *youtubeFetcher) Type() string { return TypeYouTubeRSS }

// FetchLatest returns the newest upload of the channel, or nil when the feed is empty.
func (f *youtubeFetcher) FetchLatest(ctx context.Context, cfg Source) (*domain.Item, error) {
	if !strings.EqualFold(cfg.Type, TypeYouTubeRSS) {
		return nil, fmt.Errorf("youtube fetcher received incompatible source type %q", cfg.Type)
	}

	raw, err := fetchFeed(ctx, f.client, cfg)
	if err != nil {
		return nil, err
	}

	var feed youtubeFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("decode %s atom feed: %w", cfg.ID, err)
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}

	entry := feed.Entries[0]
	videoID := strings.TrimSpace(entry.VideoID)
	if videoID == "" {
		videoID = strings.TrimSpace(entry.ID)
	}
	if videoID == "" {
		return nil, fmt.Errorf("%s feed entry has no video id", cfg.ID)
	}

	item := domain.Item{
		Source:      domain.SourceID(cfg.ID),
		Fingerprint: videoID,
		Title:       strings.TrimSpace(entry.Title),
		Description: strings.TrimSpace(entry.Group.Description),
		Link:        strings.TrimSpace(entry.Link.Href),
		PublishedAt: parseFeedTime(entry.Published),
		ImageURL:    strings.TrimSpace(entry.Group.Thumbnail.URL),
	}
	return &item, nil
}

type youtubeFeed struct {
	Entries []youtubeEntry `xml:"entry"`
}

type youtubeEntry struct {
	ID        string       `xml:"id"`
	VideoID   string       `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	Title     string       `xml:"title"`
	Published string       `xml:"published"`
	Link      youtubeLink  `xml:"link"`
	Group     youtubeGroup `xml:"http://search.yahoo.com/mrss/ group"`
}

type youtubeLink struct {
	Href string `xml:"href,attr"`
}

type youtubeGroup struct {
	Description string           `xml:"http://search.yahoo.com/mrss/ description"`
	Thumbnail   youtubeThumbnail `xml:"http://search.yahoo.com/mrss/ thumbnail"`
}

type youtubeThumbnail struct {
	URL string `xml:"url,attr"`
}
