package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
)

func newTestArchiver(t *testing.T, pageSize int) (*Archiver, string, string) {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "data")
	indexDir := filepath.Join(t.TempDir(), "index")

	a, err := New(Options{DataDir: dataDir, IndexDir: indexDir, PageSize: pageSize, Timezone: time.UTC})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.now = func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }
	return a, dataDir, indexDir
}

func item(title string) *domain.Item {
	return &domain.Item{
		Source:      domain.SourceCrunchyroll,
		Fingerprint: title,
		Title:       title,
		Description: "body of " + title,
		ImageURL:    "https://img.example/" + title + ".jpg",
		Categories:  []string{"anime"},
	}
}

func TestAppendWritesDailyFileAndManifests(t *testing.T) {
	a, dataDir, indexDir := newTestArchiver(t, 500)

	if err := a.Append(item("ep42")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	dayFile := filepath.Join(dataDir, "2025", "06", "02-06.json")
	raw, err := os.ReadFile(dayFile)
	if err != nil {
		t.Fatalf("daily file missing: %v", err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("decode daily file: %v", err)
	}
	if len(records) != 1 || records[0].Title != "ep42" {
		t.Fatalf("unexpected records: %+v", records)
	}

	for _, manifest := range []string{
		filepath.Join(dataDir, "2025", "06", "month_manifest.json"),
		filepath.Join(dataDir, "2025", "year_manifest.json"),
		filepath.Join(indexDir, "pagination.json"),
		filepath.Join(indexDir, "stats.json"),
		filepath.Join(indexDir, "index_1.json"),
	} {
		if _, err := os.Stat(manifest); err != nil {
			t.Fatalf("expected %s to exist: %v", manifest, err)
		}
	}
}

func TestAppendDeduplicatesWithinDay(t *testing.T) {
	a, dataDir, indexDir := newTestArchiver(t, 500)

	if err := a.Append(item("ep42")); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := a.Append(item("ep42")); err != nil {
		t.Fatalf("duplicate Append: %v", err)
	}

	raw, _ := os.ReadFile(filepath.Join(dataDir, "2025", "06", "02-06.json"))
	var records []Record
	json.Unmarshal(raw, &records)
	if len(records) != 1 {
		t.Fatalf("duplicate should not be stored twice, got %d records", len(records))
	}

	raw, _ = os.ReadFile(filepath.Join(indexDir, "pagination.json"))
	var pag struct {
		TotalArticles int `json:"total_articles"`
	}
	json.Unmarshal(raw, &pag)
	if pag.TotalArticles != 1 {
		t.Fatalf("index should count the article once, got %d", pag.TotalArticles)
	}
}

func TestAppendRotatesIndexPages(t *testing.T) {
	a, _, indexDir := newTestArchiver(t, 2)

	for i := 0; i < 5; i++ {
		if err := a.Append(item(fmt.Sprintf("ep%d", i))); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	pages, err := a.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 index pages for 5 items at page size 2, got %v", pages)
	}

	raw, _ := os.ReadFile(filepath.Join(indexDir, "index_3.json"))
	var items []slimRecord
	json.Unmarshal(raw, &items)
	if len(items) != 1 {
		t.Fatalf("last page should hold 1 item, got %d", len(items))
	}
	if items[0].Path == "" {
		t.Fatalf("slim record should point back into its daily file")
	}
}
