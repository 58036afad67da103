package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nashra-hq/nashra-dispatch/internal/domain"
)

// Package archive keeps a browsable JSON trail of published news articles:
// one file per day, month/year manifests, and a paginated global index the
// website reads directly.

// Record is the full article entry stored in the daily files.
type Record struct {
	Title           string   `json:"title"`
	DescriptionFull string   `json:"description_full"`
	Image           string   `json:"image"`
	Categories      []string `json:"categories"`
}

// slimRecord is the global-index projection of a Record, pointing back into
// its daily file as "path#offset".
type slimRecord struct {
	Title      string   `json:"title"`
	Image      string   `json:"image"`
	Categories []string `json:"categories"`
	Path       string   `json:"path"`
}

type pagination struct {
	TotalArticles int      `json:"total_articles"`
	Files         []string `json:"files"`
}

type stats struct {
	TotalArticles int    `json:"total_articles"`
	AddedToday    int    `json:"added_today"`
	LastUpdate    string `json:"last_update"`
}

// Options configures the archive layout.
type Options struct {
	DataDir  string
	IndexDir string
	PageSize int
	Timezone *time.Location
}

// Archiver appends published items to the JSON trail. Appends are best
// effort from the pipeline's point of view: a failed archive write never
// blocks the publish commit.
type Archiver struct {
	mu   sync.Mutex
	opts Options
	now  func() time.Time
}

// New builds an Archiver.
func New(opts Options) (*Archiver, error) {
	if strings.TrimSpace(opts.DataDir) == "" || strings.TrimSpace(opts.IndexDir) == "" {
		return nil, fmt.Errorf("archive requires data and index directories")
	}
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("archive requires a positive page size")
	}
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}

	a := &Archiver{opts: opts}
	a.now = func() time.Time { return time.Now().In(opts.Timezone) }
	return a, nil
}

// Append stores the item in today's daily file and refreshes manifests and
// the global index. Items already present in today's file (same title|image
// pair) are skipped without touching the index.
func (a *Archiver) Append(item *domain.Item) error {
	if item == nil {
		return fmt.Errorf("item must not be nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	today := a.now()
	dayPath := a.dailyPath(today)

	records, err := loadRecordList(dayPath)
	if err != nil {
		return err
	}

	identity := item.Title + "|" + item.ImageURL
	for _, existing := range records {
		if existing.Title+"|"+existing.Image == identity {
			return nil
		}
	}

	record := Record{
		Title:           item.Title,
		DescriptionFull: item.Description,
		Image:           item.ImageURL,
		Categories:      append([]string(nil), item.Categories...),
	}
	records = append(records, record)
	if err := writeJSON(dayPath, records); err != nil {
		return fmt.Errorf("write daily file: %w", err)
	}

	if err := a.updateMonthManifest(today); err != nil {
		return err
	}
	if err := a.updateYearManifest(today); err != nil {
		return err
	}

	slim := slimRecord{
		Title:      record.Title,
		Image:      record.Image,
		Categories: record.Categories,
		Path:       fmt.Sprintf("%s#%d", filepath.ToSlash(dayPath), len(records)-1),
	}
	return a.appendToGlobalIndex(slim)
}

func (a *Archiver) dailyPath(dt time.Time) string {
	dir := filepath.Join(a.opts.DataDir, fmt.Sprintf("%d", dt.Year()), fmt.Sprintf("%02d", int(dt.Month())))
	return filepath.Join(dir, fmt.Sprintf("%02d-%02d.json", dt.Day(), int(dt.Month())))
}

// updateMonthManifest rebuilds the month manifest from the daily files on disk.
func (a *Archiver) updateMonthManifest(dt time.Time) error {
	monthDir := filepath.Join(a.opts.DataDir, fmt.Sprintf("%d", dt.Year()), fmt.Sprintf("%02d", int(dt.Month())))

	entries, err := os.ReadDir(monthDir)
	if err != nil {
		return fmt.Errorf("read month directory: %w", err)
	}

	days := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == "month_manifest.json" || !strings.HasSuffix(name, ".json") {
			continue
		}
		day := strings.SplitN(strings.TrimSuffix(name, ".json"), "-", 2)[0]
		days[day] = filepath.ToSlash(filepath.Join(monthDir, name))
	}

	manifest := map[string]any{
		"year":  fmt.Sprintf("%d", dt.Year()),
		"month": fmt.Sprintf("%02d", int(dt.Month())),
		"days":  days,
	}
	if err := writeJSON(filepath.Join(monthDir, "month_manifest.json"), manifest); err != nil {
		return fmt.Errorf("write month manifest: %w", err)
	}
	return nil
}

// updateYearManifest rebuilds the year manifest from the month directories on disk.
func (a *Archiver) updateYearManifest(dt time.Time) error {
	yearDir := filepath.Join(a.opts.DataDir, fmt.Sprintf("%d", dt.Year()))

	entries, err := os.ReadDir(yearDir)
	if err != nil {
		return fmt.Errorf("read year directory: %w", err)
	}

	months := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		months[entry.Name()] = filepath.ToSlash(filepath.Join(yearDir, entry.Name(), "month_manifest.json"))
	}

	manifest := map[string]any{
		"year":   fmt.Sprintf("%d", dt.Year()),
		"months": months,
	}
	if err := writeJSON(filepath.Join(yearDir, "year_manifest.json"), manifest); err != nil {
		return fmt.Errorf("write year manifest: %w", err)
	}
	return nil
}

// appendToGlobalIndex appends the slim record to the current index page,
// rotating to a new page when full, and refreshes pagination and stats.
func (a *Archiver) appendToGlobalIndex(slim slimRecord) error {
	if err := os.MkdirAll(a.opts.IndexDir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	pagPath := filepath.Join(a.opts.IndexDir, "pagination.json")
	pag := pagination{}
	if raw, err := os.ReadFile(pagPath); err == nil {
		// A corrupt pagination file resets the index rather than wedging
		// the pipeline.
		_ = json.Unmarshal(raw, &pag)
	}

	if len(pag.Files) == 0 {
		pag.Files = []string{"index_1.json"}
		if err := writeJSON(filepath.Join(a.opts.IndexDir, "index_1.json"), []slimRecord{}); err != nil {
			return fmt.Errorf("init index page: %w", err)
		}
	}

	currentName := pag.Files[len(pag.Files)-1]
	currentPath := filepath.Join(a.opts.IndexDir, currentName)

	var items []slimRecord
	if raw, err := os.ReadFile(currentPath); err == nil {
		_ = json.Unmarshal(raw, &items)
	}

	if len(items) >= a.opts.PageSize {
		currentName = fmt.Sprintf("index_%d.json", len(pag.Files)+1)
		currentPath = filepath.Join(a.opts.IndexDir, currentName)
		pag.Files = append(pag.Files, currentName)
		items = nil
	}

	items = append(items, slim)
	if err := writeJSON(currentPath, items); err != nil {
		return fmt.Errorf("write index page: %w", err)
	}

	pag.TotalArticles++
	if err := writeJSON(pagPath, pag); err != nil {
		return fmt.Errorf("write pagination: %w", err)
	}

	st := stats{
		TotalArticles: pag.TotalArticles,
		AddedToday:    1,
		LastUpdate:    a.now().Format(time.RFC3339),
	}
	if err := writeJSON(filepath.Join(a.opts.IndexDir, "stats.json"), st); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

// Pages returns the current index page file names in order.
func (a *Archiver) Pages() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(a.opts.IndexDir, "pagination.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pagination: %w", err)
	}

	var pag pagination
	if err := json.Unmarshal(raw, &pag); err != nil {
		return nil, fmt.Errorf("decode pagination: %w", err)
	}
	return pag.Files, nil
}

func loadRecordList(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read daily file: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode daily file %s: %w", path, err)
	}
	return records, nil
}

func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
