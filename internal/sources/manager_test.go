package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"axial/internal/core"
	"axial/internal/feeds"
	"axial/internal/persistence"
)

// Mock repositories

type MockSourceRepo struct {
	sources    []core.Source
	failCreate bool
	failCount  bool
}

func NewMockSourceRepo() *MockSourceRepo {
	return &MockSourceRepo{sources: []core.Source{}}
}

func (m *MockSourceRepo) Create(ctx context.Context, source *core.Source) error {
	inserted, err := m.CreateIfAbsent(ctx, source)
	if err != nil {
		return err
	}
	if !inserted {
		return persistence.ErrDuplicate
	}
	return nil
}

func (m *MockSourceRepo) CreateIfAbsent(ctx context.Context, source *core.Source) (bool, error) {
	if m.failCreate {
		return false, errors.New("mock create error")
	}
	for _, s := range m.sources {
		if s.FeedURL == source.FeedURL {
			return false, nil
		}
	}
	source.ID = persistence.SourceID(source.FeedURL)
	m.sources = append(m.sources, *source)
	return true, nil
}

func (m *MockSourceRepo) Get(ctx context.Context, id string) (*core.Source, error) {
	for i := range m.sources {
		if m.sources[i].ID == id {
			return &m.sources[i], nil
		}
	}
	return nil, persistence.ErrNotFound
}

func (m *MockSourceRepo) List(ctx context.Context, opts persistence.ListOptions) ([]core.Source, error) {
	return m.sources, nil
}

func (m *MockSourceRepo) ListActive(ctx context.Context) ([]core.Source, error) {
	var active []core.Source
	for _, s := range m.sources {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active, nil
}

func (m *MockSourceRepo) SetActive(ctx context.Context, id string, active bool) error {
	for i := range m.sources {
		if m.sources[i].ID == id {
			m.sources[i].IsActive = active
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (m *MockSourceRepo) MarkFetched(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *MockSourceRepo) Count(ctx context.Context) (int, error) {
	if m.failCount {
		return 0, errors.New("mock count error")
	}
	return len(m.sources), nil
}

type MockValidator struct {
	results map[string]feeds.ValidationResult
	calls   int
}

func (v *MockValidator) Validate(ctx context.Context, url string) feeds.ValidationResult {
	v.calls++
	if r, ok := v.results[url]; ok {
		return r
	}
	return feeds.ValidationResult{Error: "404 Not Found"}
}

func newTestManager() (*Manager, *MockSourceRepo, *MockValidator) {
	repo := NewMockSourceRepo()
	validator := &MockValidator{results: map[string]feeds.ValidationResult{
		"https://feeds.bbci.co.uk/news/rss.xml": {Valid: true, ItemCount: 30, Title: "BBC News"},
		"https://www.vox.com/rss/index.xml":     {Valid: true, ItemCount: 10, Title: "Vox"},
	}}
	return NewManager(repo, validator), repo, validator
}

func TestAdd(t *testing.T) {
	manager, repo, _ := newTestManager()
	ctx := context.Background()

	source, err := manager.Add(ctx, "", "https://feeds.bbci.co.uk/news/rss.xml", "")
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if source.Name != "BBC News" {
		t.Errorf("expected name from feed title, got %q", source.Name)
	}
	if source.BiasLabel != core.BiasCenter {
		t.Errorf("expected default bias center, got %q", source.BiasLabel)
	}
	if !source.IsActive {
		t.Error("expected new source to be active")
	}
	if len(repo.sources) != 1 {
		t.Fatalf("expected 1 stored source, got %d", len(repo.sources))
	}

	vox, err := manager.Add(ctx, "Vox", "https://www.vox.com/rss/index.xml", "Left")
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if vox.BiasLabel != core.BiasLeft {
		t.Errorf("expected bias left, got %q", vox.BiasLabel)
	}
}

func TestAddRejectsInvalidFeed(t *testing.T) {
	manager, repo, _ := newTestManager()

	_, err := manager.Add(context.Background(), "Nope", "https://example.com/missing.xml", "center")
	if !errors.Is(err, ErrInvalidFeed) {
		t.Fatalf("expected ErrInvalidFeed, got %v", err)
	}
	if len(repo.sources) != 0 {
		t.Error("invalid feed must not be stored")
	}
}

func TestAddRejectsUnknownBiasBeforeFetching(t *testing.T) {
	manager, _, validator := newTestManager()

	_, err := manager.Add(context.Background(), "BBC", "https://feeds.bbci.co.uk/news/rss.xml", "far-left")
	if !errors.Is(err, ErrInvalidBias) {
		t.Fatalf("expected ErrInvalidBias, got %v", err)
	}
	if validator.calls != 0 {
		t.Errorf("expected no validation call, got %d", validator.calls)
	}
}

func TestAddDuplicate(t *testing.T) {
	manager, _, _ := newTestManager()
	ctx := context.Background()

	if _, err := manager.Add(ctx, "BBC", "https://feeds.bbci.co.uk/news/rss.xml", ""); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	_, err := manager.Add(ctx, "BBC again", "https://feeds.bbci.co.uk/news/rss.xml", "")
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSetActive(t *testing.T) {
	manager, repo, _ := newTestManager()
	ctx := context.Background()

	source, err := manager.Add(ctx, "BBC", "https://feeds.bbci.co.uk/news/rss.xml", "")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := manager.SetActive(ctx, source.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if repo.sources[0].IsActive {
		t.Error("expected source to be disabled")
	}
	if err := manager.SetActive(ctx, "missing", true); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBiasFor(t *testing.T) {
	tests := []struct {
		outlet string
		want   core.BiasLabel
	}{
		{"bbc", core.BiasCenter},
		{"Forbes", core.BiasCenterRight},
		{" the guardian ", core.BiasLeft},
		{"new york times", core.BiasCenterLeft},
		{"unknown outlet", core.BiasCenter},
	}

	for _, tt := range tests {
		if got := BiasFor(tt.outlet); got != tt.want {
			t.Errorf("BiasFor(%q) = %q, want %q", tt.outlet, got, tt.want)
		}
	}
}

func writeSeedFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoadSeedFileYAML(t *testing.T) {
	path := writeSeedFile(t, "sources.yaml", `
- source: the guardian
  sub_source: world
  url: https://www.theguardian.com/world/rss
- source: forbes
  url: https://www.forbes.com/business/feed/
  active: false
- source: missing url
`)

	entries, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SubSource != "world" {
		t.Errorf("expected sub_source world, got %q", entries[0].SubSource)
	}
	if entries[1].Active == nil || *entries[1].Active {
		t.Error("expected second entry to be inactive")
	}
}

func TestLoadSeedFileNestedFields(t *testing.T) {
	path := writeSeedFile(t, "sources.json", `[
  {"fields": {"source": "bbc", "sub_source": "news", "url": "https://feeds.bbci.co.uk/news/rss.xml", "active": true}},
  {"fields": {"source": "vox", "sub_source": "", "url": "https://www.vox.com/rss/index.xml", "active": true}}
]`)

	entries, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile failed: %v", err)
	}
	if len(entries) != 2 || entries[1].Source != "vox" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	manager, repo, validator := newTestManager()
	ctx := context.Background()
	inactive := false

	entries := []SeedEntry{
		{Source: "the guardian", SubSource: "world", URL: "https://www.theguardian.com/world/rss"},
		{Source: "forbes", URL: "https://www.forbes.com/business/feed/", Active: &inactive},
		{Source: "odd", URL: "https://odd.example.com/rss", Bias: "sideways"},
	}

	result, err := manager.Seed(ctx, entries)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if result != (SeedResult{Inserted: 2, Failed: 1}) {
		t.Errorf("unexpected first result: %+v", result)
	}
	if repo.sources[0].Name != "The guardian" || repo.sources[0].BiasLabel != core.BiasLeft {
		t.Errorf("unexpected seeded source: %+v", repo.sources[0])
	}
	if repo.sources[1].IsActive {
		t.Error("expected forbes to be seeded inactive")
	}
	if validator.calls != 0 {
		t.Error("seeding must not fetch feeds")
	}

	again, err := manager.Seed(ctx, entries[:2])
	if err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	if again != (SeedResult{Skipped: 2}) {
		t.Errorf("unexpected second result: %+v", again)
	}
}

func TestSeedIfEmpty(t *testing.T) {
	manager, repo, _ := newTestManager()
	ctx := context.Background()
	path := writeSeedFile(t, "sources.yaml", "- source: bbc\n  url: https://feeds.bbci.co.uk/news/rss.xml\n")

	seeded, result, err := manager.SeedIfEmpty(ctx, path)
	if err != nil || !seeded || result.Inserted != 1 {
		t.Fatalf("expected seeding into empty table, got seeded=%v result=%+v err=%v", seeded, result, err)
	}

	seeded, _, err = manager.SeedIfEmpty(ctx, path)
	if err != nil || seeded {
		t.Errorf("expected no seeding when sources exist, got seeded=%v err=%v", seeded, err)
	}

	repo.failCount = true
	if _, _, err := manager.SeedIfEmpty(ctx, path); err == nil {
		t.Error("expected count failure to be reported")
	}

	if seeded, _, err := manager.SeedIfEmpty(ctx, ""); seeded || err != nil {
		t.Error("empty path must be a no-op")
	}
}
