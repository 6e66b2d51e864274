package sources

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"axial/internal/core"

	"gopkg.in/yaml.v3"
)

// outletBias maps lowercase outlet names to their editorial leaning
var outletBias = map[string]core.BiasLabel{
	"bbc":             core.BiasCenter,
	"bloomberg":       core.BiasCenter,
	"cnet":            core.BiasCenter,
	"engadget":        core.BiasCenter,
	"financial times": core.BiasCenter,
	"forbes":          core.BiasCenterRight,
	"marketwatch":     core.BiasCenter,
	"mashable":        core.BiasCenterLeft,
	"new york times":  core.BiasCenterLeft,
	"politico":        core.BiasCenter,
	"techcrunch":      core.BiasCenter,
	"the guardian":    core.BiasLeft,
	"the verge":       core.BiasCenterLeft,
	"vox":             core.BiasLeft,
	"wired":           core.BiasCenterLeft,
	"ycombinator":     core.BiasCenter,
}

// BiasFor returns the bias label of a known outlet, center otherwise
func BiasFor(outlet string) core.BiasLabel {
	if label, ok := outletBias[strings.ToLower(strings.TrimSpace(outlet))]; ok {
		return label
	}
	return core.BiasCenter
}

// SeedEntry is one feed in a seed file
type SeedEntry struct {
	Source    string `yaml:"source"`
	SubSource string `yaml:"sub_source"`
	URL       string `yaml:"url"`
	Active    *bool  `yaml:"active"` // Defaults to true
	Bias      string `yaml:"bias"`   // Overrides the outlet map
}

// seedRecord accepts entries nested under "fields", as exported by admin tools
type seedRecord struct {
	SeedEntry `yaml:",inline"`
	Fields    *SeedEntry `yaml:"fields"`
}

// SeedResult counts the outcome of a seed run
type SeedResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"` // Feed URL already present
	Failed   int `json:"failed"`
}

// LoadSeedFile reads a YAML (or JSON) list of seed entries
func LoadSeedFile(path string) ([]SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var records []seedRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	entries := make([]SeedEntry, 0, len(records))
	for _, r := range records {
		entry := r.SeedEntry
		if r.Fields != nil {
			entry = *r.Fields
		}
		if strings.TrimSpace(entry.URL) == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Seed inserts entries that are not yet known. Feeds are not validated.
func (m *Manager) Seed(ctx context.Context, entries []SeedEntry) (SeedResult, error) {
	var result SeedResult

	for _, entry := range entries {
		source, err := entry.toSource()
		if err != nil {
			result.Failed++
			m.log.Warn("Skipping seed entry", "source", entry.Source, "url", entry.URL, "error", err)
			continue
		}

		inserted, err := m.sources.CreateIfAbsent(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			m.log.Warn("Failed to insert seed source", "source", entry.Source, "url", entry.URL, "error", err)
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	m.log.Info("Seed complete", "inserted", result.Inserted, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// SeedFile loads path and seeds its entries
func (m *Manager) SeedFile(ctx context.Context, path string) (SeedResult, error) {
	entries, err := LoadSeedFile(path)
	if err != nil {
		return SeedResult{}, err
	}
	return m.Seed(ctx, entries)
}

// SeedIfEmpty seeds from path only when no sources exist yet. It reports
// false without error when sources are present or path is empty.
func (m *Manager) SeedIfEmpty(ctx context.Context, path string) (bool, SeedResult, error) {
	if path == "" {
		return false, SeedResult{}, nil
	}
	count, err := m.sources.Count(ctx)
	if err != nil {
		return false, SeedResult{}, fmt.Errorf("failed to count sources: %w", err)
	}
	if count > 0 {
		return false, SeedResult{}, nil
	}

	result, err := m.SeedFile(ctx, path)
	return err == nil, result, err
}

func (e SeedEntry) toSource() (*core.Source, error) {
	label := BiasFor(e.Source)
	if e.Bias != "" {
		parsed, ok := core.ParseBiasLabel(e.Bias)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBias, e.Bias)
		}
		label = parsed
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}

	return &core.Source{
		Name:      displayName(e.Source),
		SubSource: strings.TrimSpace(e.SubSource),
		FeedURL:   strings.TrimSpace(e.URL),
		BiasLabel: label,
		IsActive:  active,
	}, nil
}

// displayName upper-cases the first letter of an outlet name
func displayName(outlet string) string {
	outlet = strings.TrimSpace(outlet)
	r, size := utf8.DecodeRuneInString(outlet)
	if r == utf8.RuneError {
		return outlet
	}
	return string(unicode.ToUpper(r)) + outlet[size:]
}
