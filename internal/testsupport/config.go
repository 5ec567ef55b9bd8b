package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"inventaire/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded for tests: a throwaway category file, a
// test API key, thumbnails disabled (they require decodable images), and
// compression that never re-encodes fixture files.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Gemini.APIKey = "test-key"
	cfg.Catalog.Path = WriteCategories(t, filepath.Join(t.TempDir(), "categories.csv"))
	cfg.CSV.IncludeImage = false
	cfg.Compression.MaxSizeKB = 10 * 1024
	cfg.Reliability.Action = "keep"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithReliability sets the confidence threshold and low-confidence action.
func WithReliability(threshold int, action string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Reliability.Threshold = threshold
		cfg.Reliability.Action = action
	}
}

// WithIncludeImage toggles thumbnail embedding in the ledger.
func WithIncludeImage(include bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.CSV.IncludeImage = include
	}
}

// WriteCategories writes a small category reference file and returns its
// path.
func WriteCategories(t testing.TB, path string) string {
	t.Helper()
	content := "categorie,categorie_id\n" +
		"Outillage,OUT\n" +
		"Mobilier,MOB\n" +
		"Électroménager,ELEC\n" +
		"Vêtements de travail,VET\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write categories: %v", err)
	}
	return path
}
