package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Gemini contains connection settings for the image analysis service.
type Gemini struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RetryAttempts     int     `toml:"retry_attempts"`
	RetryBaseSeconds  float64 `toml:"retry_base_seconds"`
	RetryMaxSeconds   float64 `toml:"retry_max_seconds"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
}

// Catalog contains the category reference file location.
type Catalog struct {
	Path string `toml:"path"`
}

// CSV contains ledger formatting settings.
type CSV struct {
	Separator    string   `toml:"separator"`
	Decimal      string   `toml:"decimal"`
	IncludeImage bool     `toml:"include_image"`
	ExtraColumns []string `toml:"extra_columns"`
}

// Thumbnail controls the embedded preview written to the Image column.
type Thumbnail struct {
	MaxWidth    int `toml:"max_width"`
	MaxHeight   int `toml:"max_height"`
	JPEGQuality int `toml:"jpeg_quality"`
}

// Compression controls the size-target re-encoding of processed images.
type Compression struct {
	MaxSizeKB     int `toml:"max_size_kb"`
	InitialMaxDim int `toml:"initial_max_dim"`
	StartQuality  int `toml:"start_quality"`
	QualityStep   int `toml:"quality_step"`
	MinQuality    int `toml:"min_quality"`
}

// Reliability controls how low-confidence classifications are routed.
type Reliability struct {
	Threshold int `toml:"threshold"`
	// Action is one of "move" (to the manual review folder), "ask"
	// (interactive hint prompt), or "keep" (accept with a warning).
	Action    string `toml:"action"`
	ReviewDir string `toml:"review_dir"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for inventaire.
type Config struct {
	Gemini      Gemini      `toml:"gemini"`
	Catalog     Catalog     `toml:"catalog"`
	CSV         CSV         `toml:"csv"`
	Thumbnail   Thumbnail   `toml:"thumbnail"`
	Compression Compression `toml:"compression"`
	Reliability Reliability `toml:"reliability"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/inventaire/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has path fields expanded and the API key resolved from the
// environment when set. A missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	// A local .env is the usual place for the API key; absence is fine.
	_ = godotenv.Load()
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		cfg.Gemini.APIKey = key
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inventaire.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
