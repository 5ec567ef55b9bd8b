package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateCSV(); err != nil {
		return err
	}
	if err := c.validateCompression(); err != nil {
		return err
	}
	if err := c.validateReliability(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/inventaire/config.toml"
		}
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY (env or .env file) or edit %s (create with 'inventaire config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateCSV() error {
	if utf8.RuneCountInString(c.CSV.Separator) != 1 {
		return fmt.Errorf("csv.separator must be a single character, got %q", c.CSV.Separator)
	}
	if c.CSV.Decimal != "." && c.CSV.Decimal != "," {
		return fmt.Errorf("csv.decimal must be %q or %q", ".", ",")
	}
	return nil
}

func (c *Config) validateCompression() error {
	if c.Compression.MaxSizeKB <= 0 {
		return errors.New("compression.max_size_kb must be positive")
	}
	if c.Compression.MinQuality <= 0 || c.Compression.StartQuality > 100 {
		return errors.New("compression quality bounds must stay within 1-100")
	}
	if c.Compression.MinQuality > c.Compression.StartQuality {
		return errors.New("compression.min_quality must not exceed compression.start_quality")
	}
	if c.Compression.QualityStep <= 0 {
		return errors.New("compression.quality_step must be positive")
	}
	return nil
}

func (c *Config) validateReliability() error {
	switch strings.ToLower(c.Reliability.Action) {
	case "move", "ask", "keep":
		return nil
	default:
		return fmt.Errorf("reliability.action must be one of move, ask, keep; got %q", c.Reliability.Action)
	}
}
