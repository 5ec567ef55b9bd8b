package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeGemini()
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeCSV()
	c.normalizeReliability()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeoutSeconds
	}
	if c.Gemini.RetryAttempts <= 0 {
		c.Gemini.RetryAttempts = defaultRetryAttempts
	}
	if c.Gemini.RetryBaseSeconds <= 0 {
		c.Gemini.RetryBaseSeconds = defaultRetryBaseSeconds
	}
	if c.Gemini.RetryMaxSeconds <= 0 {
		c.Gemini.RetryMaxSeconds = defaultRetryMaxSeconds
	}
	if c.Gemini.RequestsPerMinute <= 0 {
		c.Gemini.RequestsPerMinute = defaultRequestsPerMinute
	}
}

func (c *Config) normalizeCatalog() error {
	path := strings.TrimSpace(c.Catalog.Path)
	if path == "" {
		path = defaultCatalogPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("catalog.path: %w", err)
	}
	c.Catalog.Path = expanded
	return nil
}

func (c *Config) normalizeCSV() {
	if strings.TrimSpace(c.CSV.Separator) == "" {
		c.CSV.Separator = defaultCSVSeparator
	}
	if strings.TrimSpace(c.CSV.Decimal) == "" {
		c.CSV.Decimal = defaultCSVDecimal
	}
	cleaned := c.CSV.ExtraColumns[:0]
	for _, col := range c.CSV.ExtraColumns {
		if col = strings.TrimSpace(col); col != "" {
			cleaned = append(cleaned, col)
		}
	}
	c.CSV.ExtraColumns = cleaned
}

func (c *Config) normalizeReliability() {
	c.Reliability.Action = strings.ToLower(strings.TrimSpace(c.Reliability.Action))
	if c.Reliability.Action == "" {
		c.Reliability.Action = defaultReliabilityAction
	}
	c.Reliability.ReviewDir = strings.TrimSpace(c.Reliability.ReviewDir)
	if c.Reliability.ReviewDir == "" {
		c.Reliability.ReviewDir = defaultReviewDirName
	}
	if c.Reliability.Threshold < 0 {
		c.Reliability.Threshold = 0
	}
	if c.Reliability.Threshold > 100 {
		c.Reliability.Threshold = 100
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
