package config

const (
	defaultGeminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel          = "gemini-2.0-flash"
	defaultGeminiTimeoutSeconds = 60
	defaultRetryAttempts        = 5
	defaultRetryBaseSeconds     = 1.0
	defaultRetryMaxSeconds      = 10.0
	defaultRequestsPerMinute    = 15

	defaultCatalogPath = "~/.config/inventaire/categories.csv"

	defaultCSVSeparator = ","
	defaultCSVDecimal   = "."

	defaultThumbnailMaxWidth  = 300
	defaultThumbnailMaxHeight = 300
	defaultThumbnailQuality   = 70

	defaultCompressionMaxSizeKB  = 250
	defaultCompressionInitialDim = 2000
	defaultCompressionStartQ     = 85
	defaultCompressionStepQ      = 10
	defaultCompressionMinQ       = 20

	defaultReliabilityThreshold = 85
	defaultReliabilityAction    = "move"
	defaultReviewDirName        = "manual_review"

	defaultLogLevel  = "info"
	defaultLogFormat = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Gemini: Gemini{
			BaseURL:           defaultGeminiBaseURL,
			Model:             defaultGeminiModel,
			TimeoutSeconds:    defaultGeminiTimeoutSeconds,
			RetryAttempts:     defaultRetryAttempts,
			RetryBaseSeconds:  defaultRetryBaseSeconds,
			RetryMaxSeconds:   defaultRetryMaxSeconds,
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Catalog: Catalog{
			Path: defaultCatalogPath,
		},
		CSV: CSV{
			Separator:    defaultCSVSeparator,
			Decimal:      defaultCSVDecimal,
			IncludeImage: true,
		},
		Thumbnail: Thumbnail{
			MaxWidth:    defaultThumbnailMaxWidth,
			MaxHeight:   defaultThumbnailMaxHeight,
			JPEGQuality: defaultThumbnailQuality,
		},
		Compression: Compression{
			MaxSizeKB:     defaultCompressionMaxSizeKB,
			InitialMaxDim: defaultCompressionInitialDim,
			StartQuality:  defaultCompressionStartQ,
			QualityStep:   defaultCompressionStepQ,
			MinQuality:    defaultCompressionMinQ,
		},
		Reliability: Reliability{
			Threshold: defaultReliabilityThreshold,
			Action:    defaultReliabilityAction,
			ReviewDir: defaultReviewDirName,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
