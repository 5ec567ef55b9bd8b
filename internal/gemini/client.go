package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"inventaire/internal/faults"
	"inventaire/internal/resilience"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-2.0-flash"
	defaultHTTPTimeout = 60 * time.Second
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	TimeoutSeconds    int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestsPerMinute int
}

// Client wraps the Gemini generateContent API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithExecutor overrides the retry/breaker executor (useful for tests).
func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		if executor != nil {
			c.executor = executor
		}
	}
}

// WithLimiter overrides the request rate limiter (useful for tests).
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// NewClient constructs a classifier client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 15
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    cfg.RetryAttempts,
			RetryInitialBackoff: cfg.RetryBaseDelay,
			RetryMaxBackoff:     cfg.RetryMaxDelay,
			BreakerEnabled:      true,
		}, nil),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Classify analyzes one image and returns a single classification.
func (c *Client) Classify(ctx context.Context, req Request) (Classification, error) {
	var parsed Classification
	content, err := c.generate(ctx, buildPrompt(singleItemPrompt, req), req)
	if err != nil {
		return parsed, err
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return Classification{}, faults.Wrap(faults.ErrClassification, "gemini", "classify", "parse payload", err)
	}
	parsed.normalize()
	if parsed.Nom == "" {
		return Classification{}, faults.Wrap(faults.ErrClassification, "gemini", "classify", "response missing nom", nil)
	}
	return parsed, nil
}

// ClassifyMulti analyzes one image in multi-detection mode and returns one
// classification per distinct object found.
func (c *Client) ClassifyMulti(ctx context.Context, req Request) ([]Classification, error) {
	content, err := c.generate(ctx, buildPrompt(multiItemPrompt, req), req)
	if err != nil {
		return nil, err
	}

	var items []Classification
	if err := DecodeModelJSON(content, &items); err != nil {
		// Some responses come back as a single object; tolerate it.
		var single Classification
		if singleErr := DecodeModelJSON(content, &single); singleErr != nil {
			return nil, faults.Wrap(faults.ErrClassification, "gemini", "classify-multi", "parse payload", err)
		}
		items = []Classification{single}
	}

	valid := items[:0]
	for _, item := range items {
		item.normalize()
		if item.Nom != "" {
			valid = append(valid, item)
		}
	}
	if len(valid) == 0 {
		return nil, faults.Wrap(faults.ErrClassification, "gemini", "classify-multi", "no objects in response", nil)
	}
	return valid, nil
}

// HealthCheck issues a minimal text-only request to verify the API key and
// model are usable. Used at startup so credential problems fail the run
// before any image is touched.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return faults.Wrap(faults.ErrConfiguration, "gemini", "health", "api key required", nil)
	}
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: `Réponds avec {"ok":true}`}}}},
		GenerationConfig: &generationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}
	body, err := c.send(ctx, payload)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeModelJSON(body, &parsed); err != nil {
		return faults.Wrap(faults.ErrClassification, "gemini", "health", "parse payload", err)
	}
	if !parsed.OK {
		return faults.Wrap(faults.ErrClassification, "gemini", "health", "unexpected response", nil)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, prompt string, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", faults.Wrap(faults.ErrConfiguration, "gemini", "classify", "api key required", nil)
	}
	if len(req.ImageData) == 0 {
		return "", faults.Wrap(faults.ErrClassification, "gemini", "classify", "image data required", nil)
	}
	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	payload := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(req.ImageData),
				}},
			},
		}},
		GenerationConfig: &generationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}
	return c.send(ctx, payload)
}

func (c *Client) send(ctx context.Context, payload generateRequest) (string, error) {
	var text string
	err := c.executor.Execute(ctx, "generate", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		text, err = c.sendOnce(ctx, payload)
		return err
	}, classifyRequestError)
	if err != nil {
		if errors.Is(err, faults.ErrClassification) || errors.Is(err, faults.ErrConfiguration) {
			return "", err
		}
		return "", faults.Wrap(faults.ErrClassification, "gemini", "request", "", err)
	}
	return text, nil
}

func (c *Client) sendOnce(ctx context.Context, payload generateRequest) (string, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", c.cfg.Model+":generateContent")
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion generateResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	text := completion.text()
	if text == "" {
		return "", fmt.Errorf("empty content (finish_reason=%q)", completion.finishReason())
	}
	return text, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (r generateResponse) text() string {
	var b strings.Builder
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func (r generateResponse) finishReason() string {
	for _, candidate := range r.Candidates {
		if candidate.FinishReason != "" {
			return candidate.FinishReason
		}
	}
	return ""
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func classifyRequestError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return resilience.ErrorClassification{
				Retryable:     true,
				RetryAfter:    statusErr.RetryAfter,
				RecordFailure: true,
			}
		default:
			return resilience.ErrorClassification{RecordFailure: true}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return resilience.ErrorClassification{Retryable: urlErr.Timeout(), RecordFailure: true}
	}

	return resilience.ErrorClassification{}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
