package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"inventaire/internal/faults"
	"inventaire/internal/resilience"
)

var tinyImage = []byte{0xFF, 0xD8, 0xFF, 0xE0}

func fastOptions() []Option {
	return []Option{
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithExecutor(resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    3,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     2 * time.Millisecond,
		}, nil)),
	}
}

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func TestClassifyParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/demo-model:generateContent") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Fatalf("unexpected api key header %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		payload := `{"nom":"Gants de travail - Taille 9","categorie":"Vêtements de travail","categorie_id":"VET","quantite":"3","etat":"Bon état","fiabilite":92,"prix_unitaire_estime":"4,50","prix_neuf_estime":12}`
		if err := json.NewEncoder(w).Encode(candidateResponse(payload)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "demo-model"}, fastOptions()...)
	result, err := client.Classify(context.Background(), Request{ImageData: tinyImage, MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Nom != "Gants de travail - Taille 9" {
		t.Fatalf("unexpected nom %q", result.Nom)
	}
	if result.Quantite != 3 {
		t.Fatalf("string quantity should parse, got %d", int(result.Quantite))
	}
	if result.Fiabilite != 92 {
		t.Fatalf("unexpected fiabilite %d", int(result.Fiabilite))
	}
	if float64(result.PrixUnitaire) != 4.5 {
		t.Fatalf("comma decimal should parse, got %v", float64(result.PrixUnitaire))
	}
}

func TestClassifyToleratesCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := "```json\n{\"nom\":\"Stylo bille bleu\",\"categorie\":\"Fournitures\",\"quantite\":5,\"fiabilite\":88}\n```"
		_ = json.NewEncoder(w).Encode(candidateResponse(payload))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, fastOptions()...)
	result, err := client.Classify(context.Background(), Request{ImageData: tinyImage})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Nom != "Stylo bille bleu" || result.Quantite != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(candidateResponse(`{"nom":"Vis M4","quantite":100,"fiabilite":70}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, fastOptions()...)
	result, err := client.Classify(context.Background(), Request{ImageData: tinyImage})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if result.Nom != "Vis M4" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyPermanentFailureIsClassificationError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid image"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, fastOptions()...)
	_, err := client.Classify(context.Background(), Request{ImageData: tinyImage})
	if !errors.Is(err, faults.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("bad request should not be retried, got %d attempts", attempts)
	}
}

func TestClassifyMissingKeyIsConfigurationError(t *testing.T) {
	client := NewClient(Config{}, fastOptions()...)
	_, err := client.Classify(context.Background(), Request{ImageData: tinyImage})
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestClassifyMulti(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := `[{"nom":"Tournevis plat","quantite":2,"fiabilite":90},{"nom":"Tournevis cruciforme","quantite":3,"fiabilite":85},{"nom":"","quantite":1}]`
		_ = json.NewEncoder(w).Encode(candidateResponse(payload))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, fastOptions()...)
	items, err := client.ClassifyMulti(context.Background(), Request{ImageData: tinyImage, Target: "tournevis"})
	if err != nil {
		t.Fatalf("ClassifyMulti returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected nameless detections to be dropped, got %d items", len(items))
	}
	if items[0].Nom != "Tournevis plat" || items[1].Quantite != 3 {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestClassifyMultiAcceptsSingleObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(candidateResponse(`{"nom":"Marteau","quantite":1,"fiabilite":95}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, fastOptions()...)
	items, err := client.ClassifyMulti(context.Background(), Request{ImageData: tinyImage})
	if err != nil {
		t.Fatalf("ClassifyMulti returned error: %v", err)
	}
	if len(items) != 1 || items[0].Nom != "Marteau" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(candidateResponse(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, fastOptions()...)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed struct {
		Nom string `json:"nom"`
	}
	content := "Voici le résultat demandé : {\"nom\":\"Perceuse\"} en espérant que cela convienne."
	if err := DecodeModelJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON returned error: %v", err)
	}
	if parsed.Nom != "Perceuse" {
		t.Fatalf("unexpected nom %q", parsed.Nom)
	}
}
