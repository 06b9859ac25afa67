package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsdigest/internal/collector"
	"newsdigest/internal/config"
	"newsdigest/internal/pipeline"
	"newsdigest/internal/publish"
	"newsdigest/internal/summarizer"
	"newsdigest/pkg/models"
)

type stubCollector struct{}

func (stubCollector) Collect(ctx context.Context) ([]models.Article, []collector.SourceError) {
	return nil, nil
}

type stubSummarizer struct{}

func (stubSummarizer) SummarizeBatch(ctx context.Context, articles []models.Article, maxArticles int) []summarizer.BatchResult {
	return nil
}

func (stubSummarizer) GenerateTitle(ctx context.Context, niche string, pairs []models.ArticlePair) (string, error) {
	return "", nil
}

func (stubSummarizer) GenerateInsights(ctx context.Context, niche string, pairs []models.ArticlePair) (string, error) {
	return "", nil
}

type stubRegistry struct{}

func (stubRegistry) Channels() []string { return nil }

func (stubRegistry) PublishDigest(ctx context.Context, content models.DigestContent, pairs []models.ArticlePair, meta publish.Metadata) []error {
	return nil
}

func (stubRegistry) PublishArticles(ctx context.Context, pairs []models.ArticlePair, meta publish.Metadata) []error {
	return nil
}

func (stubRegistry) ReportErrors(ctx context.Context, errs []string) {}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{Niche: "AI"}
	pipe := pipeline.New("AI", stubCollector{}, nil, "", stubSummarizer{}, stubRegistry{})
	return NewServer(cfg, pipe)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Errorf("success = false, want true")
	}
	data := resp.Data.(map[string]interface{})
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["niche"] != "AI" {
		t.Errorf("niche = %v, want AI", data["niche"])
	}
}

func TestStatusEndpointStartsIdle(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["state"] != string(pipeline.StateIdle) {
		t.Errorf("state = %v, want %s", data["state"], pipeline.StateIdle)
	}
}

func TestRunEndpointTriggersBackgroundRun(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/run", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	// The stub collector returns no articles, so the run completes quickly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		state, _ := srv.pipe.Status()
		if state == pipeline.StateCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline state = %s, want completed", state)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["state"] != string(pipeline.StateCompleted) {
		t.Errorf("state = %v, want completed", data["state"])
	}
	if data["last_run"] == nil {
		t.Errorf("last_run missing from status response")
	}
}

func TestConfigKeysEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.Summarization.OpenAIKey = "sk-test1234567890abcdef"

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config/keys", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	keys, ok := resp.Data.([]interface{})
	if !ok || len(keys) == 0 {
		t.Fatalf("expected key statuses, got %v", resp.Data)
	}
	var sawOpenAI bool
	for _, k := range keys {
		entry := k.(map[string]interface{})
		if entry["name"] == "OpenAI API Key" {
			sawOpenAI = true
			if entry["is_set"] != true {
				t.Errorf("OpenAI is_set = %v, want true", entry["is_set"])
			}
		}
	}
	if !sawOpenAI {
		t.Errorf("no OpenAI entry in key statuses")
	}
}
