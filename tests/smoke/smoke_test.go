package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davidahmann/counterpoint/internal/api"
	"github.com/davidahmann/counterpoint/internal/archive"
	"github.com/davidahmann/counterpoint/internal/auth"
	"github.com/davidahmann/counterpoint/internal/config"
	"github.com/davidahmann/counterpoint/internal/generation"
	"github.com/davidahmann/counterpoint/internal/language"
	"github.com/davidahmann/counterpoint/internal/policy"
	"github.com/davidahmann/counterpoint/internal/safety"
	"github.com/davidahmann/counterpoint/internal/tablestore/backend"
)

// fakeAzure answers the three cognitive service routes the gateway calls.
func fakeAzure(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Most people in line are just as tired as you."},"finish_reason":"stop"}]}`))
		case r.URL.Path == "/language/:analyze-text":
			var req struct {
				Kind string `json:"kind"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Kind == "SentimentAnalysis" {
				_, _ = w.Write([]byte(`{"results":{"documents":[{"id":"1","sentiment":"negative","confidenceScores":{"positive":0.02,"neutral":0.08,"negative":0.9}}],"errors":[]}}`))
				return
			}
			_, _ = w.Write([]byte(`{"results":{"documents":[{"id":"1","keyPhrases":["long line"]}],"errors":[]}}`))
		case r.URL.Path == "/contentsafety/text:analyze":
			_, _ = w.Write([]byte(`{"categoriesAnalysis":[{"category":"Hate","severity":6},{"category":"Violence","severity":0}],"blocklistsMatch":[]}`))
		case r.URL.Path == "/contentsafety/image:analyze":
			_, _ = w.Write([]byte(`{"categoriesAnalysis":[{"category":"Sexual","severity":0}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestSmoke(t *testing.T) {
	gin.SetMode(gin.TestMode)

	azure := fakeAzure(t)
	defer azure.Close()

	ctx := context.Background()
	store, closer, err := backend.Open(ctx, config.StoreConfig{
		Driver:    "sqlite",
		DSN:       "file:smoke?mode=memory&cache=shared",
		Table:     config.DefaultTable,
		Partition: config.DefaultPartition,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closer.Close()

	thresholds, err := policy.LoadThresholds("../../policies/counterpoint.yaml")
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}

	svc := &api.Service{
		Generator:  generation.NewAzureOpenAI(azure.URL, "gpt-4o", "key", "", generation.DefaultParams()),
		Analyzer:   language.NewClient(azure.URL, "key", ""),
		Detector:   safety.NewClient(azure.URL, "key", ""),
		Store:      store,
		Archiver:   archive.NewFileArchiver(t.TempDir(), "uploads"),
		Thresholds: api.StaticThresholds(thresholds),
		Partition:  config.DefaultPartition,
		Logger:     zap.NewNop(),
	}
	router := api.NewRouter(&api.Handler{
		Auth:    &auth.TokenAuthenticator{Token: "test-token"},
		Service: svc,
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	// auth gate sanity check
	res, err := http.Get(srv.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	submit(t, srv.URL)
	sessions(t, srv.URL)
	moderate(t, srv.URL)
	dashboard(t, srv.URL)
}

func do(t *testing.T, method, url string, body io.Reader) []byte {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("%s %s status: %d %s", method, url, res.StatusCode, data)
	}
	return data
}

func submit(t *testing.T, baseURL string) {
	t.Helper()

	data := do(t, http.MethodPost, baseURL+"/v1/text", bytes.NewBufferString(`{"text":"I hate the long line at the bank"}`))
	var payload api.TextResult
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.RowKey == "" {
		t.Fatalf("missing row key")
	}
	if payload.Record.Severity != "High" || payload.Record.Sentiment != "Negative" {
		t.Fatalf("unexpected record: %+v", payload.Record)
	}
	if !strings.Contains(payload.Highlighted, "<mark>long line</mark>") {
		t.Fatalf("unexpected highlight: %q", payload.Highlighted)
	}
}

func sessions(t *testing.T, baseURL string) {
	t.Helper()

	data := do(t, http.MethodGet, baseURL+"/v1/sessions", nil)
	var payload struct {
		Sessions []struct {
			Text             string `json:"text"`
			CounterNarrative string `json:"counter_narrative"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(payload.Sessions))
	}
	if payload.Sessions[0].CounterNarrative == "" {
		t.Fatalf("counter narrative not stored")
	}
}

func moderate(t *testing.T, baseURL string) {
	t.Helper()

	data := do(t, http.MethodPost, baseURL+"/v1/moderate/text", bytes.NewBufferString(`{"text":"something hateful"}`))
	var payload api.ModerationResult
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Record.SuggestedAction != "Reject" {
		t.Fatalf("expected Reject, got %s", payload.Record.SuggestedAction)
	}
	if payload.Record.ActionByCategory["Violence"] != "Accept" {
		t.Fatalf("unexpected actions: %v", payload.Record.ActionByCategory)
	}
	if !strings.HasPrefix(payload.Record.DecisionID, "sha256:") {
		t.Fatalf("unexpected decision id: %q", payload.Record.DecisionID)
	}
}

func dashboard(t *testing.T, baseURL string) {
	t.Helper()

	data := do(t, http.MethodGet, baseURL+"/v1/dashboard", nil)
	var payload struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Total != 1 {
		t.Fatalf("expected one session in dashboard, got %d", payload.Total)
	}

	page := do(t, http.MethodGet, baseURL+"/", nil)
	if !bytes.Contains(page, []byte("<canvas")) {
		t.Fatalf("dashboard page missing charts")
	}
}
