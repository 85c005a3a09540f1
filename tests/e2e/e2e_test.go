//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/davidahmann/counterpoint/internal/api"
	"github.com/davidahmann/counterpoint/internal/auth"
	"github.com/davidahmann/counterpoint/internal/generation"
	"github.com/davidahmann/counterpoint/internal/language"
	"github.com/davidahmann/counterpoint/internal/policy"
	"github.com/davidahmann/counterpoint/internal/safety"
	"github.com/davidahmann/counterpoint/internal/tablestore"
)

func requireEnv(t *testing.T, keys ...string) map[string]string {
	t.Helper()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v := os.Getenv(k)
		if v == "" {
			t.Skipf("%s not set", k)
		}
		out[k] = v
	}
	return out
}

// TestE2ELiveServices drives the gateway against real Azure endpoints.
func TestE2ELiveServices(t *testing.T) {
	env := requireEnv(t,
		"ENDPOINT_URL", "AZURE_OPENAI_API_KEY", "DEPLOYMENT_NAME",
		"LANGUAGE_SERVICE_ENDPOINT", "LANGUAGE_SERVICE_KEY",
		"MODERATOR_ENDPOINT", "MODERATOR_API_KEY",
	)

	svc := &api.Service{
		Generator:  generation.NewAzureOpenAI(env["ENDPOINT_URL"], env["DEPLOYMENT_NAME"], env["AZURE_OPENAI_API_KEY"], "", generation.DefaultParams()),
		Analyzer:   language.NewClient(env["LANGUAGE_SERVICE_ENDPOINT"], env["LANGUAGE_SERVICE_KEY"], ""),
		Detector:   safety.NewClient(env["MODERATOR_ENDPOINT"], env["MODERATOR_API_KEY"], ""),
		Store:      tablestore.NewInMemoryStore(),
		Thresholds: api.StaticThresholds(policy.DefaultThresholds()),
		Logger:     zap.NewNop(),
	}
	if err := svc.Store.EnsureTable(context.Background()); err != nil {
		t.Fatalf("ensure table: %v", err)
	}

	srv := httptest.NewServer(api.NewRouter(&api.Handler{Auth: &auth.TokenAuthenticator{}, Service: svc}))
	defer srv.Close()

	var text api.TextResult
	post(t, srv.URL+"/v1/text", `{"text":"I can't stand people who cut in line."}`, &text)
	if text.Record.CounterNarrative == "" || text.RowKey == "" {
		t.Fatalf("unexpected result: %+v", text)
	}

	var mod api.ModerationResult
	post(t, srv.URL+"/v1/moderate/text", `{"text":"Have a nice day."}`, &mod)
	if mod.Record.SuggestedAction != "Accept" {
		t.Fatalf("expected Accept, got %s", mod.Record.SuggestedAction)
	}
}

func post(t *testing.T, url, body string, out any) {
	t.Helper()

	res, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("post %s status: %d", url, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
