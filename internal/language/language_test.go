package language

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLanguageServer(t *testing.T, replies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, analyzePath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))

		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reply, ok := replies[req.Kind]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"InvalidRequest","message":"unknown kind"}}`))
			return
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyze(t *testing.T) {
	srv := newLanguageServer(t, map[string]string{
		"SentimentAnalysis":   `{"kind":"SentimentAnalysisResults","results":{"documents":[{"id":"1","sentiment":"negative","confidenceScores":{"positive":0.01,"neutral":0.04,"negative":0.95}}],"errors":[]}}`,
		"KeyPhraseExtraction": `{"kind":"KeyPhraseExtractionResults","results":{"documents":[{"id":"1","keyPhrases":["long line","bank"]}],"errors":[]}}`,
	})

	res, err := NewClient(srv.URL, "secret", "").Analyze(context.Background(), "I hate the long line at the bank")
	require.NoError(t, err)
	assert.Equal(t, "negative", res.Sentiment)
	assert.Equal(t, 0.95, res.Scores.Negative)
	assert.Equal(t, []string{"long line", "bank"}, res.KeyPhrases)
}

func TestAnalyzeDocumentError(t *testing.T) {
	srv := newLanguageServer(t, map[string]string{
		"SentimentAnalysis":   `{"results":{"documents":[],"errors":[{"id":"1","error":{"code":"InvalidDocument","message":"Document text is empty."}}]}}`,
		"KeyPhraseExtraction": `{"results":{"documents":[{"id":"1","keyPhrases":[]}],"errors":[]}}`,
	})

	_, err := NewClient(srv.URL, "secret", "").Analyze(context.Background(), " ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidDocument")
}

func TestAnalyzeHTTPError(t *testing.T) {
	srv := newLanguageServer(t, map[string]string{
		"SentimentAnalysis": `{"results":{"documents":[{"id":"1","sentiment":"neutral","confidenceScores":{"positive":0.1,"neutral":0.8,"negative":0.1}}]}}`,
	})

	_, err := NewClient(srv.URL, "secret", "").Analyze(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key phrase extraction")
}

func TestAnalyzeMissingDocument(t *testing.T) {
	srv := newLanguageServer(t, map[string]string{
		"SentimentAnalysis":   `{"results":{"documents":[]}}`,
		"KeyPhraseExtraction": `{"results":{"documents":[{"id":"1","keyPhrases":["x"]}]}}`,
	})

	_, err := NewClient(srv.URL, "secret", "").Analyze(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoDocument)
}
