// Package language calls Azure AI Language for sentiment and key phrases.
package language

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/counterpoint/internal/analysis"
	"github.com/davidahmann/counterpoint/internal/azrest"
)

const (
	DefaultAPIVersion = "2023-04-01"
	analyzePath       = "/language/:analyze-text"
	documentID        = "1"
)

var ErrNoDocument = errors.New("language: no document in response")

// Result is what one text yields: a sentiment label, its confidences and key phrases.
type Result struct {
	Sentiment  string
	Scores     analysis.Scores
	KeyPhrases []string
}

// Analyzer is satisfied by Client and by fakes in service tests.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

type Client struct {
	rest       *azrest.Client
	apiVersion string
	Language   string
}

func NewClient(endpoint, key, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		rest:       azrest.New(endpoint, key, "Ocp-Apim-Subscription-Key"),
		apiVersion: apiVersion,
		Language:   "en",
	}
}

type document struct {
	ID       string `json:"id"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

type analyzeRequest struct {
	Kind          string `json:"kind"`
	AnalysisInput struct {
		Documents []document `json:"documents"`
	} `json:"analysisInput"`
}

type docError struct {
	ID    string `json:"id"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type sentimentResponse struct {
	Results struct {
		Documents []struct {
			ID               string          `json:"id"`
			Sentiment        string          `json:"sentiment"`
			ConfidenceScores analysis.Scores `json:"confidenceScores"`
		} `json:"documents"`
		Errors []docError `json:"errors"`
	} `json:"results"`
}

type keyPhraseResponse struct {
	Results struct {
		Documents []struct {
			ID         string   `json:"id"`
			KeyPhrases []string `json:"keyPhrases"`
		} `json:"documents"`
		Errors []docError `json:"errors"`
	} `json:"results"`
}

// Analyze runs sentiment analysis and key phrase extraction concurrently.
func (c *Client) Analyze(ctx context.Context, text string) (Result, error) {
	var (
		out     Result
		phrases []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		label, scores, err := c.sentiment(gctx, text)
		if err != nil {
			return fmt.Errorf("sentiment analysis: %w", err)
		}
		out.Sentiment, out.Scores = label, scores
		return nil
	})
	g.Go(func() error {
		p, err := c.keyPhrases(gctx, text)
		if err != nil {
			return fmt.Errorf("key phrase extraction: %w", err)
		}
		phrases = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	out.KeyPhrases = phrases
	return out, nil
}

func (c *Client) request(kind, text string) analyzeRequest {
	req := analyzeRequest{Kind: kind}
	req.AnalysisInput.Documents = []document{{ID: documentID, Language: c.Language, Text: text}}
	return req
}

func (c *Client) sentiment(ctx context.Context, text string) (string, analysis.Scores, error) {
	var resp sentimentResponse
	if err := c.rest.PostJSON(ctx, analyzePath, c.apiVersion, c.request("SentimentAnalysis", text), &resp); err != nil {
		return "", analysis.Scores{}, err
	}
	if err := firstDocError(resp.Results.Errors); err != nil {
		return "", analysis.Scores{}, err
	}
	if len(resp.Results.Documents) == 0 {
		return "", analysis.Scores{}, ErrNoDocument
	}
	doc := resp.Results.Documents[0]
	return doc.Sentiment, doc.ConfidenceScores, nil
}

func (c *Client) keyPhrases(ctx context.Context, text string) ([]string, error) {
	var resp keyPhraseResponse
	if err := c.rest.PostJSON(ctx, analyzePath, c.apiVersion, c.request("KeyPhraseExtraction", text), &resp); err != nil {
		return nil, err
	}
	if err := firstDocError(resp.Results.Errors); err != nil {
		return nil, err
	}
	if len(resp.Results.Documents) == 0 {
		return nil, ErrNoDocument
	}
	return resp.Results.Documents[0].KeyPhrases, nil
}

func firstDocError(errs []docError) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("document %s: %s: %s", errs[0].ID, errs[0].Error.Code, errs[0].Error.Message)
}
