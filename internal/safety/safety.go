// Package safety calls Azure AI Content Safety and maps its category analysis onto
// policy severities.
package safety

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/davidahmann/counterpoint/internal/azrest"
	"github.com/davidahmann/counterpoint/internal/policy"
	"github.com/davidahmann/counterpoint/pkg/types"
)

const (
	DefaultAPIVersion = "2024-09-01"
	textPath          = "/contentsafety/text:analyze"
	imagePath         = "/contentsafety/image:analyze"
)

var ErrEmptyContent = errors.New("safety: empty content")

// Detection is the per-category severity analysis of one piece of content.
type Detection struct {
	Severities       policy.Severities
	BlocklistMatches []types.BlocklistMatch
}

type Detector interface {
	DetectText(ctx context.Context, text string, blocklists []string) (Detection, error)
	DetectImage(ctx context.Context, content []byte) (Detection, error)
}

type Client struct {
	rest       *azrest.Client
	apiVersion string
}

func NewClient(endpoint, key, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		rest:       azrest.New(endpoint, key, "Ocp-Apim-Subscription-Key"),
		apiVersion: apiVersion,
	}
}

type categoryAnalysis struct {
	Category string `json:"category"`
	Severity int    `json:"severity"`
}

type blocklistMatch struct {
	BlocklistName     string `json:"blocklistName"`
	BlocklistItemID   string `json:"blocklistItemId"`
	BlocklistItemText string `json:"blocklistItemText"`
}

type analyzeResponse struct {
	BlocklistsMatch    []blocklistMatch   `json:"blocklistsMatch"`
	CategoriesAnalysis []categoryAnalysis `json:"categoriesAnalysis"`
}

type textRequest struct {
	Text               string   `json:"text"`
	Categories         []string `json:"categories"`
	BlocklistNames     []string `json:"blocklistNames,omitempty"`
	HaltOnBlocklistHit bool     `json:"haltOnBlocklistHit"`
}

type imageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Categories []string `json:"categories"`
}

func (c *Client) DetectText(ctx context.Context, text string, blocklists []string) (Detection, error) {
	if text == "" {
		return Detection{}, ErrEmptyContent
	}
	req := textRequest{Text: text, Categories: categoryNames(), BlocklistNames: blocklists}
	var resp analyzeResponse
	if err := c.rest.PostJSON(ctx, textPath, c.apiVersion, req, &resp); err != nil {
		return Detection{}, err
	}
	return toDetection(resp)
}

// DetectImage sends the raw image bytes base64-encoded.
func (c *Client) DetectImage(ctx context.Context, content []byte) (Detection, error) {
	if len(content) == 0 {
		return Detection{}, ErrEmptyContent
	}
	var req imageRequest
	req.Image.Content = base64.StdEncoding.EncodeToString(content)
	req.Categories = categoryNames()

	var resp analyzeResponse
	if err := c.rest.PostJSON(ctx, imagePath, c.apiVersion, req, &resp); err != nil {
		return Detection{}, err
	}
	return toDetection(resp)
}

func categoryNames() []string {
	out := make([]string, 0, len(policy.Categories))
	for _, c := range policy.Categories {
		out = append(out, c.String())
	}
	return out
}

func toDetection(resp analyzeResponse) (Detection, error) {
	det := Detection{Severities: make(policy.Severities, len(resp.CategoriesAnalysis))}
	for _, ca := range resp.CategoriesAnalysis {
		category, err := policy.ParseCategory(ca.Category)
		if err != nil {
			return Detection{}, err
		}
		severity := policy.Severity(ca.Severity)
		if !severity.Valid() {
			return Detection{}, fmt.Errorf("%w: %s=%d", policy.ErrSeverityRange, category, ca.Severity)
		}
		det.Severities[category] = severity
	}
	for _, m := range resp.BlocklistsMatch {
		det.BlocklistMatches = append(det.BlocklistMatches, types.BlocklistMatch{
			BlocklistName: m.BlocklistName,
			ItemID:        m.BlocklistItemID,
			ItemText:      m.BlocklistItemText,
		})
	}
	return det, nil
}
