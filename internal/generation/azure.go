package generation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/davidahmann/counterpoint/internal/azrest"
)

const (
	DefaultAzureAPIVersion = "2024-05-01-preview"
	policyViolationCode    = "ResponsibleAIPolicyViolation"
	contentFilterReason    = "content_filter"
)

// AzureOpenAI calls the chat completions endpoint of one deployment.
type AzureOpenAI struct {
	rest       *azrest.Client
	deployment string
	apiVersion string
	params     Params
}

func NewAzureOpenAI(endpoint, deployment, apiKey, apiVersion string, params Params) *AzureOpenAI {
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}
	return &AzureOpenAI{
		rest:       azrest.New(endpoint, apiKey, "api-key"),
		deployment: deployment,
		apiVersion: apiVersion,
		params:     params,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func (a *AzureOpenAI) Generate(ctx context.Context, text string) (string, error) {
	if a.deployment == "" {
		return "", fmt.Errorf("azure openai: %w", azrest.ErrNotConfigured)
	}
	req := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: UserPrompt(text)},
		},
		MaxTokens:   a.params.MaxTokens,
		Temperature: a.params.Temperature,
		TopP:        a.params.TopP,
	}

	var resp chatResponse
	path := "/openai/deployments/" + url.PathEscape(a.deployment) + "/chat/completions"
	if err := a.rest.PostJSON(ctx, path, a.apiVersion, req, &resp); err != nil {
		if isPolicyViolation(err) {
			return "", policyViolation(err.Error())
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.FinishReason == contentFilterReason {
		return "", policyViolation("completion filtered")
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func isPolicyViolation(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.ErrorCode == contentFilterReason {
		return true
	}
	var aerr *azrest.Error
	if errors.As(err, &aerr) && aerr.InnerCode == policyViolationCode {
		return true
	}
	return strings.Contains(err.Error(), policyViolationCode)
}
