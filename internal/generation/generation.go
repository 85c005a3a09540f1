// Package generation produces counter-narratives from a hosted language model.
package generation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPolicyViolation marks input the provider refused under its content policy.
	ErrPolicyViolation = errors.New("generation: content policy violation")
	ErrEmptyResponse   = errors.New("generation: empty response")
)

const (
	PolicyViolationMessage = "Your input text violates Azure OpenAI's content policy. Please rephrase your input to avoid violent, harmful, or inappropriate content."
	UnexpectedErrorPrefix  = "An unexpected error occurred: "
)

const SystemPrompt = "You are an AI assistant that generates constructive, empathetic, and context-aware counter-narratives for the given text. Your responses should promote positivity, mutual understanding, and civility. If the text is already positive, maintain its tone while offering supportive insights. Each counter-narrative should be concise and no more than 3 sentences."

// Generator returns a counter-narrative for text.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// Params are the sampling limits shared by every provider.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

func DefaultParams() Params {
	return Params{MaxTokens: 150, Temperature: 0.7, TopP: 0.95}
}

func UserPrompt(text string) string {
	return "Generate a counter-narrative for the following text:\n\n" + text + "\n\nCounter-narrative:"
}

// Describe renders a generation failure as the message shown to users.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrPolicyViolation) {
		return PolicyViolationMessage
	}
	return UnexpectedErrorPrefix + err.Error()
}

func policyViolation(detail string) error {
	return fmt.Errorf("%w: %s", ErrPolicyViolation, detail)
}
