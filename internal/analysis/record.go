// Package analysis shapes sentiment/key-phrase results and generated counter-narratives
// into the flat record persisted per text submission.
package analysis

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NegativeSeverityThreshold is the negative-confidence score above which a submission
// is labelled High severity. The boundary itself is Low.
const NegativeSeverityThreshold = 0.5

// KeyPhraseDelimiter joins key phrases into a single column. Phrases that contain the
// delimiter do not survive SplitKeyPhrases intact.
const KeyPhraseDelimiter = "; "

const (
	SeverityHigh = "High"
	SeverityLow  = "Low"
)

const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
	SentimentMixed    = "Mixed"
)

type Scores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Input is the raw material gathered from the collaborators for one submission.
type Input struct {
	Text             string
	Sentiment        string
	Scores           Scores
	KeyPhrases       []string
	CounterNarrative string
}

// Record is the flattened, storage-ready shape of one submission.
type Record struct {
	Text             string  `json:"text"`
	Sentiment        string  `json:"sentiment"`
	Severity         string  `json:"severity"`
	KeyPhrases       string  `json:"key_phrases"`
	PositiveScore    float64 `json:"positive_score"`
	NeutralScore     float64 `json:"neutral_score"`
	NegativeScore    float64 `json:"negative_score"`
	CounterNarrative string  `json:"counter_narrative"`
}

// Shape derives the severity label, normalises the sentiment label and joins key phrases.
func Shape(in Input) Record {
	return Record{
		Text:             in.Text,
		Sentiment:        NormalizeSentiment(in.Sentiment),
		Severity:         SeverityLabel(in.Scores.Negative),
		KeyPhrases:       JoinKeyPhrases(in.KeyPhrases),
		PositiveScore:    in.Scores.Positive,
		NeutralScore:     in.Scores.Neutral,
		NegativeScore:    in.Scores.Negative,
		CounterNarrative: in.CounterNarrative,
	}
}

func SeverityLabel(negative float64) string {
	if negative > NegativeSeverityThreshold {
		return SeverityHigh
	}
	return SeverityLow
}

// NormalizeSentiment title-cases a service label ("negative" -> "Negative").
// An empty label is treated as neutral.
func NormalizeSentiment(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return SentimentNeutral
	}
	return cases.Title(language.English).String(strings.ToLower(label))
}

func JoinKeyPhrases(phrases []string) string {
	return strings.Join(phrases, KeyPhraseDelimiter)
}

// SplitKeyPhrases is the best-effort inverse of JoinKeyPhrases.
func SplitKeyPhrases(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, KeyPhraseDelimiter)
}

// Phrases returns the record's key phrases split back into a slice.
func (r Record) Phrases() []string {
	return SplitKeyPhrases(r.KeyPhrases)
}
