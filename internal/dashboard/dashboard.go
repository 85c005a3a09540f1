// Package dashboard aggregates stored analysis records into the figures shown on
// the session dashboard.
package dashboard

import (
	"sort"
	"strings"
	"unicode"

	"github.com/davidahmann/counterpoint/internal/analysis"
)

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Point places one session on the sentiment vs severity scatter.
type Point struct {
	Sentiment     string  `json:"sentiment"`
	Severity      string  `json:"severity"`
	NegativeScore float64 `json:"negative_score"`
}

type Summary struct {
	Total          int             `json:"total"`
	Sentiments     []LabelCount    `json:"sentiments"`
	Severities     []LabelCount    `json:"severities"`
	AverageScores  analysis.Scores `json:"average_scores"`
	KeyPhraseWords []WordCount     `json:"key_phrase_words"`
	Points         []Point         `json:"points"`
	PositiveTrend  []float64       `json:"positive_trend"`
}

// MaxWords caps the word cloud input.
const MaxWords = 100

func Summarize(records []analysis.Record) Summary {
	s := Summary{
		Total:          len(records),
		Sentiments:     []LabelCount{},
		Severities:     []LabelCount{},
		KeyPhraseWords: []WordCount{},
		Points:         make([]Point, 0, len(records)),
		PositiveTrend:  make([]float64, 0, len(records)),
	}
	if len(records) == 0 {
		return s
	}

	sentiments := map[string]int{}
	severities := map[string]int{}
	words := map[string]int{}
	var sum analysis.Scores
	for _, r := range records {
		sentiments[r.Sentiment]++
		severities[r.Severity]++
		sum.Positive += r.PositiveScore
		sum.Neutral += r.NeutralScore
		sum.Negative += r.NegativeScore
		for _, w := range phraseWords(r.Phrases()) {
			words[w]++
		}
		s.Points = append(s.Points, Point{Sentiment: r.Sentiment, Severity: r.Severity, NegativeScore: r.NegativeScore})
		s.PositiveTrend = append(s.PositiveTrend, r.PositiveScore)
	}

	n := float64(len(records))
	s.AverageScores = analysis.Scores{Positive: sum.Positive / n, Neutral: sum.Neutral / n, Negative: sum.Negative / n}
	s.Sentiments = sortedCounts(sentiments)
	s.Severities = sortedCounts(severities)

	for w, c := range words {
		s.KeyPhraseWords = append(s.KeyPhraseWords, WordCount{Word: w, Count: c})
	}
	sort.Slice(s.KeyPhraseWords, func(i, j int) bool {
		if s.KeyPhraseWords[i].Count != s.KeyPhraseWords[j].Count {
			return s.KeyPhraseWords[i].Count > s.KeyPhraseWords[j].Count
		}
		return s.KeyPhraseWords[i].Word < s.KeyPhraseWords[j].Word
	})
	if len(s.KeyPhraseWords) > MaxWords {
		s.KeyPhraseWords = s.KeyPhraseWords[:MaxWords]
	}
	return s
}

// phraseWords joins phrases with spaces and splits the result into lower-cased
// words, trimming surrounding punctuation.
func phraseWords(phrases []string) []string {
	var out []string
	for _, f := range strings.Fields(strings.Join(phrases, " ")) {
		w := strings.TrimFunc(strings.ToLower(f), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func sortedCounts(m map[string]int) []LabelCount {
	out := make([]LabelCount, 0, len(m))
	for label, count := range m {
		out = append(out, LabelCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
