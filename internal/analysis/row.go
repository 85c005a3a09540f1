package analysis

import (
	"encoding/json"
	"strconv"
)

// Column names shared by the write and read paths. They match the rows written by
// earlier deployments, so existing tables stay readable.
const (
	ColumnText             = "Text"
	ColumnSentiment        = "sentiment"
	ColumnSeverity         = "severity"
	ColumnKeyPhrases       = "key_phrases"
	ColumnPositiveScore    = "positive_score"
	ColumnNeutralScore     = "neutral_score"
	ColumnNegativeScore    = "negative_score"
	ColumnCounterNarrative = "C_Narrative"
)

// Row flattens the record to primitive column values.
func (r Record) Row() map[string]any {
	return map[string]any{
		ColumnText:             r.Text,
		ColumnSentiment:        r.Sentiment,
		ColumnSeverity:         r.Severity,
		ColumnKeyPhrases:       r.KeyPhrases,
		ColumnPositiveScore:    r.PositiveScore,
		ColumnNeutralScore:     r.NeutralScore,
		ColumnNegativeScore:    r.NegativeScore,
		ColumnCounterNarrative: r.CounterNarrative,
	}
}

// FromRow reads a record back from flat properties. Missing or mistyped columns
// become zero values; rows are schema-less and may predate a column.
func FromRow(props map[string]any) Record {
	return Record{
		Text:             stringValue(props[ColumnText]),
		Sentiment:        stringValue(props[ColumnSentiment]),
		Severity:         stringValue(props[ColumnSeverity]),
		KeyPhrases:       stringValue(props[ColumnKeyPhrases]),
		PositiveScore:    floatValue(props[ColumnPositiveScore]),
		NeutralScore:     floatValue(props[ColumnNeutralScore]),
		NegativeScore:    floatValue(props[ColumnNegativeScore]),
		CounterNarrative: stringValue(props[ColumnCounterNarrative]),
	}
}

func stringValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return ""
	}
}

func floatValue(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case int32:
		return float64(value)
	case json.Number:
		f, _ := value.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(value, 64)
		return f
	default:
		return 0
	}
}
