package policy

import "fmt"

// DefaultAction applies to a detected category that has no configured threshold.
const DefaultAction = Accept

// Decide maps detected severities to per-category actions under thresholds.
// A category is rejected when its severity is at or above its threshold; a category
// with no threshold falls back to DefaultAction. The suggested action is Reject when
// any category is rejected.
func Decide(severities Severities, thresholds Thresholds) (Decision, error) {
	return DecideWithDefault(severities, thresholds, DefaultAction)
}

// DecideWithDefault is Decide with an explicit action for unconfigured categories.
func DecideWithDefault(severities Severities, thresholds Thresholds, fallback Action) (Decision, error) {
	if fallback != Accept && fallback != Reject {
		return Decision{}, fmt.Errorf("%w: %d", ErrUnknownAction, int(fallback))
	}
	for category, threshold := range thresholds {
		if !category.Valid() {
			return Decision{}, fmt.Errorf("%w: threshold for %s", ErrUnknownCategory, category)
		}
		if !threshold.Valid() {
			return Decision{}, fmt.Errorf("%w: threshold %d for %s", ErrSeverityRange, threshold, category)
		}
	}

	decision := Decision{
		ActionByCategory: make(map[Category]Action, len(severities)),
		SuggestedAction:  Accept,
	}

	for category, severity := range severities {
		if !category.Valid() {
			return Decision{}, fmt.Errorf("%w: severity for %s", ErrUnknownCategory, category)
		}
		if !severity.Valid() {
			return Decision{}, fmt.Errorf("%w: severity %d for %s", ErrSeverityRange, severity, category)
		}

		action := fallback
		if threshold, ok := thresholds[category]; ok {
			action = Accept
			if severity >= threshold {
				action = Reject
			}
		}

		decision.ActionByCategory[category] = action
		if action == Reject {
			decision.SuggestedAction = Reject
		}
	}

	return decision, nil
}
