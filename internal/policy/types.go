package policy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownCategory = fmt.Errorf("%w: unknown category", ErrInvalidArgument)
	ErrUnknownAction   = fmt.Errorf("%w: unknown action", ErrInvalidArgument)
	ErrSeverityRange   = fmt.Errorf("%w: severity out of range", ErrInvalidArgument)
)

// Severity is the ordinal strength reported by the safety classifier for one category.
type Severity int

const (
	MinSeverity Severity = 0
	MaxSeverity Severity = 6
)

func (s Severity) Valid() bool {
	return s >= MinSeverity && s <= MaxSeverity
}

// Band groups severities for display: 0 acceptable, 1-3 warning, 4 and up rejected.
func (s Severity) Band() string {
	switch {
	case s <= 0:
		return "acceptable"
	case s < 4:
		return "warning"
	default:
		return "rejected"
	}
}

type Category int

const (
	categoryUnknown Category = iota
	Hate
	SelfHarm
	Sexual
	Violence
)

// Categories lists the closed set in the order the safety service reports them.
var Categories = []Category{Hate, SelfHarm, Sexual, Violence}

func (c Category) String() string {
	switch c {
	case Hate:
		return "Hate"
	case SelfHarm:
		return "SelfHarm"
	case Sexual:
		return "Sexual"
	case Violence:
		return "Violence"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

func (c Category) Valid() bool {
	switch c {
	case Hate, SelfHarm, Sexual, Violence:
		return true
	default:
		return false
	}
}

// ParseCategory maps a service category name to a Category, ignoring case.
func ParseCategory(name string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hate":
		return Hate, nil
	case "selfharm", "self_harm", "self-harm":
		return SelfHarm, nil
	case "sexual":
		return Sexual, nil
	case "violence":
		return Violence, nil
	default:
		return categoryUnknown, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Action int

const (
	Accept Action = iota
	Reject
)

func (a Action) String() string {
	switch a {
	case Accept:
		return "Accept"
	case Reject:
		return "Reject"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "accept":
		return Accept, nil
	case "reject":
		return Reject, nil
	default:
		return Accept, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

func (a Action) MarshalText() ([]byte, error) {
	switch a {
	case Accept, Reject:
		return []byte(a.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, int(a))
	}
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Severities holds one detected severity per category.
type Severities map[Category]Severity

// Thresholds holds the minimum rejecting severity per category.
type Thresholds map[Category]Severity

type Decision struct {
	ActionByCategory map[Category]Action
	SuggestedAction  Action
}

// Rejected reports the categories whose action is Reject, in reporting order.
func (d Decision) Rejected() []Category {
	var out []Category
	for _, c := range Categories {
		if action, ok := d.ActionByCategory[c]; ok && action == Reject {
			out = append(out, c)
		}
	}
	return out
}
