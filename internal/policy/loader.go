package policy

import (
	"fmt"
	"os"

	"github.com/davidahmann/counterpoint/internal/digest"
	"gopkg.in/yaml.v3"
)

// File is the on-disk threshold document.
type File struct {
	PolicyID      string         `yaml:"policy_id"`
	PolicyVersion string         `yaml:"policy_version"`
	DefaultAction string         `yaml:"default_action"`
	Thresholds    map[string]int `yaml:"thresholds"`
}

type LoadedThresholds struct {
	PolicyID      string
	PolicyVersion string
	Default       Action
	Thresholds    Thresholds
	Hash          string
}

// DefaultThresholds rejects every category at severity 4.
func DefaultThresholds() LoadedThresholds {
	return LoadedThresholds{
		PolicyID:      "counterpoint-default",
		PolicyVersion: "1",
		Default:       DefaultAction,
		Thresholds: Thresholds{
			Hate:     4,
			SelfHarm: 4,
			Sexual:   4,
			Violence: 4,
		},
	}
}

// Decide evaluates severities against the loaded thresholds and default action.
func (l LoadedThresholds) Decide(severities Severities) (Decision, error) {
	return DecideWithDefault(severities, l.Thresholds, l.Default)
}

// LoadThresholds loads a YAML threshold file and computes its hash from raw bytes.
func LoadThresholds(path string) (LoadedThresholds, error) {
	// #nosec G304 -- path comes from operator-configured thresholds path.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedThresholds{}, err
	}
	return ParseThresholds(data)
}

func ParseThresholds(data []byte) (LoadedThresholds, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return LoadedThresholds{}, err
	}

	loaded := LoadedThresholds{
		PolicyID:      f.PolicyID,
		PolicyVersion: f.PolicyVersion,
		Default:       DefaultAction,
		Thresholds:    make(Thresholds, len(f.Thresholds)),
		Hash:          digest.WithPrefix(data),
	}

	if f.DefaultAction != "" {
		action, err := ParseAction(f.DefaultAction)
		if err != nil {
			return LoadedThresholds{}, fmt.Errorf("default_action: %w", err)
		}
		loaded.Default = action
	}

	for name, value := range f.Thresholds {
		category, err := ParseCategory(name)
		if err != nil {
			return LoadedThresholds{}, fmt.Errorf("thresholds: %w", err)
		}
		severity := Severity(value)
		if !severity.Valid() {
			return LoadedThresholds{}, fmt.Errorf("thresholds.%s: %w: %d", name, ErrSeverityRange, value)
		}
		loaded.Thresholds[category] = severity
	}

	return loaded, nil
}
