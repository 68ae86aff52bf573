package trademark

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giygas/dpd-api/logging"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Override maps every ingredient text containing Match to TM.
type Override struct {
	Match string `yaml:"match"`
	TM    string `yaml:"tm"`
}

// Rules configures the last resolution stage of the engine.
type Rules struct {
	MaxTokens        int        `yaml:"max_tokens"`
	Exceptions       []string   `yaml:"exceptions"`
	VerbatimPrefixes []string   `yaml:"verbatim_prefixes"`
	Overrides        []Override `yaml:"overrides"`
}

// DefaultRules returns the rules shipped with the binary.
func DefaultRules() (Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads rules from path, or the shipped rules when path is empty.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read trademark rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("failed to decode trademark rules: %w", err)
	}
	if rules.MaxTokens <= 0 {
		return Rules{}, fmt.Errorf("invalid trademark rules: max_tokens must be positive, got %d", rules.MaxTokens)
	}
	for i, o := range rules.Overrides {
		if o.Match == "" || o.TM == "" {
			return Rules{}, fmt.Errorf("invalid trademark rules: override %d needs both match and tm", i)
		}
	}
	return rules, nil
}

// ReferenceEntry is one document of the trademark reference list.
type ReferenceEntry struct {
	TM string `json:"tm"`
}

// LoadReference reads the reference list and keeps its single-word names in
// list order. A missing file yields an empty list.
func LoadReference(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		logging.Warn("Trademark reference list not found, continuing without it", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trademark reference list: %w", err)
	}

	var entries []ReferenceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode trademark reference list %s: %w", path, err)
	}
	return SingleWord(entries), nil
}

// SingleWord returns the non-empty names made of exactly one
// space-separated token.
func SingleWord(entries []ReferenceEntry) []string {
	var names []string
	for _, e := range entries {
		if e.TM != "" && len(strings.Split(e.TM, " ")) == 1 {
			names = append(names, e.TM)
		}
	}
	return names
}
