package verify

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadExpected reads a YAML or JSON file mapping class labels to required
// counts:
//
//	K: 2
//	E: 1
//	"2": 1
func LoadExpected(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expected counts: %w", err)
	}

	expected := map[string]int{}
	if err := yaml.Unmarshal(data, &expected); err != nil {
		return nil, fmt.Errorf("failed to parse expected counts %s: %w", path, err)
	}
	if err := ValidateExpected(expected); err != nil {
		return nil, err
	}
	return expected, nil
}

// ParseExpected parses the inline form "K=2,E=1,2=1".
func ParseExpected(s string) (map[string]int, error) {
	expected := map[string]int{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		label, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("expected LABEL=COUNT, got %q", item)
		}
		label = strings.TrimSpace(label)
		count, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid count for %q: %w", label, err)
		}
		if _, dup := expected[label]; dup {
			return nil, fmt.Errorf("label %q given twice", label)
		}
		expected[label] = count
	}
	if err := ValidateExpected(expected); err != nil {
		return nil, err
	}
	return expected, nil
}

// ValidateExpected rejects an empty set of expected counts and negative
// required counts.
func ValidateExpected(expected map[string]int) error {
	if len(expected) == 0 {
		return fmt.Errorf("expected counts are empty")
	}
	labels := make([]string, 0, len(expected))
	for label := range expected {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if expected[label] < 0 {
			return fmt.Errorf("required count for %q must not be negative, got %d", label, expected[label])
		}
	}
	return nil
}
