// Package testutil loads the YAML fixture tables used by the template tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is a single template fixture.
type Case struct {
	Name     string         `yaml:"name"`
	Template string         `yaml:"template"`
	Vars     map[string]any `yaml:"vars"`
	Settings *Settings      `yaml:"settings"`
	Expected string         `yaml:"expected"`
	Error    string         `yaml:"error"` // substring of the expected error, if any
}

// Settings are optional per-case render settings.
type Settings struct {
	Syntax           string            `yaml:"syntax"`
	ErrorsOutputMode string            `yaml:"errors_output_mode"`
	Locale           string            `yaml:"locale"`
	Naming           string            `yaml:"naming"`
	StrictVariables  bool              `yaml:"strict_variables"`
	MaxIterations    int               `yaml:"max_iterations"`
	Templates        map[string]string `yaml:"templates"` // partials for include/extends
}

type fixtureFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads a fixture file.
func LoadCases(path string) ([]Case, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCases(content)
}

// ParseCases decodes fixture content. Case names must be unique.
func ParseCases(content []byte) ([]Case, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(f.Cases))
	for i, c := range f.Cases {
		if c.Name == "" {
			return nil, fmt.Errorf("case %d has no name", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate case name %q", c.Name)
		}
		seen[c.Name] = true
	}
	return f.Cases, nil
}

// GlobCases loads every fixture file matching pattern. Case names are
// prefixed with the file's base name.
func GlobCases(pattern string) ([]Case, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	var all []Case
	for _, p := range paths {
		cases, err := LoadCases(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		prefix := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		for _, c := range cases {
			c.Name = prefix + "/" + c.Name
			all = append(all, c)
		}
	}
	return all, nil
}

// Diff returns a readable comparison of expected and actual output, or the
// empty string when they match.
func Diff(expected, actual string) string {
	if expected == actual {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("=== Expected ===\n")
	sb.WriteString(expected)
	if !strings.HasSuffix(expected, "\n") {
		sb.WriteString("⏎\n")
	}
	sb.WriteString("=== Actual ===\n")
	sb.WriteString(actual)
	if !strings.HasSuffix(actual, "\n") {
		sb.WriteString("⏎\n")
	}
	sb.WriteString("=== End ===\n")
	return sb.String()
}
