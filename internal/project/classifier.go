package project

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule tags a repository with Type when any keyword occurs in its name or
// description.
type Rule struct {
	Type        RepoType `yaml:"type"`
	Name        []string `yaml:"name"`
	Description []string `yaml:"description"`
}

// DefaultRules are evaluated in order; the first match wins.
var DefaultRules = []Rule{
	{
		Type:        RepoFrontend,
		Name:        []string{"frontend", "client", "ui"},
		Description: []string{"react", "vue", "angular", "frontend", "client"},
	},
	{
		Type:        RepoBackend,
		Name:        []string{"backend", "server", "api"},
		Description: []string{"backend", "server", "api", "express", "flask", "django"},
	},
	{
		Type:        RepoFullstack,
		Name:        []string{"fullstack", "full-stack"},
		Description: []string{"fullstack", "full-stack"},
	},
}

type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// LoadClassifier reads a YAML rule list from path. An empty path yields the
// default rules.
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return NewClassifier(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier rules: %w", err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse classifier rules: %w", err)
	}
	for i, r := range doc.Rules {
		switch r.Type {
		case RepoFrontend, RepoBackend, RepoFullstack:
		default:
			return nil, fmt.Errorf("rule %d: unsupported type %q", i, r.Type)
		}
	}
	return NewClassifier(doc.Rules), nil
}

func (c *Classifier) Classify(name, description string) RepoType {
	name = strings.ToLower(name)
	description = strings.ToLower(description)
	for _, r := range c.rules {
		if containsAny(name, r.Name) || containsAny(description, r.Description) {
			return r.Type
		}
	}
	return RepoUnknown
}

// Tag fills in Type on every repository that does not have one yet.
func (c *Classifier) Tag(repos []RepoRef) []RepoRef {
	out := make([]RepoRef, len(repos))
	for i, r := range repos {
		if r.Type == "" {
			r.Type = c.Classify(r.Name, r.Description)
		}
		out[i] = r
	}
	return out
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
