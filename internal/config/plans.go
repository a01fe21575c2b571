package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed plans.yaml
var defaultCatalogue []byte

// Plan is a subscription tier and the credits granted when an account is created on it.
type Plan struct {
	Name    string `yaml:"name" json:"name"`
	Title   string `yaml:"title" json:"title"`
	Credits int    `yaml:"credits" json:"credits"`
}

// Feature is a charged studio tool.
type Feature struct {
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title" json:"title"`
	Cost  int    `yaml:"cost" json:"cost"`
}

// Catalogue lists plans and per-feature costs.
type Catalogue struct {
	DefaultPlan string    `yaml:"default_plan"`
	TestPlan    string    `yaml:"test_plan"`
	Plans       []Plan    `yaml:"plans"`
	Features    []Feature `yaml:"features"`
}

// LoadCatalogue parses the catalogue at path, or the embedded one when path is empty.
func LoadCatalogue(path string) (Catalogue, error) {
	data := defaultCatalogue
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Catalogue{}, fmt.Errorf("read plans file %s: %w", path, err)
		}
		data = raw
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes and validates a YAML catalogue.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalogue{}, fmt.Errorf("decode plans: %w", err)
	}
	if len(c.Plans) == 0 {
		return Catalogue{}, fmt.Errorf("plans catalogue is empty")
	}
	seen := make(map[string]struct{}, len(c.Plans))
	for _, p := range c.Plans {
		if p.Name == "" {
			return Catalogue{}, fmt.Errorf("plan without name")
		}
		if p.Credits < 0 {
			return Catalogue{}, fmt.Errorf("plan %s: negative credits", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if c.DefaultPlan == "" {
		c.DefaultPlan = c.Plans[0].Name
	}
	if _, ok := seen[c.DefaultPlan]; !ok {
		return Catalogue{}, fmt.Errorf("default plan %s not defined", c.DefaultPlan)
	}
	if c.TestPlan != "" {
		if _, ok := seen[c.TestPlan]; !ok {
			return Catalogue{}, fmt.Errorf("test plan %s not defined", c.TestPlan)
		}
	}
	for _, f := range c.Features {
		if f.Cost <= 0 {
			return Catalogue{}, fmt.Errorf("feature %s: cost must be positive", f.Name)
		}
	}
	return c, nil
}

// Plan looks up a plan by name.
func (c Catalogue) Plan(name string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// Feature looks up a charged feature by name.
func (c Catalogue) Feature(name string) (Feature, bool) {
	for _, f := range c.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}
