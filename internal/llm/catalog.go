package llm

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrUnknownModel = errors.New("unknown model")

const (
	ModelHaiku35 = "claude-3-5-haiku-20241022"
	ModelHaiku3  = "claude-3-haiku-20240307"
	ModelSonnet3 = "claude-3-sonnet-20240229"
	ModelOpus3   = "claude-3-opus-20240229"

	DefaultAlias = "kask"
)

// Rates are dollar prices per 1000 tokens.
type Rates struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// Catalog maps command aliases to model identifiers and models to rates.
// It is built once at startup and only read afterwards.
type Catalog struct {
	DefaultAlias string            `yaml:"default_alias"`
	Aliases      map[string]string `yaml:"aliases"`
	Rates        map[string]Rates  `yaml:"rates"`
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		DefaultAlias: DefaultAlias,
		Aliases: map[string]string{
			"kask":        ModelHaiku35,
			"kask-haiku":  ModelHaiku3,
			"kask-sonnet": ModelSonnet3,
			"kask-opus":   ModelOpus3,
		},
		Rates: map[string]Rates{
			ModelHaiku35: {InputPer1K: 0.001, OutputPer1K: 0.005},
			ModelHaiku3:  {InputPer1K: 0.00025, OutputPer1K: 0.00025},
			ModelSonnet3: {InputPer1K: 0.003, OutputPer1K: 0.003},
			ModelOpus3:   {InputPer1K: 0.008, OutputPer1K: 0.008},
		},
	}
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if c.DefaultAlias == "" {
		c.DefaultAlias = DefaultAlias
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every alias points at a priced model.
func (c *Catalog) Validate() error {
	if _, ok := c.Aliases[c.DefaultAlias]; !ok {
		return fmt.Errorf("default alias %q: %w", c.DefaultAlias, ErrUnknownModel)
	}
	for alias, model := range c.Aliases {
		if _, ok := c.Rates[model]; !ok {
			return fmt.Errorf("alias %q has no rates for %q: %w", alias, model, ErrUnknownModel)
		}
	}
	return nil
}

// Resolve returns the model identifier behind alias.
func (c *Catalog) Resolve(alias string) (string, error) {
	model, ok := c.Aliases[alias]
	if !ok {
		return "", fmt.Errorf("alias %q: %w", alias, ErrUnknownModel)
	}
	return model, nil
}

func (c *Catalog) RatesFor(model string) (Rates, error) {
	r, ok := c.Rates[model]
	if !ok {
		return Rates{}, fmt.Errorf("model %q: %w", model, ErrUnknownModel)
	}
	return r, nil
}

// Models lists every priced model, sorted.
func (c *Catalog) Models() []string {
	out := make([]string, 0, len(c.Rates))
	for m := range c.Rates {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
