package llm

import (
	"fmt"
	"sort"
	"strings"

	"discord-harvester/models"
)

const (
	defaultMaxTokens   = 512
	defaultTemperature = 0.3
	defaultTopP        = 0.8
)

// Catalog resolves model and prompt names from configuration.
type Catalog struct {
	models  map[string]models.LLMModel
	prompts map[string]models.PromptConfig
}

// NewCatalog indexes the configured model and prompt catalogs. The first
// model with a given name wins, in llm, lrm, vlm order.
func NewCatalog(cfg models.LLMConfig) *Catalog {
	c := &Catalog{
		models:  make(map[string]models.LLMModel),
		prompts: make(map[string]models.PromptConfig, len(cfg.Prompts)),
	}
	for _, m := range cfg.AllModels() {
		if _, ok := c.models[m.Name]; !ok {
			c.models[m.Name] = m
		}
	}
	// viper lowercases map keys, so prompts are matched case-insensitively.
	for key, p := range cfg.Prompts {
		c.prompts[strings.ToLower(key)] = p
	}
	return c
}

// Model returns the catalog entry for name.
func (c *Catalog) Model(name string) (models.LLMModel, error) {
	m, ok := c.models[name]
	if !ok {
		return models.LLMModel{}, fmt.Errorf("model %q not found in llm_models", name)
	}
	return m, nil
}

// Prompt returns the catalog entry for key.
func (c *Catalog) Prompt(key string) (models.PromptConfig, error) {
	p, ok := c.prompts[strings.ToLower(key)]
	if !ok {
		return models.PromptConfig{}, fmt.Errorf("prompt %q not found in prompt_models", key)
	}
	return p, nil
}

// ModelNames lists the configured model names, sorted.
func (c *Catalog) ModelNames() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PromptKeys lists the configured prompt keys, sorted.
func (c *Catalog) PromptKeys() []string {
	keys := make([]string, 0, len(c.prompts))
	for key := range c.prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// settings are the sampling parameters of one call after defaults.
type settings struct {
	MaxTokens   int64
	Temperature float64
	TopP        float64
}

// resolveSettings applies prompt overrides, then model values, then defaults.
func resolveSettings(m models.LLMModel, p models.PromptConfig) settings {
	s := settings{
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
	}
	if m.ContextWindow > 0 {
		s.MaxTokens = int64(m.ContextWindow)
	}
	switch {
	case p.Temperature != nil:
		s.Temperature = *p.Temperature
	case m.Temperature != nil:
		s.Temperature = *m.Temperature
	}
	switch {
	case p.TopP != nil:
		s.TopP = *p.TopP
	case m.TopP != nil:
		s.TopP = *m.TopP
	}
	return s
}

// renderMessages substitutes the joined content for {{messages}} and
// {{question}} in every prompt message.
func renderMessages(p models.PromptConfig, content []string) []models.PromptMessage {
	joined := strings.Join(content, "\n")
	r := strings.NewReplacer("{{messages}}", joined, "{{question}}", joined)
	out := make([]models.PromptMessage, 0, len(p.Messages))
	for _, m := range p.Messages {
		out = append(out, models.PromptMessage{Role: m.Role, Content: r.Replace(m.Content)})
	}
	return out
}
