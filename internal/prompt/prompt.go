// Package prompt holds the system prompts and templates used for AI triage
// and answer drafting.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Role selects a system prompt.
type Role string

const (
	RoleCustomerSupport    Role = "customer-support"
	RoleCategoryClassifier Role = "category-classifier"
	RoleSentimentAnalyzer  Role = "sentiment-analyzer"
)

const fallbackSystemPrompt = "You are a helpful assistant."

//go:embed catalog.yaml
var defaultCatalog []byte

// Vars are the substitutions applied to a template.
type Vars map[string]string

// Catalog is the set of prompts the service sends to the model.
type Catalog struct {
	System    map[Role]string `yaml:"system"`
	Templates struct {
		Answer    string `yaml:"answer"`
		Classify  string `yaml:"classify"`
		Sentiment string `yaml:"sentiment"`
	} `yaml:"templates"`
	Labels struct {
		KnowledgeBaseHeading string `yaml:"knowledge_base_heading"`
		KnowledgeBaseEntry   string `yaml:"knowledge_base_entry"`
		CategoryList         string `yaml:"category_list"`
		Uncategorized        string `yaml:"uncategorized"`
	} `yaml:"labels"`
}

// Parse decodes a catalog document. Missing entries fall back to the built-in catalog.
func Parse(data []byte) (*Catalog, error) {
	base, err := decode(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("decode built-in catalog: %w", err)
	}
	if len(data) == 0 {
		return base, nil
	}
	override, err := decode(data)
	if err != nil {
		return nil, err
	}
	base.merge(override)
	return base, nil
}

// Load reads a catalog file; an empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return c
}

func decode(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode prompt catalog: %w", err)
	}
	return &c, nil
}

func (c *Catalog) merge(o *Catalog) {
	if c.System == nil {
		c.System = map[Role]string{}
	}
	for role, text := range o.System {
		if strings.TrimSpace(text) != "" {
			c.System[role] = text
		}
	}
	overlay(&c.Templates.Answer, o.Templates.Answer)
	overlay(&c.Templates.Classify, o.Templates.Classify)
	overlay(&c.Templates.Sentiment, o.Templates.Sentiment)
	overlay(&c.Labels.KnowledgeBaseHeading, o.Labels.KnowledgeBaseHeading)
	overlay(&c.Labels.KnowledgeBaseEntry, o.Labels.KnowledgeBaseEntry)
	overlay(&c.Labels.CategoryList, o.Labels.CategoryList)
	overlay(&c.Labels.Uncategorized, o.Labels.Uncategorized)
}

func overlay(dst *string, src string) {
	if strings.TrimSpace(src) != "" {
		*dst = src
	}
}

// SystemPrompt returns the system prompt for role, or a generic assistant prompt.
func (c *Catalog) SystemPrompt(role Role) string {
	if text, ok := c.System[role]; ok && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	return fallbackSystemPrompt
}

// AnswerTemplate is the default user prompt for answer drafting.
func (c *Catalog) AnswerTemplate() string { return c.Templates.Answer }

// Uncategorized labels tickets without a category.
func (c *Catalog) Uncategorized() string { return c.Labels.Uncategorized }

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Build replaces every {name} placeholder that has a value in vars.
// Unknown placeholders are left as they are, and substituted values are
// never expanded again.
func Build(template string, vars Vars) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		if val, ok := vars[match[1:len(match)-1]]; ok {
			return val
		}
		return match
	})
}

// KnowledgeBaseContext renders entries as numbered references under a
// heading, or returns "" when there are none.
func (c *Catalog) KnowledgeBaseContext(entries []domain.KnowledgeBaseEntry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(entries))
	for i, e := range entries {
		head := Build(c.Labels.KnowledgeBaseEntry, Vars{"index": strconv.Itoa(i + 1), "title": e.Title})
		parts = append(parts, head+"\n"+e.Content)
	}
	return c.Labels.KnowledgeBaseHeading + "\n" + strings.Join(parts, "\n\n")
}

// CategoryList renders the instruction listing the selectable category names.
func (c *Catalog) CategoryList(categories []domain.Category) string {
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		names = append(names, cat.Name)
	}
	return Build(c.Labels.CategoryList, Vars{"categories": strings.Join(names, ", ")})
}

// ClassificationPrompt is the user message sent for category classification.
func (c *Catalog) ClassificationPrompt(categories []domain.Category, title, content string) string {
	return strings.TrimSpace(Build(c.Templates.Classify, Vars{
		"category_list": c.CategoryList(categories),
		"title":         title,
		"content":       content,
	}))
}

// SentimentPrompt is the user message sent for sentiment analysis.
func (c *Catalog) SentimentPrompt(content string) string {
	return strings.TrimSpace(Build(c.Templates.Sentiment, Vars{"content": content}))
}
