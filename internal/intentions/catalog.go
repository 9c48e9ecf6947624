package intentions

import (
	"strings"
)

// Category groups intentions for display.
type Category string

const (
	CategoryOptimize  Category = "optimize"
	CategoryTranslate Category = "translate"
	CategorySecure    Category = "secure"
	CategoryModernize Category = "modernize"
	CategoryFix       Category = "fix"
	CategoryEnhance   Category = "enhance"
)

// Intention represents a transformation goal a user can opt into
type Intention struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Category    Category `json:"category" yaml:"category"`
	// StepName is the label used for pipeline steps and audit reasoning.
	StepName string `json:"stepName" yaml:"stepName"`
}

// Group is one category of the catalog together with its display label
type Group struct {
	Category   Category    `json:"category"`
	Label      string      `json:"label"`
	Intentions []Intention `json:"intentions"`
}

var categoryOrder = []Category{
	CategoryOptimize,
	CategoryTranslate,
	CategorySecure,
	CategoryModernize,
	CategoryFix,
	CategoryEnhance,
}

var categoryLabels = map[Category]string{
	CategoryOptimize:  "Performance & Optimization",
	CategoryTranslate: "Language Translation",
	CategorySecure:    "Security Enhancement",
	CategoryModernize: "Modernization",
	CategoryFix:       "Bug Fixes",
	CategoryEnhance:   "Code Enhancement",
}

var defaultIntentions = []Intention{
	{
		ID:          "optimize-performance",
		Name:        "Optimize Performance",
		Description: "Improve algorithmic complexity, memory usage, and execution speed",
		Category:    CategoryOptimize,
		StepName:    "Performance Optimization",
	},
	{
		ID:          "translate-language",
		Name:        "Translate Language",
		Description: "Convert code to a different programming language while preserving logic",
		Category:    CategoryTranslate,
		StepName:    "Language Translation",
	},
	{
		ID:          "enhance-security",
		Name:        "Enhance Security",
		Description: "Add security best practices, input validation, and vulnerability fixes",
		Category:    CategorySecure,
		StepName:    "Security Enhancement",
	},
	{
		ID:          "modernize-syntax",
		Name:        "Modernize Syntax",
		Description: "Update to latest language features and contemporary coding patterns",
		Category:    CategoryModernize,
		StepName:    "Syntax Modernization",
	},
	{
		ID:          "fix-bugs",
		Name:        "Fix Potential Issues",
		Description: "Identify and resolve common bugs, edge cases, and error handling",
		Category:    CategoryFix,
		StepName:    "Bug Detection & Fixes",
	},
	{
		ID:          "improve-readability",
		Name:        "Improve Readability",
		Description: "Enhance code structure, naming, and documentation for clarity",
		Category:    CategoryEnhance,
		StepName:    "Readability Enhancement",
	},
}

// Catalog is the fixed set of intentions known to the harmonizer.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	items []Intention
	byID  map[string]Intention
}

// Default returns the catalog shipped with the harmonizer.
func Default() *Catalog {
	return New(defaultIntentions)
}

// New builds a catalog from the given intentions. Later duplicates of an id are ignored.
func New(items []Intention) *Catalog {
	c := &Catalog{byID: make(map[string]Intention, len(items))}
	for _, it := range items {
		if _, dup := c.byID[it.ID]; dup {
			continue
		}
		if it.StepName == "" {
			it.StepName = it.Name
		}
		c.items = append(c.items, it)
		c.byID[it.ID] = it
	}
	return c
}

// List returns the intentions in display order.
func (c *Catalog) List() []Intention {
	out := make([]Intention, len(c.items))
	copy(out, c.items)
	return out
}

// IDs returns every intention id in display order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.items))
	for i, it := range c.items {
		ids[i] = it.ID
	}
	return ids
}

// Lookup finds an intention by its exact id.
func (c *Catalog) Lookup(id string) (Intention, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// Resolve matches a free-form token against ids, display names and step
// names, ignoring case and surrounding whitespace.
func (c *Catalog) Resolve(token string) (Intention, bool) {
	if it, ok := c.byID[token]; ok {
		return it, true
	}
	t := strings.TrimSpace(token)
	for _, it := range c.items {
		if strings.EqualFold(t, it.ID) || strings.EqualFold(t, it.Name) || strings.EqualFold(t, it.StepName) {
			return it, true
		}
	}
	return Intention{}, false
}

// StepName returns the pipeline label for id, or "Unknown Intention".
func (c *Catalog) StepName(id string) string {
	if it, ok := c.byID[id]; ok {
		return it.StepName
	}
	return "Unknown Intention"
}

// Validate returns the ids in selection that are not part of the catalog.
func (c *Catalog) Validate(selection []string) []string {
	var unknown []string
	for _, id := range selection {
		if _, ok := c.byID[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Grouped returns non-empty category groups in fixed category order.
func (c *Catalog) Grouped() []Group {
	var groups []Group
	for _, cat := range categoryOrder {
		g := Group{Category: cat, Label: CategoryLabel(cat)}
		for _, it := range c.items {
			if it.Category == cat {
				g.Intentions = append(g.Intentions, it)
			}
		}
		if len(g.Intentions) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// CategoryLabel returns the display label of a category.
func CategoryLabel(cat Category) string {
	if label, ok := categoryLabels[cat]; ok {
		return label
	}
	return string(cat)
}
