package pipeline

import "strings"

// CategoryRule maps a category name to the lowercase keywords that select it.
type CategoryRule struct {
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// DefaultRules returns a fresh copy of the built-in keyword table in match order.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Category: "Groceries", Keywords: []string{"grocery", "supermarket", "walmart", "costco", "kroger", "aldi", "trader joe", "whole foods", "food", "market"}},
		{Category: "Transportation", Keywords: []string{"uber", "lyft", "gas", "fuel", "parking", "transit", "metro", "bus", "taxi", "car wash", "toll"}},
		{Category: "Utilities", Keywords: []string{"electric", "water", "gas bill", "internet", "phone", "utility", "power", "cable", "telecom"}},
		{Category: "Entertainment", Keywords: []string{"netflix", "spotify", "hulu", "movie", "cinema", "game", "concert", "theater", "disney", "hbo"}},
		{Category: "Dining", Keywords: []string{"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "pizza", "doordash", "grubhub", "ubereats", "dining"}},
		{Category: "Shopping", Keywords: []string{"amazon", "target", "best buy", "clothing", "apparel", "shoe", "mall", "store", "shop", "ebay"}},
		{Category: "Healthcare", Keywords: []string{"pharmacy", "doctor", "hospital", "medical", "dental", "clinic", "health", "prescription", "insurance"}},
		{Category: "Housing", Keywords: []string{"rent", "mortgage", "property", "maintenance", "repair", "hoa", "real estate"}},
		{Category: "Salary", Keywords: []string{"salary", "payroll", "wage", "direct deposit", "employer", "paycheck"}},
		{Category: "Investment", Keywords: []string{"dividend", "interest", "investment", "stock", "bond", "mutual fund", "return"}},
	}
}

// Categorizer suggests a category for a description using an ordered keyword
// table. The first rule with a keyword contained in the description wins.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer copies rules so later changes by the caller have no effect.
// Keywords are lowercased; empty keywords are dropped.
func NewCategorizer(rules []CategoryRule) *Categorizer {
	copied := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		if r.Category == "" {
			continue
		}
		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		copied = append(copied, CategoryRule{Category: r.Category, Keywords: keywords})
	}
	return &Categorizer{rules: copied}
}

// Categorize returns the suggested category name and whether any rule matched.
func (c *Categorizer) Categorize(description string) (string, bool) {
	desc := strings.ToLower(description)
	for _, rule := range c.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(desc, keyword) {
				return rule.Category, true
			}
		}
	}
	return "", false
}

// Rules returns a copy of the table in match order.
func (c *Categorizer) Rules() []CategoryRule {
	out := make([]CategoryRule, len(c.rules))
	for i, r := range c.rules {
		out[i] = CategoryRule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
