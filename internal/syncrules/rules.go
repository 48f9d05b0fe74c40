package syncrules

import (
	"log/slog"
	"strings"
)

// Rule matches when the named field's value contains the given substring,
// case-insensitively. An empty Field matches against every field.
type Rule struct {
	Field    string `yaml:"field"`
	Contains string `yaml:"contains"`
}

func (r Rule) matches(fields map[string]string) bool {
	needle := strings.ToLower(strings.TrimSpace(r.Contains))
	if needle == "" {
		return false
	}
	if r.Field == "" {
		for _, value := range fields {
			if strings.Contains(strings.ToLower(value), needle) {
				return true
			}
		}
		return false
	}
	for name, value := range fields {
		if strings.EqualFold(name, r.Field) {
			return strings.Contains(strings.ToLower(value), needle)
		}
	}
	return false
}

// ShouldSync reports whether an item with the given field snapshot
// participates in sync. Rules are OR-combined; an empty rule set syncs
// everything.
func (c *Config) ShouldSync(fields map[string]string) bool {
	if c == nil || len(c.Rules) == 0 {
		return true
	}
	for _, rule := range c.Rules {
		if rule.matches(fields) {
			return true
		}
	}
	return false
}

// Evaluate applies the fail-open policy: if the field snapshot could not be
// obtained, the item is treated as eligible rather than silently dropped.
// Over-syncing on a transient lookup failure is preferred to losing updates.
func (c *Config) Evaluate(fields map[string]string, lookupErr error) bool {
	if lookupErr != nil {
		slog.Warn("field snapshot lookup failed, treating item as eligible", "err", lookupErr)
		return true
	}
	return c.ShouldSync(fields)
}

// IsUrgent reports whether a field is configured for escalation rendering.
func (c *Config) IsUrgent(fieldName string) bool {
	if c == nil {
		return false
	}
	for _, name := range c.UrgentFields {
		if strings.EqualFold(name, fieldName) {
			return true
		}
	}
	return false
}

// DisplayName translates an internal field name to its configured human
// label, falling back to the raw name.
func (c *Config) DisplayName(fieldName string) string {
	if c == nil {
		return fieldName
	}
	for internal, label := range c.DisplayNames {
		if strings.EqualFold(internal, fieldName) {
			return label
		}
	}
	return fieldName
}

// StatusSymbol maps a status label to its symbol by keyword matching on the
// label text. Unmatched labels get the default symbol.
func (c *Config) StatusSymbol(label string) string {
	if c == nil {
		return defaultStatusSymbol
	}
	lower := strings.ToLower(label)
	for _, rule := range c.StatusSymbols {
		for _, keyword := range rule.Keywords {
			if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
				return rule.Symbol
			}
		}
	}
	if c.DefaultSymbol != "" {
		return c.DefaultSymbol
	}
	return defaultStatusSymbol
}
