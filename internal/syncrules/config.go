package syncrules

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultStatusSymbol = "📌"

// SymbolRule maps status-label keywords to a rendering symbol.
type SymbolRule struct {
	Keywords []string `yaml:"keywords"`
	Symbol   string   `yaml:"symbol"`
}

// Config is the externally editable behavior table: which items sync, which
// fields escalate, how internal field names render, and how status labels map
// to symbols.
type Config struct {
	Rules         []Rule            `yaml:"rules"`
	UrgentFields  []string          `yaml:"urgent_fields"`
	DisplayNames  map[string]string `yaml:"display_names"`
	StatusSymbols []SymbolRule      `yaml:"status_symbols"`
	DefaultSymbol string            `yaml:"default_symbol"`
}

// DefaultConfig is the out-of-the-box behavior table. The trade rules are
// configuration, not business logic; operators replace them per board.
func DefaultConfig() *Config {
	return &Config{
		Rules: []Rule{
			{Field: "Trade", Contains: "mason"},
			{Field: "Trade", Contains: "carp"},
		},
		UrgentFields: []string{"Deadline", "Budget"},
		DisplayNames: map[string]string{},
		StatusSymbols: []SymbolRule{
			{Keywords: []string{"complete", "done"}, Symbol: "✅"},
			{Keywords: []string{"progress", "working"}, Symbol: "🔄"},
			{Keywords: []string{"stuck", "blocked"}, Symbol: "🚫"},
			{Keywords: []string{"review"}, Symbol: "👀"},
			{Keywords: []string{"plan"}, Symbol: "📋"},
		},
		DefaultSymbol: defaultStatusSymbol,
	}
}

// LoadConfig reads the YAML rule file. A missing file yields the defaults; a
// present but unreadable file is an error so a typo cannot silently reset
// behavior.
func LoadConfig(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.DefaultSymbol == "" {
		cfg.DefaultSymbol = defaultStatusSymbol
	}
	return cfg, nil
}
