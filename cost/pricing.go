package cost

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pricing is the rate card for one provider tier
type Pricing struct {
	PerMillionInput     float64  `yaml:"per_million_input"`
	PerMillionOutput    float64  `yaml:"per_million_output"`
	PerThousandSearches float64  `yaml:"per_thousand_searches"`
	Models              []string `yaml:"models,omitempty"` // model id prefixes served by this tier
}

// Cost computes the dollar cost of one call at this rate card
func (p Pricing) Cost(inputTokens, outputTokens, searches int) float64 {
	return float64(inputTokens)*p.PerMillionInput/1_000_000 +
		float64(outputTokens)*p.PerMillionOutput/1_000_000 +
		float64(searches)*p.PerThousandSearches/1_000
}

// Table maps a tier name to its pricing
type Table map[string]Pricing

// Tier names shipped in the default table
const (
	TierClaudeHaiku    = "claude-haiku"
	TierClaudeSonnet   = "claude-sonnet"
	TierClaudeSonnet4  = "claude-sonnet-4"
	TierPerplexity     = "perplexity-sonar"
	TierGeminiFlash    = "gemini-flash"
	TierGrok3          = "grok-3"
	TierGrok3Mini      = "grok-3-mini"
	TierPDF            = "pdf"
	pdfBytesPerMillion = 0.01
)

// DefaultTable returns the built-in rate cards
func DefaultTable() Table {
	return Table{
		TierClaudeHaiku: {
			PerMillionInput: 0.8, PerMillionOutput: 4, PerThousandSearches: 10,
			Models: []string{"claude-3-5-haiku", "claude-haiku"},
		},
		TierClaudeSonnet: {
			PerMillionInput: 3, PerMillionOutput: 15, PerThousandSearches: 10,
			Models: []string{"claude-3-7-sonnet", "claude-sonnet"},
		},
		TierClaudeSonnet4: {
			PerMillionInput: 3, PerMillionOutput: 15, PerThousandSearches: 10,
			Models: []string{"claude-sonnet-4"},
		},
		TierPerplexity: {
			// 8 per thousand is the flat 0.008 request fee
			PerMillionInput: 1, PerMillionOutput: 1, PerThousandSearches: 8,
			Models: []string{"sonar"},
		},
		TierGeminiFlash: {
			PerMillionInput: 0.1, PerMillionOutput: 4,
			Models: []string{"gemini"},
		},
		TierGrok3: {
			PerMillionInput: 3, PerMillionOutput: 15,
			Models: []string{"grok-3"},
		},
		TierGrok3Mini: {
			PerMillionInput: 0.3, PerMillionOutput: 0.5,
			Models: []string{"grok-3-mini"},
		},
		TierPDF: {
			// input is counted in bytes
			PerMillionInput: pdfBytesPerMillion,
		},
	}
}

// Resolve finds the tier for a provider key: an exact tier name first, then
// the longest model prefix across all tiers.
func (t Table) Resolve(provider string) (string, Pricing, bool) {
	if p, ok := t[provider]; ok {
		return provider, p, true
	}

	key := strings.ToLower(provider)
	// "anthropic/claude-..." style ids match on the model part
	if idx := strings.LastIndex(key, "/"); idx != -1 {
		key = key[idx+1:]
	}

	bestTier, bestLen := "", 0
	for _, tier := range t.tierNames() {
		for _, prefix := range t[tier].Models {
			prefix = strings.ToLower(prefix)
			if strings.HasPrefix(key, prefix) && len(prefix) > bestLen {
				bestTier, bestLen = tier, len(prefix)
			}
		}
	}
	if bestTier == "" {
		return "", Pricing{}, false
	}
	return bestTier, t[bestTier], true
}

// Cost prices a call for the given provider key; unknown providers cost zero
func (t Table) Cost(provider string, inputTokens, outputTokens, searches int) (float64, bool) {
	_, p, ok := t.Resolve(provider)
	if !ok {
		return 0, false
	}
	return p.Cost(inputTokens, outputTokens, searches), true
}

// tierNames returns tier names in a stable order
func (t Table) tierNames() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PricingOverride is one tier as written in a pricing file. Rates left out
// keep their default; an explicit 0 sets the rate to zero.
type PricingOverride struct {
	PerMillionInput     *float64 `yaml:"per_million_input"`
	PerMillionOutput    *float64 `yaml:"per_million_output"`
	PerThousandSearches *float64 `yaml:"per_thousand_searches"`
	Models              []string `yaml:"models,omitempty"`
}

// apply returns p with every field set in o replaced
func (o PricingOverride) apply(p Pricing) Pricing {
	if o.PerMillionInput != nil {
		p.PerMillionInput = *o.PerMillionInput
	}
	if o.PerMillionOutput != nil {
		p.PerMillionOutput = *o.PerMillionOutput
	}
	if o.PerThousandSearches != nil {
		p.PerThousandSearches = *o.PerThousandSearches
	}
	if o.Models != nil {
		p.Models = o.Models
	}
	return p
}

// LoadTable reads a YAML pricing file and merges it over the defaults.
// Tiers present in the file override matching default fields; new tiers are added.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file %s: %w", path, err)
	}

	var overrides map[string]PricingOverride
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file %s: %w", path, err)
	}

	return MergeTables(table, overrides), nil
}

// MergeTables applies override tiers on top of base, field by field
func MergeTables(base Table, overrides map[string]PricingOverride) Table {
	out := make(Table, len(base))
	for name, p := range base {
		out[name] = p
	}
	for name, o := range overrides {
		out[name] = o.apply(out[name])
	}
	return out
}
