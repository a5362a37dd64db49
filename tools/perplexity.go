package tools

import (
	"context"

	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/google/jsonschema-go/jsonschema"
)

// Sub-agent search tool names
const (
	DirectSearchTool = "perplexity_direct_search"
	HelpSearchTool   = "perplexity_help_search"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"description=Requête de recherche en langage naturel"`
}

// PerplexitySearchTool exposes the sub-agent search to the primary model.
// Both modes run the same search; only the use of the result differs.
type PerplexitySearchTool struct {
	searcher Searcher
	mode     messages.ReinjectionMode
	domains  []string
	schema   *jsonschema.Schema
}

// NewDirectSearchTool creates the search whose answer is shown as-is
func NewDirectSearchTool(searcher Searcher, domains []string) *PerplexitySearchTool {
	return &PerplexitySearchTool{
		searcher: searcher,
		mode:     messages.ModeDirect,
		domains:  domains,
		schema: ReflectSchema[searchArgs](DirectSearchTool,
			"Recherche directe sur internet pour donner une réponse complète immédiatement à l'utilisateur. "+
				"À utiliser quand la question ne concerne aucun document uploadé."),
	}
}

// NewHelpSearchTool creates the search whose answer is folded into context
func NewHelpSearchTool(searcher Searcher, domains []string) *PerplexitySearchTool {
	return &PerplexitySearchTool{
		searcher: searcher,
		mode:     messages.ModeHelp,
		domains:  domains,
		schema: ReflectSchema[searchArgs](HelpSearchTool,
			"Recherche d'informations complémentaires sur des sources fiables (legifrance, service-public) "+
				"pour t'aider à répondre sur des documents uploadés."),
	}
}

// GetType returns "subagent" for delegated searches
func (t *PerplexitySearchTool) GetType() string {
	return string(KindSubAgent)
}

// PrimaryField returns the argument shown while the call streams in
func (t *PerplexitySearchTool) PrimaryField() string {
	return "query"
}

// Mode returns how the result is reinjected
func (t *PerplexitySearchTool) Mode() messages.ReinjectionMode {
	return t.mode
}

func (t *PerplexitySearchTool) GetSchema() *jsonschema.Schema {
	return t.schema
}

// Search runs the sub-agent search
func (t *PerplexitySearchTool) Search(ctx context.Context, query string) messages.SearchResult {
	return t.searcher.Execute(ctx, query, t.domains)
}

// Execute runs the search and returns its content
func (t *PerplexitySearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", &ValidationError{Field: "query", Reason: "must be a non-empty string"}
	}
	return t.Search(ctx, query).Content, nil
}
