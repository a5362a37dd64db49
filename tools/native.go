package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/google/jsonschema-go/jsonschema"
)

// DefaultSearchDomains restricts the provider web search to legal sources
var DefaultSearchDomains = []string{
	"www.legifrance.gouv.fr",
	"annuaire-entreprises.data.gouv.fr",
	"service-public.fr",
	"www.conseil-etat.fr",
	"www.conseil-constitutionnel.fr",
}

// DefaultSearchMaxUses caps provider web searches per response
const DefaultSearchMaxUses = 3

// WebSearchTool is executed by the provider; the client only registers it
type WebSearchTool struct {
	AllowedDomains []string
	MaxUses        int
}

// NewWebSearchTool creates the provider web search tool with the legal domain list
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		AllowedDomains: DefaultSearchDomains,
		MaxUses:        DefaultSearchMaxUses,
	}
}

// GetType returns "native" for provider-executed tools
func (t *WebSearchTool) GetType() string {
	return string(KindNative)
}

// PrimaryField returns the argument shown while a search streams in
func (t *WebSearchTool) PrimaryField() string {
	return "query"
}

func (t *WebSearchTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       messages.NativeWebSearchTool,
		Description: "Recherche web exécutée par le fournisseur sur des sources juridiques",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"query": {
				Type:        "string",
				Description: "La requête de recherche",
			},
		},
		Required: []string{"query"},
	}
}

// Execute is never reached for provider-side tools
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return "", nil
}

// DateTool tells whether a date lies after today
type DateTool struct {
	// Now defaults to time.Now
	Now func() time.Time
}

const dateLayout = "2006-01-02"

// GetType returns "local" for in-process tools
func (t *DateTool) GetType() string {
	return string(KindLocal)
}

// PrimaryField returns the argument shown while the call streams in
func (t *DateTool) PrimaryField() string {
	return "date_str"
}

func (t *DateTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "is_date_in_future",
		Description: "Vérifie si une date est dans le futur",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"date_str": {
				Type:        "string",
				Description: "La date au format YYYY-MM-DD",
			},
		},
		Required: []string{"date_str"},
	}
}

func (t *DateTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	raw, ok := args["date_str"].(string)
	if !ok {
		return "", &ValidationError{Field: "date_str", Value: args["date_str"], Reason: "must be a string"}
	}
	raw = strings.TrimSpace(raw)

	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "", &ValidationError{Field: "date_str", Value: raw, Reason: "expected format YYYY-MM-DD", Err: err}
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	today := now()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	if date.After(today) {
		return fmt.Sprintf("La date %s est dans le futur.", raw), nil
	}
	return fmt.Sprintf("La date %s n'est pas dans le futur.", raw), nil
}
