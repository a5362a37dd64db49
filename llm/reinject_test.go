package llm

import (
	"strings"
	"testing"

	"github.com/alexschlessinger/jurisearch/messages"
)

func searchResult(failed bool) messages.ToolResult {
	content := "Le délai est de 5 ans."
	if failed {
		content = "Erreur lors de la recherche: status 500: boom"
	}
	return messages.ToolResult{
		CallID:  "call_1",
		Name:    "perplexity_help_search",
		Output:  content,
		IsError: failed,
		Search: &messages.SearchResult{
			Query:   "prescription",
			Content: content,
			Citations: []messages.Citation{
				{Index: 1, Title: "Source 1", URL: "https://www.legifrance.gouv.fr/a"},
				{Index: 2, Title: "Source 2", URL: "https://www.service-public.fr/b"},
			},
			Failed: failed,
		},
	}
}

func TestReinjectLocalResult(t *testing.T) {
	msgs := Reinject(messages.ToolResult{CallID: "c", Name: "is_date_in_future", Output: "La date 2999-01-01 est dans le futur."}, messages.ModeNone)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != messages.MessageRoleTool || msgs[0].ToolCallID != "c" || msgs[0].ToolName != "is_date_in_future" {
		t.Errorf("Expected a tool message answering the call, got %+v", msgs[0])
	}
}

func TestReinjectHelp(t *testing.T) {
	msgs := Reinject(searchResult(false), messages.ModeHelp)
	if len(msgs) != 2 {
		t.Fatalf("Expected tool answer and context turn, got %d", len(msgs))
	}
	if msgs[0].Content != searchDoneMessage || msgs[0].IsError {
		t.Errorf("Expected a short tool acknowledgement, got %+v", msgs[0])
	}

	expected := "[INFORMATIONS COMPLÉMENTAIRES] Recherche: prescription\n\nRésultats trouvés:\nLe délai est de 5 ans.\n\n" +
		"Sources: ['https://www.legifrance.gouv.fr/a', 'https://www.service-public.fr/b']\n\n" +
		"[Utilise ces informations pour enrichir ta réponse initiale]\n\n" + SynthesisPrompt
	if msgs[1].Content != expected {
		t.Errorf("Expected help context:\n%s\ngot:\n%s", expected, msgs[1].Content)
	}
	if msgs[1].Role != messages.MessageRoleUser {
		t.Errorf("Expected user role, got %s", msgs[1].Role)
	}
}

func TestReinjectHelpFailure(t *testing.T) {
	msgs := Reinject(searchResult(true), messages.ModeHelp)
	if !msgs[0].IsError || !strings.HasPrefix(msgs[0].Content, "Erreur lors de la recherche") {
		t.Errorf("Expected the failure on the tool answer, got %+v", msgs[0])
	}
	if !strings.Contains(msgs[1].Content, "Erreur lors de la recherche") {
		t.Errorf("Expected the failure in the context, got %s", msgs[1].Content)
	}
}

func TestReinjectDirect(t *testing.T) {
	msgs := Reinject(searchResult(false), messages.ModeDirect)
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Content != "[CONTEXTE AUTOMATIQUE] Recherche effectuée: prescription\n\nRésultats:\nLe délai est de 5 ans." {
		t.Errorf("Unexpected direct context: %s", msgs[1].Content)
	}
	final := msgs[2]
	if final.Role != messages.MessageRoleAssistant || final.Content != "Le délai est de 5 ans." {
		t.Errorf("Expected verbatim assistant answer, got %+v", final)
	}
	if len(final.Citations) != 2 {
		t.Errorf("Expected citations on the answer, got %d", len(final.Citations))
	}
}

func TestSourceListEmpty(t *testing.T) {
	if got := sourceList(nil); got != "[]" {
		t.Errorf("Expected [], got %s", got)
	}
}
