package llm

import (
	"fmt"
	"strings"

	"github.com/alexschlessinger/jurisearch/messages"
)

// SynthesisPrompt asks the primary model to answer again with the help context
const SynthesisPrompt = "Maintenant, réponds à la question initiale en utilisant les informations complémentaires."

// DirectContextPrefix opens the user turn recording a direct search
const DirectContextPrefix = "[CONTEXTE AUTOMATIQUE]"

const (
	helpContextFormat   = "[INFORMATIONS COMPLÉMENTAIRES] Recherche: %s\n\nRésultats trouvés:\n%s\n\nSources: %s\n\n[Utilise ces informations pour enrichir ta réponse initiale]"
	directContextFormat = DirectContextPrefix + " Recherche effectuée: %s\n\nRésultats:\n%s"

	// searchDoneMessage answers the provider's tool call when the result travels as context
	searchDoneMessage = "Recherche effectuée."
)

// Reinject turns a dispatched tool result into the messages that carry it
// back into the conversation.
//
// Every result starts with the tool message answering the call. Help mode
// adds a user turn holding the search context and the synthesis prompt.
// Direct mode records the context and closes the turn with an assistant
// message holding the sub-agent answer verbatim.
func Reinject(result messages.ToolResult, mode messages.ReinjectionMode) []messages.ChatMessage {
	toolMsg := messages.ChatMessage{
		Role:       messages.MessageRoleTool,
		Content:    result.Output,
		ToolCallID: result.CallID,
		ToolName:   result.Name,
		IsError:    result.IsError,
	}

	search := result.Search
	if search == nil || mode == messages.ModeNone {
		return []messages.ChatMessage{toolMsg}
	}

	switch mode {
	case messages.ModeHelp:
		toolMsg.Content = searchDoneMessage
		if search.Failed {
			toolMsg.Content = search.Content
		}
		context := fmt.Sprintf(helpContextFormat, search.Query, search.Content, sourceList(search.Citations))
		return []messages.ChatMessage{
			toolMsg,
			{
				Role:    messages.MessageRoleUser,
				Content: context + "\n\n" + SynthesisPrompt,
			},
		}

	case messages.ModeDirect:
		toolMsg.Content = searchDoneMessage
		if search.Failed {
			toolMsg.Content = search.Content
		}
		return []messages.ChatMessage{
			toolMsg,
			{
				Role:    messages.MessageRoleUser,
				Content: fmt.Sprintf(directContextFormat, search.Query, search.Content),
			},
			{
				Role:       messages.MessageRoleAssistant,
				Content:    search.Content,
				Citations:  search.Citations,
				StopReason: messages.StopReasonEndTurn,
			},
		}
	}

	return []messages.ChatMessage{toolMsg}
}

// sourceList renders citation URLs as a bracketed, quoted list
func sourceList(citations []messages.Citation) string {
	quoted := make([]string, 0, len(citations))
	for _, c := range citations {
		quoted = append(quoted, "'"+c.URL+"'")
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
