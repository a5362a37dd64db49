package sessions

import (
	"github.com/alexschlessinger/jurisearch/messages"
)

// TrimHistory keeps the system prompt and the most recent maxHistory
// messages. Tool responses left at the head of the window lost the call
// they answer and are dropped too.
func TrimHistory(history []messages.ChatMessage, maxHistory int) []messages.ChatMessage {
	if maxHistory <= 0 {
		return history // No limit
	}

	var head []messages.ChatMessage
	body := history
	if len(history) > 0 && history[0].Role == messages.MessageRoleSystem {
		head = history[:1]
		body = history[1:]
	}

	if len(body) <= maxHistory {
		return history
	}
	body = body[len(body)-maxHistory:]

	// tool responses must follow the assistant message that called them
	for len(body) > 0 && body[0].Role == messages.MessageRoleTool {
		body = body[1:]
	}

	trimmed := make([]messages.ChatMessage, 0, len(head)+len(body))
	trimmed = append(trimmed, head...)
	return append(trimmed, body...)
}

// InitializeWithSystemPrompt returns a history holding only the system prompt, if any
func InitializeWithSystemPrompt(systemPrompt string) []messages.ChatMessage {
	history := []messages.ChatMessage{}
	if systemPrompt != "" {
		history = append(history, messages.ChatMessage{
			Role:    messages.MessageRoleSystem,
			Content: systemPrompt,
		})
	}
	return history
}

// CopyHistory returns a copy of the history slice
func CopyHistory(history []messages.ChatMessage) []messages.ChatMessage {
	result := make([]messages.ChatMessage, len(history))
	copy(result, history)
	return result
}
