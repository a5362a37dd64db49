package adapters

import (
	"fmt"
	"sort"

	"github.com/alexschlessinger/jurisearch/llm/streaming"
	"github.com/alexschlessinger/jurisearch/messages"
	ai "github.com/sashabaranov/go-openai"
)

// textBlockIndex carries all text deltas; tool call i uses block i+1
const textBlockIndex = 0

// OpenAIAdapter handles OpenAI-compatible streaming patterns (Grok).
// Tool calls arrive as index-based deltas: the first delta for an index opens
// a block and every arguments fragment becomes a JSON delta.
type OpenAIAdapter struct {
	open map[int]bool
}

// NewOpenAIAdapter creates a new OpenAI streaming adapter
func NewOpenAIAdapter() *OpenAIAdapter {
	return &OpenAIAdapter{open: make(map[int]bool)}
}

// ProcessChunk handles OpenAI streaming chunks
func (a *OpenAIAdapter) ProcessChunk(chunk any, state streaming.StreamStateInterface) ([]messages.StreamEvent, error) {
	response, ok := chunk.(*ai.ChatCompletionStreamResponse)
	if !ok {
		return nil, nil
	}

	// Capture usage from final chunk (sent when StreamOptions.IncludeUsage is true)
	if response.Usage != nil {
		state.SetTokenUsage(response.Usage.PromptTokens, response.Usage.CompletionTokens)
	}

	if len(response.Choices) == 0 {
		return nil, nil
	}

	var events []messages.StreamEvent
	choice := response.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		events = append(events, messages.TextDelta(textBlockIndex, delta.Content))
	}

	for _, tc := range delta.ToolCalls {
		if tc.Index == nil {
			continue
		}
		events = append(events, a.handleIndexedToolCall(*tc.Index, tc)...)
	}

	if choice.FinishReason != "" {
		state.SetStopReason(mapOpenAIFinishReason(choice.FinishReason))
		events = append(events, a.closeAll()...)
	}

	return events, nil
}

// handleIndexedToolCall opens the block on first sight and forwards arguments
func (a *OpenAIAdapter) handleIndexedToolCall(index int, tc ai.ToolCall) []messages.StreamEvent {
	block := index + 1
	var events []messages.StreamEvent

	if !a.open[block] {
		a.open[block] = true
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", index)
		}
		events = append(events, messages.BlockStart(block, messages.BlockToolUse, tc.Function.Name, id))
	}

	if tc.Function.Arguments != "" {
		events = append(events, messages.JSONDelta(block, tc.Function.Arguments))
	}
	return events
}

// closeAll stops every open tool block in index order
func (a *OpenAIAdapter) closeAll() []messages.StreamEvent {
	indices := make([]int, 0, len(a.open))
	for idx := range a.open {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	events := make([]messages.StreamEvent, 0, len(indices))
	for _, idx := range indices {
		events = append(events, messages.BlockStop(idx))
		delete(a.open, idx)
	}
	return events
}

// Flush closes tool blocks left open by a stream that ended without a finish reason
func (a *OpenAIAdapter) Flush(state streaming.StreamStateInterface) []messages.StreamEvent {
	return a.closeAll()
}

// EnrichFinalMessage adds any OpenAI-specific metadata to the final message
func (a *OpenAIAdapter) EnrichFinalMessage(msg *messages.ChatMessage, state streaming.StreamStateInterface) {
	// Token usage is already set by StreamingCore
}

// mapOpenAIFinishReason converts OpenAI's finish reason to our normalized type
func mapOpenAIFinishReason(fr ai.FinishReason) messages.StopReason {
	switch fr {
	case ai.FinishReasonStop:
		return messages.StopReasonEndTurn
	case ai.FinishReasonToolCalls, ai.FinishReasonFunctionCall:
		return messages.StopReasonToolUse
	case ai.FinishReasonLength:
		return messages.StopReasonMaxTokens
	case ai.FinishReasonContentFilter:
		return messages.StopReasonContentFilter
	default:
		return messages.StopReasonEndTurn
	}
}
