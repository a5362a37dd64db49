package adapters

import (
	"net/url"

	"github.com/alexschlessinger/jurisearch/llm/streaming"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"
)

// AnthropicAdapter handles Anthropic-specific streaming patterns.
// Anthropic already frames content as indexed block start/delta/stop events;
// the adapter maps them onto stream events and accumulates the final message
// for usage and search results.
type AnthropicAdapter struct {
	message anthropic.Message
}

// NewAnthropicAdapter creates a new Anthropic streaming adapter
func NewAnthropicAdapter() *AnthropicAdapter {
	return &AnthropicAdapter{}
}

// ProcessChunk handles Anthropic streaming events
func (a *AnthropicAdapter) ProcessChunk(chunk any, state streaming.StreamStateInterface) ([]messages.StreamEvent, error) {
	event, ok := chunk.(anthropic.MessageStreamEventUnion)
	if !ok {
		return nil, nil
	}

	if err := a.message.Accumulate(event); err != nil {
		// accumulation only feeds usage and citations; framing still flows
		zap.S().Debugw("anthropic_accumulate_failed", "error", err)
	}

	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		state.SetTokenUsage(int(e.Message.Usage.InputTokens), state.GetOutputTokens())

	case anthropic.ContentBlockStartEvent:
		return a.blockStart(e), nil

	case anthropic.ContentBlockDeltaEvent:
		return a.blockDelta(e), nil

	case anthropic.ContentBlockStopEvent:
		return []messages.StreamEvent{messages.BlockStop(int(e.Index))}, nil

	case anthropic.MessageDeltaEvent:
		state.SetStopReason(mapAnthropicStopReason(e.Delta.StopReason))
		state.SetTokenUsage(state.GetInputTokens(), int(e.Usage.OutputTokens))
		if n := int(e.Usage.ServerToolUse.WebSearchRequests); n > 0 {
			state.SetSearchRequests(n)
		}
	}

	return nil, nil
}

func (a *AnthropicAdapter) blockStart(e anthropic.ContentBlockStartEvent) []messages.StreamEvent {
	block := e.ContentBlock
	blockType := messages.ParseBlockType(string(block.Type))
	index := int(e.Index)

	switch blockType {
	case messages.BlockWebSearchResult:
		// the result arrives whole in the start event; forward it as the
		// block's only fragment so an in-band error can be classified
		return []messages.StreamEvent{
			messages.BlockStart(index, blockType, "", block.ToolUseID),
			messages.JSONDelta(index, block.RawJSON()),
		}
	default:
		return []messages.StreamEvent{messages.BlockStart(index, blockType, block.Name, block.ID)}
	}
}

func (a *AnthropicAdapter) blockDelta(e anthropic.ContentBlockDeltaEvent) []messages.StreamEvent {
	index := int(e.Index)
	switch messages.ParseDeltaType(string(e.Delta.Type)) {
	case messages.DeltaText:
		return []messages.StreamEvent{messages.TextDelta(index, e.Delta.Text)}
	case messages.DeltaInputJSON:
		return []messages.StreamEvent{messages.JSONDelta(index, e.Delta.PartialJSON)}
	default:
		// thinking, signature and citation deltas carry nothing the reducer uses
		return nil
	}
}

// Flush has nothing pending: Anthropic closes every block explicitly
func (a *AnthropicAdapter) Flush(state streaming.StreamStateInterface) []messages.StreamEvent {
	return nil
}

// EnrichFinalMessage adds usage fallbacks and native search citations
func (a *AnthropicAdapter) EnrichFinalMessage(msg *messages.ChatMessage, state streaming.StreamStateInterface) {
	usage := a.message.Usage
	if state.GetSearchRequests() == 0 && usage.ServerToolUse.WebSearchRequests > 0 {
		if msg.Metadata == nil {
			msg.Metadata = make(map[string]any)
		}
		msg.Metadata[messages.MetadataKeySearches] = int(usage.ServerToolUse.WebSearchRequests)
	}
	if msg.GetInputTokens() == 0 && usage.InputTokens > 0 {
		msg.SetTokenUsage(int(usage.InputTokens), msg.GetOutputTokens())
	}

	msg.Citations = append(msg.Citations, searchCitations(a.message.Content, len(msg.Citations))...)
}

// searchCitations lists the sources of every web search result block
func searchCitations(blocks []anthropic.ContentBlockUnion, offset int) []messages.Citation {
	var citations []messages.Citation
	seen := make(map[string]bool)
	for _, block := range blocks {
		if block.Type != "web_search_tool_result" {
			continue
		}
		for _, result := range block.Content.OfWebSearchResultBlockArray {
			if result.URL == "" || seen[result.URL] {
				continue
			}
			seen[result.URL] = true
			citations = append(citations, messages.Citation{
				Index:  offset + len(citations) + 1,
				Title:  result.Title,
				URL:    result.URL,
				Source: hostOf(result.URL),
			})
		}
	}
	return citations
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// mapAnthropicStopReason converts Anthropic's stop reason to our normalized type
func mapAnthropicStopReason(sr anthropic.StopReason) messages.StopReason {
	switch sr {
	case "end_turn":
		return messages.StopReasonEndTurn
	case "tool_use":
		return messages.StopReasonToolUse
	case "max_tokens":
		return messages.StopReasonMaxTokens
	case "pause_turn":
		return messages.StopReasonPauseTurn
	case "refusal":
		return messages.StopReasonContentFilter
	case "stop_sequence":
		return messages.StopReasonEndTurn
	default:
		return messages.StopReasonEndTurn
	}
}
