package adapters

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/alexschlessinger/jurisearch/llm/streaming"
	"github.com/alexschlessinger/jurisearch/messages"
	"google.golang.org/genai"
)

// Metadata keys
const (
	MetadataKeyGeminiSignatures = "gemini_thought_signatures"
)

// GeminiAdapter handles Gemini-specific streaming patterns.
// Gemini delivers each function call whole, so every call becomes a
// start/delta/stop triple on its own block index.
type GeminiAdapter struct {
	nextIndex  int
	calls      int
	signatures map[string]string // Tool call ID -> base64 encoded signature
}

// NewGeminiAdapter creates a new Gemini streaming adapter
func NewGeminiAdapter() *GeminiAdapter {
	return &GeminiAdapter{
		nextIndex:  textBlockIndex + 1,
		signatures: make(map[string]string),
	}
}

// ProcessChunk handles Gemini streaming chunks
func (a *GeminiAdapter) ProcessChunk(chunk any, state streaming.StreamStateInterface) ([]messages.StreamEvent, error) {
	resp, ok := chunk.(*genai.GenerateContentResponse)
	if !ok {
		return nil, nil
	}

	// Capture token usage (available on each chunk, use latest values)
	if resp.UsageMetadata != nil {
		state.SetTokenUsage(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
	}

	if len(resp.Candidates) == 0 {
		return nil, nil
	}

	var events []messages.StreamEvent
	candidate := resp.Candidates[0]

	if candidate.FinishReason != "" {
		state.SetStopReason(mapGeminiFinishReason(candidate.FinishReason))
	}

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				events = append(events, messages.TextDelta(textBlockIndex, part.Text))
			}
			if part.FunctionCall != nil {
				events = append(events, a.handleFunctionCall(part)...)
			}
		}
	}

	if candidate.GroundingMetadata != nil {
		state.AddCitations(groundingCitations(candidate.GroundingMetadata)...)
	}

	// Gemini reports STOP for tool calls; normalize so the agent answers them
	if a.calls > 0 {
		state.SetStopReason(messages.StopReasonToolUse)
	}

	return events, nil
}

// handleFunctionCall converts a complete Gemini function call into block events
func (a *GeminiAdapter) handleFunctionCall(part *genai.Part) []messages.StreamEvent {
	argsJSON, err := json.Marshal(part.FunctionCall.Args)
	if err != nil || part.FunctionCall.Args == nil {
		argsJSON = []byte("{}")
	}

	// Gemini does not always provide an ID; synthesize one
	toolCallID := part.FunctionCall.ID
	if toolCallID == "" {
		toolCallID = fmt.Sprintf("gemini-%d", a.calls)
	}
	a.calls++

	if len(part.ThoughtSignature) > 0 {
		a.signatures[toolCallID] = base64.StdEncoding.EncodeToString(part.ThoughtSignature)
	}

	index := a.nextIndex
	a.nextIndex++
	return []messages.StreamEvent{
		messages.BlockStart(index, messages.BlockToolUse, part.FunctionCall.Name, toolCallID),
		messages.JSONDelta(index, string(argsJSON)),
		messages.BlockStop(index),
	}
}

// groundingCitations lists the web sources Gemini grounded its answer on
func groundingCitations(gm *genai.GroundingMetadata) []messages.Citation {
	var citations []messages.Citation
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		citations = append(citations, messages.Citation{
			Title:  chunk.Web.Title,
			URL:    chunk.Web.URI,
			Source: chunk.Web.Domain,
		})
	}
	return citations
}

// Flush has nothing pending: function calls are closed as they arrive
func (a *GeminiAdapter) Flush(state streaming.StreamStateInterface) []messages.StreamEvent {
	return nil
}

// EnrichFinalMessage adds Gemini-specific metadata to the final message
func (a *GeminiAdapter) EnrichFinalMessage(msg *messages.ChatMessage, state streaming.StreamStateInterface) {
	if len(a.signatures) > 0 {
		if msg.Metadata == nil {
			msg.Metadata = make(map[string]any)
		}
		msg.Metadata[MetadataKeyGeminiSignatures] = a.signatures
	}
}

// mapGeminiFinishReason converts Gemini's finish reason to our normalized type
func mapGeminiFinishReason(fr genai.FinishReason) messages.StopReason {
	switch fr {
	case genai.FinishReasonStop:
		return messages.StopReasonEndTurn
	case genai.FinishReasonMaxTokens:
		return messages.StopReasonMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII, genai.FinishReasonImageSafety,
		genai.FinishReasonImageProhibitedContent:
		return messages.StopReasonContentFilter
	case genai.FinishReasonMalformedFunctionCall:
		return messages.StopReasonError
	default:
		return messages.StopReasonEndTurn
	}
}
