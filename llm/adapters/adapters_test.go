package adapters

import (
	"encoding/json"
	"testing"

	"github.com/alexschlessinger/jurisearch/llm/streaming"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/anthropics/anthropic-sdk-go"
	ai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

func anthropicEvent(t *testing.T, raw string) anthropic.MessageStreamEventUnion {
	t.Helper()
	var ev anthropic.MessageStreamEventUnion
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	return ev
}

func TestAnthropicAdapterFraming(t *testing.T) {
	adapter := NewAnthropicAdapter()
	state := streaming.NewStreamState()

	raws := []string{
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[],"usage":{"input_tokens":42,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Bonjour"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"server_tool_use","id":"srvtoolu_1","name":"web_search","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"query\":\"bail\"}"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":17,"server_tool_use":{"web_search_requests":1}}}`,
	}

	var events []messages.StreamEvent
	for _, raw := range raws {
		evs, err := adapter.ProcessChunk(anthropicEvent(t, raw), state)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		events = append(events, evs...)
	}

	expectedKinds := []messages.EventKind{
		messages.EventBlockStart, messages.EventDelta, messages.EventBlockStop,
		messages.EventBlockStart, messages.EventDelta, messages.EventBlockStop,
	}
	if len(events) != len(expectedKinds) {
		t.Fatalf("Expected %d events, got %d", len(expectedKinds), len(events))
	}
	for i, k := range expectedKinds {
		if events[i].Kind != k {
			t.Errorf("Event %d: expected %s, got %s", i, k, events[i].Kind)
		}
	}

	if events[3].BlockType != messages.BlockServerToolUse || events[3].ToolName != "web_search" {
		t.Errorf("Expected server web_search start, got %+v", events[3])
	}
	if events[4].PartialJSON != `{"query":"bail"}` {
		t.Errorf("Expected partial json, got %q", events[4].PartialJSON)
	}
	if state.GetInputTokens() != 42 || state.GetOutputTokens() != 17 {
		t.Errorf("Expected usage 42/17, got %d/%d", state.GetInputTokens(), state.GetOutputTokens())
	}
	if state.GetSearchRequests() != 1 {
		t.Errorf("Expected 1 search request, got %d", state.GetSearchRequests())
	}
	if state.StopReason != messages.StopReasonEndTurn {
		t.Errorf("Expected end_turn, got %s", state.StopReason)
	}
}

func TestAnthropicAdapterSearchResultError(t *testing.T) {
	adapter := NewAnthropicAdapter()
	state := streaming.NewStreamState()

	raw := `{"type":"content_block_start","index":2,"content_block":{"type":"web_search_tool_result","tool_use_id":"srvtoolu_1","content":{"type":"web_search_tool_result_error","error_code":"max_uses_exceeded"}}}`
	events, err := adapter.ProcessChunk(anthropicEvent(t, raw), state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected start and payload delta, got %d events", len(events))
	}
	if events[0].BlockType != messages.BlockWebSearchResult {
		t.Errorf("Expected search result block, got %s", events[0].BlockType)
	}

	r := streaming.NewReducer(nil)
	r.Reduce(events[0])
	r.Reduce(events[1])
	out := r.Reduce(messages.BlockStop(2))
	if len(out) != 1 || out[0].Kind != messages.OutputSearchError {
		t.Fatalf("Expected classified search error, got %+v", out)
	}
	if out[0].Message != "Nombre maximum de recherches web dépassé." {
		t.Errorf("Unexpected message %q", out[0].Message)
	}
}

func TestMapAnthropicStopReason(t *testing.T) {
	tests := map[anthropic.StopReason]messages.StopReason{
		"end_turn":      messages.StopReasonEndTurn,
		"tool_use":      messages.StopReasonToolUse,
		"max_tokens":    messages.StopReasonMaxTokens,
		"pause_turn":    messages.StopReasonPauseTurn,
		"refusal":       messages.StopReasonContentFilter,
		"stop_sequence": messages.StopReasonEndTurn,
	}
	for in, expected := range tests {
		if got := mapAnthropicStopReason(in); got != expected {
			t.Errorf("Expected %s for %s, got %s", expected, in, got)
		}
	}
}

func intPtr(i int) *int { return &i }

func TestOpenAIAdapterIndexedToolCalls(t *testing.T) {
	adapter := NewOpenAIAdapter()
	state := streaming.NewStreamState()

	chunks := []*ai.ChatCompletionStreamResponse{
		{Choices: []ai.ChatCompletionStreamChoice{{Delta: ai.ChatCompletionStreamChoiceDelta{Content: "Je vérifie."}}}},
		{Choices: []ai.ChatCompletionStreamChoice{{Delta: ai.ChatCompletionStreamChoiceDelta{ToolCalls: []ai.ToolCall{
			{Index: intPtr(0), ID: "call_a", Function: ai.FunctionCall{Name: "is_date_in_future"}},
		}}}}},
		{Choices: []ai.ChatCompletionStreamChoice{{Delta: ai.ChatCompletionStreamChoiceDelta{ToolCalls: []ai.ToolCall{
			{Index: intPtr(0), Function: ai.FunctionCall{Arguments: `{"date_str":`}},
		}}}}},
		{Choices: []ai.ChatCompletionStreamChoice{{Delta: ai.ChatCompletionStreamChoiceDelta{ToolCalls: []ai.ToolCall{
			{Index: intPtr(0), Function: ai.FunctionCall{Arguments: `"2099-01-01"}`}},
		}}}}},
		{Choices: []ai.ChatCompletionStreamChoice{{FinishReason: ai.FinishReasonToolCalls}}},
		{Usage: &ai.Usage{PromptTokens: 10, CompletionTokens: 5}},
	}

	r := streaming.NewReducer(nil)
	var outputs []messages.Output
	for _, c := range chunks {
		events, err := adapter.ProcessChunk(c, state)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		for _, ev := range events {
			outputs = append(outputs, r.Reduce(ev)...)
		}
	}

	if len(outputs) != 2 {
		t.Fatalf("Expected text and invocation, got %d outputs", len(outputs))
	}
	inv := outputs[1].Invocation
	if inv == nil || inv.Name != "is_date_in_future" || inv.CallID != "call_a" {
		t.Fatalf("Unexpected invocation %+v", inv)
	}
	if inv.Argument.Raw != `{"date_str":"2099-01-01"}` {
		t.Errorf("Expected joined arguments, got %q", inv.Argument.Raw)
	}
	if state.StopReason != messages.StopReasonToolUse {
		t.Errorf("Expected tool_use, got %s", state.StopReason)
	}
	if state.GetInputTokens() != 10 || state.GetOutputTokens() != 5 {
		t.Errorf("Expected usage 10/5, got %d/%d", state.GetInputTokens(), state.GetOutputTokens())
	}
}

func TestOpenAIAdapterFlushClosesOpenCalls(t *testing.T) {
	adapter := NewOpenAIAdapter()
	state := streaming.NewStreamState()

	_, _ = adapter.ProcessChunk(&ai.ChatCompletionStreamResponse{
		Choices: []ai.ChatCompletionStreamChoice{{Delta: ai.ChatCompletionStreamChoiceDelta{ToolCalls: []ai.ToolCall{
			{Index: intPtr(1), ID: "b", Function: ai.FunctionCall{Name: "y", Arguments: "{}"}},
			{Index: intPtr(0), ID: "a", Function: ai.FunctionCall{Name: "x", Arguments: "{}"}},
		}}}},
	}, state)

	events := adapter.Flush(state)
	if len(events) != 2 {
		t.Fatalf("Expected 2 stops, got %d", len(events))
	}
	if events[0].Index != 1 || events[1].Index != 2 {
		t.Errorf("Expected stops in index order, got %d then %d", events[0].Index, events[1].Index)
	}
	if len(adapter.Flush(state)) != 0 {
		t.Error("Expected second flush to be empty")
	}
}

func TestGeminiAdapterFunctionCall(t *testing.T) {
	adapter := NewGeminiAdapter()
	state := streaming.NewStreamState()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Recherche..."},
				{FunctionCall: &genai.FunctionCall{Name: "perplexity_help_search", Args: map[string]any{"query": "bail"}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 7, CandidatesTokenCount: 3},
	}

	events, err := adapter.ProcessChunk(resp, state)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("Expected text plus start/delta/stop, got %d", len(events))
	}
	if events[1].ID != "gemini-0" || events[1].Index != 1 {
		t.Errorf("Expected synthesized id on block 1, got %s on %d", events[1].ID, events[1].Index)
	}
	if events[2].PartialJSON != `{"query":"bail"}` {
		t.Errorf("Expected marshaled args, got %q", events[2].PartialJSON)
	}
	if state.StopReason != messages.StopReasonToolUse {
		t.Errorf("Expected tool_use, got %s", state.StopReason)
	}
	if state.GetInputTokens() != 7 || state.GetOutputTokens() != 3 {
		t.Errorf("Expected usage 7/3, got %d/%d", state.GetInputTokens(), state.GetOutputTokens())
	}
}

func TestGeminiAdapterGroundingCitations(t *testing.T) {
	adapter := NewGeminiAdapter()
	state := streaming.NewStreamState()

	_, _ = adapter.ProcessChunk(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
				{Web: &genai.GroundingChunkWeb{URI: "https://www.legifrance.gouv.fr/a", Title: "Légifrance"}},
				{Web: nil},
			}},
		}},
	}, state)

	if len(state.Citations) != 1 || state.Citations[0].Index != 1 {
		t.Errorf("Expected one numbered citation, got %+v", state.Citations)
	}
}
