package streaming

import (
	"context"
	"testing"

	"github.com/alexschlessinger/jurisearch/messages"
)

// passthroughAdapter treats each chunk as a ready-made event slice
type passthroughAdapter struct {
	flush []messages.StreamEvent
}

func (a *passthroughAdapter) ProcessChunk(chunk any, state StreamStateInterface) ([]messages.StreamEvent, error) {
	events, _ := chunk.([]messages.StreamEvent)
	return events, nil
}

func (a *passthroughAdapter) Flush(state StreamStateInterface) []messages.StreamEvent {
	return a.flush
}

func (a *passthroughAdapter) EnrichFinalMessage(msg *messages.ChatMessage, state StreamStateInterface) {
	msg.Metadata["enriched"] = true
}

func collect(ch <-chan messages.Output) []messages.Output {
	var out []messages.Output
	for o := range ch {
		out = append(out, o)
	}
	return out
}

func TestStreamingCoreCompleteMessage(t *testing.T) {
	outputs := make(chan messages.Output, 16)
	core := NewStreamingCore(context.Background(), outputs, &passthroughAdapter{}, nil)

	err := core.ProcessChunk([]messages.StreamEvent{
		messages.TextDelta(0, "Bonjour"),
		messages.BlockStart(1, messages.BlockToolUse, "consult_multiple_juri_text", "call_1"),
		messages.JSONDelta(1, `{"id_list":["JURITEXT000007"]}`),
		messages.BlockStop(1),
		messages.BlockStart(2, messages.BlockServerToolUse, "web_search", "srv_1"),
		messages.JSONDelta(2, `{"query":"q"}`),
		messages.BlockStop(2),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	core.GetState().SetTokenUsage(120, 30)
	core.GetState().SetSearchRequests(1)
	core.Complete()
	close(outputs)

	out := collect(outputs)
	if len(out) != 4 {
		t.Fatalf("Expected 4 outputs, got %d", len(out))
	}
	final := out[3]
	if final.Kind != messages.OutputComplete || final.Final == nil {
		t.Fatalf("Expected final message last, got %+v", final)
	}

	msg := final.Final
	if msg.Content != "Bonjour" {
		t.Errorf("Expected content 'Bonjour', got %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Name != "consult_multiple_juri_text" {
		t.Errorf("Expected only the client tool call, got %+v", msg.ToolCalls)
	}
	if msg.StopReason != messages.StopReasonToolUse {
		t.Errorf("Expected tool_use stop reason, got %s", msg.StopReason)
	}
	if msg.GetInputTokens() != 120 || msg.GetOutputTokens() != 30 {
		t.Errorf("Expected usage 120/30, got %d/%d", msg.GetInputTokens(), msg.GetOutputTokens())
	}
	if msg.Metadata[messages.MetadataKeySearches] != 1 {
		t.Errorf("Expected 1 web search, got %v", msg.Metadata[messages.MetadataKeySearches])
	}
	if msg.Metadata["enriched"] != true {
		t.Error("Expected adapter enrichment")
	}
}

func TestStreamingCoreFlushClosesBlocks(t *testing.T) {
	outputs := make(chan messages.Output, 16)
	adapter := &passthroughAdapter{flush: []messages.StreamEvent{messages.BlockStop(1)}}
	core := NewStreamingCore(context.Background(), outputs, adapter, nil)

	_ = core.ProcessChunk([]messages.StreamEvent{
		messages.BlockStart(1, messages.BlockToolUse, "is_date_in_future", "c"),
		messages.JSONDelta(1, `{"date_str":"2000-01-01"}`),
	})
	core.Complete()
	close(outputs)

	out := collect(outputs)
	if len(out) != 2 || out[0].Kind != messages.OutputToolInvocation {
		t.Fatalf("Expected flushed invocation then completion, got %+v", out)
	}
}

func TestStreamingCoreStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	outputs := make(chan messages.Output, 16)
	core := NewStreamingCore(ctx, outputs, &passthroughAdapter{}, nil)

	if err := core.ProcessEvent(messages.TextDelta(0, "avant")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cancel()

	if err := core.ProcessEvent(messages.TextDelta(0, "après")); err == nil {
		t.Error("Expected cancellation error")
	}
	core.Complete()
	close(outputs)

	out := collect(outputs)
	if len(out) != 1 || out[0].Text != "avant" {
		t.Errorf("Expected only the pre-cancel chunk, got %+v", out)
	}
}

func TestStreamingCoreEmitError(t *testing.T) {
	outputs := make(chan messages.Output, 1)
	core := NewStreamingCore(context.Background(), outputs, &passthroughAdapter{}, nil)
	core.EmitError(context.DeadlineExceeded)
	close(outputs)

	out := collect(outputs)
	if len(out) != 1 || out[0].Kind != messages.OutputError || out[0].Err == nil {
		t.Errorf("Expected one error output, got %+v", out)
	}
}
