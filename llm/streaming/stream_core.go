package streaming

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexschlessinger/jurisearch/messages"
	"go.uber.org/zap"
)

// StreamingCore provides common streaming functionality for all providers.
// Provider chunks go through the adapter into stream events, the reducer turns
// those into ordered outputs, and the core emits them on the output channel.
type StreamingCore struct {
	state   *StreamState
	adapter ProviderAdapter
	reducer *Reducer
	outputs chan<- messages.Output
	ctx     context.Context
}

// ProviderAdapter allows provider-specific handling while using common state.
// Each provider implements this to translate its chunks into stream events.
// The adapter implementations are in the llm/adapters package.
type ProviderAdapter interface {
	// ProcessChunk translates one provider chunk. Usage, stop reason and
	// citations go into state; content framing is returned as events.
	ProcessChunk(chunk any, state StreamStateInterface) ([]messages.StreamEvent, error)

	// Flush returns events still pending when the provider stream ends,
	// such as stops for blocks the provider never closed explicitly
	Flush(state StreamStateInterface) []messages.StreamEvent

	// EnrichFinalMessage allows provider to add custom metadata before sending final message
	EnrichFinalMessage(msg *messages.ChatMessage, state StreamStateInterface)
}

// NewStreamingCore creates a new streaming coordinator. fieldFor names the
// argument field shown while a tool's arguments stream in.
func NewStreamingCore(
	ctx context.Context,
	outputs chan<- messages.Output,
	adapter ProviderAdapter,
	fieldFor func(toolName string) string,
) *StreamingCore {
	return &StreamingCore{
		state:   NewStreamState(),
		adapter: adapter,
		reducer: NewReducer(fieldFor),
		outputs: outputs,
		ctx:     ctx,
	}
}

// GetState returns the current streaming state (for provider access)
func (sc *StreamingCore) GetState() *StreamState {
	return sc.state
}

// ProcessChunk runs a provider chunk through the adapter and reducer
func (sc *StreamingCore) ProcessChunk(chunk any) error {
	if sc.adapter == nil {
		return fmt.Errorf("no adapter configured")
	}
	events, err := sc.adapter.ProcessChunk(chunk, sc.state)
	if err != nil {
		return err
	}
	return sc.processEvents(events)
}

// ProcessEvent reduces a single event and emits its outputs
func (sc *StreamingCore) ProcessEvent(ev messages.StreamEvent) error {
	return sc.processEvents([]messages.StreamEvent{ev})
}

func (sc *StreamingCore) processEvents(events []messages.StreamEvent) error {
	for _, ev := range events {
		for _, out := range sc.reducer.Reduce(ev) {
			if !sc.emit(out) {
				return sc.ctx.Err()
			}
		}
	}
	return nil
}

// emit delivers one output unless the consumer has cancelled. Cancellation
// is checked before every output so nothing new is handed over afterwards.
func (sc *StreamingCore) emit(out messages.Output) bool {
	if sc.ctx.Err() != nil {
		return false
	}

	select {
	case <-sc.ctx.Done():
		return false
	case sc.outputs <- out:
	}

	switch out.Kind {
	case messages.OutputText:
		sc.state.AppendContent(out.Text)
	case messages.OutputToolInvocation:
		// provider-executed searches are not answered by the client
		if inv := out.Invocation; inv != nil && !inv.IsSearchQuery {
			args := strings.TrimSpace(inv.Argument.Raw)
			if args == "" {
				args = "{}"
			}
			sc.state.AddToolCall(messages.ChatMessageToolCall{
				ID:        inv.CallID,
				Name:      inv.Name,
				Arguments: args,
			})
		}
	}
	return true
}

// EmitError sends a fatal error through the channel
func (sc *StreamingCore) EmitError(err error) {
	select {
	case <-sc.ctx.Done():
		return
	case sc.outputs <- messages.Output{Kind: messages.OutputError, Err: err}:
		zap.S().Debugw("streaming_error", "error", err)
	}
}

// Complete flushes the adapter and sends the final accumulated message
func (sc *StreamingCore) Complete() {
	if sc.adapter != nil {
		if err := sc.processEvents(sc.adapter.Flush(sc.state)); err != nil {
			return
		}
	}
	if n := sc.reducer.OpenBuffers(); n > 0 {
		zap.S().Warnw("stream_protocol_violation", "violation", "unclosed_tool_blocks", "count", n)
	}

	state := sc.state.Clone()
	msg := messages.ChatMessage{
		Role:       messages.MessageRoleAssistant,
		Content:    state.ResponseContent,
		ToolCalls:  state.ToolCalls,
		Citations:  state.Citations,
		StopReason: state.StopReason,
	}
	if len(msg.ToolCalls) > 0 && msg.StopReason == "" {
		msg.StopReason = messages.StopReasonToolUse
	}
	if msg.StopReason == "" {
		msg.StopReason = messages.StopReasonEndTurn
	}

	msg.SetTokenUsage(state.InputTokens, state.OutputTokens)
	msg.Metadata[messages.MetadataKeySearches] = state.SearchRequests

	if sc.adapter != nil {
		sc.adapter.EnrichFinalMessage(&msg, sc.state)
	}

	if sc.ctx.Err() != nil {
		return
	}
	select {
	case <-sc.ctx.Done():
		return
	case sc.outputs <- messages.Output{Kind: messages.OutputComplete, Final: &msg}:
		sc.logCompletionDetails(state)
	}
}

// logCompletionDetails logs streaming completion information for debugging
func (sc *StreamingCore) logCompletionDetails(state *StreamState) {
	contentPreview := state.ResponseContent
	if len(contentPreview) > 200 {
		contentPreview = contentPreview[:200] + "..."
	}

	fields := []any{
		"content_preview", contentPreview,
		"content_length", len(state.ResponseContent),
		"stop_reason", state.StopReason,
	}

	if len(state.ToolCalls) > 0 {
		toolInfo := make([]string, len(state.ToolCalls))
		for i, tc := range state.ToolCalls {
			toolInfo[i] = tc.Name
		}
		fields = append(fields,
			"tool_call_count", len(state.ToolCalls),
			"tool_names", toolInfo,
		)
	}

	if state.SearchRequests > 0 {
		fields = append(fields, "web_search_requests", state.SearchRequests)
	}

	if state.InputTokens > 0 || state.OutputTokens > 0 {
		fields = append(fields,
			"input_tokens", state.InputTokens,
			"output_tokens", state.OutputTokens,
		)
	}

	zap.S().Debugw("streaming_completed", fields...)
}
