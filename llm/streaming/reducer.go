package streaming

import (
	"strings"

	"github.com/alexschlessinger/jurisearch/llm/toolargs"
	"github.com/alexschlessinger/jurisearch/messages"
	"go.uber.org/zap"
)

// DefaultArgumentField is the field extracted from search tool arguments
const DefaultArgumentField = "query"

// ToolCallBuffer accumulates the argument fragments of one open tool block
type ToolCallBuffer struct {
	ToolName      string
	ID            string
	Fragments     []string
	IsSearchQuery bool

	// resultOnly buffers hold a provider search result and are only classified
	resultOnly bool
}

// Joined returns the fragments received so far as one string
func (b *ToolCallBuffer) Joined() string {
	return strings.Join(b.Fragments, "")
}

// Reducer turns an ordered sequence of stream events for one model response
// into transcript text and completed tool invocations. It is not safe for
// concurrent use; one reducer serves one response.
type Reducer struct {
	openBuffers map[int]*ToolCallBuffer
	openBlocks  map[int]messages.BlockType
	text        strings.Builder
	lastStart   int
	started     bool
	fieldFor    func(toolName string) string
}

// NewReducer creates a reducer. fieldFor names the argument field to extract
// for a tool; nil or an empty answer falls back to DefaultArgumentField.
func NewReducer(fieldFor func(toolName string) string) *Reducer {
	return &Reducer{
		openBuffers: make(map[int]*ToolCallBuffer),
		openBlocks:  make(map[int]messages.BlockType),
		fieldFor:    fieldFor,
	}
}

// Reduce consumes one event and returns the outputs it completes, in order.
// Malformed framing is logged and skipped.
func (r *Reducer) Reduce(ev messages.StreamEvent) []messages.Output {
	switch ev.Kind {
	case messages.EventBlockStart:
		r.blockStart(ev)
		return nil
	case messages.EventDelta:
		return r.delta(ev)
	case messages.EventBlockStop:
		return r.blockStop(ev)
	default:
		zap.S().Debugw("stream_event_ignored", "kind", ev.Kind.String(), "index", ev.Index)
		return nil
	}
}

// Text returns all text deltas received so far, in arrival order
func (r *Reducer) Text() string {
	return r.text.String()
}

// OpenBuffers returns the number of tool blocks still waiting for a stop
func (r *Reducer) OpenBuffers() int {
	return len(r.openBuffers)
}

func (r *Reducer) blockStart(ev messages.StreamEvent) {
	if _, open := r.openBuffers[ev.Index]; open {
		violation("duplicate_block_start", ev)
		return
	}
	if _, open := r.openBlocks[ev.Index]; open {
		violation("duplicate_block_start", ev)
		return
	}
	if r.started && ev.Index <= r.lastStart {
		violation("non_monotonic_block_index", ev)
		return
	}
	r.started = true
	r.lastStart = ev.Index

	switch {
	case ev.BlockType == messages.BlockToolUse:
		r.openBuffers[ev.Index] = &ToolCallBuffer{ToolName: ev.ToolName, ID: ev.ID}
	case ev.BlockType == messages.BlockServerToolUse && ev.ToolName == messages.NativeWebSearchTool:
		r.openBuffers[ev.Index] = &ToolCallBuffer{ToolName: ev.ToolName, ID: ev.ID, IsSearchQuery: true}
	case ev.BlockType == messages.BlockWebSearchResult:
		r.openBuffers[ev.Index] = &ToolCallBuffer{ToolName: ev.ToolName, ID: ev.ID, IsSearchQuery: true, resultOnly: true}
	default:
		r.openBlocks[ev.Index] = ev.BlockType
	}

	zap.S().Debugw("stream_block_started",
		"index", ev.Index,
		"block_type", ev.BlockType.String(),
		"tool_name", ev.ToolName,
	)
}

func (r *Reducer) delta(ev messages.StreamEvent) []messages.Output {
	buf, hasBuffer := r.openBuffers[ev.Index]

	switch ev.DeltaType {
	case messages.DeltaInputJSON:
		if !hasBuffer {
			violation("json_delta_without_buffer", ev)
			return nil
		}
		buf.Fragments = append(buf.Fragments, ev.PartialJSON)
		return nil

	case messages.DeltaText:
		if hasBuffer {
			violation("text_delta_in_tool_block", ev)
			return nil
		}
		if ev.Text == "" {
			return nil
		}
		r.text.WriteString(ev.Text)
		return []messages.Output{messages.TextChunk(ev.Text)}

	default:
		zap.S().Debugw("stream_delta_ignored", "index", ev.Index, "delta_type", ev.DeltaType.String())
		return nil
	}
}

func (r *Reducer) blockStop(ev messages.StreamEvent) []messages.Output {
	buf, ok := r.openBuffers[ev.Index]
	if !ok {
		if _, open := r.openBlocks[ev.Index]; open {
			delete(r.openBlocks, ev.Index)
			return nil
		}
		violation("unmatched_block_stop", ev)
		return nil
	}
	delete(r.openBuffers, ev.Index)

	joined := buf.Joined()
	if isError, msg := toolargs.ClassifyErrorPayload(joined); isError {
		zap.S().Debugw("search_error_classified", "index", ev.Index, "tool_name", buf.ToolName, "message", msg)
		return []messages.Output{{
			Kind:    messages.OutputSearchError,
			CallID:  buf.ID,
			Message: msg,
		}}
	}
	if buf.resultOnly {
		return nil
	}

	arg := toolargs.Reconstruct(buf.Fragments, r.field(buf))
	inv := &messages.ToolInvocation{
		Name:          buf.ToolName,
		CallID:        buf.ID,
		Argument:      arg,
		IsSearchQuery: buf.IsSearchQuery,
	}

	zap.S().Debugw("tool_invocation_completed",
		"index", ev.Index,
		"tool_name", buf.ToolName,
		"call_id", buf.ID,
		"complete", arg.Complete(),
		"has_value", arg.HasValue,
	)
	return []messages.Output{{Kind: messages.OutputToolInvocation, Invocation: inv}}
}

func (r *Reducer) field(buf *ToolCallBuffer) string {
	if buf.IsSearchQuery || r.fieldFor == nil {
		return DefaultArgumentField
	}
	if f := r.fieldFor(buf.ToolName); f != "" {
		return f
	}
	return DefaultArgumentField
}

func violation(kind string, ev messages.StreamEvent) {
	zap.S().Warnw("stream_protocol_violation",
		"violation", kind,
		"event", ev.Kind.String(),
		"index", ev.Index,
	)
}
