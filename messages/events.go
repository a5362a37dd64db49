package messages

// EventKind discriminates the three stream event shapes
type EventKind int

const (
	// EventUnknown is any event the provider adapter could not classify
	EventUnknown EventKind = iota
	// EventBlockStart opens a content block at an index
	EventBlockStart
	// EventDelta carries an incremental payload for an open block
	EventDelta
	// EventBlockStop closes the block at an index
	EventBlockStop
)

func (k EventKind) String() string {
	switch k {
	case EventBlockStart:
		return "block_start"
	case EventDelta:
		return "delta"
	case EventBlockStop:
		return "block_stop"
	default:
		return "unknown"
	}
}

// BlockType is the kind of content carried by a block
type BlockType int

const (
	BlockUnknown BlockType = iota
	BlockText
	BlockToolUse
	// BlockServerToolUse is a tool executed by the provider itself (web_search)
	BlockServerToolUse
	// BlockWebSearchResult carries the provider's search result or in-band error
	BlockWebSearchResult
)

// ParseBlockType maps a wire content_block.type to a BlockType
func ParseBlockType(s string) BlockType {
	switch s {
	case "text":
		return BlockText
	case "tool_use":
		return BlockToolUse
	case "server_tool_use":
		return BlockServerToolUse
	case "web_search_tool_result":
		return BlockWebSearchResult
	default:
		return BlockUnknown
	}
}

func (b BlockType) String() string {
	switch b {
	case BlockText:
		return "text"
	case BlockToolUse:
		return "tool_use"
	case BlockServerToolUse:
		return "server_tool_use"
	case BlockWebSearchResult:
		return "web_search_tool_result"
	default:
		return "unknown"
	}
}

// DeltaType is the kind of payload carried by a delta
type DeltaType int

const (
	DeltaUnknown DeltaType = iota
	DeltaText
	DeltaInputJSON
)

// ParseDeltaType maps a wire delta.type to a DeltaType
func ParseDeltaType(s string) DeltaType {
	switch s {
	case "text_delta":
		return DeltaText
	case "input_json_delta":
		return DeltaInputJSON
	default:
		return DeltaUnknown
	}
}

func (d DeltaType) String() string {
	switch d {
	case DeltaText:
		return "text_delta"
	case DeltaInputJSON:
		return "input_json_delta"
	default:
		return "unknown"
	}
}

// NativeWebSearchTool is the provider-executed search tool name
const NativeWebSearchTool = "web_search"

// StreamEvent is one provider-agnostic streaming event.
// Only the fields relevant to Kind are populated.
type StreamEvent struct {
	Kind  EventKind
	Index int

	// BlockStart
	BlockType BlockType
	ToolName  string
	ID        string

	// Delta
	DeltaType   DeltaType
	Text        string
	PartialJSON string
}

// BlockStart builds a block start event
func BlockStart(index int, blockType BlockType, toolName, id string) StreamEvent {
	return StreamEvent{Kind: EventBlockStart, Index: index, BlockType: blockType, ToolName: toolName, ID: id}
}

// TextDelta builds a text delta event
func TextDelta(index int, text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Index: index, DeltaType: DeltaText, Text: text}
}

// JSONDelta builds an input_json delta event
func JSONDelta(index int, fragment string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Index: index, DeltaType: DeltaInputJSON, PartialJSON: fragment}
}

// BlockStop builds a block stop event
func BlockStop(index int) StreamEvent {
	return StreamEvent{Kind: EventBlockStop, Index: index}
}
