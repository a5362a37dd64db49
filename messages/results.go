package messages

import "github.com/alexschlessinger/jurisearch/cost"

// Argument is a tool argument rebuilt from streamed JSON fragments.
// Object is set when Raw parsed as a complete JSON object; Value holds the
// best-effort extraction of the target field either way.
type Argument struct {
	Raw      string
	Object   map[string]any
	Value    string
	HasValue bool
}

// Complete reports whether the raw argument parsed as a full JSON object
func (a Argument) Complete() bool {
	return a.Object != nil
}

// ToolInvocation is a completed tool block ready for dispatch
type ToolInvocation struct {
	Name          string
	CallID        string
	Argument      Argument
	IsSearchQuery bool
}

// ErrorKind classifies a failed tool result
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindTool        ErrorKind = "tool"
	ErrorKindSearchError ErrorKind = "search_error"
	ErrorKindTransport   ErrorKind = "transport"
)

// ReinjectionMode selects how a sub-agent result is surfaced
type ReinjectionMode string

const (
	// ModeNone marks results fed back as ordinary tool results
	ModeNone ReinjectionMode = ""
	// ModeDirect shows the sub-agent answer verbatim as the final answer
	ModeDirect ReinjectionMode = "direct"
	// ModeHelp folds the sub-agent answer into context for a synthesis pass
	ModeHelp ReinjectionMode = "help"
)

// SearchResult is the outcome of one sub-agent search call
type SearchResult struct {
	Query     string
	Content   string
	Citations []Citation
	Cost      cost.Record
	Failed    bool
}

// ToolResult is the outcome of dispatching a ToolInvocation
type ToolResult struct {
	CallID    string
	Name      string
	Output    string
	IsError   bool
	ErrorKind ErrorKind

	// Native is set for tools executed by the provider; nothing is sent back
	Native bool

	// Search and Mode are set by sub-agent tools
	Search *SearchResult
	Mode   ReinjectionMode
}

// OutputKind discriminates reducer outputs
type OutputKind int

const (
	OutputText OutputKind = iota
	OutputToolInvocation
	OutputSearchError
	// OutputComplete carries the final assistant message of one response
	OutputComplete
	// OutputError carries a fatal transport error from the primary provider
	OutputError
)

// Output is one item produced by the stream reducer
type Output struct {
	Kind       OutputKind
	Text       string
	Invocation *ToolInvocation

	// SearchError fields
	CallID  string
	Message string

	Final *ChatMessage
	Err   error
}

// TextChunk wraps transcript text as a reducer output
func TextChunk(text string) Output {
	return Output{Kind: OutputText, Text: text}
}
