package streaming

import (
	"maps"
	"sync"

	"github.com/alexschlessinger/jurisearch/messages"
)

// StreamStateInterface defines the methods for interacting with streaming state.
// This interface is implemented by StreamState and allows adapters to work without circular imports.
type StreamStateInterface interface {
	// Setters
	AppendContent(content string)
	AddToolCall(toolCall messages.ChatMessageToolCall)
	SetTokenUsage(input, output int)
	SetSearchRequests(n int)
	SetStopReason(reason messages.StopReason)
	AddCitations(citations ...messages.Citation)
	SetMetadata(key string, value any)

	// Getters
	GetMetadata(key string) (any, bool)
	GetToolCalls() []messages.ChatMessageToolCall
	GetInputTokens() int
	GetOutputTokens() int
	GetSearchRequests() int
}

// StreamState holds the common state during streaming for all providers.
// It provides thread-safe access to streaming state that accumulates across chunks.
type StreamState struct {
	ResponseContent string                         // Accumulated text content
	ToolCalls       []messages.ChatMessageToolCall // Client-side tool calls to answer
	StopReason      messages.StopReason
	InputTokens     int
	OutputTokens    int
	SearchRequests  int // Provider-executed web searches
	Citations       []messages.Citation

	// Provider-specific metadata storage
	Metadata map[string]any

	mu sync.Mutex
}

// NewStreamState creates a new StreamState with initialized fields
func NewStreamState() *StreamState {
	return &StreamState{
		ToolCalls: make([]messages.ChatMessageToolCall, 0),
		Metadata:  make(map[string]any),
	}
}

// AppendContent safely appends content to the response
func (s *StreamState) AppendContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResponseContent += content
}

// AddToolCall safely adds a tool call to the state
func (s *StreamState) AddToolCall(toolCall messages.ChatMessageToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolCalls = append(s.ToolCalls, toolCall)
}

// SetTokenUsage safely sets token counts
func (s *StreamState) SetTokenUsage(input, output int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InputTokens = input
	s.OutputTokens = output
}

// SetSearchRequests records the provider's web search count for this response
func (s *StreamState) SetSearchRequests(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchRequests = n
}

// SetStopReason safely sets the stop reason
func (s *StreamState) SetStopReason(reason messages.StopReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopReason = reason
}

// AddCitations appends citations, numbering any without an index
func (s *StreamState) AddCitations(citations ...messages.Citation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range citations {
		if c.Index == 0 {
			c.Index = len(s.Citations) + 1
		}
		s.Citations = append(s.Citations, c)
	}
}

// SetMetadata safely sets a metadata value
func (s *StreamState) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
}

// GetMetadata safely gets a metadata value
func (s *StreamState) GetMetadata(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.Metadata[key]
	return val, ok
}

// GetToolCalls safely returns a copy of the tool calls
func (s *StreamState) GetToolCalls() []messages.ChatMessageToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]messages.ChatMessageToolCall, len(s.ToolCalls))
	copy(result, s.ToolCalls)
	return result
}

// GetInputTokens safely returns the input token count
func (s *StreamState) GetInputTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InputTokens
}

// GetOutputTokens safely returns the output token count
func (s *StreamState) GetOutputTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.OutputTokens
}

// GetSearchRequests safely returns the provider web search count
func (s *StreamState) GetSearchRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SearchRequests
}

// Clone creates a copy of the current state (for debugging/logging)
func (s *StreamState) Clone() *StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := StreamState{
		ResponseContent: s.ResponseContent,
		StopReason:      s.StopReason,
		InputTokens:     s.InputTokens,
		OutputTokens:    s.OutputTokens,
		SearchRequests:  s.SearchRequests,
		ToolCalls:       make([]messages.ChatMessageToolCall, len(s.ToolCalls)),
		Citations:       make([]messages.Citation, len(s.Citations)),
		Metadata:        make(map[string]any),
	}

	copy(clone.ToolCalls, s.ToolCalls)
	copy(clone.Citations, s.Citations)
	maps.Copy(clone.Metadata, s.Metadata)

	return &clone
}
