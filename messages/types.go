package messages

import (
	"fmt"
	"strings"
)

// StopReason indicates why the model stopped generating
type StopReason string

const (
	// StopReasonEndTurn indicates normal completion
	StopReasonEndTurn StopReason = "end_turn"
	// StopReasonToolUse indicates the model wants to use tools
	StopReasonToolUse StopReason = "tool_use"
	// StopReasonMaxTokens indicates the response was truncated due to token limit
	StopReasonMaxTokens StopReason = "max_tokens"
	// StopReasonPauseTurn indicates a long server tool turn was paused by the provider
	StopReasonPauseTurn StopReason = "pause_turn"
	// StopReasonContentFilter indicates the response was blocked by safety/policy
	StopReasonContentFilter StopReason = "content_filter"
	// StopReasonError indicates malformed output or other error
	StopReasonError StopReason = "error"
)

// ContentPart represents a part of a message content (text or an uploaded document)
type ContentPart struct {
	Type     string // "text", "file"
	Text     string // For text content
	FileURI  string // Provider file reference (Gemini Files API)
	FileData string // Base64 document body for providers without a files API
	MimeType string
	FileName string
}

// Content part types
const (
	PartTypeText = "text"
	PartTypeFile = "file"
)

// Citation is a numbered source attached to a transcript entry
type Citation struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
}

func (c Citation) String() string {
	return fmt.Sprintf("[%d] %s: %s", c.Index, c.Title, c.URL)
}

// ChatMessage represents a provider-agnostic chat message
type ChatMessage struct {
	Role       string                `json:"role"`
	Content    string                `json:"content,omitempty"`
	Parts      []ContentPart         `json:"parts,omitempty"`
	ToolCalls  []ChatMessageToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                `json:"tool_call_id,omitempty"`
	ToolName   string                `json:"tool_name,omitempty"`
	IsError    bool                  `json:"is_error,omitempty"`
	Citations  []Citation            `json:"citations,omitempty"`
	Metadata   map[string]any        `json:"metadata,omitempty"`
	StopReason StopReason            `json:"stop_reason,omitempty"`
}

// GetContent returns the content as a string, handling both simple and multipart messages
func (m *ChatMessage) GetContent() string {
	if m.Content != "" {
		return m.Content
	}
	var sb strings.Builder
	for _, part := range m.Parts {
		if part.Type == PartTypeText && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// HasFiles returns true if the message carries document parts
func (m *ChatMessage) HasFiles() bool {
	for _, part := range m.Parts {
		if part.Type == PartTypeFile {
			return true
		}
	}
	return false
}

// ChatMessageToolCall represents a tool call within a message
type ChatMessageToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// Standard role constants
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleTool      = "tool"
)

// Metadata keys for token usage
const (
	MetadataKeyInputTokens  = "input_tokens"
	MetadataKeyOutputTokens = "output_tokens"
	MetadataKeySearches     = "web_search_requests"
)

// GetInputTokens returns the input token count from metadata, or 0 if not set
func (m *ChatMessage) GetInputTokens() int {
	return m.metadataInt(MetadataKeyInputTokens)
}

// GetOutputTokens returns the output token count from metadata, or 0 if not set
func (m *ChatMessage) GetOutputTokens() int {
	return m.metadataInt(MetadataKeyOutputTokens)
}

func (m *ChatMessage) metadataInt(key string) int {
	if m.Metadata == nil {
		return 0
	}
	switch v := m.Metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// JSON round-trips through the file store decode numbers as float64
		return int(v)
	}
	return 0
}

// SetTokenUsage sets the input and output token counts in metadata
func (m *ChatMessage) SetTokenUsage(input, output int) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[MetadataKeyInputTokens] = input
	m.Metadata[MetadataKeyOutputTokens] = output
}
