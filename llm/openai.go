package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alexschlessinger/jurisearch/llm/adapters"
	"github.com/alexschlessinger/jurisearch/llm/streaming"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/tools"
	mcpjsonschema "github.com/google/jsonschema-go/jsonschema"
	ai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// XAIBaseURL is the OpenAI-compatible endpoint for Grok models
const XAIBaseURL = "https://api.x.ai/v1"

var _ LLM = (*OpenAIClient)(nil)

type OpenAIClient struct {
	ClientConfig ai.ClientConfig
	Client       *ai.Client
}

func NewOpenAIClient(apiKey string, baseURL string) *OpenAIClient {
	cfg := ai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		ClientConfig: cfg,
		Client:       ai.NewClientWithConfig(cfg),
	}
}

// NewGrokClient creates a client for the xAI endpoint
func NewGrokClient(apiKey string) *OpenAIClient {
	return NewOpenAIClient(apiKey, XAIBaseURL)
}

// ChatCompletionStream implements the event-based streaming interface
func (o OpenAIClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest) <-chan messages.Output {
	outputs := make(chan messages.Output, 10)

	go func() {
		defer close(outputs)

		adapter := adapters.NewOpenAIAdapter()
		streamCore := streaming.NewStreamingCore(ctx, outputs, adapter, req.fieldFor())

		if err := o.streamCompletion(ctx, req, streamCore); err != nil {
			streamCore.EmitError(err)
		}
	}()

	return outputs
}

// buildRequest converts a completion request to the OpenAI wire format
func (o OpenAIClient) buildRequest(req *CompletionRequest) ai.ChatCompletionRequest {
	ccr := ai.ChatCompletionRequest{
		MaxCompletionTokens: req.MaxTokens,
		Model:               req.Model,
		Messages:            MessagesToOpenAI(req.Messages),
		Temperature:         req.Temperature,
		Stream:              true,
		StreamOptions: &ai.StreamOptions{
			IncludeUsage: true, // Include token usage in final chunk
		},
	}

	for _, tool := range req.Tools {
		// provider-executed search is an Anthropic feature
		if _, ok := tool.(*tools.WebSearchTool); ok {
			continue
		}
		ccr.Tools = append(ccr.Tools, ConvertToolToOpenAI(tool.GetSchema()))
	}

	return ccr
}

func (o OpenAIClient) streamCompletion(ctx context.Context, req *CompletionRequest, streamCore *streaming.StreamingCore) error {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	ccr := o.buildRequest(req)
	zap.S().Debugw("openai_completion_started", "model", req.Model, "tools", len(ccr.Tools))

	stream, err := o.Client.CreateChatCompletionStream(ctx, ccr)
	if err != nil {
		zap.S().Debugw("openai_stream_creation_failed", "error", err)
		return fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			zap.S().Debugw("openai_stream_error", "error", err)
			return fmt.Errorf("error during streaming: %w", err)
		}

		if err := streamCore.ProcessChunk(&response); err != nil {
			return err
		}
	}

	streamCore.Complete()
	return nil
}

// convertSchemaToOpenAIDefinition recursively converts a tool schema to an OpenAI Definition
func convertSchemaToOpenAIDefinition(schema *mcpjsonschema.Schema) jsonschema.Definition {
	if schema == nil {
		return jsonschema.Definition{}
	}

	def := jsonschema.Definition{
		Type:        jsonschema.DataType(schema.Type),
		Description: schema.Description,
	}

	switch schema.Type {
	case "array":
		if schema.Items != nil {
			items := convertSchemaToOpenAIDefinition(schema.Items)
			def.Items = &items
		} else {
			def.Items = &jsonschema.Definition{Type: jsonschema.String}
		}
	case "object":
		if schema.Properties != nil {
			props := make(map[string]jsonschema.Definition)
			for name, prop := range schema.Properties {
				if prop != nil {
					props[name] = convertSchemaToOpenAIDefinition(prop)
				}
			}
			def.Properties = props
		}
		if len(schema.Required) > 0 {
			def.Required = schema.Required
		}
	}

	if len(schema.Enum) > 0 {
		enumStrs := make([]string, 0, len(schema.Enum))
		for _, e := range schema.Enum {
			if s, ok := e.(string); ok {
				enumStrs = append(enumStrs, s)
			}
		}
		if len(enumStrs) > 0 {
			def.Enum = enumStrs
		}
	}

	return def
}

// ConvertToolToOpenAI converts a generic tool schema to OpenAI format
func ConvertToolToOpenAI(schema *mcpjsonschema.Schema) ai.Tool {
	props := make(map[string]jsonschema.Definition)
	name := ""
	description := ""
	var required []string

	if schema != nil {
		for k, v := range schema.Properties {
			if v != nil {
				props[k] = convertSchemaToOpenAIDefinition(v)
			}
		}
		name = schema.Title
		description = schema.Description
		required = schema.Required
	}

	// OpenAI requires Properties field to be present, even if empty.
	// The go-openai jsonschema omits empty maps, so for truly no-arg tools
	// we inject a benign optional placeholder property to keep the field present.
	if len(props) == 0 {
		props["__noargs"] = jsonschema.Definition{
			Type:        jsonschema.String,
			Description: "No arguments expected; value ignored.",
		}
	}

	return ai.Tool{
		Type: ai.ToolTypeFunction,
		Function: &ai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters: jsonschema.Definition{
				Type:                 jsonschema.Object,
				Properties:           props,
				Required:             required,
				AdditionalProperties: false,
			},
		},
	}
}

// MessagesToOpenAI converts a slice of agnostic messages to OpenAI format
func MessagesToOpenAI(msgs []messages.ChatMessage) []ai.ChatCompletionMessage {
	result := make([]ai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = MessageToOpenAI(msg)
	}
	return result
}

// MessageToOpenAI converts our agnostic message to OpenAI format. Chat
// completions cannot carry PDFs, so file parts are named in the text instead.
func MessageToOpenAI(msg messages.ChatMessage) ai.ChatCompletionMessage {
	m := ai.ChatCompletionMessage{
		Role:       msg.Role,
		ToolCallID: msg.ToolCallID,
	}

	if len(msg.Parts) > 0 {
		var sb strings.Builder
		for _, part := range msg.Parts {
			switch part.Type {
			case messages.PartTypeText:
				sb.WriteString(part.Text)
			case messages.PartTypeFile:
				fmt.Fprintf(&sb, "\n[Document joint: %s]", part.FileName)
			}
		}
		m.Content = strings.TrimSpace(sb.String())
	} else {
		m.Content = msg.Content
	}

	if msg.Role == messages.MessageRoleTool && msg.IsError && !strings.HasPrefix(m.Content, "Error") {
		m.Content = "Error: " + m.Content
	}

	for _, tc := range msg.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, ai.ToolCall{
			ID:   tc.ID,
			Type: ai.ToolTypeFunction,
			Function: ai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}

	return m
}
