package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/alexschlessinger/jurisearch/llm/adapters"
	"github.com/alexschlessinger/jurisearch/llm/streaming"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/tools"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"
)

var _ LLM = (*AnthropicClient)(nil)

type AnthropicClient struct {
	client anthropic.Client
}

func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *AnthropicClient {
	if apiKey == "" {
		zap.S().Debugw("anthropic_missing_api_key")
	}

	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	return &AnthropicClient{
		client: client,
	}
}

// buildRequestParams creates the Anthropic API request parameters
func (a *AnthropicClient) buildRequestParams(req *CompletionRequest) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := MessagesToAnthropicParams(req.Messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages:    anthropicMessages,
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: systemPrompt,
			},
		}
	}

	var anthropicTools []anthropic.ToolUnionParam
	for _, tool := range req.Tools {
		if search, ok := tool.(*tools.WebSearchTool); ok {
			anthropicTools = append(anthropicTools, ConvertWebSearchToAnthropic(search))
			continue
		}
		anthropicTools = append(anthropicTools, ConvertToolToAnthropic(tool.GetSchema()))
	}
	if len(anthropicTools) > 0 {
		params.Tools = anthropicTools
	}

	return params
}

// ChatCompletionStream implements the event-based streaming interface
func (a *AnthropicClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest) <-chan messages.Output {
	outputs := make(chan messages.Output, 10)

	go func() {
		defer close(outputs)

		adapter := adapters.NewAnthropicAdapter()
		streamCore := streaming.NewStreamingCore(ctx, outputs, adapter, req.fieldFor())

		params := a.buildRequestParams(req)
		zap.S().Debugw("anthropic_streaming_started", "model", req.Model, "tools", len(params.Tools))

		stream := a.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			if err := streamCore.ProcessChunk(stream.Current()); err != nil {
				streamCore.EmitError(err)
				return
			}
		}

		if err := stream.Err(); err != nil {
			zap.S().Debugw("anthropic_stream_error", "error", err)
			streamCore.EmitError(err)
			return
		}

		streamCore.Complete()
	}()

	return outputs
}

// ConvertWebSearchToAnthropic declares the provider-executed web search
func ConvertWebSearchToAnthropic(tool *tools.WebSearchTool) anthropic.ToolUnionParam {
	param := &anthropic.WebSearchTool20250305Param{
		AllowedDomains: tool.AllowedDomains,
	}
	if tool.MaxUses > 0 {
		param.MaxUses = anthropic.Int(int64(tool.MaxUses))
	}
	return anthropic.ToolUnionParam{OfWebSearchTool20250305: param}
}

// convertSchemaToAnthropicMap recursively converts a tool schema to Anthropic format map
func convertSchemaToAnthropicMap(schema *jsonschema.Schema) map[string]any {
	if schema == nil {
		return nil
	}

	propMap := make(map[string]any)

	// Always set type, default to string if empty
	if schema.Type != "" {
		propMap["type"] = schema.Type
	} else {
		propMap["type"] = "string"
	}

	if schema.Description != "" {
		propMap["description"] = schema.Description
	}

	switch schema.Type {
	case "array":
		if schema.Items != nil {
			propMap["items"] = convertSchemaToAnthropicMap(schema.Items)
		} else {
			// Array must have items defined for JSON Schema 2020-12
			propMap["items"] = map[string]any{
				"type": "string",
			}
		}
	case "object":
		props := make(map[string]any)
		for name, prop := range schema.Properties {
			if prop != nil {
				props[name] = convertSchemaToAnthropicMap(prop)
			}
		}
		propMap["properties"] = props
		if len(schema.Required) > 0 {
			propMap["required"] = schema.Required
		}
	}

	if len(schema.Enum) > 0 {
		propMap["enum"] = schema.Enum
	}

	return propMap
}

// ConvertToolToAnthropic converts a generic tool schema to Anthropic format
func ConvertToolToAnthropic(schema *jsonschema.Schema) anthropic.ToolUnionParam {
	properties := make(map[string]any)
	name := ""
	description := ""
	var required []string

	if schema != nil {
		for k, v := range schema.Properties {
			if v != nil {
				properties[k] = convertSchemaToAnthropicMap(v)
			}
		}
		name = schema.Title
		description = schema.Description
		required = schema.Required
	}

	inputSchema := anthropic.ToolInputSchemaParam{
		Type:       "object",
		Properties: properties,
	}
	if len(required) > 0 {
		inputSchema.Required = required
	}

	tool := anthropic.ToolParam{
		Name:        name,
		Description: anthropic.String(description),
		InputSchema: inputSchema,
	}

	return anthropic.ToolUnionParam{
		OfTool: &tool,
	}
}

// MessagesToAnthropicParams converts messages to Anthropic message parameters
func MessagesToAnthropicParams(msgs []messages.ChatMessage) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	systemPrompt := ""

	for _, msg := range msgs {
		switch msg.Role {
		case messages.MessageRoleSystem:
			systemPrompt = msg.Content

		case messages.MessageRoleUser:
			if len(msg.Parts) > 0 {
				var blocks []anthropic.ContentBlockParamUnion
				for _, part := range msg.Parts {
					switch part.Type {
					case messages.PartTypeText:
						if strings.TrimSpace(part.Text) != "" {
							blocks = append(blocks, anthropic.NewTextBlock(part.Text))
						}
					case messages.PartTypeFile:
						// documents travel inline; Anthropic has no reference to Gemini uploads
						if part.FileData != "" {
							blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
								Data: part.FileData,
							}))
						}
					}
				}
				if len(blocks) > 0 {
					anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
				}
			} else if strings.TrimSpace(msg.Content) != "" {
				anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}

		case messages.MessageRoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any = map[string]any{}
				if argStr := strings.TrimSpace(tc.Arguments); argStr != "" {
					var tmp map[string]any
					if err := json.Unmarshal([]byte(argStr), &tmp); err == nil {
						input = tmp
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(blocks...))
			}

		case messages.MessageRoleTool:
			if strings.TrimSpace(msg.ToolCallID) != "" {
				anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError),
				))
			} else if strings.TrimSpace(msg.Content) != "" {
				anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}
		}
	}

	return mergeConsecutiveUsers(anthropicMessages), systemPrompt
}

// mergeConsecutiveUsers folds adjacent user turns into one; parallel tool
// results must share a single user message
func mergeConsecutiveUsers(msgs []anthropic.MessageParam) []anthropic.MessageParam {
	merged := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if n := len(merged); n > 0 && m.Role == anthropic.MessageParamRoleUser && merged[n-1].Role == anthropic.MessageParamRoleUser {
			merged[n-1].Content = append(merged[n-1].Content, m.Content...)
			continue
		}
		merged = append(merged, m)
	}
	return merged
}
