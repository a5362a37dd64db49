package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alexschlessinger/jurisearch/llm/adapters"
	"github.com/alexschlessinger/jurisearch/llm/streaming"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/tools"
	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var _ LLM = (*GeminiClient)(nil)

type GeminiClient struct {
	apiKey string
}

func NewGeminiClient(apiKey string) *GeminiClient {
	if apiKey == "" {
		zap.S().Debugw("gemini_missing_api_key")
	}

	return &GeminiClient{
		apiKey: apiKey,
	}
}

// newGenaiClient creates a genai client for the Gemini API backend
func newGenaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// buildConfig creates the generation config for a request
func (g *GeminiClient) buildConfig(req *CompletionRequest, systemInstruction string) *genai.GenerateContentConfig {
	temperature := req.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}

	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	var decls []*genai.FunctionDeclaration
	for _, tool := range req.Tools {
		// provider-executed search is an Anthropic feature
		if _, ok := tool.(*tools.WebSearchTool); ok {
			continue
		}
		decls = append(decls, ConvertToolToGemini(tool.GetSchema()))
	}
	if len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return config
}

// ChatCompletionStream implements the event-based streaming interface
func (g *GeminiClient) ChatCompletionStream(ctx context.Context, req *CompletionRequest) <-chan messages.Output {
	if g.apiKey == "" {
		return closedWithError(fmt.Errorf("Gemini API key not configured"))
	}

	outputs := make(chan messages.Output, 10)

	go func() {
		defer close(outputs)

		adapter := adapters.NewGeminiAdapter()
		streamCore := streaming.NewStreamingCore(ctx, outputs, adapter, req.fieldFor())

		client, err := newGenaiClient(ctx, g.apiKey)
		if err != nil {
			streamCore.EmitError(err)
			return
		}

		contents, systemInstruction := MessagesToGeminiContent(req.Messages)
		config := g.buildConfig(req, systemInstruction)

		zap.S().Debugw("gemini_streaming_started", "model", req.Model, "contents", len(contents))

		for resp, err := range client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				zap.S().Debugw("gemini_stream_error", "error", err)
				streamCore.EmitError(err)
				return
			}
			if err := streamCore.ProcessChunk(resp); err != nil {
				streamCore.EmitError(err)
				return
			}
		}

		streamCore.Complete()
	}()

	return outputs
}

// convertSchemaToGeminiSchema recursively converts a tool schema to a Gemini schema
func convertSchemaToGeminiSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	geminiSchema := &genai.Schema{
		Description: schema.Description,
	}

	switch schema.Type {
	case "string":
		geminiSchema.Type = genai.TypeString
	case "number":
		geminiSchema.Type = genai.TypeNumber
	case "integer":
		geminiSchema.Type = genai.TypeInteger
	case "boolean":
		geminiSchema.Type = genai.TypeBoolean
	case "array":
		geminiSchema.Type = genai.TypeArray
		if schema.Items != nil {
			geminiSchema.Items = convertSchemaToGeminiSchema(schema.Items)
		} else {
			geminiSchema.Items = &genai.Schema{Type: genai.TypeString}
		}
	case "object":
		geminiSchema.Type = genai.TypeObject
		if schema.Properties != nil {
			props := make(map[string]*genai.Schema)
			for name, prop := range schema.Properties {
				if prop != nil {
					props[name] = convertSchemaToGeminiSchema(prop)
				}
			}
			geminiSchema.Properties = props
		}
		if len(schema.Required) > 0 {
			geminiSchema.Required = schema.Required
		}
	default:
		// Default to string for unknown types
		geminiSchema.Type = genai.TypeString
	}

	for _, v := range schema.Enum {
		if s, ok := v.(string); ok {
			geminiSchema.Enum = append(geminiSchema.Enum, s)
		}
	}

	return geminiSchema
}

// ConvertToolToGemini converts a generic tool schema to a Gemini function declaration
func ConvertToolToGemini(schema *jsonschema.Schema) *genai.FunctionDeclaration {
	props := make(map[string]*genai.Schema)
	name := ""
	description := ""
	var required []string

	if schema != nil {
		for k, v := range schema.Properties {
			if v != nil {
				props[k] = convertSchemaToGeminiSchema(v)
			}
		}
		name = schema.Title
		description = schema.Description
		required = schema.Required
	}

	return &genai.FunctionDeclaration{
		Name:        name,
		Description: description,
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   required,
		},
	}
}

// MessagesToGeminiContent converts messages to Gemini contents and the system instruction
func MessagesToGeminiContent(msgs []messages.ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string
	callIDToName := make(map[string]string)

	for _, msg := range msgs {
		switch msg.Role {
		case messages.MessageRoleSystem:
			systemInstruction = msg.Content

		case messages.MessageRoleUser:
			if len(msg.Parts) > 0 {
				var parts []*genai.Part
				for _, part := range msg.Parts {
					switch part.Type {
					case messages.PartTypeText:
						if strings.TrimSpace(part.Text) != "" {
							parts = append(parts, genai.NewPartFromText(part.Text))
						}
					case messages.PartTypeFile:
						if part.FileURI != "" {
							parts = append(parts, genai.NewPartFromURI(part.FileURI, part.MimeType))
						} else if part.FileData != "" {
							if data, err := base64.StdEncoding.DecodeString(part.FileData); err == nil {
								parts = append(parts, genai.NewPartFromBytes(data, part.MimeType))
							}
						}
					}
				}
				if len(parts) > 0 {
					contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
				}
			} else if strings.TrimSpace(msg.Content) != "" {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
			}

		case messages.MessageRoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			signatures := thoughtSignatures(msg)
			for _, tc := range msg.ToolCalls {
				if tc.ID != "" {
					callIDToName[tc.ID] = tc.Name
				}
				args := map[string]any{}
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				part := &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: args,
				}}
				if sig, ok := signatures[tc.ID]; ok {
					part.ThoughtSignature = sig
				}
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}

		case messages.MessageRoleTool:
			name := msg.ToolName
			if name == "" {
				name = callIDToName[msg.ToolCallID]
			}

			var output any
			if err := json.Unmarshal([]byte(msg.Content), &output); err != nil {
				output = msg.Content
			}

			// genai requires the response to be an object
			response, ok := output.(map[string]any)
			if !ok {
				key := "result"
				if msg.IsError {
					key = "error"
				}
				response = map[string]any{key: output}
			}

			part := genai.NewPartFromFunctionResponse(name, response)
			part.FunctionResponse.ID = msg.ToolCallID
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}

	return mergeConsecutiveGeminiUsers(contents), systemInstruction
}

// thoughtSignatures decodes the signatures the adapter stored on an assistant message
func thoughtSignatures(msg messages.ChatMessage) map[string][]byte {
	out := make(map[string][]byte)
	if msg.Metadata == nil {
		return out
	}

	var encoded map[string]string
	switch v := msg.Metadata[adapters.MetadataKeyGeminiSignatures].(type) {
	case map[string]string:
		encoded = v
	case map[string]any:
		// file store round trips decode nested maps loosely
		encoded = make(map[string]string, len(v))
		for k, s := range v {
			if str, ok := s.(string); ok {
				encoded[k] = str
			}
		}
	}

	for id, sig := range encoded {
		if data, err := base64.StdEncoding.DecodeString(sig); err == nil {
			out[id] = data
		}
	}
	return out
}

// mergeConsecutiveGeminiUsers folds parallel function responses into one user turn
func mergeConsecutiveGeminiUsers(contents []*genai.Content) []*genai.Content {
	merged := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		if n := len(merged); n > 0 && c.Role == string(genai.RoleUser) && merged[n-1].Role == string(genai.RoleUser) {
			merged[n-1].Parts = append(merged[n-1].Parts, c.Parts...)
			continue
		}
		merged = append(merged, c)
	}
	return merged
}
