package llm

import (
	"testing"

	"github.com/alexschlessinger/jurisearch/llm/adapters"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/tools"
	"google.golang.org/genai"
)

func conversation() []messages.ChatMessage {
	return []messages.ChatMessage{
		{Role: messages.MessageRoleSystem, Content: "Tu es un juriste."},
		{Role: messages.MessageRoleUser, Parts: []messages.ContentPart{
			{Type: messages.PartTypeText, Text: "Résume ce contrat"},
			{Type: messages.PartTypeFile, FileURI: "https://generativelanguage.googleapis.com/v1beta/files/abc", FileData: "JVBERi0=", MimeType: "application/pdf", FileName: "bail.pdf"},
		}},
		{
			Role:      messages.MessageRoleAssistant,
			ToolCalls: []messages.ChatMessageToolCall{{ID: "call_1", Name: "is_date_in_future", Arguments: `{"date_str":"2999-01-01"}`}},
			Metadata:  map[string]any{adapters.MetadataKeyGeminiSignatures: map[string]any{"call_1": "c2ln"}},
		},
		{Role: messages.MessageRoleTool, ToolCallID: "call_1", ToolName: "is_date_in_future", Content: "La date 2999-01-01 est dans le futur."},
		{Role: messages.MessageRoleUser, Content: "Merci"},
	}
}

func TestMessagesToAnthropicParams(t *testing.T) {
	msgs, system := MessagesToAnthropicParams(conversation())
	if system != "Tu es un juriste." {
		t.Errorf("Expected system prompt, got %s", system)
	}
	// user, assistant, user(tool result + text merged)
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if len(msgs[0].Content) != 2 || msgs[0].Content[1].OfDocument == nil {
		t.Errorf("Expected text and document blocks, got %+v", msgs[0].Content)
	}
	if len(msgs[2].Content) != 2 || msgs[2].Content[0].OfToolResult == nil {
		t.Fatalf("Expected tool result merged with the next user turn, got %+v", msgs[2].Content)
	}
	if msgs[2].Content[0].OfToolResult.ToolUseID != "call_1" {
		t.Errorf("Expected tool_use_id call_1, got %s", msgs[2].Content[0].OfToolResult.ToolUseID)
	}
}

func TestMessagesToGeminiContent(t *testing.T) {
	contents, system := MessagesToGeminiContent(conversation())
	if system != "Tu es un juriste." {
		t.Errorf("Expected system instruction, got %s", system)
	}
	if len(contents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(contents))
	}

	file := contents[0].Parts[1]
	if file.FileData == nil || file.FileData.FileURI == "" {
		t.Errorf("Expected uploaded file reference, got %+v", file)
	}

	call := contents[1].Parts[0]
	if contents[1].Role != string(genai.RoleModel) || call.FunctionCall == nil {
		t.Fatalf("Expected model function call, got %+v", contents[1])
	}
	if string(call.ThoughtSignature) != "sig" {
		t.Errorf("Expected decoded thought signature, got %q", call.ThoughtSignature)
	}

	resp := contents[2].Parts[0].FunctionResponse
	if resp == nil || resp.Name != "is_date_in_future" || resp.ID != "call_1" {
		t.Fatalf("Expected function response for is_date_in_future, got %+v", resp)
	}
	if resp.Response["result"] != "La date 2999-01-01 est dans le futur." {
		t.Errorf("Expected wrapped result, got %v", resp.Response)
	}
}

func TestMessagesToOpenAI(t *testing.T) {
	msgs := MessagesToOpenAI(conversation())
	if len(msgs) != 5 {
		t.Fatalf("Expected one message per input, got %d", len(msgs))
	}
	if msgs[1].Content != "Résume ce contrat\n[Document joint: bail.pdf]" {
		t.Errorf("Expected file named in text, got %q", msgs[1].Content)
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].Function.Name != "is_date_in_future" {
		t.Errorf("Expected tool call, got %+v", msgs[2].ToolCalls)
	}
	if msgs[3].Role != messages.MessageRoleTool || msgs[3].ToolCallID != "call_1" {
		t.Errorf("Expected tool role answer, got %+v", msgs[3])
	}
}

func TestWebSearchOnlyForAnthropic(t *testing.T) {
	req := &CompletionRequest{
		Model:     "grok-3",
		MaxTokens: 100,
		Tools:     []tools.Tool{tools.NewWebSearchTool(), &tools.DateTool{}},
	}

	ccr := OpenAIClient{}.buildRequest(req)
	if len(ccr.Tools) != 1 || ccr.Tools[0].Function.Name != "is_date_in_future" {
		t.Errorf("Expected only the date tool for Grok, got %+v", ccr.Tools)
	}

	config := (&GeminiClient{}).buildConfig(req, "")
	if len(config.Tools) != 1 || len(config.Tools[0].FunctionDeclarations) != 1 {
		t.Errorf("Expected one Gemini declaration, got %+v", config.Tools)
	}

	params := (&AnthropicClient{}).buildRequestParams(req)
	if len(params.Tools) != 2 || params.Tools[0].OfWebSearchTool20250305 == nil {
		t.Fatalf("Expected native web search for Anthropic, got %+v", params.Tools)
	}
	domains := params.Tools[0].OfWebSearchTool20250305.AllowedDomains
	if len(domains) != len(tools.DefaultSearchDomains) {
		t.Errorf("Expected allowed domains, got %v", domains)
	}
}
