// Package subagent runs searches on a secondary provider on behalf of the
// primary model.
package subagent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexschlessinger/jurisearch/cost"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Defaults for the Perplexity chat completions API
const (
	DefaultBaseURL     = "https://api.perplexity.ai"
	DefaultModel       = "sonar"
	DefaultTimeout     = 90 * time.Second
	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 3000

	systemPrompt = "Tu es un expert juridique français. Donne une réponse précise et complète avec les références légales appropriées."
)

// DefaultDomains is used when a search names no domains
var DefaultDomains = []string{
	"legifrance.gouv.fr",
	"service-public.fr",
	"economie.gouv.fr",
}

// ErrMissingAPIKey is returned when no Perplexity key is configured
var ErrMissingAPIKey = errors.New("missing Perplexity API key")

type chatRequest struct {
	Model                  string                         `json:"model"`
	Messages               []openai.ChatCompletionMessage `json:"messages"`
	Temperature            float32                        `json:"temperature"`
	TopP                   float32                        `json:"top_p"`
	MaxTokens              int                            `json:"max_tokens"`
	Stream                 bool                           `json:"stream"`
	SearchDomainFilter     []string                       `json:"search_domain_filter,omitempty"`
	ReturnImages           bool                           `json:"return_images"`
	ReturnRelatedQuestions bool                           `json:"return_related_questions"`
}

// streamChunk is one SSE event; Perplexity adds citations to the OpenAI shape
type streamChunk struct {
	ID        string                              `json:"id"`
	Model     string                              `json:"model"`
	Choices   []openai.ChatCompletionStreamChoice `json:"choices"`
	Usage     *openai.Usage                       `json:"usage,omitempty"`
	Citations []string                            `json:"citations,omitempty"`
}

type completion struct {
	ID        string                        `json:"id"`
	Model     string                        `json:"model"`
	Choices   []openai.ChatCompletionChoice `json:"choices"`
	Usage     *openai.Usage                 `json:"usage,omitempty"`
	Citations []string                      `json:"citations,omitempty"`
}

// PerplexityExecutor issues one chat completion per search
type PerplexityExecutor struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Pricing    cost.Table

	// OnDelta receives streamed answer text as it arrives
	OnDelta func(text string)
}

// NewPerplexityExecutor creates an executor with the default endpoint and model
func NewPerplexityExecutor(apiKey string, pricing cost.Table) *PerplexityExecutor {
	if pricing == nil {
		pricing = cost.DefaultTable()
	}
	return &PerplexityExecutor{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		Model:      DefaultModel,
		Timeout:    DefaultTimeout,
		HTTPClient: http.DefaultClient,
		Pricing:    pricing,
	}
}

// Execute runs one search. It never fails: transport problems produce a
// zero-cost result whose content describes the error.
func (p *PerplexityExecutor) Execute(ctx context.Context, query string, domains []string) messages.SearchResult {
	start := time.Now()
	answer, err := p.complete(ctx, query, domains)
	if err != nil {
		zap.S().Debugw("subagent_search_failed", "query", query, "error", err, "duration", time.Since(start))
		return messages.SearchResult{
			Query:   query,
			Content: fmt.Sprintf("Erreur lors de la recherche: %v", err),
			Failed:  true,
			Cost:    cost.Record{Provider: p.model()},
		}
	}

	rec := cost.Record{
		Provider:     p.model(),
		InputTokens:  answer.inputTokens,
		OutputTokens: answer.outputTokens,
		SearchCount:  1,
	}
	if tier, pricing, ok := p.Pricing.Resolve(p.model()); ok {
		rec.Tier = tier
		rec.DollarCost = pricing.Cost(answer.inputTokens, answer.outputTokens, 1)
	} else {
		zap.S().Warnw("cost_unknown_provider", "provider", p.model())
	}

	zap.S().Debugw("subagent_search_completed",
		"query", query,
		"content_length", len(answer.content),
		"citations", len(answer.citations),
		"input_tokens", answer.inputTokens,
		"output_tokens", answer.outputTokens,
		"dollar_cost", rec.DollarCost,
		"duration", time.Since(start),
	)

	return messages.SearchResult{
		Query:     query,
		Content:   answer.content,
		Citations: citationsFor(answer.citations),
		Cost:      rec,
	}
}

func (p *PerplexityExecutor) model() string {
	if p.Model == "" {
		return DefaultModel
	}
	return p.Model
}

type answer struct {
	content      string
	citations    []string
	inputTokens  int
	outputTokens int
}

func (p *PerplexityExecutor) complete(ctx context.Context, query string, domains []string) (*answer, error) {
	if p.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if len(domains) == 0 {
		domains = DefaultDomains
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: p.model(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature:        DefaultTemperature,
		TopP:               DefaultTopP,
		MaxTokens:          DefaultMaxTokens,
		Stream:             true,
		SearchDomainFilter: domains,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return p.readStream(resp.Body)
	}
	return readCompletion(resp.Body)
}

// readStream consumes "data: {...}" lines until "data: [DONE]"
func (p *PerplexityExecutor) readStream(r io.Reader) (*answer, error) {
	var out answer
	var content strings.Builder
	var think ThinkFilter

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			zap.S().Debugw("subagent_chunk_unparsed", "error", err)
			continue
		}

		if len(chunk.Choices) > 0 {
			if delta := think.Process(chunk.Choices[0].Delta.Content); delta != "" {
				content.WriteString(delta)
				if p.OnDelta != nil {
					p.OnDelta(delta)
				}
			}
		}
		if chunk.Usage != nil {
			out.inputTokens = chunk.Usage.PromptTokens
			out.outputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Citations) > 0 {
			out.citations = chunk.Citations
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream interrupted: %w", err)
	}

	if tail := think.Flush(); tail != "" {
		content.WriteString(tail)
		if p.OnDelta != nil {
			p.OnDelta(tail)
		}
	}

	out.content = strings.TrimSpace(content.String())
	return &out, nil
}

func readCompletion(r io.Reader) (*answer, error) {
	var resp completion
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &answer{citations: resp.Citations}
	if len(resp.Choices) > 0 {
		out.content = StripThink(resp.Choices[0].Message.Content)
	}
	if resp.Usage != nil {
		out.inputTokens = resp.Usage.PromptTokens
		out.outputTokens = resp.Usage.CompletionTokens
	}
	return out, nil
}

func citationsFor(urls []string) []messages.Citation {
	citations := make([]messages.Citation, 0, len(urls))
	for i, u := range urls {
		c := messages.Citation{
			Index: i + 1,
			Title: fmt.Sprintf("Source %d", i+1),
			URL:   u,
		}
		if parsed, err := url.Parse(u); err == nil {
			c.Source = parsed.Host
		}
		citations = append(citations, c)
	}
	return citations
}
