package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/alexschlessinger/jurisearch/cost"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/tools"
	"go.uber.org/zap"
)

// ErrMaxIterations is returned when the model keeps calling tools past the limit
var ErrMaxIterations = errors.New("max iterations exceeded")

// Agent handles the agentic loop without owning session state.
// It streams completions, dispatches the tools the model calls and feeds
// their results back until the turn has a final answer.
type Agent struct {
	client LLM
	router *tools.Router
	config AgentConfig
}

// AgentConfig configures agent behavior
type AgentConfig struct {
	MaxIterations int // Maximum LLM calls before giving up (default: 10)
}

// AgentCallbacks provides hooks for observing agent execution
type AgentCallbacks struct {
	// OnContent is called when transcript text is streamed
	OnContent func(content string)

	// OnToolStart is called before each invocation is dispatched
	OnToolStart func(inv messages.ToolInvocation)

	// OnToolResult is called after each invocation is dispatched
	OnToolResult func(result messages.ToolResult)

	// OnSearchError is called when the provider reports a failed native search
	OnSearchError func(callID, message string)

	// OnComplete is called when the final response is ready
	OnComplete func(response *messages.ChatMessage)

	// OnError is called when an error occurs
	OnError func(err error)
}

// AgentResponse contains the results after Run completes
type AgentResponse struct {
	Message        *messages.ChatMessage  // Final transcript entry for the turn
	AllMessages    []messages.ChatMessage // All messages generated (assistant, tool results, context)
	IterationCount int                    // Number of primary provider calls made
}

// NewAgent creates a stateless agent. Callers provide messages and receive
// back all generated messages to add to their own session.
func NewAgent(client LLM, router *tools.Router, config AgentConfig) *Agent {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	return &Agent{
		client: client,
		router: router,
		config: config,
	}
}

// Run executes one user turn. Every primary call is priced into ledger, as
// is every sub-agent search. A nil ledger prices into a throwaway one.
func (a *Agent) Run(ctx context.Context, req *CompletionRequest, ledger *cost.Ledger, cb *AgentCallbacks) (*AgentResponse, error) {
	if ledger == nil {
		ledger = cost.NewLedger(nil)
	}
	if cb == nil {
		cb = &AgentCallbacks{}
	}

	// Work with a copy of messages - don't mutate input
	msgs := make([]messages.ChatMessage, len(req.Messages))
	copy(msgs, req.Messages)

	var allGenerated []messages.ChatMessage
	var citations []messages.Citation

	for iteration := 0; iteration < a.config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		iterReq := *req
		iterReq.Messages = msgs
		if a.router != nil && a.router.Registry != nil {
			iterReq.Tools = a.router.Registry.All()
			iterReq.ArgumentField = a.router.Registry.PrimaryField
		}

		response, invocations, err := a.stream(ctx, &iterReq, cb)
		if err != nil {
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return nil, err
		}
		a.recordUsage(ledger, req.Model, response)

		msgs = append(msgs, *response)
		allGenerated = append(allGenerated, *response)

		switch response.StopReason {
		case messages.StopReasonContentFilter:
			err := errors.New("response blocked by content filter")
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return nil, err

		case messages.StopReasonError:
			err := errors.New("model produced malformed output")
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return nil, err

		case messages.StopReasonMaxTokens:
			zap.S().Warnw("agent_response_truncated", "model", req.Model)

		case messages.StopReasonPauseTurn:
			zap.S().Debugw("agent_pause_turn", "model", req.Model)
		}

		if len(response.ToolCalls) == 0 {
			return a.finish(response, allGenerated, citations, iteration+1, cb), nil
		}

		// Dispatch in stream order, one at a time. Tool answers go first so
		// every call is answered before any context turn.
		var toolMsgs, contextMsgs []messages.ChatMessage
		var final *messages.ChatMessage
		for _, inv := range invocations {
			result := a.dispatch(ctx, inv, cb)
			if inv.IsSearchQuery || result.Native {
				continue
			}

			if result.Search != nil {
				if ctx.Err() != nil {
					zap.S().Debugw("subagent_result_discarded", "name", result.Name, "call_id", result.CallID, "query", result.Search.Query)
					return nil, ctx.Err()
				}
				ledger.Append(result.Search.Cost)
				citations = append(citations, result.Search.Citations...)
			}

			reinjected := Reinject(result, result.Mode)
			toolMsgs = append(toolMsgs, reinjected[0])
			for _, m := range reinjected[1:] {
				if m.Role != messages.MessageRoleAssistant {
					contextMsgs = append(contextMsgs, m)
					continue
				}
				if final == nil {
					m.Citations = nil
					final = &m
				} else {
					final.Content += "\n\n" + m.Content
				}
			}
		}

		generated := append(toolMsgs, contextMsgs...)
		msgs = append(msgs, generated...)
		allGenerated = append(allGenerated, generated...)

		// a direct answer closes the turn without another primary call
		if final != nil {
			msgs = append(msgs, *final)
			allGenerated = append(allGenerated, *final)
			return a.finish(final, allGenerated, citations, iteration+1, cb), nil
		}
	}

	err := ErrMaxIterations
	if cb.OnError != nil {
		cb.OnError(err)
	}
	// Return the partial response so the caller can save the history
	return &AgentResponse{
		Message:        &msgs[len(msgs)-1],
		AllMessages:    allGenerated,
		IterationCount: a.config.MaxIterations,
	}, err
}

// stream consumes one primary response, returning its final message and
// the invocations it completed in order
func (a *Agent) stream(ctx context.Context, req *CompletionRequest, cb *AgentCallbacks) (*messages.ChatMessage, []messages.ToolInvocation, error) {
	var response *messages.ChatMessage
	var invocations []messages.ToolInvocation

	for out := range a.client.ChatCompletionStream(ctx, req) {
		switch out.Kind {
		case messages.OutputText:
			if cb.OnContent != nil {
				cb.OnContent(out.Text)
			}
		case messages.OutputToolInvocation:
			if out.Invocation != nil {
				invocations = append(invocations, *out.Invocation)
			}
		case messages.OutputSearchError:
			zap.S().Debugw("agent_search_error", "call_id", out.CallID, "message", out.Message)
			if cb.OnSearchError != nil {
				cb.OnSearchError(out.CallID, out.Message)
			}
		case messages.OutputComplete:
			response = out.Final
		case messages.OutputError:
			return nil, nil, out.Err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if response == nil {
		return nil, nil, errors.New("no response received from LLM")
	}
	return response, invocations, nil
}

// dispatch routes one invocation and reports it to the callbacks
func (a *Agent) dispatch(ctx context.Context, inv messages.ToolInvocation, cb *AgentCallbacks) messages.ToolResult {
	if cb.OnToolStart != nil {
		cb.OnToolStart(inv)
	}

	var result messages.ToolResult
	if a.router == nil {
		result = messages.ToolResult{CallID: inv.CallID, Name: inv.Name, Output: tools.UnknownToolMessage}
	} else {
		result = a.router.Dispatch(ctx, inv)
	}

	if cb.OnToolResult != nil {
		cb.OnToolResult(result)
	}
	return result
}

// recordUsage prices one primary call from the usage on its final message
func (a *Agent) recordUsage(ledger *cost.Ledger, model string, msg *messages.ChatMessage) {
	searches := 0
	if msg.Metadata != nil {
		if n, ok := msg.Metadata[messages.MetadataKeySearches].(int); ok {
			searches = n
		}
	}
	ledger.Record(pricingKey(model), msg.GetInputTokens(), msg.GetOutputTokens(), searches)
}

func (a *Agent) finish(msg *messages.ChatMessage, generated []messages.ChatMessage, citations []messages.Citation, iterations int, cb *AgentCallbacks) *AgentResponse {
	final := *msg
	if len(citations) > 0 {
		final.Citations = renumber(append(final.Citations, citations...))
	}
	if n := len(generated); n > 0 && generated[n-1].Role == messages.MessageRoleAssistant {
		generated[n-1].Citations = final.Citations
	}

	if cb.OnComplete != nil {
		cb.OnComplete(&final)
	}
	return &AgentResponse{
		Message:        &final,
		AllMessages:    generated,
		IterationCount: iterations,
	}
}

// renumber assigns consecutive indices to citations gathered across searches
func renumber(citations []messages.Citation) []messages.Citation {
	out := make([]messages.Citation, len(citations))
	for i, c := range citations {
		c.Index = i + 1
		out[i] = c
	}
	return out
}

// pricingKey strips the provider prefix from a routed model name
func pricingKey(model string) string {
	if _, name, err := SplitModel(model); err == nil {
		return name
	}
	return strings.TrimSpace(model)
}
