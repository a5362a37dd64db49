package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexschlessinger/jurisearch/messages"
	"go.uber.org/zap"
)

// handler runs one resolved invocation. A returned error is converted into an
// error result by the Router.
type handler func(ctx context.Context, inv messages.ToolInvocation, args map[string]any) (messages.ToolResult, error)

// handlerFor builds the dispatch closure for a tool of the given kind
func handlerFor(tool Tool, kind Kind) handler {
	switch kind {
	case KindNative:
		return func(ctx context.Context, inv messages.ToolInvocation, args map[string]any) (messages.ToolResult, error) {
			return messages.ToolResult{Native: true}, nil
		}

	case KindSubAgent:
		st, ok := tool.(SearchTool)
		if !ok {
			break
		}
		return func(ctx context.Context, inv messages.ToolInvocation, args map[string]any) (messages.ToolResult, error) {
			query, _ := args["query"].(string)
			query = strings.TrimSpace(query)
			if query == "" {
				return messages.ToolResult{}, &ValidationError{Field: "query", Reason: "must be a non-empty string"}
			}

			// the sub-agent call is not interrupted by the turn; the caller
			// decides afterwards whether its result still applies
			result := st.Search(context.WithoutCancel(ctx), query)

			tr := messages.ToolResult{
				Output:  result.Content,
				Search:  &result,
				Mode:    st.Mode(),
				IsError: result.Failed,
			}
			if result.Failed {
				tr.ErrorKind = messages.ErrorKindTransport
			}
			return tr, nil
		}
	}

	return func(ctx context.Context, inv messages.ToolInvocation, args map[string]any) (messages.ToolResult, error) {
		out, err := tool.Execute(ctx, args)
		if err != nil {
			return messages.ToolResult{}, err
		}
		return messages.ToolResult{Output: out}, nil
	}
}

// ExecutionHooks provides callbacks for customizing tool execution
type ExecutionHooks struct {
	// BeforeExecute is called before each tool executes.
	// Returns a (possibly modified) context to pass to the tool.
	// If nil, context passes through unchanged.
	BeforeExecute func(ctx context.Context, inv messages.ToolInvocation, args map[string]any) context.Context

	// AfterExecute is called after each tool executes with timing info.
	AfterExecute func(inv messages.ToolInvocation, result messages.ToolResult, duration time.Duration, err error)
}

// Router resolves completed tool invocations to their handlers
type Router struct {
	Registry *ToolRegistry
	Hooks    *ExecutionHooks
	Timeout  time.Duration // Applies to local, http and mcp tools
}

// NewRouter creates a router over the given registry
func NewRouter(registry *ToolRegistry) *Router {
	return &Router{Registry: registry}
}

// WithHooks sets execution hooks and returns the router for chaining
func (r *Router) WithHooks(hooks *ExecutionHooks) *Router {
	r.Hooks = hooks
	return r
}

// WithTimeout sets the per-tool timeout and returns the router for chaining
func (r *Router) WithTimeout(timeout time.Duration) *Router {
	r.Timeout = timeout
	return r
}

// Dispatch executes one invocation. It never returns an error: failures are
// carried in the result for the model to see.
func (r *Router) Dispatch(ctx context.Context, inv messages.ToolInvocation) messages.ToolResult {
	rt, ok := r.Registry.lookup(inv.Name)
	if !ok {
		zap.S().Warnw("tool_unknown", "name", inv.Name, "call_id", inv.CallID)
		return messages.ToolResult{
			CallID: inv.CallID,
			Name:   inv.Name,
			Output: UnknownToolMessage,
		}
	}

	args := r.arguments(inv)

	execCtx := ctx
	if r.Hooks != nil && r.Hooks.BeforeExecute != nil {
		execCtx = r.Hooks.BeforeExecute(ctx, inv, args)
	}

	start := time.Now()
	result, err := r.run(execCtx, rt, inv, args)
	duration := time.Since(start)

	if err != nil {
		result = errorResult(execCtx, err, r.Timeout)
	}
	result.CallID = inv.CallID
	result.Name = inv.Name

	zap.S().Debugw("tool_dispatched",
		"name", inv.Name,
		"kind", rt.kind,
		"call_id", inv.CallID,
		"is_error", result.IsError,
		"error_kind", result.ErrorKind,
		"duration", duration,
	)

	if r.Hooks != nil && r.Hooks.AfterExecute != nil {
		r.Hooks.AfterExecute(inv, result, duration, err)
	}
	return result
}

func (r *Router) run(ctx context.Context, rt route, inv messages.ToolInvocation, args map[string]any) (messages.ToolResult, error) {
	if rt.kind == KindNative {
		return rt.handler(ctx, inv, args)
	}

	if err := ValidateArguments(rt.tool.GetSchema(), args); err != nil {
		return messages.ToolResult{}, err
	}

	if r.Timeout > 0 && rt.kind != KindSubAgent {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return rt.handler(ctx, inv, args)
}

// arguments prefers the parsed object and falls back to the salvaged value
// under the tool's primary field
func (r *Router) arguments(inv messages.ToolInvocation) map[string]any {
	if inv.Argument.Object != nil {
		return inv.Argument.Object
	}
	args := make(map[string]any)
	if inv.Argument.HasValue {
		field := r.Registry.PrimaryField(inv.Name)
		if field == "" {
			field = "query"
		}
		args[field] = inv.Argument.Value
	}
	return args
}

func errorResult(ctx context.Context, err error, timeout time.Duration) messages.ToolResult {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return messages.ToolResult{
			Output:    fmt.Sprintf("Error: %v", err),
			IsError:   true,
			ErrorKind: messages.ErrorKindValidation,
		}
	}

	output := fmt.Sprintf("Error: %v", err)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		output = fmt.Sprintf("Error: tool execution timed out after %v", timeout)
	}
	return messages.ToolResult{
		Output:    output,
		IsError:   true,
		ErrorKind: messages.ErrorKindTool,
	}
}
