package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alexschlessinger/jurisearch/cost"
	"github.com/alexschlessinger/jurisearch/llm"
	"github.com/alexschlessinger/jurisearch/sessions"
	"github.com/alexschlessinger/jurisearch/store"
	"github.com/alexschlessinger/jurisearch/subagent"
	"github.com/alexschlessinger/jurisearch/tools"
	"go.uber.org/zap"
)

// Runtime wires the provider, tools and stores used by every turn
type Runtime struct {
	config   *Config
	table    cost.Table
	client   llm.LLM
	registry *tools.ToolRegistry
	agent    *llm.Agent
	printer  *Printer
	stats    *store.Store
	mcp      []*tools.MCPClient
}

// loadPricing returns the default table merged with the optional override file
func loadPricing(path string) (cost.Table, error) {
	if path == "" {
		return cost.DefaultTable(), nil
	}
	table, err := cost.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing: %w", err)
	}
	return table, nil
}

// buildRegistry registers every tool available with the configured credentials
func buildRegistry(ctx context.Context, config *Config, table cost.Table, printer *Printer) (*tools.ToolRegistry, []*tools.MCPClient, error) {
	registry := tools.NewToolRegistry(nil)
	registry.Register(&tools.DateTool{})

	if !config.NoWebSearch {
		// only the Anthropic client forwards it; the others skip it
		registry.Register(tools.NewWebSearchTool())
	}

	if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
		executor := subagent.NewPerplexityExecutor(key, table)
		if printer != nil {
			executor.OnDelta = printer.SubAgentDelta
		}
		registry.Register(tools.NewDirectSearchTool(executor, nil))
		registry.Register(tools.NewHelpSearchTool(executor, nil))
	} else {
		zap.S().Debugw("subagent_disabled", "reason", "PERPLEXITY_API_KEY not set")
	}

	clientID, secret := os.Getenv("LEGIFRANCE_CLIENT_ID"), os.Getenv("LEGIFRANCE_CLIENT_SECRET")
	if clientID != "" && secret != "" {
		client := tools.NewLegifranceClient(ctx, clientID, secret)
		registry.Register(tools.NewJuriTextTool(client))
		registry.Register(tools.NewCodeArticleTool(client))
	}

	var clients []*tools.MCPClient
	if len(config.MCPServers) > 0 {
		mcpTools, mcpClients, err := tools.LoadMCPTools(ctx, config.MCPServers)
		if err != nil {
			return nil, nil, err
		}
		for _, tool := range mcpTools {
			registry.Register(tool)
		}
		clients = mcpClients
	}

	return registry, clients, nil
}

// NewRuntime builds the runtime for config
func NewRuntime(ctx context.Context, config *Config, printer *Printer) (*Runtime, error) {
	table, err := loadPricing(config.PricingPath)
	if err != nil {
		return nil, err
	}

	registry, clients, err := buildRegistry(ctx, config, table, printer)
	if err != nil {
		return nil, err
	}

	client := llm.NewMultiPass(loadAPIKeys())
	router := tools.NewRouter(registry).WithTimeout(config.Timeout)

	rt := &Runtime{
		config:   config,
		table:    table,
		client:   client,
		registry: registry,
		agent:    llm.NewAgent(client, router, llm.AgentConfig{}),
		printer:  printer,
		mcp:      clients,
	}

	stats, err := store.Open(store.DefaultPath(dataDir(config)))
	if err != nil {
		// statistics are optional; turns still run without them
		zap.S().Debugw("stats_store_unavailable", "error", err)
	} else {
		rt.stats = stats
	}

	return rt, nil
}

// Close releases the MCP sessions and the statistics store
func (r *Runtime) Close() {
	for _, c := range r.mcp {
		if err := c.Close(); err != nil {
			zap.S().Debugw("mcp_close_failed", "error", err)
		}
	}
	if r.stats != nil {
		r.stats.Close()
	}
}

// RunTurn sends one user prompt through the agent and records the outcome
func (r *Runtime) RunTurn(ctx context.Context, sc *sessions.SessionContext, prompt string) (*llm.AgentResponse, error) {
	userMsg := sc.UserMessage(prompt)
	ledger := sc.BeginTurn()

	req := &llm.CompletionRequest{
		Timeout:     r.config.Timeout,
		Temperature: float32(r.config.Temperature),
		Model:       r.config.Model,
		MaxTokens:   r.config.MaxTokens,
		Messages:    append(sc.History(), userMsg),
	}

	resp, err := r.agent.Run(ctx, req, ledger, r.printer.Callbacks())
	if resp == nil {
		// nothing usable; the spend is still accounted
		sc.EndTurn()
		if userMsg.HasFiles() {
			sc.Files.ResetSent()
		}
		return nil, err
	}

	sc.Record(userMsg)
	sc.Record(resp.AllMessages...)
	turnLedger := sc.EndTurn()
	r.printer.Finish(resp, turnLedger, sc.CumulativeCost())

	if r.stats != nil && !errors.Is(err, llm.ErrMaxIterations) {
		r.recordTurn(ctx, sc, prompt, resp, turnLedger)
	}
	return resp, err
}

func (r *Runtime) recordTurn(ctx context.Context, sc *sessions.SessionContext, prompt string, resp *llm.AgentResponse, ledger *cost.Ledger) {
	in, out, searches := ledger.Totals()
	turn := &store.Turn{
		Session:       sc.Session.GetName(),
		Model:         r.config.Model,
		Question:      prompt,
		AnswerPreview: resp.Message.GetContent(),
		Cost:          ledger.Total(),
		InputTokens:   in,
		OutputTokens:  out,
		Searches:      searches,
	}
	if err := r.stats.RecordTurn(context.WithoutCancel(ctx), turn); err != nil {
		zap.S().Debugw("turn_record_failed", "error", err)
		return
	}
	if !r.config.Quiet {
		fmt.Fprintln(os.Stderr, dimStyle.Styled(fmt.Sprintf("Tour %s  (jurisearch vote %s up|down)", shortID(turn.ID), turn.ID)))
	}
}

// newSessionContext opens the session for the configured context
func newSessionContext(config *Config, session sessions.Session, table cost.Table) *sessions.SessionContext {
	provider, _, _ := llm.SplitModel(config.Model)
	uploader := sessions.UploaderFor(provider, os.Getenv("GEMINI_API_KEY"))
	return sessions.NewSessionContext(session, uploader, table)
}
