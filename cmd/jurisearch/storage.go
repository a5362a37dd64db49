package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/alexschlessinger/jurisearch/sessions"
)

// defaultContextName names the in-memory session used without --context
const defaultContextName = "default"

// needsFileStore determines if we need a file-based session store
func needsFileStore(config *Config) bool {
	return config.ContextID != "" || config.ResetContext || config.ListContexts
}

// setupSessionStore creates the appropriate session store based on configuration
func setupSessionStore(config *Config, systemPrompt string) (sessions.SessionStore, error) {
	defaults := &sessions.Metadata{
		Model:        config.Model,
		SystemPrompt: systemPrompt,
		Temperature:  config.Temperature,
		MaxTokens:    config.MaxTokens,
		MaxHistory:   sessions.DefaultMaxHistory,
	}

	if needsFileStore(config) {
		store, err := sessions.NewFileSessionStore(filepath.Join(dataDir(config), "contexts"), defaults)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return sessions.NewSyncMapSessionStore(defaults), nil
}

// openSession gets the configured context, applying stored settings the
// command line did not override
func openSession(store sessions.SessionStore, config *Config, errW io.Writer) (sessions.Session, error) {
	name := config.ContextID
	if name == "" {
		name = defaultContextName
	}

	session, err := store.Get(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open context '%s': %w", name, err)
	}

	md := session.GetMetadata()
	if config.Model == defaultModel && md.Model != "" {
		config.Model = md.Model
	}
	if config.Temperature == defaultTemperature && md.Temperature != 0 {
		config.Temperature = md.Temperature
	}
	if config.MaxTokens == defaultMaxTokens && md.MaxTokens != 0 {
		config.MaxTokens = md.MaxTokens
	}

	update := &sessions.Metadata{
		Model:       config.Model,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
	}
	if config.SystemPromptWasSet && config.SystemPrompt != md.SystemPrompt {
		update.SystemPrompt = config.SystemPrompt
	}
	if err := session.UpdateMetadata(update); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to save context settings: %w", err)
	}

	switch {
	case config.ResetContext:
		session.Clear()
		if !config.Quiet {
			fmt.Fprintf(errW, "Context '%s' reset\n", name)
		}
	case update.SystemPrompt != "" && len(session.GetHistory()) > 1:
		fmt.Fprintln(errW, "System prompt changed, resetting conversation...")
		session.Clear()
	case update.SystemPrompt != "":
		session.Clear()
	}

	return session, nil
}

// handleListContexts lists all available contexts, most recent first
func handleListContexts(w io.Writer, store sessions.SessionStore) error {
	all := store.GetAllMetadata()
	if len(all) == 0 {
		fmt.Fprintln(w, "No contexts found")
		return nil
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return all[names[i]].LastUsed.After(all[names[j]].LastUsed)
	})

	last := store.GetLast()
	for _, name := range names {
		md := all[name]
		marker := ""
		if name == last {
			marker = " *"
		}
		modelInfo := ""
		if md.Model != "" {
			modelInfo = fmt.Sprintf(" [%s]", md.Model)
		}
		fmt.Fprintf(w, "%s%s - %d turns, %s $ - last used: %s%s\n",
			name, modelInfo, md.Turns, formatCost(md.TotalCost), formatDuration(time.Since(md.LastUsed)), marker)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}

func formatCost(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
