package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alexschlessinger/jurisearch/llm"
	"github.com/alexschlessinger/jurisearch/messages"
	"github.com/alexschlessinger/jurisearch/sessions"
	"github.com/chzyer/readline"
)

// errExit ends the interactive loop
var errExit = errors.New("exit")

// completionModels are offered after /model
var completionModels = []string{
	"anthropic/claude-sonnet-4-20250514",
	"anthropic/claude-3-5-haiku-latest",
	"gemini/gemini-2.5-flash",
	"gemini/gemini-2.5-pro",
	"grok/grok-3",
	"grok/grok-3-mini",
}

// runInteractiveMode reads prompts with readline until EOF or /exit. Ctrl-C
// at the prompt clears the line; during a turn it cancels that turn only.
func runInteractiveMode(ctx context.Context, rt *Runtime, sc *sessions.SessionContext) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          highlightStyle.Styled("> "),
		HistoryFile:     historyFilePath(rt.config, sc.Session.GetName()),
		AutoComplete:    createAutoCompleter(sc),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return fmt.Errorf("failed to start line editor: %w", err)
	}
	defer rl.Close()

	printWelcomeMessage(rt.config, sc)
	if showRecentHistory(os.Stdout, sc.History()) {
		fmt.Println("\n─── Resuming context ───")
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		input, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(os.Stderr, dimStyle.Styled("Use /exit or Ctrl-D to quit"))
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			err := handleInteractiveCommand(ctx, input, rt, sc, rl)
			if errors.Is(err, errExit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Styled(err.Error()))
			}
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		_, err = rt.RunTurn(turnCtx, sc, input)
		interrupted := turnCtx.Err() != nil && ctx.Err() == nil
		stop()

		switch {
		case interrupted:
			fmt.Fprintln(os.Stderr, dimStyle.Styled("\n(interrompu)"))
		case errors.Is(err, llm.ErrMaxIterations):
			fmt.Fprintln(os.Stderr, errorStyle.Styled("Trop d'appels d'outils, réponse partielle."))
		case err != nil:
			fmt.Fprintln(os.Stderr, errorStyle.Styled("Error: "+err.Error()))
		}
	}
}

// historyFilePath keeps one readline history per context under the data dir
func historyFilePath(config *Config, contextName string) string {
	dir := filepath.Join(dataDir(config), "history")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	if contextName == "" {
		contextName = defaultContextName
	}
	return filepath.Join(dir, contextName)
}

// createAutoCompleter completes slash commands, model names and file IDs
func createAutoCompleter(sc *sessions.SessionContext) *readline.PrefixCompleter {
	models := make([]readline.PrefixCompleterInterface, len(completionModels))
	for i, m := range completionModels {
		models[i] = readline.PcItem(m)
	}
	fileIDs := func(string) []string {
		var ids []string
		for _, h := range sc.Files.List() {
			ids = append(ids, shortID(h.ID))
		}
		return ids
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("/exit"),
		readline.PcItem("/quit"),
		readline.PcItem("/reset"),
		readline.PcItem("/file"),
		readline.PcItem("/files"),
		readline.PcItem("/remove", readline.PcItemDynamic(fileIDs)),
		readline.PcItem("/resend"),
		readline.PcItem("/model", models...),
		readline.PcItem("/cost"),
		readline.PcItem("/history"),
		readline.PcItem("/help"),
	)
}

// filterInput drops Ctrl-Z so it cannot suspend the raw-mode terminal
func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

// handleInteractiveCommand processes slash commands
func handleInteractiveCommand(ctx context.Context, input string, rt *Runtime, sc *sessions.SessionContext, rl *readline.Instance) error {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/exit", "/quit", "/q":
		return errExit

	case "/reset":
		if sc.Files.Len() > 0 && !promptYesNo(rl, "Supprimer aussi les fichiers envoyés ?", true) {
			return nil
		}
		sc.Clear(ctx)
		fmt.Fprintln(os.Stderr, successStyle.Styled("Conversation reset."))

	case "/file", "/f":
		if len(args) == 0 {
			return fmt.Errorf("usage: /file <path.pdf> [...]")
		}
		uploadFiles(ctx, sc, args)

	case "/files", "/ls":
		fmt.Fprint(os.Stderr, formatFiles(sc.Files.List()))

	case "/remove", "/rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: /remove <id>")
		}
		id, ok := resolveFileID(sc.Files.List(), args[0])
		if !ok || !sc.RemoveFile(ctx, id) {
			return fmt.Errorf("no file matches '%s'", args[0])
		}
		fmt.Fprintln(os.Stderr, successStyle.Styled("File removed."))

	case "/resend":
		sc.Files.ResetSent()
		fmt.Fprintln(os.Stderr, "All files will be included in the next message.")

	case "/model", "/m":
		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Current model: %s\n", rt.config.Model)
			return nil
		}
		if _, _, err := llm.SplitModel(args[0]); err != nil {
			return err
		}
		rt.config.Model = args[0]
		if err := sc.Session.UpdateMetadata(&sessions.Metadata{Model: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Switched to model: %s\n", rt.config.Model)

	case "/cost":
		fmt.Fprintf(os.Stderr, "Session: %s $\n", formatCost(sc.CumulativeCost()))

	case "/history", "/h":
		if !showRecentHistory(os.Stdout, sc.History()) {
			fmt.Fprintln(os.Stderr, "No conversation history.")
		}

	case "/help", "/?":
		printInteractiveHelp()

	default:
		return fmt.Errorf("unknown command: %s (use /help for available commands)", parts[0])
	}
	return nil
}

// uploadFiles uploads paths and reports each failure without stopping
func uploadFiles(ctx context.Context, sc *sessions.SessionContext, paths []string) {
	handles, err := sc.UploadAll(ctx, paths)
	for _, h := range handles {
		if h != nil {
			fmt.Fprintln(os.Stderr, successStyle.Styled(fmt.Sprintf("Uploaded %s (%s)", h.DisplayName, shortID(h.ID))))
		}
	}
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintln(os.Stderr, errorStyle.Styled(line))
		}
	}
}

// resolveFileID matches a full ID or a unique ID prefix
func resolveFileID(handles []sessions.UploadedFileHandle, prefix string) (string, bool) {
	var match string
	for _, h := range handles {
		if h.ID == prefix {
			return h.ID, true
		}
		if strings.HasPrefix(h.ID, prefix) {
			if match != "" {
				return "", false
			}
			match = h.ID
		}
	}
	return match, match != ""
}

// printWelcomeMessage prints the interactive mode welcome message
func printWelcomeMessage(config *Config, sc *sessions.SessionContext) {
	fmt.Println(boldStyle.Styled("jurisearch") + " - /help pour les commandes")
	fmt.Printf("Model: %s\n", highlightStyle.Styled(config.Model))
	fmt.Printf("Context: %s\n", highlightStyle.Styled(sc.Session.GetName()))
	fmt.Printf("Temperature: %s\n", highlightStyle.Styled(fmt.Sprintf("%.1f", config.Temperature)))
	fmt.Printf("Max Tokens: %s\n", highlightStyle.Styled(fmt.Sprintf("%d", config.MaxTokens)))
	if n := sc.Files.Len(); n > 0 {
		fmt.Printf("Files: %s\n", highlightStyle.Styled(fmt.Sprintf("%d", n)))
	}
	fmt.Println()
}

// printInteractiveHelp prints help for interactive commands
func printInteractiveHelp() {
	help := `
Interactive Mode Commands:
─────────────────────────
  /exit, /quit       Exit interactive mode
  /reset             Reset conversation history and files
  /file <path.pdf>   Upload one or more PDFs
  /files             List uploaded files
  /remove <id>       Remove an uploaded file
  /resend            Include every file in the next message
  /model <name>      Switch to a different model
  /cost              Show the cumulative session cost
  /history           Show recent conversation history
  /help              Show this help message
`
	fmt.Println(help)
}

// formatConversation formats conversation history for display
func formatConversation(history []messages.ChatMessage) string {
	var builder strings.Builder
	for _, msg := range history {
		content := msg.GetContent()
		if content == "" {
			continue
		}
		fmt.Fprintf(&builder, "=== %s ===\n%s\n\n", msg.Role, content)
	}
	return builder.String()
}

// showRecentHistory displays the user and assistant turns (up to 25 lines)
func showRecentHistory(w io.Writer, history []messages.ChatMessage) bool {
	var visible []messages.ChatMessage
	for _, msg := range history {
		if msg.Role == messages.MessageRoleUser || msg.Role == messages.MessageRoleAssistant {
			visible = append(visible, msg)
		}
	}
	formatted := formatConversation(visible)
	if formatted == "" {
		return false
	}

	lines := strings.Split(formatted, "\n")
	if len(lines) > 25 {
		fmt.Fprintln(w, "...")
		formatted = strings.Join(lines[len(lines)-25:], "\n")
	}
	fmt.Fprint(w, formatted)
	return true
}
