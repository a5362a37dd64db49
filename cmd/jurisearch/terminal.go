package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	// termenv output for consistent terminal styling
	output = termenv.NewOutput(os.Stdout)

	// Style helpers - initialized in initColors()
	highlightStyle termenv.Style
	errorStyle     termenv.Style
	successStyle   termenv.Style
	dimStyle       termenv.Style
	boldStyle      termenv.Style
	toolStyle      termenv.Style
	citationStyle  termenv.Style
)

// initColors initializes color styles based on terminal background
func initColors() {
	if termenv.HasDarkBackground() {
		highlightStyle = output.String().Foreground(output.Color("179")).Bold() // Muted yellow
		errorStyle = output.String().Foreground(output.Color("124"))            // Muted red
		successStyle = output.String().Foreground(output.Color("65"))           // Muted green
		dimStyle = output.String().Faint()
		boldStyle = output.String().Bold()
		toolStyle = output.String().Foreground(output.Color("141")) // Muted purple
		citationStyle = output.String().Foreground(output.Color("32"))
	} else {
		highlightStyle = output.String().Foreground(output.Color("136")).Bold() // Dark orange/brown
		errorStyle = output.String().Foreground(output.Color("160"))            // Dark red
		successStyle = output.String().Foreground(output.Color("28"))           // Dark green
		dimStyle = output.String().Foreground(output.Color("240"))
		boldStyle = output.String().Bold()
		toolStyle = output.String().Foreground(output.Color("90")) // Dark purple
		citationStyle = output.String().Foreground(output.Color("26"))
	}
}

// promptYesNo asks a yes/no question through the line editor, restoring its prompt afterwards
func promptYesNo(rl *readline.Instance, prompt string, defaultValue bool) bool {
	suffix := " (o/N): "
	if defaultValue {
		suffix = " (O/n): "
	}

	previous := rl.Config.Prompt
	rl.SetPrompt(prompt + suffix)
	defer rl.SetPrompt(previous)

	response, err := rl.Readline()
	if err != nil {
		return false
	}
	return parseYesNo(response, defaultValue)
}

// parseYesNo accepts English and French answers; empty means defaultValue
func parseYesNo(response string, defaultValue bool) bool {
	response = strings.TrimSpace(strings.ToLower(response))
	if response == "" {
		return defaultValue
	}
	return response == "y" || response == "yes" || response == "o" || response == "oui"
}

// isInteractiveInput reports whether stdin is a terminal
func isInteractiveInput() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readFromStdin reads all lines from stdin and joins them with newlines
func readFromStdin() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading stdin: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
