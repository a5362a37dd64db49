package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/alexschlessinger/jurisearch/internal/log"
	"github.com/alexschlessinger/jurisearch/llm"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:   "jurisearch",
		Usage:  "Legal research assistant backed by LLMs and sub-agent web search",
		Flags:  defineFlags(),
		Action: runCommand,
		Commands: []*cli.Command{
			statsCommand(),
			voteCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defineFlags() []cli.Flag {
	return []cli.Flag{
		// Model configuration
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Model to use (provider/model format)",
			Value:   defaultModel,
		},
		&cli.Float64Flag{
			Name:  "temp",
			Usage: "Temperature for sampling",
			Value: defaultTemperature,
		},
		&cli.IntFlag{
			Name:  "maxtokens",
			Usage: "Maximum tokens to generate",
			Value: defaultMaxTokens,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request and tool timeout",
			Value: defaultTimeout,
		},

		// Tool configuration
		&cli.StringSliceFlag{
			Name:  "mcp",
			Usage: "MCP server and arguments (can be specified multiple times)",
		},
		&cli.BoolFlag{
			Name:  "no-web-search",
			Usage: "Disable native web search and route searches through the sub-agent",
		},
		&cli.StringFlag{
			Name:  "pricing",
			Usage: "YAML pricing table overriding the built-in rates",
			Value: defaultPricing,
		},

		// Input configuration
		&cli.StringFlag{
			Name:    "prompt",
			Aliases: []string{"p"},
			Usage:   "Question to ask (skips interactive mode)",
		},
		&cli.StringFlag{
			Name:    "system",
			Aliases: []string{"s"},
			Usage:   "System prompt",
			Value:   defaultSystem,
		},
		&cli.StringSliceFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "PDF document to upload (can be specified multiple times)",
		},

		// Context configuration
		&cli.StringFlag{
			Name:    "context",
			Aliases: []string{"c"},
			Usage:   "Named context to persist the conversation in",
		},
		&cli.BoolFlag{
			Name:  "reset",
			Usage: "Clear the context before starting",
		},
		&cli.BoolFlag{
			Name:  "list",
			Usage: "List all contexts",
		},

		// Output configuration
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress tool progress and cost summaries",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug logging",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Write debug logs as JSON to this file",
			Value: defaultLogFile,
		},
	}
}

func runCommand(ctx context.Context, cmd *cli.Command) error {
	config := parseConfig(cmd)

	syncLog, err := log.InitLogger(log.Options{Debug: config.Debug, File: config.LogFile})
	if err != nil {
		return err
	}
	defer syncLog()
	if envFile != "" {
		log.Named("cli").Debugw("dotenv_loaded", "path", envFile)
	}

	initColors()

	provider, _, err := llm.SplitModel(config.Model)
	if err != nil {
		return err
	}

	store, err := setupSessionStore(config, systemPromptFor(config, provider))
	if err != nil {
		return err
	}
	if config.ListContexts {
		return handleListContexts(os.Stdout, store)
	}

	session, err := openSession(store, config, os.Stderr)
	if err != nil {
		return err
	}
	defer session.Close()

	printer := NewPrinter(os.Stdout, os.Stderr, config.Quiet)
	rt, err := NewRuntime(ctx, config, printer)
	if err != nil {
		return err
	}
	defer rt.Close()

	sc := newSessionContext(config, session, rt.table)
	if len(config.Files) > 0 {
		uploadCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		uploadFiles(uploadCtx, sc, config.Files)
		stop()
	}

	prompt := config.Prompt
	if prompt == "" && !isInteractiveInput() {
		input, err := readFromStdin()
		if err != nil {
			return err
		}
		prompt = strings.TrimSpace(input)
		if prompt == "" {
			return errors.New("no prompt provided on stdin")
		}
	}

	if prompt != "" {
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		_, err := rt.RunTurn(turnCtx, sc, prompt)
		return err
	}

	return runInteractiveMode(ctx, rt, sc)
}
