package main

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// Default values from environment variables. envFile is declared first so
// the .env file is loaded before the defaults read the environment.
var (
	envFile = loadDotEnv()

	defaultModel       = getEnvOrDefault("JURISEARCH_MODEL", "anthropic/claude-sonnet-4-20250514")
	defaultSystem      = getEnvOrDefault("JURISEARCH_SYSTEM", "")
	defaultTemperature = getEnvFloat("JURISEARCH_TEMP", 0.3)
	defaultMaxTokens   = getEnvInt("JURISEARCH_MAXTOKENS", 3000)
	defaultTimeout     = getEnvDuration("JURISEARCH_TIMEOUT", 2*time.Minute)
	defaultPricing     = getEnvOrDefault("JURISEARCH_PRICING", "")
	defaultDataDir     = getEnvOrDefault("JURISEARCH_DATA_DIR", "")
	defaultLogFile     = getEnvOrDefault("JURISEARCH_LOG_FILE", "")
)

// anthropicSystemPrompt is used with Claude, which searches the web natively
const anthropicSystemPrompt = "Tu es un expert juridique français. Réponds de façon précise en citant " +
	"les textes applicables (codes, lois, jurisprudence). Appuie-toi sur les sources officielles " +
	"et signale clairement toute incertitude."

// routingSystemPrompt tells the model when to delegate to the sub-agent search
const routingSystemPrompt = "Tu es un expert juridique français. Tu peux analyser des documents PDF " +
	"et répondre aux questions les concernant.\n\n" +
	"RÈGLES DE RECHERCHE :\n" +
	"1. Salutation, politesse ou remerciement : réponds directement sans outil.\n" +
	"2. Question sans document uploadé nécessitant des informations d'internet, ou portant sur des " +
	"articles de loi, de la jurisprudence ou de la réglementation : utilise 'perplexity_direct_search'.\n" +
	"3. Question sur un document uploadé nécessitant des informations complémentaires : utilise " +
	"'perplexity_help_search' et intègre le résultat dans ta synthèse.\n\n" +
	"Ne mentionne jamais ces outils dans tes réponses."

// Config holds all configuration from command-line flags
type Config struct {
	// Model configuration
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// Context configuration
	ContextID    string
	ResetContext bool
	ListContexts bool
	DataDir      string

	// Tool configuration
	MCPServers  []string
	NoWebSearch bool
	PricingPath string

	// Input/Output configuration
	Prompt             string
	SystemPrompt       string
	SystemPromptWasSet bool
	Files              []string
	Quiet              bool
	Debug              bool
	LogFile            string
}

// Environment variable parsing functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// findDotEnv walks up from dir looking for a .env file
func findDotEnv(dir string) string {
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadDotEnv loads the nearest .env without overriding the environment and
// returns its path
func loadDotEnv() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	path := findDotEnv(cwd)
	if path == "" {
		return ""
	}
	if err := godotenv.Load(path); err != nil {
		zap.S().Debugw("dotenv_load_failed", "path", path, "error", err)
		return ""
	}
	return path
}

// loadAPIKeys loads provider API keys from environment variables
func loadAPIKeys() map[string]string {
	return map[string]string{
		"anthropic": os.Getenv("ANTHROPIC_API_KEY"),
		"gemini":    os.Getenv("GEMINI_API_KEY"),
		"xai":       os.Getenv("XAI_API_KEY"),
	}
}

// dataDir returns the directory holding contexts and the statistics database
func dataDir(config *Config) string {
	if config.DataDir != "" {
		return config.DataDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".jurisearch"
	}
	return filepath.Join(homeDir, ".jurisearch")
}

// systemPromptFor picks the default prompt for the provider unless one was given
func systemPromptFor(config *Config, provider string) string {
	if config.SystemPrompt != "" {
		return config.SystemPrompt
	}
	if provider == "anthropic" && !config.NoWebSearch {
		return anthropicSystemPrompt
	}
	return routingSystemPrompt
}

// parseConfig extracts configuration from command-line flags
func parseConfig(cmd *cli.Command) *Config {
	return &Config{
		Model:       cmd.String("model"),
		Temperature: cmd.Float64("temp"),
		MaxTokens:   cmd.Int("maxtokens"),
		Timeout:     cmd.Duration("timeout"),

		ContextID:    cmd.String("context"),
		ResetContext: cmd.Bool("reset"),
		ListContexts: cmd.Bool("list"),
		DataDir:      defaultDataDir,

		MCPServers:  cmd.StringSlice("mcp"),
		NoWebSearch: cmd.Bool("no-web-search"),
		PricingPath: cmd.String("pricing"),

		Prompt:             cmd.String("prompt"),
		SystemPrompt:       cmd.String("system"),
		SystemPromptWasSet: cmd.IsSet("system"),
		Files:              cmd.StringSlice("file"),
		Quiet:              cmd.Bool("quiet"),
		Debug:              cmd.Bool("debug"),
		LogFile:            cmd.String("log-file"),
	}
}
