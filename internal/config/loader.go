package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

const boardroomDir = ".boardroom"
const configFile = "config.json"

// envVarPattern matches ${VAR_NAME} references in string values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads both global (~/.boardroom/config.json) and project
// (.boardroom/config.json) configuration files and returns the merged result.
// It walks up from startDir to find the project root (the directory
// containing .boardroom/). Both files are optional. globalDir overrides the
// default ~/.boardroom/ location (useful for testing).
//
// A .env file in the project root is loaded first; variables already set in
// the environment win.
func Load(startDir, globalDir string) (*Config, error) {
	root, err := findProjectRoot(startDir)
	if err != nil {
		return nil, fmt.Errorf("find project root: %w", err)
	}

	if err := loadDotEnv(filepath.Join(root, ".env")); err != nil {
		return nil, err
	}

	if globalDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		globalDir = filepath.Join(home, boardroomDir)
	}

	cfg := Config{Root: root}

	globalPath := filepath.Join(globalDir, configFile)
	if err := loadJSON(globalPath, &cfg.Global); err != nil {
		return nil, fmt.Errorf("load global config %s: %w", globalPath, err)
	}

	projectPath := filepath.Join(root, boardroomDir, configFile)
	if err := loadJSON(projectPath, &cfg.Project); err != nil {
		return nil, fmt.Errorf("load project config %s: %w", projectPath, err)
	}

	applyEnvFallbacks(&cfg.Global)
	applyDefaults(&cfg.Project)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// findProjectRoot walks up the directory tree from startDir looking for a
// directory that contains a .boardroom/ subdirectory. When there is none the
// absolute startDir is the root.
func findProjectRoot(startDir string) (string, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := start
	for {
		info, err := os.Stat(filepath.Join(dir, boardroomDir))
		if err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadJSON reads a JSON file, resolves ${VAR} references, and unmarshals it
// into dest. A missing file leaves dest untouched.
func loadJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	resolved := resolveEnvVars(string(data))

	if err := json.Unmarshal([]byte(resolved), dest); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}

	return nil
}

// resolveEnvVars replaces all ${VAR_NAME} patterns in s with the
// corresponding environment variable values. Unset variables resolve to "".
func resolveEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // strip ${ and }
		return os.Getenv(varName)
	})
}

// applyEnvFallbacks fills secrets that the global file left empty.
func applyEnvFallbacks(g *GlobalConfig) {
	if g.Gemini.APIKey == "" {
		g.Gemini.APIKey = firstEnv("GEMINI_API_KEY", "NEXT_PUBLIC_GEMINI_API_KEY")
	}
	if g.OpenRouter.APIKey == "" {
		g.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if g.Slack.BotToken == "" {
		g.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if g.Slack.AppToken == "" {
		g.Slack.AppToken = os.Getenv("SLACK_APP_TOKEN")
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// validate checks that all required fields are present and every enum
// value is known. All problems are reported at once.
func validate(cfg *Config) error {
	var errs []string

	switch cfg.Project.Provider {
	case ProviderGemini:
		if cfg.Global.Gemini.APIKey == "" {
			errs = append(errs, "global: gemini.apiKey is required (or set GEMINI_API_KEY)")
		}
	case ProviderOpenRouter:
		if cfg.Global.OpenRouter.APIKey == "" {
			errs = append(errs, "global: openrouter.apiKey is required (or set OPENROUTER_API_KEY)")
		}
	default:
		errs = append(errs, fmt.Sprintf("project: provider %q is not one of gemini, openrouter", cfg.Project.Provider))
	}

	switch cfg.Project.Storage.Driver {
	case StorageSQLite, StorageFile:
	default:
		errs = append(errs, fmt.Sprintf("project: storage.driver %q is not one of sqlite, file", cfg.Project.Storage.Driver))
	}

	if _, err := agent.Parse(cfg.Project.Bot.DefaultAgent); err != nil {
		errs = append(errs, fmt.Sprintf("project: bot.defaultAgent: %v", err))
	}

	for _, p := range cfg.Project.Bot.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Sprintf("project: bot.redactPatterns: %v", err))
		}
	}

	if cfg.Project.Slack.ChannelID != "" {
		if cfg.Global.Slack.BotToken == "" {
			errs = append(errs, "global: slack.botToken is required when slack.channelID is set")
		}
		if cfg.Global.Slack.AppToken == "" {
			errs = append(errs, "global: slack.appToken is required when slack.channelID is set")
		}
	}

	if cfg.Project.Limits.MaxConcurrentChats < 0 {
		errs = append(errs, "project: limits.maxConcurrentChats must not be negative")
	}
	if cfg.Project.Limits.RequestTimeoutSecs < 0 {
		errs = append(errs, "project: limits.requestTimeoutSecs must not be negative")
	}
	if cfg.Project.Limits.DailyBudgetUSD < 0 {
		errs = append(errs, "project: limits.dailyBudgetUSD must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ProjectRoot returns the project root directory for the given start
// directory. Useful when callers need the path without loading the full
// config.
func ProjectRoot(startDir string) (string, error) {
	return findProjectRoot(startDir)
}
