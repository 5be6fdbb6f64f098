// Package config handles loading and validation of the global and
// per-project configuration files for boardroom.
package config

import "github.com/leandrotocalini/boardroom/internal/agent"

// Provider names accepted in ProjectConfig.Provider.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// Storage drivers accepted in StorageConfig.Driver.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// DefaultModel is the model every advisor uses unless configured otherwise.
const DefaultModel = "gemini-2.5-pro"

// GlobalConfig holds secrets loaded from ~/.boardroom/config.json.
// This file is never committed to git.
type GlobalConfig struct {
	Gemini     GlobalGemini     `json:"gemini"`
	OpenRouter GlobalOpenRouter `json:"openrouter"`
	Slack      GlobalSlack      `json:"slack"`
}

type GlobalGemini struct {
	APIKey string `json:"apiKey"`
}

type GlobalOpenRouter struct {
	APIKey string `json:"apiKey"`
}

type GlobalSlack struct {
	BotToken string `json:"botToken"` // xoxb- Bot User OAuth Token
	AppToken string `json:"appToken"` // xapp- App-Level Token (Socket Mode)
}

// ProjectConfig holds per-project settings loaded from
// <project>/.boardroom/config.json. This file may be committed.
type ProjectConfig struct {
	Provider string         `json:"provider,omitempty"` // default "gemini"
	Models   ModelsConfig   `json:"models"`
	Storage  StorageConfig  `json:"storage"`
	Web      WebConfig      `json:"web"`
	Bot      BotConfig      `json:"bot"`
	Slack    SlackConfig    `json:"slack,omitempty"`
	WhatsApp WhatsAppConfig `json:"whatsapp,omitempty"`
	Limits   LimitsConfig   `json:"limits"`
}

// ModelsConfig picks the model each advisor is asked with.
type ModelsConfig struct {
	Default   string            `json:"default,omitempty"`
	CTO       *AgentModelConfig `json:"cto,omitempty"`
	CMO       *AgentModelConfig `json:"cmo,omitempty"`
	CFO       *AgentModelConfig `json:"cfo,omitempty"`
	Architect *AgentModelConfig `json:"architect,omitempty"`
}

// AgentModelConfig overrides the model for a single advisor.
type AgentModelConfig struct {
	Model string `json:"model"`
}

// For returns the model configured for id, falling back to the default.
func (m ModelsConfig) For(id agent.Identity) string {
	var c *AgentModelConfig
	switch id {
	case agent.CTO:
		c = m.CTO
	case agent.CMO:
		c = m.CMO
	case agent.CFO:
		c = m.CFO
	case agent.Architect:
		c = m.Architect
	}
	if c != nil && c.Model != "" {
		return c.Model
	}
	if m.Default != "" {
		return m.Default
	}
	return DefaultModel
}

// StorageConfig selects where ideas and transcripts live.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"` // "sqlite" (default) or "file"
	Path   string `json:"path,omitempty"`   // relative to the project root
}

type WebConfig struct {
	Addr string `json:"addr,omitempty"` // default "127.0.0.1:8080"
}

// BotConfig controls the chat-command front-end.
type BotConfig struct {
	Prefix       string `json:"prefix,omitempty"`       // default "!"
	DefaultAgent string `json:"defaultAgent,omitempty"` // default "cto"
	// RedactPatterns are extra regular expressions scrubbed from replies.
	RedactPatterns []string `json:"redactPatterns,omitempty"`
}

// SlackConfig is the per-project Slack config (channel ID only).
// Tokens live in the global config.
type SlackConfig struct {
	ChannelID string `json:"channelID"`
}

type WhatsAppConfig struct {
	Enabled    bool   `json:"enabled"`
	GroupJID   string `json:"groupJID,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
}

// LimitsConfig controls concurrency, request timeouts and spend.
type LimitsConfig struct {
	MaxConcurrentChats int     `json:"maxConcurrentChats,omitempty"`
	RequestTimeoutSecs int     `json:"requestTimeoutSecs,omitempty"` // default 120
	DailyBudgetUSD     float64 `json:"dailyBudgetUSD,omitempty"`     // 0 = unlimited
}

// Config is the fully merged configuration from global + project sources.
type Config struct {
	Global  GlobalConfig
	Project ProjectConfig

	// Root is the project root: the directory holding .boardroom/, or the
	// start directory when none was found.
	Root string
}

// applyDefaults fills zero values with the built-in defaults.
func applyDefaults(p *ProjectConfig) {
	if p.Provider == "" {
		p.Provider = ProviderGemini
	}
	if p.Models.Default == "" {
		p.Models.Default = DefaultModel
	}
	if p.Storage.Driver == "" {
		p.Storage.Driver = StorageSQLite
	}
	if p.Web.Addr == "" {
		p.Web.Addr = "127.0.0.1:8080"
	}
	if p.Bot.Prefix == "" {
		p.Bot.Prefix = "!"
	}
	if p.Bot.DefaultAgent == "" {
		p.Bot.DefaultAgent = string(agent.CTO)
	}
	if p.WhatsApp.DeviceName == "" {
		p.WhatsApp.DeviceName = "Boardroom"
	}
	if p.Limits.RequestTimeoutSecs == 0 {
		p.Limits.RequestTimeoutSecs = 120
	}
}

// Default returns a project config with every default applied.
func Default() ProjectConfig {
	var p ProjectConfig
	applyDefaults(&p)
	return p
}
