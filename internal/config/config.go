// Package config handles concierge configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/concierge/config.yaml, /etc/concierge/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "concierge", "config.yaml"))
	}

	paths = append(paths, "/etc/concierge/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all concierge configuration.
type Config struct {
	Listen       ListenConfig       `yaml:"listen"`
	Models       ModelsConfig       `yaml:"models"`
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	Sampling     SamplingConfig     `yaml:"sampling"`
	Conversation ConversationConfig `yaml:"conversation"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	MercadoPago  MercadoPagoConfig  `yaml:"mercadopago"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	GitHub       GitHubConfig       `yaml:"github"`
	DataDir      string             `yaml:"data_dir"`
	PersonaFile  string             `yaml:"persona_file"`
	ReportURL    string             `yaml:"report_url"`
	LogLevel     string             `yaml:"log_level"`
	LogFormat    string             `yaml:"log_format"`
	LogPhones    bool               `yaml:"log_phones"`
}

// ListenConfig defines the inbound API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ModelsConfig defines which models serve each phase of a turn.
type ModelsConfig struct {
	// Default answers the decision call.
	Default string `yaml:"default"`
	// Synthesis phrases tool results. Empty means Default.
	Synthesis string        `yaml:"synthesis"`
	OllamaURL string        `yaml:"ollama_url"`
	Available []ModelConfig `yaml:"available"`
	// TimeoutSec bounds each individual LLM call.
	TimeoutSec int `yaml:"timeout_sec"`
}

// ModelConfig maps a model name to its provider.
type ModelConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"` // ollama, anthropic
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether an API key is present.
func (c AnthropicConfig) Configured() bool {
	return c.APIKey != ""
}

// SamplingConfig holds the fixed, low-randomness sampling parameters
// used for every LLM call.
type SamplingConfig struct {
	Temperature *float64 `yaml:"temperature"` // nil means 0.4; 0 is kept
	TopP        float64  `yaml:"top_p"`
	TopK        int      `yaml:"top_k"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// ConversationConfig bounds stored and replayed history.
type ConversationConfig struct {
	// Window is the maximum number of history entries kept per
	// conversation. Each turn adds two (user text and reply).
	Window int `yaml:"window"`
}

// WhatsAppConfig points at the messaging bridge.
type WhatsAppConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Timeout returns the delivery timeout as a duration.
func (c WhatsAppConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// MercadoPagoConfig defines the payment provider settings.
type MercadoPagoConfig struct {
	AccessToken string `yaml:"access_token"`
	APIURL      string `yaml:"api_url"`
	// SiteURL is the public base URL used to build the back_urls and
	// notification_url sent with every checkout preference.
	SiteURL  string `yaml:"site_url"`
	Currency string `yaml:"currency"`
}

// Configured reports whether an access token is present.
func (c MercadoPagoConfig) Configured() bool {
	return c.AccessToken != ""
}

// MQTTConfig defines the optional operator alert channel.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. mqtt://localhost:1883, mqtts://host:8883
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Configured reports whether a broker is set.
func (c MQTTConfig) Configured() bool {
	return c.Broker != ""
}

// GitHubConfig defines the optional issue-filing alert channel.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Repo  string `yaml:"repo"`  // owner/name
	URL   string `yaml:"url"`   // GitHub Enterprise base URL; empty means github.com
	Label string `yaml:"label"` // applied to filed issues
}

// Configured reports whether a token and repository are set.
func (c GitHubConfig) Configured() bool {
	return c.Token != "" && c.Repo != ""
}

// Load reads configuration from a YAML file. Environment variables in
// the form ${VAR} are expanded before parsing, so secrets can stay in
// the environment (or a .env file loaded by the caller).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.PersonaFile = expandHome(cfg.PersonaFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8000
	}
	if c.DataDir == "" {
		c.DataDir = "./db"
	}
	if c.Models.Default == "" {
		c.Models.Default = "qwen3:4b"
	}
	if c.Models.OllamaURL == "" {
		c.Models.OllamaURL = "http://localhost:11434"
	}
	if c.Models.TimeoutSec == 0 {
		c.Models.TimeoutSec = 60
	}
	for i := range c.Models.Available {
		if c.Models.Available[i].Provider == "" {
			c.Models.Available[i].Provider = "ollama"
		}
	}
	if c.Sampling.Temperature == nil {
		t := 0.4
		c.Sampling.Temperature = &t
	}
	if c.Sampling.TopP == 0 {
		c.Sampling.TopP = 0.95
	}
	if c.Sampling.TopK == 0 {
		c.Sampling.TopK = 20
	}
	if c.Sampling.MaxTokens == 0 {
		c.Sampling.MaxTokens = 1024
	}
	if c.Conversation.Window == 0 {
		c.Conversation.Window = 10
	}
	if c.WhatsApp.BaseURL == "" {
		c.WhatsApp.BaseURL = "http://localhost:8080"
	}
	if c.WhatsApp.TimeoutSec == 0 {
		c.WhatsApp.TimeoutSec = 15
	}
	if c.MercadoPago.APIURL == "" {
		c.MercadoPago.APIURL = "https://api.mercadopago.com"
	}
	if c.MercadoPago.Currency == "" {
		c.MercadoPago.Currency = "BRL"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "concierge/alerts"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "concierge"
	}
	if c.GitHub.Label == "" {
		c.GitHub.Label = "concierge-alert"
	}
	if c.ReportURL == "" {
		c.ReportURL = "https://github.com/hugodavilat/cenourinhas/issues"
	}
}

// Validate checks the configuration for values that would fail at
// runtime. It is called by Load after defaults are applied.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	if c.Conversation.Window < 2 {
		errs = append(errs, fmt.Errorf("conversation.window %d must be at least 2", c.Conversation.Window))
	}
	if t := c.Sampling.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("sampling.temperature %.2f out of range [0, 2]", *t))
	}
	if c.GitHub.Repo != "" {
		if owner, name, ok := strings.Cut(c.GitHub.Repo, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			errs = append(errs, fmt.Errorf("github.repo %q must be owner/name", c.GitHub.Repo))
		}
	}
	for _, m := range c.Models.Available {
		switch m.Provider {
		case "ollama", "anthropic":
		default:
			errs = append(errs, fmt.Errorf("model %q: unknown provider %q", m.Name, m.Provider))
		}
	}
	return errors.Join(errs...)
}

// SynthesisModel returns the model used for the synthesis call.
func (c *Config) SynthesisModel() string {
	if c.Models.Synthesis != "" {
		return c.Models.Synthesis
	}
	return c.Models.Default
}
