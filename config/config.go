// Package config loads the agentbridge YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentbridge/logging"
)

// Config is the root configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog"`
	ToolServer ToolServerConfig `yaml:"toolserver"`
	Agent      AgentConfig      `yaml:"agent"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CatalogConfig configures the REST catalog service and its clients.
type CatalogConfig struct {
	Addr string `yaml:"addr"`
	// Store is memory or sqlite.
	Store      string `yaml:"store"`
	SQLitePath string `yaml:"sqlite_path"`
	// BaseURL is where tools and agents reach the catalog API.
	BaseURL string `yaml:"base_url"`
}

// ToolServerConfig configures the MCP tool provider.
type ToolServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Transport is stdio or http.
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
	Path      string `yaml:"path"`
}

// AgentConfig configures the A2A agent server.
type AgentConfig struct {
	// Kind is wrapper or model.
	Kind        string `yaml:"kind"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Addr        string `yaml:"addr"`
	PublicURL   string `yaml:"public_url"`
	// ToolsURL points the model agent at a remote MCP server. When empty the
	// catalog tools run in process.
	ToolsURL string      `yaml:"tools_url"`
	Model    ModelConfig `yaml:"model"`
}

// ModelConfig configures the language model of a model agent.
type ModelConfig struct {
	// Provider is openai or anthropic.
	Provider      string  `yaml:"provider"`
	Name          string  `yaml:"name"`
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int64   `yaml:"max_tokens"`
	Instruction   string  `yaml:"instruction"`
	MaxIterations int     `yaml:"max_iterations"`
	MaxHistory    int     `yaml:"max_history"`
}

// LoggingConfig configures logging.New.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Backend string `yaml:"backend"`
}

// Default returns a configuration that runs everything on localhost.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads, expands and validates a YAML file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands environment references, applies defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(ExpandEnv(string(data)))))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	setDefault(&c.Catalog.Addr, ":8080")
	setDefault(&c.Catalog.Store, "memory")
	setDefault(&c.Catalog.SQLitePath, "catalog.db")
	setDefault(&c.Catalog.BaseURL, "http://localhost:8080")

	setDefault(&c.ToolServer.Name, "catalog-tools")
	setDefault(&c.ToolServer.Version, "0.1.0")
	setDefault(&c.ToolServer.Transport, "stdio")
	setDefault(&c.ToolServer.Addr, ":8081")
	setDefault(&c.ToolServer.Path, "/mcp")

	setDefault(&c.Agent.Kind, "wrapper")
	setDefault(&c.Agent.Addr, ":8082")
	if c.Agent.Name == "" {
		if c.Agent.Kind == "model" {
			c.Agent.Name = "catalog-assistant"
		} else {
			c.Agent.Name = "product-agent"
		}
	}

	setDefault(&c.Agent.Model.Provider, "openai")
	if c.Agent.Model.Name == "" {
		switch c.Agent.Model.Provider {
		case "anthropic":
			c.Agent.Model.Name = "claude-sonnet-4-5"
		case "openai":
			c.Agent.Model.Name = "gpt-4o-mini"
		default:
			c.Agent.Model.Name = c.Agent.Model.Provider
		}
	}
	if c.Agent.Model.APIKey == "" {
		switch c.Agent.Model.Provider {
		case "anthropic":
			c.Agent.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.Agent.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Agent.Model.MaxTokens == 0 {
		c.Agent.Model.MaxTokens = 1024
	}
	if c.Agent.Model.MaxIterations == 0 {
		c.Agent.Model.MaxIterations = 8
	}
	if c.Agent.Model.MaxHistory == 0 {
		c.Agent.Model.MaxHistory = 20
	}

	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "text")
	setDefault(&c.Logging.Backend, "slog")
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.Catalog.Store, "memory", "sqlite") {
		errs = append(errs, fmt.Errorf("catalog.store: must be memory or sqlite, got %q", c.Catalog.Store))
	}
	if c.Catalog.Store == "sqlite" && c.Catalog.SQLitePath == "" {
		errs = append(errs, errors.New("catalog.sqlite_path: required for the sqlite store"))
	}
	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("catalog.base_url: must be an http(s) URL, got %q", c.Catalog.BaseURL))
	}

	if !oneOf(c.ToolServer.Transport, "stdio", "http") {
		errs = append(errs, fmt.Errorf("toolserver.transport: must be stdio or http, got %q", c.ToolServer.Transport))
	}
	if !strings.HasPrefix(c.ToolServer.Path, "/") {
		errs = append(errs, fmt.Errorf("toolserver.path: must start with /, got %q", c.ToolServer.Path))
	}

	if !oneOf(c.Agent.Kind, "wrapper", "model") {
		errs = append(errs, fmt.Errorf("agent.kind: must be wrapper or model, got %q", c.Agent.Kind))
	}
	if c.Agent.Kind == "model" {
		if !oneOf(c.Agent.Model.Provider, "openai", "anthropic") {
			errs = append(errs, fmt.Errorf("agent.model.provider: must be openai or anthropic, got %q", c.Agent.Model.Provider))
		}
		if c.Agent.Model.Temperature < 0 || c.Agent.Model.Temperature > 2 {
			errs = append(errs, fmt.Errorf("agent.model.temperature: must be between 0 and 2, got %v", c.Agent.Model.Temperature))
		}
		if c.Agent.Model.MaxIterations < 0 {
			errs = append(errs, errors.New("agent.model.max_iterations: must not be negative"))
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if !oneOf(c.Logging.Format, "json", "text") {
		errs = append(errs, fmt.Errorf("logging.format: must be json or text, got %q", c.Logging.Format))
	}
	if !oneOf(c.Logging.Backend, "slog", "hclog") {
		errs = append(errs, fmt.Errorf("logging.backend: must be slog or hclog, got %q", c.Logging.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}

// LoggerConfig converts the logging section for logging.New.
func (c LoggingConfig) LoggerConfig(name string) logging.Config {
	level, _ := logging.ParseLevel(c.Level)

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.Format
	cfg.Backend = c.Backend
	cfg.Name = name

	return cfg
}

func setDefault(field *string, val string) {
	if *field == "" {
		*field = val
	}
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
