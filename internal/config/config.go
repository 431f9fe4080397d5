// Package config loads and validates application configuration from
// environment variables, with an optional .env file and a YAML guide file
// for the help tab.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Pipeline service settings.
	PipelineURL    string
	PipelineAPIKey string
	DataRoute      string // retrieval route: "metadata" or "schema"

	// Tracing service settings.
	TraceURL     string
	TraceAPIKey  string
	TraceTimeout time.Duration

	// Rendering settings.
	Mode         string // "guided" or "developer"
	WordInterval time.Duration

	// Playground settings.
	PlaygroundTimeout time.Duration

	// Operational settings.
	LogFile   string
	LogLevel  string
	GuidePath string // YAML guide file; empty falls back to the built-in guide.
}

// Load reads a .env file when present, then configuration from environment
// variables with sensible defaults.
func Load() (Config, error) {
	// Missing .env is the common case and not an error.
	_ = godotenv.Load()

	cfg := Config{
		PipelineURL:       envStr("GAMER_PIPELINE_URL", "http://localhost:8765"),
		PipelineAPIKey:    envStr("GAMER_PIPELINE_API_KEY", ""),
		DataRoute:         envStr("GAMER_DATA_ROUTE", "metadata"),
		TraceURL:          envStr("GAMER_TRACE_URL", "http://localhost:8766"),
		TraceAPIKey:       envStr("GAMER_TRACE_API_KEY", ""),
		TraceTimeout:      envDuration("GAMER_TRACE_TIMEOUT", 15*time.Second),
		Mode:              envStr("GAMER_MODE", "guided"),
		WordInterval:      envDuration("GAMER_WORD_INTERVAL", 30*time.Millisecond),
		PlaygroundTimeout: envDuration("GAMER_PLAYGROUND_TIMEOUT", 5*time.Second),
		LogFile:           envStr("GAMER_LOG_FILE", "gamer.log"),
		LogLevel:          envStr("GAMER_LOG_LEVEL", "info"),
		GuidePath:         envStr("GAMER_GUIDE_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	if c.PipelineURL == "" {
		return fmt.Errorf("config: GAMER_PIPELINE_URL is required")
	}
	if c.Mode != "guided" && c.Mode != "developer" {
		return fmt.Errorf("config: GAMER_MODE must be %q or %q, got %q", "guided", "developer", c.Mode)
	}
	if c.DataRoute != "metadata" && c.DataRoute != "schema" {
		return fmt.Errorf("config: GAMER_DATA_ROUTE must be %q or %q, got %q", "metadata", "schema", c.DataRoute)
	}
	if c.WordInterval <= 0 {
		return fmt.Errorf("config: GAMER_WORD_INTERVAL must be positive")
	}
	if c.PlaygroundTimeout <= 0 {
		return fmt.Errorf("config: GAMER_PLAYGROUND_TIMEOUT must be positive")
	}
	return nil
}

// Guide is the content of the help tab: example questions the pipeline
// answers well, and tips for phrasing queries.
type Guide struct {
	Examples []string `yaml:"examples"`
	Tips     []string `yaml:"tips"`
}

// DefaultGuide returns the built-in guide used when no guide file is
// configured.
func DefaultGuide() Guide {
	return Guide{
		Examples: []string{
			"What are the unique instrument ids used on the SmartSPIM acquisition rigs?",
			"Write a MongoDB query to find the injections with an injection material with a viral titer greater than 20000?",
			"What procedures were performed on subject 662616?",
		},
		Tips: []string{
			"Clearly label the information you seek, e.g. write out the full project name to prevent ambiguity.",
			"Explicitly specify a retrieval limit, e.g. limit the search to 10 documents.",
			"Break up complex queries. Ask one at a time, starting simple and broad, then increase complexity.",
			"Fetching a random asset and applying a task to it works poorly as one step. Fetch the asset first, then ask for the task.",
			"The model does not know today's date. Spell out dates in temporal queries.",
			"Asking for python code as the answer format works well.",
			"Leave feedback through the faces after a response is generated.",
		},
	}
}

// LoadGuide reads a YAML guide file, falling back to the built-in guide when
// path is empty.
func LoadGuide(path string) (Guide, error) {
	if path == "" {
		return DefaultGuide(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Guide{}, fmt.Errorf("read guide: %w", err)
	}
	var g Guide
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return Guide{}, fmt.Errorf("parse guide: %w", err)
	}
	if len(g.Examples) == 0 {
		g.Examples = DefaultGuide().Examples
	}
	return g, nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
