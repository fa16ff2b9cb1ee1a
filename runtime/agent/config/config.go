// Package config reads the process's closed set of environment variables
// into an immutable Config, once, at process start. There is no config file
// and no framework: every setting here is a direct os.Getenv/strconv read,
// matching the teacher's own avoidance of a heavyweight config layer for
// simple process settings.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the fully-resolved process configuration. Load returns a value,
// never a pointer the caller could mutate after the fact.
type Config struct {
	LLMAPIKey   string
	LLMModel    string
	LLMProvider string

	MaxAgentIterations int
	MaxContextTokens    int
	ContextTokenBuffer  int
	ListFilesLimit      int

	ExecutionGraceSeconds    int
	SubscriberBuffer         int
	HeartbeatIntervalSeconds int

	StreamRedisAddr string
}

// Load reads every variable in the closed set, applying defaults for
// anything unset, and validates LLMProvider against the known set.
func Load() (Config, error) {
	cfg := Config{
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMModel:    getString("LLM_MODEL", "gpt-4o-mini"),
		LLMProvider: getString("LLM_PROVIDER", "openai"),

		StreamRedisAddr: os.Getenv("STREAM_REDIS_ADDR"),
	}

	var err error
	if cfg.MaxAgentIterations, err = getInt("MAX_AGENT_ITERATIONS", 10); err != nil {
		return Config{}, err
	}
	if cfg.MaxContextTokens, err = getInt("MAX_CONTEXT_TOKENS", 25000); err != nil {
		return Config{}, err
	}
	if cfg.ContextTokenBuffer, err = getInt("CONTEXT_TOKEN_BUFFER", 2000); err != nil {
		return Config{}, err
	}
	if cfg.ListFilesLimit, err = getInt("LIST_FILES_LIMIT", 20); err != nil {
		return Config{}, err
	}
	if cfg.ExecutionGraceSeconds, err = getInt("EXECUTION_GRACE_SECONDS", 600); err != nil {
		return Config{}, err
	}
	if cfg.SubscriberBuffer, err = getInt("SUBSCRIBER_BUFFER", 64); err != nil {
		return Config{}, err
	}
	if cfg.HeartbeatIntervalSeconds, err = getInt("HEARTBEAT_INTERVAL_SECONDS", 15); err != nil {
		return Config{}, err
	}

	switch cfg.LLMProvider {
	case "anthropic", "openai", "bedrock":
	default:
		return Config{}, fmt.Errorf("config: LLM_PROVIDER must be one of anthropic, openai, bedrock, got %q", cfg.LLMProvider)
	}

	return cfg, nil
}

func getString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", name, v, err)
	}
	return n, nil
}
