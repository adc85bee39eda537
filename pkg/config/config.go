// Package config provides configuration loading, validation, and management for the
// conversation core.
//
// ARCHITECTURE OVERVIEW:
//
// This package implements a single, atomically-swappable configuration singleton.
// It is the one process-wide singleton the core tolerates: the LLM client,
// embedding client, and tool executor are deliberately NOT part of it (those
// are request-scoped constructions built per-request and bound to the
// request's script id and DB session).
//
// KEY PRINCIPLES:
//
//  1. SCHEMA VERSIONING: config changes increment SchemaVersion so a future loader
//     can detect and migrate stale files.
//
//  2. GLOBAL SINGLETON: a single global Config instance is held in memory, protected
//     by a mutex for thread safety.
//
//  3. VALUE-BASED ACCESS: Get() returns the config BY VALUE (copy, not reference) so
//     callers cannot mutate shared state through the returned struct.
//
//  4. VALIDATION FIRST: Load validates before installing the new config; an invalid
//     file leaves the previous (or default) config in place.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const SchemaVersion = 1

// Model names this core is known to route to.
const (
	ModelClaudeSonnet4      = "claude-sonnet-4-20250514"
	ModelClaudeSonnetLatest = ModelClaudeSonnet4
	ModelOpenAITextEmbed3   = "text-embedding-3-small"
)

// Provider identifiers, used for rate-limit and resilience config grouping.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Model represents an LLM model with its capabilities, limits, and pricing.
//
// CostInputPerMTok and CostOutputPerMTok feed the billing pricing formula:
//
//	cost = input_tokens*p_in + cache_creation*1.25*p_in + cache_read*0.1*p_in + output_tokens*p_out
type Model struct {
	Name                string  `json:"name" yaml:"name"`
	MaxTPM              int     `json:"max_tpm" yaml:"max_tpm"`
	MaxConnections      int     `json:"max_connections" yaml:"max_connections"`
	ContextWindowTokens int     `json:"context_window_tokens" yaml:"context_window_tokens"`
	CostInputPerMTok    float64 `json:"cost_input_per_mtok" yaml:"cost_input_per_mtok"`
	CostOutputPerMTok   float64 `json:"cost_output_per_mtok" yaml:"cost_output_per_mtok"`
	DailyBudgetUSD      float64 `json:"daily_budget_usd" yaml:"daily_budget_usd"`
}

// ModelDefaults defines default parameters for all supported models.
//
//nolint:gochecknoglobals // intentional global for model registry defaults
var ModelDefaults = map[string]Model{
	ModelClaudeSonnet4: {
		Name:                ModelClaudeSonnet4,
		MaxTPM:              3000000,
		MaxConnections:      20,
		ContextWindowTokens: 200000,
		CostInputPerMTok:    3.0,
		CostOutputPerMTok:   15.0,
		DailyBudgetUSD:      50.0,
	},
}

// ModelProviders maps each model to its API provider for middleware configuration.
//
//nolint:gochecknoglobals // intentional global for model-to-provider mapping
var ModelProviders = map[string]string{
	ModelClaudeSonnet4:    ProviderAnthropic,
	ModelOpenAITextEmbed3: ProviderOpenAI,
}

// IsModelSupported reports whether the registry has defaults for modelName.
func IsModelSupported(modelName string) bool {
	_, exists := ModelDefaults[modelName]
	return exists
}

// GetModelProvider returns the API provider for a given model.
func GetModelProvider(modelName string) (string, error) {
	provider, exists := ModelProviders[modelName]
	if !exists {
		return "", fmt.Errorf("unknown model: %s", modelName)
	}
	return provider, nil
}

// BudgetTier names a token budget tier for the Context Builder.
type BudgetTier string

const (
	BudgetTierQuick    BudgetTier = "quick"
	BudgetTierStandard BudgetTier = "standard"
	BudgetTierDeep     BudgetTier = "deep"
)

// BudgetTokens maps each budget tier to its total token ceiling.
//
//nolint:gochecknoglobals // fixed tier table, not user-configurable
var BudgetTokens = map[BudgetTier]int{
	BudgetTierQuick:    1200,
	BudgetTierStandard: 5000,
	BudgetTierDeep:     20000,
}

// ResolveBudgetTier returns the token budget for tier, defaulting to standard
// when tier is empty or unrecognized.
func ResolveBudgetTier(tier BudgetTier) int {
	if tokens, ok := BudgetTokens[tier]; ok {
		return tokens
	}
	return BudgetTokens[BudgetTierStandard]
}

// CircuitBreakerConfig defines configuration for circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
}

// RetryConfig defines configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
	Jitter        bool          `json:"jitter" yaml:"jitter"`
}

// ProviderLimits defines rate limiting configuration for a specific API provider.
type ProviderLimits struct {
	TokensPerMinute int `json:"tokens_per_minute" yaml:"tokens_per_minute"`
	MaxConcurrency  int `json:"max_concurrency" yaml:"max_concurrency"`
}

// RateLimitConfig groups rate limiting configuration by API provider.
type RateLimitConfig struct {
	Anthropic ProviderLimits `json:"anthropic" yaml:"anthropic"`
	OpenAI    ProviderLimits `json:"openai" yaml:"openai"`
}

// ResilienceConfig bundles all resilience-related middleware configuration.
// Per-call timeouts default to 120s for synthesis and 60s for classification;
// tool calls get their own, shorter soft timeout (10s).
type ResilienceConfig struct {
	CircuitBreaker        CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Retry                 RetryConfig          `json:"retry" yaml:"retry"`
	RateLimit             RateLimitConfig      `json:"rate_limit" yaml:"rate_limit"`
	SynthesisTimeout      time.Duration        `json:"synthesis_timeout" yaml:"synthesis_timeout"`
	ClassificationTimeout time.Duration        `json:"classification_timeout" yaml:"classification_timeout"`
	ToolTimeout           time.Duration        `json:"tool_timeout" yaml:"tool_timeout"`
	MaxRetriesOnBackoff   int                  `json:"max_retries_on_backoff" yaml:"max_retries_on_backoff"`
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Exporter  string `json:"exporter" yaml:"exporter"` // "prometheus" or "noop"
	Namespace string `json:"namespace" yaml:"namespace"`
}

// ToolExecutorConfig carries the Tool Executor's output-format policy.
type ToolExecutorConfig struct {
	MaxCharsPerScene        int           `json:"max_chars_per_scene" yaml:"max_chars_per_scene"`
	MaxCharsPerContextScene int           `json:"max_chars_per_context_scene" yaml:"max_chars_per_context_scene"`
	MaxBatchScenes          int           `json:"max_batch_scenes" yaml:"max_batch_scenes"`
	DefaultNeighborCount    int           `json:"default_neighbor_count" yaml:"default_neighbor_count"`
	PerToolTimeout          time.Duration `json:"per_tool_timeout" yaml:"per_tool_timeout"`
}

// AgentLoopConfig carries the Agent Loop's iteration and recovery limits.
type AgentLoopConfig struct {
	MaxIterations       int `json:"max_iterations" yaml:"max_iterations"`
	MaxRecoveryAttempts int `json:"max_recovery_attempts" yaml:"max_recovery_attempts"`
	SynthesisMaxTokens  int `json:"synthesis_max_tokens" yaml:"synthesis_max_tokens"`
}

// EvidenceConfig carries the Evidence Builder's truncation caps.
type EvidenceConfig struct {
	MaxItems         int `json:"max_items" yaml:"max_items"`
	MaxTotalChars    int `json:"max_total_chars" yaml:"max_total_chars"`
	MaxCharsPerItem  int `json:"max_chars_per_item" yaml:"max_chars_per_item"`
	PhraseMatchChars int `json:"phrase_match_chars" yaml:"phrase_match_chars"`
}

// ConversationConfig carries the Conversation Service's thresholds.
type ConversationConfig struct {
	RecentMessageLimit     int `json:"recent_message_limit" yaml:"recent_message_limit"`
	SummaryTriggerCount    int `json:"summary_trigger_count" yaml:"summary_trigger_count"`
	SummaryMaxOutputTokens int `json:"summary_max_output_tokens" yaml:"summary_max_output_tokens"`
}

// RouterConfig carries the Router's confidence threshold.
type RouterConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
}

// Config is the complete, immutable-once-loaded configuration for the core.
type Config struct {
	SchemaVersion   int                `json:"schema_version" yaml:"schema_version"`
	Models          map[string]Model   `json:"models" yaml:"models"`
	Resilience      ResilienceConfig   `json:"resilience" yaml:"resilience"`
	Metrics         MetricsConfig      `json:"metrics" yaml:"metrics"`
	ToolExecutor    ToolExecutorConfig `json:"tool_executor" yaml:"tool_executor"`
	AgentLoop       AgentLoopConfig    `json:"agent_loop" yaml:"agent_loop"`
	Evidence        EvidenceConfig     `json:"evidence" yaml:"evidence"`
	Conversation    ConversationConfig `json:"conversation" yaml:"conversation"`
	Router          RouterConfig       `json:"router" yaml:"router"`
	AnthropicAPIKey string             `json:"-" yaml:"-"`
	OpenAIAPIKey    string             `json:"-" yaml:"-"`
}

// Default returns the built-in configuration used when no file is loaded.
func Default() Config {
	return Config{
		SchemaVersion: SchemaVersion,
		Models:        ModelDefaults,
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:   3,
				InitialDelay:  time.Second,
				MaxDelay:      30 * time.Second,
				BackoffFactor: 2.0,
				Jitter:        true,
			},
			RateLimit: RateLimitConfig{
				Anthropic: ProviderLimits{TokensPerMinute: 3000000, MaxConcurrency: 20},
				OpenAI:    ProviderLimits{TokensPerMinute: 1000000, MaxConcurrency: 20},
			},
			SynthesisTimeout:      120 * time.Second,
			ClassificationTimeout: 60 * time.Second,
			ToolTimeout:           10 * time.Second,
			MaxRetriesOnBackoff:   2,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Exporter:  "prometheus",
			Namespace: "conversation_core",
		},
		ToolExecutor: ToolExecutorConfig{
			MaxCharsPerScene:        3000,
			MaxCharsPerContextScene: 2000,
			MaxBatchScenes:          10,
			DefaultNeighborCount:    1,
			PerToolTimeout:          10 * time.Second,
		},
		AgentLoop: AgentLoopConfig{
			MaxIterations:       5,
			MaxRecoveryAttempts: 2,
			SynthesisMaxTokens:  1200,
		},
		Evidence: EvidenceConfig{
			MaxItems:         10,
			MaxTotalChars:    8000,
			MaxCharsPerItem:  1500,
			PhraseMatchChars: 20,
		},
		Conversation: ConversationConfig{
			RecentMessageLimit:     10,
			SummaryTriggerCount:    15,
			SummaryMaxOutputTokens: 300,
		},
		Router: RouterConfig{
			ConfidenceThreshold: 0.6,
		},
	}
}

//nolint:gochecknoglobals // intentional singleton pattern for config management
var (
	current Config
	once    sync.Once
	mu      sync.RWMutex
)

func ensureDefault() {
	once.Do(func() {
		current = Default()
	})
}

// Load reads a YAML config file from path, validates it, and installs it as the
// process-wide config. Environment variables ANTHROPIC_API_KEY and
// OPENAI_API_KEY are layered on top regardless of file contents.
func Load(path string) error {
	ensureDefault()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	if err := validate(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return nil
}

func validate(cfg *Config) error {
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (expected %d)", cfg.SchemaVersion, SchemaVersion)
	}
	if len(cfg.Models) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	if cfg.AgentLoop.MaxIterations < 1 {
		return fmt.Errorf("agent_loop.max_iterations must be >= 1")
	}
	if cfg.Evidence.MaxItems < 1 {
		return fmt.Errorf("evidence.max_items must be >= 1")
	}
	return nil
}

// Get returns a copy of the current process-wide configuration.
func Get() Config {
	ensureDefault()
	mu.RLock()
	defer mu.RUnlock()
	return current
}
