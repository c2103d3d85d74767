package config

import (
	"fmt"
	"time"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GatewayConfig represents the reliability settings of the model gateway
type GatewayConfig struct {
	MaxAttempts       int
	RequestTimeout    time.Duration
	BreakerThreshold  int
	BreakerCooldown   time.Duration
	RateLimitRPS      float64
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffJitterFrac float64
}

// TriageConfig represents the classification and response policy settings
type TriageConfig struct {
	Categories          []string
	ConfidenceThreshold float64
	FallbackConfidence  float64
	MaxBodySize         int
	MaxResponseChars    int
	Keywords            map[string][]string
	Policies            map[string]string
}

// PipelineConfig represents the batch execution settings
type PipelineConfig struct {
	Workers int
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGateway returns the gateway configuration
func (c *Config) GetGateway() (GatewayConfig, error) {
	requestTimeout, err := c.GetDuration("gateway.request_timeout")
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid gateway request timeout: %w", err)
	}
	breakerCooldown, err := c.GetDuration("gateway.breaker_cooldown")
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid breaker cooldown: %w", err)
	}
	backoffInitial, err := c.GetDuration("gateway.backoff_initial")
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid initial backoff: %w", err)
	}
	backoffMax, err := c.GetDuration("gateway.backoff_max")
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("invalid max backoff: %w", err)
	}

	cfg := GatewayConfig{
		MaxAttempts:       c.GetInt("gateway.max_attempts"),
		RequestTimeout:    requestTimeout,
		BreakerThreshold:  c.GetInt("gateway.breaker_threshold"),
		BreakerCooldown:   breakerCooldown,
		RateLimitRPS:      c.GetFloat64("gateway.rate_limit_rps"),
		BackoffInitial:    backoffInitial,
		BackoffMax:        backoffMax,
		BackoffJitterFrac: c.GetFloat64("gateway.backoff_jitter_frac"),
	}
	if cfg.MaxAttempts < 1 {
		return GatewayConfig{}, fmt.Errorf("gateway.max_attempts must be >= 1, got %d", cfg.MaxAttempts)
	}
	if cfg.BreakerThreshold < 1 {
		return GatewayConfig{}, fmt.Errorf("gateway.breaker_threshold must be >= 1, got %d", cfg.BreakerThreshold)
	}
	if cfg.BreakerCooldown < 0 {
		return GatewayConfig{}, fmt.Errorf("gateway.breaker_cooldown must be >= 0, got %s", cfg.BreakerCooldown)
	}
	return cfg, nil
}

// GetTriage returns the triage configuration
func (c *Config) GetTriage() (TriageConfig, error) {
	cfg := TriageConfig{
		Categories:          c.GetStringSlice("triage.categories"),
		ConfidenceThreshold: c.GetFloat64("triage.confidence_threshold"),
		FallbackConfidence:  c.GetFloat64("triage.fallback_confidence"),
		MaxBodySize:         c.GetInt("triage.max_body_size"),
		MaxResponseChars:    c.GetInt("triage.max_response_chars"),
		Keywords:            c.GetStringMapStringSlice("triage.keywords"),
		Policies:            c.GetStringMapString("triage.policies"),
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return TriageConfig{}, fmt.Errorf("triage.confidence_threshold must be in [0,1], got %v", cfg.ConfidenceThreshold)
	}
	if len(cfg.Categories) == 0 {
		return TriageConfig{}, fmt.Errorf("triage.categories must not be empty")
	}
	return cfg, nil
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() (PipelineConfig, error) {
	cfg := PipelineConfig{
		Workers: c.GetInt("pipeline.workers"),
	}
	if cfg.Workers < 1 {
		return PipelineConfig{}, fmt.Errorf("pipeline.workers must be >= 1, got %d", cfg.Workers)
	}
	return cfg, nil
}
