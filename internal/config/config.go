package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	AI      AIConfig      `yaml:"ai" mapstructure:"ai"`
	Predict PredictConfig `yaml:"predict" mapstructure:"predict"`
	Scorer  ScorerConfig  `yaml:"scorer" mapstructure:"scorer"`
	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// AIConfig selects and configures the generative-AI backend.
type AIConfig struct {
	Provider  string          `yaml:"provider" mapstructure:"provider"`
	MaxTokens int64           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
	// BaseURL overrides the API host, e.g. for a gateway. Empty uses the SDK default.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds settings for any OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PredictConfig configures the orchestration flow.
type PredictConfig struct {
	// Mode is "combined" (one AI call) or "fanout" (three concurrent calls).
	Mode          string `yaml:"mode" mapstructure:"mode"`
	AITimeoutSecs int    `yaml:"ai_timeout_secs" mapstructure:"ai_timeout_secs"`
	// PromptsFile overrides the embedded prompt pack when set.
	PromptsFile string `yaml:"prompts_file" mapstructure:"prompts_file"`
}

// ScorerConfig holds the constants of the deterministic scoring formula.
type ScorerConfig struct {
	BaseScore int `yaml:"base_score" mapstructure:"base_score"`
	MinScore  int `yaml:"min_score" mapstructure:"min_score"`
	MaxScore  int `yaml:"max_score" mapstructure:"max_score"`

	ExcellentPoints float64 `yaml:"excellent_points" mapstructure:"excellent_points"`
	GoodPoints      float64 `yaml:"good_points" mapstructure:"good_points"`
	FairPoints      float64 `yaml:"fair_points" mapstructure:"fair_points"`
	PoorPoints      float64 `yaml:"poor_points" mapstructure:"poor_points"`

	DTIWeight    float64 `yaml:"dti_weight" mapstructure:"dti_weight"`
	IncomeWeight float64 `yaml:"income_weight" mapstructure:"income_weight"`
	IncomeCap    float64 `yaml:"income_cap" mapstructure:"income_cap"`
}

// CircuitConfig configures the circuit breaker around the AI backend.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PricingConfig holds per-model token pricing.
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`

	// TrustProxyHeaders keys rate limits on X-Forwarded-For/X-Real-IP.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Provider keys also honour the vendors' conventional variables.
	_ = v.BindEnv("ai.anthropic.key", "CREDIT_AI_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("ai.openai.key", "CREDIT_AI_OPENAI_KEY", "OPENAI_API_KEY")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 1.0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("ai.anthropic.base_url", "")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("predict.mode", "combined")
	v.SetDefault("predict.prompts_file", "")
	v.SetDefault("predict.ai_timeout_secs", 20)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("scorer.base_score", 300)
	v.SetDefault("scorer.min_score", 300)
	v.SetDefault("scorer.max_score", 850)
	v.SetDefault("scorer.excellent_points", 200)
	v.SetDefault("scorer.good_points", 150)
	v.SetDefault("scorer.fair_points", 100)
	v.SetDefault("scorer.poor_points", 50)
	v.SetDefault("scorer.dti_weight", 250)
	v.SetDefault("scorer.income_weight", 150)
	v.SetDefault("scorer.income_cap", 200000)
	v.SetDefault("pricing.models", map[string]any{
		"claude-haiku-4-5-20251001":  map[string]any{"input": 0.80, "output": 4.00},
		"claude-sonnet-4-5-20250929": map[string]any{"input": 3.00, "output": 15.00},
		"gpt-4o-mini":                map[string]any{"input": 0.15, "output": 0.60},
	})
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks the configuration required by the given command mode.
// Modes: "score" (offline), "predict" and "mcp" (need an AI backend), and
// "serve" (AI backend plus a listen port).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score":
	case "predict", "mcp":
		errs = append(errs, c.validateAI()...)
		errs = append(errs, c.validatePredict()...)
	case "serve":
		errs = append(errs, c.validateAI()...)
		errs = append(errs, c.validatePredict()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS <= 0 {
			errs = append(errs, "server.rate_limit_rps must be > 0")
		}
		if c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server.rate_limit_burst must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAI() []string {
	var errs []string
	switch c.AI.Provider {
	case "anthropic":
		if c.AI.Anthropic.Key == "" {
			errs = append(errs, "ai.anthropic.key is required")
		}
		if c.AI.Anthropic.Model == "" {
			errs = append(errs, "ai.anthropic.model is required")
		}
	case "openai":
		if c.AI.OpenAI.Key == "" {
			errs = append(errs, "ai.openai.key is required")
		}
		if c.AI.OpenAI.Model == "" {
			errs = append(errs, "ai.openai.model is required")
		}
	default:
		errs = append(errs, "ai.provider must be anthropic or openai")
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, "ai.max_tokens must be > 0")
	}
	return errs
}

func (c *Config) validatePredict() []string {
	var errs []string
	if c.Predict.Mode != "combined" && c.Predict.Mode != "fanout" {
		errs = append(errs, "predict.mode must be combined or fanout")
	}
	if c.Predict.AITimeoutSecs <= 0 {
		errs = append(errs, "predict.ai_timeout_secs must be > 0")
	}
	return errs
}
