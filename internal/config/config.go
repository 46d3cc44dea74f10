package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendBedrock = "bedrock"
	BackendOpenAI  = "openai"

	defaultProfileTable = "roaster-for-slack-conversation-context"
)

const (
	keyProfileTable         = "DYNAMODB_TABLE"
	keyCounterTable         = "DYNAMODB_TABLE_COUNTER"
	keyDailyPicQuota        = "DAILY_PIC_QUOTA"
	keyTicketLimit          = "TICKET_LIMIT"
	keyTextBackend          = "TEXT_BACKEND"
	keyBedrockTextModel     = "BEDROCK_TEXT_MODEL_ID"
	keyBedrockImageModel    = "BEDROCK_IMAGE_MODEL_ID"
	keyOpenAIModel          = "OPENAI_MODEL"
	keyModerateImagePrompts = "MODERATE_IMAGE_PROMPTS"
	keyParamPrefix          = "PARAM_PREFIX"
	keySlackOAuthToken      = "SLACK_OAUTH_TOKEN"
	keySlackSigningSecret   = "SLACK_SIGNING_SECRET"
	keyWorkerFunctionName   = "WORKER_FUNCTION_NAME"
	keyLambdaFunctionName   = "AWS_LAMBDA_FUNCTION_NAME"
	keyLogLevel             = "LOG_LEVEL"
	keyDevAddr              = "DEV_ADDR"
)

// MaxTicketLimit is the largest accepted TICKET_LIMIT.
const MaxTicketLimit = 1000

// Config is read once per process and passed down by value.
type Config struct {
	ProfileTable         string
	CounterTable         string
	DailyPicQuota        int
	TicketLimit          int
	TextBackend          string
	BedrockTextModelID   string
	BedrockImageModelID  string
	OpenAIModel          string
	ModerateImagePrompts bool
	ParamPrefix          string
	SlackOAuthToken      string
	SlackSigningSecret   string
	WorkerFunctionName   string
	LogLevel             string
	DevAddr              string
}

// BatchGetter reads several SSM parameters at once. *paramstore.Client
// satisfies it.
type BatchGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(keyProfileTable, defaultProfileTable)
	v.SetDefault(keyDailyPicQuota, 2)
	v.SetDefault(keyTicketLimit, 10)
	v.SetDefault(keyTextBackend, BackendBedrock)
	v.SetDefault(keyBedrockTextModel, "anthropic.claude-v2:1")
	v.SetDefault(keyBedrockImageModel, "stability.stable-diffusion-xl-v1")
	v.SetDefault(keyOpenAIModel, "gpt-4o-mini")
	v.SetDefault(keyModerateImagePrompts, false)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyDevAddr, ":3000")
	return v
}

// Load reads the configuration from the environment. Secrets may still be
// empty afterwards; see ResolveSecrets.
func Load() (Config, error) {
	v := newViper()

	workerFn := strings.TrimSpace(v.GetString(keyWorkerFunctionName))
	if workerFn == "" {
		workerFn = strings.TrimSpace(v.GetString(keyLambdaFunctionName))
	}

	cfg := Config{
		ProfileTable:         strings.TrimSpace(v.GetString(keyProfileTable)),
		CounterTable:         strings.TrimSpace(v.GetString(keyCounterTable)),
		DailyPicQuota:        v.GetInt(keyDailyPicQuota),
		TicketLimit:          v.GetInt(keyTicketLimit),
		TextBackend:          strings.ToLower(strings.TrimSpace(v.GetString(keyTextBackend))),
		BedrockTextModelID:   strings.TrimSpace(v.GetString(keyBedrockTextModel)),
		BedrockImageModelID:  strings.TrimSpace(v.GetString(keyBedrockImageModel)),
		OpenAIModel:          strings.TrimSpace(v.GetString(keyOpenAIModel)),
		ModerateImagePrompts: v.GetBool(keyModerateImagePrompts),
		ParamPrefix:          strings.TrimRight(strings.TrimSpace(v.GetString(keyParamPrefix)), "/"),
		SlackOAuthToken:      strings.TrimSpace(v.GetString(keySlackOAuthToken)),
		SlackSigningSecret:   strings.TrimSpace(v.GetString(keySlackSigningSecret)),
		WorkerFunctionName:   workerFn,
		LogLevel:             strings.TrimSpace(v.GetString(keyLogLevel)),
		DevAddr:              strings.TrimSpace(v.GetString(keyDevAddr)),
	}

	if cfg.ProfileTable == "" {
		return Config{}, fmt.Errorf("config: %s must not be empty", keyProfileTable)
	}
	if cfg.CounterTable == "" {
		return Config{}, fmt.Errorf("config: %s is required", keyCounterTable)
	}
	if cfg.DailyPicQuota < 1 {
		return Config{}, fmt.Errorf("config: %s must be at least 1, got %d", keyDailyPicQuota, cfg.DailyPicQuota)
	}
	if cfg.TicketLimit < 1 || cfg.TicketLimit > MaxTicketLimit {
		return Config{}, fmt.Errorf("config: %s must be between 1 and %d, got %d", keyTicketLimit, MaxTicketLimit, cfg.TicketLimit)
	}
	switch cfg.TextBackend {
	case BackendBedrock, BackendOpenAI:
	default:
		return Config{}, fmt.Errorf("config: unknown %s %q", keyTextBackend, cfg.TextBackend)
	}
	if (cfg.TextBackend == BackendOpenAI || cfg.ModerateImagePrompts) && cfg.ParamPrefix == "" {
		return Config{}, fmt.Errorf("config: %s is required to read the OpenAI token", keyParamPrefix)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding what is already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

func (c Config) SlackOAuthTokenParam() string    { return c.ParamPrefix + "/slack-oauth-token" }
func (c Config) SlackSigningSecretParam() string { return c.ParamPrefix + "/slack-signing-secret" }

// ResolveSecrets fills the Slack secrets from SSM when a parameter prefix is
// configured; the environment values are only a fallback for local runs.
// It fails if either secret is still empty afterwards.
func (c *Config) ResolveSecrets(ctx context.Context, getter BatchGetter) error {
	if c.ParamPrefix != "" {
		if getter == nil {
			return errors.New("config: parameter getter must not be nil")
		}
		values, err := getter.GetParameters(ctx, c.SlackOAuthTokenParam(), c.SlackSigningSecretParam())
		if err != nil {
			return fmt.Errorf("config: resolve slack secrets: %w", err)
		}
		if v := strings.TrimSpace(values[c.SlackOAuthTokenParam()]); v != "" {
			c.SlackOAuthToken = v
		}
		if v := strings.TrimSpace(values[c.SlackSigningSecretParam()]); v != "" {
			c.SlackSigningSecret = v
		}
	}
	if c.SlackOAuthToken == "" {
		return fmt.Errorf("config: slack oauth token is not set (%s or %s)", keySlackOAuthToken, keyParamPrefix)
	}
	if c.SlackSigningSecret == "" {
		return fmt.Errorf("config: slack signing secret is not set (%s or %s)", keySlackSigningSecret, keyParamPrefix)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto slog levels, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
