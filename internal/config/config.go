package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/nutrigraph/nutribot/backend/internal/service/gemini"
)

// Provider names accepted by AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Chat    ChatConfig
	Archive ArchiveConfig
	Log     LogConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	Addr           string
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string `env:"AI_PROVIDER" envDefault:"gemini"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`

	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"Model"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`

	Temperature *float64 `env:"AI_TEMPERATURE"`
	TopP        *float64 `env:"AI_TOP_P"`
	MaxTokens   *int     `env:"AI_MAX_TOKENS"`
}

// ChatConfig 控制会话客户端行为。
type ChatConfig struct {
	Timeout time.Duration `env:"CHAT_TIMEOUT" envDefault:"10s"`
}

// ArchiveConfig 描述可选的 Redis 会话归档。
type ArchiveConfig struct {
	RedisURL string        `env:"REDIS_URL"`
	TTL      time.Duration `env:"ARCHIVE_TTL" envDefault:"24h"`
}

// Enabled reports whether a Redis archive should be used.
func (c ArchiveConfig) Enabled() bool {
	return c.RedisURL != ""
}

// LogConfig 日志配置。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider != ProviderGemini && cfg.AI.Provider != ProviderArk {
		return nil, fmt.Errorf("invalid AI_PROVIDER value %q", cfg.AI.Provider)
	}
	cfg.AI.GeminiAPIKey = strings.TrimSpace(cfg.AI.GeminiAPIKey)
	cfg.AI.APIKey = strings.TrimSpace(cfg.AI.APIKey)
	cfg.AI.AccessKey = strings.TrimSpace(cfg.AI.AccessKey)
	cfg.AI.SecretKey = strings.TrimSpace(cfg.AI.SecretKey)
	cfg.AI.Model = strings.TrimSpace(cfg.AI.Model)

	if cfg.Chat.Timeout <= 0 {
		return nil, fmt.Errorf("invalid CHAT_TIMEOUT value %s: must be positive", cfg.Chat.Timeout)
	}
	if cfg.Archive.TTL <= 0 {
		return nil, fmt.Errorf("invalid ARCHIVE_TTL value %s: must be positive", cfg.Archive.TTL)
	}

	return &cfg, nil
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// Enabled 表示当前 provider 是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.GeminiAPIKey != ""
	}
}

// ErrAIDisabled is returned when no credential is configured for the provider.
var ErrAIDisabled = errors.New("ai provider credentials missing")

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s: %w", c.Provider, ErrAIDisabled)
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	if c.Provider == ProviderArk {
		cm, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
		if err != nil {
			return nil, fmt.Errorf("create ark chat model: %w", err)
		}
		return cm, nil
	}

	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		APIKey:          c.GeminiAPIKey,
		Model:           c.GeminiModel,
		BaseURL:         c.GeminiBaseURL,
		Temperature:     temperature,
		TopP:            topP,
		MaxOutputTokens: c.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini chat model: %w", err)
	}
	return cm, nil
}
