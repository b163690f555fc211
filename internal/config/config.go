package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	arkembed "github.com/cloudwego/eino-ext/components/embedding/ark"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Database   DatabaseConfig
	Moderation ModerationConfig
	Chat       ChatConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	moderation, err := loadModerationConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Database:   loadDatabaseConfig(),
		Moderation: moderation,
		Chat:       chat,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置：同一组 Ark 凭证同时驱动文本生成与向量化。
type AIConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	EmbedModel     string
	BaseURL        string
	Region         string
	Temperature    *float64
	MaxTokens      *int
	StreamResponse bool
}

// Enabled 表示是否提供了生成模型所需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// EmbeddingEnabled 表示是否可以构建向量化模型。
func (c AIConfig) EmbeddingEnabled() bool {
	return c.EmbedModel != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个生成模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL, or AK/SK")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

// NewEmbedder 使用配置创建一个向量化模型实例。
func (c AIConfig) NewEmbedder(ctx context.Context) (embedding.Embedder, error) {
	if !c.EmbeddingEnabled() {
		return nil, fmt.Errorf("ark embedding credentials or model missing: provide ARK_EMBED_MODEL and credentials")
	}

	cfg := &arkembed.EmbeddingConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.EmbedModel,
	}

	return arkembed.NewEmbedder(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("ARK_MODEL")),
		EmbedModel:     strings.TrimSpace(os.Getenv("ARK_EMBED_MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
	}, nil
}

// DatabaseConfig 描述持久层（Postgres + pgvector）配置。
// 未配置时服务退化为进程内存储，便于本地开发与测试。
type DatabaseConfig struct {
	URL string
}

// Enabled 表示是否配置了数据库连接。
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{URL: strings.TrimSpace(os.Getenv("DATABASE_URL"))}
}

// ModerationConfig 控制内容审核行为。
type ModerationConfig struct {
	LLMEnabled   bool
	ExtraBlocked []string
}

func loadModerationConfig() (ModerationConfig, error) {
	llmEnabled, err := parseBoolEnv("MODERATION_LLM_ENABLED", true)
	if err != nil {
		return ModerationConfig{}, err
	}

	var extra []string
	for _, term := range strings.Split(os.Getenv("MODERATION_EXTRA_TERMS"), ",") {
		term = strings.TrimSpace(term)
		if term != "" {
			extra = append(extra, term)
		}
	}

	return ModerationConfig{LLMEnabled: llmEnabled, ExtraBlocked: extra}, nil
}

// ChatConfig 控制检索增强对话的参数。
type ChatConfig struct {
	HistoryLimit    int
	MemoryLimit     int
	MemoryThreshold float64
	ReplyMaxTokens  int
}

func loadChatConfig() (ChatConfig, error) {
	cfg := ChatConfig{
		HistoryLimit:    10,
		MemoryLimit:     3,
		MemoryThreshold: 0.45,
		ReplyMaxTokens:  320,
	}

	if v, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.HistoryLimit = *v
	}

	if v, err := parseOptionalIntEnv("CHAT_MEMORY_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.MemoryLimit = *v
	}

	if v, err := parseOptionalFloatEnv("CHAT_MEMORY_THRESHOLD"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v >= 0 && *v <= 1 {
		cfg.MemoryThreshold = *v
	}

	if v, err := parseOptionalIntEnv("CHAT_REPLY_MAX_TOKENS"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.ReplyMaxTokens = *v
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
