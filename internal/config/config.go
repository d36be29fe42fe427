package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Voice  VoiceConfig
	Store  StoreConfig
	Tutor  TutorConfig
	CORS   CORSConfig
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

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Voice:  voice,
		Store:  store,
		Tutor:  TutorConfig{ProfilePath: strings.TrimSpace(os.Getenv("TUTOR_PROFILE_PATH"))},
		CORS:   loadCORSConfig(),
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

// Provider names accepted by AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// ErrAIDisabled 表示缺少模型凭证。
var ErrAIDisabled = errors.New("ai provider credentials missing")

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider     string
	GeminiAPIKey string
	ChatModel    string
	LiveModel    string
	TTSModel     string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	HistoryLimit int

	// StreamResponse 控制 SSE 是否逐段推送模型输出。
	StreamResponse bool

	Ark ArkConfig
}

// ArkConfig 描述火山方舟模型配置，作为可选的对话模型提供方。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// GeminiEnabled 表示是否配置了 Gemini 密钥。语音与练习依赖它。
func (c AIConfig) GeminiEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Enabled 表示对话模型是否可用。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Ark.Model != "" && (c.Ark.APIKey != "" || (c.Ark.AccessKey != "" && c.Ark.SecretKey != ""))
	default:
		return c.GeminiEnabled() && c.ChatModel != ""
	}
}

// NewGeminiClient 创建 Gemini API 客户端。
func (c AIConfig) NewGeminiClient(ctx context.Context) (*genai.Client, error) {
	if !c.GeminiEnabled() {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set: %w", ErrAIDisabled)
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// Temperature32 converts the configured temperature for the model SDKs.
func (c AIConfig) Temperature32() *float32 {
	if c.Temperature == nil {
		return nil
	}
	val := float32(*c.Temperature)
	return &val
}

// TopP32 converts the configured top-p for the model SDKs.
func (c AIConfig) TopP32() *float32 {
	if c.TopP == nil {
		return nil
	}
	val := float32(*c.TopP)
	return &val
}

// NewArkChatModel 使用 Ark 配置创建一个模型实例。
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Ark.Model == "" || (c.Ark.APIKey == "" && (c.Ark.AccessKey == "" || c.Ark.SecretKey == "")) {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合: %w", ErrAIDisabled)
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		MaxTokens:   maxTokens,
		Temperature: c.Temperature32(),
		TopP:        c.TopP32(),
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		defaultTemperature := 0.7
		temperature = &defaultTemperature
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	// 0 表示把完整历史发送给模型。
	historyLimit := 0
	if limit, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if limit != nil && *limit > 0 {
		historyLimit = *limit
	}

	return AIConfig{
		Provider:       provider,
		GeminiAPIKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		ChatModel:      getEnvOrDefault("GEMINI_CHAT_MODEL", "gemini-3-flash-preview"),
		LiveModel:      getEnvOrDefault("GEMINI_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		TTSModel:       getEnvOrDefault("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		HistoryLimit:   historyLimit,
		StreamResponse: stream,
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
	}, nil
}

// VoiceConfig 描述实时语音通话配置。
type VoiceConfig struct {
	VoiceName       string
	InputSampleRate int
	VADThreshold    int
}

func loadVoiceConfig() (VoiceConfig, error) {
	rate := 24000
	if override, err := parseOptionalIntEnv("VOICE_INPUT_SAMPLE_RATE"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return VoiceConfig{}, fmt.Errorf("invalid VOICE_INPUT_SAMPLE_RATE value %d", *override)
		}
		rate = *override
	}

	threshold := 10
	if override, err := parseOptionalIntEnv("VOICE_VAD_THRESHOLD"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil {
		threshold = *override
	}

	return VoiceConfig{
		VoiceName:       strings.TrimSpace(os.Getenv("GEMINI_VOICE")),
		InputSampleRate: rate,
		VADThreshold:    threshold,
	}, nil
}

// StoreConfig 描述持久化后端。
type StoreConfig struct {
	Driver string
	Path   string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", "memory"))
	path := strings.TrimSpace(os.Getenv("STORE_PATH"))
	switch driver {
	case "memory":
	case "badger":
		if path == "" {
			path = "data/badger"
		}
	case "sqlite":
		if path == "" {
			path = "data/atlas.db"
		}
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q", driver)
	}
	return StoreConfig{Driver: driver, Path: path}, nil
}

// TutorConfig 描述额外的导师档案来源。
type TutorConfig struct {
	ProfilePath string
}

// CORSConfig 描述跨域白名单。
type CORSConfig struct {
	AllowedOrigins []string
}

func loadCORSConfig() CORSConfig {
	raw := getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return CORSConfig{AllowedOrigins: origins}
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
