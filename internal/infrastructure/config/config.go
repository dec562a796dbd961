package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 环境变量名
const (
	EnvConfigFile = "CONFIG_FILE"
	EnvHTTPPort   = "HTTP_PORT"
	EnvDBPath     = "DB_PATH"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Vector    VectorConfig    `yaml:"vector"`
	Redis     RedisConfig     `yaml:"redis"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Memory    MemoryConfig    `yaml:"memory"`
	Chat      ChatConfig      `yaml:"chat"`
	Tools     ToolsConfig     `yaml:"tools"`
	Inbox     InboxConfig     `yaml:"inbox"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        string        `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Path sqlite 文件路径，留空使用数据目录下的 ragchat.db
	Path string `yaml:"path"`
}

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
}

// EmbeddingConfig Embedding 服务配置
type EmbeddingConfig struct {
	// Provider http（OpenAI 兼容接口直连）或 eino
	Provider  string        `yaml:"provider"`
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	// MinInterval 两次调用之间的最小间隔（供应商 RPM 限制）
	MinInterval time.Duration `yaml:"min_interval"`
}

// LLMConfig 对话模型配置
type LLMConfig struct {
	DefaultModel  string `yaml:"default_model"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
	MistralAPIKey string `yaml:"mistral_api_key"`
	MistralURL    string `yaml:"mistral_base_url"`
	MistralModel  string `yaml:"mistral_model"`
	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	// UtilityModel 用于摘要和查询分析
	UtilityModel string `yaml:"utility_model"`
}

// VectorConfig 向量库配置
type VectorConfig struct {
	// Backend qdrant 或 pgvector
	Backend        string `yaml:"backend"`
	QdrantHost     string `yaml:"qdrant_host"`
	QdrantPort     int    `yaml:"qdrant_port"`
	QdrantAPIKey   string `yaml:"qdrant_api_key"`
	Collection     string `yaml:"collection"`
	GlobalIndex    string `yaml:"global_index"`
	ScopedIndex    string `yaml:"scoped_index"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	PostgresTable  string `yaml:"postgres_table"`
	PostgresMaxCon int32  `yaml:"postgres_max_conns"`
}

// RedisConfig Redis 配置，Addr 为空时使用进程内锁
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// IngestConfig 文档入库配置
type IngestConfig struct {
	MaxChunkSize int    `yaml:"max_chunk_size"`
	OverlapSize  int    `yaml:"overlap_size"`
	UploadDir    string `yaml:"upload_dir"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	SimilarityFloor     float32 `yaml:"similarity_floor"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
	MaxResults          int     `yaml:"max_results"`
	MaxContextChunks    int     `yaml:"max_context_chunks"`
	// IntelligentSearch 开启后由分析器决定是否检索
	IntelligentSearch bool `yaml:"intelligent_search"`
}

// MemoryConfig 记忆管理配置
type MemoryConfig struct {
	InitialSummaryTrigger   int     `yaml:"initial_summary_trigger"`
	SummaryUpdateTrigger    int     `yaml:"summary_update_trigger"`
	TokenOverheadPerMessage int     `yaml:"token_overhead_per_message"`
	FallbackCharsPerToken   int     `yaml:"fallback_chars_per_token"`
	SummaryTemperature      float32 `yaml:"summary_temperature"`
	SummaryMaxTokens        int     `yaml:"summary_max_tokens"`
	TokenizerModel          string  `yaml:"tokenizer_model"`
}

// ChatConfig 流式对话配置
type ChatConfig struct {
	MaxToolSteps int `yaml:"max_tool_steps"`
}

// ToolsConfig 外部工具配置
type ToolsConfig struct {
	WeatherAPIKey  string        `yaml:"weather_api_key"`
	WeatherBaseURL string        `yaml:"weather_base_url"`
	TavilyAPIKey   string        `yaml:"tavily_api_key"`
	TavilyBaseURL  string        `yaml:"tavily_base_url"`
	QRCodeBaseURL  string        `yaml:"qr_code_base_url"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
}

// InboxConfig 监听目录，放入的文件自动入库
type InboxConfig struct {
	Dir           string        `yaml:"dir"`
	OwnerID       string        `yaml:"owner_id"`
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// TracingConfig CozeLoop 追踪配置
type TracingConfig struct {
	CozeLoopAPIToken    string `yaml:"cozeloop_api_token"`
	CozeLoopWorkspaceID string `yaml:"cozeloop_workspace_id"`
}

// NewConfig 创建配置：默认值 -> 配置文件 -> 环境变量
func NewConfig() *Config {
	cfg := defaultConfig()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config file %s: %v\n", path, err)
		}
	}

	cfg.applyEnv()
	return cfg
}

// defaultConfig 默认配置
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        ":19970",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Embedding: EmbeddingConfig{
			Provider:    "http",
			URL:         "https://api.voyageai.com/v1",
			Model:       "voyage-3.5",
			Dimension:   1024,
			Timeout:     30 * time.Second,
			MinInterval: 20 * time.Second,
		},
		LLM: LLMConfig{
			DefaultModel:  "openai",
			OpenAIBaseURL: "https://api.openai.com/v1",
			OpenAIModel:   "gpt-4o-mini",
			MistralURL:    "https://api.mistral.ai/v1",
			MistralModel:  "mistral-small-latest",
			GeminiModel:   "gemini-2.0-flash",
			UtilityModel:  "openai",
		},
		Vector: VectorConfig{
			Backend:        "qdrant",
			QdrantHost:     "localhost",
			QdrantPort:     6334,
			Collection:     "document_embeddings",
			GlobalIndex:    "document_vector_index",
			ScopedIndex:    "specific_document_vector_search",
			PostgresTable:  "document_embeddings",
			PostgresMaxCon: 10,
		},
		Redis: RedisConfig{
			LockTTL: 2 * time.Minute,
		},
		Ingest: IngestConfig{
			MaxChunkSize: 1000,
			OverlapSize:  200,
			UploadDir:    DefaultUploadDir(),
		},
		Retrieval: RetrievalConfig{
			SimilarityFloor:     0.7,
			CandidateMultiplier: 10,
			MaxResults:          5,
			MaxContextChunks:    5,
			IntelligentSearch:   true,
		},
		Memory: MemoryConfig{
			InitialSummaryTrigger:   2000,
			SummaryUpdateTrigger:    1000,
			TokenOverheadPerMessage: 10,
			FallbackCharsPerToken:   4,
			SummaryTemperature:      0.1,
			SummaryMaxTokens:        800,
			TokenizerModel:          "gpt-4o",
		},
		Chat: ChatConfig{
			MaxToolSteps: 10,
		},
		Tools: ToolsConfig{
			QRCodeBaseURL: "https://api.qrserver.com/v1/create-qr-code/",
			HTTPTimeout:   15 * time.Second,
		},
		Inbox: InboxConfig{
			OwnerID:       "inbox",
			DebounceDelay: 500 * time.Millisecond,
		},
	}
}

// LoadFile 从 YAML 文件覆盖配置
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv() {
	setString(&c.Server.HTTPPort, EnvHTTPPort)
	setString(&c.Database.Path, EnvDBPath)

	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.URL, "EMBEDDING_API_URL")
	setString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION")
	setDuration(&c.Embedding.MinInterval, "EMBEDDING_MIN_INTERVAL")

	setString(&c.LLM.DefaultModel, "DEFAULT_MODEL")
	setString(&c.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.LLM.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.LLM.OpenAIModel, "OPENAI_MODEL")
	setString(&c.LLM.MistralAPIKey, "MISTRAL_API_KEY")
	setString(&c.LLM.MistralURL, "MISTRAL_BASE_URL")
	setString(&c.LLM.MistralModel, "MISTRAL_MODEL")
	setString(&c.LLM.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.LLM.GeminiModel, "GEMINI_MODEL")
	setString(&c.LLM.UtilityModel, "UTILITY_MODEL")

	setString(&c.Vector.Backend, "VECTOR_BACKEND")
	setString(&c.Vector.QdrantHost, "QDRANT_HOST")
	setInt(&c.Vector.QdrantPort, "QDRANT_PORT")
	setString(&c.Vector.QdrantAPIKey, "QDRANT_API_KEY")
	setString(&c.Vector.Collection, "QDRANT_COLLECTION")
	setString(&c.Vector.PostgresDSN, "POSTGRES_DSN")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setInt(&c.Ingest.MaxChunkSize, "CHUNK_SIZE")
	setInt(&c.Ingest.OverlapSize, "CHUNK_OVERLAP")
	setString(&c.Ingest.UploadDir, "UPLOAD_DIR")

	setBool(&c.Retrieval.IntelligentSearch, "INTELLIGENT_SEARCH")
	setInt(&c.Chat.MaxToolSteps, "MAX_TOOL_STEPS")

	setString(&c.Tools.WeatherAPIKey, "WEATHERAPI_API_KEY")
	setString(&c.Tools.TavilyAPIKey, "TAVILY_API_KEY")

	setString(&c.Inbox.Dir, "INBOX_DIR")
	setString(&c.Inbox.OwnerID, "INBOX_OWNER_ID")

	setString(&c.Tracing.CozeLoopAPIToken, "COZELOOP_API_TOKEN")
	setString(&c.Tracing.CozeLoopWorkspaceID, "COZELOOP_WORKSPACE_ID")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewEmbeddingConfig 创建 Embedding 配置
func NewEmbeddingConfig(cfg *Config) *EmbeddingConfig {
	return &cfg.Embedding
}

// NewLLMConfig 创建对话模型配置
func NewLLMConfig(cfg *Config) *LLMConfig {
	return &cfg.LLM
}

// NewVectorConfig 创建向量库配置
func NewVectorConfig(cfg *Config) *VectorConfig {
	return &cfg.Vector
}

// NewRedisConfig 创建 Redis 配置
func NewRedisConfig(cfg *Config) *RedisConfig {
	return &cfg.Redis
}

// NewIngestConfig 创建入库配置
func NewIngestConfig(cfg *Config) *IngestConfig {
	return &cfg.Ingest
}

// NewRetrievalConfig 创建检索配置
func NewRetrievalConfig(cfg *Config) *RetrievalConfig {
	return &cfg.Retrieval
}

// NewMemoryConfig 创建记忆配置
func NewMemoryConfig(cfg *Config) *MemoryConfig {
	return &cfg.Memory
}

// NewChatConfig 创建对话配置
func NewChatConfig(cfg *Config) *ChatConfig {
	return &cfg.Chat
}

// NewToolsConfig 创建工具配置
func NewToolsConfig(cfg *Config) *ToolsConfig {
	return &cfg.Tools
}

// NewInboxConfig 创建监听目录配置
func NewInboxConfig(cfg *Config) *InboxConfig {
	return &cfg.Inbox
}

// NewTracingConfig 创建追踪配置
func NewTracingConfig(cfg *Config) *TracingConfig {
	return &cfg.Tracing
}

// NewWebSocketConfig 创建 WebSocket 配置
func NewWebSocketConfig(cfg *Config) *WebSocketConfig {
	return &cfg.WebSocket
}
