package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
	"google.golang.org/genai"
)

// 可选模型名称
const (
	ModelOpenAI  = "openai"
	ModelMistral = "mistral"
	ModelGemini  = "gemini"
)

// ErrNoModel 没有任何可用模型
var ErrNoModel = errors.New("no chat model configured")

// ModelRegistry 按名称选择对话模型
// 未知或未配置的名称回退到默认模型
type ModelRegistry struct {
	models      map[string]model.ToolCallingChatModel
	defaultName string
	utilityName string
	logger      *slog.Logger
}

// NewModelRegistry 按配置创建已配置 API Key 的模型
func NewModelRegistry(cfg *config.LLMConfig) (*ModelRegistry, error) {
	ctx := context.Background()
	models := make(map[string]model.ToolCallingChatModel)
	logger := log.NewModuleLogger("llm", "registry")

	if cfg.OpenAIAPIKey != "" {
		m, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create openai model: %w", err)
		}
		models[ModelOpenAI] = m
	}

	// Mistral 提供 OpenAI 兼容接口
	if cfg.MistralAPIKey != "" {
		m, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  cfg.MistralAPIKey,
			BaseURL: cfg.MistralURL,
			Model:   cfg.MistralModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mistral model: %w", err)
		}
		models[ModelMistral] = m
	}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.GeminiAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		m, err := geminiModel.NewChatModel(ctx, &geminiModel.Config{
			Client: client,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini model: %w", err)
		}
		models[ModelGemini] = m
	}

	registry := NewRegistryWithModels(cfg.DefaultModel, cfg.UtilityModel, models)
	if len(models) == 0 {
		logger.Warn("No chat model API key configured, chat is unavailable")
	} else {
		logger.Info("Chat models ready",
			"models", registry.Names(),
			"default", registry.defaultName,
			"utility", registry.utilityName,
		)
	}
	return registry, nil
}

// NewRegistryWithModels 使用现成的模型创建注册表
func NewRegistryWithModels(defaultName, utilityName string, models map[string]model.ToolCallingChatModel) *ModelRegistry {
	r := &ModelRegistry{
		models: models,
		logger: log.NewModuleLogger("llm", "registry"),
	}

	r.defaultName = normalizeName(defaultName)
	if _, ok := models[r.defaultName]; !ok {
		// 默认模型未配置时取第一个可用模型
		r.defaultName = ""
		if names := r.Names(); len(names) > 0 {
			r.defaultName = names[0]
		}
	}

	r.utilityName = normalizeName(utilityName)
	if _, ok := models[r.utilityName]; !ok {
		r.utilityName = r.defaultName
	}
	return r
}

// Resolve 返回名称对应的模型和实际使用的名称
func (r *ModelRegistry) Resolve(name string) (model.ToolCallingChatModel, string, error) {
	if m, ok := r.models[normalizeName(name)]; ok {
		return m, normalizeName(name), nil
	}

	m, ok := r.models[r.defaultName]
	if !ok {
		return nil, "", ErrNoModel
	}
	if name != "" {
		r.logger.Debug("Unknown model requested, using default",
			"requested", name,
			"default", r.defaultName,
		)
	}
	return m, r.defaultName, nil
}

// Utility 摘要和查询分析使用的模型
func (r *ModelRegistry) Utility() (model.ToolCallingChatModel, error) {
	m, _, err := r.Resolve(r.utilityName)
	return m, err
}

// Names 已配置的模型名称
func (r *ModelRegistry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultName 默认模型名称
func (r *ModelRegistry) DefaultName() string {
	return r.defaultName
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
