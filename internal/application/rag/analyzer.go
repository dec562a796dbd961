package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/ragchat/backend/internal/infrastructure/llm"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// 分析失败时的默认结果
const (
	fallbackReason     = "Error in analysis, defaulting to search"
	fallbackConfidence = 0.5
	smallTalkReason    = "Greeting or small talk, no document search needed"
	maxSmallTalkWords  = 6

	// analysisToolName 结构化输出通过强制调用该工具获得
	analysisToolName = "report_query_analysis"
	analysisToolDesc = "Report whether the user query needs a search over the uploaded documents."
)

// smallTalkWords 仅由这些词组成的短消息视为寒暄
var smallTalkWords = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "hiya": {}, "yo": {}, "there": {},
	"how": {}, "are": {}, "you": {}, "doing": {}, "is": {}, "it": {}, "going": {},
	"whats": {}, "what's": {}, "up": {}, "sup": {},
	"good": {}, "morning": {}, "afternoon": {}, "evening": {}, "night": {},
	"thanks": {}, "thank": {}, "thx": {}, "cheers": {}, "much": {}, "a": {}, "lot": {},
	"ok": {}, "okay": {}, "cool": {}, "great": {}, "nice": {}, "fine": {},
	"bye": {}, "goodbye": {}, "see": {}, "ya": {},
}

// AnalysisResult 查询相关性分析结果
type AnalysisResult struct {
	NeedsSearch    bool    `json:"needsSearch" jsonschema:"description=Whether the query needs to search the uploaded documents"`
	Reason         string  `json:"reason" jsonschema:"description=Short explanation of the decision"`
	Confidence     float64 `json:"confidence" jsonschema:"description=Confidence between 0 and 1"`
	OptimizedQuery string  `json:"optimizedQuery,omitempty" jsonschema:"description=Keyword-focused search query, only when needsSearch is true"`
}

// analysisToolInfo 由 AnalysisResult 推导的输出 schema
var analysisToolInfo = sync.OnceValues(func() (*schema.ToolInfo, error) {
	return utils.GoStruct2ToolInfo[AnalysisResult](analysisToolName, analysisToolDesc)
})

// SearchQuery 需要检索时实际使用的查询
func (r AnalysisResult) SearchQuery(original string) string {
	if q := strings.TrimSpace(r.OptimizedQuery); q != "" {
		return q
	}
	return original
}

// QueryAnalyzer 判断用户消息是否需要检索文档
type QueryAnalyzer struct {
	models *llm.ModelRegistry
	logger *slog.Logger
}

// NewQueryAnalyzer 创建查询分析器
func NewQueryAnalyzer(models *llm.ModelRegistry) *QueryAnalyzer {
	return &QueryAnalyzer{
		models: models,
		logger: log.NewModuleLogger("rag", "analyzer"),
	}
}

// Analyze 分析查询，任何失败都返回 needsSearch=true
func (a *QueryAnalyzer) Analyze(ctx context.Context, message string) AnalysisResult {
	logger := log.FromContext(ctx, a.logger)

	if isSmallTalk(message) {
		logger.Debug("Small talk detected, skipping analysis model")
		return AnalysisResult{NeedsSearch: false, Reason: smallTalkReason, Confidence: 0.95}
	}

	result, err := a.analyzeWithModel(ctx, message)
	if err != nil {
		logger.Warn("Query analysis failed, defaulting to search", "error", err)
		return AnalysisResult{NeedsSearch: true, Reason: fallbackReason, Confidence: fallbackConfidence}
	}

	logger.Debug("Query analyzed",
		"needs_search", result.NeedsSearch,
		"confidence", result.Confidence,
		"optimized_query", result.OptimizedQuery,
	)
	return result
}

func (a *QueryAnalyzer) analyzeWithModel(ctx context.Context, message string) (AnalysisResult, error) {
	chatModel, err := a.models.Utility()
	if err != nil {
		return AnalysisResult{}, err
	}

	info, err := analysisToolInfo()
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("failed to build analysis schema: %w", err)
	}
	bound, err := chatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("failed to bind analysis schema: %w", err)
	}

	resp, err := bound.Generate(ctx, []*schema.Message{
		schema.UserMessage(analysisPrompt(message)),
	}, model.WithTemperature(0), model.WithToolChoice(schema.ToolChoiceForced, analysisToolName))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analysis model call failed: %w", err)
	}

	for _, call := range resp.ToolCalls {
		if call.Function.Name == analysisToolName {
			return parseAnalysis(call.Function.Arguments)
		}
	}
	return AnalysisResult{}, fmt.Errorf("analysis model returned no structured output")
}

// parseAnalysis 解析工具调用参数并规范取值范围
func parseAnalysis(arguments string) (AnalysisResult, error) {
	var result AnalysisResult
	if err := json.Unmarshal([]byte(arguments), &result); err != nil {
		return AnalysisResult{}, fmt.Errorf("failed to parse analysis arguments: %w", err)
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	if !result.NeedsSearch {
		result.OptimizedQuery = ""
	}
	return result, nil
}

// isSmallTalk 短消息且全部由寒暄词组成
func isSmallTalk(message string) bool {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(words) == 0 || len(words) > maxSmallTalkWords {
		return false
	}
	for _, w := range words {
		if _, ok := smallTalkWords[w]; !ok {
			return false
		}
	}
	return true
}
