package tools

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// Capability 系统提示词中的工具说明
type Capability struct {
	Name    string
	Summary string
	UseWhen []string
}

// Toolset 对话可用的外部工具集合
// 天气与网页搜索只有在配置了 API Key 时才启用
type Toolset struct {
	weather *weatherClient
	search  *tavilyClient
	qr      *qrCodeGenerator
	fetcher *fetcher
	logger  *slog.Logger
}

// NewToolset 创建工具集合
func NewToolset(cfg *config.ToolsConfig) *Toolset {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultFetchLimit
	}
	httpClient := &http.Client{Timeout: timeout}

	ts := &Toolset{
		qr:      &qrCodeGenerator{baseURL: cfg.QRCodeBaseURL},
		fetcher: &fetcher{httpClient: newPublicHTTPClient(timeout)},
		logger:  log.NewModuleLogger("tools", "toolset"),
	}
	if cfg.WeatherAPIKey != "" {
		ts.weather = &weatherClient{
			apiKey:     cfg.WeatherAPIKey,
			baseURL:    weatherBaseURL(cfg),
			httpClient: httpClient,
		}
	}
	if cfg.TavilyAPIKey != "" {
		ts.search = &tavilyClient{
			apiKey:     cfg.TavilyAPIKey,
			baseURL:    tavilyURL(cfg),
			httpClient: httpClient,
		}
	}
	return ts
}

func weatherBaseURL(cfg *config.ToolsConfig) string {
	if cfg.WeatherBaseURL != "" {
		return strings.TrimSuffix(cfg.WeatherBaseURL, "/")
	}
	return weatherAPIBaseURL
}

func tavilyURL(cfg *config.ToolsConfig) string {
	if cfg.TavilyBaseURL != "" {
		return strings.TrimSuffix(cfg.TavilyBaseURL, "/")
	}
	return tavilyBaseURL
}

// Build 构建本轮对话的工具列表
// searcher 为 nil 时不提供文档检索工具
func (ts *Toolset) Build(searcher DocumentSearcher, fileIDs []string) ([]tool.InvokableTool, error) {
	var built []tool.InvokableTool

	add := func(t tool.InvokableTool, err error) error {
		if err != nil {
			return err
		}
		built = append(built, t)
		return nil
	}

	if err := add(utils.InferTool(TimeToolName, timeDescription, currentTime)); err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", TimeToolName, err)
	}
	if err := add(utils.InferTool(QRCodeToolName, qrCodeDescription, ts.qr.generate)); err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", QRCodeToolName, err)
	}
	if err := add(utils.InferTool(FetchToolName, fetchDescription, ts.fetcher.fetch)); err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", FetchToolName, err)
	}
	if ts.weather != nil {
		if err := add(utils.InferTool(WeatherToolName, weatherDescription, ts.weather.lookup)); err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", WeatherToolName, err)
		}
	}
	if ts.search != nil {
		if err := add(utils.InferTool(WebSearchToolName, webSearchDescription, ts.search.search)); err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", WebSearchToolName, err)
		}
	}
	if searcher != nil {
		ds := &documentSearch{searcher: searcher, fileIDs: fileIDs}
		if err := add(utils.InferTool(DocumentSearchToolName, documentSearchDescription, ds.search)); err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", DocumentSearchToolName, err)
		}
	}

	ts.logger.Debug("Toolset built",
		"tools_count", len(built),
		"weather_enabled", ts.weather != nil,
		"web_search_enabled", ts.search != nil,
		"document_search_enabled", searcher != nil,
	)
	return built, nil
}

// Describe 返回已启用工具的说明
func (ts *Toolset) Describe(withDocumentSearch bool) []Capability {
	caps := []Capability{
		{
			Name:    QRCodeToolName,
			Summary: "Generate QR codes for any data",
			UseWhen: []string{
				"Creating QR codes for websites, URLs, text, contact info, etc.",
				`"Generate QR code for..." or "Create QR code for..."`,
				"Converting text/URLs to QR codes",
			},
		},
		{
			Name:    TimeToolName,
			Summary: "Get the current date and time in any timezone",
			UseWhen: []string{"Questions about the current date, time or day of week"},
		},
		{
			Name:    FetchToolName,
			Summary: "Read the content of a web page",
			UseWhen: []string{"The user shares a link or asks about a specific URL"},
		},
	}
	if ts.weather != nil {
		caps = append(caps, Capability{
			Name:    WeatherToolName,
			Summary: "Get current weather and forecasts for any city",
			UseWhen: []string{"Questions about weather, temperature or forecasts"},
		})
	}
	if ts.search != nil {
		caps = append(caps, Capability{
			Name:    WebSearchToolName,
			Summary: "Search the web for current information",
			UseWhen: []string{"Recent news, events or facts that may have changed"},
		})
	}
	if withDocumentSearch {
		caps = append(caps, Capability{
			Name:    DocumentSearchToolName,
			Summary: "Search the uploaded documents",
			UseWhen: []string{"Follow-up questions that need more passages from the uploaded files"},
		})
	}
	return caps
}

// FormatCapabilities 渲染为系统提示词片段
func FormatCapabilities(caps []Capability) string {
	var sb strings.Builder
	for i, c := range caps {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "\n**%s** using %s tool", c.Summary, c.Name)
		if len(c.UseWhen) > 0 {
			fmt.Fprintf(&sb, "\n\nUse %s when users ask about:", c.Name)
			for _, u := range c.UseWhen {
				sb.WriteString("\n- ")
				sb.WriteString(u)
			}
		}
	}
	return sb.String()
}
