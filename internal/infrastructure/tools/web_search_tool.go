package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WebSearchToolName 网页搜索工具名称
const WebSearchToolName = "web_search"

const webSearchDescription = "Search the web for current information, news, and real-time data"

const tavilyBaseURL = "https://api.tavily.com"

// WebSearchParams 网页搜索参数
type WebSearchParams struct {
	Query         string `json:"query" jsonschema:"description=Search query to find information on the web"`
	MaxResults    int    `json:"maxResults,omitempty" jsonschema:"description=Maximum number of search results. Default is 5."`
	IncludeAnswer *bool  `json:"includeAnswer,omitempty" jsonschema:"description=Include AI-generated answer from search results. Default is true."`
	SearchDepth   string `json:"searchDepth,omitempty" jsonschema:"description=Search depth - basic for quick results and advanced for comprehensive. Default is advanced.,enum=basic,enum=advanced"`
}

// WebSearchHit 单条搜索结果
type WebSearchHit struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"publishedDate,omitempty"`
}

// WebSearchResult 网页搜索结果
type WebSearchResult struct {
	Success     bool           `json:"success"`
	Query       string         `json:"query"`
	Answer      string         `json:"answer"`
	Results     []WebSearchHit `json:"results"`
	SearchDepth string         `json:"searchDepth"`
	Timestamp   string         `json:"timestamp"`
}

// tavilyRequest Tavily /search 请求
type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	SearchDepth       string `json:"search_depth"`
	IncludeImages     bool   `json:"include_images"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

// tavilyResponse Tavily /search 响应
type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// tavilyClient Tavily 搜索客户端
type tavilyClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func (c *tavilyClient) search(ctx context.Context, params WebSearchParams) (any, error) {
	if strings.TrimSpace(params.Query) == "" {
		return failure("query is required"), nil
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	includeAnswer := true
	if params.IncludeAnswer != nil {
		includeAnswer = *params.IncludeAnswer
	}
	depth := params.SearchDepth
	if depth != "basic" {
		depth = "advanced"
	}

	body, err := json.Marshal(tavilyRequest{
		Query:         params.Query,
		MaxResults:    maxResults,
		IncludeAnswer: includeAnswer,
		SearchDepth:   depth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure("Network error during web search"), nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return failure("Web search authentication failed - check API key"), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return failure("Web search rate limit exceeded - try again later"), nil
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return failure(fmt.Sprintf("Web search failed with status %d: %s", resp.StatusCode, string(msg))), nil
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return failure("Web search returned an invalid response"), nil
	}

	result := WebSearchResult{
		Success:     true,
		Query:       params.Query,
		Answer:      parsed.Answer,
		Results:     make([]WebSearchHit, 0, len(parsed.Results)),
		SearchDepth: depth,
		Timestamp:   now(),
	}
	for _, r := range parsed.Results {
		result.Results = append(result.Results, WebSearchHit{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}
	return result, nil
}
