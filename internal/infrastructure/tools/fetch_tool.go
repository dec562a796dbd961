package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// FetchToolName 网页抓取工具名称
const FetchToolName = "fetch_url"

const fetchDescription = `Fetch content from a URL and convert it to text or markdown.
Use it when the user shares a link or when a web search result needs to be read in full.
Parameters: url (required, http or https), format (text or markdown, default markdown).`

const (
	maxFetchSize      = int64(5 * 1024 * 1024)
	maxFetchChars     = 20000
	fetchUserAgent    = "ragchat-fetch-tool/1.0"
	defaultFetchLimit = 30 * time.Second
)

// FetchParams 抓取参数
type FetchParams struct {
	URL    string `json:"url" jsonschema:"description=The URL to fetch content from. Must start with http:// or https://"`
	Format string `json:"format,omitempty" jsonschema:"description=The format to return the content in. Default is markdown.,enum=text,enum=markdown"`
}

// FetchResult 抓取结果
type FetchResult struct {
	Success    bool   `json:"success"`
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode"`
	Format     string `json:"format"`
	Content    string `json:"content"`
	Truncated  bool   `json:"truncated"`
	Timestamp  string `json:"timestamp"`
}

// ErrBlockedAddress 目标地址属于本机或内网
var ErrBlockedAddress = errors.New("destination address is not publicly routable")

// fetcher 网页抓取
type fetcher struct {
	httpClient *http.Client
}

// newPublicHTTPClient 只允许连接公网地址的 HTTP 客户端
// 检查发生在 DNS 解析之后的拨号阶段，重定向和 DNS 重绑定同样受限
func newPublicHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
			}
			if isBlockedAddr(addr) {
				return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
			}
			return nil
		},
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{Timeout: timeout, Transport: transport}
}

// isBlockedAddr 回环、私有、链路本地（含云元数据）、未指定和组播地址
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() ||
		sharedAddressSpace.Contains(addr)
}

// sharedAddressSpace 运营商级 NAT 地址段 100.64.0.0/10
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func (f *fetcher) fetch(ctx context.Context, params FetchParams) (any, error) {
	if params.URL == "" {
		return failure("URL parameter is required"), nil
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return failure("URL must start with http:// or https://"), nil
	}

	format := strings.ToLower(params.Format)
	if format == "" {
		format = "markdown"
	}
	if format != "text" && format != "markdown" {
		return failure("format must be one of: text, markdown"), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return failure(fmt.Sprintf("failed to create request: %v", err)), nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return failure("URL points to a private or local address and cannot be fetched"), nil
		}
		return failure(fmt.Sprintf("failed to fetch URL: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return failure(fmt.Sprintf("failed to read response: %v", err)), nil
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		switch format {
		case "text":
			content, err = extractTextFromHTML(content)
		case "markdown":
			content, err = convertHTMLToMarkdown(content)
		}
		if err != nil {
			return failure(fmt.Sprintf("failed to convert content: %v", err)), nil
		}
	}

	truncated := false
	if runes := []rune(content); len(runes) > maxFetchChars {
		content = string(runes[:maxFetchChars])
		truncated = true
	}

	if resp.StatusCode != http.StatusOK {
		return failure(fmt.Sprintf("URL returned status %d", resp.StatusCode)), nil
	}

	return FetchResult{
		Success:    true,
		URL:        params.URL,
		StatusCode: resp.StatusCode,
		Format:     format,
		Content:    content,
		Truncated:  truncated,
		Timestamp:  now(),
	}, nil
}

func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}

	lines := strings.Split(markdown, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return strings.Join(result, "\n"), nil
}
