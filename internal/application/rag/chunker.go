package rag

import (
	"strings"

	"github.com/ragchat/backend/internal/infrastructure/config"
)

// 默认分块参数（字符数）
const (
	DefaultMaxChunkSize = 1000
	DefaultOverlapSize  = 200
)

// Chunker 按句子/单词边界切分文本，相邻分块带重叠
type Chunker struct {
	maxChunkSize int
	overlapSize  int
}

// NewChunker 创建分块器，非法参数回退到默认值
func NewChunker(maxChunkSize, overlapSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlapSize < 0 || overlapSize >= maxChunkSize {
		overlapSize = min(DefaultOverlapSize, maxChunkSize/5)
	}
	return &Chunker{
		maxChunkSize: maxChunkSize,
		overlapSize:  overlapSize,
	}
}

// ProvideChunker 按入库配置创建分块器
func ProvideChunker(cfg *config.IngestConfig) *Chunker {
	return NewChunker(cfg.MaxChunkSize, cfg.OverlapSize)
}

// span 分块在规范化文本中的 rune 区间 [start, end)
type span struct {
	start int
	end   int
}

// Split 切分文本，返回非空分块
func (c *Chunker) Split(text string) []string {
	runes := []rune(normalizeWhitespace(text))
	spans := c.spans(runes)

	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, string(runes[s.start:s.end]))
	}
	return chunks
}

// spans 计算分块区间，区间已去掉首尾空格
func (c *Chunker) spans(runes []rune) []span {
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.maxChunkSize {
		return []span{{0, n}}
	}

	var result []span
	half := c.maxChunkSize / 2
	start := 0
	for start < n {
		end := start + c.maxChunkSize
		last := end >= n
		if last {
			end = n
		} else {
			// 优先在句末标点处断开，其次是单词边界，都在窗口后半段才采用
			if idx := lastIndexOfAny(runes, start, end, '.', '!', '?'); idx > start+half {
				end = idx + 1
			} else if idx := lastIndexOfAny(runes, start, end, ' '); idx > start+half {
				end = idx
			}
		}

		if s, ok := trimSpan(runes, start, end); ok {
			result = append(result, s)
		}
		if last {
			break
		}

		start = max(start+1, end-c.overlapSize)
	}
	return result
}

// lastIndexOfAny 在 runes[from:to) 中查找最后一个目标字符，找不到返回 -1
func lastIndexOfAny(runes []rune, from, to int, targets ...rune) int {
	for i := to - 1; i >= from; i-- {
		for _, t := range targets {
			if runes[i] == t {
				return i
			}
		}
	}
	return -1
}

// trimSpan 去掉区间首尾空格
func trimSpan(runes []rune, start, end int) (span, bool) {
	for start < end && runes[start] == ' ' {
		start++
	}
	for end > start && runes[end-1] == ' ' {
		end--
	}
	return span{start, end}, end > start
}

// normalizeWhitespace 连续空白折叠为单个空格
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
