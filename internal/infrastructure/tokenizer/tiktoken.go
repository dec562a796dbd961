package tokenizer

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// 在包初始化时设置离线加载器
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// fallbackEncoding 模型未知时使用的编码（GPT-4 系列兼容）
const fallbackEncoding = "cl100k_base"

// ErrReleased 租约释放后继续使用
var ErrReleased = errors.New("tokenizer already released")

var (
	_ domainRAG.TokenizerProvider = (*Provider)(nil)
	_ domainRAG.Tokenizer         = (*Lease)(nil)
)

// Provider 按模型缓存编码，每次调用方通过 Acquire 取得独立租约
type Provider struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	active    atomic.Int64
	logger    *slog.Logger
}

// NewProvider 创建分词器提供者
func NewProvider() *Provider {
	return &Provider{
		encodings: make(map[string]*tiktoken.Tiktoken),
		logger:    log.NewModuleLogger("tokenizer", "tiktoken"),
	}
}

// Acquire 获取模型对应的分词器租约，未知模型退回 cl100k_base
func (p *Provider) Acquire(model string) (domainRAG.Tokenizer, error) {
	enc, err := p.encodingFor(model)
	if err != nil {
		return nil, err
	}

	p.active.Add(1)
	return &Lease{encoding: enc, provider: p}, nil
}

// Active 当前未释放的租约数
func (p *Provider) Active() int64 {
	return p.active.Load()
}

// encodingFor 加载并缓存编码
func (p *Provider) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if enc, ok := p.encodings[model]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		p.logger.Debug("Unknown tokenizer model, using fallback encoding",
			"model", model,
			"encoding", fallbackEncoding,
		)
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}

	p.encodings[model] = enc
	return enc, nil
}

// Lease 单次调用内共享的分词器
type Lease struct {
	encoding *tiktoken.Tiktoken
	provider *Provider
	released atomic.Bool
}

// Count 计算文本的 Token 数量
func (l *Lease) Count(text string) (int, error) {
	if l.released.Load() {
		return 0, ErrReleased
	}
	if text == "" {
		return 0, nil
	}
	return len(l.encoding.Encode(text, nil, nil)), nil
}

// Release 释放租约，重复调用无副作用
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.provider.active.Add(-1)
	}
}
