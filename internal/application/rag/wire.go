package rag

import (
	"github.com/google/wire"
	"github.com/ragchat/backend/internal/infrastructure/embedding"
)

// ProvideEmbeddingThrottle 入库共用一个节流器
func ProvideEmbeddingThrottle(t *embedding.Throttle) EmbeddingThrottle {
	return t
}

// ProviderSet RAG 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideChunker,
	ProvideEmbeddingThrottle,
	NewIngestor,
	NewInboxHandler,
	NewRetrievalService,
	NewQueryAnalyzer,
	NewMemoryManager,
	NewOrchestrator,
	NewChatService,
)
