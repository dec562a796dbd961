package mcp

import (
	"github.com/google/wire"
	appRAG "github.com/ragchat/backend/internal/application/rag"
)

// ProviderSet MCP ProviderSet
var ProviderSet = wire.NewSet(
	NewServer,
	wire.Bind(new(PassageSearcher), new(*appRAG.RetrievalService)),
	wire.Bind(new(StatusReader), new(*appRAG.Ingestor)),
	wire.Bind(new(MemoryReader), new(*appRAG.ChatService)),
)
