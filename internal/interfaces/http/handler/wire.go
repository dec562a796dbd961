package handler

import (
	"github.com/google/wire"
	appRAG "github.com/ragchat/backend/internal/application/rag"
	"github.com/ragchat/backend/internal/infrastructure/websocket"
)

// ProviderSet Handler ProviderSet
var ProviderSet = wire.NewSet(
	NewDocumentHandler,
	NewSearchHandler,
	NewChatHandler,
	wire.Bind(new(DocumentService), new(*appRAG.Ingestor)),
	wire.Bind(new(SearchService), new(*appRAG.RetrievalService)),
	wire.Bind(new(ChatService), new(*appRAG.ChatService)),
	wire.Bind(new(ProgressStreamer), new(*websocket.ProgressServer)),
)
