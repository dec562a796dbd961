package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	appRAG "github.com/ragchat/backend/internal/application/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/embedding"
	"github.com/ragchat/backend/internal/infrastructure/storage"
	"github.com/ragchat/backend/internal/infrastructure/tokenizer"
	"github.com/ragchat/backend/internal/infrastructure/vector"
)

const searchTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		fmt.Println("用法:")
		fmt.Println("  diagnose --db                     - 统计数据库中的文档和会话")
		fmt.Println("  diagnose --document <ID>          - 查看文档入库状态")
		fmt.Println("  diagnose --conversation <ID>      - 查看会话记忆和 token 占用")
		fmt.Println("  diagnose --search <问题> [文件ID...] - 执行一次检索并打印相似度")
		fmt.Println("")
		fmt.Println("示例:")
		fmt.Println("  diagnose --search \"报销流程是什么\" 7f0c2a4e-1b7a-4c55-9e43-2f1d7ad1c0b9")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.NewConfig()

	switch os.Args[1] {
	case "--db":
		db := openDB(cfg)
		defer db.Close()
		diagnoseDatabase(db, &cfg.Database)
	case "--document":
		requireArg("文档 ID")
		db := openDB(cfg)
		defer db.Close()
		diagnoseDocument(db, os.Args[2])
	case "--conversation":
		requireArg("会话 ID")
		db := openDB(cfg)
		defer db.Close()
		diagnoseConversation(db, cfg, os.Args[2])
	case "--search":
		requireArg("检索问题")
		diagnoseSearch(cfg, os.Args[2], os.Args[3:])
	default:
		fmt.Printf("错误: 未知参数 %s\n", os.Args[1])
		os.Exit(1)
	}
}

func requireArg(name string) {
	if len(os.Args) < 3 {
		fmt.Printf("错误: 请提供%s\n", name)
		os.Exit(1)
	}
}

func openDB(cfg *config.Config) *sql.DB {
	db, err := storage.ProvideDB(&cfg.Database)
	if err != nil {
		log.Fatalf("无法打开数据库: %v", err)
	}
	return db
}

// diagnoseDatabase 按状态统计文档，并统计会话和消息数量
func diagnoseDatabase(db *sql.DB, dbCfg *config.DatabaseConfig) {
	path, _ := storage.GetDBPath(dbCfg)
	fmt.Printf("数据库: %s\n", path)
	fmt.Println(strings.Repeat("=", 80))

	rows, err := db.Query(`SELECT status, COUNT(*) FROM document_files GROUP BY status ORDER BY status`)
	if err != nil {
		log.Fatalf("查询文档失败: %v", err)
	}
	defer rows.Close()

	fmt.Println("文档:")
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			log.Fatalf("读取文档统计失败: %v", err)
		}
		total += count
		fmt.Printf("  %-12s %d\n", status, count)
	}
	fmt.Printf("  %-12s %d\n\n", "total", total)

	var conversations, messages, summarized int
	_ = db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&conversations)
	_ = db.QueryRow(`SELECT COUNT(*) FROM chat_messages`).Scan(&messages)
	_ = db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE summary_version > 0`).Scan(&summarized)

	fmt.Printf("会话: %d（已摘要 %d）\n", conversations, summarized)
	fmt.Printf("消息: %d\n", messages)
}

func diagnoseDocument(db *sql.DB, id string) {
	repo := storage.NewDocumentRepository(db)
	doc, err := repo.GetDocument(context.Background(), id)
	if err != nil {
		fmt.Printf("❌ 无法读取文档: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("文档 ID:   %s\n", doc.ID)
	fmt.Printf("文件名:    %s\n", doc.Name)
	fmt.Printf("类型:      %s\n", doc.MimeType)
	fmt.Printf("大小:      %d bytes\n", doc.Size)
	fmt.Printf("所有者:    %s\n", doc.OwnerID)
	fmt.Printf("上传时间:  %s\n", doc.UploadedAt.Format(time.RFC3339))
	fmt.Printf("状态:      %s\n", doc.Status)
	fmt.Printf("分块数:    %d\n", doc.ChunkCount)
	if doc.ErrorMessage != "" {
		fmt.Printf("⚠️  错误:   %s\n", doc.ErrorMessage)
	}
}

// diagnoseConversation 打印摘要游标和未摘要部分的 token 数
func diagnoseConversation(db *sql.DB, cfg *config.Config, id string) {
	repo := storage.NewConversationRepository(db)
	ctx := context.Background()

	conv, err := repo.GetConversation(ctx, id)
	if err != nil {
		fmt.Printf("❌ 无法读取会话: %v\n", err)
		os.Exit(1)
	}
	messages, err := repo.ListMessages(ctx, id)
	if err != nil {
		log.Fatalf("读取消息失败: %v", err)
	}

	fmt.Printf("会话:      %s (%s)\n", conv.ID, conv.Title)
	fmt.Printf("消息数:    %d\n", len(messages))
	fmt.Printf("摘要版本:  %d\n", conv.Memory.SummaryVersion)
	fmt.Printf("摘要游标:  %d\n", conv.Memory.LastSummarizedMessageIndex)
	fmt.Printf("缓存 token: %d\n", conv.Memory.LastTokenCount)
	fmt.Println(strings.Repeat("-", 80))

	tok, err := tokenizer.NewProvider().Acquire(cfg.Memory.TokenizerModel)
	if err != nil {
		fmt.Printf("⚠️  无法加载分词器: %v\n", err)
		return
	}
	defer tok.Release()

	start := conv.Memory.LastSummarizedMessageIndex
	if start > len(messages) {
		start = len(messages)
	}
	unsummarized := 0
	for i, msg := range messages {
		n, err := tok.Count(msg.Content)
		if err != nil {
			fmt.Printf("⚠️  计数失败: %v\n", err)
			return
		}
		n += cfg.Memory.TokenOverheadPerMessage
		marker := " "
		if i >= start {
			unsummarized += n
			marker = "*"
		}
		fmt.Printf("%s [%3d] %-4s %5d tokens  %s\n", marker, i, msg.Sender, n, preview(msg.Content))
	}
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("未摘要 token: %d（触发阈值 %d / %d）\n",
		unsummarized, cfg.Memory.InitialSummaryTrigger, cfg.Memory.SummaryUpdateTrigger)
	if conv.Memory.Summary != "" {
		fmt.Printf("\n摘要:\n%s\n", conv.Memory.Summary)
	}
}

// diagnoseSearch 用线上配置执行检索，便于调整相似度阈值
func diagnoseSearch(cfg *config.Config, query string, fileIDs []string) {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		log.Fatalf("无法创建 embedding 客户端: %v", err)
	}
	store, cleanup, err := vector.NewVectorStore(&cfg.Vector, &cfg.Embedding)
	if err != nil {
		log.Fatalf("无法连接向量库: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	retrieval := appRAG.NewRetrievalService(embedder, store, &cfg.Retrieval)
	results, err := retrieval.Search(ctx, query, fileIDs, cfg.Retrieval.MaxResults)
	if err != nil {
		fmt.Printf("❌ 检索失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("问题: %s\n", query)
	fmt.Printf("后端: %s  阈值: %.2f\n", cfg.Vector.Backend, cfg.Retrieval.SimilarityFloor)
	fmt.Println(strings.Repeat("=", 80))
	if len(results) == 0 {
		fmt.Println("没有达到阈值的片段")
		return
	}
	for i, r := range results {
		fmt.Printf("[%d] %.4f  %s #%d\n", i+1, r.Score, r.Metadata.FileName, r.Metadata.ChunkIndex)
		fmt.Printf("    %s\n", preview(r.Content))
	}
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return s
}
