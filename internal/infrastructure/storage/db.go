package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ragchat/backend/internal/infrastructure/config"
	_ "modernc.org/sqlite"
)

// GetDBPath 获取数据库路径
// 未配置时使用数据目录下的 ragchat.db
func GetDBPath(cfg *config.DatabaseConfig) (string, error) {
	if cfg != nil && cfg.Path != "" {
		return cfg.Path, nil
	}
	return config.DefaultDBPath(), nil
}

// OpenDB 打开数据库连接
func OpenDB(dbPath string) (*sql.DB, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// 外键级联删除依赖 foreign_keys pragma
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ProvideDB 打开数据库并初始化表结构
func ProvideDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dbPath, err := GetDBPath(cfg)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// InitSchema 初始化表结构
func InitSchema(db *sql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"document_files", `
		CREATE TABLE IF NOT EXISTS document_files (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			size INTEGER NOT NULL,
			mime_type TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			uploaded_at INTEGER NOT NULL,
			status TEXT NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			updated_at INTEGER NOT NULL
		);`},
		{"document_files indexes", `
		CREATE INDEX IF NOT EXISTS idx_document_files_owner ON document_files(owner_id, uploaded_at);`},
		{"conversations", `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			summary_version INTEGER NOT NULL DEFAULT 0,
			last_summarized_message_index INTEGER NOT NULL DEFAULT 0,
			last_token_count INTEGER NOT NULL DEFAULT 0
		);`},
		{"chat_messages", `
		CREATE TABLE IF NOT EXISTS chat_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`},
		{"chat_messages indexes", `
		CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id, created_at, seq);`},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}

	return nil
}
