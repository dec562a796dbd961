package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

var _ domainRAG.VectorStore = (*PgVectorStore)(nil)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PgVectorStore 基于 Postgres + pgvector 的向量存储
type PgVectorStore struct {
	pool        *pgxpool.Pool
	table       string
	dimension   int
	globalIndex string
	scopedIndex string
	logger      *slog.Logger
}

// PgVectorOptions pgvector 连接参数
type PgVectorOptions struct {
	DSN         string
	Table       string
	Dimension   int
	MaxConns    int32
	GlobalIndex string
	ScopedIndex string
}

// NewPgVectorStore 创建连接池，后端不可达时只记录警告
func NewPgVectorStore(ctx context.Context, opts PgVectorOptions) (*PgVectorStore, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", opts.Dimension)
	}
	for _, name := range []string{opts.Table, opts.GlobalIndex, opts.ScopedIndex} {
		if !identifierPattern.MatchString(name) {
			return nil, fmt.Errorf("invalid identifier %q", name)
		}
	}

	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	store := &PgVectorStore{
		pool:        pool,
		table:       opts.Table,
		dimension:   opts.Dimension,
		globalIndex: opts.GlobalIndex,
		scopedIndex: opts.ScopedIndex,
		logger:      log.NewModuleLogger("vector", "pgvector"),
	}

	// 连接池按需建连，这里只记录后端当前不可达
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		store.logger.Warn("Postgres unreachable, retrieval degrades until it recovers",
			"error", err,
		)
	}

	return store, nil
}

// EnsureIndexes 创建扩展、表、HNSW 全局索引和 file_id 索引
func (s *PgVectorStore) EnsureIndexes(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id   TEXT PRIMARY KEY,
			file_id    TEXT NOT NULL,
			content    TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			s.globalIndex, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (file_id)`,
			s.scopedIndex, s.table),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare vector schema: %w", err)
		}
	}

	s.logger.Debug("Vector indexes ready",
		"table", s.table,
		"global_index", s.globalIndex,
		"scoped_index", s.scopedIndex,
	)
	return nil
}

// UpsertEmbedding 写入单个 chunk 的向量
func (s *PgVectorStore) UpsertEmbedding(ctx context.Context, emb *domainRAG.DocumentEmbedding) error {
	if len(emb.Vector) != s.dimension {
		return fmt.Errorf("vector dimension %d does not match store dimension %d: %w",
			len(emb.Vector), s.dimension, domainRAG.ErrValidation)
	}

	metadata, err := json.Marshal(emb.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (chunk_id, file_id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO UPDATE SET
			file_id = EXCLUDED.file_id,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, s.table)

	vector := pgvector.NewVector(emb.Vector)
	_, err = s.pool.Exec(ctx, query,
		emb.ChunkID, emb.FileID, sanitizeUTF8(emb.Content), &vector, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", emb.ChunkID, err)
	}
	return nil
}

// Search 余弦相似度检索，score = 1 - cosine distance
func (s *PgVectorStore) Search(ctx context.Context, vector []float32, opts domainRAG.SearchOptions) ([]*domainRAG.ScoredPassage, error) {
	queryVector := pgvector.NewVector(vector)

	var (
		query string
		args  []any
	)
	if len(opts.FileIDs) > 0 {
		query = fmt.Sprintf(`SELECT chunk_id, file_id, content, metadata, 1 - (embedding <=> $1) AS score
			FROM %s
			WHERE file_id = ANY($2)
			ORDER BY embedding <=> $1
			LIMIT $3`, s.table)
		args = []any{&queryVector, opts.FileIDs, opts.Limit}
	} else {
		query = fmt.Sprintf(`SELECT chunk_id, file_id, content, metadata, 1 - (embedding <=> $1) AS score
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2`, s.table)
		args = []any{&queryVector, opts.Limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to query pgvector", "error", err)
		return nil, fmt.Errorf("%w: %v", domainRAG.ErrSearch, err)
	}
	defer rows.Close()

	var passages []*domainRAG.ScoredPassage
	for rows.Next() {
		var (
			passage  domainRAG.ScoredPassage
			metadata []byte
			score    float64
		)
		if err := rows.Scan(&passage.ChunkID, &passage.FileID, &passage.Content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %v", domainRAG.ErrSearch, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &passage.Metadata); err != nil {
				s.logger.Warn("Invalid embedding metadata", "chunk_id", passage.ChunkID, "error", err)
			}
		}
		passage.Score = float32(score)
		if opts.MinScore > 0 && passage.Score < opts.MinScore {
			continue
		}
		passages = append(passages, &passage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domainRAG.ErrSearch, err)
	}

	s.logger.Debug("Pgvector search completed",
		"scoped", len(opts.FileIDs) > 0,
		"hits_count", len(passages),
	)
	return passages, nil
}

// DeleteByFile 删除文件的全部向量
func (s *PgVectorStore) DeleteByFile(ctx context.Context, fileID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE file_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, fileID); err != nil {
		return fmt.Errorf("failed to delete embeddings of file %s: %w", fileID, err)
	}
	return nil
}

// Close 关闭连接池
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}
