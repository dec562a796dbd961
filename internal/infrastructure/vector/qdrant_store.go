package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

var _ domainRAG.VectorStore = (*QdrantStore)(nil)

// QdrantStore 基于 Qdrant 的向量存储
// 全局检索直接走集合的 HNSW 索引，按文件检索额外依赖 file_id 上的 keyword payload 索引
type QdrantStore struct {
	client      *qdrant.Client
	collection  string
	dimension   uint64
	globalIndex string
	scopedIndex string
	logger      *slog.Logger
}

// QdrantOptions Qdrant 连接参数
type QdrantOptions struct {
	Host        string
	Port        int
	APIKey      string
	Collection  string
	Dimension   int
	GlobalIndex string
	ScopedIndex string
}

// NewQdrantStore 连接 Qdrant
func NewQdrantStore(opts QdrantOptions) (*QdrantStore, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", opts.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		client:      client,
		collection:  opts.Collection,
		dimension:   uint64(opts.Dimension),
		globalIndex: opts.GlobalIndex,
		scopedIndex: opts.ScopedIndex,
		logger:      log.NewModuleLogger("vector", "qdrant"),
	}, nil
}

// EnsureIndexes 确保集合与 file_id 索引存在
func (s *QdrantStore) EnsureIndexes(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}
		s.logger.Info("Collection created",
			"collection", s.collection,
			"dimension", s.dimension,
			"index", s.globalIndex,
		)
	}

	// 重复创建 payload 索引是幂等的
	wait := true
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		Wait:           &wait,
		FieldName:      fieldFileID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create %s index: %w", s.scopedIndex, err)
	}

	s.logger.Debug("Vector indexes ready",
		"collection", s.collection,
		"global_index", s.globalIndex,
		"scoped_index", s.scopedIndex,
	)
	return nil
}

// UpsertEmbedding 写入单个 chunk 的向量
func (s *QdrantStore) UpsertEmbedding(ctx context.Context, emb *domainRAG.DocumentEmbedding) error {
	if uint64(len(emb.Vector)) != s.dimension {
		return fmt.Errorf("vector dimension %d does not match store dimension %d: %w",
			len(emb.Vector), s.dimension, domainRAG.ErrValidation)
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(PointID(emb.ChunkID)),
				Vectors: qdrant.NewVectors(emb.Vector...),
				Payload: qdrant.NewValueMap(embeddingPayload(emb)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", emb.ChunkID, err)
	}
	return nil
}

// Search 相似度检索，FileIDs 非空时按文件过滤
func (s *QdrantStore) Search(ctx context.Context, vector []float32, opts domainRAG.SearchOptions) ([]*domainRAG.ScoredPassage, error) {
	limit := uint64(opts.Limit)
	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         buildFileFilter(opts.FileIDs),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.MinScore > 0 {
		threshold := opts.MinScore
		query.ScoreThreshold = &threshold
	}

	hits, err := s.client.Query(ctx, query)
	if err != nil {
		s.logger.Error("Failed to query qdrant", "error", err)
		return nil, fmt.Errorf("%w: %v", domainRAG.ErrSearch, err)
	}

	passages := make([]*domainRAG.ScoredPassage, 0, len(hits))
	for _, hit := range hits {
		if passage := hitToPassage(hit); passage != nil {
			passages = append(passages, passage)
		}
	}

	s.logger.Debug("Qdrant search completed",
		"scoped", len(opts.FileIDs) > 0,
		"hits_count", len(passages),
	)
	return passages, nil
}

// DeleteByFile 删除文件的全部向量
func (s *QdrantStore) DeleteByFile(ctx context.Context, fileID string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildFileFilter([]string{fileID}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete embeddings of file %s: %w", fileID, err)
	}
	return nil
}

// Close 关闭连接
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// buildFileFilter 构建 file_id 过滤条件
func buildFileFilter(fileIDs []string) *qdrant.Filter {
	if len(fileIDs) == 0 {
		return nil
	}
	if len(fileIDs) == 1 {
		return &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(fieldFileID, fileIDs[0]),
			},
		}
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeywords(fieldFileID, fileIDs...),
		},
	}
}

// hitToPassage 将命中转换为检索结果
func hitToPassage(hit *qdrant.ScoredPoint) *domainRAG.ScoredPassage {
	payload := hit.GetPayload()
	if payload == nil {
		return nil
	}

	passage := &domainRAG.ScoredPassage{
		ChunkID: extractStringValue(payload[fieldChunkID]),
		FileID:  extractStringValue(payload[fieldFileID]),
		Content: extractStringValue(payload[fieldContent]),
		Score:   hit.GetScore(),
	}
	passage.Metadata = domainRAG.EmbeddingMetadata{
		FileID:     passage.FileID,
		FileName:   extractStringValue(payload[fieldFileName]),
		FileSize:   extractIntValue(payload[fieldFileSize]),
		FileType:   extractStringValue(payload[fieldFileType]),
		ChunkIndex: int(extractIntValue(payload[fieldChunkIndex])),
		ChunkCount: int(extractIntValue(payload[fieldChunkCount])),
		UploadDate: parseUploadDate(extractStringValue(payload[fieldUploadDate])),
	}
	return passage
}

// extractStringValue 从 qdrant.Value 提取字符串值
func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	return val.GetStringValue()
}

// extractIntValue 从 qdrant.Value 提取整数值
func extractIntValue(val *qdrant.Value) int64 {
	if val == nil {
		return 0
	}
	if intVal := val.GetIntegerValue(); intVal != 0 {
		return intVal
	}
	if dblVal := val.GetDoubleValue(); dblVal != 0 {
		return int64(dblVal)
	}
	return 0
}
