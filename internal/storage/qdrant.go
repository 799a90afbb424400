package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/constants"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/types"

	"github.com/gofrs/uuid/v5"
)

// QdrantPointIDNamespace is a dedicated namespace for generating deterministic
// Qdrant point IDs. The same fingerprint (and section name) always maps to the
// same point ID, so re-upserting an unchanged resume overwrites in place.
// UUID generated via `uuidgen`
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("a4b1f6e9-7d02-4c58-9b3a-51de40c2a9b7"))

// 点的载荷中标记向量种类
const (
	pointKindDocument = "document"
	pointKindSection  = "section"
)

// VectorDatabase 向量数据库接口
type VectorDatabase interface {
	// UpsertResumePoints 写入一份简历的全文向量与分节向量
	UpsertResumePoints(ctx context.Context, record *types.ResumeRecord) error
	// SearchSimilarResumes 按全文向量搜索最相似的简历
	SearchSimilarResumes(ctx context.Context, queryVector []float64, limit int) ([]SearchResult, error)
	// DeleteResumePoints 删除一份简历的全部向量点
	DeleteResumePoints(ctx context.Context, resumeID string) error
	// CountDocuments 统计全文向量点数量
	CountDocuments(ctx context.Context) (int64, error)
}

// 确保Qdrant实现了VectorDatabase接口
var _ VectorDatabase = (*Qdrant)(nil)

// Qdrant 提供向量数据库功能, 走REST接口
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	httpClient     *http.Client
}

// SearchResult 表示一个搜索结果项
type SearchResult struct {
	ID      string                 // 向量ID
	Score   float32                // 相似度分数
	Payload map[string]interface{} // 载荷数据
}

// ResumeID 从载荷中取简历ID, 缺失时返回空串
func (r SearchResult) ResumeID() string {
	if v, ok := r.Payload["resume_id"].(string); ok {
		return v
	}
	return ""
}

// QdrantOption 定义Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant 创建Qdrant客户端并确保集合存在
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "resume_vectors"
	}
	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		distanceMetric: "Cosine",
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	if cfg.TimeoutSeconds > 0 {
		q.httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", collectionName, err)
	}

	logger.Info().Str("endpoint", endpoint).Str("collection", collectionName).Msg("成功连接到Qdrant服务器")
	return q, nil
}

// ensureCollectionExists 集合不存在时创建
func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := q.doRequest(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return fmt.Errorf("获取集合列表失败: %w", err)
	}
	for _, c := range resp.Result.Collections {
		if c.Name == q.collectionName {
			return nil
		}
	}
	return q.createCollection(ctx)
}

// createCollection 创建向量集合
func (q *Qdrant) createCollection(ctx context.Context) error {
	reqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
	}
	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+q.collectionName, reqBody, nil); err != nil {
		return fmt.Errorf("创建集合失败: %w", err)
	}
	logger.Info().Str("collection", q.collectionName).Int("dimension", q.vectorSize).Msg("已创建Qdrant集合")
	return nil
}

// documentPointID 全文向量点ID, 由指纹确定
func documentPointID(fingerprint string) string {
	return uuid.NewV5(QdrantPointIDNamespace, fingerprint).String()
}

// sectionPointID 分节向量点ID, 由指纹和节名确定
func sectionPointID(fingerprint, section string) string {
	return uuid.NewV5(QdrantPointIDNamespace, fmt.Sprintf("%s__section__%s", fingerprint, section)).String()
}

// UpsertResumePoints 写入一份简历的全文向量与分节向量。点ID由指纹
// 派生, 同一内容重复写入是幂等覆盖。全文向量为零向量时跳过写入,
// 该简历在预筛阶段不可见, 但仍在记录库中参与全量精评。
func (q *Qdrant) UpsertResumePoints(ctx context.Context, record *types.ResumeRecord) error {
	if record == nil {
		return fmt.Errorf("record不能为空")
	}

	var points []map[string]interface{}
	if !types.IsZeroVector(record.Embedding) {
		points = append(points, map[string]interface{}{
			"id":     documentPointID(record.Fingerprint),
			"vector": record.Embedding,
			"payload": map[string]interface{}{
				"resume_id":     record.ResumeID,
				"fingerprint":   record.Fingerprint,
				"kind":          pointKindDocument,
				"provenance":    string(record.Provenance),
				"last_modified": record.LastModified.UTC().Format(time.RFC3339),
				"model_version": constants.EmbeddingModelVersion,
			},
		})
	}
	for section, vec := range record.SectionEmbeddings {
		if types.IsZeroVector(vec) {
			continue
		}
		points = append(points, map[string]interface{}{
			"id":     sectionPointID(record.Fingerprint, section),
			"vector": vec,
			"payload": map[string]interface{}{
				"resume_id":     record.ResumeID,
				"fingerprint":   record.Fingerprint,
				"kind":          pointKindSection,
				"section":       section,
				"model_version": constants.EmbeddingModelVersion,
			},
		})
	}
	if len(points) == 0 {
		logger.Debug().Str("resume_id", record.ResumeID).Msg("简历无可用向量, 跳过Qdrant写入")
		return nil
	}

	reqBody := map[string]interface{}{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPut, path, reqBody, nil); err != nil {
		return fmt.Errorf("写入简历向量点失败: %w", err)
	}
	return nil
}

// SearchSimilarResumes 按查询向量搜索最相似的简历。document点和
// section点都参与命中, 同一简历命中多个点时由调用方取最高相似度,
// 这样只有某一节强相关的简历也能进预筛。
func (q *Qdrant) SearchSimilarResumes(ctx context.Context, queryVector []float64, limit int) ([]SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}
	if limit <= 0 {
		limit = 10
	}

	searchReq := map[string]interface{}{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, searchReq, &result); err != nil {
		return nil, fmt.Errorf("向量搜索失败: %w", err)
	}

	out := make([]SearchResult, 0, len(result.Result))
	for _, hit := range result.Result {
		out = append(out, SearchResult{ID: hit.ID, Score: hit.Score, Payload: hit.Payload})
	}
	return out, nil
}

// DeleteResumePoints 按resume_id过滤删除该简历的全部向量点
func (q *Qdrant) DeleteResumePoints(ctx context.Context, resumeID string) error {
	reqBody := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "resume_id", "match": map[string]interface{}{"value": resumeID}},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, reqBody, nil); err != nil {
		return fmt.Errorf("删除简历向量点失败: %w", err)
	}
	return nil
}

// CountDocuments 统计document点数量, 即可被预筛命中的简历数
func (q *Qdrant) CountDocuments(ctx context.Context) (int64, error) {
	countReq := map[string]interface{}{
		"exact": true,
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "kind", "match": map[string]interface{}{"value": pointKindDocument}},
			},
		},
	}
	var result struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", q.collectionName)
	if err := q.doRequest(ctx, http.MethodPost, path, countReq, &result); err != nil {
		return 0, fmt.Errorf("统计向量点失败: %w", err)
	}
	return result.Result.Count, nil
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var req *http.Request
	var err error

	if body != nil {
		jsonBody, merr := json.Marshal(body)
		if merr != nil {
			return merr
		}
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			return err
		}
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			return err
		}
	}
	return nil
}
