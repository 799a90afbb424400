package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"resume-ranker-go/internal/config"

	"github.com/cloudwego/eino/components/embedding"
)

// TextEmbedder 文本向量化接口 (符合 cloudwego/eino 规范)
type TextEmbedder interface {
	// EmbedStrings 将文本转换为向量表示
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)

	// GetDimensions 返回嵌入向量的维度
	GetDimensions() int
}

// RemoteEmbedder 通过OpenAI兼容接口生成嵌入向量, 实现 embedding.Embedder。
// 同一模型版本下对相同输入是确定性的。
type RemoteEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

var _ TextEmbedder = (*RemoteEmbedder)(nil)

// RemoteEmbedderOption 构造选项
type RemoteEmbedderOption func(*RemoteEmbedder)

// WithEmbedderHTTPClient 替换HTTP客户端 (测试用)
func WithEmbedderHTTPClient(client *http.Client) RemoteEmbedderOption {
	return func(e *RemoteEmbedder) {
		e.httpClient = client
	}
}

// WithEmbedderLogger 设置日志器
func WithEmbedderLogger(logger *log.Logger) RemoteEmbedderOption {
	return func(e *RemoteEmbedder) {
		e.logger = logger
	}
}

// NewRemoteEmbedder 创建嵌入客户端
func NewRemoteEmbedder(apiKey string, embeddingCfg config.EmbeddingConfig, opts ...RemoteEmbedderOption) (*RemoteEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}

	model := embeddingCfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}
	baseURL := embeddingCfg.BaseURL
	if baseURL == "" {
		return nil, fmt.Errorf("embedding base_url 不能为空")
	}
	timeout := time.Duration(embeddingCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	embedder := &RemoteEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: embeddingCfg.Dimensions,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     log.New(io.Discard, "", 0),
	}

	for _, opt := range opts {
		opt(embedder)
	}

	return embedder, nil
}

// GetDimensions 返回配置的向量维度
func (e *RemoteEmbedder) GetDimensions() int {
	return e.dimensions
}

// openAIEmbeddingRequest OpenAI兼容的Embedding请求结构
type openAIEmbeddingRequest struct {
	Input          interface{} `json:"input"` // string 或 []string
	Model          string      `json:"model"`
	Dimensions     int         `json:"dimensions,omitempty"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

// openAIEmbeddingResponse OpenAI兼容的Embedding响应结构
type openAIEmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// EmbedStrings 将一批文本转换为向量, 实现 cloudwego/eino embedding.Embedder 接口
func (e *RemoteEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	options := &embedding.Options{}
	embedding.GetCommonOptions(options, opts...)

	effectiveModel := e.model
	if options.Model != nil && *options.Model != "" {
		effectiveModel = *options.Model
	}

	reqBody := openAIEmbeddingRequest{
		Input:          texts,
		Model:          effectiveModel,
		Dimensions:     e.dimensions,
		EncodingFormat: "float",
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化embedding请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建embedding请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取embedding响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var parsed openAIEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析embedding响应失败: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding API返回错误: %s (%s)", parsed.Error.Message, parsed.Error.Code)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding响应数量(%d)与输入数量(%d)不匹配", len(parsed.Data), len(texts))
	}

	// API 可能乱序返回, 按 index 归位
	vectors := make([][]float64, len(texts))
	for _, entry := range parsed.Data {
		if entry.Index < 0 || entry.Index >= len(texts) {
			return nil, fmt.Errorf("embedding响应index越界: %d", entry.Index)
		}
		if len(entry.Embedding) != e.dimensions {
			return nil, fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(entry.Embedding), e.dimensions)
		}
		vectors[entry.Index] = entry.Embedding
	}

	e.logger.Printf("EmbedStrings: %d texts, %d tokens", len(texts), parsed.Usage.TotalTokens)
	return vectors, nil
}
