package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmbeddingUnavailable 嵌入服务临时不可用。调用方按单次调用降级:
// 语义分量置零, 排序继续走词法通道, 不让整个请求失败。
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Generator 包装 TextEmbedder, 提供排序核心需要的单文本契约:
// 过短或空的输入直接得到零向量 (语义轴不可评分), 远端故障统一映射为
// ErrEmbeddingUnavailable。
type Generator struct {
	embedder  TextEmbedder
	minLength int
}

// NewGenerator 创建嵌入生成器。minLength 以下的文本不会发起远端调用。
func NewGenerator(embedder TextEmbedder, minLength int) *Generator {
	if minLength <= 0 {
		minLength = 10
	}
	return &Generator{embedder: embedder, minLength: minLength}
}

// Dimensions 返回向量维度
func (g *Generator) Dimensions() int {
	return g.embedder.GetDimensions()
}

// Embed 生成全文向量。空文本或过短文本返回零向量而非错误,
// 由调用方将该简历视为语义轴不可评分。
func (g *Generator) Embed(ctx context.Context, text string) ([]float64, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < g.minLength {
		return make([]float64, g.embedder.GetDimensions()), nil
	}

	vectors, err := g.embedder.EmbedStrings(ctx, []string{trimmed})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: 预期1个向量, 实际%d个", ErrEmbeddingUnavailable, len(vectors))
	}
	return vectors[0], nil
}

// EmbedSection 生成分节向量, 契约与 Embed 相同, 输入通常更短
func (g *Generator) EmbedSection(ctx context.Context, text string) ([]float64, error) {
	return g.Embed(ctx, text)
}

// EmbedBatch 批量向量化。短文本占位零向量, 其余合并为一次远端调用。
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result := make([][]float64, len(texts))
	var pending []string
	var pendingIdx []int
	for i, t := range texts {
		trimmed := strings.TrimSpace(t)
		if len(trimmed) < g.minLength {
			result[i] = make([]float64, g.embedder.GetDimensions())
			continue
		}
		pending = append(pending, trimmed)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return result, nil
	}

	vectors, err := g.embedder.EmbedStrings(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("%w: 预期%d个向量, 实际%d个", ErrEmbeddingUnavailable, len(pending), len(vectors))
	}
	for j, idx := range pendingIdx {
		result[idx] = vectors[j]
	}
	return result, nil
}
