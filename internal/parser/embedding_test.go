package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"resume-ranker-go/internal/config"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedderConfig(baseURL string, dims int) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Model:      "text-embedding-v4",
		BaseURL:    baseURL,
		Dimensions: dims,
	}
}

func TestNewRemoteEmbedderValidation(t *testing.T) {
	_, err := NewRemoteEmbedder("", embedderConfig("http://localhost", 4))
	assert.Error(t, err, "缺少API密钥应失败")

	_, err = NewRemoteEmbedder("sk-test", config.EmbeddingConfig{Dimensions: 4})
	assert.Error(t, err, "缺少base_url应失败")
}

func TestEmbedStringsReordersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-v4", req.Model)

		// 乱序返回, 客户端需按index归位
		fmt.Fprint(w, `{
			"data": [
				{"embedding": [0, 1], "index": 1},
				{"embedding": [1, 0], "index": 0}
			],
			"usage": {"total_tokens": 7}
		}`)
	}))
	t.Cleanup(server.Close)

	e, err := NewRemoteEmbedder("sk-test", embedderConfig(server.URL, 2))
	require.NoError(t, err)

	vectors, err := e.EmbedStrings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 0}, vectors[0])
	assert.Equal(t, []float64{0, 1}, vectors[1])
}

func TestEmbedStringsDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{"embedding": [1, 0, 0], "index": 0}]}`)
	}))
	t.Cleanup(server.Close)

	e, err := NewRemoteEmbedder("sk-test", embedderConfig(server.URL, 2))
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"text"})
	assert.Error(t, err, "维度与配置不符应报错")
}

func TestEmbedStringsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{"embedding": [1, 0], "index": 0}]}`)
	}))
	t.Cleanup(server.Close)

	e, err := NewRemoteEmbedder("sk-test", embedderConfig(server.URL, 2))
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedStringsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"message": "quota exceeded", "code": "rate_limit"}}`)
	}))
	t.Cleanup(server.Close)

	e, err := NewRemoteEmbedder("sk-test", embedderConfig(server.URL, 2))
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEmbedStringsEmptyInput(t *testing.T) {
	e, err := NewRemoteEmbedder("sk-test", embedderConfig("http://unused", 2))
	require.NoError(t, err)

	vectors, err := e.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

// fixedEmbedder Generator测试用的本地假嵌入器
type fixedEmbedder struct {
	dims  int
	err   error
	calls int
}

func (f *fixedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 2, 3}[:f.dims]
	}
	return out, nil
}

func (f *fixedEmbedder) GetDimensions() int { return f.dims }

func TestGeneratorShortTextGetsZeroVector(t *testing.T) {
	fake := &fixedEmbedder{dims: 3}
	g := NewGenerator(fake, 10)

	vec, err := g.Embed(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, vec)
	assert.Zero(t, fake.calls, "过短文本不应发起远端调用")

	vec, err = g.Embed(context.Background(), "   \n  ")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, vec)
}

func TestGeneratorEmbedWrapsRemoteError(t *testing.T) {
	fake := &fixedEmbedder{dims: 3, err: errors.New("dial tcp: refused")}
	g := NewGenerator(fake, 1)

	_, err := g.Embed(context.Background(), "long enough text")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestGeneratorMinLengthDefault(t *testing.T) {
	fake := &fixedEmbedder{dims: 3}
	g := NewGenerator(fake, 0)

	// minLength<=0 回落到10, 9字符文本仍走零向量
	vec, err := g.Embed(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, vec)
	assert.Zero(t, fake.calls)
}

func TestGeneratorEmbedBatch(t *testing.T) {
	fake := &fixedEmbedder{dims: 3}
	g := NewGenerator(fake, 10)

	vectors, err := g.EmbedBatch(context.Background(), []string{
		"short",
		"this one is long enough",
		"",
		"another sufficiently long text",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	// 短文本占位零向量, 长文本来自一次合并调用
	assert.Equal(t, []float64{0, 0, 0}, vectors[0])
	assert.Equal(t, []float64{1, 2, 3}, vectors[1])
	assert.Equal(t, []float64{0, 0, 0}, vectors[2])
	assert.Equal(t, []float64{1, 2, 3}, vectors[3])
	assert.Equal(t, 1, fake.calls)
}

func TestGeneratorEmbedBatchAllShort(t *testing.T) {
	fake := &fixedEmbedder{dims: 3}
	g := NewGenerator(fake, 10)

	vectors, err := g.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0, 0}, {0, 0, 0}}, vectors)
	assert.Zero(t, fake.calls)
}
