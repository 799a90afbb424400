package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// qdrantRecorder 记录客户端发出的请求并按路径回放响应
type qdrantRecorder struct {
	mu        chan struct{} // 简单互斥
	requests  []recordedRequest
	responses map[string]string
}

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

func newQdrantRecorder() *qdrantRecorder {
	rec := &qdrantRecorder{
		mu:        make(chan struct{}, 1),
		responses: make(map[string]string),
	}
	rec.mu <- struct{}{}
	return rec
}

func (r *qdrantRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		<-r.mu
		r.requests = append(r.requests, recordedRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Body:   body,
		})
		resp, ok := r.responses[req.URL.Path]
		r.mu <- struct{}{}

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			resp = `{"result":{},"status":"ok"}`
		}
		_, _ = w.Write([]byte(resp))
	}
}

func (r *qdrantRecorder) find(method, path string) *recordedRequest {
	<-r.mu
	defer func() { r.mu <- struct{}{} }()
	for i := range r.requests {
		if r.requests[i].Method == method && r.requests[i].Path == path {
			return &r.requests[i]
		}
	}
	return nil
}

func newTestQdrant(t *testing.T, rec *qdrantRecorder) *Qdrant {
	t.Helper()
	server := httptest.NewServer(rec.handler())
	t.Cleanup(server.Close)

	// 集合已存在, 构造时不触发创建
	rec.responses["/collections"] = `{"result":{"collections":[{"name":"resume_vectors"}]}}`

	q, err := NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "resume_vectors",
		Dimension:  4,
	})
	require.NoError(t, err)
	return q
}

func TestNewQdrantCreatesMissingCollection(t *testing.T) {
	rec := newQdrantRecorder()
	server := httptest.NewServer(rec.handler())
	t.Cleanup(server.Close)
	rec.responses["/collections"] = `{"result":{"collections":[]}}`

	_, err := NewQdrant(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "resume_vectors",
		Dimension:  4,
	}, WithDistanceMetric("Dot"))
	require.NoError(t, err)

	created := rec.find(http.MethodPut, "/collections/resume_vectors")
	require.NotNil(t, created, "集合缺失时应发起创建请求")

	var body struct {
		Vectors struct {
			Size     int    `json:"size"`
			Distance string `json:"distance"`
		} `json:"vectors"`
	}
	require.NoError(t, json.Unmarshal(created.Body, &body))
	assert.Equal(t, 4, body.Vectors.Size)
	assert.Equal(t, "Dot", body.Vectors.Distance)
}

func TestPointIDsAreDeterministic(t *testing.T) {
	fp := "0123456789abcdef0123456789abcdef"

	assert.Equal(t, documentPointID(fp), documentPointID(fp))
	assert.Equal(t, sectionPointID(fp, "skills"), sectionPointID(fp, "skills"))

	assert.NotEqual(t, documentPointID(fp), documentPointID("another-fingerprint"))
	assert.NotEqual(t, documentPointID(fp), sectionPointID(fp, "skills"))
	assert.NotEqual(t, sectionPointID(fp, "skills"), sectionPointID(fp, "summary"))
}

func TestUpsertResumePoints(t *testing.T) {
	rec := newQdrantRecorder()
	q := newTestQdrant(t, rec)

	record := &types.ResumeRecord{
		ResumeID:     "r-1",
		Fingerprint:  "0123456789abcdef0123456789abcdef",
		Provenance:   types.ProvenanceUpload,
		LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Embedding:    []float64{0.1, 0.2, 0.3, 0.4},
		SectionEmbeddings: map[string][]float64{
			"skills":  {0.5, 0.5, 0, 0},
			"summary": {0, 0, 0, 0}, // 零向量节应被跳过
		},
	}
	require.NoError(t, q.UpsertResumePoints(context.Background(), record))

	upsert := rec.find(http.MethodPut, "/collections/resume_vectors/points")
	require.NotNil(t, upsert)

	var body struct {
		Points []struct {
			ID      string                 `json:"id"`
			Vector  []float64              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(upsert.Body, &body))
	require.Len(t, body.Points, 2, "document点 + 非零section点")

	kinds := map[string]int{}
	for _, p := range body.Points {
		kind, _ := p.Payload["kind"].(string)
		kinds[kind]++
		assert.Equal(t, "r-1", p.Payload["resume_id"])
		assert.Equal(t, record.Fingerprint, p.Payload["fingerprint"])
		if kind == pointKindDocument {
			assert.Equal(t, documentPointID(record.Fingerprint), p.ID)
			assert.Equal(t, "2026-03-01T12:00:00Z", p.Payload["last_modified"])
		}
	}
	assert.Equal(t, map[string]int{pointKindDocument: 1, pointKindSection: 1}, kinds)
}

func TestUpsertSkipsAllZeroVectors(t *testing.T) {
	rec := newQdrantRecorder()
	q := newTestQdrant(t, rec)

	record := &types.ResumeRecord{
		ResumeID:    "r-2",
		Fingerprint: "fedcba9876543210fedcba9876543210",
		Embedding:   []float64{0, 0, 0, 0},
	}
	require.NoError(t, q.UpsertResumePoints(context.Background(), record))
	assert.Nil(t, rec.find(http.MethodPut, "/collections/resume_vectors/points"),
		"全零向量的简历不应写入任何点")
}

func TestSearchSimilarResumes(t *testing.T) {
	rec := newQdrantRecorder()
	q := newTestQdrant(t, rec)
	rec.responses["/collections/resume_vectors/points/search"] = `{
		"result": [
			{"id": "p-1", "score": 0.93, "payload": {"resume_id": "r-1", "kind": "document"}},
			{"id": "p-2", "score": 0.87, "payload": {"resume_id": "r-2", "kind": "section", "section": "experience"}},
			{"id": "p-3", "score": 0.81, "payload": {"resume_id": "r-2", "kind": "document"}}
		]
	}`

	results, err := q.SearchSimilarResumes(context.Background(), []float64{0.1, 0.2, 0.3, 0.4}, 5)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "r-1", results[0].ResumeID())
	assert.InDelta(t, 0.93, float64(results[0].Score), 0.001)
	assert.Equal(t, "r-2", results[1].ResumeID(), "section点同样参与命中")

	// document与section点都可命中, 请求不带kind过滤
	search := rec.find(http.MethodPost, "/collections/resume_vectors/points/search")
	require.NotNil(t, search)
	var body struct {
		Limit  int              `json:"limit"`
		Filter *json.RawMessage `json:"filter"`
	}
	require.NoError(t, json.Unmarshal(search.Body, &body))
	assert.Equal(t, 5, body.Limit)
	assert.Nil(t, body.Filter)
}

func TestSearchRejectsEmptyVector(t *testing.T) {
	rec := newQdrantRecorder()
	q := newTestQdrant(t, rec)
	_, err := q.SearchSimilarResumes(context.Background(), nil, 5)
	assert.Error(t, err)
}

func TestDeleteResumePoints(t *testing.T) {
	rec := newQdrantRecorder()
	q := newTestQdrant(t, rec)

	require.NoError(t, q.DeleteResumePoints(context.Background(), "r-1"))

	del := rec.find(http.MethodPost, "/collections/resume_vectors/points/delete")
	require.NotNil(t, del)
	assert.Contains(t, string(del.Body), `"resume_id"`)
	assert.Contains(t, string(del.Body), `"r-1"`)
}

func TestCountDocuments(t *testing.T) {
	rec := newQdrantRecorder()
	q := newTestQdrant(t, rec)
	rec.responses["/collections/resume_vectors/points/count"] = `{"result":{"count":42}}`

	count, err := q.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestQdrantErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	_, err := NewQdrant(&config.QdrantConfig{Endpoint: server.URL})
	assert.Error(t, err)
}
