package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIChatModelValidation(t *testing.T) {
	_, err := NewOpenAIChatModel("", "qwen-plus", "http://localhost/v1/chat")
	assert.Error(t, err, "缺少API密钥应失败")

	_, err = NewOpenAIChatModel("sk-test", "qwen-plus", "")
	assert.Error(t, err, "缺少API URL应失败")

	m, err := NewOpenAIChatModel("sk-test", "", "http://localhost/v1/chat")
	require.NoError(t, err)
	assert.Equal(t, defaultChatModelName, m.modelName, "模型名缺省用默认值")
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"choices": [
				{"message": {"role": "assistant", "content": "Kubernetes"}}
			]
		}`)
	}))
	t.Cleanup(server.Close)

	m, err := NewOpenAIChatModel("sk-test", "qwen-plus", server.URL)
	require.NoError(t, err)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.UserMessage("What is the canonical name for k8s?"),
	})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "Kubernetes", msg.Content)
}

func TestGenerateNilContentAndMissingRole(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 部分网关在触发工具调用时content为null且不带role
		fmt.Fprint(w, `{
			"choices": [
				{"message": {"content": null, "tool_calls": [
					{"id": "call-1", "function": {"name": "lookup", "arguments": "{\"term\":\"k8s\"}"}}
				]}}
			]
		}`)
	}))
	t.Cleanup(server.Close)

	m, err := NewOpenAIChatModel("sk-test", "qwen-plus", server.URL)
	require.NoError(t, err)

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Empty(t, msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "lookup", msg.ToolCalls[0].Function.Name)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("非200状态", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		t.Cleanup(server.Close)

		m, err := NewOpenAIChatModel("sk-test", "qwen-plus", server.URL)
		require.NoError(t, err)
		_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
		assert.Error(t, err)
	})

	t.Run("空choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices": []}`)
		}))
		t.Cleanup(server.Close)

		m, err := NewOpenAIChatModel("sk-test", "qwen-plus", server.URL)
		require.NoError(t, err)
		_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
		assert.Error(t, err)
	})
}

func TestStreamNotImplemented(t *testing.T) {
	m, err := NewOpenAIChatModel("sk-test", "qwen-plus", "http://localhost/v1/chat")
	require.NoError(t, err)
	_, err = m.Stream(context.Background(), nil)
	assert.Error(t, err)
}

func TestWithToolsReturnsSelf(t *testing.T) {
	m, err := NewOpenAIChatModel("sk-test", "qwen-plus", "http://localhost/v1/chat")
	require.NoError(t, err)

	bound, err := m.WithTools([]*schema.ToolInfo{{Name: "lookup"}})
	require.NoError(t, err)
	assert.Same(t, m, bound)
}
