package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-ranker-go/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultChatModelName = "qwen-plus"

// openAIChatRequest OpenAI兼容的chat completions请求体
type openAIChatRequest struct {
	Model    string            `json:"model"`
	Messages []*schema.Message `json:"messages"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Role      string  `json:"role"`
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIChatModel 通过OpenAI兼容HTTP接口与聊天模型交互,
// 实现 model.ToolCallingChatModel 接口。
type OpenAIChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel 创建聊天模型客户端
func NewOpenAIChatModel(apiKey, modelName, apiURL string) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultChatModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("API URL不能为空")
	}

	return &OpenAIChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Generate 实现 model.BaseChatModel 接口
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	reqPayload := openAIChatRequest{
		Model:    m.modelName,
		Messages: messages,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API请求失败, 状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp openAIChatResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化API响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("从API收到空选项: %s", string(bodyBytes))
	}

	apiMessage := resp.Choices[0].Message
	content := ""
	if apiMessage.Content != nil {
		content = *apiMessage.Content
	}

	result := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: content,
	}
	if result.Role == "" {
		result.Role = schema.Assistant
	}
	if len(apiMessage.ToolCalls) > 0 {
		result.ToolCalls = make([]schema.ToolCall, len(apiMessage.ToolCalls))
		for i, tc := range apiMessage.ToolCalls {
			result.ToolCalls[i] = schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}
	return result, nil
}

// Stream 实现 model.BaseChatModel 接口 (未启用)
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel 的 Stream 方法未实现")
}

// WithTools 实现 model.ToolCallingChatModel 接口。同义词oracle只用
// 纯文本补全, 工具列表在这里只做记录。
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	logger.Debug().Int("tools", len(tools)).Msg("聊天模型收到工具绑定请求")
	return m, nil
}
