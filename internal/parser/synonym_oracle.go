package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// llmCanonicalAnswer LLM返回的规范化结果
type llmCanonicalAnswer struct {
	Canonical string `json:"canonical"`
	Known     bool   `json:"known"`
}

// LLMSynonymOracle 基于LLM的技能语义等价判定器。
// 只处理别名表未覆盖的生僻词条, 调用方负责结果的进程内缓存。
type LLMSynonymOracle struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// LLMSynonymOracleOption 配置选项
type LLMSynonymOracleOption func(*LLMSynonymOracle)

// WithOraclePromptTemplate 设置自定义提示词模板
func WithOraclePromptTemplate(template string) LLMSynonymOracleOption {
	return func(o *LLMSynonymOracle) {
		o.promptTemplate = template
	}
}

// NewLLMSynonymOracle 创建oracle实例
func NewLLMSynonymOracle(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...LLMSynonymOracleOption) *LLMSynonymOracle {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	oracle := &LLMSynonymOracle{
		llmModel: llmModel,
		logger:   logger,
	}
	oracle.generatePromptTemplate()

	for _, opt := range options {
		opt(oracle)
	}
	return oracle
}

func (o *LLMSynonymOracle) generatePromptTemplate() {
	o.promptTemplate = `你是技术招聘领域的技能词规范化助手。给定一个技能词条, 输出它在业界最通用的标准名称。

规则:
1. 输出必须是一个合法的JSON对象, 不要输出任何其他文本或Markdown标记。
2. 格式: {"canonical": "<标准名称>", "known": true|false}
3. 缩写展开为标准名 (如 "k8s" -> "Kubernetes", "JS" -> "JavaScript")。
4. 已经是标准名的词条原样返回。
5. 不认识的词条返回 {"canonical": "", "known": false}, 不要猜测。

技能词条: %s`
}

// Canonicalize 调用LLM将技能词条映射为标准名称。
// LLM不认识该词条或任一环节失败时返回错误, 由调用方透传原词。
func (o *LLMSynonymOracle) Canonicalize(ctx context.Context, rawSkill string) (string, error) {
	if o.llmModel == nil {
		return "", fmt.Errorf("LLMSynonymOracle: llmModel is not initialized")
	}
	if strings.TrimSpace(rawSkill) == "" {
		return "", fmt.Errorf("LLMSynonymOracle: empty skill term")
	}

	userMsg := einoschema.UserMessage(fmt.Sprintf(o.promptTemplate, rawSkill))
	systemMsg := einoschema.SystemMessage("你是一个只输出JSON的技能词规范化助手。")

	response, err := o.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		o.logger.Printf("[LLMSynonymOracle] LLM call error: %v", err)
		return "", fmt.Errorf("LLMSynonymOracle: LLM call failed: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("LLMSynonymOracle: LLM returned empty response")
	}

	processed := strings.TrimPrefix(response.Content, "\uFEFF")
	jsonStr := extractJSONObject(processed)
	if jsonStr == "" {
		return "", fmt.Errorf("LLMSynonymOracle: failed to extract JSON from response: %s", processed)
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var answer llmCanonicalAnswer
	if err := json.Unmarshal([]byte(jsonStr), &answer); err != nil {
		return "", fmt.Errorf("LLMSynonymOracle: failed to unmarshal response: %w, raw: %s", err, jsonStr)
	}
	if !answer.Known || strings.TrimSpace(answer.Canonical) == "" {
		return "", fmt.Errorf("LLMSynonymOracle: term %q unknown to oracle", rawSkill)
	}
	return strings.TrimSpace(answer.Canonical), nil
}

// extractJSONObject 从文本中提取第一个配对完整的JSON对象
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
