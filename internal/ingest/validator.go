package ingest // 摄入口: 对进入缓存的松散JSON做schema校验

import (
	"encoding/json"
	"fmt"
	"strings"

	"resume-ranker-go/internal/types"

	"github.com/xeipuuv/gojsonschema"
)

// resumePayloadSchema 简历摄入载荷的结构约束。raw_text和resume_id
// 必填, 结构化字段全部可选, 未知字段放行。
const resumePayloadSchema = `{
  "type": "object",
  "required": ["resume_id", "raw_text"],
  "properties": {
    "resume_id":  {"type": "string", "minLength": 1},
    "raw_text":   {"type": "string", "minLength": 1},
    "summary":    {"type": "string"},
    "skills":     {"type": "array", "items": {"type": "string"}},
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title":   {"type": "string"},
          "company": {"type": "string"},
          "dates":   {"type": "string"},
          "bullets": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "degree": {"type": "string"},
          "school": {"type": "string"},
          "year":   {"type": "string"}
        }
      }
    },
    "certifications": {"type": "array", "items": {"type": "string"}},
    "provenance":     {"type": "string", "enum": ["upload", "imported_folder"]}
  }
}`

// jdPayloadSchema 岗位描述载荷的结构约束
const jdPayloadSchema = `{
  "type": "object",
  "required": ["jd_id", "title"],
  "properties": {
    "jd_id":            {"type": "string", "minLength": 1},
    "title":            {"type": "string", "minLength": 1},
    "company":          {"type": "string"},
    "jd_type":          {"type": "string"},
    "required_skills":  {"type": "array", "items": {"type": "string"}},
    "preferred_skills": {"type": "array", "items": {"type": "string"}},
    "min_years_experience": {"type": "integer", "minimum": 0},
    "education":        {"type": "string"},
    "responsibilities": {"type": "array", "items": {"type": "string"}},
    "keywords":         {"type": "array", "items": {"type": "string"}},
    "raw_text":         {"type": "string"}
  }
}`

var (
	resumeSchema = gojsonschema.NewStringLoader(resumePayloadSchema)
	jdSchema     = gojsonschema.NewStringLoader(jdPayloadSchema)
)

// validate 执行schema校验, 失败时汇总全部违规项
func validate(schema gojsonschema.JSONLoader, data []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("载荷不是合法JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("载荷校验失败: %s", strings.Join(violations, "; "))
}

// ParseResumePayload 校验并解析简历摄入载荷。来源缺省按upload处理。
func ParseResumePayload(data []byte) (*types.ResumeRecord, error) {
	if err := validate(resumeSchema, data); err != nil {
		return nil, err
	}
	var rec types.ResumeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("解析简历载荷失败: %w", err)
	}
	if rec.Provenance == "" {
		rec.Provenance = types.ProvenanceUpload
	}
	// 指纹与向量由存储层补全, 载荷里带的值不可信
	rec.Fingerprint = ""
	rec.Embedding = nil
	rec.SectionEmbeddings = nil
	return &rec, nil
}

// ParseJDPayload 校验并解析岗位描述载荷
func ParseJDPayload(data []byte) (*types.JobDescriptionRecord, error) {
	if err := validate(jdSchema, data); err != nil {
		return nil, err
	}
	var jd types.JobDescriptionRecord
	if err := json.Unmarshal(data, &jd); err != nil {
		return nil, fmt.Errorf("解析岗位描述载荷失败: %w", err)
	}
	return &jd, nil
}
