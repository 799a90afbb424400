package types // 定义排序核心使用的领域数据结构

import (
	"time"
)

// Provenance 简历的来源渠道
type Provenance string

const (
	// ProvenanceUpload 用户主动上传
	ProvenanceUpload Provenance = "upload"
	// ProvenanceImportedFolder 从云文件夹批量导入
	ProvenanceImportedFolder Provenance = "imported_folder"
)

// ExperienceEntry 一段工作经历
type ExperienceEntry struct {
	Title   string   `json:"title"`
	Company string   `json:"company"`
	Dates   string   `json:"dates"` // 原始日期区间文本, 例如 "2019.07 - Present"
	Bullets []string `json:"bullets"`
}

// EducationEntry 一条教育经历
type EducationEntry struct {
	Degree string `json:"degree"`
	School string `json:"school"`
	Year   string `json:"year,omitempty"`
}

// ResumeRecord 简历缓存记录。
// 身份由 Fingerprint（规范化文本的内容哈希）唯一确定；同一份外部简历
// 内容变化后会产生新的 Fingerprint，成为一条新记录并取代旧缓存条目。
// 记录一旦写入不做原地修改。
type ResumeRecord struct {
	// Fingerprint 规范化原文的128位内容哈希（32位十六进制）
	Fingerprint string `json:"fingerprint"`
	// ResumeID 外部简历标识，跨指纹保持稳定
	ResumeID string `json:"resume_id"`
	// RawText 完整抽取文本
	RawText string `json:"raw_text"`

	// 结构化字段
	Summary        string            `json:"summary,omitempty"`
	Skills         []string          `json:"skills,omitempty"`
	Experience     []ExperienceEntry `json:"experience,omitempty"`
	Education      []EducationEntry  `json:"education,omitempty"`
	Certifications []string          `json:"certifications,omitempty"`

	// Embedding 全文向量, 维度由配置决定; 空向量表示语义轴不可用
	Embedding []float64 `json:"embedding,omitempty"`
	// SectionEmbeddings 可选的分节向量 (summary/skills/experience)
	SectionEmbeddings map[string][]float64 `json:"section_embeddings,omitempty"`

	Provenance   Provenance `json:"provenance"`
	LastModified time.Time  `json:"last_modified"`
}

// Neighbor 向量近邻查询的一个结果: 记录本体加上与查询向量的余弦相似度
type Neighbor struct {
	Record     *ResumeRecord
	Similarity float64
}

// JDType 岗位描述的角色分类
type JDType string

const (
	JDTypeJavaBackend   JDType = "java_backend"
	JDTypePythonBackend JDType = "python_backend"
	JDTypeAIML          JDType = "ai_ml"
	JDTypeFrontend      JDType = "frontend"
	JDTypeFullstack     JDType = "fullstack"
	JDTypeNewGrad       JDType = "new_grad"
)

// JobDescriptionRecord 解析后的岗位描述，解析完成后不可变。
// 重新解析会得到一个新的 JDID。
type JobDescriptionRecord struct {
	JDID    string `json:"jd_id"`
	Title   string `json:"title"`
	Company string `json:"company"`
	JDType  JDType `json:"jd_type,omitempty"`

	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills"`
	// MinYearsExperience 最低年限要求, nil 表示未设置
	MinYearsExperience *int     `json:"min_years_experience,omitempty"`
	Education          string   `json:"education,omitempty"`
	Responsibilities   []string `json:"responsibilities,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`

	RawText   string    `json:"raw_text"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// ScoreBreakdown 六个加权分量, 每项取值 [0,100]
type ScoreBreakdown struct {
	RequiredSkillsPct      float64 `json:"required_skills_pct"`
	PreferredSkillsPct     float64 `json:"preferred_skills_pct"`
	TitleSimilarityPct     float64 `json:"title_similarity_pct"`
	ExperienceRelevancePct float64 `json:"experience_relevance_pct"`
	YearsFitPct            float64 `json:"years_experience_fit_pct"`
	EducationMatchPct      float64 `json:"education_match_pct"`
}

// KnockoutSeverity 缺失技能告警的级别
type KnockoutSeverity string

const (
	SeverityCritical KnockoutSeverity = "critical"
	SeverityWarning  KnockoutSeverity = "warning"
)

// KnockoutAlert 针对单个缺失技能的告警, 只在评分时生成, 不单独持久化
type KnockoutAlert struct {
	Skill    string           `json:"skill"`
	Severity KnockoutSeverity `json:"severity"`
	Message  string           `json:"message"`
}

// ResumeScore 单份简历针对一个 JD 的完整评分
type ResumeScore struct {
	ResumeID string `json:"resume_id"`
	// OverallScore 六分量按固定权重的加权和, 取值 [0,100], 始终可由
	// Breakdown 和权重向量重新推导
	OverallScore float64         `json:"overall_score"`
	Breakdown    ScoreBreakdown  `json:"breakdown"`
	Alerts       []KnockoutAlert `json:"knockout_alerts,omitempty"`

	MatchedRequiredSkills  []string `json:"matched_required_skills,omitempty"`
	MissingRequiredSkills  []string `json:"missing_required_skills,omitempty"`
	MatchedPreferredSkills []string `json:"matched_preferred_skills,omitempty"`

	// Diagnostics 评分过程中发生的局部降级说明（如日期无法解析），
	// 不影响简历进入排名
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// RankingResult 一次排序请求的完整输出, 按总分降序排列。
// 结果是一次性给齐的扁平结构, 不含游标或惰性序列。
type RankingResult struct {
	JDID     string        `json:"jd_id"`
	Rankings []ResumeScore `json:"rankings"`
	// TopResumeID 排名首位的简历标识; 候选池为空时排序调用直接报错,
	// 不会返回占位值
	TopResumeID string `json:"top_resume_id"`
}
