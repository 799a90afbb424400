package constants

import "time"

const (
	// EmbeddingModelVersion 当前嵌入模型版本标记, 随模型升级而变;
	// 版本不一致的缓存向量视为不可复用
	EmbeddingModelVersion = "v3"

	// JDVectorCacheDuration JD向量缓存时间
	JDVectorCacheDuration = 24 * time.Hour

	// WriteLockTTL 单指纹写锁的保护时长
	WriteLockTTL = 30 * time.Second

	// SectionSummary / SectionSkills / SectionExperience 分节向量的命名
	SectionSummary    = "summary"
	SectionSkills     = "skills"
	SectionExperience = "experience"
)
