package models

import (
	"encoding/json"
	"fmt"
	"time"

	"resume-ranker-go/internal/types"

	"gorm.io/datatypes"
)

// ResumeRow 简历记录表。指纹做主键, 同一内容永远只有一行;
// 结构化字段与向量以JSON列存储。
type ResumeRow struct {
	Fingerprint       string         `gorm:"type:char(32);primaryKey"`
	ResumeID          string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_resumes_resume_id"`
	RawText           string         `gorm:"type:longtext"`
	Summary           string         `gorm:"type:text"`
	SkillsJSON        datatypes.JSON `gorm:"type:json"`
	ExperienceJSON    datatypes.JSON `gorm:"type:json"`
	EducationJSON     datatypes.JSON `gorm:"type:json"`
	CertificationsJSON datatypes.JSON `gorm:"type:json"`
	EmbeddingJSON     datatypes.JSON `gorm:"type:json"`
	SectionEmbeddingsJSON datatypes.JSON `gorm:"type:json"`
	Provenance        string         `gorm:"type:varchar(50);index:idx_resumes_provenance"`
	ModelVersion      string         `gorm:"type:varchar(100)"`
	LastModified      time.Time      `gorm:"type:datetime(6);index:idx_resumes_last_modified"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ResumeRow) TableName() string {
	return "resume_records"
}

// FromRecord 把领域记录转成数据库行
func FromRecord(rec *types.ResumeRecord, modelVersion string) (*ResumeRow, error) {
	row := &ResumeRow{
		Fingerprint:  rec.Fingerprint,
		ResumeID:     rec.ResumeID,
		RawText:      rec.RawText,
		Summary:      rec.Summary,
		Provenance:   string(rec.Provenance),
		ModelVersion: modelVersion,
		LastModified: rec.LastModified,
	}
	for _, f := range []struct {
		name string
		src  interface{}
		dst  *datatypes.JSON
	}{
		{"skills", rec.Skills, &row.SkillsJSON},
		{"experience", rec.Experience, &row.ExperienceJSON},
		{"education", rec.Education, &row.EducationJSON},
		{"certifications", rec.Certifications, &row.CertificationsJSON},
		{"embedding", rec.Embedding, &row.EmbeddingJSON},
		{"section_embeddings", rec.SectionEmbeddings, &row.SectionEmbeddingsJSON},
	} {
		data, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("序列化%s失败: %w", f.name, err)
		}
		*f.dst = data
	}
	return row, nil
}

// ToRecord 把数据库行还原成领域记录
func (r *ResumeRow) ToRecord() (*types.ResumeRecord, error) {
	rec := &types.ResumeRecord{
		Fingerprint:  r.Fingerprint,
		ResumeID:     r.ResumeID,
		RawText:      r.RawText,
		Summary:      r.Summary,
		Provenance:   types.Provenance(r.Provenance),
		LastModified: r.LastModified,
	}
	for _, f := range []struct {
		name string
		src  datatypes.JSON
		dst  interface{}
	}{
		{"skills", r.SkillsJSON, &rec.Skills},
		{"experience", r.ExperienceJSON, &rec.Experience},
		{"education", r.EducationJSON, &rec.Education},
		{"certifications", r.CertificationsJSON, &rec.Certifications},
		{"embedding", r.EmbeddingJSON, &rec.Embedding},
		{"section_embeddings", r.SectionEmbeddingsJSON, &rec.SectionEmbeddings},
	} {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, fmt.Errorf("反序列化%s失败: %w", f.name, err)
		}
	}
	return rec, nil
}
