package ingest

import (
	"testing"

	"resume-ranker-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResumePayload(t *testing.T) {
	payload := []byte(`{
		"resume_id": "r-1",
		"raw_text": "Backend engineer with Go experience",
		"skills": ["Go", "MySQL"],
		"experience": [
			{"title": "Engineer", "company": "Acme", "dates": "2020 - Present", "bullets": ["Built APIs"]}
		],
		"education": [{"degree": "Bachelor of Science", "school": "Some University"}],
		"fingerprint": "should-be-discarded",
		"embedding": [0.1, 0.2]
	}`)

	rec, err := ParseResumePayload(payload)
	require.NoError(t, err)

	assert.Equal(t, "r-1", rec.ResumeID)
	assert.Equal(t, []string{"Go", "MySQL"}, rec.Skills)
	require.Len(t, rec.Experience, 1)
	assert.Equal(t, "Engineer", rec.Experience[0].Title)

	// 来源缺省按upload处理
	assert.Equal(t, types.ProvenanceUpload, rec.Provenance)

	// 载荷自带的指纹与向量不可信, 必须清空
	assert.Empty(t, rec.Fingerprint)
	assert.Nil(t, rec.Embedding)
	assert.Nil(t, rec.SectionEmbeddings)
}

func TestParseResumePayloadKeepsProvenance(t *testing.T) {
	rec, err := ParseResumePayload([]byte(`{
		"resume_id": "r-2",
		"raw_text": "imported resume",
		"provenance": "imported_folder"
	}`))
	require.NoError(t, err)
	assert.Equal(t, types.ProvenanceImportedFolder, rec.Provenance)
}

func TestParseResumePayloadRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"缺少raw_text", `{"resume_id": "r-1"}`},
		{"缺少resume_id", `{"raw_text": "text"}`},
		{"resume_id为空串", `{"resume_id": "", "raw_text": "text"}`},
		{"raw_text为空串", `{"resume_id": "r-1", "raw_text": ""}`},
		{"provenance不在枚举内", `{"resume_id": "r-1", "raw_text": "text", "provenance": "scraped"}`},
		{"skills类型错误", `{"resume_id": "r-1", "raw_text": "text", "skills": "Go"}`},
		{"不是JSON", `{resume_id: r-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResumePayload([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestParseJDPayload(t *testing.T) {
	payload := []byte(`{
		"jd_id": "jd-1",
		"title": "Backend Engineer",
		"required_skills": ["Go"],
		"preferred_skills": ["Kubernetes"],
		"min_years_experience": 3,
		"education": "Bachelor",
		"responsibilities": ["Build services"]
	}`)

	jd, err := ParseJDPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "jd-1", jd.JDID)
	assert.Equal(t, "Backend Engineer", jd.Title)
	assert.Equal(t, []string{"Go"}, jd.RequiredSkills)
	require.NotNil(t, jd.MinYearsExperience)
	assert.Equal(t, 3, *jd.MinYearsExperience)
}

func TestParseJDPayloadRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"缺少title", `{"jd_id": "jd-1"}`},
		{"缺少jd_id", `{"title": "Engineer"}`},
		{"负数年限", `{"jd_id": "jd-1", "title": "Engineer", "min_years_experience": -1}`},
		{"年限非整数", `{"jd_id": "jd-1", "title": "Engineer", "min_years_experience": "three"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJDPayload([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}
