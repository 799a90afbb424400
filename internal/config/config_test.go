package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	// 权重向量
	assert.Equal(t, 0.35, cfg.Scoring.RequiredSkillsWeight)
	assert.Equal(t, 0.05, cfg.Scoring.EducationMatchWeight)
	assert.Equal(t, 5, cfg.Ranker.ExhaustiveThreshold)
	assert.Equal(t, 1024, cfg.Embedding.Dimensions)
}

func TestValidateRejectsBadWeightSum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.RequiredSkillsWeight = 0.5 // 总和变为1.15
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "权重")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Dimensions = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Ranker.PrefilterKMultiplier = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Ranker.ExhaustiveThreshold = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ranker:
  exhaustive_threshold: 8
redis:
  address: "redis.internal:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// 文件中的值覆盖默认值
	assert.Equal(t, 8, cfg.Ranker.ExhaustiveThreshold)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Address)
	// 未出现的键保持默认
	assert.Equal(t, 10, cfg.Ranker.DefaultLimit)
	assert.Equal(t, 0.35, cfg.Scoring.RequiredSkillsWeight)
}

func TestLoadConfigMissingFile(t *testing.T) {
	// 显式指定的路径不存在视为错误
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 0.35, cfg.Scoring.RequiredSkillsWeight)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

func TestLoadConfigInvalidWeightsInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
scoring:
  required_skills_weight: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  api_key: from-file\n"), 0o644))

	t.Setenv("EMBEDDING_API_KEY", "from-env")
	t.Setenv("MYSQL_PASSWORD", "secret-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Embedding.APIKey)
	assert.Equal(t, "secret-env", cfg.MySQL.Password)
}
