package synonym

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOracle struct {
	calls   int
	answers map[string]string
	err     error
}

func (o *recordingOracle) Canonicalize(ctx context.Context, rawSkill string) (string, error) {
	o.calls++
	if o.err != nil {
		return "", o.err
	}
	if ans, ok := o.answers[rawSkill]; ok {
		return ans, nil
	}
	return "", ErrOracleUnavailable
}

func TestCanonicalizeBuiltinAliases(t *testing.T) {
	r := NewResolver()
	ctx := context.Background()

	tests := []struct {
		raw  string
		want string
	}{
		{"k8s", "Kubernetes"},
		{"K8S", "Kubernetes"},
		{"kubernetes", "Kubernetes"},
		{"js", "JavaScript"},
		{"golang", "Go"},
		{"postgres", "PostgreSQL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Canonicalize(ctx, tt.raw), "raw=%q", tt.raw)
	}
}

func TestCanonicalizeNormalizedFallback(t *testing.T) {
	r := NewResolver()
	ctx := context.Background()

	// 标点/连字符差异通过规范化通道归一
	assert.Equal(t, "Kubernetes", r.Canonicalize(ctx, "K-8s"))
	assert.Equal(t, "Node.js", r.Canonicalize(ctx, "nodejs"))
	assert.Equal(t, "CI/CD", r.Canonicalize(ctx, "cicd"))
}

func TestCanonicalizeUnknownPassthrough(t *testing.T) {
	r := NewResolver()
	got := r.Canonicalize(context.Background(), "  SomeObscureFramework  ")
	assert.Equal(t, "SomeObscureFramework", got)
}

func TestOracleMemoization(t *testing.T) {
	oracle := &recordingOracle{answers: map[string]string{"ЯП": "Go"}}
	r := NewResolver(WithOracle(oracle))
	ctx := context.Background()

	assert.Equal(t, "Go", r.Canonicalize(ctx, "ЯП"))
	assert.Equal(t, "Go", r.Canonicalize(ctx, "ЯП"))
	assert.Equal(t, "Go", r.Canonicalize(ctx, "яп"))
	assert.Equal(t, 1, oracle.calls, "同一词条一次运行内只查询一次oracle")
}

func TestOracleFailurePassthrough(t *testing.T) {
	oracle := &recordingOracle{err: errors.New("rate limited")}
	r := NewResolver(WithOracle(oracle))
	ctx := context.Background()

	assert.Equal(t, "MysteryTech", r.Canonicalize(ctx, "MysteryTech"))
	// 失败结果同样缓存, 不反复打oracle
	assert.Equal(t, "MysteryTech", r.Canonicalize(ctx, "MysteryTech"))
	assert.Equal(t, 1, oracle.calls)
}

func TestOracleAnswerConvergesThroughTable(t *testing.T) {
	// oracle回答别名时, 进一步收敛到表内标准名
	oracle := &recordingOracle{answers: map[string]string{"жс": "js"}}
	r := NewResolver(WithOracle(oracle))

	assert.Equal(t, "JavaScript", r.Canonicalize(context.Background(), "жс"))
}

func TestMatch(t *testing.T) {
	r := NewResolver()
	ctx := context.Background()

	assert.True(t, r.Match(ctx, "k8s", "Kubernetes"))
	assert.True(t, r.Match(ctx, "golang", "Go"))
	assert.False(t, r.Match(ctx, "Java", "JavaScript"))
}

func TestCanonicalSetDeduplicates(t *testing.T) {
	r := NewResolver()
	set := r.CanonicalSet(context.Background(), []string{"k8s", "Kubernetes", "golang", ""})

	require.Len(t, set, 2)
	assert.Contains(t, set, "kubernetes")
	assert.Contains(t, set, "go")
	// 保留首次出现的原词
	assert.Equal(t, "k8s", set["kubernetes"])
}

func TestLoadAliasFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.yaml")
	content := "Terraform:\n  - tf\n  - terrafrm\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := NewResolver()
	require.NoError(t, r.LoadAliasFile(path))

	assert.Equal(t, "Terraform", r.Canonicalize(context.Background(), "tf"))
	assert.Equal(t, "Terraform", r.Canonicalize(context.Background(), "terrafrm"))
}
