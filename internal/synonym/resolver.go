package synonym // 技能词条规范化: 别名表 + LLM oracle 兜底

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"resume-ranker-go/internal/logger"

	"gopkg.in/yaml.v3"
)

// ErrOracleUnavailable oracle未配置或调用失败。解析器捕获该错误后
// 透传原词条, 从不向上抛出。
var ErrOracleUnavailable = errors.New("synonym oracle unavailable")

// Oracle 外部语义等价判定器 (LLM协作方)
type Oracle interface {
	// Canonicalize 返回词条的标准名称, 不认识时返回错误
	Canonicalize(ctx context.Context, rawSkill string) (string, error)
}

// Resolver 技能词条规范化器。
// 解析顺序: 别名表精确匹配(忽略大小写) -> 去标点规范化匹配 -> oracle。
// oracle 结果在进程内缓存, 同一生僻词条一次运行内只查询一次。
type Resolver struct {
	aliasToCanonical map[string]string // 小写别名 -> 标准名
	normToCanonical  map[string]string // 规范化别名 -> 标准名
	oracle           Oracle

	mu          sync.RWMutex
	oracleCache map[string]string // 小写原词 -> 标准名 ("" 表示oracle不认识)
}

// ResolverOption 构造选项
type ResolverOption func(*Resolver)

// WithOracle 设置LLM兜底判定器
func WithOracle(oracle Oracle) ResolverOption {
	return func(r *Resolver) {
		r.oracle = oracle
	}
}

// NewResolver 基于内置别名表创建解析器
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		aliasToCanonical: make(map[string]string),
		normToCanonical:  make(map[string]string),
		oracleCache:      make(map[string]string),
	}
	r.loadTable(builtinAliases)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadAliasFile 合并外部YAML别名文件 (标准名 -> [别名...]),
// 与内置表冲突时以文件为准
func (r *Resolver) LoadAliasFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取别名文件失败: %w", err)
	}
	extra := make(map[string][]string)
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return fmt.Errorf("解析别名文件失败: %w", err)
	}
	r.loadTable(extra)
	return nil
}

func (r *Resolver) loadTable(table map[string][]string) {
	for canonical, aliases := range table {
		lower := strings.ToLower(strings.TrimSpace(canonical))
		r.aliasToCanonical[lower] = canonical
		r.normToCanonical[normalizeToken(canonical)] = canonical
		for _, alias := range aliases {
			r.aliasToCanonical[strings.ToLower(strings.TrimSpace(alias))] = canonical
			r.normToCanonical[normalizeToken(alias)] = canonical
		}
	}
}

// Canonicalize 将原始技能词条映射为标准形式。永不失败:
// 所有通道都未命中时原样返回 (仅去掉首尾空白)。
func (r *Resolver) Canonicalize(ctx context.Context, rawSkill string) string {
	trimmed := strings.TrimSpace(rawSkill)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)

	// 1. 别名表精确匹配
	if canonical, ok := r.aliasToCanonical[lower]; ok {
		return canonical
	}

	// 2. 去标点/连字符后的规范化匹配 ("K-8s" -> "k8s" -> Kubernetes)
	if canonical, ok := r.normToCanonical[normalizeToken(trimmed)]; ok {
		return canonical
	}

	// 3. oracle兜底, 结果进程内缓存
	r.mu.RLock()
	cached, hit := r.oracleCache[lower]
	r.mu.RUnlock()
	if hit {
		if cached == "" {
			return trimmed
		}
		return cached
	}

	resolved := r.queryOracle(ctx, trimmed)
	r.mu.Lock()
	r.oracleCache[lower] = resolved
	r.mu.Unlock()

	if resolved == "" {
		return trimmed
	}
	return resolved
}

// queryOracle 调用oracle, 失败时返回空串 (透传语义)。
// oracle不可用只记一条日志, 不中断评分。
func (r *Resolver) queryOracle(ctx context.Context, term string) string {
	if r.oracle == nil {
		return ""
	}
	canonical, err := r.oracle.Canonicalize(ctx, term)
	if err != nil {
		logger.Warn().Err(err).Str("term", term).Msg("同义词oracle查询失败, 词条透传")
		return ""
	}
	// oracle的答案如果命中别名表, 进一步收敛到表内标准名
	if tabled, ok := r.aliasToCanonical[strings.ToLower(canonical)]; ok {
		return tabled
	}
	return canonical
}

// Match 判断两个技能词条在规范化后是否等价
func (r *Resolver) Match(ctx context.Context, a, b string) bool {
	return strings.EqualFold(r.Canonicalize(ctx, a), r.Canonicalize(ctx, b))
}

// CanonicalSet 将技能列表规范化为去重集合 (小写标准名 -> 原词)
func (r *Resolver) CanonicalSet(ctx context.Context, skills []string) map[string]string {
	set := make(map[string]string, len(skills))
	for _, s := range skills {
		canonical := r.Canonicalize(ctx, s)
		if canonical == "" {
			continue
		}
		key := strings.ToLower(canonical)
		if _, exists := set[key]; !exists {
			set[key] = s
		}
	}
	return set
}

// normalizeToken 小写并移除空白、连字符、点号等标点,
// 使 "K8s" / "k-8s" / "Node.js" 这类写法归一
func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == '#':
			// "c++" 和 "c#" 的符号有区分意义, 保留
			b.WriteRune(r)
		}
	}
	return b.String()
}
