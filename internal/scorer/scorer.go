package scorer // 混合评分器: 语义+词法的六分量加权评分

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/parser"
	"resume-ranker-go/internal/synonym"
	"resume-ranker-go/internal/types"
)

// ErrMissingJD 评分/排序请求缺少岗位描述
var ErrMissingJD = errors.New("missing job description")

// 标题相似度的语义/词法混合比例
const (
	titleSemanticWeight = 0.6
	titleKeywordWeight  = 0.4
)

// HybridScorer 计算一个JD与一份简历之间的加权多因子匹配分。
// 对不变的 (jd, resume) 输入, 重复调用的输出逐位一致。
type HybridScorer struct {
	cfg      *config.ScoringConfig
	resolver *synonym.Resolver
	embedder *parser.Generator

	// 进程内向量缓存, 同一文本只向嵌入服务请求一次
	mu        sync.Mutex
	embedMemo map[string][]float64
}

// NewHybridScorer 创建评分器
func NewHybridScorer(cfg *config.ScoringConfig, resolver *synonym.Resolver, embedder *parser.Generator) *HybridScorer {
	return &HybridScorer{
		cfg:       cfg,
		resolver:  resolver,
		embedder:  embedder,
		embedMemo: make(map[string][]float64),
	}
}

// scoringState 单次Score调用的局部状态
type scoringState struct {
	diagnostics   []string
	embedDegraded bool // 本次调用中嵌入服务已失败, 后续语义分量全部走词法降级
}

func (st *scoringState) addDiag(format string, args ...interface{}) {
	st.diagnostics = append(st.diagnostics, fmt.Sprintf(format, args...))
}

// Score 对单份简历评分。六个分量各自 [0,100], 总分为固定权重加权和。
// 单份简历内部的数据问题 (日期无法解析、向量缺失) 只降级对应分量并记入
// Diagnostics, 不会让该简历出错或被剔除。
func (s *HybridScorer) Score(ctx context.Context, jd *types.JobDescriptionRecord, resume *types.ResumeRecord) (*types.ResumeScore, error) {
	if jd == nil {
		return nil, ErrMissingJD
	}
	if resume == nil {
		return nil, fmt.Errorf("resume must not be nil")
	}

	st := &scoringState{}

	// 1/2. 技能匹配
	resumeSkills := s.resolver.CanonicalSet(ctx, resume.Skills)
	matchedRequired, missingRequired := s.matchSkillTier(ctx, jd.RequiredSkills, resumeSkills, resume)
	matchedPreferred, _ := s.matchSkillTier(ctx, jd.PreferredSkills, resumeSkills, resume)

	requiredPct := tierPercentage(len(matchedRequired), len(jd.RequiredSkills))
	preferredPct := tierPercentage(len(matchedPreferred), len(jd.PreferredSkills))

	// 3. 标题相似度
	titlePct := s.titleSimilarity(ctx, jd, resume, st)

	// 4. 经验相关性
	experiencePct := s.experienceRelevance(ctx, jd, resume, st)

	// 5. 年限匹配
	yearsPct := s.yearsFit(jd.MinYearsExperience, resume, st)

	// 6. 学历匹配
	educationPct := s.educationMatch(jd.Education, resume, st)

	breakdown := types.ScoreBreakdown{
		RequiredSkillsPct:      round1(requiredPct),
		PreferredSkillsPct:     round1(preferredPct),
		TitleSimilarityPct:     round1(titlePct),
		ExperienceRelevancePct: round1(experiencePct),
		YearsFitPct:            round1(yearsPct),
		EducationMatchPct:      round1(educationPct),
	}

	overall := breakdown.RequiredSkillsPct*s.cfg.RequiredSkillsWeight +
		breakdown.PreferredSkillsPct*s.cfg.PreferredSkillsWeight +
		breakdown.TitleSimilarityPct*s.cfg.TitleSimilarityWeight +
		breakdown.ExperienceRelevancePct*s.cfg.ExperienceRelevanceWeight +
		breakdown.YearsFitPct*s.cfg.YearsFitWeight +
		breakdown.EducationMatchPct*s.cfg.EducationMatchWeight

	alerts := s.buildKnockouts(missingRequired, jd.PreferredSkills, matchedPreferred, breakdown.PreferredSkillsPct)

	return &types.ResumeScore{
		ResumeID:               resume.ResumeID,
		OverallScore:           round1(clampPct(overall)),
		Breakdown:              breakdown,
		Alerts:                 alerts,
		MatchedRequiredSkills:  matchedRequired,
		MissingRequiredSkills:  missingRequired,
		MatchedPreferredSkills: matchedPreferred,
		Diagnostics:            st.diagnostics,
	}, nil
}

// matchSkillTier 对一档JD技能逐项匹配。技能先经规范化比对简历技能集合,
// 未命中时再在简历全文中做关键词扫描。返回命中/缺失两组, 保留JD原词。
func (s *HybridScorer) matchSkillTier(ctx context.Context, jdSkills []string, resumeSkills map[string]string, resume *types.ResumeRecord) (matched, missing []string) {
	for _, skill := range jdSkills {
		canonical := strings.ToLower(s.resolver.Canonicalize(ctx, skill))
		if _, ok := resumeSkills[canonical]; ok {
			matched = append(matched, skill)
			continue
		}
		if skillInText(skill, canonical, resume) {
			matched = append(matched, skill)
			continue
		}
		missing = append(missing, skill)
	}
	return matched, missing
}

// tierPercentage 空档位视为完全满足 (100), 不做除零
func tierPercentage(matched, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(matched) / float64(total) * 100
}

// titleSimilarity 标题匹配: 语义60% + 词重叠40%。语义轴不可用时
// 退化为纯词法。没有任何经历时给保底分, JD无标题时给中性分。
func (s *HybridScorer) titleSimilarity(ctx context.Context, jd *types.JobDescriptionRecord, resume *types.ResumeRecord, st *scoringState) float64 {
	if len(resume.Experience) == 0 {
		return 20
	}
	jdWords := extractTitleWords(jd.Title)
	if len(jdWords) == 0 {
		return 50
	}

	// 词重叠: 只看最近两段经历的头衔
	keywordScore := 0.0
	limit := 2
	if len(resume.Experience) < limit {
		limit = len(resume.Experience)
	}
	for _, exp := range resume.Experience[:limit] {
		words := extractTitleWords(exp.Title)
		if len(words) == 0 {
			continue
		}
		overlap := float64(intersectCount(jdWords, words)) / float64(len(jdWords))
		if v := overlap * 100; v > keywordScore {
			keywordScore = v
		}
	}
	if keywordScore > 100 {
		keywordScore = 100
	}

	// 语义: JD标题向量 vs 最近头衔向量, 没有头衔时退回全文向量
	jdTitleVec, ok := s.embedCached(ctx, jd.Title, st)
	if !ok || types.IsZeroVector(jdTitleVec) {
		return keywordScore
	}

	var candidateVec []float64
	recentTitle := resume.Experience[0].Title
	if strings.TrimSpace(recentTitle) != "" {
		if v, vok := s.embedCached(ctx, recentTitle, st); vok && !types.IsZeroVector(v) {
			candidateVec = v
		}
	}
	if candidateVec == nil && !types.IsZeroVector(resume.Embedding) {
		candidateVec = resume.Embedding
	}
	if candidateVec == nil {
		return keywordScore
	}

	semanticScore := types.CosineSimilarity(jdTitleVec, candidateVec) * 100
	return clampPct(semanticScore*titleSemanticWeight + keywordScore*titleKeywordWeight)
}

// experienceRelevance 经验相关性: 每条JD职责找最近N段经历中最相近的
// bullet, 取余弦相似度均值。语义轴不可用或JD没有职责描述时退化为
// 关键词覆盖率。
func (s *HybridScorer) experienceRelevance(ctx context.Context, jd *types.JobDescriptionRecord, resume *types.ResumeRecord, st *scoringState) float64 {
	if len(resume.Experience) == 0 {
		return 0
	}

	recent := resume.Experience
	if s.cfg.MaxRecentRoles > 0 && len(recent) > s.cfg.MaxRecentRoles {
		recent = recent[:s.cfg.MaxRecentRoles]
	}
	var bullets []string
	for _, exp := range recent {
		bullets = append(bullets, exp.Bullets...)
	}

	if len(jd.Responsibilities) == 0 || len(bullets) == 0 {
		return keywordCoverage(jd, recent)
	}

	s.warmEmbedMemo(ctx, append(append([]string{}, jd.Responsibilities...), bullets...), st)

	var sum float64
	scored := 0
	for _, resp := range jd.Responsibilities {
		respVec, ok := s.embedCached(ctx, resp, st)
		if !ok || types.IsZeroVector(respVec) {
			continue
		}
		best := 0.0
		for _, bullet := range bullets {
			bulletVec, bok := s.embedCached(ctx, bullet, st)
			if !bok || types.IsZeroVector(bulletVec) {
				continue
			}
			if sim := types.CosineSimilarity(respVec, bulletVec); sim > best {
				best = sim
			}
		}
		sum += best
		scored++
	}
	if scored == 0 {
		// 全部职责都无法取得向量, 走词法降级
		return keywordCoverage(jd, recent)
	}
	return clampPct(sum / float64(scored) * 100)
}

// yearsFit 年限匹配曲线: 达标100; 年限比降到硬下限(默认0.25)之间
// 从floor(默认40)线性插值到100; 低于硬下限得0。要求未设置时为100。
func (s *HybridScorer) yearsFit(required *int, resume *types.ResumeRecord, st *scoringState) float64 {
	if required == nil || *required <= 0 {
		return 100
	}

	years, ok := estimateTotalYears(resume.Experience)
	if !ok {
		if len(resume.Experience) > 0 {
			st.addDiag("无法从经历日期估算总年限, 年限分量取中性值")
			return 50
		}
		return 0
	}

	ratio := years / float64(*required)
	switch {
	case ratio >= 1:
		return 100
	case ratio <= s.cfg.YearsFitHardRatio:
		return 0
	default:
		// (hardRatio, 1) 区间内从 floor 线性升至 100
		span := 1 - s.cfg.YearsFitHardRatio
		return s.cfg.YearsFitFloor + (ratio-s.cfg.YearsFitHardRatio)/span*(100-s.cfg.YearsFitFloor)
	}
}

// educationMatch 学历匹配: 达到或超过要求层级100; 有学历但层级不足给
// 部分分; 无学历0; JD未设要求100。要求文本无法识别层级时视同未设置。
func (s *HybridScorer) educationMatch(requirement string, resume *types.ResumeRecord, st *scoringState) float64 {
	requiredLevel := degreeLevel(requirement)
	if strings.TrimSpace(requirement) == "" {
		return 100
	}
	if requiredLevel == 0 {
		st.addDiag("无法识别JD学历要求 %q 的层级, 学历分量视同未设要求", requirement)
		return 100
	}

	resumeLevel := 0
	for _, edu := range resume.Education {
		if lvl := degreeLevel(edu.Degree); lvl > resumeLevel {
			resumeLevel = lvl
		}
	}
	switch {
	case resumeLevel >= requiredLevel:
		return 100
	case resumeLevel > 0:
		return s.cfg.EducationPartialCredit
	default:
		return 0
	}
}

// buildKnockouts 缺失的required技能逐个发critical告警;
// preferred覆盖率低于阈值时才对缺失项发warning, 避免告警噪音。
func (s *HybridScorer) buildKnockouts(missingRequired, jdPreferred, matchedPreferred []string, preferredPct float64) []types.KnockoutAlert {
	var alerts []types.KnockoutAlert
	for _, skill := range missingRequired {
		alerts = append(alerts, types.KnockoutAlert{
			Skill:    skill,
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("Required skill %q not found in resume", skill),
		})
	}

	if preferredPct < s.cfg.LowCoverageThreshold && len(jdPreferred) > 0 {
		matchedSet := make(map[string]struct{}, len(matchedPreferred))
		for _, m := range matchedPreferred {
			matchedSet[m] = struct{}{}
		}
		for _, skill := range jdPreferred {
			if _, ok := matchedSet[skill]; ok {
				continue
			}
			alerts = append(alerts, types.KnockoutAlert{
				Skill:    skill,
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("Preferred skill %q not found in resume", skill),
			})
		}
	}
	return alerts
}

// embedCached 带进程内缓存的向量获取。嵌入服务失败时整个调用内
// 不再重试, 只记录一次日志。
// warmEmbedMemo 把尚未缓存的文本合并成一次批量嵌入调用预热缓存,
// 职责×要点的两两比对就不必逐条打远端。批量失败不置降级标记,
// 留给逐条路径自行重试。
func (s *HybridScorer) warmEmbedMemo(ctx context.Context, texts []string, st *scoringState) {
	if st.embedDegraded {
		return
	}

	seen := make(map[string]struct{}, len(texts))
	var missing []string
	s.mu.Lock()
	for _, t := range texts {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			continue
		}
		if _, hit := s.embedMemo[trimmed]; hit {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		missing = append(missing, trimmed)
	}
	s.mu.Unlock()
	if len(missing) == 0 {
		return
	}

	vectors, err := s.embedder.EmbedBatch(ctx, missing)
	if err != nil || len(vectors) != len(missing) {
		return
	}
	s.mu.Lock()
	for i, t := range missing {
		s.embedMemo[t] = vectors[i]
	}
	s.mu.Unlock()
}

func (s *HybridScorer) embedCached(ctx context.Context, text string, st *scoringState) ([]float64, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	if st.embedDegraded {
		return nil, false
	}

	s.mu.Lock()
	vec, hit := s.embedMemo[trimmed]
	s.mu.Unlock()
	if hit {
		return vec, true
	}

	vec, err := s.embedder.EmbedSection(ctx, trimmed)
	if err != nil {
		st.embedDegraded = true
		st.addDiag("嵌入服务不可用, 语义分量走词法降级")
		logger.Warn().Err(err).Msg("嵌入服务调用失败, 本次评分语义轴降级")
		return nil, false
	}

	s.mu.Lock()
	s.embedMemo[trimmed] = vec
	s.mu.Unlock()
	return vec, true
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func clampPct(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}

func intersectCount(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
