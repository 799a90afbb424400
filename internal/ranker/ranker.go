package ranker // 两阶段排序: 向量预筛 + 全量精评

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/scorer"
	"resume-ranker-go/internal/types"
)

// ErrMissingJD JD缺失时排序请求直接失败
var ErrMissingJD = scorer.ErrMissingJD

// ErrMissingResumePool 简历池为空时排序请求直接失败
var ErrMissingResumePool = errors.New("resume pool is empty")

// Stage 排序器当前所处阶段
type Stage int32

const (
	StageIdle Stage = iota
	StagePrefiltering
	StageFullScoring
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePrefiltering:
		return "prefiltering"
	case StageFullScoring:
		return "full_scoring"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// ResumePool 排序器消费的简历池只读视图
type ResumePool interface {
	// Count 池中简历总数
	Count(ctx context.Context) (int64, error)
	// All 返回全部简历, 顺序不做保证
	All(ctx context.Context) ([]*types.ResumeRecord, error)
	// QueryNearest 按向量相似度返回最接近的k份简历,
	// 相似度降序, 同分按最后修改时间降序、简历ID升序
	QueryNearest(ctx context.Context, vector []float64, k int) ([]types.Neighbor, error)
}

// Ranker 对一个JD在简历池上执行两阶段排序。小池或JD向量缺失时
// 跳过预筛直接全量精评。阶段状态可被其他goroutine并发读取。
type Ranker struct {
	cfg    *config.RankerConfig
	pool   ResumePool
	scorer *scorer.HybridScorer
	stage  atomic.Int32
}

// NewRanker 创建排序器
func NewRanker(cfg *config.RankerConfig, pool ResumePool, hs *scorer.HybridScorer) *Ranker {
	return &Ranker{cfg: cfg, pool: pool, scorer: hs}
}

// Stage 当前阶段快照
func (r *Ranker) Stage() Stage {
	return Stage(r.stage.Load())
}

func (r *Ranker) setStage(s Stage) {
	r.stage.Store(int32(s))
}

// Rank 对JD排序整个简历池, 返回按总分降序的前limit名。
// limit<=0 时使用配置的默认值。
func (r *Ranker) Rank(ctx context.Context, jd *types.JobDescriptionRecord, limit int) (*types.RankingResult, error) {
	if jd == nil {
		return nil, ErrMissingJD
	}
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}

	r.setStage(StageIdle)

	total, err := r.pool.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计简历池失败: %w", err)
	}
	if total == 0 {
		return nil, ErrMissingResumePool
	}

	candidates, err := r.selectCandidates(ctx, jd, limit, int(total))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.setStage(StageFullScoring)
	scores := make([]types.ResumeScore, 0, len(candidates))
	for _, resume := range candidates {
		if resume == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sc, serr := r.scorer.Score(ctx, jd, resume)
		if serr != nil {
			logger.Warn().Err(serr).Str("resume_id", resume.ResumeID).Msg("单份简历评分失败, 跳过")
			continue
		}
		scores = append(scores, *sc)
	}
	if len(scores) == 0 {
		return nil, ErrMissingResumePool
	}

	// 总分降序, 同分按简历ID升序保证可复现
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].OverallScore != scores[j].OverallScore {
			return scores[i].OverallScore > scores[j].OverallScore
		}
		return scores[i].ResumeID < scores[j].ResumeID
	})
	if len(scores) > limit {
		scores = scores[:limit]
	}

	r.setStage(StageDone)
	return &types.RankingResult{
		JDID:        jd.JDID,
		Rankings:    scores,
		TopResumeID: scores[0].ResumeID,
	}, nil
}

// selectCandidates 预筛阶段。池子不超过阈值、JD向量缺失或预筛结果
// 为空时回退为全量候选。
func (r *Ranker) selectCandidates(ctx context.Context, jd *types.JobDescriptionRecord, limit, total int) ([]*types.ResumeRecord, error) {
	if total <= r.cfg.ExhaustiveThreshold || types.IsZeroVector(jd.Embedding) {
		return r.pool.All(ctx)
	}

	r.setStage(StagePrefiltering)
	k := limit * r.cfg.PrefilterKMultiplier
	if k > total {
		k = total
	}
	neighbors, err := r.pool.QueryNearest(ctx, jd.Embedding, k)
	if err != nil {
		logger.Warn().Err(err).Msg("向量预筛失败, 回退全量精评")
		return r.pool.All(ctx)
	}
	candidates := make([]*types.ResumeRecord, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Record != nil {
			candidates = append(candidates, n.Record)
		}
	}
	if len(candidates) == 0 {
		return r.pool.All(ctx)
	}
	return candidates, nil
}
