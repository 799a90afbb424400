package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"resume-ranker-go/internal/constants"
	"resume-ranker-go/internal/ingest"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/parser"
	"resume-ranker-go/internal/ranker"
	"resume-ranker-go/internal/storage"
	"resume-ranker-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RankingHandler 负责排序请求。JD向量优先走Redis缓存, 未命中或模型
// 版本不一致时重新嵌入并回填。
type RankingHandler struct {
	ranker   *ranker.Ranker
	embedder *parser.Generator
	redis    *storage.Redis
}

// NewRankingHandler 创建RankingHandler
func NewRankingHandler(rk *ranker.Ranker, embedder *parser.Generator, redis *storage.Redis) *RankingHandler {
	return &RankingHandler{ranker: rk, embedder: embedder, redis: redis}
}

// HandleRankResumes 对整个简历池排序。
// POST /api/v1/rankings?limit=10
func (h *RankingHandler) HandleRankResumes(ctx context.Context, c *app.RequestContext) {
	body, _ := c.Body()
	jd, err := ingest.ParseJDPayload(body)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, perr := strconv.Atoi(v); perr == nil && n > 0 {
			limit = n
		}
	}

	h.resolveJDVector(ctx, jd)

	result, err := h.ranker.Rank(ctx, jd, limit)
	if err != nil {
		switch {
		case errors.Is(err, ranker.ErrMissingJD):
			c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		case errors.Is(err, ranker.ErrMissingResumePool):
			c.JSON(consts.StatusUnprocessableEntity, utils.H{"error": "简历池为空, 无可排序对象"})
		default:
			logger.FromContext(ctx).Error().Err(err).Str("jd_id", jd.JDID).Msg("排序失败")
			c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		}
		return
	}

	c.JSON(consts.StatusOK, result)
}

// HandleRankingStage 返回排序器当前阶段。
// GET /api/v1/rankings/stage
func (h *RankingHandler) HandleRankingStage(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"stage": h.ranker.Stage().String()})
}

// resolveJDVector 填充JD全文向量。缓存命中且模型版本一致时直接用,
// 否则重新嵌入并回填缓存。嵌入失败只降级预筛, 不阻塞排序。
func (h *RankingHandler) resolveJDVector(ctx context.Context, jd *types.JobDescriptionRecord) {
	if !types.IsZeroVector(jd.Embedding) {
		return
	}

	if h.redis != nil && jd.JDID != "" {
		vec, modelVersion, err := h.redis.GetJDVector(ctx, jd.JDID)
		if err == nil && modelVersion == constants.EmbeddingModelVersion && !types.IsZeroVector(vec) {
			jd.Embedding = vec
			return
		}
	}

	if h.embedder == nil {
		return
	}
	text := jd.RawText
	if strings.TrimSpace(text) == "" {
		text = strings.Join(append([]string{jd.Title}, jd.RequiredSkills...), " ")
	}
	vec, err := h.embedder.Embed(ctx, text)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("jd_id", jd.JDID).Msg("JD嵌入失败, 预筛降级为全量精评")
		return
	}
	jd.Embedding = vec

	if h.redis != nil && jd.JDID != "" && !types.IsZeroVector(vec) {
		if err := h.redis.SetJDVector(ctx, jd.JDID, vec, constants.EmbeddingModelVersion); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("jd_id", jd.JDID).Msg("回填JD向量缓存失败")
		}
	}
}
