package handler

import (
	"context"
	"errors"

	"resume-ranker-go/internal/ingest"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ResumeHandler 负责简历缓存的HTTP摄入与查询
type ResumeHandler struct {
	store storage.VectorCacheStore
}

// NewResumeHandler 创建ResumeHandler
func NewResumeHandler(store storage.VectorCacheStore) *ResumeHandler {
	return &ResumeHandler{store: store}
}

// HandleUpsertResume 写入一份简历。
// POST /api/v1/resumes
func (h *ResumeHandler) HandleUpsertResume(ctx context.Context, c *app.RequestContext) {
	body, _ := c.Body()
	rec, err := ingest.ParseResumePayload(body)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	created, err := h.store.Upsert(ctx, rec)
	if err != nil {
		if errors.Is(err, storage.ErrCacheWriteConflict) {
			c.JSON(consts.StatusConflict, utils.H{"error": "该简历正在被并发写入, 请重试"})
			return
		}
		logger.FromContext(ctx).Error().Err(err).Str("resume_id", rec.ResumeID).Msg("简历写入失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	status := consts.StatusOK
	if created {
		status = consts.StatusCreated
	}
	c.JSON(status, utils.H{
		"resume_id":   rec.ResumeID,
		"fingerprint": rec.Fingerprint,
		"created":     created,
	})
}

// HandleGetResume 按指纹查询缓存记录。
// GET /api/v1/resumes/:fingerprint
func (h *ResumeHandler) HandleGetResume(ctx context.Context, c *app.RequestContext) {
	fp := c.Param("fingerprint")
	if fp == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "fingerprint不能为空"})
		return
	}

	rec, err := h.store.Get(ctx, fp)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "记录不存在"})
			return
		}
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, rec)
}

// HandleDeleteResume 按简历ID删除记录与向量点。
// DELETE /api/v1/resumes/:resume_id
func (h *ResumeHandler) HandleDeleteResume(ctx context.Context, c *app.RequestContext) {
	resumeID := c.Param("resume_id")
	if resumeID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "resume_id不能为空"})
		return
	}

	if err := h.store.Delete(ctx, resumeID); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "记录不存在"})
			return
		}
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"resume_id": resumeID, "deleted": true})
}

// HandlePoolStats 返回简历池规模。
// GET /api/v1/pool/stats
func (h *ResumeHandler) HandlePoolStats(ctx context.Context, c *app.RequestContext) {
	count, err := h.store.Count(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"resume_count": count})
}
