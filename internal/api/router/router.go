package router

import (
	"context"

	"resume-ranker-go/internal/api/handler"
	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
)

// requestLogger 给每个请求注入带request_id的logger,
// 处理器通过 logger.FromContext 取用。
func requestLogger() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		reqLogger := logger.Logger.With().
			Str("request_id", uuid.NewString()).
			Str("path", string(ctx.Path())).
			Logger()
		ctx.Next(reqLogger.WithContext(c))
	}
}

// RegisterRoutes 注册API路由。配置了API key时整个/api/v1分组
// 启用keyauth鉴权, 健康检查始终放行。
func RegisterRoutes(h *server.Hertz, cfg *config.ServerConfig, resumeHandler *handler.ResumeHandler, rankingHandler *handler.RankingHandler) {
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	api.Use(requestLogger())
	if len(cfg.APIKeys) > 0 {
		allowed := make(map[string]struct{}, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			allowed[k] = struct{}{}
		}
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
			keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
				_, ok := allowed[key]
				return ok, nil
			}),
		))
	}

	api.POST("/resumes", resumeHandler.HandleUpsertResume)
	api.GET("/pool/stats", resumeHandler.HandlePoolStats)
	api.GET("/resumes/:fingerprint", resumeHandler.HandleGetResume)
	api.DELETE("/resumes/:resume_id", resumeHandler.HandleDeleteResume)

	api.POST("/rankings", rankingHandler.HandleRankResumes)
	api.GET("/rankings/stage", rankingHandler.HandleRankingStage)
}
