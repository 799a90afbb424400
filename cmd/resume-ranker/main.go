package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-ranker-go/internal/agent"
	"resume-ranker-go/internal/api/handler"
	"resume-ranker-go/internal/api/router"
	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/ingest"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/parser"
	"resume-ranker-go/internal/ranker"
	"resume-ranker-go/internal/scorer"
	"resume-ranker-go/internal/storage"
	"resume-ranker-go/internal/synonym"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径, 留空时按默认位置查找")
	pflag.Parse()

	// 1. 加载配置文件
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置文件失败")
	}

	// 2. 初始化日志系统
	initLogger(cfg)

	// 3. 初始化存储管理器
	ctx := logger.WithContext(context.Background())
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储管理器失败")
	}
	defer storageManager.Close()

	// 4. 嵌入生成器
	remoteEmbedder, err := parser.NewRemoteEmbedder(cfg.Embedding.APIKey, cfg.Embedding)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化嵌入客户端失败")
	}
	embedder := parser.NewGenerator(remoteEmbedder, cfg.Embedding.MinEmbedLength)

	// 5. 同义词解析器, 配置了LLM时挂oracle兜底
	resolver := buildResolver(cfg)

	// 6. 缓存存储 + 评分器 + 排序器
	cacheStore := storage.NewCacheStore(storageManager.Redis, storageManager.MySQL, storageManager.Qdrant, embedder)
	hybridScorer := scorer.NewHybridScorer(&cfg.Scoring, resolver, embedder)
	rk := ranker.NewRanker(&cfg.Ranker, cacheStore, hybridScorer)

	// 7. 队列摄入消费者 (配置了RabbitMQ时)
	if storageManager.RabbitMQ != nil {
		consumer := ingest.NewConsumer(storageManager.RabbitMQ, cacheStore, &cfg.RabbitMQ)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("启动摄入消费者失败")
		}
		defer consumer.Stop()
	}

	// 8. HTTP服务器
	h := server.Default(server.WithHostPorts(cfg.Server.Address))
	resumeHandler := handler.NewResumeHandler(cacheStore)
	rankingHandler := handler.NewRankingHandler(rk, embedder, storageManager.Redis)
	router.RegisterRoutes(h, &cfg.Server, resumeHandler, rankingHandler)

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	// 9. 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号, 正在优雅退出...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("服务器关闭失败")
	}

	logger.Info().Msg("优雅退出完成")
}

// 初始化日志系统, 同时把Hertz的框架日志接到zerolog
func initLogger(cfg *config.Config) {
	logConfig := logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   time.RFC3339,
		ReportCaller: cfg.Logger.ReportCaller,
	}
	if os.Getenv("ENV") == "production" {
		logConfig.Format = "json"
		logConfig.ReportCaller = false
	}
	logger.Init(logConfig)

	logger.Logger = logger.Logger.With().
		Str("app", "resume-ranker").
		Logger()

	hertzCompatibleLogger := hertzadapter.From(logger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
}

// buildResolver 构造同义词解析器: 内置别名表 + 可选YAML扩展 +
// 可选LLM oracle
func buildResolver(cfg *config.Config) *synonym.Resolver {
	var opts []synonym.ResolverOption
	if cfg.Synonym.EnableOracle && cfg.LLM.APIKey != "" {
		chatModel, err := agent.NewOpenAIChatModel(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.APIURL)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化LLM模型失败, 同义词oracle不可用")
		} else {
			oracle := parser.NewLLMSynonymOracle(chatModel, nil)
			opts = append(opts, synonym.WithOracle(oracle))
		}
	}

	resolver := synonym.NewResolver(opts...)
	if cfg.Synonym.AliasFile != "" {
		if err := resolver.LoadAliasFile(cfg.Synonym.AliasFile); err != nil {
			logger.Warn().Err(err).Str("path", cfg.Synonym.AliasFile).Msg("加载别名扩展文件失败")
		}
	}
	return resolver
}
