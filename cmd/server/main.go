package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "lettervault/internal/auth/jwt"
	"lettervault/internal/blob/filesystem"
	"lettervault/internal/config"
	"lettervault/internal/fetcher"
	"lettervault/internal/logger"
	"lettervault/internal/monitoring"
	"lettervault/internal/pool"
	"lettervault/internal/service"
	"lettervault/internal/smtp"
	"lettervault/internal/storage"
	"lettervault/internal/storage/memory"
	"lettervault/internal/storage/postgres"
	redisstore "lettervault/internal/storage/redis"
	sqlstore "lettervault/internal/storage/sql"
	httptransport "lettervault/internal/transport/http"
	"lettervault/internal/websocket"
)

// main 启动同时包含 HTTP API 与 SMTP 收件渠道的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting lettervault server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 存储层：配置了数据库走 SQL，否则内存存储（开发环境）
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	metrics := monitoring.NewMetrics()
	healthChecker := monitoring.NewHealthChecker(store, log)

	// Postgres 后端额外暴露连接池级探测
	if cfg.Database.Type == "postgres" {
		pgClient, err := postgres.New(&cfg.Database, log)
		if err != nil {
			log.Warn("failed to initialize postgres pool client, pool checks disabled", zap.Error(err))
		} else {
			defer pgClient.Close()
			healthChecker.AddReadiness("postgres-pool", pgClient.Health)
		}
	}

	// Blob 存储（通讯正文）
	blobStore, err := filesystem.NewStore(cfg.Blob.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize blob storage: %v", err))
	}
	log.Info("blob storage initialized", zap.String("path", cfg.Blob.Path))

	// 服务层
	registry := service.NewSenderRegistry(store, log)
	contents := service.NewContentStore(store, blobStore, registry, log)
	contents.SetMetrics(metrics)
	newsletters := service.NewNewsletterService(store, blobStore, log)
	folders := service.NewFolderService(store, cfg.Folder.UndoWindow, log)
	folders.SetMetrics(metrics)

	// 内容哈希缓存（可选）
	if cfg.Redis.Enabled {
		redisClient, err := redisstore.New(&cfg.Redis, log)
		if err != nil {
			log.Warn("failed to connect to Redis, hash cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			contents.SetHashCache(redisstore.NewHashCache(redisClient, 0, log))
			healthChecker.AddReadiness("redis", redisClient.Health)
		}
	}

	// 导入编排器：固定并发的协程池
	workers := pool.NewWorkerPool(cfg.Import.Concurrency, cfg.Import.QueueSize)
	imports := service.NewImportService(store, contents, registry, workers, service.ImportConfig{
		FreeMonthlyQuota: cfg.Import.FreeMonthlyQuota,
		RetryAttempts:    cfg.Import.RetryAttempts,
		RetryBaseDelay:   cfg.Import.RetryBaseDelay,
	}, log)
	imports.SetMetrics(metrics)
	if cfg.Remote.BaseURL != "" {
		imports.SetFetcher(fetcher.NewHTTPFetcher(cfg.Remote.BaseURL, cfg.Remote.AccessToken))
		log.Info("remote mailbox fetcher enabled", zap.String("base_url", cfg.Remote.BaseURL))
	}

	// 认证与 WebSocket 进度推送
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, log)
	imports.SetProgressPublisher(wsHub)

	// HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		Folders:     folders,
		Senders:     registry,
		Contents:    contents,
		Newsletters: newsletters,
		Imports:     imports,
		JWTManager:  jwtManager,
		Hub:         wsHub,
		Store:       store,
		Metrics:     metrics,
		Logger:      log,
	})

	// Kubernetes 风格的存活/就绪探针
	router.GET("/health/live", gin.WrapH(healthChecker.Handler()))
	router.GET("/health/ready", gin.WrapH(healthChecker.Handler()))

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// SMTP 收件服务器
	smtpBackend := smtp.NewBackend(cfg.Intake, store, registry, contents, log)
	smtpBackend.SetMetrics(metrics)
	smtpServer := gosmtp.NewServer(smtpBackend)
	smtpServer.Addr = cfg.Intake.BindAddr
	smtpServer.Domain = cfg.Intake.Domain
	smtpServer.AllowInsecureAuth = cfg.Log.Development
	smtpServer.ReadTimeout = 10 * time.Second
	smtpServer.WriteTimeout = 10 * time.Second
	smtpServer.MaxMessageBytes = cfg.Intake.MaxMsgBytes
	smtpServer.MaxRecipients = 50

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	workers.Start(groupCtx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting SMTP intake server",
			zap.String("address", cfg.Intake.BindAddr),
			zap.String("domain", cfg.Intake.Domain),
		)
		if err := smtpServer.ListenAndServe(); err != nil {
			log.Error("SMTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时清扫过期的合并撤销记录与陈旧批次 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Folder.SweepInterval)
		defer ticker.Stop()

		log.Info("starting merge history sweep task", zap.Duration("interval", cfg.Folder.SweepInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("sweep task stopped")
				return nil
			case <-ticker.C:
				count, err := folders.SweepExpiredMerges()
				if err != nil {
					log.Error("failed to sweep expired merge histories", zap.Error(err))
				} else if count > 0 {
					log.Info("expired merge histories swept", zap.Int("count", count))
				}

				// 完成超过 24 小时的批次状态不再可查
				if dropped := imports.DropBatchesBefore(time.Now().Add(-24 * time.Hour)); dropped > 0 {
					log.Info("stale import batches dropped", zap.Int("count", dropped))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := smtpServer.Close(); err != nil {
			log.Warn("SMTP server close warning", zap.Error(err))
		}

		workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
