package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "lettervault/internal/auth/jwt"
	"lettervault/internal/config"
	"lettervault/internal/middleware"
	"lettervault/internal/monitoring"
	"lettervault/internal/service"
	"lettervault/internal/storage"
	"lettervault/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	Folders     *service.FolderService
	Senders     *service.SenderRegistry
	Contents    *service.ContentStore
	Newsletters *service.NewsletterService
	Imports     *service.ImportService
	JWTManager  *jwtpkg.Manager
	Hub         *websocket.Hub
	Store       storage.Store
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 允许所有来源时必须关闭凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.Store, deps.JWTManager)
	folderHandler := NewFolderHandler(deps.Folders)
	senderHandler := NewSenderHandler(deps.Senders, deps.Store)
	newsletterHandler := NewNewsletterHandler(deps.Newsletters, deps.Contents)
	importHandler := NewImportHandler(deps.Imports)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", deps.Metrics.Handler())
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/token", authHandler.ExchangeToken)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		// ========== WebSocket Routes ==========
		if deps.Hub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.Hub))
		}

		// ========== Folder Routes ==========
		folderRoutes := v1.Group("/folders")
		folderRoutes.Use(jwtAuth.RequireAuth())
		{
			folderRoutes.POST("", folderHandler.Create)
			folderRoutes.GET("", folderHandler.List)
			folderRoutes.GET("/:id", folderHandler.Get)
			folderRoutes.PATCH("/:id", folderHandler.Rename)
			folderRoutes.PATCH("/:id/hidden", folderHandler.SetHidden)
			folderRoutes.DELETE("/:id", folderHandler.Delete)
			folderRoutes.POST("/:id/merge", folderHandler.Merge)
		}
		mergeRoutes := v1.Group("/merges")
		mergeRoutes.Use(jwtAuth.RequireAuth())
		{
			mergeRoutes.POST("/:id/undo", folderHandler.Undo)
		}

		// ========== Sender Routes ==========
		senderRoutes := v1.Group("/senders")
		senderRoutes.Use(jwtAuth.RequireAuth())
		{
			senderRoutes.POST("", senderHandler.Resolve)
			senderRoutes.GET("/:id", senderHandler.Get)
			senderRoutes.PATCH("/:id/settings", senderHandler.UpdateSettings)
		}

		// ========== Newsletter Routes ==========
		newsletterRoutes := v1.Group("/newsletters")
		newsletterRoutes.Use(jwtAuth.RequireAuth())
		{
			newsletterRoutes.POST("", middleware.BodySizeLimit(middleware.UploadBodyLimit), newsletterHandler.Store)
			newsletterRoutes.GET("", newsletterHandler.List)
			newsletterRoutes.GET("/:id", newsletterHandler.Get)
			newsletterRoutes.GET("/:id/body", newsletterHandler.GetBody)
			newsletterRoutes.POST("/:id/read", newsletterHandler.MarkRead)
			newsletterRoutes.PATCH("/:id/hidden", newsletterHandler.SetHidden)
			newsletterRoutes.DELETE("/:id", newsletterHandler.Delete)
		}

		// 社区内容库导入
		communityRoutes := v1.Group("/community")
		communityRoutes.Use(jwtAuth.RequireAuth())
		{
			communityRoutes.POST("/contents/:id/import", newsletterHandler.ImportShared)
		}

		// ========== Import Routes ==========
		importRoutes := v1.Group("/imports")
		importRoutes.Use(jwtAuth.RequireAuth())
		{
			importRoutes.POST("", middleware.BodySizeLimit(middleware.UploadBodyLimit), importHandler.StartBatch)
			importRoutes.POST("/remote", importHandler.ImportRemote)
			importRoutes.GET("/:id", importHandler.GetBatch)
		}
	}

	return router
}

// currentUserID 读取认证中间件写入的用户标识。
func currentUserID(c *gin.Context) string {
	if v, exists := c.Get("userID"); exists {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}
