package handler

import (
	"net/http"
	"time"

	"floatai/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter 创建路由
func NewRouter(cfg *config.Config, chat *ChatHandler, catalog *CatalogHandler) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS配置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		views := api.Group("/views")
		{
			views.POST("", chat.CreateView)
			views.GET("/:view_id", chat.GetView)
			views.DELETE("/:view_id", chat.DeleteView)
			views.PUT("/:view_id/collapse", chat.SetCollapsed)
			views.POST("/:view_id/open/:chat_id", chat.OpenChat)
		}

		api.POST("/chat/send", chat.Send)

		chats := api.Group("/chats")
		{
			chats.GET("", chat.ListChats)
			chats.GET("/:chat_id", chat.GetChat)
			chats.DELETE("/:chat_id", chat.DeleteChat)
		}

		models := api.Group("/models")
		{
			models.GET("", catalog.ListModels)
			models.POST("", catalog.CreateModel)
			models.GET("/:model_id", catalog.GetModel)
			models.PUT("/:model_id", catalog.UpdateModel)
			models.DELETE("/:model_id", catalog.DeleteModel)
		}

		prompts := api.Group("/prompts")
		{
			prompts.GET("", catalog.ListPrompts)
			prompts.POST("", catalog.CreatePrompt)
			prompts.GET("/:prompt_id", catalog.GetPrompt)
			prompts.PUT("/:prompt_id", catalog.UpdatePrompt)
			prompts.DELETE("/:prompt_id", catalog.DeletePrompt)
		}

		api.GET("/settings", catalog.GetSettings)
		api.PUT("/settings", catalog.UpdateSettings)
	}

	return router
}
