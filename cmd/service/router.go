package service

import (
	"github.com/gin-gonic/gin"

	"github.com/complypilot/complypilot/app/core"
	"github.com/complypilot/complypilot/app/response"
	"github.com/complypilot/complypilot/cmd/service/handler"
	"github.com/complypilot/complypilot/cmd/service/middleware"
	"github.com/complypilot/complypilot/pkg/metrics"
)

func serve(core *core.Core) {
	httpSrv := &handler.HttpSrv{
		Core:   core,
		Engine: core.HttpEngine(),
	}
	setupHttpRouter(httpSrv)

	core.HttpEngine().Run(core.Cfg().Addr)
}

func setupHttpRouter(s *handler.HttpSrv) {
	s.Engine.Use(gin.Recovery())

	s.Engine.GET("/metrics", metrics.DefaultExportHandler())
	s.Engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	s.Engine.Use(response.NewResponse())
	s.Engine.Use(middleware.Cors)
	s.Engine.Use(middleware.UseMetrics(s.Core))

	apiV1 := s.Engine.Group("/api/v1")
	apiV1.Use(middleware.Authorization())
	{
		knowledge := apiV1.Group("/knowledge")
		{
			knowledge.GET("/jobs/:job", s.GetEmbeddingJob)
			knowledge.POST("/jobs/:job/cancel", middleware.AdminOnly(), s.CancelEmbeddingJob)

			docs := knowledge.Group("/docs", middleware.AdminOnly())
			{
				docs.POST("", s.CreateKnowledgeDoc)
				docs.GET("", s.ListKnowledgeDocs)
				docs.DELETE("/:doc", s.DeleteKnowledgeDoc)
				docs.POST("/:doc/reprocess", s.ReprocessKnowledgeDoc)
			}
		}

		chat := apiV1.Group("/chat")
		{
			chat.POST("", s.Chat)
			chat.GET("/conversations", s.ListConversations)
			chat.POST("/conversations/:id/archive", s.ArchiveConversation)
			chat.GET("/conversations/:id/messages", s.ListConversationMessages)
			chat.POST("/messages/:id/feedback", s.SubmitFeedback)
		}

		analytics := apiV1.Group("/analytics", middleware.AdminOnly())
		{
			analytics.GET("/usage", s.GetUsageAnalytics)
			analytics.GET("/topics", s.GetPopularTopics)
		}

		providers := apiV1.Group("/admin/providers", middleware.AdminOnly())
		{
			providers.POST("", s.CreateProviderConfig)
			providers.GET("", s.ListProviderConfigs)
			providers.GET("/:id", s.GetProviderConfig)
			providers.PUT("/:id", s.UpdateProviderConfig)
			providers.DELETE("/:id", s.DeleteProviderConfig)
			providers.POST("/:id/activate", s.ActivateProviderConfig)
		}
	}
}
