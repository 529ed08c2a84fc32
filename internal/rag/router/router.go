// Package router provides RAG service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/verbatim-rag/internal/rag/handler"
)

// Register registers the RAG service routes.
func Register(engine *gin.Engine, ragHandler *handler.RAGHandler) {
	logger.Info("Registering RAG routes...")

	engine.GET("/health", ragHandler.Health)
	engine.POST("/query", ragHandler.Query)
	engine.GET("/metrics", ragHandler.Metrics)

	v1 := engine.Group("/v1")
	{
		rag := v1.Group("/rag")
		{
			rag.POST("/index", ragHandler.Index)
			rag.GET("/stats", ragHandler.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
