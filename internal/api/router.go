package api

import (
	"github.com/gin-gonic/gin"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/api/handlers"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/metrics"
	"github.com/sirupsen/logrus"
)

func NewRouter(ingestor handlers.Ingester, reader handlers.Reader, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(log), gin.Recovery())

	webhookHandler := handlers.NewWebhookHandler(ingestor, log)
	transactionHandler := handlers.NewTransactionHandler(reader, log)

	router.GET("/", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler(log)))

	v1 := router.Group("/v1")
	{
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/transactions", webhookHandler.Transaction)
		}

		tx := v1.Group("/transactions")
		{
			tx.GET("", transactionHandler.List)
			tx.GET("/:transaction_id", transactionHandler.Get)
		}
	}

	return router
}
