package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const acceptedMessage = "Webhook received and accepted for processing."

type Ingester interface {
	Ingest(ctx context.Context, p models.Payload) error
}

type WebhookHandler struct {
	ingestor Ingester
	log      *logrus.Logger
}

func NewWebhookHandler(ingestor Ingester, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingestor: ingestor,
		log:      log,
	}
}

type transactionWebhook struct {
	TransactionID      string          `json:"transaction_id" binding:"required,max=255"`
	SourceAccount      string          `json:"source_account" binding:"required,max=255"`
	DestinationAccount string          `json:"destination_account" binding:"required,max=255"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency" binding:"required,len=3,uppercase,alpha"`
}

// Transaction accepts a transaction notification. New and already known ids get the same 202.
func (h *WebhookHandler) Transaction(c *gin.Context) {
	var input transactionWebhook
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.ingestor.Ingest(c.Request.Context(), models.Payload{
		TransactionID:      input.TransactionID,
		SourceAccount:      input.SourceAccount,
		DestinationAccount: input.DestinationAccount,
		Amount:             input.Amount,
		Currency:           input.Currency,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.WithField("transaction_id", input.TransactionID).Errorf("Failed to ingest webhook: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.String(http.StatusAccepted, acceptedMessage)
}
