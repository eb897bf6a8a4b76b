package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/sirupsen/logrus"
)

type Reader interface {
	Get(ctx context.Context, transactionID string) (*models.Transaction, error)
	List(ctx context.Context, filter models.Filter) ([]models.Transaction, error)
}

type TransactionHandler struct {
	reader Reader
	log    *logrus.Logger
}

func NewTransactionHandler(reader Reader, log *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{
		reader: reader,
		log:    log,
	}
}

type transactionView struct {
	TransactionID      string        `json:"transaction_id"`
	SourceAccount      string        `json:"source_account"`
	DestinationAccount string        `json:"destination_account"`
	Amount             string        `json:"amount"`
	Currency           string        `json:"currency"`
	Status             models.Status `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ProcessedAt        *time.Time    `json:"processed_at"`
}

func newTransactionView(tx *models.Transaction) transactionView {
	return transactionView{
		TransactionID:      tx.TransactionID,
		SourceAccount:      tx.SourceAccount,
		DestinationAccount: tx.DestinationAccount,
		Amount:             tx.Amount.StringFixed(models.AmountScale),
		Currency:           tx.Currency,
		Status:             tx.Status,
		CreatedAt:          tx.CreatedAt,
		UpdatedAt:          tx.UpdatedAt,
		ProcessedAt:        tx.ProcessedAt,
	}
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id := c.Param("transaction_id")

	tx, err := h.reader.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Transaction with ID %s not found.", id)})
			return
		}
		h.log.WithField("transaction_id", id).Errorf("Failed to get transaction: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, newTransactionView(tx))
}

func (h *TransactionHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txs, err := h.reader.List(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Errorf("Failed to list transactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	views := make([]transactionView, 0, len(txs))
	for i := range txs {
		views = append(views, newTransactionView(&txs[i]))
	}
	c.JSON(http.StatusOK, views)
}

func parseFilter(c *gin.Context) (models.Filter, error) {
	filter := models.Filter{
		Status: models.Status(c.Query("status")),
	}

	var err error
	if filter.CreatedAfter, err = parseTime(c.Query("created_after")); err != nil {
		return filter, fmt.Errorf("invalid created_after: %w", err)
	}
	if filter.CreatedBefore, err = parseTime(c.Query("created_before")); err != nil {
		return filter, fmt.Errorf("invalid created_before: %w", err)
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = limit
	}

	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
