package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/reputation"
)

// keyVerifier checks reputation service credentials.
type keyVerifier interface {
	VerifyKey(ctx context.Context, apiKey, model string) (bool, string, error)
}

// ReputationHandler handles reputation service administration
type ReputationHandler struct {
	client keyVerifier
	logger *zap.Logger
}

// NewReputationHandler creates a new reputation handler
func NewReputationHandler(client *reputation.Client, logger *zap.Logger) *ReputationHandler {
	return &ReputationHandler{
		client: client,
		logger: logger,
	}
}

// VerifyKey checks an API credential against the reputation backend
// POST /api/v1/reputation/verify-key
func (h *ReputationHandler) VerifyKey(c *gin.Context) {
	var req models.VerifyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	valid, detail, err := h.client.VerifyKey(c.Request.Context(), req.APIKey, req.Model)
	if err != nil {
		h.logger.Error("key verification failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Verification request failed"})
		return
	}

	response := gin.H{"valid": valid}
	if detail != "" {
		response["detail"] = detail
	}

	c.JSON(http.StatusOK, response)
}
