package handlers

import (
	"net/http"

	"leadmarket/middleware"
	"leadmarket/models"
	"leadmarket/services/provider"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ProviderService provider.ProviderService

// RegisterProviderHandler onboards a provider linked to the calling auth
// subject.
func RegisterProviderHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	var input provider.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	// Providers register themselves; the authId always comes from the token.
	input.AuthID = principal.ID

	created, err := ProviderService.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "Failed to register provider")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetProviderProfileHandler returns the calling provider's own record.
func GetProviderProfileHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	prov, err := ProviderService.GetByAuthID(c.Request.Context(), principal.ID)
	if err != nil {
		respondError(c, err, "Failed to get provider")
		return
	}
	if prov == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not found"})
		return
	}
	c.JSON(http.StatusOK, prov)
}

// StageProviderUpdatesHandler records profile edits for admin approval.
func StageProviderUpdatesHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	var updates models.PendingUpdates
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := ProviderService.StageUpdates(c.Request.Context(), principal.ID, updates); err != nil {
		respondError(c, err, "Failed to stage provider updates")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "pending approval"})
}

// VerifyProviderHandler (admin) verifies a provider and rescans open
// requests for them.
func VerifyProviderHandler(c *gin.Context) {
	logger := getLogger(c)
	providerID := c.Param("id")

	matched, err := ProviderService.Verify(c.Request.Context(), providerID)
	if err != nil {
		respondError(c, err, "Failed to verify provider")
		return
	}
	logger.Info("Provider verified", zap.String("providerId", providerID), zap.Int("matched", matched))
	c.JSON(http.StatusOK, gin.H{"verified": true, "matchedRequests": matched})
}

// ApproveProviderUpdatesHandler (admin) applies a provider's staged edits.
func ApproveProviderUpdatesHandler(c *gin.Context) {
	prov, err := ProviderService.ApproveUpdates(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to approve provider updates")
		return
	}
	if prov == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Provider not found"})
		return
	}
	c.JSON(http.StatusOK, prov)
}
