package handlers

import (
	"net/http"

	"leadmarket/middleware"
	"leadmarket/models"
	"leadmarket/services/request"

	"github.com/gin-gonic/gin"
)

var RequestService request.RequestService

// CreateRequestHandler files a new service request for the calling customer
// and fans it out to eligible providers.
func CreateRequestHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	var input request.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	created, err := RequestService.CreateRequest(c.Request.Context(), principal.ID, input)
	if err != nil {
		respondError(c, err, "Failed to create service request")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetRequestHandler returns a single service request by id.
func GetRequestHandler(c *gin.Context) {
	req, err := RequestService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get service request")
		return
	}
	c.JSON(http.StatusOK, req)
}

// CompleteRequestHandler lets the assigned provider mark the work done.
func CompleteRequestHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	if err := RequestService.CompleteRequest(c.Request.Context(), principal.ID, c.Param("id")); err != nil {
		respondError(c, err, "Failed to complete service request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.RequestCompleted)})
}

// ReviewRequestHandler lets the owning customer sign off on a completed job.
func ReviewRequestHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	if err := RequestService.ReviewRequest(c.Request.Context(), principal.ID, c.Param("id")); err != nil {
		respondError(c, err, "Failed to review service request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reviewed"})
}

// OverrideStatusHandler is the admin escape hatch for stuck requests.
func OverrideStatusHandler(c *gin.Context) {
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	err := RequestService.OverrideStatus(c.Request.Context(), c.Param("id"), models.RequestStatus(input.Status))
	if err != nil {
		respondError(c, err, "Failed to override request status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": input.Status})
}
