package handlers

import (
	"net/http"

	"leadmarket/middleware"
	"leadmarket/services/lead"

	"github.com/gin-gonic/gin"
)

var LeadService lead.LeadService

// ListLeadsHandler returns the open leads the calling provider is matched on.
func ListLeadsHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	leads, err := LeadService.ListLeads(c.Request.Context(), principal.ID)
	if err != nil {
		respondError(c, err, "Failed to list leads")
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

// PreviewLeadPriceHandler quotes the lead price for a request without
// committing to anything.
func PreviewLeadPriceHandler(c *gin.Context) {
	price, err := LeadService.PreviewLeadPrice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to quote lead price")
		return
	}
	c.JSON(http.StatusOK, price)
}

// AcceptLeadHandler accepts a lead for the calling provider. Free leads
// assign immediately; paid ones open a hold and return a checkout URL.
func AcceptLeadHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	result, err := LeadService.AcceptLead(c.Request.Context(), principal.ID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to accept lead")
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeclineLeadHandler marks the calling provider's candidacy as declined.
func DeclineLeadHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	if err := LeadService.DeclineLead(c.Request.Context(), principal.ID, c.Param("id")); err != nil {
		respondError(c, err, "Failed to decline lead")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}

// PurchaseLeadHandler opens a checkout session for a lead purchase outside
// the accept flow, e.g. after an earlier session expired.
func PurchaseLeadHandler(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	result, err := LeadService.CreateCheckoutSession(c.Request.Context(), principal.ID, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to create checkout session")
		return
	}
	c.JSON(http.StatusOK, result)
}
