package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"multisig-backend/internal/services"
)

// respondOK wraps successful payloads in the standard envelope.
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError maps the service error taxonomy onto HTTP statuses.
// Duplicate proposals carry the existing hash and approval count in
// the body so clients can switch to approving the existing one.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var preconditionErr *services.PreconditionError
	var duplicateErr *services.DuplicateProposalError
	var staleErr *services.StaleProposalError
	var revertErr *services.RevertError
	var transportErr *services.TransportError
	var postConditionErr *services.PostConditionError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &duplicateErr):
		c.JSON(http.StatusConflict, gin.H{
			"success":       false,
			"error":         err.Error(),
			"existing_hash": duplicateErr.ExistingHash,
			"num_approvals": duplicateErr.NumApprovals,
		})
	case errors.As(err, &staleErr):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "module": staleErr.Module})
	case errors.As(err, &preconditionErr):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &revertErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrSignatureRejected):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &transportErr):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &postConditionErr):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

// pagination reads page/limit query params with sane bounds.
func pagination(c *gin.Context) (int, int) {
	page := 1
	limit := 20
	if v, err := getIntQuery(c, "page"); err == nil && v > 0 {
		page = v
	}
	if v, err := getIntQuery(c, "limit"); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	return page, limit
}
