package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/services"
)

// RecoveryHandler serves guardian-facing recovery operations. These
// are direct module writes; the recovery module enforces guardian
// membership and its own threshold, not the wallet quorum.
type RecoveryHandler struct {
	facade *services.WalletFacade
	logger *logrus.Logger
}

func NewRecoveryHandler(facade *services.WalletFacade, logger *logrus.Logger) *RecoveryHandler {
	return &RecoveryHandler{facade: facade, logger: logger}
}

// GetConfig returns the wallet's guardian setup.
// GET /api/v1/wallets/:address/recovery/config
func (h *RecoveryHandler) GetConfig(c *gin.Context) {
	config, err := h.facade.RecoveryConfigOf(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, config)
}

// History returns paginated recovery history for a wallet.
// GET /api/v1/wallets/:address/recovery
func (h *RecoveryHandler) History(c *gin.Context) {
	page, limit := pagination(c)
	recoveries, total := h.facade.RecoveryHistory(c.Request.Context(), c.Param("address"), page, limit)
	respondOK(c, gin.H{"recoveries": recoveries, "total": total, "page": page, "limit": limit})
}

// Get returns one recovery with guardian approval detail.
// GET /api/v1/wallets/:address/recovery/:hash
func (h *RecoveryHandler) Get(c *gin.Context) {
	recovery, approvals, err := h.facade.RecoveryOf(c.Request.Context(), c.Param("address"), c.Param("hash"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"recovery": recovery, "approvals": approvals})
}

// WalletsByGuardian lists wallets the caller guards.
// GET /api/v1/guardians/:address/wallets
func (h *RecoveryHandler) WalletsByGuardian(c *gin.Context) {
	respondOK(c, gin.H{"wallets": h.facade.WalletsByGuardian(c.Request.Context(), c.Param("address"))})
}

type initiateRecoveryRequest struct {
	NewOwners    []string `json:"new_owners" binding:"required"`
	NewThreshold uint64   `json:"new_threshold" binding:"required"`
}

// Initiate starts a recovery as a guardian.
// POST /api/v1/wallets/:address/recovery
func (h *RecoveryHandler) Initiate(c *gin.Context) {
	var req initiateRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	hash, err := h.facade.InitiateRecovery(c.Request.Context(), c.Param("address"), req.NewOwners, req.NewThreshold)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"wallet":   c.Param("address"),
		"recovery": hash,
	}).Info("recovery initiated")
	respondOK(c, gin.H{"recovery_hash": hash})
}

// Approve records a guardian approval.
// POST /api/v1/wallets/:address/recovery/:hash/approve
func (h *RecoveryHandler) Approve(c *gin.Context) {
	if err := h.facade.ApproveRecovery(c.Request.Context(), c.Param("address"), c.Param("hash")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"status": "submitted and mined"})
}

// Execute executes a recovery after its delay.
// POST /api/v1/wallets/:address/recovery/:hash/execute
func (h *RecoveryHandler) Execute(c *gin.Context) {
	if err := h.facade.ExecuteRecovery(c.Request.Context(), c.Param("address"), c.Param("hash")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"status": "submitted and mined"})
}

// Cancel cancels a recovery during its delay window.
// POST /api/v1/wallets/:address/recovery/:hash/cancel
func (h *RecoveryHandler) Cancel(c *gin.Context) {
	if err := h.facade.CancelRecovery(c.Request.Context(), c.Param("address"), c.Param("hash")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"status": "submitted and mined"})
}
