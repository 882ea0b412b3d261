package handlers

import (
	"context"
	"math/big"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/services"
)

// TransactionHandler serves the proposal lifecycle and consistency
// verification.
type TransactionHandler struct {
	facade *services.WalletFacade
	logger *logrus.Logger
}

func NewTransactionHandler(facade *services.WalletFacade, logger *logrus.Logger) *TransactionHandler {
	return &TransactionHandler{facade: facade, logger: logger}
}

type proposeRequest struct {
	To    string `json:"to" binding:"required"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

// Propose submits a transfer or contract-call proposal.
// POST /api/v1/wallets/:address/transactions
func (h *TransactionHandler) Propose(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}

	value := new(big.Int)
	if req.Value != "" {
		parsed, ok := new(big.Int).SetString(req.Value, 10)
		if !ok {
			respondError(c, &services.ValidationError{Msg: "value must be a decimal wei amount"})
			return
		}
		value = parsed
	}

	txHash, err := h.facade.Propose(c.Request.Context(), c.Param("address"), req.To, value, req.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

// Get returns one transaction's authoritative state.
// GET /api/v1/wallets/:address/transactions/:hash
func (h *TransactionHandler) Get(c *gin.Context) {
	tx, err := h.facade.GetTransaction(c.Request.Context(), c.Param("address"), c.Param("hash"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, tx)
}

// History returns paginated transaction history.
// GET /api/v1/wallets/:address/transactions
func (h *TransactionHandler) History(c *gin.Context) {
	page, limit := pagination(c)
	txs, total, err := h.facade.TransactionHistory(c.Request.Context(), c.Param("address"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"transactions": txs, "total": total, "page": page, "limit": limit})
}

// Pending returns pending transactions.
// GET /api/v1/wallets/:address/transactions/pending
func (h *TransactionHandler) Pending(c *gin.Context) {
	txs, err := h.facade.PendingTransactions(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"transactions": txs})
}

// Approve records the session signer's approval.
// POST /api/v1/wallets/:address/transactions/:hash/approve
func (h *TransactionHandler) Approve(c *gin.Context) {
	h.lifecycleAction(c, h.facade.Approve)
}

// Revoke withdraws the session signer's approval.
// POST /api/v1/wallets/:address/transactions/:hash/revoke
func (h *TransactionHandler) Revoke(c *gin.Context) {
	h.lifecycleAction(c, h.facade.Revoke)
}

// Cancel moves a pending transaction to cancelled.
// POST /api/v1/wallets/:address/transactions/:hash/cancel
func (h *TransactionHandler) Cancel(c *gin.Context) {
	h.lifecycleAction(c, h.facade.Cancel)
}

// Execute runs a transaction that has reached quorum.
// POST /api/v1/wallets/:address/transactions/:hash/execute
func (h *TransactionHandler) Execute(c *gin.Context) {
	h.lifecycleAction(c, h.facade.Execute)
}

// ApproveAndExecute approves and executes in one write.
// POST /api/v1/wallets/:address/transactions/:hash/approve-and-execute
func (h *TransactionHandler) ApproveAndExecute(c *gin.Context) {
	h.lifecycleAction(c, h.facade.ApproveAndExecute)
}

// Verify compares one transaction's indexer row against chain state.
// GET /api/v1/wallets/:address/transactions/:hash/verify
func (h *TransactionHandler) Verify(c *gin.Context) {
	respondOK(c, h.facade.Verify(c.Request.Context(), c.Param("address"), c.Param("hash")))
}

type verifyBatchRequest struct {
	TxHashes []string `json:"tx_hashes" binding:"required"`
}

// VerifyBatch verifies many transactions concurrently.
// POST /api/v1/wallets/:address/transactions/verify
func (h *TransactionHandler) VerifyBatch(c *gin.Context) {
	var req verifyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	if len(req.TxHashes) > 100 {
		respondError(c, &services.ValidationError{Msg: "at most 100 hashes per batch"})
		return
	}
	respondOK(c, gin.H{
		"results": h.facade.VerifyBatch(c.Request.Context(), c.Param("address"), req.TxHashes),
	})
}

// ===== governance =====

type ownerRequest struct {
	Owner string `json:"owner" binding:"required"`
}

// ProposeAddOwner proposes adding an owner.
// POST /api/v1/wallets/:address/governance/add-owner
func (h *TransactionHandler) ProposeAddOwner(c *gin.Context) {
	var req ownerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeAddOwner(c.Request.Context(), c.Param("address"), req.Owner)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

// ProposeRemoveOwner proposes removing an owner.
// POST /api/v1/wallets/:address/governance/remove-owner
func (h *TransactionHandler) ProposeRemoveOwner(c *gin.Context) {
	var req ownerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeRemoveOwner(c.Request.Context(), c.Param("address"), req.Owner)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

type thresholdRequest struct {
	Threshold uint64 `json:"threshold" binding:"required"`
}

// ProposeChangeThreshold proposes a new approval threshold.
// POST /api/v1/wallets/:address/governance/change-threshold
func (h *TransactionHandler) ProposeChangeThreshold(c *gin.Context) {
	var req thresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeChangeThreshold(c.Request.Context(), c.Param("address"), req.Threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

type moduleRequest struct {
	Module string `json:"module" binding:"required"`
}

// ProposeEnableModule proposes enabling a module.
// POST /api/v1/wallets/:address/governance/enable-module
func (h *TransactionHandler) ProposeEnableModule(c *gin.Context) {
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeEnableModule(c.Request.Context(), c.Param("address"), req.Module)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

// ProposeDisableModule proposes disabling a module.
// POST /api/v1/wallets/:address/governance/disable-module
func (h *TransactionHandler) ProposeDisableModule(c *gin.Context) {
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeDisableModule(c.Request.Context(), c.Param("address"), req.Module)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

type dailyLimitRequest struct {
	Limit string `json:"limit" binding:"required"`
}

// ProposeSetDailyLimit proposes a spending limit change.
// POST /api/v1/wallets/:address/governance/daily-limit
func (h *TransactionHandler) ProposeSetDailyLimit(c *gin.Context) {
	var req dailyLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	limit, ok := new(big.Int).SetString(req.Limit, 10)
	if !ok {
		respondError(c, &services.ValidationError{Msg: "limit must be a decimal wei amount"})
		return
	}
	txHash, err := h.facade.ProposeSetDailyLimit(c.Request.Context(), c.Param("address"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

type whitelistRequest struct {
	Address string `json:"address" binding:"required"`
}

// ProposeAddToWhitelist proposes whitelisting a destination.
// POST /api/v1/wallets/:address/governance/whitelist
func (h *TransactionHandler) ProposeAddToWhitelist(c *gin.Context) {
	var req whitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeAddToWhitelist(c.Request.Context(), c.Param("address"), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

// ProposeRemoveFromWhitelist proposes removing a whitelisted destination.
// DELETE /api/v1/wallets/:address/governance/whitelist
func (h *TransactionHandler) ProposeRemoveFromWhitelist(c *gin.Context) {
	var req whitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeRemoveFromWhitelist(c.Request.Context(), c.Param("address"), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

type setupRecoveryRequest struct {
	Guardians         []string `json:"guardians" binding:"required"`
	GuardianThreshold uint64   `json:"guardian_threshold" binding:"required"`
	DelaySeconds      uint64   `json:"delay_seconds"`
}

// ProposeSetupRecovery proposes configuring guardians.
// POST /api/v1/wallets/:address/governance/setup-recovery
func (h *TransactionHandler) ProposeSetupRecovery(c *gin.Context) {
	var req setupRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}
	txHash, err := h.facade.ProposeSetupRecovery(
		c.Request.Context(), c.Param("address"),
		req.Guardians, req.GuardianThreshold,
		time.Duration(req.DelaySeconds)*time.Second,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"tx_hash": txHash})
}

func (h *TransactionHandler) lifecycleAction(c *gin.Context, action func(ctx context.Context, wallet, txHash string) error) {
	if err := action(c.Request.Context(), c.Param("address"), c.Param("hash")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"status": "submitted and mined"})
}
