package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/services"
)

// WalletHandler serves wallet-level reads, deployment and address
// mining.
type WalletHandler struct {
	facade *services.WalletFacade
	logger *logrus.Logger
}

func NewWalletHandler(facade *services.WalletFacade, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{facade: facade, logger: logger}
}

// GetWallet returns the authoritative on-chain snapshot.
// GET /api/v1/wallets/:address
func (h *WalletHandler) GetWallet(c *gin.Context) {
	info, err := h.facade.GetWalletInfo(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, info)
}

// ListModules returns the wallet's enabled modules.
// GET /api/v1/wallets/:address/modules
func (h *WalletHandler) ListModules(c *gin.Context) {
	modules, err := h.facade.ListModules(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, modules)
}

// GetDailyLimit returns the spending-limit module state.
// GET /api/v1/wallets/:address/daily-limit
func (h *WalletHandler) GetDailyLimit(c *gin.Context) {
	state, err := h.facade.GetDailyLimit(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, state)
}

// GetWhitelist returns the whitelist module entries.
// GET /api/v1/wallets/:address/whitelist
func (h *WalletHandler) GetWhitelist(c *gin.Context) {
	entries, err := h.facade.GetWhitelist(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, entries)
}

// ListDeposits returns paginated deposit history.
// GET /api/v1/wallets/:address/deposits
func (h *WalletHandler) ListDeposits(c *gin.Context) {
	page, limit := pagination(c)
	deposits, total := h.facade.Deposits(c.Request.Context(), c.Param("address"), page, limit)
	respondOK(c, gin.H{"deposits": deposits, "total": total, "page": page, "limit": limit})
}

// ListTokenTransfers returns paginated token transfer history.
// GET /api/v1/wallets/:address/token-transfers
func (h *WalletHandler) ListTokenTransfers(c *gin.Context) {
	page, limit := pagination(c)
	transfers, total := h.facade.TokenTransfers(c.Request.Context(), c.Param("address"), page, limit)
	respondOK(c, gin.H{"transfers": transfers, "total": total, "page": page, "limit": limit})
}

// WalletsByOwner returns wallets the address co-owns.
// GET /api/v1/owners/:address/wallets
func (h *WalletHandler) WalletsByOwner(c *gin.Context) {
	wallets := h.facade.WalletsByOwner(c.Request.Context(), c.Param("address"))
	respondOK(c, gin.H{"wallets": wallets})
}

// WalletsByCreator returns wallets the address deployed.
// GET /api/v1/creators/:address/wallets
func (h *WalletHandler) WalletsByCreator(c *gin.Context) {
	wallets, err := h.facade.WalletsByCreator(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"wallets": wallets})
}

type deployWalletRequest struct {
	Owners    []string `json:"owners" binding:"required"`
	Threshold uint64   `json:"threshold" binding:"required"`
	Salt      string   `json:"salt" binding:"required"`
}

// DeployWallet deploys a wallet through the factory.
// POST /api/v1/wallets
func (h *WalletHandler) DeployWallet(c *gin.Context) {
	var req deployWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}

	address, err := h.facade.DeployWallet(c.Request.Context(), req.Owners, req.Threshold, req.Salt)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.WithField("wallet", address).Info("wallet deployed")
	respondOK(c, gin.H{"address": address})
}

// MineAddress runs a CREATE2 salt search within the request lifetime.
// Progress updates are logged; the response carries only the terminal
// result. Clients needing a longer search raise their own timeout.
// POST /api/v1/wallets/mine
func (h *WalletHandler) MineAddress(c *gin.Context) {
	progress, outcome, err := h.facade.MineAddress(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		for update := range progress {
			h.logger.WithFields(logrus.Fields{
				"attempts": update.Attempts,
				"elapsed":  update.Elapsed.String(),
			}).Debug("address mining progress")
		}
	}()

	result := <-outcome
	if result.Err != nil {
		respondError(c, result.Err)
		return
	}
	respondOK(c, result.Result)
}

func getIntQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	return strconv.Atoi(raw)
}
