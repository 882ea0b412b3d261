package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/clients"
	"multisig-backend/internal/config"
	"multisig-backend/internal/middleware"
	"multisig-backend/internal/services"
)

// SessionHandler manages the shared signing session and token
// issuance. Attaching a signer swaps it for every component at once;
// in-flight operations keep the strategy they captured.
type SessionHandler struct {
	facade *services.WalletFacade
	auth   *middleware.AuthMiddleware
	cfg    config.BlockchainConfig
	logger *logrus.Logger
}

func NewSessionHandler(facade *services.WalletFacade, auth *middleware.AuthMiddleware, cfg config.BlockchainConfig, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{facade: facade, auth: auth, cfg: cfg, logger: logger}
}

type attachSignerRequest struct {
	// Exactly one of PrivateKey or RemoteAddress is set.
	PrivateKey    string `json:"private_key,omitempty"`
	RemoteAddress string `json:"remote_address,omitempty"`
}

// AttachSigner swaps the session signer and returns a bearer token
// for the signer address.
// POST /api/v1/session/signer
func (h *SessionHandler) AttachSigner(c *gin.Context) {
	var req attachSignerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &services.ValidationError{Msg: "invalid request body: " + err.Error()})
		return
	}

	var address string
	var err error
	switch {
	case req.PrivateKey != "" && req.RemoteAddress != "":
		respondError(c, &services.ValidationError{Msg: "provide either a private key or a remote signer address, not both"})
		return
	case req.PrivateKey != "":
		address, err = h.facade.AttachPrivateKeySigner(req.PrivateKey)
	case req.RemoteAddress != "":
		client := clients.NewRemoteSignerClient(h.cfg)
		address, err = h.facade.AttachRemoteSigner(client, req.RemoteAddress)
	default:
		respondError(c, &services.ValidationError{Msg: "a private key or remote signer address is required"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.auth.IssueToken(address)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"address": address, "token": token})
}
