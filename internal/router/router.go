package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/handlers"
	"multisig-backend/internal/middleware"
)

// corsMiddleware allows browser clients. The API carries no secrets
// beyond the bearer token, so a permissive policy is acceptable here.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Setup wires all routes. Reads are public; anything that signs and
// submits a chain write requires a bearer token.
func Setup(
	wallets *handlers.WalletHandler,
	txs *handlers.TransactionHandler,
	recovery *handlers.RecoveryHandler,
	session *handlers.SessionHandler,
	auth *middleware.AuthMiddleware,
	logger *logrus.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(requestLogger(logger))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")

	v1.POST("/session/signer", session.AttachSigner)

	// Reads
	v1.GET("/wallets/:address", wallets.GetWallet)
	v1.GET("/wallets/:address/modules", wallets.ListModules)
	v1.GET("/wallets/:address/daily-limit", wallets.GetDailyLimit)
	v1.GET("/wallets/:address/whitelist", wallets.GetWhitelist)
	v1.GET("/wallets/:address/deposits", wallets.ListDeposits)
	v1.GET("/wallets/:address/token-transfers", wallets.ListTokenTransfers)
	v1.GET("/owners/:address/wallets", wallets.WalletsByOwner)
	v1.GET("/creators/:address/wallets", wallets.WalletsByCreator)
	v1.GET("/guardians/:address/wallets", recovery.WalletsByGuardian)

	v1.GET("/wallets/:address/transactions", txs.History)
	v1.GET("/wallets/:address/transactions/pending", txs.Pending)
	v1.GET("/wallets/:address/transactions/:hash", txs.Get)
	v1.GET("/wallets/:address/transactions/:hash/verify", txs.Verify)
	v1.POST("/wallets/:address/transactions/verify", txs.VerifyBatch)

	v1.GET("/wallets/:address/recovery", recovery.History)
	v1.GET("/wallets/:address/recovery/config", recovery.GetConfig)
	v1.GET("/wallets/:address/recovery/:hash", recovery.Get)

	// Writes
	authed := v1.Group("")
	authed.Use(auth.RequireAuth())

	authed.POST("/wallets", wallets.DeployWallet)
	authed.POST("/wallets/mine", wallets.MineAddress)

	authed.POST("/wallets/:address/transactions", txs.Propose)
	authed.POST("/wallets/:address/transactions/:hash/approve", txs.Approve)
	authed.POST("/wallets/:address/transactions/:hash/revoke", txs.Revoke)
	authed.POST("/wallets/:address/transactions/:hash/cancel", txs.Cancel)
	authed.POST("/wallets/:address/transactions/:hash/execute", txs.Execute)
	authed.POST("/wallets/:address/transactions/:hash/approve-and-execute", txs.ApproveAndExecute)

	authed.POST("/wallets/:address/governance/add-owner", txs.ProposeAddOwner)
	authed.POST("/wallets/:address/governance/remove-owner", txs.ProposeRemoveOwner)
	authed.POST("/wallets/:address/governance/change-threshold", txs.ProposeChangeThreshold)
	authed.POST("/wallets/:address/governance/enable-module", txs.ProposeEnableModule)
	authed.POST("/wallets/:address/governance/disable-module", txs.ProposeDisableModule)
	authed.POST("/wallets/:address/governance/daily-limit", txs.ProposeSetDailyLimit)
	authed.POST("/wallets/:address/governance/whitelist", txs.ProposeAddToWhitelist)
	authed.DELETE("/wallets/:address/governance/whitelist", txs.ProposeRemoveFromWhitelist)
	authed.POST("/wallets/:address/governance/setup-recovery", txs.ProposeSetupRecovery)

	authed.POST("/wallets/:address/recovery", recovery.Initiate)
	authed.POST("/wallets/:address/recovery/:hash/approve", recovery.Approve)
	authed.POST("/wallets/:address/recovery/:hash/execute", recovery.Execute)
	authed.POST("/wallets/:address/recovery/:hash/cancel", recovery.Cancel)

	return engine
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= http.StatusBadRequest {
			logger.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
			}).Warn("request failed")
		}
	}
}
