package app

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"multisig-backend/internal/clients"
	"multisig-backend/internal/config"
	"multisig-backend/internal/db"
	"multisig-backend/internal/repository"
	"multisig-backend/internal/services"
)

// ServiceContainer wires every component once at startup. Components
// share one Session so that attaching a signer swaps it everywhere
// atomically, and one ChainGateway so the read rate limit is global.
type ServiceContainer struct {
	Config  *config.Config
	Logger  *logrus.Logger
	DB      *gorm.DB
	Session *services.Session

	Chain     *services.ChainGateway
	Builder   *services.ProposalBuilder
	Lifecycle *services.TransactionLifecycle
	Reads     *services.IndexerReadPath
	Verifier  *services.ConsistencyVerifier
	Miner     *services.AddressMiner
	Facade    *services.WalletFacade

	NATS *clients.NATSClient
	feed *clients.IndexerEventFeed
}

// NewServiceContainer builds the full dependency graph. NATS and the
// indexer feed are optional at startup: the lifecycle works without
// them, only event fan-out and cache freshness degrade.
func NewServiceContainer(cfg *config.Config, logger *logrus.Logger) (*ServiceContainer, error) {
	database, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	session := services.NewSession()
	if cfg.Blockchain.PrivateKey != "" {
		strategy, err := services.NewPrivateKeySigningStrategy(cfg.Blockchain.PrivateKey)
		if err != nil {
			return nil, err
		}
		session.SetSigner(strategy)
		logger.WithField("signer", strategy.Address().Hex()).Info("startup signer attached from config")
	}

	chain, err := services.NewChainGateway(cfg.Blockchain, session, logger)
	if err != nil {
		return nil, err
	}

	wallets := repository.NewWalletRepository(database)
	txs := repository.NewTransactionRepository(database)
	modules := repository.NewModuleRepository(database)
	recoveries := repository.NewRecoveryRepository(database)
	tokens := repository.NewTokenRepository(database)

	prober := clients.NewIndexerHealthClient(cfg.Indexer)
	reads := services.NewIndexerReadPath(
		wallets, txs, modules, recoveries, tokens,
		chain, prober, cfg.Indexer.HealthTTLDuration(), logger,
	)

	var natsClient *clients.NATSClient
	if cfg.NATS.URL != "" {
		natsClient, err = clients.NewNATSClient(cfg.NATS, logger)
		if err != nil {
			logger.WithError(err).Warn("NATS unavailable, lifecycle events will not be published")
			natsClient = nil
		}
	}

	builder := services.NewProposalBuilder(chain)
	var publisher services.EventPublisher
	if natsClient != nil {
		publisher = natsClient
	}
	lifecycle := services.NewTransactionLifecycle(chain, reads, builder, session, reads, publisher, logger)
	verifier := services.NewConsistencyVerifier(chain, txs, logger)

	miner, err := services.NewAddressMiner(cfg.Blockchain, cfg.Miner, logger)
	if err != nil {
		return nil, err
	}

	facade := services.NewWalletFacade(chain, lifecycle, builder, reads, verifier, miner, session, cfg.Blockchain, logger)

	container := &ServiceContainer{
		Config:    cfg,
		Logger:    logger,
		DB:        database,
		Session:   session,
		Chain:     chain,
		Builder:   builder,
		Lifecycle: lifecycle,
		Reads:     reads,
		Verifier:  verifier,
		Miner:     miner,
		Facade:    facade,
		NATS:      natsClient,
	}

	if cfg.Indexer.WSURL != "" {
		container.feed = clients.NewIndexerEventFeed(
			cfg.Indexer.WSURL,
			func(event clients.IndexerEvent) {
				// Any pushed change means the cached health verdict
				// may be stale relative to the new rows.
				reads.Invalidate(event.Wallet)
			},
			func(err error) {
				reads.Invalidate("")
			},
			logger,
		)
	}

	return container, nil
}

// Start launches background workers.
func (c *ServiceContainer) Start(ctx context.Context) {
	if c.feed != nil {
		go c.feed.Run(ctx)
	}
}

// Close releases external connections.
func (c *ServiceContainer) Close() {
	if c.NATS != nil {
		c.NATS.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
