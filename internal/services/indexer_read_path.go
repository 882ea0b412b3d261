package services

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"multisig-backend/internal/clients"
	"multisig-backend/internal/metrics"
	"multisig-backend/internal/models"
	"multisig-backend/internal/repository"
	"multisig-backend/internal/utils"
)

// healthProber checks the indexer's availability once.
type healthProber interface {
	Probe(ctx context.Context) (*clients.IndexerHealth, error)
}

// fallbackChain is the chain-side surface used when the indexer is
// unavailable for reads that have a chain equivalent.
type fallbackChain interface {
	GetTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) (*models.Transaction, error)
	GetProposedEvents(ctx context.Context, wallet common.Address) ([]ProposedEvent, error)
	GetWalletsByCreator(ctx context.Context, creator common.Address) ([]string, error)
	GetOwners(ctx context.Context, wallet common.Address) ([]string, error)
	GetThreshold(ctx context.Context, wallet common.Address) (uint64, error)
	GetModules(ctx context.Context, wallet common.Address) ([]common.Address, error)
	GetDailyLimit(ctx context.Context, module, wallet common.Address) (*models.DailyLimitState, error)
	GetWhitelist(ctx context.Context, module, wallet common.Address) ([]string, error)
	GetRecoveryConfig(ctx context.Context, module, wallet common.Address) (*models.RecoveryConfig, error)
}

// IndexerReadPath serves secondary reads from the indexer store when
// it is healthy and falls back to the chain when it is not. Reads with
// no chain equivalent (reverse indexes, token history) return empty on
// indexer failure instead of erroring; absence of cache must never
// break a caller.
//
// The health verdict is cached for a TTL and refreshed by at most one
// probe at a time; concurrent readers hitting an expired verdict share
// a single probe instead of stampeding the health endpoint.
type IndexerReadPath struct {
	wallets    repository.WalletRepository
	txs        repository.TransactionRepository
	modules    repository.ModuleRepository
	recoveries repository.RecoveryRepository
	tokens     repository.TokenRepository
	chain      fallbackChain
	prober     healthProber
	ttl        time.Duration
	logger     *logrus.Logger

	sf singleflight.Group

	mu           sync.RWMutex
	healthy      bool
	blocksBehind uint64
	checkedAt    time.Time
}

func NewIndexerReadPath(
	wallets repository.WalletRepository,
	txs repository.TransactionRepository,
	modules repository.ModuleRepository,
	recoveries repository.RecoveryRepository,
	tokens repository.TokenRepository,
	chain fallbackChain,
	prober healthProber,
	ttl time.Duration,
	logger *logrus.Logger,
) *IndexerReadPath {
	return &IndexerReadPath{
		wallets:    wallets,
		txs:        txs,
		modules:    modules,
		recoveries: recoveries,
		tokens:     tokens,
		chain:      chain,
		prober:     prober,
		ttl:        ttl,
		logger:     logger,
	}
}

// Available reports whether the indexer may be used for reads,
// probing at most once per TTL.
func (p *IndexerReadPath) Available(ctx context.Context) bool {
	p.mu.RLock()
	fresh := time.Since(p.checkedAt) < p.ttl
	healthy := p.healthy
	p.mu.RUnlock()
	if fresh {
		return healthy
	}

	result, _, _ := p.sf.Do("health", func() (interface{}, error) {
		health, err := p.prober.Probe(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.checkedAt = time.Now()
		if err != nil {
			p.healthy = false
			metrics.HealthProbes.WithLabelValues("error").Inc()
			metrics.IndexerAvailable.Set(0)
			p.logger.WithError(err).Debug("indexer health probe failed")
			return false, nil
		}
		p.healthy = health.Healthy
		p.blocksBehind = health.BlocksBehind
		metrics.IndexerBlocksBehind.Set(float64(health.BlocksBehind))
		if health.Healthy {
			metrics.HealthProbes.WithLabelValues("healthy").Inc()
			metrics.IndexerAvailable.Set(1)
		} else {
			metrics.HealthProbes.WithLabelValues("unhealthy").Inc()
			metrics.IndexerAvailable.Set(0)
		}
		return p.healthy, nil
	})
	available, _ := result.(bool)
	return available
}

// Invalidate expires the cached health verdict after a write. The
// indexer necessarily lags our own confirmed writes, so the next read
// re-evaluates freshness instead of trusting the pre-write verdict.
func (p *IndexerReadPath) Invalidate(wallet string) {
	p.mu.Lock()
	p.checkedAt = time.Time{}
	p.mu.Unlock()
	p.logger.WithField("wallet", wallet).Debug("indexer health verdict invalidated after write")
}

// BlocksBehind returns the sync lag from the last successful probe.
func (p *IndexerReadPath) BlocksBehind() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.blocksBehind
}

// ===== reads with chain fallback =====

// ListPending returns the wallet's pending transactions. Healthy
// indexer: one query. Otherwise the bounded chain event window is
// scanned and each candidate re-read for its current state; beyond
// that window pending history is simply not enumerable from chain.
func (p *IndexerReadPath) ListPending(ctx context.Context, wallet string) ([]*models.Transaction, error) {
	if p.Available(ctx) {
		rows, err := p.txs.FindPendingByWallet(ctx, wallet)
		if err == nil {
			metrics.IndexerReads.WithLabelValues("pending").Inc()
			return indexedToTransactions(rows), nil
		}
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer pending read failed, falling back to chain")
	}
	metrics.IndexerFallbacks.WithLabelValues("pending").Inc()

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	events, err := p.chain.GetProposedEvents(ctx, walletAddr)
	if err != nil {
		return nil, err
	}

	var pending []*models.Transaction
	for _, event := range events {
		hash, err := utils.ParseHash(event.TxHash)
		if err != nil {
			continue
		}
		tx, err := p.chain.GetTransaction(ctx, walletAddr, hash)
		if err != nil {
			continue
		}
		if tx.Status() == models.TxStatusPending {
			pending = append(pending, tx)
		}
	}
	return pending, nil
}

// TransactionHistory returns paginated history. The indexer serves
// full history; the chain fallback serves only the bounded recent
// event window, unpaginated.
func (p *IndexerReadPath) TransactionHistory(ctx context.Context, wallet string, page, limit int) ([]*models.Transaction, int64, error) {
	if p.Available(ctx) {
		rows, total, err := p.txs.FindByWallet(ctx, wallet, page, limit)
		if err == nil {
			metrics.IndexerReads.WithLabelValues("history").Inc()
			return indexedToTransactions(rows), total, nil
		}
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer history read failed, falling back to chain")
	}
	metrics.IndexerFallbacks.WithLabelValues("history").Inc()

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, 0, validationErrorf("invalid wallet address: %s", wallet)
	}
	events, err := p.chain.GetProposedEvents(ctx, walletAddr)
	if err != nil {
		return nil, 0, err
	}

	txs := make([]*models.Transaction, 0, len(events))
	for _, event := range events {
		hash, err := utils.ParseHash(event.TxHash)
		if err != nil {
			continue
		}
		tx, err := p.chain.GetTransaction(ctx, walletAddr, hash)
		if err != nil {
			continue
		}
		txs = append(txs, tx)
	}
	return txs, int64(len(txs)), nil
}

// WalletsByCreator lists wallets deployed by a creator, preferring the
// indexer and falling back to the factory's on-chain registry.
func (p *IndexerReadPath) WalletsByCreator(ctx context.Context, creator string) ([]string, error) {
	if p.Available(ctx) {
		rows, err := p.wallets.FindWalletsByCreator(ctx, creator)
		if err == nil {
			metrics.IndexerReads.WithLabelValues("wallets_by_creator").Inc()
			addrs := make([]string, len(rows))
			for i, row := range rows {
				addrs[i] = utils.ChecksumAddress(row.Address)
			}
			return addrs, nil
		}
		p.logger.WithError(err).WithField("creator", creator).Warn("indexer creator read failed, falling back to chain")
	}
	metrics.IndexerFallbacks.WithLabelValues("wallets_by_creator").Inc()

	creatorAddr, err := utils.ParseAddress(creator)
	if err != nil {
		return nil, validationErrorf("invalid creator address: %s", creator)
	}
	return p.chain.GetWalletsByCreator(ctx, creatorAddr)
}

// OwnersAndThreshold returns the wallet's owner set and quorum,
// preferring the indexer and falling back to the authoritative chain
// reads. Owners are returned checksummed in either case.
func (p *IndexerReadPath) OwnersAndThreshold(ctx context.Context, wallet string) ([]string, uint64, error) {
	if p.Available(ctx) {
		row, err := p.wallets.GetWalletByAddress(ctx, wallet)
		var ownerRows []*models.IndexedWalletOwner
		if err == nil {
			ownerRows, err = p.wallets.GetOwners(ctx, wallet)
		}
		if err == nil {
			metrics.IndexerReads.WithLabelValues("wallet_info").Inc()
			owners := make([]string, len(ownerRows))
			for i, o := range ownerRows {
				owners[i] = utils.ChecksumAddress(o.OwnerAddress)
			}
			return owners, row.Threshold, nil
		}
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer wallet read failed, falling back to chain")
	}
	metrics.IndexerFallbacks.WithLabelValues("wallet_info").Inc()

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, 0, validationErrorf("invalid wallet address: %s", wallet)
	}
	owners, err := p.chain.GetOwners(ctx, walletAddr)
	if err != nil {
		return nil, 0, err
	}
	threshold, err := p.chain.GetThreshold(ctx, walletAddr)
	if err != nil {
		return nil, 0, err
	}
	return owners, threshold, nil
}

// EnabledModules returns the wallet's enabled modules in linked-list
// order, preferring the indexer.
func (p *IndexerReadPath) EnabledModules(ctx context.Context, wallet string) ([]models.ModuleInfo, error) {
	if p.Available(ctx) {
		rows, err := p.modules.FindEnabledModules(ctx, wallet)
		if err == nil {
			metrics.IndexerReads.WithLabelValues("modules").Inc()
			infos := make([]models.ModuleInfo, len(rows))
			for i, row := range rows {
				infos[i] = models.ModuleInfo{
					Address:  utils.ChecksumAddress(row.ModuleAddress),
					Enabled:  row.Enabled,
					Position: row.Position,
				}
			}
			return infos, nil
		}
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer module read failed, falling back to chain")
	}
	metrics.IndexerFallbacks.WithLabelValues("modules").Inc()

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	modules, err := p.chain.GetModules(ctx, walletAddr)
	if err != nil {
		return nil, err
	}
	infos := make([]models.ModuleInfo, len(modules))
	for i, module := range modules {
		infos[i] = models.ModuleInfo{
			Address:  module.Hex(),
			Enabled:  true,
			Position: i,
		}
	}
	return infos, nil
}

// DailyLimit returns the spending-limit module state, preferring the
// indexer. A row with malformed amounts is treated the same as a read
// failure.
func (p *IndexerReadPath) DailyLimit(ctx context.Context, module common.Address, wallet string) (*models.DailyLimitState, error) {
	if p.Available(ctx) {
		row, err := p.modules.GetDailyLimit(ctx, wallet)
		if err == nil {
			limit, limitOK := new(big.Int).SetString(row.LimitAmount, 10)
			spent, spentOK := new(big.Int).SetString(row.SpentToday, 10)
			if limitOK && spentOK {
				metrics.IndexerReads.WithLabelValues("daily_limit").Inc()
				return &models.DailyLimitState{
					Wallet:     utils.ChecksumAddress(row.WalletAddress),
					Limit:      limit,
					SpentToday: spent,
					ResetAt:    row.ResetAt,
				}, nil
			}
			p.logger.WithField("wallet", wallet).Warn("indexer daily-limit row malformed, falling back to chain")
		} else {
			p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer daily-limit read failed, falling back to chain")
		}
	}
	metrics.IndexerFallbacks.WithLabelValues("daily_limit").Inc()

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	return p.chain.GetDailyLimit(ctx, module, walletAddr)
}

// Whitelist returns the module's whitelisted destinations, preferring
// the indexer.
func (p *IndexerReadPath) Whitelist(ctx context.Context, module common.Address, wallet string) ([]string, error) {
	if p.Available(ctx) {
		rows, err := p.modules.FindWhitelist(ctx, wallet)
		if err == nil {
			metrics.IndexerReads.WithLabelValues("whitelist").Inc()
			entries := make([]string, len(rows))
			for i, row := range rows {
				entries[i] = utils.ChecksumAddress(row.Address)
			}
			return entries, nil
		}
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer whitelist read failed, falling back to chain")
	}
	metrics.IndexerFallbacks.WithLabelValues("whitelist").Inc()

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	return p.chain.GetWhitelist(ctx, module, walletAddr)
}

// RecoveryConfig returns the wallet's guardian setup, preferring the
// indexer.
func (p *IndexerReadPath) RecoveryConfig(ctx context.Context, module common.Address, wallet string) (*models.RecoveryConfig, error) {
	if p.Available(ctx) {
		config, err := p.recoveries.GetRecoveryConfig(ctx, wallet)
		var guardianRows []*models.IndexedGuardian
		if err == nil {
			guardianRows, err = p.recoveries.FindGuardians(ctx, wallet)
		}
		if err == nil {
			metrics.IndexerReads.WithLabelValues("recovery_config").Inc()
			guardians := make([]string, len(guardianRows))
			for i, g := range guardianRows {
				guardians[i] = utils.ChecksumAddress(g.Guardian)
			}
			return &models.RecoveryConfig{
				Wallet:            utils.ChecksumAddress(config.WalletAddress),
				Guardians:         guardians,
				GuardianThreshold: config.GuardianThreshold,
				Delay:             time.Duration(config.DelaySeconds) * time.Second,
			}, nil
		}
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer recovery-config read failed, falling back to chain")
	}
	metrics.IndexerFallbacks.WithLabelValues("recovery_config").Inc()

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	return p.chain.GetRecoveryConfig(ctx, module, walletAddr)
}

// ===== indexer-only reads =====

// WalletsByOwner is the owner-to-wallet reverse index. Indexer-only;
// the chain has no reverse lookup, so an unavailable indexer yields an
// empty result, never an error.
func (p *IndexerReadPath) WalletsByOwner(ctx context.Context, owner string) []string {
	if !p.Available(ctx) {
		metrics.IndexerFallbacks.WithLabelValues("wallets_by_owner").Inc()
		return []string{}
	}
	rows, err := p.wallets.FindWalletsByOwner(ctx, owner)
	if err != nil {
		p.logger.WithError(err).WithField("owner", owner).Warn("indexer owner read failed, returning empty")
		metrics.IndexerFallbacks.WithLabelValues("wallets_by_owner").Inc()
		return []string{}
	}
	metrics.IndexerReads.WithLabelValues("wallets_by_owner").Inc()
	addrs := make([]string, len(rows))
	for i, row := range rows {
		addrs[i] = utils.ChecksumAddress(row.Address)
	}
	return addrs
}

// WalletsByGuardian is the guardian-to-wallet reverse index.
// Indexer-only.
func (p *IndexerReadPath) WalletsByGuardian(ctx context.Context, guardian string) []string {
	if !p.Available(ctx) {
		metrics.IndexerFallbacks.WithLabelValues("wallets_by_guardian").Inc()
		return []string{}
	}
	rows, err := p.recoveries.FindWalletsByGuardian(ctx, guardian)
	if err != nil {
		p.logger.WithError(err).WithField("guardian", guardian).Warn("indexer guardian read failed, returning empty")
		metrics.IndexerFallbacks.WithLabelValues("wallets_by_guardian").Inc()
		return []string{}
	}
	metrics.IndexerReads.WithLabelValues("wallets_by_guardian").Inc()
	addrs := make([]string, len(rows))
	for i, row := range rows {
		addrs[i] = utils.ChecksumAddress(row.WalletAddress)
	}
	return addrs
}

// RecoveryHistory returns the wallet's past and in-flight recoveries.
// Indexer-only; the recovery module exposes single-recovery lookups by
// hash but no enumeration.
func (p *IndexerReadPath) RecoveryHistory(ctx context.Context, wallet string, page, limit int) ([]*models.Recovery, int64) {
	if !p.Available(ctx) {
		metrics.IndexerFallbacks.WithLabelValues("recovery_history").Inc()
		return []*models.Recovery{}, 0
	}
	rows, total, err := p.recoveries.FindRecoveriesByWallet(ctx, wallet, page, limit)
	if err != nil {
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer recovery read failed, returning empty")
		metrics.IndexerFallbacks.WithLabelValues("recovery_history").Inc()
		return []*models.Recovery{}, 0
	}
	metrics.IndexerReads.WithLabelValues("recovery_history").Inc()
	recoveries := make([]*models.Recovery, len(rows))
	for i, row := range rows {
		var newOwners []string
		for _, owner := range strings.Split(row.NewOwners, ",") {
			if owner == "" {
				continue
			}
			newOwners = append(newOwners, utils.ChecksumAddress(owner))
		}
		recoveries[i] = &models.Recovery{
			Hash:          row.RecoveryHash,
			Wallet:        utils.ChecksumAddress(row.WalletAddress),
			NewOwners:     newOwners,
			NewThreshold:  row.NewThreshold,
			ApprovalCount: row.ApprovalCount,
			ExecutionTime: row.ExecutionTime,
			Executed:      row.Executed,
			Cancelled:     row.Cancelled,
		}
	}
	return recoveries, total
}

// Deposits returns deposit history. Indexer-only.
func (p *IndexerReadPath) Deposits(ctx context.Context, wallet string, page, limit int) ([]*models.Deposit, int64) {
	if !p.Available(ctx) {
		metrics.IndexerFallbacks.WithLabelValues("deposits").Inc()
		return []*models.Deposit{}, 0
	}
	rows, total, err := p.wallets.FindDepositsByWallet(ctx, wallet, page, limit)
	if err != nil {
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer deposit read failed, returning empty")
		metrics.IndexerFallbacks.WithLabelValues("deposits").Inc()
		return []*models.Deposit{}, 0
	}
	metrics.IndexerReads.WithLabelValues("deposits").Inc()
	deposits := make([]*models.Deposit, len(rows))
	for i, row := range rows {
		amount, _ := new(big.Int).SetString(row.Amount, 10)
		deposits[i] = &models.Deposit{
			Wallet:    utils.ChecksumAddress(row.WalletAddress),
			Sender:    utils.ChecksumAddress(row.Sender),
			Amount:    amount,
			TxHash:    row.TxHash,
			Timestamp: row.Timestamp,
		}
	}
	return deposits, total
}

// TokenTransfers returns token transfer history. Indexer-only.
func (p *IndexerReadPath) TokenTransfers(ctx context.Context, wallet string, page, limit int) ([]*models.TokenTransfer, int64) {
	if !p.Available(ctx) {
		metrics.IndexerFallbacks.WithLabelValues("token_transfers").Inc()
		return []*models.TokenTransfer{}, 0
	}
	rows, total, err := p.tokens.FindTransfersByWallet(ctx, wallet, page, limit)
	if err != nil {
		p.logger.WithError(err).WithField("wallet", wallet).Warn("indexer token read failed, returning empty")
		metrics.IndexerFallbacks.WithLabelValues("token_transfers").Inc()
		return []*models.TokenTransfer{}, 0
	}
	metrics.IndexerReads.WithLabelValues("token_transfers").Inc()
	transfers := make([]*models.TokenTransfer, len(rows))
	for i, row := range rows {
		amount, _ := new(big.Int).SetString(row.Amount, 10)
		transfers[i] = &models.TokenTransfer{
			Wallet:    utils.ChecksumAddress(row.WalletAddress),
			Token:     utils.ChecksumAddress(row.TokenAddress),
			From:      utils.ChecksumAddress(row.FromAddress),
			To:        utils.ChecksumAddress(row.ToAddress),
			Amount:    amount,
			TxHash:    row.TxHash,
			Timestamp: row.Timestamp,
		}
	}
	return transfers, total
}

// RecoveryApprovals returns per-guardian approval detail for a
// recovery. Indexer-only.
func (p *IndexerReadPath) RecoveryApprovals(ctx context.Context, recoveryHash string) []*models.GuardianApproval {
	if !p.Available(ctx) {
		metrics.IndexerFallbacks.WithLabelValues("recovery_approvals").Inc()
		return []*models.GuardianApproval{}
	}
	rows, err := p.recoveries.FindApprovals(ctx, recoveryHash)
	if err != nil {
		p.logger.WithError(err).WithField("recovery", recoveryHash).Warn("indexer approval read failed, returning empty")
		metrics.IndexerFallbacks.WithLabelValues("recovery_approvals").Inc()
		return []*models.GuardianApproval{}
	}
	metrics.IndexerReads.WithLabelValues("recovery_approvals").Inc()
	approvals := make([]*models.GuardianApproval, len(rows))
	for i, row := range rows {
		approvals[i] = &models.GuardianApproval{
			RecoveryHash: row.RecoveryHash,
			Guardian:     utils.ChecksumAddress(row.Guardian),
			ApprovedAt:   row.ApprovedAt,
		}
	}
	return approvals
}

// indexedToTransactions maps cache rows onto the read model. Decoded
// calldata columns are deliberately not mapped; consumers decode the
// raw calldata themselves rather than trusting the indexer's
// interpretation.
func indexedToTransactions(rows []*models.IndexedTransaction) []*models.Transaction {
	txs := make([]*models.Transaction, len(rows))
	for i, row := range rows {
		value, _ := new(big.Int).SetString(row.Value, 10)
		txs[i] = &models.Transaction{
			Hash:         row.TxHash,
			Wallet:       utils.ChecksumAddress(row.WalletAddress),
			To:           utils.ChecksumAddress(row.To),
			Value:        value,
			Data:         row.Data,
			Proposer:     utils.ChecksumAddress(row.Proposer),
			NumApprovals: row.NumApprovals,
			Executed:     row.Executed,
			Cancelled:    row.Cancelled,
			Timestamp:    row.Timestamp,
		}
	}
	return txs
}
