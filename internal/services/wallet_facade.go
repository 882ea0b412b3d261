package services

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/config"
	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

// WalletFacade is the application-facing surface. It fans reads out to
// the chain gateway (authoritative) and the indexer read path
// (secondary), routes writes through the lifecycle, and owns the
// shared signing session so a signer swap is atomic across every
// component at once.
type WalletFacade struct {
	chain     *ChainGateway
	lifecycle *TransactionLifecycle
	builder   *ProposalBuilder
	reads     *IndexerReadPath
	verifier  *ConsistencyVerifier
	miner     *AddressMiner
	session   *Session
	cfg       config.BlockchainConfig
	logger    *logrus.Logger
}

func NewWalletFacade(
	chain *ChainGateway,
	lifecycle *TransactionLifecycle,
	builder *ProposalBuilder,
	reads *IndexerReadPath,
	verifier *ConsistencyVerifier,
	miner *AddressMiner,
	session *Session,
	cfg config.BlockchainConfig,
	logger *logrus.Logger,
) *WalletFacade {
	return &WalletFacade{
		chain:     chain,
		lifecycle: lifecycle,
		builder:   builder,
		reads:     reads,
		verifier:  verifier,
		miner:     miner,
		session:   session,
		cfg:       cfg,
		logger:    logger,
	}
}

// ===== session =====

// AttachPrivateKeySigner swaps the session onto a local key.
func (f *WalletFacade) AttachPrivateKeySigner(hexKey string) (string, error) {
	strategy, err := NewPrivateKeySigningStrategy(hexKey)
	if err != nil {
		return "", err
	}
	f.session.SetSigner(strategy)
	f.logger.WithField("signer", strategy.Address().Hex()).Info("session signer attached")
	return strategy.Address().Hex(), nil
}

// AttachRemoteSigner swaps the session onto a remote signing service.
func (f *WalletFacade) AttachRemoteSigner(client RemoteSigner, address string) (string, error) {
	addr, err := utils.ParseAddress(address)
	if err != nil {
		return "", validationErrorf("invalid signer address: %s", address)
	}
	f.session.SetSigner(NewRemoteSigningStrategy(client, addr))
	f.logger.WithField("signer", addr.Hex()).Info("remote session signer attached")
	return addr.Hex(), nil
}

// ===== wallet reads =====

// GetWalletInfo assembles the wallet snapshot. The owner set and
// threshold come through the indexer read path with chain fallback;
// balance and nonce always come from chain, never the indexer.
func (f *WalletFacade) GetWalletInfo(ctx context.Context, wallet string) (*models.WalletInfo, error) {
	addr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}

	owners, threshold, err := f.reads.OwnersAndThreshold(ctx, wallet)
	if err != nil {
		return nil, err
	}
	balance, err := f.chain.GetBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	nonce, err := f.chain.GetNonce(ctx, addr)
	if err != nil {
		return nil, err
	}

	return &models.WalletInfo{
		Address:   addr.Hex(),
		Owners:    owners,
		Threshold: threshold,
		Balance:   balance,
		Nonce:     nonce,
	}, nil
}

// GetTransaction reads one transaction authoritatively from chain.
func (f *WalletFacade) GetTransaction(ctx context.Context, wallet, txHash string) (*models.Transaction, error) {
	addr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	hash, err := utils.ParseHash(txHash)
	if err != nil {
		return nil, validationErrorf("invalid transaction hash: %s", txHash)
	}
	return f.chain.GetTransaction(ctx, addr, hash)
}

// ListModules returns the wallet's enabled modules in linked-list
// order, indexer-first.
func (f *WalletFacade) ListModules(ctx context.Context, wallet string) ([]models.ModuleInfo, error) {
	if _, err := utils.ParseAddress(wallet); err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	return f.reads.EnabledModules(ctx, wallet)
}

// GetDailyLimit returns the spending-limit module state, indexer-first.
func (f *WalletFacade) GetDailyLimit(ctx context.Context, wallet string) (*models.DailyLimitState, error) {
	if _, err := utils.ParseAddress(wallet); err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	return f.reads.DailyLimit(ctx, common.HexToAddress(f.cfg.DailyLimitModule), wallet)
}

// GetWhitelist returns the whitelist module entries, indexer-first.
func (f *WalletFacade) GetWhitelist(ctx context.Context, wallet string) ([]string, error) {
	if _, err := utils.ParseAddress(wallet); err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	return f.reads.Whitelist(ctx, common.HexToAddress(f.cfg.WhitelistModule), wallet)
}

// ===== secondary reads =====

func (f *WalletFacade) TransactionHistory(ctx context.Context, wallet string, page, limit int) ([]*models.Transaction, int64, error) {
	return f.reads.TransactionHistory(ctx, wallet, page, limit)
}

func (f *WalletFacade) PendingTransactions(ctx context.Context, wallet string) ([]*models.Transaction, error) {
	return f.reads.ListPending(ctx, wallet)
}

func (f *WalletFacade) WalletsByOwner(ctx context.Context, owner string) []string {
	return f.reads.WalletsByOwner(ctx, owner)
}

func (f *WalletFacade) WalletsByCreator(ctx context.Context, creator string) ([]string, error) {
	return f.reads.WalletsByCreator(ctx, creator)
}

func (f *WalletFacade) Deposits(ctx context.Context, wallet string, page, limit int) ([]*models.Deposit, int64) {
	return f.reads.Deposits(ctx, wallet, page, limit)
}

func (f *WalletFacade) TokenTransfers(ctx context.Context, wallet string, page, limit int) ([]*models.TokenTransfer, int64) {
	return f.reads.TokenTransfers(ctx, wallet, page, limit)
}

// ===== verification =====

func (f *WalletFacade) Verify(ctx context.Context, wallet, txHash string) *VerificationResult {
	return f.verifier.Verify(ctx, wallet, txHash)
}

func (f *WalletFacade) VerifyBatch(ctx context.Context, wallet string, txHashes []string) []*VerificationResult {
	return f.verifier.VerifyBatch(ctx, wallet, txHashes)
}

// ===== deployment =====

// MineAddress runs a CREATE2 salt search for the session signer.
func (f *WalletFacade) MineAddress(ctx context.Context) (<-chan models.MiningProgress, <-chan MiningOutcome, error) {
	caller, err := f.session.CallerAddress()
	if err != nil {
		return nil, nil, err
	}
	progress, outcome := f.miner.Mine(ctx, caller)
	return progress, outcome, nil
}

// DeployWallet deploys through the factory with a pre-mined salt.
func (f *WalletFacade) DeployWallet(ctx context.Context, owners []string, threshold uint64, salt string) (string, error) {
	if len(owners) == 0 {
		return "", validationErrorf("at least one owner is required")
	}
	if threshold == 0 || threshold > uint64(len(owners)) {
		return "", validationErrorf("threshold %d is out of range for %d owners", threshold, len(owners))
	}
	ownerAddrs := make([]common.Address, len(owners))
	seen := make(map[common.Address]bool, len(owners))
	for i, owner := range owners {
		addr, err := utils.ParseAddress(owner)
		if err != nil {
			return "", validationErrorf("invalid owner address: %s", owner)
		}
		if seen[addr] {
			return "", validationErrorf("duplicate owner %s", addr.Hex())
		}
		seen[addr] = true
		ownerAddrs[i] = addr
	}
	saltHash, err := utils.ParseHash(salt)
	if err != nil {
		return "", validationErrorf("invalid salt: %s", salt)
	}
	return f.chain.CreateWallet(ctx, ownerAddrs, threshold, saltHash)
}

// ===== lifecycle passthrough =====

func (f *WalletFacade) Propose(ctx context.Context, wallet, to string, value *big.Int, data string) (string, error) {
	return f.lifecycle.Propose(ctx, wallet, to, value, data)
}

func (f *WalletFacade) Approve(ctx context.Context, wallet, txHash string) error {
	return f.lifecycle.Approve(ctx, wallet, txHash)
}

func (f *WalletFacade) Revoke(ctx context.Context, wallet, txHash string) error {
	return f.lifecycle.Revoke(ctx, wallet, txHash)
}

func (f *WalletFacade) Cancel(ctx context.Context, wallet, txHash string) error {
	return f.lifecycle.Cancel(ctx, wallet, txHash)
}

func (f *WalletFacade) Execute(ctx context.Context, wallet, txHash string) error {
	return f.lifecycle.Execute(ctx, wallet, txHash)
}

func (f *WalletFacade) ApproveAndExecute(ctx context.Context, wallet, txHash string) error {
	return f.lifecycle.ApproveAndExecute(ctx, wallet, txHash)
}

// ===== governance proposals =====

func (f *WalletFacade) ProposeAddOwner(ctx context.Context, wallet, owner string) (string, error) {
	walletAddr, ownerAddr, err := parseWalletAnd(wallet, owner)
	if err != nil {
		return "", err
	}
	call, err := f.builder.AddOwner(walletAddr, ownerAddr)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeRemoveOwner(ctx context.Context, wallet, owner string) (string, error) {
	walletAddr, ownerAddr, err := parseWalletAnd(wallet, owner)
	if err != nil {
		return "", err
	}
	call, err := f.builder.RemoveOwner(walletAddr, ownerAddr)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeChangeThreshold(ctx context.Context, wallet string, threshold uint64) (string, error) {
	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return "", validationErrorf("invalid wallet address: %s", wallet)
	}
	call, err := f.builder.ChangeThreshold(walletAddr, threshold)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeEnableModule(ctx context.Context, wallet, module string) (string, error) {
	walletAddr, moduleAddr, err := parseWalletAnd(wallet, module)
	if err != nil {
		return "", err
	}
	call, err := f.builder.EnableModule(walletAddr, moduleAddr)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeDisableModule(ctx context.Context, wallet, module string) (string, error) {
	walletAddr, moduleAddr, err := parseWalletAnd(wallet, module)
	if err != nil {
		return "", err
	}
	call, err := f.builder.DisableModule(ctx, walletAddr, moduleAddr)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeSetDailyLimit(ctx context.Context, wallet string, limit *big.Int) (string, error) {
	call, err := f.builder.SetDailyLimit(common.HexToAddress(f.cfg.DailyLimitModule), limit)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeAddToWhitelist(ctx context.Context, wallet, addr string) (string, error) {
	target, err := utils.ParseAddress(addr)
	if err != nil {
		return "", validationErrorf("invalid address: %s", addr)
	}
	call, err := f.builder.AddToWhitelist(common.HexToAddress(f.cfg.WhitelistModule), target)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeRemoveFromWhitelist(ctx context.Context, wallet, addr string) (string, error) {
	target, err := utils.ParseAddress(addr)
	if err != nil {
		return "", validationErrorf("invalid address: %s", addr)
	}
	call, err := f.builder.RemoveFromWhitelist(common.HexToAddress(f.cfg.WhitelistModule), target)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

func (f *WalletFacade) ProposeSetupRecovery(ctx context.Context, wallet string, guardians []string, guardianThreshold uint64, delay time.Duration) (string, error) {
	guardianAddrs := make([]common.Address, len(guardians))
	for i, guardian := range guardians {
		addr, err := utils.ParseAddress(guardian)
		if err != nil {
			return "", validationErrorf("invalid guardian address: %s", guardian)
		}
		guardianAddrs[i] = addr
	}
	call, err := f.builder.SetupRecovery(common.HexToAddress(f.cfg.RecoveryModule), guardianAddrs, guardianThreshold, delay)
	if err != nil {
		return "", err
	}
	return f.lifecycle.ProposeGovernance(ctx, wallet, call)
}

// ===== recovery (guardian-direct, no wallet quorum) =====

// RecoveryConfigOf returns the guardian setup, indexer-first.
func (f *WalletFacade) RecoveryConfigOf(ctx context.Context, wallet string) (*models.RecoveryConfig, error) {
	if _, err := utils.ParseAddress(wallet); err != nil {
		return nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	return f.reads.RecoveryConfig(ctx, common.HexToAddress(f.cfg.RecoveryModule), wallet)
}

// RecoveryHistory returns the wallet's recovery history from the
// indexer; empty when it is unavailable.
func (f *WalletFacade) RecoveryHistory(ctx context.Context, wallet string, page, limit int) ([]*models.Recovery, int64) {
	return f.reads.RecoveryHistory(ctx, wallet, page, limit)
}

// RecoveryOf reads one recovery from chain, with per-guardian approval
// detail attached from the indexer when available.
func (f *WalletFacade) RecoveryOf(ctx context.Context, wallet, recoveryHash string) (*models.Recovery, []*models.GuardianApproval, error) {
	addr, err := utils.ParseAddress(wallet)
	if err != nil {
		return nil, nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	hash, err := utils.ParseHash(recoveryHash)
	if err != nil {
		return nil, nil, validationErrorf("invalid recovery hash: %s", recoveryHash)
	}
	recovery, err := f.chain.GetRecovery(ctx, common.HexToAddress(f.cfg.RecoveryModule), addr, hash)
	if err != nil {
		return nil, nil, err
	}
	return recovery, f.reads.RecoveryApprovals(ctx, recoveryHash), nil
}

func (f *WalletFacade) WalletsByGuardian(ctx context.Context, guardian string) []string {
	return f.reads.WalletsByGuardian(ctx, guardian)
}

// InitiateRecovery starts a recovery as a guardian. Guardian
// authorization is the module's to enforce; the session signer is
// simply the submitting guardian.
func (f *WalletFacade) InitiateRecovery(ctx context.Context, wallet string, newOwners []string, newThreshold uint64) (string, error) {
	addr, err := utils.ParseAddress(wallet)
	if err != nil {
		return "", validationErrorf("invalid wallet address: %s", wallet)
	}
	if len(newOwners) == 0 {
		return "", validationErrorf("at least one new owner is required")
	}
	if newThreshold == 0 || newThreshold > uint64(len(newOwners)) {
		return "", validationErrorf("threshold %d is out of range for %d owners", newThreshold, len(newOwners))
	}
	ownerAddrs := make([]common.Address, len(newOwners))
	for i, owner := range newOwners {
		ownerAddr, err := utils.ParseAddress(owner)
		if err != nil {
			return "", validationErrorf("invalid owner address: %s", owner)
		}
		ownerAddrs[i] = ownerAddr
	}
	hash, err := f.chain.InitiateRecovery(ctx, common.HexToAddress(f.cfg.RecoveryModule), addr, ownerAddrs, newThreshold)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (f *WalletFacade) ApproveRecovery(ctx context.Context, wallet, recoveryHash string) error {
	return f.recoveryAction(ctx, wallet, recoveryHash, f.chain.ApproveRecovery)
}

func (f *WalletFacade) ExecuteRecovery(ctx context.Context, wallet, recoveryHash string) error {
	return f.recoveryAction(ctx, wallet, recoveryHash, f.chain.ExecuteRecovery)
}

func (f *WalletFacade) CancelRecovery(ctx context.Context, wallet, recoveryHash string) error {
	return f.recoveryAction(ctx, wallet, recoveryHash, f.chain.CancelRecovery)
}

func (f *WalletFacade) recoveryAction(ctx context.Context, wallet, recoveryHash string, action func(context.Context, common.Address, common.Address, common.Hash) error) error {
	addr, err := utils.ParseAddress(wallet)
	if err != nil {
		return validationErrorf("invalid wallet address: %s", wallet)
	}
	hash, err := utils.ParseHash(recoveryHash)
	if err != nil {
		return validationErrorf("invalid recovery hash: %s", recoveryHash)
	}
	return action(ctx, common.HexToAddress(f.cfg.RecoveryModule), addr, hash)
}

func parseWalletAnd(wallet, other string) (common.Address, common.Address, error) {
	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return common.Address{}, common.Address{}, validationErrorf("invalid wallet address: %s", wallet)
	}
	otherAddr, err := utils.ParseAddress(other)
	if err != nil {
		return common.Address{}, common.Address{}, validationErrorf("invalid address: %s", other)
	}
	return walletAddr, otherAddr, nil
}
