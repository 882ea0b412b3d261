package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// moduleLister is the one chain read the builder needs: the enabled
// modules of a wallet, in linked-list order.
type moduleLister interface {
	GetModules(ctx context.Context, wallet common.Address) ([]common.Address, error)
}

// ProposalBuilder encodes governance actions into (to, value, data)
// triples for proposal. Every governance action is a self-call: the
// wallet is both the proposal target and the contract whose state
// changes, so value is always zero and `to` is the wallet itself,
// except for module-scoped actions whose target is the module.
type ProposalBuilder struct {
	chain moduleLister
}

func NewProposalBuilder(chain moduleLister) *ProposalBuilder {
	return &ProposalBuilder{chain: chain}
}

// ProposalCall is encoded calldata plus its target, ready to propose.
type ProposalCall struct {
	To    common.Address
	Value *big.Int
	Data  []byte
	// SelfCall marks wallet-targeted governance. Proposals built from
	// a self-call skip gas pre-simulation: the call can only succeed
	// once quorum exists, so simulating it against current state would
	// reject every valid governance proposal.
	SelfCall bool
}

// AddOwner encodes an addOwner self-call.
func (b *ProposalBuilder) AddOwner(wallet, owner common.Address) (*ProposalCall, error) {
	return b.selfCall(wallet, "addOwner", owner)
}

// RemoveOwner encodes a removeOwner self-call. Whether the removal
// still leaves enough owners for the threshold is checked at execution
// time, not here; membership may change while the proposal is pending.
func (b *ProposalBuilder) RemoveOwner(wallet, owner common.Address) (*ProposalCall, error) {
	return b.selfCall(wallet, "removeOwner", owner)
}

// ChangeThreshold encodes a changeThreshold self-call.
func (b *ProposalBuilder) ChangeThreshold(wallet common.Address, threshold uint64) (*ProposalCall, error) {
	if threshold == 0 {
		return nil, validationErrorf("threshold must be at least 1")
	}
	return b.selfCall(wallet, "changeThreshold", new(big.Int).SetUint64(threshold))
}

// EnableModule encodes an enableModule self-call.
func (b *ProposalBuilder) EnableModule(wallet, module common.Address) (*ProposalCall, error) {
	if module == (common.Address{}) || module == SentinelModule {
		return nil, validationErrorf("invalid module address %s", module.Hex())
	}
	return b.selfCall(wallet, "enableModule", module)
}

// DisableModule encodes a disableModule self-call. The contract keeps
// modules in a sentinel-headed linked list, so disabling needs the
// predecessor of the target; it is resolved from the current on-chain
// list at build time and baked into the calldata. If modules change
// while the proposal is pending, execution re-checks the predecessor
// and the proposal must be rebuilt.
func (b *ProposalBuilder) DisableModule(ctx context.Context, wallet, module common.Address) (*ProposalCall, error) {
	prev, err := b.ModulePredecessor(ctx, wallet, module)
	if err != nil {
		return nil, err
	}
	return b.selfCall(wallet, "disableModule", prev, module)
}

// ModulePredecessor resolves the linked-list predecessor of module in
// the wallet's current enabled set. The first module's predecessor is
// the sentinel.
func (b *ProposalBuilder) ModulePredecessor(ctx context.Context, wallet, module common.Address) (common.Address, error) {
	modules, err := b.chain.GetModules(ctx, wallet)
	if err != nil {
		return common.Address{}, err
	}
	prev := SentinelModule
	for _, m := range modules {
		if m == module {
			return prev, nil
		}
		prev = m
	}
	return common.Address{}, preconditionErrorf("module %s is not enabled on wallet %s", module.Hex(), wallet.Hex())
}

// SetDailyLimit encodes a wallet-originated call to the spending-limit
// module. The module reads msg.sender as the wallet, so the proposal
// target is the module and the calldata carries only the limit.
func (b *ProposalBuilder) SetDailyLimit(module common.Address, limit *big.Int) (*ProposalCall, error) {
	if limit == nil || limit.Sign() < 0 {
		return nil, validationErrorf("daily limit must be a non-negative amount")
	}
	data, err := dailyLimitABI.Pack("setDailyLimit", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to pack setDailyLimit: %w", err)
	}
	return &ProposalCall{To: module, Value: new(big.Int), Data: data}, nil
}

// AddToWhitelist encodes a wallet-originated whitelist insertion.
func (b *ProposalBuilder) AddToWhitelist(module, addr common.Address) (*ProposalCall, error) {
	if addr == (common.Address{}) {
		return nil, validationErrorf("cannot whitelist the zero address")
	}
	data, err := whitelistABI.Pack("addToWhitelist", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to pack addToWhitelist: %w", err)
	}
	return &ProposalCall{To: module, Value: new(big.Int), Data: data}, nil
}

// RemoveFromWhitelist encodes a wallet-originated whitelist removal.
func (b *ProposalBuilder) RemoveFromWhitelist(module, addr common.Address) (*ProposalCall, error) {
	data, err := whitelistABI.Pack("removeFromWhitelist", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to pack removeFromWhitelist: %w", err)
	}
	return &ProposalCall{To: module, Value: new(big.Int), Data: data}, nil
}

// SetupRecovery encodes a wallet-originated guardian configuration on
// the recovery module.
func (b *ProposalBuilder) SetupRecovery(module common.Address, guardians []common.Address, guardianThreshold uint64, delay time.Duration) (*ProposalCall, error) {
	if len(guardians) == 0 {
		return nil, validationErrorf("at least one guardian is required")
	}
	if guardianThreshold == 0 || guardianThreshold > uint64(len(guardians)) {
		return nil, validationErrorf("guardian threshold %d is out of range for %d guardians", guardianThreshold, len(guardians))
	}
	seen := make(map[common.Address]bool, len(guardians))
	for _, guardian := range guardians {
		if guardian == (common.Address{}) {
			return nil, validationErrorf("guardian cannot be the zero address")
		}
		if seen[guardian] {
			return nil, validationErrorf("duplicate guardian %s", guardian.Hex())
		}
		seen[guardian] = true
	}
	if delay < 0 {
		return nil, validationErrorf("recovery delay cannot be negative")
	}
	data, err := recoveryABI.Pack("setupRecovery",
		guardians,
		new(big.Int).SetUint64(guardianThreshold),
		new(big.Int).SetInt64(int64(delay.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack setupRecovery: %w", err)
	}
	return &ProposalCall{To: module, Value: new(big.Int), Data: data}, nil
}

func (b *ProposalBuilder) selfCall(wallet common.Address, method string, args ...interface{}) (*ProposalCall, error) {
	data, err := walletABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return &ProposalCall{To: wallet, Value: new(big.Int), Data: data, SelfCall: true}, nil
}
