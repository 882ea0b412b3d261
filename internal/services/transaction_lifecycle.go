package services

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

// lifecycleChain is the authoritative read/write surface the lifecycle
// drives. Satisfied by ChainGateway.
type lifecycleChain interface {
	GetOwners(ctx context.Context, wallet common.Address) ([]string, error)
	GetThreshold(ctx context.Context, wallet common.Address) (uint64, error)
	IsOwner(ctx context.Context, wallet, addr common.Address) (bool, error)
	GetModules(ctx context.Context, wallet common.Address) ([]common.Address, error)
	GetTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) (*models.Transaction, error)
	GetApproval(ctx context.Context, wallet common.Address, txHash common.Hash, owner common.Address) (bool, error)
	ProposeTransaction(ctx context.Context, wallet, to common.Address, value *big.Int, data []byte, skipSimulation bool) (common.Hash, error)
	ApproveTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error
	RevokeApproval(ctx context.Context, wallet common.Address, txHash common.Hash) error
	CancelTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error
	ExecuteTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error
	ApproveAndExecute(ctx context.Context, wallet common.Address, txHash common.Hash) error
}

// candidateSource supplies cached transactions for propose-time
// screening. Candidates may come from the indexer and be stale; any
// candidate that would change the outcome is re-read from chain first.
type candidateSource interface {
	ListPending(ctx context.Context, wallet string) ([]*models.Transaction, error)
	TransactionHistory(ctx context.Context, wallet string, page, limit int) ([]*models.Transaction, int64, error)
}

// cancelledTwinScanLimit bounds the history scan for a cancelled twin
// to one recent page. A twin cancelled further back than this simply
// gets re-simulated, which is harmless.
const cancelledTwinScanLimit = 50

// cacheInvalidator drops cached state for a wallet after a write.
type cacheInvalidator interface {
	Invalidate(wallet string)
}

// EventPublisher emits lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishLifecycleEvent(eventType, wallet, txHash string)
}

// TransactionLifecycle drives proposals through their pending,
// executed and cancelled states. Pending is the only mutable state;
// executed and cancelled are terminal and never overwritten. All
// state checks run against the chain immediately before each write,
// and the chain's own guards remain the final arbiter.
type TransactionLifecycle struct {
	chain       lifecycleChain
	candidates  candidateSource
	builder     *ProposalBuilder
	session     *Session
	invalidator cacheInvalidator
	publisher   EventPublisher
	logger      *logrus.Logger
}

func NewTransactionLifecycle(
	chain lifecycleChain,
	candidates candidateSource,
	builder *ProposalBuilder,
	session *Session,
	invalidator cacheInvalidator,
	publisher EventPublisher,
	logger *logrus.Logger,
) *TransactionLifecycle {
	return &TransactionLifecycle{
		chain:       chain,
		candidates:  candidates,
		builder:     builder,
		session:     session,
		invalidator: invalidator,
		publisher:   publisher,
		logger:      logger,
	}
}

// ===== Propose =====

// Propose validates and submits a new transaction proposal, returning
// the canonical proposal hash from the mined event log.
//
// An identical (to, value, data) triple that is still pending blocks
// the new proposal; the rejection carries the existing hash and its
// approval count so the caller can approve that one instead. A
// disableModule proposal is additionally blocked while any other
// disableModule proposal is pending. Executed and cancelled twins
// never block: the wallet nonce is part of the proposal hash, so
// re-proposing a cancelled action yields a fresh hash and a clean
// approval set.
//
// Self-calls (to == wallet) skip gas pre-simulation. Governance
// methods require quorum to succeed, so simulating them from a single
// proposer would reject every valid governance proposal. Re-proposing
// a cancelled twin also skips simulation: the original already passed
// it, and interim state may make a single-signer simulation revert
// spuriously.
func (l *TransactionLifecycle) Propose(ctx context.Context, wallet string, to string, value *big.Int, dataHex string) (string, error) {
	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return "", validationErrorf("invalid wallet address: %s", wallet)
	}
	toAddr, err := utils.ParseAddress(to)
	if err != nil {
		return "", validationErrorf("invalid destination address: %s", to)
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return "", validationErrorf("transfer value cannot be negative")
	}
	data, err := parseCalldata(dataHex)
	if err != nil {
		return "", err
	}

	if err := l.requireOwner(ctx, walletAddr); err != nil {
		return "", err
	}

	skipSim, err := l.screenProposal(ctx, walletAddr, toAddr, value, data)
	if err != nil {
		return "", err
	}

	selfCall := toAddr == walletAddr
	txHash, err := l.chain.ProposeTransaction(ctx, walletAddr, toAddr, value, data, selfCall || skipSim)
	if err != nil {
		return "", err
	}

	l.afterWrite(wallet, txHash.Hex(), "transaction.proposed")
	return txHash.Hex(), nil
}

// ProposeGovernance submits a pre-built governance call as a proposal.
func (l *TransactionLifecycle) ProposeGovernance(ctx context.Context, wallet string, call *ProposalCall) (string, error) {
	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return "", validationErrorf("invalid wallet address: %s", wallet)
	}

	if err := l.requireOwner(ctx, walletAddr); err != nil {
		return "", err
	}
	skipSim, err := l.screenProposal(ctx, walletAddr, call.To, call.Value, call.Data)
	if err != nil {
		return "", err
	}

	txHash, err := l.chain.ProposeTransaction(ctx, walletAddr, call.To, call.Value, call.Data, call.SelfCall || skipSim)
	if err != nil {
		return "", err
	}

	l.afterWrite(wallet, txHash.Hex(), "transaction.proposed")
	return txHash.Hex(), nil
}

// screenProposal runs the propose-time checks that need the wallet's
// recent transactions: an identical pending (to, value, data) triple
// blocks the proposal, a pending disableModule blocks any other
// disableModule, and a cancelled twin marks the proposal to skip gas
// pre-simulation. Candidates from the cache are confirmed against the
// chain before they change anything; a stale cache row must never
// reject a valid proposal.
func (l *TransactionLifecycle) screenProposal(ctx context.Context, wallet, to common.Address, value *big.Int, data []byte) (bool, error) {
	candidates, err := l.candidates.ListPending(ctx, wallet.Hex())
	if err != nil {
		l.logger.WithError(err).WithField("wallet", wallet.Hex()).
			Warn("pending scan failed, proposing without duplicate check")
		return false, nil
	}

	dataHex := "0x" + strings.TrimPrefix(strings.ToLower(common.Bytes2Hex(data)), "0x")
	for _, candidate := range candidates {
		if !matchesCall(candidate, to, value, dataHex) {
			continue
		}
		confirmed := l.confirmStatus(ctx, wallet, candidate, models.TxStatusPending)
		if confirmed == nil {
			continue
		}
		return false, &DuplicateProposalError{
			ExistingHash: confirmed.Hash,
			NumApprovals: confirmed.NumApprovals,
		}
	}

	if _, ok := decodeDisableModule(data); ok && to == wallet {
		if err := l.rejectPendingDisable(ctx, wallet, candidates); err != nil {
			return false, err
		}
	}

	return l.hasCancelledTwin(ctx, wallet, to, value, dataHex), nil
}

// rejectPendingDisable enforces that at most one disableModule
// proposal is pending per wallet. Disable calldata bakes in the
// predecessor pointer of the enabled-module linked list, so two
// pending disables invalidate each other the moment either executes;
// the second is rejected up front naming the one already pending.
func (l *TransactionLifecycle) rejectPendingDisable(ctx context.Context, wallet common.Address, candidates []*models.Transaction) error {
	for _, candidate := range candidates {
		if !utils.SameAddress(candidate.To, wallet.Hex()) {
			continue
		}
		pendingModule, ok := decodeDisableModule(common.FromHex(candidate.Data))
		if !ok {
			continue
		}
		confirmed := l.confirmStatus(ctx, wallet, candidate, models.TxStatusPending)
		if confirmed == nil {
			continue
		}
		return preconditionErrorf(
			"cannot propose: a disable of module %s is already pending (hash %s); resolve it before disabling another module",
			pendingModule.Hex(), confirmed.Hash)
	}
	return nil
}

// hasCancelledTwin scans recent history for a cancelled transaction
// with the same triple, confirming any hit on chain.
func (l *TransactionLifecycle) hasCancelledTwin(ctx context.Context, wallet, to common.Address, value *big.Int, dataHex string) bool {
	recent, _, err := l.candidates.TransactionHistory(ctx, wallet.Hex(), 1, cancelledTwinScanLimit)
	if err != nil {
		l.logger.WithError(err).WithField("wallet", wallet.Hex()).
			Debug("history scan failed, proposing without cancelled-twin check")
		return false
	}
	for _, candidate := range recent {
		if candidate.Status() != models.TxStatusCancelled {
			continue
		}
		if !matchesCall(candidate, to, value, dataHex) {
			continue
		}
		if l.confirmStatus(ctx, wallet, candidate, models.TxStatusCancelled) != nil {
			return true
		}
	}
	return false
}

// matchesCall reports whether a cached transaction carries the same
// (to, value, data) triple as the incoming proposal.
func matchesCall(candidate *models.Transaction, to common.Address, value *big.Int, dataHex string) bool {
	if !utils.SameAddress(candidate.To, to.Hex()) {
		return false
	}
	if candidate.Value == nil || candidate.Value.Cmp(value) != 0 {
		return false
	}
	return strings.EqualFold(candidate.Data, dataHex)
}

// confirmStatus re-reads a cached candidate from chain and returns the
// confirmed transaction only if it is in the wanted state.
func (l *TransactionLifecycle) confirmStatus(ctx context.Context, wallet common.Address, candidate *models.Transaction, want models.TxStatus) *models.Transaction {
	hash, err := utils.ParseHash(candidate.Hash)
	if err != nil {
		return nil
	}
	confirmed, err := l.chain.GetTransaction(ctx, wallet, hash)
	if err != nil {
		return nil
	}
	if confirmed.Status() != want {
		return nil
	}
	return confirmed
}

// decodeDisableModule reports whether calldata is a disableModule call
// and returns its module argument.
func decodeDisableModule(data []byte) (common.Address, bool) {
	if len(data) < 4 {
		return common.Address{}, false
	}
	method, err := walletABI.MethodById(data[:4])
	if err != nil || method.Name != "disableModule" {
		return common.Address{}, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return common.Address{}, false
	}
	module, ok := args[1].(common.Address)
	return module, ok
}

// ===== Approve / Revoke =====

// Approve records the caller's approval on a pending transaction.
func (l *TransactionLifecycle) Approve(ctx context.Context, wallet, txHash string) error {
	walletAddr, hash, tx, err := l.loadPending(ctx, wallet, txHash, "approve")
	if err != nil {
		return err
	}

	caller, err := l.session.CallerAddress()
	if err != nil {
		return err
	}
	if err := l.requireOwner(ctx, walletAddr); err != nil {
		return err
	}
	if tx.Approvals[caller.Hex()] {
		return preconditionErrorf("cannot approve: already approved by %s", caller.Hex())
	}

	if err := l.chain.ApproveTransaction(ctx, walletAddr, hash); err != nil {
		return err
	}
	l.afterWrite(wallet, txHash, "transaction.approved")
	return nil
}

// Revoke withdraws the caller's active approval. After the write is
// mined the approval is read back from chain; a still-active approval
// at that point is reported as a post-condition failure rather than
// silently trusted.
func (l *TransactionLifecycle) Revoke(ctx context.Context, wallet, txHash string) error {
	walletAddr, hash, tx, err := l.loadPending(ctx, wallet, txHash, "revoke approval on")
	if err != nil {
		return err
	}

	caller, err := l.session.CallerAddress()
	if err != nil {
		return err
	}
	if !tx.Approvals[caller.Hex()] {
		return preconditionErrorf("cannot revoke: no active approval by %s", caller.Hex())
	}

	if err := l.chain.RevokeApproval(ctx, walletAddr, hash); err != nil {
		return err
	}

	active, err := l.chain.GetApproval(ctx, walletAddr, hash, caller)
	if err != nil {
		return transportError("revocation mined but confirmation read failed", err)
	}
	if active {
		return &PostConditionError{Msg: "revocation mined but approval still active on chain"}
	}

	l.afterWrite(wallet, txHash, "transaction.approval_revoked")
	return nil
}

// ===== Cancel =====

// Cancel moves a pending transaction to its terminal cancelled state.
// The proposer may cancel unconditionally; any other owner may cancel
// only once the transaction has reached quorum.
func (l *TransactionLifecycle) Cancel(ctx context.Context, wallet, txHash string) error {
	walletAddr, hash, tx, err := l.loadPending(ctx, wallet, txHash, "cancel")
	if err != nil {
		return err
	}

	caller, err := l.session.CallerAddress()
	if err != nil {
		return err
	}
	if !utils.SameAddress(caller.Hex(), tx.Proposer) {
		if err := l.requireOwner(ctx, walletAddr); err != nil {
			return err
		}
		if tx.NumApprovals < tx.Threshold {
			return preconditionErrorf(
				"cannot cancel: only the proposer may cancel below quorum (%d of %d approvals)",
				tx.NumApprovals, tx.Threshold)
		}
	}

	if err := l.chain.CancelTransaction(ctx, walletAddr, hash); err != nil {
		return err
	}
	l.afterWrite(wallet, txHash, "transaction.cancelled")
	return nil
}

// ===== Execute =====

// Execute runs a pending transaction that has reached quorum.
// Governance self-calls are re-validated against current wallet state
// immediately before the write: membership and module topology may
// have changed since the proposal was built, and a proposal that can
// no longer apply cleanly must fail here with a reason, not on chain
// with a generic revert.
func (l *TransactionLifecycle) Execute(ctx context.Context, wallet, txHash string) error {
	walletAddr, hash, tx, err := l.loadPending(ctx, wallet, txHash, "execute")
	if err != nil {
		return err
	}

	threshold, err := l.chain.GetThreshold(ctx, walletAddr)
	if err != nil {
		return err
	}
	if tx.NumApprovals < threshold {
		return preconditionErrorf("cannot execute: %d of %d required approvals", tx.NumApprovals, threshold)
	}

	if err := l.revalidateGovernance(ctx, walletAddr, tx); err != nil {
		return err
	}

	if err := l.chain.ExecuteTransaction(ctx, walletAddr, hash); err != nil {
		return err
	}
	l.afterWrite(wallet, txHash, "transaction.executed")
	return nil
}

// ApproveAndExecute approves and executes in one on-chain write, for
// the final approver whose approval completes quorum.
func (l *TransactionLifecycle) ApproveAndExecute(ctx context.Context, wallet, txHash string) error {
	walletAddr, hash, tx, err := l.loadPending(ctx, wallet, txHash, "approve and execute")
	if err != nil {
		return err
	}

	caller, err := l.session.CallerAddress()
	if err != nil {
		return err
	}
	if err := l.requireOwner(ctx, walletAddr); err != nil {
		return err
	}
	if tx.Approvals[caller.Hex()] {
		return preconditionErrorf("cannot approve: already approved by %s", caller.Hex())
	}

	threshold, err := l.chain.GetThreshold(ctx, walletAddr)
	if err != nil {
		return err
	}
	if tx.NumApprovals+1 < threshold {
		return preconditionErrorf(
			"cannot execute: approval would reach %d of %d required approvals",
			tx.NumApprovals+1, threshold)
	}

	if err := l.revalidateGovernance(ctx, walletAddr, tx); err != nil {
		return err
	}

	if err := l.chain.ApproveAndExecute(ctx, walletAddr, hash); err != nil {
		return err
	}
	l.afterWrite(wallet, txHash, "transaction.executed")
	return nil
}

// revalidateGovernance re-checks governance self-calls against the
// wallet's current state. Non-governance transactions pass through.
func (l *TransactionLifecycle) revalidateGovernance(ctx context.Context, wallet common.Address, tx *models.Transaction) error {
	if !utils.SameAddress(tx.To, wallet.Hex()) {
		return nil
	}
	data := common.FromHex(tx.Data)
	if len(data) < 4 {
		return nil
	}
	method, err := walletABI.MethodById(data[:4])
	if err != nil {
		// Self-call with unknown calldata; let the contract decide.
		return nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil
	}

	switch method.Name {
	case "removeOwner":
		owners, err := l.chain.GetOwners(ctx, wallet)
		if err != nil {
			return err
		}
		threshold, err := l.chain.GetThreshold(ctx, wallet)
		if err != nil {
			return err
		}
		target, _ := args[0].(common.Address)
		found := false
		for _, owner := range owners {
			if utils.SameAddress(owner, target.Hex()) {
				found = true
				break
			}
		}
		if !found {
			return preconditionErrorf("cannot execute: %s is no longer an owner", target.Hex())
		}
		if uint64(len(owners))-1 < threshold {
			return preconditionErrorf(
				"cannot execute: removing an owner would leave %d owners below the threshold of %d",
				len(owners)-1, threshold)
		}

	case "changeThreshold":
		owners, err := l.chain.GetOwners(ctx, wallet)
		if err != nil {
			return err
		}
		newThreshold, _ := args[0].(*big.Int)
		if newThreshold != nil && newThreshold.Cmp(big.NewInt(int64(len(owners)))) > 0 {
			return preconditionErrorf(
				"cannot execute: threshold %s exceeds the current owner count of %d",
				newThreshold.String(), len(owners))
		}

	case "disableModule":
		bakedPrev, _ := args[0].(common.Address)
		module, _ := args[1].(common.Address)
		currentPrev, err := l.builder.ModulePredecessor(ctx, wallet, module)
		if err != nil {
			return err
		}
		if currentPrev != bakedPrev {
			return &StaleProposalError{
				Module: module.Hex(),
				Reason: "module list changed since the proposal was built",
			}
		}
	}
	return nil
}

// ===== shared =====

// loadPending reads a transaction from chain and requires it to be
// pending. Executed and cancelled are terminal; any write against a
// terminal transaction is rejected here with the terminal state named.
func (l *TransactionLifecycle) loadPending(ctx context.Context, wallet, txHash, op string) (common.Address, common.Hash, *models.Transaction, error) {
	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		return common.Address{}, common.Hash{}, nil, validationErrorf("invalid wallet address: %s", wallet)
	}
	hash, err := utils.ParseHash(txHash)
	if err != nil {
		return common.Address{}, common.Hash{}, nil, validationErrorf("invalid transaction hash: %s", txHash)
	}

	tx, err := l.chain.GetTransaction(ctx, walletAddr, hash)
	if err != nil {
		return common.Address{}, common.Hash{}, nil, err
	}
	switch tx.Status() {
	case models.TxStatusExecuted:
		return common.Address{}, common.Hash{}, nil, preconditionErrorf("cannot %s transaction %s: already executed", op, txHash)
	case models.TxStatusCancelled:
		return common.Address{}, common.Hash{}, nil, preconditionErrorf("cannot %s transaction %s: already cancelled", op, txHash)
	}
	return walletAddr, hash, tx, nil
}

func (l *TransactionLifecycle) requireOwner(ctx context.Context, wallet common.Address) error {
	caller, err := l.session.CallerAddress()
	if err != nil {
		return err
	}
	isOwner, err := l.chain.IsOwner(ctx, wallet, caller)
	if err != nil {
		return err
	}
	if !isOwner {
		return preconditionErrorf("%s is not an owner of wallet %s", caller.Hex(), wallet.Hex())
	}
	return nil
}

// afterWrite invalidates cached wallet state and publishes the
// lifecycle event. Both are best-effort; the chain write already
// succeeded.
func (l *TransactionLifecycle) afterWrite(wallet, txHash, eventType string) {
	if l.invalidator != nil {
		l.invalidator.Invalidate(wallet)
	}
	if l.publisher != nil {
		l.publisher.PublishLifecycleEvent(eventType, wallet, txHash)
	}
}

func parseCalldata(dataHex string) ([]byte, error) {
	if dataHex == "" || dataHex == "0x" {
		return []byte{}, nil
	}
	if !utils.IsHexData(dataHex) {
		return nil, validationErrorf("calldata must be 0x-prefixed hex of even length")
	}
	return common.FromHex(dataHex), nil
}
