package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

type staticStrategy struct {
	addr common.Address
}

func (s staticStrategy) Sign(digest []byte) ([]byte, error) { return make([]byte, 65), nil }
func (s staticStrategy) Address() common.Address            { return s.addr }
func (s staticStrategy) Name() string                       { return "Static" }

type fakeLifecycleChain struct {
	owners    []string
	threshold uint64
	modules   []common.Address
	txs       map[string]*models.Transaction

	proposeHash    common.Hash
	proposeErr     error
	writeErr       error
	approvalActive bool
	approvalErr    error

	lastSkipSim   bool
	lastProposeTo common.Address
	writes        []string
}

func (f *fakeLifecycleChain) GetOwners(ctx context.Context, wallet common.Address) ([]string, error) {
	return f.owners, nil
}

func (f *fakeLifecycleChain) GetThreshold(ctx context.Context, wallet common.Address) (uint64, error) {
	return f.threshold, nil
}

func (f *fakeLifecycleChain) IsOwner(ctx context.Context, wallet, addr common.Address) (bool, error) {
	for _, owner := range f.owners {
		if utils.SameAddress(owner, addr.Hex()) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLifecycleChain) GetModules(ctx context.Context, wallet common.Address) ([]common.Address, error) {
	return f.modules, nil
}

func (f *fakeLifecycleChain) GetTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) (*models.Transaction, error) {
	tx, ok := f.txs[strings.ToLower(txHash.Hex())]
	if !ok {
		return nil, preconditionErrorf("transaction %s does not exist", txHash.Hex())
	}
	return tx, nil
}

func (f *fakeLifecycleChain) GetApproval(ctx context.Context, wallet common.Address, txHash common.Hash, owner common.Address) (bool, error) {
	return f.approvalActive, f.approvalErr
}

func (f *fakeLifecycleChain) ProposeTransaction(ctx context.Context, wallet, to common.Address, value *big.Int, data []byte, skipSimulation bool) (common.Hash, error) {
	f.writes = append(f.writes, "propose")
	f.lastSkipSim = skipSimulation
	f.lastProposeTo = to
	return f.proposeHash, f.proposeErr
}

func (f *fakeLifecycleChain) ApproveTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	f.writes = append(f.writes, "approve")
	return f.writeErr
}

func (f *fakeLifecycleChain) RevokeApproval(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	f.writes = append(f.writes, "revoke")
	return f.writeErr
}

func (f *fakeLifecycleChain) CancelTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	f.writes = append(f.writes, "cancel")
	return f.writeErr
}

func (f *fakeLifecycleChain) ExecuteTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	f.writes = append(f.writes, "execute")
	return f.writeErr
}

func (f *fakeLifecycleChain) ApproveAndExecute(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	f.writes = append(f.writes, "approveAndExecute")
	return f.writeErr
}

type fakeCandidateSource struct {
	pending []*models.Transaction
	err     error

	history    []*models.Transaction
	historyErr error
	lastLimit  int
}

func (f *fakeCandidateSource) ListPending(ctx context.Context, wallet string) ([]*models.Transaction, error) {
	return f.pending, f.err
}

func (f *fakeCandidateSource) TransactionHistory(ctx context.Context, wallet string, page, limit int) ([]*models.Transaction, int64, error) {
	f.lastLimit = limit
	return f.history, int64(len(f.history)), f.historyErr
}

type fakeInvalidator struct {
	wallets []string
}

func (f *fakeInvalidator) Invalidate(wallet string) {
	f.wallets = append(f.wallets, wallet)
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) PublishLifecycleEvent(eventType, wallet, txHash string) {
	f.events = append(f.events, eventType)
}

var (
	lcWallet   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	lcOwnerA   = common.HexToAddress("0x5555555555555555555555555555555555555555")
	lcOwnerB   = common.HexToAddress("0x6666666666666666666666666666666666666666")
	lcOutsider = common.HexToAddress("0x7777777777777777777777777777777777777777")
	lcDest     = common.HexToAddress("0x8888888888888888888888888888888888888888")
	lcModuleA  = common.HexToAddress("0x9999111111111111111111111111111111111111")
	lcModuleB  = common.HexToAddress("0x9999222222222222222222222222222222222222")

	lcHash = common.HexToHash("0x" + strings.Repeat("ab", 32))
)

type lifecycleFixture struct {
	chain       *fakeLifecycleChain
	pending     *fakeCandidateSource
	invalidator *fakeInvalidator
	publisher   *fakePublisher
	session     *Session
	lifecycle   *TransactionLifecycle
}

func newLifecycleFixture(caller common.Address) *lifecycleFixture {
	chain := &fakeLifecycleChain{
		owners:      []string{lcOwnerA.Hex(), lcOwnerB.Hex()},
		threshold:   2,
		proposeHash: lcHash,
		txs:         map[string]*models.Transaction{},
	}
	pending := &fakeCandidateSource{}
	invalidator := &fakeInvalidator{}
	publisher := &fakePublisher{}
	session := NewSession()
	session.SetSigner(staticStrategy{addr: caller})

	lifecycle := NewTransactionLifecycle(
		chain, pending, NewProposalBuilder(chain), session,
		invalidator, publisher, quietLogger(),
	)
	return &lifecycleFixture{
		chain:       chain,
		pending:     pending,
		invalidator: invalidator,
		publisher:   publisher,
		session:     session,
		lifecycle:   lifecycle,
	}
}

func (fx *lifecycleFixture) addTx(tx *models.Transaction) {
	fx.chain.txs[strings.ToLower(tx.Hash)] = tx
}

func pendingTx(hash string, approvals uint64) *models.Transaction {
	return &models.Transaction{
		Hash:         hash,
		Wallet:       lcWallet.Hex(),
		To:           lcDest.Hex(),
		Value:        big.NewInt(1000),
		Data:         "0x",
		Proposer:     lcOwnerA.Hex(),
		NumApprovals: approvals,
		Threshold:    2,
		Approvals:    map[string]bool{},
	}
}

// ===== Propose =====

func TestProposeHappyPath(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	hash, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	require.NoError(t, err)
	assert.Equal(t, lcHash.Hex(), hash)
	assert.False(t, fx.chain.lastSkipSim, "external transfers are pre-simulated")
	assert.Equal(t, []string{lcWallet.Hex()}, fx.invalidator.wallets)
	assert.Equal(t, []string{"transaction.proposed"}, fx.publisher.events)
}

func TestProposeSelfCallSkipsSimulation(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcWallet.Hex(), nil, "0x")
	require.NoError(t, err)
	assert.True(t, fx.chain.lastSkipSim)
}

func TestProposeRejectsNonOwner(t *testing.T) {
	fx := newLifecycleFixture(lcOutsider)

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1), "0x")
	var pcErr *PreconditionError
	require.ErrorAs(t, err, &pcErr)
	assert.Contains(t, err.Error(), "not an owner")
	assert.Empty(t, fx.chain.writes)
}

func TestProposeValidation(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	ctx := context.Background()

	var valErr *ValidationError
	_, err := fx.lifecycle.Propose(ctx, "nope", lcDest.Hex(), big.NewInt(1), "0x")
	assert.ErrorAs(t, err, &valErr)

	_, err = fx.lifecycle.Propose(ctx, lcWallet.Hex(), "nope", big.NewInt(1), "0x")
	assert.ErrorAs(t, err, &valErr)

	_, err = fx.lifecycle.Propose(ctx, lcWallet.Hex(), lcDest.Hex(), big.NewInt(-5), "0x")
	assert.ErrorAs(t, err, &valErr)

	_, err = fx.lifecycle.Propose(ctx, lcWallet.Hex(), lcDest.Hex(), big.NewInt(1), "0xabc")
	assert.ErrorAs(t, err, &valErr)

	assert.Empty(t, fx.chain.writes)
}

func TestProposeRejectsDuplicatePending(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	existing := pendingTx(lcHash.Hex(), 1)
	fx.addTx(existing)
	fx.pending.pending = []*models.Transaction{existing}

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	var dupErr *DuplicateProposalError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, lcHash.Hex(), dupErr.ExistingHash)
	assert.Equal(t, uint64(1), dupErr.NumApprovals)
	assert.Empty(t, fx.chain.writes)
}

func TestProposeCancelledTwinDoesNotBlock(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	// The cache still lists the twin as pending, but the chain says it
	// was cancelled. The chain wins; the new proposal goes through.
	twin := pendingTx(lcHash.Hex(), 1)
	fx.pending.pending = []*models.Transaction{twin}
	cancelled := pendingTx(lcHash.Hex(), 1)
	cancelled.Cancelled = true
	fx.addTx(cancelled)

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	require.NoError(t, err)
	assert.Equal(t, []string{"propose"}, fx.chain.writes)
}

func TestProposeStaleCandidateMissingFromChainDoesNotBlock(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	// Candidate only exists in the cache; the chain re-read fails, so
	// it cannot block the proposal.
	fx.pending.pending = []*models.Transaction{pendingTx(lcHash.Hex(), 1)}

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	require.NoError(t, err)
}

func TestProposeDifferentTripleDoesNotBlock(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	existing := pendingTx(lcHash.Hex(), 1)
	fx.addTx(existing)
	fx.pending.pending = []*models.Transaction{existing}

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(999), "0x")
	require.NoError(t, err)
}

func TestProposeProceedsWhenPendingScanFails(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.pending.err = errors.New("indexer down")

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	require.NoError(t, err)
}

func TestProposeSecondDisableModuleRejected(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.chain.modules = []common.Address{lcModuleA, lcModuleB}

	// A disable of the list head is already pending; disabling a
	// different module must wait until it resolves, because executing
	// either one invalidates the predecessor baked into the other.
	existing := governanceTx(t, "disableModule", SentinelModule, lcModuleA)
	existing.NumApprovals = 1
	fx.addTx(existing)
	fx.pending.pending = []*models.Transaction{existing}

	call, err := NewProposalBuilder(fx.chain).DisableModule(context.Background(), lcWallet, lcModuleB)
	require.NoError(t, err)

	_, err = fx.lifecycle.ProposeGovernance(context.Background(), lcWallet.Hex(), call)
	var pcErr *PreconditionError
	require.ErrorAs(t, err, &pcErr)
	assert.Contains(t, err.Error(), lcModuleA.Hex())
	assert.Contains(t, err.Error(), existing.Hash)
	assert.Empty(t, fx.chain.writes)
}

func TestProposeDisableModuleAfterFirstResolves(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.chain.modules = []common.Address{lcModuleA, lcModuleB}

	// The cache still lists the earlier disable as pending, but the
	// chain says it executed; a resolved disable no longer conflicts.
	resolved := governanceTx(t, "disableModule", SentinelModule, lcModuleA)
	resolved.Executed = true
	fx.addTx(resolved)
	fx.pending.pending = []*models.Transaction{governanceTx(t, "disableModule", SentinelModule, lcModuleA)}

	call, err := NewProposalBuilder(fx.chain).DisableModule(context.Background(), lcWallet, lcModuleB)
	require.NoError(t, err)

	_, err = fx.lifecycle.ProposeGovernance(context.Background(), lcWallet.Hex(), call)
	require.NoError(t, err)
	assert.Equal(t, []string{"propose"}, fx.chain.writes)
}

func TestProposeCancelledTwinSkipsSimulation(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	twin := pendingTx(lcHash.Hex(), 1)
	twin.Cancelled = true
	fx.addTx(twin)
	fx.pending.history = []*models.Transaction{twin}

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	require.NoError(t, err)
	assert.True(t, fx.chain.lastSkipSim, "re-proposal of a cancelled action is not re-simulated")
	assert.Equal(t, cancelledTwinScanLimit, fx.pending.lastLimit)
}

func TestProposeCancelledTwinRequiresChainConfirmation(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)

	// The cache claims the twin was cancelled but the chain has no such
	// transaction; an unconfirmed twin must not disable simulation.
	twin := pendingTx(lcHash.Hex(), 1)
	twin.Cancelled = true
	fx.pending.history = []*models.Transaction{twin}

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	require.NoError(t, err)
	assert.False(t, fx.chain.lastSkipSim)
}

func TestProposeProceedsWhenHistoryScanFails(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.pending.historyErr = errors.New("indexer down")

	_, err := fx.lifecycle.Propose(context.Background(), lcWallet.Hex(), lcDest.Hex(), big.NewInt(1000), "0x")
	require.NoError(t, err)
	assert.False(t, fx.chain.lastSkipSim)
}

// ===== Terminal states =====

func TestWritesAgainstTerminalStatesRejected(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	ctx := context.Background()

	executed := pendingTx(lcHash.Hex(), 2)
	executed.Executed = true
	fx.addTx(executed)

	err := fx.lifecycle.Approve(ctx, lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already executed")

	cancelled := pendingTx(lcHash.Hex(), 2)
	cancelled.Cancelled = true
	fx.addTx(cancelled)

	err = fx.lifecycle.Cancel(ctx, lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already cancelled")

	err = fx.lifecycle.Execute(ctx, lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Empty(t, fx.chain.writes)
}

// ===== Approve / Revoke =====

func TestApproveRejectsDoubleApproval(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)

	tx := pendingTx(lcHash.Hex(), 1)
	tx.Approvals[lcOwnerB.Hex()] = true
	fx.addTx(tx)

	err := fx.lifecycle.Approve(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already approved")
}

func TestApprovePublishesEvent(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	fx.addTx(pendingTx(lcHash.Hex(), 1))

	err := fx.lifecycle.Approve(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"approve"}, fx.chain.writes)
	assert.Equal(t, []string{"transaction.approved"}, fx.publisher.events)
}

func TestRevokeRequiresActiveApproval(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	fx.addTx(pendingTx(lcHash.Hex(), 1))

	err := fx.lifecycle.Revoke(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active approval")
}

func TestRevokeReadsBackApproval(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	tx := pendingTx(lcHash.Hex(), 2)
	tx.Approvals[lcOwnerB.Hex()] = true
	fx.addTx(tx)
	fx.chain.approvalActive = false

	err := fx.lifecycle.Revoke(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"transaction.approval_revoked"}, fx.publisher.events)
}

func TestRevokePostConditionFailure(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	tx := pendingTx(lcHash.Hex(), 2)
	tx.Approvals[lcOwnerB.Hex()] = true
	fx.addTx(tx)
	// The revocation write mined, yet the approval reads back active.
	fx.chain.approvalActive = true

	err := fx.lifecycle.Revoke(context.Background(), lcWallet.Hex(), lcHash.Hex())
	var postErr *PostConditionError
	require.ErrorAs(t, err, &postErr)
	assert.Empty(t, fx.publisher.events, "no event for a failed post-condition")
}

// ===== Cancel =====

func TestProposerCancelsBelowQuorum(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.addTx(pendingTx(lcHash.Hex(), 0))

	err := fx.lifecycle.Cancel(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel"}, fx.chain.writes)
}

func TestNonProposerCannotCancelBelowQuorum(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	fx.addTx(pendingTx(lcHash.Hex(), 1))

	err := fx.lifecycle.Cancel(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only the proposer")
}

func TestNonProposerCancelsAtQuorum(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	fx.addTx(pendingTx(lcHash.Hex(), 2))

	err := fx.lifecycle.Cancel(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
}

// ===== Execute =====

func TestExecuteBelowQuorum(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.addTx(pendingTx(lcHash.Hex(), 1))

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 required approvals")
	assert.Empty(t, fx.chain.writes)
}

func TestExecuteUsesFreshThreshold(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	// The stored snapshot says quorum was reached, but the threshold
	// has since been raised. The fresh read governs.
	tx := pendingTx(lcHash.Hex(), 2)
	fx.addTx(tx)
	fx.chain.threshold = 3

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 required approvals")
}

func governanceTx(t *testing.T, method string, args ...interface{}) *models.Transaction {
	t.Helper()
	data, err := walletABI.Pack(method, args...)
	require.NoError(t, err)
	tx := pendingTx(lcHash.Hex(), 2)
	tx.To = lcWallet.Hex()
	tx.Value = new(big.Int)
	tx.Data = "0x" + common.Bytes2Hex(data)
	return tx
}

func TestExecuteRemoveOwnerTargetGone(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.addTx(governanceTx(t, "removeOwner", lcOutsider))

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer an owner")
}

func TestExecuteRemoveOwnerWouldBreakThreshold(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.addTx(governanceTx(t, "removeOwner", lcOwnerB))

	// Two owners, threshold two: removing one leaves the wallet unable
	// to reach quorum ever again.
	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below the threshold")
}

func TestExecuteRemoveOwnerStillValid(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.chain.owners = []string{lcOwnerA.Hex(), lcOwnerB.Hex(), lcOutsider.Hex()}
	fx.addTx(governanceTx(t, "removeOwner", lcOutsider))

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"execute"}, fx.chain.writes)
}

func TestExecuteChangeThresholdAboveOwnerCount(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.addTx(governanceTx(t, "changeThreshold", big.NewInt(3)))

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the current owner count")
}

func TestExecuteDisableModuleStalePredecessor(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.chain.modules = []common.Address{lcModuleA, lcModuleB}
	// Proposal was built when lcModuleB headed the list; lcModuleA has
	// been enabled in front of it since.
	fx.addTx(governanceTx(t, "disableModule", SentinelModule, lcModuleB))

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	var staleErr *StaleProposalError
	require.ErrorAs(t, err, &staleErr)
	assert.Equal(t, lcModuleB.Hex(), staleErr.Module)
	assert.Empty(t, fx.chain.writes)
}

func TestExecuteDisableModuleFreshPredecessor(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.chain.modules = []common.Address{lcModuleA, lcModuleB}
	fx.addTx(governanceTx(t, "disableModule", lcModuleA, lcModuleB))

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
}

func TestExecuteNonGovernanceSkipsRevalidation(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.addTx(pendingTx(lcHash.Hex(), 2))

	err := fx.lifecycle.Execute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"transaction.executed"}, fx.publisher.events)
}

// ===== ApproveAndExecute =====

func TestApproveAndExecuteCompletesQuorum(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	fx.addTx(pendingTx(lcHash.Hex(), 1))

	err := fx.lifecycle.ApproveAndExecute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, []string{"approveAndExecute"}, fx.chain.writes)
	assert.Equal(t, []string{"transaction.executed"}, fx.publisher.events)
}

func TestApproveAndExecuteShortOfQuorum(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerB)
	fx.chain.threshold = 3
	fx.addTx(pendingTx(lcHash.Hex(), 1))

	err := fx.lifecycle.ApproveAndExecute(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would reach 2 of 3")
}

func TestLifecycleRequiresSigner(t *testing.T) {
	fx := newLifecycleFixture(lcOwnerA)
	fx.session.SetSigner(nil)
	fx.addTx(pendingTx(lcHash.Hex(), 1))

	err := fx.lifecycle.Approve(context.Background(), lcWallet.Hex(), lcHash.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no signer attached")
}
