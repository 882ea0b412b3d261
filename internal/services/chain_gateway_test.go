package services

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisig-backend/internal/config"
)

type fakeEthBackend struct {
	callResults map[string][]byte
	callErr     error

	estimateGas   uint64
	estimateErr   error
	estimateCalls int

	nonce    uint64
	gasPrice *big.Int

	sentTxs []*types.Transaction
	sendErr error

	receipt    *types.Receipt
	receiptErr error

	blockNumber uint64
	filterErrs  []error
	filterLogs  []types.Log
	filterCalls []ethereum.FilterQuery
}

func (f *fakeEthBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	if len(msg.Data) >= 4 {
		if out, ok := f.callResults[hex.EncodeToString(msg.Data[:4])]; ok {
			return out, nil
		}
	}
	return nil, errors.New("no call result configured")
}

func (f *fakeEthBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimateCalls++
	return f.estimateGas, f.estimateErr
}

func (f *fakeEthBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeEthBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if f.gasPrice == nil {
		return big.NewInt(1_000_000_000), nil
	}
	return f.gasPrice, nil
}

func (f *fakeEthBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sentTxs = append(f.sentTxs, tx)
	return f.sendErr
}

func (f *fakeEthBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.receiptErr
}

func (f *fakeEthBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeEthBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.filterCalls = append(f.filterCalls, q)
	if len(f.filterErrs) > 0 {
		err := f.filterErrs[0]
		f.filterErrs = f.filterErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.filterLogs, nil
}

func (f *fakeEthBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return f.blockNumber, nil
}

func (f *fakeEthBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(31337), nil
}

// revertRPCError mimics a JSON-RPC error carrying ABI-encoded revert
// data, the shape geth-family nodes return.
type revertRPCError struct {
	msg  string
	data interface{}
}

func (e *revertRPCError) Error() string          { return e.msg }
func (e *revertRPCError) ErrorData() interface{} { return e.data }

func newGatewayFixture(t *testing.T, backend *fakeEthBackend) (*ChainGateway, *Session) {
	t.Helper()
	session := NewSession()
	strategy, err := NewPrivateKeySigningStrategy(testPrivKey)
	require.NoError(t, err)
	session.SetSigner(strategy)

	cfg := config.BlockchainConfig{
		ChainID:         31337,
		FactoryContract: "0xaaaa000000000000000000000000000000000001",
		LogRange:        10_000,
		LogRangeRetry:   1_000,
	}
	gw := NewChainGatewayWithBackend(backend, big.NewInt(31337), cfg, session, quietLogger())
	gw.receiptPollInterval = time.Millisecond
	return gw, session
}

func encodeOutputs(t *testing.T, parsed abi.ABI, method string, values ...interface{}) []byte {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func selectorOf(t *testing.T, parsed abi.ABI, method string) string {
	t.Helper()
	return hex.EncodeToString(parsed.Methods[method].ID)
}

func encodeErrorString(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	payload, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return "0x" + revertSelectorError + hex.EncodeToString(payload)
}

// ===== reads =====

func TestGetOwnersDecodesAddressArray(t *testing.T) {
	wallet := common.HexToAddress("0xbbbb000000000000000000000000000000000001")
	backend := &fakeEthBackend{callResults: map[string][]byte{
		selectorOf(t, walletABI, "getOwners"): encodeOutputs(t, walletABI, "getOwners", []common.Address{lcOwnerA, lcOwnerB}),
	}}
	gw, _ := newGatewayFixture(t, backend)

	owners, err := gw.GetOwners(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, []string{lcOwnerA.Hex(), lcOwnerB.Hex()}, owners)
}

func TestGetThresholdReadFailureIsTransportError(t *testing.T) {
	backend := &fakeEthBackend{callErr: errors.New("connection reset")}
	gw, _ := newGatewayFixture(t, backend)

	_, err := gw.GetThreshold(context.Background(), lcWallet)
	var transErr *TransportError
	require.ErrorAs(t, err, &transErr)
}

func TestDecodeTransactionTupleUnknownHash(t *testing.T) {
	// A zero proposer marks the slot as never written.
	values := []interface{}{
		common.Address{}, big.NewInt(0), []byte{}, common.Address{},
		big.NewInt(0), false, false, big.NewInt(0),
	}
	_, err := decodeTransactionTuple(lcWallet, lcHash, values)
	var pcErr *PreconditionError
	require.ErrorAs(t, err, &pcErr)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestDecodeTransactionTupleRoundTrip(t *testing.T) {
	values := []interface{}{
		lcDest, big.NewInt(1234), []byte{0xde, 0xad}, lcOwnerA,
		big.NewInt(2), true, false, big.NewInt(1_700_000_000),
	}
	tx, err := decodeTransactionTuple(lcWallet, lcHash, values)
	require.NoError(t, err)
	assert.Equal(t, lcDest.Hex(), tx.To)
	assert.Equal(t, "0xdead", tx.Data)
	assert.Equal(t, uint64(2), tx.NumApprovals)
	assert.True(t, tx.Executed)
	assert.Equal(t, int64(1_700_000_000), tx.Timestamp.Unix())
}

func TestDecodeTransactionTupleBadArity(t *testing.T) {
	_, err := decodeTransactionTuple(lcWallet, lcHash, []interface{}{lcDest})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arity")
}

// ===== submit =====

func successReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.HexToHash("0x" + "11" + "00" + "22"),
		BlockNumber: big.NewInt(77),
		Logs:        logs,
	}
}

func TestSubmitSignsWithSessionKey(t *testing.T) {
	backend := &fakeEthBackend{
		estimateGas: 50_000,
		nonce:       7,
		receipt:     successReceipt(),
	}
	gw, session := newGatewayFixture(t, backend)

	receipt, err := gw.Submit(context.Background(), "test write", lcDest, big.NewInt(10), []byte{0x01}, false)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	require.Len(t, backend.sentTxs, 1)
	sent := backend.sentTxs[0]
	assert.Equal(t, uint64(7), sent.Nonce())
	assert.Equal(t, uint64(100_000), sent.Gas(), "gas limit doubles the estimate")

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(31337)), sent)
	require.NoError(t, err)
	caller, err := session.CallerAddress()
	require.NoError(t, err)
	assert.Equal(t, caller, sender, "signature recovers to the session signer")
}

func TestSubmitSkipSimulationAvoidsEstimate(t *testing.T) {
	backend := &fakeEthBackend{receipt: successReceipt()}
	gw, _ := newGatewayFixture(t, backend)

	_, err := gw.Submit(context.Background(), "governance write", lcWallet, nil, []byte{0x01}, true)
	require.NoError(t, err)
	assert.Zero(t, backend.estimateCalls)
	require.Len(t, backend.sentTxs, 1)
	assert.Equal(t, uint64(1_000_000), backend.sentTxs[0].Gas(), "unconfigured gas limit gets the default")
}

func TestSubmitSimulationRevertDecodesReason(t *testing.T) {
	backend := &fakeEthBackend{
		estimateErr: &revertRPCError{
			msg:  "execution reverted",
			data: encodeErrorString(t, "insufficient balance"),
		},
	}
	gw, _ := newGatewayFixture(t, backend)

	_, err := gw.Submit(context.Background(), "transfer", lcDest, big.NewInt(1), nil, false)
	var revertErr *RevertError
	require.ErrorAs(t, err, &revertErr)
	assert.Equal(t, "insufficient balance", revertErr.Reason)
	assert.Empty(t, backend.sentTxs, "nothing is signed after a failed simulation")
}

func TestSubmitFailedReceiptIsRevertError(t *testing.T) {
	backend := &fakeEthBackend{
		estimateGas: 50_000,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			BlockNumber: big.NewInt(42),
		},
	}
	gw, _ := newGatewayFixture(t, backend)

	_, err := gw.Submit(context.Background(), "transfer", lcDest, big.NewInt(1), nil, false)
	var revertErr *RevertError
	require.ErrorAs(t, err, &revertErr)
}

func TestSubmitWithoutSigner(t *testing.T) {
	backend := &fakeEthBackend{}
	gw, session := newGatewayFixture(t, backend)
	session.SetSigner(nil)

	_, err := gw.Submit(context.Background(), "transfer", lcDest, nil, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no signer attached")
}

func TestWaitMinedAbortsOnContextCancel(t *testing.T) {
	backend := &fakeEthBackend{
		estimateGas: 50_000,
		receiptErr:  errors.New("not found"),
	}
	gw, _ := newGatewayFixture(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gw.Submit(ctx, "transfer", lcDest, nil, nil, false)
	var transErr *TransportError
	require.ErrorAs(t, err, &transErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfiguredGasPriceOverridesSuggestion(t *testing.T) {
	backend := &fakeEthBackend{
		estimateGas: 50_000,
		gasPrice:    big.NewInt(999),
		receipt:     successReceipt(),
	}
	gw, _ := newGatewayFixture(t, backend)
	gw.cfg.GasPrice = "12345"

	_, err := gw.Submit(context.Background(), "transfer", lcDest, nil, nil, false)
	require.NoError(t, err)
	require.Len(t, backend.sentTxs, 1)
	assert.Equal(t, big.NewInt(12345), backend.sentTxs[0].GasPrice())
}

func TestInvalidConfiguredGasPrice(t *testing.T) {
	backend := &fakeEthBackend{estimateGas: 50_000}
	gw, _ := newGatewayFixture(t, backend)
	gw.cfg.GasPrice = "not-a-number"

	_, err := gw.Submit(context.Background(), "transfer", lcDest, nil, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configured gas price")
}

// ===== canonical hash extraction =====

func TestProposeTransactionExtractsHashFromEvent(t *testing.T) {
	eventID := walletABI.Events["TransactionProposed"].ID
	backend := &fakeEthBackend{
		estimateGas: 50_000,
		receipt: successReceipt(&types.Log{
			Address: lcWallet,
			Topics:  []common.Hash{eventID, lcHash, common.BytesToHash(lcOwnerA.Bytes()), common.BytesToHash(lcDest.Bytes())},
		}),
	}
	gw, _ := newGatewayFixture(t, backend)

	hash, err := gw.ProposeTransaction(context.Background(), lcWallet, lcDest, big.NewInt(5), nil, false)
	require.NoError(t, err)
	assert.Equal(t, lcHash, hash)
}

func TestProposeTransactionIgnoresForeignLogs(t *testing.T) {
	eventID := walletABI.Events["TransactionProposed"].ID
	backend := &fakeEthBackend{
		estimateGas: 50_000,
		receipt: successReceipt(&types.Log{
			// Same event signature, different emitting contract.
			Address: lcDest,
			Topics:  []common.Hash{eventID, lcHash, common.BytesToHash(lcOwnerA.Bytes()), common.BytesToHash(lcDest.Bytes())},
		}),
	}
	gw, _ := newGatewayFixture(t, backend)

	_, err := gw.ProposeTransaction(context.Background(), lcWallet, lcDest, big.NewInt(5), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event missing")
}

// ===== revert decoding =====

func TestDecodeRevertPayloadErrorString(t *testing.T) {
	reason, ok := decodeRevertPayload(encodeErrorString(t, "not an owner"))
	require.True(t, ok)
	assert.Equal(t, "not an owner", reason)
}

func TestDecodeRevertPayloadPanic(t *testing.T) {
	payload := "0x" + revertSelectorPanic + common.Bytes2Hex(common.LeftPadBytes([]byte{0x12}, 32))
	reason, ok := decodeRevertPayload(payload)
	require.True(t, ok)
	assert.Equal(t, "panic code 0x12", reason)
}

func TestDecodeRevertPayloadGarbage(t *testing.T) {
	_, ok := decodeRevertPayload("0x1234")
	assert.False(t, ok)

	_, ok = decodeRevertPayload("0xdeadbeef00")
	assert.False(t, ok)
}

func TestDecodeRevertReasonFromMessageSuffix(t *testing.T) {
	gw, _ := newGatewayFixture(t, &fakeEthBackend{})
	reason := gw.decodeRevertReason(context.Background(), ethereum.CallMsg{},
		errors.New("execution reverted: threshold not met"))
	assert.Equal(t, "threshold not met", reason)
}

// ===== event-log history =====

func TestGetProposedEventsRetriesSmallerWindowOnce(t *testing.T) {
	eventID := walletABI.Events["TransactionProposed"].ID
	backend := &fakeEthBackend{
		blockNumber: 50_000,
		filterErrs:  []error{errors.New("query exceeds max block range"), nil},
		filterLogs: []types.Log{{
			Address:     lcWallet,
			Topics:      []common.Hash{eventID, lcHash, common.BytesToHash(lcOwnerA.Bytes()), common.BytesToHash(lcDest.Bytes())},
			BlockNumber: 49_990,
		}},
	}
	gw, _ := newGatewayFixture(t, backend)

	events, err := gw.GetProposedEvents(context.Background(), lcWallet)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, lcHash.Hex(), events[0].TxHash)
	assert.Equal(t, lcOwnerA.Hex(), events[0].Proposer)

	require.Len(t, backend.filterCalls, 2)
	assert.Equal(t, uint64(40_000), backend.filterCalls[0].FromBlock.Uint64())
	assert.Equal(t, uint64(49_000), backend.filterCalls[1].FromBlock.Uint64(), "retry shrinks the window")
}

func TestGetProposedEventsGivesUpAfterRetry(t *testing.T) {
	backend := &fakeEthBackend{
		blockNumber: 50_000,
		filterErrs:  []error{errors.New("too many blocks"), errors.New("too many blocks")},
	}
	gw, _ := newGatewayFixture(t, backend)

	events, err := gw.GetProposedEvents(context.Background(), lcWallet)
	require.NoError(t, err, "an exhausted window is empty history, not an error")
	assert.Empty(t, events)
	assert.Len(t, backend.filterCalls, 2, "exactly one retry")
}

func TestGetProposedEventsNonRangeErrorSurfaces(t *testing.T) {
	backend := &fakeEthBackend{
		blockNumber: 50_000,
		filterErrs:  []error{errors.New("internal server error")},
	}
	gw, _ := newGatewayFixture(t, backend)

	_, err := gw.GetProposedEvents(context.Background(), lcWallet)
	var transErr *TransportError
	require.ErrorAs(t, err, &transErr)
	assert.Len(t, backend.filterCalls, 1)
}

func TestIsRangeError(t *testing.T) {
	assert.True(t, isRangeError(errors.New("requested block range too wide")))
	assert.True(t, isRangeError(errors.New("query returned more than 10000 results")))
	assert.False(t, isRangeError(errors.New("connection refused")))
}

// ===== helpers =====

func TestToUint64(t *testing.T) {
	n, err := toUint64(big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	n, err = toUint64(uint64(7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)

	_, err = toUint64(new(big.Int).Lsh(big.NewInt(1), 80))
	require.Error(t, err)

	_, err = toUint64("42")
	require.Error(t, err)
}

func TestToBool(t *testing.T) {
	b, err := toBool(true)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = toBool(1)
	require.Error(t, err)
}
