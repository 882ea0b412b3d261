package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"multisig-backend/internal/config"
	"multisig-backend/internal/metrics"
	"multisig-backend/internal/models"
)

// ethBackend is the slice of ethclient.Client the gateway uses.
// Kept small so tests can substitute a fake node.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// ChainGateway is the typed read/write surface over the wallet,
// factory and module contracts on the one authoritative RPC endpoint.
// Reads pass through a leaky-bucket limiter because the endpoint is
// rate-limited; writes pre-simulate, sign through the shared session,
// wait for inclusion and treat a status=0 receipt as a hard failure.
type ChainGateway struct {
	backend ethBackend
	session *Session
	cfg     config.BlockchainConfig
	chainID *big.Int
	factory common.Address
	limiter ratelimit.Limiter
	logger  *logrus.Logger

	receiptPollInterval time.Duration
}

// NewChainGateway dials the configured RPC endpoints in order and
// verifies the chain ID of the first one that answers.
func NewChainGateway(cfg config.BlockchainConfig, session *Session, logger *logrus.Logger) (*ChainGateway, error) {
	var client *ethclient.Client
	var chainID *big.Int
	var lastErr error

	for _, endpoint := range cfg.RPCEndpoints {
		c, err := ethclient.Dial(endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		id, err := c.ChainID(ctx)
		cancel()
		if err != nil {
			c.Close()
			lastErr = err
			continue
		}
		if cfg.ChainID != 0 && id.Int64() != cfg.ChainID {
			c.Close()
			lastErr = fmt.Errorf("endpoint %s reports chain %d, expected %d", endpoint, id.Int64(), cfg.ChainID)
			continue
		}
		logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"chain_id": id.Int64(),
		}).Info("connected to RPC endpoint")
		client = c
		chainID = id
		break
	}
	if client == nil {
		return nil, fmt.Errorf("failed to connect to any RPC endpoint: %w", lastErr)
	}

	return newChainGateway(client, chainID, cfg, session, logger), nil
}

// NewChainGatewayWithBackend builds a gateway over an existing backend.
func NewChainGatewayWithBackend(backend ethBackend, chainID *big.Int, cfg config.BlockchainConfig, session *Session, logger *logrus.Logger) *ChainGateway {
	return newChainGateway(backend, chainID, cfg, session, logger)
}

func newChainGateway(backend ethBackend, chainID *big.Int, cfg config.BlockchainConfig, session *Session, logger *logrus.Logger) *ChainGateway {
	rate := cfg.ReadRateLimit
	if rate <= 0 {
		rate = 20
	}
	return &ChainGateway{
		backend:             backend,
		session:             session,
		cfg:                 cfg,
		chainID:             chainID,
		factory:             common.HexToAddress(cfg.FactoryContract),
		limiter:             ratelimit.New(rate),
		logger:              logger,
		receiptPollInterval: 2 * time.Second,
	}
}

// ===== Reads =====

// call packs a method call, runs it through the rate limiter and
// unpacks the result.
func (g *ChainGateway) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	g.limiter.Take()
	start := time.Now()
	output, err := g.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	metrics.ChainCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, transportError(fmt.Sprintf("contract call %s failed", method), err)
	}

	values, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return values, nil
}

// GetOwners returns the wallet's owner set, checksummed.
func (g *ChainGateway) GetOwners(ctx context.Context, wallet common.Address) ([]string, error) {
	values, err := g.call(ctx, wallet, walletABI, "getOwners")
	if err != nil {
		return nil, err
	}
	raw, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getOwners result type %T", values[0])
	}
	owners := make([]string, len(raw))
	for i, a := range raw {
		owners[i] = a.Hex()
	}
	return owners, nil
}

// GetThreshold returns the wallet's current approval threshold.
func (g *ChainGateway) GetThreshold(ctx context.Context, wallet common.Address) (uint64, error) {
	values, err := g.call(ctx, wallet, walletABI, "threshold")
	if err != nil {
		return 0, err
	}
	return toUint64(values[0])
}

// GetNonce returns the wallet's proposal nonce.
func (g *ChainGateway) GetNonce(ctx context.Context, wallet common.Address) (uint64, error) {
	values, err := g.call(ctx, wallet, walletABI, "nonce")
	if err != nil {
		return 0, err
	}
	return toUint64(values[0])
}

// IsOwner reports whether addr is a current owner of the wallet.
func (g *ChainGateway) IsOwner(ctx context.Context, wallet, addr common.Address) (bool, error) {
	values, err := g.call(ctx, wallet, walletABI, "isOwner", addr)
	if err != nil {
		return false, err
	}
	return toBool(values[0])
}

// GetModules returns the wallet's enabled modules in linked-list order.
func (g *ChainGateway) GetModules(ctx context.Context, wallet common.Address) ([]common.Address, error) {
	values, err := g.call(ctx, wallet, walletABI, "getModules")
	if err != nil {
		return nil, err
	}
	raw, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getModules result type %T", values[0])
	}
	return raw, nil
}

// IsModuleEnabled reports whether the module is currently enabled.
func (g *ChainGateway) IsModuleEnabled(ctx context.Context, wallet, module common.Address) (bool, error) {
	values, err := g.call(ctx, wallet, walletABI, "isModuleEnabled", module)
	if err != nil {
		return false, err
	}
	return toBool(values[0])
}

// GetBalance returns the wallet's native balance.
func (g *ChainGateway) GetBalance(ctx context.Context, wallet common.Address) (*big.Int, error) {
	g.limiter.Take()
	balance, err := g.backend.BalanceAt(ctx, wallet, nil)
	if err != nil {
		return nil, transportError("balance query failed", err)
	}
	return balance, nil
}

// GetApproval reports whether owner currently has an active approval
// on the transaction.
func (g *ChainGateway) GetApproval(ctx context.Context, wallet common.Address, txHash common.Hash, owner common.Address) (bool, error) {
	values, err := g.call(ctx, wallet, walletABI, "approvals", txHash, owner)
	if err != nil {
		return false, err
	}
	return toBool(values[0])
}

// ComputeTransactionHash asks the contract for the deterministic hash
// of (to, value, data, nonce).
func (g *ChainGateway) ComputeTransactionHash(ctx context.Context, wallet, to common.Address, value *big.Int, data []byte, nonce uint64) (common.Hash, error) {
	values, err := g.call(ctx, wallet, walletABI, "getTransactionHash", to, value, data, new(big.Int).SetUint64(nonce))
	if err != nil {
		return common.Hash{}, err
	}
	raw, ok := values[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected getTransactionHash result type %T", values[0])
	}
	return common.Hash(raw), nil
}

// GetTransaction reads the authoritative transaction record, with the
// wallet's current threshold snapshotted onto it. The approvals map is
// filled per owner; absent owners mean no active approval.
func (g *ChainGateway) GetTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) (*models.Transaction, error) {
	values, err := g.call(ctx, wallet, walletABI, "transactions", txHash)
	if err != nil {
		return nil, err
	}
	tx, err := decodeTransactionTuple(wallet, txHash, values)
	if err != nil {
		return nil, err
	}

	threshold, err := g.GetThreshold(ctx, wallet)
	if err != nil {
		return nil, err
	}
	tx.Threshold = threshold

	owners, err := g.GetOwners(ctx, wallet)
	if err != nil {
		return nil, err
	}
	tx.Approvals = make(map[string]bool, len(owners))
	for _, owner := range owners {
		active, err := g.GetApproval(ctx, wallet, txHash, common.HexToAddress(owner))
		if err != nil {
			return nil, err
		}
		if active {
			tx.Approvals[owner] = true
		}
	}
	return tx, nil
}

// decodeTransactionTuple maps the transactions(hash) output tuple onto
// the read model. A zero proposer means the hash is unknown on chain.
func decodeTransactionTuple(wallet common.Address, txHash common.Hash, values []interface{}) (*models.Transaction, error) {
	if len(values) != 8 {
		return nil, fmt.Errorf("unexpected transactions tuple arity %d", len(values))
	}
	to, _ := values[0].(common.Address)
	value, _ := values[1].(*big.Int)
	data, _ := values[2].([]byte)
	proposer, _ := values[3].(common.Address)
	numApprovals, err := toUint64(values[4])
	if err != nil {
		return nil, err
	}
	executed, _ := values[5].(bool)
	cancelled, _ := values[6].(bool)
	ts, err := toUint64(values[7])
	if err != nil {
		return nil, err
	}

	if proposer == (common.Address{}) {
		return nil, preconditionErrorf("transaction %s does not exist", txHash.Hex())
	}

	return &models.Transaction{
		Hash:         txHash.Hex(),
		Wallet:       wallet.Hex(),
		To:           to.Hex(),
		Value:        value,
		Data:         "0x" + hex.EncodeToString(data),
		Proposer:     proposer.Hex(),
		NumApprovals: numApprovals,
		Executed:     executed,
		Cancelled:    cancelled,
		Timestamp:    time.Unix(int64(ts), 0).UTC(),
	}, nil
}

// ===== Factory =====

// Implementation returns the factory's current wallet implementation.
func (g *ChainGateway) Implementation(ctx context.Context) (string, error) {
	values, err := g.call(ctx, g.factory, factoryABI, "implementation")
	if err != nil {
		return "", err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("unexpected implementation result type %T", values[0])
	}
	return addr.Hex(), nil
}

// GetWalletsByCreator lists wallets deployed by the given creator.
func (g *ChainGateway) GetWalletsByCreator(ctx context.Context, creator common.Address) ([]string, error) {
	values, err := g.call(ctx, g.factory, factoryABI, "getWalletsByCreator", creator)
	if err != nil {
		return nil, err
	}
	raw, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getWalletsByCreator result type %T", values[0])
	}
	wallets := make([]string, len(raw))
	for i, a := range raw {
		wallets[i] = a.Hex()
	}
	return wallets, nil
}

// CreateWallet deploys a wallet through the factory using a mined salt
// and returns the deployed address extracted from the WalletCreated
// event of the mined receipt.
func (g *ChainGateway) CreateWallet(ctx context.Context, owners []common.Address, threshold uint64, salt common.Hash) (string, error) {
	calldata, err := factoryABI.Pack("createWallet", owners, new(big.Int).SetUint64(threshold), [32]byte(salt))
	if err != nil {
		return "", fmt.Errorf("failed to pack createWallet: %w", err)
	}

	receipt, err := g.Submit(ctx, "create wallet", g.factory, nil, calldata, false)
	if err != nil {
		return "", err
	}

	eventID := factoryABI.Events["WalletCreated"].ID
	for _, lg := range receipt.Logs {
		if lg.Address == g.factory && len(lg.Topics) >= 2 && lg.Topics[0] == eventID {
			return common.HexToAddress(lg.Topics[1].Hex()).Hex(), nil
		}
	}
	return "", fmt.Errorf("wallet deployment mined but WalletCreated event missing from receipt %s", receipt.TxHash.Hex())
}

// ===== Writes =====

// Submit signs and submits a state-changing call, waits for inclusion
// and returns the receipt. Pre-simulation runs first unless skipped;
// a failed simulation surfaces the decoded revert reason before any
// signature is requested. A status=0 receipt is a hard failure.
func (g *ChainGateway) Submit(ctx context.Context, op string, to common.Address, value *big.Int, calldata []byte, skipSimulation bool) (*types.Receipt, error) {
	strategy, err := g.session.Signer()
	if err != nil {
		return nil, err
	}
	from := strategy.Address()
	if value == nil {
		value = new(big.Int)
	}

	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: calldata}

	gasLimit := g.cfg.GasLimit
	if skipSimulation {
		if gasLimit == 0 {
			gasLimit = 1_000_000
		}
	} else {
		estimated, err := g.backend.EstimateGas(ctx, msg)
		if err != nil {
			metrics.ChainWrites.WithLabelValues(op, "simulation_reverted").Inc()
			return nil, &RevertError{Op: op, Reason: g.decodeRevertReason(ctx, msg, err)}
		}
		gasLimit = estimated * 2
	}

	nonce, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, transportError("failed to fetch account nonce", err)
	}

	gasPrice, err := g.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, calldata)

	// The direct return value of a write is never used for anything;
	// all identifiers come from the mined receipt's event logs.
	signer := types.NewEIP155Signer(g.chainID)
	digest := signer.Hash(tx)
	signature, err := strategy.Sign(digest.Bytes())
	if err != nil {
		metrics.ChainWrites.WithLabelValues(op, "sign_failed").Inc()
		return nil, normalizeSignError(err)
	}

	signedTx, err := tx.WithSignature(signer, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to apply signature: %w", err)
	}

	if err := g.backend.SendTransaction(ctx, signedTx); err != nil {
		metrics.ChainWrites.WithLabelValues(op, "send_failed").Inc()
		return nil, transportError(fmt.Sprintf("cannot %s: failed to submit transaction", op), err)
	}

	g.logger.WithFields(logrus.Fields{
		"op":      op,
		"tx_hash": signedTx.Hash().Hex(),
		"from":    from.Hex(),
		"to":      to.Hex(),
	}).Info("transaction submitted, waiting for inclusion")

	receipt, err := g.waitMined(ctx, signedTx.Hash())
	if err != nil {
		metrics.ChainWrites.WithLabelValues(op, "confirmation_failed").Inc()
		return nil, err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		metrics.ChainWrites.WithLabelValues(op, "reverted").Inc()
		reason := g.replayForReason(ctx, msg, receipt)
		return nil, &RevertError{Op: op, Reason: reason}
	}

	metrics.ChainWrites.WithLabelValues(op, "success").Inc()
	return receipt, nil
}

// gasPrice prefers the configured fixed price, falling back to the
// node's suggestion.
func (g *ChainGateway) gasPrice(ctx context.Context) (*big.Int, error) {
	if g.cfg.GasPrice != "" {
		price, ok := new(big.Int).SetString(g.cfg.GasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid configured gas price: %s", g.cfg.GasPrice)
		}
		return price, nil
	}
	price, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, transportError("failed to fetch gas price", err)
	}
	return price, nil
}

// waitMined polls for the receipt until inclusion or context
// cancellation. There is deliberately no caller-configurable timeout
// here; the call waits for inclusion or failure.
func (g *ChainGateway) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(g.receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !strings.Contains(err.Error(), "not found") {
			g.logger.WithError(err).WithField("tx_hash", txHash.Hex()).Warn("receipt query failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, transportError("confirmation wait aborted", ctx.Err())
		case <-ticker.C:
		}
	}
}

// replayForReason re-runs the call at the failing block to recover the
// revert reason; when the replay does not reproduce the failure the
// generic status message is all we have.
func (g *ChainGateway) replayForReason(ctx context.Context, msg ethereum.CallMsg, receipt *types.Receipt) string {
	_, err := g.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if err != nil {
		return g.decodeRevertReason(ctx, msg, err)
	}
	return "transaction reverted on chain (status 0)"
}

// dataErrer is implemented by JSON-RPC errors that carry revert data.
type dataErrer interface {
	ErrorData() interface{}
}

const (
	// Error(string) selector
	revertSelectorError = "08c379a0"
	// Panic(uint256) selector
	revertSelectorPanic = "4e487b71"
)

// decodeRevertReason extracts a human-readable reason from a failed
// call or estimate. ABI-encoded Error(string) payloads are decoded;
// anything else falls back to the sanitized raw message.
func (g *ChainGateway) decodeRevertReason(_ context.Context, _ ethereum.CallMsg, err error) string {
	if de, ok := err.(dataErrer); ok {
		if encoded, ok := de.ErrorData().(string); ok {
			if reason, ok := decodeRevertPayload(encoded); ok {
				return reason
			}
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted:"); idx >= 0 {
		reason := strings.TrimSpace(msg[idx+len("execution reverted:"):])
		if reason != "" {
			return sanitizeReason(reason)
		}
	}
	if strings.Contains(msg, "execution reverted") {
		return "execution reverted"
	}
	return sanitizeReason(msg)
}

// decodeRevertPayload decodes a 0x-prefixed revert data blob.
func decodeRevertPayload(encoded string) (string, bool) {
	data := common.FromHex(encoded)
	if len(data) < 4 {
		return "", false
	}
	selector := hex.EncodeToString(data[:4])
	switch selector {
	case revertSelectorError:
		stringType, err := abi.NewType("string", "", nil)
		if err != nil {
			return "", false
		}
		values, err := abi.Arguments{{Type: stringType}}.Unpack(data[4:])
		if err != nil || len(values) != 1 {
			return "", false
		}
		reason, ok := values[0].(string)
		return sanitizeReason(reason), ok
	case revertSelectorPanic:
		if len(data) == 36 {
			code := new(big.Int).SetBytes(data[4:])
			return fmt.Sprintf("panic code 0x%x", code), true
		}
	}
	return "", false
}

// ===== Wallet writes =====

// ProposeTransaction submits a proposal and returns the canonical
// txHash extracted from the TransactionProposed event of the mined
// receipt. The write's own return value is not trusted for this.
func (g *ChainGateway) ProposeTransaction(ctx context.Context, wallet, to common.Address, value *big.Int, data []byte, skipSimulation bool) (common.Hash, error) {
	calldata, err := walletABI.Pack("proposeTransaction", to, value, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack proposeTransaction: %w", err)
	}

	receipt, err := g.Submit(ctx, "propose transaction", wallet, nil, calldata, skipSimulation)
	if err != nil {
		return common.Hash{}, err
	}

	eventID := walletABI.Events["TransactionProposed"].ID
	for _, lg := range receipt.Logs {
		if lg.Address == wallet && len(lg.Topics) >= 2 && lg.Topics[0] == eventID {
			return lg.Topics[1], nil
		}
	}
	return common.Hash{}, fmt.Errorf("proposal mined but TransactionProposed event missing from receipt %s", receipt.TxHash.Hex())
}

// ApproveTransaction records the caller's approval on chain.
func (g *ChainGateway) ApproveTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	return g.walletWrite(ctx, "approve transaction", wallet, "approveTransaction", txHash)
}

// RevokeApproval withdraws the caller's active approval.
func (g *ChainGateway) RevokeApproval(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	return g.walletWrite(ctx, "revoke approval", wallet, "revokeApproval", txHash)
}

// CancelTransaction moves a pending transaction to cancelled.
func (g *ChainGateway) CancelTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	return g.walletWrite(ctx, "cancel transaction", wallet, "cancelTransaction", txHash)
}

// ExecuteTransaction executes a pending transaction at quorum.
func (g *ChainGateway) ExecuteTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	return g.walletWrite(ctx, "execute transaction", wallet, "executeTransaction", txHash)
}

// ApproveAndExecute approves and executes in one submitted write.
func (g *ChainGateway) ApproveAndExecute(ctx context.Context, wallet common.Address, txHash common.Hash) error {
	return g.walletWrite(ctx, "approve and execute transaction", wallet, "approveAndExecute", txHash)
}

func (g *ChainGateway) walletWrite(ctx context.Context, op string, wallet common.Address, method string, txHash common.Hash) error {
	calldata, err := walletABI.Pack(method, txHash)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}
	_, err = g.Submit(ctx, op, wallet, nil, calldata, false)
	return err
}

// ===== Modules =====

// GetDailyLimit reads the spending-limit module state for a wallet.
func (g *ChainGateway) GetDailyLimit(ctx context.Context, module, wallet common.Address) (*models.DailyLimitState, error) {
	values, err := g.call(ctx, module, dailyLimitABI, "getDailyLimit", wallet)
	if err != nil {
		return nil, err
	}
	limit, _ := values[0].(*big.Int)
	spent, _ := values[1].(*big.Int)
	resetAt, err := toUint64(values[2])
	if err != nil {
		return nil, err
	}
	return &models.DailyLimitState{
		Wallet:     wallet.Hex(),
		Limit:      limit,
		SpentToday: spent,
		ResetAt:    time.Unix(int64(resetAt), 0).UTC(),
	}, nil
}

// GetWhitelist reads the whitelist module entries for a wallet.
func (g *ChainGateway) GetWhitelist(ctx context.Context, module, wallet common.Address) ([]string, error) {
	values, err := g.call(ctx, module, whitelistABI, "getWhitelist", wallet)
	if err != nil {
		return nil, err
	}
	raw, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getWhitelist result type %T", values[0])
	}
	entries := make([]string, len(raw))
	for i, a := range raw {
		entries[i] = a.Hex()
	}
	return entries, nil
}

// ===== Recovery module =====

// GetRecoveryConfig reads the guardian setup for a wallet.
func (g *ChainGateway) GetRecoveryConfig(ctx context.Context, module, wallet common.Address) (*models.RecoveryConfig, error) {
	values, err := g.call(ctx, module, recoveryABI, "getRecoveryConfig", wallet)
	if err != nil {
		return nil, err
	}
	raw, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getRecoveryConfig result type %T", values[0])
	}
	guardians := make([]string, len(raw))
	for i, a := range raw {
		guardians[i] = a.Hex()
	}
	threshold, err := toUint64(values[1])
	if err != nil {
		return nil, err
	}
	delay, err := toUint64(values[2])
	if err != nil {
		return nil, err
	}
	return &models.RecoveryConfig{
		Wallet:            wallet.Hex(),
		Guardians:         guardians,
		GuardianThreshold: threshold,
		Delay:             time.Duration(delay) * time.Second,
	}, nil
}

// GetRecovery reads one recovery record from the module.
func (g *ChainGateway) GetRecovery(ctx context.Context, module, wallet common.Address, recoveryHash common.Hash) (*models.Recovery, error) {
	values, err := g.call(ctx, module, recoveryABI, "getRecovery", wallet, recoveryHash)
	if err != nil {
		return nil, err
	}
	raw, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getRecovery result type %T", values[0])
	}
	newOwners := make([]string, len(raw))
	for i, a := range raw {
		newOwners[i] = a.Hex()
	}
	newThreshold, err := toUint64(values[1])
	if err != nil {
		return nil, err
	}
	approvalCount, err := toUint64(values[2])
	if err != nil {
		return nil, err
	}
	executionTime, err := toUint64(values[3])
	if err != nil {
		return nil, err
	}
	executed, _ := values[4].(bool)
	cancelled, _ := values[5].(bool)
	return &models.Recovery{
		Hash:          recoveryHash.Hex(),
		Wallet:        wallet.Hex(),
		NewOwners:     newOwners,
		NewThreshold:  newThreshold,
		ApprovalCount: approvalCount,
		ExecutionTime: time.Unix(int64(executionTime), 0).UTC(),
		Executed:      executed,
		Cancelled:     cancelled,
	}, nil
}

// InitiateRecovery starts a guardian recovery and returns its hash
// from the RecoveryInitiated event.
func (g *ChainGateway) InitiateRecovery(ctx context.Context, module, wallet common.Address, newOwners []common.Address, newThreshold uint64) (common.Hash, error) {
	calldata, err := recoveryABI.Pack("initiateRecovery", wallet, newOwners, new(big.Int).SetUint64(newThreshold))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack initiateRecovery: %w", err)
	}
	receipt, err := g.Submit(ctx, "initiate recovery", module, nil, calldata, false)
	if err != nil {
		return common.Hash{}, err
	}
	eventID := recoveryABI.Events["RecoveryInitiated"].ID
	for _, lg := range receipt.Logs {
		if lg.Address == module && len(lg.Topics) >= 3 && lg.Topics[0] == eventID {
			return lg.Topics[2], nil
		}
	}
	return common.Hash{}, fmt.Errorf("recovery mined but RecoveryInitiated event missing from receipt %s", receipt.TxHash.Hex())
}

// ApproveRecovery records a guardian's approval.
func (g *ChainGateway) ApproveRecovery(ctx context.Context, module, wallet common.Address, recoveryHash common.Hash) error {
	return g.recoveryWrite(ctx, "approve recovery", module, "approveRecovery", wallet, recoveryHash)
}

// ExecuteRecovery executes a recovery after its delay has elapsed.
func (g *ChainGateway) ExecuteRecovery(ctx context.Context, module, wallet common.Address, recoveryHash common.Hash) error {
	return g.recoveryWrite(ctx, "execute recovery", module, "executeRecovery", wallet, recoveryHash)
}

// CancelRecovery lets an owner cancel during the delay window.
func (g *ChainGateway) CancelRecovery(ctx context.Context, module, wallet common.Address, recoveryHash common.Hash) error {
	return g.recoveryWrite(ctx, "cancel recovery", module, "cancelRecovery", wallet, recoveryHash)
}

func (g *ChainGateway) recoveryWrite(ctx context.Context, op string, module common.Address, method string, wallet common.Address, recoveryHash common.Hash) error {
	calldata, err := recoveryABI.Pack(method, wallet, recoveryHash)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}
	_, err = g.Submit(ctx, op, module, nil, calldata, false)
	return err
}

// ===== Event-log history =====

// ProposedEvent is one TransactionProposed log from the chain,
// used by history reads when the indexer is down.
type ProposedEvent struct {
	TxHash      string
	Proposer    string
	To          string
	BlockNumber uint64
}

// rangeErrorMarkers are substrings RPC providers use when a log query
// exceeds their maximum block window.
var rangeErrorMarkers = []string{
	"block range",
	"exceed",
	"too many blocks",
	"query returned more than",
}

// GetProposedEvents fetches recent TransactionProposed logs from a
// bounded block window. If the node rejects the window as too wide the
// query retries once with the smaller fallback window; after that it
// gives up and returns an empty set. Never an unbounded scan.
func (g *ChainGateway) GetProposedEvents(ctx context.Context, wallet common.Address) ([]ProposedEvent, error) {
	latest, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return nil, transportError("failed to fetch latest block", err)
	}

	logs, err := g.filterProposed(ctx, wallet, latest, g.cfg.LogRange)
	if err != nil {
		if !isRangeError(err) {
			return nil, transportError("event log query failed", err)
		}
		logs, err = g.filterProposed(ctx, wallet, latest, g.cfg.LogRangeRetry)
		if err != nil {
			g.logger.WithError(err).WithField("wallet", wallet.Hex()).
				Warn("event log query failed even with fallback range, returning empty history")
			return []ProposedEvent{}, nil
		}
	}

	events := make([]ProposedEvent, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 4 {
			continue
		}
		events = append(events, ProposedEvent{
			TxHash:      lg.Topics[1].Hex(),
			Proposer:    common.HexToAddress(lg.Topics[2].Hex()).Hex(),
			To:          common.HexToAddress(lg.Topics[3].Hex()).Hex(),
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

func (g *ChainGateway) filterProposed(ctx context.Context, wallet common.Address, latest, window uint64) ([]types.Log, error) {
	from := uint64(0)
	if latest > window {
		from = latest - window
	}
	g.limiter.Take()
	return g.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{wallet},
		Topics:    [][]common.Hash{{walletABI.Events["TransactionProposed"].ID}},
	})
}

func isRangeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range rangeErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ===== helpers =====

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case *big.Int:
		if !n.IsUint64() {
			return 0, fmt.Errorf("value %s overflows uint64", n.String())
		}
		return n.Uint64(), nil
	case uint64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

func toBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected boolean type %T", v)
	}
	return b, nil
}
