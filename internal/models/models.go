package models

import (
	"math/big"
	"time"
)

// TxStatus is the lifecycle state of a wallet transaction.
// Pending is the only non-terminal state; a transaction never leaves
// Executed or Cancelled.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusExecuted  TxStatus = "executed"
	TxStatusCancelled TxStatus = "cancelled"
)

// WalletInfo is the read model for a deployed multisig wallet.
// Owner addresses are returned checksummed.
type WalletInfo struct {
	Address   string   `json:"address"`
	Owners    []string `json:"owners"`
	Threshold uint64   `json:"threshold"`
	Balance   *big.Int `json:"balance"`
	Nonce     uint64   `json:"nonce"`
}

// Transaction is the read model for a proposed wallet transaction.
// Threshold is a snapshot taken at read time; it is not stored per
// transaction on chain.
type Transaction struct {
	Hash         string          `json:"hash"`
	Wallet       string          `json:"wallet"`
	To           string          `json:"to"`
	Value        *big.Int        `json:"value"`
	Data         string          `json:"data"`
	Proposer     string          `json:"proposer"`
	NumApprovals uint64          `json:"num_approvals"`
	Threshold    uint64          `json:"threshold"`
	Executed     bool            `json:"executed"`
	Cancelled    bool            `json:"cancelled"`
	Timestamp    time.Time       `json:"timestamp"`
	Approvals    map[string]bool `json:"approvals,omitempty"`
}

// Status derives the lifecycle state from the executed/cancelled flags.
func (t *Transaction) Status() TxStatus {
	switch {
	case t.Executed:
		return TxStatusExecuted
	case t.Cancelled:
		return TxStatusCancelled
	default:
		return TxStatusPending
	}
}

// ModuleInfo describes one extension module of a wallet. Position is
// the module's index in the wallet's enabled-module linked list and is
// only meaningful while Enabled is true.
type ModuleInfo struct {
	Address  string `json:"address"`
	Enabled  bool   `json:"enabled"`
	Position int    `json:"position"`
}

// DailyLimitState is the spending-limit module state for one wallet.
type DailyLimitState struct {
	Wallet     string    `json:"wallet"`
	Limit      *big.Int  `json:"limit"`
	SpentToday *big.Int  `json:"spent_today"`
	ResetAt    time.Time `json:"reset_at"`
}

// WhitelistEntry is one whitelisted destination of the whitelist module.
type WhitelistEntry struct {
	Wallet  string    `json:"wallet"`
	Address string    `json:"address"`
	AddedAt time.Time `json:"added_at"`
}

// RecoveryConfig is the guardian setup of the social-recovery module.
type RecoveryConfig struct {
	Wallet            string        `json:"wallet"`
	Guardians         []string      `json:"guardians"`
	GuardianThreshold uint64        `json:"guardian_threshold"`
	Delay             time.Duration `json:"delay"`
}

// Recovery is one guardian-initiated ownership replacement.
type Recovery struct {
	Hash          string    `json:"hash"`
	Wallet        string    `json:"wallet"`
	NewOwners     []string  `json:"new_owners"`
	NewThreshold  uint64    `json:"new_threshold"`
	ApprovalCount uint64    `json:"approval_count"`
	ExecutionTime time.Time `json:"execution_time"`
	Executed      bool      `json:"executed"`
	Cancelled     bool      `json:"cancelled"`
}

// GuardianApproval is one guardian's approval of a recovery.
type GuardianApproval struct {
	RecoveryHash string    `json:"recovery_hash"`
	Guardian     string    `json:"guardian"`
	ApprovedAt   time.Time `json:"approved_at"`
}

// Deposit is one incoming transfer to a wallet, as seen by the indexer.
type Deposit struct {
	Wallet    string    `json:"wallet"`
	Sender    string    `json:"sender"`
	Amount    *big.Int  `json:"amount"`
	TxHash    string    `json:"tx_hash"`
	Timestamp time.Time `json:"timestamp"`
}

// TokenTransfer is one ERC-20 transfer touching a wallet.
type TokenTransfer struct {
	Wallet    string    `json:"wallet"`
	Token     string    `json:"token"`
	Symbol    string    `json:"symbol"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    *big.Int  `json:"amount"`
	TxHash    string    `json:"tx_hash"`
	Timestamp time.Time `json:"timestamp"`
}

// MiningResult is the terminal success message of an address-mining job.
type MiningResult struct {
	Salt            string `json:"salt"`
	ExpectedAddress string `json:"expected_address"`
	Attempts        uint64 `json:"attempts"`
}

// MiningProgress is an in-flight progress message of an address-mining job.
type MiningProgress struct {
	Attempts uint64        `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
}
