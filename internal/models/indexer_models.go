package models

import (
	"fmt"
	"time"

	"multisig-backend/internal/utils"
)

// Rows read from the indexer store are validated before use. The
// indexer is a derived cache and may be lagging or malformed; a row
// failing validation is treated the same as the indexer being
// unavailable for that query.

// IndexedWallet mirrors the indexer's wallets table.
type IndexedWallet struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Address     string    `json:"address" gorm:"size:42;uniqueIndex;not null"`
	Creator     string    `json:"creator" gorm:"size:42;index"`
	Threshold   uint64    `json:"threshold" gorm:"not null"`
	OwnerCount  uint64    `json:"owner_count" gorm:"not null"`
	BlockNumber uint64    `json:"block_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (IndexedWallet) TableName() string { return "wallets" }

// Validate rejects structurally broken rows.
func (w *IndexedWallet) Validate() error {
	if !utils.IsHexAddress(w.Address) {
		return fmt.Errorf("wallets row %d: invalid address", w.ID)
	}
	if w.Threshold == 0 || w.Threshold > w.OwnerCount {
		return fmt.Errorf("wallets row %d: threshold %d out of range for %d owners", w.ID, w.Threshold, w.OwnerCount)
	}
	return nil
}

// IndexedWalletOwner mirrors the indexer's wallet_owners table.
type IndexedWalletOwner struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index:idx_wallet_owner,unique;not null"`
	OwnerAddress  string    `json:"owner_address" gorm:"size:42;index:idx_wallet_owner,unique;not null"`
	AddedAt       time.Time `json:"added_at"`
}

func (IndexedWalletOwner) TableName() string { return "wallet_owners" }

func (o *IndexedWalletOwner) Validate() error {
	if !utils.IsHexAddress(o.WalletAddress) || !utils.IsHexAddress(o.OwnerAddress) {
		return fmt.Errorf("wallet_owners row %d: invalid address", o.ID)
	}
	return nil
}

// IndexedTransaction mirrors the indexer's transactions table.
type IndexedTransaction struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index:idx_wallet_txhash,unique;not null"`
	TxHash        string    `json:"tx_hash" gorm:"size:66;index:idx_wallet_txhash,unique;not null"`
	To            string    `json:"to" gorm:"column:to_address;size:42;not null"`
	Value         string    `json:"value" gorm:"not null"`
	Data          string    `json:"data" gorm:"type:text;not null"`
	Proposer      string    `json:"proposer" gorm:"size:42;not null"`
	NumApprovals  uint64    `json:"num_approvals" gorm:"default:0"`
	Executed      bool      `json:"executed" gorm:"default:false;index"`
	Cancelled     bool      `json:"cancelled" gorm:"default:false;index"`
	Nonce         uint64    `json:"nonce"`
	DecodedMethod string    `json:"decoded_method" gorm:"size:64"`
	DecodedParams string    `json:"decoded_params" gorm:"type:jsonb"`
	BlockNumber   uint64    `json:"block_number"`
	Timestamp     time.Time `json:"timestamp"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (IndexedTransaction) TableName() string { return "transactions" }

func (t *IndexedTransaction) Validate() error {
	if !utils.IsHexAddress(t.WalletAddress) || !utils.IsHexAddress(t.To) || !utils.IsHexAddress(t.Proposer) {
		return fmt.Errorf("transactions row %d: invalid address", t.ID)
	}
	if !utils.IsHexHash(t.TxHash) {
		return fmt.Errorf("transactions row %d: invalid tx hash", t.ID)
	}
	if !utils.IsHexData(t.Data) {
		return fmt.Errorf("transactions row %d: invalid calldata", t.ID)
	}
	if t.Executed && t.Cancelled {
		return fmt.Errorf("transactions row %d: executed and cancelled are both set", t.ID)
	}
	return nil
}

// IndexedConfirmation mirrors the indexer's confirmations table.
// Active mirrors the on-chain approvals mapping; a revoked approval
// stays as a row with active=false.
type IndexedConfirmation struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index;not null"`
	TxHash        string    `json:"tx_hash" gorm:"size:66;index:idx_txhash_owner,unique;not null"`
	Owner         string    `json:"owner" gorm:"size:42;index:idx_txhash_owner,unique;not null"`
	Active        bool      `json:"active" gorm:"default:true"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (IndexedConfirmation) TableName() string { return "confirmations" }

func (c *IndexedConfirmation) Validate() error {
	if !utils.IsHexAddress(c.WalletAddress) || !utils.IsHexAddress(c.Owner) {
		return fmt.Errorf("confirmations row %d: invalid address", c.ID)
	}
	if !utils.IsHexHash(c.TxHash) {
		return fmt.Errorf("confirmations row %d: invalid tx hash", c.ID)
	}
	return nil
}

// IndexedDeposit mirrors the indexer's deposits table.
type IndexedDeposit struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index;not null"`
	Sender        string    `json:"sender" gorm:"size:42;not null"`
	Amount        string    `json:"amount" gorm:"not null"`
	TxHash        string    `json:"tx_hash" gorm:"size:66;index;not null"`
	BlockNumber   uint64    `json:"block_number"`
	Timestamp     time.Time `json:"timestamp"`
}

func (IndexedDeposit) TableName() string { return "deposits" }

func (d *IndexedDeposit) Validate() error {
	if !utils.IsHexAddress(d.WalletAddress) || !utils.IsHexAddress(d.Sender) {
		return fmt.Errorf("deposits row %d: invalid address", d.ID)
	}
	if !utils.IsHexHash(d.TxHash) {
		return fmt.Errorf("deposits row %d: invalid tx hash", d.ID)
	}
	return nil
}

// IndexedWalletModule mirrors the indexer's wallet_modules table.
type IndexedWalletModule struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index:idx_wallet_module,unique;not null"`
	ModuleAddress string    `json:"module_address" gorm:"size:42;index:idx_wallet_module,unique;not null"`
	Enabled       bool      `json:"enabled" gorm:"default:true;index"`
	Position      int       `json:"position"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (IndexedWalletModule) TableName() string { return "wallet_modules" }

func (m *IndexedWalletModule) Validate() error {
	if !utils.IsHexAddress(m.WalletAddress) || !utils.IsHexAddress(m.ModuleAddress) {
		return fmt.Errorf("wallet_modules row %d: invalid address", m.ID)
	}
	return nil
}

// IndexedDailyLimit mirrors the indexer's daily_limit_state table.
type IndexedDailyLimit struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;uniqueIndex;not null"`
	LimitAmount   string    `json:"limit_amount" gorm:"not null"`
	SpentToday    string    `json:"spent_today" gorm:"not null"`
	ResetAt       time.Time `json:"reset_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (IndexedDailyLimit) TableName() string { return "daily_limit_state" }

func (d *IndexedDailyLimit) Validate() error {
	if !utils.IsHexAddress(d.WalletAddress) {
		return fmt.Errorf("daily_limit_state row %d: invalid address", d.ID)
	}
	return nil
}

// IndexedWhitelistEntry mirrors the indexer's whitelist_entries table.
type IndexedWhitelistEntry struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index:idx_wallet_whitelisted,unique;not null"`
	Address       string    `json:"address" gorm:"size:42;index:idx_wallet_whitelisted,unique;not null"`
	Removed       bool      `json:"removed" gorm:"default:false"`
	AddedAt       time.Time `json:"added_at"`
}

func (IndexedWhitelistEntry) TableName() string { return "whitelist_entries" }

func (w *IndexedWhitelistEntry) Validate() error {
	if !utils.IsHexAddress(w.WalletAddress) || !utils.IsHexAddress(w.Address) {
		return fmt.Errorf("whitelist_entries row %d: invalid address", w.ID)
	}
	return nil
}

// IndexedRecoveryConfig mirrors the indexer's social_recovery_configs table.
type IndexedRecoveryConfig struct {
	ID                uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress     string    `json:"wallet_address" gorm:"size:42;uniqueIndex;not null"`
	GuardianThreshold uint64    `json:"guardian_threshold" gorm:"not null"`
	DelaySeconds      uint64    `json:"delay_seconds" gorm:"not null"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (IndexedRecoveryConfig) TableName() string { return "social_recovery_configs" }

func (c *IndexedRecoveryConfig) Validate() error {
	if !utils.IsHexAddress(c.WalletAddress) {
		return fmt.Errorf("social_recovery_configs row %d: invalid address", c.ID)
	}
	if c.GuardianThreshold == 0 {
		return fmt.Errorf("social_recovery_configs row %d: zero guardian threshold", c.ID)
	}
	return nil
}

// IndexedGuardian mirrors the indexer's social_recovery_guardians table.
// This is also the guardian-to-wallet reverse index; it exists only in
// the indexer and has no chain fallback.
type IndexedGuardian struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index:idx_wallet_guardian,unique;not null"`
	Guardian      string    `json:"guardian" gorm:"size:42;index:idx_wallet_guardian,unique;index;not null"`
	AddedAt       time.Time `json:"added_at"`
}

func (IndexedGuardian) TableName() string { return "social_recovery_guardians" }

func (g *IndexedGuardian) Validate() error {
	if !utils.IsHexAddress(g.WalletAddress) || !utils.IsHexAddress(g.Guardian) {
		return fmt.Errorf("social_recovery_guardians row %d: invalid address", g.ID)
	}
	return nil
}

// IndexedRecovery mirrors the indexer's social_recoveries table.
type IndexedRecovery struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	RecoveryHash  string    `json:"recovery_hash" gorm:"size:66;uniqueIndex;not null"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index;not null"`
	NewOwners     string    `json:"new_owners" gorm:"type:text;not null"` // comma-joined addresses
	NewThreshold  uint64    `json:"new_threshold" gorm:"not null"`
	ApprovalCount uint64    `json:"approval_count" gorm:"default:0"`
	ExecutionTime time.Time `json:"execution_time"`
	Executed      bool      `json:"executed" gorm:"default:false"`
	Cancelled     bool      `json:"cancelled" gorm:"default:false"`
	CreatedAt     time.Time `json:"created_at"`
}

func (IndexedRecovery) TableName() string { return "social_recoveries" }

func (r *IndexedRecovery) Validate() error {
	if !utils.IsHexHash(r.RecoveryHash) {
		return fmt.Errorf("social_recoveries row %d: invalid recovery hash", r.ID)
	}
	if !utils.IsHexAddress(r.WalletAddress) {
		return fmt.Errorf("social_recoveries row %d: invalid address", r.ID)
	}
	return nil
}

// IndexedRecoveryApproval mirrors the indexer's social_recovery_approvals
// table. Indexer-only; per-recovery guardian detail cannot be cheaply
// reconstructed from chain logs.
type IndexedRecoveryApproval struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	RecoveryHash string    `json:"recovery_hash" gorm:"size:66;index:idx_recovery_guardian,unique;not null"`
	Guardian     string    `json:"guardian" gorm:"size:42;index:idx_recovery_guardian,unique;not null"`
	ApprovedAt   time.Time `json:"approved_at"`
}

func (IndexedRecoveryApproval) TableName() string { return "social_recovery_approvals" }

func (a *IndexedRecoveryApproval) Validate() error {
	if !utils.IsHexHash(a.RecoveryHash) {
		return fmt.Errorf("social_recovery_approvals row %d: invalid recovery hash", a.ID)
	}
	if !utils.IsHexAddress(a.Guardian) {
		return fmt.Errorf("social_recovery_approvals row %d: invalid guardian", a.ID)
	}
	return nil
}

// IndexedToken mirrors the indexer's tokens table.
type IndexedToken struct {
	ID       uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	Address  string `json:"address" gorm:"size:42;uniqueIndex;not null"`
	Symbol   string `json:"symbol" gorm:"size:32"`
	Name     string `json:"name" gorm:"size:128"`
	Decimals uint8  `json:"decimals"`
}

func (IndexedToken) TableName() string { return "tokens" }

func (t *IndexedToken) Validate() error {
	if !utils.IsHexAddress(t.Address) {
		return fmt.Errorf("tokens row %d: invalid address", t.ID)
	}
	return nil
}

// IndexedTokenTransfer mirrors the indexer's token_transfers table.
type IndexedTokenTransfer struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	WalletAddress string    `json:"wallet_address" gorm:"size:42;index;not null"`
	TokenAddress  string    `json:"token_address" gorm:"size:42;index;not null"`
	FromAddress   string    `json:"from_address" gorm:"size:42;not null"`
	ToAddress     string    `json:"to_address" gorm:"size:42;not null"`
	Amount        string    `json:"amount" gorm:"not null"`
	TxHash        string    `json:"tx_hash" gorm:"size:66;index;not null"`
	BlockNumber   uint64    `json:"block_number"`
	Timestamp     time.Time `json:"timestamp"`
}

func (IndexedTokenTransfer) TableName() string { return "token_transfers" }

func (t *IndexedTokenTransfer) Validate() error {
	if !utils.IsHexAddress(t.WalletAddress) || !utils.IsHexAddress(t.TokenAddress) {
		return fmt.Errorf("token_transfers row %d: invalid address", t.ID)
	}
	if !utils.IsHexHash(t.TxHash) {
		return fmt.Errorf("token_transfers row %d: invalid tx hash", t.ID)
	}
	return nil
}
