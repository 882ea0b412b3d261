package repository

import (
	"context"

	"gorm.io/gorm"

	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

// TransactionRepository defines the interface for indexed transaction data access
type TransactionRepository interface {
	GetTransaction(ctx context.Context, wallet, txHash string) (*models.IndexedTransaction, error)
	FindByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedTransaction, int64, error)
	FindPendingByWallet(ctx context.Context, wallet string) ([]*models.IndexedTransaction, error)
	FindByProposer(ctx context.Context, wallet, proposer string, page, limit int) ([]*models.IndexedTransaction, int64, error)
	GetActiveConfirmations(ctx context.Context, wallet, txHash string) ([]*models.IndexedConfirmation, error)
	CountPending(ctx context.Context, wallet string) (int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new TransactionRepository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetTransaction(ctx context.Context, wallet, txHash string) (*models.IndexedTransaction, error) {
	var tx models.IndexedTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND tx_hash = ?", utils.NormalizeAddress(wallet), utils.NormalizeHash(txHash)).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) FindByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedTransaction, int64, error) {
	var txs []*models.IndexedTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IndexedTransaction{}).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet))
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("timestamp DESC").Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, 0, err
		}
	}
	return txs, total, nil
}

func (r *transactionRepository) FindPendingByWallet(ctx context.Context, wallet string) ([]*models.IndexedTransaction, error) {
	var txs []*models.IndexedTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND executed = ? AND cancelled = ?", utils.NormalizeAddress(wallet), false, false).
		Order("timestamp DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

func (r *transactionRepository) FindByProposer(ctx context.Context, wallet, proposer string, page, limit int) ([]*models.IndexedTransaction, int64, error) {
	var txs []*models.IndexedTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IndexedTransaction{}).
		Where("wallet_address = ? AND proposer = ?", utils.NormalizeAddress(wallet), utils.NormalizeAddress(proposer))
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("timestamp DESC").Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, 0, err
		}
	}
	return txs, total, nil
}

func (r *transactionRepository) GetActiveConfirmations(ctx context.Context, wallet, txHash string) ([]*models.IndexedConfirmation, error) {
	var confirmations []*models.IndexedConfirmation
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND tx_hash = ? AND active = ?", utils.NormalizeAddress(wallet), utils.NormalizeHash(txHash), true).
		Find(&confirmations).Error
	if err != nil {
		return nil, err
	}
	for _, c := range confirmations {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return confirmations, nil
}

func (r *transactionRepository) CountPending(ctx context.Context, wallet string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.IndexedTransaction{}).
		Where("wallet_address = ? AND executed = ? AND cancelled = ?", utils.NormalizeAddress(wallet), false, false).
		Count(&count).Error
	return count, err
}
