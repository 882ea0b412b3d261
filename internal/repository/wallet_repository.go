package repository

import (
	"context"

	"gorm.io/gorm"

	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

// The repository layer is a read-only view over tables maintained by
// the external indexer. Every row is validated on the way out; a row
// that fails validation poisons the whole query so callers treat the
// cache as unavailable rather than serving partial garbage.

// WalletRepository defines the interface for indexed wallet data access
type WalletRepository interface {
	GetWalletByAddress(ctx context.Context, address string) (*models.IndexedWallet, error)
	FindWalletsByOwner(ctx context.Context, owner string) ([]*models.IndexedWallet, error)
	FindWalletsByCreator(ctx context.Context, creator string) ([]*models.IndexedWallet, error)
	GetOwners(ctx context.Context, wallet string) ([]*models.IndexedWalletOwner, error)
	FindDepositsByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedDeposit, int64, error)
}

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new WalletRepository instance
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetWalletByAddress(ctx context.Context, address string) (*models.IndexedWallet, error) {
	var wallet models.IndexedWallet
	err := r.db.WithContext(ctx).
		Where("address = ?", utils.NormalizeAddress(address)).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	if err := wallet.Validate(); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) FindWalletsByOwner(ctx context.Context, owner string) ([]*models.IndexedWallet, error) {
	var wallets []*models.IndexedWallet
	err := r.db.WithContext(ctx).
		Joins("JOIN wallet_owners ON wallet_owners.wallet_address = wallets.address").
		Where("wallet_owners.owner_address = ?", utils.NormalizeAddress(owner)).
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	return wallets, nil
}

func (r *walletRepository) FindWalletsByCreator(ctx context.Context, creator string) ([]*models.IndexedWallet, error) {
	var wallets []*models.IndexedWallet
	err := r.db.WithContext(ctx).
		Where("creator = ?", utils.NormalizeAddress(creator)).
		Order("created_at DESC").
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	return wallets, nil
}

func (r *walletRepository) GetOwners(ctx context.Context, wallet string) ([]*models.IndexedWalletOwner, error) {
	var owners []*models.IndexedWalletOwner
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet)).
		Order("added_at ASC").
		Find(&owners).Error
	if err != nil {
		return nil, err
	}
	for _, o := range owners {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}
	return owners, nil
}

func (r *walletRepository) FindDepositsByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedDeposit, int64, error) {
	var deposits []*models.IndexedDeposit
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IndexedDeposit{}).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet))
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("block_number DESC").Find(&deposits).Error
	if err != nil {
		return nil, 0, err
	}
	for _, d := range deposits {
		if err := d.Validate(); err != nil {
			return nil, 0, err
		}
	}
	return deposits, total, nil
}
