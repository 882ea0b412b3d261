package repository

import (
	"context"

	"gorm.io/gorm"

	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

// TokenRepository defines the interface for indexed token data access.
// Token transfer history is indexer-only; reconstructing it from chain
// logs would mean scanning every token contract.
type TokenRepository interface {
	GetToken(ctx context.Context, address string) (*models.IndexedToken, error)
	FindTransfersByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedTokenTransfer, int64, error)
	FindTransfersByToken(ctx context.Context, wallet, token string, page, limit int) ([]*models.IndexedTokenTransfer, int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new TokenRepository instance
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) GetToken(ctx context.Context, address string) (*models.IndexedToken, error) {
	var token models.IndexedToken
	err := r.db.WithContext(ctx).
		Where("address = ?", utils.NormalizeAddress(address)).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	if err := token.Validate(); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) FindTransfersByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedTokenTransfer, int64, error) {
	var transfers []*models.IndexedTokenTransfer
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IndexedTokenTransfer{}).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet))
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("block_number DESC").Find(&transfers).Error
	if err != nil {
		return nil, 0, err
	}
	for _, t := range transfers {
		if err := t.Validate(); err != nil {
			return nil, 0, err
		}
	}
	return transfers, total, nil
}

func (r *tokenRepository) FindTransfersByToken(ctx context.Context, wallet, token string, page, limit int) ([]*models.IndexedTokenTransfer, int64, error) {
	var transfers []*models.IndexedTokenTransfer
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IndexedTokenTransfer{}).
		Where("wallet_address = ? AND token_address = ?", utils.NormalizeAddress(wallet), utils.NormalizeAddress(token))
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("block_number DESC").Find(&transfers).Error
	if err != nil {
		return nil, 0, err
	}
	for _, t := range transfers {
		if err := t.Validate(); err != nil {
			return nil, 0, err
		}
	}
	return transfers, total, nil
}
