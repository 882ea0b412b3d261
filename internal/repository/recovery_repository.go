package repository

import (
	"context"

	"gorm.io/gorm"

	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

// RecoveryRepository defines the interface for indexed social-recovery
// data access. The guardian-to-wallet reverse index lives only here;
// there is no chain-side equivalent read.
type RecoveryRepository interface {
	GetRecoveryConfig(ctx context.Context, wallet string) (*models.IndexedRecoveryConfig, error)
	FindGuardians(ctx context.Context, wallet string) ([]*models.IndexedGuardian, error)
	FindWalletsByGuardian(ctx context.Context, guardian string) ([]*models.IndexedGuardian, error)
	GetRecovery(ctx context.Context, recoveryHash string) (*models.IndexedRecovery, error)
	FindRecoveriesByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedRecovery, int64, error)
	FindApprovals(ctx context.Context, recoveryHash string) ([]*models.IndexedRecoveryApproval, error)
}

type recoveryRepository struct {
	db *gorm.DB
}

// NewRecoveryRepository creates a new RecoveryRepository instance
func NewRecoveryRepository(db *gorm.DB) RecoveryRepository {
	return &recoveryRepository{db: db}
}

func (r *recoveryRepository) GetRecoveryConfig(ctx context.Context, wallet string) (*models.IndexedRecoveryConfig, error) {
	var config models.IndexedRecoveryConfig
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet)).
		First(&config).Error
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *recoveryRepository) FindGuardians(ctx context.Context, wallet string) ([]*models.IndexedGuardian, error) {
	var guardians []*models.IndexedGuardian
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet)).
		Order("added_at ASC").
		Find(&guardians).Error
	if err != nil {
		return nil, err
	}
	for _, g := range guardians {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	return guardians, nil
}

func (r *recoveryRepository) FindWalletsByGuardian(ctx context.Context, guardian string) ([]*models.IndexedGuardian, error) {
	var rows []*models.IndexedGuardian
	err := r.db.WithContext(ctx).
		Where("guardian = ?", utils.NormalizeAddress(guardian)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (r *recoveryRepository) GetRecovery(ctx context.Context, recoveryHash string) (*models.IndexedRecovery, error) {
	var recovery models.IndexedRecovery
	err := r.db.WithContext(ctx).
		Where("recovery_hash = ?", utils.NormalizeHash(recoveryHash)).
		First(&recovery).Error
	if err != nil {
		return nil, err
	}
	if err := recovery.Validate(); err != nil {
		return nil, err
	}
	return &recovery, nil
}

func (r *recoveryRepository) FindRecoveriesByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedRecovery, int64, error) {
	var recoveries []*models.IndexedRecovery
	var total int64

	query := r.db.WithContext(ctx).Model(&models.IndexedRecovery{}).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet))
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&recoveries).Error
	if err != nil {
		return nil, 0, err
	}
	for _, rec := range recoveries {
		if err := rec.Validate(); err != nil {
			return nil, 0, err
		}
	}
	return recoveries, total, nil
}

func (r *recoveryRepository) FindApprovals(ctx context.Context, recoveryHash string) ([]*models.IndexedRecoveryApproval, error) {
	var approvals []*models.IndexedRecoveryApproval
	err := r.db.WithContext(ctx).
		Where("recovery_hash = ?", utils.NormalizeHash(recoveryHash)).
		Order("approved_at ASC").
		Find(&approvals).Error
	if err != nil {
		return nil, err
	}
	for _, a := range approvals {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	return approvals, nil
}
