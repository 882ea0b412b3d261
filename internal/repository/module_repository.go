package repository

import (
	"context"

	"gorm.io/gorm"

	"multisig-backend/internal/models"
	"multisig-backend/internal/utils"
)

// ModuleRepository defines the interface for indexed module data access
type ModuleRepository interface {
	FindEnabledModules(ctx context.Context, wallet string) ([]*models.IndexedWalletModule, error)
	GetModule(ctx context.Context, wallet, module string) (*models.IndexedWalletModule, error)
	GetDailyLimit(ctx context.Context, wallet string) (*models.IndexedDailyLimit, error)
	FindWhitelist(ctx context.Context, wallet string) ([]*models.IndexedWhitelistEntry, error)
}

type moduleRepository struct {
	db *gorm.DB
}

// NewModuleRepository creates a new ModuleRepository instance
func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) FindEnabledModules(ctx context.Context, wallet string) ([]*models.IndexedWalletModule, error) {
	var modules []*models.IndexedWalletModule
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND enabled = ?", utils.NormalizeAddress(wallet), true).
		Order("position ASC").
		Find(&modules).Error
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return modules, nil
}

func (r *moduleRepository) GetModule(ctx context.Context, wallet, module string) (*models.IndexedWalletModule, error) {
	var row models.IndexedWalletModule
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND module_address = ?", utils.NormalizeAddress(wallet), utils.NormalizeAddress(module)).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *moduleRepository) GetDailyLimit(ctx context.Context, wallet string) (*models.IndexedDailyLimit, error) {
	var limit models.IndexedDailyLimit
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", utils.NormalizeAddress(wallet)).
		First(&limit).Error
	if err != nil {
		return nil, err
	}
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	return &limit, nil
}

func (r *moduleRepository) FindWhitelist(ctx context.Context, wallet string) ([]*models.IndexedWhitelistEntry, error) {
	var entries []*models.IndexedWhitelistEntry
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND removed = ?", utils.NormalizeAddress(wallet), false).
		Order("added_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
