package persistence

import (
	"context"
	"fmt"

	"github.com/casehub/backend/internal/domain/budget"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/casehub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const budgetResource = "budget"

// GormBudgetRepository implements budget.Repository using GORM
type GormBudgetRepository struct {
	db *gorm.DB
}

// NewGormBudgetRepository creates a new GormBudgetRepository
func NewGormBudgetRepository(db *gorm.DB) *GormBudgetRepository {
	return &GormBudgetRepository{db: db}
}

// FindByID finds a budget by ID
func (r *GormBudgetRepository) FindByID(ctx context.Context, id uuid.UUID) (*budget.Budget, error) {
	var model models.BudgetModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, budgetResource, id)
	}
	return model.ToDomain(), nil
}

// ExistsByCode checks if a budget code is taken
func (r *GormBudgetRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BudgetModel{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check budget code: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new budget
func (r *GormBudgetRepository) Create(ctx context.Context, b *budget.Budget) error {
	if err := r.db.WithContext(ctx).Create(models.BudgetModelFromDomain(b)).Error; err != nil {
		return translateError(err, budgetResource, b.ID)
	}
	return nil
}

// Update saves the budget with optimistic locking
func (r *GormBudgetRepository) Update(ctx context.Context, b *budget.Budget) error {
	return updateVersioned(r.db.WithContext(ctx), models.BudgetModelFromDomain(b), b.ID, b.Version, budgetResource)
}

// Delete removes the budget row
func (r *GormBudgetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.BudgetModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete budget: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError(budgetResource, id.String())
	}
	return nil
}

var _ budget.Repository = (*GormBudgetRepository)(nil)
