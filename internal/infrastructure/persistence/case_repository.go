package persistence

import (
	"context"
	"fmt"

	"github.com/casehub/backend/internal/domain/casework"
	"github.com/casehub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const caseResource = "case"

// GormCaseRepository implements casework.Repository using GORM
type GormCaseRepository struct {
	db *gorm.DB
}

// NewGormCaseRepository creates a new GormCaseRepository
func NewGormCaseRepository(db *gorm.DB) *GormCaseRepository {
	return &GormCaseRepository{db: db}
}

// FindByID finds a case by ID
func (r *GormCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*casework.Case, error) {
	var model models.CaseModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, caseResource, id)
	}
	return model.ToDomain(), nil
}

// List returns one page of cases and the total count
func (r *GormCaseRepository) List(ctx context.Context, filter casework.Filter) ([]casework.Case, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CaseModel{})
	if filter.ProgramID != nil {
		query = query.Where("program_id = ?", *filter.ProgramID)
	}
	if filter.BeneficiaryID != nil {
		query = query.Where("beneficiary_id = ?", *filter.BeneficiaryID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var rows []models.CaseModel
	if err := query.Order("created_at DESC").Order("id").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	cases := make([]casework.Case, len(rows))
	for i := range rows {
		cases[i] = *rows[i].ToDomain()
	}
	return cases, total, nil
}

// Create inserts a new case
func (r *GormCaseRepository) Create(ctx context.Context, c *casework.Case) error {
	if err := r.db.WithContext(ctx).Create(models.CaseModelFromDomain(c)).Error; err != nil {
		return translateError(err, caseResource, c.ID)
	}
	return nil
}

// Update saves the case with optimistic locking
func (r *GormCaseRepository) Update(ctx context.Context, c *casework.Case) error {
	return updateVersioned(r.db.WithContext(ctx), models.CaseModelFromDomain(c), c.ID, c.Version, caseResource)
}

var _ casework.Repository = (*GormCaseRepository)(nil)
