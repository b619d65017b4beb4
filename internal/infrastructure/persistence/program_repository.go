package persistence

import (
	"context"
	"fmt"

	"github.com/casehub/backend/internal/domain/program"
	"github.com/casehub/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const programResource = "program"

// GormProgramRepository implements program.Repository using GORM
type GormProgramRepository struct {
	db *gorm.DB
}

// NewGormProgramRepository creates a new GormProgramRepository
func NewGormProgramRepository(db *gorm.DB) *GormProgramRepository {
	return &GormProgramRepository{db: db}
}

// FindByID finds a program by ID
func (r *GormProgramRepository) FindByID(ctx context.Context, id uuid.UUID) (*program.Program, error) {
	var model models.ProgramModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, programResource, id)
	}
	return model.ToDomain(), nil
}

// ExistsByCode checks if a program code is taken
func (r *GormProgramRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProgramModel{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check program code: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new program
func (r *GormProgramRepository) Create(ctx context.Context, p *program.Program) error {
	if err := r.db.WithContext(ctx).Create(models.ProgramModelFromDomain(p)).Error; err != nil {
		return translateError(err, programResource, p.ID)
	}
	return nil
}

// Update saves the program with optimistic locking
func (r *GormProgramRepository) Update(ctx context.Context, p *program.Program) error {
	return updateVersioned(r.db.WithContext(ctx), models.ProgramModelFromDomain(p), p.ID, p.Version, programResource)
}

var _ program.Repository = (*GormProgramRepository)(nil)
