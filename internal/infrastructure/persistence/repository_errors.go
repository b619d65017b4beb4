package persistence

import (
	"errors"
	"fmt"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// translateError maps driver errors onto the domain taxonomy
func translateError(err error, resource string, id uuid.UUID) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.NewNotFoundError(resource, id.String())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewDomainError(shared.CodeAlreadyExists, fmt.Sprintf("%s already exists", resource)).
			WithDetail("resource", resource)
	}
	return err
}

// updateVersioned writes every column of model, guarded by the version the
// aggregate had before its in-memory increment. Zero rows means another
// writer got there first.
func updateVersioned(tx *gorm.DB, model any, id uuid.UUID, newVersion int, resource string) error {
	result := tx.Model(model).
		Where("id = ? AND version = ?", id, newVersion-1).
		Select("*").
		Omit("id", "created_at", "created_by", clause.Associations).
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error, resource, id)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.NewNotFoundError(resource, id.String())
		}
		return shared.ErrConcurrentModification.WithDetail("resource", resource).WithDetail("id", id.String())
	}
	return nil
}
