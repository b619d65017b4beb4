package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document number prefixes
const (
	InvoicePrefix = "INV"
	ReceiptPrefix = "RCP"
	CasePrefix    = "CASE"
)

// GormNumberGenerator issues PREFIX-YYYYMMDD-NNNNN numbers from a counter
// row per prefix and day. The upsert locks the row until commit, so
// concurrent callers never see the same value.
type GormNumberGenerator struct {
	db *gorm.DB
}

// NewGormNumberGenerator creates a new GormNumberGenerator
func NewGormNumberGenerator(db *gorm.DB) *GormNumberGenerator {
	return &GormNumberGenerator{db: db}
}

// NextInvoiceNumber returns the next INV number for the date
func (g *GormNumberGenerator) NextInvoiceNumber(ctx context.Context, date time.Time) (string, error) {
	return g.next(ctx, InvoicePrefix, date)
}

// NextReceiptNumber returns the next RCP number for the date
func (g *GormNumberGenerator) NextReceiptNumber(ctx context.Context, date time.Time) (string, error) {
	return g.next(ctx, ReceiptPrefix, date)
}

// NextCaseNumber returns the next CASE number for the date
func (g *GormNumberGenerator) NextCaseNumber(ctx context.Context, date time.Time) (string, error) {
	return g.next(ctx, CasePrefix, date)
}

func (g *GormNumberGenerator) next(ctx context.Context, prefix string, date time.Time) (string, error) {
	day := date.UTC().Format("20060102")
	var value int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.DocumentSequenceModel{Prefix: prefix, Day: day, LastValue: 1, UpdatedAt: time.Now()}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "prefix"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_value": gorm.Expr("document_sequences.last_value + 1"),
				"updated_at": time.Now(),
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.DocumentSequenceModel{}).
			Where("prefix = ? AND day = ?", prefix, day).
			Select("last_value").
			Scan(&value).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate %s number: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%05d", prefix, day, value), nil
}

var _ ledger.NumberGenerator = (*GormNumberGenerator)(nil)
