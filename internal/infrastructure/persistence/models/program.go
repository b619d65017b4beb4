package models

import (
	"time"

	"github.com/casehub/backend/internal/domain/program"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProgramModel is the persistence model for the Program aggregate root
type ProgramModel struct {
	AggregateModel
	Code           string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name           string          `gorm:"type:varchar(200);not null"`
	Description    string          `gorm:"type:text"`
	Status         program.Status  `gorm:"type:varchar(20);not null;default:'PLANNED'"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	BudgetID       *uuid.UUID      `gorm:"type:uuid;index"`
	BudgetAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SpentAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	OpenCaseCount  int             `gorm:"not null;default:0"`
	BudgetSyncedAt *time.Time
	CompletedAt    *time.Time
}

// TableName returns the table name for GORM
func (ProgramModel) TableName() string {
	return "programs"
}

// ToDomain converts the persistence model to a domain Program
func (m *ProgramModel) ToDomain() *program.Program {
	currency := valueobject.Currency(m.Currency)
	return &program.Program{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Description:       m.Description,
		Status:            m.Status,
		Currency:          currency,
		BudgetID:          m.BudgetID,
		BudgetAmount:      valueobject.RestoreMoney(m.BudgetAmount, currency),
		SpentAmount:       valueobject.RestoreMoney(m.SpentAmount, currency),
		OpenCaseCount:     m.OpenCaseCount,
		BudgetSyncedAt:    m.BudgetSyncedAt,
		CompletedAt:       m.CompletedAt,
	}
}

// ProgramModelFromDomain creates a persistence model from a domain Program
func ProgramModelFromDomain(p *program.Program) *ProgramModel {
	m := &ProgramModel{
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		Status:         p.Status,
		Currency:       p.Currency.String(),
		BudgetID:       p.BudgetID,
		BudgetAmount:   p.BudgetAmount.Amount(),
		SpentAmount:    p.SpentAmount.Amount(),
		OpenCaseCount:  p.OpenCaseCount,
		BudgetSyncedAt: p.BudgetSyncedAt,
		CompletedAt:    p.CompletedAt,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}
