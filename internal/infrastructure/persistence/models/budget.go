package models

import (
	"github.com/casehub/backend/internal/domain/budget"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetModel is the persistence model for the Budget aggregate root
type BudgetModel struct {
	AggregateModel
	Code        string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(200);not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency    string          `gorm:"type:varchar(3);not null"`
	ProjectIDs  []uuid.UUID     `gorm:"type:text;serializer:json"`
	ProgramIDs  []uuid.UUID     `gorm:"type:text;serializer:json"`
	Status      budget.Status   `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	CloseReason string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (BudgetModel) TableName() string {
	return "budgets"
}

// ToDomain converts the persistence model to a domain Budget
func (m *BudgetModel) ToDomain() *budget.Budget {
	return &budget.Budget{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		TotalAmount:       valueobject.RestoreMoney(m.TotalAmount, valueobject.Currency(m.Currency)),
		ProjectIDs:        m.ProjectIDs,
		ProgramIDs:        m.ProgramIDs,
		Status:            m.Status,
		CloseReason:       m.CloseReason,
	}
}

// BudgetModelFromDomain creates a persistence model from a domain Budget
func BudgetModelFromDomain(b *budget.Budget) *BudgetModel {
	m := &BudgetModel{
		Code:        b.Code,
		Name:        b.Name,
		TotalAmount: b.TotalAmount.Amount(),
		Currency:    b.TotalAmount.Currency().String(),
		ProjectIDs:  b.ProjectIDs,
		ProgramIDs:  b.ProgramIDs,
		Status:      b.Status,
		CloseReason: b.CloseReason,
	}
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	return m
}
