package models

import (
	"github.com/casehub/backend/internal/domain/casework"
	"github.com/google/uuid"
)

// CaseModel is the persistence model for the Case aggregate root
type CaseModel struct {
	AggregateModel
	CaseNumber    string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title         string          `gorm:"type:varchar(200);not null"`
	Description   string          `gorm:"type:text"`
	BeneficiaryID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProgramID     *uuid.UUID      `gorm:"type:uuid;index"`
	AssigneeID    *uuid.UUID      `gorm:"type:uuid"`
	Status        casework.Status `gorm:"type:varchar(20);not null;default:'OPEN';index"`
	StatusReason  string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (CaseModel) TableName() string {
	return "cases"
}

// ToDomain converts the persistence model to a domain Case
func (m *CaseModel) ToDomain() *casework.Case {
	return &casework.Case{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		CaseNumber:        m.CaseNumber,
		Title:             m.Title,
		Description:       m.Description,
		BeneficiaryID:     m.BeneficiaryID,
		ProgramID:         m.ProgramID,
		AssigneeID:        m.AssigneeID,
		Status:            m.Status,
		StatusReason:      m.StatusReason,
	}
}

// CaseModelFromDomain creates a persistence model from a domain Case
func CaseModelFromDomain(c *casework.Case) *CaseModel {
	m := &CaseModel{
		CaseNumber:    c.CaseNumber,
		Title:         c.Title,
		Description:   c.Description,
		BeneficiaryID: c.BeneficiaryID,
		ProgramID:     c.ProgramID,
		AssigneeID:    c.AssigneeID,
		Status:        c.Status,
		StatusReason:  c.StatusReason,
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	return m
}
