package models

import "time"

// DocumentSequenceModel is a per-prefix, per-day counter for document numbers
type DocumentSequenceModel struct {
	Prefix    string    `gorm:"type:varchar(10);primaryKey"`
	Day       string    `gorm:"type:char(8);primaryKey"` // YYYYMMDD
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// AllModels lists every model in dependency order for AutoMigrate
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&InvoiceItemModel{},
		&InvoicePaymentModel{},
		&BudgetModel{},
		&CaseModel{},
		&ProgramModel{},
		&DocumentSequenceModel{},
		&OutboxEntryModel{},
	}
}
