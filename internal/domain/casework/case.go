package casework

import (
	"context"
	"strings"
	"time"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// EventSource names this module on every event it emits
const EventSource = "case-service"

// Status represents the lifecycle status of a case
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusClosed     Status = "CLOSED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusOnHold, StatusClosed:
		return true
	}
	return false
}

// IsOpen reports whether the case still counts as active work
func (s Status) IsOpen() bool {
	return s.IsValid() && s != StatusClosed
}

// Case tracks work for one beneficiary, optionally inside a program
type Case struct {
	shared.BaseAggregateRoot
	CaseNumber    string
	Title         string
	Description   string
	BeneficiaryID uuid.UUID
	ProgramID     *uuid.UUID
	AssigneeID    *uuid.UUID
	Status        Status
	StatusReason  string
}

// NewCase opens a case and records case-created
func NewCase(caseNumber, title, description string, beneficiaryID uuid.UUID, programID, assigneeID *uuid.UUID, actor uuid.UUID) (*Case, error) {
	if strings.TrimSpace(caseNumber) == "" {
		return nil, shared.NewValidationError("case number is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewValidationError("case title is required").WithDetail("field", "title")
	}
	if len(title) > 200 {
		return nil, shared.NewValidationError("case title cannot exceed 200 characters").WithDetail("field", "title")
	}
	if beneficiaryID == uuid.Nil {
		return nil, shared.NewValidationError("beneficiary is required").WithDetail("field", "beneficiary_id")
	}

	c := &Case{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CaseNumber:        caseNumber,
		Title:             title,
		Description:       description,
		BeneficiaryID:     beneficiaryID,
		ProgramID:         programID,
		AssigneeID:        assigneeID,
		Status:            StatusOpen,
	}
	c.CreatedBy = actor
	c.AddDomainEvent(shared.NewDomainEvent(EventSource, c.ID, shared.CaseCreatedPayload{
		CaseID:        c.ID,
		CaseNumber:    c.CaseNumber,
		Title:         c.Title,
		BeneficiaryID: c.BeneficiaryID,
		ProgramID:     c.ProgramID,
		Status:        string(c.Status),
	}, actorMetadata(actor)...))
	return c, nil
}

// Update holds the fields to change; nil means unchanged
type Update struct {
	Title         *string
	Description   *string
	ProgramID     *uuid.UUID
	ClearProgram  bool
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	Status        *Status
	StatusReason  string
}

// Apply changes the case and returns the changed field names. Any change
// records case-updated; a differing status also records case-status-changed.
// A closed case only accepts being reopened.
func (c *Case) Apply(u Update, actor uuid.UUID) ([]string, error) {
	if u.Status != nil && !u.Status.IsValid() {
		return nil, shared.NewValidationError("unknown case status %q", string(*u.Status)).
			WithDetail("field", "status")
	}
	statusChanged := u.Status != nil && *u.Status != c.Status
	if c.Status == StatusClosed && !(statusChanged && *u.Status == StatusOpen) {
		return nil, shared.NewInvalidStateTransitionError("edit case", string(c.Status))
	}

	var changed []string
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return nil, shared.NewValidationError("case title is required").WithDetail("field", "title")
		}
		if title != c.Title {
			changed = append(changed, "title")
		}
	}
	if u.Description != nil && *u.Description != c.Description {
		changed = append(changed, "description")
	}
	program := c.ProgramID
	if u.ClearProgram {
		program = nil
	} else if u.ProgramID != nil {
		id := *u.ProgramID
		program = &id
	}
	if !sameIDPtr(program, c.ProgramID) {
		changed = append(changed, "program_id")
	}
	assignee := c.AssigneeID
	if u.ClearAssignee {
		assignee = nil
	} else if u.AssigneeID != nil {
		id := *u.AssigneeID
		assignee = &id
	}
	if !sameIDPtr(assignee, c.AssigneeID) {
		changed = append(changed, "assignee_id")
	}
	if statusChanged {
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return nil, nil
	}

	previousStatus := c.Status
	previousProgram := c.ProgramID
	if u.Title != nil {
		c.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	c.ProgramID = program
	c.AssigneeID = assignee
	if statusChanged {
		c.Status = *u.Status
		c.StatusReason = u.StatusReason
	}

	meta := actorMetadata(actor)
	c.AddDomainEvent(shared.NewDomainEvent(EventSource, c.ID, shared.CaseUpdatedPayload{
		CaseID:            c.ID,
		ProgramID:         c.ProgramID,
		PreviousProgramID: previousProgram,
		PreviousStatus:    string(previousStatus),
		ChangedFields:     changed,
	}, meta...))
	if statusChanged {
		c.AddDomainEvent(shared.NewDomainEvent(EventSource, c.ID, shared.CaseStatusChangedPayload{
			CaseID:         c.ID,
			ProgramID:      c.ProgramID,
			PreviousStatus: string(previousStatus),
			NewStatus:      string(c.Status),
			Reason:         u.StatusReason,
		}, meta...))
	}

	c.MarkUpdatedBy(actor)
	c.Touch()
	c.IncrementVersion()
	return changed, nil
}

func sameIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func actorMetadata(actor uuid.UUID) []shared.EventOption {
	if actor == uuid.Nil {
		return nil
	}
	return []shared.EventOption{shared.WithMetadata(shared.MetadataActorID, actor.String())}
}

// Filter defines filtering options for case queries
type Filter struct {
	ProgramID     *uuid.UUID
	BeneficiaryID *uuid.UUID
	Status        *Status
	Page          int
	PageSize      int
}

// Repository persists cases
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Case, error)
	List(ctx context.Context, filter Filter) ([]Case, int64, error)
	Create(ctx context.Context, c *Case) error
	// Update saves with optimistic locking on Version-1
	Update(ctx context.Context, c *Case) error
}

// NumberGenerator hands out unique case numbers
type NumberGenerator interface {
	NextCaseNumber(ctx context.Context, date time.Time) (string, error)
}
