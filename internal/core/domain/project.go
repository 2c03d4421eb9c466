package domain

import (
	"strings"
	"time"
)

// =============================================================================
// Project Enums
// =============================================================================

type Visibility string

const (
	VisibilityUnpublished  Visibility = "unpublished"
	VisibilityConvocatoria Visibility = "convocatoria"
	VisibilityPublished    Visibility = "published"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityUnpublished, VisibilityConvocatoria, VisibilityPublished:
		return true
	}
	return false
}

type HourAssignment string

const (
	HourAssignmentAutomatic HourAssignment = "automatic"
	HourAssignmentManual    HourAssignment = "manual"
)

func (h HourAssignment) Valid() bool {
	return h == HourAssignmentAutomatic || h == HourAssignmentManual
}

const DefaultMaxParticipants = 10

// =============================================================================
// Project
// =============================================================================

// Project is a volunteer opportunity. CurrentParticipants mirrors the size of
// the member set and is only ever written as a resync from that set.
type Project struct {
	ID                  int64          `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	ManagerID           int64          `json:"manager_id"`
	CategoryID          *int64         `json:"category_id,omitempty"`
	MaxHours            Hours          `json:"max_hours"`
	HourAssignment      HourAssignment `json:"hour_assignment"`
	AutomaticHours      *Hours         `json:"automatic_hours,omitempty"`
	Visibility          Visibility     `json:"visibility"`
	StartDate           time.Time      `json:"start_date"`
	EndDate             time.Time      `json:"end_date"`
	MaxParticipants     int            `json:"max_participants"`
	CurrentParticipants int            `json:"current_participants"`
	IsActive            bool           `json:"is_active"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Validate checks the project's invariants.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", ErrRequired)
	}
	if !p.Visibility.Valid() {
		return NewValidationError("visibility", ErrInvalidEnum)
	}
	if !p.HourAssignment.Valid() {
		return NewValidationError("hour_assignment", ErrInvalidEnum)
	}
	if p.HourAssignment == HourAssignmentAutomatic && (p.AutomaticHours == nil || *p.AutomaticHours <= 0) {
		return Invalidf("automatic_hours", "automatic_hours is required when hour assignment is automatic")
	}
	if p.MaxHours < 0 {
		return NewValidationError("max_hours", ErrOutOfRange)
	}
	if !p.StartDate.Before(p.EndDate) {
		return NewValidationError("end_date", ErrInvalidDateRange)
	}
	if p.MaxParticipants < 1 {
		return Invalidf("max_participants", "must be at least 1")
	}
	if p.CurrentParticipants > p.MaxParticipants {
		return Invalidf("max_participants", "cannot be lower than the current number of participants (%d)", p.CurrentParticipants)
	}
	return nil
}

// AvailableSpots returns max(0, max - current).
func (p *Project) AvailableSpots() int {
	if p.CurrentParticipants >= p.MaxParticipants {
		return 0
	}
	return p.MaxParticipants - p.CurrentParticipants
}

// IsFull reports whether no spots remain.
func (p *Project) IsFull() bool {
	return p.AvailableSpots() == 0
}

// DurationDays returns the number of whole days between start and end.
func (p *Project) DurationDays() int {
	return int(p.EndDate.Sub(p.StartDate).Hours() / 24)
}

// IsAcceptingApplications reports whether the project is an open call that
// still has room and has not ended at now.
func (p *Project) IsAcceptingApplications(now time.Time) bool {
	return p.Visibility == VisibilityConvocatoria &&
		p.IsActive &&
		!now.After(p.EndDate) &&
		p.AvailableSpots() > 0
}

// CheckAcceptingApplications returns a validation error explaining why the
// project cannot take applications at now, or nil.
func (p *Project) CheckAcceptingApplications(now time.Time) error {
	if p.IsAcceptingApplications(now) {
		return nil
	}
	if p.IsActive && p.Visibility == VisibilityConvocatoria && !now.After(p.EndDate) {
		return NewValidationError("project", ErrCapacityExceeded)
	}
	return NewValidationError("project", ErrNotAcceptingApplications)
}

// CheckCapacity returns a capacity validation error when the project is full.
func (p *Project) CheckCapacity() error {
	if p.IsFull() {
		return NewValidationError("max_participants", ErrCapacityExceeded)
	}
	return nil
}

// ContainsDate reports whether the calendar day of d lies within the
// project's [start, end] window, comparing dates only.
func (p *Project) ContainsDate(d time.Time) bool {
	day := DateOf(d)
	return !day.Before(DateOf(p.StartDate)) && !day.After(DateOf(p.EndDate))
}

// IsPubliclyListed reports whether students can see the project.
func (p *Project) IsPubliclyListed() bool {
	return p.IsActive && p.Visibility != VisibilityUnpublished
}

// =============================================================================
// Project Children
// =============================================================================

// ProjectCategory groups projects.
type ProjectCategory struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectRequirement is a prerequisite listed on a project.
type ProjectRequirement struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
	IsMandatory bool   `json:"is_mandatory"`
}

// ProjectDocument references an uploaded file by path or URL. The content is
// never read by this service.
type ProjectDocument struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	Name       string    `json:"name"`
	Reference  string    `json:"reference"`
	IsPublic   bool      `json:"is_public"`
	UploadedBy int64     `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}
