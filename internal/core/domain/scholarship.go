package domain

import (
	"strings"
	"time"
)

// =============================================================================
// Scholarship
// =============================================================================

type ScholarshipKind string

const (
	ScholarshipExcellence ScholarshipKind = "excellence"
	ScholarshipMerit      ScholarshipKind = "merit"
	ScholarshipNeed       ScholarshipKind = "need"
)

func (k ScholarshipKind) Valid() bool {
	switch k {
	case ScholarshipExcellence, ScholarshipMerit, ScholarshipNeed:
		return true
	}
	return false
}

// Scholarship is a programme with a yearly service-hour requirement.
type Scholarship struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Kind          ScholarshipKind `json:"type"`
	Description   string          `json:"description"`
	RequiredHours Hours           `json:"required_hours"`
	DurationYears int             `json:"duration_years"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Validate checks the scholarship's invariants.
func (s *Scholarship) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return NewValidationError("name", ErrRequired)
	}
	if !s.Kind.Valid() {
		return NewValidationError("type", ErrInvalidEnum)
	}
	if s.RequiredHours <= 0 {
		return Invalidf("required_hours", "must be greater than zero")
	}
	if s.DurationYears < 1 {
		return Invalidf("duration_years", "must be at least 1")
	}
	return nil
}

// =============================================================================
// UserScholarship
// =============================================================================

type UserScholarshipStatus string

const (
	UserScholarshipActive    UserScholarshipStatus = "active"
	UserScholarshipCompleted UserScholarshipStatus = "completed"
	UserScholarshipSuspended UserScholarshipStatus = "suspended"
	UserScholarshipCancelled UserScholarshipStatus = "cancelled"
)

func (s UserScholarshipStatus) Valid() bool {
	switch s {
	case UserScholarshipActive, UserScholarshipCompleted, UserScholarshipSuspended, UserScholarshipCancelled:
		return true
	}
	return false
}

// UserScholarship assigns a scholarship to a user and carries its own hour
// counters. The counters are recomputed from the hour ledger whenever a log
// is approved.
type UserScholarship struct {
	ID                  int64                 `json:"id"`
	UserID              int64                 `json:"user_id"`
	ScholarshipID       int64                 `json:"scholarship_id"`
	Status              UserScholarshipStatus `json:"status"`
	StartDate           time.Time             `json:"start_date"`
	EndDate             *time.Time            `json:"end_date,omitempty"`
	CurrentYearHours    Hours                 `json:"current_year_hours"`
	TotalHoursCompleted Hours                 `json:"total_hours_completed"`
	CreatedAt           time.Time             `json:"created_at"`
}

// NewUserScholarship creates an active assignment starting on start.
func NewUserScholarship(userID, scholarshipID int64, start time.Time, end *time.Time) (*UserScholarship, error) {
	us := &UserScholarship{
		UserID:        userID,
		ScholarshipID: scholarshipID,
		Status:        UserScholarshipActive,
		StartDate:     DateOf(start),
		CreatedAt:     time.Now().UTC(),
	}
	if end != nil {
		e := DateOf(*end)
		if !e.After(us.StartDate) {
			return nil, NewValidationError("end_date", ErrInvalidDateRange)
		}
		us.EndDate = &e
	}
	return us, nil
}

// Progress returns the percentage of the yearly requirement met.
func (us *UserScholarship) Progress(required Hours) float64 {
	return Percentage(us.CurrentYearHours, required)
}

// RemainingHours returns the hours still owed this year.
func (us *UserScholarship) RemainingHours(required Hours) Hours {
	return Remaining(us.CurrentYearHours, required)
}
