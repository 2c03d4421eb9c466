package domain

import "time"

// =============================================================================
// HourGoal
// =============================================================================

type GoalType string

const (
	GoalAnnual   GoalType = "annual"
	GoalSemester GoalType = "semester"
	GoalMonthly  GoalType = "monthly"
	GoalProject  GoalType = "project"
)

func (g GoalType) Valid() bool {
	switch g {
	case GoalAnnual, GoalSemester, GoalMonthly, GoalProject:
		return true
	}
	return false
}

// HourGoal is a user's target of approved hours within a date range.
type HourGoal struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	GoalType    GoalType  `json:"goal_type"`
	ProjectID   *int64    `json:"project_id,omitempty"`
	TargetHours Hours     `json:"target_hours"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the goal's invariants.
func (g *HourGoal) Validate() error {
	if !g.GoalType.Valid() {
		return NewValidationError("goal_type", ErrInvalidEnum)
	}
	if g.GoalType == GoalProject && g.ProjectID == nil {
		return NewValidationError("project_id", ErrRequired)
	}
	if g.TargetHours <= 0 {
		return Invalidf("target_hours", "must be greater than zero")
	}
	if !g.StartDate.Before(g.EndDate) {
		return NewValidationError("end_date", ErrInvalidDateRange)
	}
	return nil
}

// GoalProgress is the derived state of a goal.
type GoalProgress struct {
	Goal            HourGoal `json:"goal"`
	CompletedHours  Hours    `json:"completed_hours"`
	ProgressPercent float64  `json:"progress_percentage"`
	RemainingHours  Hours    `json:"remaining_hours"`
}

// Progress computes the goal's state given the approved hours in its range.
func (g *HourGoal) Progress(completed Hours) GoalProgress {
	return GoalProgress{
		Goal:            *g,
		CompletedHours:  completed,
		ProgressPercent: Percentage(completed, g.TargetHours),
		RemainingHours:  Remaining(completed, g.TargetHours),
	}
}

// =============================================================================
// HourSummary
// =============================================================================

// HourSummary is a persisted monthly snapshot of one user's hour ledger.
type HourSummary struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Year          int       `json:"year"`
	Month         int       `json:"month"`
	TotalHours    Hours     `json:"total_hours"`
	ApprovedHours Hours     `json:"approved_hours"`
	PendingHours  Hours     `json:"pending_hours"`
	RejectedHours Hours     `json:"rejected_hours"`
	ProjectsCount int       `json:"projects_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}
