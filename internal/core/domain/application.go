package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/artpar/keyhours/internal/core/fsm"
)

// =============================================================================
// Application Status
// =============================================================================

type ApplicationStatus string

const (
	ApplicationPending    ApplicationStatus = "pending"
	ApplicationApproved   ApplicationStatus = "approved"
	ApplicationRejected   ApplicationStatus = "rejected"
	ApplicationInProgress ApplicationStatus = "in_progress"
	ApplicationCompleted  ApplicationStatus = "completed"
	ApplicationCancelled  ApplicationStatus = "cancelled"
)

// ApplicationMachine is the application lifecycle.
var ApplicationMachine = fsm.New("application", ApplicationPending,
	[]ApplicationStatus{
		ApplicationPending, ApplicationApproved, ApplicationRejected,
		ApplicationInProgress, ApplicationCompleted, ApplicationCancelled,
	},
	map[ApplicationStatus][]ApplicationStatus{
		ApplicationPending:    {ApplicationApproved, ApplicationRejected},
		ApplicationApproved:   {ApplicationInProgress, ApplicationCancelled},
		ApplicationInProgress: {ApplicationCompleted, ApplicationCancelled},
		ApplicationCompleted:  {},
		ApplicationRejected:   {},
		ApplicationCancelled:  {},
	},
)

// IsActive reports whether an application in this status blocks a new one
// for the same project.
func (s ApplicationStatus) IsActive() bool {
	return s == ApplicationPending || s == ApplicationApproved || s == ApplicationInProgress
}

// AllowsHourLogging reports whether hours may be logged against an
// application in this status.
func (s ApplicationStatus) AllowsHourLogging() bool {
	return s == ApplicationApproved || s == ApplicationInProgress
}

// HoldsMembership reports whether an application in this status keeps the
// applicant in the project's member set.
func (s ApplicationStatus) HoldsMembership() bool {
	return s == ApplicationApproved || s == ApplicationInProgress || s == ApplicationCompleted
}

// =============================================================================
// Application
// =============================================================================

const (
	DefaultAvailableHoursPerWeek = 5
	MinAvailableHoursPerWeek     = 1
	MaxAvailableHoursPerWeek     = 40
)

// Application is a student's request to join a project.
type Application struct {
	ID                    int64             `json:"id"`
	UserID                int64             `json:"user_id"`
	ProjectID             int64             `json:"project_id"`
	Status                ApplicationStatus `json:"status"`
	Motivation            string            `json:"motivation"`
	RelevantExperience    string            `json:"relevant_experience"`
	AvailableHoursPerWeek int               `json:"available_hours_per_week"`
	StartDatePreference   *time.Time        `json:"start_date_preference,omitempty"`
	AdditionalNotes       string            `json:"additional_notes"`
	AppliedAt             time.Time         `json:"applied_at"`
	ReviewedAt            *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy            *int64            `json:"reviewed_by,omitempty"`
	ReviewNotes           string            `json:"review_notes"`
	HoursCompleted        Hours             `json:"hours_completed"`
	CompletionDate        *time.Time        `json:"completion_date,omitempty"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// ApplicationInput carries the applicant-supplied fields.
type ApplicationInput struct {
	Motivation            string
	RelevantExperience    string
	AvailableHoursPerWeek int
	StartDatePreference   *time.Time
	AdditionalNotes       string
}

// NewApplication creates a pending application.
func NewApplication(userID, projectID int64, in ApplicationInput) (*Application, error) {
	if strings.TrimSpace(in.Motivation) == "" {
		return nil, NewValidationError("motivation", ErrRequired)
	}
	hours := in.AvailableHoursPerWeek
	if hours == 0 {
		hours = DefaultAvailableHoursPerWeek
	}
	if hours < MinAvailableHoursPerWeek || hours > MaxAvailableHoursPerWeek {
		return nil, Invalidf("available_hours_per_week", "must be between %d and %d", MinAvailableHoursPerWeek, MaxAvailableHoursPerWeek)
	}

	now := time.Now().UTC()
	return &Application{
		UserID:                userID,
		ProjectID:             projectID,
		Status:                ApplicationMachine.Initial(),
		Motivation:            strings.TrimSpace(in.Motivation),
		RelevantExperience:    in.RelevantExperience,
		AvailableHoursPerWeek: hours,
		StartDatePreference:   in.StartDatePreference,
		AdditionalNotes:       in.AdditionalNotes,
		AppliedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// Transition moves the application to status to, validated against
// ApplicationMachine. Completion stamps CompletionDate.
func (a *Application) Transition(to ApplicationStatus, at time.Time) error {
	if err := ApplicationMachine.Validate(a.Status, to); err != nil {
		return NewValidationError("status", err)
	}
	a.Status = to
	a.UpdatedAt = at
	if to == ApplicationCompleted {
		done := at
		a.CompletionDate = &done
	}
	return nil
}

// Review records a reviewer decision. An approved application may be
// reviewed again as rejected, which withdraws the approval; every other
// move follows ApplicationMachine.
func (a *Application) Review(reviewerID int64, to ApplicationStatus, notes string, at time.Time) error {
	if to != ApplicationApproved && to != ApplicationRejected {
		return Invalidf("status", "review status must be %q or %q", ApplicationApproved, ApplicationRejected)
	}
	if a.Status == ApplicationApproved && to == ApplicationRejected {
		a.Status = to
		a.UpdatedAt = at
	} else if err := a.Transition(to, at); err != nil {
		return err
	}
	a.ReviewedBy = &reviewerID
	a.ReviewedAt = &at
	a.ReviewNotes = notes
	return nil
}

// CanWithdraw reports whether an application in this status may be
// cancelled by its applicant.
func (s ApplicationStatus) CanWithdraw() bool {
	return s == ApplicationPending || s == ApplicationApproved || s == ApplicationInProgress
}

// Withdraw cancels the application on the applicant's behalf. Pending
// applications may be withdrawn as well as approved and in-progress ones;
// terminal applications may not.
func (a *Application) Withdraw(at time.Time) error {
	if !a.Status.CanWithdraw() {
		return NewValidationError("status", &fsm.TransitionError[ApplicationStatus]{
			Machine: ApplicationMachine.Name(),
			From:    a.Status,
			To:      ApplicationCancelled,
		})
	}
	a.Status = ApplicationCancelled
	a.UpdatedAt = at
	return nil
}

// Progress returns the percentage of the project's max hours completed.
func (a *Application) Progress(maxHours Hours) float64 {
	return Percentage(a.HoursCompleted, maxHours)
}

// RemainingHours returns the project's max hours not yet completed.
func (a *Application) RemainingHours(maxHours Hours) Hours {
	return Remaining(a.HoursCompleted, maxHours)
}

// =============================================================================
// Notifications
// =============================================================================

type NotificationType string

const (
	NotificationSubmitted        NotificationType = "application_submitted"
	NotificationReviewed         NotificationType = "application_reviewed"
	NotificationApproved         NotificationType = "application_approved"
	NotificationRejected         NotificationType = "application_rejected"
	NotificationProjectStarted   NotificationType = "project_started"
	NotificationProjectCompleted NotificationType = "project_completed"
	NotificationHoursUpdated     NotificationType = "hours_updated"
)

// Notification is a record addressed to a user about an application.
type Notification struct {
	ID            int64            `json:"id"`
	ApplicationID int64            `json:"application_id"`
	RecipientID   int64            `json:"recipient_id"`
	Type          NotificationType `json:"notification_type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	IsRead        bool             `json:"is_read"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NotificationForStatus builds the notification sent when an application
// enters status. The recipient is the applicant except for cancellations,
// which go to the project manager.
func NotificationForStatus(app *Application, project *Project, status ApplicationStatus, at time.Time) Notification {
	n := Notification{
		ApplicationID: app.ID,
		RecipientID:   app.UserID,
		CreatedAt:     at,
	}
	switch status {
	case ApplicationPending:
		n.Type = NotificationSubmitted
		n.RecipientID = project.ManagerID
		n.Title = "New application received"
		n.Message = fmt.Sprintf("A new application was submitted for %q.", project.Name)
	case ApplicationApproved:
		n.Type = NotificationApproved
		n.Title = "Application approved"
		n.Message = fmt.Sprintf("Your application to %q has been approved.", project.Name)
	case ApplicationRejected:
		n.Type = NotificationRejected
		n.Title = "Application rejected"
		n.Message = fmt.Sprintf("Your application to %q has been rejected.", project.Name)
	case ApplicationInProgress:
		n.Type = NotificationProjectStarted
		n.Title = "Project started"
		n.Message = fmt.Sprintf("Your participation in %q has started.", project.Name)
	case ApplicationCompleted:
		n.Type = NotificationProjectCompleted
		n.Title = "Project completed"
		n.Message = fmt.Sprintf("Your participation in %q is complete.", project.Name)
	case ApplicationCancelled:
		n.Type = NotificationReviewed
		n.RecipientID = project.ManagerID
		n.Title = "Application cancelled"
		n.Message = fmt.Sprintf("An application to %q was cancelled.", project.Name)
	default:
		n.Type = NotificationReviewed
		n.Title = "Application updated"
		n.Message = fmt.Sprintf("Your application to %q changed to %s.", project.Name, status)
	}
	return n
}

// HoursUpdatedNotification tells the applicant that approved hours changed.
func HoursUpdatedNotification(app *Application, project *Project, at time.Time) Notification {
	return Notification{
		ApplicationID: app.ID,
		RecipientID:   app.UserID,
		Type:          NotificationHoursUpdated,
		Title:         "Hours updated",
		Message:       fmt.Sprintf("You now have %s approved hours in %q.", app.HoursCompleted, project.Name),
		CreatedAt:     at,
	}
}

// =============================================================================
// Evaluations
// =============================================================================

type Recommendation string

const (
	RecommendApprove   Recommendation = "approve"
	RecommendReject    Recommendation = "reject"
	RecommendInterview Recommendation = "interview"
)

// Evaluation is an administrator's scored assessment of an application.
type Evaluation struct {
	ID             int64          `json:"id"`
	ApplicationID  int64          `json:"application_id"`
	EvaluatorID    int64          `json:"evaluator_id"`
	Score          int            `json:"score"`
	Comments       string         `json:"comments"`
	Recommendation Recommendation `json:"recommendation"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Validate checks score bounds and the recommendation value.
func (e *Evaluation) Validate() error {
	if e.Score < 1 || e.Score > 10 {
		return Invalidf("score", "must be between 1 and 10")
	}
	switch e.Recommendation {
	case RecommendApprove, RecommendReject, RecommendInterview:
	default:
		return NewValidationError("recommendation", ErrInvalidEnum)
	}
	return nil
}
