package domain

import (
	"strings"
	"time"

	"github.com/artpar/keyhours/internal/core/fsm"
)

// =============================================================================
// HourLog Status
// =============================================================================

type HourStatus string

const (
	HourPending  HourStatus = "pending"
	HourApproved HourStatus = "approved"
	HourRejected HourStatus = "rejected"
)

// HourLogMachine is the hour-log review lifecycle. A rejected entry may be
// resubmitted; an approved one is final.
var HourLogMachine = fsm.New("hour_log", HourPending,
	[]HourStatus{HourPending, HourApproved, HourRejected},
	map[HourStatus][]HourStatus{
		HourPending:  {HourApproved, HourRejected},
		HourApproved: {},
		HourRejected: {HourPending},
	},
)

// =============================================================================
// HourLog
// =============================================================================

// HourLog is one entry in the hour ledger.
type HourLog struct {
	ID                  int64      `json:"id"`
	UserID              int64      `json:"user_id"`
	ProjectID           int64      `json:"project_id"`
	ApplicationID       *int64     `json:"application_id,omitempty"`
	Date                time.Time  `json:"date"`
	StartTime           TimeOfDay  `json:"start_time"`
	EndTime             TimeOfDay  `json:"end_time"`
	Hours               Hours      `json:"hours"`
	ActivityDescription string     `json:"activity_description"`
	SkillsDeveloped     string     `json:"skills_developed"`
	ImpactDescription   string     `json:"impact_description"`
	SupervisorName      string     `json:"supervisor_name"`
	SupervisorContact   string     `json:"supervisor_contact"`
	Status              HourStatus `json:"status"`
	ReviewedBy          *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes         string     `json:"review_notes"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// HourLogInput carries the user-supplied fields of an entry.
type HourLogInput struct {
	ProjectID           int64
	ApplicationID       *int64
	Date                time.Time
	StartTime           TimeOfDay
	EndTime             TimeOfDay
	Hours               Hours
	ActivityDescription string
	SkillsDeveloped     string
	ImpactDescription   string
	SupervisorName      string
	SupervisorContact   string
}

// Validate checks the input's own fields, without reference to the project.
func (in HourLogInput) Validate() error {
	if in.ProjectID == 0 {
		return NewValidationError("project_id", ErrRequired)
	}
	if in.Date.IsZero() {
		return NewValidationError("date", ErrRequired)
	}
	if in.StartTime >= in.EndTime {
		return NewValidationError("end_time", ErrInvalidTimeRange)
	}
	if err := in.Hours.ValidateLogEntry(); err != nil {
		return err
	}
	if strings.TrimSpace(in.ActivityDescription) == "" {
		return NewValidationError("activity_description", ErrRequired)
	}
	return nil
}

// NewHourLog creates a pending entry for userID. Status is always the
// machine's initial state.
func NewHourLog(userID int64, in HourLogInput) (*HourLog, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &HourLog{
		UserID:              userID,
		ProjectID:           in.ProjectID,
		ApplicationID:       in.ApplicationID,
		Date:                DateOf(in.Date),
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		Hours:               in.Hours,
		ActivityDescription: strings.TrimSpace(in.ActivityDescription),
		SkillsDeveloped:     in.SkillsDeveloped,
		ImpactDescription:   in.ImpactDescription,
		SupervisorName:      in.SupervisorName,
		SupervisorContact:   in.SupervisorContact,
		Status:              HourLogMachine.Initial(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// Apply replaces the editable fields of a pending entry.
func (h *HourLog) Apply(in HourLogInput, at time.Time) error {
	if h.Status != HourPending {
		return Invalidf("status", "only pending entries can be edited")
	}
	if in.ProjectID != h.ProjectID {
		return Invalidf("project_id", "project cannot be changed")
	}
	if err := in.Validate(); err != nil {
		return err
	}
	h.ApplicationID = in.ApplicationID
	h.Date = DateOf(in.Date)
	h.StartTime = in.StartTime
	h.EndTime = in.EndTime
	h.Hours = in.Hours
	h.ActivityDescription = strings.TrimSpace(in.ActivityDescription)
	h.SkillsDeveloped = in.SkillsDeveloped
	h.ImpactDescription = in.ImpactDescription
	h.SupervisorName = in.SupervisorName
	h.SupervisorContact = in.SupervisorContact
	h.UpdatedAt = at
	return nil
}

// Review moves a pending entry to approved or rejected and stamps the
// reviewer.
func (h *HourLog) Review(reviewerID int64, to HourStatus, notes string, at time.Time) error {
	if to != HourApproved && to != HourRejected {
		return Invalidf("status", "review status must be %q or %q", HourApproved, HourRejected)
	}
	if err := HourLogMachine.Validate(h.Status, to); err != nil {
		return NewValidationError("status", err)
	}
	h.Status = to
	h.ReviewedBy = &reviewerID
	h.ReviewedAt = &at
	h.ReviewNotes = notes
	h.UpdatedAt = at
	return nil
}

// Resubmit returns a rejected entry to pending and clears the review stamp.
func (h *HourLog) Resubmit(at time.Time) error {
	if err := HourLogMachine.Validate(h.Status, HourPending); err != nil {
		return NewValidationError("status", err)
	}
	h.Status = HourPending
	h.ReviewedBy = nil
	h.ReviewedAt = nil
	h.ReviewNotes = ""
	h.UpdatedAt = at
	return nil
}

// =============================================================================
// Evidence Documents
// =============================================================================

type DocumentType string

const (
	DocumentAttendance  DocumentType = "attendance"
	DocumentCertificate DocumentType = "certificate"
	DocumentPhoto       DocumentType = "photo"
	DocumentReport      DocumentType = "report"
	DocumentOther       DocumentType = "other"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentAttendance, DocumentCertificate, DocumentPhoto, DocumentReport, DocumentOther:
		return true
	}
	return false
}

// HourLogDocument references evidence for one hour-log entry, such as an
// attendance sheet or a photo. Like ProjectDocument it holds a path or URL
// only.
type HourLogDocument struct {
	ID           int64        `json:"id"`
	HourLogID    int64        `json:"hour_log_id"`
	Title        string       `json:"title"`
	DocumentType DocumentType `json:"document_type"`
	Reference    string       `json:"reference"`
	Description  string       `json:"description"`
	UploadedBy   int64        `json:"uploaded_by"`
	UploadedAt   time.Time    `json:"uploaded_at"`
}

// Validate checks the title and document type.
func (d *HourLogDocument) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return NewValidationError("title", ErrRequired)
	}
	if !d.DocumentType.Valid() {
		return NewValidationError("document_type", ErrInvalidEnum)
	}
	return nil
}

// =============================================================================
// Eligibility
// =============================================================================

// CheckHourLogEligibility decides whether userID may log in against project.
// When app is non-nil it must belong to the user and project and be approved
// or in progress; otherwise the user must already be a member.
func CheckHourLogEligibility(in HourLogInput, userID int64, project *Project, app *Application, isMember bool) error {
	if app != nil {
		if app.UserID != userID || app.ProjectID != project.ID {
			return Invalidf("application_id", "application does not belong to this user and project")
		}
		if !app.Status.AllowsHourLogging() {
			return Invalidf("application_id", "application must be approved or in progress, not %s", app.Status)
		}
	} else if !isMember {
		return NewValidationError("project_id", ErrNotEligible)
	}
	if !project.ContainsDate(in.Date) {
		return NewValidationError("date", ErrDateOutsideWindow)
	}
	return nil
}
