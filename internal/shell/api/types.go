package api

import (
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/api/middleware"
)

// =============================================================================
// Request Types
// =============================================================================

// TokenRequest is the request body for POST /auth/token.
type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileRequest holds the profile fields shared by the user requests.
type ProfileRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Carnet    string `json:"carnet,omitempty" validate:"omitempty,carnet"`
	Phone     string `json:"phone,omitempty" validate:"max=20"`
	Career    string `json:"career,omitempty" validate:"max=100"`
	Semester  int    `json:"semester,omitempty" validate:"omitempty,min=1,max=12"`
}

// RegisterUserRequest is the request body for POST /users.
type RegisterUserRequest struct {
	ProfileRequest
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"user_type,omitempty" validate:"omitempty,oneof=student admin"`
}

// CreateStudentRequest is the request body for POST /users/students.
type CreateStudentRequest struct {
	ProfileRequest
	Carnet string `json:"carnet" validate:"required,carnet"`
}

// UpdateUserRequest is the request body for PATCH /users/{id}. Nil fields
// are left unchanged.
type UpdateUserRequest struct {
	Email                 *string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName             *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=150"`
	LastName              *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=150"`
	Phone                 *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Career                *string `json:"career,omitempty" validate:"omitempty,max=100"`
	Semester              *int    `json:"semester,omitempty" validate:"omitempty,min=1,max=12"`
	Password              *string `json:"password,omitempty"`
	Carnet                *string `json:"carnet,omitempty" validate:"omitempty,carnet"`
	ScholarshipType       *string `json:"scholarship_type,omitempty"`
	ScholarshipPercentage *int    `json:"scholarship_percentage,omitempty" validate:"omitempty,min=0,max=100"`
	IsActive              *bool   `json:"is_active,omitempty"`
}

// ScholarshipRequest is the request body for POST /scholarships.
type ScholarshipRequest struct {
	Name          string       `json:"name" validate:"required,max=100"`
	Type          string       `json:"type" validate:"required,oneof=excellence merit need"`
	Description   string       `json:"description,omitempty"`
	RequiredHours domain.Hours `json:"required_hours" validate:"gt=0"`
	DurationYears int          `json:"duration_years" validate:"min=1"`
}

// AssignScholarshipRequest is the request body for POST /users/{id}/scholarships.
type AssignScholarshipRequest struct {
	ScholarshipID int64  `json:"scholarship_id" validate:"required"`
	StartDate     string `json:"start_date" validate:"required,date"`
	EndDate       string `json:"end_date,omitempty" validate:"omitempty,date"`
}

// CategoryRequest is the request body for POST /categories.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty"`
}

// ProjectRequest is the request body for POST /projects.
type ProjectRequest struct {
	Name            string        `json:"name" validate:"required,max=200"`
	Description     string        `json:"description,omitempty"`
	ManagerID       int64         `json:"manager_id,omitempty"`
	CategoryID      *int64        `json:"category_id,omitempty"`
	MaxHours        domain.Hours  `json:"max_hours" validate:"gte=0"`
	HourAssignment  string        `json:"hour_assignment,omitempty" validate:"omitempty,oneof=automatic manual"`
	AutomaticHours  *domain.Hours `json:"automatic_hours,omitempty"`
	Visibility      string        `json:"visibility,omitempty" validate:"omitempty,oneof=unpublished convocatoria published"`
	StartDate       string        `json:"start_date" validate:"required,date"`
	EndDate         string        `json:"end_date" validate:"required,date"`
	MaxParticipants int           `json:"max_participants,omitempty" validate:"omitempty,min=1"`
}

// UpdateProjectRequest is the request body for PATCH /projects/{id}.
type UpdateProjectRequest struct {
	Name            *string       `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string       `json:"description,omitempty"`
	ManagerID       *int64        `json:"manager_id,omitempty"`
	CategoryID      *int64        `json:"category_id,omitempty"`
	MaxHours        *domain.Hours `json:"max_hours,omitempty"`
	HourAssignment  *string       `json:"hour_assignment,omitempty" validate:"omitempty,oneof=automatic manual"`
	AutomaticHours  *domain.Hours `json:"automatic_hours,omitempty"`
	Visibility      *string       `json:"visibility,omitempty" validate:"omitempty,oneof=unpublished convocatoria published"`
	StartDate       *string       `json:"start_date,omitempty" validate:"omitempty,date"`
	EndDate         *string       `json:"end_date,omitempty" validate:"omitempty,date"`
	MaxParticipants *int          `json:"max_participants,omitempty" validate:"omitempty,min=1"`
	IsActive        *bool         `json:"is_active,omitempty"`
}

// PublishRequest is the request body for POST /projects/{id}/publish.
type PublishRequest struct {
	Visibility string `json:"visibility" validate:"required,oneof=unpublished convocatoria published"`
}

// MemberRequest is the request body for POST /projects/{id}/members.
type MemberRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// RequirementRequest is the request body for POST /projects/{id}/requirements.
type RequirementRequest struct {
	Description string `json:"description" validate:"required"`
	IsMandatory bool   `json:"is_mandatory"`
}

// DocumentRequest is the request body for POST /projects/{id}/documents.
type DocumentRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Reference string `json:"reference,omitempty" validate:"max=500"`
	IsPublic  bool   `json:"is_public"`
}

// HourDocumentRequest is the request body for POST /hours/{id}/documents.
type HourDocumentRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	DocumentType string `json:"document_type" validate:"required,oneof=attendance certificate photo report other"`
	Reference    string `json:"reference,omitempty" validate:"max=500"`
	Description  string `json:"description,omitempty"`
}

// ApplicationRequest is the request body for POST /applications.
type ApplicationRequest struct {
	ProjectID             int64  `json:"project_id" validate:"required,gt=0"`
	Motivation            string `json:"motivation" validate:"required"`
	RelevantExperience    string `json:"relevant_experience,omitempty"`
	AvailableHoursPerWeek int    `json:"available_hours_per_week" validate:"min=0,max=168"`
	StartDatePreference   string `json:"start_date_preference,omitempty" validate:"omitempty,date"`
	AdditionalNotes       string `json:"additional_notes,omitempty"`
}

// StatusRequest is the request body of the application review and status
// endpoints.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes,omitempty"`
}

// EvaluationRequest is the request body for POST /applications/{id}/evaluations.
type EvaluationRequest struct {
	Score          int    `json:"score" validate:"min=1,max=10"`
	Comments       string `json:"comments,omitempty"`
	Recommendation string `json:"recommendation" validate:"required,oneof=approve reject interview"`
}

// BulkApplicationRequest is the request body for POST /applications/bulk.
type BulkApplicationRequest struct {
	IDs    []int64 `json:"application_ids" validate:"required,min=1,dive,gt=0"`
	Action string  `json:"action" validate:"required,oneof=approve reject cancel"`
	Notes  string  `json:"notes,omitempty"`
}

// HourLogRequest is the request body for POST /hours and PATCH /hours/{id}.
type HourLogRequest struct {
	ProjectID           int64        `json:"project_id"`
	ApplicationID       *int64       `json:"application_id,omitempty"`
	Date                string       `json:"date" validate:"required,date"`
	StartTime           string       `json:"start_time" validate:"required,clock"`
	EndTime             string       `json:"end_time" validate:"required,clock"`
	Hours               domain.Hours `json:"hours" validate:"hours"`
	ActivityDescription string       `json:"activity_description" validate:"required"`
	SkillsDeveloped     string       `json:"skills_developed,omitempty"`
	ImpactDescription   string       `json:"impact_description,omitempty"`
	SupervisorName      string       `json:"supervisor_name,omitempty" validate:"max=100"`
	SupervisorContact   string       `json:"supervisor_contact,omitempty" validate:"max=100"`
}

// HourReviewRequest is the request body for POST /hours/{id}/review.
type HourReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Notes  string `json:"notes,omitempty"`
}

// BulkHourReviewRequest is the request body for POST /hours/bulk-review.
type BulkHourReviewRequest struct {
	IDs    []int64 `json:"hour_log_ids" validate:"required,min=1,dive,gt=0"`
	Status string  `json:"status" validate:"required,oneof=approved rejected"`
	Notes  string  `json:"notes,omitempty"`
}

// GoalRequest is the request body for POST /goals.
type GoalRequest struct {
	GoalType    string       `json:"goal_type" validate:"required,oneof=annual semester monthly project"`
	ProjectID   *int64       `json:"project_id,omitempty"`
	TargetHours domain.Hours `json:"target_hours" validate:"gt=0"`
	StartDate   string       `json:"start_date" validate:"required,date"`
	EndDate     string       `json:"end_date" validate:"required,date"`
	Description string       `json:"description,omitempty"`
}

// RefreshRequest is the request body for POST /summaries/refresh. Zero
// values select the current month.
type RefreshRequest struct {
	Year  int `json:"year,omitempty" validate:"omitempty,min=2000,max=9999"`
	Month int `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the body of every error response.
type ErrorResponse = middleware.ErrorResponse

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for /ready.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// CountResponse reports how many rows a bulk operation changed.
type CountResponse struct {
	Affected int `json:"affected"`
}

// MembershipResponse is the response for GET /projects/{id}/is-member.
type MembershipResponse struct {
	ProjectID int64 `json:"project_id"`
	IsMember  bool  `json:"is_member"`
}

// ListResponse wraps a page of results.
type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
