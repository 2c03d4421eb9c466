package reporting

import (
	"github.com/artpar/keyhours/internal/core/domain"
)

// =============================================================================
// Hour Stats
// =============================================================================

// HourStats summarizes one user's ledger.
type HourStats struct {
	StatusTotals
	CurrentMonthHours domain.Hours `json:"current_month_hours"`
	CurrentYearHours  domain.Hours `json:"current_year_hours"`
}

// =============================================================================
// Dashboards
// =============================================================================

// HourDashboard is the role-dependent hours dashboard. Admin-only fields
// are omitted for students.
type HourDashboard struct {
	Scope          string           `json:"scope"`
	TotalHours     domain.Hours     `json:"total_hours"`
	ApprovedHours  domain.Hours     `json:"approved_hours"`
	PendingHours   domain.Hours     `json:"pending_hours"`
	TotalLogs      int              `json:"total_logs"`
	PendingReviews int              `json:"pending_reviews,omitempty"`
	TopUsers       []RankedHours    `json:"top_users,omitempty"`
	ProjectsWorked int              `json:"projects_with_hours"`
	RecentLogs     []domain.HourLog `json:"recent_logs,omitempty"`
}

// ApplicationDashboard is the role-dependent application dashboard.
type ApplicationDashboard struct {
	Scope               string                           `json:"scope"`
	Total               int                              `json:"total_applications"`
	ByStatus            map[domain.ApplicationStatus]int `json:"by_status"`
	TopProjects         []Ranked                         `json:"top_projects,omitempty"`
	UnreadNotifications int                              `json:"unread_notifications"`
}

// ProjectDashboard is the role-dependent project dashboard.
type ProjectDashboard struct {
	Scope             string                    `json:"scope"`
	TotalProjects     int                       `json:"total_projects,omitempty"`
	ActiveProjects    int                       `json:"active_projects,omitempty"`
	ByVisibility      map[domain.Visibility]int `json:"by_visibility,omitempty"`
	ManagedProjects   int                       `json:"my_projects,omitempty"`
	PopularProjects   []Ranked                  `json:"popular_projects,omitempty"`
	OpenConvocatorias int                       `json:"available_convocatorias"`
	MyApplications    int                       `json:"my_applications,omitempty"`
	ApprovedProjects  int                       `json:"approved_projects,omitempty"`
	CompletedProjects int                       `json:"completed_projects,omitempty"`
}

// ProjectStats are the per-project figures.
type ProjectStats struct {
	ProjectID           int64                            `json:"project_id"`
	Applications        int                              `json:"total_applications"`
	ByStatus            map[domain.ApplicationStatus]int `json:"by_status"`
	ApprovedHours       domain.Hours                     `json:"total_hours_logged"`
	CurrentParticipants int                              `json:"current_participants"`
	AvailableSpots      int                              `json:"available_spots"`
}

// UserStats are the fleet-wide user figures.
type UserStats struct {
	TotalUsers        int `json:"total_users" db:"total_users"`
	Students          int `json:"total_students" db:"students"`
	Admins            int `json:"total_admins" db:"admins"`
	ActiveUsers       int `json:"active_users" db:"active_users"`
	StudentsWithHours int `json:"students_with_hours" db:"students_with_hours"`
}

// UserDashboard is a single user's headline figures.
type UserDashboard struct {
	TotalHours         domain.Hours `json:"total_hours"`
	CompletedProjects  int          `json:"completed_projects"`
	ActiveScholarships int          `json:"active_scholarships"`
}

// ScholarshipProgress is the derived state of a user scholarship.
type ScholarshipProgress struct {
	Assignment      domain.UserScholarship `json:"assignment"`
	Scholarship     domain.Scholarship     `json:"scholarship"`
	ProgressPercent float64                `json:"progress_percentage"`
	RemainingHours  domain.Hours           `json:"remaining_hours"`
}

// NewScholarshipProgress derives progress for us against s.
func NewScholarshipProgress(us domain.UserScholarship, s domain.Scholarship) ScholarshipProgress {
	return ScholarshipProgress{
		Assignment:      us,
		Scholarship:     s,
		ProgressPercent: us.Progress(s.RequiredHours),
		RemainingHours:  us.RemainingHours(s.RequiredHours),
	}
}

// ApplicationProgress is the derived state of one application.
type ApplicationProgress struct {
	ApplicationID   int64        `json:"application_id"`
	HoursCompleted  domain.Hours `json:"hours_completed"`
	MaxHours        domain.Hours `json:"max_hours"`
	ProgressPercent float64      `json:"progress_percentage"`
	RemainingHours  domain.Hours `json:"remaining_hours"`
}

// NewApplicationProgress derives progress of app within project.
func NewApplicationProgress(app domain.Application, project domain.Project) ApplicationProgress {
	return ApplicationProgress{
		ApplicationID:   app.ID,
		HoursCompleted:  app.HoursCompleted,
		MaxHours:        project.MaxHours,
		ProgressPercent: app.Progress(project.MaxHours),
		RemainingHours:  app.RemainingHours(project.MaxHours),
	}
}
