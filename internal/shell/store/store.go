package store

import (
	"context"
	"time"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for KeyHours entities.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context, filter UserFilter, opts ListOptions) ([]domain.User, error)
	GetUserStats(ctx context.Context) (reporting.UserStats, error)

	// Scholarship operations
	CreateScholarship(ctx context.Context, s *domain.Scholarship) error
	GetScholarship(ctx context.Context, id int64) (*domain.Scholarship, error)
	ListScholarships(ctx context.Context, activeOnly bool) ([]domain.Scholarship, error)
	CreateUserScholarship(ctx context.Context, us *domain.UserScholarship) error
	GetUserScholarship(ctx context.Context, id int64) (*domain.UserScholarship, error)
	ListUserScholarships(ctx context.Context, userID int64) ([]domain.UserScholarship, error)
	CountActiveScholarships(ctx context.Context, userID int64) (int, error)
	// SyncScholarshipHours recomputes the hour counters of every active
	// scholarship held by userID from the approved ledger.
	SyncScholarshipHours(ctx context.Context, userID int64, year int) error

	// Category operations
	CreateCategory(ctx context.Context, c *domain.ProjectCategory) error
	ListCategories(ctx context.Context) ([]domain.ProjectCategory, error)

	// Project operations
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, id int64) (*domain.Project, error)
	UpdateProject(ctx context.Context, p *domain.Project) error
	DeleteProject(ctx context.Context, id int64) error
	ListProjects(ctx context.Context, filter ProjectFilter, opts ListOptions) ([]domain.Project, error)
	CountProjectsByVisibility(ctx context.Context, activeOnly bool) ([]reporting.StatusCount, error)
	PopularProjects(ctx context.Context, limit int) ([]reporting.Ranked, error)

	// Membership operations
	AddMember(ctx context.Context, projectID, userID int64, at time.Time) error
	RemoveMember(ctx context.Context, projectID, userID int64) (bool, error)
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	ListMembers(ctx context.Context, projectID int64) ([]domain.User, error)
	// SyncParticipants sets current_participants to the member count and
	// returns the new value.
	SyncParticipants(ctx context.Context, projectID int64) (int, error)

	// Requirement and document operations
	CreateRequirement(ctx context.Context, r *domain.ProjectRequirement) error
	ListRequirements(ctx context.Context, projectID int64) ([]domain.ProjectRequirement, error)
	CreateDocument(ctx context.Context, d *domain.ProjectDocument) error
	ListDocuments(ctx context.Context, projectID int64, publicOnly bool) ([]domain.ProjectDocument, error)

	// Application operations
	CreateApplication(ctx context.Context, app *domain.Application) error
	GetApplication(ctx context.Context, id int64) (*domain.Application, error)
	GetApplications(ctx context.Context, ids []int64) ([]domain.Application, error)
	UpdateApplication(ctx context.Context, app *domain.Application) error
	ListApplications(ctx context.Context, filter ApplicationFilter, opts ListOptions) ([]domain.Application, error)
	FindActiveApplication(ctx context.Context, userID, projectID int64) (*domain.Application, error)
	CountApplicationsByStatus(ctx context.Context, filter ApplicationFilter) ([]reporting.StatusCount, error)
	// SyncApplicationHours sets hours_completed to the approved hours logged
	// against the application and returns the new value.
	SyncApplicationHours(ctx context.Context, applicationID int64) (domain.Hours, error)

	// Notification operations
	CreateNotification(ctx context.Context, n *domain.Notification) error
	GetNotification(ctx context.Context, id int64) (*domain.Notification, error)
	ListNotifications(ctx context.Context, recipientID int64, unreadOnly bool, opts ListOptions) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	CountUnreadNotifications(ctx context.Context, recipientID int64) (int, error)

	// Evaluation operations
	CreateEvaluation(ctx context.Context, e *domain.Evaluation) error
	ListEvaluations(ctx context.Context, applicationID int64) ([]domain.Evaluation, error)

	// Hour log operations
	CreateHourLog(ctx context.Context, h *domain.HourLog) error
	GetHourLog(ctx context.Context, id int64) (*domain.HourLog, error)
	GetHourLogs(ctx context.Context, ids []int64) ([]domain.HourLog, error)
	UpdateHourLog(ctx context.Context, h *domain.HourLog) error
	DeleteHourLog(ctx context.Context, id int64) error
	ListHourLogs(ctx context.Context, filter HourFilter, opts ListOptions) ([]domain.HourLog, error)
	SumHours(ctx context.Context, filter HourFilter) (reporting.StatusTotals, error)
	SumHoursByMonth(ctx context.Context, filter HourFilter) ([]reporting.MonthBucket, error)
	TopContributors(ctx context.Context, limit int) ([]reporting.Ranked, error)
	CreateHourLogDocument(ctx context.Context, d *domain.HourLogDocument) error
	ListHourLogDocuments(ctx context.Context, hourLogID int64) ([]domain.HourLogDocument, error)

	// Goal operations
	CreateGoal(ctx context.Context, g *domain.HourGoal) error
	GetGoal(ctx context.Context, id int64) (*domain.HourGoal, error)
	ListGoals(ctx context.Context, userID int64) ([]domain.HourGoal, error)

	// Summary operations
	// RefreshHourSummaries upserts one HourSummary per user with entries in
	// year/month and returns the number of rows written.
	RefreshHourSummaries(ctx context.Context, year, month int, at time.Time) (int, error)
	ListHourSummaries(ctx context.Context, userID int64, year int) ([]domain.HourSummary, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// =============================================================================
// Filters
// =============================================================================

// Zero-valued filter fields match everything.

// UserFilter narrows ListUsers.
type UserFilter struct {
	UserType   domain.UserType
	ActiveOnly bool
	Search     string
}

// ProjectFilter narrows ListProjects.
type ProjectFilter struct {
	ManagerID  int64
	MemberID   int64
	CategoryID int64
	Visibility []domain.Visibility
	ActiveOnly bool
	// OpenOn keeps projects whose window contains the date.
	OpenOn *time.Time
	// HasSpots keeps projects below capacity.
	HasSpots bool
}

// ApplicationFilter narrows application queries.
type ApplicationFilter struct {
	UserID    int64
	ProjectID int64
	Status    []domain.ApplicationStatus
}

// HourFilter narrows hour log queries. From and To are inclusive dates.
type HourFilter struct {
	UserID        int64
	ProjectID     int64
	ApplicationID int64
	Status        []domain.HourStatus
	From          *time.Time
	To            *time.Time
	Year          int
	Month         int
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*txSQLiteStore)(nil)
)
