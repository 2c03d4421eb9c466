package workflow

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// allPages is the list size used when an operation needs every row.
var allPages = store.ListOptions{Limit: 1000}

// listed is the visibility set students can see.
var listed = []domain.Visibility{domain.VisibilityConvocatoria, domain.VisibilityPublished}

// =============================================================================
// Categories
// =============================================================================

// CreateCategory adds a project category. Names are unique.
func (s *Service) CreateCategory(ctx context.Context, p auth.Principal, name, description string) (*domain.ProjectCategory, error) {
	if err := auth.Authorize(p, auth.ActionManageProjects, auth.Resource{}); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", domain.ErrRequired)
	}
	c := &domain.ProjectCategory{Name: name, Description: description, CreatedAt: s.clock()}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, duplicate("name", fmt.Errorf("category %q already exists", name), err)
	}
	return c, nil
}

// ListCategories lists every category.
func (s *Service) ListCategories(ctx context.Context, p auth.Principal) ([]domain.ProjectCategory, error) {
	if err := auth.Authorize(p, auth.ActionViewProject, auth.Resource{Listed: true}); err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx)
}

// =============================================================================
// Project Registry
// =============================================================================

// ProjectInput describes a new project. Zero MaxParticipants takes the
// default; zero ManagerID makes the creator the manager.
type ProjectInput struct {
	Name            string
	Description     string
	ManagerID       int64
	CategoryID      *int64
	MaxHours        domain.Hours
	HourAssignment  domain.HourAssignment
	AutomaticHours  *domain.Hours
	Visibility      domain.Visibility
	StartDate       time.Time
	EndDate         time.Time
	MaxParticipants int
}

// CreateProject registers a project.
func (s *Service) CreateProject(ctx context.Context, p auth.Principal, in ProjectInput) (*domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionManageProjects, auth.Resource{}); err != nil {
		return nil, err
	}
	now := s.clock()
	project := &domain.Project{
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		ManagerID:       in.ManagerID,
		CategoryID:      in.CategoryID,
		MaxHours:        in.MaxHours,
		HourAssignment:  in.HourAssignment,
		AutomaticHours:  in.AutomaticHours,
		Visibility:      in.Visibility,
		StartDate:       in.StartDate.UTC(),
		EndDate:         in.EndDate.UTC(),
		MaxParticipants: in.MaxParticipants,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if project.ManagerID == 0 {
		project.ManagerID = p.UserID
	}
	if project.HourAssignment == "" {
		project.HourAssignment = domain.HourAssignmentManual
	}
	if project.Visibility == "" {
		project.Visibility = domain.VisibilityUnpublished
	}
	if project.MaxParticipants == 0 {
		project.MaxParticipants = domain.DefaultMaxParticipants
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(tx store.Store) error {
		if err := s.checkProjectRefs(ctx, tx, project); err != nil {
			return err
		}
		return tx.CreateProject(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.Int64("project_id", project.ID),
		zap.String("name", project.Name),
		zap.String("visibility", string(project.Visibility)),
	)
	return project, nil
}

func (s *Service) checkProjectRefs(ctx context.Context, tx store.Store, project *domain.Project) error {
	manager, err := tx.GetUser(ctx, project.ManagerID)
	if err != nil {
		return referenced("manager_id", err)
	}
	if !manager.IsAdmin() {
		return domain.Invalidf("manager_id", "manager must be an administrator")
	}
	if project.CategoryID == nil {
		return nil
	}
	categories, err := tx.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == *project.CategoryID {
			return nil
		}
	}
	return domain.Invalidf("category_id", "referenced category_id does not exist")
}

// ProjectPatch changes the set fields of a project.
type ProjectPatch struct {
	Name            *string
	Description     *string
	ManagerID       *int64
	CategoryID      *int64
	MaxHours        *domain.Hours
	HourAssignment  *domain.HourAssignment
	AutomaticHours  *domain.Hours
	Visibility      *domain.Visibility
	StartDate       *time.Time
	EndDate         *time.Time
	MaxParticipants *int
	IsActive        *bool
}

func (pp ProjectPatch) apply(project *domain.Project) {
	if pp.Name != nil {
		project.Name = strings.TrimSpace(*pp.Name)
	}
	if pp.Description != nil {
		project.Description = *pp.Description
	}
	if pp.ManagerID != nil {
		project.ManagerID = *pp.ManagerID
	}
	if pp.CategoryID != nil {
		project.CategoryID = pp.CategoryID
	}
	if pp.MaxHours != nil {
		project.MaxHours = *pp.MaxHours
	}
	if pp.HourAssignment != nil {
		project.HourAssignment = *pp.HourAssignment
	}
	if pp.AutomaticHours != nil {
		project.AutomaticHours = pp.AutomaticHours
	}
	if pp.Visibility != nil {
		project.Visibility = *pp.Visibility
	}
	if pp.StartDate != nil {
		project.StartDate = pp.StartDate.UTC()
	}
	if pp.EndDate != nil {
		project.EndDate = pp.EndDate.UTC()
	}
	if pp.MaxParticipants != nil {
		project.MaxParticipants = *pp.MaxParticipants
	}
	if pp.IsActive != nil {
		project.IsActive = *pp.IsActive
	}
}

// UpdateProject applies patch. max_participants cannot drop below the
// current member count.
func (s *Service) UpdateProject(ctx context.Context, p auth.Principal, id int64, patch ProjectPatch) (*domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionManageProjects, auth.Resource{}); err != nil {
		return nil, err
	}
	var project *domain.Project
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if project, err = tx.GetProject(ctx, id); err != nil {
			return err
		}
		patch.apply(project)
		project.UpdatedAt = s.clock()
		if err := project.Validate(); err != nil {
			return err
		}
		if err := s.checkProjectRefs(ctx, tx, project); err != nil {
			return err
		}
		return tx.UpdateProject(ctx, project)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// PublishProject sets the project's visibility.
func (s *Service) PublishProject(ctx context.Context, p auth.Principal, id int64, visibility domain.Visibility) (*domain.Project, error) {
	if !visibility.Valid() {
		return nil, domain.NewValidationError("visibility", domain.ErrInvalidEnum)
	}
	project, err := s.UpdateProject(ctx, p, id, ProjectPatch{Visibility: &visibility})
	if err != nil {
		return nil, err
	}
	s.logger.Info("project visibility changed", zap.Int64("project_id", id), zap.String("visibility", string(visibility)))
	return project, nil
}

// DeleteProject removes a project and, by cascade, its children.
func (s *Service) DeleteProject(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.ActionManageProjects, auth.Resource{}); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", zap.Int64("project_id", id))
	return nil
}

// ProjectDetail is a project with its children and the caller's
// membership.
type ProjectDetail struct {
	domain.Project
	AvailableSpots int                         `json:"available_spots"`
	IsFull         bool                        `json:"is_full"`
	DurationDays   int                         `json:"duration_days"`
	IsMember       bool                        `json:"is_member"`
	Requirements   []domain.ProjectRequirement `json:"requirements"`
	Documents      []domain.ProjectDocument    `json:"documents"`
}

// viewProject loads a project and authorizes the principal to see it.
func (s *Service) viewProject(ctx context.Context, p auth.Principal, id int64) (*domain.Project, bool, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, false, err
	}
	member, err := s.store.IsMember(ctx, id, p.UserID)
	if err != nil {
		return nil, false, err
	}
	r := auth.Resource{Listed: project.IsPubliclyListed(), Member: member}
	if err := auth.Authorize(p, auth.ActionViewProject, r); err != nil {
		return nil, false, err
	}
	return project, member, nil
}

// GetProject returns a project visible to the principal. Students see
// public documents only.
func (s *Service) GetProject(ctx context.Context, p auth.Principal, id int64) (*ProjectDetail, error) {
	project, member, err := s.viewProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	requirements, err := s.store.ListRequirements(ctx, id)
	if err != nil {
		return nil, err
	}
	documents, err := s.store.ListDocuments(ctx, id, !p.IsAdmin())
	if err != nil {
		return nil, err
	}
	return &ProjectDetail{
		Project:        *project,
		AvailableSpots: project.AvailableSpots(),
		IsFull:         project.IsFull(),
		DurationDays:   project.DurationDays(),
		IsMember:       member,
		Requirements:   requirements,
		Documents:      documents,
	}, nil
}

// ListProjects lists projects. Students only see active, listed projects.
func (s *Service) ListProjects(ctx context.Context, p auth.Principal, filter store.ProjectFilter, opts store.ListOptions) ([]domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionViewProject, auth.Resource{Listed: true}); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		filter.ActiveOnly = true
		filter.Visibility = intersectVisibility(filter.Visibility, listed)
		if len(filter.Visibility) == 0 {
			return []domain.Project{}, nil
		}
	}
	return s.store.ListProjects(ctx, filter, opts)
}

func intersectVisibility(requested, allowed []domain.Visibility) []domain.Visibility {
	if len(requested) == 0 {
		return allowed
	}
	var out []domain.Visibility
	for _, v := range requested {
		for _, a := range allowed {
			if v == a {
				out = append(out, v)
			}
		}
	}
	return out
}

// PublicProjects returns the newest active published or convocatoria
// projects. It needs no principal.
func (s *Service) PublicProjects(ctx context.Context) ([]domain.Project, error) {
	return s.store.ListProjects(ctx, store.ProjectFilter{
		Visibility: listed,
		ActiveOnly: true,
	}, store.ListOptions{Limit: s.config.PublicProjectsLimit})
}

// ListConvocatorias lists the open calls currently accepting applications.
func (s *Service) ListConvocatorias(ctx context.Context, p auth.Principal, opts store.ListOptions) ([]domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionViewProject, auth.Resource{Listed: true}); err != nil {
		return nil, err
	}
	now := s.clock()
	return s.store.ListProjects(ctx, store.ProjectFilter{
		Visibility: []domain.Visibility{domain.VisibilityConvocatoria},
		ActiveOnly: true,
		OpenOn:     &now,
		HasSpots:   true,
	}, opts)
}

// MyProjects lists the projects the principal belongs to.
func (s *Service) MyProjects(ctx context.Context, p auth.Principal, opts store.ListOptions) ([]domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionViewReports, auth.Self(p)); err != nil {
		return nil, err
	}
	return s.store.ListProjects(ctx, store.ProjectFilter{MemberID: p.UserID}, opts)
}

// =============================================================================
// Membership
// =============================================================================

// admit adds userID to project after the capacity check and resyncs the
// participant count.
func (s *Service) admit(ctx context.Context, tx store.Store, project *domain.Project, userID int64) error {
	member, err := tx.IsMember(ctx, project.ID, userID)
	if err != nil {
		return err
	}
	if member {
		return domain.NewValidationError("user_id", domain.ErrAlreadyMember)
	}
	if err := project.CheckCapacity(); err != nil {
		return err
	}
	if err := tx.AddMember(ctx, project.ID, userID, s.clock()); err != nil {
		return err
	}
	project.CurrentParticipants, err = tx.SyncParticipants(ctx, project.ID)
	return err
}

func (s *Service) release(ctx context.Context, tx store.Store, project *domain.Project, userID int64) error {
	removed, err := tx.RemoveMember(ctx, project.ID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.NewValidationError("user_id", domain.ErrNotMember)
	}
	project.CurrentParticipants, err = tx.SyncParticipants(ctx, project.ID)
	return err
}

// AddMember adds a user to a project.
func (s *Service) AddMember(ctx context.Context, p auth.Principal, projectID, userID int64) (*domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionManageMembers, auth.Resource{}); err != nil {
		return nil, err
	}
	var project *domain.Project
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if project, err = tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return referenced("user_id", err)
		}
		return s.admit(ctx, tx, project, userID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("member added", zap.Int64("project_id", projectID), zap.Int64("user_id", userID))
	return project, nil
}

// RemoveMember removes a user from a project.
func (s *Service) RemoveMember(ctx context.Context, p auth.Principal, projectID, userID int64) (*domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionManageMembers, auth.Resource{}); err != nil {
		return nil, err
	}
	var project *domain.Project
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if project, err = tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		return s.release(ctx, tx, project, userID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("member removed", zap.Int64("project_id", projectID), zap.Int64("user_id", userID))
	return project, nil
}

// JoinProject adds the principal to an active project with room. Unless
// the project is published, the principal needs an approved or
// in-progress application for it.
func (s *Service) JoinProject(ctx context.Context, p auth.Principal, projectID int64) (*domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionJoinProject, auth.Self(p)); err != nil {
		return nil, err
	}
	var project *domain.Project
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if project, err = tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		if !project.IsActive {
			return domain.NewValidationError("project", domain.ErrProjectInactive)
		}
		if project.Visibility != domain.VisibilityPublished {
			app, err := tx.FindActiveApplication(ctx, p.UserID, projectID)
			if err != nil && !store.IsNotFound(err) {
				return err
			}
			if app == nil || !app.Status.AllowsHourLogging() {
				return domain.Invalidf("project", "an approved application is required to join this project")
			}
		}
		return s.admit(ctx, tx, project, p.UserID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("project joined", zap.Int64("project_id", projectID), zap.Int64("user_id", p.UserID))
	return project, nil
}

// LeaveProject removes the principal from a project.
func (s *Service) LeaveProject(ctx context.Context, p auth.Principal, projectID int64) (*domain.Project, error) {
	if err := auth.Authorize(p, auth.ActionLeaveProject, auth.Self(p)); err != nil {
		return nil, err
	}
	var project *domain.Project
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if project, err = tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		return s.release(ctx, tx, project, p.UserID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("project left", zap.Int64("project_id", projectID), zap.Int64("user_id", p.UserID))
	return project, nil
}

// IsMember reports whether the principal belongs to a project.
func (s *Service) IsMember(ctx context.Context, p auth.Principal, projectID int64) (bool, error) {
	if err := auth.Authorize(p, auth.ActionViewReports, auth.Self(p)); err != nil {
		return false, err
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return false, err
	}
	return s.store.IsMember(ctx, projectID, p.UserID)
}

// ListMembers lists a project's members.
func (s *Service) ListMembers(ctx context.Context, p auth.Principal, projectID int64) ([]domain.User, error) {
	if err := auth.Authorize(p, auth.ActionManageMembers, auth.Resource{}); err != nil {
		return nil, err
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, projectID)
}

// =============================================================================
// Requirements and Documents
// =============================================================================

// AddRequirement lists a prerequisite on a project.
func (s *Service) AddRequirement(ctx context.Context, p auth.Principal, projectID int64, description string, mandatory bool) (*domain.ProjectRequirement, error) {
	if err := auth.Authorize(p, auth.ActionManageProjects, auth.Resource{}); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, domain.NewValidationError("description", domain.ErrRequired)
	}
	r := &domain.ProjectRequirement{ProjectID: projectID, Description: description, IsMandatory: mandatory}
	if err := s.store.CreateRequirement(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRequirements lists a visible project's requirements.
func (s *Service) ListRequirements(ctx context.Context, p auth.Principal, projectID int64) ([]domain.ProjectRequirement, error) {
	if _, _, err := s.viewProject(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.store.ListRequirements(ctx, projectID)
}

// DocumentInput references an uploaded file. An empty Reference gets a
// generated storage key.
type DocumentInput struct {
	Name      string
	Reference string
	IsPublic  bool
}

// AddDocument attaches a document reference to a project.
func (s *Service) AddDocument(ctx context.Context, p auth.Principal, projectID int64, in DocumentInput) (*domain.ProjectDocument, error) {
	if err := auth.Authorize(p, auth.ActionManageProjects, auth.Resource{}); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", domain.ErrRequired)
	}
	ref := strings.TrimSpace(in.Reference)
	if ref == "" {
		ref = path.Join("projects", fmt.Sprint(projectID), "documents", uuid.NewString()+path.Ext(name))
	}
	d := &domain.ProjectDocument{
		ProjectID:  projectID,
		Name:       name,
		Reference:  ref,
		IsPublic:   in.IsPublic,
		UploadedBy: p.UserID,
		CreatedAt:  s.clock(),
	}
	if err := s.store.CreateDocument(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments lists a visible project's documents. Students see public
// documents only.
func (s *Service) ListDocuments(ctx context.Context, p auth.Principal, projectID int64) ([]domain.ProjectDocument, error) {
	if _, _, err := s.viewProject(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, projectID, !p.IsAdmin())
}

// =============================================================================
// Project Reports
// =============================================================================

// ProjectStats returns per-project application counts and approved hours.
func (s *Service) ProjectStats(ctx context.Context, p auth.Principal, projectID int64) (*reporting.ProjectStats, error) {
	if err := auth.Authorize(p, auth.ActionViewFleetStats, auth.Resource{}); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.CountApplicationsByStatus(ctx, store.ApplicationFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	totals, err := s.store.SumHours(ctx, store.HourFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	counts := reporting.CountsByStatus(domain.ApplicationMachine.States(), rows)
	return &reporting.ProjectStats{
		ProjectID:           projectID,
		Applications:        reporting.Total(counts),
		ByStatus:            counts,
		ApprovedHours:       totals.ApprovedHours,
		CurrentParticipants: project.CurrentParticipants,
		AvailableSpots:      project.AvailableSpots(),
	}, nil
}

// ProjectDashboard returns registry figures to administrators and the
// principal's own participation to students.
func (s *Service) ProjectDashboard(ctx context.Context, p auth.Principal) (*reporting.ProjectDashboard, error) {
	if err := auth.Authorize(p, auth.ActionViewReports, auth.Self(p)); err != nil {
		return nil, err
	}
	open, err := s.ListConvocatorias(ctx, p, allPages)
	if err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		all, err := s.store.CountProjectsByVisibility(ctx, false)
		if err != nil {
			return nil, err
		}
		active, err := s.store.CountProjectsByVisibility(ctx, true)
		if err != nil {
			return nil, err
		}
		managed, err := s.store.ListProjects(ctx, store.ProjectFilter{ManagerID: p.UserID}, allPages)
		if err != nil {
			return nil, err
		}
		popular, err := s.store.PopularProjects(ctx, s.config.DashboardTopN)
		if err != nil {
			return nil, err
		}
		visibilities := []domain.Visibility{domain.VisibilityUnpublished, domain.VisibilityConvocatoria, domain.VisibilityPublished}
		byVisibility := reporting.CountsByStatus(visibilities, all)
		return &reporting.ProjectDashboard{
			Scope:             "admin",
			TotalProjects:     reporting.Total(byVisibility),
			ActiveProjects:    reporting.Total(reporting.CountsByStatus(visibilities, active)),
			ByVisibility:      byVisibility,
			ManagedProjects:   len(managed),
			PopularProjects:   reporting.TopN(popular, s.config.DashboardTopN),
			OpenConvocatorias: len(open),
		}, nil
	}

	rows, err := s.store.CountApplicationsByStatus(ctx, store.ApplicationFilter{UserID: p.UserID})
	if err != nil {
		return nil, err
	}
	counts := reporting.CountsByStatus(domain.ApplicationMachine.States(), rows)
	return &reporting.ProjectDashboard{
		Scope:             "student",
		OpenConvocatorias: len(open),
		MyApplications:    reporting.Total(counts),
		ApprovedProjects:  counts[domain.ApplicationApproved] + counts[domain.ApplicationInProgress],
		CompletedProjects: counts[domain.ApplicationCompleted],
	}, nil
}
