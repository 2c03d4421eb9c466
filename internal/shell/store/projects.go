package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
)

// =============================================================================
// Category Operations
// =============================================================================

type categoryRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	CreatedAt   string `db:"created_at"`
}

func (q queries) CreateCategory(ctx context.Context, c *domain.ProjectCategory) error {
	res, err := q.exec.NamedExecContext(ctx,
		`INSERT INTO project_categories (name, description, created_at) VALUES (:name, :description, :created_at)`,
		map[string]any{
			"name":        c.Name,
			"description": c.Description,
			"created_at":  formatTime(c.CreatedAt),
		})
	if err != nil {
		return wrapErr("CreateCategory", "category", 0, err)
	}
	c.ID = lastID(res)
	return nil
}

func (q queries) ListCategories(ctx context.Context) ([]domain.ProjectCategory, error) {
	var rows []categoryRow
	if err := q.exec.SelectContext(ctx, &rows, `SELECT * FROM project_categories ORDER BY name`); err != nil {
		return nil, wrapErr("ListCategories", "category", 0, err)
	}
	out := make([]domain.ProjectCategory, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ProjectCategory{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			CreatedAt:   parseTime(r.CreatedAt),
		})
	}
	return out, nil
}

// =============================================================================
// Project Operations
// =============================================================================

type projectRow struct {
	ID                  int64         `db:"id"`
	Name                string        `db:"name"`
	Description         string        `db:"description"`
	ManagerID           int64         `db:"manager_id"`
	CategoryID          *int64        `db:"category_id"`
	MaxHours            domain.Hours  `db:"max_hours"`
	HourAssignment      string        `db:"hour_assignment"`
	AutomaticHours      *domain.Hours `db:"automatic_hours"`
	Visibility          string        `db:"visibility"`
	StartDate           string        `db:"start_date"`
	EndDate             string        `db:"end_date"`
	MaxParticipants     int           `db:"max_participants"`
	CurrentParticipants int           `db:"current_participants"`
	IsActive            bool          `db:"is_active"`
	CreatedAt           string        `db:"created_at"`
	UpdatedAt           string        `db:"updated_at"`
}

func projectToRow(p *domain.Project) map[string]any {
	var automatic *int64
	if p.AutomaticHours != nil {
		v := int64(*p.AutomaticHours)
		automatic = &v
	}
	return map[string]any{
		"id":                   p.ID,
		"name":                 p.Name,
		"description":          p.Description,
		"manager_id":           p.ManagerID,
		"category_id":          p.CategoryID,
		"max_hours":            int64(p.MaxHours),
		"hour_assignment":      string(p.HourAssignment),
		"automatic_hours":      automatic,
		"visibility":           string(p.Visibility),
		"start_date":           formatTime(p.StartDate),
		"end_date":             formatTime(p.EndDate),
		"max_participants":     p.MaxParticipants,
		"current_participants": p.CurrentParticipants,
		"is_active":            boolInt(p.IsActive),
		"created_at":           formatTime(p.CreatedAt),
		"updated_at":           formatTime(p.UpdatedAt),
	}
}

func rowToProject(row *projectRow) *domain.Project {
	return &domain.Project{
		ID:                  row.ID,
		Name:                row.Name,
		Description:         row.Description,
		ManagerID:           row.ManagerID,
		CategoryID:          row.CategoryID,
		MaxHours:            row.MaxHours,
		HourAssignment:      domain.HourAssignment(row.HourAssignment),
		AutomaticHours:      row.AutomaticHours,
		Visibility:          domain.Visibility(row.Visibility),
		StartDate:           parseTime(row.StartDate),
		EndDate:             parseTime(row.EndDate),
		MaxParticipants:     row.MaxParticipants,
		CurrentParticipants: row.CurrentParticipants,
		IsActive:            row.IsActive,
		CreatedAt:           parseTime(row.CreatedAt),
		UpdatedAt:           parseTime(row.UpdatedAt),
	}
}

func (q queries) CreateProject(ctx context.Context, p *domain.Project) error {
	query := `
		INSERT INTO projects (
			name, description, manager_id, category_id, max_hours, hour_assignment,
			automatic_hours, visibility, start_date, end_date, max_participants,
			current_participants, is_active, created_at, updated_at
		) VALUES (
			:name, :description, :manager_id, :category_id, :max_hours, :hour_assignment,
			:automatic_hours, :visibility, :start_date, :end_date, :max_participants,
			:current_participants, :is_active, :created_at, :updated_at
		)`

	res, err := q.exec.NamedExecContext(ctx, query, projectToRow(p))
	if err != nil {
		return wrapErr("CreateProject", "project", 0, err)
	}
	p.ID = lastID(res)
	return nil
}

func (q queries) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	var row projectRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM projects WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProject", "project", idString(id), "project not found", ErrNotFound)
		}
		return nil, wrapErr("GetProject", "project", id, err)
	}
	return rowToProject(&row), nil
}

// UpdateProject writes every column except current_participants, which only
// SyncParticipants maintains.
func (q queries) UpdateProject(ctx context.Context, p *domain.Project) error {
	query := `
		UPDATE projects SET
			name = :name,
			description = :description,
			manager_id = :manager_id,
			category_id = :category_id,
			max_hours = :max_hours,
			hour_assignment = :hour_assignment,
			automatic_hours = :automatic_hours,
			visibility = :visibility,
			start_date = :start_date,
			end_date = :end_date,
			max_participants = :max_participants,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := q.exec.NamedExecContext(ctx, query, projectToRow(p))
	if err != nil {
		return wrapErr("UpdateProject", "project", p.ID, err)
	}
	if affected(res) == 0 {
		return NewStoreError("UpdateProject", "project", idString(p.ID), "project not found", ErrNotFound)
	}
	return nil
}

func (q queries) DeleteProject(ctx context.Context, id int64) error {
	res, err := q.exec.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return wrapErr("DeleteProject", "project", id, err)
	}
	if affected(res) == 0 {
		return NewStoreError("DeleteProject", "project", idString(id), "project not found", ErrNotFound)
	}
	return nil
}

func (q queries) ListProjects(ctx context.Context, filter ProjectFilter, opts ListOptions) ([]domain.Project, error) {
	opts = opts.Normalize()

	var w where
	if filter.ManagerID != 0 {
		w.add("p.manager_id = ?", filter.ManagerID)
	}
	if filter.MemberID != 0 {
		w.add("EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)", filter.MemberID)
	}
	if filter.CategoryID != 0 {
		w.add("p.category_id = ?", filter.CategoryID)
	}
	in(&w, "p.visibility", filter.Visibility)
	if filter.ActiveOnly {
		w.add("p.is_active = 1")
	}
	if filter.OpenOn != nil {
		w.add("p.end_date >= ?", formatTime(*filter.OpenOn))
	}
	if filter.HasSpots {
		w.add("p.current_participants < p.max_participants")
	}

	query := `SELECT p.* FROM projects p` + w.String() + ` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`
	var rows []projectRow
	if err := q.exec.SelectContext(ctx, &rows, query, append(w.args, opts.Limit, opts.Offset)...); err != nil {
		return nil, wrapErr("ListProjects", "project", 0, err)
	}

	projects := make([]domain.Project, 0, len(rows))
	for i := range rows {
		projects = append(projects, *rowToProject(&rows[i]))
	}
	return projects, nil
}

func (q queries) CountProjectsByVisibility(ctx context.Context, activeOnly bool) ([]reporting.StatusCount, error) {
	query := `SELECT visibility AS status, COUNT(*) AS count FROM projects`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` GROUP BY visibility`

	var rows []reporting.StatusCount
	if err := q.exec.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrapErr("CountProjectsByVisibility", "project", 0, err)
	}
	return rows, nil
}

// PopularProjects ranks projects by number of applications.
func (q queries) PopularProjects(ctx context.Context, limit int) ([]reporting.Ranked, error) {
	query := `
		SELECT p.id AS id, p.name AS label, COUNT(a.id) AS value
		FROM projects p
		JOIN applications a ON a.project_id = p.id
		GROUP BY p.id, p.name
		ORDER BY value DESC, p.id ASC
		LIMIT ?`

	var rows []reporting.Ranked
	if err := q.exec.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, wrapErr("PopularProjects", "project", 0, err)
	}
	return rows, nil
}

// =============================================================================
// Membership Operations
// =============================================================================

func (q queries) AddMember(ctx context.Context, projectID, userID int64, at time.Time) error {
	_, err := q.exec.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, joined_at) VALUES (?, ?, ?)`,
		projectID, userID, formatTime(at))
	if err != nil {
		return wrapErr("AddMember", "project_member", projectID, err)
	}
	return nil
}

func (q queries) RemoveMember(ctx context.Context, projectID, userID int64) (bool, error) {
	res, err := q.exec.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return false, wrapErr("RemoveMember", "project_member", projectID, err)
	}
	return affected(res) > 0, nil
}

func (q queries) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	var n int
	err := q.exec.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return false, wrapErr("IsMember", "project_member", projectID, err)
	}
	return n > 0, nil
}

func (q queries) ListMembers(ctx context.Context, projectID int64) ([]domain.User, error) {
	query := `
		SELECT u.* FROM users u
		JOIN project_members m ON m.user_id = u.id
		WHERE m.project_id = ?
		ORDER BY m.joined_at, u.id`

	var rows []userRow
	if err := q.exec.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, wrapErr("ListMembers", "project_member", projectID, err)
	}
	users := make([]domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, *rowToUser(&rows[i]))
	}
	return users, nil
}

// SyncParticipants fails with a capacity validation error when the member
// count exceeds max_participants, leaving the row unchanged.
func (q queries) SyncParticipants(ctx context.Context, projectID int64) (int, error) {
	res, err := q.exec.ExecContext(ctx, `
		UPDATE projects SET
			current_participants = (SELECT COUNT(*) FROM project_members WHERE project_id = ?),
			updated_at = ?
		WHERE id = ?`,
		projectID, formatTime(q.now()), projectID)
	if err != nil {
		return 0, wrapErr("SyncParticipants", "project", projectID, err)
	}
	if affected(res) == 0 {
		return 0, NewStoreError("SyncParticipants", "project", idString(projectID), "project not found", ErrNotFound)
	}

	var current int
	if err := q.exec.GetContext(ctx, &current, `SELECT current_participants FROM projects WHERE id = ?`, projectID); err != nil {
		return 0, wrapErr("SyncParticipants", "project", projectID, err)
	}
	return current, nil
}

// =============================================================================
// Requirement and Document Operations
// =============================================================================

type requirementRow struct {
	ID          int64  `db:"id"`
	ProjectID   int64  `db:"project_id"`
	Description string `db:"description"`
	IsMandatory bool   `db:"is_mandatory"`
}

func (q queries) CreateRequirement(ctx context.Context, r *domain.ProjectRequirement) error {
	res, err := q.exec.ExecContext(ctx,
		`INSERT INTO project_requirements (project_id, description, is_mandatory) VALUES (?, ?, ?)`,
		r.ProjectID, r.Description, boolInt(r.IsMandatory))
	if err != nil {
		return wrapErr("CreateRequirement", "requirement", 0, err)
	}
	r.ID = lastID(res)
	return nil
}

func (q queries) ListRequirements(ctx context.Context, projectID int64) ([]domain.ProjectRequirement, error) {
	var rows []requirementRow
	err := q.exec.SelectContext(ctx, &rows,
		`SELECT * FROM project_requirements WHERE project_id = ? ORDER BY is_mandatory DESC, id`, projectID)
	if err != nil {
		return nil, wrapErr("ListRequirements", "requirement", projectID, err)
	}
	out := make([]domain.ProjectRequirement, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ProjectRequirement(r))
	}
	return out, nil
}

type documentRow struct {
	ID         int64  `db:"id"`
	ProjectID  int64  `db:"project_id"`
	Name       string `db:"name"`
	Reference  string `db:"reference"`
	IsPublic   bool   `db:"is_public"`
	UploadedBy int64  `db:"uploaded_by"`
	CreatedAt  string `db:"created_at"`
}

func (q queries) CreateDocument(ctx context.Context, d *domain.ProjectDocument) error {
	res, err := q.exec.NamedExecContext(ctx, `
		INSERT INTO project_documents (project_id, name, reference, is_public, uploaded_by, created_at)
		VALUES (:project_id, :name, :reference, :is_public, :uploaded_by, :created_at)`,
		map[string]any{
			"project_id":  d.ProjectID,
			"name":        d.Name,
			"reference":   d.Reference,
			"is_public":   boolInt(d.IsPublic),
			"uploaded_by": d.UploadedBy,
			"created_at":  formatTime(d.CreatedAt),
		})
	if err != nil {
		return wrapErr("CreateDocument", "document", 0, err)
	}
	d.ID = lastID(res)
	return nil
}

func (q queries) ListDocuments(ctx context.Context, projectID int64, publicOnly bool) ([]domain.ProjectDocument, error) {
	query := `SELECT * FROM project_documents WHERE project_id = ?`
	if publicOnly {
		query += ` AND is_public = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []documentRow
	if err := q.exec.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, wrapErr("ListDocuments", "document", projectID, err)
	}
	out := make([]domain.ProjectDocument, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ProjectDocument{
			ID:         r.ID,
			ProjectID:  r.ProjectID,
			Name:       r.Name,
			Reference:  r.Reference,
			IsPublic:   r.IsPublic,
			UploadedBy: r.UploadedBy,
			CreatedAt:  parseTime(r.CreatedAt),
		})
	}
	return out, nil
}
