package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
)

// =============================================================================
// User Operations
// =============================================================================

type userRow struct {
	ID                    int64  `db:"id"`
	Username              string `db:"username"`
	Email                 string `db:"email"`
	FirstName             string `db:"first_name"`
	LastName              string `db:"last_name"`
	UserType              string `db:"user_type"`
	Carnet                string `db:"carnet"`
	Phone                 string `db:"phone"`
	Career                string `db:"career"`
	Semester              int    `db:"semester"`
	ScholarshipType       string `db:"scholarship_type"`
	ScholarshipPercentage int    `db:"scholarship_percentage"`
	IsActive              bool   `db:"is_active"`
	PasswordHash          string `db:"password_hash"`
	CreatedAt             string `db:"created_at"`
	UpdatedAt             string `db:"updated_at"`
}

func userToRow(u *domain.User) map[string]any {
	return map[string]any{
		"id":                     u.ID,
		"username":               u.Username,
		"email":                  u.Email,
		"first_name":             u.FirstName,
		"last_name":              u.LastName,
		"user_type":              string(u.UserType),
		"carnet":                 u.Carnet,
		"phone":                  u.Phone,
		"career":                 u.Career,
		"semester":               u.Semester,
		"scholarship_type":       u.ScholarshipType,
		"scholarship_percentage": u.ScholarshipPercentage,
		"is_active":              boolInt(u.IsActive),
		"password_hash":          u.PasswordHash,
		"created_at":             formatTime(u.CreatedAt),
		"updated_at":             formatTime(u.UpdatedAt),
	}
}

func rowToUser(row *userRow) *domain.User {
	return &domain.User{
		ID:                    row.ID,
		Username:              row.Username,
		Email:                 row.Email,
		FirstName:             row.FirstName,
		LastName:              row.LastName,
		UserType:              domain.UserType(row.UserType),
		Carnet:                row.Carnet,
		Phone:                 row.Phone,
		Career:                row.Career,
		Semester:              row.Semester,
		ScholarshipType:       row.ScholarshipType,
		ScholarshipPercentage: row.ScholarshipPercentage,
		IsActive:              row.IsActive,
		PasswordHash:          row.PasswordHash,
		CreatedAt:             parseTime(row.CreatedAt),
		UpdatedAt:             parseTime(row.UpdatedAt),
	}
}

func (q queries) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			username, email, first_name, last_name, user_type, carnet, phone,
			career, semester, scholarship_type, scholarship_percentage,
			is_active, password_hash, created_at, updated_at
		) VALUES (
			:username, :email, :first_name, :last_name, :user_type, :carnet, :phone,
			:career, :semester, :scholarship_type, :scholarship_percentage,
			:is_active, :password_hash, :created_at, :updated_at
		)`

	res, err := q.exec.NamedExecContext(ctx, query, userToRow(user))
	if err != nil {
		return wrapErr("CreateUser", "user", 0, err)
	}
	user.ID = lastID(res)
	return nil
}

func (q queries) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var row userRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetUser", "user", idString(id), "user not found", ErrNotFound)
		}
		return nil, wrapErr("GetUser", "user", id, err)
	}
	return rowToUser(&row), nil
}

func (q queries) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var row userRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM users WHERE username = ?`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetUserByUsername", "user", username, "user not found", ErrNotFound)
		}
		return nil, wrapErr("GetUserByUsername", "user", 0, err)
	}
	return rowToUser(&row), nil
}

func (q queries) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	if err := q.exec.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE username = ?`, username); err != nil {
		return false, wrapErr("UsernameExists", "user", 0, err)
	}
	return n > 0, nil
}

func (q queries) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users SET
			email = :email,
			first_name = :first_name,
			last_name = :last_name,
			carnet = :carnet,
			phone = :phone,
			career = :career,
			semester = :semester,
			scholarship_type = :scholarship_type,
			scholarship_percentage = :scholarship_percentage,
			is_active = :is_active,
			password_hash = :password_hash,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := q.exec.NamedExecContext(ctx, query, userToRow(user))
	if err != nil {
		return wrapErr("UpdateUser", "user", user.ID, err)
	}
	if affected(res) == 0 {
		return NewStoreError("UpdateUser", "user", idString(user.ID), "user not found", ErrNotFound)
	}
	return nil
}

func (q queries) ListUsers(ctx context.Context, filter UserFilter, opts ListOptions) ([]domain.User, error) {
	opts = opts.Normalize()

	var w where
	if filter.UserType != "" {
		w.add("user_type = ?", string(filter.UserType))
	}
	if filter.ActiveOnly {
		w.add("is_active = 1")
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		w.add("(username LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR carnet LIKE ?)", like, like, like, like)
	}

	query := `SELECT * FROM users` + w.String() + ` ORDER BY last_name, first_name, id LIMIT ? OFFSET ?`
	var rows []userRow
	if err := q.exec.SelectContext(ctx, &rows, query, append(w.args, opts.Limit, opts.Offset)...); err != nil {
		return nil, wrapErr("ListUsers", "user", 0, err)
	}

	users := make([]domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, *rowToUser(&rows[i]))
	}
	return users, nil
}

func (q queries) GetUserStats(ctx context.Context) (reporting.UserStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_users,
			COALESCE(SUM(CASE WHEN user_type = 'student' THEN 1 ELSE 0 END), 0) AS students,
			COALESCE(SUM(CASE WHEN user_type = 'admin' THEN 1 ELSE 0 END), 0) AS admins,
			COALESCE(SUM(is_active), 0) AS active_users,
			(SELECT COUNT(DISTINCT h.user_id) FROM hour_logs h
			   JOIN users su ON su.id = h.user_id
			  WHERE h.status = 'approved' AND su.user_type = 'student') AS students_with_hours
		FROM users`

	var stats reporting.UserStats
	if err := q.exec.GetContext(ctx, &stats, query); err != nil {
		return stats, wrapErr("GetUserStats", "user", 0, err)
	}
	return stats, nil
}

// =============================================================================
// Scholarship Operations
// =============================================================================

type scholarshipRow struct {
	ID            int64        `db:"id"`
	Name          string       `db:"name"`
	Kind          string       `db:"kind"`
	Description   string       `db:"description"`
	RequiredHours domain.Hours `db:"required_hours"`
	DurationYears int          `db:"duration_years"`
	IsActive      bool         `db:"is_active"`
	CreatedAt     string       `db:"created_at"`
}

func rowToScholarship(row *scholarshipRow) *domain.Scholarship {
	return &domain.Scholarship{
		ID:            row.ID,
		Name:          row.Name,
		Kind:          domain.ScholarshipKind(row.Kind),
		Description:   row.Description,
		RequiredHours: row.RequiredHours,
		DurationYears: row.DurationYears,
		IsActive:      row.IsActive,
		CreatedAt:     parseTime(row.CreatedAt),
	}
}

func (q queries) CreateScholarship(ctx context.Context, s *domain.Scholarship) error {
	query := `
		INSERT INTO scholarships (name, kind, description, required_hours, duration_years, is_active, created_at)
		VALUES (:name, :kind, :description, :required_hours, :duration_years, :is_active, :created_at)`

	res, err := q.exec.NamedExecContext(ctx, query, map[string]any{
		"name":           s.Name,
		"kind":           string(s.Kind),
		"description":    s.Description,
		"required_hours": int64(s.RequiredHours),
		"duration_years": s.DurationYears,
		"is_active":      boolInt(s.IsActive),
		"created_at":     formatTime(s.CreatedAt),
	})
	if err != nil {
		return wrapErr("CreateScholarship", "scholarship", 0, err)
	}
	s.ID = lastID(res)
	return nil
}

func (q queries) GetScholarship(ctx context.Context, id int64) (*domain.Scholarship, error) {
	var row scholarshipRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM scholarships WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetScholarship", "scholarship", idString(id), "scholarship not found", ErrNotFound)
		}
		return nil, wrapErr("GetScholarship", "scholarship", id, err)
	}
	return rowToScholarship(&row), nil
}

func (q queries) ListScholarships(ctx context.Context, activeOnly bool) ([]domain.Scholarship, error) {
	query := `SELECT * FROM scholarships`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`

	var rows []scholarshipRow
	if err := q.exec.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrapErr("ListScholarships", "scholarship", 0, err)
	}
	out := make([]domain.Scholarship, 0, len(rows))
	for i := range rows {
		out = append(out, *rowToScholarship(&rows[i]))
	}
	return out, nil
}

type userScholarshipRow struct {
	ID                  int64        `db:"id"`
	UserID              int64        `db:"user_id"`
	ScholarshipID       int64        `db:"scholarship_id"`
	Status              string       `db:"status"`
	StartDate           string       `db:"start_date"`
	EndDate             *string      `db:"end_date"`
	CurrentYearHours    domain.Hours `db:"current_year_hours"`
	TotalHoursCompleted domain.Hours `db:"total_hours_completed"`
	CreatedAt           string       `db:"created_at"`
}

func rowToUserScholarship(row *userScholarshipRow) *domain.UserScholarship {
	return &domain.UserScholarship{
		ID:                  row.ID,
		UserID:              row.UserID,
		ScholarshipID:       row.ScholarshipID,
		Status:              domain.UserScholarshipStatus(row.Status),
		StartDate:           parseDate(row.StartDate),
		EndDate:             parseDatePtr(row.EndDate),
		CurrentYearHours:    row.CurrentYearHours,
		TotalHoursCompleted: row.TotalHoursCompleted,
		CreatedAt:           parseTime(row.CreatedAt),
	}
}

func (q queries) CreateUserScholarship(ctx context.Context, us *domain.UserScholarship) error {
	query := `
		INSERT INTO user_scholarships (
			user_id, scholarship_id, status, start_date, end_date,
			current_year_hours, total_hours_completed, created_at
		) VALUES (
			:user_id, :scholarship_id, :status, :start_date, :end_date,
			:current_year_hours, :total_hours_completed, :created_at
		)`

	res, err := q.exec.NamedExecContext(ctx, query, map[string]any{
		"user_id":               us.UserID,
		"scholarship_id":        us.ScholarshipID,
		"status":                string(us.Status),
		"start_date":            formatDate(us.StartDate),
		"end_date":              formatDatePtr(us.EndDate),
		"current_year_hours":    int64(us.CurrentYearHours),
		"total_hours_completed": int64(us.TotalHoursCompleted),
		"created_at":            formatTime(us.CreatedAt),
	})
	if err != nil {
		return wrapErr("CreateUserScholarship", "user_scholarship", 0, err)
	}
	us.ID = lastID(res)
	return nil
}

func (q queries) GetUserScholarship(ctx context.Context, id int64) (*domain.UserScholarship, error) {
	var row userScholarshipRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM user_scholarships WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetUserScholarship", "user_scholarship", idString(id), "user scholarship not found", ErrNotFound)
		}
		return nil, wrapErr("GetUserScholarship", "user_scholarship", id, err)
	}
	return rowToUserScholarship(&row), nil
}

func (q queries) ListUserScholarships(ctx context.Context, userID int64) ([]domain.UserScholarship, error) {
	var rows []userScholarshipRow
	err := q.exec.SelectContext(ctx, &rows,
		`SELECT * FROM user_scholarships WHERE user_id = ? ORDER BY start_date DESC, id DESC`, userID)
	if err != nil {
		return nil, wrapErr("ListUserScholarships", "user_scholarship", 0, err)
	}
	out := make([]domain.UserScholarship, 0, len(rows))
	for i := range rows {
		out = append(out, *rowToUserScholarship(&rows[i]))
	}
	return out, nil
}

func (q queries) CountActiveScholarships(ctx context.Context, userID int64) (int, error) {
	var n int
	err := q.exec.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM user_scholarships WHERE user_id = ? AND status = ?`,
		userID, string(domain.UserScholarshipActive))
	if err != nil {
		return 0, wrapErr("CountActiveScholarships", "user_scholarship", 0, err)
	}
	return n, nil
}

func (q queries) SyncScholarshipHours(ctx context.Context, userID int64, year int) error {
	query := `
		UPDATE user_scholarships SET
			current_year_hours = (
				SELECT COALESCE(SUM(hours), 0) FROM hour_logs
				 WHERE user_id = ? AND status = 'approved' AND strftime('%Y', date) = ?),
			total_hours_completed = (
				SELECT COALESCE(SUM(hours), 0) FROM hour_logs
				 WHERE user_id = ? AND status = 'approved')
		WHERE user_id = ? AND status = ?`

	_, err := q.exec.ExecContext(ctx, query,
		userID, fmt.Sprintf("%04d", year), userID, userID, string(domain.UserScholarshipActive))
	if err != nil {
		return wrapErr("SyncScholarshipHours", "user_scholarship", 0, err)
	}
	return nil
}
