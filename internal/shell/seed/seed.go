// Package seed loads initial categories, scholarships, users and projects
// from a YAML file.
//
// Loading is idempotent: entities that already exist (matched by name, or
// by username for users) are skipped, so the same file can be applied on
// every start.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// File Format
// =============================================================================

// File is the YAML document.
type File struct {
	Admin        *User         `yaml:"admin"`
	Categories   []Category    `yaml:"categories"`
	Scholarships []Scholarship `yaml:"scholarships"`
	Students     []User        `yaml:"students"`
	Projects     []Project     `yaml:"projects"`
}

// User is an account. Scholarships names scholarships from the same file or
// already stored.
type User struct {
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	Email        string   `yaml:"email"`
	FirstName    string   `yaml:"first_name"`
	LastName     string   `yaml:"last_name"`
	Carnet       string   `yaml:"carnet"`
	Phone        string   `yaml:"phone"`
	Career       string   `yaml:"career"`
	Semester     int      `yaml:"semester"`
	Scholarships []string `yaml:"scholarships"`
}

// Category is a project category.
type Category struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Scholarship is a scholarship programme.
type Scholarship struct {
	Name          string  `yaml:"name"`
	Type          string  `yaml:"type"`
	Description   string  `yaml:"description"`
	RequiredHours float64 `yaml:"required_hours"`
	DurationYears int     `yaml:"duration_years"`
}

// Project is a project with its requirements. Dates use YYYY-MM-DD.
type Project struct {
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	Category        string        `yaml:"category"`
	Manager         string        `yaml:"manager"`
	MaxHours        float64       `yaml:"max_hours"`
	HourAssignment  string        `yaml:"hour_assignment"`
	AutomaticHours  *float64      `yaml:"automatic_hours"`
	Visibility      string        `yaml:"visibility"`
	StartDate       string        `yaml:"start_date"`
	EndDate         string        `yaml:"end_date"`
	MaxParticipants int           `yaml:"max_participants"`
	Requirements    []Requirement `yaml:"requirements"`
}

// Requirement is a project requirement.
type Requirement struct {
	Description string `yaml:"description"`
	Mandatory   bool   `yaml:"mandatory"`
}

// Result counts the entities created by Apply.
type Result struct {
	Categories   int
	Scholarships int
	Users        int
	Projects     int
}

// ErrNoAdmin is returned when projects need a manager and no administrator
// exists or is defined in the file.
var ErrNoAdmin = errors.New("seed: no administrator to manage projects")

// Parse decodes a seed document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	return &f, nil
}

// LoadFile reads and parses the seed file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return Parse(data)
}

// =============================================================================
// Loader
// =============================================================================

// Loader applies a seed File through the workflow service.
type Loader struct {
	svc    *workflow.Service
	logger *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(svc *workflow.Service, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{svc: svc, logger: logger.Named("seed")}
}

// Apply creates everything in f that does not exist yet. The admin entry,
// if present, bootstraps the first administrator.
func (l *Loader) Apply(ctx context.Context, f *File) (Result, error) {
	var res Result
	p := auth.System()

	if f.Admin != nil {
		u, err := l.svc.Bootstrap(ctx, workflow.RegisterInput{
			ProfileInput: f.Admin.profile(),
			Username:     f.Admin.Username,
			Password:     f.Admin.Password,
		})
		if err != nil {
			return res, fmt.Errorf("seed: admin %q: %w", f.Admin.Username, err)
		}
		if u != nil {
			res.Users++
		}
	}

	categories, err := l.categories(ctx, p, f.Categories, &res)
	if err != nil {
		return res, err
	}
	scholarships, err := l.scholarships(ctx, p, f.Scholarships, &res)
	if err != nil {
		return res, err
	}
	if err := l.students(ctx, p, f.Students, scholarships, &res); err != nil {
		return res, err
	}
	if err := l.projects(ctx, p, f.Projects, categories, &res); err != nil {
		return res, err
	}

	l.logger.Info("seed data applied",
		zap.Int("categories", res.Categories),
		zap.Int("scholarships", res.Scholarships),
		zap.Int("users", res.Users),
		zap.Int("projects", res.Projects),
	)
	return res, nil
}

func (u User) profile() workflow.ProfileInput {
	return workflow.ProfileInput{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Carnet:    u.Carnet,
		Phone:     u.Phone,
		Career:    u.Career,
		Semester:  u.Semester,
	}
}

func (l *Loader) categories(ctx context.Context, p auth.Principal, in []Category, res *Result) (map[string]int64, error) {
	existing, err := l.svc.ListCategories(ctx, p)
	if err != nil {
		return nil, err
	}
	ids := lo.SliceToMap(existing, func(c domain.ProjectCategory) (string, int64) { return c.Name, c.ID })
	for _, c := range in {
		if _, ok := ids[c.Name]; ok {
			continue
		}
		created, err := l.svc.CreateCategory(ctx, p, c.Name, c.Description)
		if err != nil {
			return nil, fmt.Errorf("seed: category %q: %w", c.Name, err)
		}
		ids[created.Name] = created.ID
		res.Categories++
	}
	return ids, nil
}

func (l *Loader) scholarships(ctx context.Context, p auth.Principal, in []Scholarship, res *Result) (map[string]int64, error) {
	existing, err := l.svc.ListScholarships(ctx, p)
	if err != nil {
		return nil, err
	}
	ids := lo.SliceToMap(existing, func(s domain.Scholarship) (string, int64) { return s.Name, s.ID })
	for _, s := range in {
		if _, ok := ids[s.Name]; ok {
			continue
		}
		required, err := domain.HoursFromDecimal(s.RequiredHours)
		if err != nil {
			return nil, fmt.Errorf("seed: scholarship %q: %w", s.Name, err)
		}
		created, err := l.svc.CreateScholarship(ctx, p, domain.Scholarship{
			Name:          s.Name,
			Kind:          domain.ScholarshipKind(s.Type),
			Description:   s.Description,
			RequiredHours: required,
			DurationYears: s.DurationYears,
		})
		if err != nil {
			return nil, fmt.Errorf("seed: scholarship %q: %w", s.Name, err)
		}
		ids[created.Name] = created.ID
		res.Scholarships++
	}
	return ids, nil
}

func (l *Loader) students(ctx context.Context, p auth.Principal, in []User, scholarships map[string]int64, res *Result) error {
	for _, s := range in {
		found, err := l.findUser(ctx, p, s.Username)
		if err != nil {
			return err
		}
		if found != nil {
			continue
		}
		u, err := l.svc.RegisterUser(ctx, p, workflow.RegisterInput{
			ProfileInput: s.profile(),
			Username:     s.Username,
			Password:     s.Password,
			UserType:     domain.UserTypeStudent,
		})
		if err != nil {
			return fmt.Errorf("seed: student %q: %w", s.Username, err)
		}
		res.Users++

		for _, name := range s.Scholarships {
			id, ok := scholarships[name]
			if !ok {
				return fmt.Errorf("seed: student %q: unknown scholarship %q", s.Username, name)
			}
			if _, err := l.svc.AssignScholarship(ctx, p, u.ID, id, u.CreatedAt, nil); err != nil {
				return fmt.Errorf("seed: student %q: scholarship %q: %w", s.Username, name, err)
			}
		}
	}
	return nil
}

// findUser returns the user with exactly this username, or nil.
func (l *Loader) findUser(ctx context.Context, p auth.Principal, username string) (*domain.User, error) {
	users, err := l.svc.ListUsers(ctx, p, store.UserFilter{Search: username}, store.DefaultListOptions())
	if err != nil {
		return nil, err
	}
	u, ok := lo.Find(users, func(u domain.User) bool { return strings.EqualFold(u.Username, username) })
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (l *Loader) projects(ctx context.Context, p auth.Principal, in []Project, categories map[string]int64, res *Result) error {
	if len(in) == 0 {
		return nil
	}
	existing, err := l.svc.ListProjects(ctx, p, store.ProjectFilter{}, store.ListOptions{Limit: 1000})
	if err != nil {
		return err
	}
	names := lo.SliceToMap(existing, func(pr domain.Project) (string, struct{}) { return pr.Name, struct{}{} })

	admins, err := l.svc.ListUsers(ctx, p, store.UserFilter{UserType: domain.UserTypeAdmin}, store.ListOptions{Limit: 1})
	if err != nil {
		return err
	}

	for _, pr := range in {
		if _, ok := names[pr.Name]; ok {
			continue
		}
		input, err := l.projectInput(ctx, p, pr, categories, admins)
		if err != nil {
			return fmt.Errorf("seed: project %q: %w", pr.Name, err)
		}
		project, err := l.svc.CreateProject(ctx, p, input)
		if err != nil {
			return fmt.Errorf("seed: project %q: %w", pr.Name, err)
		}
		for _, req := range pr.Requirements {
			if _, err := l.svc.AddRequirement(ctx, p, project.ID, req.Description, req.Mandatory); err != nil {
				return fmt.Errorf("seed: project %q: requirement: %w", pr.Name, err)
			}
		}
		names[project.Name] = struct{}{}
		res.Projects++
	}
	return nil
}

func (l *Loader) projectInput(ctx context.Context, p auth.Principal, pr Project, categories map[string]int64, admins []domain.User) (workflow.ProjectInput, error) {
	start, err := domain.ParseDate(pr.StartDate)
	if err != nil {
		return workflow.ProjectInput{}, domain.Invalidf("start_date", "must be a date in YYYY-MM-DD format")
	}
	end, err := domain.ParseDate(pr.EndDate)
	if err != nil {
		return workflow.ProjectInput{}, domain.Invalidf("end_date", "must be a date in YYYY-MM-DD format")
	}

	maxHours, err := domain.HoursFromDecimal(pr.MaxHours)
	if err != nil {
		return workflow.ProjectInput{}, err
	}
	in := workflow.ProjectInput{
		Name:            pr.Name,
		Description:     pr.Description,
		MaxHours:        maxHours,
		HourAssignment:  domain.HourAssignment(pr.HourAssignment),
		Visibility:      domain.Visibility(pr.Visibility),
		StartDate:       start,
		EndDate:         end,
		MaxParticipants: pr.MaxParticipants,
	}
	if pr.AutomaticHours != nil {
		auto, err := domain.HoursFromDecimal(*pr.AutomaticHours)
		if err != nil {
			return in, err
		}
		in.AutomaticHours = lo.ToPtr(auto)
	}
	if pr.Category != "" {
		id, ok := categories[pr.Category]
		if !ok {
			return in, fmt.Errorf("unknown category %q", pr.Category)
		}
		in.CategoryID = &id
	}

	switch {
	case pr.Manager != "":
		m, err := l.findUser(ctx, p, pr.Manager)
		if err != nil {
			return in, err
		}
		if m == nil {
			return in, fmt.Errorf("unknown manager %q", pr.Manager)
		}
		in.ManagerID = m.ID
	case len(admins) > 0:
		in.ManagerID = admins[0].ID
	default:
		return in, ErrNoAdmin
	}
	return in, nil
}
