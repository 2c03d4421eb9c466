package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/crypto"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
	"github.com/artpar/keyhours/internal/shell/store"
	"go.uber.org/zap"
)

// maxUsernameAttempts bounds the suffix search for a free username.
const maxUsernameAttempts = 1000

// =============================================================================
// Accounts
// =============================================================================

// ProfileInput carries the descriptive user fields.
type ProfileInput struct {
	Email     string
	FirstName string
	LastName  string
	Carnet    string
	Phone     string
	Career    string
	Semester  int
}

// NewStudent is a created student account with the temporary password it
// was given. The password is not stored and cannot be retrieved again.
type NewStudent struct {
	User         *domain.User `json:"user"`
	TempPassword string       `json:"temp_password"`
}

// CreateStudent registers a student. The username is "first.last", or the
// carnet when the names are unusable, with a numeric suffix on collision.
func (s *Service) CreateStudent(ctx context.Context, p auth.Principal, in ProfileInput) (*NewStudent, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, auth.Resource{}); err != nil {
		return nil, err
	}
	temp, err := crypto.GenerateTempPassword()
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(temp)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	err = s.inTx(ctx, func(tx store.Store) error {
		username, err := s.freeUsername(ctx, tx, domain.UsernameBase(in.FirstName, in.LastName, in.Carnet))
		if err != nil {
			return err
		}
		if user, err = s.newUser(domain.UserTypeStudent, username, in); err != nil {
			return err
		}
		user.PasswordHash = hash
		return createUser(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("student created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return &NewStudent{User: user, TempPassword: temp}, nil
}

func (s *Service) freeUsername(ctx context.Context, tx store.Store, base string) (string, error) {
	if base == "" {
		return "", domain.NewValidationError("first_name", domain.ErrRequired)
	}
	for n := 0; n < maxUsernameAttempts; n++ {
		candidate := domain.UsernameCandidate(base, n)
		taken, err := tx.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", domain.Invalidf("username", "no free username for %q", base)
}

func (s *Service) newUser(userType domain.UserType, username string, in ProfileInput) (*domain.User, error) {
	user, err := domain.NewUser(userType, username, in.Email, in.FirstName, in.LastName, in.Carnet)
	if err != nil {
		return nil, err
	}
	user.Phone = in.Phone
	user.Career = in.Career
	user.Semester = in.Semester
	user.CreatedAt = s.clock()
	user.UpdatedAt = user.CreatedAt
	return user, nil
}

func createUser(ctx context.Context, tx store.Store, user *domain.User) error {
	err := tx.CreateUser(ctx, user)
	switch {
	case store.DuplicateColumn(err, "carnet"):
		return domain.Invalidf("carnet", "carnet %s is already registered", user.Carnet)
	case store.DuplicateColumn(err, "username"):
		return domain.Invalidf("username", "username %s is taken", user.Username)
	}
	return err
}

// RegisterInput creates an account with an explicit username and password.
type RegisterInput struct {
	ProfileInput
	Username string
	Password string
	UserType domain.UserType
}

// RegisterUser creates an administrator or student account.
func (s *Service) RegisterUser(ctx context.Context, p auth.Principal, in RegisterInput) (*domain.User, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, auth.Resource{}); err != nil {
		return nil, err
	}
	return s.register(ctx, in)
}

func (s *Service) register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user, err := s.newUser(in.UserType, in.Username, in.ProfileInput)
	if err != nil {
		return nil, err
	}
	if user.PasswordHash, err = hashPassword(in.Password); err != nil {
		return nil, err
	}
	if err := createUser(ctx, s.store, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("user_type", string(user.UserType)),
	)
	return user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := crypto.HashPassword(password)
	if errors.Is(err, crypto.ErrPasswordTooShort) {
		return "", domain.NewValidationError("password", err)
	}
	return hash, err
}

// Bootstrap creates the first administrator when no user exists yet. It is
// a no-op otherwise.
func (s *Service) Bootstrap(ctx context.Context, in RegisterInput) (*domain.User, error) {
	users, err := s.store.ListUsers(ctx, store.UserFilter{UserType: domain.UserTypeAdmin}, store.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(users) > 0 {
		return nil, nil
	}
	in.UserType = domain.UserTypeAdmin
	return s.register(ctx, in)
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *domain.User `json:"user"`
}

// Authenticate checks a username and password and issues a token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Token, error) {
	if s.tokens == nil {
		return nil, ErrTokensDisabled
	}
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || crypto.CheckPassword(user.PasswordHash, password) != nil {
		s.logger.Debug("authentication failed", zap.String("username", user.Username))
		return nil, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, User: user}, nil
}

// GetUser returns a user visible to the principal.
func (s *Service) GetUser(ctx context.Context, p auth.Principal, id int64) (*domain.User, error) {
	if err := auth.Authorize(p, auth.ActionViewUser, auth.OwnedBy(id)); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

// Me returns the principal's own account.
func (s *Service) Me(ctx context.Context, p auth.Principal) (*domain.User, error) {
	return s.GetUser(ctx, p, p.UserID)
}

// ListUsers lists accounts.
func (s *Service) ListUsers(ctx context.Context, p auth.Principal, filter store.UserFilter, opts store.ListOptions) ([]domain.User, error) {
	if err := auth.Authorize(p, auth.ActionManageUsers, auth.Resource{}); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, filter, opts)
}

// UserPatch changes the set fields of an account. Profile fields are open
// to the account holder; the rest need an administrator. The user type
// never changes.
type UserPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Career    *string
	Semester  *int
	Password  *string

	Carnet                *string
	ScholarshipType       *string
	ScholarshipPercentage *int
	IsActive              *bool
}

func (up UserPatch) adminOnly() bool {
	return up.Carnet != nil || up.ScholarshipType != nil || up.ScholarshipPercentage != nil || up.IsActive != nil
}

// UpdateUser applies patch to an account.
func (s *Service) UpdateUser(ctx context.Context, p auth.Principal, id int64, patch UserPatch) (*domain.User, error) {
	if err := auth.Authorize(p, auth.ActionUpdateProfile, auth.OwnedBy(id)); err != nil {
		return nil, err
	}
	if patch.adminOnly() {
		if err := auth.Authorize(p, auth.ActionManageUsers, auth.Resource{}); err != nil {
			return nil, err
		}
	}

	var user *domain.User
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if user, err = tx.GetUser(ctx, id); err != nil {
			return err
		}
		setIf(&user.Email, patch.Email)
		setIf(&user.FirstName, patch.FirstName)
		setIf(&user.LastName, patch.LastName)
		setIf(&user.Phone, patch.Phone)
		setIf(&user.Career, patch.Career)
		setIf(&user.Semester, patch.Semester)
		setIf(&user.ScholarshipType, patch.ScholarshipType)
		setIf(&user.ScholarshipPercentage, patch.ScholarshipPercentage)
		setIf(&user.IsActive, patch.IsActive)
		if patch.Carnet != nil {
			user.Carnet = domain.NormalizeCarnet(*patch.Carnet)
		}
		if patch.Password != nil {
			if user.PasswordHash, err = hashPassword(*patch.Password); err != nil {
				return err
			}
		}
		if err := user.Validate(); err != nil {
			return err
		}
		user.UpdatedAt = s.clock()
		if err := tx.UpdateUser(ctx, user); err != nil {
			if store.DuplicateColumn(err, "carnet") {
				return domain.Invalidf("carnet", "carnet %s is already registered", user.Carnet)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// UserStats returns fleet-wide account figures.
func (s *Service) UserStats(ctx context.Context, p auth.Principal) (reporting.UserStats, error) {
	if err := auth.Authorize(p, auth.ActionViewFleetStats, auth.Resource{}); err != nil {
		return reporting.UserStats{}, err
	}
	return s.store.GetUserStats(ctx)
}

// UserDashboard returns a user's headline figures. userID 0 means the
// principal.
func (s *Service) UserDashboard(ctx context.Context, p auth.Principal, userID int64) (*reporting.UserDashboard, error) {
	if userID == 0 {
		userID = p.UserID
	}
	if err := auth.Authorize(p, auth.ActionViewReports, auth.OwnedBy(userID)); err != nil {
		return nil, err
	}
	totals, err := s.store.SumHours(ctx, store.HourFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	completed, err := s.store.CountApplicationsByStatus(ctx, store.ApplicationFilter{
		UserID: userID,
		Status: []domain.ApplicationStatus{domain.ApplicationCompleted},
	})
	if err != nil {
		return nil, err
	}
	active, err := s.store.CountActiveScholarships(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &reporting.UserDashboard{
		TotalHours:         totals.ApprovedHours,
		CompletedProjects:  reporting.Total(reporting.CountsByStatus(domain.ApplicationMachine.States(), completed)),
		ActiveScholarships: active,
	}, nil
}

// =============================================================================
// Scholarships
// =============================================================================

// CreateScholarship registers a scholarship programme.
func (s *Service) CreateScholarship(ctx context.Context, p auth.Principal, sc domain.Scholarship) (*domain.Scholarship, error) {
	if err := auth.Authorize(p, auth.ActionManageScholarships, auth.Resource{}); err != nil {
		return nil, err
	}
	sc.ID = 0
	sc.Name = strings.TrimSpace(sc.Name)
	sc.IsActive = true
	sc.CreatedAt = s.clock()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateScholarship(ctx, &sc); err != nil {
		return nil, duplicate("name", fmt.Errorf("scholarship %q already exists", sc.Name), err)
	}
	return &sc, nil
}

// GetScholarship returns a scholarship.
func (s *Service) GetScholarship(ctx context.Context, p auth.Principal, id int64) (*domain.Scholarship, error) {
	if err := auth.Authorize(p, auth.ActionViewScholarships, auth.Resource{}); err != nil {
		return nil, err
	}
	return s.store.GetScholarship(ctx, id)
}

// ListScholarships lists scholarships. Students see active ones only.
func (s *Service) ListScholarships(ctx context.Context, p auth.Principal) ([]domain.Scholarship, error) {
	if err := auth.Authorize(p, auth.ActionViewScholarships, auth.Resource{}); err != nil {
		return nil, err
	}
	return s.store.ListScholarships(ctx, !p.IsAdmin())
}

// AssignScholarship gives a user a scholarship. A user holds each
// scholarship at most once.
func (s *Service) AssignScholarship(ctx context.Context, p auth.Principal, userID, scholarshipID int64, start time.Time, end *time.Time) (*domain.UserScholarship, error) {
	if err := auth.Authorize(p, auth.ActionManageScholarships, auth.Resource{}); err != nil {
		return nil, err
	}
	if start.IsZero() {
		start = s.clock()
	}
	us, err := domain.NewUserScholarship(userID, scholarshipID, start, end)
	if err != nil {
		return nil, err
	}
	us.CreatedAt = s.clock()

	err = s.inTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		if _, err := tx.GetScholarship(ctx, scholarshipID); err != nil {
			return referenced("scholarship_id", err)
		}
		if err := tx.CreateUserScholarship(ctx, us); err != nil {
			return duplicate("scholarship_id", errors.New("user already holds this scholarship"), err)
		}
		if err := tx.SyncScholarshipHours(ctx, userID, s.clock().Year()); err != nil {
			return err
		}
		fresh, err := tx.GetUserScholarship(ctx, us.ID)
		if err != nil {
			return err
		}
		*us = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("scholarship assigned", zap.Int64("user_id", userID), zap.Int64("scholarship_id", scholarshipID))
	return us, nil
}

// ListUserScholarships lists a user's scholarships.
func (s *Service) ListUserScholarships(ctx context.Context, p auth.Principal, userID int64) ([]domain.UserScholarship, error) {
	if err := auth.Authorize(p, auth.ActionViewUser, auth.OwnedBy(userID)); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListUserScholarships(ctx, userID)
}

// ScholarshipProgress derives a user scholarship's progress against the
// programme's yearly requirement.
func (s *Service) ScholarshipProgress(ctx context.Context, p auth.Principal, id int64) (*reporting.ScholarshipProgress, error) {
	us, err := s.store.GetUserScholarship(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, auth.ActionViewReports, auth.OwnedBy(us.UserID)); err != nil {
		return nil, err
	}
	sc, err := s.store.GetScholarship(ctx, us.ScholarshipID)
	if err != nil {
		return nil, err
	}
	progress := reporting.NewScholarshipProgress(*us, *sc)
	return &progress, nil
}
