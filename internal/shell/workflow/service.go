// Package workflow implements the KeyHours operations: the application and
// hour-log state machines, project membership, reporting and accounts.
//
// Every operation authorizes its principal through auth.Authorize before
// acting. Operations that change state run inside one store transaction so
// that side effects (membership, participant counts, hour counters,
// notifications) commit or roll back together with the transition.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"go.uber.org/zap"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidCredentials is returned by Authenticate for an unknown user,
	// an inactive user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrTokensDisabled is returned by Authenticate when no token issuer is
	// configured.
	ErrTokensDisabled = errors.New("token issuance is not enabled")

	errAlreadyEvaluated = errors.New("application already evaluated by this administrator")
)

// =============================================================================
// Configuration
// =============================================================================

// Config tunes listing and dashboard sizes.
type Config struct {
	// PublicProjectsLimit caps PublicProjects. Default: 6.
	PublicProjectsLimit int

	// DashboardTopN caps the ranked lists on admin dashboards. Default: 5.
	DashboardTopN int

	// RecentLogsLimit caps the recent entries on the student hours
	// dashboard. Default: 5.
	RecentLogsLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PublicProjectsLimit: 6,
		DashboardTopN:       5,
		RecentLogsLimit:     5,
	}
}

// =============================================================================
// Metrics
// =============================================================================

// Recorder observes workflow events. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	// Transition counts one state change of machine.
	Transition(machine, from, to string)
	// Bulk counts the rows a bulk action affected.
	Bulk(operation string, affected int)
}

type nopRecorder struct{}

func (nopRecorder) Transition(string, string, string) {}
func (nopRecorder) Bulk(string, int)                  {}

// =============================================================================
// Service
// =============================================================================

// Option configures a Service.
type Option func(*Service)

// WithTokenIssuer enables Authenticate.
func WithTokenIssuer(t *auth.TokenIssuer) Option {
	return func(s *Service) { s.tokens = t }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs workflow operations against a Store.
type Service struct {
	store   store.Store
	config  Config
	tokens  *auth.TokenIssuer
	metrics Recorder
	logger  *zap.Logger
	now     func() time.Time

	// onEnter holds the side effects of entering an application status.
	onEnter map[domain.ApplicationStatus]applicationEffect
}

// New creates a Service. Zero config fields take their defaults.
func New(s store.Store, config Config, logger *zap.Logger, opts ...Option) *Service {
	defaults := DefaultConfig()
	if config.PublicProjectsLimit <= 0 {
		config.PublicProjectsLimit = defaults.PublicProjectsLimit
	}
	if config.DashboardTopN <= 0 {
		config.DashboardTopN = defaults.DashboardTopN
	}
	if config.RecentLogsLimit <= 0 {
		config.RecentLogsLimit = defaults.RecentLogsLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := &Service{
		store:   s,
		config:  config,
		metrics: nopRecorder{},
		logger:  logger.Named("workflow"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.registerApplicationEffects()
	return svc
}

// clock returns the current time in UTC.
func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// inTx runs fn in a store transaction. fn must only use tx: the store holds
// a single connection, so touching s.store inside fn blocks.
func (s *Service) inTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.store.WithTx(ctx, fn)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// =============================================================================
// Helpers
// =============================================================================

// referenced turns a not-found error for an entity named by a request field
// into a validation error on that field.
func referenced(field string, err error) error {
	if store.IsNotFound(err) {
		return domain.Invalidf(field, "referenced %s does not exist", field)
	}
	return err
}

// duplicate turns a unique-constraint failure into a validation error.
func duplicate(field string, cause, err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return domain.NewValidationError(field, cause)
	}
	return err
}

// ownScope forces a non-admin principal's query onto their own rows.
func ownScope(p auth.Principal, userID int64) int64 {
	if p.IsAdmin() {
		return userID
	}
	return p.UserID
}

func (s *Service) notify(ctx context.Context, tx store.Store, n domain.Notification) error {
	if n.RecipientID == 0 {
		return nil
	}
	return tx.CreateNotification(ctx, &n)
}
