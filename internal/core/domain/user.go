package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// User Types
// =============================================================================

type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeAdmin   UserType = "admin"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == UserTypeStudent || t == UserTypeAdmin
}

const (
	DefaultScholarshipType       = "KEY EXCELLENCE"
	DefaultScholarshipPercentage = 100
)

var carnetPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// =============================================================================
// User
// =============================================================================

// User is a student or administrator account.
type User struct {
	ID                    int64     `json:"id"`
	Username              string    `json:"username"`
	Email                 string    `json:"email"`
	FirstName             string    `json:"first_name"`
	LastName              string    `json:"last_name"`
	UserType              UserType  `json:"user_type"`
	Carnet                string    `json:"carnet"`
	Phone                 string    `json:"phone,omitempty"`
	Career                string    `json:"career,omitempty"`
	Semester              int       `json:"semester,omitempty"`
	ScholarshipType       string    `json:"scholarship_type"`
	ScholarshipPercentage int       `json:"scholarship_percentage"`
	IsActive              bool      `json:"is_active"`
	PasswordHash          string    `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewUser builds a user with defaults applied and validates it.
func NewUser(userType UserType, username, email, firstName, lastName, carnet string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		Username:              strings.TrimSpace(username),
		Email:                 strings.TrimSpace(email),
		FirstName:             strings.TrimSpace(firstName),
		LastName:              strings.TrimSpace(lastName),
		UserType:              userType,
		Carnet:                NormalizeCarnet(carnet),
		ScholarshipType:       DefaultScholarshipType,
		ScholarshipPercentage: DefaultScholarshipPercentage,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks the user's invariants.
func (u *User) Validate() error {
	if !u.UserType.Valid() {
		return NewValidationError("user_type", ErrInvalidEnum)
	}
	if u.Username == "" {
		return NewValidationError("username", ErrRequired)
	}
	if err := ValidateCarnet(u.Carnet); err != nil {
		return err
	}
	if u.ScholarshipPercentage < 0 || u.ScholarshipPercentage > 100 {
		return Invalidf("scholarship_percentage", "must be between 0 and 100")
	}
	return nil
}

// FullName returns "First Last", or the username when both names are empty.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// IsAdmin reports whether the user is an administrator.
func (u *User) IsAdmin() bool { return u.UserType == UserTypeAdmin }

// NormalizeCarnet trims and upper-cases a student ID.
func NormalizeCarnet(carnet string) string {
	return strings.ToUpper(strings.TrimSpace(carnet))
}

// ValidateCarnet checks a normalized carnet.
func ValidateCarnet(carnet string) error {
	if carnet == "" {
		return NewValidationError("carnet", ErrRequired)
	}
	if !carnetPattern.MatchString(carnet) {
		return NewValidationError("carnet", ErrInvalidCarnet)
	}
	return nil
}

// =============================================================================
// Username Generation
// =============================================================================

// UsernameBase derives the preferred username for a new student:
// "first.last" folded to lowercase ASCII, or the lowercased carnet when the
// names produce nothing usable.
func UsernameBase(firstName, lastName, carnet string) string {
	first := foldName(firstName)
	last := foldName(lastName)
	switch {
	case first != "" && last != "":
		return first + "." + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return strings.ToLower(NormalizeCarnet(carnet))
	}
}

// UsernameCandidate returns the n-th candidate for base: base itself for
// n == 0, then base1, base2, ...
func UsernameCandidate(base string, n int) string {
	if n <= 0 {
		return base
	}
	return base + strconv.Itoa(n)
}

// foldName keeps the first word of a name, strips accents and drops anything
// that is not a lowercase letter or digit.
func foldName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(fields[0])) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
