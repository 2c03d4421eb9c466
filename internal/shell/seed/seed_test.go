package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
admin:
  username: coordinator
  password: correct horse battery
  email: coordinator@example.edu
  first_name: Ana
  last_name: Pérez
  carnet: ADM001
categories:
  - name: Education
    description: Tutoring and literacy programmes
  - name: Environment
scholarships:
  - name: KEY Excellence
    type: excellence
    required_hours: 120
    duration_years: 4
students:
  - username: luis.gomez
    password: student-pass-1
    email: luis@example.edu
    first_name: Luis
    last_name: Gómez
    carnet: "20240001"
    career: Engineering
    semester: 3
    scholarships: [KEY Excellence]
projects:
  - name: Reading Club
    description: Weekly reading sessions at the public library
    category: Education
    max_hours: 40
    visibility: convocatoria
    start_date: "2024-01-15"
    end_date: "2024-12-15"
    max_participants: 12
    requirements:
      - description: Available on Saturdays
        mandatory: true
  - name: Beach Cleanup
    category: Environment
    max_hours: 8
    hour_assignment: automatic
    automatic_hours: 4
    start_date: "2024-03-01"
    end_date: "2024-03-31"
`

func newTestService(t *testing.T) *workflow.Service {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return workflow.New(s, workflow.DefaultConfig(), nil)
}

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.NotNil(t, f.Admin)
	assert.Equal(t, "coordinator", f.Admin.Username)
	assert.Len(t, f.Categories, 2)
	require.Len(t, f.Students, 1)
	assert.Equal(t, "20240001", f.Students[0].Carnet)
	require.Len(t, f.Projects, 2)
	require.NotNil(t, f.Projects[1].AutomaticHours)
	assert.Equal(t, 4.0, *f.Projects[1].AutomaticHours)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("categories:\n  - name: Health\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_Apply(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	f, err := LoadFile(path)
	require.NoError(t, err)

	res, err := NewLoader(svc, nil).Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, Result{Categories: 2, Scholarships: 1, Users: 2, Projects: 2}, res)

	p := auth.System()
	projects, err := svc.ListProjects(ctx, p, store.ProjectFilter{}, store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, projects, 2)

	admins, err := svc.ListUsers(ctx, p, store.UserFilter{UserType: domain.UserTypeAdmin}, store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	for _, pr := range projects {
		assert.Equal(t, admins[0].ID, pr.ManagerID)
	}

	students, err := svc.ListUsers(ctx, p, store.UserFilter{UserType: domain.UserTypeStudent}, store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, students, 1)
	held, err := svc.ListUserScholarships(ctx, p, students[0].ID)
	require.NoError(t, err)
	assert.Len(t, held, 1)

	// Applying the same file again creates nothing.
	res, err = NewLoader(svc, nil).Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestLoader_ApplyWithoutAdmin(t *testing.T) {
	f := &File{Projects: []Project{{
		Name:      "Orphan",
		MaxHours:  10,
		StartDate: "2024-01-01",
		EndDate:   "2024-02-01",
	}}}

	_, err := NewLoader(newTestService(t), nil).Apply(context.Background(), f)
	assert.ErrorIs(t, err, ErrNoAdmin)
}

func TestLoader_ApplyUnknownReference(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	f.Students[0].Scholarships = []string{"Missing"}

	_, err = NewLoader(newTestService(t), nil).Apply(context.Background(), f)
	assert.ErrorContains(t, err, `unknown scholarship "Missing"`)
}
