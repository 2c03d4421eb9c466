package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser_NormalizesCarnet(t *testing.T) {
	u, err := NewUser(UserTypeStudent, "ana.perez", "ana@example.edu", "Ana", "Pérez", " ab1234 ")
	require.NoError(t, err)

	assert.Equal(t, "AB1234", u.Carnet)
	assert.Equal(t, DefaultScholarshipType, u.ScholarshipType)
	assert.Equal(t, 100, u.ScholarshipPercentage)
	assert.True(t, u.IsActive)
	assert.Equal(t, "Ana Pérez", u.FullName())
}

func TestNewUser_Invalid(t *testing.T) {
	_, err := NewUser(UserTypeStudent, "x", "", "", "", "AB-12")
	assert.ErrorIs(t, err, ErrInvalidCarnet)

	_, err = NewUser("professor", "x", "", "", "", "AB12")
	assert.Equal(t, "user_type", FieldOf(err))

	_, err = NewUser(UserTypeAdmin, "", "", "", "", "AB12")
	assert.Equal(t, "username", FieldOf(err))
}

func TestUsernameBase(t *testing.T) {
	assert.Equal(t, "jose.garcia", UsernameBase("José María", "García López", "X1"))
	assert.Equal(t, "ana", UsernameBase("Ana", "", "X1"))
	assert.Equal(t, "ab12", UsernameBase("", " ", "ab12"))
}

func TestUsernameCandidate(t *testing.T) {
	assert.Equal(t, "ana.perez", UsernameCandidate("ana.perez", 0))
	assert.Equal(t, "ana.perez2", UsernameCandidate("ana.perez", 2))
}
