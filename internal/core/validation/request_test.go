package validation

import (
	"testing"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

type sampleRequest struct {
	Name      string       `json:"name" validate:"required"`
	Carnet    string       `json:"carnet" validate:"omitempty,carnet"`
	Email     string       `json:"email" validate:"omitempty,email"`
	Weekly    int          `json:"available_hours_per_week" validate:"omitempty,min=1,max=40"`
	Kind      string       `json:"type" validate:"omitempty,oneof=excellence merit need"`
	Date      string       `json:"date" validate:"omitempty,date"`
	Start     string       `json:"start_time" validate:"omitempty,clock"`
	Hours     domain.Hours `json:"hours" validate:"omitempty,hours"`
	IDs       []int64      `json:"ids" validate:"omitempty,min=1,dive,gt=0"`
	Ignored   string       `json:"-"`
	NoJSONTag string       `validate:"omitempty,max=3"`
}

func valid() sampleRequest {
	return sampleRequest{Name: "x"}
}

func TestStruct_Valid(t *testing.T) {
	r := valid()
	r.Carnet = "ab12"
	r.Email = "a@b.edu"
	r.Weekly = 10
	r.Kind = "merit"
	r.Date = "2025-01-02"
	r.Start = "09:15"
	r.Hours = domain.HoursFromFloat(1.5)
	r.IDs = []int64{1, 2}
	assert.NoError(t, Struct(r))
}

func TestStruct_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sampleRequest)
		field  string
	}{
		{"required", func(r *sampleRequest) { r.Name = "" }, "name"},
		{"carnet", func(r *sampleRequest) { r.Carnet = "AB-12" }, "carnet"},
		{"email", func(r *sampleRequest) { r.Email = "nope" }, "email"},
		{"max", func(r *sampleRequest) { r.Weekly = 41 }, "available_hours_per_week"},
		{"oneof", func(r *sampleRequest) { r.Kind = "luck" }, "type"},
		{"date", func(r *sampleRequest) { r.Date = "02/01/2025" }, "date"},
		{"clock", func(r *sampleRequest) { r.Start = "9am" }, "start_time"},
		{"hours", func(r *sampleRequest) { r.Hours = domain.WholeHours(30) }, "hours"},
		{"struct field name fallback", func(r *sampleRequest) { r.NoJSONTag = "toolong" }, "NoJSONTag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := Struct(r)
			assert.True(t, domain.IsValidation(err))
			assert.Equal(t, tt.field, domain.FieldOf(err))
		})
	}
}

func TestStruct_NonStruct(t *testing.T) {
	assert.True(t, domain.IsValidation(Struct("not a struct")))
}
