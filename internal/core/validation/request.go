package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Validator
// =============================================================================

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		mustRegister(v, "carnet", func(fl validator.FieldLevel) bool {
			return domain.ValidateCarnet(domain.NormalizeCarnet(fl.Field().String())) == nil
		})
		mustRegister(v, "clock", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseTimeOfDay(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "date", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseDate(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "hours", func(fl validator.FieldLevel) bool {
			h, ok := fl.Field().Interface().(domain.Hours)
			return ok && h.ValidateLogEntry() == nil
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// =============================================================================
// Struct Validation
// =============================================================================

// Struct validates s against its `validate` tags. It returns nil or a
// *domain.ValidationError for the first failing field.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.Invalidf(fe.Field(), "%s", message(fe))
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return domain.Invalidf("", "invalid request")
	}
	return domain.Invalidf("", "%s", err.Error())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	case "email":
		return "must be a valid email address"
	case "carnet":
		return domain.ErrInvalidCarnet.Error()
	case "clock":
		return "must be a time in HH:MM format"
	case "date":
		return "must be a date in YYYY-MM-DD format"
	case "hours":
		return domain.ErrHoursOutOfRange.Error()
	case "dive", "unique":
		return "contains invalid or duplicate values"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
