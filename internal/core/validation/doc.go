// Package validation checks inbound request structs before they reach the
// workflow layer.
//
// Request types declare their constraints with `validate` struct tags and
// Struct reports the first failing field as a *domain.ValidationError named
// after the field's JSON key.
//
// # Custom tags
//
//   - carnet: uppercase letters and digits only (after trimming)
//   - clock:  "HH:MM" wall-clock time
//   - date:   "YYYY-MM-DD" calendar date
//   - hours:  decimal hours string or number within an HourLog entry's bounds
//
// # Usage
//
//	if err := validation.Struct(req); err != nil {
//	    // 400 with domain.FieldOf(err)
//	}
package validation
