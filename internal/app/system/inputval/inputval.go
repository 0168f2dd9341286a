// internal/app/system/inputval/inputval.go

// Package inputval validates request DTOs via struct tags and provides the
// hand validators the tag language cannot express (meeting times).
//
// DTOs declare rules with `validate:"..."` tags and a human-facing `label`
// tag used in error messages:
//
//	type createGroupInput struct {
//		GroupName string `validate:"required,max=200" label:"Group name"`
//	}
package inputval

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their label tag so messages read naturally.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return fld.Name
	})
	return v
}

// Result collects validation failures for one input struct.
type Result struct {
	errs []string
}

// HasErrors reports whether any rule failed.
func (r Result) HasErrors() bool { return len(r.errs) > 0 }

// First returns the first failure message, or "".
func (r Result) First() string {
	if len(r.errs) == 0 {
		return ""
	}
	return r.errs[0]
}

// All returns every failure message.
func (r Result) All() []string { return r.errs }

// Validate runs the struct-tag rules on input.
func Validate(input any) Result {
	err := validate.Struct(input)
	if err == nil {
		return Result{}
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return Result{errs: []string{err.Error()}}
	}

	var r Result
	for _, fe := range ve {
		r.errs = append(r.errs, message(fe))
	}
	return r
}

func message(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be %s or less", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "dive":
		return fmt.Sprintf("%s contains an invalid entry", name)
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

// timeRe matches 24-hour "HH:MM".
var timeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// IsValidMeetingTime reports whether s is a 24-hour "HH:MM" time.
func IsValidMeetingTime(s string) bool {
	return timeRe.MatchString(s)
}

// Meeting slot bounds.
const (
	MinMeetingMinutes = 15
	MaxMeetingMinutes = 480
)

// CheckMeetingSlot validates one recurring meeting definition:
// dayOfWeek in [0,6], time "HH:MM", duration in [15,480] minutes.
func CheckMeetingSlot(dayOfWeek int, timeStr string, durationMinutes int) error {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return fmt.Errorf("day of week must be between 0 (Sunday) and 6 (Saturday), got %d", dayOfWeek)
	}
	if !IsValidMeetingTime(timeStr) {
		return fmt.Errorf("meeting time must be 24-hour HH:MM, got %q", timeStr)
	}
	if durationMinutes < MinMeetingMinutes || durationMinutes > MaxMeetingMinutes {
		return fmt.Errorf("meeting duration must be between %d and %d minutes, got %d",
			MinMeetingMinutes, MaxMeetingMinutes, durationMinutes)
	}
	return nil
}
