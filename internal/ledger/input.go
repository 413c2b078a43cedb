package ledger

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxDescriptionLen  = 500
	maxNameLen         = 50
	maxDurationMinutes = 24 * 60
)

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// RecordInput is a student's self-reported activity.
type RecordInput struct {
	Date            string
	Category        string
	Subject         string
	DurationMinutes int
	Description     string
	StartTime       string
	EndTime         string
}

func (i *RecordInput) Validate() error {
	var errs []FieldError

	if strings.TrimSpace(i.Category) == "" {
		errs = append(errs, FieldError{Field: "category", Message: "required"})
	}
	if i.Date == "" {
		errs = append(errs, FieldError{Field: "date", Message: "required"})
	}
	if i.DurationMinutes > maxDurationMinutes {
		errs = append(errs, FieldError{Field: "duration_minutes", Message: "must be at most 1440"})
	}
	if utf8.RuneCountInString(i.Description) > maxDescriptionLen {
		errs = append(errs, FieldError{Field: "description", Message: "too long (max 500)"})
	}
	errs = append(errs, validateClock("start_time", i.StartTime)...)
	errs = append(errs, validateClock("end_time", i.EndTime)...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// EditInput changes an existing activity. Nil fields are left alone.
type EditInput struct {
	Date            *string
	Subject         *string
	DurationMinutes *int
	Description     *string
	StartTime       *string
	EndTime         *string
}

func (i *EditInput) Validate() error {
	var errs []FieldError

	if i.DurationMinutes != nil {
		switch {
		case *i.DurationMinutes <= 0:
			errs = append(errs, FieldError{Field: "duration_minutes", Message: "must be positive"})
		case *i.DurationMinutes > maxDurationMinutes:
			errs = append(errs, FieldError{Field: "duration_minutes", Message: "must be at most 1440"})
		}
	}
	if i.Description != nil && utf8.RuneCountInString(*i.Description) > maxDescriptionLen {
		errs = append(errs, FieldError{Field: "description", Message: "too long (max 500)"})
	}
	if i.StartTime != nil {
		errs = append(errs, validateClock("start_time", *i.StartTime)...)
	}
	if i.EndTime != nil {
		errs = append(errs, validateClock("end_time", *i.EndTime)...)
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PenaltyInput is a parent-issued deduction.
type PenaltyInput struct {
	UserID      string
	Category    string
	Description string
}

func (i *PenaltyInput) Validate() error {
	var errs []FieldError

	if i.UserID == "" {
		errs = append(errs, FieldError{Field: "user_id", Message: "required"})
	}
	if i.Category == "" {
		errs = append(errs, FieldError{Field: "category", Message: "required"})
	}
	if utf8.RuneCountInString(i.Description) > maxDescriptionLen {
		errs = append(errs, FieldError{Field: "description", Message: "too long (max 500)"})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateClock(field, v string) []FieldError {
	if v == "" || clockRe.MatchString(v) {
		return nil
	}
	return []FieldError{{Field: field, Message: "must be HH:MM"}}
}
