package event

import (
	"errors"
	"fmt"
	"time"
)

// Validation sentinels. Callers match with errors.Is.
var (
	ErrTitleRequired = errors.New("title is required")
	ErrDateRequired  = errors.New("date is required")
)

// ValidationError reports a draft or patch field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks the draft's required fields and formats.
func (d Draft) Validate() error {
	if d.Title == "" {
		return &ValidationError{Field: "title", Err: ErrTitleRequired}
	}
	if d.Date == "" {
		return &ValidationError{Field: "date", Err: ErrDateRequired}
	}
	if err := checkDate(d.Date); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if err := checkTime("start_time", d.StartTime); err != nil {
		return err
	}
	if err := checkTime("end_time", d.EndTime); err != nil {
		return err
	}
	return nil
}

// Validate checks the formats of any fields the patch touches. An empty
// patched title or date is rejected; times may be patched to empty
// (turning the event all-day).
func (p Patch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return &ValidationError{Field: "title", Err: ErrTitleRequired}
	}
	if p.Date != nil {
		if *p.Date == "" {
			return &ValidationError{Field: "date", Err: ErrDateRequired}
		}
		if err := checkDate(*p.Date); err != nil {
			return &ValidationError{Field: "date", Err: err}
		}
	}
	if p.StartTime != nil {
		if err := checkTime("start_time", *p.StartTime); err != nil {
			return err
		}
	}
	if p.EndTime != nil {
		if err := checkTime("end_time", *p.EndTime); err != nil {
			return err
		}
	}
	return nil
}

func checkDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("not a calendar date (want %s): %q", DateLayout, s)
	}
	return nil
}

func checkTime(field, s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return &ValidationError{
			Field: field,
			Err:   fmt.Errorf("not a time of day (want %s): %q", TimeLayout, s),
		}
	}
	return nil
}
