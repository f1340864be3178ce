package duty

import (
	"regexp"
	"strings"
	"time"
)

// DateKeyLayout is the calendar key format used throughout the module.
const DateKeyLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^\d{9}$`)

// Assignment records which employee carries the on-call phone on a given date.
type Assignment struct {
	EmployeeName string `json:"name"`
	Phone        string `json:"phone"`
	Date         string `json:"date"`
}

// AssignmentInput captures the caller provided fields of an assignment before a
// date key is attached.
type AssignmentInput struct {
	EmployeeName string
	Phone        string
}

// User mirrors the account record returned by the remote auth endpoints.
type User struct {
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	IsActive  bool   `json:"is_active"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
	LastLogin string `json:"last_login,omitempty"`
}

// Schedule is the full date-keyed assignment mapping as exchanged with the
// remote store and held by the local cache.
type Schedule map[string]Assignment

// Clone returns an independent copy of the schedule.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	for date, assignment := range s {
		out[date] = assignment
	}
	return out
}

// ValidateInput checks an assignment input against the domain invariants: a
// non-empty employee name and a phone of exactly nine digits. Leading and
// trailing whitespace is trimmed before evaluation.
func ValidateInput(input AssignmentInput) (AssignmentInput, error) {
	name := strings.TrimSpace(input.EmployeeName)
	phone := strings.TrimSpace(input.Phone)

	vErr := &ValidationError{}
	if name == "" {
		vErr.add("employeeName", "employee name must not be empty")
	}
	if !phonePattern.MatchString(phone) {
		vErr.add("phone", "phone must be exactly 9 digits")
	}
	if vErr.HasErrors() {
		return AssignmentInput{}, vErr
	}

	return AssignmentInput{EmployeeName: name, Phone: phone}, nil
}

// ValidateDateKey reports whether the value is a well formed YYYY-MM-DD key.
func ValidateDateKey(key string) error {
	if _, err := time.Parse(DateKeyLayout, key); err != nil {
		vErr := &ValidationError{}
		vErr.add("date", "date must use the YYYY-MM-DD form")
		return vErr
	}
	return nil
}
