package duty

import (
	"errors"
	"testing"
)

func TestValidateInput(t *testing.T) {
	t.Parallel()

	t.Run("accepts a well formed input and trims whitespace", func(t *testing.T) {
		t.Parallel()

		got, err := ValidateInput(AssignmentInput{EmployeeName: "  Jan Kowalski ", Phone: " 123456789 "})
		if err != nil {
			t.Fatalf("ValidateInput failed: %v", err)
		}
		if got.EmployeeName != "Jan Kowalski" {
			t.Fatalf("expected trimmed name, got %q", got.EmployeeName)
		}
		if got.Phone != "123456789" {
			t.Fatalf("expected trimmed phone, got %q", got.Phone)
		}
	})

	t.Run("rejects malformed phones", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name  string
			phone string
		}{
			{"too short", "12345678"},
			{"too long", "1234567890"},
			{"letters", "12345678a"},
			{"formatted", "123-456-789"},
			{"empty", ""},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				_, err := ValidateInput(AssignmentInput{EmployeeName: "Jan", Phone: tc.phone})
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if _, ok := vErr.FieldErrors["phone"]; !ok {
					t.Fatalf("expected phone field error, got %v", vErr.FieldErrors)
				}
			})
		}
	})

	t.Run("rejects an empty employee name", func(t *testing.T) {
		t.Parallel()

		_, err := ValidateInput(AssignmentInput{EmployeeName: "   ", Phone: "123456789"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["employeeName"]; !ok {
			t.Fatalf("expected employeeName field error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("collects both field errors at once", func(t *testing.T) {
		t.Parallel()

		_, err := ValidateInput(AssignmentInput{})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(vErr.FieldErrors) != 2 {
			t.Fatalf("expected two field errors, got %v", vErr.FieldErrors)
		}
	})
}

func TestValidateDateKey(t *testing.T) {
	t.Parallel()

	if err := ValidateDateKey("2025-07-14"); err != nil {
		t.Fatalf("expected valid key, got %v", err)
	}
	for _, key := range []string{"2025-7-14", "14-07-2025", "2025-07-32", "not-a-date", ""} {
		if err := ValidateDateKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func TestScheduleClone(t *testing.T) {
	t.Parallel()

	original := Schedule{
		"2025-07-14": {EmployeeName: "Jan", Phone: "123456789", Date: "2025-07-14"},
	}
	clone := original.Clone()
	clone["2025-07-15"] = Assignment{EmployeeName: "Anna", Phone: "987654321", Date: "2025-07-15"}

	if len(original) != 1 {
		t.Fatalf("clone mutation leaked into the original: %v", original)
	}
	if Schedule(nil).Clone() != nil {
		t.Fatal("expected nil schedule to clone as nil")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unauthorized", ErrUnauthorized, "unauthorized"},
		{"wrapped unauthorized", errors.Join(errors.New("outer"), ErrUnauthorized), "unauthorized"},
		{"unavailable", ErrUnavailable, "unavailable"},
		{"not found", ErrNotFound, "not_found"},
		{"busy", ErrBusy, "busy"},
		{"validation", &ValidationError{FieldErrors: map[string]string{"phone": "bad"}}, "validation"},
		{"remote", &RemoteError{Status: 500}, "remote"},
		{"batch", &BatchError{Failed: map[string]error{"2025-07-14": ErrUnavailable}}, "batch"},
		{"unknown", errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestBatchError(t *testing.T) {
	t.Parallel()

	err := &BatchError{Failed: map[string]error{
		"2025-07-15": &RemoteError{Status: 500},
		"2025-07-14": ErrUnavailable,
	}}

	dates := err.Dates()
	if len(dates) != 2 || dates[0] != "2025-07-14" || dates[1] != "2025-07-15" {
		t.Fatalf("expected sorted dates, got %v", dates)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatal("expected errors.Is to see through the aggregate")
	}
	var rErr *RemoteError
	if !errors.As(err, &rErr) || rErr.Status != 500 {
		t.Fatalf("expected errors.As to find the remote error, got %v", rErr)
	}
}
