package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"carecoins/internal/models"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	pinRegex   = regexp.MustCompile(`^[0-9]{4}$`)
)

const (
	maxNameLength  = 100
	maxQueryLength = 100
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateFamilyName checks the display name of a new family
func ValidateFamilyName(name string) error {
	return required("family_name", name, maxNameLength)
}

// ValidateRole checks the free-text role label of the creating user
func ValidateRole(role string) error {
	return required("role", role, maxNameLength)
}

// ValidateActorName checks the name of a dependent
func ValidateActorName(field, name string) error {
	return required(field, name, maxNameLength)
}

// ValidateActorType checks that t is child, elderly or pet
func ValidateActorType(field, t string) error {
	if strings.TrimSpace(t) == "" {
		return ValidationError{Field: field, Message: "type is required"}
	}
	if !models.ActorType(t).IsValid() {
		return ValidationError{Field: field, Message: fmt.Sprintf("type must be one of %s", actorTypeList())}
	}
	return nil
}

// ValidatePIN checks for exactly four digits
func ValidatePIN(pin string) error {
	if pin == "" {
		return ValidationError{Field: "pin", Message: "pin is required"}
	}
	if !pinRegex.MatchString(pin) {
		return ValidationError{Field: "pin", Message: "pin must be exactly 4 digits"}
	}
	return nil
}

// ValidateSearchQuery checks a family search string
func ValidateSearchQuery(query string) error {
	return required("query", query, maxQueryLength)
}

// ParseTimestamp parses an RFC 3339 timestamp field
func ParseTimestamp(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, ValidationError{Field: field, Message: field + " is required"}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, ValidationError{Field: field, Message: "must be an RFC 3339 timestamp"}
	}
	return t, nil
}

// ValidateTimeRange checks that an activity does not end before it starts
func ValidateTimeRange(start, end time.Time) error {
	if end.Before(start) {
		return ValidationError{Field: "ends_at", Message: "ends_at must not be before scheduled_at"}
	}
	return nil
}

func required(field, value string, maxLen int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ValidationError{Field: field, Message: field + " is required"}
	}
	if utf8.RuneCountInString(value) > maxLen {
		return ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, maxLen)}
	}
	return nil
}

func actorTypeList() string {
	names := make([]string, len(models.ActorTypes))
	for i, t := range models.ActorTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
