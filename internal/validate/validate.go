// Package validate holds the client-side field rules applied before any request is sent.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"salas/internal/view"
)

// Error is a client-side validation failure; it never reaches the network layer.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return true
	}
	var ves validation.Errors
	return errors.As(err, &ves)
}

// Report writes err to status as a rejection and returns err unchanged.
func Report(status view.Status, err error) error {
	if err != nil && status != nil {
		status.SetStatus(view.StatusError, Message(err))
	}
	return err
}

// Message flattens ozzo field errors into a single line.
func Message(err error) string {
	var ves validation.Errors
	if errors.As(err, &ves) {
		keys := make([]string, 0, len(ves))
		for k, fe := range ves {
			if fe != nil {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, ves[k].Error())
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return err.Error()
}

// FieldOf returns the key of the first offending field, "" when unknown.
func FieldOf(err error) string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Field
	}
	var ves validation.Errors
	if errors.As(err, &ves) {
		keys := make([]string, 0, len(ves))
		for k, fe := range ves {
			if fe != nil {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			return keys[0]
		}
	}
	return ""
}

const msgBadCI = "Formato de CI inválido"

var (
	ciStructured = regexp.MustCompile(`^\d{1,2}\.?\d{3}\.?\d{3}-?\d$`)
	ciBare       = regexp.MustCompile(`^\d{7,8}$`)
	nonDigits    = regexp.MustCompile(`\D`)
	hasLetter    = regexp.MustCompile(`[A-Za-zÁÉÍÓÚÜÑáéíóúüñ]`)
	dateLayout   = "2006-01-02"
)

// NationalID normalises a CI such as "1.234.567-8" to its digits.
func NationalID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	digits := nonDigits.ReplaceAllString(s, "")
	if len(digits) < 7 || len(digits) > 8 {
		return "", &Error{Field: "ci", Message: msgBadCI}
	}
	if !ciStructured.MatchString(s) && !ciBare.MatchString(s) {
		return "", &Error{Field: "ci", Message: msgBadCI}
	}
	return digits, nil
}

// Name checks a person-name field and returns it trimmed.
func Name(label, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if utf8.RuneCountInString(s) < 2 || !hasLetter.MatchString(s) {
		return "", &Error{Field: strings.ToLower(label), Message: label + " inválido"}
	}
	return s, nil
}

// Email checks the address format.
func Email(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if err := validation.Validate(s, validation.Required, is.Email); err != nil {
		return "", &Error{Field: "email", Message: "Email inválido"}
	}
	return s, nil
}

// IDList parses a comma separated list of CIs. One bad entry rejects the whole list.
func IDList(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ci, err := NationalID(p)
		if err != nil {
			return nil, &Error{Field: "participantes", Message: fmt.Sprintf("%s: %s", msgBadCI, p)}
		}
		out = append(out, ci)
	}
	return out, nil
}

// Date checks a YYYY-MM-DD date.
func Date(label, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", &Error{Field: strings.ToLower(label), Message: label + " inválida (AAAA-MM-DD)"}
	}
	return s, nil
}

// Time accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func Time(label, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", &Error{Field: strings.ToLower(label), Message: label + " inválida (HH:MM)"}
}

// PositiveInt parses a strictly positive integer.
func PositiveInt(label, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, &Error{Field: strings.ToLower(label), Message: label + " debe ser un número positivo"}
	}
	return n, nil
}

// ciRule adapts NationalID to an ozzo rule.
var ciRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := NationalID(s)
	return err
})

// nameRule adapts Name to an ozzo rule.
func nameRule(label string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		_, err := Name(label, s)
		return err
	})
}

// dateRule adapts Date to an ozzo rule.
func dateRule(label string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		_, err := Date(label, s)
		return err
	})
}
