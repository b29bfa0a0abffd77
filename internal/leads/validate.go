package leads

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return storable(fl.Field().String(), false)
	})
	return v
}

// storable reports whether s can be written to a text column: valid UTF-8
// and no NUL. Other control characters pass only when allowControl is set.
func storable(s string, allowControl bool) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == 0 || (!allowControl && unicode.IsControl(r)) {
			return false
		}
	}
	return true
}

// storableData walks decoded JSON and rejects keys or strings jsonb cannot hold.
func storableData(v any) bool {
	switch t := v.(type) {
	case string:
		return storable(t, true)
	case []any:
		for _, e := range t {
			if !storableData(e) {
				return false
			}
		}
	case map[string]any:
		for k, e := range t {
			if !storable(k, true) || !storableData(e) {
				return false
			}
		}
	}
	return true
}

// Normalize trims surrounding whitespace and lower-cases the email so the
// uniqueness constraint and the rate-limit key see one canonical form.
func Normalize(in CreateLeadInput) CreateLeadInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	return in
}

// Validate checks every constraint and returns all violations together
// as a *ValidationError, or nil.
func Validate(in CreateLeadInput) error {
	out := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ValidationError{Fields: []FieldError{{Field: "payload", Reason: err.Error()}}}
		}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Reason: reason(fe)})
		}
	}
	if !storableData(in.AdditionalData) {
		out.Fields = append(out.Fields, FieldError{
			Field:  "additionalData",
			Reason: "must not contain NUL characters or invalid UTF-8",
		})
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return out
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be blank"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "nocontrol":
		return "must not contain control characters"
	case "phone":
		return "must be an international phone number (e.g. +12025550123)"
	case "datetime":
		return "must be a valid calendar date (YYYY-MM-DD)"
	default:
		return "is invalid"
	}
}
