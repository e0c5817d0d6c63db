// Package inputval validates decoded JSON request bodies with
// go-playground/validator and reports failures as a list of field errors.
//
// Define an input struct with json and validate tags. Optional fields on
// update inputs are pointers tagged omitempty so an absent field is skipped:
//
//	type updateInput struct {
//	    Title  *string `json:"title"  validate:"omitempty,min=3,max=200"`
//	    Status *string `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
//	}
//
//	if errs := inputval.Validate(in); errs.HasErrors() {
//	    jsonutil.ValidationErrors(w, errs)
//	    return
//	}
//
// Each error is rendered as
//
//	{"type": "field", "msg": "...", "path": "title", "location": "body"}
package inputval

import (
	"errors"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Locations reported in FieldError.Location.
const (
	LocationBody  = "body"
	LocationQuery = "query"
	LocationParam = "params"
)

// FieldError describes one violated rule.
type FieldError struct {
	Type     string `json:"type"`
	Msg      string `json:"msg"`
	Path     string `json:"path"`
	Location string `json:"location"`
	Value    any    `json:"value,omitempty"`
}

// Errors is the list of violated rules for one request.
type Errors []FieldError

// HasErrors returns true if there are any validation errors.
func (e Errors) HasErrors() bool { return len(e) > 0 }

// First returns the first error message, or empty string if no errors.
func (e Errors) First() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Msg
}

// Error joins every message with "; ".
func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Msg
	}
	return strings.Join(msgs, "; ")
}

// Add appends a body error produced by checks that struct tags cannot express.
func (e *Errors) Add(path, msg string) {
	*e = append(*e, Field(path, msg, LocationBody))
}

// Field constructs a single FieldError.
func Field(path, msg, location string) FieldError {
	return FieldError{Type: "field", Msg: msg, Path: path, Location: location}
}

var contentKeyRe = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

var (
	customValidator *validator.Validate
	validatorOnce   sync.Once
)

// getValidator returns the singleton validator with custom rules.
func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report json names rather than Go field names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		// httpurl: http:// or https:// URL
		_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			return IsValidHTTPURL(fl.Field().String())
		})

		// objectid: MongoDB ObjectID hex
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return IsValidObjectID(fl.Field().String())
		})

		// contentkey: page, section and key segments
		_ = v.RegisterValidation("contentkey", func(fl validator.FieldLevel) bool {
			return contentKeyRe.MatchString(fl.Field().String())
		})

		// notblank: at least one non-space character
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		customValidator = v
	})
	return customValidator
}

// Validate checks s against its validate tags. The result is empty when s
// is valid.
func Validate(s any) Errors {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{Field("", err.Error(), LocationBody)}
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		out = append(out, FieldError{
			Type:     "field",
			Msg:      formatMessage(path, fe),
			Path:     path,
			Location: LocationBody,
			Value:    printable(fe.Value()),
		})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace:
// "createInput.gallery[0]" becomes "gallery[0]".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// printable keeps scalar values for the error and drops composite ones.
func printable(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String, reflect.Bool, reflect.Int, reflect.Int64, reflect.Float64:
		return rv.Interface()
	default:
		return nil
	}
}

func isStringKind(fe validator.FieldError) bool {
	k := fe.Kind()
	return k == reflect.String
}

// formatMessage creates a user-friendly message for a validation rule.
func formatMessage(path string, fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required", "notblank":
		return path + " is required"
	case "email":
		return "A valid email address is required"
	case "oneof":
		return path + " must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "min":
		if isStringKind(fe) {
			return path + " must be at least " + param + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return path + " must contain at least " + param + " items"
		}
		return path + " must be at least " + param
	case "max":
		if isStringKind(fe) {
			return path + " must be at most " + param + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return path + " must contain at most " + param + " items"
		}
		return path + " must be at most " + param
	case "gte":
		return path + " must be greater than or equal to " + param
	case "lte":
		return path + " must be less than or equal to " + param
	case "len":
		return path + " must be exactly " + param + " characters"
	case "alpha":
		return path + " must contain only letters"
	case "httpurl", "url":
		return path + " must be a valid URL starting with http:// or https://"
	case "objectid":
		return path + " is not a valid ID"
	case "contentkey":
		return path + " must match ^[a-z0-9_-]{1,64}$"
	default:
		return path + " is invalid"
	}
}

// IsValidEmail checks if the given string has a valid email format.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// ParseAddress accepts "Name <email>", so require the bare address.
	return addr.Address == email
}

// IsValidHTTPURL checks if the given string is a valid http:// or https:// URL.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID checks if the given string is a valid MongoDB ObjectID hex.
func IsValidObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// IsValidContentKey reports whether s may be used as a page, section or key.
func IsValidContentKey(s string) bool {
	return contentKeyRe.MatchString(s)
}
