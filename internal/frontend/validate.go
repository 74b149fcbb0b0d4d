package frontend

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("collection_name", func(fl validator.FieldLevel) bool {
		return ValidateCollectionName(fl.Field().String()) == nil
	})

	_ = v.RegisterValidation("database_name", func(fl validator.FieldLevel) bool {
		return ValidateDatabaseName(fl.Field().String()) == nil
	})

	return v
}

// ValidateCollectionName checks the collection naming rules: up to 512
// characters of [a-zA-Z0-9._-], starting and ending with an alphanumeric,
// without "..", and not an IPv4 address.
func ValidateCollectionName(name string) error {
	switch {
	case len(name) == 0 || len(name) > 512:
		return fmt.Errorf("collection name %q must be between 1 and 512 characters", name)
	case !namePattern.MatchString(name):
		return fmt.Errorf("collection name %q must contain only [a-zA-Z0-9._-] and start and end with an alphanumeric", name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("collection name %q must not contain two consecutive periods", name)
	case net.ParseIP(name) != nil && strings.Count(name, ".") == 3:
		return fmt.Errorf("collection name %q must not be a valid IPv4 address", name)
	}
	return nil
}

// ValidateDatabaseName checks that a database name has 3 to 512 characters.
func ValidateDatabaseName(name string) error {
	if len(name) < 3 || len(name) > 512 {
		return fmt.Errorf("database name %q must be between 3 and 512 characters", name)
	}
	return nil
}

// check validates a request struct and flattens failures into ErrValidation.
func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s elements", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got: %v)", field, e.Param(), e.Value())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	case "collection_name":
		return ValidateCollectionName(fmt.Sprint(e.Value())).Error()
	case "database_name":
		return ValidateDatabaseName(fmt.Sprint(e.Value())).Error()
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", field, e.Tag(), e.Value())
	}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
