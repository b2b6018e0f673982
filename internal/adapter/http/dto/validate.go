package dto

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct's validate tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// ValidationDetails renders a validation error as "field: tag" pairs in a stable order.
func ValidationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(details)
	return strings.Join(details, "; ")
}
