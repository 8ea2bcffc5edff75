package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/edt-scheduler/internal/models"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

// newValidator reports failing fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// fieldErrors converts validator output into the list of offending fields.
func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field())
	}
	return out
}

// validationFailure wraps the missing field list into the validation error kind.
func validationFailure(missing []string, reason string) error {
	detail := &models.ValidationError{Missing: missing, Reason: reason}
	message := reason
	if message == "" {
		message = appErrors.ErrValidation.Message
	}
	return appErrors.CloneWrap(appErrors.ErrValidation, detail, message)
}

// conflictFailure wraps blocking conflicts into the conflict error kind.
func conflictFailure(conflicts []models.Conflict) error {
	detail := &models.ConflictError{Conflicts: conflicts}
	return appErrors.CloneWrap(appErrors.ErrConflict, detail, "operation rejected by conflicts")
}
