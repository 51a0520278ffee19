package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mdr-platform/settings-service/internal/apperror"
	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/db/store"
)

const (
	msgNoPayload       = "No payload was provided to create."
	msgInvalidUpdate   = "Invalid data provided for update. Check the payload and that an id was passed to the service correctly."
	msgInvalidDelete   = "An id is required to delete a setting."
	msgNothingToUpdate = "There was no data found based on the id \"%s\" to update."
	msgValidation      = "A Validation Error has occurred."
	msgAdminOnly       = "Only System Administrators may change the settings."
)

// translate maps store and model failures to application errors.
// Store error codes never reach the caller.
func translate(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := apperror.As(err); ok {
		return err
	}

	var (
		dup *store.DuplicateKeyError
		fe  *models.FieldError
	)

	switch {
	case errors.As(err, &dup):
		return apperror.Validation(msgValidation, apperror.FieldError{
			Field:     dup.Field,
			ErrorType: apperror.KindUnique,
			Message:   fmt.Sprintf("a setting with %s `%v` already exists", dup.Field, dup.Value),
			Value:     dup.Value,
		})
	case errors.As(err, &fe):
		return apperror.Validation(msgValidation, apperror.FieldError{
			Field:     fe.Field,
			ErrorType: fe.Kind,
			Message:   fe.Message,
		})
	case errors.Is(err, store.ErrNotFound):
		return apperror.NotFound(err.Error())
	default:
		return apperror.Internal(err)
	}
}

func requiredField(field string) apperror.FieldError {
	return apperror.FieldError{
		Field:     field,
		ErrorType: apperror.KindRequired,
		Message:   fmt.Sprintf("Path `%s` is required.", field),
	}
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// validationFailure turns validator output into a 400 with one field error per rejected field.
func validationFailure(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation(err.Error())
	}

	fieldErrors := make([]apperror.FieldError, 0, len(verrs))
	messages := make([]string, 0, len(verrs))

	for _, fe := range verrs {
		// drop the struct name, keep element indexes: settingIds[1]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		out := apperror.FieldError{Field: field, ErrorType: apperror.KindInvalid}

		switch fe.Tag() {
		case "required":
			out.ErrorType = apperror.KindRequired
			out.Message = field + " is required"
		case "min":
			out.ErrorType = apperror.KindRequired
			out.Message = field + " must contain at least " + fe.Param() + " item"
		case "oneof":
			out.ErrorType = apperror.KindEnum
			out.Message = fmt.Sprintf("%s must be one of %s, got `%v`", field, fe.Param(), fe.Value())
			out.Value = fe.Value()
		default:
			out.Message = fmt.Sprintf("%s failed the %s check", field, fe.Tag())
		}

		fieldErrors = append(fieldErrors, out)
		messages = append(messages, out.Message)
	}

	return apperror.Validation(strings.Join(messages, "; "), fieldErrors...)
}
