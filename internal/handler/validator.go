package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one malformed request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is returned by RequestValidator when struct tags fail.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string { return fmt.Sprintf("%d invalid field(s)", len(fe)) }

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate satisfies echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, 0, len(verrs))
	for _, e := range verrs {
		msg := e.Error()
		switch e.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", e.Field())
		case "email":
			msg = fmt.Sprintf("%s must be a valid e-mail address", e.Field())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
		case "gt":
			msg = fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}
