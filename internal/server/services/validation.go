package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/beesrs/identity/internal/common"
	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v.RegisterValidation("strong_password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	}))

	return &requestValidator{v: v}
}

// mustRegister panics if a custom validation could not be registered.
func mustRegister(err error) {
	if err != nil {
		panic(fmt.Sprintf("register validation: %v", err))
	}
}

// Struct validates req and converts failures to *common.ValidationError.
func (rv *requestValidator) Struct(req any) error {
	err := rv.v.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return &common.ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "eqfield":
		return "does not match"
	case "strong_password":
		return "must be at least 8 characters and contain upper, lower, digit and special characters"
	case "numeric":
		return "must contain digits only"
	case "ip":
		return "must be a valid IP address"
	case "max":
		return "is too long"
	default:
		return "is invalid"
	}
}

// IsStrongPassword requires at least 8 characters with one lower, one upper,
// one digit and one non-alphanumeric character.
func IsStrongPassword(p string) bool {
	if len([]rune(p)) < minPasswordLength {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}
	return lower && upper && digit && special
}
