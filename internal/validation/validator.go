package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rhenando/maxsmile/internal/clinic"
)

type Validator struct {
	v *validator.Validate
}

// New builds the request validator. Branch and service membership tags
// are bound to the clinic directory so referencing fields are checked
// against the loaded catalog, not hard-coded lists.
func New(dir *clinic.Directory) *Validator {
	v := validator.New()

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := clinic.ParseDate(value)
		return err == nil
	})

	mobileRegex := regexp.MustCompile(`^\+?[0-9 -]{8,20}$`)
	v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return mobileRegex.MatchString(strings.TrimSpace(value))
	})

	v.RegisterValidation("branch", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return dir.IsBranch(value)
	})

	v.RegisterValidation("service", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return dir.IsService(value)
	})

	return &Validator{v: v}
}

func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

func (v *Validator) ValidationErrors(err error) validator.ValidationErrors {
	if err == nil {
		return nil
	}
	if ve, ok := err.(validator.ValidationErrors); ok {
		return ve
	}
	return nil
}
