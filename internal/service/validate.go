package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"citylink/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("issuetype", func(fl validator.FieldLevel) bool {
		return models.IssueType(fl.Field().String()).Valid()
	})
	return v
}

// validateStruct runs the struct tags and converts failures into a
// ValidationError keyed by JSON path (location.coordinates.latitude).
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "email":
		return "Valid email is required"
	case "len":
		return fmt.Sprintf("%s must be %s digits", name, fe.Param())
	case "number":
		return name + " must contain only digits"
	case "category":
		return "Invalid category"
	case "issuetype":
		return "Invalid issue type"
	}
	return "Invalid " + name
}
