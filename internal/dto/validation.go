package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// FieldError is a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type crossFieldValidator interface {
	CrossFieldErrors() []FieldError
}

// NewValidator returns a validator configured with the timetable rules and JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}

// Register installs the custom rules on an existing validator instance.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("clock", validateClock)
	_ = v.RegisterValidation("clockafter", validateClockAfter)
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := models.ParseClockTime(fl.Field().String())
	return err == nil
}

func validateClockAfter(fl validator.FieldLevel) bool {
	other := fl.Parent().FieldByName(fl.Param())
	if !other.IsValid() || other.Kind() != reflect.String || other.String() == "" {
		return true
	}
	start, err := models.ParseClockTime(other.String())
	if err != nil {
		// reported by the clock rule on the other field
		return true
	}
	end, err := models.ParseClockTime(fl.Field().String())
	if err != nil {
		return true
	}
	return end > start
}

// Validate checks a request struct and returns every rejected field. It never touches the domain.
func Validate(v *validator.Validate, req interface{}) []FieldError {
	if v == nil {
		v = NewValidator()
	}
	var out []FieldError
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []FieldError{{Field: "", Rule: "invalid", Message: err.Error()}}
		}
		for _, fe := range verrs {
			out = append(out, FieldError{
				Field:   fieldPath(fe),
				Rule:    fe.Tag(),
				Message: describe(fe),
			})
		}
	}
	if cross, ok := req.(crossFieldValidator); ok {
		out = append(out, cross.CrossFieldErrors()...)
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "clock":
		return fmt.Sprintf("%s must be a time formatted HH:MM", field)
	case "clockafter":
		return fmt.Sprintf("%s must be after %s", field, strings.ToLower(toSnake(fe.Param())))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
