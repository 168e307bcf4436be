// Package validator wraps go-playground/validator with the field naming
// and messages the BFF returns to clients.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by the name clients use: the json tag, then the query
	// tag, then the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	// Price and discount filters are decimals; numeric tags such as gte and
	// lte compare their float value.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return v
}

// maxBodyBytes bounds JSON request bodies. BFF payloads are small forms.
const maxBodyBytes = 64 << 10

// Validate checks s against its validate tags. Tag failures come back as a
// *ValidationError.
func Validate(s any) error {
	err := validate.Struct(s)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// ValidationError lists every failed field by its client-facing name.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	for i, fe := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "field '%s' %s", fe.Field(), describe(fe))
	}
	return b.String()
}

// Fields maps field name to message, as shown in 400 answers.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fe.Field()] = describe(fe)
	}
	return fields
}

// tagMessages holds fmt templates keyed by tag. %[1]s is the tag parameter.
var tagMessages = map[string]string{
	"required":         "is required",
	"email":            "must be a valid email address",
	"gte":              "must be greater than or equal to %[1]s",
	"lte":              "must be less than or equal to %[1]s",
	"oneof":            "must be one of: %[1]s",
	"latitude":         "must be a valid latitude",
	"longitude":        "must be a valid longitude",
	"iso3166_1_alpha2": "must be a two-letter country code",
	"url":              "must be a valid URL",
}

func describe(fe validator.FieldError) string {
	switch tag := fe.Tag(); tag {
	case "min", "max":
		bound := map[string]string{"min": "at least", "max": "at most"}[tag]
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be %s %s characters", bound, fe.Param())
		}
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	default:
		tmpl, ok := tagMessages[tag]
		if !ok {
			return fmt.Sprintf("failed on '%s' validation", tag)
		}
		if strings.Contains(tmpl, "%[1]s") {
			return fmt.Sprintf(tmpl, fe.Param())
		}
		return tmpl
	}
}

// Decode decodes a JSON body of at most maxBodyBytes into dst. Use it when
// fields need normalizing before Validate.
func Decode(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes+1)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// DecodeAndValidate is Decode followed by Validate.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := Decode(r, dst); err != nil {
		return err
	}
	return Validate(dst)
}
