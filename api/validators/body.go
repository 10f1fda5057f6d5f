package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
)

// MaxJSONBodyBytes caps control-plane JSON bodies.
const MaxJSONBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() != reflect.String || strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// DecodeJSONBody decodes a strict JSON body and runs struct validation.
func DecodeJSONBody(r *http.Request, dest any) error {
	return decode(r, dest, true)
}

// DecodeLooseJSONBody is DecodeJSONBody for payloads that carry fields the
// edge does not read, such as full menu items sent by the UI.
func DecodeLooseJSONBody(r *http.Request, dest any) error {
	return decode(r, dest, false)
}

func decode(r *http.Request, dest any, strict bool) error {
	body := &io.LimitedReader{R: r.Body, N: MaxJSONBodyBytes + 1}
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	decoder := json.NewDecoder(body)
	if strict {
		decoder.DisallowUnknownFields()
	}
	err := decoder.Decode(dest)
	switch {
	case body.N <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
			WithDetails(map[string]any{"max_bytes": MaxJSONBodyBytes})
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
	case err != nil:
		return invalidBody(err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return invalidBody(errors.New("unexpected data after JSON value"))
	}
	return Struct(dest)
}

func invalidBody(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
		WithDetails(map[string]any{"error": err.Error()})
}

// Struct runs tag validation and reports failures keyed by JSON field name.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return "is invalid"
	}
}
