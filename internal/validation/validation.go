// Package validation checks request structs against their validate tags and
// reports violations as invalid-transaction errors keyed by JSON field name.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"caixa/backend/internal/store"
)

// Violations maps a JSON field path to the rule it broke.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

func (v Violations) String() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+v[field])
	}
	return strings.Join(parts, ", ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct validates req. The returned error wraps store.ErrInvalidTransaction.
func Struct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return store.Invalid("%v", err)
	}
	v := Violations{}
	for _, fe := range fieldErrs {
		v[fieldPath(fe)] = rule(fe)
	}
	return store.Invalid("%s", v.String())
}

func fieldPath(fe validator.FieldError) string {
	// Namespace is "SaleRequest.items[0].quantity"; drop the struct name.
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "needs at least " + fe.Param() + " entries"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email"
	}
	return "failed " + fe.Tag()
}
