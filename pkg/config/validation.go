package config

import (
	"reflect"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// Validator is an optional interface configuration structs may implement
// for custom validation logic. If the struct passed to [Loader.Load]
// implements Validator, its Validate method is called after tag-based
// required validation succeeds.
//
// Errors that are already [*engerr.Error] are returned as-is; other
// errors are wrapped with [engerr.CodeValidation].
type Validator interface {
	Validate() error
}

// validate performs tag-based required validation and then invokes the
// Validator interface if the config struct implements it.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isEngErr := engerr.AsError(err); isEngErr {
				return err
			}
			return engerr.Wrap(err, engerr.CodeValidation,
				"config: custom validation failed")
		}
	}

	return nil
}

// validateRequired recursively checks that all fields tagged with
// `required:"true"` hold non-zero values. The path parameter tracks the
// dotted field path for error messages (e.g., "Server.Port").
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return engerr.Newf(engerr.CodeValidation,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}
