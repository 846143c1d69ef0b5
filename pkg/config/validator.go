package config

import (
	"fmt"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// lookupField resolves a dotted path such as "Pool.Workers" on config.
func lookupField(config interface{}, path string) (reflect.Value, error) {
	current := reflect.ValueOf(config)
	for _, part := range strings.Split(path, ".") {
		if current.Kind() == reflect.Ptr {
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field %s not found in config struct", path)
		}
		current = current.FieldByName(part)
		if !current.IsValid() {
			return reflect.Value{}, fmt.Errorf("field %s not found in config struct", path)
		}
	}
	return current, nil
}

// RequiredFields fails when any of the named fields holds its zero value.
func RequiredFields(fields ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		var missing []string
		for _, name := range fields {
			v, err := lookupField(config, name)
			if err != nil {
				return err
			}
			if v.IsZero() {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("required fields are missing: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

// RangeValidator bounds a numeric field to [min, max].
func RangeValidator(fieldName string, min, max float64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := lookupField(config, fieldName)
		if err != nil {
			return err
		}

		var n float64
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = float64(v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = float64(v.Uint())
		case reflect.Float32, reflect.Float64:
			n = v.Float()
		default:
			return fmt.Errorf("field %s is not numeric", fieldName)
		}

		if n < min || n > max {
			return fmt.Errorf("field %s value %v is out of range [%v, %v]", fieldName, n, min, max)
		}
		return nil
	})
}

// DurationValidator bounds a time.Duration field to [min, max]. Timeouts
// of zero would make every connection or drain expire immediately.
func DurationValidator(fieldName string, min, max time.Duration) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := lookupField(config, fieldName)
		if err != nil {
			return err
		}
		if v.Type() != durationType {
			return fmt.Errorf("field %s is not a duration", fieldName)
		}
		d := time.Duration(v.Int())
		if d < min || d > max {
			return fmt.Errorf("field %s value %s is out of range [%s, %s]", fieldName, d, min, max)
		}
		return nil
	})
}

// AddrValidator requires a string field to be a host:port listen address
// with a numeric port (0 picks a free port).
func AddrValidator(fieldName string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := lookupField(config, fieldName)
		if err != nil {
			return err
		}
		if v.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", fieldName)
		}
		_, port, err := net.SplitHostPort(v.String())
		if err != nil {
			return fmt.Errorf("field %s: %w", fieldName, err)
		}
		if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
			return fmt.Errorf("field %s port %q is not in [0, 65535]", fieldName, port)
		}
		return nil
	})
}

// StringLengthValidator bounds the length of a string field.
func StringLengthValidator(fieldName string, minLen, maxLen int) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := lookupField(config, fieldName)
		if err != nil {
			return err
		}
		if v.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", fieldName)
		}
		if n := len(v.String()); n < minLen || n > maxLen {
			return fmt.Errorf("field %s length %d is out of range [%d, %d]", fieldName, n, minLen, maxLen)
		}
		return nil
	})
}

// OneOfValidator requires a field to equal one of allowed.
func OneOfValidator(fieldName string, allowed ...interface{}) Validator {
	return ValidatorFunc(func(config interface{}) error {
		v, err := lookupField(config, fieldName)
		if err != nil {
			return err
		}
		got := v.Interface()
		for _, a := range allowed {
			if reflect.DeepEqual(got, a) {
				return nil
			}
		}
		return fmt.Errorf("field %s value %v is not one of allowed values: %v", fieldName, got, allowed)
	})
}
