package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/mesh-intelligence/crudforms/pkg/types"
)

var timeType = reflect.TypeOf(time.Time{})

// Normalize converts v to the canonical representation of kind: int64 for
// integers and foreign keys, float64, bool, string, time.Time. Pointers are
// dereferenced; nil and nil pointers become nil.
func Normalize(kind types.FieldKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch kind {
	case types.KindInteger, types.KindForeignKey:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("%w: %d overflows int64", types.ErrTypeMismatch, u)
			}
			return int64(u), nil
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
				return int64(f), nil
			}
		}
	case types.KindFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), nil
		}
	case types.KindBoolean:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case types.KindText, types.KindLongText:
		switch {
		case rv.Kind() == reflect.String:
			return rv.String(), nil
		case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
			return string(rv.Bytes()), nil
		}
	case types.KindDate, types.KindTime, types.KindDateTime:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time), nil
		}
	}
	return nil, fmt.Errorf("%w: %s field cannot hold %T", types.ErrTypeMismatch, kind, v)
}

// parseDefault converts the literal of a default= tag option.
func parseDefault(kind types.FieldKind, lit string) (any, error) {
	var (
		v   any
		err error
	)
	switch kind {
	case types.KindInteger:
		v, err = strconv.ParseInt(lit, 10, 64)
	case types.KindFloat:
		v, err = strconv.ParseFloat(lit, 64)
	case types.KindBoolean:
		v, err = strconv.ParseBool(lit)
	case types.KindText, types.KindLongText:
		v = lit
	case types.KindDate:
		v, err = time.ParseInLocation(DateLayout, lit, time.Local)
	case types.KindTime:
		v, err = time.ParseInLocation(TimeLayout, lit, time.Local)
	case types.KindDateTime:
		v, err = time.ParseInLocation(DateTimeLayout, lit, time.Local)
	default:
		return nil, fmt.Errorf("%w: %s fields take no default", types.ErrInvalidTag, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: default %q: %v", types.ErrInvalidTag, lit, err)
	}
	return v, nil
}

// Layouts of temporal values in tags, storage and display.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// assign stores a canonical value into a struct field, allocating pointers
// and converting integer widths.
func assign(field reflect.Value, v any) error {
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.(int64)
		if !ok || field.OverflowInt(n) {
			return fmt.Errorf("%w: cannot store %v in %s", types.ErrTypeMismatch, v, field.Type())
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := v.(int64)
		if !ok || n < 0 || field.OverflowUint(uint64(n)) {
			return fmt.Errorf("%w: cannot store %v in %s", types.ErrTypeMismatch, v, field.Type())
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%w: cannot store %T in %s", types.ErrTypeMismatch, v, field.Type())
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: cannot store %T in %s", types.ErrTypeMismatch, v, field.Type())
		}
		field.SetBool(b)
	case reflect.String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: cannot store %T in %s", types.ErrTypeMismatch, v, field.Type())
		}
		field.SetString(s)
	default:
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(field.Type()) {
			return fmt.Errorf("%w: cannot store %T in %s", types.ErrTypeMismatch, v, field.Type())
		}
		field.Set(rv)
	}
	return nil
}
