package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// Temporal values are stored as text in these layouts. Times keep their
// fractional seconds; datetimes keep their zone offset.
const (
	storedTime     = "15:04:05.999999999"
	storedDateTime = time.RFC3339Nano
)

// toDB converts a canonical value of f into a bind parameter.
func toDB(f types.Field, v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	switch f.Kind {
	case types.KindDate:
		return t.Format(schema.DateLayout)
	case types.KindTime:
		return t.Format(storedTime)
	}
	return t.Format(storedDateTime)
}

// fromDB converts a scanned column value into the canonical value of f.
// Drivers disagree on what they hand back for a column, so every
// representation a driver may produce is accepted.
func fromDB(f types.Field, raw any) (any, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return nil, nil
	}
	switch f.Kind {
	case types.KindInteger, types.KindForeignKey:
		if s, ok := raw.(string); ok {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", f.Column, err)
			}
			return n, nil
		}
	case types.KindFloat:
		if s, ok := raw.(string); ok {
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", f.Column, err)
			}
			return x, nil
		}
	case types.KindBoolean:
		switch x := raw.(type) {
		case int64:
			return x != 0, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", f.Column, err)
			}
			return b, nil
		}
	case types.KindDate, types.KindTime, types.KindDateTime:
		if s, ok := raw.(string); ok {
			return parseTemporal(f.Kind, s)
		}
		if t, ok := raw.(time.Time); ok {
			return t.In(time.Local), nil
		}
	}
	v, err := schema.Normalize(f.Kind, raw)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", f.Column, err)
	}
	return v, nil
}

func parseTemporal(kind types.FieldKind, s string) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	switch kind {
	case types.KindDate:
		t, err = time.ParseInLocation(schema.DateLayout, s, time.Local)
	case types.KindTime:
		t, err = time.ParseInLocation(storedTime, s, time.Local)
	default:
		t, err = time.Parse(storedDateTime, s)
		if err != nil {
			t, err = time.ParseInLocation(schema.DateTimeLayout, s, time.Local)
		}
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.In(time.Local), nil
}
