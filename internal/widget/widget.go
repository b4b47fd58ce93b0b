// Package widget picks the input widget of a record field. An explicit
// override on the record type wins, foreign keys become choice lists over
// the related records, and every other field gets the widget of its kind.
package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/crudforms/internal/display"
	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/pkg/types"
	"github.com/mesh-intelligence/crudforms/pkg/ui"
)

// Numeric input steps.
const (
	IntStep   int64   = 1
	FloatStep float64 = 0.1
)

// BoolOptions are the choices of a boolean field, true first.
var BoolOptions = []string{"True", "False"}

var boolChoices = ui.Choices(BoolOptions...)

// Lister loads the records of a type. *store.Backend implements it.
type Lister interface {
	ListAll(ctx context.Context, rt *schema.RecordType, filter map[string]any) ([]any, error)
}

// Selector builds input functions for fields.
type Selector struct {
	registry *schema.Registry
	lister   Lister

	// Now is the clock behind date and time defaults.
	Now func() time.Time
}

// NewSelector returns a selector resolving foreign keys through registry
// and loading their choices from lister.
func NewSelector(registry *schema.Registry, lister Lister) *Selector {
	return &Selector{registry: registry, lister: lister, Now: time.Now}
}

// For returns the input function of field f of rt.
func (s *Selector) For(ctx context.Context, rt *schema.RecordType, f types.Field) (ui.InputFunc, error) {
	if in, ok := rt.Overrides[f.Column]; ok {
		return in, nil
	}
	if f.Kind == types.KindForeignKey {
		return s.foreignKey(ctx, f)
	}

	switch f.Kind {
	case types.KindInteger:
		return s.integer(f), nil
	case types.KindFloat:
		return s.float(f), nil
	case types.KindBoolean:
		return s.boolean(f), nil
	case types.KindDate:
		return s.date(f), nil
	case types.KindTime:
		return s.timeOfDay(f), nil
	case types.KindDateTime:
		return s.dateTime(f), nil
	case types.KindLongText:
		return func(tk ui.Toolkit, label string, value any) any {
			return tk.TextArea(label, textValue(f, value))
		}, nil
	case types.KindText:
		return func(tk ui.Toolkit, label string, value any) any {
			return tk.TextInput(label, textValue(f, value))
		}, nil
	}
	return nil, fmt.Errorf("%w: %s.%s is %s", types.ErrUnsupportedType, rt.Name, f.Name, f.Kind)
}

// foreignKey lists the records of the referenced type, ordered by their
// sort key. The list is taken once, when the input function is built.
func (s *Selector) foreignKey(ctx context.Context, f types.Field) (ui.InputFunc, error) {
	target, err := s.registry.Lookup(f.Ref)
	if err != nil {
		return nil, err
	}
	recs, err := s.lister.ListAll(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("loading choices for %s: %w", f.Column, err)
	}
	display.Sort(target, recs)
	choices := display.Choices(target, recs)

	return func(tk ui.Toolkit, label string, value any) any {
		index := ui.NoSelection
		if want, ok := schema.Identity(value); ok {
			for i, rec := range recs {
				if id, _ := target.ID(rec); id == want {
					index = i
					break
				}
			}
		}
		i := tk.SelectBox(label, choices, index)
		if i < 0 || i >= len(recs) {
			return nil
		}
		return recs[i]
	}, nil
}

func (s *Selector) integer(f types.Field) ui.InputFunc {
	return func(tk ui.Toolkit, label string, value any) any {
		var v int64
		if n, ok := canonical(f, value).(int64); ok {
			v = n
		}
		return tk.IntInput(label, v, IntStep)
	}
}

func (s *Selector) float(f types.Field) ui.InputFunc {
	return func(tk ui.Toolkit, label string, value any) any {
		var v float64
		if x, ok := canonical(f, value).(float64); ok {
			v = x
		}
		return tk.FloatInput(label, v, FloatStep)
	}
}

func (s *Selector) boolean(f types.Field) ui.InputFunc {
	return func(tk ui.Toolkit, label string, value any) any {
		index := ui.NoSelection
		if b, ok := canonical(f, value).(bool); ok {
			index = 1
			if b {
				index = 0
			}
		}
		switch tk.SelectBox(label, boolChoices, index) {
		case 0:
			return true
		case 1:
			return false
		}
		return nil
	}
}

func (s *Selector) date(f types.Field) ui.InputFunc {
	return func(tk ui.Toolkit, label string, value any) any {
		v, ok := canonical(f, value).(time.Time)
		if !ok {
			v = s.Now()
		}
		return midnight(tk.DateInput(label, v))
	}
}

// timeOfDay defaults to the current hour when the field has neither a value
// nor a default.
func (s *Selector) timeOfDay(f types.Field) ui.InputFunc {
	return func(tk ui.Toolkit, label string, value any) any {
		v, ok := canonical(f, value).(time.Time)
		if !ok {
			v = hour(s.Now())
		}
		return tk.TimeInput(label, v, ui.LabelVisible)
	}
}

// dateTime renders a date picker and a label-less time picker and joins
// them. Without a value the time part starts at the current hour.
func (s *Selector) dateTime(f types.Field) ui.InputFunc {
	return func(tk ui.Toolkit, label string, value any) any {
		d, ok := canonical(f, value).(time.Time)
		t := d
		if !ok {
			d = s.Now()
			t = hour(d)
		}
		day := tk.DateInput(label, d)
		clock := tk.TimeInput(label, t, ui.LabelCollapsed)
		return time.Date(day.Year(), day.Month(), day.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), time.Local)
	}
}

func textValue(f types.Field, value any) string {
	s, _ := canonical(f, value).(string)
	return s
}

// canonical returns the normalized value, the field default when value is
// nil, or nil.
func canonical(f types.Field, value any) any {
	if value != nil {
		if v, err := schema.Normalize(f.Kind, value); err == nil && v != nil {
			return v
		}
	}
	if f.HasDefault {
		return f.Default
	}
	return nil
}

func midnight(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func hour(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.Local)
}
