// Package schema describes database-mapped record types. A record type is a
// Go struct whose fields carry db tags; Describe reflects over it once and
// yields the ordered field descriptors the rest of crudforms works from.
package schema

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/mesh-intelligence/crudforms/pkg/types"
	"github.com/mesh-intelligence/crudforms/pkg/ui"
)

// RecordType is the description of one record struct type.
type RecordType struct {
	Name   string       // Go type name, used in form keys.
	Table  string       // Table name.
	GoType reflect.Type // The struct type (never a pointer).

	// Overrides holds the custom input functions of the type, keyed by
	// column.
	Overrides map[string]ui.InputFunc

	idColumn string
	idIndex  int
	fields   []types.Field
	indexes  map[string]int // column → struct field index
}

var (
	describeMu sync.Mutex
	described  = map[reflect.Type]*RecordType{}
)

// Describe returns the record type of model, a struct value or a pointer to
// one. Results are cached per Go type.
func Describe(model any) (*RecordType, error) {
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T", types.ErrNotStruct, model)
	}

	describeMu.Lock()
	defer describeMu.Unlock()
	if rt, ok := described[t]; ok {
		return rt, nil
	}
	rt, err := describe(t)
	if err != nil {
		return nil, err
	}
	described[t] = rt
	return rt, nil
}

func describe(t reflect.Type) (*RecordType, error) {
	rt := &RecordType{
		Name:    t.Name(),
		Table:   SnakeCase(t.Name()),
		GoType:  t,
		idIndex: -1,
		indexes: make(map[string]int),
	}
	zero := reflect.New(t).Interface()
	if tb, ok := zero.(types.Tabler); ok {
		rt.Table = tb.TableName()
	}

	pkIndex := -1
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tag, tagged := sf.Tag.Lookup(tagName)
		if tag == "-" {
			continue
		}
		opts, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
		if !tagged || opts.column == "" {
			opts.column = SnakeCase(sf.Name)
		}
		if _, dup := rt.indexes[opts.column]; dup || opts.column == rt.idColumn {
			return nil, fmt.Errorf("%w: %s.%s: column %q declared twice", types.ErrInvalidTag, t.Name(), sf.Name, opts.column)
		}

		if opts.pk || (pkIndex < 0 && opts.column == "id") {
			if opts.pk && pkIndex >= 0 {
				return nil, fmt.Errorf("%w: %s declares two pk fields", types.ErrInvalidTag, t.Name())
			}
			if !isInteger(sf.Type) {
				return nil, fmt.Errorf("%w: %s.%s is %s", types.ErrNoIdentity, t.Name(), sf.Name, sf.Type)
			}
			if rt.idColumn != "" {
				// A column named id was taken as identity before the pk
				// field showed up; demote it.
				demoted := t.Field(rt.idIndex)
				idOpts, _ := parseTag(demoted.Tag.Get(tagName))
				idOpts.column = rt.idColumn
				if err := rt.addField(demoted, idOpts); err != nil {
					return nil, err
				}
			}
			rt.idColumn, rt.idIndex = opts.column, i
			if opts.pk {
				pkIndex = i
			}
			continue
		}
		if err := rt.addField(sf, opts); err != nil {
			return nil, err
		}
	}

	if rt.idColumn == "" {
		return nil, fmt.Errorf("%w: %s", types.ErrNoIdentity, t.Name())
	}
	if len(rt.fields) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrNoFields, t.Name())
	}
	if ov, ok := zero.(types.InputOverrider); ok {
		rt.Overrides = ov.InputOverrides()
		for column := range rt.Overrides {
			if _, ok := rt.indexes[column]; !ok {
				return nil, fmt.Errorf("%w: %s has an input override for %q", types.ErrUnknownField, t.Name(), column)
			}
		}
	}
	return rt, nil
}

func (rt *RecordType) addField(sf reflect.StructField, opts tagOptions) error {
	f := types.Field{
		Name:    sf.Name,
		Column:  opts.column,
		Ref:     opts.ref,
		NotNull: opts.notNull,
		Unique:  opts.unique,
	}
	base := sf.Type
	if base.Kind() == reflect.Pointer {
		f.Nullable = true
		base = base.Elem()
	}

	switch {
	case opts.ref != "":
		if !isInteger(base) {
			return fmt.Errorf("%w: %s.%s: fk field must be an integer, got %s", types.ErrUnsupportedType, rt.Name, sf.Name, sf.Type)
		}
		f.Kind = types.KindForeignKey
		f.NotNull = f.NotNull || !f.Nullable
	case base == timeType:
		switch opts.kind {
		case "date":
			f.Kind = types.KindDate
		case "time":
			f.Kind = types.KindTime
		default:
			f.Kind = types.KindDateTime
		}
	case opts.kind != "":
		return fmt.Errorf("%w: %s.%s: kind=%s needs a time.Time field", types.ErrInvalidTag, rt.Name, sf.Name, opts.kind)
	case base.Kind() == reflect.String:
		f.Kind = types.KindText
		if opts.long {
			f.Kind = types.KindLongText
		}
	case isInteger(base):
		f.Kind = types.KindInteger
	case base.Kind() == reflect.Float32 || base.Kind() == reflect.Float64:
		f.Kind = types.KindFloat
	case base.Kind() == reflect.Bool:
		f.Kind = types.KindBoolean
	default:
		return fmt.Errorf("%w: %s.%s has type %s", types.ErrUnsupportedType, rt.Name, sf.Name, sf.Type)
	}

	if opts.hasDef {
		v, err := parseDefault(f.Kind, opts.def)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", rt.Name, sf.Name, err)
		}
		f.Default, f.HasDefault = v, true
	}

	rt.indexes[f.Column] = sf.Index[0]
	rt.fields = append(rt.fields, f)
	return nil
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// Fields returns the field descriptors in declaration order, identity
// excluded.
func (rt *RecordType) Fields() []types.Field {
	out := make([]types.Field, len(rt.fields))
	copy(out, rt.fields)
	return out
}

// Field returns the descriptor of column.
func (rt *RecordType) Field(column string) (types.Field, bool) {
	for _, f := range rt.fields {
		if f.Column == column {
			return f, true
		}
	}
	return types.Field{}, false
}

// FirstDisplayableField returns the column of the first non-identity field.
func (rt *RecordType) FirstDisplayableField() (string, bool) {
	if len(rt.fields) == 0 {
		return "", false
	}
	return rt.fields[0].Column, true
}

// IDColumn returns the column of the identity field.
func (rt *RecordType) IDColumn() string { return rt.idColumn }

// New returns a pointer to a new zero record.
func (rt *RecordType) New() any {
	return reflect.New(rt.GoType).Interface()
}

// Is reports whether rec is a record of this type.
func (rt *RecordType) Is(rec any) bool {
	_, err := rt.value(rec, false)
	return err == nil
}

func (rt *RecordType) value(rec any, settable bool) (reflect.Value, error) {
	rv := reflect.ValueOf(rec)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s", types.ErrWrongRecordType, rt.Name)
		}
		rv = rv.Elem()
	} else if settable {
		return reflect.Value{}, fmt.Errorf("%w: %s must be passed by pointer", types.ErrWrongRecordType, rt.Name)
	}
	if !rv.IsValid() || rv.Type() != rt.GoType {
		return reflect.Value{}, fmt.Errorf("%w: want %s, got %T", types.ErrWrongRecordType, rt.Name, rec)
	}
	return rv, nil
}

// ID returns the identity of rec; zero means not persisted.
func (rt *RecordType) ID(rec any) (int64, error) {
	rv, err := rt.value(rec, false)
	if err != nil {
		return 0, err
	}
	v, err := Normalize(types.KindInteger, rv.Field(rt.idIndex).Interface())
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// SetID stores id as the identity of rec.
func (rt *RecordType) SetID(rec any, id int64) error {
	rv, err := rt.value(rec, true)
	if err != nil {
		return err
	}
	return assign(rv.Field(rt.idIndex), id)
}

// Get returns the canonical value of column in rec. The identity column is
// accepted too.
func (rt *RecordType) Get(rec any, column string) (any, error) {
	rv, err := rt.value(rec, false)
	if err != nil {
		return nil, err
	}
	if column == rt.idColumn {
		return Normalize(types.KindInteger, rv.Field(rt.idIndex).Interface())
	}
	f, ok := rt.Field(column)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrUnknownField, rt.Name, column)
	}
	return Normalize(f.Kind, rv.Field(rt.indexes[column]).Interface())
}

// Set stores v into column of rec. v may be any value Normalize accepts;
// for foreign keys it may also be a related record, which is reduced to its
// identity.
func (rt *RecordType) Set(rec any, column string, v any) error {
	rv, err := rt.value(rec, true)
	if err != nil {
		return err
	}
	f, ok := rt.Field(column)
	if !ok {
		return fmt.Errorf("%w: %s.%s", types.ErrUnknownField, rt.Name, column)
	}
	if f.Kind == types.KindForeignKey {
		if id, ok := Identity(v); ok {
			v = id
		}
	}
	cv, err := Normalize(f.Kind, v)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", rt.Name, column, err)
	}
	// nil leaves non-pointer fields at their zero value, which a foreign
	// key cannot accept.
	if cv == nil && !f.Nullable && f.Kind == types.KindForeignKey {
		return fmt.Errorf("%w: %s.%s cannot be empty", types.ErrTypeMismatch, rt.Name, column)
	}
	if err := assign(rv.Field(rt.indexes[column]), cv); err != nil {
		return fmt.Errorf("%s.%s: %w", rt.Name, column, err)
	}
	return nil
}

// Assign applies a column → value map to rec. It stops at the first error.
func (rt *RecordType) Assign(rec any, values map[string]any) error {
	for _, f := range rt.fields {
		v, ok := values[f.Column]
		if !ok {
			continue
		}
		if err := rt.Set(rec, f.Column, v); err != nil {
			return err
		}
	}
	for column := range values {
		if _, ok := rt.indexes[column]; !ok {
			return fmt.Errorf("%w: %s.%s", types.ErrUnknownField, rt.Name, column)
		}
	}
	return nil
}

// Values returns the canonical values of every non-identity field of rec.
func (rt *RecordType) Values(rec any) (map[string]any, error) {
	out := make(map[string]any, len(rt.fields))
	for _, f := range rt.fields {
		v, err := rt.Get(rec, f.Column)
		if err != nil {
			return nil, err
		}
		out[f.Column] = v
	}
	return out, nil
}

// Identity returns the identity v stands for: v itself when it is an
// integer, the record identity when v is a record. Anything else, including
// nil, reports false.
func Identity(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	if n, err := Normalize(types.KindInteger, v); err == nil && n != nil {
		return n.(int64), true
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return 0, false
	}
	rt, err := Describe(v)
	if err != nil {
		return 0, false
	}
	id, err := rt.ID(v)
	if err != nil {
		return 0, false
	}
	return id, true
}
