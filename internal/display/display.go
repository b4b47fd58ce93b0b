// Package display renders records for people: labels in choice lists and
// notices, and the order records are listed in.
package display

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/pkg/types"
	"github.com/mesh-intelligence/crudforms/pkg/ui"
)

// Label returns the display label of rec. A Labeler wins; otherwise the
// first non-identity field is formatted, and when that is empty the label
// falls back to "Type(id=N)".
func Label(rt *schema.RecordType, rec any) string {
	if l, ok := rec.(types.Labeler); ok {
		return l.Label()
	}
	if column, ok := rt.FirstDisplayableField(); ok {
		f, _ := rt.Field(column)
		if v, err := rt.Get(rec, column); err == nil {
			if s := Format(f.Kind, v); s != "" {
				return s
			}
		}
	}
	id, _ := rt.ID(rec)
	return fmt.Sprintf("%s(id=%d)", rt.Name, id)
}

// SortKey returns the key rec is ordered by. A SortKeyer wins; otherwise
// the value of the first non-identity field, then the identity.
func SortKey(rt *schema.RecordType, rec any) any {
	if s, ok := rec.(types.SortKeyer); ok {
		return s.SortKey()
	}
	if column, ok := rt.FirstDisplayableField(); ok {
		if v, err := rt.Get(rec, column); err == nil {
			return v
		}
	}
	id, _ := rt.ID(rec)
	return id
}

// Sort orders recs by sort key in place. Records with equal keys keep their
// relative order.
func Sort(rt *schema.RecordType, recs []any) {
	type keyed struct {
		key any
		rec any
	}
	ks := make([]keyed, len(recs))
	for i, rec := range recs {
		ks[i] = keyed{key: SortKey(rt, rec), rec: rec}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int { return Compare(a.key, b.key) })
	for i := range ks {
		recs[i] = ks[i].rec
	}
}

// Choices returns recs in order as select box options: the label shown,
// the identity as value.
func Choices(rt *schema.RecordType, recs []any) []ui.Option {
	out := make([]ui.Option, len(recs))
	for i, rec := range recs {
		id, _ := rt.ID(rec)
		out[i] = ui.Option{Value: strconv.FormatInt(id, 10), Label: Label(rt, rec)}
	}
	return out
}

const (
	rankNil = iota
	rankNumber
	rankString
	rankTime
	rankBool
	rankOther
)

// Compare orders two sort keys. nil sorts first, then numbers, strings,
// times and booleans; keys of other types compare by their formatted text.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankNumber:
		ia, aInt := asInt(a)
		ib, bInt := asInt(b)
		if aInt && bInt {
			return cmp.Compare(ia, ib)
		}
		return cmp.Compare(asFloat(a), asFloat(b))
	case rankString:
		return strings.Compare(reflect.ValueOf(a).String(), reflect.ValueOf(b).String())
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankBool:
		ba, bb := reflect.ValueOf(a).Bool(), reflect.ValueOf(b).Bool()
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	if v == nil {
		return rankNil
	}
	if _, ok := v.(time.Time); ok {
		return rankTime
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rankNumber
	case reflect.String:
		return rankString
	case reflect.Bool:
		return rankBool
	}
	return rankOther
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func asFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	}
	return rv.Float()
}

// Format renders a canonical value of kind as text. nil renders empty.
func Format(kind types.FieldKind, v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case time.Time:
		switch kind {
		case types.KindDate:
			return x.Format(schema.DateLayout)
		case types.KindTime:
			return x.Format(schema.TimeLayout)
		}
		return x.Format(schema.DateTimeLayout)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// TypeName is the human-readable name of a record type: "one_to_many"
// becomes "One To Many".
func TypeName(rt *schema.RecordType) string {
	return schema.PrettyName(rt.Table)
}

// FieldName is the widget label of a field.
func FieldName(f types.Field) string {
	return schema.PrettyFieldName(f.Column)
}
