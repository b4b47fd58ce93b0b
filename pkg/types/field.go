package types

import "strconv"

// FieldKind is the semantic type of a record field. It drives widget
// selection and column types.
type FieldKind uint8

const (
	KindInteger FieldKind = iota
	KindFloat
	KindBoolean
	KindText
	KindLongText
	KindDate
	KindTime
	KindDateTime
	KindForeignKey
	kindFakeLast
)

var fieldKindNames = [...]string{
	KindInteger:    "integer",
	KindFloat:      "float",
	KindBoolean:    "boolean",
	KindText:       "text",
	KindLongText:   "long-text",
	KindDate:       "date",
	KindTime:       "time",
	KindDateTime:   "datetime",
	KindForeignKey: "foreign-key",
}

func (k FieldKind) String() string {
	if k < kindFakeLast {
		return fieldKindNames[k]
	}
	return "FieldKind(" + strconv.Itoa(int(k)) + ")"
}

// IsTemporal reports whether values of the kind are time.Time.
func (k FieldKind) IsTemporal() bool {
	return k == KindDate || k == KindTime || k == KindDateTime
}

// Field describes one persisted, non-identity field of a record type.
// Field descriptors are derived once per type and never change afterwards.
type Field struct {
	Name   string    // Go struct field name.
	Column string    // Column name, also the key of value maps.
	Kind   FieldKind // Semantic type.
	Ref    string    // Target table of a foreign key, empty otherwise.

	// Nullable is true for pointer fields. A nullable field may hold nil.
	Nullable bool
	// NotNull is the column constraint. Non-pointer foreign keys imply it.
	NotNull bool
	Unique  bool

	// Default is the canonical default value, valid when HasDefault.
	Default    any
	HasDefault bool
}

// Required reports whether an empty value must be rejected before it reaches
// the store. Only foreign keys are checked this way; other NOT NULL columns
// surface as integrity errors.
func (f Field) Required() bool {
	return f.Kind == KindForeignKey && f.NotNull
}
