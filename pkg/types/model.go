package types

import "github.com/mesh-intelligence/crudforms/pkg/ui"

// Optional interfaces a record type may implement to override the default
// behavior. They are looked up on the zero value (Tabler, InputOverrider) or
// on each instance (Labeler, SortKeyer), so value receivers work for all of
// them and pointer receivers work for the instance ones.

// Tabler names the table of a record type. Without it the table name is the
// snake_case struct name.
type Tabler interface {
	TableName() string
}

// InputOverrider maps column names to custom input functions. An override
// replaces the widget the field would otherwise get.
type InputOverrider interface {
	InputOverrides() map[string]ui.InputFunc
}

// Labeler renders the display label of a record in choice lists and notices.
type Labeler interface {
	Label() string
}

// SortKeyer supplies the key that orders records in choice lists and
// listings.
type SortKeyer interface {
	SortKey() any
}
