package crud

// CreateOptions configures CreateForm.
type CreateOptions struct {
	// Defaults fixes field values by column. Fixed fields get no widget. A
	// record may stand in for the identity of a foreign key.
	Defaults map[string]any
	Border   bool
}

// UpdateOptions configures UpdateSelectForm and UpdateForm.
type UpdateOptions struct {
	// Filter restricts the selectable records (column equality).
	Filter map[string]any
	// Except lists columns left out of the form and left unchanged.
	Except []string
	Border bool
}

// DeleteOptions configures DeleteSelectForm.
type DeleteOptions struct {
	Filter map[string]any
	Border bool
}

// TabsOptions configures CrudTabs.
type TabsOptions struct {
	Defaults map[string]any
	Filter   map[string]any
	Except   []string
	Border   bool
}
