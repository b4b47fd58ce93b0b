package crud

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/untillpro/goutils/logger"

	"github.com/mesh-intelligence/crudforms/internal/display"
	"github.com/mesh-intelligence/crudforms/internal/gateway"
	"github.com/mesh-intelligence/crudforms/internal/schema"
	"github.com/mesh-intelligence/crudforms/internal/store"
	"github.com/mesh-intelligence/crudforms/internal/widget"
	"github.com/mesh-intelligence/crudforms/pkg/types"
	"github.com/mesh-intelligence/crudforms/pkg/ui"
)

// Binder renders the forms of record type T, a struct with db tags.
// Records are handled as *T.
type Binder[T any] struct {
	h   *Handle
	rt  *schema.RecordType
	err error
}

// For returns the binder of T on the default handle, registering T.
func For[T any]() *Binder[T] {
	return Bind[T](defaultHandle)
}

// Bind returns the binder of T on h, registering T. A T that cannot be
// described makes every operation of the binder fail.
func Bind[T any](h *Handle) *Binder[T] {
	var zero T
	if t := reflect.TypeOf(zero); t == nil || t.Kind() != reflect.Struct {
		return &Binder[T]{h: h, err: fmt.Errorf("%w: %T", types.ErrNotStruct, zero)}
	}
	rt, err := h.registry.Add(zero)
	return &Binder[T]{h: h, rt: rt, err: err}
}

// session is what one operation needs from an initialized handle.
type session struct {
	backend  *store.Backend
	gateway  *gateway.Gateway
	selector *widget.Selector
}

func (b *Binder[T]) open() (*session, error) {
	if b.err != nil {
		return nil, b.err
	}
	backend, err := b.h.Backend()
	if err != nil {
		return nil, err
	}
	return &session{
		backend:  backend,
		gateway:  gateway.New(backend),
		selector: widget.NewSelector(b.h.registry, backend),
	}, nil
}

// Err returns the error that made T unusable, if any.
func (b *Binder[T]) Err() error { return b.err }

// PrettyName is the display name of T: "one_to_many" becomes "One To Many".
func (b *Binder[T]) PrettyName() string {
	if b.rt == nil {
		return ""
	}
	return display.TypeName(b.rt)
}

// Fields returns the field descriptors of T.
func (b *Binder[T]) Fields() []types.Field {
	if b.rt == nil {
		return nil
	}
	return b.rt.Fields()
}

// Label returns the display label of rec.
func (b *Binder[T]) Label(rec *T) string {
	if b.rt == nil || rec == nil {
		return ""
	}
	return display.Label(b.rt, rec)
}

// ListAll returns the records matching filter, ordered by sort key.
func (b *Binder[T]) ListAll(ctx context.Context, filter map[string]any) ([]*T, error) {
	s, err := b.open()
	if err != nil {
		return nil, err
	}
	recs, err := b.list(ctx, s, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(recs))
	for i, rec := range recs {
		out[i] = rec.(*T)
	}
	return out, nil
}

func (b *Binder[T]) list(ctx context.Context, s *session, filter map[string]any) ([]any, error) {
	recs, err := s.backend.ListAll(ctx, b.rt, filter)
	if err != nil {
		return nil, err
	}
	display.Sort(b.rt, recs)
	return recs, nil
}

// CreateForm renders a form with one widget per field not fixed by
// opts.Defaults. Submitting it inserts a new record; the form then clears.
func (b *Binder[T]) CreateForm(ctx context.Context, tk ui.Toolkit, opts CreateOptions) error {
	s, err := b.open()
	if err != nil {
		return err
	}
	defaults, err := b.defaults(opts.Defaults)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("create_%s_%s", b.rt.Name, hashValues("", defaults))
	var formErr error
	tk.Form(key, ui.FormOptions{Border: opts.Border, ClearOnSubmit: true}, func() {
		values, _, err := b.inputs(ctx, s, tk, nil, func(column string) bool {
			_, fixed := defaults[column]
			return fixed
		})
		if err != nil {
			formErr = err
			return
		}
		for column, v := range defaults {
			values[column] = v
		}

		if !tk.SubmitButton("Create " + b.PrettyName()) {
			return
		}
		rec := new(T)
		msg, err := b.fill(rec, values, "creating")
		if err != nil || msg != "" {
			formErr = err
			b.reject(tk, msg)
			return
		}
		_, formErr = s.gateway.Create(ctx, tk, b.rt, rec)
	})
	return formErr
}

// defaults canonicalizes caller defaults. Columns T does not have are
// dropped with a warning.
func (b *Binder[T]) defaults(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	var unknown []string
	for column, v := range in {
		f, ok := b.rt.Field(column)
		if !ok {
			unknown = append(unknown, column)
			continue
		}
		if f.Kind == types.KindForeignKey {
			if id, ok := schema.Identity(v); ok {
				v = id
			}
		}
		cv, err := schema.Normalize(f.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("default %s: %w", column, err)
		}
		out[column] = cv
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		columns := make([]string, 0, len(b.rt.Fields()))
		for _, f := range b.rt.Fields() {
			columns = append(columns, f.Column)
		}
		logger.Warning(fmt.Sprintf("Some defaults %v not found in %s columns %v", unknown, b.PrettyName(), columns))
	}
	return out, nil
}

// inputs renders the widget of every field not skipped, pre-filled from
// rec when it is not nil, and returns the values and the rendered columns.
func (b *Binder[T]) inputs(ctx context.Context, s *session, tk ui.Toolkit, rec *T, skip func(string) bool) (map[string]any, []string, error) {
	values := make(map[string]any)
	var columns []string
	for _, f := range b.rt.Fields() {
		if skip(f.Column) {
			continue
		}
		in, err := s.selector.For(ctx, b.rt, f)
		if err != nil {
			return nil, nil, err
		}
		var current any
		if rec != nil {
			if current, err = b.rt.Get(rec, f.Column); err != nil {
				return nil, nil, err
			}
		}
		values[f.Column] = in(tk, display.FieldName(f), current)
		columns = append(columns, f.Column)
	}
	return values, columns, nil
}

// fill assigns values to rec. Related records are reduced to their
// identity. A required foreign key left empty yields a message for the user
// instead of an error.
func (b *Binder[T]) fill(rec *T, values map[string]any, verb string) (string, error) {
	for _, f := range b.rt.Fields() {
		v, ok := values[f.Column]
		if !ok {
			continue
		}
		if f.Kind == types.KindForeignKey {
			if id, ok := schema.Identity(v); ok {
				v = id
			} else if cv, err := schema.Normalize(f.Kind, v); err == nil && cv == nil {
				v = nil
			}
			if v == nil && f.Required() {
				return fmt.Sprintf("Error %s %s: %s is required", verb, b.PrettyName(), display.FieldName(f)), nil
			}
		}
		if err := b.rt.Set(rec, f.Column, v); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (b *Binder[T]) reject(tk ui.Toolkit, msg string) {
	if msg == "" {
		return
	}
	logger.Warning(msg)
	tk.Error(msg)
}

// UpdateSelectForm renders a choice of the records matching opts.Filter
// and, once one is chosen, its update form. A successful update reruns the
// application so the choice list is fresh.
func (b *Binder[T]) UpdateSelectForm(ctx context.Context, tk ui.Toolkit, opts UpdateOptions) error {
	s, err := b.open()
	if err != nil {
		return err
	}
	recs, err := b.list(ctx, s, opts.Filter)
	if err != nil {
		return err
	}
	i := tk.SelectBox("Select "+b.PrettyName()+" to Update", display.Choices(b.rt, recs), ui.NoSelection)
	if i < 0 {
		return nil
	}
	ok, err := b.updateForm(ctx, s, tk, recs[i].(*T), opts)
	if err != nil {
		return err
	}
	if ok {
		tk.Rerun()
	}
	return nil
}

// UpdateForm renders the update form of rec, pre-filled with its current
// values. Columns in opts.Except get no widget and keep their value. It
// reports whether a submission was stored; rec then holds the new values.
func (b *Binder[T]) UpdateForm(ctx context.Context, tk ui.Toolkit, rec *T, opts UpdateOptions) (bool, error) {
	s, err := b.open()
	if err != nil {
		return false, err
	}
	return b.updateForm(ctx, s, tk, rec, opts)
}

func (b *Binder[T]) updateForm(ctx context.Context, s *session, tk ui.Toolkit, rec *T, opts UpdateOptions) (bool, error) {
	id, err := b.rt.ID(rec)
	if err != nil {
		return false, err
	}
	key := fmt.Sprintf("update_%s_%d_%s", b.rt.Name, id, hashColumns(opts.Except))

	var (
		stored  bool
		formErr error
	)
	tk.Form(key, ui.FormOptions{Border: opts.Border}, func() {
		values, columns, err := b.inputs(ctx, s, tk, rec, func(column string) bool {
			return slices.Contains(opts.Except, column)
		})
		if err != nil {
			formErr = err
			return
		}
		if !tk.SubmitButton("Update " + b.PrettyName()) {
			return
		}
		updated := *rec
		msg, err := b.fill(&updated, values, "updating")
		if err != nil || msg != "" {
			formErr = err
			b.reject(tk, msg)
			return
		}
		stored, formErr = s.gateway.Update(ctx, tk, b.rt, &updated, columns)
		if stored {
			*rec = updated
		}
	})
	return stored, formErr
}

// DeleteSelectForm renders a choice of the records matching opts.Filter
// and, once one is chosen, a confirmation form deleting it.
func (b *Binder[T]) DeleteSelectForm(ctx context.Context, tk ui.Toolkit, opts DeleteOptions) error {
	s, err := b.open()
	if err != nil {
		return err
	}
	recs, err := b.list(ctx, s, opts.Filter)
	if err != nil {
		return err
	}
	i := tk.SelectBox("Select "+b.PrettyName()+" to Delete", display.Choices(b.rt, recs), ui.NoSelection)
	if i < 0 {
		return nil
	}

	rec := recs[i]
	id, err := b.rt.ID(rec)
	if err != nil {
		return err
	}

	var formErr error
	tk.Form(fmt.Sprintf("delete_%s_%d", b.rt.Name, id), ui.FormOptions{Border: opts.Border, ClearOnSubmit: true}, func() {
		if !tk.SubmitButton("Delete " + b.PrettyName()) {
			return
		}
		var ok bool
		ok, formErr = s.gateway.Delete(ctx, tk, b.rt, rec)
		if ok {
			tk.Rerun()
		}
	})
	return formErr
}

// CrudTabs renders the create, update and delete flows in three tabs.
func (b *Binder[T]) CrudTabs(ctx context.Context, tk ui.Toolkit, opts TabsOptions) error {
	if _, err := b.open(); err != nil {
		return err
	}
	pretty := b.PrettyName()
	var errs []error
	tk.Tabs(
		ui.Tab{Label: "Create " + pretty, Body: func() {
			errs = append(errs, b.CreateForm(ctx, tk, CreateOptions{Defaults: opts.Defaults, Border: opts.Border}))
		}},
		ui.Tab{Label: "Update " + pretty, Body: func() {
			errs = append(errs, b.UpdateSelectForm(ctx, tk, UpdateOptions{Filter: opts.Filter, Except: opts.Except, Border: opts.Border}))
		}},
		ui.Tab{Label: "Delete " + pretty, Body: func() {
			errs = append(errs, b.DeleteSelectForm(ctx, tk, DeleteOptions{Filter: opts.Filter, Border: opts.Border}))
		}},
	)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// EditButton renders a button that applies values to rec when clicked. It
// reports whether a click was stored; rec then holds the new values.
func (b *Binder[T]) EditButton(ctx context.Context, tk ui.Toolkit, rec *T, label string, values map[string]any) (bool, error) {
	s, err := b.open()
	if err != nil {
		return false, err
	}
	columns := make([]string, 0, len(values))
	for column := range values {
		if _, ok := b.rt.Field(column); !ok {
			return false, fmt.Errorf("%w: %s.%s", types.ErrUnknownField, b.rt.Table, column)
		}
		columns = append(columns, column)
	}
	slices.Sort(columns)
	id, err := b.rt.ID(rec)
	if err != nil {
		return false, err
	}

	key := fmt.Sprintf("edit_%s_%d_%s", b.rt.Name, id, hashValues(label, values))
	if !tk.Button(key, label) {
		return false, nil
	}
	updated := *rec
	msg, err := b.fill(&updated, values, "updating")
	if err != nil || msg != "" {
		b.reject(tk, msg)
		return false, err
	}
	ok, err := s.gateway.Update(ctx, tk, b.rt, &updated, columns)
	if ok {
		*rec = updated
		tk.Rerun()
	}
	return ok, err
}

// DeleteButton renders a button that deletes rec when clicked. label
// defaults to "Delete". It reports whether a click deleted the record.
func (b *Binder[T]) DeleteButton(ctx context.Context, tk ui.Toolkit, rec *T, label string) (bool, error) {
	s, err := b.open()
	if err != nil {
		return false, err
	}
	if label == "" {
		label = "Delete"
	}
	id, err := b.rt.ID(rec)
	if err != nil {
		return false, err
	}
	if !tk.Button(fmt.Sprintf("delete_%s_%d", b.rt.Name, id), label) {
		return false, nil
	}
	ok, err := s.gateway.Delete(ctx, tk, b.rt, rec)
	if ok {
		tk.Rerun()
	}
	return ok, err
}
