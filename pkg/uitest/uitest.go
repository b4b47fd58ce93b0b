// Package uitest runs an application function against a recording toolkit,
// so tests can inspect the rendered widgets, give them values, press
// buttons and run the application again, the way a user would.
package uitest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/crudforms/pkg/ui"
)

// MaxReruns bounds the extra executions one Run performs for Rerun
// requests.
const MaxReruns = 3

// Widget is one widget rendered by the last execution.
type Widget struct {
	Key        string
	Kind       ui.Kind
	Label      string
	Form       string   // key of the enclosing form, empty outside forms
	Options    []string // option labels of a select box
	Values     []string // option values, parallel to Options
	Index      int      // selected option of a select box
	Value      any      // value returned to the application
	Step       any
	Visibility ui.LabelVisibility

	at *AppTest
}

// Form is one form rendered by the last execution.
type Form struct {
	Key  string
	Opts ui.FormOptions
}

// AppTest drives an application function.
type AppTest struct {
	app ui.App

	state   map[string]any // user values by widget key
	clicked string         // key of the button pressed for the next run

	widgets  []*Widget
	forms    []Form
	tabs     []string
	texts    []string
	success  []string
	warnings []string
	errors   []string
	runs     int
}

// New returns a harness for app. Nothing runs until Run.
func New(app ui.App) *AppTest {
	return &AppTest{app: app, state: make(map[string]any)}
}

// Run executes the application, then again for every Rerun it requested,
// at most MaxReruns times. A pending click is delivered to the first
// execution only. Notices are collected across all executions; widgets,
// forms, tabs and texts reflect the last one.
func (at *AppTest) Run(ctx context.Context) error {
	at.success, at.warnings, at.errors = nil, nil, nil
	at.runs = 0
	for {
		r := &runner{at: at}
		at.widgets, at.forms, at.tabs, at.texts = nil, nil, nil, nil
		at.runs++
		err := at.app(ctx, r)
		at.clicked = ""
		for _, key := range r.submitted {
			at.clearForm(key)
		}
		if err != nil {
			return err
		}
		if !r.rerun {
			return nil
		}
		if at.runs > MaxReruns {
			return fmt.Errorf("app requested more than %d reruns", MaxReruns)
		}
	}
}

// Runs returns how many executions the last Run performed.
func (at *AppTest) Runs() int { return at.runs }

func (at *AppTest) clearForm(key string) {
	for _, f := range at.forms {
		if f.Key == key && !f.Opts.ClearOnSubmit {
			return
		}
	}
	prefix := key + "/"
	for k := range at.state {
		if strings.HasPrefix(k, prefix) {
			delete(at.state, k)
		}
	}
}

// Widgets returns every widget of the last execution in render order.
func (at *AppTest) Widgets() []*Widget { return at.widgets }

// WidgetsOf returns the widgets of kind.
func (at *AppTest) WidgetsOf(kind ui.Kind) []*Widget {
	var out []*Widget
	for _, w := range at.widgets {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Find returns the first widget of kind with label, or nil.
func (at *AppTest) Find(kind ui.Kind, label string) *Widget {
	for _, w := range at.widgets {
		if w.Kind == kind && w.Label == label {
			return w
		}
	}
	return nil
}

// InForm returns the widgets rendered inside the form with key.
func (at *AppTest) InForm(key string) []*Widget {
	var out []*Widget
	for _, w := range at.widgets {
		if w.Form == key {
			out = append(out, w)
		}
	}
	return out
}

// Button returns the first button or submit button with label, or nil.
func (at *AppTest) Button(label string) *Widget {
	for _, w := range at.widgets {
		if (w.Kind == ui.KindButton || w.Kind == ui.KindSubmit) && w.Label == label {
			return w
		}
	}
	return nil
}

// SelectBox returns the first select box with label, or nil.
func (at *AppTest) SelectBox(label string) *Widget {
	return at.Find(ui.KindSelectBox, label)
}

// Forms returns the forms of the last execution.
func (at *AppTest) Forms() []Form { return at.forms }

// Tabs returns the tab labels of the last execution.
func (at *AppTest) Tabs() []string { return at.tabs }

// Texts returns the plain texts of the last execution.
func (at *AppTest) Texts() []string { return at.texts }

// Successes returns the success notices of the last Run.
func (at *AppTest) Successes() []string { return at.success }

// Warnings returns the warnings of the last Run.
func (at *AppTest) Warnings() []string { return at.warnings }

// Errors returns the error notices of the last Run.
func (at *AppTest) Errors() []string { return at.errors }

// Set gives the widget a user value for the next run. Numbers, strings,
// booleans and times are accepted for the matching kinds.
func (w *Widget) Set(v any) *AppTest {
	w.at.state[w.Key] = v
	return w.at
}

// Choose selects option by its label. The choice is kept by option value,
// like a browser does, so it stays on the same option when the list changes
// before the next run. It panics when the option is not offered, which is
// a broken test.
func (w *Widget) Choose(option string) *AppTest {
	i := slices.Index(w.Options, option)
	if i < 0 {
		panic(fmt.Sprintf("uitest: %q is not an option of %q (options %q)", option, w.Label, w.Options))
	}
	w.at.state[w.Key] = w.Values[i]
	return w.at
}

// Clear resets the widget to its default.
func (w *Widget) Clear() *AppTest {
	delete(w.at.state, w.Key)
	return w.at
}

// Click presses the button for the next run.
func (w *Widget) Click() *AppTest {
	w.at.clicked = w.Key
	return w.at
}

var _ ui.Toolkit = (*runner)(nil)

// runner is the toolkit of one execution.
type runner struct {
	at        *AppTest
	keys      ui.Keys
	form      string
	submitted []string
	rerun     bool
}

func (r *runner) add(kind ui.Kind, label string, w Widget) *Widget {
	w.Key = r.keys.Next(r.form, kind, label)
	w.Kind = kind
	w.Label = label
	w.Form = r.form
	w.at = r.at
	r.at.widgets = append(r.at.widgets, &w)
	return &w
}

func (r *runner) TextInput(label, value string) string {
	return r.text(ui.KindTextInput, label, value)
}

func (r *runner) TextArea(label, value string) string {
	return r.text(ui.KindTextArea, label, value)
}

func (r *runner) text(kind ui.Kind, label, value string) string {
	w := r.add(kind, label, Widget{})
	if s, ok := r.at.state[w.Key].(string); ok {
		value = s
	}
	w.Value = value
	return value
}

func (r *runner) IntInput(label string, value, step int64) int64 {
	w := r.add(ui.KindIntInput, label, Widget{Step: step})
	switch v := r.at.state[w.Key].(type) {
	case int:
		value = int64(v)
	case int64:
		value = v
	}
	w.Value = value
	return value
}

func (r *runner) FloatInput(label string, value, step float64) float64 {
	w := r.add(ui.KindFloatInput, label, Widget{Step: step})
	switch v := r.at.state[w.Key].(type) {
	case int:
		value = float64(v)
	case float64:
		value = v
	}
	w.Value = value
	return value
}

func (r *runner) DateInput(label string, value time.Time) time.Time {
	w := r.add(ui.KindDateInput, label, Widget{})
	if t, ok := r.at.state[w.Key].(time.Time); ok {
		value = t
	}
	w.Value = value
	return value
}

func (r *runner) TimeInput(label string, value time.Time, visibility ui.LabelVisibility) time.Time {
	w := r.add(ui.KindTimeInput, label, Widget{Visibility: visibility})
	if t, ok := r.at.state[w.Key].(time.Time); ok {
		value = t
	}
	w.Value = value
	return value
}

func (r *runner) SelectBox(label string, options []ui.Option, index int) int {
	w := r.add(ui.KindSelectBox, label, Widget{})
	for _, o := range options {
		w.Options = append(w.Options, o.Label)
		w.Values = append(w.Values, o.Value)
	}
	if v, ok := r.at.state[w.Key].(string); ok {
		if i := slices.Index(w.Values, v); i >= 0 {
			index = i
		} else {
			// The chosen option is gone.
			delete(r.at.state, w.Key)
		}
	}
	if index >= len(options) {
		index = ui.NoSelection
	}
	w.Index = index
	if index >= 0 {
		w.Value = options[index].Label
	}
	return index
}

func (r *runner) Form(key string, opts ui.FormOptions, body func()) {
	r.at.forms = append(r.at.forms, Form{Key: key, Opts: opts})
	outer := r.form
	r.form = key
	defer func() { r.form = outer }()
	body()
}

func (r *runner) SubmitButton(label string) bool {
	w := r.add(ui.KindSubmit, label, Widget{})
	pressed := w.Key == r.at.clicked
	if pressed {
		r.submitted = append(r.submitted, r.form)
	}
	w.Value = pressed
	return pressed
}

func (r *runner) Button(key, label string) bool {
	w := r.add(ui.KindButton, key, Widget{})
	w.Label = label
	pressed := w.Key == r.at.clicked
	w.Value = pressed
	return pressed
}

func (r *runner) Tabs(tabs ...ui.Tab) {
	for _, t := range tabs {
		r.at.tabs = append(r.at.tabs, t.Label)
	}
	for _, t := range tabs {
		t.Body()
	}
}

func (r *runner) Text(text string)   { r.at.texts = append(r.at.texts, text) }
func (r *runner) Success(msg string) { r.at.success = append(r.at.success, msg) }
func (r *runner) Warning(msg string) { r.at.warnings = append(r.at.warnings, msg) }
func (r *runner) Error(msg string)   { r.at.errors = append(r.at.errors, msg) }
func (r *runner) Rerun()             { r.rerun = true }
