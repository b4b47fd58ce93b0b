// Package htmlui renders an application function as server-side HTML.
//
// One request is one rerun. Widget state travels as form values keyed by
// widget key, and the pressed button arrives in the ActionField value. All
// widgets live in one page-wide HTML form; ui.Toolkit forms become
// fieldsets inside it.
package htmlui

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/mesh-intelligence/crudforms/pkg/ui"
)

const (
	// ActionField carries the key of the pressed button.
	ActionField = "_action"
	// MaxReruns bounds the extra executions a GET performs for Rerun
	// requests.
	MaxReruns = 3
)

// Wire formats of temporal widget values.
const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04:05"
)

//go:embed templates/*.html
var templateFS embed.FS

var widgets = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message for the user.
type Notice struct {
	Level Level
	Text  string
}

// Page is the toolkit of one request.
type Page struct {
	state  url.Values
	action string

	keys    ui.Keys
	form    string
	buf     bytes.Buffer
	err     error
	rerun   bool
	pressed bool
	outside url.Values
	notices []Notice
}

var _ ui.Toolkit = (*Page)(nil)

// New returns a page reading widget values from state. action is the key of
// the pressed button, empty when none was pressed.
func New(state url.Values, action string) *Page {
	if state == nil {
		state = url.Values{}
	}
	return &Page{state: state, action: action}
}

// Run executes app. Without a pressed button, Rerun requests execute the
// app again, at most MaxReruns times. After a press the caller redirects,
// so the rerun is left to the next request.
func (p *Page) Run(ctx context.Context, app ui.App) error {
	for run := 0; ; run++ {
		p.keys = ui.Keys{}
		p.form = ""
		p.buf.Reset()
		p.err = nil
		p.rerun = false
		p.outside = url.Values{}

		err := app(ctx, p)
		p.action = ""
		if err != nil {
			return err
		}
		if p.err != nil {
			return fmt.Errorf("rendering page: %w", p.err)
		}
		if !p.rerun || p.pressed {
			return nil
		}
		if run >= MaxReruns {
			return fmt.Errorf("app requested more than %d reruns", MaxReruns)
		}
	}
}

// HTML returns the markup of the last execution.
func (p *Page) HTML() template.HTML {
	return template.HTML(p.buf.String())
}

// Notices returns the notices of all executions.
func (p *Page) Notices() []Notice { return p.notices }

// Pressed reports whether the pressed button was rendered, that is whether
// the request performed an action.
func (p *Page) Pressed() bool { return p.pressed }

// Query returns the state of the widgets outside forms. A redirect after a
// submission carries it, so choices survive while form contents reset.
func (p *Page) Query() url.Values { return p.outside }

type option struct {
	Value    string
	Label    string
	Selected bool
}

type widget struct {
	Key        string
	Label      string
	Collapsed  bool
	Value      string
	Step       string
	Options    []option
	None       bool
	AutoSubmit bool
	Action     string
}

func (p *Page) render(name string, data any) {
	if p.err != nil {
		return
	}
	p.err = widgets.ExecuteTemplate(&p.buf, name, data)
}

// input registers a widget and returns its key and the raw state value.
func (p *Page) input(kind ui.Kind, label string) (string, string, bool) {
	key := p.keys.Next(p.form, kind, label)
	_, ok := p.state[key]
	return key, p.state.Get(key), ok
}

// keep records the value of a widget outside forms for Query.
func (p *Page) keep(key, value string) {
	if p.form == "" {
		p.outside.Set(key, value)
	}
}

func (p *Page) TextInput(label, value string) string {
	return p.text(ui.KindTextInput, label, value)
}

func (p *Page) TextArea(label, value string) string {
	return p.text(ui.KindTextArea, label, value)
}

func (p *Page) text(kind ui.Kind, label, value string) string {
	key, raw, ok := p.input(kind, label)
	if ok {
		value = raw
	}
	p.render(string(kind), widget{Key: key, Label: label, Value: value})
	p.keep(key, value)
	return value
}

func (p *Page) IntInput(label string, value, step int64) int64 {
	key, raw, ok := p.input(ui.KindIntInput, label)
	if ok {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			value = n
		}
	}
	s := strconv.FormatInt(value, 10)
	p.render(string(ui.KindIntInput), widget{Key: key, Label: label, Value: s, Step: strconv.FormatInt(step, 10)})
	p.keep(key, s)
	return value
}

func (p *Page) FloatInput(label string, value, step float64) float64 {
	key, raw, ok := p.input(ui.KindFloatInput, label)
	if ok {
		if x, err := strconv.ParseFloat(raw, 64); err == nil {
			value = x
		}
	}
	s := strconv.FormatFloat(value, 'f', -1, 64)
	p.render(string(ui.KindFloatInput), widget{Key: key, Label: label, Value: s, Step: strconv.FormatFloat(step, 'f', -1, 64)})
	p.keep(key, s)
	return value
}

func (p *Page) DateInput(label string, value time.Time) time.Time {
	key, raw, ok := p.input(ui.KindDateInput, label)
	if ok {
		if d, err := time.ParseInLocation(DateFormat, raw, time.Local); err == nil {
			value = d
		}
	}
	s := value.In(time.Local).Format(DateFormat)
	p.render(string(ui.KindDateInput), widget{Key: key, Label: label, Value: s})
	p.keep(key, s)
	return value
}

// TimeInput keeps the date of value and takes the clock from the state.
func (p *Page) TimeInput(label string, value time.Time, visibility ui.LabelVisibility) time.Time {
	key, raw, ok := p.input(ui.KindTimeInput, label)
	if ok {
		if c, ok := parseClock(raw); ok {
			v := value.In(time.Local)
			value = time.Date(v.Year(), v.Month(), v.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.Local)
		}
	}
	s := value.In(time.Local).Format(TimeFormat)
	p.render(string(ui.KindTimeInput), widget{Key: key, Label: label, Value: s, Collapsed: visibility == ui.LabelCollapsed})
	p.keep(key, s)
	return value
}

// parseClock accepts the seconds-less form browsers send for whole minutes.
func parseClock(s string) (time.Time, bool) {
	for _, layout := range []string{TimeFormat, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SelectBox submits the page on change when it is outside any form, so
// the choice takes effect right away. The posted state is the option value;
// an empty value means nothing is selected, and a value no longer offered
// leaves the default in place.
func (p *Page) SelectBox(label string, options []ui.Option, index int) int {
	key, raw, ok := p.input(ui.KindSelectBox, label)
	if ok {
		if raw == "" {
			index = ui.NoSelection
		} else if i := slices.IndexFunc(options, func(o ui.Option) bool { return o.Value == raw }); i >= 0 {
			index = i
		}
	}
	if index >= len(options) {
		index = ui.NoSelection
	}

	w := widget{Key: key, Label: label, None: index < 0, AutoSubmit: p.form == ""}
	for i, o := range options {
		w.Options = append(w.Options, option{Value: o.Value, Label: o.Label, Selected: i == index})
	}
	p.render(string(ui.KindSelectBox), w)
	if index >= 0 {
		p.keep(key, options[index].Value)
	}
	return index
}

func (p *Page) Form(key string, opts ui.FormOptions, body func()) {
	p.render("form_open", struct {
		Key    string
		Border bool
	}{key, opts.Border})
	outer := p.form
	p.form = key
	defer func() {
		p.form = outer
		p.render("form_close", nil)
	}()
	body()
}

func (p *Page) SubmitButton(label string) bool {
	return p.button(ui.KindSubmit, label, label)
}

func (p *Page) Button(key, label string) bool {
	return p.button(ui.KindButton, key, label)
}

func (p *Page) button(kind ui.Kind, name, label string) bool {
	key := p.keys.Next(p.form, kind, name)
	p.render(string(kind), widget{Key: key, Label: label, Action: ActionField})
	pressed := p.action != "" && key == p.action
	if pressed {
		p.pressed = true
	}
	return pressed
}

// Tabs renders every tab body; the browser shows one at a time.
func (p *Page) Tabs(tabs ...ui.Tab) {
	labels := make([]string, len(tabs))
	for i, t := range tabs {
		labels[i] = t.Label
	}
	p.render("tabs_open", labels)
	for i, t := range tabs {
		p.render("tab_open", i)
		t.Body()
		p.render("tab_close", nil)
	}
	p.render("tabs_close", nil)
}

func (p *Page) Text(text string) { p.render("text", text) }

func (p *Page) Success(msg string) { p.notify(LevelSuccess, msg) }
func (p *Page) Warning(msg string) { p.notify(LevelWarning, msg) }
func (p *Page) Error(msg string)   { p.notify(LevelError, msg) }

func (p *Page) notify(level Level, msg string) {
	p.notices = append(p.notices, Notice{Level: level, Text: msg})
}

func (p *Page) Rerun() { p.rerun = true }
