// Package ui defines the widget toolkit contract that generated forms render
// against. A Toolkit is driven by one rerun of an application function: every
// widget call returns the value the user currently holds for that widget, or
// the supplied default when the user has not touched it.
package ui

import (
	"context"
	"time"
)

// Toolkit is the set of widgets and layout primitives a form needs.
// Implementations: htmlui.Page (browser) and uitest.AppTest (tests).
type Toolkit interface {
	// TextInput renders a single-line text field.
	TextInput(label, value string) string

	// TextArea renders a multi-line text field.
	TextArea(label, value string) string

	// IntInput renders a numeric field holding whole numbers.
	IntInput(label string, value, step int64) int64

	// FloatInput renders a numeric field holding decimals.
	FloatInput(label string, value, step float64) float64

	// DateInput renders a date picker. The time of day of value is ignored.
	DateInput(label string, value time.Time) time.Time

	// TimeInput renders a time picker. The date part of value is ignored.
	TimeInput(label string, value time.Time, visibility LabelVisibility) time.Time

	// SelectBox renders a labeled choice over options. index is the
	// preselected option, NoSelection for none. The user's choice is kept by
	// option value, so it follows its option when the list changes between
	// reruns and falls back to index when its option is gone. It returns the
	// position of the selected option in options or NoSelection.
	SelectBox(label string, options []Option, index int) int

	// Form groups the widgets rendered by body under one submit trigger.
	// Widgets inside body belong to the form identified by key.
	Form(key string, opts FormOptions, body func())

	// SubmitButton renders the submit trigger of the enclosing form and
	// reports whether this rerun was caused by pressing it.
	SubmitButton(label string) bool

	// Button renders a stand-alone button and reports whether this rerun was
	// caused by clicking it.
	Button(key, label string) bool

	// Tabs renders a tabbed container. Every tab body runs on every rerun.
	Tabs(tabs ...Tab)

	// Text writes plain text.
	Text(text string)

	// Success, Warning and Error display notices to the user.
	Success(msg string)
	Warning(msg string)
	Error(msg string)

	// Rerun asks the toolkit to run the application again once the current
	// run has finished, so state derived from the store is refreshed.
	Rerun()
}

// App is an application function executed once per rerun.
type App func(ctx context.Context, tk Toolkit) error

// InputFunc renders the widget of one field and returns its current value.
// value is the field's current value, nil when there is none.
type InputFunc func(tk Toolkit, label string, value any) any

// Option is one choice of a SelectBox. Value identifies the choice across
// reruns and must be unique within one list; Label is what the user sees.
type Option struct {
	Value string
	Label string
}

// Choices returns options whose values are their labels.
func Choices(labels ...string) []Option {
	out := make([]Option, len(labels))
	for i, l := range labels {
		out[i] = Option{Value: l, Label: l}
	}
	return out
}

// NoSelection is the SelectBox index meaning "nothing selected".
const NoSelection = -1

// LabelVisibility controls whether a widget shows its label.
type LabelVisibility int

const (
	LabelVisible LabelVisibility = iota
	LabelCollapsed
)

// FormOptions configures a Form container.
type FormOptions struct {
	// Border draws a frame around the form.
	Border bool
	// ClearOnSubmit resets the form widgets after a submission.
	ClearOnSubmit bool
}

// Tab is one page of a Tabs container.
type Tab struct {
	Label string
	Body  func()
}
