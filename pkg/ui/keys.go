package ui

import (
	"strconv"
	"strings"
)

// Kind names a widget type. Kinds take part in widget keys, so two widgets
// with the same label but different kinds never collide.
type Kind string

const (
	KindTextInput  Kind = "text_input"
	KindTextArea   Kind = "text_area"
	KindIntInput   Kind = "number_input"
	KindFloatInput Kind = "float_input"
	KindDateInput  Kind = "date_input"
	KindTimeInput  Kind = "time_input"
	KindSelectBox  Kind = "selectbox"
	KindSubmit     Kind = "submit"
	KindButton     Kind = "button"
)

// Keys derives deterministic widget keys for one rerun. The same sequence of
// widget calls yields the same keys on every rerun, which is what lets a
// toolkit match a widget to the value the user gave it on the previous run.
// The zero value is ready to use; use a fresh Keys per rerun.
type Keys struct {
	seen map[string]int
}

// Next returns the key of a widget of kind with label inside form (empty
// form for widgets outside any form). Repeats get a "#n" suffix.
func (k *Keys) Next(form string, kind Kind, label string) string {
	if k.seen == nil {
		k.seen = make(map[string]int)
	}
	base := strings.Join([]string{form, string(kind), label}, "/")
	n := k.seen[base]
	k.seen[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "#" + strconv.Itoa(n)
}
