package schema

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// tagName is the struct tag read by Describe.
const tagName = "db"

// tagOptions is a parsed db tag: `db:"column,opt,key=value"`.
type tagOptions struct {
	column  string
	pk      bool
	ref     string
	notNull bool
	unique  bool
	long    bool
	kind    string
	def     string
	hasDef  bool
}

// parseTag splits a db tag. An empty column keeps the derived name.
func parseTag(tag string) (tagOptions, error) {
	parts := strings.Split(tag, ",")
	opts := tagOptions{column: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		key, value, hasValue := strings.Cut(p, "=")
		switch key {
		case "pk":
			opts.pk = true
		case "notnull":
			opts.notNull = true
		case "unique":
			opts.unique = true
		case "long":
			opts.long = true
		case "fk":
			if value == "" {
				return opts, fmt.Errorf("%w: fk needs a target table in %q", types.ErrInvalidTag, tag)
			}
			opts.ref = value
		case "kind":
			switch value {
			case "date", "time", "datetime":
				opts.kind = value
			default:
				return opts, fmt.Errorf("%w: unknown kind %q in %q", types.ErrInvalidTag, value, tag)
			}
		case "default":
			if !hasValue {
				return opts, fmt.Errorf("%w: default needs a value in %q", types.ErrInvalidTag, tag)
			}
			opts.def = value
			opts.hasDef = true
		case "":
		default:
			return opts, fmt.Errorf("%w: unknown option %q in %q", types.ErrInvalidTag, key, tag)
		}
	}
	return opts, nil
}
