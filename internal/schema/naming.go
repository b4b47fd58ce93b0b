package schema

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SnakeCase converts a Go identifier to snake_case. Runs of capitals stay
// together, so "TestItemID" becomes "test_item_id".
func SnakeCase(s string) string {
	res := make([]rune, 0, len(s)+4)
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev < 'A' || prev > 'Z' {
				res = append(res, '_')
			}
		}
		res = append(res, []rune(strings.ToLower(string(r)))[0])
	}
	return string(res)
}

// PrettyName turns a table name into a title for the UI:
// "one_to_many" becomes "One To Many".
func PrettyName(table string) string {
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(table, "_", " "))
}

// PrettyFieldName turns a column name into a widget label. A trailing "_id"
// is dropped, so "test_item_id" becomes "Test Item".
func PrettyFieldName(column string) string {
	return PrettyName(strings.TrimSuffix(column, "_id"))
}
