package crud

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// formKeySpace namespaces the hashes embedded in form and button keys.
var formKeySpace = uuid.MustParse("6f1d7b52-3c0e-4c57-9a55-4a4f2a0c7e11")

// hashValues returns a short stable hash of a column → value map. Equal
// maps hash equally regardless of iteration order.
func hashValues(extra string, values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(extra)
	for _, k := range keys {
		fmt.Fprintf(&b, "\x00%s=%T:%v", k, values[k], values[k])
	}
	return shortHash(b.String())
}

// hashColumns hashes a column list, ignoring order.
func hashColumns(columns []string) string {
	sorted := slices.Clone(columns)
	slices.Sort(sorted)
	return shortHash(strings.Join(sorted, "\x00"))
}

func shortHash(s string) string {
	id := uuid.NewSHA1(formKeySpace, []byte(s))
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}
