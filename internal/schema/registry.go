package schema

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// Registry holds the record types known to one connection handle, keyed by
// table name. Foreign keys are resolved through it.
type Registry struct {
	mu      sync.RWMutex
	byTable map[string]*RecordType
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTable: make(map[string]*RecordType)}
}

// Register describes and adds each model. Registering the same type twice is
// a no-op; two types claiming one table is an error.
func (r *Registry) Register(models ...any) error {
	for _, m := range models {
		if _, err := r.Add(m); err != nil {
			return err
		}
	}
	return nil
}

// Add registers model and returns its record type.
func (r *Registry) Add(model any) (*RecordType, error) {
	rt, err := Describe(model)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byTable[rt.Table]; ok {
		if prev.GoType != rt.GoType {
			return nil, fmt.Errorf("%w: %s is claimed by %s and %s", types.ErrDuplicateTable, rt.Table, prev.GoType, rt.GoType)
		}
		return prev, nil
	}
	r.byTable[rt.Table] = rt
	r.order = append(r.order, rt.Table)
	return rt, nil
}

// Lookup returns the record type stored in table.
func (r *Registry) Lookup(table string) (*RecordType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.byTable[table]
	if !ok {
		return nil, fmt.Errorf("%w: table %q", types.ErrTypeNotRegistered, table)
	}
	return rt, nil
}

// TypeOf returns the registered record type of rec.
func (r *Registry) TypeOf(rec any) (*RecordType, error) {
	t := reflect.TypeOf(rec)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.byTable {
		if rt.GoType == t {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", types.ErrTypeNotRegistered, rec)
}

// All returns the registered types so that every type comes after the types
// its foreign keys point to. Self references and references to unregistered
// tables are ignored; cycles fall back to registration order.
func (r *Registry) All() []*RecordType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RecordType, 0, len(r.order))
	state := make(map[string]int, len(r.order)) // 1 visiting, 2 done
	var visit func(table string)
	visit = func(table string) {
		if state[table] != 0 {
			return
		}
		state[table] = 1
		rt := r.byTable[table]
		for _, f := range rt.fields {
			if f.Ref == "" || f.Ref == table {
				continue
			}
			if _, ok := r.byTable[f.Ref]; ok {
				visit(f.Ref)
			}
		}
		state[table] = 2
		out = append(out, rt)
	}
	for _, table := range r.order {
		visit(table)
	}
	return out
}
