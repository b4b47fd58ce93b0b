// Package demo is the application the crudforms server runs out of the
// box: users, their tasks, and events exercising every field kind.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/inflection"

	"github.com/mesh-intelligence/crudforms/pkg/crud"
	"github.com/mesh-intelligence/crudforms/pkg/ui"
)

type User struct {
	ID   int64  `db:"id"`
	Name string `db:"name,unique"`
}

func (User) TableName() string { return "user" }

type Task struct {
	ID          int64  `db:"id"`
	Description string `db:"description"`
	Done        bool   `db:"done,default=false"`
	UserID      *int64 `db:"user_id,fk=user"`
}

func (Task) TableName() string { return "task" }

// Event covers the remaining kinds: long text, booleans, numbers and the
// three temporal kinds.
type Event struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Active    bool      `db:"active,default=true"`
	Count     int64     `db:"count"`
	Rating    float64   `db:"rating"`
	Text      string    `db:"text,long"`
	CreatedAt time.Time `db:"created_at"`
	Day       time.Time `db:"day,kind=date"`
	StartsAt  time.Time `db:"starts_at,kind=time"`
}

func (Event) TableName() string { return "event" }

// Models returns the record types of the demo, parents first.
func Models() []any {
	return []any{User{}, Task{}, Event{}}
}

// Setup registers the demo types with h and creates their tables.
func Setup(ctx context.Context, h *crud.Handle) error {
	if err := h.Register(Models()...); err != nil {
		return err
	}
	return h.CreateTables(ctx)
}

// App returns the demo application bound to h.
func App(h *crud.Handle) ui.App {
	users := crud.Bind[User](h)
	tasks := crud.Bind[Task](h)
	events := crud.Bind[Event](h)

	return func(ctx context.Context, tk ui.Toolkit) error {
		if err := users.CrudTabs(ctx, tk, crud.TabsOptions{Border: true}); err != nil {
			return err
		}
		if err := tasks.CrudTabs(ctx, tk, crud.TabsOptions{Border: true, Except: []string{"done"}}); err != nil {
			return err
		}
		if err := events.CrudTabs(ctx, tk, crud.TabsOptions{Border: true}); err != nil {
			return err
		}
		return openTasks(ctx, tk, users, tasks)
	}
}

// openTasks lists the tasks not done yet, each with its owner and buttons
// to finish or drop it.
func openTasks(ctx context.Context, tk ui.Toolkit, users *crud.Binder[User], tasks *crud.Binder[Task]) error {
	open, err := tasks.ListAll(ctx, map[string]any{"done": false})
	if err != nil {
		return err
	}
	tk.Text(fmt.Sprintf("Open %s: %d", inflection.Plural(tasks.PrettyName()), len(open)))

	for _, t := range open {
		owner := "nobody"
		if t.UserID != nil {
			found, err := users.ListAll(ctx, map[string]any{"id": *t.UserID})
			if err != nil {
				return err
			}
			if len(found) == 1 {
				owner = users.Label(found[0])
			}
		}
		tk.Text(fmt.Sprintf("%s (%s)", tasks.Label(t), owner))
		if _, err := tasks.EditButton(ctx, tk, t, "Mark done", map[string]any{"done": true}); err != nil {
			return err
		}
		if _, err := tasks.DeleteButton(ctx, tk, t, ""); err != nil {
			return err
		}
	}
	return nil
}
