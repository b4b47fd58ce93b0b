package crud

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untillpro/goutils/logger"

	"github.com/mesh-intelligence/crudforms/internal/store"
	"github.com/mesh-intelligence/crudforms/pkg/types"
	"github.com/mesh-intelligence/crudforms/pkg/ui"
	"github.com/mesh-intelligence/crudforms/pkg/uitest"
)

type Item struct {
	ID    int64  `db:"id"`
	Name  string `db:"name,unique"`
	Count int    `db:"count,default=0"`
}

func (Item) TableName() string { return "item" }

type OneToMany struct {
	ID         int64  `db:"id"`
	FirstField string `db:"first_field"`
	TestItemID *int64 `db:"test_item_id,fk=item"`
}

func (OneToMany) TableName() string { return "one_to_many" }

type SuperItem struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	OrderBy int    `db:"order_by"`
}

func (SuperItem) TableName() string { return "super_item" }
func (s *SuperItem) Label() string  { return fmt.Sprintf("%s (%d)", s.Name, s.OrderBy) }
func (s *SuperItem) SortKey() any   { return s.OrderBy }

type Owned struct {
	ID     int64  `db:"id"`
	Title  string `db:"title"`
	ItemID int64  `db:"item_id,fk=item"`
}

func (Owned) TableName() string { return "owned" }

type Event struct {
	ID   int64     `db:"id"`
	Name string    `db:"name"`
	At   time.Time `db:"at"`
	Done *bool     `db:"done"`
}

func newHandle(t *testing.T) *Handle {
	t.Helper()
	logger.SetLogLevel(logger.LogLevelNone)
	ctx := context.Background()

	h := NewHandle()
	require.NoError(t, h.Register(Item{}, OneToMany{}, SuperItem{}, Owned{}, Event{}))
	require.NoError(t, h.Initialize(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { h.Close() })
	require.NoError(t, h.CreateTables(ctx))
	return h
}

func run(t *testing.T, at *uitest.AppTest) {
	t.Helper()
	require.NoError(t, at.Run(context.Background()))
}

func TestCreateForm_Item(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	items := Bind[Item](h)

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return items.CreateForm(ctx, tk, CreateOptions{})
	})
	run(t, at)

	name := at.Find(ui.KindTextInput, "Name")
	require.NotNil(t, name)
	count := at.Find(ui.KindIntInput, "Count")
	require.NotNil(t, count)
	assert.Equal(t, int64(0), count.Value)
	assert.Equal(t, int64(1), count.Step)
	assert.Len(t, at.Widgets(), 3, "two inputs and the submit button")
	require.Len(t, at.Forms(), 1)
	assert.True(t, at.Forms()[0].Opts.ClearOnSubmit)

	name.Set("Test")
	count.Set(1)
	at.Button("Create Item").Click()
	run(t, at)

	assert.Equal(t, []string{`Added Item "Test"`}, at.Successes())
	all, err := items.ListAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Test", all[0].Name)
	assert.Equal(t, 1, all[0].Count)

	// The form cleared after the submission.
	run(t, at)
	assert.Equal(t, "", at.Find(ui.KindTextInput, "Name").Value)
	assert.Empty(t, at.Successes())

	// The related type now offers the item.
	links := Bind[OneToMany](h)
	at = uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return links.CreateForm(ctx, tk, CreateOptions{})
	})
	run(t, at)
	assert.NotNil(t, at.Find(ui.KindTextInput, "First Field"))
	sel := at.SelectBox("Test Item")
	require.NotNil(t, sel)
	assert.Equal(t, []string{"Test"}, sel.Options)
	assert.Equal(t, ui.NoSelection, sel.Index)
}

func TestCreateForm_ForeignKeyChoice(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	supers := Bind[SuperItem](h)

	for _, s := range []SuperItem{{Name: "Test", OrderBy: 1}, {Name: "Test2", OrderBy: 3}, {Name: "Test3", OrderBy: 2}} {
		at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
			return supers.CreateForm(ctx, tk, CreateOptions{})
		})
		run(t, at)
		at.Find(ui.KindTextInput, "Name").Set(s.Name)
		at.Find(ui.KindIntInput, "Order By").Set(s.OrderBy)
		at.Button("Create Super Item").Click()
		run(t, at)
	}

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return supers.UpdateSelectForm(ctx, tk, UpdateOptions{})
	})
	run(t, at)
	sel := at.SelectBox("Select Super Item to Update")
	require.NotNil(t, sel)
	assert.Equal(t, []string{"Test (1)", "Test3 (2)", "Test2 (3)"}, sel.Options)

	all, err := supers.ListAll(ctx, map[string]any{"order_by": 2})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Test3", all[0].Name)
}

func TestCreateForm_Defaults(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	items := Bind[Item](h)
	links := Bind[OneToMany](h)

	parent := &Item{Name: "Parent"}
	b, err := h.Backend()
	require.NoError(t, err)
	require.NoError(t, b.InTx(ctx, func(tx *store.Tx) error { return tx.Insert(ctx, items.rt, parent) }))

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return links.CreateForm(ctx, tk, CreateOptions{Defaults: map[string]any{"test_item_id": parent, "bogus": 1}})
	})
	run(t, at)
	assert.Nil(t, at.SelectBox("Test Item"), "fixed fields get no widget")
	require.Len(t, at.Forms(), 1)
	assert.Contains(t, at.Forms()[0].Key, "create_OneToMany_")

	at.Find(ui.KindTextInput, "First Field").Set("child")
	at.Button("Create One To Many").Click()
	run(t, at)
	require.Empty(t, at.Errors())

	all, err := links.ListAll(ctx, map[string]any{"test_item_id": parent})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "child", all[0].FirstField)
}

func TestCreateForm_RequiredForeignKey(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	owned := Bind[Owned](h)

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return owned.CreateForm(ctx, tk, CreateOptions{})
	})
	run(t, at)
	at.Find(ui.KindTextInput, "Title").Set("orphan")
	at.Button("Create Owned").Click()
	run(t, at)

	assert.Equal(t, []string{"Error creating Owned: Item is required"}, at.Errors())
	all, err := owned.ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateForm_UniqueConflict(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	items := Bind[Item](h)
	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return items.CreateForm(ctx, tk, CreateOptions{})
	})

	for range 2 {
		run(t, at)
		at.Find(ui.KindTextInput, "Name").Set("Same")
		at.Button("Create Item").Click()
		run(t, at)
	}

	require.Len(t, at.Errors(), 1)
	assert.Contains(t, at.Errors()[0], `Error creating Item "Same"`)
	all, err := items.ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateSelectForm_RoundTrip(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	items := Bind[Item](h)
	links := Bind[OneToMany](h)

	create := func(model string, set func(at *uitest.AppTest), app ui.App) {
		at := uitest.New(app)
		run(t, at)
		set(at)
		at.Button("Create " + model).Click()
		run(t, at)
		require.Empty(t, at.Errors())
	}
	create("Item", func(at *uitest.AppTest) { at.Find(ui.KindTextInput, "Name").Set("First") },
		func(ctx context.Context, tk ui.Toolkit) error { return items.CreateForm(ctx, tk, CreateOptions{}) })
	create("Item", func(at *uitest.AppTest) { at.Find(ui.KindTextInput, "Name").Set("Second") },
		func(ctx context.Context, tk ui.Toolkit) error { return items.CreateForm(ctx, tk, CreateOptions{}) })
	create("One To Many", func(at *uitest.AppTest) {
		at.Find(ui.KindTextInput, "First Field").Set("link")
		at.SelectBox("Test Item").Choose("Second")
	}, func(ctx context.Context, tk ui.Toolkit) error { return links.CreateForm(ctx, tk, CreateOptions{}) })

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return links.UpdateSelectForm(ctx, tk, UpdateOptions{})
	})
	run(t, at)
	assert.Nil(t, at.Find(ui.KindTextInput, "First Field"), "no form before a selection")
	at.SelectBox("Select One To Many to Update").Choose("link")
	run(t, at)

	// Every field shows the stored value.
	assert.Equal(t, "link", at.Find(ui.KindTextInput, "First Field").Value)
	fk := at.SelectBox("Test Item")
	require.NotNil(t, fk)
	assert.Equal(t, "Second", fk.Value)

	at.Find(ui.KindTextInput, "First Field").Set("renamed")
	fk.Choose("First")
	at.Button("Update One To Many").Click()
	run(t, at)
	assert.Equal(t, []string{`Updated One To Many "renamed"`}, at.Successes())
	assert.Equal(t, 2, at.Runs(), "a successful update reruns")

	first, err := items.ListAll(ctx, map[string]any{"name": "First"})
	require.NoError(t, err)
	all, err := links.ListAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "renamed", all[0].FirstField)
	require.NotNil(t, all[0].TestItemID)
	assert.Equal(t, first[0].ID, *all[0].TestItemID)
}

func TestUpdateForm_Except(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	items := Bind[Item](h)

	rec := &Item{Name: "Keep", Count: 4}
	b, err := h.Backend()
	require.NoError(t, err)
	require.NoError(t, b.InTx(ctx, func(tx *store.Tx) error { return tx.Insert(ctx, items.rt, rec) }))

	var stored bool
	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		var err error
		stored, err = items.UpdateForm(ctx, tk, rec, UpdateOptions{Except: []string{"name"}})
		return err
	})
	run(t, at)
	assert.Nil(t, at.Find(ui.KindTextInput, "Name"))
	assert.Equal(t, int64(4), at.Find(ui.KindIntInput, "Count").Value)
	assert.Contains(t, at.Forms()[0].Key, fmt.Sprintf("update_Item_%d_", rec.ID))

	at.Find(ui.KindIntInput, "Count").Set(9)
	at.Button("Update Item").Click()
	run(t, at)
	assert.True(t, stored)
	assert.Equal(t, 9, rec.Count)

	all, err := items.ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, &Item{ID: rec.ID, Name: "Keep", Count: 9}, all[0])
}

func TestDeleteSelectForm(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	items := Bind[Item](h)
	links := Bind[OneToMany](h)

	a := insertItem(t, h, "A")
	insertItem(t, h, "B")

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return items.DeleteSelectForm(ctx, tk, DeleteOptions{})
	})
	run(t, at)
	assert.Nil(t, at.Button("Delete Item"), "no confirmation before a selection")
	at.SelectBox("Select Item to Delete").Choose("A")
	run(t, at)
	require.Len(t, at.Forms(), 1)
	assert.Equal(t, fmt.Sprintf("delete_Item_%d", a.ID), at.Forms()[0].Key)

	at.Button("Delete Item").Click()
	run(t, at)
	assert.Equal(t, []string{`Deleted Item "A"`}, at.Successes())
	assert.Equal(t, []string{"B"}, at.SelectBox("Select Item to Delete").Options)

	all, err := items.ListAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Deleted records are gone from choice lists too.
	at = uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return links.CreateForm(ctx, tk, CreateOptions{})
	})
	run(t, at)
	assert.Equal(t, []string{"B"}, at.SelectBox("Test Item").Options)
}

// insertItem stores an item directly, the way another user's session would.
func insertItem(t *testing.T, h *Handle, name string) *Item {
	t.Helper()
	ctx := context.Background()
	b, err := h.Backend()
	require.NoError(t, err)
	rec := &Item{Name: name}
	require.NoError(t, b.InTx(ctx, func(tx *store.Tx) error {
		return tx.Insert(ctx, Bind[Item](h).rt, rec)
	}))
	return rec
}

func itemNames(t *testing.T, items *Binder[Item]) []string {
	t.Helper()
	all, err := items.ListAll(context.Background(), nil)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, rec := range all {
		names[i] = rec.Name
	}
	return names
}

// The choice lists below gain a record sorted in front of the chosen one
// between the choice and the submission; the submission must still act on
// the chosen record.

func TestDeleteSelectForm_ListChangesBeforeConfirm(t *testing.T) {
	h := newHandle(t)
	items := Bind[Item](h)
	insertItem(t, h, "A")
	c := insertItem(t, h, "C")

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return items.DeleteSelectForm(ctx, tk, DeleteOptions{})
	})
	run(t, at)
	at.SelectBox("Select Item to Delete").Choose("C")
	run(t, at)
	require.NotNil(t, at.Button("Delete Item"))

	insertItem(t, h, "B")
	at.Button("Delete Item").Click()
	run(t, at)

	assert.Equal(t, []string{`Deleted Item "C"`}, at.Successes())
	assert.Equal(t, []string{"A", "B"}, itemNames(t, items))
	assert.NotContains(t, at.SelectBox("Select Item to Delete").Values, fmt.Sprint(c.ID))
}

func TestDeleteSelectForm_StaleConfirm(t *testing.T) {
	h := newHandle(t)
	items := Bind[Item](h)
	insertItem(t, h, "A")
	c := insertItem(t, h, "C")

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return items.DeleteSelectForm(ctx, tk, DeleteOptions{})
	})
	run(t, at)
	at.SelectBox("Select Item to Delete").Choose("C")
	run(t, at)
	confirm := at.Button("Delete Item")
	require.NotNil(t, confirm)

	// C is deleted elsewhere; the pending confirmation no longer matches a
	// rendered form and deletes nothing.
	b, err := h.Backend()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, b.InTx(ctx, func(tx *store.Tx) error { return tx.Delete(ctx, items.rt, c) }))
	confirm.Click()
	run(t, at)

	assert.Empty(t, at.Successes())
	assert.Equal(t, []string{"A"}, itemNames(t, items))
	assert.Equal(t, ui.NoSelection, at.SelectBox("Select Item to Delete").Index)
}

func TestCreateForm_ForeignKeyListChangesBeforeSubmit(t *testing.T) {
	h := newHandle(t)
	links := Bind[OneToMany](h)
	insertItem(t, h, "A")
	c := insertItem(t, h, "C")

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return links.CreateForm(ctx, tk, CreateOptions{})
	})
	run(t, at)
	at.Find(ui.KindTextInput, "First Field").Set("link")
	at.SelectBox("Test Item").Choose("C")

	insertItem(t, h, "B")
	at.Button("Create One To Many").Click()
	run(t, at)
	require.Equal(t, []string{`Added One To Many "link"`}, at.Successes())

	all, err := links.ListAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].TestItemID)
	assert.Equal(t, c.ID, *all[0].TestItemID)
}

func TestUpdateSelectForm_ListChangesBeforeSubmit(t *testing.T) {
	h := newHandle(t)
	items := Bind[Item](h)
	insertItem(t, h, "A")
	c := insertItem(t, h, "C")

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return items.UpdateSelectForm(ctx, tk, UpdateOptions{})
	})
	run(t, at)
	at.SelectBox("Select Item to Update").Choose("C")
	run(t, at)
	at.Find(ui.KindIntInput, "Count").Set(5)

	insertItem(t, h, "B")
	at.Button("Update Item").Click()
	run(t, at)
	assert.Equal(t, []string{`Updated Item "C"`}, at.Successes())
	assert.Equal(t, "C", at.SelectBox("Select Item to Update").Value, "the choice stays on C")

	all, err := items.ListAll(context.Background(), map[string]any{"name": "C"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, &Item{ID: c.ID, Name: "C", Count: 5}, all[0])
}

func TestCrudTabs(t *testing.T) {
	h := newHandle(t)
	items := Bind[Item](h)

	at := uitest.New(func(ctx context.Context, tk ui.Toolkit) error {
		return items.CrudTabs(ctx, tk, TabsOptions{})
	})
	run(t, at)
	assert.Equal(t, []string{"Create Item", "Update Item", "Delete Item"}, at.Tabs())
	assert.NotNil(t, at.SelectBox("Select Item to Update"))
	assert.NotNil(t, at.SelectBox("Select Item to Delete"))
	assert.NotNil(t, at.Button("Create Item"))
}

func TestEditAndDeleteButtons(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()
	events := Bind[Event](h)

	rec := &Event{Name: "Launch", At: time.Date(2024, 1, 2, 3, 0, 0, 0, time.Local)}
	b, err := h.Backend()
	require.NoError(t, err)
	require.NoError(t, b.InTx(ctx, func(tx *store.Tx) error { return tx.Insert(ctx, events.rt, rec) }))

	app := func(ctx context.Context, tk ui.Toolkit) error {
		all, err := events.ListAll(ctx, nil)
		if err != nil {
			return err
		}
		for _, ev := range all {
			tk.Text(events.Label(ev))
			if _, err := events.EditButton(ctx, tk, ev, "Mark done", map[string]any{"done": true}); err != nil {
				return err
			}
			if _, err := events.DeleteButton(ctx, tk, ev, ""); err != nil {
				return err
			}
		}
		return nil
	}
	at := uitest.New(app)
	run(t, at)
	assert.Equal(t, []string{"Launch"}, at.Texts())
	edit := at.Button("Mark done")
	require.NotNil(t, edit)
	assert.Contains(t, edit.Key, fmt.Sprintf("edit_Event_%d_", rec.ID))

	edit.Click()
	run(t, at)
	assert.Equal(t, []string{`Updated Event "Launch"`}, at.Successes())
	got, err := events.ListAll(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, got[0].Done)
	assert.True(t, *got[0].Done)
	assert.True(t, rec.At.Equal(got[0].At))

	at.Button("Delete").Click()
	run(t, at)
	assert.Equal(t, []string{`Deleted Event "Launch"`}, at.Successes())
	assert.Empty(t, at.Texts())

	_, err = events.EditButton(ctx, nil, rec, "x", map[string]any{"missing": 1})
	assert.ErrorIs(t, err, types.ErrUnknownField)
}

func TestNotInitialized(t *testing.T) {
	h := NewHandle()
	items := Bind[Item](h)
	ctx := context.Background()
	var tk ui.Toolkit

	_, err := items.ListAll(ctx, nil)
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	assert.ErrorIs(t, items.CreateForm(ctx, tk, CreateOptions{}), types.ErrNotInitialized)
	assert.ErrorIs(t, items.UpdateSelectForm(ctx, tk, UpdateOptions{}), types.ErrNotInitialized)
	assert.ErrorIs(t, items.DeleteSelectForm(ctx, tk, DeleteOptions{}), types.ErrNotInitialized)
	assert.ErrorIs(t, items.CrudTabs(ctx, tk, TabsOptions{}), types.ErrNotInitialized)
	_, err = items.UpdateForm(ctx, tk, &Item{ID: 1}, UpdateOptions{})
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = items.EditButton(ctx, tk, &Item{ID: 1}, "x", nil)
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = items.DeleteButton(ctx, tk, &Item{ID: 1}, "")
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	assert.ErrorIs(t, h.CreateTables(ctx), types.ErrNotInitialized)
}

func TestInitializeOnce(t *testing.T) {
	logger.SetLogLevel(logger.LogLevelNone)
	ctx := context.Background()
	h := NewHandle()
	first := types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}
	require.NoError(t, h.Initialize(ctx, first))
	t.Cleanup(func() { h.Close() })

	err := h.Initialize(ctx, types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrAlreadyInitialized)

	b, err := h.Backend()
	require.NoError(t, err)
	assert.Equal(t, first, b.Config())
}

func TestBindRejectsNonStruct(t *testing.T) {
	b := Bind[int](NewHandle())
	assert.ErrorIs(t, b.Err(), types.ErrNotStruct)
	_, err := b.ListAll(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrNotStruct)
}

func TestFormKeysAreStable(t *testing.T) {
	a := hashValues("", map[string]any{"a": int64(1), "b": "x"})
	b := hashValues("", map[string]any{"b": "x", "a": int64(1)})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, hashValues("", map[string]any{"a": int64(2), "b": "x"}))
	assert.Equal(t, hashColumns([]string{"x", "y"}), hashColumns([]string{"y", "x"}))
}
