package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage/sqlite"
)

type note struct {
	ID        primitive.ObjectID   `json:"_id"`
	Owner     primitive.ObjectID   `json:"owner"`
	Title     string               `json:"title"`
	Body      string               `json:"body"`
	Status    string               `json:"status"`
	Points    *int                 `json:"points"`
	Parent    *primitive.ObjectID  `json:"parent"`
	Labels    []primitive.ObjectID `json:"labels"`
	Email     string               `json:"email"`
	CreatedAt time.Time            `json:"createdAt"`
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	err = s.Migrate(context.Background(), []storage.CollectionSpec{{
		Name: "notes",
		Indexes: []storage.Index{
			{Fields: []string{"owner"}},
			{Fields: []string{"email"}, Unique: true},
		},
	}})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func insertNote(t *testing.T, c storage.Collection, n note) note {
	t.Helper()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.Labels == nil {
		n.Labels = []primitive.ObjectID{}
	}
	if n.Email == "" {
		n.Email = n.ID.Hex() + "@example.com"
	}
	if err := c.Insert(context.Background(), n.ID, n); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return n
}

func intPtr(v int) *int { return &v }

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	err := s.Migrate(context.Background(), []storage.CollectionSpec{{Name: "notes"}})
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Migrate(context.Background(), []storage.CollectionSpec{{Name: "bad name"}}); err == nil {
		t.Fatal("expected invalid collection name to be rejected")
	}
}

func TestInsertGetReplaceDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("notes")

	n := insertNote(t, c, note{Title: "first", Points: intPtr(3)})

	var got note
	if err := c.Get(ctx, n.ID, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "first" || got.Points == nil || *got.Points != 3 || got.ID != n.ID {
		t.Fatalf("unexpected document: %+v", got)
	}

	got.Title = "renamed"
	if err := c.Replace(ctx, n.ID, got); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := c.Get(ctx, n.ID, &got); err != nil || got.Title != "renamed" {
		t.Fatalf("after replace: %+v, %v", got, err)
	}

	if err := c.Delete(ctx, n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Get(ctx, n.ID, &got); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.Delete(ctx, n.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := c.Replace(ctx, n.ID, got); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replace, got %v", err)
	}
}

func TestUniqueIndexReportsDuplicate(t *testing.T) {
	c := newTestStore(t).Collection("notes")
	insertNote(t, c, note{Title: "a", Email: "dup@example.com"})

	id := primitive.NewObjectID()
	err := c.Insert(context.Background(), id, note{ID: id, Title: "b", Email: "dup@example.com", Labels: []primitive.ObjectID{}})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSparseUniqueIndexIgnoresUnsetValues(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	err := s.Migrate(ctx, []storage.CollectionSpec{{
		Name:    "links",
		Indexes: []storage.Index{{Fields: []string{"parent"}, Unique: true, Sparse: "parent"}},
	}})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	c := s.Collection("links")

	insertNote(t, c, note{Title: "unlinked a"})
	insertNote(t, c, note{Title: "unlinked b"})
	parent := primitive.NewObjectID()
	insertNote(t, c, note{Title: "linked", Parent: &parent})

	id := primitive.NewObjectID()
	err = c.Insert(ctx, id, note{ID: id, Title: "linked again", Parent: &parent, Labels: []primitive.ObjectID{}})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestFindFilters(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("notes")

	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()
	label := primitive.NewObjectID()
	parent := primitive.NewObjectID()

	a := insertNote(t, c, note{Owner: owner, Title: "Fix Login bug", Status: "todo", Labels: []primitive.ObjectID{label}})
	b := insertNote(t, c, note{Owner: owner, Title: "Write docs", Body: "mention LOGIN flow", Status: "done", Parent: &parent})
	insertNote(t, c, note{Owner: other, Title: "Unrelated 100%", Status: "todo"})
	accented := insertNote(t, c, note{Owner: other, Title: "ÉQUIPE review", Body: "Straße works", Status: "todo"})

	cases := []struct {
		name string
		q    storage.Query
		want []primitive.ObjectID
	}{
		{"eq", storage.Where(storage.Eq("owner", owner)), []primitive.ObjectID{a.ID, b.ID}},
		{"in", storage.Where(storage.In("status", "done", "blocked")), []primitive.ObjectID{b.ID}},
		{"not in", storage.Where(storage.Eq("owner", owner), storage.NotIn("status", "done")), []primitive.ObjectID{a.ID}},
		{"any in", storage.Where(storage.AnyIn("labels", label)), []primitive.ObjectID{a.ID}},
		{"is null", storage.Where(storage.Eq("owner", owner), storage.IsNull("parent")), []primitive.ObjectID{a.ID}},
		{"not null", storage.Where(storage.NotNull("parent")), []primitive.ObjectID{b.ID}},
		{"search", storage.Where(storage.Search("login", "title", "body")), []primitive.ObjectID{a.ID, b.ID}},
		{"search folds accented capitals", storage.Where(storage.Search("équipe", "title", "body")), []primitive.ObjectID{accented.ID}},
		{"search applies full case folding", storage.Where(storage.Search("STRASSE", "body")), []primitive.ObjectID{accented.ID}},
		{"search escapes wildcards", storage.Where(storage.Search("_", "title")), nil},
		{"empty in", storage.Where(storage.In("status")), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []note
			if err := c.Find(ctx, tc.q.SortBy("title", false), &got); err != nil {
				t.Fatalf("find: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d documents, want %d: %+v", len(got), len(tc.want), got)
			}
			for _, id := range tc.want {
				found := false
				for _, n := range got {
					if n.ID == id {
						found = true
					}
				}
				if !found {
					t.Fatalf("missing %s in %+v", id.Hex(), got)
				}
			}
		})
	}

	// "Unrelated 100%" contains "0%" literally.
	var literal []note
	if err := c.Find(ctx, storage.Where(storage.Search("100%", "title")), &literal); err != nil || len(literal) != 1 {
		t.Fatalf("literal percent search: %d, %v", len(literal), err)
	}
}

func TestFindSortsTimestampsChronologically(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("notes")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	// Whole seconds render without a fraction, which sorts after ".5Z" as text.
	first := insertNote(t, c, note{Title: "whole", CreatedAt: base})
	second := insertNote(t, c, note{Title: "half", CreatedAt: base.Add(500 * time.Millisecond)})
	third := insertNote(t, c, note{Title: "later", CreatedAt: base.Add(2 * time.Second)})

	var got []note
	if err := c.Find(ctx, storage.Where().SortBy("createdAt", false), &got); err != nil {
		t.Fatalf("find: %v", err)
	}
	want := []primitive.ObjectID{first.ID, second.ID, third.ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, got[i].Title, id.Hex())
		}
	}
}

func TestFindPagesAndCounts(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("notes")
	for i := 0; i < 7; i++ {
		insertNote(t, c, note{Title: string(rune('a' + i)), Points: intPtr(i)})
	}

	var page []note
	q := storage.Where().SortBy("points", true).Page(3, 3)
	if err := c.Find(ctx, q, &page); err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(page) != 3 || *page[0].Points != 3 || *page[2].Points != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	n, err := c.Count(ctx, q)
	if err != nil || n != 7 {
		t.Fatalf("count = %d, %v", n, err)
	}

	var tail []note
	if err := c.Find(ctx, storage.Where().SortBy("points", false).Page(5, 0), &tail); err != nil {
		t.Fatalf("find tail: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2 documents after skip, got %d", len(tail))
	}

	var empty []note
	if err := c.Find(ctx, storage.Where(storage.Eq("title", "zzz")), &empty); err != nil || len(empty) != 0 {
		t.Fatalf("empty find: %+v, %v", empty, err)
	}
}

func TestFindOne(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("notes")
	n := insertNote(t, c, note{Title: "only", Status: "todo"})

	var got note
	if err := c.FindOne(ctx, storage.Where(storage.Eq("status", "todo")), &got); err != nil || got.ID != n.ID {
		t.Fatalf("find one: %+v, %v", got, err)
	}
	if err := c.FindOne(ctx, storage.Where(storage.Eq("status", "done")), &got); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPullRemovesArrayElement(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("notes")

	keep := primitive.NewObjectID()
	drop := primitive.NewObjectID()
	a := insertNote(t, c, note{Title: "a", Labels: []primitive.ObjectID{keep, drop}})
	b := insertNote(t, c, note{Title: "b", Labels: []primitive.ObjectID{drop}})
	insertNote(t, c, note{Title: "c", Labels: []primitive.ObjectID{keep}})

	changed, err := c.Pull(ctx, storage.Where(), "labels", drop)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}

	var got note
	if err := c.Get(ctx, a.ID, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Labels) != 1 || got.Labels[0] != keep {
		t.Fatalf("labels of a = %v", got.Labels)
	}
	if err := c.Get(ctx, b.ID, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Labels == nil || len(got.Labels) != 0 {
		t.Fatalf("labels of b = %#v, want empty array", got.Labels)
	}
}

func TestSetAssignsField(t *testing.T) {
	ctx := context.Background()
	c := newTestStore(t).Collection("notes")

	parent := primitive.NewObjectID()
	a := insertNote(t, c, note{Title: "a", Parent: &parent})
	insertNote(t, c, note{Title: "b"})

	n, err := c.Set(ctx, storage.Where(storage.Eq("parent", parent)), "parent", nil)
	if err != nil || n != 1 {
		t.Fatalf("set parent: %d, %v", n, err)
	}
	var got note
	if err := c.Get(ctx, a.ID, &got); err != nil || got.Parent != nil {
		t.Fatalf("parent not cleared: %+v, %v", got, err)
	}

	n, err = c.Set(ctx, storage.Where(storage.NotIn("status", "todo")), "status", "todo")
	if err != nil || n != 2 {
		t.Fatalf("set status: %d, %v", n, err)
	}
	count, _ := c.Count(ctx, storage.Where(storage.Eq("status", "todo")))
	if count != 2 {
		t.Fatalf("status count = %d", count)
	}

	if _, err := c.DeleteMany(ctx, storage.Where(storage.Eq("status", "todo"))); err != nil {
		t.Fatalf("delete many: %v", err)
	}
	count, _ = c.Count(ctx, storage.Where())
	if count != 0 {
		t.Fatalf("documents left: %d", count)
	}
}
