package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

func TestFilterDocTranslatesConditions(t *testing.T) {
	id := primitive.NewObjectID()
	q := storage.Where(
		storage.Eq("projectId", id),
		storage.NotIn("status", "archived"),
		storage.AnyIn("tagIds", id),
		storage.IsNull("parentId"),
		storage.Search("a.b", "title", "description"),
	)

	got := filterDoc(q)
	and, ok := got["$and"].(bson.A)
	if !ok || len(and) != 5 {
		t.Fatalf("unexpected filter: %#v", got)
	}

	in := and[0].(bson.M)["projectId"].(bson.M)["$in"].(bson.A)
	if len(in) != 1 || in[0] != id {
		t.Fatalf("eq translated to %#v", and[0])
	}
	if _, ok := and[1].(bson.M)["status"].(bson.M)["$nin"]; !ok {
		t.Fatalf("not in translated to %#v", and[1])
	}
	if v, ok := and[3].(bson.M)["parentId"]; !ok || v != nil {
		t.Fatalf("is null translated to %#v", and[3])
	}

	or := and[4].(bson.M)["$or"].(bson.A)
	re := or[0].(bson.M)["title"].(primitive.Regex)
	if re.Pattern != `a\.b` || re.Options != "i" {
		t.Fatalf("search regex = %#v", re)
	}
}

func TestFilterDocEmptyQueryMatchesAll(t *testing.T) {
	if got := filterDoc(storage.Where()); len(got) != 0 {
		t.Fatalf("expected empty filter, got %#v", got)
	}
}

func TestIndexModelSparseField(t *testing.T) {
	plain := indexModel(storage.Index{Fields: []string{"email"}, Unique: true})
	if plain.Options.Unique == nil || !*plain.Options.Unique || plain.Options.PartialFilterExpression != nil {
		t.Fatalf("unique index options = %+v", plain.Options)
	}

	partial := indexModel(storage.Index{Fields: []string{"projectId", "nameKey"}, Unique: true, Sparse: "nameKey"})
	got, ok := partial.Options.PartialFilterExpression.(bson.D)
	if !ok || len(got) != 1 || got[0].Key != "nameKey" {
		t.Fatalf("partial filter = %#v", partial.Options.PartialFilterExpression)
	}
	if cond, ok := got[0].Value.(bson.D); !ok || len(cond) != 1 || cond[0].Key != "$type" || cond[0].Value != "string" {
		t.Fatalf("partial condition = %#v", got[0].Value)
	}
}

func TestSortDocAppendsIDOnce(t *testing.T) {
	got := sortDoc(storage.Where().SortBy("createdAt", true))
	want := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("sort = %#v", got)
	}

	got = sortDoc(storage.Where().SortBy("_id", true))
	if len(got) != 1 || got[0].Value != -1 {
		t.Fatalf("sort = %#v", got)
	}
}

// TestStoreAgainstServer runs only when a MongoDB instance is available.
func TestStoreAgainstServer(t *testing.T) {
	uri := os.Getenv("COLLYBRIX_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("COLLYBRIX_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbName := "collybrix_test_" + primitive.NewObjectID().Hex()
	s, err := Open(ctx, Options{URI: uri, Database: dbName, MaxPoolSize: 4}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})

	err = s.Migrate(ctx, []storage.CollectionSpec{{
		Name:    "notes",
		Indexes: []storage.Index{{Fields: []string{"email"}, Unique: true}},
	}})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	type note struct {
		ID     primitive.ObjectID   `bson:"_id"`
		Email  string               `bson:"email"`
		Labels []primitive.ObjectID `bson:"labels"`
	}
	c := s.Collection("notes")
	label := primitive.NewObjectID()
	n := note{ID: primitive.NewObjectID(), Email: "a@example.com", Labels: []primitive.ObjectID{label}}
	if err := c.Insert(ctx, n.ID, n); err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := note{ID: primitive.NewObjectID(), Email: "a@example.com"}
	if err := c.Insert(ctx, dup.ID, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	changed, err := c.Pull(ctx, storage.Where(), "labels", label)
	if err != nil || changed != 1 {
		t.Fatalf("pull: %d, %v", changed, err)
	}
	var got note
	if err := c.Get(ctx, n.ID, &got); err != nil || len(got.Labels) != 0 {
		t.Fatalf("get after pull: %+v, %v", got, err)
	}
	if err := c.Delete(ctx, n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Get(ctx, n.ID, &got); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
