// Package repository implements the admin resources on top of a document
// store: validation, filtering, pagination, cascades and the sprint and
// retrospective actions.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// DefaultUserIDPrefix marks identifiers issued by the identity provider.
const DefaultUserIDPrefix = "user_"

// Repository exposes every resource operation of the admin tool.
type Repository struct {
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time

	userIDPrefix string

	projects      storage.Collection
	estimations   storage.Collection
	tasks         storage.Collection
	sprints       storage.Collection
	tags          storage.Collection
	users         storage.Collection
	retroSessions storage.Collection
	retroCards    storage.Collection
	retroActions  storage.Collection
}

// Option customizes a Repository.
type Option func(*Repository)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithUserIDPrefix sets the prefix that identifies identity-provider user ids.
func WithUserIDPrefix(prefix string) Option {
	return func(r *Repository) {
		if prefix != "" {
			r.userIDPrefix = prefix
		}
	}
}

// New binds a repository to backend.
func New(backend storage.Backend, logger *slog.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		backend:       backend,
		logger:        logger,
		now:           models.Now,
		userIDPrefix:  DefaultUserIDPrefix,
		projects:      backend.Collection(models.CollectionProjects),
		estimations:   backend.Collection(models.CollectionEstimations),
		tasks:         backend.Collection(models.CollectionTasks),
		sprints:       backend.Collection(models.CollectionSprints),
		tags:          backend.Collection(models.CollectionTags),
		users:         backend.Collection(models.CollectionUsers),
		retroSessions: backend.Collection(models.CollectionRetroSessions),
		retroCards:    backend.Collection(models.CollectionRetroCards),
		retroActions:  backend.Collection(models.CollectionRetroActions),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Collections lists every collection with the indexes its queries rely on.
func Collections() []storage.CollectionSpec {
	return []storage.CollectionSpec{
		{Name: models.CollectionProjects, Indexes: []storage.Index{
			{Fields: []string{"status"}},
			{Fields: []string{"stage"}},
		}},
		{Name: models.CollectionEstimations, Indexes: []storage.Index{
			{Fields: []string{"status"}},
		}},
		{Name: models.CollectionTasks, Indexes: []storage.Index{
			{Fields: []string{"projectId", "status"}},
			{Fields: []string{"sprintId"}},
			{Fields: []string{"parentId"}},
		}},
		{Name: models.CollectionSprints, Indexes: []storage.Index{
			{Fields: []string{"projectId", "status"}},
		}},
		{Name: models.CollectionTags, Indexes: []storage.Index{
			{Fields: []string{"projectId"}},
			{Fields: []string{"projectId", "nameKey"}, Unique: true, Sparse: "nameKey"},
		}},
		{Name: models.CollectionUsers, Indexes: []storage.Index{
			{Fields: []string{"email"}, Unique: true},
			{Fields: []string{"externalId"}, Unique: true, Sparse: "externalId"},
		}},
		{Name: models.CollectionRetroSessions, Indexes: []storage.Index{
			{Fields: []string{"sprintId"}, Unique: true},
		}},
		{Name: models.CollectionRetroCards, Indexes: []storage.Index{
			{Fields: []string{"sprintId"}},
		}},
		{Name: models.CollectionRetroActions, Indexes: []storage.Index{
			{Fields: []string{"sprintId"}},
		}},
	}
}

// Migrate creates the collections and indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.backend.Migrate(ctx, Collections())
}

// Ping checks the backend is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

// UserIDPrefix returns the identity-provider id prefix in use.
func (r *Repository) UserIDPrefix() string {
	return r.userIDPrefix
}

func (r *Repository) get(ctx context.Context, c storage.Collection, resource string, id primitive.ObjectID, out any) error {
	if err := c.Get(ctx, id, out); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Resource: resource}
		}
		return fmt.Errorf("load %s: %w", resource, err)
	}
	return nil
}

func (r *Repository) remove(ctx context.Context, c storage.Collection, resource string, id primitive.ObjectID) error {
	if err := c.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Resource: resource}
		}
		return fmt.Errorf("delete %s: %w", resource, err)
	}
	return nil
}

// findPage loads one page of q into out and returns the total match count.
func findPage[T any](ctx context.Context, c storage.Collection, q storage.Query, p Paging) (ListResult[T], error) {
	p = p.normalize()
	total, err := c.Count(ctx, q)
	if err != nil {
		return ListResult[T]{}, err
	}
	items := []T{}
	if err := c.Find(ctx, q.Page((p.Page-1)*p.PageSize, p.PageSize), &items); err != nil {
		return ListResult[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return ListResult[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}, nil
}

// findAll loads every match of q.
func findAll[T any](ctx context.Context, c storage.Collection, q storage.Query) ([]T, error) {
	items := []T{}
	if err := c.Find(ctx, q, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func idValues(ids []primitive.ObjectID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func stringValues(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}
