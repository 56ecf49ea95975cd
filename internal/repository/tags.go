package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#6b7280"

// TagInput is the body of a tag create.
type TagInput struct {
	ProjectID string `json:"projectId" validate:"required,objectid"`
	Name      string `json:"name" validate:"required,max=50"`
	Color     string `json:"color" validate:"omitempty,hexcolor"`
}

// TagUpdate is the body of a tag update; tags cannot change project.
type TagUpdate struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// ListTags returns every tag of a project ordered by name.
func (r *Repository) ListTags(ctx context.Context, projectID string) ([]models.Tag, error) {
	id, err := models.ParseID(projectID)
	if err != nil {
		return nil, invalidID("projectId")
	}
	tags, err := r.projectTags(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (r *Repository) projectTags(ctx context.Context, projectID primitive.ObjectID) ([]models.Tag, error) {
	q := storage.Where(storage.Eq("projectId", projectID)).SortBy("name", false)
	return findAll[models.Tag](ctx, r.tags, q)
}

// GetTag loads a single tag.
func (r *Repository) GetTag(ctx context.Context, id primitive.ObjectID) (models.Tag, error) {
	var t models.Tag
	err := r.get(ctx, r.tags, "Tag", id, &t)
	return t, err
}

// ensureUniqueTag fails with ErrDuplicateTag when another tag of the project
// has the same name ignoring case. Tags stored before NameKey existed are
// only caught here; the unique (projectId, nameKey) index covers the rest,
// including concurrent writers.
func (r *Repository) ensureUniqueTag(ctx context.Context, projectID primitive.ObjectID, name string, self primitive.ObjectID) error {
	tags, err := r.projectTags(ctx, projectID)
	if err != nil {
		return fmt.Errorf("check tag name: %w", err)
	}
	for _, t := range tags {
		if t.ID != self && models.SameTagName(t.Name, name) {
			return ErrDuplicateTag
		}
	}
	return nil
}

// tagWriteError maps a unique-index violation to ErrDuplicateTag.
func tagWriteError(op string, err error) error {
	if isDuplicate(err) {
		return ErrDuplicateTag
	}
	return fmt.Errorf("%s tag: %w", op, err)
}

// CreateTag stores a new tag in a project.
func (r *Repository) CreateTag(ctx context.Context, in TagInput) (models.Tag, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in).err(); err != nil {
		return models.Tag{}, err
	}
	projectID := mustID(in.ProjectID)
	if err := r.requireProject(ctx, projectID, "projectId"); err != nil {
		return models.Tag{}, err
	}
	if err := r.ensureUniqueTag(ctx, projectID, in.Name, primitive.NilObjectID); err != nil {
		return models.Tag{}, err
	}

	if in.Color == "" {
		in.Color = DefaultTagColor
	}
	now := r.now()
	t := models.Tag{
		ID:        models.NewID(),
		ProjectID: projectID,
		Name:      in.Name,
		NameKey:   models.TagKey(in.Name),
		Color:     in.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.tags.Insert(ctx, t.ID, t); err != nil {
		return models.Tag{}, tagWriteError("insert", err)
	}
	return t, nil
}

// UpdateTag renames or recolors a tag.
func (r *Repository) UpdateTag(ctx context.Context, id primitive.ObjectID, in TagUpdate) (models.Tag, error) {
	t, err := r.GetTag(ctx, id)
	if err != nil {
		return models.Tag{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in).err(); err != nil {
		return models.Tag{}, err
	}
	if err := r.ensureUniqueTag(ctx, t.ProjectID, in.Name, t.ID); err != nil {
		return models.Tag{}, err
	}

	t.Name = in.Name
	t.NameKey = models.TagKey(in.Name)
	if in.Color != "" {
		t.Color = in.Color
	}
	t.UpdatedAt = r.now()
	if err := r.tags.Replace(ctx, t.ID, t); err != nil {
		return models.Tag{}, tagWriteError("update", err)
	}
	return t, nil
}

// DeleteTag removes a tag and pulls it from every task carrying it. It
// returns how many tasks were updated.
func (r *Repository) DeleteTag(ctx context.Context, id primitive.ObjectID) (int64, error) {
	if err := r.remove(ctx, r.tags, "Tag", id); err != nil {
		return 0, err
	}
	tagged := storage.Where(storage.AnyIn("tagIds", id))
	if _, err := r.tasks.Set(ctx, tagged, "updatedAt", r.now()); err != nil {
		return 0, fmt.Errorf("touch tagged tasks: %w", err)
	}
	n, err := r.tasks.Pull(ctx, storage.Query{}, "tagIds", id)
	if err != nil {
		return 0, fmt.Errorf("untag tasks: %w", err)
	}
	return n, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, storage.ErrDuplicate)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
