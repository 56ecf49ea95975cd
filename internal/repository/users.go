package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

var userSortFields = map[string]struct{}{
	"createdAt": {},
	"updatedAt": {},
	"name":      {},
	"email":     {},
}

// UserFilter narrows a user listing.
type UserFilter struct {
	Roles  []string
	Active *bool
	Search string
	Paging Paging
	Sort   Sort
}

// UserInput is the body of a user create or full replace.
type UserInput struct {
	Name       string  `json:"name" validate:"required,max=120"`
	Email      string  `json:"email" validate:"required,email"`
	Role       string  `json:"role"`
	Active     *bool   `json:"active"`
	ExternalID *string `json:"externalId" validate:"omitempty,max=200"`
	AvatarURL  string  `json:"avatarUrl" validate:"omitempty,url"`
}

// UserPatch is the body of a partial user update.
type UserPatch struct {
	Name       Optional[string]  `json:"name"`
	Email      Optional[string]  `json:"email"`
	Role       Optional[string]  `json:"role"`
	Active     Optional[*bool]   `json:"active"`
	ExternalID Optional[*string] `json:"externalId"`
	AvatarURL  Optional[string]  `json:"avatarUrl"`
}

// ListUsers returns one page of users ordered by name.
func (r *Repository) ListUsers(ctx context.Context, filter UserFilter) (ListResult[models.User], error) {
	q := storage.Query{}
	if len(filter.Roles) > 0 {
		details := fieldErrors{}
		for _, role := range filter.Roles {
			details.oneOf("role", role, models.ValidUserRoles)
		}
		if err := details.err(); err != nil {
			return ListResult[models.User]{}, err
		}
		q = q.And(storage.In("role", stringValues(filter.Roles)...))
	}
	if filter.Active != nil {
		q = q.And(storage.Eq("active", *filter.Active))
	}
	if filter.Search != "" {
		q = q.And(storage.Search(filter.Search, "name", "email"))
	}
	q, err := filter.Sort.apply(q, userSortFields, "name", false)
	if err != nil {
		return ListResult[models.User]{}, err
	}
	res, err := findPage[models.User](ctx, r.users, q, filter.Paging)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}
	return res, nil
}

// AllUsers returns every stored user.
func (r *Repository) AllUsers(ctx context.Context) ([]models.User, error) {
	users, err := findAll[models.User](ctx, r.users, storage.Query{}.SortBy("name", false))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// resolveUser looks a user up by document id or identity-provider id.
func (r *Repository) resolveUser(ctx context.Context, key string) (models.User, error) {
	var u models.User
	if id, err := models.ParseID(key); err == nil {
		return u, r.get(ctx, r.users, "User", id, &u)
	}
	if !r.IsExternalUserID(key) {
		return u, invalidID("id")
	}
	err := r.users.FindOne(ctx, storage.Where(storage.Eq("externalId", key)), &u)
	if err != nil {
		if isNotFound(err) {
			return u, &NotFoundError{Resource: "User"}
		}
		return u, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// IsExternalUserID reports whether key is an identity-provider user id.
func (r *Repository) IsExternalUserID(key string) bool {
	return strings.HasPrefix(key, r.userIDPrefix) && len(key) > len(r.userIDPrefix)
}

// GetUser loads a user by document id or identity-provider id.
func (r *Repository) GetUser(ctx context.Context, key string) (models.User, error) {
	return r.resolveUser(ctx, key)
}

func validateUser(in *UserInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	details := check(*in)
	details.oneOf("role", in.Role, models.ValidUserRoles)
	return details.err()
}

// CreateUser registers PM metadata for a team member.
func (r *Repository) CreateUser(ctx context.Context, in UserInput) (models.User, error) {
	if err := validateUser(&in); err != nil {
		return models.User{}, err
	}
	now := r.now()
	u := models.User{ID: models.NewID(), CreatedAt: now}
	applyUser(&u, in, now)
	if err := r.ensureUniqueEmail(ctx, u.Email, u.ID); err != nil {
		return models.User{}, err
	}
	if err := r.users.Insert(ctx, u.ID, u); err != nil {
		if isDuplicate(err) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ReplaceUser overwrites a user. When key is an identity-provider id that
// is not stored yet, the user is created linked to it.
func (r *Repository) ReplaceUser(ctx context.Context, key string, in UserInput) (models.User, bool, error) {
	u, err := r.resolveUser(ctx, key)
	if isNotFound(err) && r.IsExternalUserID(key) {
		in.ExternalID = &key
		created, err := r.CreateUser(ctx, in)
		return created, true, err
	}
	if err != nil {
		return models.User{}, false, err
	}
	if err := validateUser(&in); err != nil {
		return models.User{}, false, err
	}
	saved, err := r.saveUser(ctx, u, in)
	return saved, false, err
}

// PatchUser updates only the fields present in p.
func (r *Repository) PatchUser(ctx context.Context, key string, p UserPatch) (models.User, error) {
	u, err := r.resolveUser(ctx, key)
	if err != nil {
		return models.User{}, err
	}
	active := u.Active
	in := UserInput{
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Active:     &active,
		ExternalID: u.ExternalID,
		AvatarURL:  u.AvatarURL,
	}
	p.Name.applyTo(&in.Name)
	p.Email.applyTo(&in.Email)
	p.Role.applyTo(&in.Role)
	p.Active.applyTo(&in.Active)
	p.ExternalID.applyTo(&in.ExternalID)
	p.AvatarURL.applyTo(&in.AvatarURL)
	if err := validateUser(&in); err != nil {
		return models.User{}, err
	}
	return r.saveUser(ctx, u, in)
}

func (r *Repository) saveUser(ctx context.Context, u models.User, in UserInput) (models.User, error) {
	now := r.now()
	applyUser(&u, in, now)
	if err := r.ensureUniqueEmail(ctx, u.Email, u.ID); err != nil {
		return models.User{}, err
	}
	if err := r.users.Replace(ctx, u.ID, u); err != nil {
		if isDuplicate(err) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func applyUser(u *models.User, in UserInput, now time.Time) {
	u.Name = in.Name
	u.Email = in.Email
	u.Role = in.Role
	if u.Role == "" {
		u.Role = models.RoleDeveloper
	}
	u.Active = in.Active == nil || *in.Active
	u.ExternalID = in.ExternalID
	if u.ExternalID != nil && *u.ExternalID == "" {
		u.ExternalID = nil
	}
	u.AvatarURL = in.AvatarURL
	u.UpdatedAt = now
}

func (r *Repository) ensureUniqueEmail(ctx context.Context, email string, self primitive.ObjectID) error {
	var existing models.User
	err := r.users.FindOne(ctx, storage.Where(storage.Eq("email", email)), &existing)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if existing.ID != self {
		return ErrDuplicateUser
	}
	return nil
}

// DeleteUser removes a user and unassigns them from every task.
func (r *Repository) DeleteUser(ctx context.Context, key string) error {
	u, err := r.resolveUser(ctx, key)
	if err != nil {
		return err
	}
	if err := r.remove(ctx, r.users, "User", u.ID); err != nil {
		return err
	}

	now := r.now()
	assigned := storage.Where(storage.AnyIn("assigneeIds", u.ID))
	if _, err := r.tasks.Set(ctx, assigned, "updatedAt", now); err != nil {
		return fmt.Errorf("touch assigned tasks: %w", err)
	}
	if _, err := r.tasks.Pull(ctx, storage.Query{}, "assigneeIds", u.ID); err != nil {
		return fmt.Errorf("unassign tasks: %w", err)
	}
	reported := storage.Where(storage.Eq("reporterId", u.ID))
	if _, err := r.tasks.Set(ctx, reported, "updatedAt", now); err != nil {
		return fmt.Errorf("touch reported tasks: %w", err)
	}
	if _, err := r.tasks.Set(ctx, reported, "reporterId", nil); err != nil {
		return fmt.Errorf("clear reporter: %w", err)
	}
	return nil
}
