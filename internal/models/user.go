package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleDeveloper = "developer"
	RoleDesigner  = "designer"
	RoleViewer    = "viewer"
)

// ValidUserRoles enumerates the roles a PM user may hold.
var ValidUserRoles = setOf([]string{RoleAdmin, RoleManager, RoleDeveloper, RoleDesigner, RoleViewer})

// User is the PM-module metadata kept for a team member. Authentication lives
// with the identity provider; ExternalID links the two.
type User struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	Name       string             `bson:"name" json:"name"`
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"`
	Active     bool               `bson:"active" json:"active"`
	ExternalID *string            `bson:"externalId" json:"externalId"`
	AvatarURL  string             `bson:"avatarUrl" json:"avatarUrl"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
