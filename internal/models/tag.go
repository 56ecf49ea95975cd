package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/text/cases"
)

// Tag labels tasks inside a single project.
type Tag struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	ProjectID primitive.ObjectID `bson:"projectId" json:"projectId"`
	Name      string             `bson:"name" json:"name"`
	NameKey   string             `bson:"nameKey" json:"nameKey"`
	Color     string             `bson:"color" json:"color"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TagKey returns the comparison key used for per-project name uniqueness;
// it is stored as NameKey.
// A Caser keeps state, so each call folds with its own.
func TagKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameTagName compares two tag names ignoring case.
func SameTagName(a, b string) bool {
	return TagKey(a) == TagKey(b)
}
