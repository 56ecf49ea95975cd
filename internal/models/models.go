package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names shared by every storage backend.
const (
	CollectionProjects      = "projects"
	CollectionEstimations   = "estimations"
	CollectionTasks         = "tasks"
	CollectionSprints       = "sprints"
	CollectionTags          = "tags"
	CollectionUsers         = "users"
	CollectionRetroSessions = "retro_sessions"
	CollectionRetroCards    = "retro_cards"
	CollectionRetroActions  = "retro_actions"
)

// Now returns the server timestamp used for createdAt/updatedAt stamps.
func Now() time.Time {
	return time.Now().UTC()
}

// NewID allocates a fresh document identifier.
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// ParseID converts a 24 character hex string into an identifier.
func ParseID(raw string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(raw)
}

// ParseIDs converts every element of raw; the first malformed value aborts.
func ParseIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := primitive.ObjectIDFromHex(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseOptionalID treats nil and "" as an absent reference.
func ParseOptionalID(raw *string) (*primitive.ObjectID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ContainsID reports whether id is part of ids.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// UniqueIDs drops duplicates while keeping the first-seen order.
func UniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
