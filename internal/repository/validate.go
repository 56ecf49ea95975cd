package repository

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// An empty string is accepted so optional references can be cleared.
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		_, err := primitive.ObjectIDFromHex(raw)
		return err == nil
	})
	return v
}

// fieldErrors maps a JSON field path to what is wrong with it.
type fieldErrors map[string]string

// check runs the struct tags of input and returns the failures by field.
func check(input any) fieldErrors {
	details := fieldErrors{}
	err := validate.Struct(input)
	if err == nil {
		return details
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		details["_"] = err.Error()
		return details
	}
	for _, fe := range verrs {
		details[fieldPath(fe.Namespace())] = describe(fe)
	}
	return details
}

// fieldPath drops the struct name validator puts in front of the namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "hexcolor":
		return "must be a hex color"
	case "objectid":
		return "must be a 24 character hex identifier"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) oneOf(field, value string, valid map[string]struct{}) {
	if value == "" {
		return
	}
	if _, ok := valid[value]; ok {
		return
	}
	keys := make([]string, 0, len(valid))
	for k := range valid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	f.add(field, "must be one of "+strings.Join(keys, ", "))
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Message: "Validation failed", Details: f}
}

// The helpers below parse identifiers that already passed the objectid tag.

func mustID(raw string) primitive.ObjectID {
	id, _ := models.ParseID(raw)
	return id
}

func optionalID(raw *string) *primitive.ObjectID {
	id, _ := models.ParseOptionalID(raw)
	return id
}

func mustIDs(raw []string) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		if id, err := models.ParseID(r); err == nil {
			ids = append(ids, id)
		}
	}
	return models.UniqueIDs(ids)
}

// parseFilterIDs parses identifiers coming from query parameters.
func parseFilterIDs(field string, raw []string) ([]primitive.ObjectID, error) {
	ids, err := models.ParseIDs(raw)
	if err != nil {
		return nil, invalidID(field)
	}
	return ids, nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

func hexPtr(id *primitive.ObjectID) *string {
	if id == nil {
		return nil
	}
	s := id.Hex()
	return &s
}
