// Package models contains the setting record definitions shared by all store backends.
package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wire and document keys of the typed setting envelope.
const (
	KeyID          = "_id"
	KeyAltID       = "id"
	KeyName        = "name"
	KeyValue       = "value"
	KeyDescription = "description"
	KeyType        = "type"
	KeyCategory    = "category"
	KeyAdminOnly   = "adminOnly"
	KeyEnvironment = "environment"
	KeyCreatedAt   = "createdAt"
	KeyUpdatedAt   = "updatedAt"
	KeyCreatedBy   = "createdBy"
	KeyUpdatedBy   = "updatedBy"
)

// coreKeys lists every key owned by the typed envelope.
var coreKeys = map[string]struct{}{ //nolint:gochecknoglobals
	KeyID: {}, KeyAltID: {}, KeyName: {}, KeyValue: {}, KeyDescription: {}, KeyType: {},
	KeyCategory: {}, KeyAdminOnly: {}, KeyEnvironment: {}, KeyCreatedAt: {}, KeyUpdatedAt: {},
	KeyCreatedBy: {}, KeyUpdatedBy: {},
}

// IsCoreKey reports whether key belongs to the typed envelope rather than the extras map.
func IsCoreKey(key string) bool {
	_, ok := coreKeys[key]
	return ok
}

// Environment is the deployment target of a setting.
type Environment string

// Known environments.
const (
	EnvProd  Environment = "prod"
	EnvLocal Environment = "local"
	EnvBoth  Environment = "both"
)

// Valid reports whether e is one of prod, local or both.
func (e Environment) Valid() bool {
	switch e {
	case EnvProd, EnvLocal, EnvBoth:
		return true
	default:
		return false
	}
}

// FieldError describes a single rejected field of a setting document.
type FieldError struct {
	Field   string
	Kind    string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// Setting is a named configuration record. The typed fields form the envelope,
// everything else a document carries lives in Extra and is written back verbatim.
type Setting struct {
	ID          string
	Name        string
	Value       any
	Description string
	Type        string
	Category    string
	AdminOnly   *bool
	Environment Environment
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
	UpdatedBy   string
	Extra       map[string]any
}

// IsAdminOnly treats a missing flag as false.
func (s *Setting) IsAdminOnly() bool {
	return s.AdminOnly != nil && *s.AdminOnly
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// NewID returns a fresh record identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the shape of a record identifier.
func ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// ToMap flattens the setting into an open document. Empty optional fields are omitted.
func (s *Setting) ToMap() map[string]any {
	m := make(map[string]any, len(s.Extra)+12) //nolint:mnd

	for k, v := range s.Extra {
		if !IsCoreKey(k) {
			m[k] = v
		}
	}

	putString(m, KeyID, s.ID)
	putString(m, KeyName, s.Name)

	if s.Value != nil {
		m[KeyValue] = s.Value
	}

	putString(m, KeyDescription, s.Description)
	putString(m, KeyType, s.Type)
	putString(m, KeyCategory, s.Category)

	if s.AdminOnly != nil {
		m[KeyAdminOnly] = *s.AdminOnly
	}

	putString(m, KeyEnvironment, string(s.Environment))

	if !s.CreatedAt.IsZero() {
		m[KeyCreatedAt] = s.CreatedAt
	}

	if !s.UpdatedAt.IsZero() {
		m[KeyUpdatedAt] = s.UpdatedAt
	}

	putString(m, KeyCreatedBy, s.CreatedBy)
	putString(m, KeyUpdatedBy, s.UpdatedBy)

	return m
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// FromMap builds a setting from an open document. Unknown keys go to Extra.
// Core keys holding a value of the wrong kind are rejected with a *FieldError.
func FromMap(doc map[string]any) (Setting, error) {
	var (
		s   Setting
		err error
	)

	for k, raw := range doc {
		v := Normalize(raw)

		switch k {
		case KeyID, KeyAltID:
			if v != nil {
				s.ID, err = asString(k, v)
			}
		case KeyName:
			s.Name, err = asString(k, v)
		case KeyValue:
			s.Value = v
		case KeyDescription:
			s.Description, err = asString(k, v)
		case KeyType:
			s.Type, err = asString(k, v)
		case KeyCategory:
			s.Category, err = asString(k, v)
		case KeyAdminOnly:
			s.AdminOnly, err = asBool(k, v)
		case KeyEnvironment:
			s.Environment, err = asEnvironment(v)
		case KeyCreatedAt:
			s.CreatedAt, err = asTime(k, v)
		case KeyUpdatedAt:
			s.UpdatedAt, err = asTime(k, v)
		case KeyCreatedBy:
			s.CreatedBy, err = asString(k, v)
		case KeyUpdatedBy:
			s.UpdatedBy, err = asString(k, v)
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]any)
			}

			s.Extra[k] = v
		}

		if err != nil {
			return Setting{}, err
		}
	}

	return s, nil
}

func asString(field string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", castError(field, "string", v)
	}
}

func asBool(field string, v any) (*bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil //nolint:nilnil
	case bool:
		return &t, nil
	default:
		return nil, castError(field, "boolean", v)
	}
}

func asEnvironment(v any) (Environment, error) {
	if v == nil {
		return "", nil
	}

	s, ok := v.(string)
	if !ok {
		return "", castError(KeyEnvironment, "string", v)
	}

	env := Environment(s)
	if !env.Valid() {
		return "", &FieldError{
			Field:   KeyEnvironment,
			Kind:    "enum",
			Message: fmt.Sprintf("`%s` is not a valid enum value for path `environment`", s),
		}
	}

	return env, nil
}

func asTime(field string, v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, castError(field, "date", v)
		}

		return parsed.UTC(), nil
	default:
		return time.Time{}, castError(field, "date", v)
	}
}

func castError(field, want string, v any) error {
	return &FieldError{
		Field:   field,
		Kind:    "cast",
		Message: fmt.Sprintf("cast to %s failed for value %v at path `%s`", want, v, field),
	}
}

// Normalize converts driver specific values (bson documents, arrays, ids, dates)
// into plain maps, slices and scalars.
func Normalize(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = Normalize(e.Value)
		}

		return m
	case primitive.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case primitive.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	case primitive.Null:
		return nil
	default:
		return v
	}
}

func normalizeMap(in map[string]any) map[string]any {
	m := make(map[string]any, len(in))
	for k, v := range in {
		m[k] = Normalize(v)
	}

	return m
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = Normalize(v)
	}

	return out
}
