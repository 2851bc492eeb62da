package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoRecord is returned by lookups that find nothing. Callers translate it
// into their own not-found semantics.
var ErrNoRecord = errors.New("storage: no matching record")

// EntityRecord is one canonical fact row. Aliases is a JSON-encoded string
// array; interpretation lives above this layer.
type EntityRecord struct {
	ID            int64
	UUID          string
	UserID        string
	EntityType    string
	EntitySubtype string
	CanonicalName string
	Aliases       string
	Confidence    float64
	SourceType    string
	IsActive      bool
	Embedding     []byte
	DateCreated   time.Time
	DateUpdated   time.Time
}

type AttributeRecord struct {
	EntityID        int64
	Name            string
	Value           string
	SourceMessageID string
	DateUpdated     time.Time
}

type RelationshipRecord struct {
	ID               int64
	SubjectEntityID  int64
	RelationshipType string
	ObjectEntityID   *int64
	ObjectValue      string
	DateCreated      time.Time
}

// Repos exposes the four logical operations the fact store needs:
// upsert-entity, upsert-attribute, query-entities, delete-cache-row.
// Every driver implements it; tests may substitute their own.
type Repos interface {
	Entities() EntityRepo
	Attributes() AttributeRepo
	Relationships() RelationshipRepo
	Cache() CacheRepo
}

type EntityRepo interface {
	// Upsert inserts the record or, on a uniqueness conflict for
	// (user_id, entity_type, entity_subtype, canonical_name), updates the
	// existing row: date_updated bumped, aliases replaced, row reactivated,
	// confidence kept monotonic non-decreasing. Returns the stored row.
	Upsert(ctx context.Context, rec EntityRecord) (EntityRecord, error)
	ListActiveByType(ctx context.Context, userID, entityType string) ([]EntityRecord, error)
	ListActiveByUser(ctx context.Context, userID string, limit int) ([]EntityRecord, error)
	Deactivate(ctx context.Context, id int64) error
	SetEmbedding(ctx context.Context, id int64, embedding []byte) error
}

type AttributeRepo interface {
	// Upsert is last-write-wins per (entity_id, name).
	Upsert(ctx context.Context, entityID int64, name, value, sourceMessageID string) error
	ListByEntity(ctx context.Context, entityID int64) ([]AttributeRecord, error)
}

type RelationshipRepo interface {
	// Upsert is idempotent per (subject_entity_id, relationship_type, object_value).
	Upsert(ctx context.Context, subjectID int64, relationshipType string, objectID *int64, objectValue string) error
	ListBySubject(ctx context.Context, subjectID int64) ([]RelationshipRecord, error)
}

type CacheRepo interface {
	Touch(ctx context.Context, userID string) error
	Invalidate(ctx context.Context, userID string) error
}

func decodeAnyTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return parseTimeString(x)
	case []byte:
		return parseTimeString(string(x))
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05", // SQLite datetime('now')
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05.999999999-07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
