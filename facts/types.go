package facts

import (
	"encoding/json"
	"time"

	"factmem/storage"
)

// SourceType records how a fact entered the store.
const (
	SourceUserStated = "user_stated"
	SourceInferred   = "inferred"
	SourceCorrected  = "corrected"
)

// FactEntity is one durable canonical fact. Identity is
// (UserID, EntityType, EntitySubtype, CanonicalName); Aliases are alternate
// surface forms that resolve to the same record.
type FactEntity struct {
	EntityID      int64
	UUID          string
	UserID        string
	EntityType    string
	EntitySubtype string
	CanonicalName string
	Aliases       []string
	Confidence    float64
	SourceType    string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type FactAttribute struct {
	EntityID        int64
	Name            string
	Value           string
	SourceMessageID string
	UpdatedAt       time.Time
}

type FactRelationship struct {
	SubjectEntityID  int64
	RelationshipType string
	ObjectEntityID   *int64
	ObjectValue      string
	CreatedAt        time.Time
}

// Fact is a scored recall result.
type Fact struct {
	EntityType string
	Subtype    string
	Content    string
	Score      float64
	UpdatedAt  time.Time
}

func entityFromRecord(rec storage.EntityRecord) FactEntity {
	var aliases []string
	if rec.Aliases != "" {
		_ = json.Unmarshal([]byte(rec.Aliases), &aliases)
	}
	return FactEntity{
		EntityID:      rec.ID,
		UUID:          rec.UUID,
		UserID:        rec.UserID,
		EntityType:    rec.EntityType,
		EntitySubtype: rec.EntitySubtype,
		CanonicalName: rec.CanonicalName,
		Aliases:       aliases,
		Confidence:    rec.Confidence,
		SourceType:    rec.SourceType,
		IsActive:      rec.IsActive,
		CreatedAt:     rec.DateCreated,
		UpdatedAt:     rec.DateUpdated,
	}
}

func encodeAliases(aliases []string) string {
	if len(aliases) == 0 {
		return "[]"
	}
	b, err := json.Marshal(aliases)
	if err != nil {
		return "[]"
	}
	return string(b)
}
