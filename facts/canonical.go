package facts

import (
	"strings"

	"factmem/extract"
)

// resolvedFact is the canonical form of one candidate after decomposition.
// A single candidate may decompose into several (multi-pet mentions).
type resolvedFact struct {
	entityType string
	subtype    string
	name       string
	confidence float64

	// singleton subtypes hold at most one active record per user; a new
	// value with a different canonical name is a correction.
	singleton bool

	attributes map[string]string
	relations  []resolvedRelation
}

type resolvedRelation struct {
	relationshipType string
	objectValue      string
}

// decompose maps a candidate onto canonical records. The type switch is
// exhaustive over extract's entity types; unknown types yield nothing rather
// than a malformed record.
func decompose(c extract.Candidate) []resolvedFact {
	if strings.TrimSpace(c.Value) == "" {
		return nil
	}

	switch c.Type {
	case extract.TypeName:
		return []resolvedFact{{
			entityType: "person",
			subtype:    "self",
			name:       c.Value,
			confidence: c.Confidence,
			singleton:  true,
		}}

	case extract.TypePet:
		if c.Pets == nil || len(c.Pets.Names) == 0 {
			return nil
		}
		out := make([]resolvedFact, 0, len(c.Pets.Names))
		for _, name := range c.Pets.Names {
			out = append(out, resolvedFact{
				entityType: "pet",
				subtype:    c.Pets.Species,
				name:       name,
				confidence: c.Confidence,
				attributes: map[string]string{"species": c.Pets.Species},
				relations: []resolvedRelation{
					{relationshipType: "owned_by", objectValue: "self"},
				},
			})
		}
		return out

	case extract.TypeLocation:
		return []resolvedFact{{
			entityType: "location",
			subtype:    c.Subtype,
			name:       c.Value,
			confidence: c.Confidence,
			singleton:  c.Subtype == "residence",
		}}

	case extract.TypeRelationship:
		return []resolvedFact{{
			entityType: "person",
			subtype:    c.Subtype,
			name:       c.Value,
			confidence: c.Confidence,
			attributes: map[string]string{"role": c.Subtype},
			relations: []resolvedRelation{
				{relationshipType: "family_of", objectValue: "self"},
			},
		}}

	case extract.TypePreference:
		rf := resolvedFact{
			entityType: "preference",
			subtype:    c.Subtype,
			name:       c.Value,
			confidence: c.Confidence,
		}
		if c.Detail != "" {
			rf.attributes = map[string]string{"category": c.Detail}
		}
		return []resolvedFact{rf}

	case extract.TypeDate:
		return []resolvedFact{{
			entityType: "date",
			subtype:    c.Subtype,
			name:       c.Value,
			confidence: c.Confidence,
			singleton:  c.Subtype == "birthday",
		}}

	case extract.TypeMedical:
		return []resolvedFact{{
			entityType: "medical",
			subtype:    c.Subtype,
			name:       c.Value,
			confidence: c.Confidence,
		}}

	case extract.TypeWork:
		return []resolvedFact{{
			entityType: "work",
			subtype:    c.Subtype,
			name:       c.Value,
			confidence: c.Confidence,
		}}
	}

	return nil
}
