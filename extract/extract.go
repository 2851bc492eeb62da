// Package extract turns a single free-text conversation turn into typed
// candidate entities. Extraction is pure and deterministic: no I/O, no state,
// no errors. Malformed or empty input yields an empty result.
package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type EntityType string

const (
	TypeName         EntityType = "name"
	TypePet          EntityType = "pet"
	TypeLocation     EntityType = "location"
	TypeRelationship EntityType = "relationship"
	TypePreference   EntityType = "preference"
	TypeDate         EntityType = "date"
	TypeMedical      EntityType = "medical"
	TypeWork         EntityType = "work"
)

// PetPayload carries a multi-item pet mention as one structured unit.
// Decomposing it into separate canonical records is the store's job.
type PetPayload struct {
	Count   int
	Species string
	Names   []string
}

// Candidate is an ephemeral, unpersisted extraction result.
type Candidate struct {
	Type       EntityType
	Subtype    string
	Value      string
	Detail     string
	RawText    string
	Confidence float64
	Pets       *PetPayload
}

// matcher pairs one entity type with an independently testable match function.
type matcher struct {
	entityType EntityType
	extract    func(text string) []Candidate
}

// The battery runs in a fixed order; matchers are independent and results are
// not deduplicated across matchers (one message may carry several facts of the
// same type).
var battery = []matcher{
	{TypeName, matchNames},
	{TypePet, matchPets},
	{TypeLocation, matchLocations},
	{TypeRelationship, matchRelationships},
	{TypePreference, matchPreferences},
	{TypeDate, matchDates},
	{TypeMedical, matchMedical},
	{TypeWork, matchWork},
}

// Inputs longer than this are truncated before matching. All patterns are RE2
// (linear time), so the cap only bounds total scan work on pathological input.
const maxScanBytes = 1 << 16

// Entities extracts all candidate entities from one complete message.
func Entities(text string) []Candidate {
	text = sanitize(text)
	if text == "" {
		return nil
	}

	var out []Candidate
	for _, m := range battery {
		out = append(out, m.extract(text)...)
	}
	return out
}

// sanitize NFC-normalizes the input and truncates oversize text at a rune
// boundary so combining marks and multi-byte scripts survive intact.
func sanitize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = norm.NFC.String(text)
	if len(text) > maxScanBytes {
		cut := maxScanBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
