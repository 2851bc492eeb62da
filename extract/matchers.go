package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Base confidence per matcher family. These reflect extraction certainty only;
// storage-level confidence is owned by the fact store.
const (
	confName         = 0.95
	confPet          = 0.90
	confLocation     = 0.85
	confRelationship = 0.85
	confPreference   = 0.70
	confDate         = 0.85
	confMedical      = 0.90
	confWork         = 0.80
)

// Unicode building blocks. Letters plus combining marks, apostrophes and
// hyphens, so names in any script (including RTL and mixed-script text) match.
const (
	wordPat   = `[\p{L}\p{M}][\p{L}\p{M}'’-]*`
	properPat = `\p{Lu}[\p{L}\p{M}'’-]*`
)

var nameListPat = wordPat + `(?:\s*,\s*` + wordPat + `)*(?:\s*,?\s+and\s+` + wordPat + `)?`

// --- name ---

var (
	// Case-sensitive prefixes on purpose: under (?i), \p{Lu} stops meaning
	// "uppercase", which the adjacent-proper-noun patterns rely on.
	reMyNameIs = regexp.MustCompile(`\b[Mm]y name is\s+(` + wordPat + `(?:\s+` + properPat + `){0,2})`)
	reCallMe   = regexp.MustCompile(`\b[Cc]all me\s+(` + wordPat + `)`)
	reIAm      = regexp.MustCompile(`\bI(?:['’]m| am)\s+(` + properPat + `)\b`)

	// Interrogative guard: questions about names must yield zero candidates.
	reNameQuestion   = regexp.MustCompile(`(?i)\b(?:what|who)(?:['’]s| is| was| are)[^?]*\bname\b|\byour name\b`)
	reQuestionOpener = regexp.MustCompile(`^\s*(?i:what|who|where|when|why|how|is|are|am|do|does|did|can|could|would|will)\b`)
)

func matchNames(text string) []Candidate {
	if reNameQuestion.MatchString(text) {
		return nil
	}
	if strings.Contains(text, "?") && reQuestionOpener.MatchString(text) {
		return nil
	}

	var out []Candidate
	for _, re := range []*regexp.Regexp{reMyNameIs, reCallMe, reIAm} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := trimValue(m[1])
			if v == "" {
				continue
			}
			out = append(out, Candidate{
				Type:       TypeName,
				Subtype:    "self",
				Value:      v,
				RawText:    m[0],
				Confidence: confName,
			})
		}
	}
	return out
}

// --- pets ---

const speciesPat = `(dog|cat|bird|fish|hamster|rabbit|guinea pig|turtle|snake|lizard|horse|parrot|puppy|kitten|pet)`

var (
	reMultiPets = regexp.MustCompile(
		`(?i)\b(?:I|we)(?:['’]ve)?\s+(?:have|got|own)\s+(an?|one|two|three|four|five|six|seven|eight|nine|ten|\d{1,3})\s+` +
			speciesPat + `s?\s+(?:named|called)\s+(` + nameListPat + `)`)
	rePetNameIs = regexp.MustCompile(
		`(?i)\bmy\s+` + speciesPat + `(?:['’]s)?\s+(?:name is|is named|is called)\s+(` + wordPat + `)`)
	rePetsNamed = regexp.MustCompile(
		`(?i)\bmy\s+` + speciesPat + `s?\s+(?:are\s+)?(?:named|called)\s+(` + nameListPat + `)`)
)

var countWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

func parseCount(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, ok := countWords[s]; ok {
		return n
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return 1
}

func splitNames(list string) []string {
	list = strings.ReplaceAll(list, " and ", ",")
	list = strings.ReplaceAll(list, " And ", ",")
	var names []string
	for _, part := range strings.Split(list, ",") {
		if p := trimValue(part); p != "" {
			names = append(names, p)
		}
	}
	return names
}

func petCandidate(raw, countWord, species, nameList string) Candidate {
	names := splitNames(nameList)
	count := parseCount(countWord)
	if count < len(names) {
		count = len(names)
	}
	species = strings.ToLower(species)
	return Candidate{
		Type:       TypePet,
		Subtype:    species,
		Value:      strings.Join(names, ", "),
		RawText:    raw,
		Confidence: confPet,
		Pets:       &PetPayload{Count: count, Species: species, Names: names},
	}
}

func matchPets(text string) []Candidate {
	var out []Candidate
	for _, m := range reMultiPets.FindAllStringSubmatch(text, -1) {
		out = append(out, petCandidate(m[0], m[1], m[2], m[3]))
	}
	for _, m := range rePetNameIs.FindAllStringSubmatch(text, -1) {
		out = append(out, petCandidate(m[0], "one", m[1], m[2]))
	}
	for _, m := range rePetsNamed.FindAllStringSubmatch(text, -1) {
		// Skip forms already captured by the possessive pattern above.
		if rePetNameIs.MatchString(m[0]) {
			continue
		}
		out = append(out, petCandidate(m[0], "", m[1], m[2]))
	}
	return out
}

// --- locations ---

// Place captures stop at punctuation or at a trailing clause connector so
// "I live in Berlin with my wife" yields just "Berlin".
const placePat = `([\p{L}\p{M}][\p{L}\p{M}'’ -]{0,60}?)(?:[.,!?;:\n]|\s+(?:with|and|but|because|so|since|where|now)\b|$)`

var (
	reResidence = regexp.MustCompile(`(?i)\bI\s+(?:live|reside|stay|am living|['’]m living)\s+in\s+` + placePat)
	reOrigin    = regexp.MustCompile(`(?i)\bI(?:['’]m| am)\s+(?:originally\s+)?from\s+` + placePat)
	reWorkPlace = regexp.MustCompile(`(?i)\bI\s+work\s+(?:in|at)\s+` + placePat)
)

func matchLocations(text string) []Candidate {
	var out []Candidate
	for _, lm := range []struct {
		re      *regexp.Regexp
		subtype string
	}{
		{reResidence, "residence"},
		{reOrigin, "origin"},
		{reWorkPlace, "work"},
	} {
		for _, m := range lm.re.FindAllStringSubmatch(text, -1) {
			v := trimValue(m[1])
			if v == "" {
				continue
			}
			out = append(out, Candidate{
				Type:       TypeLocation,
				Subtype:    lm.subtype,
				Value:      v,
				RawText:    m[0],
				Confidence: confLocation,
			})
		}
	}
	return out
}

// --- relationships ---

const rolePat = `(wife|husband|partner|fiancée?|mother|mom|mum|father|dad|sister|brother|son|daughter|girlfriend|boyfriend|grandmother|grandma|grandfather|grandpa|aunt|uncle|cousin|niece|nephew|best friend|friend|roommate|colleague|boss)`

var (
	reRelPossessive = regexp.MustCompile(`\b[Mm]y ` + rolePat + `['’]s name is\s+(` + wordPat + `)`)
	reRelAdjacent   = regexp.MustCompile(`\b[Mm]y ` + rolePat + `,?\s+(?:is\s+)?(?:named\s+|called\s+)?(` + properPat + `)`)
)

func matchRelationships(text string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{reRelPossessive, reRelAdjacent} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			role := strings.ToLower(m[1])
			name := trimValue(m[2])
			if name == "" || seen[role+"\x00"+name] {
				continue
			}
			seen[role+"\x00"+name] = true
			out = append(out, Candidate{
				Type:       TypeRelationship,
				Subtype:    role,
				Value:      name,
				RawText:    m[0],
				Confidence: confRelationship,
			})
		}
	}
	return out
}

// --- preferences ---

var (
	reLikes    = regexp.MustCompile(`(?i)\bI\s+(?:really\s+|absolutely\s+)?(?:love|like|enjoy|prefer)\s+([^.!?,;:\n]{1,80})`)
	reDislikes = regexp.MustCompile(`(?i)\bI\s+(?:really\s+|absolutely\s+)?(?:hate|dislike|can['’]t stand)\s+([^.!?,;:\n]{1,80})`)
	reFavorite = regexp.MustCompile(`(?i)\bmy favou?rite\s+([\p{L}\p{M} ]{1,40}?)\s+is\s+([^.!?,;:\n]{1,80})`)
)

func matchPreferences(text string) []Candidate {
	var out []Candidate
	for _, m := range reFavorite.FindAllStringSubmatch(text, -1) {
		category := trimValue(m[1])
		v := trimValue(m[2])
		if v == "" {
			continue
		}
		out = append(out, Candidate{
			Type:       TypePreference,
			Subtype:    "favorite",
			Value:      v,
			Detail:     strings.ToLower(category),
			RawText:    m[0],
			Confidence: confPreference,
		})
	}
	for _, pm := range []struct {
		re      *regexp.Regexp
		subtype string
	}{
		{reLikes, "likes"},
		{reDislikes, "dislikes"},
	} {
		for _, m := range pm.re.FindAllStringSubmatch(text, -1) {
			v := trimValue(m[1])
			if v == "" {
				continue
			}
			out = append(out, Candidate{
				Type:       TypePreference,
				Subtype:    pm.subtype,
				Value:      v,
				RawText:    m[0],
				Confidence: confPreference,
			})
		}
	}
	return out
}

// --- dates ---

const monthPat = `(?:january|february|march|april|may|june|july|august|september|october|november|december)`

var calendarPat = `(` + monthPat + `\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?` +
	`|\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthPat + `(?:,?\s+\d{4})?` +
	`|\d{4}-\d{2}-\d{2}` +
	`|\d{1,2}/\d{1,2}(?:/\d{2,4})?)`

var reDate = regexp.MustCompile(`(?i)\b(?:my|our)\s+(birthday|anniversary)\s+is\s+(?:on\s+)?` + calendarPat)

func matchDates(text string) []Candidate {
	var out []Candidate
	for _, m := range reDate.FindAllStringSubmatch(text, -1) {
		v := trimValue(m[2])
		if v == "" {
			continue
		}
		out = append(out, Candidate{
			Type:       TypeDate,
			Subtype:    strings.ToLower(m[1]),
			Value:      v,
			RawText:    m[0],
			Confidence: confDate,
		})
	}
	return out
}

// --- medical ---

const conditionPat = `(asthma|diabetes|adhd|ocd|anxiety|depression|migraines?|epilepsy|arthritis|hypertension|high blood pressure|insomnia|eczema|celiac disease|ibs)`

var (
	reAllergy   = regexp.MustCompile(`(?i)\ballergic to\s+([^.!?,;:\n]{1,60})`)
	reCondition = regexp.MustCompile(`(?i)\bI\s+(?:have|suffer from|was diagnosed with)\s+` + conditionPat + `\b`)
)

func matchMedical(text string) []Candidate {
	var out []Candidate
	for _, m := range reAllergy.FindAllStringSubmatch(text, -1) {
		v := trimValue(m[1])
		if v == "" {
			continue
		}
		out = append(out, Candidate{
			Type:       TypeMedical,
			Subtype:    "allergy",
			Value:      v,
			RawText:    m[0],
			Confidence: confMedical,
		})
	}
	for _, m := range reCondition.FindAllStringSubmatch(text, -1) {
		out = append(out, Candidate{
			Type:       TypeMedical,
			Subtype:    "condition",
			Value:      strings.ToLower(trimValue(m[1])),
			RawText:    m[0],
			Confidence: confMedical,
		})
	}
	return out
}

// --- work ---

var (
	reProfession = regexp.MustCompile(`(?i)\bI(?:['’]m| am)\s+an?\s+([^.!?,;:\n]{1,40})`)
	reWorkAs     = regexp.MustCompile(`(?i)\bI\s+work\s+as\s+an?\s*([^.!?,;:\n]{1,40})`)
	reWorkFor    = regexp.MustCompile(`(?i)\bI\s+work\s+(?:for|at)\s+([^.!?,;:\n]{1,40})`)
	reWorkField  = regexp.MustCompile(`(?i)\bI\s+work\s+in\s+([^.!?,;:\n]{1,40})`)
)

func matchWork(text string) []Candidate {
	var out []Candidate
	for _, wm := range []struct {
		re      *regexp.Regexp
		subtype string
	}{
		{reProfession, "profession"},
		{reWorkAs, "profession"},
		{reWorkFor, "employer"},
		{reWorkField, "field"},
	} {
		for _, m := range wm.re.FindAllStringSubmatch(text, -1) {
			v := trimValue(m[1])
			if v == "" {
				continue
			}
			out = append(out, Candidate{
				Type:       TypeWork,
				Subtype:    wm.subtype,
				Value:      v,
				RawText:    m[0],
				Confidence: confWork,
			})
		}
	}
	return out
}

// trimValue normalizes whitespace and strips trailing punctuation from a
// captured value. Empty results mean "no candidate", never an empty candidate.
func trimValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".,!?;:\"“”")
	return strings.TrimSpace(s)
}
