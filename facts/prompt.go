package facts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

const (
	factsHeader    = "## CRITICAL USER FACTS"
	examplesMarker = "Examples:"
	notSet         = "[NOT SET]"

	// Appended whenever the user's name is unknown, including the fallback
	// path, so the assistant recovers the most important fact on its own.
	askNameInstruction = "If you do not know the user's name, ask the user for their name."
)

type PromptOptions struct {
	// Override the configured fact keys for this call.
	Required []string
	Optional []string
}

type PromptResult struct {
	EnhancedPrompt string
	FactConfidence float64
	FactsIncluded  []string
	Timings        map[string]time.Duration
}

type ValidationResult struct {
	IsValid      bool
	MissingFacts []string
	PresentFacts []string
}

// GenerateSystemPromptWithFacts renders the user's stored facts into
// basePrompt. It never fails: fact lookups degrade to placeholders, and any
// internal panic degrades to the base prompt plus a recovery instruction.
func (s *Store) GenerateSystemPromptWithFacts(ctx context.Context, userID, basePrompt string, opts *PromptOptions) (res *PromptResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("prompt generation failed, using fallback", "user", userID, "panic", r)
			res = &PromptResult{
				EnhancedPrompt: strings.TrimRight(basePrompt, "\n") + "\n\n" + askNameInstruction + "\n",
				FactConfidence: 0,
				FactsIncluded:  []string{},
				Timings:        map[string]time.Duration{"total": time.Since(start)},
			}
		}
	}()

	required := s.Config.RequiredFacts
	optional := s.Config.OptionalFacts
	if opts != nil {
		if opts.Required != nil {
			required = opts.Required
		}
		if opts.Optional != nil {
			optional = opts.Optional
		}
	}

	factsStart := time.Now()
	known := s.GetAllCriticalFacts(ctx, userID)
	factsDur := time.Since(factsStart)

	renderStart := time.Now()

	var b strings.Builder
	b.WriteString(factsHeader)
	b.WriteString("\n")

	var included []string
	nameKnown := false
	for _, key := range required {
		val, ok := known[key]
		if ok {
			included = append(included, key)
			if key == "name" {
				nameKnown = true
			}
			fmt.Fprintf(&b, "- %s: %s\n", labelFor(key), formatFactValue(val))
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", labelFor(key), notSet)
		}
	}
	for _, key := range optional {
		val, ok := known[key]
		if !ok {
			continue
		}
		included = append(included, key)
		fmt.Fprintf(&b, "- %s: %s\n", labelFor(key), formatFactValue(val))
	}

	block := b.String()
	if !nameKnown {
		block += "\n" + askNameInstruction + "\n"
	}

	enhanced := insertBlock(basePrompt, block)
	renderDur := time.Since(renderStart)

	if included == nil {
		included = []string{}
	}
	return &PromptResult{
		EnhancedPrompt: enhanced,
		FactConfidence: factConfidence(known, required, optional),
		FactsIncluded:  included,
		Timings: map[string]time.Duration{
			"facts":  factsDur,
			"render": renderDur,
			"total":  time.Since(start),
		},
	}
}

// insertBlock places the facts block before the examples section when the
// base prompt has one, otherwise appends it.
func insertBlock(basePrompt, block string) string {
	if idx := strings.Index(basePrompt, examplesMarker); idx >= 0 {
		return basePrompt[:idx] + block + "\n" + basePrompt[idx:]
	}
	if basePrompt == "" {
		return block
	}
	return strings.TrimRight(basePrompt, "\n") + "\n\n" + block
}

// factConfidence weights required facts at 1.0 and optional facts at 0.2.
func factConfidence(known map[string]any, required, optional []string) float64 {
	var have, total float64
	for _, key := range required {
		total += 1.0
		if _, ok := known[key]; ok {
			have += 1.0
		}
	}
	for _, key := range optional {
		total += 0.2
		if _, ok := known[key]; ok {
			have += 0.2
		}
	}
	if total == 0 {
		return 0
	}
	return have / total
}

// ValidateFactInclusion re-scans a generated prompt for the expected fact
// values. Observational only: callers log or count the result, the prompt is
// used either way.
func ValidateFactInclusion(prompt string, expected map[string]any) ValidationResult {
	res := ValidationResult{
		IsValid:      true,
		MissingFacts: []string{},
		PresentFacts: []string{},
	}

	lower := strings.ToLower(prompt)
	keys := make([]string, 0, len(expected))
	for key := range expected {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		present := true
		for _, needle := range factNeedles(expected[key]) {
			if !strings.Contains(lower, strings.ToLower(needle)) {
				present = false
				break
			}
		}
		if present {
			res.PresentFacts = append(res.PresentFacts, key)
		} else {
			res.IsValid = false
			res.MissingFacts = append(res.MissingFacts, key)
		}
	}
	return res
}

// factNeedles flattens a fact value into the substrings that prove its
// presence in a prompt.
func factNeedles(val any) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case map[string]string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, s)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func formatFactValue(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+v[k])
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(v)
	}
}

func labelFor(key string) string {
	if key == "" {
		return key
	}
	r := []rune(key)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
