package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"factmem/embed"
	"factmem/extract"
	"factmem/storage"
)

const (
	maxRetries       = 3
	retryBackoffBase = 100 * time.Millisecond
)

// UpsertCandidate canonicalizes one extracted candidate and persists the
// resulting records. Multi-pet payloads decompose into one entity per name.
// On success the user's critical-facts cache is invalidated before returning,
// so a read strictly after this call observes the write.
func (s *Store) UpsertCandidate(ctx context.Context, userID string, c extract.Candidate, sourceMessageID string) ([]FactEntity, error) {
	repos := s.reposFor()
	if repos == nil {
		return nil, ErrNoStorage
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrPersistence)
	}

	resolved := decompose(c)
	if len(resolved) == 0 {
		return nil, nil
	}

	out := make([]FactEntity, 0, len(resolved))
	for _, rf := range resolved {
		ent, err := s.upsertWithRetry(ctx, repos, userID, rf, sourceMessageID)
		if err != nil {
			return out, fmt.Errorf("upsert %s/%s: %w: %v", rf.entityType, rf.subtype, ErrPersistence, err)
		}
		out = append(out, ent)
	}

	if err := s.InvalidateCache(ctx, userID); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Store) upsertWithRetry(ctx context.Context, repos storage.Repos, userID string, rf resolvedFact, sourceMessageID string) (FactEntity, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		ent, err := s.upsertResolved(ctx, repos, userID, rf, sourceMessageID)
		if err == nil {
			return ent, nil
		}
		lastErr = err
		if isRetriableError(err) && attempt < maxRetries-1 {
			time.Sleep(retryBackoffBase * time.Duration(1<<attempt))
			continue
		}
		return FactEntity{}, err
	}
	return FactEntity{}, lastErr
}

func (s *Store) upsertResolved(ctx context.Context, repos storage.Repos, userID string, rf resolvedFact, sourceMessageID string) (FactEntity, error) {
	entities := repos.Entities()

	existing, err := entities.ListActiveByType(ctx, userID, rf.entityType)
	if err != nil {
		return FactEntity{}, err
	}

	canonical := rf.name
	var aliases []string
	sourceType := SourceUserStated

	if match := findByNameOrAlias(existing, rf.subtype, rf.name); match != nil {
		// Known identity: keep the stored canonical name, remember the new
		// surface form as an alias.
		canonical = match.CanonicalName
		aliases = mergeAliases(decodeAliases(match.Aliases), rf.name, canonical)
	} else if rf.singleton {
		// Contradiction within a singleton subtype: soft-delete the old
		// record, the new one supersedes it.
		for _, rec := range existing {
			if rec.EntitySubtype != rf.subtype {
				continue
			}
			if err := entities.Deactivate(ctx, rec.ID); err != nil {
				return FactEntity{}, err
			}
			sourceType = SourceCorrected
		}
	}

	rec, err := entities.Upsert(ctx, storage.EntityRecord{
		UserID:        userID,
		EntityType:    rf.entityType,
		EntitySubtype: rf.subtype,
		CanonicalName: canonical,
		Aliases:       encodeAliases(aliases),
		Confidence:    1.0,
		SourceType:    sourceType,
	})
	if err != nil {
		return FactEntity{}, err
	}

	for name, value := range rf.attributes {
		if err := repos.Attributes().Upsert(ctx, rec.ID, name, value, sourceMessageID); err != nil {
			return FactEntity{}, err
		}
	}
	for _, rel := range rf.relations {
		if err := repos.Relationships().Upsert(ctx, rec.ID, rel.relationshipType, nil, rel.objectValue); err != nil {
			return FactEntity{}, err
		}
	}

	// Embeddings feed recall only; a failure here never fails the write.
	if vec, err := s.embedder.EmbedText(ctx, rf.entityType+" "+rf.subtype+" "+canonical); err == nil {
		if err := entities.SetEmbedding(ctx, rec.ID, embed.Encode(vec)); err != nil {
			s.log.Debug("set embedding failed", "entity", rec.ID, "err", err)
		}
	}

	return entityFromRecord(rec), nil
}

// findByNameOrAlias matches case-insensitively on canonical name or any
// stored alias, within the same subtype.
func findByNameOrAlias(existing []storage.EntityRecord, subtype, name string) *storage.EntityRecord {
	for i := range existing {
		rec := &existing[i]
		if rec.EntitySubtype != subtype {
			continue
		}
		if strings.EqualFold(rec.CanonicalName, name) {
			return rec
		}
		for _, a := range decodeAliases(rec.Aliases) {
			if strings.EqualFold(a, name) {
				return rec
			}
		}
	}
	return nil
}

func decodeAliases(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func mergeAliases(aliases []string, name, canonical string) []string {
	if strings.EqualFold(name, canonical) {
		return aliases
	}
	for _, a := range aliases {
		if strings.EqualFold(a, name) {
			return aliases
		}
	}
	return append(aliases, name)
}

// GetUserName returns the user's own stated name; ErrNotFound when absent.
func (s *Store) GetUserName(ctx context.Context, userID string) (string, error) {
	repos := s.reposFor()
	if repos == nil {
		return "", ErrNotFound
	}
	rows, err := repos.Entities().ListActiveByType(ctx, userID, "person")
	if err != nil {
		if errors.Is(err, storage.ErrNoRecord) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get user name: %w", err)
	}
	// Rows arrive most-recently-updated first.
	for _, rec := range rows {
		if rec.EntitySubtype == "self" {
			return rec.CanonicalName, nil
		}
	}
	return "", ErrNotFound
}

// GetPetNames returns all active pet names; no pets is an empty slice, not an
// error.
func (s *Store) GetPetNames(ctx context.Context, userID string) ([]string, error) {
	repos := s.reposFor()
	if repos == nil {
		return []string{}, nil
	}
	rows, err := repos.Entities().ListActiveByType(ctx, userID, "pet")
	if err != nil {
		return nil, fmt.Errorf("get pet names: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, rec := range rows {
		names = append(names, rec.CanonicalName)
	}
	return names, nil
}

// GetAllCriticalFacts aggregates the facts the prompt generator needs. Each
// sub-lookup failure is swallowed independently; the result is whatever could
// be gathered, possibly empty, never an error.
func (s *Store) GetAllCriticalFacts(ctx context.Context, userID string) map[string]any {
	if cached, ok := s.cache.Get(userID); ok {
		return cached
	}

	out := make(map[string]any)

	if name, err := s.GetUserName(ctx, userID); err == nil {
		out["name"] = name
	} else if !errors.Is(err, ErrNotFound) {
		s.log.Debug("critical facts: name lookup failed", "user", userID, "err", err)
	}

	if pets, err := s.GetPetNames(ctx, userID); err == nil {
		if len(pets) > 0 {
			out["pets"] = pets
		}
	} else {
		s.log.Debug("critical facts: pet lookup failed", "user", userID, "err", err)
	}

	if family := s.lookupFamily(ctx, userID); len(family) > 0 {
		out["family"] = family
	}
	if work := s.lookupByType(ctx, userID, "work"); len(work) > 0 {
		out["work"] = work
	}
	if location := s.lookupByType(ctx, userID, "location"); len(location) > 0 {
		out["location"] = location
	}

	s.cache.Add(userID, out)
	if repos := s.reposFor(); repos != nil {
		if err := repos.Cache().Touch(ctx, userID); err != nil {
			s.log.Debug("critical facts: cache touch failed", "user", userID, "err", err)
		}
	}
	return out
}

func (s *Store) lookupFamily(ctx context.Context, userID string) map[string]string {
	repos := s.reposFor()
	if repos == nil {
		return nil
	}
	rows, err := repos.Entities().ListActiveByType(ctx, userID, "person")
	if err != nil {
		s.log.Debug("critical facts: family lookup failed", "user", userID, "err", err)
		return nil
	}
	out := make(map[string]string)
	// Reverse order so the most recently updated name per role wins.
	for i := len(rows) - 1; i >= 0; i-- {
		rec := rows[i]
		if rec.EntitySubtype == "self" || rec.EntitySubtype == "" {
			continue
		}
		out[rec.EntitySubtype] = rec.CanonicalName
	}
	return out
}

func (s *Store) lookupByType(ctx context.Context, userID, entityType string) map[string]string {
	repos := s.reposFor()
	if repos == nil {
		return nil
	}
	rows, err := repos.Entities().ListActiveByType(ctx, userID, entityType)
	if err != nil {
		s.log.Debug("critical facts: lookup failed", "user", userID, "type", entityType, "err", err)
		return nil
	}
	out := make(map[string]string)
	for i := len(rows) - 1; i >= 0; i-- {
		rec := rows[i]
		out[rec.EntitySubtype] = rec.CanonicalName
	}
	return out
}

// InvalidateCache removes both cache layers for the user: the in-process LRU
// entry and the backing cache-table row.
func (s *Store) InvalidateCache(ctx context.Context, userID string) error {
	s.cache.Remove(userID)
	repos := s.reposFor()
	if repos == nil {
		return nil
	}
	if err := repos.Cache().Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("invalidate cache: %w: %v", ErrPersistence, err)
	}
	return nil
}

// ProcessMessage runs extraction and persistence synchronously, for callers
// that need write-then-read guarantees. The async path is Store.Ingest.
func (s *Store) ProcessMessage(ctx context.Context, userID, messageID, text string) ([]FactEntity, error) {
	var out []FactEntity
	for _, c := range extract.Entities(text) {
		ents, err := s.UpsertCandidate(ctx, userID, c, messageID)
		if err != nil {
			return out, err
		}
		out = append(out, ents...)
	}
	return out, nil
}

func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "restart transaction") || strings.Contains(msg, "serialization failure")
}
