package facts

import (
	"context"
	"errors"
	"sync"
	"time"

	"factmem/storage"
)

// fakeRepos is an in-memory storage.Repos for unit tests. It mirrors the
// backend upsert semantics: 4-tuple uniqueness, monotonic confidence,
// reactivation on update.
type fakeRepos struct {
	mu       sync.Mutex
	nextID   int64
	entities []storage.EntityRecord
	attrs    map[int64]map[string]storage.AttributeRecord
	rels     []storage.RelationshipRecord
	cacheRow map[string]time.Time
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		attrs:    make(map[int64]map[string]storage.AttributeRecord),
		cacheRow: make(map[string]time.Time),
	}
}

func (f *fakeRepos) Entities() storage.EntityRepo            { return (*fakeEntityRepo)(f) }
func (f *fakeRepos) Attributes() storage.AttributeRepo       { return (*fakeAttributeRepo)(f) }
func (f *fakeRepos) Relationships() storage.RelationshipRepo { return (*fakeRelationshipRepo)(f) }
func (f *fakeRepos) Cache() storage.CacheRepo                { return (*fakeCacheRepo)(f) }

type fakeEntityRepo fakeRepos

func (r *fakeEntityRepo) Upsert(_ context.Context, rec storage.EntityRecord) (storage.EntityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for i := range r.entities {
		e := &r.entities[i]
		if e.UserID == rec.UserID && e.EntityType == rec.EntityType &&
			e.EntitySubtype == rec.EntitySubtype && e.CanonicalName == rec.CanonicalName {
			if rec.Confidence > e.Confidence {
				e.Confidence = rec.Confidence
			}
			e.Aliases = rec.Aliases
			e.IsActive = true
			e.DateUpdated = now
			return *e, nil
		}
	}

	r.nextID++
	rec.ID = r.nextID
	rec.IsActive = true
	rec.DateCreated = now
	rec.DateUpdated = now
	r.entities = append(r.entities, rec)
	return rec, nil
}

func (r *fakeEntityRepo) ListActiveByType(_ context.Context, userID, entityType string) ([]storage.EntityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []storage.EntityRecord
	for i := len(r.entities) - 1; i >= 0; i-- {
		e := r.entities[i]
		if e.UserID == userID && e.EntityType == entityType && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntityRepo) ListActiveByUser(_ context.Context, userID string, limit int) ([]storage.EntityRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []storage.EntityRecord
	for i := len(r.entities) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entities[i]
		if e.UserID == userID && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntityRepo) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entities {
		if r.entities[i].ID == id {
			r.entities[i].IsActive = false
			return nil
		}
	}
	return storage.ErrNoRecord
}

func (r *fakeEntityRepo) SetEmbedding(_ context.Context, id int64, embedding []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entities {
		if r.entities[i].ID == id {
			r.entities[i].Embedding = embedding
			return nil
		}
	}
	return storage.ErrNoRecord
}

type fakeAttributeRepo fakeRepos

func (r *fakeAttributeRepo) Upsert(_ context.Context, entityID int64, name, value, sourceMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attrs[entityID] == nil {
		r.attrs[entityID] = make(map[string]storage.AttributeRecord)
	}
	r.attrs[entityID][name] = storage.AttributeRecord{
		EntityID:        entityID,
		Name:            name,
		Value:           value,
		SourceMessageID: sourceMessageID,
		DateUpdated:     time.Now().UTC(),
	}
	return nil
}

func (r *fakeAttributeRepo) ListByEntity(_ context.Context, entityID int64) ([]storage.AttributeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []storage.AttributeRecord
	for _, rec := range r.attrs[entityID] {
		out = append(out, rec)
	}
	return out, nil
}

type fakeRelationshipRepo fakeRepos

func (r *fakeRelationshipRepo) Upsert(_ context.Context, subjectID int64, relationshipType string, objectID *int64, objectValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rel := range r.rels {
		if rel.SubjectEntityID == subjectID && rel.RelationshipType == relationshipType && rel.ObjectValue == objectValue {
			return nil
		}
	}
	r.rels = append(r.rels, storage.RelationshipRecord{
		ID:               int64(len(r.rels) + 1),
		SubjectEntityID:  subjectID,
		RelationshipType: relationshipType,
		ObjectEntityID:   objectID,
		ObjectValue:      objectValue,
		DateCreated:      time.Now().UTC(),
	})
	return nil
}

func (r *fakeRelationshipRepo) ListBySubject(_ context.Context, subjectID int64) ([]storage.RelationshipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []storage.RelationshipRecord
	for _, rel := range r.rels {
		if rel.SubjectEntityID == subjectID {
			out = append(out, rel)
		}
	}
	return out, nil
}

type fakeCacheRepo fakeRepos

func (r *fakeCacheRepo) Touch(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheRow[userID] = time.Now().UTC()
	return nil
}

func (r *fakeCacheRepo) Invalidate(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cacheRow, userID)
	return nil
}

var _ storage.Repos = (*fakeRepos)(nil)

// failingRepos errors on every operation, for degraded-path tests.
type failingRepos struct{}

var errBackendDown = errors.New("backend down")

func (failingRepos) Entities() storage.EntityRepo            { return failingEntityRepo{} }
func (failingRepos) Attributes() storage.AttributeRepo       { return failingAttributeRepo{} }
func (failingRepos) Relationships() storage.RelationshipRepo { return failingRelationshipRepo{} }
func (failingRepos) Cache() storage.CacheRepo                { return failingCacheRepo{} }

type failingEntityRepo struct{}

func (failingEntityRepo) Upsert(context.Context, storage.EntityRecord) (storage.EntityRecord, error) {
	return storage.EntityRecord{}, errBackendDown
}
func (failingEntityRepo) ListActiveByType(context.Context, string, string) ([]storage.EntityRecord, error) {
	return nil, errBackendDown
}
func (failingEntityRepo) ListActiveByUser(context.Context, string, int) ([]storage.EntityRecord, error) {
	return nil, errBackendDown
}
func (failingEntityRepo) Deactivate(context.Context, int64) error           { return errBackendDown }
func (failingEntityRepo) SetEmbedding(context.Context, int64, []byte) error { return errBackendDown }

type failingAttributeRepo struct{}

func (failingAttributeRepo) Upsert(context.Context, int64, string, string, string) error {
	return errBackendDown
}
func (failingAttributeRepo) ListByEntity(context.Context, int64) ([]storage.AttributeRecord, error) {
	return nil, errBackendDown
}

type failingRelationshipRepo struct{}

func (failingRelationshipRepo) Upsert(context.Context, int64, string, *int64, string) error {
	return errBackendDown
}
func (failingRelationshipRepo) ListBySubject(context.Context, int64) ([]storage.RelationshipRecord, error) {
	return nil, errBackendDown
}

type failingCacheRepo struct{}

func (failingCacheRepo) Touch(context.Context, string) error      { return errBackendDown }
func (failingCacheRepo) Invalidate(context.Context, string) error { return errBackendDown }

var _ storage.Repos = failingRepos{}
