package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const entityCols = `id, uuid, user_id, entity_type, entity_subtype, canonical_name, aliases, confidence, source_type, is_active, content_embedding, date_created, date_updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (EntityRecord, error) {
	var rec EntityRecord
	var active int64
	var created, updated any
	err := row.Scan(
		&rec.ID, &rec.UUID, &rec.UserID, &rec.EntityType, &rec.EntitySubtype,
		&rec.CanonicalName, &rec.Aliases, &rec.Confidence, &rec.SourceType,
		&active, &rec.Embedding, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrNoRecord
		}
		return rec, err
	}
	rec.IsActive = active != 0
	rec.DateCreated, _ = decodeAnyTime(created)
	rec.DateUpdated, _ = decodeAnyTime(updated)
	return rec, nil
}

type sqlEntityRepo struct {
	db      *sql.DB
	dialect string
}

func (r *sqlEntityRepo) Upsert(ctx context.Context, rec EntityRecord) (EntityRecord, error) {
	now := time.Now().UTC()
	u := uuid.New().String()

	var query string
	if r.dialect == "postgres" {
		query = `INSERT INTO factmem_entity
			(uuid, user_id, entity_type, entity_subtype, canonical_name, aliases, confidence, source_type, is_active, date_created, date_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)
			ON CONFLICT (user_id, entity_type, entity_subtype, canonical_name) DO UPDATE SET
				confidence = GREATEST(factmem_entity.confidence, EXCLUDED.confidence),
				aliases = EXCLUDED.aliases,
				is_active = 1,
				date_updated = EXCLUDED.date_updated
			RETURNING ` + entityCols
	} else {
		query = `INSERT INTO factmem_entity
			(uuid, user_id, entity_type, entity_subtype, canonical_name, aliases, confidence, source_type, is_active, date_created, date_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(user_id, entity_type, entity_subtype, canonical_name) DO UPDATE SET
				confidence = max(factmem_entity.confidence, excluded.confidence),
				aliases = excluded.aliases,
				is_active = 1,
				date_updated = excluded.date_updated
			RETURNING ` + entityCols
	}

	row := r.db.QueryRowContext(ctx, query,
		u, rec.UserID, rec.EntityType, rec.EntitySubtype, rec.CanonicalName,
		rec.Aliases, rec.Confidence, rec.SourceType, now, now,
	)
	return scanEntity(row)
}

func (r *sqlEntityRepo) ListActiveByType(ctx context.Context, userID, entityType string) ([]EntityRecord, error) {
	var query string
	if r.dialect == "postgres" {
		query = `SELECT ` + entityCols + ` FROM factmem_entity
			WHERE user_id = $1 AND entity_type = $2 AND is_active = 1
			ORDER BY date_updated DESC`
	} else {
		query = `SELECT ` + entityCols + ` FROM factmem_entity
			WHERE user_id = ? AND entity_type = ? AND is_active = 1
			ORDER BY date_updated DESC`
	}
	rows, err := r.db.QueryContext(ctx, query, userID, entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntities(rows)
}

func (r *sqlEntityRepo) ListActiveByUser(ctx context.Context, userID string, limit int) ([]EntityRecord, error) {
	var query string
	if r.dialect == "postgres" {
		query = `SELECT ` + entityCols + ` FROM factmem_entity
			WHERE user_id = $1 AND is_active = 1
			ORDER BY date_updated DESC LIMIT $2`
	} else {
		query = `SELECT ` + entityCols + ` FROM factmem_entity
			WHERE user_id = ? AND is_active = 1
			ORDER BY date_updated DESC LIMIT ?`
	}
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntities(rows)
}

func collectEntities(rows *sql.Rows) ([]EntityRecord, error) {
	var out []EntityRecord
	for rows.Next() {
		rec, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *sqlEntityRepo) Deactivate(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	var query string
	if r.dialect == "postgres" {
		query = "UPDATE factmem_entity SET is_active = 0, date_updated = $1 WHERE id = $2"
	} else {
		query = "UPDATE factmem_entity SET is_active = 0, date_updated = ? WHERE id = ?"
	}
	_, err := r.db.ExecContext(ctx, query, now, id)
	return err
}

func (r *sqlEntityRepo) SetEmbedding(ctx context.Context, id int64, embedding []byte) error {
	var query string
	if r.dialect == "postgres" {
		query = "UPDATE factmem_entity SET content_embedding = $1 WHERE id = $2"
	} else {
		query = "UPDATE factmem_entity SET content_embedding = ? WHERE id = ?"
	}
	_, err := r.db.ExecContext(ctx, query, embedding, id)
	return err
}

type sqlAttributeRepo struct {
	db      *sql.DB
	dialect string
}

func (r *sqlAttributeRepo) Upsert(ctx context.Context, entityID int64, name, value, sourceMessageID string) error {
	now := time.Now().UTC()
	var query string
	if r.dialect == "postgres" {
		query = `INSERT INTO factmem_attribute (entity_id, name, value, source_message_id, date_updated)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (entity_id, name) DO UPDATE SET
				value = EXCLUDED.value,
				source_message_id = EXCLUDED.source_message_id,
				date_updated = EXCLUDED.date_updated`
	} else {
		query = `INSERT INTO factmem_attribute (entity_id, name, value, source_message_id, date_updated)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(entity_id, name) DO UPDATE SET
				value = excluded.value,
				source_message_id = excluded.source_message_id,
				date_updated = excluded.date_updated`
	}
	_, err := r.db.ExecContext(ctx, query, entityID, name, value, sourceMessageID, now)
	return err
}

func (r *sqlAttributeRepo) ListByEntity(ctx context.Context, entityID int64) ([]AttributeRecord, error) {
	var query string
	if r.dialect == "postgres" {
		query = "SELECT entity_id, name, value, source_message_id, date_updated FROM factmem_attribute WHERE entity_id = $1"
	} else {
		query = "SELECT entity_id, name, value, source_message_id, date_updated FROM factmem_attribute WHERE entity_id = ?"
	}
	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttributeRecord
	for rows.Next() {
		var rec AttributeRecord
		var updated any
		if err := rows.Scan(&rec.EntityID, &rec.Name, &rec.Value, &rec.SourceMessageID, &updated); err != nil {
			return nil, err
		}
		rec.DateUpdated, _ = decodeAnyTime(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type sqlRelationshipRepo struct {
	db      *sql.DB
	dialect string
}

func (r *sqlRelationshipRepo) Upsert(ctx context.Context, subjectID int64, relationshipType string, objectID *int64, objectValue string) error {
	now := time.Now().UTC()
	var query string
	if r.dialect == "postgres" {
		query = `INSERT INTO factmem_relationship (subject_entity_id, relationship_type, object_entity_id, object_value, date_created)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (subject_entity_id, relationship_type, object_value) DO NOTHING`
	} else {
		query = `INSERT INTO factmem_relationship (subject_entity_id, relationship_type, object_entity_id, object_value, date_created)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(subject_entity_id, relationship_type, object_value) DO NOTHING`
	}
	_, err := r.db.ExecContext(ctx, query, subjectID, relationshipType, objectID, objectValue, now)
	return err
}

func (r *sqlRelationshipRepo) ListBySubject(ctx context.Context, subjectID int64) ([]RelationshipRecord, error) {
	var query string
	if r.dialect == "postgres" {
		query = "SELECT id, subject_entity_id, relationship_type, object_entity_id, object_value, date_created FROM factmem_relationship WHERE subject_entity_id = $1"
	} else {
		query = "SELECT id, subject_entity_id, relationship_type, object_entity_id, object_value, date_created FROM factmem_relationship WHERE subject_entity_id = ?"
	}
	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RelationshipRecord
	for rows.Next() {
		var rec RelationshipRecord
		var objectID sql.NullInt64
		var created any
		if err := rows.Scan(&rec.ID, &rec.SubjectEntityID, &rec.RelationshipType, &objectID, &rec.ObjectValue, &created); err != nil {
			return nil, err
		}
		if objectID.Valid {
			v := objectID.Int64
			rec.ObjectEntityID = &v
		}
		rec.DateCreated, _ = decodeAnyTime(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type sqlCacheRepo struct {
	db      *sql.DB
	dialect string
}

func (r *sqlCacheRepo) Touch(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	var query string
	if r.dialect == "postgres" {
		query = `INSERT INTO factmem_cache (user_id, date_cached) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET date_cached = EXCLUDED.date_cached`
	} else {
		query = `INSERT INTO factmem_cache (user_id, date_cached) VALUES (?, ?)
			ON CONFLICT(user_id) DO UPDATE SET date_cached = excluded.date_cached`
	}
	_, err := r.db.ExecContext(ctx, query, userID, now)
	return err
}

func (r *sqlCacheRepo) Invalidate(ctx context.Context, userID string) error {
	var query string
	if r.dialect == "postgres" {
		query = "DELETE FROM factmem_cache WHERE user_id = $1"
	} else {
		query = "DELETE FROM factmem_cache WHERE user_id = ?"
	}
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

type sqlRepos struct {
	entities      EntityRepo
	attributes    AttributeRepo
	relationships RelationshipRepo
	cache         CacheRepo
}

func (d *SQLDriver) initRepos() {
	if d.repos == nil {
		d.repos = &sqlRepos{
			entities:      &sqlEntityRepo{db: d.db(), dialect: d.dialect},
			attributes:    &sqlAttributeRepo{db: d.db(), dialect: d.dialect},
			relationships: &sqlRelationshipRepo{db: d.db(), dialect: d.dialect},
			cache:         &sqlCacheRepo{db: d.db(), dialect: d.dialect},
		}
	}
}

func (d *SQLDriver) Entities() EntityRepo {
	d.initRepos()
	return d.repos.entities
}

func (d *SQLDriver) Attributes() AttributeRepo {
	d.initRepos()
	return d.repos.attributes
}

func (d *SQLDriver) Relationships() RelationshipRepo {
	d.initRepos()
	return d.repos.relationships
}

func (d *SQLDriver) Cache() CacheRepo {
	d.initRepos()
	return d.repos.cache
}

var _ Repos = (*SQLDriver)(nil)
