package storage

// Schema: one entity row per canonical fact, attributes last-write-wins per
// (entity_id, name), directed relationship edges, and a cache-invalidation
// table cleared on every write for a user.
//
// The unique index on (user_id, entity_type, entity_subtype, canonical_name)
// is what makes concurrent upserts of the same new identity safe: an insert
// that loses the race falls through to the update path.

var sqliteMigrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS factmem_schema_version (
			num INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS factmem_entity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_subtype TEXT NOT NULL DEFAULT '',
			canonical_name TEXT NOT NULL,
			aliases TEXT NOT NULL DEFAULT '[]',
			confidence REAL NOT NULL DEFAULT 1.0,
			source_type TEXT NOT NULL DEFAULT 'user_stated',
			is_active INTEGER NOT NULL DEFAULT 1,
			content_embedding BLOB,
			date_created TIMESTAMP NOT NULL,
			date_updated TIMESTAMP NOT NULL,
			UNIQUE(user_id, entity_type, entity_subtype, canonical_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_factmem_entity_user_type
			ON factmem_entity (user_id, entity_type, is_active)`,
		`CREATE TABLE IF NOT EXISTS factmem_attribute (
			entity_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			source_message_id TEXT NOT NULL DEFAULT '',
			date_updated TIMESTAMP NOT NULL,
			UNIQUE(entity_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS factmem_relationship (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject_entity_id INTEGER NOT NULL,
			relationship_type TEXT NOT NULL,
			object_entity_id INTEGER,
			object_value TEXT NOT NULL DEFAULT '',
			date_created TIMESTAMP NOT NULL,
			UNIQUE(subject_entity_id, relationship_type, object_value)
		)`,
		`CREATE TABLE IF NOT EXISTS factmem_cache (
			user_id TEXT PRIMARY KEY,
			date_cached TIMESTAMP NOT NULL
		)`,
	},
}

var postgresMigrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS factmem_schema_version (
			num INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS factmem_entity (
			id BIGSERIAL PRIMARY KEY,
			uuid TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_subtype TEXT NOT NULL DEFAULT '',
			canonical_name TEXT NOT NULL,
			aliases TEXT NOT NULL DEFAULT '[]',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			source_type TEXT NOT NULL DEFAULT 'user_stated',
			is_active INTEGER NOT NULL DEFAULT 1,
			content_embedding BYTEA,
			date_created TIMESTAMPTZ NOT NULL,
			date_updated TIMESTAMPTZ NOT NULL,
			UNIQUE(user_id, entity_type, entity_subtype, canonical_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_factmem_entity_user_type
			ON factmem_entity (user_id, entity_type, is_active)`,
		`CREATE TABLE IF NOT EXISTS factmem_attribute (
			entity_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			source_message_id TEXT NOT NULL DEFAULT '',
			date_updated TIMESTAMPTZ NOT NULL,
			UNIQUE(entity_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS factmem_relationship (
			id BIGSERIAL PRIMARY KEY,
			subject_entity_id BIGINT NOT NULL,
			relationship_type TEXT NOT NULL,
			object_entity_id BIGINT,
			object_value TEXT NOT NULL DEFAULT '',
			date_created TIMESTAMPTZ NOT NULL,
			UNIQUE(subject_entity_id, relationship_type, object_value)
		)`,
		`CREATE TABLE IF NOT EXISTS factmem_cache (
			user_id TEXT PRIMARY KEY,
			date_cached TIMESTAMPTZ NOT NULL
		)`,
	},
}
