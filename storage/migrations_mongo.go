package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoMigrationOp struct {
	Collection string
	Index      mongo.IndexModel
}

// The compound unique index on the entity collection mirrors the SQL
// uniqueness constraint and carries the same upsert-race guarantee.
var mongoMigrations = map[int][]mongoMigrationOp{
	1: {
		{"factmem_entity", mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "entity_type", Value: 1},
				{Key: "entity_subtype", Value: 1},
				{Key: "canonical_name", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		{"factmem_entity", mongo.IndexModel{
			Keys:    bson.D{{Key: "uuid", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{"factmem_entity", mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "entity_type", Value: 1},
				{Key: "is_active", Value: 1},
			},
		}},
		{"factmem_attribute", mongo.IndexModel{
			Keys: bson.D{
				{Key: "entity_id", Value: 1},
				{Key: "name", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		{"factmem_relationship", mongo.IndexModel{
			Keys: bson.D{
				{Key: "subject_entity_id", Value: 1},
				{Key: "relationship_type", Value: 1},
				{Key: "object_value", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		{"factmem_cache", mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	},
}

func (d *MongoDriver) migrateMongo(ctx context.Context) error {
	for _, ops := range mongoMigrations {
		for _, op := range ops {
			coll := d.db().Collection(op.Collection)
			if _, err := coll.Indexes().CreateOne(ctx, op.Index); err != nil {
				return err
			}
		}
	}
	return nil
}
