package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 5 * time.Second

func opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, mongoOpTimeout)
}

type mongoEntityDoc struct {
	ID            int64     `bson:"id"`
	UUID          string    `bson:"uuid"`
	UserID        string    `bson:"user_id"`
	EntityType    string    `bson:"entity_type"`
	EntitySubtype string    `bson:"entity_subtype"`
	CanonicalName string    `bson:"canonical_name"`
	Aliases       string    `bson:"aliases"`
	Confidence    float64   `bson:"confidence"`
	SourceType    string    `bson:"source_type"`
	IsActive      bool      `bson:"is_active"`
	Embedding     []byte    `bson:"content_embedding,omitempty"`
	DateCreated   time.Time `bson:"date_created"`
	DateUpdated   time.Time `bson:"date_updated"`
}

func (d mongoEntityDoc) record() EntityRecord {
	return EntityRecord{
		ID:            d.ID,
		UUID:          d.UUID,
		UserID:        d.UserID,
		EntityType:    d.EntityType,
		EntitySubtype: d.EntitySubtype,
		CanonicalName: d.CanonicalName,
		Aliases:       d.Aliases,
		Confidence:    d.Confidence,
		SourceType:    d.SourceType,
		IsActive:      d.IsActive,
		Embedding:     d.Embedding,
		DateCreated:   d.DateCreated,
		DateUpdated:   d.DateUpdated,
	}
}

type mongoEntityRepo struct {
	db *mongo.Database
}

func (r *mongoEntityRepo) Upsert(ctx context.Context, rec EntityRecord) (EntityRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	// The sequence value is consumed up front; it is only applied on the
	// insert path ($setOnInsert), a wasted id on the update path is fine.
	seq, err := nextSeq(ctx, r.db, "factmem_entity")
	if err != nil {
		return EntityRecord{}, err
	}

	now := time.Now().UTC()
	filter := bson.M{
		"user_id":        rec.UserID,
		"entity_type":    rec.EntityType,
		"entity_subtype": rec.EntitySubtype,
		"canonical_name": rec.CanonicalName,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"id":           seq,
			"uuid":         uuid.New().String(),
			"source_type":  rec.SourceType,
			"date_created": now,
		},
		"$set": bson.M{
			"aliases":      rec.Aliases,
			"is_active":    true,
			"date_updated": now,
		},
		"$max": bson.M{
			"confidence": rec.Confidence,
		},
	}

	coll := r.db.Collection("factmem_entity")
	var doc mongoEntityDoc
	err = coll.FindOneAndUpdate(
		ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return EntityRecord{}, err
	}
	return doc.record(), nil
}

func (r *mongoEntityRepo) ListActiveByType(ctx context.Context, userID, entityType string) ([]EntityRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_entity")
	cur, err := coll.Find(
		ctx,
		bson.M{"user_id": userID, "entity_type": entityType, "is_active": true},
		options.Find().SetSort(bson.D{{Key: "date_updated", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return collectMongoEntities(ctx, cur)
}

func (r *mongoEntityRepo) ListActiveByUser(ctx context.Context, userID string, limit int) ([]EntityRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_entity")
	cur, err := coll.Find(
		ctx,
		bson.M{"user_id": userID, "is_active": true},
		options.Find().
			SetSort(bson.D{{Key: "date_updated", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return collectMongoEntities(ctx, cur)
}

func collectMongoEntities(ctx context.Context, cur *mongo.Cursor) ([]EntityRecord, error) {
	var out []EntityRecord
	for cur.Next(ctx) {
		var doc mongoEntityDoc
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		out = append(out, doc.record())
	}
	return out, cur.Err()
}

func (r *mongoEntityRepo) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_entity")
	_, err := coll.UpdateOne(
		ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"is_active": false, "date_updated": time.Now().UTC()}},
	)
	return err
}

func (r *mongoEntityRepo) SetEmbedding(ctx context.Context, id int64, embedding []byte) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_entity")
	_, err := coll.UpdateOne(
		ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"content_embedding": embedding}},
	)
	return err
}

type mongoAttributeRepo struct {
	db *mongo.Database
}

func (r *mongoAttributeRepo) Upsert(ctx context.Context, entityID int64, name, value, sourceMessageID string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_attribute")
	_, err := coll.UpdateOne(
		ctx,
		bson.M{"entity_id": entityID, "name": name},
		bson.M{"$set": bson.M{
			"value":             value,
			"source_message_id": sourceMessageID,
			"date_updated":      time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoAttributeRepo) ListByEntity(ctx context.Context, entityID int64) ([]AttributeRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_attribute")
	cur, err := coll.Find(ctx, bson.M{"entity_id": entityID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []AttributeRecord
	for cur.Next(ctx) {
		var doc struct {
			EntityID        int64     `bson:"entity_id"`
			Name            string    `bson:"name"`
			Value           string    `bson:"value"`
			SourceMessageID string    `bson:"source_message_id"`
			DateUpdated     time.Time `bson:"date_updated"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		out = append(out, AttributeRecord(doc))
	}
	return out, cur.Err()
}

type mongoRelationshipRepo struct {
	db *mongo.Database
}

func (r *mongoRelationshipRepo) Upsert(ctx context.Context, subjectID int64, relationshipType string, objectID *int64, objectValue string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	seq, err := nextSeq(ctx, r.db, "factmem_relationship")
	if err != nil {
		return err
	}

	onInsert := bson.M{
		"id":           seq,
		"date_created": time.Now().UTC(),
	}
	if objectID != nil {
		onInsert["object_entity_id"] = *objectID
	}

	coll := r.db.Collection("factmem_relationship")
	_, err = coll.UpdateOne(
		ctx,
		bson.M{
			"subject_entity_id": subjectID,
			"relationship_type": relationshipType,
			"object_value":      objectValue,
		},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoRelationshipRepo) ListBySubject(ctx context.Context, subjectID int64) ([]RelationshipRecord, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_relationship")
	cur, err := coll.Find(ctx, bson.M{"subject_entity_id": subjectID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []RelationshipRecord
	for cur.Next(ctx) {
		var doc struct {
			ID               int64     `bson:"id"`
			SubjectEntityID  int64     `bson:"subject_entity_id"`
			RelationshipType string    `bson:"relationship_type"`
			ObjectEntityID   *int64    `bson:"object_entity_id,omitempty"`
			ObjectValue      string    `bson:"object_value"`
			DateCreated      time.Time `bson:"date_created"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		out = append(out, RelationshipRecord(doc))
	}
	return out, cur.Err()
}

type mongoCacheRepo struct {
	db *mongo.Database
}

func (r *mongoCacheRepo) Touch(ctx context.Context, userID string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_cache")
	_, err := coll.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"date_cached": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoCacheRepo) Invalidate(ctx context.Context, userID string) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	coll := r.db.Collection("factmem_cache")
	_, err := coll.DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}

func (d *MongoDriver) Entities() EntityRepo {
	return &mongoEntityRepo{db: d.db()}
}

func (d *MongoDriver) Attributes() AttributeRepo {
	return &mongoAttributeRepo{db: d.db()}
}

func (d *MongoDriver) Relationships() RelationshipRepo {
	return &mongoRelationshipRepo{db: d.db()}
}

func (d *MongoDriver) Cache() CacheRepo {
	return &mongoCacheRepo{db: d.db()}
}

var _ Repos = (*MongoDriver)(nil)

// nextSeq hands out monotonically increasing int64 ids per collection.
func nextSeq(ctx context.Context, db *mongo.Database, name string) (int64, error) {
	coll := db.Collection("factmem_counters")
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
