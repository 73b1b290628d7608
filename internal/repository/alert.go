package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safewatch-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrAlertNotFound is returned when an id is malformed or matches no record.
var ErrAlertNotFound = errors.New("alert not found")

const defaultQueryTimeout = 10 * time.Second

// newest first; _id breaks ties between alerts created in the same millisecond
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

type AlertRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{
		collection: db.Collection("alerts"),
		timeout:    defaultQueryTimeout,
	}
}

func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := storeTime(time.Now())
	alert.ID = primitive.NewObjectID()
	alert.CreatedAt = now
	alert.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		alert.ID = id
	}
	return alert, nil
}

func (r *AlertRepository) FindByID(ctx context.Context, id string) (*models.Alert, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrAlertNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var alert models.Alert
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("find alert %s: %w", id, err)
	}

	return &alert, nil
}

func (r *AlertRepository) FindAll(ctx context.Context) ([]*models.Alert, error) {
	return r.find(ctx, bson.M{})
}

func (r *AlertRepository) FindByOwner(ctx context.Context, ownerID string) ([]*models.Alert, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r *AlertRepository) find(ctx context.Context, filter bson.M) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(newestFirst)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find alerts: %w", err)
	}
	defer cursor.Close(ctx)

	alerts := make([]*models.Alert, 0)
	for cursor.Next(ctx) {
		var alert models.Alert
		if err := cursor.Decode(&alert); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		alerts = append(alerts, &alert)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}

	return alerts, nil
}

func (r *AlertRepository) Update(ctx context.Context, id string, patch *models.AlertPatch) (*models.Alert, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrAlertNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{
		"$set": patchDocument(patch, storeTime(time.Now())),
	}

	result := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updatedAlert models.Alert
	if err := result.Decode(&updatedAlert); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("update alert %s: %w", id, err)
	}

	return &updatedAlert, nil
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrAlertNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}

	if result.DeletedCount == 0 {
		return ErrAlertNotFound
	}

	return nil
}

func (r *AlertRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.collection.CountDocuments(ctx, bson.M{})
}

// MediaRefs returns every media reference still attached to an alert.
func (r *AlertRepository) MediaRefs(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	values, err := r.collection.Distinct(ctx, "media_ref", bson.M{"media_ref": bson.M{"$nin": bson.A{"", nil}}})
	if err != nil {
		return nil, fmt.Errorf("list media refs: %w", err)
	}

	refs := make(map[string]struct{}, len(values))
	for _, v := range values {
		if ref, ok := v.(string); ok && ref != "" {
			refs[ref] = struct{}{}
		}
	}
	return refs, nil
}

// CreateIndexes creates the indexes backing the listing queries.
func (r *AlertRepository) CreateIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "media_ref", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// patchDocument builds the $set document for a sparse update.
func patchDocument(patch *models.AlertPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if patch == nil {
		return set
	}

	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.Latitude.Set {
		set["latitude"] = patch.Latitude.Value
	}
	if patch.Longitude.Set {
		set["longitude"] = patch.Longitude.Value
	}
	if patch.Severity != nil {
		set["severity"] = *patch.Severity
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.MediaRef != nil {
		set["media_ref"] = *patch.MediaRef
	}
	return set
}

// storeTime truncates to the millisecond precision of BSON dates so values
// returned from Create compare equal to what a later read decodes.
func storeTime(t time.Time) time.Time {
	return t.Truncate(time.Millisecond).UTC()
}
