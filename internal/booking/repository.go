package booking

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDayFull is returned by ReserveSlot when the branch-day counter has
// reached the daily limit.
var ErrDayFull = errors.New("day full")

type Repository interface {
	Insert(ctx context.Context, appt Appointment) error
	CountActive(ctx context.Context, branch, date string) (int64, error)
	ReserveSlot(ctx context.Context, branch, date string, limit int) error
	ReleaseSlot(ctx context.Context, branch, date string) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

type MongoRepository struct {
	appointments *mongo.Collection
	counters     *mongo.Collection
}

func NewRepository(appointments, counters *mongo.Collection) *MongoRepository {
	return &MongoRepository{appointments: appointments, counters: counters}
}

func (r *MongoRepository) Insert(ctx context.Context, appt Appointment) error {
	_, err := r.appointments.InsertOne(ctx, appt)
	return err
}

func (r *MongoRepository) CountActive(ctx context.Context, branch, date string) (int64, error) {
	filter := bson.M{
		"branch_slug":      branch,
		"appointment_date": date,
		"status":           bson.M{"$in": bson.A{StatusReserved, StatusConfirmed}},
	}
	return r.appointments.CountDocuments(ctx, filter)
}

func counterKey(branch, date string) string {
	return branch + "|" + date
}

// ReserveSlot takes one unit of branch-day capacity in a single
// conditional write. When the counter document already holds `limit`,
// the filter does not match and the upsert collides on _id, which
// surfaces as a duplicate-key error: the day is full.
func (r *MongoRepository) ReserveSlot(ctx context.Context, branch, date string, limit int) error {
	filter := bson.M{
		"_id":   counterKey(branch, date),
		"count": bson.M{"$lt": limit},
	}
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$setOnInsert": bson.M{
			"branch_slug":      branch,
			"appointment_date": date,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx, filter, update, opts).Err()
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDayFull
	}
	return err
}

func (r *MongoRepository) ReleaseSlot(ctx context.Context, branch, date string) error {
	filter := bson.M{
		"_id":   counterKey(branch, date),
		"count": bson.M{"$gt": 0},
	}
	_, err := r.counters.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"count": -1}})
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	var appt Appointment
	if err := r.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.appointments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.appointments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Appointment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "appointment_date", Value: 1}, {Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.appointments.Find(ctx, r.filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Appointment, 0)
	for cursor.Next(ctx) {
		var appt Appointment
		if err := cursor.Decode(&appt); err != nil {
			return nil, err
		}
		items = append(items, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.appointments.CountDocuments(ctx, r.filterToBSON(filter))
}

func (r *MongoRepository) filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Branch != "" {
		query["branch_slug"] = filter.Branch
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	dateRange := bson.M{}
	if filter.From != "" {
		dateRange["$gte"] = filter.From
	}
	if filter.To != "" {
		dateRange["$lte"] = filter.To
	}
	if len(dateRange) > 0 {
		query["appointment_date"] = dateRange
	}
	if filter.Query != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"full_name": pattern},
			bson.M{"reference": pattern},
			bson.M{"mobile": pattern},
		}
	}
	return query
}
