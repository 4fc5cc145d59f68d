package databases

// go generate: mockery --name CounterDatabase

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const counterName = "counters"

// UserSequence names the counter that numbers new users
const UserSequence = userName

// CounterDatabase hands out the numeric identifiers used by users, rooms and messages
type CounterDatabase interface {
	Next(ctx context.Context, sequence string) (int64, error)
}

type counterDatabase struct {
	db DatabaseHelper
}

type counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// NewCounterDatabase initializes a new instance of counter database with the provided db connection
func NewCounterDatabase(db DatabaseHelper) CounterDatabase {
	return &counterDatabase{
		db: db,
	}
}

// Next atomically increments the named sequence and returns the new value. The first
// call for a sequence returns 1.
func (c *counterDatabase) Next(ctx context.Context, sequence string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	next := &counter{}
	err := c.db.Collection(counterName).FindOneAndUpdate(ctx,
		bson.M{"_id": sequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %q: %w", sequence, err)
	}
	return next.Seq, nil
}
