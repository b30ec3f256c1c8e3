// Package pysnapshot stores a deep, per-breakpoint-hit capture of the
// backtrace and locals/globals as BSON documents, for postmortem review
// beyond what the flat SQL history in pkg/pyhistory keeps.
package pysnapshot

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Doc is one breakpoint-hit snapshot.
type Doc struct {
	SessionID string            `bson:"session_id"`
	Line      int               `bson:"line"`
	Backtrace []string          `bson:"backtrace"`
	Locals    map[string]string `bson:"locals"`
	Globals   map[string]string `bson:"globals"`
	HitAt     time.Time         `bson:"hit_at"`
}

// Store wraps the collection snapshots are written to.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials uri and selects the pyvym.snapshots collection.
func Connect(ctx context.Context, uri string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &Store{
		client:     client,
		collection: client.Database("pyvym").Collection("snapshots"),
	}, nil
}

// Record inserts one snapshot document.
func (s *Store) Record(ctx context.Context, doc Doc) error {
	_, err := s.collection.InsertOne(ctx, doc)
	return err
}

// Replay returns every snapshot recorded for sessionID, oldest first.
func (s *Store) Replay(ctx context.Context, sessionID string) ([]Doc, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "hit_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []Doc
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }
