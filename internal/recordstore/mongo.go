package recordstore

import (
	"context"
	"time"

	"github.com/tokenized/gacha/internal/pull"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opencensus.io/trace"
)

// MongoStore keeps cards in a MongoDB collection with the transaction id as the document id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoCard struct {
	TxID          string    `bson:"_id"`
	User          string    `bson:"user"`
	TokenID       uint64    `bson:"tokenId"`
	Rarity        string    `bson:"rarity"`
	CategoryIndex uint64    `bson:"categoryIndex"`
	BlockNumber   uint64    `bson:"blockNumber"`
	PulledAt      time.Time `bson:"pulledAt"`
}

// NewMongoStore connects to uri and prepares the collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongodb")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping mongodb")
	}

	coll := client.Database(database).Collection(collection)

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user", Value: 1},
			{Key: "pulledAt", Value: 1},
		},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrap(err, "create index")
	}

	return &MongoStore{
		client:     client,
		collection: coll,
	}, nil
}

func (s *MongoStore) InsertIfAbsent(ctx context.Context, key string,
	record *pull.CardRecord) (bool, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.Mongo.InsertIfAbsent")
	defer span.End()

	_, err := s.collection.InsertOne(ctx, mongoCard{
		TxID:          key,
		User:          record.User,
		TokenID:       record.TokenID,
		Rarity:        record.Rarity,
		CategoryIndex: record.CategoryIndex,
		BlockNumber:   record.BlockNumber,
		PulledAt:      record.PulledAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "insert card")
	}

	logger.Verbose(logger.ContextWithLogSubSystem(ctx, SubSystem), "Stored card %s", key)
	return true, nil
}

func (s *MongoStore) QueryByRequester(ctx context.Context,
	identity string) ([]pull.CardRecord, error) {

	ctx, span := trace.StartSpan(ctx, "internal.recordstore.Mongo.QueryByRequester")
	defer span.End()

	cursor, err := s.collection.Find(ctx, bson.D{{Key: "user", Value: identity}},
		options.Find().SetSort(bson.D{{Key: "pulledAt", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find cards")
	}

	var cards []mongoCard
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, errors.Wrap(err, "decode cards")
	}

	result := make([]pull.CardRecord, 0, len(cards))
	for _, card := range cards {
		result = append(result, pull.CardRecord{
			TxID:          card.TxID,
			User:          card.User,
			TokenID:       card.TokenID,
			Rarity:        card.Rarity,
			CategoryIndex: card.CategoryIndex,
			BlockNumber:   card.BlockNumber,
			PulledAt:      card.PulledAt,
		})
	}

	return result, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
