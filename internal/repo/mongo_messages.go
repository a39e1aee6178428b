package repo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

const (
	mongoCollection       = "processed_messages"
	mongoDefaultDatabase  = "wa_inbox"
	mongoOperationTimeout = 5 * time.Second
)

// MongoMessageRepo stores messages in the processed_messages collection using
// $set/$setOnInsert upserts.
type MongoMessageRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

func NewMongoMessageRepo(ctx context.Context, uri string) (*MongoMessageRepo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetTimeout(mongoOperationTimeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, err
	}

	r := &MongoMessageRepo{
		client: client,
		coll:   client.Database(mongoDatabaseName(uri)).Collection(mongoCollection),
		now:    time.Now,
	}
	if err := r.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

func mongoDatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return mongoDefaultDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return mongoDefaultDatabase
}

func (r *MongoMessageRepo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: fieldWaID, Value: 1}, {Key: fieldCreatedAt, Value: 1}},
		},
	})
	return err
}

func (r *MongoMessageRepo) Upsert(ctx context.Context, u Upsert) (model.Message, error) {
	if u.ID == "" {
		return model.Message{}, errors.New("upsert id must not be empty")
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m model.Message
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"id": u.ID}, buildMongoUpdate(u, r.now()), opts).Decode(&m)
	if err != nil {
		return model.Message{}, fmt.Errorf("upsert message %s: %w", u.ID, err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

// buildMongoUpdate splits a write into $set and $setOnInsert. A path may not
// appear in both operators, so insert defaults skip anything $set covers.
func buildMongoUpdate(u Upsert, now time.Time) bson.M {
	set := bson.M{}
	for k, v := range u.Set.values() {
		set[k] = mongoValue(k, v)
	}

	defaults := model.NewMessage(u.ID)
	onInsert := bson.M{
		"id":           u.ID,
		fieldBody:      defaults.Body,
		fieldType:      defaults.Type,
		fieldStatus:    string(defaults.Status),
		fieldFromMe:    defaults.FromMe,
		fieldCreatedAt: now.UTC(),
	}
	for k, v := range u.SetOnInsert.values() {
		onInsert[k] = mongoValue(k, v)
	}
	for k := range set {
		delete(onInsert, k)
	}

	update := bson.M{"$setOnInsert": onInsert}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update
}

func mongoValue(field string, v any) any {
	if field == fieldName {
		if s, ok := v.(string); ok && s == "" {
			return nil
		}
	}
	return v
}

func (r *MongoMessageRepo) FindByWaID(ctx context.Context, waID string) ([]model.Message, error) {
	return r.find(ctx, bson.M{fieldWaID: waID})
}

func (r *MongoMessageRepo) FindAll(ctx context.Context) ([]model.Message, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoMessageRepo) find(ctx context.Context, filter bson.M) ([]model.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: fieldCreatedAt, Value: 1}, {Key: "id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var out []model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}

func (r *MongoMessageRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()
	return r.client.Ping(ctx, nil)
}

func (r *MongoMessageRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOperationTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}
