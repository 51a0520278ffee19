// Package mongodb implements the settings store on a MongoDB collection.
package mongodb

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/db/store"
	"github.com/mdr-platform/settings-service/internal/pipeline"
	"github.com/mdr-platform/settings-service/internal/query"
)

// Collection is the name of the settings collection.
const Collection = "settings"

// Store is the MongoDB backed settings store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Options configures Connect.
type Options struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

// Connect opens a client, verifies it with a ping and returns a store on the settings collection.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	clientOpts := options.Client().ApplyURI(opts.URI)

	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}

	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
		clientOpts.SetServerSelectionTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)

		return nil, errors.Wrap(err, "ping mongodb")
	}

	return &Store{client: client, coll: client.Database(opts.Database).Collection(Collection)}, nil
}

// New wraps an existing collection.
func New(coll *mongo.Collection) (*Store, error) {
	if coll == nil {
		return nil, store.ErrStoreNil
	}

	return &Store{client: coll.Database().Client(), coll: coll}, nil
}

// Indexes returns the index models of the settings collection.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: models.KeyName, Value: 1}}, Options: options.Index().SetUnique(true).SetName("name_unique")},
		{Keys: bson.D{{Key: models.KeyAdminOnly, Value: 1}}},
		{Keys: bson.D{{Key: models.KeyEnvironment, Value: 1}}},
		{Keys: bson.D{{Key: models.KeyAdminOnly, Value: 1}, {Key: models.KeyCategory, Value: 1}}},
		{Keys: bson.D{{Key: models.KeyType, Value: 1}, {Key: models.KeyAdminOnly, Value: 1}}},
		{Keys: bson.D{{Key: models.KeyEnvironment, Value: 1}, {Key: models.KeyAdminOnly, Value: 1}}},
		{Keys: bson.D{{Key: models.KeyEnvironment, Value: 1}, {Key: models.KeyCategory, Value: 1}}},
	}
}

// EnsureIndexes creates the collection indexes if they are missing.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, Indexes())

	return errors.Wrap(err, "create settings indexes")
}

// Find returns the settings matching q. The total ignores the paging window.
func (s *Store) Find(ctx context.Context, q query.Query) ([]models.Setting, int64, error) {
	filter := pipeline.Filter(q.Filter)

	opts := options.Find().SetCollation(pipeline.Collation()).SetSort(withIDTieBreak(pipeline.Sort(q.Sort)))

	if len(q.Projection) > 0 {
		opts.SetProjection(pipeline.Projection(q.Projection))
	}

	var total int64

	if q.Paging != nil {
		opts.SetLimit(q.Paging.Limit).SetSkip(q.Paging.Skip)

		n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetCollation(pipeline.Collation()))
		if err != nil {
			return nil, 0, errors.Wrap(err, "count settings")
		}

		total = n
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "find settings")
	}

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decode settings")
	}

	out, err := fromDocuments(docs)
	if err != nil {
		return nil, 0, err
	}

	if q.Paging == nil {
		total = int64(len(out))
	}

	return out, total, nil
}

// FindOne returns the first setting matching filter.
func (s *Store) FindOne(ctx context.Context, filter query.Expr) (*models.Setting, error) {
	var doc bson.M

	err := s.coll.FindOne(ctx, pipeline.Filter(filter), options.FindOne().SetSort(bson.D{{Key: query.IDField, Value: 1}})).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}

	if err != nil {
		return nil, errors.Wrap(err, "find setting")
	}

	out, err := models.FromMap(doc)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &out, nil
}

type listFacet struct {
	Data  []bson.M `bson:"data"`
	Total []struct {
		Count int64 `bson:"count"`
	} `bson:"total"`
}

// List runs the listing pipeline.
func (s *Store) List(ctx context.Context, spec pipeline.ListSpec) (pipeline.ListResult, error) {
	spec = spec.WithDefaults()

	var facets []listFacet
	if err := s.aggregate(ctx, pipeline.BuildList(spec), &facets); err != nil {
		return pipeline.ListResult{}, err
	}

	var (
		docs  []bson.M
		total int64
	)

	if len(facets) > 0 {
		docs = facets[0].Data

		if len(facets[0].Total) > 0 {
			total = facets[0].Total[0].Count
		}
	}

	settings, err := fromDocuments(docs)
	if err != nil {
		return pipeline.ListResult{}, err
	}

	spec.Policy.StripAll(settings)

	return pipeline.NewListResult(settings, total, spec), nil
}

type countDoc struct {
	Count int64 `bson:"count"`
}

type statsFacet struct {
	Total         []countDoc       `bson:"total"`
	AdminOnly     []countDoc       `bson:"adminOnly"`
	Regular       []countDoc       `bson:"regular"`
	ByCategory    []pipeline.Group `bson:"byCategory"`
	ByType        []pipeline.Group `bson:"byType"`
	ByEnvironment []pipeline.Group `bson:"byEnvironment"`
}

func first(counts []countDoc) int64 {
	if len(counts) == 0 {
		return 0
	}

	return counts[0].Count
}

func groups(in []pipeline.Group) []pipeline.Group {
	if in == nil {
		return []pipeline.Group{}
	}

	return in
}

// Stats runs the statistics pipeline.
func (s *Store) Stats(ctx context.Context, spec pipeline.StatsSpec) (pipeline.Stats, error) {
	var facets []statsFacet
	if err := s.aggregate(ctx, pipeline.BuildStats(spec), &facets); err != nil {
		return pipeline.Stats{}, err
	}

	out := pipeline.Stats{ByCategory: []pipeline.Group{}, ByType: []pipeline.Group{}}

	if len(facets) == 0 {
		if spec.Policy.Privileged {
			out.ByEnvironment = []pipeline.Group{}
		}

		return out, nil
	}

	f := facets[0]
	out.TotalCount = first(f.Total)
	out.AdminOnlyCount = first(f.AdminOnly)
	out.RegularCount = first(f.Regular)
	out.ByCategory = groups(f.ByCategory)
	out.ByType = groups(f.ByType)

	if spec.Policy.Privileged {
		out.ByEnvironment = groups(f.ByEnvironment)
	}

	return out, nil
}

func (s *Store) aggregate(ctx context.Context, p mongo.Pipeline, dst any) error {
	cur, err := s.coll.Aggregate(ctx, p, pipeline.AggregateOptions())
	if err != nil {
		return errors.Wrap(err, "aggregate settings")
	}

	return errors.Wrap(cur.All(ctx, dst), "decode aggregate")
}

// Create inserts st, assigning an identifier when it has none.
func (s *Store) Create(ctx context.Context, st *models.Setting) error {
	if st.ID == "" {
		st.ID = models.NewID()
	}

	doc, err := toDocument(st)
	if err != nil {
		return err
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return translate(err, st.Name)
	}

	return nil
}

// Update applies fields as a $set on the setting with the given id and returns the new version.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) (*models.Setting, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}

	var doc bson.M

	err = s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: query.IDField, Value: oid}},
		bson.D{{Key: "$set", Value: setDocument(fields)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, store.ErrNotFound
	case err != nil:
		name, _ := fields[models.KeyName].(string)

		return nil, translate(err, name)
	}

	out, err := models.FromMap(doc)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &out, nil
}

// UpdateMany applies fields to every listed id and returns the modified count.
func (s *Store) UpdateMany(ctx context.Context, ids []string, fields map[string]any) (int64, error) {
	oids := make(bson.A, 0, len(ids))

	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}

	if len(oids) == 0 {
		return 0, nil
	}

	res, err := s.coll.UpdateMany(ctx,
		bson.D{{Key: query.IDField, Value: bson.D{{Key: "$in", Value: oids}}}},
		bson.D{{Key: "$set", Value: setDocument(fields)}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "update settings")
	}

	return res.ModifiedCount, nil
}

// Delete removes the setting with the given id.
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: query.IDField, Value: oid}})
	if err != nil {
		return 0, errors.Wrap(err, "delete setting")
	}

	return res.DeletedCount, nil
}

// Ping checks the connection to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary()) //nolint:wrapcheck
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx) //nolint:wrapcheck
}

func translate(err error, name string) error {
	if mongo.IsDuplicateKeyError(err) {
		return &store.DuplicateKeyError{Field: models.KeyName, Value: name}
	}

	return errors.Wrap(err, "write setting")
}

// toDocument converts a setting into its stored form, with an ObjectID key.
func toDocument(st *models.Setting) (bson.M, error) {
	doc := bson.M(st.ToMap())

	oid, err := primitive.ObjectIDFromHex(st.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "setting id %q", st.ID)
	}

	doc[models.KeyID] = oid

	return doc, nil
}

// setDocument prepares a $set document. Typed values are lowered to what the driver encodes natively.
func setDocument(fields map[string]any) bson.D {
	out := make(bson.D, 0, len(fields))

	for k, v := range fields {
		if env, ok := v.(models.Environment); ok {
			v = string(env)
		}

		out = append(out, bson.E{Key: k, Value: v})
	}

	return out
}

func fromDocuments(docs []bson.M) ([]models.Setting, error) {
	out := make([]models.Setting, 0, len(docs))

	for _, doc := range docs {
		st, err := models.FromMap(doc)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		out = append(out, st)
	}

	return out, nil
}

func withIDTieBreak(sort bson.D) bson.D {
	for _, e := range sort {
		if strings.EqualFold(e.Key, query.IDField) {
			return sort
		}
	}

	return append(sort, bson.E{Key: query.IDField, Value: 1})
}
