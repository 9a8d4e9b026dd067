// Package store provides MongoDB persistence for query runs and leads.
//
// Collections (all in database "lead_scraper"):
//   - queries – one document per executed query, no embedded leads (TTL: 30 days)
//   - results – the leads of a query run, linked via query_id (TTL: 30 days)
//   - leads   – every lead ever seen, upserted on (name, phone); never expires
//   - tasks   – queued scrape tasks and their progress
//   - task_leads – the leads each task collected, unique per (task, name, phone)
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

const (
	dbName            = "lead_scraper"
	queriesCollection = "queries"
	resultsCollection = "results"
	leadsCollection   = "leads"

	queryTTLDays = 30
)

// Client wraps a MongoDB client.
type Client struct {
	mc  *mongo.Client
	mdb *mongo.Database
}

// New connects to MongoDB and returns a store Client.
func New(ctx context.Context, uri string) (*Client, error) {
	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "store: mongo connect")
	}
	if err := mc.Ping(ctx, nil); err != nil {
		return nil, eris.Wrap(err, "store: mongo ping")
	}

	c := &Client{mc: mc, mdb: mc.Database(dbName)}
	if err := c.ensureIndices(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Disconnect cleanly closes the MongoDB connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.mc.Disconnect(ctx)
}

func (c *Client) ensureIndices(ctx context.Context) error {
	qc := c.mdb.Collection(queriesCollection)
	if _, err := qc.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{
				{Key: "site", Value: 1},
				{Key: "keyword_key", Value: 1},
				{Key: "location_key", Value: 1},
				{Key: "limit", Value: 1},
				{Key: "require_phone", Value: 1},
			},
		},
	}); err != nil {
		return eris.Wrap(err, "store: query indices")
	}

	rc := c.mdb.Collection(resultsCollection)
	if _, err := rc.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "query_id", Value: 1}, {Key: "position", Value: 1}},
		},
	}); err != nil {
		return eris.Wrap(err, "store: results indices")
	}

	lc := c.mdb.Collection(leadsCollection)
	if _, err := lc.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}, {Key: "phone", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return eris.Wrap(err, "store: leads indices")
	}
	return c.ensureTaskIndices(ctx)
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// SaveQuery persists query-run metadata and returns its id.
func (c *Client) SaveQuery(ctx context.Context, q *domain.StoredQuery) (string, error) {
	q.KeywordKey = domain.MatchKey(q.Keyword)
	q.LocationKey = domain.MatchKey(q.Location)
	q.CreatedAt = time.Now().UTC()
	q.ExpiresAt = q.CreatedAt.Add(queryTTLDays * 24 * time.Hour)

	res, err := c.mdb.Collection(queriesCollection).InsertOne(ctx, q)
	if err != nil {
		return "", eris.Wrap(err, "store: save query")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		q.ID = oid.Hex()
		return q.ID, nil
	}
	return "", nil
}

// FindQuery returns the most recent successful run of q, or nil, nil.
func (c *Client) FindQuery(ctx context.Context, site string, q domain.Query) (*domain.StoredQuery, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var s domain.StoredQuery
	err := c.mdb.Collection(queriesCollection).FindOne(ctx, queryFilter(site, q), opts).Decode(&s)
	if eris.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: find query")
	}
	return &s, nil
}

// queryFilter matches earlier successful runs of q. Keyword and location are
// compared by match key, the same folding the result cache key uses.
func queryFilter(site string, q domain.Query) bson.M {
	return bson.M{
		"site":          strings.ToLower(site),
		"keyword_key":   domain.MatchKey(q.Keyword),
		"location_key":  domain.MatchKey(q.Location),
		"limit":         q.Limit,
		"require_phone": q.RequirePhone,
		"status":        200,
	}
}

// RecentQueries lists the latest query runs, newest first.
func (c *Client) RecentQueries(ctx context.Context, limit int64) ([]domain.StoredQuery, error) {
	cursor, err := c.mdb.Collection(queriesCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "store: recent queries")
	}
	defer cursor.Close(ctx)

	out := []domain.StoredQuery{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, eris.Wrap(err, "store: decode queries")
	}
	return out, nil
}

// ─── Results ──────────────────────────────────────────────────────────────────

// SaveResults inserts the leads of a query run in order.
func (c *Client) SaveResults(ctx context.Context, queryID string, leads []domain.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	now := time.Now().UTC()
	exp := now.Add(queryTTLDays * 24 * time.Hour)

	docs := make([]any, 0, len(leads))
	for i, l := range leads {
		docs = append(docs, domain.StoredResult{
			QueryID:   queryID,
			Position:  i,
			Lead:      l,
			CreatedAt: now,
			ExpiresAt: exp,
		})
	}
	if _, err := c.mdb.Collection(resultsCollection).InsertMany(ctx, docs); err != nil {
		return eris.Wrap(err, "store: save results")
	}
	return nil
}

// FindResults retrieves the leads of a query run in their original order.
func (c *Client) FindResults(ctx context.Context, queryID string) ([]domain.Lead, error) {
	cursor, err := c.mdb.Collection(resultsCollection).Find(ctx,
		bson.M{"query_id": queryID},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: find results")
	}
	defer cursor.Close(ctx)

	var leads []domain.Lead
	for cursor.Next(ctx) {
		var doc domain.StoredResult
		if err := cursor.Decode(&doc); err == nil {
			leads = append(leads, doc.Lead)
		}
	}
	return leads, cursor.Err()
}

// ─── Leads ────────────────────────────────────────────────────────────────────

// UpsertLeads merges leads into the leads collection keyed on (name, phone)
// and returns how many were new.
func (c *Client) UpsertLeads(ctx context.Context, leads []domain.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(leads))
	for _, l := range leads {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"name": l.Name, "phone": l.Phone}).
			SetUpdate(bson.M{
				"$set":         leadDoc(l, now),
				"$setOnInsert": bson.M{"first_seen_at": now},
			}).
			SetUpsert(true))
	}

	res, err := c.mdb.Collection(leadsCollection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, eris.Wrap(err, "store: upsert leads")
	}
	return int(res.UpsertedCount), nil
}

// leadDoc flattens a lead for $set. Phone is always present so the unique
// (name, phone) index treats a missing phone as "".
func leadDoc(l domain.Lead, now time.Time) bson.M {
	doc := bson.M{
		"name":         l.Name,
		"phone":        l.Phone,
		"keyword":      l.Keyword,
		"location":     l.Location,
		"source":       l.Source,
		"last_seen_at": now,
	}
	set := func(k, v string) {
		if v != "" {
			doc[k] = v
		}
	}
	set("website", l.Website)
	set("street", l.Street)
	set("address", l.Address)
	set("city", l.City)
	set("region", l.Region)
	set("postal_code", l.PostalCode)
	set("category", l.Category)
	set("source_url", l.SourceURL)
	if l.Rating != nil {
		doc["rating"] = *l.Rating
	}
	if l.ReviewCount != nil {
		doc["review_count"] = *l.ReviewCount
	}
	return doc
}
