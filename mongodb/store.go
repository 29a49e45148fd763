// mongodb/store.go
package mongodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMaxBulkSize caps the chunk size of bulk writes.
const DefaultMaxBulkSize = 1000

// mongoStore implements Store over a Client. The active collection is
// resolved per call so collection switches take effect immediately.
type mongoStore struct {
	client      *Client
	log         zerolog.Logger
	maxBulkSize int
}

// NewStore returns a Store backed by the client's active collection.
func NewStore(client *Client, log zerolog.Logger) Store {
	return &mongoStore{
		client:      client,
		log:         log.With().Str("component", "store").Logger(),
		maxBulkSize: DefaultMaxBulkSize,
	}
}

func toString(v interface{}) string {
	return fmt.Sprintf("%v", v)
}

// stringifyID rewrites an ObjectId _id as its hex string.
func stringifyID(doc Document) Document {
	if doc == nil {
		return nil
	}
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		doc["_id"] = oid.Hex()
	}
	return doc
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func (s *mongoStore) collection() (*mongo.Collection, error) {
	return s.client.Collection()
}

func (s *mongoStore) Insert(ctx context.Context, doc Document) (Document, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := make(Document, len(doc)+2)
	for k, v := range doc {
		item[k] = v
	}
	item[FieldCreatedAt] = now
	item[FieldUpdatedAt] = now

	res, err := coll.InsertOne(ctx, item)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return nil, fmt.Errorf("mongodb: insert: %w", err)
	}

	var created Document
	if err := coll.FindOne(ctx, bson.M{"_id": res.InsertedID}).Decode(&created); err != nil {
		return nil, fmt.Errorf("mongodb: read back inserted document: %w", err)
	}

	created = stringifyID(created)
	s.log.Info().Str("id", toString(created["_id"])).Msg("document created")
	return created, nil
}

func (s *mongoStore) Get(ctx context.Context, id string) (Document, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: get %s: %w", id, err)
	}
	return stringifyID(doc), nil
}

func (s *mongoStore) Update(ctx context.Context, id string, fields Document) (Document, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := make(Document, len(fields)+1)
	for k, v := range fields {
		set[k] = v
	}
	set[FieldUpdatedAt] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Document
	err = coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb: update %s: %w", id, err)
	}

	updated = stringifyID(updated)
	s.log.Info().Str("id", id).Msg("document updated")
	return updated, nil
}

func (s *mongoStore) Delete(ctx context.Context, id string) error {
	coll, err := s.collection()
	if err != nil {
		return err
	}
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongodb: delete %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	s.log.Info().Str("id", id).Msg("document deleted")
	return nil
}

func (s *mongoStore) List(ctx context.Context, limit, skip int64) ([]Document, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: FieldCreatedAt, Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: list: %w", err)
	}
	return drain(ctx, cursor)
}

func (s *mongoStore) Search(ctx context.Context, query SearchQuery) (*Page, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	query.Normalize()

	filter := BuildSearchFilter(query)
	skip := (query.Page - 1) * query.Limit

	opts := options.Find().
		SetSort(BuildSort(query.Sort)).
		SetSkip(skip).
		SetLimit(query.Limit)

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: search: %w", err)
	}
	items, err := drain(ctx, cursor)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Data:    items,
		Page:    query.Page,
		Limit:   query.Limit,
		HasPrev: query.Page > 1,
	}

	if query.IncludeCount {
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("mongodb: search count: %w", err)
		}
		pages := (total + query.Limit - 1) / query.Limit
		page.Total = &total
		page.Pages = &pages
		page.HasNext = query.Page < pages
	} else {
		page.HasNext = int64(len(items)) == query.Limit
	}

	s.log.Debug().Int("results", len(items)).Int64("page", query.Page).Msg("search completed")
	return page, nil
}

func (s *mongoStore) BulkInsert(ctx context.Context, docs []Document) (*BulkResult, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	prepared := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		item := make(Document, len(doc)+2)
		for k, v := range doc {
			item[k] = v
		}
		item[FieldCreatedAt] = now
		item[FieldUpdatedAt] = now
		prepared = append(prepared, item)
	}

	result := &BulkResult{}
	opts := options.InsertMany().SetOrdered(false)

	for start := 0; start < len(prepared); start += s.maxBulkSize {
		end := start + s.maxBulkSize
		if end > len(prepared) {
			end = len(prepared)
		}
		batch := prepared[start:end]

		res, err := coll.InsertMany(ctx, batch, opts)
		if err := accumulateInsertBatch(result, len(batch), start, res, err); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Int64("ok", result.SuccessCount).
		Int64("failed", result.ErrorCount).
		Msg("bulk insert completed")
	return result, nil
}

// accumulateInsertBatch folds one unordered InsertMany outcome into the
// running result. The driver reports InsertedIDs for every attempted
// document, so on a partial failure the failed indices must be dropped
// from both the success count and the ID list.
func accumulateInsertBatch(result *BulkResult, batchLen, offset int, res *mongo.InsertManyResult, err error) error {
	if err == nil {
		if res != nil {
			result.SuccessCount += int64(len(res.InsertedIDs))
			for _, id := range res.InsertedIDs {
				result.InsertedIDs = append(result.InsertedIDs, insertedIDHex(id))
			}
		}
		return nil
	}

	bwe, ok := err.(mongo.BulkWriteException)
	if !ok {
		return fmt.Errorf("mongodb: bulk insert: %w", err)
	}

	failed := make(map[int]struct{}, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		failed[we.Index] = struct{}{}
		result.Errors = append(result.Errors, fmt.Sprintf("index %d: %s", offset+we.Index, we.Message))
	}
	result.ErrorCount += int64(len(failed))
	result.SuccessCount += int64(batchLen - len(failed))

	if res != nil {
		for i, id := range res.InsertedIDs {
			if _, bad := failed[i]; bad {
				continue
			}
			result.InsertedIDs = append(result.InsertedIDs, insertedIDHex(id))
		}
	}
	return nil
}

func insertedIDHex(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return toString(id)
}

func (s *mongoStore) BulkUpdate(ctx context.Context, updates []BulkUpdate) (*BulkResult, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		if u.Filter == nil || u.Update == nil {
			continue
		}
		set := make(Document, len(u.Update)+1)
		for k, v := range u.Update {
			set[k] = v
		}
		set[FieldUpdatedAt] = now
		models = append(models, mongo.NewUpdateManyModel().
			SetFilter(u.Filter).
			SetUpdate(bson.M{"$set": set}))
	}

	if len(models) == 0 {
		s.log.Warn().Msg("bulk update: no valid operations")
		return &BulkResult{}, nil
	}

	res, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return nil, fmt.Errorf("mongodb: bulk update: %w", err)
	}

	result := &BulkResult{
		SuccessCount:  res.ModifiedCount,
		ModifiedCount: res.ModifiedCount,
	}
	s.log.Info().Int64("modified", res.ModifiedCount).Msg("bulk update completed")
	return result, nil
}

func (s *mongoStore) BulkDelete(ctx context.Context, filters []Document) (*BulkResult, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	models := make([]mongo.WriteModel, 0, len(filters))
	for _, f := range filters {
		models = append(models, mongo.NewDeleteManyModel().SetFilter(f))
	}
	if len(models) == 0 {
		return &BulkResult{}, nil
	}

	res, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return nil, fmt.Errorf("mongodb: bulk delete: %w", err)
	}

	result := &BulkResult{
		SuccessCount: res.DeletedCount,
		DeletedCount: res.DeletedCount,
	}
	s.log.Info().Int64("deleted", res.DeletedCount).Msg("bulk delete completed")
	return result, nil
}

func (s *mongoStore) Distinct(ctx context.Context, field string, filter Document) ([]interface{}, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = Document{}
	}
	values, err := coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("mongodb: distinct %q: %w", field, err)
	}
	return values, nil
}

func (s *mongoStore) Count(ctx context.Context, filter Document) (int64, error) {
	coll, err := s.collection()
	if err != nil {
		return 0, err
	}
	if filter == nil {
		filter = Document{}
	}
	count, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongodb: count: %w", err)
	}
	return count, nil
}

func (s *mongoStore) Aggregate(ctx context.Context, pipeline []Document) ([]Document, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	stages := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		d := bson.D{}
		for k, v := range stage {
			d = append(d, bson.E{Key: k, Value: v})
		}
		stages = append(stages, d)
	}

	cursor, err := coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("mongodb: aggregate: %w", err)
	}
	return drain(ctx, cursor)
}

// Duplicates groups documents by the given fields and returns the groups
// that occur more than once.
func (s *mongoStore) Duplicates(ctx context.Context, fields []string) ([]Document, error) {
	group := Document{"_id": func() Document {
		key := Document{}
		for _, f := range fields {
			key[f] = "$" + f
		}
		return key
	}()}
	group["count"] = Document{"$sum": 1}
	group["docs"] = Document{"$push": "$$ROOT"}

	pipeline := []Document{
		{"$group": group},
		{"$match": Document{"count": Document{"$gt": 1}}},
		{"$project": Document{
			"fields":     "$_id",
			"count":      1,
			"duplicates": "$docs",
		}},
	}
	return s.Aggregate(ctx, pipeline)
}

func (s *mongoStore) Sample(ctx context.Context, size int64) ([]Document, error) {
	return s.Aggregate(ctx, []Document{
		{"$sample": Document{"size": size}},
	})
}

func (s *mongoStore) Statistics(ctx context.Context) (*Statistics, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	db, err := s.client.Database()
	if err != nil {
		return nil, err
	}

	var collStats Document
	err = db.RunCommand(ctx, bson.D{{Key: "collStats", Value: coll.Name()}}).Decode(&collStats)
	if err != nil {
		return nil, fmt.Errorf("mongodb: collStats: %w", err)
	}

	count, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb: count: %w", err)
	}

	indexes, err := s.Indexes(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalDocuments:      count,
		CollectionSizeBytes: numberValue(collStats["size"]),
		AverageDocumentSize: floatValue(collStats["avgObjSize"]),
		IndexCount:          len(indexes),
	}

	// updated_at of the most recent document, when present
	opts := options.FindOne().SetSort(bson.D{{Key: FieldUpdatedAt, Value: -1}})
	var last Document
	err = coll.FindOne(ctx, bson.M{FieldUpdatedAt: bson.M{"$exists": true}}, opts).Decode(&last)
	if err == nil {
		if ts, ok := last[FieldUpdatedAt].(primitive.DateTime); ok {
			t := ts.Time().UTC()
			stats.LastUpdated = &t
		} else if t, ok := last[FieldUpdatedAt].(time.Time); ok {
			stats.LastUpdated = &t
		}
	}

	return stats, nil
}

func (s *mongoStore) SchemaInfo(ctx context.Context, sampleSize int64) (*Schema, error) {
	if sampleSize <= 0 {
		sampleSize = 100
	}
	docs, err := s.Sample(ctx, sampleSize)
	if err != nil {
		return nil, err
	}

	analysis := map[string]*fieldStats{}
	for _, doc := range docs {
		analyzeFields(doc, "", analysis)
	}

	schema := &Schema{
		Collection:  s.client.CollectionName(),
		SampledDocs: len(docs),
	}

	names := make([]string, 0, len(analysis))
	for name := range analysis {
		switch name {
		case "_id", FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fs := analysis[name]
		schema.Fields = append(schema.Fields, FieldInfo{
			Name:       name,
			Type:       fs.dominantType(),
			Required:   fs.count == len(docs),
			Searchable: true,
			Sortable:   true,
		})
	}
	return schema, nil
}

type fieldStats struct {
	types map[string]int
	count int
}

func analyzeFields(doc Document, prefix string, out map[string]*fieldStats) {
	for key, value := range doc {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		fs := out[name]
		if fs == nil {
			fs = &fieldStats{types: map[string]int{}}
			out[name] = fs
		}
		fs.count++
		fs.types[bsonTypeName(value)]++

		switch v := value.(type) {
		case Document:
			analyzeFields(v, name, out)
		case map[string]interface{}:
			analyzeFields(Document(v), name, out)
		}
	}
}

func bsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "text"
	case bool:
		return "boolean"
	case int, int32, int64:
		return "number"
	case float32, float64:
		return "number"
	case primitive.DateTime, time.Time:
		return "date"
	case primitive.A, []interface{}:
		return "array"
	case Document, map[string]interface{}:
		return "object"
	default:
		return "text"
	}
}

func (fs *fieldStats) dominantType() string {
	best, n := "text", 0
	for t, c := range fs.types {
		if t == "null" {
			continue
		}
		if c > n {
			best, n = t, c
		}
	}
	return best
}

func (s *mongoStore) Info(ctx context.Context) (Document, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	db, err := s.client.Database()
	if err != nil {
		return nil, err
	}

	var collStats Document
	if err := db.RunCommand(ctx, bson.D{{Key: "collStats", Value: coll.Name()}}).Decode(&collStats); err != nil {
		return nil, fmt.Errorf("mongodb: collStats: %w", err)
	}

	indexes, err := s.Indexes(ctx)
	if err != nil {
		return nil, err
	}

	info := Document{
		"name":                  coll.Name(),
		"database":              db.Name(),
		"document_count":        numberValue(collStats["count"]),
		"size_bytes":            numberValue(collStats["size"]),
		"storage_size_bytes":    numberValue(collStats["storageSize"]),
		"average_document_size": floatValue(collStats["avgObjSize"]),
		"total_index_size":      numberValue(collStats["totalIndexSize"]),
		"indexes":               indexes,
	}

	// collection options (validator rules etc.)
	specs, err := db.ListCollectionSpecifications(ctx, bson.M{"name": coll.Name()})
	if err == nil && len(specs) > 0 && specs[0].Options != nil {
		var opts Document
		if err := bson.Unmarshal(specs[0].Options, &opts); err == nil {
			info["options"] = opts
		}
	}
	return info, nil
}

func (s *mongoStore) ValidateIntegrity(ctx context.Context) (*IntegrityReport, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	db, err := s.client.Database()
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{Errors: []string{}, Warnings: []string{}}

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb: count: %w", err)
	}
	report.TotalDocuments = total

	missing, err := coll.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{FieldCreatedAt: bson.M{"$exists": false}},
		bson.M{FieldUpdatedAt: bson.M{"$exists": false}},
	}})
	if err != nil {
		return nil, fmt.Errorf("mongodb: count missing timestamps: %w", err)
	}
	if missing > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d documents are missing timestamp fields", missing))
	}

	var validation Document
	err = db.RunCommand(ctx, bson.D{{Key: "validate", Value: coll.Name()}}).Decode(&validation)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("validate command failed: %v", err))
	} else if valid, ok := validation["valid"].(bool); ok && !valid {
		report.Errors = append(report.Errors, "collection failed server-side validation")
		report.InvalidDocuments = total
	}

	report.ValidDocuments = total - report.InvalidDocuments
	return report, nil
}

func (s *mongoStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	coll, err := s.collection()
	if err != nil {
		return err
	}

	keys := bson.D{}
	fields := make([]string, 0, len(spec.Fields))
	for f := range spec.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: spec.Fields[f]})
	}

	opts := options.Index().
		SetName(spec.Name).
		SetUnique(spec.Unique).
		SetSparse(spec.Sparse)

	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts}); err != nil {
		return fmt.Errorf("mongodb: create index %q: %w", spec.Name, err)
	}
	s.log.Info().Str("index", spec.Name).Msg("index created")
	return nil
}

func (s *mongoStore) DropIndex(ctx context.Context, name string) error {
	coll, err := s.collection()
	if err != nil {
		return err
	}
	if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
		return fmt.Errorf("mongodb: drop index %q: %w", name, err)
	}
	s.log.Info().Str("index", name).Msg("index dropped")
	return nil
}

func (s *mongoStore) Indexes(ctx context.Context) ([]IndexInfo, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("mongodb: list indexes: %w", err)
	}

	var out []IndexInfo
	for cursor.Next(ctx) {
		var raw Document
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongodb: decode index: %w", err)
		}
		idx := IndexInfo{Name: toString(raw["name"])}
		if keys, ok := raw["key"].(Document); ok {
			idx.Keys = keys
		}
		if u, ok := raw["unique"].(bool); ok {
			idx.Unique = u
		}
		if sp, ok := raw["sparse"].(bool); ok {
			idx.Sparse = sp
		}
		out = append(out, idx)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: iterate indexes: %w", err)
	}
	return out, nil
}

func (s *mongoStore) CleanupBefore(ctx context.Context, dateField string, cutoff time.Time) (int64, error) {
	coll, err := s.collection()
	if err != nil {
		return 0, err
	}
	if dateField == "" {
		dateField = FieldCreatedAt
	}

	res, err := coll.DeleteMany(ctx, bson.M{dateField: bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("mongodb: cleanup: %w", err)
	}
	s.log.Info().
		Int64("deleted", res.DeletedCount).
		Time("cutoff", cutoff).
		Msg("old documents removed")
	return res.DeletedCount, nil
}

// drain consumes a cursor into documents with stringified ids.
func drain(ctx context.Context, cursor *mongo.Cursor) ([]Document, error) {
	defer cursor.Close(ctx)

	items := []Document{}
	for cursor.Next(ctx) {
		var doc Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb: decode document: %w", err)
		}
		items = append(items, stringifyID(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: iterate cursor: %w", err)
	}
	return items, nil
}

func numberValue(v interface{}) int64 {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	default:
		return 0
	}
}

func floatValue(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		return 0
	}
}
