package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildFilter_Equality(t *testing.T) {
	query := BuildFilter([]Filter{
		{Field: "status", Operator: OpEqual, Value: "active"},
		{Field: "region", Value: "south"},
	})

	assert.Equal(t, bson.M{"status": "active", "region": "south"}, query)
}

func TestBuildFilter_ComparisonOperators(t *testing.T) {
	tests := []struct {
		operator string
		expected string
	}{
		{OpNotEqual, "$ne"},
		{OpGreater, "$gt"},
		{OpGreaterEqual, "$gte"},
		{OpLess, "$lt"},
		{OpLessEqual, "$lte"},
	}

	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			query := BuildFilter([]Filter{{Field: "price", Operator: tt.operator, Value: 10}})
			require.Contains(t, query, "price")
			assert.Equal(t, bson.M{tt.expected: 10}, query["price"])
		})
	}
}

func TestBuildFilter_MergesRangeOnSameField(t *testing.T) {
	query := BuildFilter([]Filter{
		{Field: "price", Operator: OpGreaterEqual, Value: 10},
		{Field: "price", Operator: OpLessEqual, Value: 50},
	})

	assert.Equal(t, bson.M{"price": bson.M{"$gte": 10, "$lte": 50}}, query)
}

func TestBuildFilter_EqualityCollidesWithOperator(t *testing.T) {
	// equality first, operator after: the raw value folds into $eq
	query := BuildFilter([]Filter{
		{Field: "qty", Value: 5},
		{Field: "qty", Operator: OpLess, Value: 100},
	})
	assert.Equal(t, bson.M{"qty": bson.M{"$eq": 5, "$lt": 100}}, query)

	// operator first, equality after
	query = BuildFilter([]Filter{
		{Field: "qty", Operator: OpGreater, Value: 1},
		{Field: "qty", Value: 5},
	})
	assert.Equal(t, bson.M{"qty": bson.M{"$gt": 1, "$eq": 5}}, query)
}

func TestBuildFilter_TextOperators(t *testing.T) {
	query := BuildFilter([]Filter{{Field: "name", Operator: OpContains, Value: "lap"}})
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "lap", "$options": "i"}}, query)

	query = BuildFilter([]Filter{{Field: "name", Operator: OpStartsWith, Value: "Lap"}})
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "^Lap", "$options": "i"}}, query)

	query = BuildFilter([]Filter{{Field: "name", Operator: OpEndsWith, Value: "top"}})
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "top$", "$options": "i"}}, query)
}

func TestBuildFilter_ContainsEscapesRegexMeta(t *testing.T) {
	query := BuildFilter([]Filter{{Field: "sku", Operator: OpContains, Value: "a.b+c"}})
	cond, ok := query["sku"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, `a\.b\+c`, cond["$regex"])
}

func TestBuildFilter_CaseSensitiveOmitsOption(t *testing.T) {
	query := BuildFilter([]Filter{{Field: "code", Operator: OpContains, Value: "ABC", CaseSensitive: true}})
	assert.Equal(t, bson.M{"code": bson.M{"$regex": "ABC"}}, query)
}

func TestBuildFilter_RegexIsNotEscaped(t *testing.T) {
	query := BuildFilter([]Filter{{Field: "email", Operator: OpRegex, Value: ".*@example\\.com$", CaseSensitive: true}})
	assert.Equal(t, bson.M{"email": bson.M{"$regex": ".*@example\\.com$"}}, query)
}

func TestBuildFilter_ListOperators(t *testing.T) {
	query := BuildFilter([]Filter{{Field: "tags", Operator: OpIn, Value: []interface{}{"a", "b"}}})
	assert.Equal(t, bson.M{"tags": bson.M{"$in": []interface{}{"a", "b"}}}, query)

	query = BuildFilter([]Filter{{Field: "tags", Operator: OpNotIn, Value: []interface{}{"x"}}})
	assert.Equal(t, bson.M{"tags": bson.M{"$nin": []interface{}{"x"}}}, query)

	// scalar values are wrapped in a single-element list
	query = BuildFilter([]Filter{{Field: "tags", Operator: OpIn, Value: "solo"}})
	assert.Equal(t, bson.M{"tags": bson.M{"$in": []interface{}{"solo"}}}, query)
}

func TestBuildFilter_ExistsAndSize(t *testing.T) {
	query := BuildFilter([]Filter{{Field: "deleted_at", Operator: OpExists, Value: false}})
	assert.Equal(t, bson.M{"deleted_at": bson.M{"$exists": false}}, query)

	query = BuildFilter([]Filter{{Field: "items", Operator: OpSize, Value: 3}})
	assert.Equal(t, bson.M{"items": bson.M{"$size": 3}}, query)
}

func TestBuildFilter_UnknownOperatorFallsBackToEquality(t *testing.T) {
	query := BuildFilter([]Filter{{Field: "x", Operator: "between", Value: 7}})
	assert.Equal(t, bson.M{"x": bson.M{"$eq": 7}}, query)
}

func TestBuildSearchFilter_TextWithFields(t *testing.T) {
	query := BuildSearchFilter(SearchQuery{
		Text:   "laptop",
		Fields: []string{"name", "description"},
	})

	or, ok := query["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "laptop", "$options": "i"}}, or[0])
	assert.Equal(t, bson.M{"description": bson.M{"$regex": "laptop", "$options": "i"}}, or[1])
}

func TestBuildSearchFilter_TextWithoutFieldsUsesTextIndex(t *testing.T) {
	query := BuildSearchFilter(SearchQuery{Text: "wireless mouse"})
	assert.Equal(t, bson.M{"$text": bson.M{"$search": "wireless mouse"}}, query)
}

func TestBuildSearchFilter_CombinesTextAndFilters(t *testing.T) {
	query := BuildSearchFilter(SearchQuery{
		Text:   "laptop",
		Fields: []string{"name"},
		Filters: []Filter{
			{Field: "price", Operator: OpLessEqual, Value: 1500},
		},
	})

	assert.Contains(t, query, "$or")
	assert.Equal(t, bson.M{"$lte": 1500}, query["price"])
}

func TestBuildSearchFilter_OrGroups(t *testing.T) {
	query := BuildSearchFilter(SearchQuery{
		Or: []OrGroup{{Conditions: []Filter{
			{Field: "status", Value: "active"},
			{Field: "status", Value: "pending"},
		}}},
	})

	or, ok := query["$or"].([]bson.M)
	require.True(t, ok)
	assert.Equal(t, []bson.M{{"status": "active"}, {"status": "pending"}}, or)
}

func TestBuildSearchFilter_MultipleOrGroupsUseAnd(t *testing.T) {
	query := BuildSearchFilter(SearchQuery{
		Or: []OrGroup{
			{Conditions: []Filter{{Field: "a", Value: 1}, {Field: "b", Value: 2}}},
			{Conditions: []Filter{{Field: "c", Value: 3}, {Field: "d", Value: 4}}},
		},
	})

	and, ok := query["$and"].([]bson.M)
	require.True(t, ok)
	assert.Len(t, and, 2)
	assert.NotContains(t, query, "$or")
}

func TestBuildSort(t *testing.T) {
	sort := BuildSort([]Sort{
		{Field: "price", Order: SortDesc},
		{Field: "name", Order: SortAsc},
	})

	assert.Equal(t, bson.D{{Key: "price", Value: -1}, {Key: "name", Value: 1}}, sort)
}

func TestBuildSort_DefaultsToNewestFirst(t *testing.T) {
	sort := BuildSort(nil)
	assert.Equal(t, bson.D{{Key: FieldCreatedAt, Value: -1}}, sort)
}

func TestQueryBuilder(t *testing.T) {
	filter, opts := NewQuery().
		Filter("category", OpEqual, "electronics").
		Filter("price", OpGreaterEqual, 100).
		Sort("price", SortDesc).
		Limit(20).
		Skip(40).
		Build()

	assert.Equal(t, "electronics", filter["category"])
	assert.Equal(t, bson.M{"$gte": 100}, filter["price"])
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(20), *opts.Limit)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(40), *opts.Skip)
	assert.Equal(t, bson.D{{Key: "price", Value: -1}}, opts.Sort)
}

func TestQueryBuilder_OrGroup(t *testing.T) {
	filter, _ := NewQuery().
		Or(
			Filter{Field: "status", Value: "active"},
			Filter{Field: "featured", Value: true},
		).
		Build()

	or, ok := filter["$or"].([]bson.M)
	require.True(t, ok)
	assert.Len(t, or, 2)
}
