package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raywall/docstore-toolkit/mongodb"
)

func TestRegistry_BuiltinServices(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"group_and_aggregate", "sales_by_region", "user_activity_summary"}, r.Names())

	_, err := r.Get("sales_by_region")
	assert.NoError(t, err)

	_, err = r.Get("nope")
	assert.True(t, errors.Is(err, ErrUnknownAnalysis))
}

func TestSalesByRegion_Pipeline(t *testing.T) {
	svc := &salesByRegion{}

	pipeline, err := svc.Pipeline(nil, nil)
	require.NoError(t, err)
	require.Len(t, pipeline, 5)

	// group, grand-total group, unwind, project, sort
	assert.Contains(t, pipeline[0], "$group")
	assert.Contains(t, pipeline[1], "$group")
	assert.Contains(t, pipeline[2], "$unwind")
	assert.Contains(t, pipeline[3], "$project")
	assert.Equal(t, mongodb.Document{"total_sales": -1}, pipeline[4]["$sort"])

	group := pipeline[0]["$group"].(mongodb.Document)
	assert.Equal(t, "$region", group["_id"])
	assert.Equal(t, mongodb.Document{"$sum": "$sales_amount"}, group["total_sales"])
}

func TestSalesByRegion_PipelineWithMatch(t *testing.T) {
	svc := &salesByRegion{}

	pipeline, err := svc.Pipeline(mongodb.Document{"year": 2025}, nil)
	require.NoError(t, err)
	require.Len(t, pipeline, 6)
	assert.Equal(t, mongodb.Document{"year": 2025}, pipeline[0]["$match"])
}

func TestUserActivitySummary_Pipeline(t *testing.T) {
	svc := &userActivitySummary{}

	pipeline, err := svc.Pipeline(nil, nil)
	require.NoError(t, err)
	require.Len(t, pipeline, 1)

	facet, ok := pipeline[0]["$facet"].(mongodb.Document)
	require.True(t, ok)
	for _, name := range []string{
		"summary", "by_action_type", "top_users",
		"hourly_activity", "weekly_activity", "daily_activity",
	} {
		assert.Contains(t, facet, name)
	}

	topUsers := facet["top_users"].([]mongodb.Document)
	require.Len(t, topUsers, 4)
	assert.Equal(t, 10, topUsers[2]["$limit"])
}

func TestGrouping_Pipeline(t *testing.T) {
	svc := &grouping{}

	params := mongodb.Document{
		"group_by_columns": []interface{}{"region", "category"},
		"aggregations": map[string]interface{}{
			"revenue": []interface{}{"sum", "avg"},
			"units":   []interface{}{"count"},
		},
	}

	pipeline, err := svc.Pipeline(nil, params)
	require.NoError(t, err)
	require.Len(t, pipeline, 3)

	group := pipeline[0]["$group"].(mongodb.Document)
	assert.Equal(t, mongodb.Document{"region": "$region", "category": "$category"}, group["_id"])
	assert.Equal(t, mongodb.Document{"$sum": "$revenue"}, group["revenue_sum"])
	assert.Equal(t, mongodb.Document{"$avg": "$revenue"}, group["revenue_avg"])
	assert.Equal(t, mongodb.Document{"$sum": 1}, group["units_count"])

	project := pipeline[2]["$project"].(mongodb.Document)
	assert.Equal(t, "$_id.region", project["region"])
	assert.Equal(t, 1, project["revenue_sum"])
}

func TestGrouping_RejectsBadParams(t *testing.T) {
	svc := &grouping{}

	_, err := svc.Pipeline(nil, mongodb.Document{})
	assert.Error(t, err)

	_, err = svc.Pipeline(nil, mongodb.Document{
		"group_by_columns": []interface{}{"region"},
	})
	assert.Error(t, err)

	_, err = svc.Pipeline(nil, mongodb.Document{
		"group_by_columns": []interface{}{"region"},
		"aggregations":     map[string]interface{}{"revenue": []interface{}{"median"}},
	})
	assert.Error(t, err)
}

func TestRunner_IsolatesFailures(t *testing.T) {
	store := &mongodb.MockStore{
		AggregateFn: func(ctx context.Context, pipeline []mongodb.Document) ([]mongodb.Document, error) {
			return []mongodb.Document{{"region": "south", "total_sales": 100.0}}, nil
		},
	}
	runner := NewRunner(store, NewRegistry(), zerolog.Nop())

	results := runner.Run(context.Background(), []Request{
		{Name: "sales_by_region"},
		{Name: "does_not_exist"},
		{Name: "group_and_aggregate"}, // missing params
	}, nil)

	require.Len(t, results, 3)
	assert.Empty(t, results["sales_by_region"].Error)
	assert.NotNil(t, results["sales_by_region"].Data)
	assert.Contains(t, results["does_not_exist"].Error, "unknown analysis")
	assert.NotEmpty(t, results["group_and_aggregate"].Error)
}

func TestRunner_StoreErrorReported(t *testing.T) {
	store := &mongodb.MockStore{
		AggregateFn: func(ctx context.Context, pipeline []mongodb.Document) ([]mongodb.Document, error) {
			return nil, errors.New("server down")
		},
	}
	runner := NewRunner(store, NewRegistry(), zerolog.Nop())

	results := runner.Run(context.Background(), []Request{{Name: "sales_by_region"}}, nil)
	assert.Equal(t, "server down", results["sales_by_region"].Error)
}

func TestRunner_AppliesBaseFilter(t *testing.T) {
	var captured []mongodb.Document
	store := &mongodb.MockStore{
		AggregateFn: func(ctx context.Context, pipeline []mongodb.Document) ([]mongodb.Document, error) {
			captured = pipeline
			return nil, nil
		},
	}
	runner := NewRunner(store, NewRegistry(), zerolog.Nop())

	runner.Run(context.Background(), []Request{{Name: "sales_by_region"}}, []mongodb.Filter{
		{Field: "year", Operator: mongodb.OpEqual, Value: 2025},
	})

	require.NotEmpty(t, captured)
	assert.Equal(t, mongodb.Document{"year": 2025}, captured[0]["$match"])
}
