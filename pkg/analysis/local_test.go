package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raywall/docstore-toolkit/mongodb"
)

func salesDocs() []mongodb.Document {
	return []mongodb.Document{
		{"region": "north", "sales_amount": 100.0},
		{"region": "north", "sales_amount": 300.0},
		{"region": "south", "sales_amount": 600.0},
	}
}

func TestSalesByRegion_Compute(t *testing.T) {
	svc := &salesByRegion{}

	out, err := svc.Compute(salesDocs(), nil)
	require.NoError(t, err)

	result := out.(mongodb.Document)
	summary := result["summary"].(mongodb.Document)
	assert.Equal(t, 1000.0, summary["total_sales"])
	assert.Equal(t, 2, summary["total_regions"])
	assert.Equal(t, 500.0, summary["average_per_region"])

	rows := result["by_region"].([]mongodb.Document)
	require.Len(t, rows, 2)

	// sorted by total_sales descending
	assert.Equal(t, "south", rows[0]["region"])
	assert.Equal(t, 600.0, rows[0]["total_sales"])
	assert.Equal(t, 60.0, rows[0]["percentage_of_total"])

	assert.Equal(t, "north", rows[1]["region"])
	assert.Equal(t, 200.0, rows[1]["average_sales"])
	assert.Equal(t, int64(2), rows[1]["count"])
	assert.Equal(t, 100.0, rows[1]["min_sale"])
	assert.Equal(t, 300.0, rows[1]["max_sale"])

	assert.Equal(t, "south", result["top_region"].(mongodb.Document)["region"])
	assert.Equal(t, "north", result["bottom_region"].(mongodb.Document)["region"])
}

func TestSalesByRegion_Compute_Empty(t *testing.T) {
	svc := &salesByRegion{}
	out, err := svc.Compute(nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out.(mongodb.Document), "summary")
}

func TestSalesByRegion_Compute_MissingRegion(t *testing.T) {
	svc := &salesByRegion{}
	_, err := svc.Compute([]mongodb.Document{{"sales_amount": 1.0}}, nil)
	assert.Error(t, err)
}

func TestUserActivitySummary_Compute(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) // a Monday
	docs := []mongodb.Document{
		{"user_id": "u1", "action_type": "login", "timestamp": base},
		{"user_id": "u1", "action_type": "view", "timestamp": base.Add(time.Hour)},
		{"user_id": "u2", "action_type": "login", "timestamp": base.Add(24 * time.Hour)},
	}

	svc := &userActivitySummary{}
	out, err := svc.Compute(docs, nil)
	require.NoError(t, err)

	result := out.(mongodb.Document)
	summary := result["summary"].(mongodb.Document)
	assert.Equal(t, int64(3), summary["total_actions"])
	assert.Equal(t, 2, summary["total_users"])
	assert.Equal(t, 2, summary["total_action_types"])
	assert.Equal(t, 1.5, summary["average_actions_per_user"])

	byType := result["by_action_type"].([]mongodb.Document)
	require.Len(t, byType, 2)
	assert.Equal(t, "login", byType[0]["action_type"])
	assert.Equal(t, int64(2), byType[0]["total_actions"])
	assert.Equal(t, int64(2), byType[0]["unique_users_count"])

	topUsers := result["top_users"].([]mongodb.Document)
	require.Len(t, topUsers, 2)
	assert.Equal(t, "u1", topUsers[0]["user_id"])
	assert.Equal(t, int64(2), topUsers[0]["action_count"])

	daily := result["daily_activity"].([]mongodb.Document)
	require.Len(t, daily, 2)
	assert.Equal(t, "2025-06-02", daily[0]["date"])
	assert.Equal(t, int64(2), daily[0]["total_actions"])
	assert.Equal(t, 1, daily[0]["unique_users_count"])
}

func TestUserActivitySummary_Compute_StringTimestamps(t *testing.T) {
	docs := []mongodb.Document{
		{"user_id": "u1", "action_type": "login", "timestamp": "2025-06-02T10:00:00Z"},
	}

	svc := &userActivitySummary{}
	out, err := svc.Compute(docs, nil)
	require.NoError(t, err)

	result := out.(mongodb.Document)
	hourly := result["hourly_activity"].([]mongodb.Document)
	require.Len(t, hourly, 1)
	assert.Equal(t, 10, hourly[0]["hour"])
}

func TestGrouping_Compute(t *testing.T) {
	docs := []mongodb.Document{
		{"region": "north", "revenue": 10.0, "units": 1},
		{"region": "north", "revenue": 30.0, "units": 2},
		{"region": "south", "revenue": 5.0, "units": 1},
	}
	params := mongodb.Document{
		"group_by_columns": []interface{}{"region"},
		"aggregations": map[string]interface{}{
			"revenue": []interface{}{"sum", "avg", "min", "max"},
			"units":   []interface{}{"count"},
		},
	}

	svc := &grouping{}
	out, err := svc.Compute(docs, params)
	require.NoError(t, err)

	rows := out.([]mongodb.Document)
	require.Len(t, rows, 2)

	// stable key order: north before south
	assert.Equal(t, "north", rows[0]["region"])
	assert.Equal(t, 40.0, rows[0]["revenue_sum"])
	assert.Equal(t, 20.0, rows[0]["revenue_avg"])
	assert.Equal(t, 10.0, rows[0]["revenue_min"])
	assert.Equal(t, 30.0, rows[0]["revenue_max"])
	assert.Equal(t, int64(2), rows[0]["units_count"])

	assert.Equal(t, "south", rows[1]["region"])
	assert.Equal(t, 5.0, rows[1]["revenue_sum"])
}

func TestGrouping_Compute_BadParams(t *testing.T) {
	svc := &grouping{}
	_, err := svc.Compute(salesDocs(), mongodb.Document{})
	assert.Error(t, err)
}

func TestRunner_LocalMode(t *testing.T) {
	var pipelines [][]mongodb.Document
	store := &mongodb.MockStore{
		AggregateFn: func(ctx context.Context, pipeline []mongodb.Document) ([]mongodb.Document, error) {
			pipelines = append(pipelines, pipeline)
			return salesDocs(), nil
		},
	}
	runner := NewRunner(store, NewRegistry(), zerolog.Nop())

	results := runner.Run(context.Background(), []Request{
		{Name: "sales_by_region", Mode: ModeLocal},
		{Name: "group_and_aggregate", Mode: ModeLocal, Params: mongodb.Document{
			"group_by_columns": []interface{}{"region"},
			"aggregations":     map[string]interface{}{"sales_amount": []interface{}{"sum"}},
		}},
	}, nil)

	// both local analyses share one raw fetch
	require.Len(t, pipelines, 1)
	assert.Equal(t, mongodb.Document{"$limit": localFetchLimit}, pipelines[0][0])

	require.Empty(t, results["sales_by_region"].Error)
	require.Empty(t, results["group_and_aggregate"].Error)

	rows := results["group_and_aggregate"].Data.([]mongodb.Document)
	require.Len(t, rows, 2)
	assert.Equal(t, 400.0, rows[0]["sales_amount_sum"])
}
