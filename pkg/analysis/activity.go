package analysis

import "github.com/raywall/docstore-toolkit/mongodb"

// userActivitySummary produces a multi-facet view over user action
// events: totals, per-action-type breakdown, top users, hourly, weekly
// and daily activity.
type userActivitySummary struct{}

func (s *userActivitySummary) Name() string { return "user_activity_summary" }

func (s *userActivitySummary) Pipeline(match mongodb.Document, _ mongodb.Document) ([]mongodb.Document, error) {
	pipeline := matchStage(match)

	pipeline = append(pipeline, mongodb.Document{
		"$facet": mongodb.Document{
			"summary": []mongodb.Document{
				{
					"$group": mongodb.Document{
						"_id":                 nil,
						"total_actions":       mongodb.Document{"$sum": 1},
						"unique_users":        mongodb.Document{"$addToSet": "$user_id"},
						"unique_action_types": mongodb.Document{"$addToSet": "$action_type"},
						"min_timestamp":       mongodb.Document{"$min": "$timestamp"},
						"max_timestamp":       mongodb.Document{"$max": "$timestamp"},
					},
				},
				{
					"$project": mongodb.Document{
						"_id":                0,
						"total_actions":      1,
						"total_users":        mongodb.Document{"$size": "$unique_users"},
						"total_action_types": mongodb.Document{"$size": "$unique_action_types"},
						"date_range": mongodb.Document{
							"start": "$min_timestamp",
							"end":   "$max_timestamp",
						},
					},
				},
			},
			"by_action_type": []mongodb.Document{
				{
					"$group": mongodb.Document{
						"_id":           "$action_type",
						"total_actions": mongodb.Document{"$sum": 1},
						"unique_users":  mongodb.Document{"$addToSet": "$user_id"},
					},
				},
				{
					"$project": mongodb.Document{
						"_id":                0,
						"action_type":        "$_id",
						"total_actions":      1,
						"unique_users_count": mongodb.Document{"$size": "$unique_users"},
					},
				},
				{"$sort": mongodb.Document{"total_actions": -1}},
			},
			"top_users": []mongodb.Document{
				{
					"$group": mongodb.Document{
						"_id":          "$user_id",
						"action_count": mongodb.Document{"$sum": 1},
						"first_action": mongodb.Document{"$min": "$timestamp"},
						"last_action":  mongodb.Document{"$max": "$timestamp"},
						"action_types": mongodb.Document{"$addToSet": "$action_type"},
					},
				},
				{"$sort": mongodb.Document{"action_count": -1}},
				{"$limit": 10},
				{
					"$project": mongodb.Document{
						"_id":                 0,
						"user_id":             "$_id",
						"action_count":        1,
						"first_action":        1,
						"last_action":         1,
						"unique_action_types": mongodb.Document{"$size": "$action_types"},
					},
				},
			},
			"hourly_activity": []mongodb.Document{
				{"$project": mongodb.Document{"hour": mongodb.Document{"$hour": "$timestamp"}}},
				{"$group": mongodb.Document{"_id": "$hour", "count": mongodb.Document{"$sum": 1}}},
				{"$project": mongodb.Document{"_id": 0, "hour": "$_id", "count": 1}},
				{"$sort": mongodb.Document{"hour": 1}},
			},
			"weekly_activity": []mongodb.Document{
				{"$project": mongodb.Document{"dayOfWeek": mongodb.Document{"$dayOfWeek": "$timestamp"}}},
				{"$group": mongodb.Document{"_id": "$dayOfWeek", "count": mongodb.Document{"$sum": 1}}},
				{
					"$project": mongodb.Document{
						"_id":   0,
						"count": 1,
						"day": mongodb.Document{
							"$switch": mongodb.Document{
								"branches": []mongodb.Document{
									{"case": mongodb.Document{"$eq": []interface{}{"$_id", 1}}, "then": "Sunday"},
									{"case": mongodb.Document{"$eq": []interface{}{"$_id", 2}}, "then": "Monday"},
									{"case": mongodb.Document{"$eq": []interface{}{"$_id", 3}}, "then": "Tuesday"},
									{"case": mongodb.Document{"$eq": []interface{}{"$_id", 4}}, "then": "Wednesday"},
									{"case": mongodb.Document{"$eq": []interface{}{"$_id", 5}}, "then": "Thursday"},
									{"case": mongodb.Document{"$eq": []interface{}{"$_id", 6}}, "then": "Friday"},
									{"case": mongodb.Document{"$eq": []interface{}{"$_id", 7}}, "then": "Saturday"},
								},
								"default": "Unknown",
							},
						},
					},
				},
			},
			"daily_activity": []mongodb.Document{
				{
					"$project": mongodb.Document{
						"date": mongodb.Document{
							"$dateToString": mongodb.Document{"format": "%Y-%m-%d", "date": "$timestamp"},
						},
						"user_id":     1,
						"action_type": 1,
					},
				},
				{
					"$group": mongodb.Document{
						"_id":           "$date",
						"unique_users":  mongodb.Document{"$addToSet": "$user_id"},
						"total_actions": mongodb.Document{"$sum": 1},
					},
				},
				{
					"$project": mongodb.Document{
						"_id":                0,
						"date":               "$_id",
						"unique_users_count": mongodb.Document{"$size": "$unique_users"},
						"total_actions":      1,
					},
				},
				{"$sort": mongodb.Document{"date": 1}},
			},
		},
	})

	return pipeline, nil
}
