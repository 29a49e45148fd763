package analysis

import "github.com/raywall/docstore-toolkit/mongodb"

// salesByRegion aggregates sales per region with each region's share of
// the grand total.
type salesByRegion struct{}

func (s *salesByRegion) Name() string { return "sales_by_region" }

func (s *salesByRegion) Pipeline(match mongodb.Document, _ mongodb.Document) ([]mongodb.Document, error) {
	pipeline := matchStage(match)

	pipeline = append(pipeline, mongodb.Document{
		"$group": mongodb.Document{
			"_id":           "$region",
			"total_sales":   mongodb.Document{"$sum": "$sales_amount"},
			"average_sales": mongodb.Document{"$avg": "$sales_amount"},
			"count":         mongodb.Document{"$sum": 1},
			"min_sale":      mongodb.Document{"$min": "$sales_amount"},
			"max_sale":      mongodb.Document{"$max": "$sales_amount"},
		},
	})

	// second group computes the grand total so shares can be derived
	pipeline = append(pipeline, mongodb.Document{
		"$group": mongodb.Document{
			"_id": nil,
			"regions": mongodb.Document{
				"$push": mongodb.Document{
					"region":        "$_id",
					"total_sales":   "$total_sales",
					"average_sales": "$average_sales",
					"count":         "$count",
					"min_sale":      "$min_sale",
					"max_sale":      "$max_sale",
				},
			},
			"grand_total": mongodb.Document{"$sum": "$total_sales"},
		},
	})

	pipeline = append(pipeline, mongodb.Document{"$unwind": "$regions"})

	pipeline = append(pipeline, mongodb.Document{
		"$project": mongodb.Document{
			"_id":           0,
			"region":        "$regions.region",
			"total_sales":   mongodb.Document{"$round": []interface{}{"$regions.total_sales", 2}},
			"average_sales": mongodb.Document{"$round": []interface{}{"$regions.average_sales", 2}},
			"count":         "$regions.count",
			"min_sale":      "$regions.min_sale",
			"max_sale":      "$regions.max_sale",
			"percentage_of_total": mongodb.Document{
				"$round": []interface{}{
					mongodb.Document{"$multiply": []interface{}{
						mongodb.Document{"$divide": []interface{}{"$regions.total_sales", "$grand_total"}},
						100,
					}},
					2,
				},
			},
		},
	})

	pipeline = append(pipeline, mongodb.Document{
		"$sort": mongodb.Document{"total_sales": -1},
	})

	return pipeline, nil
}
