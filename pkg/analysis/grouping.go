package analysis

import (
	"fmt"
	"sort"

	"github.com/raywall/docstore-toolkit/mongodb"
)

// grouping is the generic group-and-aggregate analysis. Params:
//
//	group_by_columns: ["region", "category"]
//	aggregations:     {"revenue": ["sum", "avg"], "units": ["sum"]}
//
// Output fields are named <column>_<function>, e.g. revenue_sum.
type grouping struct{}

func (g *grouping) Name() string { return "group_and_aggregate" }

var groupOperators = map[string]string{
	"sum":   "$sum",
	"avg":   "$avg",
	"mean":  "$avg",
	"min":   "$min",
	"max":   "$max",
	"count": "$sum",
}

func (g *grouping) Pipeline(match mongodb.Document, params mongodb.Document) ([]mongodb.Document, error) {
	columns, err := stringList(params["group_by_columns"])
	if err != nil || len(columns) == 0 {
		return nil, fmt.Errorf("analysis: group_and_aggregate requires group_by_columns (list of field names)")
	}

	aggregations, ok := params["aggregations"].(map[string]interface{})
	if !ok || len(aggregations) == 0 {
		return nil, fmt.Errorf("analysis: group_and_aggregate requires aggregations (field to function list)")
	}

	groupKey := mongodb.Document{}
	for _, col := range columns {
		groupKey[col] = "$" + col
	}

	group := mongodb.Document{"_id": groupKey}
	project := mongodb.Document{"_id": 0}
	for _, col := range columns {
		project[col] = "$_id." + col
	}

	fields := make([]string, 0, len(aggregations))
	for f := range aggregations {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		funcs, err := stringList(aggregations[field])
		if err != nil {
			return nil, fmt.Errorf("analysis: aggregations for %q must be a list of function names", field)
		}
		for _, fn := range funcs {
			op, ok := groupOperators[fn]
			if !ok {
				return nil, fmt.Errorf("analysis: unsupported aggregation function %q", fn)
			}
			name := field + "_" + fn
			if fn == "count" {
				group[name] = mongodb.Document{op: 1}
			} else {
				group[name] = mongodb.Document{op: "$" + field}
			}
			project[name] = 1
		}
	}

	pipeline := matchStage(match)
	pipeline = append(pipeline,
		mongodb.Document{"$group": group},
		mongodb.Document{"$sort": mongodb.Document{"_id": 1}},
		mongodb.Document{"$project": project},
	)
	return pipeline, nil
}

func stringList(v interface{}) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("analysis: expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("analysis: expected list, got %T", v)
	}
}
