package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/raywall/docstore-toolkit/mongodb"
)

// LocalService is implemented by analyses that can also run in-process
// over raw documents, for small data sets or when the aggregation
// framework is unavailable.
type LocalService interface {
	Compute(docs []mongodb.Document, params mongodb.Document) (interface{}, error)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func numeric(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func timestamp(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

type regionAccumulator struct {
	total float64
	count int64
	min   float64
	max   float64
}

// Compute aggregates sales per region in-process, mirroring the
// pipeline output plus a summary block.
func (s *salesByRegion) Compute(docs []mongodb.Document, _ mongodb.Document) (interface{}, error) {
	if len(docs) == 0 {
		return mongodb.Document{"summary": "No data provided for analysis."}, nil
	}

	acc := map[string]*regionAccumulator{}
	var grandTotal float64
	for _, doc := range docs {
		region, ok := doc["region"].(string)
		if !ok {
			continue
		}
		amount, _ := numeric(doc["sales_amount"])

		a := acc[region]
		if a == nil {
			a = &regionAccumulator{min: amount, max: amount}
			acc[region] = a
		}
		a.total += amount
		a.count++
		if amount < a.min {
			a.min = amount
		}
		if amount > a.max {
			a.max = amount
		}
		grandTotal += amount
	}

	if len(acc) == 0 {
		return nil, fmt.Errorf("analysis: field region not found in data")
	}

	rows := make([]mongodb.Document, 0, len(acc))
	for region, a := range acc {
		row := mongodb.Document{
			"region":        region,
			"total_sales":   round2(a.total),
			"average_sales": round2(a.total / float64(a.count)),
			"count":         a.count,
			"min_sale":      a.min,
			"max_sale":      a.max,
		}
		if grandTotal != 0 {
			row["percentage_of_total"] = round2(a.total / grandTotal * 100)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["total_sales"].(float64) > rows[j]["total_sales"].(float64)
	})

	return mongodb.Document{
		"summary": mongodb.Document{
			"total_sales":        round2(grandTotal),
			"total_regions":      len(rows),
			"average_per_region": round2(grandTotal / float64(len(rows))),
		},
		"by_region":     rows,
		"top_region":    rows[0],
		"bottom_region": rows[len(rows)-1],
	}, nil
}

// Compute summarizes user activity in-process.
func (s *userActivitySummary) Compute(docs []mongodb.Document, _ mongodb.Document) (interface{}, error) {
	if len(docs) == 0 {
		return mongodb.Document{"summary": "No data provided for analysis."}, nil
	}

	users := map[string]int64{}
	actionTypes := map[string]int64{}
	actionTypeUsers := map[string]map[string]struct{}{}
	hourly := map[int]int64{}
	weekly := map[string]int64{}
	daily := map[string]int64{}
	dailyUsers := map[string]map[string]struct{}{}

	var minTS, maxTS time.Time
	var totalActions int64

	for _, doc := range docs {
		userID, _ := doc["user_id"].(string)
		actionType, _ := doc["action_type"].(string)
		if userID == "" || actionType == "" {
			continue
		}
		totalActions++
		users[userID]++
		actionTypes[actionType]++

		if actionTypeUsers[actionType] == nil {
			actionTypeUsers[actionType] = map[string]struct{}{}
		}
		actionTypeUsers[actionType][userID] = struct{}{}

		ts, ok := timestamp(doc["timestamp"])
		if !ok {
			continue
		}
		if minTS.IsZero() || ts.Before(minTS) {
			minTS = ts
		}
		if ts.After(maxTS) {
			maxTS = ts
		}
		hourly[ts.Hour()]++
		weekly[ts.Weekday().String()]++

		day := ts.Format("2006-01-02")
		daily[day]++
		if dailyUsers[day] == nil {
			dailyUsers[day] = map[string]struct{}{}
		}
		dailyUsers[day][userID] = struct{}{}
	}

	if totalActions == 0 {
		return nil, fmt.Errorf("analysis: fields user_id, action_type not found in data")
	}

	byActionType := make([]mongodb.Document, 0, len(actionTypes))
	for at, count := range actionTypes {
		unique := int64(len(actionTypeUsers[at]))
		byActionType = append(byActionType, mongodb.Document{
			"action_type":        at,
			"total_actions":      count,
			"unique_users_count": unique,
			"avg_per_user":       round2(float64(count) / float64(unique)),
		})
	}
	sort.Slice(byActionType, func(i, j int) bool {
		return byActionType[i]["total_actions"].(int64) > byActionType[j]["total_actions"].(int64)
	})

	type userCount struct {
		id    string
		count int64
	}
	ranked := make([]userCount, 0, len(users))
	for id, count := range users {
		ranked = append(ranked, userCount{id, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	topUsers := make([]mongodb.Document, 0, len(ranked))
	for _, u := range ranked {
		topUsers = append(topUsers, mongodb.Document{
			"user_id":      u.id,
			"action_count": u.count,
		})
	}

	hourlyRows := make([]mongodb.Document, 0, len(hourly))
	for h, count := range hourly {
		hourlyRows = append(hourlyRows, mongodb.Document{"hour": h, "count": count})
	}
	sort.Slice(hourlyRows, func(i, j int) bool {
		return hourlyRows[i]["hour"].(int) < hourlyRows[j]["hour"].(int)
	})

	weeklyRows := make([]mongodb.Document, 0, len(weekly))
	for day, count := range weekly {
		weeklyRows = append(weeklyRows, mongodb.Document{"day": day, "count": count})
	}
	sort.Slice(weeklyRows, func(i, j int) bool {
		return strings.Compare(weeklyRows[i]["day"].(string), weeklyRows[j]["day"].(string)) < 0
	})

	dailyRows := make([]mongodb.Document, 0, len(daily))
	for day, count := range daily {
		dailyRows = append(dailyRows, mongodb.Document{
			"date":               day,
			"total_actions":      count,
			"unique_users_count": len(dailyUsers[day]),
		})
	}
	sort.Slice(dailyRows, func(i, j int) bool {
		return dailyRows[i]["date"].(string) < dailyRows[j]["date"].(string)
	})

	summary := mongodb.Document{
		"total_actions":            totalActions,
		"total_users":              len(users),
		"total_action_types":       len(actionTypes),
		"average_actions_per_user": round2(float64(totalActions) / float64(len(users))),
	}
	if !minTS.IsZero() {
		summary["date_range"] = mongodb.Document{
			"start": minTS.Format(time.RFC3339),
			"end":   maxTS.Format(time.RFC3339),
		}
	}

	return mongodb.Document{
		"summary":         summary,
		"by_action_type":  byActionType,
		"top_users":       topUsers,
		"hourly_activity": hourlyRows,
		"weekly_activity": weeklyRows,
		"daily_activity":  dailyRows,
	}, nil
}

type groupAccumulator struct {
	sum   float64
	count int64
	min   float64
	max   float64
	seen  bool
}

// Compute runs the generic group-and-aggregate in-process.
func (g *grouping) Compute(docs []mongodb.Document, params mongodb.Document) (interface{}, error) {
	columns, err := stringList(params["group_by_columns"])
	if err != nil || len(columns) == 0 {
		return nil, fmt.Errorf("analysis: group_and_aggregate requires group_by_columns (list of field names)")
	}
	aggregations, ok := params["aggregations"].(map[string]interface{})
	if !ok || len(aggregations) == 0 {
		return nil, fmt.Errorf("analysis: group_and_aggregate requires aggregations (field to function list)")
	}
	if len(docs) == 0 {
		return mongodb.Document{"summary": "No data for analysis."}, nil
	}

	type groupState struct {
		key    mongodb.Document
		fields map[string]*groupAccumulator
	}

	groups := map[string]*groupState{}
	order := []string{}

	for _, doc := range docs {
		keyParts := make([]string, 0, len(columns))
		key := mongodb.Document{}
		for _, col := range columns {
			val := fmt.Sprintf("%v", doc[col])
			keyParts = append(keyParts, val)
			key[col] = doc[col]
		}
		composite := strings.Join(keyParts, "\x00")

		state := groups[composite]
		if state == nil {
			state = &groupState{key: key, fields: map[string]*groupAccumulator{}}
			groups[composite] = state
			order = append(order, composite)
		}

		for field := range aggregations {
			a := state.fields[field]
			if a == nil {
				a = &groupAccumulator{}
				state.fields[field] = a
			}
			a.count++
			if v, ok := numeric(doc[field]); ok {
				a.sum += v
				if !a.seen || v < a.min {
					a.min = v
				}
				if !a.seen || v > a.max {
					a.max = v
				}
				a.seen = true
			}
		}
	}

	sort.Strings(order)

	rows := make([]mongodb.Document, 0, len(groups))
	for _, composite := range order {
		state := groups[composite]
		row := mongodb.Document{}
		for col, val := range state.key {
			row[col] = val
		}
		for field, fns := range aggregations {
			funcs, err := stringList(fns)
			if err != nil {
				return nil, fmt.Errorf("analysis: aggregations for %q must be a list of function names", field)
			}
			a := state.fields[field]
			for _, fn := range funcs {
				switch fn {
				case "sum":
					row[field+"_sum"] = round2(a.sum)
				case "avg", "mean":
					row[field+"_"+fn] = round2(a.sum / float64(a.count))
				case "min":
					row[field+"_min"] = a.min
				case "max":
					row[field+"_max"] = a.max
				case "count":
					row[field+"_count"] = a.count
				default:
					return nil, fmt.Errorf("analysis: unsupported aggregation function %q", fn)
				}
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
