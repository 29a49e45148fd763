// mongodb/query.go
package mongodb

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BuildFilter translates filter conditions into a bson filter document.
// Conditions on the same field merge into a single operator document; a
// plain equality that collides with a later operator is folded into $eq.
func BuildFilter(filters []Filter) bson.M {
	query := bson.M{}

	for _, f := range filters {
		cond := operatorCondition(f)
		if cond == nil {
			// eq stores the raw value
			if existing, ok := query[f.Field]; ok {
				if m, ok := existing.(bson.M); ok {
					m["$eq"] = f.Value
					continue
				}
			}
			query[f.Field] = f.Value
			continue
		}

		if existing, ok := query[f.Field]; ok {
			if m, ok := existing.(bson.M); ok {
				for k, v := range cond {
					m[k] = v
				}
			} else {
				merged := bson.M{"$eq": existing}
				for k, v := range cond {
					merged[k] = v
				}
				query[f.Field] = merged
			}
			continue
		}
		query[f.Field] = cond
	}

	return query
}

// operatorCondition returns the operator document for one filter, or nil
// for plain equality.
func operatorCondition(f Filter) bson.M {
	switch f.Operator {
	case OpEqual, "":
		return nil
	case OpNotEqual:
		return bson.M{"$ne": f.Value}
	case OpGreater:
		return bson.M{"$gt": f.Value}
	case OpGreaterEqual:
		return bson.M{"$gte": f.Value}
	case OpLess:
		return bson.M{"$lt": f.Value}
	case OpLessEqual:
		return bson.M{"$lte": f.Value}
	case OpContains:
		return regexCondition(regexp.QuoteMeta(stringValue(f.Value)), f.CaseSensitive)
	case OpStartsWith:
		return regexCondition("^"+regexp.QuoteMeta(stringValue(f.Value)), f.CaseSensitive)
	case OpEndsWith:
		return regexCondition(regexp.QuoteMeta(stringValue(f.Value))+"$", f.CaseSensitive)
	case OpRegex:
		return regexCondition(stringValue(f.Value), f.CaseSensitive)
	case OpIn:
		return bson.M{"$in": listValue(f.Value)}
	case OpNotIn:
		return bson.M{"$nin": listValue(f.Value)}
	case OpExists:
		return bson.M{"$exists": boolValue(f.Value)}
	case OpSize:
		return bson.M{"$size": f.Value}
	case OpAll:
		return bson.M{"$all": listValue(f.Value)}
	case OpType:
		return bson.M{"$type": f.Value}
	case OpElemMatch:
		if m, ok := f.Value.(map[string]interface{}); ok {
			return bson.M{"$elemMatch": bson.M(m)}
		}
		return bson.M{"$elemMatch": f.Value}
	default:
		// unknown operators fall back to equality on the raw value
		return bson.M{"$eq": f.Value}
	}
}

func regexCondition(pattern string, caseSensitive bool) bson.M {
	cond := bson.M{"$regex": pattern}
	if !caseSensitive {
		cond["$options"] = "i"
	}
	return cond
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return toString(v)
}

func listValue(v interface{}) []interface{} {
	switch x := v.(type) {
	case []interface{}:
		return x
	case nil:
		return nil
	default:
		return []interface{}{x}
	}
}

func boolValue(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return v != nil
}

// BuildSearchFilter builds the complete filter for a SearchQuery: free
// text (either an $or of per-field regexes or a $text search) combined
// with the structured filter conditions.
func BuildSearchFilter(q SearchQuery) bson.M {
	query := bson.M{}

	if q.Text != "" {
		if len(q.Fields) > 0 {
			conds := make([]bson.M, 0, len(q.Fields))
			for _, field := range q.Fields {
				conds = append(conds, bson.M{field: regexCondition(regexp.QuoteMeta(q.Text), false)})
			}
			query["$or"] = conds
		} else {
			query["$text"] = bson.M{"$search": q.Text}
		}
	}

	for field, cond := range BuildFilter(q.Filters) {
		query[field] = cond
	}

	if len(q.Or) > 0 {
		var groups []bson.M
		for _, g := range q.Or {
			var conds []bson.M
			for _, f := range g.Conditions {
				if cond := operatorCondition(f); cond != nil {
					conds = append(conds, bson.M{f.Field: cond})
				} else {
					conds = append(conds, bson.M{f.Field: f.Value})
				}
			}
			groups = append(groups, bson.M{"$or": conds})
		}
		if existing, ok := query["$or"]; ok {
			groups = append(groups, bson.M{"$or": existing})
			delete(query, "$or")
		}
		if len(groups) == 1 {
			query["$or"] = groups[0]["$or"]
		} else {
			query["$and"] = groups
		}
	}

	return query
}

// BuildSort translates sort conditions into a bson sort document. With no
// conditions the default is newest first.
func BuildSort(sorts []Sort) bson.D {
	out := bson.D{}
	for _, s := range sorts {
		dir := 1
		if s.Order == SortDesc {
			dir = -1
		}
		out = append(out, bson.E{Key: s.Field, Value: dir})
	}
	if len(out) == 0 {
		out = append(out, bson.E{Key: FieldCreatedAt, Value: -1})
	}
	return out
}

// Query is a fluent builder over BuildFilter/BuildSort for callers that
// assemble conditions programmatically.
type Query struct {
	filters []Filter
	or      []OrGroup
	sorts   []Sort
	limit   *int64
	skip    int64
}

func NewQuery() *Query {
	return &Query{}
}

func (q *Query) Filter(field, operator string, value interface{}) *Query {
	q.filters = append(q.filters, Filter{Field: field, Operator: operator, Value: value})
	return q
}

func (q *Query) FilterCase(field, operator string, value interface{}, caseSensitive bool) *Query {
	q.filters = append(q.filters, Filter{Field: field, Operator: operator, Value: value, CaseSensitive: caseSensitive})
	return q
}

func (q *Query) Or(conditions ...Filter) *Query {
	q.or = append(q.or, OrGroup{Conditions: conditions})
	return q
}

func (q *Query) Sort(field, order string) *Query {
	q.sorts = append(q.sorts, Sort{Field: field, Order: order})
	return q
}

func (q *Query) Limit(n int64) *Query {
	q.limit = &n
	return q
}

func (q *Query) Skip(n int64) *Query {
	q.skip = n
	return q
}

// Build returns the filter document and find options for execution.
func (q *Query) Build() (bson.M, *options.FindOptions) {
	filter := BuildSearchFilter(SearchQuery{Filters: q.filters, Or: q.or})

	opts := options.Find().SetSort(BuildSort(q.sorts))
	if q.skip > 0 {
		opts.SetSkip(q.skip)
	}
	if q.limit != nil {
		opts.SetLimit(*q.limit)
	}
	return filter, opts
}
