package aggregation

import "go.mongodb.org/mongo-driver/bson"

// Stage vocabulary shared by the builders.

func match(expr any) bson.D {
	return bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: expr}}}}
}

// matchNotNull keeps documents whose path holds a non-null value.
func matchNotNull(path string) bson.D {
	return match(bson.D{{Key: "$gt", Value: bson.A{"$" + path, nil}}})
}

func group(id any, accumulators ...bson.E) bson.D {
	body := bson.D{{Key: "_id", Value: id}}
	body = append(body, accumulators...)
	return bson.D{{Key: "$group", Value: body}}
}

func accumulate(name, op string, value any) bson.E {
	return bson.E{Key: name, Value: bson.D{{Key: op, Value: value}}}
}

func project(fields ...bson.E) bson.D {
	return bson.D{{Key: "$project", Value: bson.D(fields)}}
}

// keep projects a single path.
func keep(path string) bson.D {
	return project(bson.E{Key: path, Value: true})
}

func set(fields ...bson.E) bson.D {
	return bson.D{{Key: "$set", Value: bson.D(fields)}}
}

func unwind(path string) bson.D {
	return bson.D{{Key: "$unwind", Value: "$" + path}}
}

func replaceRoot(path string) bson.D {
	return bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$" + path}}}}
}

func sortBy(keys bson.D) bson.D {
	return bson.D{{Key: "$sort", Value: keys}}
}

func limit(n int) bson.D {
	return bson.D{{Key: "$limit", Value: n}}
}

func count(name string) bson.D {
	return bson.D{{Key: "$count", Value: name}}
}

func facet(branches ...bson.E) bson.D {
	return bson.D{{Key: "$facet", Value: bson.D(branches)}}
}

// countOne is the {$sum: 1} accumulator used by the bucketing stages.
func countOne() bson.D {
	return bson.D{{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}
}

// valueOf is the aggregation value of a resolved path.
func valueOf(rp *ResolvedPath) any {
	if rp.IDToString {
		return bson.D{{Key: "$toString", Value: "$" + rp.Path}}
	}
	return "$" + rp.Path
}

// pushKeyCounts collects {k, count} pairs of a preceding $group by value.
func pushKeyCounts() bson.D {
	return group(nil, accumulate("result", "$push", bson.D{
		{Key: "k", Value: "$_id"},
		{Key: "count", Value: "$count"},
	}))
}
