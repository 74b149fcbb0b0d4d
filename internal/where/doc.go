// Package where parses chroma style where and where_document filters and
// evaluates them into candidate sets of record offsets.
//
// Where filters address metadata:
//
//	{"color": "red"}
//	{"$and": [{"year": {"$gte": 2020}}, {"tag": {"$in": ["a", "b"]}}]}
//
// Document filters address the record text:
//
//	{"$contains": "vector"}
//	{"$or": [{"$contains": "a"}, {"$not_contains": "b"}]}
//
// Negated operators ($ne, $nin, $not_contains, $not_regex) select the
// complement of their positive form, records without the key included.
package where
