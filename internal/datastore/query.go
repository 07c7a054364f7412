package datastore

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"ai-list-filter/internal/models"
)

// Value prefixes understood by the list-by-filter query.
const (
	anyValue      = "*"
	excludePrefix = "-"
)

// buildListQuery translates list-by-filter fields into SQL over posts and
// post_meta. Within a key, plain values are alternatives; "-v" excludes v;
// "*" requires any value and "-*" or no values at all require none.
func buildListQuery(postType string, fields models.QueryFields, limit int) (string, []interface{}) {
	args := []interface{}{postType}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where := []string{"p.post_type = $1"}
	for _, f := range fields {
		where = append(where, fieldClauses(f, arg)...)
	}

	query := "SELECT p.id, p.title, p.last_modified FROM posts p WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY p.last_modified DESC, p.id DESC LIMIT " + arg(limit)
	return query, args
}

func fieldClauses(f models.QueryField, arg func(interface{}) string) []string {
	var include, exclude []string
	wantAny, wantNone := false, len(f.Values) == 0

	for _, v := range f.Values {
		switch {
		case v == anyValue:
			wantAny = true
		case v == excludePrefix+anyValue:
			wantNone = true
		case strings.HasPrefix(v, excludePrefix) && len(v) > 1:
			exclude = append(exclude, v[1:])
		case v != "":
			include = append(include, v)
		}
	}

	if f.Key == "name" {
		return nameClauses(include, exclude, arg)
	}

	var clauses []string
	exists := func(cond string) string {
		return "EXISTS (SELECT 1 FROM post_meta m WHERE m.post_id = p.id AND m.meta_key = " + arg(f.Key) + cond + ")"
	}
	if wantNone {
		clauses = append(clauses, "NOT "+exists(""))
	}
	if wantAny {
		clauses = append(clauses, exists(""))
	}
	if len(include) > 0 {
		clauses = append(clauses, exists(" AND m.meta_value = ANY("+arg(pq.Array(include))+")"))
	}
	if len(exclude) > 0 {
		clauses = append(clauses, "NOT "+exists(" AND m.meta_value = ANY("+arg(pq.Array(exclude))+")"))
	}
	return clauses
}

func nameClauses(include, exclude []string, arg func(interface{}) string) []string {
	var clauses []string
	if len(include) > 0 {
		alts := make([]string, 0, len(include))
		for _, v := range include {
			alts = append(alts, "p.title ILIKE "+arg(containsPattern(v)))
		}
		clauses = append(clauses, "("+strings.Join(alts, " OR ")+")")
	}
	for _, v := range exclude {
		clauses = append(clauses, "p.title NOT ILIKE "+arg(containsPattern(v)))
	}
	return clauses
}
