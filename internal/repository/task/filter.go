package task

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openconv/convertor/internal/apperror"
)

// validOperators maps filter operator suffixes to their SQL form.
// A bare field name is syntactic sugar for "<field>__eq".
var validOperators = map[string]string{
	"":      "=",
	"eq":    "=",
	"neq":   "!=",
	"gt":    ">",
	"gte":   ">=",
	"lt":    "<",
	"lte":   "<=",
	"in":    "IN",
	"notin": "NOT IN",
}

// filterFields lists the task columns that may appear in a filter key.
var filterFields = map[string]bool{
	"uuid":       true,
	"image_id":   true,
	"bucket_id":  true,
	"new_format": true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
	"deleted_at": true,
}

// sortFields lists the columns a listing may be sorted by.
var sortFields = map[string]bool{
	"id":         true,
	"uuid":       true,
	"image_id":   true,
	"bucket_id":  true,
	"new_format": true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// ListQuery describes a filtered, sorted, marker-paginated listing.
// Filter keys take the form "field" or "field__op". The "deleted" key is
// a pseudo-filter: "true" restricts the listing to soft-deleted rows,
// anything else to live rows. Absent it, deleted rows are excluded.
type ListQuery struct {
	Filters map[string]string
	Limit   int
	Marker  string // sort-key value of the last row of the previous page
	SortKey string
	SortDir string
}

// decomposeFilter splits a raw filter key into its field name and
// comparison operator.
func decomposeFilter(raw string) (field, op string, err error) {
	field, op, _ = strings.Cut(raw, "__")

	sqlOp, ok := validOperators[op]
	if !ok {
		return "", "", apperror.InvalidOperator("unsupported filter operator %q in %q", op, raw)
	}
	if !filterFields[field] {
		return "", "", apperror.Invalid("unknown filter field %q", field)
	}

	return field, sqlOp, nil
}

// buildWhere translates a ListQuery into a WHERE clause and its
// arguments. Placeholders start at $1.
func buildWhere(q ListQuery) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)

	filters := make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		filters[k] = v
	}

	// The deleted pseudo-filter toggles soft-deleted row visibility.
	if v, ok := filters["deleted"]; ok {
		delete(filters, "deleted")
		if v == "true" || v == "1" {
			clauses = append(clauses, "deleted_at IS NOT NULL")
		} else {
			clauses = append(clauses, "deleted_at IS NULL")
		}
	} else {
		clauses = append(clauses, "deleted_at IS NULL")
	}

	for raw, value := range filters {
		field, sqlOp, err := decomposeFilter(raw)
		if err != nil {
			return "", nil, err
		}

		switch sqlOp {
		case "IN", "NOT IN":
			values := strings.Split(value, ",")
			placeholders := make([]string, 0, len(values))
			for _, v := range values {
				args = append(args, strings.TrimSpace(v))
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", field, sqlOp, strings.Join(placeholders, ", ")))
		default:
			args = append(args, value)
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", field, sqlOp, len(args)))
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

// buildOrder validates the sort parameters and returns the ORDER BY
// expression. The default is ascending by id, matching insertion order.
func buildOrder(sortKey, sortDir string) (string, error) {
	if sortKey == "" {
		sortKey = "id"
	}
	if !sortFields[sortKey] {
		return "", apperror.Invalid("unknown sort key %q", sortKey)
	}

	switch sortDir {
	case "":
		sortDir = "asc"
	case "asc", "desc":
	default:
		return "", apperror.Invalid("sort direction must be asc or desc, got %q", sortDir)
	}

	return fmt.Sprintf("ORDER BY %s %s", sortKey, strings.ToUpper(sortDir)), nil
}

// normalizeLimit applies the configured page size cap. A zero limit
// means "one full page"; negative limits are rejected.
func normalizeLimit(limit, maxPageSize int) (int, error) {
	if limit < 0 {
		return 0, apperror.Invalid("limit must be non-negative, got %d", limit)
	}
	if limit == 0 || limit > maxPageSize {
		return maxPageSize, nil
	}
	return limit, nil
}

// isIntLike reports whether s parses as a base-10 integer, used to
// distinguish surrogate ids from uuids in identity lookups.
func isIntLike(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
