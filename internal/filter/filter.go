// Package filter parses MongoDB-style query operators from a request's
// query string, per spec.md §4.6, and evaluates them client-side when the
// upstream store cannot.
package filter

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Op is one of the known comparison operators.
type Op string

const (
	Eq     Op = "$eq"
	Ne     Op = "$ne"
	Gt     Op = "$gt"
	Gte    Op = "$gte"
	Lt     Op = "$lt"
	Lte    Op = "$lte"
	In     Op = "$in"
	Nin    Op = "$nin"
	Exists Op = "$exists"
	Regex  Op = "$regex"
)

var knownOps = map[string]Op{
	"$eq": Eq, "$ne": Ne, "$gt": Gt, "$gte": Gte, "$lt": Lt, "$lte": Lte,
	"$in": In, "$nin": Nin, "$exists": Exists, "$regex": Regex,
}

// Condition is one {op: value} pair for a field.
type Condition struct {
	Op    Op
	Value any
}

// Filters is field -> list of conditions (a field may carry several
// operators, e.g. age[$gte]=18&age[$lt]=65).
type Filters map[string][]Condition

var fieldOpPattern = regexp.MustCompile(`^([^\[\]]+)\[(\$[a-zA-Z]+)\]$`)

// Parse reads field[$op]=value pairs out of a raw query string. Keys that
// don't match the field[$op] shape, or whose op isn't recognized, are
// ignored — they are assumed to belong to pagination/sort/etc. flags
// handled elsewhere.
func Parse(rawQuery string) (Filters, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	out := Filters{}
	for key, vals := range values {
		m := fieldOpPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		field, opStr := m[1], m[2]
		op, ok := knownOps[opStr]
		if !ok {
			continue
		}
		for _, raw := range vals {
			out[field] = append(out[field], Condition{Op: op, Value: coerce(op, raw)})
		}
	}
	return out, nil
}

// coerce applies the scalar coercion rules: true/false -> bool, null ->
// nil, purely numeric -> number, else string. $in/$nin split on commas
// first, coercing each element.
func coerce(op Op, raw string) any {
	if op == In || op == Nin {
		parts := strings.Split(raw, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = coerceScalar(p)
		}
		return out
	}
	return coerceScalar(raw)
}

func coerceScalar(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

// Canonicalize re-serializes Filters into a stable, sorted "field[$op]=value"
// query-parameter form, so that canonicalize(parse(s)) is idempotent
// regardless of the original key ordering.
func Canonicalize(f Filters) string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sortStrings(fields)

	var parts []string
	for _, field := range fields {
		conds := f[field]
		sortConditions(conds)
		for _, c := range conds {
			parts = append(parts, field+"["+string(c.Op)+"]="+valueString(c.Value))
		}
	}
	return strings.Join(parts, "&")
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = valueString(e)
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortConditions(c []Condition) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && string(c[j-1].Op) > string(c[j].Op); j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}
