package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Query adds the logical composition operators ($or, $and, $not, $nor) on
// top of field-level Filters. These aren't parsed from a query string —
// the grammar in Parse only covers field[$op]=value — they're built
// programmatically by a convention that needs to express "match any of
// these sub-queries" (spec.md §4.6: "supported at top level when a
// framework caller constructs them explicitly").
type Query struct {
	Fields Filters
	Or     []Query
	And    []Query
	Not    *Query
	Nor    []Query
}

// Match evaluates q against doc, a JSON-like document represented as
// map[string]any. Used when the upstream store can't evaluate filters
// itself; semantics must match what the upstream would have done.
func Match(q Query, doc map[string]any) bool {
	for field, conds := range q.Fields {
		val := lookup(doc, field)
		for _, c := range conds {
			if !matchCondition(c, val) {
				return false
			}
		}
	}
	for _, sub := range q.And {
		if !Match(sub, doc) {
			return false
		}
	}
	if len(q.Or) > 0 {
		any := false
		for _, sub := range q.Or {
			if Match(sub, doc) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	if q.Not != nil && Match(*q.Not, doc) {
		return false
	}
	for _, sub := range q.Nor {
		if Match(sub, doc) {
			return false
		}
	}
	return true
}

// lookup supports a dotted path for nested documents, e.g. "address.city".
func lookup(doc map[string]any, field string) any {
	parts := strings.Split(field, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func matchCondition(c Condition, val any) bool {
	switch c.Op {
	case Eq:
		return equal(val, c.Value)
	case Ne:
		return !equal(val, c.Value)
	case Gt:
		return compare(val, c.Value) > 0
	case Gte:
		return compare(val, c.Value) >= 0
	case Lt:
		return compare(val, c.Value) < 0
	case Lte:
		return compare(val, c.Value) <= 0
	case In:
		list, _ := c.Value.([]any)
		for _, item := range list {
			if equal(val, item) {
				return true
			}
		}
		return false
	case Nin:
		list, _ := c.Value.([]any)
		for _, item := range list {
			if equal(val, item) {
				return false
			}
		}
		return true
	case Exists:
		want, _ := c.Value.(bool)
		return (val != nil) == want
	case Regex:
		pattern, _ := c.Value.(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		s, _ := val.(string)
		return re.MatchString(s)
	default:
		return false
	}
}

func equal(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b) && sameNilness(a, b)
}

func sameNilness(a, b any) bool {
	return (a == nil) == (b == nil)
}

func compare(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(as, bs)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
