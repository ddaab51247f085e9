package filter

import "strings"

// Direction is the sort direction for one field.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortField is one parsed entry of a sort spec.
type SortField struct {
	Field     string
	Direction Direction
}

// ParseSort parses a comma-separated sort spec ("field,-other") into an
// ordered list of {field, direction} pairs, per spec.md §4.7.
func ParseSort(spec string) []SortField {
	if spec == "" {
		return nil
	}
	parts := strings.Split(spec, ",")
	out := make([]SortField, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "-") {
			out = append(out, SortField{Field: p[1:], Direction: Desc})
		} else {
			out = append(out, SortField{Field: p, Direction: Asc})
		}
	}
	return out
}

// SerializeSort re-emits fields in the same order they were parsed,
// prefixing descending entries with '-', the canonical serialization.
func SerializeSort(fields []SortField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		if f.Direction == Desc {
			parts[i] = "-" + f.Field
		} else {
			parts[i] = f.Field
		}
	}
	return strings.Join(parts, ",")
}
