// Package ident parses and validates the gateway's entity identifier
// grammar: type_sqid, e.g. contact_kRziM8xY. See spec.md §3, §4.1.
package ident

import "regexp"

// idPattern is the full identifier grammar: a lowercase-leading camelCase
// type, an underscore, then an alphanumeric sqid.
var idPattern = regexp.MustCompile(`^[a-z][a-zA-Z]*_[a-zA-Z0-9]+$`)

// typePattern matches the type component alone (used once the underscore
// has already been located).
var typePattern = regexp.MustCompile(`^[a-z][a-zA-Z]*$`)

// Identifier is a decoded type_sqid reference.
type Identifier struct {
	Type       string // "contact"
	Collection string // "contacts"
	ID         string // "contact_kRziM8xY" (the original string)
	Sqid       string // "kRziM8xY"
}

// Looks rejects empty strings, anything starting with '$' or '~', anything
// containing '(', anything with an uppercase first letter, and anything not
// matching the full grammar. Returns ok=false on any rejection.
func Looks(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '$', '~':
		return false
	}
	for _, r := range s {
		if r == '(' {
			return false
		}
	}
	return idPattern.MatchString(s)
}

// Parse decodes a type_sqid string. Returns false if s does not match the
// identifier grammar.
func Parse(s string) (Identifier, bool) {
	if !Looks(s) {
		return Identifier{}, false
	}
	idx := -1
	for i, r := range s {
		if r == '_' {
			idx = i
			break
		}
	}
	if idx <= 0 || idx == len(s)-1 {
		return Identifier{}, false
	}
	typ, sqid := s[:idx], s[idx+1:]
	if !typePattern.MatchString(typ) {
		return Identifier{}, false
	}
	return Identifier{
		Type:       typ,
		Collection: Pluralize(typ),
		ID:         s,
		Sqid:       sqid,
	}, true
}

// IsCollectionName reports whether s is a syntactically valid bare
// collection/word segment: [a-zA-Z][a-zA-Z0-9_-]*
var collectionPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

func IsCollectionName(s string) bool {
	return s != "" && collectionPattern.MatchString(s)
}
