// Package fncall parses the function-call URL syntax name(arg1,arg2,key=value)
// described in spec.md §4.4.
package fncall

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/latticeframe/gateway/internal/ident"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.]*$`)

// ArgKind classifies one positional argument token.
type ArgKind string

const (
	KindURL    ArgKind = "url"
	KindNumber ArgKind = "number"
	KindEntity ArgKind = "entity"
	KindString ArgKind = "string"
)

// Arg is one classified positional argument.
type Arg struct {
	Raw  string
	Kind ArgKind
}

// Call is a parsed function-call segment: name(args, k=v).
type Call struct {
	Name   string
	Args   []Arg
	Kwargs map[string]string
}

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
var kwargKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.]*$`)

// Looks reports whether segment could plausibly be a function call: it
// contains '(' before a later ')'.
func Looks(segment string) bool {
	open := strings.IndexByte(segment, '(')
	if open < 0 {
		return false
	}
	close := strings.LastIndexByte(segment, ')')
	return close > open
}

// Parse parses a single path segment as a function call. Commas inside a
// value that itself starts with an http(s):// scheme are not guaranteed to
// round-trip (spec.md §9 Open Questions) — callers needing a literal comma
// in a URL argument must percent-encode it.
func Parse(segment string) (Call, bool) {
	open := strings.IndexByte(segment, '(')
	if open < 0 {
		return Call{}, false
	}
	close := strings.LastIndexByte(segment, ')')
	if close < open {
		return Call{}, false
	}

	name := segment[:open]
	if !namePattern.MatchString(name) {
		return Call{}, false
	}

	body := segment[open+1 : close]
	call := Call{Name: name, Kwargs: map[string]string{}}

	for _, tok := range splitArgs(body) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if key, val, ok := splitKwarg(tok); ok {
			call.Kwargs[key] = val
			continue
		}
		call.Args = append(call.Args, classify(tok))
	}

	return call, true
}

// splitArgs splits the argument body on commas, leaving commas inside an
// http(s):// value's scheme prefix alone isn't attempted (a simple split
// suffices for the common case per spec.md §4.4).
func splitArgs(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, ",")
}

func splitKwarg(tok string) (key, value string, ok bool) {
	eq := strings.IndexByte(tok, '=')
	if eq < 0 {
		return "", "", false
	}
	key = tok[:eq]
	if !kwargKeyPattern.MatchString(key) {
		return "", "", false
	}
	return key, tok[eq+1:], true
}

// Classify exposes the same token classification Parse uses internally,
// for callers building a Call from already-tokenized arguments (e.g. the
// RPC transport, whose request body supplies args as a JSON array rather
// than a path segment).
func Classify(tok string) Arg {
	return classify(tok)
}

func classify(tok string) Arg {
	switch {
	case strings.HasPrefix(tok, "http://"), strings.HasPrefix(tok, "https://"):
		return Arg{Raw: tok, Kind: KindURL}
	case numberPattern.MatchString(tok):
		return Arg{Raw: tok, Kind: KindNumber}
	case ident.Looks(tok):
		return Arg{Raw: tok, Kind: KindEntity}
	default:
		return Arg{Raw: tok, Kind: KindString}
	}
}

// AsFloat converts a KindNumber argument's raw text to a float64, mainly
// for handlers that want numeric args without re-parsing.
func AsFloat(a Arg) (float64, bool) {
	if a.Kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(a.Raw, 64)
	return f, err == nil
}
