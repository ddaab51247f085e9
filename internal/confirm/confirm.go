// Package confirm implements the GET-mutation confirmation protocol: a
// stateless, HMAC-signed, time-bucketed two-phase commit that makes
// destructive operations safe to expose as click-through URLs. See
// spec.md §3 (ConfirmParams) and §4.8.
package confirm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is the default confirmation window (300000ms).
const DefaultTTL = 300 * time.Second

// Config carries the recognized mutation-confirmation option surface (the
// "Configuration objects" design note): the HMAC secret, the bucket TTL,
// and an optional explicit action allow-list overriding the default
// read/write heuristic.
type Config struct {
	Secret  string
	TTL     time.Duration
	Actions []string // explicit override; empty means use the default heuristic
}

func (c Config) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

// defaultMutating is the built-in always-confirm verb set.
var defaultMutating = map[string]bool{"create": true, "update": true, "delete": true, "revert": true}

// knownReads is the built-in never-confirm verb set.
var knownReads = map[string]bool{
	"list": true, "get": true, "find": true, "search": true,
	"count": true, "export": true, "schema": true,
}

// RequiresConfirm reports whether action needs the two-phase protocol, per
// spec.md §4.8: the explicit Actions list if configured, else the default
// mutating set plus any lowercase-alphabetic verb outside the read set and
// not starting with '$'.
func (c Config) RequiresConfirm(action string) bool {
	if len(c.Actions) > 0 {
		for _, a := range c.Actions {
			if a == action {
				return true
			}
		}
		return false
	}
	if action == "" {
		return false
	}
	if strings.HasPrefix(action, "$") {
		return false
	}
	if defaultMutating[action] {
		return true
	}
	if knownReads[action] {
		return false
	}
	for _, r := range action {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// TimeBucket returns floor(now_ms / ttl_ms), the windowing unit the hash
// is stable within.
func TimeBucket(now time.Time, ttl time.Duration) int64 {
	return now.UnixMilli() / ttl.Milliseconds()
}

// Params is the (action, type, sortedData, tenant, userId, timeBucket)
// fingerprint input from spec.md §3.
type Params struct {
	Action string
	Type   string
	Data   map[string]string
	Tenant string
	UserID string
}

// payload serializes Params at a given bucket: sortedData is "k=v" pairs
// joined by '&' in key-sorted order; the six components are joined by '|'.
func payload(p Params, bucket int64) string {
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + p.Data[k]
	}
	sortedData := strings.Join(parts, "&")

	return strings.Join([]string{
		p.Action, p.Type, sortedData, p.Tenant, p.UserID,
		strconv.FormatInt(bucket, 10),
	}, "|")
}

// Hash returns the first 6 hex characters of HMAC-SHA-256 over the
// fingerprint payload at the given bucket, keyed by secret.
func Hash(secret string, p Params, bucket int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload(p, bucket)))
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum)[:6]
}

// Generate computes the confirmation hash for p at the current time.
func (c Config) Generate(p Params, now time.Time) string {
	return Hash(c.Secret, p, TimeBucket(now, c.ttl()))
}

// Validate accepts the current or previous time bucket to cover boundary
// races (§3 invariant), comparing both in constant time.
func (c Config) Validate(p Params, now time.Time, hash string) bool {
	cur := TimeBucket(now, c.ttl())
	for _, b := range []int64{cur, cur - 1} {
		expected := Hash(c.Secret, p, b)
		if hmac.Equal([]byte(expected), []byte(hash)) {
			return true
		}
	}
	return false
}
