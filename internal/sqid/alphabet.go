// Package sqid implements the gateway's compact integer-list encoding used
// to produce the sqid segment of an entity identifier, plus the type
// registry that hands out the typeNum component. See spec.md §3, §4.2.
package sqid

// DefaultAlphabet is the 62-character alphabet used when no shuffle seed is
// configured.
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Shuffle deterministically permutes alphabet using a linear-congruential
// Fisher-Yates variant seeded by seed, so that each namespace configured
// with a distinct seed gets a unique, reproducible alphabet.
func Shuffle(alphabet string, seed uint32) string {
	chars := []byte(alphabet)
	state := seed
	next := func() uint32 {
		// Numerical Recipes LCG constants.
		state = state*1664525 + 1013904223
		return state
	}
	for i := len(chars) - 1; i > 0; i-- {
		j := int(next() % uint32(i+1))
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars)
}
