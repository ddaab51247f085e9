package sqid

import (
	"fmt"
	"strings"
)

// Config controls sqid encoding. MinLength defaults to 8; Seed, if non-nil,
// deterministically shuffles the alphabet for this namespace.
type Config struct {
	MinLength int
	Seed      *uint32
	Alphabet  string // overrides the derived alphabet; mainly for tests
}

// Codec encodes/decodes lists of non-negative integers to/from a single
// URL-safe string. The encoding is: one char giving the element count,
// then per element a length-char followed by that many base-N digits (N =
// len(alphabet)), then padding filler to reach MinLength. Decoding reads
// exactly the declared element count and ignores trailing padding, so the
// round trip decode(encode(xs)) == xs holds regardless of padding.
type Codec struct {
	alphabet string
	index    map[byte]int
	minLen   int
}

// New builds a Codec from cfg, applying defaults (MinLength 8, the default
// alphabet, optionally shuffled by Seed).
func New(cfg Config) *Codec {
	alphabet := cfg.Alphabet
	if alphabet == "" {
		alphabet = DefaultAlphabet
		if cfg.Seed != nil {
			alphabet = Shuffle(alphabet, *cfg.Seed)
		}
	}
	minLen := cfg.MinLength
	if minLen <= 0 {
		minLen = 8
	}
	idx := make(map[byte]int, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		idx[alphabet[i]] = i
	}
	return &Codec{alphabet: alphabet, index: idx, minLen: minLen}
}

func (c *Codec) base() int { return len(c.alphabet) }

func (c *Codec) toDigits(n uint64) string {
	if n == 0 {
		return string(c.alphabet[0])
	}
	base := uint64(c.base())
	var buf []byte
	for n > 0 {
		buf = append(buf, c.alphabet[n%base])
		n /= base
	}
	// reverse
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

func (c *Codec) fromDigits(s string) (uint64, error) {
	base := uint64(c.base())
	var n uint64
	for i := 0; i < len(s); i++ {
		v, ok := c.index[s[i]]
		if !ok {
			return 0, fmt.Errorf("sqid: invalid character %q", s[i])
		}
		n = n*base + uint64(v)
	}
	return n, nil
}

// Encode produces a sqid string for nums (all non-negative).
func (c *Codec) Encode(nums []uint64) (string, error) {
	if len(nums) == 0 {
		return "", fmt.Errorf("sqid: cannot encode an empty list")
	}
	if len(nums) >= c.base() {
		return "", fmt.Errorf("sqid: too many elements for this alphabet")
	}

	var b strings.Builder
	b.WriteByte(c.alphabet[len(nums)])
	for _, n := range nums {
		digits := c.toDigits(n)
		if len(digits) >= c.base() {
			return "", fmt.Errorf("sqid: value %d too large to encode", n)
		}
		b.WriteByte(c.alphabet[len(digits)])
		b.WriteString(digits)
	}

	out := b.String()
	if len(out) < c.minLen {
		out += c.padding(len(out), c.minLen-len(out))
	}
	return out, nil
}

// padding deterministically fills length extra characters, rotating
// through the alphabet starting at an offset derived from the string's
// current length so that padding is stable but content-dependent.
func (c *Codec) padding(offset, length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteByte(c.alphabet[(offset+i)%c.base()])
	}
	return b.String()
}

// Decode recovers the integer list encoded by Encode, ignoring any
// minLength padding appended after the real payload.
func (c *Codec) Decode(s string) ([]uint64, error) {
	if s == "" {
		return nil, fmt.Errorf("sqid: empty string")
	}
	countIdx, ok := c.index[s[0]]
	if !ok {
		return nil, fmt.Errorf("sqid: invalid count character")
	}
	pos := 1
	nums := make([]uint64, 0, countIdx)
	for i := 0; i < countIdx; i++ {
		if pos >= len(s) {
			return nil, fmt.Errorf("sqid: truncated input")
		}
		lenIdx, ok := c.index[s[pos]]
		if !ok {
			return nil, fmt.Errorf("sqid: invalid length character")
		}
		pos++
		if pos+lenIdx > len(s) {
			return nil, fmt.Errorf("sqid: truncated digits")
		}
		digits := s[pos : pos+lenIdx]
		pos += lenIdx
		n, err := c.fromDigits(digits)
		if err != nil {
			return nil, err
		}
		nums = append(nums, n)
	}
	return nums, nil
}
