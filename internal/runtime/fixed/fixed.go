// Package fixed models the narrow fixed-width integer types of the compute
// core (ap_uint<N> / ap_int<N>) on top of int64 arithmetic.
package fixed

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// MaxBits is the widest precision representable in an int64 without
// losing the sign bit.
const MaxBits = 63

// Precision describes an N-bit signed or unsigned integer type.
type Precision struct {
	Bits   uint
	Signed bool
}

// Unsigned returns the precision of ap_uint<n>.
func Unsigned(n uint) Precision { return Precision{Bits: n} }

// Signed returns the precision of ap_int<n>.
func Signed(n uint) Precision { return Precision{Bits: n, Signed: true} }

// Validate reports whether p can be represented.
func (p Precision) Validate() error {
	if p.Bits == 0 {
		return fmt.Errorf("fixed: precision must have at least 1 bit")
	}
	if p.Bits > MaxBits {
		return fmt.Errorf("fixed: precision %d bits exceeds %d", p.Bits, MaxBits)
	}
	if p.Signed && p.Bits < 2 {
		return fmt.Errorf("fixed: signed precision needs at least 2 bits")
	}
	return nil
}

// Min returns the smallest representable value.
func (p Precision) Min() int64 {
	if !p.Signed {
		return 0
	}
	return -(int64(1) << (p.Bits - 1))
}

// Max returns the largest representable value.
func (p Precision) Max() int64 {
	if p.Signed {
		return int64(1)<<(p.Bits-1) - 1
	}
	return int64(1)<<p.Bits - 1
}

// Contains reports whether v fits in p.
func (p Precision) Contains(v int64) bool {
	return v >= p.Min() && v <= p.Max()
}

// Saturate clamps v into the representable range of p. Values are never
// wrapped.
func (p Precision) Saturate(v int64) int64 {
	if lo := p.Min(); v < lo {
		return lo
	}
	if hi := p.Max(); v > hi {
		return hi
	}
	return v
}

// Wrap truncates v to the low Bits bits, as an HLS assignment would.
// Used only for synthetic test patterns, never on the output path.
func (p Precision) Wrap(v int64) int64 {
	mask := uint64(1)<<p.Bits - 1
	u := uint64(v) & mask
	if p.Signed && u&(uint64(1)<<(p.Bits-1)) != 0 {
		return int64(u | ^mask)
	}
	return int64(u)
}

// String renders p the way the HLS headers spell it.
func (p Precision) String() string {
	if p.Signed {
		return fmt.Sprintf("ap_int<%d>", p.Bits)
	}
	return fmt.Sprintf("ap_uint<%d>", p.Bits)
}

// ParsePrecision accepts "u8", "s16", "i4", "ap_uint<4>" and "ap_int<12>".
func ParsePrecision(s string) (Precision, error) {
	raw := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	var (
		signed bool
		num    string
	)
	switch {
	case strings.HasPrefix(raw, "ap_uint<") && strings.HasSuffix(raw, ">"):
		num = raw[len("ap_uint<") : len(raw)-1]
	case strings.HasPrefix(raw, "ap_int<") && strings.HasSuffix(raw, ">"):
		signed, num = true, raw[len("ap_int<"):len(raw)-1]
	case strings.HasPrefix(raw, "u"):
		num = raw[1:]
	case strings.HasPrefix(raw, "s"), strings.HasPrefix(raw, "i"):
		signed, num = true, raw[1:]
	default:
		return Precision{}, fmt.Errorf("fixed: unrecognized precision %q", s)
	}
	n, err := strconv.ParseUint(num, 10, 8)
	if err != nil {
		return Precision{}, fmt.Errorf("fixed: bad bit width in %q: %w", s, err)
	}
	p := Precision{Bits: uint(n), Signed: signed}
	if err := p.Validate(); err != nil {
		return Precision{}, err
	}
	return p, nil
}

// ShiftRight is an arithmetic right shift (rounds toward negative infinity).
func ShiftRight(v int64, shift uint) int64 {
	if shift == 0 {
		return v
	}
	if shift >= 64 {
		if v < 0 {
			return -1
		}
		return 0
	}
	return v >> shift
}

// Narrow applies the output quantization rule: shift then saturate.
func Narrow(acc int64, shift uint, out Precision) int64 {
	return out.Saturate(ShiftRight(acc, shift))
}

// CeilLog2 returns ceil(log2(n)) for n >= 1, and 0 for n <= 1.
func CeilLog2(n int) uint {
	if n <= 1 {
		return 0
	}
	return uint(bits.Len64(uint64(n - 1)))
}

// ProductBits is the width needed to hold the product of values from a
// and b without overflow.
func ProductBits(a, b Precision) Precision {
	switch {
	case a.Signed && b.Signed:
		return Signed(a.Bits + b.Bits)
	case a.Signed || b.Signed:
		return Signed(a.Bits + b.Bits + 1)
	default:
		return Unsigned(a.Bits + b.Bits)
	}
}

// AccumulatorBits is the width needed to sum terms products of a and b.
func AccumulatorBits(a, b Precision, terms int) Precision {
	p := ProductBits(a, b)
	p.Bits += CeilLog2(terms)
	return p
}
