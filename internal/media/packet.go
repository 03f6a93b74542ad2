package media

import (
	"cmp"
	"math/big"
	"math/bits"
)

// TimeBase is the rational unit of a timestamp, in seconds (Num/Den).
type TimeBase struct {
	Num int64
	Den int64
}

// Common time bases.
var (
	TimeBaseMPEG  = TimeBase{Num: 1, Den: 90000}
	TimeBaseMilli = TimeBase{Num: 1, Den: 1000}
	TimeBaseNano  = TimeBase{Num: 1, Den: 1_000_000_000}
)

// Valid reports whether tb can be used for arithmetic.
func (tb TimeBase) Valid() bool { return tb.Num > 0 && tb.Den > 0 }

// OrDefault returns tb, or def when tb is not valid.
func (tb TimeBase) OrDefault(def TimeBase) TimeBase {
	if tb.Valid() {
		return tb
	}
	return def
}

// Rescale converts ts from one time base to another, rounding to nearest.
// Intermediate products are computed exactly so 33-bit MPEG clocks survive
// conversion to nanoseconds.
func Rescale(ts int64, from, to TimeBase) int64 {
	if from == to {
		return ts
	}
	num := new(big.Int).Mul(big.NewInt(ts), big.NewInt(from.Num))
	num.Mul(num, big.NewInt(to.Den))
	den := new(big.Int).Mul(big.NewInt(from.Den), big.NewInt(to.Num))

	// Round half away from zero.
	half := new(big.Int).Rsh(den, 1)
	if num.Sign() < 0 {
		num.Sub(num, half)
	} else {
		num.Add(num, half)
	}
	return num.Quo(num, den).Int64()
}

// CompareTimestamps orders a (in base ta) against b (in base tb) without
// rounding. It returns -1, 0 or +1. Equal bases compare directly and
// cross products that fit 128 bits avoid allocation; only pathological
// time bases fall back to big.Int.
func CompareTimestamps(a int64, ta TimeBase, b int64, tb TimeBase) int {
	if ta == tb && ta.Valid() {
		return cmp.Compare(a, b)
	}
	if ta.Valid() && tb.Valid() {
		hiA, ka := bits.Mul64(uint64(ta.Num), uint64(tb.Den))
		hiB, kb := bits.Mul64(uint64(tb.Num), uint64(ta.Den))
		if hiA == 0 && hiB == 0 {
			return compareScaled(a, ka, b, kb)
		}
	}
	l := new(big.Int).Mul(big.NewInt(a), big.NewInt(ta.Num))
	l.Mul(l, big.NewInt(tb.Den))
	r := new(big.Int).Mul(big.NewInt(b), big.NewInt(tb.Num))
	r.Mul(r, big.NewInt(ta.Den))
	return l.Cmp(r)
}

// compareScaled compares a*ka with b*kb using 128-bit products.
func compareScaled(a int64, ka uint64, b int64, kb uint64) int {
	sa, sb := cmp.Compare(a, 0), cmp.Compare(b, 0)
	if sa != sb {
		return cmp.Compare(sa, sb)
	}
	if sa == 0 {
		return 0
	}
	hiA, loA := bits.Mul64(magnitude(a), ka)
	hiB, loB := bits.Mul64(magnitude(b), kb)
	c := cmp.Compare(hiA, hiB)
	if c == 0 {
		c = cmp.Compare(loA, loB)
	}
	if sa < 0 {
		return -c
	}
	return c
}

// magnitude returns |v|, including for math.MinInt64.
func magnitude(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// Packet is one timestamped unit of encoded data. The payload is copied
// through untouched; only the timing metadata is ever rescaled, and only at
// the container writer boundary.
type Packet struct {
	Data     []byte
	PTS      int64
	DTS      int64
	Duration int64
	TimeBase TimeBase
	Keyframe bool
}

// Size returns the payload length in bytes.
func (p Packet) Size() int { return len(p.Data) }
