package merged

import (
	"math/big"

	"github.com/revred/sharc-core/internal/sharcerr"
)

// FIX128Scale is the fixed number of decimal digits held after the point in
// a FIX128 value: the logical value equals the 128-bit signed integer
// (hi<<64 | uint64(lo), two's complement) divided by 10^FIX128Scale.
const FIX128Scale = 9

var scaleFactor = func() *big.Int {
	f := big.NewInt(1)
	ten := big.NewInt(10)
	for i := 0; i < FIX128Scale; i++ {
		f.Mul(f, ten)
	}
	return f
}()

// ToHiLo splits a scaled 128-bit integer into its two physical int64
// columns (__dhi holds the high 64 bits, __dlo the low 64 bits, both
// two's-complement so the pair round-trips negative values).
func ToHiLo(v *big.Int) (hi, lo int64) {
	var u big.Int
	u.Abs(v)
	mask := new(big.Int).SetUint64(^uint64(0))
	loPart := new(big.Int).And(&u, mask)
	hiPart := new(big.Int).Rsh(&u, 64)
	hi = int64(hiPart.Uint64())
	lo = int64(loPart.Uint64())
	if v.Sign() < 0 {
		// Negate the 128-bit pair via two's complement.
		hiU, loU := uint64(hi), uint64(lo)
		loU = ^loU + 1
		carry := uint64(0)
		if loU == 0 {
			carry = 1
		}
		hiU = ^hiU + carry
		hi, lo = int64(hiU), int64(loU)
	}
	return hi, lo
}

// FromHiLo reassembles the scaled 128-bit integer from its physical columns.
func FromHiLo(hi, lo int64) *big.Int {
	hiU, loU := uint64(hi), uint64(lo)
	neg := hiU&(1<<63) != 0
	if neg {
		loU = ^loU + 1
		carry := uint64(0)
		if loU == 0 {
			carry = 1
		}
		hiU = ^hiU + carry
	}
	v := new(big.Int).Lsh(new(big.Int).SetUint64(hiU), 64)
	v.Or(v, new(big.Int).SetUint64(loU))
	if neg {
		v.Neg(v)
	}
	return v
}

// ParseFIX128 parses a plain decimal literal (e.g. "12.345", "-0.5") into
// its scaled hi/lo physical pair.
func ParseFIX128(s string) (hi, lo int64, err error) {
	r := new(big.Rat)
	if _, ok := r.SetString(s); !ok {
		return 0, 0, sharcerr.New(sharcerr.InvalidArgument, "merged: invalid decimal literal")
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scaleFactor))
	if !scaled.IsInt() {
		// Round half away from zero at the configured scale.
		num, den := scaled.Num(), scaled.Denom()
		q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
		if new(big.Int).Abs(rem).Mul(rem, big.NewInt(2)).CmpAbs(den) >= 0 {
			if num.Sign() >= 0 {
				q.Add(q, big.NewInt(1))
			} else {
				q.Sub(q, big.NewInt(1))
			}
		}
		hi, lo = ToHiLo(q)
		return hi, lo, nil
	}
	hi, lo = ToHiLo(scaled.Num())
	return hi, lo, nil
}

// FormatFIX128 renders the scaled hi/lo pair as a plain decimal string.
func FormatFIX128(hi, lo int64) string {
	v := FromHiLo(hi, lo)
	r := new(big.Rat).SetFrac(v, scaleFactor)
	return r.FloatString(FIX128Scale)
}

// AddFIX128 adds two FIX128 values given by their physical pairs.
func AddFIX128(ahi, alo, bhi, blo int64) (hi, lo int64) {
	sum := new(big.Int).Add(FromHiLo(ahi, alo), FromHiLo(bhi, blo))
	return ToHiLo(sum)
}
