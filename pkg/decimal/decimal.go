// Package decimal implements fixed-point arithmetic for prices, sizes, and
// PnL. Every value is an integer number of 1e-18ths (scale 18) held in a
// bounded big.Int standing in for a signed 128-bit integer — Go has no
// native int128, so overflow is checked by hand against the 128-bit range
// on every operation instead of trusting machine-word wraparound.
//
// Floats are never used for money: Add/Sub/Mul/Div operate on the scaled
// integer directly, and conversions to/from decimal strings are exact.
package decimal

import (
	"fmt"
	"math/big"
	"strconv"
)

// Scale is the number of fractional decimal digits every Decimal carries.
const Scale = 18

var (
	scaleFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(Scale), nil)

	// maxMagnitude is 2^127 - 1, the largest magnitude a signed 128-bit
	// integer can represent. Every arithmetic result is checked against
	// ±maxMagnitude; crossing it is an overflow, not a silent wrap.
	maxMagnitude = func() *big.Int {
		m := new(big.Int).Lsh(big.NewInt(1), 127)
		return m.Sub(m, big.NewInt(1))
	}()
)

// Decimal is a fixed-scale signed decimal value: the underlying integer
// equals the represented number multiplied by 10^Scale.
type Decimal struct {
	v *big.Int
}

// Zero is the additive identity.
var Zero = Decimal{v: big.NewInt(0)}

// big returns the backing integer, treating the zero value (nil pointer) as
// zero so Decimal's zero value is usable without initialization.
func (d Decimal) big() *big.Int {
	if d.v == nil {
		return new(big.Int)
	}
	return d.v
}

func fromBig(v *big.Int) (Decimal, error) {
	if v.CmpAbs(maxMagnitude) > 0 {
		return Decimal{}, fmt.Errorf("decimal: overflow: magnitude %s exceeds 128-bit range", v.String())
	}
	return Decimal{v: v}, nil
}

// New builds a Decimal representing the integer value units (e.g. New(2)
// is the decimal value "2", not 2*10^-18). Mostly useful for small integer
// literals and constants; NewFromString is the only correct entry point for
// anything with a fractional part.
func New(units int64) Decimal {
	return Decimal{v: new(big.Int).Mul(big.NewInt(units), scaleFactor)}
}

// NewFromString parses a base-10 decimal literal ("123.456", "-0.5", "10")
// into a scale-18 Decimal. Returns an error on malformed input or on a
// value whose magnitude exceeds the 128-bit range.
func NewFromString(s string) (Decimal, error) {
	if s == "" {
		return Decimal{}, fmt.Errorf("decimal: empty string")
	}

	neg := false
	i := 0
	switch s[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}
	if i >= len(s) {
		return Decimal{}, fmt.Errorf("decimal: invalid literal %q", s)
	}

	intPart := s[i:]
	fracPart := ""
	if dot := indexByte(intPart, '.'); dot >= 0 {
		fracPart = intPart[dot+1:]
		intPart = intPart[:dot]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return Decimal{}, fmt.Errorf("decimal: invalid literal %q", s)
		}
	}
	// Fractional digits beyond Scale are truncated, not rejected: feeds can
	// legally deliver more precision than the fixed scale carries.
	if len(fracPart) > Scale {
		fracPart = fracPart[:Scale]
	}
	for len(fracPart) < Scale {
		fracPart += "0"
	}

	digits := intPart + fracPart
	for _, c := range digits {
		if c < '0' || c > '9' {
			return Decimal{}, fmt.Errorf("decimal: invalid literal %q", s)
		}
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("decimal: invalid literal %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return fromBig(v)
}

// MustFromString is NewFromString but panics on error; for test fixtures
// and compile-time-known constants only.
func MustFromString(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromFloat builds a Decimal from a float64 via its shortest round-trip
// decimal representation. Binary floats cannot represent most decimal
// fractions exactly, so this conversion is lossy in general — it exists for
// inputs where that loss is acceptable (config defaults, display math) and
// must never sit on a round-trip-critical path such as an outbound price or
// size, where NewFromString on a literal is the only correct entry point.
func FromFloat(f float64) (Decimal, error) {
	return NewFromString(strconv.FormatFloat(f, 'f', -1, 64))
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// String renders the value as a base-10 decimal literal with trailing
// fractional zeros trimmed; an all-zero fraction drops the point entirely.
func (d Decimal) String() string {
	neg := d.big().Sign() < 0
	abs := new(big.Int).Abs(d.big())

	digits := abs.String()
	for len(digits) <= Scale {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-Scale]
	fracPart := digits[len(digits)-Scale:]

	// Trim trailing zeros in the fractional part but keep at least one digit
	// only if there's a non-zero fraction; otherwise drop the point entirely.
	end := len(fracPart)
	for end > 0 && fracPart[end-1] == '0' {
		end--
	}
	fracPart = fracPart[:end]

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// Add returns d + o, erroring on 128-bit overflow.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	return fromBig(new(big.Int).Add(d.big(), o.big()))
}

// Sub returns d - o, erroring on 128-bit overflow.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	return fromBig(new(big.Int).Sub(d.big(), o.big()))
}

// Mul returns d * o, rescaling back down to Scale and erroring on overflow.
func (d Decimal) Mul(o Decimal) (Decimal, error) {
	prod := new(big.Int).Mul(d.big(), o.big())
	prod.Quo(prod, scaleFactor)
	return fromBig(prod)
}

// Div returns d / o at Scale precision (truncated toward zero on the final
// digit), erroring on division by zero or overflow.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.big().Sign() == 0 {
		return Decimal{}, fmt.Errorf("decimal: division by zero")
	}
	num := new(big.Int).Mul(d.big(), scaleFactor)
	q := new(big.Int).Quo(num, o.big())
	return fromBig(q)
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	return Decimal{v: new(big.Int).Neg(d.big())}
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	return Decimal{v: new(big.Int).Abs(d.big())}
}

// Cmp returns -1, 0, or 1 per standard comparison semantics.
func (d Decimal) Cmp(o Decimal) int {
	return d.big().Cmp(o.big())
}

// IsZero reports whether d == 0.
func (d Decimal) IsZero() bool {
	return d.v == nil || d.v.Sign() == 0
}

// Sign returns -1, 0, or 1 matching the value's sign.
func (d Decimal) Sign() int {
	if d.v == nil {
		return 0
	}
	return d.v.Sign()
}

// GreaterThan reports d > o.
func (d Decimal) GreaterThan(o Decimal) bool { return d.Cmp(o) > 0 }

// LessThan reports d < o.
func (d Decimal) LessThan(o Decimal) bool { return d.Cmp(o) < 0 }

// GreaterThanOrEqual reports d >= o.
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.Cmp(o) >= 0 }

// LessThanOrEqual reports d <= o.
func (d Decimal) LessThanOrEqual(o Decimal) bool { return d.Cmp(o) <= 0 }

// Equal reports d == o.
func (d Decimal) Equal(o Decimal) bool { return d.Cmp(o) == 0 }

// Float64 converts to a float64, for display/metrics only — never feed the
// result back into a signed wire payload or a PnL accumulator.
func (d Decimal) Float64() float64 {
	f := new(big.Float).SetInt(d.big())
	scale := new(big.Float).SetInt(scaleFactor)
	f.Quo(f, scale)
	out, _ := f.Float64()
	return out
}

// RoundToTick rounds d to the nearest multiple of tick using half-away-
// from-zero rounding (ties round away from zero, matching Hyperliquid's
// own price-rounding convention). tick must be positive.
func (d Decimal) RoundToTick(tick Decimal) (Decimal, error) {
	if tick.big().Sign() <= 0 {
		return Decimal{}, fmt.Errorf("decimal: tick must be positive")
	}

	neg := d.big().Sign() < 0
	abs := new(big.Int).Abs(d.big())
	tickAbs := new(big.Int).Abs(tick.big())

	quo, rem := new(big.Int).QuoRem(abs, tickAbs, new(big.Int))
	twiceRem := new(big.Int).Lsh(rem, 1)
	if twiceRem.Cmp(tickAbs) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	rounded := new(big.Int).Mul(quo, tickAbs)
	if neg {
		rounded.Neg(rounded)
	}
	return fromBig(rounded)
}

// MarshalJSON encodes the Decimal as a JSON string, never a bare number —
// JSON numbers lose precision past float64's 53 mantissa bits and Hyperliquid
// prices/sizes are always transmitted as strings on the wire.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare JSON number, since
// some feeds (candles) emit numeric fields.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := NewFromString(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
