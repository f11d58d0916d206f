package fixed

import (
	"fmt"
	"math/big"
	"strings"
)

// Digits is the number of fractional decimal digits carried by a Num.
// One scaled unit equals 10^18, matching the ledger's wire representation.
const Digits = 18

var (
	unit    = new(big.Int).Exp(big.NewInt(10), big.NewInt(Digits), nil)
	bigZero = new(big.Int)
)

// Num is an immutable fixed-point number stored as a scaled integer.
// All divisions truncate toward zero so results are bit-reproducible.
// The zero value is usable and equals 0.
type Num struct {
	raw *big.Int
}

func (n Num) big() *big.Int {
	if n.raw == nil {
		return bigZero
	}
	return n.raw
}

// Zero returns the zero value.
func Zero() Num { return Num{} }

// One returns one scaled unit.
func One() Num { return Num{raw: new(big.Int).Set(unit)} }

// FromInt returns v as a scaled Num (v whole units).
func FromInt(v int64) Num {
	return Num{raw: new(big.Int).Mul(big.NewInt(v), unit)}
}

// FromRaw wraps an already-scaled integer. The argument is copied.
func FromRaw(raw *big.Int) Num {
	if raw == nil {
		return Num{}
	}
	return Num{raw: new(big.Int).Set(raw)}
}

// Parse converts a decimal string ("300", "0.1", "-2.5") into a Num.
// Fractional digits beyond Digits are truncated.
func Parse(s string) (Num, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Num{}, fmt.Errorf("fixed: empty input")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > Digits {
		fracPart = fracPart[:Digits]
	}
	fracPart += strings.Repeat("0", Digits-len(fracPart))
	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return Num{}, fmt.Errorf("fixed: invalid number %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return Num{raw: v}, nil
}

// MustParse is Parse that panics on malformed input. Intended for constants
// and configuration values validated at startup.
func MustParse(s string) Num {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Add returns n + o.
func (n Num) Add(o Num) Num {
	return Num{raw: new(big.Int).Add(n.big(), o.big())}
}

// Sub returns n - o.
func (n Num) Sub(o Num) Num {
	return Num{raw: new(big.Int).Sub(n.big(), o.big())}
}

// Neg returns -n.
func (n Num) Neg() Num {
	return Num{raw: new(big.Int).Neg(n.big())}
}

// MulInt returns n * v for a plain integer v.
func (n Num) MulInt(v int64) Num {
	return Num{raw: new(big.Int).Mul(n.big(), big.NewInt(v))}
}

// DivInt returns n / v for a plain integer v, truncated toward zero.
// Division by zero returns zero.
func (n Num) DivInt(v int64) Num {
	if v == 0 {
		return Num{}
	}
	return Num{raw: new(big.Int).Quo(n.big(), big.NewInt(v))}
}

// Mul returns n * o descaled by one unit, truncated toward zero.
func (n Num) Mul(o Num) Num {
	r := new(big.Int).Mul(n.big(), o.big())
	return Num{raw: r.Quo(r, unit)}
}

// Div returns n / o scaled by one unit, truncated toward zero.
// Division by zero returns zero; callers validate denominators.
func (n Num) Div(o Num) Num {
	if o.IsZero() {
		return Num{}
	}
	r := new(big.Int).Mul(n.big(), unit)
	return Num{raw: r.Quo(r, o.big())}
}

// Quo returns the plain integer quotient floor(n / o) of two scaled values,
// truncated toward zero. Used for tick counts. Division by zero returns 0.
func (n Num) Quo(o Num) int64 {
	if o.IsZero() {
		return 0
	}
	q := new(big.Int).Quo(n.big(), o.big())
	return q.Int64()
}

// Cmp compares n and o: -1 if n < o, 0 if equal, +1 if n > o.
func (n Num) Cmp(o Num) int { return n.big().Cmp(o.big()) }

// Equal reports n == o.
func (n Num) Equal(o Num) bool { return n.Cmp(o) == 0 }

// LT reports n < o.
func (n Num) LT(o Num) bool { return n.Cmp(o) < 0 }

// LTE reports n <= o.
func (n Num) LTE(o Num) bool { return n.Cmp(o) <= 0 }

// GT reports n > o.
func (n Num) GT(o Num) bool { return n.Cmp(o) > 0 }

// GTE reports n >= o.
func (n Num) GTE(o Num) bool { return n.Cmp(o) >= 0 }

// IsZero reports n == 0.
func (n Num) IsZero() bool { return n.big().Sign() == 0 }

// IsNeg reports n < 0.
func (n Num) IsNeg() bool { return n.big().Sign() < 0 }

// Abs returns |n|.
func (n Num) Abs() Num {
	return Num{raw: new(big.Int).Abs(n.big())}
}

// Min returns the smaller of n and o.
func (n Num) Min(o Num) Num {
	if n.Cmp(o) <= 0 {
		return n
	}
	return o
}

// Raw returns a copy of the scaled integer representation.
func (n Num) Raw() *big.Int { return new(big.Int).Set(n.big()) }

// Float64 returns an approximate float value, for metrics only.
func (n Num) Float64() float64 {
	f, _ := new(big.Rat).SetFrac(n.big(), unit).Float64()
	return f
}

// String renders the decimal form with trailing zeros trimmed.
func (n Num) String() string {
	v := n.big()
	sign := ""
	abs := new(big.Int).Abs(v)
	if v.Sign() < 0 {
		sign = "-"
	}
	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := fmt.Sprintf("%0*s", Digits, r.String())
	frac = strings.TrimRight(frac, "0")
	return sign + q.String() + "." + frac
}

// MarshalJSON encodes the decimal string form.
func (n Num) MarshalJSON() ([]byte, error) {
	return []byte(`"` + n.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal string or bare JSON number.
func (n *Num) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}
