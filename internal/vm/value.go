package vm

import (
	"fmt"
	"math"

	langerrors "stacklang/internal/errors"
)

// Kind tags the three scalar variants a Value can hold (spec S3).
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindStr
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged numeric/string scalar. It is small enough to pass by
// value everywhere, the way the donor's own scalar case of its Value
// interface{} ends up being: a plain Go primitive under the hood, not a
// pointer -- here just made explicit with a tag instead of a type switch
// over interface{}.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// IntValue constructs an integer Value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue constructs a float Value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StrValue constructs a string Value.
func StrValue(s string) Value { return Value{kind: KindStr, s: s} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsInt() bool     { return v.kind == KindInt }
func (v Value) IsFloat() bool   { return v.kind == KindFloat }
func (v Value) IsStr() bool     { return v.kind == KindStr }
func (v Value) isNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Int returns the raw int64 payload; only meaningful when IsInt().
func (v Value) Int() int64 { return v.i }

// Float returns the raw float64 payload; only meaningful when IsFloat().
func (v Value) Float() float64 { return v.f }

// Str returns the raw string payload; only meaningful when IsStr().
func (v Value) Str() string { return v.s }

// AsFloat widens an int to float, or returns a float as-is.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// TypesMatch reports whether ordering/equality between a and b is defined:
// both numeric (int and float mix freely) or both strings (spec S4.1).
func TypesMatch(a, b Value) bool {
	if a.isNumeric() && b.isNumeric() {
		return true
	}
	return a.kind == KindStr && b.kind == KindStr
}

func unsupported(op string, a, b Value) error {
	return langerrors.New(langerrors.UnsupportedType,
		fmt.Sprintf("%s: unsupported types %s and %s", op, a.kind, b.kind))
}

// widen returns (af, bf, bothFloat) promoting an int/float pair per spec
// S4.1: if either operand is float, both widen to float.
func widen(a, b Value) (float64, float64, bool) {
	if a.kind == KindFloat || b.kind == KindFloat {
		return a.AsFloat(), b.AsFloat(), true
	}
	return 0, 0, false
}

// Add implements `+`. Arithmetic overflow on the integer path wraps,
// matching Go's native int64 semantics -- the donor never pins an
// overflow policy explicitly, so we take the path requiring no extra
// bookkeeping. Sub and Mul wrap the same way.
func (a Value) Add(b Value) (Value, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return Value{}, unsupported("+", a, b)
	}
	if _, _, float := widen(a, b); float {
		return FloatValue(a.AsFloat() + b.AsFloat()), nil
	}
	return IntValue(a.i + b.i), nil
}

func (a Value) Sub(b Value) (Value, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return Value{}, unsupported("-", a, b)
	}
	if _, _, float := widen(a, b); float {
		return FloatValue(a.AsFloat() - b.AsFloat()), nil
	}
	return IntValue(a.i - b.i), nil
}

func (a Value) Mul(b Value) (Value, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return Value{}, unsupported("*", a, b)
	}
	if _, _, float := widen(a, b); float {
		return FloatValue(a.AsFloat() * b.AsFloat()), nil
	}
	return IntValue(a.i * b.i), nil
}

// Div implements `/`: integer division truncating toward zero when both
// operands are integers (Go's native int64 `/` already truncates toward
// zero, so this needs no extra logic -- spec S4.1 leaves the choice to the
// implementer and asks only that it be documented and tested).
func (a Value) Div(b Value) (Value, error) {
	if !a.isNumeric() || !b.isNumeric() {
		return Value{}, unsupported("/", a, b)
	}
	if _, _, float := widen(a, b); float {
		bf := b.AsFloat()
		if bf == 0 {
			return Value{}, langerrors.New(langerrors.Runtime, "division by zero")
		}
		return FloatValue(a.AsFloat() / bf), nil
	}
	if b.i == 0 {
		return Value{}, langerrors.New(langerrors.Runtime, "division by zero")
	}
	return IntValue(a.i / b.i), nil
}

// Mod implements `%`: the result's sign follows the dividend, matching
// Go's native int64 `%` (spec S4.1).
func (a Value) Mod(b Value) (Value, error) {
	if !a.IsInt() || !b.IsInt() {
		return Value{}, unsupported("%", a, b)
	}
	if b.i == 0 {
		return Value{}, langerrors.New(langerrors.Runtime, "modulo by zero")
	}
	return IntValue(a.i % b.i), nil
}

// Compare returns -1, 0, 1 for a<b, a==b, a>b. Only defined when
// TypesMatch(a, b); numeric equality is structural across int/float,
// strings compare lexicographically (spec S3, S4.1).
func (a Value) Compare(b Value) (int, error) {
	if !TypesMatch(a, b) {
		return 0, unsupported("compare", a, b)
	}
	if a.kind == KindStr {
		switch {
		case a.s < b.s:
			return -1, nil
		case a.s > b.s:
			return 1, nil
		default:
			return 0, nil
		}
	}
	af, bf, _ := widen(a, b)
	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		default:
			return 0, nil
		}
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equals implements `=`/`!=`: unlike ordering, equality never errors --
// a pair that fails TypesMatch (a number and a string) is simply unequal
// (spec S4.1: only ordering is documented as raising on mismatched
// types). Numbers compare by value across int/float.
func (a Value) Equals(b Value) bool {
	if !TypesMatch(a, b) {
		return false
	}
	if a.kind == KindStr {
		return a.s == b.s
	}
	af, bf, _ := widen(a, b)
	if a.kind == KindInt && b.kind == KindInt {
		return a.i == b.i
	}
	return af == bf
}

// AsBool implements the truthiness rule of spec S3: a positive non-zero
// number is true, zero is false, a negative number or a string is an
// error (never silently "false").
func (v Value) AsBool() (bool, error) {
	if !v.isNumeric() {
		return false, langerrors.New(langerrors.UnsupportedType,
			fmt.Sprintf("cannot use %s as a boolean", v.kind))
	}
	n := v.AsFloat()
	if n > 0 {
		return true, nil
	}
	if n == 0 {
		return false, nil
	}
	return false, langerrors.New(langerrors.Runtime, "negative value is not a valid boolean")
}

// AsString renders a Value the way `print`/`as_string` do.
func (v Value) AsString() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	default:
		return v.s
	}
}

// CastToInt truncates a float toward zero, passes an int through, and
// errors on a string (spec S4.1 `cast_to_int` / `as_int`).
func (v Value) CastToInt() (Value, error) {
	switch v.kind {
	case KindInt:
		return v, nil
	case KindFloat:
		return IntValue(int64(v.f)), nil
	default:
		return Value{}, langerrors.New(langerrors.NotANumber, "cannot cast string to int")
	}
}

// CastToFloat widens an int, passes a float through, and errors on a
// string (spec S4.1 `cast_to_float` / `as_float`).
func (v Value) CastToFloat() (Value, error) {
	switch v.kind {
	case KindFloat:
		return v, nil
	case KindInt:
		return FloatValue(float64(v.i)), nil
	default:
		return Value{}, langerrors.New(langerrors.NotANumber, "cannot cast string to float")
	}
}

// Floor is the identity on an int; on a float it rounds down to an int
// result (spec S4.1).
func (v Value) Floor() (Value, error) {
	switch v.kind {
	case KindInt:
		return v, nil
	case KindFloat:
		return IntValue(int64(math.Floor(v.f))), nil
	default:
		return Value{}, langerrors.New(langerrors.UnsupportedType, "floor: not a number")
	}
}

// Ceil is the identity on an int; on a float it rounds up to an int
// result (spec S4.1).
func (v Value) Ceil() (Value, error) {
	switch v.kind {
	case KindInt:
		return v, nil
	case KindFloat:
		return IntValue(int64(math.Ceil(v.f))), nil
	default:
		return Value{}, langerrors.New(langerrors.UnsupportedType, "ceil: not a number")
	}
}

// And/Or/Not implement the logical builtins over truthiness, folding the
// AsBool error semantics through (spec S4.1 `and or not`).
func (a Value) And(b Value) (Value, error) {
	av, err := a.AsBool()
	if err != nil {
		return Value{}, err
	}
	bv, err := b.AsBool()
	if err != nil {
		return Value{}, err
	}
	return boolValue(av && bv), nil
}

func (a Value) Or(b Value) (Value, error) {
	av, err := a.AsBool()
	if err != nil {
		return Value{}, err
	}
	bv, err := b.AsBool()
	if err != nil {
		return Value{}, err
	}
	return boolValue(av || bv), nil
}

func (a Value) Not() (Value, error) {
	av, err := a.AsBool()
	if err != nil {
		return Value{}, err
	}
	return boolValue(!av), nil
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}
