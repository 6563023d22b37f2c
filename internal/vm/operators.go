package vm

import langerrors "stacklang/internal/errors"

// applyOperator dispatches a single-glyph operator instruction (spec
// S4.1, S4.6): pop the operands it needs from the data stack, compute,
// push the result. Grounded on the donor's registerBuiltins arity-keyed
// dispatch, narrowed to the fixed binary/unary shape glyph operators
// always have (no variable arity here, unlike named builtins).
func applyOperator(s *Scope, op OperatorOp) error {
	if op == OpGlyphNot {
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		r, err := v.Not()
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil
	}

	b, err := s.PopValue()
	if err != nil {
		return err
	}
	a, err := s.PopValue()
	if err != nil {
		return err
	}

	switch op {
	case OpAdd:
		return pushArith(s, a.Add(b))
	case OpSub:
		return pushArith(s, a.Sub(b))
	case OpMul:
		return pushArith(s, a.Mul(b))
	case OpDiv:
		return pushArith(s, a.Div(b))
	case OpMod:
		return pushArith(s, a.Mod(b))
	case OpEq:
		s.Push(ValueCell(boolValue(a.Equals(b))))
		return nil
	case OpNeq:
		s.Push(ValueCell(boolValue(!a.Equals(b))))
		return nil
	case OpLt:
		return pushCompare(s, a, b, func(c int) bool { return c < 0 })
	case OpLe:
		return pushCompare(s, a, b, func(c int) bool { return c <= 0 })
	case OpGt:
		return pushCompare(s, a, b, func(c int) bool { return c > 0 })
	case OpGe:
		return pushCompare(s, a, b, func(c int) bool { return c >= 0 })
	default:
		return langerrors.Newf(langerrors.ContextFail, "unknown operator %d", op)
	}
}

func pushArith(s *Scope, v Value, err error) error {
	if err != nil {
		return err
	}
	s.Push(ValueCell(v))
	return nil
}

func pushCompare(s *Scope, a, b Value, pred func(int) bool) error {
	c, err := a.Compare(b)
	if err != nil {
		return err
	}
	s.Push(ValueCell(boolValue(pred(c))))
	return nil
}
