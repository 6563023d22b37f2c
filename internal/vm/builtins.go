package vm

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	langerrors "stacklang/internal/errors"
)

// applyBuiltin dispatches a named-word builtin instruction (spec S4.6,
// S4.7). Each handler pops the values it needs and pushes its outputs;
// the (in, out) arity is implicit in the pop/push calls rather than a
// separate descriptor table, since Go's type system already forces every
// handler to state exactly what it consumes. Grounded on the donor's
// registerBuiltins name-to-handler map, narrowed from the donor's
// variadic NativeFunction signature to the fixed arities spec.md's
// vocabulary actually uses.
func applyBuiltin(s *Scope, b BuiltinOp) error {
	switch b {
	case BPrint:
		c, err := s.Pop()
		if err != nil {
			return err
		}
		fmt.Fprintln(s.Out, c.AsString())
		return nil

	case BInc:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		r, err := v.Add(IntValue(1))
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BDec:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		r, err := v.Sub(IntValue(1))
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BDef:
		nameVal, err := s.PopValue()
		if err != nil {
			return err
		}
		cell, err := s.Pop()
		if err != nil {
			return err
		}
		return s.DefSymbol(nameVal.Str(), cell)

	case BUndef:
		nameVal, err := s.PopValue()
		if err != nil {
			return err
		}
		_, err = s.UndefSymbol(nameVal.Str())
		return err

	case BDup:
		c, err := s.Pop()
		if err != nil {
			return err
		}
		s.Push(c)
		s.Push(c)
		return nil

	case BSwap:
		a, b, err := s.Pop2()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{b, a})
		return nil

	case BPop:
		_, err := s.Pop()
		return err

	case BOver:
		a, b, err := s.Pop2()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{a, b, a})
		return nil

	case BRot:
		a, bb, c, err := s.Pop3()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{bb, c, a})
		return nil

	case BRotr:
		a, bb, c, err := s.Pop3()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{c, a, bb})
		return nil

	case BDupd:
		a, bb, err := s.Pop2()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{a, a, bb})
		return nil

	case BSwpd:
		a, bb, c, err := s.Pop3()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{bb, a, c})
		return nil

	case BNip:
		a, bb, err := s.Pop2()
		if err != nil {
			return err
		}
		_ = a
		s.Push(bb)
		return nil

	case BDup2:
		a, bb, err := s.Pop2()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{a, bb, a, bb})
		return nil

	case BDup3:
		a, bb, c, err := s.Pop3()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{a, bb, c, a, bb, c})
		return nil

	case BPick:
		a, bb, c, err := s.Pop3()
		if err != nil {
			return err
		}
		s.PushAll([]StackCell{a, bb, c, a})
		return nil

	case BPop2:
		_, _, err := s.Pop2()
		return err

	case BPop3:
		_, _, _, err := s.Pop3()
		return err

	case BAnd:
		a, b, err := popTwoValues(s)
		if err != nil {
			return err
		}
		r, err := a.And(b)
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BOr:
		a, b, err := popTwoValues(s)
		if err != nil {
			return err
		}
		r, err := a.Or(b)
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BNot:
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

	case BFloor:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		r, err := v.Floor()
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BCeil:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		r, err := v.Ceil()
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BAsInt, BCastToInt:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		r, err := v.CastToInt()
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BAsFloat, BCastToFloat:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		r, err := v.CastToFloat()
		if err != nil {
			return err
		}
		s.Push(ValueCell(r))
		return nil

	case BAsBool:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		bv, err := v.AsBool()
		if err != nil {
			return err
		}
		s.Push(ValueCell(boolValue(bv)))
		return nil

	case BAsString:
		c, err := s.Pop()
		if err != nil {
			return err
		}
		s.Push(ValueCell(StrValue(c.AsString())))
		return nil

	case BIsInt:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		s.Push(ValueCell(boolValue(v.IsInt())))
		return nil

	case BIsFloat:
		v, err := s.PopValue()
		if err != nil {
			return err
		}
		s.Push(ValueCell(boolValue(v.IsFloat())))
		return nil

	case BTypesMatch:
		a, b, err := popTwoValues(s)
		if err != nil {
			return err
		}
		s.Push(ValueCell(boolValue(TypesMatch(a, b))))
		return nil

	case BCurry:
		fnCell, err := s.Pop()
		if err != nil {
			return err
		}
		if !fnCell.IsFunction() {
			return langerrors.New(langerrors.UnsupportedType, "curry: expected a function")
		}
		x, err := s.Pop()
		if err != nil {
			return err
		}
		s.Push(FunctionCell(NewCurried(x, fnCell.Function())))
		return nil

	case BBind:
		f2Cell, err := s.Pop()
		if err != nil {
			return err
		}
		f1Cell, err := s.Pop()
		if err != nil {
			return err
		}
		if !f1Cell.IsFunction() || !f2Cell.IsFunction() {
			return langerrors.New(langerrors.UnsupportedType, "bind: expected two functions")
		}
		s.Push(FunctionCell(NewComposed(f1Cell.Function(), f2Cell.Function())))
		return nil

	case BStats:
		elapsed := time.Since(s.StartTime)
		var rate float64
		if elapsed.Seconds() > 0 {
			rate = float64(s.InstrCount) / elapsed.Seconds()
		}
		fmt.Fprintf(s.Out, "%s instructions in %s (%s/s), started %s\n",
			humanize.Comma(s.InstrCount), elapsed.Round(time.Microsecond),
			humanize.Comma(int64(rate)), humanize.Time(s.StartTime))
		return nil

	default:
		return langerrors.Newf(langerrors.ContextFail, "unknown builtin %d", b)
	}
}

func popTwoValues(s *Scope) (Value, Value, error) {
	a, b, err := s.Pop2()
	if err != nil {
		return Value{}, Value{}, err
	}
	av, err := a.Value()
	if err != nil {
		return Value{}, Value{}, err
	}
	bv, err := b.Value()
	if err != nil {
		return Value{}, Value{}, err
	}
	return av, bv, nil
}
