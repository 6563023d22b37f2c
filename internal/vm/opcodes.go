package vm

// Op is the outer tag of an Instruction -- the evaluator's dispatch switches
// on this first, then on the sub-enum (Operator/Builtin/Intrinsic) the
// instruction carries when it needs one. Mirrors the donor's flat OpCode
// enumeration in shape, split into an outer/inner pair because this
// language's instruction set is variant-shaped (spec S3) rather than a
// single flat byte code.
type Op byte

const (
	OpPushValue Op = iota
	OpPushFunction
	OpPushSymbol
	OpOperator
	OpBuiltin
	OpIntrinsic
	OpGuardBegin
	OpGuardEnd
	OpBlock
	OpUnblock
	OpEndCallFrame
)

func (o Op) String() string {
	switch o {
	case OpPushValue:
		return "PushValue"
	case OpPushFunction:
		return "PushFunction"
	case OpPushSymbol:
		return "PushSymbol"
	case OpOperator:
		return "Operator"
	case OpBuiltin:
		return "Builtin"
	case OpIntrinsic:
		return "Intrinsic"
	case OpGuardBegin:
		return "GuardBegin"
	case OpGuardEnd:
		return "GuardEnd"
	case OpBlock:
		return "Block"
	case OpUnblock:
		return "Unblock"
	case OpEndCallFrame:
		return "EndCallFrame"
	default:
		return "Unknown"
	}
}

// OperatorOp enumerates the fixed-arity glyph operators (spec S4.1, S4.6):
// arithmetic, comparison, and the reserved-but-minimal glyphs the lexer
// recognizes.
type OperatorOp byte

const (
	OpAdd OperatorOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpGlyphNot // glyph `~`, alias for the `not` builtin
)

// BuiltinOp enumerates the named-word builtins of spec S4.6/S4.7: stack
// shuffling, logical ops, coercions, and the combinators that synthesise
// new FunctionObjects.
type BuiltinOp byte

const (
	BPrint BuiltinOp = iota
	BInc
	BDec
	BDef
	BUndef
	BDup
	BSwap
	BPop
	BOver
	BRot
	BRotr
	BDupd
	BSwpd
	BNip
	BDup2
	BDup3
	BPick
	BPop2
	BPop3
	BAnd
	BOr
	BNot
	BFloor
	BCeil
	BAsInt
	BAsFloat
	BAsBool
	BAsString
	BIsInt
	BIsFloat
	BTypesMatch
	BCastToInt
	BCastToFloat
	BCurry
	BBind
	BStats
)

// IntrinsicOp enumerates the combinators that require evaluator cooperation
// beyond a simple pop-compute-push cycle (spec S4.5).
type IntrinsicOp byte

const (
	ICall IntrinsicOp = iota
	ILoop
	IIf
	IDefineRegister
	IStackDump
	ISymDump
)
