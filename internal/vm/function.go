package vm

// FuncKind tags which of the four FunctionObject shapes a Function is
// (spec S3/S4.2).
type FuncKind byte

const (
	FuncBlock FuncKind = iota
	FuncSingle
	FuncCurried
	FuncComposed
)

// Function is the language's first-class code value. All four variants
// are immutable once built and shared by reference -- lifetime extends as
// long as any StackCell, symbol binding, or composition holds them (spec
// S3). Curried and Composed are lazy: they hold references and expand on
// every invocation rather than inlining eagerly, so building one is O(1)
// regardless of how large the functions it refers to are.
//
// Grounded on the donor's own first-class function value (vm.Function,
// wrapping a *bytecode.Chunk) generalized from "one shape" to the four
// spec requires, the way the donor's OpClosure/EnhancedCallFrame.function
// field treats a function as an opaque, shareable, callable unit.
type Function struct {
	Kind FuncKind

	// FuncBlock
	Instrs []Instruction

	// FuncSingle
	Single Instruction

	// FuncCurried
	Capture StackCell
	Inner   *Function

	// FuncComposed
	Left, Right *Function
}

// NewBlock builds a Block FunctionObject from a sequence of instructions.
func NewBlock(instrs []Instruction) *Function {
	return &Function{Kind: FuncBlock, Instrs: instrs}
}

// NewSingle builds a Single FunctionObject wrapping one instruction --
// sugar for the `@` quote-one-thing combinator (spec S4.4).
func NewSingle(instr Instruction) *Function {
	return &Function{Kind: FuncSingle, Single: instr}
}

// NewCurried builds a Curried FunctionObject: a captured cell plus the
// function it primes (spec S4.2, the `curry` builtin).
func NewCurried(capture StackCell, inner *Function) *Function {
	return &Function{Kind: FuncCurried, Capture: capture, Inner: inner}
}

// NewComposed builds a Composed FunctionObject: two functions chained
// end to end (spec S4.2, the `bind` builtin).
func NewComposed(left, right *Function) *Function {
	return &Function{Kind: FuncComposed, Left: left, Right: right}
}

// Expand produces the instruction sequence this function invokes, for
// insertion ahead of the evaluator's cursor. atSpan supplies the span to
// stamp onto any instruction synthesised fresh (the push-cell instruction
// a Curried expansion emits) rather than parsed from source.
func (f *Function) Expand(atSpan int) []Instruction {
	switch f.Kind {
	case FuncBlock:
		return f.Instrs
	case FuncSingle:
		return []Instruction{f.Single}
	case FuncCurried:
		out := make([]Instruction, 0, 1+f.Inner.Length())
		out = append(out, pushCellInstr(f.Capture, atSpan))
		out = append(out, f.Inner.Expand(atSpan)...)
		return out
	case FuncComposed:
		out := make([]Instruction, 0, f.Left.Length()+f.Right.Length())
		out = append(out, f.Left.Expand(atSpan)...)
		out = append(out, f.Right.Expand(atSpan)...)
		return out
	default:
		return nil
	}
}

// Length reports how many instructions Expand would produce, without
// building the slice -- used by callers sizing a prepend buffer.
func (f *Function) Length() int {
	switch f.Kind {
	case FuncBlock:
		return len(f.Instrs)
	case FuncSingle:
		return 1
	case FuncCurried:
		return 1 + f.Inner.Length()
	case FuncComposed:
		return f.Left.Length() + f.Right.Length()
	default:
		return 0
	}
}
