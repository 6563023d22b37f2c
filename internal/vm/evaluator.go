package vm

import (
	"fmt"

	langerrors "stacklang/internal/errors"
)

// pendingNode is one link of the evaluator's pending-program list: a
// slice of instructions plus a cursor into it, so prepending a callee's
// expansion is an O(1) pointer swap rather than an O(n) slice splice.
// This is the trampoline's work-list (spec S4.5, S9 "Recursion
// avoidance"): the only thing standing in for host-stack call frames.
type pendingNode struct {
	instrs []Instruction
	idx    int
	next   *pendingNode
}

// callFrame is one entry of the call-frame list (spec S3): the span
// active at the call site, kept so a later error can render a traceback
// even though no host stack frame exists for the call.
type callFrame struct {
	span int
}

// Evaluator is the trampolined fetch-decode-execute loop: it owns the
// pending-instruction list and the call-frame stack, and mutates a Scope
// as it runs. Grounded on the donor's EnhancedVM.Run dispatch loop
// (ip-indexed switch over a flat byte array) and its frames
// []EnhancedCallFrame bookkeeping, reshaped around a linked pending list
// instead of an instruction pointer since this language prepends whole
// expansions rather than jumping within one fixed chunk.
type Evaluator struct {
	Scope   *Scope
	Spans   *SpanTable
	pending *pendingNode
	frames  []callFrame
}

// NewEvaluator builds an Evaluator bound to scope and span table.
func NewEvaluator(scope *Scope, spans *SpanTable) *Evaluator {
	return &Evaluator{Scope: scope, Spans: spans}
}

// Run executes prog to completion or until a dispatch error occurs. On
// error the pending list is discarded (the caller -- REPL or batch --
// decides whether to keep going with a fresh program against the same
// Scope, or to exit) -- but not before unwindGuards closes out any
// GuardBegin/BlockBegin that already ran, so a guarded body erroring
// partway through never leaves its register permanently sealed (SPEC_FULL
// S5: GuardEnd must run even when the guarded body errors). On success
// the Scope holds whatever the program left on the stack and in its
// symbol/register tables (spec S7).
func (e *Evaluator) Run(prog []Instruction) error {
	e.prepend(prog)
	for {
		instr, ok := e.popFront()
		if !ok {
			return nil
		}
		e.Scope.InstrCount++
		if err := e.dispatch(instr); err != nil {
			annotated := e.annotate(err, instr)
			e.unwindGuards()
			e.pending = nil
			e.frames = nil
			return annotated
		}
	}
}

// unwindGuards drains whatever is left of the pending list after a
// dispatch error, applying only the OpGuardEnd/OpUnblock markers it finds
// along the way. Everything else still queued -- the abandoned
// continuation of the erroring call -- is discarded unexecuted; only
// these two opcodes carry Scope-level state (a sealed register, a
// blocked read) that must not outlive the program that opened it.
// Because wrapGuard always emits GuardBegin/GuardEnd within the same
// expansion and in textual order, a pending GuardEnd either closes a
// GuardBegin that already ran or pairs with a GuardBegin that is itself
// still pending (a later loop iteration, the right half of a composed
// function); the latter pairs are skipped together. dispatch only splices
// Unblock in once its Block has run, so every pending Unblock is applied.
// Markers are closed out in the innermost-first order they appear in.
func (e *Evaluator) unwindGuards() {
	unstarted := 0
	for {
		instr, ok := e.popFront()
		if !ok {
			return
		}
		switch instr.Op {
		case OpGuardBegin:
			unstarted++
		case OpGuardEnd:
			if unstarted > 0 {
				unstarted--
				continue
			}
			e.Scope.GuardEndAll(instr.Names)
		case OpUnblock:
			e.Scope.BlockEnd(instr.Name)
		}
	}
}

func (e *Evaluator) prepend(instrs []Instruction) {
	if len(instrs) == 0 {
		return
	}
	e.pending = &pendingNode{instrs: instrs, next: e.pending}
}

func (e *Evaluator) popFront() (Instruction, bool) {
	for e.pending != nil && e.pending.idx >= len(e.pending.instrs) {
		e.pending = e.pending.next
	}
	if e.pending == nil {
		return Instruction{}, false
	}
	instr := e.pending.instrs[e.pending.idx]
	e.pending.idx++
	return instr, true
}

// invokeCall prepends fn's expansion followed by an EndCallFrame marker
// and records a call frame -- the general "call another function"
// mechanism of spec S4.5, used by the Call and If combinators (Loop
// builds the same marker-and-frame shape around its repeated body).
func (e *Evaluator) invokeCall(fn *Function, span int) {
	body := fn.Expand(span)
	seq := make([]Instruction, len(body)+1)
	copy(seq, body)
	seq[len(body)] = Instruction{Op: OpEndCallFrame, Span: span}
	e.frames = append(e.frames, callFrame{span: span})
	e.prepend(seq)
}

// invokeTail prepends fn's expansion with no marker and no new call
// frame: a user-symbol bound to a function is tail-inlined, not called
// (spec S4.5 PushSymbol dispatch), so it never shows up as its own
// traceback entry.
func (e *Evaluator) invokeTail(fn *Function, span int) {
	e.prepend(fn.Expand(span))
}

func (e *Evaluator) popCallFrame() {
	if len(e.frames) > 0 {
		e.frames = e.frames[:len(e.frames)-1]
	}
}

func (e *Evaluator) dispatch(instr Instruction) error {
	switch instr.Op {
	case OpPushValue:
		e.Scope.Push(ValueCell(instr.Value))
		return nil

	case OpPushFunction:
		e.Scope.Push(FunctionCell(instr.Function))
		return nil

	case OpPushSymbol:
		if instr.IsRegister {
			cell, err := e.Scope.GetRegister(instr.Name)
			if err != nil {
				return err
			}
			e.Scope.Push(cell)
			return nil
		}
		cell, err := e.Scope.GetSymbol(instr.Name)
		if err != nil {
			return err
		}
		if cell.IsFunction() {
			e.invokeTail(cell.Function(), instr.Span)
			return nil
		}
		v, _ := cell.Value()
		e.Scope.Push(ValueCell(v))
		return nil

	case OpOperator:
		return applyOperator(e.Scope, instr.Operator)

	case OpBuiltin:
		return applyBuiltin(e.Scope, instr.Builtin)

	case OpIntrinsic:
		return e.dispatchIntrinsic(instr)

	case OpGuardBegin:
		e.Scope.GuardBeginAll(instr.Names)
		return nil

	case OpGuardEnd:
		e.Scope.GuardEndAll(instr.Names)
		return nil

	case OpBlock:
		if err := e.Scope.BlockBegin(instr.Name); err != nil {
			return err
		}
		next, ok := e.popFront()
		if !ok {
			e.Scope.BlockEnd(instr.Name)
			return nil
		}
		unblock := Instruction{Op: OpUnblock, Name: instr.Name, Span: instr.Span}
		e.prepend([]Instruction{next, unblock})
		return nil

	case OpUnblock:
		e.Scope.BlockEnd(instr.Name)
		return nil

	case OpEndCallFrame:
		e.popCallFrame()
		return nil

	default:
		return langerrors.Newf(langerrors.ContextFail, "unknown opcode %v", instr.Op)
	}
}

func (e *Evaluator) dispatchIntrinsic(instr Instruction) error {
	switch instr.Intrinsic {
	case ICall:
		fnCell, err := e.Scope.Pop()
		if err != nil {
			return err
		}
		if !fnCell.IsFunction() {
			return langerrors.New(langerrors.UnsupportedType, "?: expected a function")
		}
		e.invokeCall(fnCell.Function(), instr.Span)
		return nil

	case ILoop:
		fnCell, err := e.Scope.Pop()
		if err != nil {
			return err
		}
		if !fnCell.IsFunction() {
			return langerrors.New(langerrors.UnsupportedType, "loop: expected a function")
		}
		countVal, err := e.Scope.PopValue()
		if err != nil {
			return err
		}
		if !countVal.IsInt() {
			return langerrors.New(langerrors.NotANumber, "loop: count must be an integer")
		}
		n := countVal.Int()
		if n < 0 {
			return langerrors.New(langerrors.Runtime, "loop: count must be non-negative")
		}
		fn := fnCell.Function()
		if n == 0 {
			return nil
		}
		body := fn.Expand(instr.Span)
		seq := make([]Instruction, 0, int(n)*len(body)+1)
		for i := int64(0); i < n; i++ {
			seq = append(seq, body...)
		}
		seq = append(seq, Instruction{Op: OpEndCallFrame, Span: instr.Span})
		e.frames = append(e.frames, callFrame{span: instr.Span})
		e.prepend(seq)
		return nil

	case IIf:
		falseCell, err := e.Scope.Pop()
		if err != nil {
			return err
		}
		trueCell, err := e.Scope.Pop()
		if err != nil {
			return err
		}
		condVal, err := e.Scope.PopValue()
		if err != nil {
			return err
		}
		cond, err := condVal.AsBool()
		if err != nil {
			return err
		}
		chosen := falseCell
		if cond {
			chosen = trueCell
		}
		if !chosen.IsFunction() {
			return langerrors.New(langerrors.UnsupportedType, "if: branches must be functions")
		}
		e.invokeCall(chosen.Function(), instr.Span)
		return nil

	case IDefineRegister:
		next, ok := e.popFront()
		if !ok || next.Op != OpPushSymbol || !next.IsRegister {
			return langerrors.New(langerrors.ContextFail, "!: register marker not followed by a register push")
		}
		cell, err := e.Scope.Pop()
		if err != nil {
			return err
		}
		return e.Scope.BindRegister(next.Name, cell)

	case IStackDump:
		for i := len(e.Scope.Stack) - 1; i >= 0; i-- {
			fmt.Fprintln(e.Scope.Out, e.Scope.Stack[i].AsString())
		}
		return nil

	case ISymDump:
		for name := range e.Scope.symbols {
			fmt.Fprintln(e.Scope.Out, name)
		}
		return nil

	default:
		return langerrors.Newf(langerrors.ContextFail, "unknown intrinsic %d", instr.Intrinsic)
	}
}

// annotate attaches the failing instruction's span and the active
// call-frame chain to err, wrapping non-LangError failures so every error
// that escapes Run carries full diagnostics (spec S7).
func (e *Evaluator) annotate(err error, instr Instruction) error {
	le, ok := err.(*langerrors.LangError)
	if !ok {
		le = langerrors.Wrap(err, err.Error())
	}
	span := e.Spans.Get(instr.Span)
	le.WithLocation(langerrors.Location{File: span.File, Line: span.Line, Column: span.Column}).WithSource(span.Text)

	stack := make([]langerrors.Frame, len(e.frames))
	for i, f := range e.frames {
		fs := e.Spans.Get(f.span)
		stack[i] = langerrors.Frame{Location: langerrors.Location{File: fs.File, Line: fs.Line, Column: fs.Column}}
	}
	le.WithCallStack(stack)
	return le
}
