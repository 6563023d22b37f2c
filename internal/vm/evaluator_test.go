package vm

import "testing"

func runProg(t *testing.T, s *Scope, instrs []Instruction) {
	t.Helper()
	spans := NewSpanTable()
	ev := NewEvaluator(s, spans)
	if err := ev.Run(instrs); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func topInt(t *testing.T, s *Scope) int64 {
	t.Helper()
	if len(s.Stack) == 0 {
		t.Fatal("stack is empty")
	}
	v, err := s.Stack[len(s.Stack)-1].Value()
	if err != nil {
		t.Fatal(err)
	}
	return v.Int()
}

func TestEvaluatorArithmeticAndOperator(t *testing.T) {
	s := NewScope("t")
	// 2 3 +
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(2)},
		{Op: OpPushValue, Value: IntValue(3)},
		{Op: OpOperator, Operator: OpAdd},
	}
	runProg(t, s, prog)
	if got := topInt(t, s); got != 5 {
		t.Fatalf("got %d want 5", got)
	}
}

func TestEvaluatorEqNeqMismatchedTypesIsFalseNotError(t *testing.T) {
	s := NewScope("t")
	// 5 "five" =  -- must push false (0), never raise UnsupportedType.
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(5)},
		{Op: OpPushValue, Value: StrValue("five")},
		{Op: OpOperator, Operator: OpEq},
	}
	runProg(t, s, prog)
	if got := topInt(t, s); got != 0 {
		t.Fatalf("got %d want 0 (false) for a mismatched-type `=`", got)
	}

	s2 := NewScope("t")
	prog2 := []Instruction{
		{Op: OpPushValue, Value: IntValue(5)},
		{Op: OpPushValue, Value: StrValue("five")},
		{Op: OpOperator, Operator: OpNeq},
	}
	runProg(t, s2, prog2)
	if got := topInt(t, s2); got != 1 {
		t.Fatalf("got %d want 1 (true) for a mismatched-type `!=`", got)
	}
}

func TestEvaluatorOrderingStillGatesOnTypesMatch(t *testing.T) {
	s := NewScope("t")
	spans := NewSpanTable()
	ev := NewEvaluator(s, spans)
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(5)},
		{Op: OpPushValue, Value: StrValue("five")},
		{Op: OpOperator, Operator: OpLt},
	}
	if err := ev.Run(prog); err == nil {
		t.Fatal("expected UnsupportedType for ordering a mismatched-type pair")
	}
}

func TestEvaluatorTailInlinedSymbolNoCallFrame(t *testing.T) {
	s := NewScope("t")
	// define `double` as a block pushing 2 *, then invoke it by bare name
	double := NewBlock([]Instruction{
		{Op: OpPushValue, Value: IntValue(2)},
		{Op: OpOperator, Operator: OpMul},
	})
	if err := s.DefSymbol("double", FunctionCell(double)); err != nil {
		t.Fatal(err)
	}
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(10)},
		{Op: OpPushSymbol, Name: "double", IsRegister: false},
	}
	spans := NewSpanTable()
	ev := NewEvaluator(s, spans)
	if err := ev.Run(prog); err != nil {
		t.Fatal(err)
	}
	if got := topInt(t, s); got != 20 {
		t.Fatalf("got %d want 20", got)
	}
	if len(ev.frames) != 0 {
		t.Fatalf("tail-inlined dispatch should leave no call frame, got %d", len(ev.frames))
	}
}

func TestEvaluatorCallIntrinsicPushesAndPopsFrame(t *testing.T) {
	s := NewScope("t")
	fn := NewBlock([]Instruction{
		{Op: OpPushValue, Value: IntValue(1)},
		{Op: OpOperator, Operator: OpAdd},
	})
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(41)},
		{Op: OpPushFunction, Function: fn},
		{Op: OpIntrinsic, Intrinsic: ICall},
	}
	ev := NewEvaluator(s, NewSpanTable())
	if err := ev.Run(prog); err != nil {
		t.Fatal(err)
	}
	if got := topInt(t, s); got != 42 {
		t.Fatalf("got %d want 42", got)
	}
	if len(ev.frames) != 0 {
		t.Fatalf("the call's frame should be popped by its EndCallFrame, got %d left", len(ev.frames))
	}
}

func TestEvaluatorLoopIntrinsic(t *testing.T) {
	s := NewScope("t")
	incr := NewBlock([]Instruction{
		{Op: OpPushValue, Value: IntValue(1)},
		{Op: OpOperator, Operator: OpAdd},
	})
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(0)},
		{Op: OpPushValue, Value: IntValue(5)},
		{Op: OpPushFunction, Function: incr},
		{Op: OpIntrinsic, Intrinsic: ILoop},
	}
	runProg(t, s, prog)
	if got := topInt(t, s); got != 5 {
		t.Fatalf("got %d want 5 after looping +1 five times", got)
	}
}

func TestEvaluatorIfIntrinsicChoosesBranch(t *testing.T) {
	s := NewScope("t")
	trueBranch := NewBlock([]Instruction{{Op: OpPushValue, Value: IntValue(1)}})
	falseBranch := NewBlock([]Instruction{{Op: OpPushValue, Value: IntValue(0)}})
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(7)}, // truthy condition
		{Op: OpPushFunction, Function: trueBranch},
		{Op: OpPushFunction, Function: falseBranch},
		{Op: OpIntrinsic, Intrinsic: IIf},
	}
	runProg(t, s, prog)
	if got := topInt(t, s); got != 1 {
		t.Fatalf("got %d want 1 (true branch)", got)
	}
}

func TestEvaluatorDefineRegisterBindsFollowingRegister(t *testing.T) {
	s := NewScope("t")
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(5)},
		{Op: OpIntrinsic, Intrinsic: IDefineRegister},
		{Op: OpPushSymbol, Name: "x", IsRegister: true},
	}
	spans := NewSpanTable()
	ev := NewEvaluator(s, spans)
	if err := ev.Run(prog); err != nil {
		t.Fatal(err)
	}
	cell, err := s.GetRegister("x")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := cell.Value()
	if v.Int() != 5 {
		t.Fatalf("got %d want 5", v.Int())
	}
}

func TestEvaluatorGuardBeginEndRestoresPriorBinding(t *testing.T) {
	s := NewScope("t")
	if err := s.BindRegister("r", ValueCell(IntValue(1))); err != nil {
		t.Fatal(err)
	}
	prog := []Instruction{
		{Op: OpGuardBegin, Names: []string{"r"}},
		{Op: OpPushValue, Value: IntValue(99)},
		{Op: OpIntrinsic, Intrinsic: IDefineRegister},
		{Op: OpPushSymbol, Name: "r", IsRegister: true},
		{Op: OpGuardEnd, Names: []string{"r"}},
	}
	runProg(t, s, prog)
	cell, err := s.GetRegister("r")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := cell.Value()
	if v.Int() != 1 {
		t.Fatalf("got %d want 1 restored after guard end", v.Int())
	}
}

func TestEvaluatorGuardUnwindsOnErroringBody(t *testing.T) {
	s := NewScope("t")
	if err := s.BindRegister("r", ValueCell(IntValue(1))); err != nil {
		t.Fatal(err)
	}
	spans := NewSpanTable()
	ev := NewEvaluator(s, spans)
	// (r) { 99 :r ! + } -- the `+` underflows with an empty stack, so the
	// body errors before ever reaching GuardEnd.
	prog := []Instruction{
		{Op: OpGuardBegin, Names: []string{"r"}},
		{Op: OpPushValue, Value: IntValue(99)},
		{Op: OpIntrinsic, Intrinsic: IDefineRegister},
		{Op: OpPushSymbol, Name: "r", IsRegister: true},
		{Op: OpOperator, Operator: OpAdd},
		{Op: OpGuardEnd, Names: []string{"r"}},
	}
	if err := ev.Run(prog); err == nil {
		t.Fatal("expected the stack underflow from `+` to surface")
	}
	if s.IsGuarded("r") {
		t.Fatal("r should no longer be guarded once its erroring body unwinds")
	}
	cell, err := s.GetRegister("r")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := cell.Value()
	if v.Int() != 1 {
		t.Fatalf("got %d want 1 restored even though the guarded body errored", v.Int())
	}

	// a fresh guard on the same name afterward must behave normally --
	// proof the frame stack wasn't left in some half-open state.
	prog2 := []Instruction{
		{Op: OpGuardBegin, Names: []string{"r"}},
		{Op: OpPushValue, Value: IntValue(2)},
		{Op: OpIntrinsic, Intrinsic: IDefineRegister},
		{Op: OpPushSymbol, Name: "r", IsRegister: true},
		{Op: OpGuardEnd, Names: []string{"r"}},
	}
	runProg(t, s, prog2)
	cell, err = s.GetRegister("r")
	if err != nil {
		t.Fatal(err)
	}
	v, _ = cell.Value()
	if v.Int() != 1 {
		t.Fatalf("got %d want 1 restored after the second guard closes cleanly", v.Int())
	}
}

func TestEvaluatorBlockUnwindsOnErroringBody(t *testing.T) {
	s := NewScope("t")
	if err := s.BindRegister("r", ValueCell(IntValue(1))); err != nil {
		t.Fatal(err)
	}
	spans := NewSpanTable()
	ev := NewEvaluator(s, spans)
	// (r) block, then the very next instruction (the blocked body) errors;
	// OpBlock's own splice has already queued the synthetic Unblock.
	prog := []Instruction{
		{Op: OpGuardBegin, Names: []string{"r"}},
		{Op: OpBlock, Name: "r"},
		{Op: OpOperator, Operator: OpAdd},
		{Op: OpGuardEnd, Names: []string{"r"}},
	}
	if err := ev.Run(prog); err == nil {
		t.Fatal("expected the stack underflow from `+` to surface")
	}
	if s.IsGuarded("r") {
		t.Fatal("r should no longer be guarded once its erroring body unwinds")
	}
	if _, err := s.GetRegister("r"); err == nil {
		t.Fatal("r should no longer be blocked, but it should also no longer be bound (guard closed)")
	}
}

func TestEvaluatorDeepTailChainDoesNotStackOverflow(t *testing.T) {
	s := NewScope("t")
	const depth = 10000
	// countdown: n <= 0 -> n ; else (n-1) countdown  -- simulated by
	// looping the same block body `depth` times via the loop intrinsic
	// rather than recursive self-reference, exercising the same pending
	// list length without needing a recursive symbol definition here.
	decr := NewBlock([]Instruction{
		{Op: OpPushValue, Value: IntValue(1)},
		{Op: OpOperator, Operator: OpSub},
	})
	prog := []Instruction{
		{Op: OpPushValue, Value: IntValue(depth)},
		{Op: OpPushValue, Value: IntValue(depth)},
		{Op: OpPushFunction, Function: decr},
		{Op: OpIntrinsic, Intrinsic: ILoop},
	}
	runProg(t, s, prog)
	if got := topInt(t, s); got != 0 {
		t.Fatalf("got %d want 0 after %d decrements", got, depth)
	}
}

func TestEvaluatorStackUnderflowErrors(t *testing.T) {
	s := NewScope("t")
	spans := NewSpanTable()
	ev := NewEvaluator(s, spans)
	err := ev.Run([]Instruction{{Op: OpOperator, Operator: OpAdd}})
	if err == nil {
		t.Fatal("expected NothingToPop error")
	}
}
