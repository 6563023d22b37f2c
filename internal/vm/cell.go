package vm

import langerrors "stacklang/internal/errors"

// StackCell is the homogeneous element of the data stack: either a Value
// or a Function (spec S3). Modeled as a two-field struct with a nil-ness
// tag rather than an interface -- the donor's own stack elements are a
// bare `interface{}` switched on at every site that needs to know the
// variant; for a closed two-variant union a tagged struct avoids an
// allocation per push and keeps the switch down to one nil check.
type StackCell struct {
	fn  *Function
	val Value
}

// ValueCell wraps a Value as a StackCell.
func ValueCell(v Value) StackCell { return StackCell{val: v} }

// FunctionCell wraps a Function as a StackCell.
func FunctionCell(f *Function) StackCell { return StackCell{fn: f} }

// IsFunction reports whether the cell holds a Function rather than a Value.
func (c StackCell) IsFunction() bool { return c.fn != nil }

// Function returns the held Function, or nil if this cell holds a Value.
func (c StackCell) Function() *Function { return c.fn }

// Value returns the held Value, erroring with UnsupportedType if the cell
// actually holds a Function (spec S4.3 `pop_value`).
func (c StackCell) Value() (Value, error) {
	if c.fn != nil {
		return Value{}, langerrors.New(langerrors.UnsupportedType, "expected a value, found a function")
	}
	return c.val, nil
}

// AsString renders a cell for stack_dump / print: a Value renders via
// Value.AsString, a Function renders as "<fn>" the way the donor's
// PrintValue distinguishes *Function from everything else.
func (c StackCell) AsString() string {
	if c.fn != nil {
		return "<fn>"
	}
	return c.val.AsString()
}
