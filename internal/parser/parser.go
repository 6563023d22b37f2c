// Package parser consumes the lexer's token stream and produces the flat
// instruction deque the evaluator runs (spec S2 "Parser", S4.4). It
// recognizes the language's structural constructs -- blocks, guards,
// definitions, the register marker, the block/unblock read-barrier, and
// the quote-one-thing combinator -- emitting one vm.Instruction per
// semantic token, in the order the evaluator expects to execute them.
package parser

import (
	"strconv"
	"strings"

	langerrors "stacklang/internal/errors"
	"stacklang/internal/lexer"
	"stacklang/internal/vm"
)

// builtinByName and intrinsicByName are the two static name tables spec
// S4.6 describes: plain identifiers the parser resolves against a fixed
// builtin/intrinsic vocabulary before falling back to a user-symbol
// reference. Operators never go through these tables -- their glyphs are
// already distinct token types by the time the parser sees them.
var builtinByName = map[string]vm.BuiltinOp{
	"print": vm.BPrint, "inc": vm.BInc, "dec": vm.BDec,
	"def": vm.BDef, "undef": vm.BUndef,
	"dup": vm.BDup, "swap": vm.BSwap, "pop": vm.BPop, "over": vm.BOver,
	"rot": vm.BRot, "rotr": vm.BRotr, "dupd": vm.BDupd, "swpd": vm.BSwpd,
	"nip": vm.BNip, "dup2": vm.BDup2, "dup3": vm.BDup3, "pick": vm.BPick,
	"pop2": vm.BPop2, "pop3": vm.BPop3,
	"and": vm.BAnd, "or": vm.BOr, "not": vm.BNot,
	"floor": vm.BFloor, "ceil": vm.BCeil,
	"as_int": vm.BAsInt, "as_float": vm.BAsFloat, "as_bool": vm.BAsBool, "as_string": vm.BAsString,
	"is_int": vm.BIsInt, "is_float": vm.BIsFloat, "types_match": vm.BTypesMatch,
	"cast_to_int": vm.BCastToInt, "cast_to_float": vm.BCastToFloat,
	"curry": vm.BCurry, "bind": vm.BBind,
	"stats": vm.BStats,
}

var intrinsicByName = map[string]vm.IntrinsicOp{
	"loop": vm.ILoop, "if": vm.IIf,
	"stack_dump": vm.IStackDump, "sym_dump": vm.ISymDump,
}

var glyphOperator = map[lexer.TokenType]vm.OperatorOp{
	lexer.TokenPlus: vm.OpAdd, lexer.TokenMinus: vm.OpSub,
	lexer.TokenStar: vm.OpMul, lexer.TokenSlash: vm.OpDiv, lexer.TokenPercent: vm.OpMod,
	lexer.TokenEq: vm.OpEq, lexer.TokenNotEq: vm.OpNeq,
	lexer.TokenGt: vm.OpGt, lexer.TokenLt: vm.OpLt, lexer.TokenGe: vm.OpGe, lexer.TokenLe: vm.OpLe,
	lexer.TokenTilde: vm.OpGlyphNot,
}

// Parser walks a token slice once, left to right, building an instruction
// list. It holds a live Scope so that const definitions (`-> name | body`)
// can evaluate their body immediately, the way spec S4.4 requires -- the
// one place parsing and evaluation are not cleanly separable stages.
// Grounded on the donor's recursive-descent Parser (tokens/current cursor,
// Errors slice, sourceLines for diagnostics), reshaped from a statement-AST
// builder into a flat instruction emitter since this language has no
// expression grammar to build a tree for.
type Parser struct {
	tokens []lexer.Token
	pos    int
	file   string
	spans  *vm.SpanTable
	scope  *vm.Scope
}

// NewParser returns a Parser over tokens. spans receives one entry per
// instruction emitted; scope is the live Scope used to evaluate const
// definition bodies (may be nil if the caller is certain the input has
// none -- any const definition then fails with ContextFail).
func NewParser(tokens []lexer.Token, file string, spans *vm.SpanTable, scope *vm.Scope) *Parser {
	return &Parser{tokens: tokens, file: file, spans: spans, scope: scope}
}

// Parse consumes the whole token stream and returns the instruction list.
func (p *Parser) Parse() ([]vm.Instruction, error) {
	return p.parseSequence(func() bool { return false })
}

func (p *Parser) atEnd() bool {
	return p.pos >= len(p.tokens) || p.tokens[p.pos].Type == lexer.TokenEOF
}

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

// atLineStart reports whether the current token is the first token on its
// source line -- spec S4.4's "logical column zero" check for `->`, read
// operationally as "only whitespace/comments precede it since the last
// token", which trivia-skipping already guarantees between tokens.
func (p *Parser) atLineStart() bool {
	if p.pos == 0 {
		return true
	}
	return p.tokens[p.pos-1].Line < p.tokens[p.pos].Line
}

func (p *Parser) spanOf(tok lexer.Token) int {
	return p.spans.Add(vm.Span{File: p.file, Line: tok.Line, Column: tok.Column, Text: tok.Lexeme})
}

func (p *Parser) errAt(tok lexer.Token, kind langerrors.Kind, msg string) error {
	return langerrors.New(kind, msg).WithLocation(langerrors.Location{File: p.file, Line: tok.Line, Column: tok.Column})
}

// parseSequence emits instructions until stop() reports true (checked
// before each token) or the stream ends, handling the structural
// constructs that can appear at any nesting level: guard parens, blocks,
// and `->` definitions. Plain tokens are delegated to parseOrdinaryToken.
func (p *Parser) parseSequence(stop func() bool) ([]vm.Instruction, error) {
	var out []vm.Instruction
	var pendingGuard []string

	for !p.atEnd() && !stop() {
		tok := p.peek()

		switch tok.Type {
		case lexer.TokenRBrace:
			return nil, p.errAt(tok, langerrors.Syntax, "unexpected `}`")
		case lexer.TokenRParen:
			return nil, p.errAt(tok, langerrors.Syntax, "unexpected `)`")
		case lexer.TokenLBracket, lexer.TokenRBracket:
			return nil, p.errAt(tok, langerrors.Unimplemented, "brackets are reserved and not implemented")

		case lexer.TokenLParen:
			if pendingGuard != nil {
				return nil, p.errAt(tok, langerrors.Syntax, "a guard is already pending")
			}
			names, err := p.parseGuardList()
			if err != nil {
				return nil, err
			}
			next := p.peek()
			if next.Type != lexer.TokenLBrace && !(next.Type == lexer.TokenArrow && p.atLineStart()) {
				return nil, p.errAt(next, langerrors.Syntax, "guard must precede a block or a `->` definition")
			}
			pendingGuard = names

		case lexer.TokenArrow:
			if !p.atLineStart() {
				return nil, p.errAt(tok, langerrors.Syntax, "`->` must begin at the start of a line")
			}
			p.advance()
			guard := pendingGuard
			pendingGuard = nil
			defInstrs, err := p.parseDefinition(guard, tok)
			if err != nil {
				return nil, err
			}
			out = append(out, defInstrs...)

		case lexer.TokenLBrace:
			open := p.advance()
			inner, err := p.parseSequence(func() bool { return p.peek().Type == lexer.TokenRBrace })
			if err != nil {
				return nil, err
			}
			if p.atEnd() {
				return nil, p.errAt(open, langerrors.Syntax, "unbalanced `{`")
			}
			p.advance() // consume '}'
			span := p.spanOf(open)
			var fn *vm.Function
			if pendingGuard != nil {
				fn = vm.NewBlock(wrapGuard(pendingGuard, inner, span))
				pendingGuard = nil
			} else {
				fn = vm.NewBlock(inner)
			}
			out = append(out, vm.Instruction{Op: vm.OpPushFunction, Function: fn, Span: span})

		default:
			next, err := p.parseOrdinaryToken(out)
			if err != nil {
				return nil, err
			}
			out = next
		}
	}

	if pendingGuard != nil {
		return nil, p.errAt(p.peek(), langerrors.Syntax, "guard not applied to a block or definition")
	}
	return out, nil
}

// parseGuardList parses `( a b c )` into a name list (spec S4.4).
func (p *Parser) parseGuardList() ([]string, error) {
	open := p.advance() // '('
	var names []string
	for {
		if p.atEnd() {
			return nil, p.errAt(open, langerrors.Syntax, "unbalanced `(`")
		}
		tok := p.peek()
		if tok.Type == lexer.TokenRParen {
			p.advance()
			return names, nil
		}
		if tok.Type != lexer.TokenSymbol {
			return nil, p.errAt(tok, langerrors.Syntax, "guard list expects a bare name")
		}
		names = append(names, tok.Lexeme)
		p.advance()
	}
}

// parseDefinition handles `-> name ...` once `->` has been consumed (spec
// S4.4). arrowTok anchors diagnostics and the emitted def's span.
func (p *Parser) parseDefinition(outerGuard []string, arrowTok lexer.Token) ([]vm.Instruction, error) {
	nameTok := p.peek()
	if nameTok.Type != lexer.TokenSymbol {
		return nil, p.errAt(nameTok, langerrors.Syntax, "`->` must be followed by a name")
	}
	p.advance()
	name := nameTok.Lexeme

	guard := outerGuard
	if p.peek().Type == lexer.TokenLParen {
		if guard != nil {
			return nil, p.errAt(p.peek(), langerrors.Syntax, "definition already has a guard")
		}
		g, err := p.parseGuardList()
		if err != nil {
			return nil, err
		}
		guard = g
	}

	if p.peek().Type == lexer.TokenPipe {
		p.advance()
		return p.parseConstDefinition(name, guard, arrowTok)
	}
	return p.parseBlockDefinition(name, guard, arrowTok)
}

// bodyUntilLineEnd parses a definition body: everything at this sequence
// level up to the next source line, or EOF (spec S4.4: "parsed until
// newline/EOF"). A nested block spanning multiple physical lines is
// consumed atomically by parseSequence's own recursion, so this only ever
// sees top-level tokens of the body.
func (p *Parser) bodyUntilLineEnd() ([]vm.Instruction, error) {
	if p.atEnd() {
		return nil, nil
	}
	startLine := p.peek().Line
	return p.parseSequence(func() bool { return p.peek().Line != startLine })
}

func (p *Parser) parseBlockDefinition(name string, guard []string, arrowTok lexer.Token) ([]vm.Instruction, error) {
	body, err := p.bodyUntilLineEnd()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, p.errAt(arrowTok, langerrors.Syntax, "definition body must not be empty")
	}

	span := p.spanOf(arrowTok)
	var fn *vm.Function
	if len(body) == 1 && body[0].Op == vm.OpPushFunction && body[0].Function.Kind == vm.FuncBlock {
		instrs := body[0].Function.Instrs
		if guard != nil {
			instrs = wrapGuard(guard, instrs, span)
		}
		fn = vm.NewBlock(instrs)
	} else {
		instrs := body
		if guard != nil {
			instrs = wrapGuard(guard, instrs, span)
		}
		fn = vm.NewBlock(instrs)
	}

	return []vm.Instruction{
		{Op: vm.OpPushFunction, Function: fn, Span: span},
		{Op: vm.OpPushValue, Value: vm.StrValue(name), Span: span},
		{Op: vm.OpBuiltin, Builtin: vm.BDef, Span: span},
	}, nil
}

// parseConstDefinition evaluates the body immediately in a cloned child
// Scope and binds the single resulting value (spec S4.4, S5).
func (p *Parser) parseConstDefinition(name string, guard []string, arrowTok lexer.Token) ([]vm.Instruction, error) {
	body, err := p.bodyUntilLineEnd()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, p.errAt(arrowTok, langerrors.Syntax, "const definition body must not be empty")
	}

	span := p.spanOf(arrowTok)
	if guard != nil {
		body = wrapGuard(guard, body, span)
	}

	if p.scope == nil {
		return nil, p.errAt(arrowTok, langerrors.ContextFail, "const definition requires a live scope")
	}
	child := p.scope.Clone()
	ev := vm.NewEvaluator(child, p.spans)
	if err := ev.Run(body); err != nil {
		return nil, err
	}
	if len(child.Stack) != 1 {
		return nil, p.errAt(arrowTok, langerrors.Runtime, "const definition must leave exactly one value on the stack")
	}
	val, err := child.Stack[0].Value()
	if err != nil {
		return nil, p.errAt(arrowTok, langerrors.Runtime, "const definition must leave a value, not a function")
	}

	return []vm.Instruction{
		{Op: vm.OpPushValue, Value: val, Span: span},
		{Op: vm.OpPushValue, Value: vm.StrValue(name), Span: span},
		{Op: vm.OpBuiltin, Builtin: vm.BDef, Span: span},
	}, nil
}

// wrapGuard brackets body in GuardBegin/GuardEnd over names (spec S4.4):
// the guard's dynamic extent is every time the enclosing function runs,
// so the begin/end pair lives inside the function body, not around the
// parse-time emission of it.
func wrapGuard(names []string, body []vm.Instruction, span int) []vm.Instruction {
	out := make([]vm.Instruction, 0, len(body)+2)
	out = append(out, vm.Instruction{Op: vm.OpGuardBegin, Names: names, Span: span})
	out = append(out, body...)
	out = append(out, vm.Instruction{Op: vm.OpGuardEnd, Names: names, Span: span})
	return out
}

// parseOrdinaryToken consumes one non-structural token and returns the
// updated instruction list. `!`, `@`, and `|` reach back into out to
// rewrite or consume the instruction just emitted, per spec S4.4.
func (p *Parser) parseOrdinaryToken(out []vm.Instruction) ([]vm.Instruction, error) {
	tok := p.advance()
	span := p.spanOf(tok)

	switch tok.Type {
	case lexer.TokenNumber:
		val, err := parseNumber(tok.Lexeme)
		if err != nil {
			return nil, p.errAt(tok, langerrors.NotANumber, err.Error())
		}
		return append(out, vm.Instruction{Op: vm.OpPushValue, Value: val, Span: span}), nil

	case lexer.TokenString:
		return append(out, vm.Instruction{Op: vm.OpPushValue, Value: vm.StrValue(tok.Lexeme), Span: span}), nil

	case lexer.TokenChar:
		r := []rune(tok.Lexeme)
		if len(r) == 0 {
			return nil, p.errAt(tok, langerrors.Lex, "empty character literal")
		}
		return append(out, vm.Instruction{Op: vm.OpPushValue, Value: vm.IntValue(int64(r[0])), Span: span}), nil

	case lexer.TokenWord, lexer.TokenRegister:
		return append(out, vm.Instruction{Op: vm.OpPushSymbol, Name: tok.Lexeme, IsRegister: true, Span: span}), nil

	case lexer.TokenSymbol:
		if b, ok := builtinByName[tok.Lexeme]; ok {
			return append(out, vm.Instruction{Op: vm.OpBuiltin, Builtin: b, Span: span}), nil
		}
		if ic, ok := intrinsicByName[tok.Lexeme]; ok {
			return append(out, vm.Instruction{Op: vm.OpIntrinsic, Intrinsic: ic, Span: span}), nil
		}
		return append(out, vm.Instruction{Op: vm.OpPushSymbol, Name: tok.Lexeme, IsRegister: false, Span: span}), nil

	case lexer.TokenSemi, lexer.TokenDot:
		return out, nil

	case lexer.TokenQuestion:
		return append(out, vm.Instruction{Op: vm.OpIntrinsic, Intrinsic: vm.ICall, Span: span}), nil

	case lexer.TokenBang:
		if len(out) == 0 {
			return nil, p.errAt(tok, langerrors.Syntax, "`!` must follow a register reference")
		}
		last := out[len(out)-1]
		if last.Op != vm.OpPushSymbol || !last.IsRegister {
			return nil, p.errAt(tok, langerrors.Syntax, "`!` must follow a register reference")
		}
		out = out[:len(out)-1]
		return append(out, vm.Instruction{Op: vm.OpIntrinsic, Intrinsic: vm.IDefineRegister, Span: span}, last), nil

	case lexer.TokenAt:
		if len(out) == 0 {
			return nil, p.errAt(tok, langerrors.Syntax, "`@` must follow an instruction")
		}
		last := out[len(out)-1]
		out = out[:len(out)-1]
		fn := vm.NewSingle(last)
		return append(out, vm.Instruction{Op: vm.OpPushFunction, Function: fn, Span: span}), nil

	case lexer.TokenPipe:
		if len(out) == 0 {
			return nil, p.errAt(tok, langerrors.Syntax, "`|` must follow a register reference or string literal")
		}
		last := out[len(out)-1]
		var name string
		switch {
		case last.Op == vm.OpPushSymbol && last.IsRegister:
			name = last.Name
		case last.Op == vm.OpPushValue && last.Value.IsStr():
			name = last.Value.Str()
		default:
			return nil, p.errAt(tok, langerrors.Syntax, "`|` must follow a register reference or string literal")
		}
		out = out[:len(out)-1]
		return append(out, vm.Instruction{Op: vm.OpBlock, Name: name, Span: span}), nil

	default:
		if op, ok := glyphOperator[tok.Type]; ok {
			return append(out, vm.Instruction{Op: vm.OpOperator, Operator: op, Span: span}), nil
		}
		return nil, p.errAt(tok, langerrors.Syntax, "unexpected token "+string(tok.Type))
	}
}

// parseNumber parses a lexeme already known to match spec S6's number
// grammar (optional sign, optional single `.`) into a Value.
func parseNumber(lexeme string) (vm.Value, error) {
	if strings.Contains(lexeme, ".") {
		f, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.FloatValue(f), nil
	}
	i, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return vm.Value{}, err
	}
	return vm.IntValue(i), nil
}
