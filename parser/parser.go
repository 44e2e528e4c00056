package parser

import (
	"fmt"
	"strings"

	x86_64 "github.com/x64kit/x64asm/architecture/x86_64"
	"github.com/x64kit/x64asm/internal/debugcontext"
)

// ParseError is a single error recorded during parsing. Kept as a plain
// data struct, not an error implementation, so Parse can accumulate every
// error in a file before returning rather than aborting on the first.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e ParseError) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Parser holds the token slice, current position, and accumulated errors.
type Parser struct {
	tokens   []Token
	pos      int
	errors   []ParseError
	debugCtx *debugcontext.DebugContext
}

// NewParser is the sole constructor. A nil token slice is treated as empty.
func NewParser(tokens []Token) *Parser {
	if tokens == nil {
		tokens = []Token{{Type: TokenEOF}}
	}
	return &Parser{tokens: tokens}
}

// Parse lexes and parses source text in one call, a convenience wrapper
// over NewLexer/NewParser for callers that don't need the token slice.
func Parse(source string) (*x86_64.Program, []ParseError) {
	return NewParser(NewLexer(source).Tokenize()).ParseProgram()
}

func (p *Parser) WithDebugContext(ctx *debugcontext.DebugContext) *Parser {
	p.debugCtx = ctx
	return p
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.current().Type == TokenEOF
}

func (p *Parser) addErrorf(line, column int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, ParseError{Message: msg, Line: line, Column: column})
	if p.debugCtx != nil {
		p.debugCtx.Error(p.debugCtx.Loc(line, column), msg)
	}
}

// recover consumes at least one token and continues past it until a
// plausible statement boundary, guaranteeing forward progress after an
// error instead of looping on the same bad token.
func (p *Parser) recover() {
	p.advance()
	for !p.atEnd() && !p.startsStatement(p.current()) {
		p.advance()
	}
}

func (p *Parser) startsStatement(tok Token) bool {
	switch tok.Type {
	case TokenDirective:
		return true
	case TokenIdentifier:
		return strings.HasSuffix(tok.Literal, ":") || isMnemonic(tok.Literal) || isLinePrefix(tok.Literal)
	}
	return false
}

// ParseProgram performs a single left-to-right pass over the token slice,
// returning the accumulated *x86_64.Program and every ParseError hit along
// the way — diagnostics are batched, not short-circuited.
func (p *Parser) ParseProgram() (*x86_64.Program, []ParseError) {
	if p.debugCtx != nil {
		p.debugCtx.SetPhase("parse")
	}

	prog := &x86_64.Program{}
	for !p.atEnd() {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog, p.errors
}

func (p *Parser) parseStatement() x86_64.Statement {
	tok := p.current()

	switch tok.Type {
	case TokenDirective:
		return p.parseDirective()
	case TokenIdentifier:
		if strings.HasSuffix(tok.Literal, ":") {
			return p.parseLabel()
		}
		return p.parseInstruction()
	default:
		p.addErrorf(tok.Line, tok.Column, "unexpected token %q", tok.Literal)
		p.recover()
		return nil
	}
}

func (p *Parser) parseLabel() x86_64.Statement {
	tok := p.advance()
	return &x86_64.LabelStmt{
		Name:   strings.TrimSuffix(tok.Literal, ":"),
		Line:   tok.Line,
		Column: tok.Column,
	}
}

// parseDirective dispatches on the directive keyword: !bits, !section,
// !extern, !global, !entry, !align. Anything else is a parse error.
func (p *Parser) parseDirective() x86_64.Statement {
	tok := p.advance()
	name := strings.ToLower(strings.TrimPrefix(tok.Literal, "!"))

	switch name {
	case "bits":
		n, ok := p.expectNumber()
		if !ok {
			p.addErrorf(tok.Line, tok.Column, "expected a bit-width after !bits")
			return nil
		}
		return &x86_64.BitsStmt{Bits: n, Line: tok.Line, Column: tok.Column}

	case "section":
		ident, ok := p.expectIdentifier()
		if !ok {
			p.addErrorf(tok.Line, tok.Column, "expected a section name after !section")
			return nil
		}
		p.skipSectionAttributes()
		return &x86_64.SectionStmt{Name: ident, Line: tok.Line, Column: tok.Column}

	case "extern":
		ident, ok := p.expectIdentifier()
		if !ok {
			p.addErrorf(tok.Line, tok.Column, "expected a symbol name after !extern")
			return nil
		}
		return &x86_64.ExternStmt{Name: ident, Line: tok.Line, Column: tok.Column}

	case "global":
		ident, ok := p.expectIdentifier()
		if !ok {
			p.addErrorf(tok.Line, tok.Column, "expected a symbol name after !global")
			return nil
		}
		return &x86_64.GlobalStmt{Name: ident, Line: tok.Line, Column: tok.Column}

	case "entry":
		ident, ok := p.expectIdentifier()
		if !ok {
			p.addErrorf(tok.Line, tok.Column, "expected a label name after !entry")
			return nil
		}
		return &x86_64.EntryStmt{Name: ident, Line: tok.Line, Column: tok.Column}

	case "align":
		n, ok := p.expectNumber()
		if !ok {
			p.addErrorf(tok.Line, tok.Column, "expected a boundary after !align")
			return nil
		}
		return &x86_64.AlignStmt{Boundary: n, Line: tok.Line, Column: tok.Column}

	default:
		p.addErrorf(tok.Line, tok.Column, "unknown directive %q", tok.Literal)
		p.recover()
		return nil
	}
}

// skipSectionAttributes consumes any !alloc/!write/!exec directive tokens
// trailing a !section line; this core doesn't currently vary encoding by
// section attributes (only the object writer's section-header flags do),
// so the attributes are parsed for forward-compatibility and discarded.
func (p *Parser) skipSectionAttributes() {
	for p.current().Type == TokenDirective {
		lit := strings.ToLower(strings.TrimPrefix(p.current().Literal, "!"))
		if lit != "alloc" && lit != "write" && lit != "exec" {
			return
		}
		p.advance()
	}
}

func (p *Parser) expectIdentifier() (string, bool) {
	tok := p.current()
	if tok.Type != TokenIdentifier {
		return "", false
	}
	p.advance()
	return strings.TrimSuffix(tok.Literal, ":"), true
}

func (p *Parser) expectNumber() (int, bool) {
	tok := p.current()
	if tok.Type != TokenNumber {
		return 0, false
	}
	n, err := x86_64.ParseNumber(tok.Literal)
	if err != nil {
		return 0, false
	}
	p.advance()
	return int(n.Content), true
}

// isLinePrefix reports whether word is a recognized line-level modifier
// (lock/rep/repne) that precedes a mnemonic rather than being one itself.
func isLinePrefix(word string) bool {
	switch strings.ToLower(word) {
	case "lock", "rep", "repe", "repz", "repne", "repnz":
		return true
	}
	return false
}

// isMnemonic reports whether word names any instruction this assembler
// knows how to encode — used only to let the recovery scanner recognize a
// plausible resync point, not to validate instructions during parsing
// (unknown mnemonics are instead an Encode-time error, caught downstream).
func isMnemonic(word string) bool {
	_, ok := x86_64.Instructions[strings.ToLower(word)]
	if ok {
		return true
	}
	return isCondTestMnemonic(word)
}

var condSuffixes = []string{
	"o", "no", "b", "nae", "c", "nb", "ae", "nc", "e", "z", "ne", "nz",
	"be", "na", "a", "nbe", "s", "ns", "p", "pe", "np", "po", "l", "nge",
	"ge", "nl", "le", "ng", "g", "nle",
}

// condCodes maps each condSuffixes entry, by index, to its 4-bit x86
// condition code (o=0x0 ... e/z=0x4 ... g/nle=0xF).
var condCodes = []byte{
	0x0, 0x1, 0x2, 0x2, 0x2, 0x3, 0x3, 0x3, 0x4, 0x4, 0x5, 0x5,
	0x6, 0x6, 0x7, 0x7, 0x8, 0x9, 0xA, 0xA, 0xB, 0xB, 0xC, 0xC,
	0xD, 0xD, 0xE, 0xE, 0xF, 0xF,
}

// isCondTestMnemonic reports whether word is a CCMP/CTEST condition-code
// mnemonic (e.g. "ccmpe", "ctestne") — i.e. the "ccmp"/"ctest" stem
// followed by one of the standard Jcc condition suffixes.
func isCondTestMnemonic(word string) bool {
	lower := strings.ToLower(word)
	for _, stem := range []string{"ccmp", "ctest"} {
		if !strings.HasPrefix(lower, stem) {
			continue
		}
		suffix := lower[len(stem):]
		for _, s := range condSuffixes {
			if suffix == s {
				return true
			}
		}
	}
	return false
}

// parseInstruction parses an optional lock/rep prefix, the mnemonic
// (stripping any CCMP/CTEST condition suffix into CondCode), an optional
// "{flags}" default-flags-value group, and the comma-separated operand
// list.
func (p *Parser) parseInstruction() x86_64.Statement {
	in := x86_64.Instruction{}

	for isLinePrefix(p.current().Literal) {
		switch strings.ToLower(p.advance().Literal) {
		case "lock":
			in.Lock = true
		case "rep":
			in.Rep = x86_64.Rep
		case "repe", "repz":
			in.Rep = x86_64.Rep
		case "repne", "repnz":
			in.Rep = x86_64.RepNE
		}
	}

	tok := p.advance()
	in.Line, in.Column = tok.Line, tok.Column
	mnemonic := strings.ToLower(tok.Literal)

	stem, cond, isCondTest := splitCondTestMnemonic(mnemonic)
	if isCondTest {
		in.Mnemonic = stem
		in.CondCode = cond
		in.CondTest = p.parseCondTestFlags()
	} else {
		in.Mnemonic = mnemonic
	}

	in.Operands = p.parseOperandList()
	if len(in.Operands) == 3 && nddCapableMnemonics[in.Mnemonic] {
		in.NDD = true
	}

	return &x86_64.InstructionStmt{Instr: in, Line: tok.Line, Column: tok.Column}
}

// nddCapableMnemonics names the GPR arithmetic mnemonics whose table entries
// include an APX non-destructive-destination form; a three-operand use of
// anything else (e.g. vaddps's native VEX dst/src1/src2 form) is left alone,
// since forcing NDD there would wrongly promote its prefix family.
var nddCapableMnemonics = map[string]bool{
	"add": true,
	"sub": true,
	"and": true,
	"or":  true,
	"xor": true,
}

func splitCondTestMnemonic(mnemonic string) (stem string, cond byte, ok bool) {
	for i, stem := range []string{"ccmp", "ctest"} {
		if !strings.HasPrefix(mnemonic, stem) {
			continue
		}
		suffix := mnemonic[len(stem):]
		for code, s := range condSuffixes {
			if suffix == s {
				_ = i
				return stem, condCodes[code], true
			}
		}
	}
	return mnemonic, 0, false
}

// parseCondTestFlags parses an optional "{of,sf,zf,cf}" default-flags-value
// group following a CCMP/CTEST mnemonic. Absent entirely, the dfv is the
// zero value (every flag false).
func (p *Parser) parseCondTestFlags() *x86_64.CondTestFlags {
	flags := &x86_64.CondTestFlags{}
	if p.current().Type != TokenPunct || p.current().Literal != "{" {
		return flags
	}
	p.advance()
	for p.current().Type != TokenPunct || p.current().Literal != "}" {
		if p.atEnd() {
			p.addErrorf(p.current().Line, p.current().Column, "unterminated condition-flag group, expected '}'")
			return flags
		}
		tok := p.advance()
		switch strings.ToLower(tok.Literal) {
		case "of":
			flags.OF = true
		case "sf":
			flags.SF = true
		case "zf":
			flags.ZF = true
		case "cf":
			flags.CF = true
		case ",":
			// separator, nothing to record
		default:
			p.addErrorf(tok.Line, tok.Column, "unknown condition flag %q", tok.Literal)
		}
	}
	p.advance() // consume '}'
	return flags
}

func (p *Parser) parseOperandList() []x86_64.Operand {
	var operands []x86_64.Operand
	for !p.atEnd() && !p.startsStatement(p.current()) {
		op, ok := p.parseOperand()
		if !ok {
			break
		}
		operands = append(operands, op)
		if p.current().Type == TokenPunct && p.current().Literal == "," {
			p.advance()
		}
	}
	return operands
}

func (p *Parser) parseOperand() (x86_64.Operand, bool) {
	tok := p.current()

	if size, isSizeKeyword := sizeKeyword(tok.Literal); isSizeKeyword {
		p.advance()
		if p.current().Type == TokenIdentifier && strings.EqualFold(p.current().Literal, "ptr") {
			p.advance()
		}
		return p.parseMemoryOperand(size)
	}

	switch tok.Type {
	case TokenPunct:
		if tok.Literal == "[" {
			return p.parseMemoryOperand(x86_64.Unknown)
		}
		return x86_64.Operand{}, false

	case TokenNumber:
		p.advance()
		n, err := x86_64.ParseNumber(tok.Literal)
		if err != nil {
			p.addErrorf(tok.Line, tok.Column, "%v", err)
			return x86_64.Operand{}, false
		}
		op := x86_64.ImmOperand(n)
		op.Line, op.Column = tok.Line, tok.Column
		return op, true

	case TokenIdentifier:
		if reg, ok := lookupRegister(tok.Literal); ok {
			// A register immediately followed by ':' is a segment override
			// on a memory operand (fs:[...]), not a bare register operand.
			if p.peek().Type == TokenPunct && p.peek().Literal == ":" {
				p.advance() // register
				p.advance() // ':'
				return p.parseSegmentedMemoryOperand(reg)
			}
			p.advance()
			op := x86_64.RegOperand(reg)
			op.Line, op.Column = tok.Line, tok.Column
			return op, true
		}
		p.advance()
		op := x86_64.SymbolOperand(tok.Literal)
		op.Line, op.Column = tok.Line, tok.Column
		return op, true

	default:
		return x86_64.Operand{}, false
	}
}

func (p *Parser) parseSegmentedMemoryOperand(segment x86_64.Register) (x86_64.Operand, bool) {
	size := x86_64.Unknown
	if sz, ok := sizeKeyword(p.current().Literal); ok {
		size = sz
		p.advance()
		if p.current().Type == TokenIdentifier && strings.EqualFold(p.current().Literal, "ptr") {
			p.advance()
		}
	}
	op, ok := p.parseMemoryOperand(size)
	if ok {
		op.Mem.Segment = &segment
	}
	return op, ok
}

func sizeKeyword(word string) (x86_64.Size, bool) {
	switch strings.ToLower(word) {
	case "byte":
		return x86_64.Byte, true
	case "word":
		return x86_64.Word, true
	case "dword":
		return x86_64.Dword, true
	case "qword":
		return x86_64.Qword, true
	case "xword", "oword":
		return x86_64.Xword, true
	case "yword":
		return x86_64.Yword, true
	case "zword":
		return x86_64.Zword, true
	}
	return x86_64.Unknown, false
}

func lookupRegister(word string) (x86_64.Register, bool) {
	r, ok := x86_64.RegistersByName[strings.ToLower(word)]
	return r, ok
}

// parseMemoryOperand parses a '[' ... ']' addressing expression: an
// optional base register, an optional '+index*scale', and an optional
// displacement, in any of the usual orders, plus an optional trailing
// "{1toN}" EVEX broadcast marker. "rip" as the sole base names a
// RIP-relative reference to the symbol following it (e.g. [rip+label]).
func (p *Parser) parseMemoryOperand(size x86_64.Size) (x86_64.Operand, bool) {
	openTok := p.current()
	if openTok.Type != TokenPunct || openTok.Literal != "[" {
		p.addErrorf(openTok.Line, openTok.Column, "expected '[' to start a memory operand")
		return x86_64.Operand{}, false
	}
	p.advance()

	mem := x86_64.Mem{ExplicitSize: size}
	var symbol string
	negate := false

	for {
		tok := p.current()
		if tok.Type == TokenPunct && tok.Literal == "]" {
			p.advance()
			break
		}
		if p.atEnd() {
			p.addErrorf(openTok.Line, openTok.Column, "unterminated memory operand, expected ']'")
			break
		}

		switch {
		case tok.Type == TokenPunct && (tok.Literal == "+" || tok.Literal == "-"):
			negate = tok.Literal == "-"
			p.advance()

		case tok.Type == TokenNumber:
			p.advance()
			n, err := x86_64.ParseNumber(tok.Literal)
			if err != nil {
				p.addErrorf(tok.Line, tok.Column, "%v", err)
				break
			}
			if p.current().Type == TokenPunct && p.current().Literal == "*" {
				// number*reg is equivalent to reg*number.
				p.advance()
				regTok := p.current()
				reg, isReg := lookupRegister(regTok.Literal)
				if regTok.Type != TokenIdentifier || !isReg {
					p.addErrorf(regTok.Line, regTok.Column, "expected an index register after '*'")
					break
				}
				p.advance()
				mem.Index = &reg
				mem.Scale = byte(n.Content)
				negate = false
				break
			}
			d := int32(n.Content)
			if negate {
				d = -d
			}
			mem.Disp += d
			mem.HasDisp = true
			negate = false

		case tok.Type == TokenIdentifier:
			if reg, ok := lookupRegister(tok.Literal); ok {
				p.advance()
				r := reg
				if p.current().Type == TokenPunct && p.current().Literal == "*" {
					p.advance()
					scaleTok := p.current()
					if scaleTok.Type != TokenNumber {
						p.addErrorf(scaleTok.Line, scaleTok.Column, "expected a scale (1, 2, 4, or 8) after '*'")
						break
					}
					p.advance()
					n, _ := x86_64.ParseNumber(scaleTok.Literal)
					mem.Index = &r
					mem.Scale = byte(n.Content)
				} else if strings.EqualFold(reg.Name, "rip") {
					mem.RIPRelative = true
				} else if mem.Base == nil {
					mem.Base = &r
				} else {
					mem.Index = &r
					mem.Scale = 1
				}
				negate = false
				continue
			}
			p.advance()
			symbol = tok.Literal
			negate = false

		default:
			p.addErrorf(tok.Line, tok.Column, "unexpected token %q in memory operand", tok.Literal)
			p.advance()
		}
	}

	if p.current().Type == TokenPunct && p.current().Literal == "{" {
		mem.Broadcast = p.parseBroadcastSuffix()
	}

	op := x86_64.MemOperand(mem)
	op.Line, op.Column = openTok.Line, openTok.Column
	if symbol != "" {
		op.Symbol = symbol
	}
	return op, true
}

// parseBroadcastSuffix consumes a trailing "{1toN}" EVEX broadcast marker.
// The replication count N is implied by the destination vector width and
// element size at encode time, so only the presence of the marker matters
// here.
func (p *Parser) parseBroadcastSuffix() bool {
	p.advance() // '{'
	for !(p.current().Type == TokenPunct && p.current().Literal == "}") {
		if p.atEnd() {
			return true
		}
		p.advance()
	}
	p.advance() // '}'
	return true
}
