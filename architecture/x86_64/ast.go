package x86_64

// Statement is one line of parsed assembly source: a section directive, a
// label declaration, a bits directive, or an instruction. The marker method
// keeps the set closed to this package, the same discipline the original
// kasm AST used for its Statement/Operand sum types.
type Statement interface {
	statementNode()
	Pos() (line, column int)
}

// SectionStmt switches the active section ("!section .text", ".data", ".bss").
type SectionStmt struct {
	Name   string
	Line   int
	Column int
}

func (s *SectionStmt) statementNode()          {}
func (s *SectionStmt) Pos() (int, int)         { return s.Line, s.Column }

// LabelStmt declares a label at the current section offset.
type LabelStmt struct {
	Name   string
	Global bool // exported via a "!global" directive
	Line   int
	Column int
}

func (s *LabelStmt) statementNode()  {}
func (s *LabelStmt) Pos() (int, int) { return s.Line, s.Column }

// BitsStmt records the operating mode ("!bits 64"). The assembler keeps the
// value, but Encode does not read it: operand sizes and prefix families are
// chosen the same way in every mode.
type BitsStmt struct {
	Bits   int
	Line   int
	Column int
}

func (s *BitsStmt) statementNode()  {}
func (s *BitsStmt) Pos() (int, int) { return s.Line, s.Column }

// ExternStmt declares a symbol defined elsewhere, resolved only at link time
// (or left as an undefined symbol-table entry by the object writer).
type ExternStmt struct {
	Name   string
	Line   int
	Column int
}

func (s *ExternStmt) statementNode()  {}
func (s *ExternStmt) Pos() (int, int) { return s.Line, s.Column }

// GlobalStmt ("!global name") exports a label — declared anywhere in the
// file, before or after this directive — to the object writer's symbol
// table with global visibility instead of local.
type GlobalStmt struct {
	Name   string
	Line   int
	Column int
}

func (s *GlobalStmt) statementNode()  {}
func (s *GlobalStmt) Pos() (int, int) { return s.Line, s.Column }

// EntryStmt ("!entry name") promotes a label to position 0 of its section
// and marks it global, matching how a linker locates a program's start.
type EntryStmt struct {
	Name   string
	Line   int
	Column int
}

func (s *EntryStmt) statementNode()  {}
func (s *EntryStmt) Pos() (int, int) { return s.Line, s.Column }

// AlignStmt ("!align N") pads the current section with zero bytes, if
// necessary, so the next label starts at an offset that is a multiple of N.
type AlignStmt struct {
	Boundary int
	Line     int
	Column   int
}

func (s *AlignStmt) statementNode()  {}
func (s *AlignStmt) Pos() (int, int) { return s.Line, s.Column }

// InstructionStmt wraps one parsed instruction. Unlike the original AST,
// this carries the package's own Instruction value directly rather than a
// separate mnemonic/operand-node pair — Instruction already is the
// architecture-level representation Encode consumes.
type InstructionStmt struct {
	Instr  Instruction
	Line   int
	Column int
}

func (s *InstructionStmt) statementNode()  {}
func (s *InstructionStmt) Pos() (int, int) { return s.Line, s.Column }

// Program is the root of a parsed source file: an ordered statement list.
type Program struct {
	Statements []Statement
}
