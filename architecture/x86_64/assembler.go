package x86_64

import (
	"fmt"

	"github.com/x64kit/x64asm/internal/debugcontext"
)

// Assembler transforms a parsed *Program into section-organized machine
// code plus a resolved relocation/symbol table, using the same two-pass
// collect-then-emit strategy as the reference code generator: Pass 1 walks
// every statement to learn label offsets and section sizes without keeping
// any bytes, Pass 2 walks it again to actually encode and append.
//
// Unlike a single-section generator, object output (ELF) needs every
// section's final size before any can be placed, so relocation patching is
// deferred to a third step, applyRelocations, once every section in the
// program has been fully emitted.
type Assembler struct {
	program      *Program
	bits         int
	labels       map[string]labelEntry
	externs      map[string]struct{}
	globals      map[string]bool
	sections     map[string]*sectionBuffer
	sectionNames []string
	current      string
	relocs       []pendingReloc
	errors       []AssembleError
	debugCtx     *debugcontext.DebugContext
}

// NewAssembler is the sole constructor. A nil program is treated as empty.
func NewAssembler(program *Program) *Assembler {
	if program == nil {
		program = &Program{}
	}
	return &Assembler{
		program:  program,
		bits:     64,
		labels:   make(map[string]labelEntry),
		externs:  make(map[string]struct{}),
		globals:  make(map[string]bool),
		sections: make(map[string]*sectionBuffer),
	}
}

// WithDebugContext attaches a diagnostic context; errors recorded during
// assembly are mirrored into it. Returns the Assembler for chaining.
func (a *Assembler) WithDebugContext(ctx *debugcontext.DebugContext) *Assembler {
	a.debugCtx = ctx
	return a
}

// AssembleResult is everything Assemble produces: each section's final
// bytes (after relocation patching), plus the symbol table an ELF writer
// needs to emit .symtab/.strtab and, for any relocation against an extern
// or cross-section symbol, the entries it still needs to carry forward.
type AssembleResult struct {
	Sections map[string][]byte
	// SectionOrder lists every touched section except .bss (omitted here
	// as in Sections) in canonical layout order (.text, .data, .rodata,
	// then anything else alphabetically), since Sections itself is a map
	// and iterating it directly would make object output order
	// nondeterministic.
	SectionOrder []string
	Symbols      []Symbol
	Externs      []Relocation
	Errors       []AssembleError
}

// Assemble runs both passes, patches every same-section relocation, and
// returns the finished section bytes plus whatever the object writer still
// needs for symbols this assembly doesn't itself resolve.
func (a *Assembler) Assemble() AssembleResult {
	if a.debugCtx != nil {
		a.debugCtx.SetPhase("assemble")
	}

	a.promoteEntries()
	a.collectPass()
	a.emitPass()
	externRelocs := a.applyRelocations()

	out := make(map[string][]byte, len(a.sections))
	for name, sec := range a.sections {
		if name == ".bss" {
			continue
		}
		out[name] = sec.data
	}

	if a.debugCtx != nil {
		total := 0
		for _, b := range out {
			total += len(b)
		}
		a.debugCtx.Trace(a.debugCtx.Loc(0, 0),
			fmt.Sprintf("assembly complete: %d byte(s) across %d section(s)", total, len(out)))
	}

	var order []string
	for _, name := range a.orderedSectionNames() {
		if name == ".bss" {
			continue
		}
		order = append(order, name)
	}

	return AssembleResult{
		Sections:     out,
		SectionOrder: order,
		Symbols:      a.Symbols(),
		Externs:      externRelocs,
		Errors:       a.errors,
	}
}

// collectPass walks every statement, switching sections, declaring labels
// at the section's running size, recording bits/extern directives, and
// advancing each section's size by the byte length Encode would produce —
// without keeping any of those bytes. Encode's output length never depends
// on an unresolved symbol's eventual address (every symbol reference
// reserves its full placeholder width up front), so this pass alone is
// enough to fix every label's final offset.
func (a *Assembler) collectPass() {
	for _, stmt := range a.program.Statements {
		switch s := stmt.(type) {
		case *SectionStmt:
			a.switchSection(s.Name)
		case *BitsStmt:
			a.bits = s.Bits
		case *ExternStmt:
			a.externs[s.Name] = struct{}{}
		case *GlobalStmt:
			a.markGlobal(s.Name)
		case *EntryStmt:
			// handled by promoteEntries before this pass runs
		case *AlignStmt:
			a.ensureSection()
			sec := a.currentSection()
			sec.size = alignedSize(sec.size, s.Boundary)
		case *LabelStmt:
			a.ensureSection()
			a.declareLabel(s)
		case *InstructionStmt:
			a.ensureSection()
			sec := a.currentSection()
			res, err := Encode(s.Instr)
			if err != nil {
				a.addErrorf(s.Line, s.Column, "%v", err)
				continue
			}
			sec.size += len(res.Bytes)
		}
	}

	for _, sec := range a.sections {
		sec.size = 0
	}
}

// alignedSize rounds offset up to the next multiple of boundary (a power
// of two); boundary values that aren't a positive power of two leave the
// offset untouched rather than risk an infinite/incorrect pad.
func alignedSize(offset, boundary int) int {
	if boundary <= 1 || boundary&(boundary-1) != 0 {
		return offset
	}
	return (offset + boundary - 1) &^ (boundary - 1)
}

// markGlobal records name as exported and retroactively promotes any label
// already declared under that name (global directives may precede or
// follow the label declaration they refer to).
func (a *Assembler) markGlobal(name string) {
	a.globals[name] = true
	for key, entry := range a.labels {
		if entry.name == name {
			entry.global = true
			a.labels[key] = entry
		}
	}
}

// promoteEntries applies every !entry directive in the program before any
// pass runs: the named label's statement block (itself through the next
// label or section boundary) is moved to immediately follow its section's
// declaration and marked global, matching the reference layout pass's
// entry-point promotion.
func (a *Assembler) promoteEntries() {
	for _, stmt := range a.program.Statements {
		if e, ok := stmt.(*EntryStmt); ok {
			a.promoteEntry(e.Name)
		}
	}
}

func (a *Assembler) promoteEntry(name string) {
	stmts := a.program.Statements
	sectionOf := make([]string, len(stmts))
	current := ""
	for i, stmt := range stmts {
		if s, ok := stmt.(*SectionStmt); ok {
			current = s.Name
		}
		sectionOf[i] = current
	}

	startIdx := -1
	for i, stmt := range stmts {
		if lbl, ok := stmt.(*LabelStmt); ok && lbl.Name == name {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return
	}

	sec := sectionOf[startIdx]
	endIdx := len(stmts)
	for i := startIdx + 1; i < len(stmts); i++ {
		if sectionOf[i] != sec {
			endIdx = i
			break
		}
		if _, ok := stmts[i].(*LabelStmt); ok {
			endIdx = i
			break
		}
	}

	sectionIdx := -1
	for i, stmt := range stmts {
		if s, ok := stmt.(*SectionStmt); ok && s.Name == sec {
			sectionIdx = i
			break
		}
	}
	if sectionIdx == -1 || sectionIdx >= startIdx {
		return
	}

	block := append([]Statement(nil), stmts[startIdx:endIdx]...)
	if lbl, ok := block[0].(*LabelStmt); ok {
		lbl.Global = true
	}

	out := make([]Statement, 0, len(stmts))
	out = append(out, stmts[:sectionIdx+1]...)
	out = append(out, block...)
	out = append(out, stmts[sectionIdx+1:startIdx]...)
	out = append(out, stmts[endIdx:]...)
	a.program.Statements = out
}

// emitPass walks every statement again, this time actually encoding each
// instruction and appending its bytes to the current section, capturing a
// pendingReloc for every Reloc Encode reports.
func (a *Assembler) emitPass() {
	a.current = ""

	for _, stmt := range a.program.Statements {
		switch s := stmt.(type) {
		case *SectionStmt:
			a.switchSection(s.Name)
		case *BitsStmt:
			a.bits = s.Bits
		case *ExternStmt, *GlobalStmt, *EntryStmt:
			// already recorded in collectPass / promoteEntries
		case *AlignStmt:
			a.ensureSection()
			sec := a.currentSection()
			if target := alignedSize(len(sec.data), s.Boundary); target > len(sec.data) {
				sec.data = append(sec.data, make([]byte, target-len(sec.data))...)
			}
		case *LabelStmt:
			a.ensureSection()
			// already recorded in collectPass
		case *InstructionStmt:
			a.ensureSection()
			a.encodeStatement(s)
		}
	}
}

func (a *Assembler) encodeStatement(s *InstructionStmt) {
	sec := a.currentSection()
	if sec == nil {
		return
	}

	res, err := Encode(s.Instr)
	if err != nil {
		a.addErrorf(s.Line, s.Column, "%v", err)
		return
	}

	base := len(sec.data)
	sec.data = append(sec.data, res.Bytes...)
	sec.size = len(sec.data)

	for _, r := range res.Relocs {
		a.relocs = append(a.relocs, pendingReloc{
			section:    a.current,
			offset:     base + r.Offset,
			size:       r.Size,
			symbol:     r.Symbol,
			pcRelative: r.PCRelative,
		})
	}
}

// applyRelocations patches every relocation whose symbol resolves to a
// label in the same section directly into that section's bytes, and
// returns the rest (externs, and references that cross section
// boundaries) as Relocation records for the object writer to carry.
func (a *Assembler) applyRelocations() []Relocation {
	var unresolved []Relocation

	for _, r := range a.relocs {
		entry, ok, isExtern := a.resolveSymbol(r.symbol, r.section, 0, 0)

		relType := RelABS32
		if r.pcRelative {
			relType = RelREL32
		}

		if isExtern {
			unresolved = append(unresolved, Relocation{
				Type: relType, Section: r.section, Offset: r.offset,
				Symbol: r.symbol, Addend: r.addend,
			})
			continue
		}
		if !ok {
			continue // resolveSymbol already recorded the error
		}
		if entry.section != r.section {
			unresolved = append(unresolved, Relocation{
				Type: relType, Section: r.section, Offset: r.offset,
				Symbol: r.symbol, Addend: r.addend,
			})
			continue
		}

		data := a.sections[r.section].data
		if err := applyRelocation(data, r, entry.offset); err != nil {
			a.addErrorf(0, 0, "%v", err)
		}
	}

	return unresolved
}
