package x86_64

// labelEntry tracks a label's resolved address within a section, exactly
// the shape the original codegen's label table used, scoped the same way:
// per-section, with duplicate and cross-section reference detection.
type labelEntry struct {
	name    string
	section string
	offset  int
	global  bool
	line    int
	column  int
}

func (a *Assembler) labelKey(section, name string) string {
	return section + "\x00" + name
}

// declareLabel records a label declaration at the active section's current
// offset. A duplicate declaration in the same section is an error; the same
// name may be declared in different sections, since labels are scoped per
// section.
func (a *Assembler) declareLabel(s *LabelStmt) {
	sec := a.currentSection()
	if sec == nil {
		return
	}

	key := a.labelKey(a.current, s.Name)
	if prev, exists := a.labels[key]; exists {
		a.addErrorf(s.Line, s.Column,
			"duplicate label %q in section %q, previously declared at %d:%d",
			s.Name, a.current, prev.line, prev.column)
		return
	}

	a.labels[key] = labelEntry{
		name:    s.Name,
		section: a.current,
		offset:  sec.size,
		global:  s.Global || a.globals[s.Name],
		line:    s.Line,
		column:  s.Column,
	}
}

// resolveSymbol looks up a symbol by name, first as a label scoped to the
// instruction's own section, then as a global label in any section, and
// finally as an extern — in which case it has no resolvable offset yet and
// the caller must leave the relocation for the object writer's symbol table.
func (a *Assembler) resolveSymbol(name, section string, line, column int) (labelEntry, bool, bool) {
	if entry, ok := a.labels[a.labelKey(section, name)]; ok {
		return entry, true, false
	}
	for _, entry := range a.labels {
		if entry.name == name && entry.global {
			return entry, true, false
		}
	}
	if _, ok := a.externs[name]; ok {
		return labelEntry{}, false, true
	}
	a.addErrorf(line, column, "unresolved symbol %q", name)
	return labelEntry{}, false, false
}
