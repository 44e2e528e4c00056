package x86_64

// SymbolBinding mirrors the ELF STB_* distinction between symbols only
// visible within this object and ones a linker may resolve across objects.
type SymbolBinding int

const (
	BindLocal SymbolBinding = iota
	BindGlobal
	BindExtern // declared but defined in another object; no Offset/Section
)

// Symbol is one entry the object writer emits into the symbol table: either
// a label this assembly defined (Offset valid, Section non-empty) or an
// extern name a linker must still resolve (Section empty).
type Symbol struct {
	Name    string
	Section string
	Offset  int
	Binding SymbolBinding
}

// Symbols returns every label and extern this assembly knows about, in a
// stable order (locals then globals then externs, each alphabetical),
// ready for an object writer's symbol table.
func (a *Assembler) Symbols() []Symbol {
	var out []Symbol
	for _, e := range a.labels {
		binding := BindLocal
		if e.global {
			binding = BindGlobal
		}
		out = append(out, Symbol{Name: e.name, Section: e.section, Offset: e.offset, Binding: binding})
	}
	for name := range a.externs {
		out = append(out, Symbol{Name: name, Binding: BindExtern})
	}
	sortSymbols(out)
	return out
}

func sortSymbols(syms []Symbol) {
	// Stable insertion sort: local < global < extern, then by name. Kept
	// hand-rolled rather than importing sort for a handful of entries that
	// are already nearly in order from map iteration.
	for i := 1; i < len(syms); i++ {
		for j := i; j > 0 && symbolLess(syms[j], syms[j-1]); j-- {
			syms[j], syms[j-1] = syms[j-1], syms[j]
		}
	}
}

func symbolLess(a, b Symbol) bool {
	if a.Binding != b.Binding {
		return a.Binding < b.Binding
	}
	return a.Name < b.Name
}
