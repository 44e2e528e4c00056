package x86_64

import "sort"

// pendingReloc is a relocation captured during Pass 2, before label offsets
// outside the current section (or extern symbols) are necessarily knowable;
// it is resolved by applyRelocations once every section has been emitted.
type pendingReloc struct {
	section string
	offset  int // byte offset within the section's data
	size    int
	symbol  string
	pcRelative bool
	addend  int32
}

// sectionBuffer accumulates bytes (or, for .bss, a reserved size with no
// backing bytes) for one section during assembly.
type sectionBuffer struct {
	name string
	data []byte
	size int
}

// sectionOrder is the deterministic layout order of known sections in the
// final object; sections outside this list sort after it, alphabetically.
var sectionOrder = map[string]int{
	".text": 0,
	".data": 1,
	".rodata": 2,
	".bss": 3,
}

func (a *Assembler) switchSection(name string) {
	a.current = name
	if _, exists := a.sections[name]; !exists {
		a.sections[name] = &sectionBuffer{name: name}
		a.sectionNames = append(a.sectionNames, name)
	}
}

func (a *Assembler) ensureSection() {
	if a.current == "" {
		a.switchSection(".text")
	}
}

func (a *Assembler) currentSection() *sectionBuffer {
	if a.current == "" {
		return nil
	}
	return a.sections[a.current]
}

// orderedSectionNames returns every section that was ever touched, sorted
// into the canonical .text/.data/.rodata/.bss order with any unrecognized
// section name placed afterward, alphabetically.
func (a *Assembler) orderedSectionNames() []string {
	names := append([]string(nil), a.sectionNames...)
	sort.Slice(names, func(i, j int) bool {
		oi, oki := sectionOrder[names[i]]
		oj, okj := sectionOrder[names[j]]
		if !oki {
			oi = len(sectionOrder)
		}
		if !okj {
			oj = len(sectionOrder)
		}
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}
