// Package elf assembles a relocatable ELF32/ELF64 object file from the
// section bytes, symbol table, and relocation list an x86_64.Assembler
// produces. It is deliberately independent of the standard library's
// debug/elf package, which only knows how to read ELF files, not write
// them; the byte layout here is hand-written against the ELF specification
// the same way the reference assembler's own elf.rs lays out section and
// program headers field by field.
package elf

import (
	"bytes"
	"io"

	x86_64 "github.com/x64kit/x64asm/architecture/x86_64"
)

// section header types
const (
	shtNull     = 0
	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3
	shtRela     = 4
	shtRel      = 9
)

// section header flags
const (
	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecinstr = 0x4
)

const (
	emI386    = 3
	emX8664   = 62
	etRel     = 1
	evCurrent = 1

	ehdrSize32 = 52
	ehdrSize64 = 64
	shdrSize32 = 40
	shdrSize64 = 64
	symSize32  = 16
	symSize64  = 24
	relaSize32 = 12
	relaSize64 = 24
	relSize32  = 8
	relSize64  = 16
)

// ELF32/64 symbol binding/type, packed into st_info.
const (
	stbLocal  = 0
	stbGlobal = 1
	sttNotype = 0
	sttFunc   = 2
)

// Relocation type codes this writer emits, selected by target width per
// §6's ABS32/REL32 → R_386_*/R_X86_64_* mapping.
const (
	r386_32     = 1
	r386_pc32   = 2
	rX8664_32   = 11
	rX8664_pc32 = 2
)

// Options configures Write's output shape.
type Options struct {
	// Is64Bit selects ELF64 vs ELF32 field widths and machine/class bytes.
	Is64Bit bool
}

// section is one emitted ELF section: its final name, header fields, and
// raw payload.
type section struct {
	name       string
	nameOffset uint32 // byte offset of name within the final .shstrtab
	data       []byte
	stype      uint32
	flags      uint64
	link       uint32
	info       uint32
	addralign  uint64
	entsize    uint64
}

// Write serializes result into an ELF32/ELF64 relocatable object and writes
// it to w. Section layout follows the reference order: one PROGBITS section
// per assembled section, then .strtab, .symtab, any relocation sections
// unresolved symbols require, and finally .shstrtab — matching §6's
// "(.text, .shstrtab, .strtab, .symtab, and conditionally .rel.text and/or
// .rela.text)" section set.
func Write(w io.Writer, result x86_64.AssembleResult, opts Options) error {
	b := &builder{opts: opts, result: result}
	return b.write(w)
}

type builder struct {
	opts   Options
	result x86_64.AssembleResult
}

func (b *builder) write(w io.Writer) error {
	var sections []section
	sections = append(sections, section{}) // SHT_NULL at index 0

	// AssembleResult never carries .bss (the assembler tracks its size but
	// emits no bytes for it), so every section here is SHT_PROGBITS.
	sectionIndex := map[string]int{}
	for _, name := range b.result.SectionOrder {
		sections = append(sections, section{
			name: name, data: b.result.Sections[name], stype: shtProgbits,
			flags: sectionFlags(name), addralign: 1,
		})
		sectionIndex[name] = len(sections) - 1
	}

	var strtab strtabBuilder
	strtabIdx := len(sections)
	sections = append(sections, section{name: ".strtab", stype: shtStrtab, addralign: 1})

	symtabData, localCount := b.buildSymtab(&strtab, sectionIndex)
	entsize := uint64(symSize64)
	if !b.opts.Is64Bit {
		entsize = symSize32
	}
	symtabIdx := len(sections)
	sections = append(sections, section{
		name: ".symtab", stype: shtSymtab, addralign: entsize, entsize: entsize,
		link: uint32(strtabIdx), info: uint32(localCount), data: symtabData,
	})
	sections[strtabIdx].data = strtab.bytes()

	sections = append(sections, b.buildRelocationSections(sectionIndex, symtabIdx)...)

	shstrtabIdx := len(sections)
	var shstrtab strtabBuilder
	shstrtab.add("") // offset 0 is reserved for the empty name (SHT_NULL)
	for i := range sections {
		if i == 0 {
			continue
		}
		sections[i].nameOffset = shstrtab.add(sections[i].name)
	}
	shstrtabNameOff := shstrtab.add(".shstrtab")
	sections = append(sections, section{
		name: ".shstrtab", nameOffset: shstrtabNameOff, stype: shtStrtab,
		addralign: 1, data: shstrtab.bytes(),
	})

	return b.layoutAndWrite(w, sections, shstrtabIdx)
}

func sectionFlags(name string) uint64 {
	switch name {
	case ".text":
		return shfAlloc | shfExecinstr
	case ".data":
		return shfAlloc | shfWrite
	default:
		return shfAlloc
	}
}

// buildSymtab appends a null symbol plus one entry per Symbol the assembler
// reported, in the stable local/global/extern order Symbols() already
// guarantees, and returns the raw .symtab payload plus the count of local
// symbols (sh_info, per the ELF convention that locals precede globals).
func (b *builder) buildSymtab(strtab *strtabBuilder, sectionIndex map[string]int) ([]byte, int) {
	var buf bytes.Buffer
	strtab.add("")
	buf.Write(make([]byte, symEntrySize(b.opts.Is64Bit))) // null symbol

	localCount := 1
	for _, sym := range b.result.Symbols {
		nameOff := strtab.add(sym.Name)
		shndx := uint16(0)
		if idx, ok := sectionIndex[sym.Section]; ok {
			shndx = uint16(idx)
		}
		bind := uint8(stbLocal)
		typ := uint8(sttNotype)
		if sym.Binding == x86_64.BindGlobal {
			bind = stbGlobal
		} else {
			localCount++
		}
		if sym.Section != "" {
			typ = sttFunc
		}
		info := (bind << 4) | typ

		if b.opts.Is64Bit {
			writeSym64(&buf, nameOff, info, shndx, uint64(sym.Offset))
		} else {
			writeSym32(&buf, nameOff, info, shndx, uint32(sym.Offset))
		}
	}
	return buf.Bytes(), localCount
}

func symEntrySize(is64 bool) uint64 {
	if is64 {
		return symSize64
	}
	return symSize32
}

func writeSym64(buf *bytes.Buffer, name uint32, info uint8, shndx uint16, value uint64) {
	putU32(buf, name)
	buf.WriteByte(info)
	buf.WriteByte(0) // st_other
	putU16(buf, shndx)
	putU64(buf, value)
	putU64(buf, 0) // st_size
}

func writeSym32(buf *bytes.Buffer, name uint32, info uint8, shndx uint16, value uint32) {
	putU32(buf, name)
	putU32(buf, value)
	putU32(buf, 0) // st_size
	buf.WriteByte(info)
	buf.WriteByte(0)
	putU16(buf, shndx)
}

// symbolIndexByName maps every emitted symbol name to its .symtab index
// (offset by 1 for the leading null symbol), needed for relocation entries'
// r_info field.
func (b *builder) symbolIndexByName() map[string]int {
	out := map[string]int{}
	for i, sym := range b.result.Symbols {
		out[sym.Name] = i + 1
	}
	return out
}

// buildRelocationSections groups every unresolved Relocation by target
// section and emits one .rel<section> (addend always 0) or .rela<section>
// (addend present) section per group — generalized across every section
// rather than .text alone, since an extern or cross-section reference may
// originate in .data as easily as .text.
func (b *builder) buildRelocationSections(sectionIndex map[string]int, symtabIdx int) []section {
	byTarget := map[string][]x86_64.Relocation{}
	var order []string
	for _, r := range b.result.Externs {
		if _, seen := byTarget[r.Section]; !seen {
			order = append(order, r.Section)
		}
		byTarget[r.Section] = append(byTarget[r.Section], r)
	}

	symIdx := b.symbolIndexByName()

	var out []section
	for _, target := range order {
		relocs := byTarget[target]
		hasAddend := false
		for _, r := range relocs {
			if r.Addend != 0 {
				hasAddend = true
				break
			}
		}

		var buf bytes.Buffer
		for _, r := range relocs {
			typ := relocTypeCode(r.Type, b.opts.Is64Bit)
			sym := uint32(symIdx[r.Symbol])
			if b.opts.Is64Bit {
				info := (uint64(sym) << 32) | uint64(typ)
				putU64(&buf, uint64(r.Offset))
				putU64(&buf, info)
				if hasAddend {
					putU64(&buf, uint64(r.Addend))
				}
			} else {
				info := (sym << 8) | typ
				putU32(&buf, uint32(r.Offset))
				putU32(&buf, info)
				if hasAddend {
					putU32(&buf, uint32(r.Addend))
				}
			}
		}

		name := ".rel" + target
		stype := uint32(shtRel)
		entsize := uint64(relSize64)
		if !b.opts.Is64Bit {
			entsize = relSize32
		}
		if hasAddend {
			name = ".rela" + target
			stype = shtRela
			entsize = relaSize64
			if !b.opts.Is64Bit {
				entsize = relaSize32
			}
		}

		out = append(out, section{
			name: name, stype: stype, data: buf.Bytes(),
			link: uint32(symtabIdx), info: uint32(sectionIndex[target]),
			addralign: entsize, entsize: entsize,
		})
	}
	return out
}

func relocTypeCode(t x86_64.RelocType, is64 bool) uint32 {
	switch {
	case is64 && t == x86_64.RelABS32:
		return rX8664_32
	case is64 && t == x86_64.RelREL32:
		return rX8664_pc32
	case !is64 && t == x86_64.RelABS32:
		return r386_32
	default:
		return r386_pc32
	}
}

// layoutAndWrite computes file offsets for every section's payload and
// the section-header table, then writes the ELF header, every section's
// bytes in order, and the section header table, in that order.
func (b *builder) layoutAndWrite(w io.Writer, sections []section, shstrtabIdx int) error {
	ehdrSize := uint64(ehdrSize64)
	shdrSize := uint64(shdrSize64)
	if !b.opts.Is64Bit {
		ehdrSize = ehdrSize32
		shdrSize = shdrSize32
	}

	offsets := make([]uint64, len(sections))
	cursor := ehdrSize
	for i, sec := range sections {
		if sec.stype == shtNull {
			offsets[i] = 0
			continue
		}
		offsets[i] = cursor
		cursor += uint64(len(sec.data))
	}
	shoff := cursor

	if err := b.writeHeader(w, ehdrSize, shoff, shdrSize, len(sections), shstrtabIdx); err != nil {
		return err
	}
	for _, sec := range sections {
		if sec.stype == shtNull {
			continue
		}
		if _, err := w.Write(sec.data); err != nil {
			return err
		}
	}
	for i, sec := range sections {
		if err := b.writeSectionHeader(w, sec, offsets[i]); err != nil {
			return err
		}
	}
	return nil
}

// writeHeader emits e_ident followed by the rest of the ELF header, per
// §6: e_ident class/data bytes, EM_386/EM_X86_64 machine, and the
// architecture-appropriate header/section-header sizes.
func (b *builder) writeHeader(w io.Writer, ehdrSize, shoff, shdrSize uint64, shnum, shstrndx int) error {
	class := byte(1)
	machine := uint16(emI386)
	if b.opts.Is64Bit {
		class = 2
		machine = emX8664
	}

	ident := [16]byte{0x7F, 'E', 'L', 'F', class, 1, 1}
	if _, err := w.Write(ident[:]); err != nil {
		return err
	}

	var buf bytes.Buffer
	putU16(&buf, etRel)
	putU16(&buf, machine)
	putU32(&buf, evCurrent)

	if b.opts.Is64Bit {
		putU64(&buf, 0) // e_entry
		putU64(&buf, 0) // e_phoff
		putU64(&buf, shoff)
	} else {
		putU32(&buf, 0)
		putU32(&buf, 0)
		putU32(&buf, uint32(shoff))
	}

	putU32(&buf, 0) // e_flags
	putU16(&buf, uint16(ehdrSize))
	putU16(&buf, 0) // e_phentsize
	putU16(&buf, 0) // e_phnum
	putU16(&buf, uint16(shdrSize))
	putU16(&buf, uint16(shnum))
	putU16(&buf, uint16(shstrndx))

	_, err := w.Write(buf.Bytes())
	return err
}

func (b *builder) writeSectionHeader(w io.Writer, sec section, offset uint64) error {
	var buf bytes.Buffer
	putU32(&buf, sec.nameOffset)
	putU32(&buf, sec.stype)

	if b.opts.Is64Bit {
		putU64(&buf, sec.flags)
		putU64(&buf, 0) // sh_addr
		putU64(&buf, offset)
		putU64(&buf, uint64(len(sec.data)))
		putU32(&buf, sec.link)
		putU32(&buf, sec.info)
		putU64(&buf, sec.addralign)
		putU64(&buf, sec.entsize)
	} else {
		putU32(&buf, uint32(sec.flags))
		putU32(&buf, 0)
		putU32(&buf, uint32(offset))
		putU32(&buf, uint32(len(sec.data)))
		putU32(&buf, sec.link)
		putU32(&buf, sec.info)
		putU32(&buf, uint32(sec.addralign))
		putU32(&buf, uint32(sec.entsize))
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func putU16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

func putU32(buf *bytes.Buffer, v uint32) {
	for i := 0; i < 4; i++ {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}

func putU64(buf *bytes.Buffer, v uint64) {
	for i := 0; i < 8; i++ {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}

// strtabBuilder accumulates a NUL-terminated string table and returns each
// added string's byte offset, the layout both .shstrtab and .strtab share.
type strtabBuilder struct {
	buf bytes.Buffer
}

func (s *strtabBuilder) add(str string) uint32 {
	off := uint32(s.buf.Len())
	s.buf.WriteString(str)
	s.buf.WriteByte(0)
	return off
}

func (s *strtabBuilder) bytes() []byte {
	return s.buf.Bytes()
}
