package elf_test

import (
	"bytes"
	"testing"

	x86_64 "github.com/x64kit/x64asm/architecture/x86_64"
	"github.com/x64kit/x64asm/elf"
)

func simpleResult() x86_64.AssembleResult {
	return x86_64.AssembleResult{
		Sections:     map[string][]byte{".text": {0xB8, 0x3C, 0x00, 0x00, 0x00, 0x0F, 0x05}},
		SectionOrder: []string{".text"},
		Symbols: []x86_64.Symbol{
			{Name: "_start", Section: ".text", Offset: 0, Binding: x86_64.BindGlobal},
		},
	}
}

func TestWrite_IdentBytes64(t *testing.T) {
	var buf bytes.Buffer
	if err := elf.Write(&buf, simpleResult(), elf.Options{Is64Bit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()
	if len(out) < 16 {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	want := []byte{0x7F, 'E', 'L', 'F', 2, 1, 1}
	if !bytes.Equal(out[:7], want) {
		t.Fatalf("unexpected e_ident prefix: % X", out[:7])
	}
}

func TestWrite_IdentBytes32(t *testing.T) {
	var buf bytes.Buffer
	if err := elf.Write(&buf, simpleResult(), elf.Options{Is64Bit: false}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()
	want := []byte{0x7F, 'E', 'L', 'F', 1, 1, 1}
	if !bytes.Equal(out[:7], want) {
		t.Fatalf("unexpected e_ident prefix: % X", out[:7])
	}
}

func TestWrite_MachineField(t *testing.T) {
	var buf64, buf32 bytes.Buffer
	if err := elf.Write(&buf64, simpleResult(), elf.Options{Is64Bit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := elf.Write(&buf32, simpleResult(), elf.Options{Is64Bit: false}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// e_machine is a little-endian uint16 at byte offset 18 (after the
	// 16-byte e_ident and the 2-byte e_type).
	m64 := uint16(buf64.Bytes()[18]) | uint16(buf64.Bytes()[19])<<8
	m32 := uint16(buf32.Bytes()[18]) | uint16(buf32.Bytes()[19])<<8
	if m64 != 62 {
		t.Errorf("expected EM_X86_64 (62) for 64-bit target, got %d", m64)
	}
	if m32 != 3 {
		t.Errorf("expected EM_386 (3) for 32-bit target, got %d", m32)
	}
}

func TestWrite_ContainsSectionAndSymbolNames(t *testing.T) {
	var buf bytes.Buffer
	if err := elf.Write(&buf, simpleResult(), elf.Options{Is64Bit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()
	for _, want := range [][]byte{[]byte(".text\x00"), []byte(".shstrtab\x00"), []byte(".symtab\x00"), []byte("_start\x00")} {
		if !bytes.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestWrite_TextSectionBytesPreserved(t *testing.T) {
	var buf bytes.Buffer
	result := simpleResult()
	if err := elf.Write(&buf, result, elf.Options{Is64Bit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), result.Sections[".text"]) {
		t.Errorf("expected .text section bytes to appear verbatim in the object file")
	}
}

func TestWrite_RelocationSectionForExtern(t *testing.T) {
	result := simpleResult()
	result.Externs = []x86_64.Relocation{
		{Type: x86_64.RelREL32, Section: ".text", Offset: 1, Symbol: "puts", Addend: 0},
	}
	var buf bytes.Buffer
	if err := elf.Write(&buf, result, elf.Options{Is64Bit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(".rel.text\x00")) {
		t.Errorf("expected a .rel.text section name for a zero-addend extern relocation")
	}
}

func TestWrite_RelaSectionForNonZeroAddend(t *testing.T) {
	result := simpleResult()
	result.Externs = []x86_64.Relocation{
		{Type: x86_64.RelABS32, Section: ".text", Offset: 1, Symbol: "puts", Addend: 4},
	}
	var buf bytes.Buffer
	if err := elf.Write(&buf, result, elf.Options{Is64Bit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(".rela.text\x00")) {
		t.Errorf("expected a .rela.text section name for a non-zero-addend extern relocation")
	}
}

func TestWrite_EmptyResultStillProducesValidHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := elf.Write(&buf, x86_64.AssembleResult{}, elf.Options{Is64Bit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() < 64 {
		t.Fatalf("expected at least a full 64-byte ELF64 header, got %d bytes", buf.Len())
	}
}
