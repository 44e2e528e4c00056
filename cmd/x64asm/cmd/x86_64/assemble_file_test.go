package x86_64

import (
	"os"
	"path/filepath"
	"testing"

	x86_64 "github.com/x64kit/x64asm/architecture/x86_64"
)

func TestRenderOutput_Bin(t *testing.T) {
	result := x86_64.AssembleResult{
		Sections:     map[string][]byte{".text": {0xB8, 0x3C, 0x00, 0x00, 0x00}},
		SectionOrder: []string{".text"},
	}

	out, err := renderOutput(result, "bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5 || out[0] != 0xB8 {
		t.Fatalf("expected raw .text bytes, got % X", out)
	}
}

func TestRenderOutput_Elf64(t *testing.T) {
	result := x86_64.AssembleResult{
		Sections:     map[string][]byte{".text": {0xC3}},
		SectionOrder: []string{".text"},
		Symbols:      []x86_64.Symbol{{Name: "_start", Section: ".text", Binding: x86_64.BindGlobal}},
	}

	out, err := renderOutput(result, "elf64")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) < 64 || out[0] != 0x7F || out[1] != 'E' {
		t.Fatalf("expected a valid ELF64 header, got % X", out[:16])
	}
}

func TestRenderOutput_UnknownTarget(t *testing.T) {
	_, err := renderOutput(x86_64.AssembleResult{}, "macho")
	if err == nil {
		t.Fatal("expected an error for an unrecognized --target value")
	}
}

func TestResolveFilePath_MissingFile(t *testing.T) {
	_, err := resolveFilePath(filepath.Join(t.TempDir(), "does-not-exist.asm"))
	if err == nil {
		t.Fatal("expected an error for a nonexistent file")
	}
}

func TestResolveFilePath_EmptyPath(t *testing.T) {
	if _, err := resolveFilePath(""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestRunAssembleFile_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.asm")
	if err := os.WriteFile(src, []byte("!bits 64\n!section .text\n!global _start\n_start:\n  mov rax, 60\n  mov rdi, 0\n  syscall\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.o")
	targetFlag, outputFlag = "elf64", out
	defer func() { targetFlag, outputFlag = "", "" }()

	if err := runAssembleFile(AssembleCmd, src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bytes, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected output file to be written: %v", err)
	}
	if len(bytes) < 64 || bytes[0] != 0x7F {
		t.Fatalf("expected a valid ELF object, got % X", bytes[:16])
	}
}
