package preprocess_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/x64kit/x64asm/preprocess"
)

func TestResolveIncludes_NoDirectives(t *testing.T) {
	out, inclusions, err := preprocess.ResolveIncludes("mov rax, 1", "main.asm", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "mov rax, 1" {
		t.Errorf("expected source unchanged, got %q", out)
	}
	if len(inclusions) != 0 {
		t.Errorf("expected no inclusions, got %v", inclusions)
	}
}

func TestResolveIncludes_InlinesFile(t *testing.T) {
	dir := t.TempDir()
	helper := filepath.Join(dir, "helper.asm")
	if err := os.WriteFile(helper, []byte("mov rax, 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := filepath.Join(dir, "main.asm")
	src := `!include "` + helper + `"` + "\nmov rbx, 2"

	out, inclusions, err := preprocess.ResolveIncludes(src, root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "mov rax, 1") || !strings.Contains(out, "mov rbx, 2") {
		t.Errorf("expected both original and included content, got %q", out)
	}
	if len(inclusions) != 1 || inclusions[0].Path != helper {
		t.Errorf("unexpected inclusions: %+v", inclusions)
	}
}

func TestResolveIncludes_RejectsNonAsmExtension(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "main.asm")
	src := `!include "other.txt"`

	_, _, err := preprocess.ResolveIncludes(src, root, nil)
	if err == nil || !strings.Contains(err.Error(), ".asm extension") {
		t.Fatalf("expected .asm extension error, got %v", err)
	}
}

func TestResolveIncludes_DirectCircularInclusion(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "a.asm")
	file2 := filepath.Join(dir, "b.asm")
	if err := os.WriteFile(file1, []byte(`!include "`+file2+`"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file2, []byte(`!include "`+file1+`"`), 0o644); err != nil {
		t.Fatal(err)
	}

	source, err := os.ReadFile(file1)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = preprocess.ResolveIncludes(string(source), file1, nil)
	if err == nil || !strings.Contains(err.Error(), "circular inclusion") {
		t.Fatalf("expected circular inclusion error, got %v", err)
	}
}

func TestResolveIncludes_SelfInclude(t *testing.T) {
	dir := t.TempDir()
	self := filepath.Join(dir, "self.asm")
	if err := os.WriteFile(self, []byte(`!include "`+self+`"`), 0o644); err != nil {
		t.Fatal(err)
	}

	source, err := os.ReadFile(self)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = preprocess.ResolveIncludes(string(source), self, nil)
	if err == nil || !strings.Contains(err.Error(), "circular inclusion") {
		t.Fatalf("expected circular inclusion error, got %v", err)
	}
}

func TestResolveIncludes_DiamondIsNotCircular(t *testing.T) {
	// main includes both b and c, and b and c both include shared.asm.
	// This is a diamond, not a cycle, and must succeed.
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared.asm")
	b := filepath.Join(dir, "b.asm")
	c := filepath.Join(dir, "c.asm")
	main := filepath.Join(dir, "main.asm")

	mustWrite(t, shared, "nop")
	mustWrite(t, b, `!include "`+shared+`"`)
	mustWrite(t, c, `!include "`+shared+`"`)
	mustWrite(t, main, `!include "`+b+`"`+"\n"+`!include "`+c+`"`)

	source, err := os.ReadFile(main)
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := preprocess.ResolveIncludes(string(source), main, nil)
	if err != nil {
		t.Fatalf("unexpected circular-inclusion false positive: %v", err)
	}
	if strings.Count(out, "nop") != 2 {
		t.Errorf("expected shared.asm inlined twice (once per branch), got: %q", out)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
