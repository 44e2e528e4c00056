package preprocess_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/x64kit/x64asm/internal/debugcontext"
	"github.com/x64kit/x64asm/internal/lineMap"
	"github.com/x64kit/x64asm/preprocess"
)

func TestRun_FullPipeline(t *testing.T) {
	dir := t.TempDir()
	helper := filepath.Join(dir, "helper.asm")
	if err := os.WriteFile(helper, []byte("nop"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := filepath.Join(dir, "main.asm")
	src := `!include "` + helper + `"` + "\n" + `!math SIZE 2 * 8
!ifdef DEBUG
mov rax, SIZE
!endif
`
	if err := os.WriteFile(root, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	tracker, err := lineMap.Track(root)
	if err != nil {
		t.Fatalf("failed to create tracker: %v", err)
	}
	debugCtx := debugcontext.NewDebugContext(root)

	out, err := preprocess.Run(src, root, tracker, debugCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if debugCtx.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", debugCtx.Errors())
	}
	if !strings.Contains(out, "nop") {
		t.Errorf("expected included content present, got %q", out)
	}
	// DEBUG is undefined, so the !ifdef branch must be stripped even though
	// the constant it would have referenced folds correctly.
	if strings.Contains(out, "mov rax, 16") {
		t.Errorf("expected !ifdef DEBUG branch dropped, got %q", out)
	}
	if strings.Contains(out, "!include") || strings.Contains(out, "!math") || strings.Contains(out, "!ifdef") {
		t.Errorf("expected all directives consumed, got %q", out)
	}
}

func TestRun_PropagatesIncludeErrors(t *testing.T) {
	root := "/nonexistent/does-not-exist.asm"
	src := `!include "missing.asm"`

	tracker := (*lineMap.Tracker)(nil)
	debugCtx := debugcontext.NewDebugContext(root)

	_, err := preprocess.Run(src, root, tracker, debugCtx)
	if err == nil {
		t.Fatal("expected an error for a missing include target")
	}
	if !debugCtx.HasErrors() {
		t.Error("expected the error to also be recorded on the debug context")
	}
}
