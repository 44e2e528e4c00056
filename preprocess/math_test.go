package preprocess_test

import (
	"strings"
	"testing"

	"github.com/x64kit/x64asm/preprocess"
)

func TestFoldMath_NoDirectives(t *testing.T) {
	out, constants, err := preprocess.FoldMath("mov rax, 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "mov rax, 1" || len(constants) != 0 {
		t.Fatalf("expected source unchanged, got %q / %v", out, constants)
	}
}

func TestFoldMath_SimpleArithmetic(t *testing.T) {
	out, constants, err := preprocess.FoldMath("!math STACK_SIZE 4 * 1024\nmov rax, STACK_SIZE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(constants) != 1 || constants[0].Value != 4096 {
		t.Fatalf("expected STACK_SIZE=4096, got %+v", constants)
	}
	if !strings.Contains(out, "mov rax, 4096") {
		t.Errorf("expected substituted value in output, got %q", out)
	}
	if strings.Contains(out, "!math") {
		t.Errorf("expected !math directive stripped, got %q", out)
	}
}

func TestFoldMath_ReferencesEarlierConstant(t *testing.T) {
	out, _, err := preprocess.FoldMath("!math BASE 0x10\n!math OFFSET BASE + 4\nmov rax, OFFSET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "mov rax, 20") {
		t.Errorf("expected OFFSET folded to 20, got %q", out)
	}
}

func TestFoldMath_DuplicateConstantIsError(t *testing.T) {
	_, _, err := preprocess.FoldMath("!math N 1\n!math N 2")
	if err == nil || !strings.Contains(err.Error(), "duplicate math constant") {
		t.Fatalf("expected duplicate math constant error, got %v", err)
	}
}

func TestFoldMath_DivisionByZeroIsError(t *testing.T) {
	_, _, err := preprocess.FoldMath("!math N 1 / 0")
	if err == nil {
		t.Fatal("expected division by zero error")
	}
}

func TestFoldMath_DoesNotSubstitutePrefixMatches(t *testing.T) {
	out, _, err := preprocess.FoldMath("!math N 1\nmov rax, NEXT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "NEXT") {
		t.Errorf("expected NEXT left untouched, got %q", out)
	}
}
