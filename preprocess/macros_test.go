package preprocess_test

import (
	"strings"
	"testing"

	"github.com/x64kit/x64asm/preprocess"
)

func TestMacroTable_NoMacros(t *testing.T) {
	table, err := preprocess.MacroTable("mov rax, 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("expected empty table, got %v", table)
	}
}

func TestMacroTable_MissingEndmacroIsError(t *testing.T) {
	_, err := preprocess.MacroTable("!macro foo 1\nmov rax, %1\n")
	if err == nil || !strings.Contains(err.Error(), "no matching !endmacro") {
		t.Fatalf("expected missing !endmacro error, got %v", err)
	}
}

func TestMacroExpansion_EndToEnd(t *testing.T) {
	src := "!macro setreg 1\nmov rax, %1\n!endmacro\nsetreg 42\n"

	table, err := preprocess.MacroTable(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("expected 1 macro, got %d", len(table))
	}

	if err := preprocess.CollectMacroCalls(src, table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := preprocess.ReplaceMacroCalls(src, table)
	if !strings.Contains(out, "mov rax, 42") {
		t.Errorf("expected expanded call body, got %q", out)
	}
	if strings.Contains(out, "!macro") || strings.Contains(out, "!endmacro") {
		t.Errorf("expected macro definition stripped, got %q", out)
	}
}

func TestCollectMacroCalls_WrongArgCountIsError(t *testing.T) {
	src := "!macro setreg 1\nmov rax, %1\n!endmacro\nsetreg 1, 2\n"
	table, err := preprocess.MacroTable(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = preprocess.CollectMacroCalls(src, table)
	if err == nil || !strings.Contains(err.Error(), "expects 1 arguments") {
		t.Fatalf("expected argument count error, got %v", err)
	}
}
