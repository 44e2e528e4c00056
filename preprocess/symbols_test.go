package preprocess_test

import (
	"strings"
	"testing"

	"github.com/x64kit/x64asm/preprocess"
)

func TestCreateSymbolTable_NoDefines(t *testing.T) {
	table, err := preprocess.CreateSymbolTable("mov rax, 1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("expected empty table, got %v", table)
	}
}

func TestCreateSymbolTable_CollectsDefines(t *testing.T) {
	table, err := preprocess.CreateSymbolTable("!define DEBUG\n!define VERBOSE\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !table["DEBUG"] || !table["VERBOSE"] {
		t.Errorf("expected both symbols defined, got %v", table)
	}
}

func TestCreateSymbolTable_DuplicateIsError(t *testing.T) {
	_, err := preprocess.CreateSymbolTable("!define DEBUG\n!define DEBUG\n", nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate !define") {
		t.Fatalf("expected duplicate !define error, got %v", err)
	}
}

func TestCreateSymbolTable_IncludesMacroNames(t *testing.T) {
	macros := map[string]preprocess.Macro{"setreg": {Name: "setreg"}}
	table, err := preprocess.CreateSymbolTable("mov rax, 1", macros)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !table["setreg"] {
		t.Errorf("expected macro name folded into symbol table, got %v", table)
	}
}
