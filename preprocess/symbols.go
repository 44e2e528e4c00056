package preprocess

import (
	"fmt"
	"regexp"
	"strings"
)

var defineDirectiveRegex = regexp.MustCompile(`(?m)^\s*!define\s+(\w+)\s*$`)

// CreateSymbolTable scans source for !define directives and returns a table
// mapping each defined name to true, for use by HandleConditionals. Macro
// names from macroTable are folded in as defined symbols as well, so that
// !ifdef MACRO_NAME works the same as !ifdef'ing a plain !define.
//
// A name !define'd more than once is a structural error.
func CreateSymbolTable(source string, macroTable map[string]Macro) (map[string]bool, error) {
	symbolTable := make(map[string]bool, len(macroTable))
	if !strings.Contains(source, "!define") {
		for name := range macroTable {
			symbolTable[name] = true
		}
		return symbolTable, nil
	}

	matches := defineDirectiveRegex.FindAllStringSubmatchIndex(source, -1)
	seen := make(map[string]int, len(matches))

	for _, m := range matches {
		matchStart := m[0]
		name := source[m[2]:m[3]]
		line := strings.Count(source[:matchStart], "\n") + 1

		if firstLine, exists := seen[name]; exists {
			return nil, fmt.Errorf("duplicate !define for symbol %q at line %d (first defined at line %d)", name, line, firstLine)
		}
		seen[name] = line
		symbolTable[name] = true
	}

	for name := range macroTable {
		symbolTable[name] = true
	}

	return symbolTable, nil
}

// StripDefines removes every !define directive line from source so that
// plain definitions (used only to drive !ifdef) never reach the lexer.
func StripDefines(source string) string {
	if !strings.Contains(source, "!define") {
		return source
	}
	return defineDirectiveRegex.ReplaceAllString(source, "")
}
