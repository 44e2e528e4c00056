package preprocess

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var includeDirectiveRegex = regexp.MustCompile(`(?m)^\s*!include\s+"([^"]+)"\s*$`)

// ResolveIncludes inlines every !include directive in source, recursively
// expanding included files so that a chain of includes is fully flattened
// before the parser ever runs. path identifies source for error messages and
// as the root of the expansion stack.
//
// A file that directly or transitively includes itself is reported as a
// circular inclusion rather than recursed into forever: stack holds every
// path currently being expanded on the current branch, and is restored to
// its prior contents before ResolveIncludes returns (so the same file may
// legitimately appear via two separate, non-overlapping branches).
func ResolveIncludes(source, path string, stack map[string]bool) (string, []Inclusion, error) {
	if stack == nil {
		stack = make(map[string]bool)
	}
	if stack[path] {
		return source, nil, fmt.Errorf("circular inclusion: %s is already being expanded", path)
	}
	stack[path] = true
	defer delete(stack, path)

	if !strings.Contains(source, "!include") {
		return source, nil, nil
	}

	var inclusions []Inclusion
	matches := includeDirectiveRegex.FindAllStringSubmatchIndex(source, -1)

	// Replace in reverse source order so that earlier match offsets stay
	// valid as later ones are expanded in place.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		matchStart, matchEnd := m[0], m[1]
		childPath := source[m[2]:m[3]]
		line := strings.Count(source[:matchStart], "\n") + 1

		if !strings.HasSuffix(childPath, ".asm") {
			return source, nil, fmt.Errorf("included file %q at line %d must have a .asm extension", childPath, line)
		}
		if stack[childPath] {
			return source, nil, fmt.Errorf("circular inclusion: %s is already being expanded (included at line %d)", childPath, line)
		}

		content, err := os.ReadFile(childPath)
		if err != nil {
			return source, nil, fmt.Errorf("failed to read included file %q at line %d: %w", childPath, line, err)
		}

		expanded, childInclusions, err := ResolveIncludes(string(content), childPath, stack)
		if err != nil {
			return source, nil, err
		}

		inclusions = append(inclusions, Inclusion{Path: childPath, Line: line})
		inclusions = append(inclusions, childInclusions...)

		wrapped := fmt.Sprintf("; FILE: %s\n%s\n; END FILE: %s\n",
			childPath, strings.TrimSpace(expanded), childPath)
		source = source[:matchStart] + wrapped + source[matchEnd:]
	}

	return source, inclusions, nil
}
