package preprocess

import (
	"fmt"
	"regexp"
	"strings"
)

var conditionalDirectiveRegex = regexp.MustCompile(`(?m)^\s*!(ifdef|ifndef|else|endif)\s*(\w*)\s*$`)

type conditionalStackEntry struct {
	directive string
	symbol    string
	start     int
	end       int
	line      int
	elseStart int
	elseEnd   int
}

type conditionalBlock struct {
	ifDirective string
	symbol      string
	ifStart     int
	ifEnd       int
	elseStart   int
	elseEnd     int
	endifStart  int
	endifEnd    int
	line        int
}

// HandleConditionals evaluates !ifdef/!ifndef/!else/!endif blocks against
// definedSymbols and returns a source string with only the active branches
// retained; every directive line is removed from the output.
func HandleConditionals(source string, definedSymbols map[string]bool) (string, error) {
	if len(source) == 0 {
		return source, nil
	}

	hasConditionals := strings.Contains(source, "!ifdef") ||
		strings.Contains(source, "!ifndef") ||
		strings.Contains(source, "!endif")
	if !hasConditionals {
		return StripDefines(source), nil
	}

	matches := conditionalDirectiveRegex.FindAllStringSubmatchIndex(source, -1)
	if len(matches) == 0 {
		return StripDefines(source), nil
	}

	lineNumbers := precomputeLineNumbers(source, matches)

	var stack []conditionalStackEntry
	var blocks []conditionalBlock

	for mi, m := range matches {
		if len(m) < 6 {
			continue
		}
		matchStart, matchEnd := m[0], m[1]
		directive := source[m[2]:m[3]]
		symbol := ""
		if m[4] != m[5] {
			symbol = source[m[4]:m[5]]
		}
		line := lineNumbers[mi]

		switch directive {
		case "ifdef", "ifndef":
			stack = append(stack, conditionalStackEntry{
				directive: directive, symbol: symbol,
				start: matchStart, end: matchEnd, line: line,
				elseStart: -1, elseEnd: -1,
			})
		case "else":
			if len(stack) == 0 {
				return source, fmt.Errorf("!else without matching !ifdef/!ifndef at line %d", line)
			}
			top := &stack[len(stack)-1]
			if top.elseStart != -1 {
				return source, fmt.Errorf("duplicate !else for !ifdef/!ifndef at line %d", line)
			}
			top.elseStart = matchStart
			top.elseEnd = matchEnd
		case "endif":
			if len(stack) == 0 {
				return source, fmt.Errorf("!endif without matching !ifdef/!ifndef at line %d", line)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			blocks = append(blocks, conditionalBlock{
				ifDirective: top.directive, symbol: top.symbol,
				ifStart: top.start, ifEnd: top.end,
				elseStart: top.elseStart, elseEnd: top.elseEnd,
				endifStart: matchStart, endifEnd: matchEnd,
				line: top.line,
			})
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return source, fmt.Errorf("!ifdef/!ifndef at line %d has no matching !endif", top.line)
	}

	sortBlocksByStart(blocks)

	var sb strings.Builder
	sb.Grow(len(source))
	cursor := 0

	for _, b := range blocks {
		if b.ifStart > cursor {
			sb.WriteString(source[cursor:b.ifStart])
		}

		conditionMet := definedSymbols[b.symbol]
		if b.ifDirective == "ifndef" {
			conditionMet = !conditionMet
		}

		var branchStart, branchEnd int
		hasBranch := false
		if b.elseStart == -1 {
			if conditionMet {
				branchStart, branchEnd, hasBranch = b.ifEnd, b.endifStart, true
			}
		} else {
			hasBranch = true
			if conditionMet {
				branchStart, branchEnd = b.ifEnd, b.elseStart
			} else {
				branchStart, branchEnd = b.elseEnd, b.endifStart
			}
		}

		if hasBranch {
			s, e := trimSpaceBounds(source, branchStart, branchEnd)
			if s < e {
				sb.WriteByte('\n')
				sb.WriteString(source[s:e])
				sb.WriteByte('\n')
			}
		}

		cursor = b.endifEnd
	}

	if cursor < len(source) {
		sb.WriteString(source[cursor:])
	}

	return StripDefines(sb.String()), nil
}

func trimSpaceBounds(source string, start, end int) (int, int) {
	for start < end && isBlankByte(source[start]) {
		start++
	}
	for end > start && isBlankByte(source[end-1]) {
		end--
	}
	return start, end
}

func isBlankByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func precomputeLineNumbers(source string, matches [][]int) []int {
	result := make([]int, len(matches))
	line := 1
	prev := 0
	for i, m := range matches {
		if len(m) < 2 {
			continue
		}
		offset := m[0]
		for j := prev; j < offset; j++ {
			if source[j] == '\n' {
				line++
			}
		}
		result[i] = line
		prev = offset
	}
	return result
}

// sortBlocksByStart sorts conditional blocks by their ifStart offset.
// Insertion sort is adequate: nesting depth in real sources is small.
func sortBlocksByStart(blocks []conditionalBlock) {
	for i := 1; i < len(blocks); i++ {
		key := blocks[i]
		j := i - 1
		for j >= 0 && blocks[j].ifStart > key.ifStart {
			blocks[j+1] = blocks[j]
			j--
		}
		blocks[j+1] = key
	}
}
