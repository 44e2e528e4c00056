package preprocess

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	macroDetectRegex = regexp.MustCompile(`!macro\s+\w+\s*\d*`)
	macroDefRegex    = regexp.MustCompile(`(?m)^\s*!macro\s+(\w+)\s*(\d*)\s*$`)
)

// HasMacros reports whether source contains at least one !macro directive.
func HasMacros(source string) bool {
	return macroDetectRegex.MatchString(source)
}

// MacroTable extracts every !macro/!endmacro definition from source and
// returns them indexed by name. A !macro with no matching !endmacro is a
// structural error.
func MacroTable(source string) (map[string]Macro, error) {
	table := make(map[string]Macro)
	if !HasMacros(source) {
		return table, nil
	}

	matches := macroDefRegex.FindAllStringSubmatch(source, -1)
	matchIndices := macroDefRegex.FindAllStringIndex(source, -1)

	for i, match := range matches {
		name := match[1]
		paramCount := 0
		if len(match) > 2 && match[2] != "" {
			paramCount = int(match[2][0] - '0')
		}

		bodyRegex := regexp.MustCompile(`(?s)!macro\s+` + regexp.QuoteMeta(name) + `\s*\d*\s*(.*?)!endmacro`)
		bodyMatch := bodyRegex.FindStringSubmatch(source)
		if bodyMatch == nil {
			line := strings.Count(source[:matchIndices[i][0]], "\n") + 1
			return nil, fmt.Errorf("!macro %q at line %d has no matching !endmacro", name, line)
		}

		parameters := make(map[string]MacroParameter, paramCount)
		for p := 1; p <= paramCount; p++ {
			paramName := fmt.Sprintf("param%c", 'A'+p-1)
			parameters[paramName] = MacroParameter{Name: paramName}
		}

		table[name] = Macro{
			Name:       name,
			Parameters: parameters,
			Body:       bodyMatch[1],
		}
	}

	return table, nil
}

// CollectMacroCalls scans source for invocations of each macro in table and
// records them on the corresponding Macro.Calls. table is updated in place.
func CollectMacroCalls(source string, table map[string]Macro) error {
	for name, macro := range table {
		pattern := `(?m)^[^\S\n]*` + regexp.QuoteMeta(name) + `\s+(.+)$`
		re := regexp.MustCompile(pattern)

		matches := re.FindAllStringSubmatchIndex(source, -1)
		for _, m := range matches {
			if len(m) < 4 {
				continue
			}
			matchStart := m[0]
			line := strings.Count(source[:matchStart], "\n") + 1
			argStr := source[m[2]:m[3]]

			rawArgs := strings.Split(argStr, ",")
			args := make([]string, 0, len(rawArgs))
			for _, arg := range rawArgs {
				if trimmed := strings.TrimSpace(arg); trimmed != "" {
					args = append(args, trimmed)
				}
			}

			if len(args) != len(macro.Parameters) {
				return fmt.Errorf("macro %q expects %d arguments, got %d at line %d",
					name, len(macro.Parameters), len(args), line)
			}

			macro.Calls = append(macro.Calls, MacroCall{Name: name, Arguments: args, Line: line})
		}
		table[name] = macro
	}
	return nil
}

// ReplaceMacroCalls expands every recorded call against its macro's body,
// substituting %1, %2, … with the call's arguments, and strips the
// !macro/!endmacro definition blocks from the result.
func ReplaceMacroCalls(source string, table map[string]Macro) string {
	for _, macro := range table {
		for _, call := range macro.Calls {
			expanded := macro.Body
			for i, arg := range call.Arguments {
				placeholder := fmt.Sprintf("%%%d", i+1)
				expanded = strings.ReplaceAll(expanded, placeholder, arg)
			}

			lines := strings.Split(expanded, "\n")
			trimmed := make([]string, 0, len(lines))
			for _, line := range lines {
				if t := strings.TrimLeft(line, " \t"); t != "" {
					trimmed = append(trimmed, t)
				}
			}
			expanded = fmt.Sprintf("\n; MACRO: %s\n%s\n", call.Name, strings.Join(trimmed, "\n"))

			callPattern := `(?m)^[^\S\n]*` + regexp.QuoteMeta(call.Name) + `[^\S\n]+` +
				regexp.QuoteMeta(strings.Join(call.Arguments, ", ")) + `[^\S\n]*$`
			source = regexp.MustCompile(callPattern).ReplaceAllString(source, expanded)
		}
	}

	macroBlockRegex := regexp.MustCompile(`(?ms)^\s*!macro\s+\w+\s*\d*\s*\n.*?!endmacro\s*$`)
	return macroBlockRegex.ReplaceAllString(source, "")
}
