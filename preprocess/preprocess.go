package preprocess

import (
	"fmt"

	"github.com/x64kit/x64asm/internal/debugcontext"
	"github.com/x64kit/x64asm/internal/lineMap"
)

// Run flattens source (read from path) into the single string the parser
// consumes: includes are inlined first (so macros and constants defined in
// an included file are visible to the includer), then !math constants are
// folded, then !macro bodies are expanded, then !ifdef/!ifndef blocks are
// resolved. tracker records a snapshot after each phase so a later
// diagnostic can be traced back to its original source line; debugCtx
// additionally records every phase's outcome the way the teacher's
// assemble-file command does.
//
// Any error aborts the pipeline and is also recorded on debugCtx (if
// non-nil) before being returned.
func Run(source, path string, tracker *lineMap.Tracker, debugCtx *debugcontext.DebugContext) (string, error) {
	source, inclusions, err := ResolveIncludes(source, path, nil)
	if err != nil {
		recordError(debugCtx, path, err)
		return source, err
	}
	if tracker != nil {
		tracker.Snapshot(source)
	}
	if debugCtx != nil {
		debugCtx.SetPhase("include")
		for _, inc := range inclusions {
			debugCtx.Info(debugCtx.Loc(inc.Line, 0), fmt.Sprintf("inlined %s", inc.Path))
		}
	}

	source, constants, err := FoldMath(source)
	if err != nil {
		recordError(debugCtx, path, err)
		return source, err
	}
	if tracker != nil {
		tracker.Snapshot(source)
	}
	if debugCtx != nil {
		debugCtx.SetPhase("math")
		for _, c := range constants {
			debugCtx.Info(debugCtx.Loc(c.Line, 0), fmt.Sprintf("%s = %d", c.Name, c.Value))
		}
	}

	macros, err := MacroTable(source)
	if err != nil {
		recordError(debugCtx, path, err)
		return source, err
	}
	if err := CollectMacroCalls(source, macros); err != nil {
		recordError(debugCtx, path, err)
		return source, err
	}
	source = ReplaceMacroCalls(source, macros)
	if tracker != nil {
		tracker.Snapshot(source)
	}

	symbolTable, err := CreateSymbolTable(source, macros)
	if err != nil {
		recordError(debugCtx, path, err)
		return source, err
	}
	source, err = HandleConditionals(source, symbolTable)
	if err != nil {
		recordError(debugCtx, path, err)
		return source, err
	}
	if tracker != nil {
		tracker.Snapshot(source)
	}
	if debugCtx != nil {
		debugCtx.SetPhase("preprocess")
	}

	return source, nil
}

func recordError(debugCtx *debugcontext.DebugContext, path string, err error) {
	if debugCtx == nil {
		return
	}
	debugCtx.Error(debugCtx.LocIn(path, 0, 0), err.Error())
}
