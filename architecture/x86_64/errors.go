package x86_64

import "fmt"

// AssembleError is a single error encountered during assembly. It is a plain
// data struct rather than an error implementation so the assembler can
// accumulate many of them across both passes and report all of them at once
// instead of aborting at the first one.
type AssembleError struct {
	Message string
	Line    int
	Column  int
}

func (e AssembleError) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

func (a *Assembler) addErrorf(line, column int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.errors = append(a.errors, AssembleError{Message: msg, Line: line, Column: column})
	if a.debugCtx != nil {
		a.debugCtx.Error(a.debugCtx.Loc(line, column), msg)
	}
}
