package x86_64

// Mem is a memory operand. Which fields are meaningful depends on which
// addressing mode it describes:
//
//   - Direct:                    no Base, no Index, Disp only
//   - Offset:                    Base only, optional Disp
//   - Index+Scale:               Index+Scale only, no Base
//   - Index+Scale+Offset:        Index+Scale and Disp, no Base
//   - Base+Index+Scale (SIB):    Base and Index+Scale
//   - SIB+Offset:                Base, Index+Scale, and Disp
//   - RIP-relative (64-bit only): RIPRelative with Disp, no Base/Index
//
// ExplicitSize carries a size override written in source ("dword ptr ...");
// it is Unknown when the instruction form's other operand pins the size.
type Mem struct {
	Base        *Register
	Index       *Register
	Scale       byte // 1, 2, 4, or 8; meaningless without Index
	Disp        int32
	HasDisp     bool
	RIPRelative bool
	Segment     *Register // CS/SS/DS/ES/FS/GS override, nil for none

	// Broadcast marks an EVEX {1toN} broadcast memory operand: the source
	// is a single scalar element broadcast across every lane of the
	// destination vector register.
	Broadcast bool

	ExplicitSize Size
}

func (m Mem) Size() Size {
	return m.ExplicitSize
}

// HasSIB reports whether this addressing mode needs a SIB byte: any use of
// an Index register, or a bare RSP/R12-class base that ModR/M alone cannot
// name.
func (m Mem) HasSIB() bool {
	if m.Index != nil {
		return true
	}
	if m.Base != nil && m.Base.Low3() == 0x4 {
		// rsp/r12/r20/r28 (low 3 bits 100) require a SIB byte even with
		// no index, since ModR/M.rm=100 is reserved to mean "SIB follows".
		return true
	}
	return false
}

// NeedsDisp32ForBaseless reports the RBP/R13-class special case: when
// ModR/M.mod=00 and rm names rbp/r13 (low3=101), the CPU reads that
// encoding as RIP-relative/disp32-only rather than "no displacement", so
// a base register of that form with no displacement, or a zero one, must
// still carry an explicit disp8=0.
func (m Mem) NeedsDisp32ForBaseless() bool {
	return m.Base != nil && !m.RIPRelative && m.Base.Low3() == 0x5 && (!m.HasDisp || m.Disp == 0)
}
