package x86_64

// CondTestFlags is the "default flags value" (dfv) carried by APX's
// cond-test-cmp extension (CCMP/CTEST): each flag that would normally be
// computed by the comparison is instead forced to this fixed value when the
// condition evaluates false.
type CondTestFlags struct {
	OF bool
	SF bool
	ZF bool
	CF bool
}

// RepKind selects the F2/F3 string-instruction prefix, independent of the
// REX-family prefix that still has to be chosen for the instruction itself.
type RepKind int

const (
	RepNone RepKind = iota
	Rep             // F3
	RepNE           // F2
)

// Instruction is one assembly-level instruction after parsing: a mnemonic,
// its operands in source order, and the handful of APX/AVX directives that
// change which prefix family encodes it.
type Instruction struct {
	Mnemonic string
	Operands []Operand

	// Bits holds an operating mode (16, 32, or 64). Neither the parser
	// nor the assembler fills it in, and Encode does not read it: prefixes
	// and operand sizes are chosen the same way whatever the mode.
	Bits int

	Lock bool
	Rep  RepKind

	// NDD requests APX's non-destructive destination form (three operand
	// slots instead of two) where the opcode table lists one. selectFamily
	// does not check the form: it promotes any instruction with NDD set to
	// an EVEX-based family.
	NDD bool

	// CondTest is non-nil for CCMP/CTEST forms; its presence is itself
	// what routes the instruction to the cond-test-cmp EVEX byte-2 layout.
	CondTest *CondTestFlags
	// CondCode is the 4-bit condition (e.g. the "E" in CCMPE) gating
	// whether the dfv is forced.
	CondCode byte

	// EVEXBroadcast requests the {1toN} memory-operand broadcast; only
	// meaningful alongside a Mem operand.
	EVEXBroadcast bool
	// EVEXMaskReg is 0 for "no mask", else k1-k7.
	EVEXMaskReg byte
	// EVEXZeroing selects zeroing- over merging-masking when a mask is set.
	EVEXZeroing bool

	Line   int
	Column int
}

// Dst/Src/Src2 give named access to the first three operand slots, matching
// how the encoder and the opcode table both talk about "destination" and
// "source(s))" regardless of how many operands a given form has.
func (in Instruction) Dst() (Operand, bool)  { return in.operandAt(0) }
func (in Instruction) Src() (Operand, bool)  { return in.operandAt(1) }
func (in Instruction) Src2() (Operand, bool) { return in.operandAt(2) }

func (in Instruction) operandAt(i int) (Operand, bool) {
	if i >= len(in.Operands) {
		return Operand{}, false
	}
	return in.Operands[i], true
}

// sizes returns the Size of every operand, used by opcode-form matching.
func (in Instruction) sizes() []Size {
	out := make([]Size, len(in.Operands))
	for i, op := range in.Operands {
		out[i] = op.Size()
	}
	return out
}
