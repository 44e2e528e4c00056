package x86_64

// PrefixFamily is which prefix byte sequence an instruction form is encoded
// with. The first four are the pre-APX families; the last two are how APX
// reaches registers/features a legacy or VEX opcode was never given room
// for, by re-encoding the same opcode under EVEX instead.
type PrefixFamily int

const (
	FamilyLegacy         PrefixFamily = iota // optional REX, 0x40-0x4F
	FamilyREX2                              // APX 2-byte REX2, 0xD5 + payload
	FamilyVEX2                              // 2-byte VEX, 0xC5
	FamilyVEX3                              // 3-byte VEX, 0xC4
	FamilyEVEX                              // native 4-byte EVEX, 0x62
	FamilyPromotedLegacy                    // APX: legacy-map opcode re-encoded via EVEX
	FamilyPromotedVEX                       // APX: VEX-map opcode re-encoded via EVEX
)

// selectFamily implements the instruction-family selection procedure: most
// forms just use whatever family the opcode table already names, but three
// APX features force a promotion regardless of what the table says, because
// none of the earlier prefix families have the bits to express them:
//
//   - CCMP/CTEST (CondTest set) are only representable through the
//     cond-test-cmp EVEX byte-2 layout, so they always promote.
//   - NDD (three-operand non-destructive destination) needs a field no
//     legacy or VEX prefix has, so it always promotes.
//   - A bare r16-r31 operand on an otherwise-legacy form can be reached by
//     REX2 alone (no promotion needed) unless the form also needs EVEX
//     masking/broadcast, in which case it promotes the rest of the way.
func selectFamily(form OpcodeForm, in Instruction) PrefixFamily {
	if in.CondTest != nil {
		return FamilyPromotedLegacy
	}
	if in.NDD {
		if form.Family == FamilyVEX2 || form.Family == FamilyVEX3 {
			return FamilyPromotedVEX
		}
		return FamilyPromotedLegacy
	}
	if form.Family == FamilyLegacy && usesAPXRegister(in) {
		if in.EVEXMaskReg != 0 || in.EVEXBroadcast {
			return FamilyPromotedLegacy
		}
		return FamilyREX2
	}
	return form.Family
}

// usesAPXRegister reports whether any operand of the instruction names a
// register in the r16-r31 extended range.
func usesAPXRegister(in Instruction) bool {
	for _, op := range in.Operands {
		if op.Kind == OperandRegister && op.Reg.IsAPXExtended() {
			return true
		}
		if op.Kind == OperandMemory {
			if op.Mem.Base != nil && op.Mem.Base.IsAPXExtended() {
				return true
			}
			if op.Mem.Index != nil && op.Mem.Index.IsAPXExtended() {
				return true
			}
		}
	}
	return false
}

// eevexCond packs the cond-test-cmp default-flags-value into EVEX byte 2.
// Each of OF/SF/ZF/CF is independently shifted into bit 6 and OR'd
// together, so only their logical OR survives in the emitted byte — this
// reproduces the reference assembler's eevex_cond function exactly rather
// than "fixing" it into four separate bit positions.
func eevexCond(f *CondTestFlags) byte {
	if f == nil {
		return 0
	}
	var b byte
	if f.OF {
		b |= 1 << 6
	}
	if f.SF {
		b |= 1 << 6
	}
	if f.ZF {
		b |= 1 << 6
	}
	if f.CF {
		b |= 1 << 6
	}
	return b
}
