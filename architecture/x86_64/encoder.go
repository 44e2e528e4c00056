package x86_64

import "fmt"

// Reloc describes one relocation an encoded instruction still needs: the
// byte offset (within the bytes Encode returned) of the field to patch, its
// width, and the symbol/addend the relocation engine resolves it against.
type Reloc struct {
	Offset int // offset within the returned instruction bytes
	Size   int // 4 for rel32/abs32; kept as a field rather than a type-specific struct so future widths (e.g. abs64) need no new shape
	Symbol string
	PCRelative bool
}

// EncodeResult is everything Encode produces for one instruction: its bytes
// and any relocations those bytes still need once addresses are known.
type EncodeResult struct {
	Bytes []byte
	Relocs []Reloc
}

// Encode selects the narrowest matching opcode form for in, then assembles
// its prefixes, opcode, ModR/M(+SIB+disp), and immediate into the final
// byte sequence. Symbol operands (jmp/call targets, mov reg, addr) emit a
// zero placeholder of the form's immediate width plus a Reloc the caller's
// relocation pass resolves later.
func Encode(in Instruction) (EncodeResult, error) {
	forms, ok := Instructions[in.Mnemonic]
	if !ok {
		return EncodeResult{}, fmt.Errorf("unknown mnemonic %q", in.Mnemonic)
	}

	form, err := selectForm(forms, in)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("%s: %w", in.Mnemonic, err)
	}

	family := selectFamily(form, in)

	var out []byte
	out = append(out, legacyPrefixes(in, form)...)

	modrm, err := buildModRM(in, form)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("%s: %w", in.Mnemonic, err)
	}

	opcode := append([]byte(nil), form.Opcode...)
	w := boolByte(form.ForceW)
	regExt, rmExt, idxExt := modrm.RegBits, modrm.RMBits, modrm.IndexBits

	// opcode+rd forms (push r64, mov r64,imm64, ...) fold the register's
	// low 3 bits into the last opcode byte instead of using ModR/M; its
	// extension bit still needs to reach REX.B/REX2.B4/B.
	if form.RegInOpcode {
		dst, _ := in.Dst()
		opcode[len(opcode)-1] |= dst.Reg.Low3()
		rmExt = ebits(dst.Reg)
	}

	switch family {
	case FamilyLegacy:
		if needsREX(in) || w == 1 || regExt[1] == 1 || rmExt[1] == 1 || idxExt[1] == 1 {
			out = append(out, rexByte(w, regExt[1], idxExt[1], rmExt[1]))
		}
		out = append(out, opcode...)

	case FamilyREX2:
		m := byte(0)
		if len(opcode) > 1 && opcode[0] == 0x0F {
			m = 1
		}
		r2 := rex2Byte(m, w, regExt[0], idxExt[0], rmExt[0], regExt[1], idxExt[1], rmExt[1])
		out = append(out, r2[:]...)
		if m == 1 {
			out = append(out, opcode[1:]...)
		} else {
			out = append(out, opcode...)
		}

	case FamilyVEX2, FamilyVEX3:
		vvvv := vexVVVV(in, form)
		mm := form.VexMM
		needs3 := family == FamilyVEX3 || mm != vexMM0F || idxExt[1] == 1 || rmExt[1] == 1
		if needs3 {
			b := vex3(regExt[1], idxExt[1], rmExt[1], mm, w, vvvv, form.VexL, form.VexPP)
			out = append(out, b[:]...)
		} else {
			b := vex2(regExt[1], vvvv, form.VexL, form.VexPP)
			out = append(out, b[:]...)
		}
		out = append(out, opcodeTail(opcode)...)

	case FamilyEVEX, FamilyPromotedLegacy, FamilyPromotedVEX:
		params := apxEvexParams{
			R: regExt[1], X: idxExt[1], B: rmExt[1],
			R4: regExt[0], X4: idxExt[0], V4: 0,
			mm: evexMM(form, family), W: w,
			Vvvv: vexVVVV(in, form), pp: form.VexPP,
			Z: boolByte(in.EVEXZeroing), L2: form.EvexLL >> 1, L: form.EvexLL & 1,
			B2: boolByte(in.EVEXBroadcast || (form.Broadcastable && hasBroadcastMem(in))),
			Aaa: in.EVEXMaskReg, CondTest: in.CondTest,
		}
		b := evex(params)
		out = append(out, b[:]...)
		out = append(out, opcodeTail(opcode)...)
	}

	out = append(out, modrm.Bytes...)

	var relocs []Reloc
	if modrm.DispIsRel32 {
		relocs = append(relocs, Reloc{Offset: len(out) - 4, Size: 4, Symbol: ripSymbol(in), PCRelative: true})
	}

	if form.ImmSize != Unknown {
		sym, ok := symbolOperand(in)
		if ok {
			relOffset := len(out)
			out = append(out, make([]byte, form.ImmSize.Bytes())...)
			relocs = append(relocs, Reloc{Offset: relOffset, Size: form.ImmSize.Bytes(), Symbol: sym.Symbol, PCRelative: isPCRelativeMnemonic(in.Mnemonic)})
		} else if n, ok := immediateOperand(in); ok {
			out = append(out, n.SplitIntoBytesWidth(form.ImmSize.Bytes())...)
		}
	}

	return EncodeResult{Bytes: out, Relocs: relocs}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// opcodeTail drops the escape byte(s) a VEX/EVEX mm field already implies
// (0F, 0F38, 0F3A) from a form's opcode bytes, since those bytes are
// expressed in the prefix rather than written literally under VEX/EVEX.
func opcodeTail(opcode []byte) []byte {
	if len(opcode) >= 2 && opcode[0] == 0x0F {
		if len(opcode) >= 3 && (opcode[1] == 0x38 || opcode[1] == 0x3A) {
			return opcode[2:]
		}
		return opcode[1:]
	}
	return opcode
}

func evexMM(form OpcodeForm, family PrefixFamily) byte {
	if form.VexMM != 0 {
		return form.VexMM
	}
	if len(form.Opcode) >= 2 && form.Opcode[0] == 0x0F {
		if len(form.Opcode) >= 3 && form.Opcode[1] == 0x38 {
			return vexMM0F38
		}
		if len(form.Opcode) >= 3 && form.Opcode[1] == 0x3A {
			return vexMM0F3A
		}
		return vexMM0F
	}
	return 0
}

// vexVVVV picks the register encoded in the VEX/EVEX .vvvv field. A native
// 3-operand VEX form (vaddps dst, src1, src2/mem) puts the middle operand
// (src1) there; an APX NDD promotion puts its first operand there instead,
// since NDD's whole point is a destination distinct from both ModR/M
// operands — the opcode table writes NDD forms as (dst, rm-src, reg-src).
func vexVVVV(in Instruction, form OpcodeForm) byte {
	if len(in.Operands) < 2 {
		return 0
	}
	var r Register
	if form.NDDCapable {
		if dst, ok := in.Dst(); ok && dst.Kind == OperandRegister {
			r = dst.Reg
		} else {
			return 0
		}
	} else if len(in.Operands) >= 3 && in.Operands[1].Kind == OperandRegister {
		r = in.Operands[1].Reg
	} else {
		return 0
	}
	return r.Low3() | (r.Bit3() << 3)
}

func hasBroadcastMem(in Instruction) bool {
	for _, op := range in.Operands {
		if op.Kind == OperandMemory && op.Mem.Broadcast {
			return true
		}
	}
	return false
}

func symbolOperand(in Instruction) (Operand, bool) {
	for _, op := range in.Operands {
		if op.Kind == OperandSymbol {
			return op, true
		}
	}
	return Operand{}, false
}

func immediateOperand(in Instruction) (Number, bool) {
	for _, op := range in.Operands {
		if op.Kind == OperandImmediate {
			return op.Imm, true
		}
	}
	return Number{}, false
}

func isPCRelativeMnemonic(mnemonic string) bool {
	switch mnemonic {
	case "jmp", "call", "je", "jne", "jl", "jge", "jg", "jle":
		return true
	default:
		return false
	}
}

func ripSymbol(in Instruction) string {
	for _, op := range in.Operands {
		if op.Kind == OperandMemory && op.Mem.RIPRelative {
			return op.Symbol
		}
	}
	return ""
}

// selectForm finds the first form whose operand specs all accept in's
// actual operands, in table order (more specific/narrower forms are
// expected to precede wider fallback forms, same discipline as the
// reference instruction table).
func selectForm(forms []OpcodeForm, in Instruction) (OpcodeForm, error) {
	for _, form := range forms {
		if formMatches(form, in) {
			return form, nil
		}
	}
	return OpcodeForm{}, fmt.Errorf("no matching form for operands %v", in.sizes())
}

func formMatches(form OpcodeForm, in Instruction) bool {
	if len(form.Operands) == 1 && form.Operands[0].Kinds == nil {
		return len(in.Operands) == 0
	}
	if len(form.Operands) != len(in.Operands) {
		return false
	}
	for i, spec := range form.Operands {
		if _, ok := spec.accepts(in.Operands[i]); !ok {
			return false
		}
	}
	return true
}

// buildModRM resolves the form's ModR/M(+SIB+disp) bytes for whichever
// operand occupies the r/m slot; forms with no ModR/M (ret, nop, push
// r64, mov r64,imm64) return an empty encoding.
func buildModRM(in Instruction, form OpcodeForm) (modRMEncoding, error) {
	if !form.ModRM {
		return modRMEncoding{}, nil
	}

	rmIndex, regIndex := rmAndRegSlots(in, form)

	rmOp := in.Operands[rmIndex]

	var regField byte
	var regExt [2]byte
	if form.OpcodeExtension >= 0 {
		regField = byte(form.OpcodeExtension)
	} else if regIndex >= 0 {
		reg := in.Operands[regIndex].Reg
		regField = reg.Low3()
		regExt = ebits(reg)
	}

	return encodeRM(rmOp, regField, regExt)
}

// rmAndRegSlots decides which operand fills ModR/M.rm and which fills
// ModR/M.reg. Single-operand forms (push/pop/not/neg/inc/dec/jmp/call
// through rm) have no reg operand at all — OpcodeExtension supplies
// ModR/M.reg instead. Two-operand forms list the r/m operand first and
// the reg operand second, except forms whose first slot takes only a
// register and whose second takes memory (movzx, movsx, lea), which put
// the r/m operand second.
//
// Three-operand forms split into two shapes that read oppositely:
//   - Native VEX (vaddps dst, src1, src2/mem): ModR/M.reg is the
//     destination (slot 0), ModR/M.rm is the third slot, and the middle
//     operand (vvvv) is read out separately by vexVVVV.
//   - APX NDD promotions (add dst, rm-src, reg-src-or-imm): the opcode
//     table writes these with the non-destructive destination in slot 0
//     (read by vexVVVV, not here), the traditional ModR/M.rm operand in
//     slot 1, and — when present, i.e. not an immediate — the traditional
//     ModR/M.reg operand in slot 2.
func rmAndRegSlots(in Instruction, form OpcodeForm) (rmIndex, regIndex int) {
	switch len(form.Operands) {
	case 1:
		return 0, -1
	case 3:
		if form.NDDCapable {
			if in.Operands[2].Kind == OperandImmediate {
				return 1, -1
			}
			return 1, 2
		}
		return 2, 0
	default:
		if len(form.Operands) == 2 && !specTakes(form.Operands[0], OperandMemory) && specTakes(form.Operands[1], OperandMemory) {
			return 1, 0
		}
		return 0, 1
	}
}

func specTakes(spec OperandSpec, kind OperandKind) bool {
	for _, k := range spec.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
