package x86_64

// Legacy single-byte prefixes, grouped the way the reference instruction
// table names them (segment override groups, string-operation reps,
// operand/address size overrides, bus lock).
const (
	prefixLock        byte = 0xF0
	prefixRepNE       byte = 0xF2
	prefixRep         byte = 0xF3
	prefixCS          byte = 0x2E
	prefixSS          byte = 0x36
	prefixDS          byte = 0x3E
	prefixES          byte = 0x26
	prefixFS          byte = 0x64
	prefixGS          byte = 0x65
	prefixOperandSize byte = 0x66
	prefixAddressSize byte = 0x67
	rexBase           byte = 0x40
	rex2Escape        byte = 0xD5
	vex2Escape        byte = 0xC5
	vex3Escape        byte = 0xC4
	evexEscape        byte = 0x62
)

func segmentOverrideByte(r Register) (byte, bool) {
	switch r {
	case CS:
		return prefixCS, true
	case SS:
		return prefixSS, true
	case DS:
		return prefixDS, true
	case ES:
		return prefixES, true
	case FS:
		return prefixFS, true
	case GS:
		return prefixGS, true
	default:
		return 0, false
	}
}

// legacyPrefixes returns the ordered legacy prefix bytes (segment override,
// operand-size override, address-size override, lock, rep/repne) that
// precede whatever REX-family prefix the rest of the procedure selects.
func legacyPrefixes(in Instruction, form OpcodeForm) []byte {
	var out []byte

	for _, op := range in.Operands {
		if op.Kind == OperandMemory && op.Mem.Segment != nil {
			if b, ok := segmentOverrideByte(*op.Mem.Segment); ok {
				out = append(out, b)
			}
		}
	}

	if form.OperandSizeOverride {
		out = append(out, prefixOperandSize)
	}
	if in.Lock {
		out = append(out, prefixLock)
	}
	switch in.Rep {
	case Rep:
		out = append(out, prefixRep)
	case RepNE:
		out = append(out, prefixRepNE)
	}
	return out
}

// rexByte builds a single-byte legacy REX prefix: 0100WRXB. W is forced by
// the form (64-bit operand size) or the instruction's Bits==64 default
// promotion; R/X/B are the bit3 extension of reg/index/rm-or-base.
func rexByte(w, r, x, b byte) byte {
	return rexBase | (w << 3) | (r << 2) | (x << 1) | b
}

// needsREX reports whether a REX prefix is mandatory even with W=R=X=B=0,
// because the instruction addresses one of the REX-only byte registers
// (spl/bpl/sil/dil) that collide with the legacy ah/ch/dh/bh encodings.
func needsREX(in Instruction) bool {
	for _, op := range in.Operands {
		if op.Kind == OperandRegister && op.Reg.Class == GP8 && op.Reg.Num >= 4 && op.Reg.Num <= 7 {
			return true
		}
	}
	return false
}

// rex2Byte builds the APX REX2 two-byte prefix (0xD5, payload). Payload
// layout: [M][R4][X4][B4][W][R][X][B] — M selects which one-byte opcode
// map (0 = legacy map 0, 1 = the 0F map), and R4/X4/B4 are the extra
// extension bit APX registers r16-r31 need beyond REX's R/X/B.
func rex2Byte(m, w, r4, x4, b4, r, x, b byte) [2]byte {
	payload := (m << 7) | (r4 << 6) | (x4 << 5) | (b4 << 4) | (w << 3) | (r << 2) | (x << 1) | b
	return [2]byte{rex2Escape, payload}
}

// vexPP/vexMM encode the VEX/EVEX "implied legacy prefix" and "implied
// opcode map" fields, shared across VEX2/VEX3/EVEX.
const (
	vexPPNone byte = 0
	vexPP66   byte = 1
	vexPPF3   byte = 2
	vexPPF2   byte = 3

	vexMM0F   byte = 1
	vexMM0F38 byte = 2
	vexMM0F3A byte = 3
)

// vex2 builds the 2-byte VEX prefix (0xC5, byte1). Only representable when
// mm would be vexMM0F and X=B=0 (no index/high rm extension); the encoder
// falls back to vex3 otherwise.
func vex2(r, vvvv, l, pp byte) [2]byte {
	b1 := (invert1(r) << 7) | (invert4(vvvv) << 3) | (l << 2) | pp
	return [2]byte{vex2Escape, b1}
}

// vex3 builds the 3-byte VEX prefix (0xC4, byte1, byte2).
func vex3(r, x, b, mm, w, vvvv, l, pp byte) [3]byte {
	b1 := (invert1(r) << 7) | (invert1(x) << 6) | (invert1(b) << 5) | mm
	b2 := (w << 7) | (invert4(vvvv) << 3) | (l << 2) | pp
	return [3]byte{vex3Escape, b1, b2}
}

// evex builds the 4-byte EVEX prefix (0x62, P0, P1, P2) used by native
// EVEX forms and by both APX promoted families. Beyond the REX-style R/X/B
// bits it places R4 inverted in P0 bit 4, X4 inverted in P1 bit 2, and V4
// inverted in P2 bit 3. No B4 bit is encoded: P0 bit 3 is always 0.
func evex(p apxEvexParams) [4]byte {
	p0 := (invert1(p.R) << 7) | (invert1(p.X) << 6) | (invert1(p.B) << 5) | (invert1(p.R4) << 4) | p.mm
	// P1 bit 2 is ~X4. A register r/m (ModR/M.mod=11) has no index, so X4
	// is 0 there and this bit, which then acts as EVEX.U, is always 1.
	p1 := (p.W << 7) | (invert4(p.Vvvv) << 3) | (invert1(p.X4) << 2) | p.pp
	p2 := (p.Z << 7) | (p.L2 << 6) | (p.L << 5) | (p.B2 << 4) | (invert1(p.V4) << 3) | p.Aaa
	if p.CondTest != nil {
		p2 = eevexCond(p.CondTest) | p.Aaa
	}
	return [4]byte{evexEscape, p0, p1, p2}
}

// apxEvexParams gathers every field the four-byte EVEX/promoted-EVEX forms
// need; unused fields for a given family are left zero by the caller.
type apxEvexParams struct {
	R, X, B   byte // base REX-style extension bits
	R4, X4    byte // APX second extension bits for reg/index
	V4        byte // APX second extension bit for vvvv (the NDD destination)
	mm        byte // opcode map (vexMM0F/0F38/0F3A)
	W         byte
	Vvvv      byte // 4-bit NDS/NDD register, or 0 if unused
	pp        byte
	Z         byte // zeroing-masking
	L2, L     byte // vector length: 00=xmm,01=ymm,10=zmm (L2=high bit)
	B2        byte // broadcast/RC/SAE
	Aaa       byte // opmask register k0-k7
	CondTest  *CondTestFlags
}

func invert1(b byte) byte { return (^b) & 1 }
func invert4(b byte) byte { return (^b) & 0xF }
