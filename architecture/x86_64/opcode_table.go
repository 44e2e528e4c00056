package x86_64

// OperandSpec constrains which operand kinds and sizes a form accepts.
// Size Any joins with any concrete operand size (see Size.Join); it is used
// for r/m slots whose width is pinned by a sibling operand instead of by
// the form itself.
type OperandSpec struct {
	Kinds []OperandKind
	Size  Size
}

func (s OperandSpec) accepts(op Operand) (Size, bool) {
	match := false
	for _, k := range s.Kinds {
		if k == op.Kind {
			match = true
			break
		}
	}
	if !match {
		return Unknown, false
	}
	// A bare symbol reference carries no intrinsic width of its own (its
	// Size() is Unknown until something pins one) — the form's immediate
	// size, not operand-size unification, decides how big the reference is.
	if op.Kind == OperandSymbol {
		return s.Size, true
	}
	// An immediate's minimal size only has to fit within the field the
	// opcode provides, not equal it exactly: "add eax, 1" still encodes a
	// full imm32, it just happens to hold a small value.
	if op.Kind == OperandImmediate {
		if s.Size == Any {
			return op.Size(), true
		}
		if op.Size() <= s.Size {
			return s.Size, true
		}
		return Unknown, false
	}
	return s.Size.Join(op.Size())
}

func regSpec(sz Size) OperandSpec  { return OperandSpec{Kinds: []OperandKind{OperandRegister}, Size: sz} }
func memSpec(sz Size) OperandSpec  { return OperandSpec{Kinds: []OperandKind{OperandMemory}, Size: sz} }
func immSpec(sz Size) OperandSpec  { return OperandSpec{Kinds: []OperandKind{OperandImmediate}, Size: sz} }
func symSpec() OperandSpec         { return OperandSpec{Kinds: []OperandKind{OperandSymbol}, Size: Any} }
func rmSpec(sz Size) OperandSpec {
	return OperandSpec{Kinds: []OperandKind{OperandRegister, OperandMemory}, Size: sz}
}
func noneSpec() OperandSpec { return OperandSpec{Kinds: nil, Size: Any} }

// OpcodeForm is one concrete encoding of an instruction: the operand shape
// it matches, the opcode bytes, and every prefix-selection detail that
// differs between legacy, VEX, and EVEX forms of the "same" mnemonic.
type OpcodeForm struct {
	Operands []OperandSpec

	Opcode          []byte
	OpcodeExtension int8 // -1 when ModR/M.reg carries a real register, else the /digit

	ModRM       bool
	RegInOpcode bool // opcode+rd encoding (push r64, B8+rd, etc.)

	Family PrefixFamily

	ForceW              bool // REX.W / VEX.W / EVEX.W must be 1
	DefaultTo64          bool // 64-bit mode defaults this op to 64-bit width with no REX.W needed
	OperandSizeOverride bool // 0x66 prefix selects 16-bit operand size

	ImmSize Size // Unknown when the form carries no immediate

	// VEX/EVEX fields.
	VexL   byte // 0 = 128/xmm, 1 = 256/ymm (ignored for EVEX, see EvexLL)
	VexPP  byte
	VexMM  byte
	EvexLL byte // 00=xmm,01=ymm,10=zmm
	// NDDCapable marks forms APX can promote to a 3-operand non-destructive
	// destination encoding when Instruction.NDD is set.
	NDDCapable bool
	// Broadcastable marks EVEX forms whose memory operand may carry {1toN}.
	Broadcastable bool
}

// Instructions maps a mnemonic to every encoding shape it supports. Forms
// are tried in order; the first one whose operand specs all accept the
// instruction's actual operands is used.
var Instructions = map[string][]OpcodeForm{
	"mov": {
		{Operands: []OperandSpec{rmSpec(Byte), regSpec(Byte)}, Opcode: []byte{0x88}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Any), regSpec(Word)}, Opcode: []byte{0x89}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, OperandSizeOverride: true},
		{Operands: []OperandSpec{rmSpec(Any), regSpec(Dword)}, Opcode: []byte{0x89}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Any), regSpec(Qword)}, Opcode: []byte{0x89}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{regSpec(Byte), immSpec(Byte)}, Opcode: []byte{0xB0}, RegInOpcode: true, ImmSize: Byte, Family: FamilyLegacy},
		{Operands: []OperandSpec{regSpec(Dword), immSpec(Dword)}, Opcode: []byte{0xB8}, RegInOpcode: true, ImmSize: Dword, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Dword), immSpec(Dword)}, Opcode: []byte{0xC7}, ModRM: true, OpcodeExtension: 0, ImmSize: Dword, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword), immSpec(Dword)}, Opcode: []byte{0xC7}, ModRM: true, OpcodeExtension: 0, ImmSize: Dword, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{regSpec(Qword), immSpec(Qword)}, Opcode: []byte{0xB8}, RegInOpcode: true, ImmSize: Qword, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{regSpec(Qword), symSpec()}, Opcode: []byte{0xB8}, RegInOpcode: true, ImmSize: Qword, Family: FamilyLegacy, ForceW: true},
	},
	"movzx": {
		{Operands: []OperandSpec{regSpec(Dword), rmSpec(Byte)}, Opcode: []byte{0x0F, 0xB6}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{regSpec(Dword), rmSpec(Word)}, Opcode: []byte{0x0F, 0xB7}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
	},
	"movsx": {
		{Operands: []OperandSpec{regSpec(Dword), rmSpec(Byte)}, Opcode: []byte{0x0F, 0xBE}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{regSpec(Dword), rmSpec(Word)}, Opcode: []byte{0x0F, 0xBF}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
	},
	"lea": {
		{Operands: []OperandSpec{regSpec(Dword), memSpec(Any)}, Opcode: []byte{0x8D}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{regSpec(Qword), memSpec(Any)}, Opcode: []byte{0x8D}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
	},
	"push": {
		{Operands: []OperandSpec{regSpec(Qword)}, Opcode: []byte{0x50}, RegInOpcode: true, Family: FamilyLegacy, DefaultTo64: true},
		{Operands: []OperandSpec{immSpec(Byte)}, Opcode: []byte{0x6A}, ImmSize: Byte, Family: FamilyLegacy},
		{Operands: []OperandSpec{immSpec(Dword)}, Opcode: []byte{0x68}, ImmSize: Dword, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0xFF}, ModRM: true, OpcodeExtension: 6, Family: FamilyLegacy, DefaultTo64: true},
	},
	"pop": {
		{Operands: []OperandSpec{regSpec(Qword)}, Opcode: []byte{0x58}, RegInOpcode: true, Family: FamilyLegacy, DefaultTo64: true},
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0x8F}, ModRM: true, OpcodeExtension: 0, Family: FamilyLegacy, DefaultTo64: true},
	},
	"add": {
		{Operands: []OperandSpec{rmSpec(Byte), regSpec(Byte)}, Opcode: []byte{0x00}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Dword), regSpec(Dword)}, Opcode: []byte{0x01}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x01}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{rmSpec(Dword), immSpec(Dword)}, Opcode: []byte{0x81}, ModRM: true, OpcodeExtension: 0, ImmSize: Dword, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword), immSpec(Dword)}, Opcode: []byte{0x81}, ModRM: true, OpcodeExtension: 0, ImmSize: Dword, Family: FamilyLegacy, ForceW: true},
		// APX NDD: add dst, src, imm32 — dst is non-destructive and goes in vvvv; src is the r/m operand.
		{Operands: []OperandSpec{regSpec(Qword), rmSpec(Qword), immSpec(Dword)}, Opcode: []byte{0x81}, ModRM: true, OpcodeExtension: 0, ImmSize: Dword, Family: FamilyPromotedLegacy, ForceW: true, NDDCapable: true},
	},
	"sub": {
		{Operands: []OperandSpec{rmSpec(Dword), regSpec(Dword)}, Opcode: []byte{0x29}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x29}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{rmSpec(Qword), immSpec(Dword)}, Opcode: []byte{0x81}, ModRM: true, OpcodeExtension: 5, ImmSize: Dword, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{regSpec(Qword), rmSpec(Qword), immSpec(Dword)}, Opcode: []byte{0x81}, ModRM: true, OpcodeExtension: 5, ImmSize: Dword, Family: FamilyPromotedLegacy, ForceW: true, NDDCapable: true},
	},
	"cmp": {
		{Operands: []OperandSpec{rmSpec(Dword), regSpec(Dword)}, Opcode: []byte{0x39}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x39}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{rmSpec(Qword), immSpec(Dword)}, Opcode: []byte{0x81}, ModRM: true, OpcodeExtension: 7, ImmSize: Dword, Family: FamilyLegacy, ForceW: true},
	},
	"test": {
		{Operands: []OperandSpec{rmSpec(Dword), regSpec(Dword)}, Opcode: []byte{0x85}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x85}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
	},
	"and": {
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x21}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{regSpec(Qword), rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x21}, ModRM: true, OpcodeExtension: -1, Family: FamilyPromotedLegacy, ForceW: true, NDDCapable: true},
	},
	"or": {
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x09}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{regSpec(Qword), rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x09}, ModRM: true, OpcodeExtension: -1, Family: FamilyPromotedLegacy, ForceW: true, NDDCapable: true},
	},
	"xor": {
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x31}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
		{Operands: []OperandSpec{regSpec(Qword), rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x31}, ModRM: true, OpcodeExtension: -1, Family: FamilyPromotedLegacy, ForceW: true, NDDCapable: true},
	},
	"not": {
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0xF7}, ModRM: true, OpcodeExtension: 2, Family: FamilyLegacy, ForceW: true},
	},
	"neg": {
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0xF7}, ModRM: true, OpcodeExtension: 3, Family: FamilyLegacy, ForceW: true},
	},
	"inc": {
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0xFF}, ModRM: true, OpcodeExtension: 0, Family: FamilyLegacy, ForceW: true},
	},
	"dec": {
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0xFF}, ModRM: true, OpcodeExtension: 1, Family: FamilyLegacy, ForceW: true},
	},
	"xchg": {
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x87}, ModRM: true, OpcodeExtension: -1, Family: FamilyLegacy, ForceW: true},
	},
	"jmp": {
		{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0xE9}, ImmSize: Dword, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0xFF}, ModRM: true, OpcodeExtension: 4, Family: FamilyLegacy},
	},
	"call": {
		{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0xE8}, ImmSize: Dword, Family: FamilyLegacy},
		{Operands: []OperandSpec{rmSpec(Qword)}, Opcode: []byte{0xFF}, ModRM: true, OpcodeExtension: 2, Family: FamilyLegacy},
	},
	"ret": {
		{Operands: []OperandSpec{noneSpec()}, Opcode: []byte{0xC3}, Family: FamilyLegacy},
		{Operands: []OperandSpec{immSpec(Word)}, Opcode: []byte{0xC2}, ImmSize: Word, Family: FamilyLegacy},
	},
	"nop": {
		{Operands: []OperandSpec{noneSpec()}, Opcode: []byte{0x90}, Family: FamilyLegacy},
	},
	"hlt": {
		{Operands: []OperandSpec{noneSpec()}, Opcode: []byte{0xF4}, Family: FamilyLegacy},
	},
	"syscall": {
		{Operands: []OperandSpec{noneSpec()}, Opcode: []byte{0x0F, 0x05}, Family: FamilyLegacy},
	},
	"cpuid": {
		{Operands: []OperandSpec{noneSpec()}, Opcode: []byte{0x0F, 0xA2}, Family: FamilyLegacy},
	},

	// Jcc, rel32 only — branch shortening to rel8 is left to a future pass.
	"je":  {{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0x0F, 0x84}, ImmSize: Dword, Family: FamilyLegacy}},
	"jne": {{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0x0F, 0x85}, ImmSize: Dword, Family: FamilyLegacy}},
	"jl":  {{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0x0F, 0x8C}, ImmSize: Dword, Family: FamilyLegacy}},
	"jge": {{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0x0F, 0x8D}, ImmSize: Dword, Family: FamilyLegacy}},
	"jg":  {{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0x0F, 0x8F}, ImmSize: Dword, Family: FamilyLegacy}},
	"jle": {{Operands: []OperandSpec{symSpec()}, Opcode: []byte{0x0F, 0x8E}, ImmSize: Dword, Family: FamilyLegacy}},

	// APX cond-test-cmp: CCMPcc reg/mem, reg/imm; CTESTcc reg/mem, reg/imm.
	// Always promoted-legacy encoded (selectFamily forces this whenever
	// Instruction.CondTest is set), so Family here only documents intent.
	"ccmp": {
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x39}, ModRM: true, OpcodeExtension: -1, Family: FamilyPromotedLegacy, ForceW: true},
		{Operands: []OperandSpec{rmSpec(Qword), immSpec(Dword)}, Opcode: []byte{0x81}, ModRM: true, OpcodeExtension: 7, ImmSize: Dword, Family: FamilyPromotedLegacy, ForceW: true},
	},
	"ctest": {
		{Operands: []OperandSpec{rmSpec(Qword), regSpec(Qword)}, Opcode: []byte{0x85}, ModRM: true, OpcodeExtension: -1, Family: FamilyPromotedLegacy, ForceW: true},
	},

	// AVX/AVX-512: vaddps xmm/ymm/zmm forms, the zmm one broadcastable.
	"vaddps": {
		{Operands: []OperandSpec{regSpec(Xword), regSpec(Xword), rmSpec(Xword)}, Opcode: []byte{0x58}, ModRM: true, OpcodeExtension: -1, Family: FamilyVEX3, VexMM: vexMM0F, VexPP: vexPPNone, VexL: 0},
		{Operands: []OperandSpec{regSpec(Yword), regSpec(Yword), rmSpec(Yword)}, Opcode: []byte{0x58}, ModRM: true, OpcodeExtension: -1, Family: FamilyVEX3, VexMM: vexMM0F, VexPP: vexPPNone, VexL: 1},
		{Operands: []OperandSpec{regSpec(Zword), regSpec(Zword), rmSpec(Zword)}, Opcode: []byte{0x58}, ModRM: true, OpcodeExtension: -1, Family: FamilyEVEX, VexMM: vexMM0F, VexPP: vexPPNone, EvexLL: 0b10, Broadcastable: true},
	},
}
