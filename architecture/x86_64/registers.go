package x86_64

import "fmt"

// RegisterClass groups registers that share an addressing discipline and a
// width. APX extends the general-purpose classes from 16 to 32 members
// (r16-r31); every other class is unchanged from legacy x86-64.
type RegisterClass int

const (
	GP8 RegisterClass = iota
	GP8H // legacy high-byte registers: ah, ch, dh, bh (no REX, no extension)
	GP16
	GP32
	GP64
	MMX
	XMM
	YMM
	ZMM
	Segment
	Control
	Debug
)

// Register is a single machine register. Num is the full 5-bit encoding
// (0-31); legacy (pre-APX) registers only ever occupy 0-15, so Num's upper
// two bits are the APX/EVEX extension bits on registers that have them.
type Register struct {
	Name  string
	Class RegisterClass
	Num   byte
}

// Low3 is the 3-bit field stored directly in ModR/M.reg/rm or SIB.index/base.
func (r Register) Low3() byte { return r.Num & 0x7 }

// Bit3 is the single extension bit available under legacy REX/VEX/EVEX
// (REX.B/R/X, VEX.~B, EVEX.B/R/X).
func (r Register) Bit3() byte { return (r.Num >> 3) & 1 }

// Bit4 is the second extension bit, only representable via REX2 or EVEX's
// extra V'/X4/R4 bits; for registers 0-15 it is always 0.
func (r Register) Bit4() byte { return (r.Num >> 4) & 1 }

// IsExtended reports whether this register needs any extension bit at all
// to encode (Num > 7), i.e. whether a REX-family prefix is mandatory.
func (r Register) IsExtended() bool { return r.Num > 7 }

// IsAPXExtended reports whether this register lies in the r16-r31 range
// that only REX2 or EVEX can address.
func (r Register) IsAPXExtended() bool { return r.Num > 15 }

// Size returns the operand Size this register's class corresponds to.
func (r Register) Size() Size {
	switch r.Class {
	case GP8, GP8H:
		return Byte
	case GP16:
		return Word
	case GP32:
		return Dword
	case GP64, MMX:
		return Qword
	case XMM:
		return Xword
	case YMM:
		return Yword
	case ZMM:
		return Zword
	default:
		return Unknown
	}
}

// ebits returns the register-extension bit pair [bit4, bit3] used by the
// prefix-selection procedure to build REX2.R4/EVEX.R'/R and the matching
// X4/X3 pair for an index register in SIB-style addressing. Kept as a tiny
// standalone helper (rather than inlined at each call site) because both
// the ModR/M.reg extension and the SIB.index extension read it the same
// way.
func ebits(r Register) [2]byte {
	return [2]byte{r.Bit4(), r.Bit3()}
}

// --- General purpose, 64-bit ---
var (
	RAX = Register{Name: "rax", Class: GP64, Num: 0}
	RCX = Register{Name: "rcx", Class: GP64, Num: 1}
	RDX = Register{Name: "rdx", Class: GP64, Num: 2}
	RBX = Register{Name: "rbx", Class: GP64, Num: 3}
	RSP = Register{Name: "rsp", Class: GP64, Num: 4}
	RBP = Register{Name: "rbp", Class: GP64, Num: 5}
	RSI = Register{Name: "rsi", Class: GP64, Num: 6}
	RDI = Register{Name: "rdi", Class: GP64, Num: 7}
	R8  = Register{Name: "r8", Class: GP64, Num: 8}
	R9  = Register{Name: "r9", Class: GP64, Num: 9}
	R10 = Register{Name: "r10", Class: GP64, Num: 10}
	R11 = Register{Name: "r11", Class: GP64, Num: 11}
	R12 = Register{Name: "r12", Class: GP64, Num: 12}
	R13 = Register{Name: "r13", Class: GP64, Num: 13}
	R14 = Register{Name: "r14", Class: GP64, Num: 14}
	R15 = Register{Name: "r15", Class: GP64, Num: 15}
)

// --- General purpose, 32-bit ---
var (
	EAX  = Register{Name: "eax", Class: GP32, Num: 0}
	ECX  = Register{Name: "ecx", Class: GP32, Num: 1}
	EDX  = Register{Name: "edx", Class: GP32, Num: 2}
	EBX  = Register{Name: "ebx", Class: GP32, Num: 3}
	ESP  = Register{Name: "esp", Class: GP32, Num: 4}
	EBP  = Register{Name: "ebp", Class: GP32, Num: 5}
	ESI  = Register{Name: "esi", Class: GP32, Num: 6}
	EDI  = Register{Name: "edi", Class: GP32, Num: 7}
	R8D  = Register{Name: "r8d", Class: GP32, Num: 8}
	R9D  = Register{Name: "r9d", Class: GP32, Num: 9}
	R10D = Register{Name: "r10d", Class: GP32, Num: 10}
	R11D = Register{Name: "r11d", Class: GP32, Num: 11}
	R12D = Register{Name: "r12d", Class: GP32, Num: 12}
	R13D = Register{Name: "r13d", Class: GP32, Num: 13}
	R14D = Register{Name: "r14d", Class: GP32, Num: 14}
	R15D = Register{Name: "r15d", Class: GP32, Num: 15}
)

// --- General purpose, 16-bit ---
var (
	AX   = Register{Name: "ax", Class: GP16, Num: 0}
	CX   = Register{Name: "cx", Class: GP16, Num: 1}
	DX   = Register{Name: "dx", Class: GP16, Num: 2}
	BX   = Register{Name: "bx", Class: GP16, Num: 3}
	SP   = Register{Name: "sp", Class: GP16, Num: 4}
	BP   = Register{Name: "bp", Class: GP16, Num: 5}
	SI   = Register{Name: "si", Class: GP16, Num: 6}
	DI   = Register{Name: "di", Class: GP16, Num: 7}
	R8W  = Register{Name: "r8w", Class: GP16, Num: 8}
	R9W  = Register{Name: "r9w", Class: GP16, Num: 9}
	R10W = Register{Name: "r10w", Class: GP16, Num: 10}
	R11W = Register{Name: "r11w", Class: GP16, Num: 11}
	R12W = Register{Name: "r12w", Class: GP16, Num: 12}
	R13W = Register{Name: "r13w", Class: GP16, Num: 13}
	R14W = Register{Name: "r14w", Class: GP16, Num: 14}
	R15W = Register{Name: "r15w", Class: GP16, Num: 15}
)

// --- General purpose, 8-bit low byte ---
var (
	AL   = Register{Name: "al", Class: GP8, Num: 0}
	CL   = Register{Name: "cl", Class: GP8, Num: 1}
	DL   = Register{Name: "dl", Class: GP8, Num: 2}
	BL   = Register{Name: "bl", Class: GP8, Num: 3}
	SPL  = Register{Name: "spl", Class: GP8, Num: 4}
	BPL  = Register{Name: "bpl", Class: GP8, Num: 5}
	SIL  = Register{Name: "sil", Class: GP8, Num: 6}
	DIL  = Register{Name: "dil", Class: GP8, Num: 7}
	R8B  = Register{Name: "r8b", Class: GP8, Num: 8}
	R9B  = Register{Name: "r9b", Class: GP8, Num: 9}
	R10B = Register{Name: "r10b", Class: GP8, Num: 10}
	R11B = Register{Name: "r11b", Class: GP8, Num: 11}
	R12B = Register{Name: "r12b", Class: GP8, Num: 12}
	R13B = Register{Name: "r13b", Class: GP8, Num: 13}
	R14B = Register{Name: "r14b", Class: GP8, Num: 14}
	R15B = Register{Name: "r15b", Class: GP8, Num: 15}
)

// --- General purpose, 8-bit high byte (legacy, REX-incompatible) ---
var (
	AH = Register{Name: "ah", Class: GP8H, Num: 4}
	CH = Register{Name: "ch", Class: GP8H, Num: 5}
	DH = Register{Name: "dh", Class: GP8H, Num: 6}
	BH = Register{Name: "bh", Class: GP8H, Num: 7}
)

// --- Segment ---
var (
	ES = Register{Name: "es", Class: Segment, Num: 0}
	CS = Register{Name: "cs", Class: Segment, Num: 1}
	SS = Register{Name: "ss", Class: Segment, Num: 2}
	DS = Register{Name: "ds", Class: Segment, Num: 3}
	FS = Register{Name: "fs", Class: Segment, Num: 4}
	GS = Register{Name: "gs", Class: Segment, Num: 5}
)

// --- MMX ---
var (
	MM0 = Register{Name: "mm0", Class: MMX, Num: 0}
	MM1 = Register{Name: "mm1", Class: MMX, Num: 1}
	MM2 = Register{Name: "mm2", Class: MMX, Num: 2}
	MM3 = Register{Name: "mm3", Class: MMX, Num: 3}
	MM4 = Register{Name: "mm4", Class: MMX, Num: 4}
	MM5 = Register{Name: "mm5", Class: MMX, Num: 5}
	MM6 = Register{Name: "mm6", Class: MMX, Num: 6}
	MM7 = Register{Name: "mm7", Class: MMX, Num: 7}
)

// RegistersByName resolves every register the parser can encounter,
// including the APX r16-r31 general-purpose range and the EVEX-only
// xmm16-31/ymm16-31/zmm16-31 vector range, which are built programmatically
// below rather than spelled out as package-level names the way r0-r15 are.
var RegistersByName = map[string]Register{}

func register(name string, class RegisterClass, num byte) {
	RegistersByName[name] = Register{Name: name, Class: class, Num: num}
}

func init() {
	for _, r := range []Register{
		RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15,
		EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI, R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D,
		AX, CX, DX, BX, SP, BP, SI, DI, R8W, R9W, R10W, R11W, R12W, R13W, R14W, R15W,
		AL, CL, DL, BL, SPL, BPL, SIL, DIL, R8B, R9B, R10B, R11B, R12B, R13B, R14B, R15B,
		AH, CH, DH, BH,
		ES, CS, SS, DS, FS, GS,
		MM0, MM1, MM2, MM3, MM4, MM5, MM6, MM7,
	} {
		RegistersByName[r.Name] = r
	}

	// APX general-purpose registers r16-r31, every legacy width. Only
	// reachable via REX2 or EVEX; name+class+num is all the encoder needs,
	// so no package-level vars are declared for these the way r8-r15 are.
	for n := byte(16); n < 32; n++ {
		register(fmt.Sprintf("r%d", n), GP64, n)
		register(fmt.Sprintf("r%dd", n), GP32, n)
		register(fmt.Sprintf("r%dw", n), GP16, n)
		register(fmt.Sprintf("r%db", n), GP8, n)
	}

	// Vector registers, full EVEX range 0-31.
	for n := byte(0); n < 32; n++ {
		register(fmt.Sprintf("xmm%d", n), XMM, n)
		register(fmt.Sprintf("ymm%d", n), YMM, n)
		register(fmt.Sprintf("zmm%d", n), ZMM, n)
	}

	// Control and debug registers.
	for n := byte(0); n <= 8; n++ {
		register(fmt.Sprintf("cr%d", n), Control, n)
	}
	for n := byte(0); n <= 7; n++ {
		register(fmt.Sprintf("dr%d", n), Debug, n)
	}
}
