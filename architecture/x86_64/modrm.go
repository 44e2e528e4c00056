package x86_64

import "fmt"

// modRM packs the three ModR/M fields: mod (2 bits), reg (3 bits, either an
// operand register's low 3 bits or an opcode-extension digit), rm (3 bits).
func modRM(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

func scaleBits(scale byte) (byte, error) {
	switch scale {
	case 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	default:
		return 0, fmt.Errorf("invalid SIB scale %d: must be 1, 2, 4, or 8", scale)
	}
}

// sib packs the SIB byte: scale (2 bits), index low3 (3 bits, 100 for "no
// index"), base low3 (3 bits).
func sib(scaleBits, index, base byte) byte {
	return (scaleBits << 6) | ((index & 0x7) << 3) | (base & 0x7)
}

// modRMEncoding is the fully expanded ModR/M (+ optional SIB, + optional
// displacement) byte sequence for one operand slot, along with the
// extension bits the active prefix family still needs to fold in.
type modRMEncoding struct {
	Bytes       []byte
	RegBits     [2]byte // [bit4, bit3] extension for the reg field
	RMBits      [2]byte // [bit4, bit3] extension for the rm/base field
	IndexBits   [2]byte // [bit4, bit3] extension for the SIB index field
	NeedsSIB    bool
	DispIsRel32 bool // true for RIP-relative operands needing a relocation
}

// encodeRM builds the ModR/M(+SIB+disp) bytes for an r/m operand that is
// either a register or a memory reference, with regField supplying the
// ModR/M.reg value (an operand register's low3, or a numeric opcode
// extension digit for single-operand forms).
func encodeRM(rm Operand, regField byte, regExt [2]byte) (modRMEncoding, error) {
	if rm.Kind == OperandRegister {
		return modRMEncoding{
			Bytes:   []byte{modRM(0b11, regField, rm.Reg.Low3())},
			RegBits: regExt,
			RMBits:  ebits(rm.Reg),
		}, nil
	}
	if rm.Kind != OperandMemory {
		return modRMEncoding{}, fmt.Errorf("operand is neither register nor memory")
	}
	return encodeMem(rm.Mem, regField, regExt)
}

func encodeMem(m Mem, regField byte, regExt [2]byte) (modRMEncoding, error) {
	var enc modRMEncoding
	enc.RegBits = regExt

	if m.RIPRelative {
		enc.Bytes = append(enc.Bytes, modRM(0b00, regField, 0b101))
		enc.Bytes = append(enc.Bytes, 0, 0, 0, 0) // rel32 placeholder, relocated
		enc.DispIsRel32 = true
		return enc, nil
	}

	if m.HasSIB() {
		enc.NeedsSIB = true
		return encodeSIBMem(m, regField, regExt)
	}

	if m.Base == nil {
		// Direct / Index-only addressing with no base: mod=00, rm=101
		// (disp32 only), matching the no-base encoding on both 32- and
		// 64-bit targets when the caller isn't asking for RIP-relative.
		enc.Bytes = append(enc.Bytes, modRM(0b00, regField, 0b101))
		enc.Bytes = append(enc.Bytes, disp32Bytes(m.Disp)...)
		return enc, nil
	}

	base := *m.Base
	enc.RMBits = ebits(base)

	mod, dispBytes := dispModAndBytes(m)
	enc.Bytes = append(enc.Bytes, modRM(mod, regField, base.Low3()))
	enc.Bytes = append(enc.Bytes, dispBytes...)
	return enc, nil
}

func encodeSIBMem(m Mem, regField byte, regExt [2]byte) (modRMEncoding, error) {
	var enc modRMEncoding
	enc.RegBits = regExt
	enc.NeedsSIB = true

	scale := m.Scale
	if scale == 0 {
		scale = 1
	}
	ss, err := scaleBits(scale)
	if err != nil {
		return enc, err
	}

	var indexLow3, baseLow3 byte = 0b100, 0b101 // "no index", "no base" encodings
	if m.Index != nil {
		indexLow3 = m.Index.Low3()
		enc.IndexBits = ebits(*m.Index)
		if m.Index.Low3() == 0b100 && !m.Index.IsAPXExtended() {
			return enc, fmt.Errorf("rsp/r12 cannot be used as a SIB index register")
		}
	}

	mod := byte(0b00)
	var dispBytes []byte
	if m.Base != nil {
		baseLow3 = m.Base.Low3()
		enc.RMBits = ebits(*m.Base)
		mod, dispBytes = dispModAndBytes(m)
	} else {
		// No base: mod=00 with SIB.base=101 means "disp32 follows, no base
		// register", which is exactly the encoding we already want.
		dispBytes = disp32Bytes(m.Disp)
	}

	enc.Bytes = append(enc.Bytes, modRM(mod, regField, 0b100))
	enc.Bytes = append(enc.Bytes, sib(ss, indexLow3, baseLow3))
	enc.Bytes = append(enc.Bytes, dispBytes...)
	return enc, nil
}

// dispModAndBytes picks ModR/M.mod and the displacement bytes for a
// register-based addressing mode: no displacement (mod=00), unless the
// base is rbp/r13-class (low3=101) and has no (or a zero) displacement, in which case
// an explicit disp8=0 is forced (mod=01) because mod=00/rm=101 is reserved
// for RIP-relative/disp32-only addressing. A displacement that fits in a
// signed byte uses mod=01/disp8; anything else uses mod=10/disp32.
func dispModAndBytes(m Mem) (byte, []byte) {
	if m.NeedsDisp32ForBaseless() {
		return 0b01, []byte{0}
	}
	if !m.HasDisp || m.Disp == 0 {
		return 0b00, nil
	}
	if m.Disp >= -128 && m.Disp <= 127 {
		return 0b01, []byte{byte(int8(m.Disp))}
	}
	return 0b10, disp32Bytes(m.Disp)
}

func disp32Bytes(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}
