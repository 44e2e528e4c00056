package x86_64_test

import (
	"bytes"
	"testing"

	x86_64 "github.com/x64kit/x64asm/architecture/x86_64"
)

func encode(t *testing.T, in x86_64.Instruction) x86_64.EncodeResult {
	t.Helper()
	res, err := x86_64.Encode(in)
	if err != nil {
		t.Fatalf("Encode(%s) failed: %v", in.Mnemonic, err)
	}
	return res
}

func TestEncodeMovRaxImm64(t *testing.T) {
	// A value this small still fits the rm,imm32 form (C7 /0), which the
	// table tries before the wider B8+rd/imm64 fallback — real assemblers
	// prefer the shorter encoding whenever the operand sizes allow it.
	in := x86_64.Instruction{
		Mnemonic: "mov",
		Operands: []x86_64.Operand{
			x86_64.RegOperand(x86_64.RAX),
			x86_64.ImmOperand(x86_64.NumberUint64(10)),
		},
	}
	res := encode(t, in)
	want := []byte{0x48, 0xC7, 0xC0, 0x0A, 0x00, 0x00, 0x00}
	if !bytes.Equal(res.Bytes, want) {
		t.Errorf("mov rax, 10 = % X, want % X", res.Bytes, want)
	}
}

func TestEncodeMovRaxImm64Full(t *testing.T) {
	// A value that doesn't fit in 32 bits forces the full imm64 form.
	in := x86_64.Instruction{
		Mnemonic: "mov",
		Operands: []x86_64.Operand{
			x86_64.RegOperand(x86_64.RAX),
			x86_64.ImmOperand(x86_64.NumberUint64(0x0102030405060708)),
		},
	}
	res := encode(t, in)
	want := []byte{0x48, 0xB8, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(res.Bytes, want) {
		t.Errorf("mov rax, 0x0102030405060708 = % X, want % X", res.Bytes, want)
	}
}

func TestEncodeSyscall(t *testing.T) {
	res := encode(t, x86_64.Instruction{Mnemonic: "syscall"})
	if !bytes.Equal(res.Bytes, []byte{0x0F, 0x05}) {
		t.Errorf("syscall = % X, want 0F 05", res.Bytes)
	}
}

func TestEncodeRet(t *testing.T) {
	res := encode(t, x86_64.Instruction{Mnemonic: "ret"})
	if !bytes.Equal(res.Bytes, []byte{0xC3}) {
		t.Errorf("ret = % X, want C3", res.Bytes)
	}
}

func TestEncodeJmpRel32Reloc(t *testing.T) {
	res := encode(t, x86_64.Instruction{
		Mnemonic: "jmp",
		Operands: []x86_64.Operand{x86_64.SymbolOperand("foo")},
	})
	if !bytes.Equal(res.Bytes, []byte{0xE9, 0, 0, 0, 0}) {
		t.Fatalf("jmp foo = % X, want E9 00 00 00 00", res.Bytes)
	}
	if len(res.Relocs) != 1 {
		t.Fatalf("expected 1 reloc, got %d", len(res.Relocs))
	}
	r := res.Relocs[0]
	if r.Offset != 1 || r.Size != 4 || r.Symbol != "foo" || !r.PCRelative {
		t.Errorf("unexpected reloc %+v", r)
	}
}

// TestEncodeMovMemDisp8Imm32 pins the worked example: mov dword ptr [rax+4], 1
// should produce a ModR/M with disp8, no SIB (rax isn't rsp/r12-class), and a
// 4-byte immediate.
func TestEncodeMovMemDisp8Imm32(t *testing.T) {
	base := x86_64.RAX
	res := encode(t, x86_64.Instruction{
		Mnemonic: "mov",
		Operands: []x86_64.Operand{
			x86_64.MemOperand(x86_64.Mem{Base: &base, Disp: 4, HasDisp: true, ExplicitSize: x86_64.Dword}),
			x86_64.ImmOperand(x86_64.NumberUint64(1)),
		},
	})
	want := []byte{0xC7, 0x40, 0x04, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(res.Bytes, want) {
		t.Errorf("mov dword ptr [rax+4], 1 = % X, want % X", res.Bytes, want)
	}
}

func TestEncodeAddRSPBaseForcesSIB(t *testing.T) {
	base := x86_64.RSP
	res := encode(t, x86_64.Instruction{
		Mnemonic: "add",
		Operands: []x86_64.Operand{
			x86_64.MemOperand(x86_64.Mem{Base: &base, ExplicitSize: x86_64.Dword}),
			x86_64.RegOperand(x86_64.EAX),
		},
	})
	// ModR/M mod=00 reg=000(eax) rm=100(SIB follows), SIB scale=00 index=100(none) base=100(rsp)
	want := []byte{0x01, 0x04, 0x24}
	if !bytes.Equal(res.Bytes, want) {
		t.Errorf("add [rsp], eax = % X, want % X", res.Bytes, want)
	}
}

func TestEncodeAddRBPBaseForcesDisp8Zero(t *testing.T) {
	base := x86_64.RBP
	res := encode(t, x86_64.Instruction{
		Mnemonic: "add",
		Operands: []x86_64.Operand{
			x86_64.MemOperand(x86_64.Mem{Base: &base, ExplicitSize: x86_64.Dword}),
			x86_64.RegOperand(x86_64.EAX),
		},
	})
	// mod=01 rm=101(rbp), explicit disp8=0x00 since mod=00/rm=101 means RIP-relative.
	want := []byte{0x01, 0x45, 0x00}
	if !bytes.Equal(res.Bytes, want) {
		t.Errorf("add [rbp], eax = % X, want % X", res.Bytes, want)
	}
}

func TestEncodeR8UsesREXB(t *testing.T) {
	res := encode(t, x86_64.Instruction{
		Mnemonic: "add",
		Operands: []x86_64.Operand{
			x86_64.RegOperand(x86_64.R8),
			x86_64.RegOperand(x86_64.RAX),
		},
	})
	// REX.W=1, REX.R=0, REX.B=1 -> 0100 1001 = 0x49
	if len(res.Bytes) < 1 || res.Bytes[0] != 0x49 {
		t.Errorf("add r8, rax = % X, want REX byte 0x49 first", res.Bytes)
	}
}

func TestEncodeAPXRegisterUsesREX2(t *testing.T) {
	r16 := x86_64.RegistersByName["r16"]
	res := encode(t, x86_64.Instruction{
		Mnemonic: "add",
		Operands: []x86_64.Operand{
			x86_64.RegOperand(r16),
			x86_64.RegOperand(x86_64.RAX),
		},
	})
	if len(res.Bytes) < 1 || res.Bytes[0] != 0xD5 {
		t.Errorf("add r16, rax = % X, want REX2 escape 0xD5 first", res.Bytes)
	}
}

func TestEncodeCCMPForcesPromotedLegacy(t *testing.T) {
	res := encode(t, x86_64.Instruction{
		Mnemonic: "ccmp",
		Operands: []x86_64.Operand{
			x86_64.RegOperand(x86_64.RAX),
			x86_64.RegOperand(x86_64.RBX),
		},
		CondTest: &x86_64.CondTestFlags{ZF: true, CF: true},
	})
	if len(res.Bytes) < 1 || res.Bytes[0] != 0x62 {
		t.Fatalf("ccmp = % X, want EVEX escape 0x62 first", res.Bytes)
	}
	// P2 is the last of the four prefix bytes (index 3); bit 6 carries every
	// dfv flag OR'd together, per the reference assembler's eevex_cond.
	p2 := res.Bytes[3]
	if p2&(1<<6) == 0 {
		t.Errorf("ccmp P2 = %08b, want bit 6 set for the forced dfv", p2)
	}
}

func TestEncodeVaddpsZmmBroadcast(t *testing.T) {
	base := x86_64.RAX
	res := encode(t, x86_64.Instruction{
		Mnemonic: "vaddps",
		Operands: []x86_64.Operand{
			x86_64.RegOperand(x86_64.RegistersByName["zmm0"]),
			x86_64.RegOperand(x86_64.RegistersByName["zmm1"]),
			x86_64.MemOperand(x86_64.Mem{Base: &base, Broadcast: true, ExplicitSize: x86_64.Zword}),
		},
	})
	if len(res.Bytes) < 1 || res.Bytes[0] != 0x62 {
		t.Fatalf("vaddps zmm0, zmm1, [rax]{1to16} = % X, want EVEX escape first", res.Bytes)
	}
	p2 := res.Bytes[3]
	if p2&(1<<4) == 0 {
		t.Errorf("vaddps broadcast form P2 = %08b, want EVEX.b (bit 4) set", p2)
	}
}
