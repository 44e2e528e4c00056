package x86_64

import "fmt"

// RelocType is the handful of relocation kinds this assembler emits. ABS32
// writes a symbol's absolute address (meaningful only once a loader/linker
// places the section); REL32 writes a PC-relative displacement already
// resolvable at assembly time for symbols defined in the same object.
type RelocType int

const (
	RelABS32 RelocType = iota
	RelREL32
)

// Relocation is a finished, section-scoped relocation record: where the
// field to patch lives, how wide it is, and which symbol (plus constant
// addend) it resolves against. It is what the object writer's .rel.text
// section is built from for any relocation this assembler could not fully
// resolve at assembly time (extern symbols); same-object REL32 references
// are patched directly into the section bytes and need no carried record.
type Relocation struct {
	Type    RelocType
	Section string
	Offset  int
	Symbol  string
	Addend  int32
}

// applyRelocation computes the patched field value for a same-object
// REL32/ABS32 reference and writes it into data at r.offset. The REL32
// formula is the standard ELF one: the displacement from the end of the
// relocated field (R.offset + size) to the target (S.offset + addend).
func applyRelocation(data []byte, r pendingReloc, targetOffset int) error {
	if r.offset+r.size > len(data) {
		return fmt.Errorf("relocation at offset %d (size %d) out of range for %d-byte section", r.offset, r.size, len(data))
	}

	var value int32
	if r.pcRelative {
		value = int32(targetOffset) + r.addend - int32(r.offset+r.size)
	} else {
		value = int32(targetOffset) + r.addend
	}

	switch r.size {
	case 4:
		u := uint32(value)
		data[r.offset] = byte(u)
		data[r.offset+1] = byte(u >> 8)
		data[r.offset+2] = byte(u >> 16)
		data[r.offset+3] = byte(u >> 24)
	default:
		return fmt.Errorf("unsupported relocation size %d", r.size)
	}
	return nil
}
