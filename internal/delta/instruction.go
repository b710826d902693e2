// Package delta implements the rsync-style delta scan (spec §4.4): given a
// destination's BlockDigestSet and a readable source file, produce an
// ordered list of instructions that reconstruct the source's contents in
// the destination file with minimal data transfer.
package delta

import "github.com/TriForMine/mrsync/internal/protocol"

// Op distinguishes the two content-bearing instruction kinds produced by
// Scan. TOUCH (spec §3) never comes out of Scan: it is a generator-level
// decision made when a file's digests already match, and lives in the
// receiver package.
type Op uint8

const (
	// Literal carries bytes the destination does not already hold at this
	// offset; Data must be written verbatim.
	Literal Op = iota
	// Move instructs the destination to shift bytes it already holds from
	// [Start,End) to [Start+Offset, End+Offset), zeroing the vacated
	// prefix as a placeholder for subsequent Literal writes.
	Move
)

// Instruction is one part of a Scan result. Start/End form a half-open
// byte range [Start, End) against the destination file's current layout
// for Move, or the position to write Data for Literal.
type Instruction struct {
	Op     Op
	Start  int64
	End    int64
	Offset int64  // only meaningful for Move
	Data   []byte // only populated for Literal
}

// WholeFile reports whether instrs is a single Literal starting at offset
// 0 with no Move parts. It does not check that the Literal spans the
// entire destination.
func WholeFile(instrs []Instruction) bool {
	if len(instrs) != 1 {
		return false
	}
	return instrs[0].Op == Literal && instrs[0].Start == 0
}

// Apply reconstructs the source's contents given the destination's current
// bytes and a Scan result. It is used directly by tests; on-disk
// application instead applies instructions in place against the real
// destination file (receiver package), which is why a block Scan leaves
// untouched (shift==0) never needs its own instruction: out is seeded
// with dest's own bytes first, exactly mirroring what an in-place apply
// leaves behind for any byte range no instruction rewrites.
func Apply(dest []byte, instrs []Instruction, finalSize int64) []byte {
	out := make([]byte, finalSize)
	copy(out, dest)
	for _, in := range instrs {
		switch in.Op {
		case Move:
			n := in.End - in.Start
			src := dest[in.Start : in.Start+n]
			copy(out[in.Start+in.Offset:in.Start+in.Offset+n], src)
		case Literal:
			copy(out[in.Start:in.Start+int64(len(in.Data))], in.Data)
		}
	}
	return out
}

// digestSet is a local alias so callers of this package do not need to
// import protocol alongside delta for the common case.
type digestSet = protocol.BlockDigestSet
