package checksum

import (
	"math"

	"github.com/TriForMine/mrsync/internal/protocol"
)

// MinBlockLength is the floor applied to the block-size heuristic (spec
// §4.3), matching rsync's own minimum closely enough to interoperate with
// itself across machines of differing file sizes.
const MinBlockLength = 700

// MaxBlockLength caps the block-size heuristic (spec §4.3).
const MaxBlockLength = 131072

// BlockLength picks B for a file of size S per the spec §4.3 heuristic. A
// wholeFile request always yields a single block covering the entire file.
func BlockLength(size int64, wholeFile bool) int64 {
	if wholeFile || size <= 0 {
		return max64(size, 1)
	}
	exp := math.Ceil(math.Log2(float64(size))) + 1
	b := int64(math.Ceil(math.Sqrt(math.Pow(2, exp))))
	if b < MinBlockLength {
		b = MinBlockLength
	}
	if b > MaxBlockLength {
		b = MaxBlockLength
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Digest computes the BlockDigestSet for data (spec §4.2): blocks of
// length B = BlockLength(T, wholeFile), N = ceil(T/B) of them, the last
// block possibly shorter.
func Digest(data []byte, wholeFile bool) protocol.BlockDigestSet {
	total := int64(len(data))
	b := BlockLength(total, wholeFile)
	if b <= 0 {
		b = 1
	}

	var blocks []uint32
	for off := int64(0); off < total; off += b {
		end := off + b
		if end > total {
			end = total
		}
		blocks = append(blocks, Compute(data[off:end]).Sum())
	}

	return protocol.BlockDigestSet{
		BlockLength: b,
		TotalLength: total,
		Blocks:      blocks,
	}
}
