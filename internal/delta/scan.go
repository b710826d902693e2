package delta

import (
	"sort"

	"github.com/TriForMine/mrsync/internal/checksum"
)

// Scan computes the delta between source and the destination description
// digest (spec §4.4). The result, when passed to Apply alongside the
// destination's current bytes, reconstructs source exactly.
func Scan(source []byte, digest digestSet) []Instruction {
	b := digest.BlockLength
	t := digest.TotalLength
	n := int64(len(digest.Blocks))
	srcLen := int64(len(source))

	if n == 0 {
		// Nothing to match against: whole source is new content. Covers
		// the zero-length-destination and zero-length-source-against-
		// non-empty-destination edge cases via the tail logic below.
		if srcLen == 0 && t == 0 {
			return nil
		}
	}

	var parts []Instruction
	var windowShift int64 // carried into the next block's scan start

	for i := int64(0); i < n; i++ {
		blockStart := i*b + windowShift
		blockLen := b
		if i == n-1 {
			blockLen = t - i*b
		}
		if blockStart >= srcLen || blockLen <= 0 {
			windowShift = 0
			continue
		}

		matched := false
		shift := int64(0)
		maxShift := b
		if avail := srcLen - blockStart; avail < maxShift {
			maxShift = avail
		}

		var w checksum.Weak
		windowEnd := blockStart + blockLen
		if windowEnd > srcLen {
			// Not enough source remains to fill a full block window here.
			// Try the tail case from spec §4.1/§4.4: decompose the
			// block's digest back into (s1,s2) and Shrink it by the
			// single byte the destination holds that the source no
			// longer does, to see whether source's remaining bytes equal
			// the block's trailing window once that stale byte is
			// dropped. Deficits larger than one byte are ambiguous
			// (multiple leading bytes could be shrunk away in many
			// combinations that still land on the same sum) and fall
			// through to the whole-block literal below.
			avail := srcLen - blockStart
			if avail > 0 && blockLen-avail == 1 {
				target := checksum.FromSum(digest.Blocks[i], int(blockLen))
				tail := checksum.Compute(source[blockStart:srcLen])
				if target.ShrinkMatches(tail) {
					matched = true
					shift = -(blockLen - avail)
				}
			}
			maxShift = -1
		} else {
			w = checksum.Compute(source[blockStart:windowEnd])
		}

		if !matched {
			for shift = 0; shift <= maxShift; shift++ {
				if shift > 0 {
					if blockStart+blockLen+shift-1 >= srcLen {
						break
					}
					w = w.RollForward(source[blockStart+shift-1], source[blockStart+blockLen+shift-1])
				}
				if w.Sum() == digest.Blocks[i] {
					matched = true
					break
				}
			}
		}

		dstStart := i * b
		if matched {
			switch {
			case shift > 0:
				parts = append(parts, Instruction{
					Op:    Literal,
					Start: dstStart,
					End:   dstStart + shift,
					Data:  append([]byte(nil), source[blockStart:blockStart+shift]...),
				})
				parts = append(parts, Instruction{
					Op:     Move,
					Start:  dstStart,
					End:    dstStart + blockLen - shift,
					Offset: shift,
				})
			case shift < 0:
				// The destination carries -shift stale leading bytes the
				// source has already dropped (spec §4.1 Shrink tail
				// case): shift its remaining tail left to close the gap,
				// no new bytes to send. The trailing truncation literal
				// appended after this loop drops the vacated tail byte.
				k := -shift
				parts = append(parts, Instruction{
					Op:     Move,
					Start:  dstStart + k,
					End:    dstStart + blockLen,
					Offset: shift,
				})
			default:
				// shift == 0: the block is already byte-identical in
				// place (spec §4.4 edge case); no instruction needed.
			}
			windowShift = shift
			continue
		}

		// No match anywhere in this block: whole block is literal.
		end := dstStart + blockLen
		srcEnd := blockStart + blockLen
		if srcEnd > srcLen {
			srcEnd = srcLen
		}
		var data []byte
		if blockStart < srcEnd {
			data = append([]byte(nil), source[blockStart:srcEnd]...)
		}
		parts = append(parts, Instruction{Op: Literal, Start: dstStart, End: end, Data: data})
		windowShift = 0
	}

	switch {
	case srcLen < t:
		// Source is shorter than the destination: the destination must be
		// truncated to srcLen. No data exists to carry, so this is an
		// empty literal whose End marks the new end-of-file.
		parts = append(parts, Instruction{Op: Literal, Start: srcLen, End: t, Data: nil})
	case srcLen > t:
		parts = append(parts, Instruction{
			Op:    Literal,
			Start: t,
			End:   srcLen,
			Data:  append([]byte(nil), source[t:srcLen]...),
		})
	}

	return mergeAndOrder(parts)
}

// mergeAndOrder merges adjacent Literal parts that carry contiguous data
// and then reorders so Move parts precede Literal parts (spec §4.4: moves
// must shift existing bytes before literals overwrite the vacated space).
func mergeAndOrder(parts []Instruction) []Instruction {
	merged := make([]Instruction, 0, len(parts))
	for _, p := range parts {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Op == Literal && p.Op == Literal && last.End == p.Start {
				last.End = p.End
				last.Data = append(last.Data, p.Data...)
				continue
			}
		}
		merged = append(merged, p)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		iMove := merged[i].Op == Move
		jMove := merged[j].Op == Move
		if iMove != jMove {
			return iMove
		}
		return false
	})
	return merged
}
