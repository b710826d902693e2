package checksum

import "testing"

func TestBlockLengthClampedToMinimum(t *testing.T) {
	got := BlockLength(10, false)
	if got != MinBlockLength {
		t.Errorf("BlockLength(10, false) = %d, want %d", got, MinBlockLength)
	}
}

func TestBlockLengthClampedToMaximum(t *testing.T) {
	got := BlockLength(1<<34, false)
	if got != MaxBlockLength {
		t.Errorf("BlockLength(2^34, false) = %d, want %d", got, MaxBlockLength)
	}
}

func TestBlockLengthWholeFileIsSingleBlock(t *testing.T) {
	got := BlockLength(1<<20, true)
	if got != 1<<20 {
		t.Errorf("BlockLength(1<<20, true) = %d, want %d", got, 1<<20)
	}
}

func TestDigestInvariant(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i)
	}
	d := Digest(data, false)
	if got, want := int64(len(d.Blocks))*d.BlockLength, d.TotalLength; got < want {
		t.Errorf("len(blocks)*B = %d, want >= total_length %d", got, want)
	}
	if got := int64(len(d.Blocks)-1) * d.BlockLength; got >= d.TotalLength {
		t.Errorf("(len(blocks)-1)*B = %d, want < total_length %d", got, d.TotalLength)
	}
}

func TestDigestEmptyFileHasNoBlocks(t *testing.T) {
	d := Digest(nil, false)
	if len(d.Blocks) != 0 {
		t.Errorf("Digest(nil).Blocks = %v, want empty", d.Blocks)
	}
	if d.TotalLength != 0 {
		t.Errorf("Digest(nil).TotalLength = %d, want 0", d.TotalLength)
	}
}
