package protocol

// Attr is a bitset selecting which optional FileInfo fields a peer
// requested or populated (spec §3).
type Attr uint8

const (
	AttrHardLinks Attr = 1 << iota
	AttrPermissions
	AttrSize
	AttrTimes
	AttrChecksum
)

// Has reports whether all bits in want are set in a.
func (a Attr) Has(want Attr) bool { return a&want == want }

// FileInfo is the closed set of optional per-entry attributes exchanged on
// the wire as a CBOR map. Every scalar field is a pointer so "absent" round-trips
// distinctly from "zero", and so unmarshalling tolerates peers that omit
// fields that were never requested (forward/backward compatibility, per
// spec §9's "dynamic file-info map becomes a closed set of optional
// fields" guidance).
type FileInfo struct {
	LinkCount *int32   `cbor:"1,keyasint,omitempty"`
	LinkNames []string `cbor:"2,keyasint,omitempty"`
	Mode      *uint32  `cbor:"3,keyasint,omitempty"`
	Size      *int64   `cbor:"4,keyasint,omitempty"`
	ATime     *int64   `cbor:"5,keyasint,omitempty"`
	MTime     *int64   `cbor:"6,keyasint,omitempty"`
	CTime     *int64   `cbor:"7,keyasint,omitempty"`
	Checksum  *uint32  `cbor:"8,keyasint,omitempty"`
}

func i32(v int32) *int32   { return &v }
func i64(v int64) *int64   { return &v }
func u32(v uint32) *uint32 { return &v }

// WithLinkCount, WithMode, ... are small constructors used by the filelist
// builder to populate only the attributes the caller's bitset requested.
func (fi *FileInfo) WithLinkCount(n int32) *FileInfo { fi.LinkCount = i32(n); return fi }
func (fi *FileInfo) WithMode(m uint32) *FileInfo     { fi.Mode = u32(m); return fi }
func (fi *FileInfo) WithSize(n int64) *FileInfo      { fi.Size = i64(n); return fi }
func (fi *FileInfo) WithTimes(a, m, c int64) *FileInfo {
	fi.ATime, fi.MTime, fi.CTime = i64(a), i64(m), i64(c)
	return fi
}
func (fi *FileInfo) WithChecksum(sum uint32) *FileInfo { fi.Checksum = u32(sum); return fi }

// ModeVal, SizeVal, MTimeVal return the pointed-to value or a zero default
// when the attribute was not requested/populated.
func (fi *FileInfo) ModeVal() uint32 {
	if fi == nil || fi.Mode == nil {
		return 0
	}
	return *fi.Mode
}

func (fi *FileInfo) SizeVal() int64 {
	if fi == nil || fi.Size == nil {
		return 0
	}
	return *fi.Size
}

func (fi *FileInfo) MTimeVal() int64 {
	if fi == nil || fi.MTime == nil {
		return 0
	}
	return *fi.MTime
}

func (fi *FileInfo) ChecksumVal() uint32 {
	if fi == nil || fi.Checksum == nil {
		return 0
	}
	return *fi.Checksum
}
