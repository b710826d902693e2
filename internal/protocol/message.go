package protocol

// Kind classifies a FileEntry (spec §3).
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

// FileListEntry is the wire shape of one FileEntry (spec §3): enough to
// reconstruct a filelist.FileEntry on the receiving side without importing
// the filelist package from protocol (avoids an import cycle).
type FileListEntry struct {
	Kind         Kind      `cbor:"1,keyasint"`
	SourceIndex  int       `cbor:"2,keyasint"`
	RelativePath string    `cbor:"3,keyasint"`
	Info         *FileInfo `cbor:"4,keyasint,omitempty"`
}

// AskFileListPayload carries the attribute bitset the sender should
// populate for every FileEntry in its reply (spec §4.6/§4.7).
type AskFileListPayload struct {
	Attrs     Attr `cbor:"1,keyasint"`
	Recursive bool `cbor:"2,keyasint"`
	DirsOnly  bool `cbor:"3,keyasint"`
}

// FileListPayload is the sender's reply to ASK_FILE_LIST.
type FileListPayload struct {
	Entries []FileListEntry `cbor:"1,keyasint"`
}

// BlockDigestSet mirrors the data model type of the same name (spec §3).
type BlockDigestSet struct {
	BlockLength int64    `cbor:"1,keyasint"`
	TotalLength int64    `cbor:"2,keyasint"`
	Blocks      []uint32 `cbor:"3,keyasint"`
}

// AskFileDataPayload requests delta (or whole-file) transfer of one entry.
// TotalLength < 0 or an empty Digests means "send the whole file" (spec
// §4.6).
type AskFileDataPayload struct {
	Path        string          `cbor:"1,keyasint"`
	SourceIndex int             `cbor:"2,keyasint"`
	Digests     *BlockDigestSet `cbor:"3,keyasint,omitempty"`
	TotalLength int64           `cbor:"4,keyasint"`
}

// FileDataHeader is the fixed-position header preceding a FILE_DATA
// message's packet stream (spec §6). Bytes are carried out-of-band from
// the CBOR-encoded fields, per the wire format.
type FileDataHeader struct {
	Filename  string
	Info      *FileInfo
	Start     uint32
	End       uint32
	WholeFile bool
}

// FileDataOffsetPayload is a MOVE instruction (spec §3/§4.4): the receiver
// already holds bytes [Start,End] and must shift them by Offset. Offset is
// signed: positive means the source grew a prefix the destination lacks
// (bytes move later), negative means the destination carries stale
// leading bytes the source already dropped (bytes move earlier, spec
// §4.1 Shrink tail case).
type FileDataOffsetPayload struct {
	Path   string `cbor:"1,keyasint"`
	Start  uint32 `cbor:"2,keyasint"`
	End    uint32 `cbor:"3,keyasint"`
	Offset int32  `cbor:"4,keyasint"`
}

// DeleteFilesPayload lists destination-relative paths to remove.
type DeleteFilesPayload struct {
	Paths []string `cbor:"1,keyasint"`
}
