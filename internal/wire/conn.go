// Package wire implements the framed tagged-message transport described in
// spec §4.5 and §6: length-prefixed packets carrying a CBOR-encoded
// payload (or raw bytes, for FILE_DATA), with optional deflate compression
// and an optional I/O deadline.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/TriForMine/mrsync/internal/protocol"
)

// maxShortReadRetries bounds how many additional reads we attempt to
// complete a partial read before giving up (spec §4.5/§7); matches the
// retry bound used by the protocol this implementation is based on.
const maxShortReadRetries = 10

// ErrShortRead is returned (wrapped) when a frame could not be completed
// after maxShortReadRetries attempts. Callers map this to exit code 23.
var ErrShortRead = errors.New("wire: short read could not be recovered")

// Endpoint is the minimal capability the transport needs: read, write,
// close. It is deliberately small so pipes, sockets and subprocess stdio
// all satisfy it without adaptation (spec §9's "read_exact/write_all/close"
// capability).
type Endpoint interface {
	io.Reader
	io.Writer
	io.Closer
}

type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// Envelope is one decoded message as returned by Conn.ReadMessage.
type Envelope struct {
	Tag    protocol.Tag
	Raw    []byte // concatenated payload, decompressed if this was FILE_DATA
	Header *FileDataHeader
}

// FileDataHeader mirrors protocol.FileDataHeader (kept here to avoid a
// wire->protocol->wire import cycle on the header's own fields).
type FileDataHeader = protocol.FileDataHeader

// Decode CBOR-decodes the envelope's payload into v. Not valid for
// FileData or SocketIdentification envelopes, whose Raw is not CBOR.
func (e *Envelope) Decode(v any) error {
	return decode(e.Raw, v)
}

// Conn wraps an Endpoint with the message-level protocol: framing,
// packetization, compression and a single-writer guarantee (spec §5: the
// generator and receiver share one outbound connection and must not
// interleave writes).
type Conn struct {
	rw            Endpoint
	timeout       time.Duration
	compress      bool
	compressLevel int

	writeMu sync.Mutex
}

// Option configures a Conn.
type Option func(*Conn)

// WithTimeout sets the I/O deadline applied to every send/receive; zero
// means blocking I/O (spec §6 CLI surface: timeout=0 => blocking).
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) { c.timeout = d }
}

// WithCompression enables deflate compression of FILE_DATA payload bytes
// at the given level (1..9, spec §4.5/§6).
func WithCompression(level int) Option {
	return func(c *Conn) {
		c.compress = true
		c.compressLevel = level
	}
}

// NewConn wraps rw with the framed message protocol.
func NewConn(rw Endpoint, opts ...Option) *Conn {
	c := &Conn{rw: rw}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) Close() error { return c.rw.Close() }

func (c *Conn) applyDeadline() {
	dl, ok := c.rw.(deadliner)
	if !ok || c.timeout == 0 {
		return
	}
	deadline := time.Now().Add(c.timeout)
	_ = dl.SetReadDeadline(deadline)
	_ = dl.SetWriteDeadline(deadline)
}

// readExact reads exactly n bytes, retrying short reads up to
// maxShortReadRetries times before returning ErrShortRead.
func (c *Conn) readExact(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read := 0
	for attempt := 0; read < n; attempt++ {
		c.applyDeadline()
		m, err := c.rw.Read(buf[read:])
		read += m
		if read == n {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) && read == 0 {
				return nil, io.EOF
			}
			if isTimeout(err) {
				return nil, fmt.Errorf("wire: read deadline exceeded: %w", err)
			}
			if attempt >= maxShortReadRetries {
				return nil, fmt.Errorf("%w: wanted %d, got %d: %v", ErrShortRead, n, read, err)
			}
			continue
		}
		if attempt >= maxShortReadRetries {
			return nil, fmt.Errorf("%w: wanted %d, got %d", ErrShortRead, n, read)
		}
	}
	return buf, nil
}

func (c *Conn) writeAll(p []byte) error {
	c.applyDeadline()
	written := 0
	for written < len(p) {
		n, err := c.rw.Write(p[written:])
		written += n
		if err != nil {
			if isTimeout(err) {
				return fmt.Errorf("wire: write deadline exceeded: %w", err)
			}
			return fmt.Errorf("wire: short write: %w", err)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	var nerr interface{ Timeout() bool }
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}

// WriteMessage sends a structured (CBOR-encoded) message with no special
// header. payload may be nil for signal-only tags (PING, END, ...).
func (c *Conn) WriteMessage(tag protocol.Tag, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return fmt.Errorf("wire: encode %s payload: %w", tag, err)
	}
	return c.writeFramed(tag, nil, data)
}

// WriteSocketIdentity sends the 4-byte SOCKET_IDENTIFICATION payload.
func (c *Conn) WriteSocketIdentity(id protocol.SocketIdentity) error {
	data := make([]byte, 4)
	putU32(data, uint32(id))
	return c.writeFramed(protocol.SocketIdentification, nil, data)
}

// WriteFileData sends a FILE_DATA message: header fields, then the
// (optionally compressed) byte payload.
func (c *Conn) WriteFileData(header FileDataHeader, data []byte) error {
	payload := data
	if c.compress {
		compressed, err := deflate(data, c.compressLevel)
		if err != nil {
			return err
		}
		payload = compressed
	}
	return c.writeFramed(protocol.FileData, &header, payload)
}

func (c *Conn) writeFramed(tag protocol.Tag, header *FileDataHeader, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	packets := chunk(payload)

	var buf bytes.Buffer
	hdr := make([]byte, 8)
	putU32(hdr[0:4], uint32(len(packets)))
	putU32(hdr[4:8], uint32(tag))
	buf.Write(hdr)

	if tag == protocol.FileData {
		if header == nil {
			return fmt.Errorf("wire: FILE_DATA requires a header")
		}
		name := []byte(header.Filename)
		infoBytes, err := encode(header.Info)
		if err != nil {
			return fmt.Errorf("wire: encode file info: %w", err)
		}
		lenBuf := make([]byte, 4)

		putU32(lenBuf, uint32(len(name)))
		buf.Write(lenBuf)
		buf.Write(name)

		putU32(lenBuf, uint32(len(infoBytes)))
		buf.Write(lenBuf)
		buf.Write(infoBytes)

		putU32(lenBuf, header.Start)
		buf.Write(lenBuf)
		putU32(lenBuf, header.End)
		buf.Write(lenBuf)

		wholeFile := byte(0)
		if header.WholeFile {
			wholeFile = 1
		}
		buf.WriteByte(wholeFile)
	}

	packetHdr := make([]byte, 8)
	for i, p := range packets {
		putU32(packetHdr[0:4], uint32(i))
		putU32(packetHdr[4:8], uint32(len(p)))
		buf.Write(packetHdr)
		buf.Write(p)
	}

	return c.writeAll(buf.Bytes())
}

// ReadMessage reads and decodes one message. EOF on the read side is
// reported as a tag=End envelope with empty payload (spec §6).
func (c *Conn) ReadMessage() (*Envelope, error) {
	hdr, err := c.readExact(8)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Envelope{Tag: protocol.End}, nil
		}
		return nil, err
	}
	packetCount := getU32(hdr[0:4])
	tag := protocol.Tag(getU32(hdr[4:8]))
	if tag == 0 {
		return nil, fmt.Errorf("wire: invalid tag received: 0")
	}

	var header *FileDataHeader
	if tag == protocol.FileData {
		header, err = c.readFileDataHeader()
		if err != nil {
			return nil, err
		}
	}

	var total bytes.Buffer
	for i := uint32(0); i < packetCount; i++ {
		phdr, err := c.readExact(8)
		if err != nil {
			return nil, fmt.Errorf("wire: reading packet %d header: %w", i, err)
		}
		// packet_index (phdr[0:4]) equals arrival order; spec requires the
		// receiver to concatenate in arrival order, which is what we do.
		payloadLen := getU32(phdr[4:8])
		payload, err := c.readExact(int(payloadLen))
		if err != nil {
			return nil, fmt.Errorf("wire: reading packet %d payload: %w", i, err)
		}
		total.Write(payload)
	}

	raw := total.Bytes()
	if tag == protocol.FileData && c.compress && len(raw) > 0 {
		raw, err = inflate(raw)
		if err != nil {
			return nil, fmt.Errorf("wire: decompressing FILE_DATA payload: %w", err)
		}
	}

	return &Envelope{Tag: tag, Raw: raw, Header: header}, nil
}

func (c *Conn) readFileDataHeader() (*FileDataHeader, error) {
	lenBuf, err := c.readExact(4)
	if err != nil {
		return nil, fmt.Errorf("wire: reading filename length: %w", err)
	}
	nameLen := getU32(lenBuf)
	nameBytes, err := c.readExact(int(nameLen))
	if err != nil {
		return nil, fmt.Errorf("wire: reading filename: %w", err)
	}

	lenBuf, err = c.readExact(4)
	if err != nil {
		return nil, fmt.Errorf("wire: reading file_info length: %w", err)
	}
	infoLen := getU32(lenBuf)
	infoBytes, err := c.readExact(int(infoLen))
	if err != nil {
		return nil, fmt.Errorf("wire: reading file_info: %w", err)
	}
	var info protocol.FileInfo
	if len(infoBytes) > 0 {
		if err := decode(infoBytes, &info); err != nil {
			return nil, fmt.Errorf("wire: decoding file_info: %w", err)
		}
	}

	startBuf, err := c.readExact(4)
	if err != nil {
		return nil, fmt.Errorf("wire: reading start: %w", err)
	}
	endBuf, err := c.readExact(4)
	if err != nil {
		return nil, fmt.Errorf("wire: reading end: %w", err)
	}
	wholeBuf, err := c.readExact(1)
	if err != nil {
		return nil, fmt.Errorf("wire: reading whole_file: %w", err)
	}

	return &FileDataHeader{
		Filename:  string(nameBytes),
		Info:      &info,
		Start:     getU32(startBuf),
		End:       getU32(endBuf),
		WholeFile: wholeBuf[0] != 0,
	}, nil
}
