package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// deflate compresses data at the given level (1..9, spec §6 CLI surface);
// config.Options.Normalize replaces an out-of-range level with 9 before
// it reaches here.
func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("wire: flate.NewWriter: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("wire: flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wire: flate close: %w", err)
	}
	return buf.Bytes(), nil
}

// inflate decompresses a deflate-compressed payload.
func inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wire: flate read: %w", err)
	}
	return out, nil
}
