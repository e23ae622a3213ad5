package blob

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"bitstore/internal/errors"
)

// MinCompressedSize is the smallest payload any supported format can
// produce. Anything shorter is rejected before probing.
const MinCompressedSize = 2

// strategy is one decompression attempt: a format name plus a decoder
// over the whole payload.
type strategy struct {
	name   string
	decode func([]byte) ([]byte, error)
}

// strategies are tried in order. Zlib-wrapped deflate is what the
// standard clients send, so it goes first; raw deflate and gzip cover
// uploads from tools that strip or swap the wrapper.
var strategies = []strategy{
	{name: "zlib", decode: zlibDecompress},
	{name: "deflate", decode: rawDeflateDecompress},
	{name: "gzip", decode: gzipDecompress},
}

// DecodePayload decodes the base64 body of an upload. The empty string
// decodes to zero bytes, which callers treat as an empty file.
func DecodePayload(payload string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.MalformedEncoding(fmt.Sprintf("invalid base64 payload: %v", err))
	}
	return decoded, nil
}

// Decompress recovers the original bytes from a compressed payload by
// probing each supported format in order. A strategy that decodes
// cleanly but yields no output does not win; probing continues. When
// every strategy is exhausted the error carries the payload size and
// leading bytes so the caller can see what was actually uploaded.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) < MinCompressedSize {
		return nil, errors.PayloadTooShort(len(compressed), MinCompressedSize)
	}

	var lastErr error
	for _, s := range strategies {
		content, err := s.decode(compressed)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", s.name, err)
			continue
		}
		if len(content) > 0 {
			return content, nil
		}
	}

	return nil, errors.DecompressionFailed(len(compressed), leadingBytes(compressed), lastErr)
}

// Compress produces the zlib-wrapped form of content, the inverse of
// the first probe strategy. Uploading clients and tests use it to
// build payloads the server accepts.
func Compress(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, fmt.Errorf("compressing content: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing compression: %w", err)
	}
	return buf.Bytes(), nil
}

func zlibDecompress(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func rawDeflateDecompress(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	return io.ReadAll(r)
}

func gzipDecompress(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// leadingBytes renders the first few payload bytes as hex for
// diagnostics on failed uploads.
func leadingBytes(compressed []byte) string {
	n := len(compressed)
	if n > 10 {
		n = 10
	}
	return hex.EncodeToString(compressed[:n])
}
