package tilemap

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrUnsupportedCompression marks a layer whose payload needs a codec we do not have.
	ErrUnsupportedCompression = errors.New("unsupported layer compression")
	// ErrUnsupportedEncoding marks a layer with an unknown data encoding.
	ErrUnsupportedEncoding = errors.New("unsupported layer encoding")
	// ErrMalformedLayer marks a layer whose payload does not decode to its grid.
	ErrMalformedLayer = errors.New("malformed layer data")
)

// maxLayerCells bounds decompressed payloads when a layer omits its size.
const maxLayerCells = 4096 * 4096

// DecodeLayerData returns the raw cell values of a tile layer.
//
// Payloads are either a plain JSON integer array or a base64 string of
// little-endian uint32 values, optionally compressed with zlib, gzip or zstd.
func DecodeLayerData(l Layer) ([]uint32, error) {
	raw := bytes.TrimSpace(l.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("layer %q: %w: no data", l.Name, ErrMalformedLayer)
	}

	var cells []uint32
	switch strings.ToLower(l.Encoding) {
	case "", "csv":
		if err := json.Unmarshal(raw, &cells); err != nil {
			return nil, fmt.Errorf("layer %q: %w: %v", l.Name, ErrMalformedLayer, err)
		}
	case "base64":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("layer %q: %w: %v", l.Name, ErrMalformedLayer, err)
		}
		payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w: %v", l.Name, ErrMalformedLayer, err)
		}
		payload, err = decompress(payload, l.Compression, expectedBytes(l))
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Name, err)
		}
		cells, err = littleEndianCells(payload)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.Name, err)
		}
	default:
		return nil, fmt.Errorf("layer %q: %w: %q", l.Name, ErrUnsupportedEncoding, l.Encoding)
	}

	if want := l.Width * l.Height; want > 0 && len(cells) != want {
		return nil, fmt.Errorf("layer %q: %w: %d cells, want %d", l.Name, ErrMalformedLayer, len(cells), want)
	}
	return cells, nil
}

func expectedBytes(l Layer) int64 {
	if n := l.Width * l.Height; n > 0 {
		return int64(n) * 4
	}
	return maxLayerCells * 4
}

// decompress inflates payload according to the layer's compression name.
// limit caps the output size; anything larger is rejected.
func decompress(payload []byte, compression string, limit int64) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(compression) {
	case "":
		return payload, nil
	case "zlib":
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrMalformedLayer, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrMalformedLayer, err)
		}
		defer func() { _ = gr.Close() }()
		r = gr
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(payload), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrMalformedLayer, err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, compression)
	}

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedLayer, compression, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: decompressed payload exceeds %d bytes", ErrMalformedLayer, limit)
	}
	return out, nil
}

func littleEndianCells(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrMalformedLayer, len(b))
	}
	cells := make([]uint32, len(b)/4)
	for i := range cells {
		cells[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return cells, nil
}
