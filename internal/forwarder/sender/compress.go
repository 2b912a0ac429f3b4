package sender

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm is the optional wire-compression codec applied to a serialized
// batch before transmission. Grounded on pkg/compression/http_compressor.go,
// trimmed to the three codecs this pack's dependency set actually provides
// plus the no-op case — that file's gzip/zlib paths rely only on the
// standard library and add nothing a real dependency doesn't already cover
// here, so they are dropped rather than carried forward unused.
type Algorithm string

const (
	AlgorithmNone   Algorithm = "none"
	AlgorithmZstd   Algorithm = "zstd"
	AlgorithmSnappy Algorithm = "snappy"
	AlgorithmLZ4    Algorithm = "lz4"
)

// ContentEncoding returns the HTTP Content-Encoding token for algorithm.
func ContentEncoding(a Algorithm) string {
	switch a {
	case AlgorithmZstd:
		return "zstd"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmLZ4:
		return "lz4"
	default:
		return ""
	}
}

// Compress encodes data with algorithm. AlgorithmNone returns data unchanged.
func Compress(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case AlgorithmNone, "":
		return data, nil
	case AlgorithmZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("new zstd writer: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil
	case AlgorithmLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// Decompress reverses Compress, for tests and for any symmetrical tooling
// that needs to verify what was put on the wire.
func Decompress(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case AlgorithmNone, "":
		return data, nil
	case AlgorithmZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("new zstd reader: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case AlgorithmSnappy:
		return snappy.Decode(nil, data)
	case AlgorithmLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}
