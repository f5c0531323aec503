// Package input reads log exports from disk, stdin or an upload, undoing gzip or zstd
// compression when the content carries their magic bytes.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies how an input was encoded.
type Compression string

// Supported encodings.
const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ErrTooLarge is returned when decoded input exceeds the allowed size.
var ErrTooLarge = errors.New("input exceeds size limit")

// Detect reports the compression used by data.
func Detect(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return Gzip
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	default:
		return None
	}
}

// Decode returns data decompressed according to Detect. maxSize bounds the decoded
// length; zero or less means unbounded.
func Decode(data []byte, maxSize int64) ([]byte, error) {
	var r io.Reader

	switch Detect(data) {
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()

		r = zr

	case Zstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()

		r = zr

	default:
		if maxSize > 0 && int64(len(data)) > maxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
		}

		return data, nil
	}

	return readLimited(r, maxSize)
}

// ReadFile reads path, or stdin when path is "-", and decodes it.
func ReadFile(path string, maxSize int64) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return Decode(data, maxSize)
}

func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress input: %w", err)
		}

		return out, nil
	}

	out, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress input: %w", err)
	}

	if int64(len(out)) > maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes after decompression", ErrTooLarge, maxSize)
	}

	return out, nil
}
