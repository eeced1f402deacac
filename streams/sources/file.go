package sources

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/liuxd6825/k6streams/streams"
)

// Decompression selects how the content of a file is decoded.
type Decompression string

const (
	// DecompressionAuto picks a decoder according to the file extension.
	DecompressionAuto Decompression = "auto"
	// DecompressionNone reads the file as it is.
	DecompressionNone Decompression = "none"
	// DecompressionGzip decodes gzip content.
	DecompressionGzip Decompression = "gzip"
	// DecompressionZstd decodes zstandard content.
	DecompressionZstd Decompression = "zstd"
	// DecompressionBrotli decodes brotli content.
	DecompressionBrotli Decompression = "br"
)

// ErrUnknownDecompression is returned for an unsupported decompression name.
var ErrUnknownDecompression = errors.New("unknown decompression")

// ParseDecompression returns the decompression with the given name, the empty
// name standing for DecompressionAuto.
func ParseDecompression(name string) (Decompression, error) {
	switch d := Decompression(strings.ToLower(strings.TrimSpace(name))); d {
	case "":
		return DecompressionAuto, nil
	case DecompressionAuto, DecompressionNone, DecompressionGzip, DecompressionZstd, DecompressionBrotli:
		return d, nil
	default:
		return "", fmt.Errorf("%w %q, expected one of auto, none, gzip, zstd or br", ErrUnknownDecompression, name)
	}
}

// resolve turns DecompressionAuto into the decompression matching path.
func (d Decompression) resolve(path string) Decompression {
	if d != DecompressionAuto {
		return d
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return DecompressionGzip
	case ".zst", ".zstd":
		return DecompressionZstd
	case ".br":
		return DecompressionBrotli
	default:
		return DecompressionNone
	}
}

// OpenFile opens path on fs, decoding its content according to d.
func OpenFile(fs afero.Fs, path string, d Decompression) (io.ReadCloser, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	rc, err := decode(f, d.resolve(path))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error decompressing %s: %w", path, err)
	}
	return rc, nil
}

// File returns a source enqueuing the lines of the file at path, see Lines.
func File(vu streams.VU, fs afero.Fs, path string, d Decompression) (streams.UnderlyingSource[string], error) {
	rc, err := OpenFile(fs, path, d)
	if err != nil {
		return streams.UnderlyingSource[string]{}, err
	}

	return Lines(vu, rc), nil
}

func decode(f afero.File, d Decompression) (io.ReadCloser, error) {
	var decoder io.Reader
	var err error
	switch d {
	case DecompressionNone:
		return f, nil
	case DecompressionGzip:
		decoder, err = gzip.NewReader(f)
	case DecompressionZstd:
		decoder, err = zstd.NewReader(f)
	case DecompressionBrotli:
		decoder = brotli.NewReader(f)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownDecompression, string(d))
	}
	if err != nil {
		return nil, err
	}

	return &decodedFile{Reader: decoder, file: f}, nil
}

// ncloser matches the decoders whose Close does not report an error, like zstd.Decoder.
type ncloser interface {
	Close()
}

// decodedFile closes both the decoder and the underlying file.
type decodedFile struct {
	io.Reader
	file afero.File
}

func (d *decodedFile) Close() error {
	var err error
	switch v := d.Reader.(type) {
	case io.Closer:
		err = v.Close()
	case ncloser:
		v.Close()
	}

	return errors.Join(err, d.file.Close())
}
