// Package compression compresses serialized batches for file output.
//
// It supports gzip, snappy, s2, lz4 and zstd, both in memory and
// streaming, behind one Compressor interface. The CLI uses it to wrap
// Arrow IPC files; the algorithms are recognized again on read by name.
package compression

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/arrowcast/arrowcast/pkg/errors"
)

// Algorithm names a compression algorithm
type Algorithm string

const (
	None   Algorithm = "none"
	Gzip   Algorithm = "gzip"
	Snappy Algorithm = "snappy"
	S2     Algorithm = "s2"
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
)

// ParseAlgorithm maps a name (as given on the command line) to an
// Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case None, Gzip, Snappy, S2, LZ4, Zstd:
		return Algorithm(name), nil
	case "":
		return None, nil
	}
	return None, errors.Newf(errors.ErrorTypeConfig,
		"unknown compression algorithm %q", name)
}

// Compressor compresses and decompresses byte blocks and streams.
// Implementations are safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	CompressStream(dst io.Writer, src io.Reader) error
	DecompressStream(dst io.Writer, src io.Reader) error
	Algorithm() Algorithm
}

// New creates a compressor for the algorithm
func New(alg Algorithm) (Compressor, error) {
	switch alg {
	case None:
		return noneCompressor{}, nil
	case Gzip:
		return gzipCompressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	case S2:
		return s2Compressor{}, nil
	case LZ4:
		return lz4Compressor{}, nil
	case Zstd:
		return newZstdCompressor()
	}
	return nil, errors.Newf(errors.ErrorTypeConfig,
		"unknown compression algorithm %q", alg)
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Algorithm() Algorithm                   { return None }

func (noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

type gzipCompressor struct{}

func (gzipCompressor) Algorithm() Algorithm { return Gzip }

func (c gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.CompressStream(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c gzipCompressor) Decompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.DecompressStream(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := gzip.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrorTypeEncoding, "gzip compression failed")
	}
	return w.Close()
}

func (gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r, err := gzip.NewReader(src)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "gzip decompression failed")
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}

type snappyCompressor struct{}

func (snappyCompressor) Algorithm() Algorithm { return Snappy }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "snappy decompression failed")
	}
	return out, nil
}

func (snappyCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := snappy.NewBufferedWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrorTypeEncoding, "snappy compression failed")
	}
	return w.Close()
}

func (snappyCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, snappy.NewReader(src))
	return err
}

type s2Compressor struct{}

func (s2Compressor) Algorithm() Algorithm { return S2 }

func (s2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (s2Compressor) Decompress(data []byte) ([]byte, error) {
	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "s2 decompression failed")
	}
	return out, nil
}

func (s2Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := s2.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrorTypeEncoding, "s2 compression failed")
	}
	return w.Close()
}

func (s2Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, s2.NewReader(src))
	return err
}

type lz4Compressor struct{}

func (lz4Compressor) Algorithm() Algorithm { return LZ4 }

func (c lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.CompressStream(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c lz4Compressor) Decompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.DecompressStream(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := lz4.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrorTypeEncoding, "lz4 compression failed")
	}
	return w.Close()
}

func (lz4Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, lz4.NewReader(src))
	return err
}

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor() (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "zstd encoder init failed")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "zstd decoder init failed")
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (*zstdCompressor) Algorithm() Algorithm { return Zstd }

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "zstd decompression failed")
	}
	return out, nil
}

func (c *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := zstd.NewWriter(dst)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "zstd encoder init failed")
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrorTypeEncoding, "zstd compression failed")
	}
	return w.Close()
}

func (c *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r, err := zstd.NewReader(src)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "zstd decompression failed")
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}
