// Package json wraps goccy/go-json with pooled buffers for the schema
// wire format and the CLI
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/arrowcast/arrowcast/pkg/errors"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// Marshal encodes v
func Marshal(v interface{}) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer bufferPool.Put(buf)
	buf.Reset()

	enc := gojson.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "json encoding failed")
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	// Encode appends a trailing newline
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// MarshalIndent encodes v with indentation for human consumption
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	out, err := gojson.MarshalIndent(v, prefix, indent)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "json encoding failed")
	}
	return out, nil
}

// Unmarshal decodes data into v
func Unmarshal(data []byte, v interface{}) error {
	if err := gojson.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "json decoding failed")
	}
	return nil
}

// Encode writes v to w
func Encode(w io.Writer, v interface{}) error {
	if err := gojson.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "json encoding failed")
	}
	return nil
}

// Decode reads v from r
func Decode(r io.Reader, v interface{}) error {
	if err := gojson.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "json decoding failed")
	}
	return nil
}
