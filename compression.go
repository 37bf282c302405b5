package memocache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
)

// CompressionCodec names the algorithm applied to stored values.
type CompressionCodec string

const (
	CompressionNone   CompressionCodec = "none"
	CompressionGzip   CompressionCodec = "gzip"
	CompressionSnappy CompressionCodec = "snappy"
)

var (
	// compressMagic is followed by a one-byte codec tag: 'g' or 's'.
	compressMagic = []byte("CMP1")

	ErrValueTooLarge      = errors.New("memocache: value exceeds max size")
	ErrUnsupportedCodec   = errors.New("memocache: unsupported compression codec")
	ErrCorruptCompression = errors.New("memocache: corrupt compressed payload")
)

func encodeValue(codec CompressionCodec, max int, value []byte) ([]byte, error) {
	if max > 0 && len(value) > max {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrValueTooLarge, len(value), max)
	}
	var out []byte
	switch codec {
	case CompressionNone, "":
		return value, nil
	case CompressionGzip:
		var buf bytes.Buffer
		buf.Write(compressMagic)
		buf.WriteByte('g')
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(value); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		out = buf.Bytes()
	case CompressionSnappy:
		out = make([]byte, 0, len(compressMagic)+1+snappy.MaxEncodedLen(len(value)))
		out = append(out, compressMagic...)
		out = append(out, 's')
		out = append(out, snappy.Encode(nil, value)...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
	if max > 0 && len(out) > max {
		return nil, fmt.Errorf("%w: %d > %d bytes compressed", ErrValueTooLarge, len(out), max)
	}
	return out, nil
}

// decodeValue reverses encodeValue. Values without the magic prefix were
// stored uncompressed and pass through.
func decodeValue(in []byte) ([]byte, error) {
	if len(in) < len(compressMagic)+1 || !bytes.Equal(in[:len(compressMagic)], compressMagic) {
		return in, nil
	}
	tag := in[len(compressMagic)]
	body := in[len(compressMagic)+1:]
	switch tag {
	case 'g':
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, ErrCorruptCompression
		}
		defer gr.Close()
		out, err := io.ReadAll(gr)
		if err != nil {
			return nil, ErrCorruptCompression
		}
		return out, nil
	case 's':
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, ErrCorruptCompression
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: tag %q", ErrUnsupportedCodec, tag)
	}
}
