package encode

import (
	"fmt"
	"io"
)

// BlockSize is the number of samples per channel handed to the encoder at
// once, one MPEG-1 Layer III frame.
const BlockSize = 1152

// BlockEncoder is a block-wise MP3 encoder. EncodeBuffer may return an empty
// slice while the encoder buffers input. Encoders holding external resources
// also implement io.Closer; MP3 closes them when encoding fails.
type BlockEncoder interface {
	EncodeBuffer(left, right []int16) ([]byte, error)
	Flush() ([]byte, error)
}

// MP3 feeds left and right to enc in BlockSize chunks and returns the
// concatenated output, flush data last. The last chunk may be short.
func MP3(enc BlockEncoder, left, right []int16) (_ []byte, err error) {
	defer func() {
		if c, ok := enc.(io.Closer); ok && err != nil {
			_ = c.Close()
		}
	}()
	if len(left) != len(right) {
		return nil, fmt.Errorf("channel length mismatch: %d vs %d", len(left), len(right))
	}
	var out []byte
	for i := 0; i < len(left); i += BlockSize {
		end := i + BlockSize
		if end > len(left) {
			end = len(left)
		}
		chunk, err := enc.EncodeBuffer(left[i:end], right[i:end])
		if err != nil {
			return nil, fmt.Errorf("encode block at %d: %w", i, err)
		}
		if len(chunk) > 0 {
			out = append(out, chunk...)
		}
	}
	tail, err := enc.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	if len(tail) > 0 {
		out = append(out, tail...)
	}
	return out, nil
}
