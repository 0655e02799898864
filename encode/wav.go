package encode

import "encoding/binary"

// HeaderSize is the length of the RIFF/WAVE header written by WAV.
const HeaderSize = 44

// WAV encodes interleaved float samples as 16-bit PCM with a 44-byte header.
//
// The header keeps the legacy field values existing consumers expect: the
// RIFF size is 32 + data length and the byte rate is sampleRate*4 regardless
// of the channel count.
func WAV(samples []float32, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, HeaderSize+dataLen)
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(32+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1)
	le.PutUint16(buf[22:24], uint16(channels))
	le.PutUint32(buf[24:28], uint32(sampleRate))
	le.PutUint32(buf[28:32], uint32(sampleRate*4))
	le.PutUint16(buf[32:34], uint16(channels*2))
	le.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(dataLen))

	off := HeaderSize
	for _, s := range samples {
		le.PutUint16(buf[off:], uint16(FloatToInt16(s)))
		off += 2
	}
	return buf
}
