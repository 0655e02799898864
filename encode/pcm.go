// Package encode turns rendered float audio into WAV and MP3 byte streams.
package encode

// Interleave alternates left and right samples. The shorter channel is
// padded with silence.
func Interleave(left, right []float32) []float32 {
	n := len(left)
	if len(right) > n {
		n = len(right)
	}
	out := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		if i < len(left) {
			out[2*i] = left[i]
		}
		if i < len(right) {
			out[2*i+1] = right[i]
		}
	}
	return out
}

// FloatToInt16 clamps s to [-1, 1] and scales it asymmetrically: negative
// values by 32768, the rest by 32767. The result is truncated toward zero.
func FloatToInt16(s float32) int16 {
	switch {
	case s != s:
		return 0
	case s < -1:
		s = -1
	case s > 1:
		s = 1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// ToInt16 converts a whole channel with FloatToInt16.
func ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = FloatToInt16(s)
	}
	return out
}
