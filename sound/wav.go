package sound

import (
	"fmt"
	"io"
	"os"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
)

// LoadWAV decodes a PCM WAV file and resamples it to targetRate when the
// file uses a different rate. targetRate <= 0 keeps the file's rate.
func LoadWAV(path string, targetRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := DecodeWAV(f, targetRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// DecodeWAV decodes WAV data from r.
func DecodeWAV(r io.ReadSeeker, targetRate int) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid wav buffer")
	}

	numCh := buf.Format.NumChannels
	srcRate := buf.Format.SampleRate
	if srcRate <= 0 {
		return nil, fmt.Errorf("invalid wav sample-rate: %d", srcRate)
	}
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, fmt.Errorf("empty wav data")
	}

	scale := pcmScale(buf.Data, buf.SourceBitDepth)

	out := NewBuffer(numCh, frames, srcRate)
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			out.Channels[c][i] = float32(buf.Data[i*numCh+c]) * scale
		}
	}

	if targetRate > 0 && targetRate != srcRate {
		return Resample(out, targetRate)
	}
	return out, nil
}

// Resample converts every channel of b to targetRate.
func Resample(b *Buffer, targetRate int) (*Buffer, error) {
	if b.SampleRate == targetRate {
		return b, nil
	}
	out := &Buffer{
		SampleRate: targetRate,
		Channels:   make([][]float32, len(b.Channels)),
	}
	for c, ch := range b.Channels {
		r, err := dspresample.NewForRates(
			float64(b.SampleRate),
			float64(targetRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, fmt.Errorf("resample %d->%d: %w", b.SampleRate, targetRate, err)
		}
		in64 := make([]float64, len(ch))
		for i, v := range ch {
			in64[i] = float64(v)
		}
		out64 := r.Process(in64)
		res := make([]float32, len(out64))
		for i, v := range out64 {
			res[i] = float32(v)
		}
		out.Channels[c] = res
	}
	return out, nil
}

// pcmScale returns the factor that maps decoded samples into [-1, 1]. Data
// that already fits is left alone; integer-range data is scaled by its bit
// depth.
func pcmScale(data []float32, bitDepth int) float32 {
	var peak float32
	for _, v := range data {
		if v > peak {
			peak = v
		} else if -v > peak {
			peak = -v
		}
	}
	if peak <= 1 || bitDepth <= 0 {
		return 1
	}
	return 1.0 / float32(int64(1)<<(bitDepth-1))
}
