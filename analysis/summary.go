// Package analysis measures rendered mixdowns: level summaries for a single
// buffer and distance metrics between a mixdown and a reference.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-mixdown/sound"
)

// STFT settings shared by Summarize and Compare.
const (
	fftSize = 4096
	fftHop  = 2048
)

// Band is a named frequency range in Hz.
type Band struct {
	Name string  `json:"name"`
	LoHz float64 `json:"lo_hz"`
	HiHz float64 `json:"hi_hz"`
}

// Bands are the ranges reported in Summary.BandDBFS.
var Bands = []Band{
	{"sub-bass", 20, 100},
	{"bass", 100, 300},
	{"low-mid", 300, 1000},
	{"mid", 1000, 3000},
	{"hi-mid", 3000, 6000},
	{"high", 6000, 12000},
	{"air", 12000, 20000},
}

// Summary describes the levels and spectral balance of a buffer.
type Summary struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Frames     int     `json:"frames"`
	Seconds    float64 `json:"seconds"`

	PeakDBFS       float64   `json:"peak_dbfs"`
	RMSDBFS        float64   `json:"rms_dbfs"`
	ChannelPeak    []float64 `json:"channel_peak"`
	ClippedSamples int       `json:"clipped_samples"`

	SpectralCentroidHz float64   `json:"spectral_centroid_hz"`
	BandDBFS           []float64 `json:"band_dbfs"`
}

// Summarize measures buf. Samples at or above full scale count as clipped.
func Summarize(buf *sound.Buffer) (Summary, error) {
	if buf == nil {
		return Summary{}, fmt.Errorf("nil buffer")
	}
	s := Summary{
		SampleRate:  buf.SampleRate,
		Channels:    buf.NumChannels(),
		Frames:      buf.Frames(),
		ChannelPeak: make([]float64, buf.NumChannels()),
	}
	if buf.SampleRate > 0 {
		s.Seconds = float64(s.Frames) / float64(buf.SampleRate)
	}

	var peak, sumSq float64
	for ch, samples := range buf.Channels {
		for _, v := range samples {
			a := math.Abs(float64(v))
			if a > s.ChannelPeak[ch] {
				s.ChannelPeak[ch] = a
			}
			if a >= 1 {
				s.ClippedSamples++
			}
			sumSq += float64(v) * float64(v)
		}
		peak = math.Max(peak, s.ChannelPeak[ch])
	}
	s.PeakDBFS = linToDB(peak)
	if n := s.Frames * s.Channels; n > 0 {
		s.RMSDBFS = linToDB(math.Sqrt(sumSq / float64(n)))
	} else {
		s.RMSDBFS = linToDB(0)
	}

	spec, err := averageSpectrum(downmix(buf))
	if err != nil {
		return s, err
	}
	s.SpectralCentroidHz = centroid(spec, buf.SampleRate)
	s.BandDBFS = bandLevels(spec, buf.SampleRate)
	return s, nil
}

// downmix averages all channels into one float64 signal.
func downmix(buf *sound.Buffer) []float64 {
	out := make([]float64, buf.Frames())
	if buf.NumChannels() == 0 {
		return out
	}
	scale := 1 / float64(buf.NumChannels())
	for _, samples := range buf.Channels {
		for i, v := range samples {
			out[i] += float64(v) * scale
		}
	}
	return out
}

// averageSpectrum returns the mean Hann-windowed magnitude spectrum of x.
// Signals shorter than one frame are zero-padded.
func averageSpectrum(x []float64) ([]float64, error) {
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	win := window.Generate(window.TypeHann, fftSize)
	frame := make([]float64, fftSize)
	spec := make([]complex128, fftSize/2+1)
	avg := make([]float64, fftSize/2+1)

	frames := 0
	for pos := 0; pos == 0 || pos+fftSize <= len(x); pos += fftHop {
		for i := range frame {
			frame[i] = 0
			if pos+i < len(x) {
				frame[i] = x[pos+i] * win[i]
			}
		}
		plan.Forward(spec, frame)
		for k := range avg {
			avg[k] += cmplx.Abs(spec[k])
		}
		frames++
	}
	// Hann coherent gain is 0.5; scale so a full-scale sine reads 0 dBFS.
	norm := 1 / (float64(frames) * fftSize * 0.25)
	for k := range avg {
		avg[k] *= norm
	}
	return avg, nil
}

func centroid(spec []float64, sampleRate int) float64 {
	binHz := float64(sampleRate) / fftSize
	var num, den float64
	for k := 1; k < len(spec); k++ {
		num += float64(k) * binHz * spec[k]
		den += spec[k]
	}
	if den <= 0 {
		return 0
	}
	return num / den
}

func bandLevels(spec []float64, sampleRate int) []float64 {
	binHz := float64(sampleRate) / fftSize
	nyquist := len(spec) - 1
	out := make([]float64, len(Bands))
	for i, b := range Bands {
		lo := int(math.Ceil(b.LoHz / binHz))
		hi := int(b.HiHz / binHz)
		if lo < 1 {
			lo = 1
		}
		if hi >= nyquist {
			hi = nyquist - 1
		}
		var pow float64
		for k := lo; k <= hi; k++ {
			pow += spec[k] * spec[k]
		}
		out[i] = 10 * math.Log10(math.Max(pow, 1e-24))
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}
