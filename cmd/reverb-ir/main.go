package main

import (
	"flag"
	"fmt"

	"github.com/cwbudde/algo-mixdown/analysis"
	"github.com/cwbudde/algo-mixdown/effects"
	"github.com/cwbudde/algo-mixdown/internal/cliutil"
	"github.com/cwbudde/algo-mixdown/irsynth"
	"github.com/cwbudde/algo-mixdown/sound"
)

// reverb-ir writes the impulse response the REVERB effect convolves with for
// a given REVERB_TIME and REVERB_DAMPFREQ, for auditioning.
func main() {
	output := flag.String("output", "reverb_ir.wav", "Output WAV path")
	sampleRate := flag.Int("sample-rate", 44100, "Output sample rate")
	timeMS := flag.Float64("time", 3500, "REVERB_TIME in ms")
	dampFreq := flag.Float64("dampfreq", 10000, "REVERB_DAMPFREQ in Hz")
	defaults := irsynth.DefaultRoom()
	seed := flag.Int64("seed", defaults.Seed, "Random seed")
	early := flag.Int("early", defaults.EarlyCount, "Number of early reflections")
	late := flag.Float64("late", defaults.LateLevel, "Diffuse late-tail level")
	width := flag.Float64("stereo-width", defaults.StereoWidth, "Stereo decorrelation width")
	normalize := flag.Float64("normalize", defaults.NormalizePeak, "Peak normalization target")
	flag.Parse()

	room := effects.ReverbRoom(*sampleRate, *timeMS/1000, *dampFreq)
	room.Seed, room.EarlyCount, room.LateLevel = *seed, *early, *late
	room.StereoWidth, room.NormalizePeak = *width, *normalize

	left, right, err := irsynth.Generate(room)
	if err != nil {
		cliutil.Die("reverb-ir error: %v", err)
	}
	buf := &sound.Buffer{SampleRate: room.SampleRate, Channels: [][]float32{left, right}}
	if err := cliutil.WritePCMWAV(*output, buf, 16); err != nil {
		cliutil.Die("wav write error: %v", err)
	}

	s, err := analysis.Summarize(buf)
	if err != nil {
		cliutil.Die("%v", err)
	}
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Decay: %.3f s, Damping: %.2f, Samples: %d\n", room.SampleRate, room.DecayS, room.Damping, len(left))
	fmt.Printf("Peak: %.2f dBFS, RMS: %.2f dBFS, Centroid: %.0f Hz\n", s.PeakDBFS, s.RMSDBFS, s.SpectralCentroidHz)
}
