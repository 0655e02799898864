// Package irsynth synthesizes stereo room impulse responses for the reverb
// effect. Output is deterministic for a given Room.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"
)

// Room controls impulse response generation.
type Room struct {
	SampleRate  int
	DecayS      float64 // time for the late tail to fall by 60 dB
	Damping     float64 // 0 = bright, 1 = dark
	Seed        int64
	EarlyCount  int
	LateLevel   float64
	StereoWidth float64
	FadeOutS    float64 // cosine fade at the end; 0 disables

	NormalizePeak float64
}

// DefaultRoom returns a medium room at 44.1 kHz.
func DefaultRoom() Room {
	return Room{
		SampleRate:    44100,
		DecayS:        1.5,
		Damping:       0.5,
		Seed:          1,
		EarlyCount:    24,
		LateLevel:     0.06,
		StereoWidth:   0.6,
		FadeOutS:      0.01,
		NormalizePeak: 0.9,
	}
}

func (r *Room) Validate() error {
	if r.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", r.SampleRate)
	}
	if r.DecayS <= 0 || math.IsNaN(r.DecayS) {
		return fmt.Errorf("decay must be > 0")
	}
	if r.Damping < 0 || r.Damping > 1 {
		return fmt.Errorf("damping must be in [0,1], got %g", r.Damping)
	}
	if r.EarlyCount < 0 {
		return fmt.Errorf("early count must be >= 0")
	}
	if r.LateLevel < 0 {
		return fmt.Errorf("late level must be >= 0")
	}
	if r.StereoWidth < 0 {
		return fmt.Errorf("stereo width must be >= 0")
	}
	if r.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// Length returns the impulse response length in samples. The tail is cut
// where it has decayed by 60 dB, capped at 10 s.
func (r *Room) Length() int {
	d := math.Min(r.DecayS, 10)
	n := int(math.Round(d * float64(r.SampleRate)))
	if n < 1 {
		n = 1
	}
	return n
}

// Generate synthesizes a stereo impulse response: sparse early reflections
// followed by a two-band noise tail whose high band decays faster as damping
// increases.
func Generate(r Room) ([]float32, []float32, error) {
	if err := r.Validate(); err != nil {
		return nil, nil, err
	}
	n := r.Length()
	sr := float64(r.SampleRate)
	left := make([]float64, n)
	right := make([]float64, n)
	rng := rand.New(rand.NewSource(r.Seed))

	// Reflections in the first 50 ms.
	for i := 0; i < r.EarlyCount; i++ {
		t := 0.001 + 0.049*rng.Float64()
		idx := int(t * sr)
		if idx <= 0 || idx >= n {
			continue
		}
		amp := (0.10 + 0.35*rng.Float64()) * math.Exp(-t*20.0)
		amp *= math.Pow(0.5+0.5*rng.Float64(), 1+r.Damping)
		pan := (rng.Float64()*2.0 - 1.0) * r.StereoWidth
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}

	if r.LateLevel > 0 {
		// exp(-t/tau) reaches -60 dB at t = DecayS when tau = DecayS/ln(1000).
		lowTau := r.DecayS / math.Log(1000)
		highTau := lowTau * (1 - 0.85*r.Damping)
		air := 0.4 * (1 - r.Damping)

		var lpL, lpR, hpL, hpR float64
		for i := 0; i < n; i++ {
			t := float64(i) / sr
			lowEnv := math.Exp(-t / lowTau)
			highEnv := math.Exp(-t / highTau)

			nL := rng.NormFloat64()
			nR := rng.NormFloat64()
			lpL = 0.985*lpL + 0.015*nL
			lpR = 0.985*lpR + 0.015*nR
			hpL = 0.15*nL - 0.15*hpL
			hpR = 0.15*nR - 0.15*hpR

			left[i] += r.LateLevel * (lowEnv*lpL + air*highEnv*hpL)
			right[i] += r.LateLevel * (lowEnv*lpR + air*highEnv*hpR)
		}
	}

	highpassDC(left, 0.995)
	highpassDC(right, 0.995)
	fadeOut(left, r.FadeOutS, r.SampleRate)
	fadeOut(right, r.FadeOutS, r.SampleRate)

	peak := math.Max(maxAbs(left), maxAbs(right))
	if peak < 1e-12 {
		peak = 1e-12
	}
	s := r.NormalizePeak / peak
	outL := make([]float32, n)
	outR := make([]float32, n)
	for i := 0; i < n; i++ {
		outL[i] = float32(left[i] * s)
		outR[i] = float32(right[i] * s)
	}
	return outL, outR, nil
}

func highpassDC(x []float64, r float64) {
	prevIn, prevOut := 0.0, 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// fadeOut applies a raised-cosine fade to the last fadeS seconds of buf.
func fadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	k := int(math.Round(fadeS * float64(sampleRate)))
	if k > len(buf) {
		k = len(buf)
	}
	start := len(buf) - k
	for i := 0; i < k; i++ {
		t := float64(i) / float64(k)
		buf[start+i] *= 0.5 * (1.0 + math.Cos(t*math.Pi))
	}
}
