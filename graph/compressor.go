package graph

import (
	"math"

	"github.com/cwbudde/algo-mixdown/dsp"
)

// Compressor is a stereo-linked feed-forward dynamics processor with a soft
// knee. Attack and release are one-pole smoothers on the gain reduction in
// dB; a time of zero reacts within one sample. There is no make-up gain.
type Compressor struct {
	base
	Threshold *Param // dB
	Knee      *Param // dB
	Ratio     *Param
	Attack    *Param // seconds
	Release   *Param // seconds

	reduction float64 // current gain reduction in dB, <= 0
}

// NewCompressor creates a compressor with threshold -24 dB, knee 30 dB,
// ratio 12, attack 3 ms and release 250 ms.
func (c *Context) NewCompressor() *Compressor {
	cp := &Compressor{
		Threshold: NewParam(-24, -100, 0),
		Knee:      NewParam(30, 0, 40),
		Ratio:     NewParam(12, 1, math.Inf(1)),
		Attack:    NewParam(0.003, 0, 1),
		Release:   NewParam(0.25, 0, 1),
	}
	c.init(&cp.base)
	return cp
}

// Reduction returns the gain reduction applied to the last rendered sample in
// dB (zero or negative).
func (cp *Compressor) Reduction() float64 {
	return cp.reduction
}

func (cp *Compressor) process(in, out [][]float32, frame int) {
	sr := float64(cp.ctx.sampleRate)
	automated := cp.Threshold.Automated() || cp.Knee.Automated() || cp.Ratio.Automated() ||
		cp.Attack.Automated() || cp.Release.Automated()

	var threshold, knee, ratio, attackCoef, releaseCoef float64
	load := func(t float64) {
		threshold = cp.Threshold.ValueAt(t)
		knee = cp.Knee.ValueAt(t)
		ratio = cp.Ratio.ValueAt(t)
		attackCoef = smoothing(cp.Attack.ValueAt(t), sr)
		releaseCoef = smoothing(cp.Release.ValueAt(t), sr)
	}
	load(cp.time(frame))

	for i := range out[0] {
		if automated && i > 0 {
			load(cp.time(frame + i))
		}
		var peak float32
		for ch := range in {
			if a := abs32(in[ch][i]); a > peak {
				peak = a
			}
		}
		target := 0.0
		if peak > 0 {
			level := dsp.GainToDB(float64(peak))
			target = staticCurve(level, threshold, knee, ratio) - level
		}
		coef := releaseCoef
		if target < cp.reduction {
			coef = attackCoef
		}
		cp.reduction = target + coef*(cp.reduction-target)
		if cp.reduction > 0 {
			cp.reduction = 0
		}
		g := float32(dsp.DBToGain(cp.reduction))
		for ch := range out {
			out[ch][i] = in[ch][i] * g
		}
	}
}

// staticCurve maps an input level to an output level, both in dB.
func staticCurve(level, threshold, knee, ratio float64) float64 {
	if ratio < 1 {
		ratio = 1
	}
	slope := 1/ratio - 1
	over := level - threshold
	switch {
	case knee > 0 && 2*math.Abs(over) <= knee:
		x := over + knee/2
		return level + slope*x*x/(2*knee)
	case over > 0:
		return level + slope*over
	default:
		return level
	}
}

// smoothing returns the one-pole coefficient for a time constant in seconds.
func smoothing(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1 / (seconds * sampleRate))
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
