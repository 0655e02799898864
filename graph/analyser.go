package graph

import "math"

// Levels summarises what passed through an Analyser, per channel.
type Levels struct {
	Peak []float32
	RMS  []float64
}

// Analyser passes its input through unchanged and records peak and RMS.
type Analyser struct {
	base
	peak   []float32
	sumSq  []float64
	frames int
}

// NewAnalyser creates a pass-through metering node.
func (c *Context) NewAnalyser() *Analyser {
	a := &Analyser{
		peak:  make([]float32, c.channels),
		sumSq: make([]float64, c.channels),
	}
	c.init(&a.base)
	return a
}

// Levels returns the levels accumulated so far.
func (a *Analyser) Levels() Levels {
	l := Levels{
		Peak: append([]float32(nil), a.peak...),
		RMS:  make([]float64, len(a.sumSq)),
	}
	if a.frames > 0 {
		for ch, s := range a.sumSq {
			l.RMS[ch] = math.Sqrt(s / float64(a.frames))
		}
	}
	return l
}

func (a *Analyser) process(in, out [][]float32, _ int) {
	for ch := range out {
		copy(out[ch], in[ch])
		for _, v := range in[ch] {
			if av := abs32(v); av > a.peak[ch] {
				a.peak[ch] = av
			}
			a.sumSq[ch] += float64(v) * float64(v)
		}
	}
	a.frames += len(out[0])
}
