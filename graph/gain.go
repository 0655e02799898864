package graph

import "math"

// Gain scales its summed input by an automatable factor.
type Gain struct {
	base
	Gain *Param
}

// NewGain creates a unity gain node.
func (c *Context) NewGain() *Gain {
	g := &Gain{Gain: NewParam(1, math.Inf(-1), math.Inf(1))}
	c.init(&g.base)
	return g
}

func (g *Gain) process(in, out [][]float32, frame int) {
	if !g.Gain.Automated() {
		v := float32(g.Gain.Value())
		for ch := range out {
			for i, x := range in[ch] {
				out[ch][i] = x * v
			}
		}
		return
	}
	for i := range out[0] {
		v := float32(g.Gain.ValueAt(g.time(frame + i)))
		for ch := range out {
			out[ch][i] = in[ch][i] * v
		}
	}
}
