package effects

import (
	"fmt"
	"math"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	dspdelay "github.com/cwbudde/algo-dsp/dsp/delay"
	dspfx "github.com/cwbudde/algo-dsp/dsp/effects"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/pion/logging"

	"github.com/cwbudde/algo-mixdown/dsp"
	"github.com/cwbudde/algo-mixdown/graph"
	"github.com/cwbudde/algo-mixdown/irsynth"
)

// newEffectNode creates the node for def with its parameters automated from
// the track.
func newEffectNode(in Input, def Definition, log logging.LeveledLogger) (graph.Node, error) {
	params := make([]*graph.Param, len(def.Params))
	for i, p := range def.Params {
		params[i] = in.param(def.Name, p)
	}
	c := in.Context
	sr := float64(c.SampleRate())

	switch def.Name {
	case Volume:
		g := c.NewGain()
		g.Gain = params[0]
		return g, nil
	case Compressor:
		p, err := newCompressor(c.Channels(), sr, params, log)
		if err != nil {
			return nil, err
		}
		return c.NewProcessor(p), nil
	case Filter:
		return c.NewProcessor(newBiquadFX(c.Channels(), sr, params, lowpassDesign)), nil
	case Bandpass:
		return c.NewProcessor(newBiquadFX(c.Channels(), sr, params, bandpassDesign)), nil
	case EQ3Band:
		return c.NewProcessor(newEQ3(c.Channels(), sr, params)), nil
	case Distortion:
		return c.NewProcessor(&distortion{sr: sr, gain: params[0], mix: params[1]}), nil
	case Chorus:
		p, err := newChorus(c.Channels(), sr, params, log)
		if err != nil {
			return nil, err
		}
		return c.NewProcessor(p), nil
	case Delay:
		p, err := newDelay(c.Channels(), sr, params)
		if err != nil {
			return nil, err
		}
		return c.NewProcessor(p), nil
	case Reverb:
		p, err := newReverb(c.Channels(), c.SampleRate(), params)
		if err != nil {
			return nil, err
		}
		return c.NewProcessor(p), nil
	case Pan:
		return c.NewProcessor(&panner{sr: sr, pan: params[0]}), nil
	}
	return nil, fmt.Errorf("no node for effect %s", def.Name)
}

func seconds(frame int, sr float64) float64 {
	return float64(frame) / sr
}

func blend(dry, wet float32, mix float64) float32 {
	return dry + float32(mix)*(wet-dry)
}

type designFunc func(sr float64, p []float64) biquad.Coefficients

func lowpassDesign(sr float64, p []float64) biquad.Coefficients {
	return design.Lowpass(clampFreq(p[0], sr), 0.707+9.3*p[1], sr)
}

func bandpassDesign(sr float64, p []float64) biquad.Coefficients {
	return design.Bandpass(clampFreq(p[0], sr), 1/math.Max(p[1], 0.01), sr)
}

// clampFreq keeps a corner frequency inside the range the designs accept;
// outside it they return all-zero coefficients.
func clampFreq(f, sr float64) float64 {
	return math.Max(10, math.Min(f, sr*0.49))
}

// biquadFX is a single biquad per channel with a dry/wet mix as its last
// parameter. Coefficients update once per block and keep the filter state.
type biquadFX struct {
	sr       float64
	params   []*graph.Param
	values   []float64
	design   designFunc
	sections []*biquad.Section
}

func newBiquadFX(channels int, sr float64, params []*graph.Param, d designFunc) *biquadFX {
	f := &biquadFX{sr: sr, params: params, values: make([]float64, len(params)), design: d}
	for i := range f.values {
		f.values[i] = params[i].ValueAt(0)
	}
	c := d(sr, f.values)
	for ch := 0; ch < channels; ch++ {
		f.sections = append(f.sections, biquad.NewSection(c))
	}
	return f
}

func (f *biquadFX) Process(in, out [][]float32, frame int) {
	if changed(f.params, f.values, seconds(frame, f.sr)) {
		c := f.design(f.sr, f.values)
		for _, s := range f.sections {
			s.Coefficients = c
		}
	}
	mix := f.params[len(f.params)-1]
	for ch := range out {
		s := f.sections[ch]
		for i, x := range in[ch] {
			y := float32(s.ProcessSample(float64(x)))
			out[ch][i] = blend(x, y, mix.ValueAt(seconds(frame+i, f.sr)))
		}
	}
}

// changed samples every param at t into values and reports whether any moved.
func changed(params []*graph.Param, values []float64, t float64) bool {
	moved := false
	for i, p := range params {
		if v := p.ValueAt(t); v != values[i] {
			values[i] = v
			moved = true
		}
	}
	return moved
}

// eq3 is a low shelf, a peak and a high shelf in series.
type eq3 struct {
	sr     float64
	params []*graph.Param
	values []float64
	chains []*biquad.Chain
}

func newEQ3(channels int, sr float64, params []*graph.Param) *eq3 {
	e := &eq3{sr: sr, params: params, values: make([]float64, len(params))}
	for i := range e.values {
		e.values[i] = params[i].ValueAt(0)
	}
	bands := e.design()
	for ch := 0; ch < channels; ch++ {
		e.chains = append(e.chains, biquad.NewChain(bands[:]))
	}
	return e
}

func (e *eq3) design() [3]biquad.Coefficients {
	v := e.values
	return [3]biquad.Coefficients{
		design.LowShelf(clampFreq(v[1], e.sr), v[0], 1/math.Sqrt2, e.sr),
		design.Peak(clampFreq(v[3], e.sr), v[2], 1, e.sr),
		design.HighShelf(clampFreq(v[5], e.sr), v[4], 1/math.Sqrt2, e.sr),
	}
}

func (e *eq3) Process(in, out [][]float32, frame int) {
	if changed(e.params, e.values, seconds(frame, e.sr)) {
		bands := e.design()
		for _, c := range e.chains {
			for i, b := range bands {
				c.Section(i).Coefficients = b
			}
		}
	}
	mix := e.params[6]
	for ch := range out {
		c := e.chains[ch]
		for i, x := range in[ch] {
			y := float32(c.ProcessSample(float64(x)))
			out[ch][i] = blend(x, y, mix.ValueAt(seconds(frame+i, e.sr)))
		}
	}
}

// compressor runs one algo-dsp compressor per channel with EarSketch's fixed
// 10 ms attack and 150 ms release. Threshold and ratio update per block.
type compressor struct {
	sr                    float64
	threshold, ratio      *graph.Param
	lastThresh, lastRatio float64
	units                 []*dspfx.Compressor
	log                   logging.LeveledLogger
}

func newCompressor(channels int, sr float64, params []*graph.Param, log logging.LeveledLogger) (*compressor, error) {
	c := &compressor{sr: sr, threshold: params[0], ratio: params[1], lastThresh: math.NaN(), lastRatio: math.NaN(), log: log}
	for ch := 0; ch < channels; ch++ {
		u, err := dspfx.NewCompressor(sr)
		if err != nil {
			return nil, err
		}
		if err := u.SetAutoMakeup(false); err != nil {
			return nil, err
		}
		if err := u.SetMakeupGain(0); err != nil {
			return nil, err
		}
		if err := u.SetKnee(0); err != nil {
			return nil, err
		}
		if err := u.SetAttack(10); err != nil {
			return nil, err
		}
		if err := u.SetRelease(150); err != nil {
			return nil, err
		}
		c.units = append(c.units, u)
	}
	if err := c.apply(0); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *compressor) apply(t float64) error {
	thresh := c.threshold.ValueAt(t)
	ratio := math.Max(1, math.Min(c.ratio.ValueAt(t), 100))
	if thresh == c.lastThresh && ratio == c.lastRatio {
		return nil
	}
	c.lastThresh, c.lastRatio = thresh, ratio
	for _, u := range c.units {
		if err := u.SetThreshold(thresh); err != nil {
			return err
		}
		if err := u.SetRatio(ratio); err != nil {
			return err
		}
	}
	return nil
}

func (c *compressor) Process(in, out [][]float32, frame int) {
	if err := c.apply(seconds(frame, c.sr)); err != nil {
		c.log.Warnf("compressor at frame %d: %v", frame, err)
	}
	for ch := range out {
		u := c.units[ch]
		for i, x := range in[ch] {
			out[ch][i] = float32(u.ProcessSample(float64(x)))
		}
	}
}

// distortion is a normalized tanh waveshaper.
type distortion struct {
	sr        float64
	gain, mix *graph.Param
}

func (d *distortion) Process(in, out [][]float32, frame int) {
	for i := range out[0] {
		t := seconds(frame+i, d.sr)
		k := 1 + d.gain.ValueAt(t)
		norm := 1 / math.Tanh(k)
		mix := d.mix.ValueAt(t)
		for ch := range out {
			x := in[ch][i]
			wet := float32(math.Tanh(k*float64(x)) * norm)
			out[ch][i] = blend(x, wet, mix)
		}
	}
}

// chorus runs one algo-dsp chorus per channel. Settings update per block.
type chorus struct {
	sr     float64
	params []*graph.Param
	units  []*dspfx.Chorus
	last   [5]float64
	log    logging.LeveledLogger
}

func newChorus(channels int, sr float64, params []*graph.Param, log logging.LeveledLogger) (*chorus, error) {
	c := &chorus{sr: sr, params: params, log: log}
	for i := range c.last {
		c.last[i] = math.NaN()
	}
	for ch := 0; ch < channels; ch++ {
		u, err := dspfx.NewChorus()
		if err != nil {
			return nil, err
		}
		if err := u.SetSampleRate(sr); err != nil {
			return nil, err
		}
		c.units = append(c.units, u)
	}
	if err := c.apply(0); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *chorus) apply(t float64) error {
	var v [5]float64
	for i, p := range c.params {
		v[i] = p.ValueAt(t)
	}
	if v == c.last {
		return nil
	}
	c.last = v
	length, voices, rate, mod, mix := v[0], v[1], v[2], v[3], v[4]
	depth := math.Min(length*mod, 0.01)
	stages := int(math.Round(voices))
	if stages > 6 {
		stages = 6
	}
	rate = math.Max(0.05, math.Min(rate, 5))
	for _, u := range c.units {
		if err := u.SetMix(mix); err != nil {
			return err
		}
		if err := u.SetDepth(depth); err != nil {
			return err
		}
		if err := u.SetSpeedHz(rate); err != nil {
			return err
		}
		if err := u.SetStages(stages); err != nil {
			return err
		}
	}
	return nil
}

func (c *chorus) Process(in, out [][]float32, frame int) {
	// A failed update keeps the previous settings.
	if err := c.apply(seconds(frame, c.sr)); err != nil {
		c.log.Warnf("chorus at frame %d: %v", frame, err)
	}
	for ch := range out {
		u := c.units[ch]
		for i, x := range in[ch] {
			out[ch][i] = float32(u.ProcessSample(float64(x)))
		}
	}
}

// delay is a feedback delay with a Hermite-interpolated read position.
type delay struct {
	sr                  float64
	time, feedback, mix *graph.Param
	lines               []*dspdelay.Line
}

const maxDelaySeconds = 4.0

func newDelay(channels int, sr float64, params []*graph.Param) (*delay, error) {
	d := &delay{sr: sr, time: params[0], feedback: params[1], mix: params[2]}
	// The line reads at most size-3 samples back.
	size := int(maxDelaySeconds*sr) + 4
	for ch := 0; ch < channels; ch++ {
		line, err := dspdelay.New(size)
		if err != nil {
			return nil, fmt.Errorf("delay line: %w", err)
		}
		d.lines = append(d.lines, line)
	}
	return d, nil
}

func (d *delay) Process(in, out [][]float32, frame int) {
	for i := range out[0] {
		t := seconds(frame+i, d.sr)
		// Read(1) is the newest sample, so one sample is the shortest delay.
		samples := math.Max(1, d.time.ValueAt(t)*d.sr)
		fb := float32(d.feedback.ValueAt(t))
		mix := d.mix.ValueAt(t)
		for ch := range out {
			line := d.lines[ch]
			x := in[ch][i]
			wet := float32(line.ReadFractional(samples))
			line.Write(float64(dsp.FlushDenormals(x + fb*wet)))
			out[ch][i] = blend(x, wet, mix)
		}
	}
}

// reverb convolves each channel with a synthetic room response. Decay and
// damping are fixed when the node is built; the mix is automatable.
type reverb struct {
	sr    float64
	mix   *graph.Param
	ola   []*dspconv.StreamingOverlapAddT[float32, complex64]
	block []float32
	wet   []float32
}

// ReverbRoom maps REVERB_TIME (seconds) and REVERB_DAMPFREQ (Hz) onto the
// room used to synthesize the reverb's impulse response.
func ReverbRoom(sampleRate int, decayS, dampFreq float64) irsynth.Room {
	room := irsynth.DefaultRoom()
	room.SampleRate = sampleRate
	room.DecayS = math.Max(decayS, 0.05)
	room.Damping = 1 - (dampFreq-200)/(18000-200)
	room.Damping = math.Max(0, math.Min(1, room.Damping))
	return room
}

func newReverb(channels, sampleRate int, params []*graph.Param) (*reverb, error) {
	room := ReverbRoom(sampleRate, params[0].ValueAt(0), params[1].ValueAt(0))
	left, right, err := irsynth.Cached(room)
	if err != nil {
		return nil, err
	}
	r := &reverb{
		sr:    float64(sampleRate),
		mix:   params[2],
		block: make([]float32, graph.Quantum),
		wet:   make([]float32, graph.Quantum),
	}
	for ch := 0; ch < channels; ch++ {
		ir := left
		if ch%2 == 1 {
			ir = right
		}
		ola, err := dspconv.NewStreamingOverlapAdd32(ir, graph.Quantum)
		if err != nil {
			return nil, fmt.Errorf("reverb convolver: %w", err)
		}
		r.ola = append(r.ola, ola)
	}
	return r, nil
}

func (r *reverb) Process(in, out [][]float32, frame int) {
	n := len(out[0])
	for ch := range out {
		copy(r.block, in[ch])
		clear(r.block[n:])
		if err := r.ola[ch].ProcessBlockTo(r.wet, r.block); err != nil {
			copy(out[ch], in[ch])
			continue
		}
		for i := 0; i < n; i++ {
			out[ch][i] = blend(in[ch][i], r.wet[i], r.mix.ValueAt(seconds(frame+i, r.sr)))
		}
	}
}

// panner is an equal-power stereo panner. Pan is in [-1, 1].
type panner struct {
	sr  float64
	pan *graph.Param
}

func (p *panner) Process(in, out [][]float32, frame int) {
	if len(out) != 2 {
		for ch := range out {
			copy(out[ch], in[ch])
		}
		return
	}
	l, r := in[0], in[1]
	for i := range out[0] {
		pan := p.pan.ValueAt(seconds(frame+i, p.sr))
		if pan == 0 {
			out[0][i], out[1][i] = l[i], r[i]
			continue
		}
		x := pan
		if pan <= 0 {
			x = pan + 1
		}
		gl := float32(math.Cos(x * math.Pi / 2))
		gr := float32(math.Sin(x * math.Pi / 2))
		if pan <= 0 {
			out[0][i] = l[i] + r[i]*gl
			out[1][i] = r[i] * gr
		} else {
			out[0][i] = l[i] * gl
			out[1][i] = r[i] + l[i]*gr
		}
	}
}
